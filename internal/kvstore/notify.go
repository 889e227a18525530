package kvstore

import (
	"encoding/json"
	"slices"
	"sync"
)

// listeners is a copy-on-notify subscriber list shared by store implementations.
type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]ChangeFunc
}

func (l *listeners) add(fn ChangeFunc) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]ChangeFunc)
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) notify(key string, value json.RawMessage) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	fns := make([]ChangeFunc, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(key, value)
	}
}
