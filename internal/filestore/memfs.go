package filestore

import (
	"fmt"
	"io"
	"io/fs"
	"sync"
)

// MemFS keeps files in memory. It is used by tests and dry runs.
type MemFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMem returns an empty in-memory FS.
func NewMem() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

// Put replaces the content of name.
func (m *MemFS) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
}

// Contents returns a copy of name's content.
func (m *MemFS) Contents(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Open implements FS.
func (m *MemFS) Open(name string, flag Flag) (File, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		if !flag.Create {
			return nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
		}
		m.files[name] = nil
	}
	if flag.Truncate {
		data = nil
		m.files[name] = nil
	}
	return &memFile{fs: m, name: name, data: append([]byte(nil), data...), flag: flag}, nil
}

type memFile struct {
	fs     *MemFS
	name   string
	data   []byte
	off    int
	flag   Flag
	dirty  bool
	closed bool
}

func (f *memFile) Stat() (Info, error) {
	if f.closed {
		return Info{}, fs.ErrClosed
	}
	return Info{Size: int64(len(f.data))}, nil
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if f.off >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.off:])
	f.off += n
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.flag.Write {
		return 0, fmt.Errorf("write %s: %w", f.name, fs.ErrPermission)
	}
	end := f.off + len(p)
	if end > len(f.data) {
		f.data = append(f.data, make([]byte, end-len(f.data))...)
	}
	copy(f.data[f.off:], p)
	f.off = end
	f.dirty = true
	return len(p), nil
}

func (f *memFile) Close() error {
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	if f.dirty {
		f.fs.Put(f.name, f.data)
	}
	return nil
}
