package config

import (
	"go.uber.org/zap"

	"super-mouse-ai/internal/domain"
)

// TranscriptCount returns the number of stored transcripts.
func (r *Registry) TranscriptCount() int {
	return r.log.Len()
}

// IsEmpty reports whether there are no transcripts.
func (r *Registry) IsEmpty() bool {
	return r.log.Len() == 0
}

// CurrentTranscript returns the record at the current index.
func (r *Registry) CurrentTranscript() (domain.TranscriptRecord, bool) {
	return r.log.At(r.Index.Get())
}

// AddTranscription appends rec. The current index does not move.
func (r *Registry) AddTranscription(rec domain.TranscriptRecord) {
	r.mutMu.Lock()
	defer r.mutMu.Unlock()

	r.warnIfUnloaded("add")
	if rec.Provider == "" {
		rec.Provider = domain.ProviderLocal
	}
	n := r.log.Append(rec)
	r.clampIndex()
	r.logger.Debug("added transcription", zap.Int("count", n))
	r.scheduleSave()
}

// EditTranscription replaces the text of the current transcript.
func (r *Registry) EditTranscription(text string) bool {
	r.mutMu.Lock()
	defer r.mutMu.Unlock()

	r.warnIfUnloaded("edit")
	if !r.log.SetText(r.Index.Get(), text) {
		r.logger.Warn("no transcription to edit", zap.Int("index", r.Index.Get()))
		return false
	}
	r.scheduleSave()
	return true
}

// RemoveCurrentTranscription deletes the current transcript.
func (r *Registry) RemoveCurrentTranscription() bool {
	r.mutMu.Lock()
	defer r.mutMu.Unlock()

	r.warnIfUnloaded("remove")
	n, ok := r.log.RemoveAt(r.Index.Get())
	if !ok {
		r.logger.Warn("no transcription to remove", zap.Int("index", r.Index.Get()))
		return false
	}
	r.clampIndex()
	r.logger.Debug("removed transcription", zap.Int("count", n))
	r.scheduleSave()
	return true
}

// PrevIndex moves to the previous transcript.
func (r *Registry) PrevIndex() bool {
	r.mutMu.Lock()
	defer r.mutMu.Unlock()

	i := r.Index.Get()
	if i <= 0 {
		r.logger.Warn("already at first transcription")
		return false
	}
	r.Index.Set(i - 1)
	return true
}

// NextIndex moves to the next transcript.
func (r *Registry) NextIndex() bool {
	r.mutMu.Lock()
	defer r.mutMu.Unlock()

	i := r.Index.Get()
	if i >= r.log.Len()-1 {
		r.logger.Warn("already at last transcription", zap.Int("index", i))
		return false
	}
	r.Index.Set(i + 1)
	return true
}

// SetCurrentIndex selects transcript i.
func (r *Registry) SetCurrentIndex(i int) bool {
	r.mutMu.Lock()
	defer r.mutMu.Unlock()

	n := r.log.Len()
	if i != 0 && (i < 0 || i >= n) {
		r.logger.Warn("transcription index out of range", zap.Int("index", i), zap.Int("count", n))
		return false
	}
	if r.Index.Get() != i {
		r.Index.Set(i)
	}
	return true
}

// clampIndex keeps the index inside the list. Callers hold mutMu.
func (r *Registry) clampIndex() {
	n := r.log.Len()
	i := r.Index.Get()
	want := min(max(i, 0), max(n-1, 0))
	if want != i {
		r.logger.Debug("clamped transcription index", zap.Int("from", i), zap.Int("to", want))
		r.Index.Set(want)
	}
}

// warnIfUnloaded flags mutations that the initial load will overwrite.
func (r *Registry) warnIfUnloaded(op string) {
	if !r.Loaded() {
		r.logger.Warn("transcription changed before settings loaded, the change will be replaced by the stored list",
			zap.String("op", op))
	}
}

func (r *Registry) scheduleSave() {
	r.saves.Add(1)
	go func() {
		defer r.saves.Done()
		r.log.Save()
	}()
}
