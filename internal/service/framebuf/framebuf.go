// Package framebuf holds the single-slot, latest-wins buffer between frame
// acquisition and detection.
package framebuf

import (
	"sync"
	"sync/atomic"

	"firewatch/internal/model"
)

// Buffer is a single-slot queue. Offer never blocks and replaces any unread
// frame; Take never blocks and empties the slot.
type Buffer struct {
	mu      sync.Mutex
	frame   model.Frame
	pending bool

	offered uint64
	dropped uint64
}

func New() *Buffer {
	return &Buffer{}
}

// Offer stores a private copy of frame, discarding an unread previous one.
// It reports whether a frame was discarded.
func (b *Buffer) Offer(frame model.Frame) bool {
	cp := frame.Clone()

	b.mu.Lock()
	replaced := b.pending
	b.frame = cp
	b.pending = true
	b.mu.Unlock()

	atomic.AddUint64(&b.offered, 1)
	if replaced {
		atomic.AddUint64(&b.dropped, 1)
	}
	return replaced
}

// Take returns the pending frame, or false when the slot is empty.
func (b *Buffer) Take() (model.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.pending {
		return model.Frame{}, false
	}
	f := b.frame
	b.frame = model.Frame{}
	b.pending = false
	return f, true
}

// Reset drops any pending frame without counting it as a drop.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.frame = model.Frame{}
	b.pending = false
	b.mu.Unlock()
}

// Stats returns lifetime counters.
func (b *Buffer) Stats() (offered, dropped uint64) {
	return atomic.LoadUint64(&b.offered), atomic.LoadUint64(&b.dropped)
}
