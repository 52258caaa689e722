package compute

import (
	"context"
	"sync"
)

// Fence is a one-shot completion barrier tagged with the frame that issued
// the work. It is signaled exactly once; later signals are ignored.
type Fence struct {
	id   uint64
	once sync.Once
	done chan struct{}
	err  error
}

func NewFence(id uint64) *Fence {
	return &Fence{id: id, done: make(chan struct{})}
}

// SignaledFence returns a fence that is already complete.
func SignaledFence(id uint64, err error) *Fence {
	f := NewFence(id)
	f.Signal(err)
	return f
}

func (f *Fence) ID() uint64 {
	return f.id
}

// Signal completes the fence. It reports whether this call did the signaling.
func (f *Fence) Signal(err error) bool {
	signaled := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		signaled = true
	})
	return signaled
}

func (f *Fence) Done() <-chan struct{} {
	return f.done
}

func (f *Fence) Signaled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err is the error the fence was signaled with; nil while pending.
func (f *Fence) Err() error {
	if !f.Signaled() {
		return nil
	}
	return f.err
}

// Wait blocks until the fence is signaled or ctx ends.
func (f *Fence) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
