package compute

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
)

const (
	// WorkgroupSize matches @workgroup_size in mesh_gen.wgsl.
	WorkgroupSize = 64
	// MaxWorkgroupsPerDimension is the WebGPU default limit.
	MaxWorkgroupsPerDimension = 65535

	defaultBatch = 256
)

// Kernel runs one invocation. Invocations may run concurrently and must only
// write state owned by their index.
type Kernel func(invocation int) error

type Dispatcher interface {
	Dispatch(id uint64, label string, invocations int, kernel Kernel) *Fence
}

// PoolDispatcher runs kernels on a shared worker pool, one task per batch of
// invocations.
type PoolDispatcher struct {
	pool  pond.Pool
	batch int
}

// NewPoolDispatcher uses runtime.NumCPU workers when workers <= 0.
func NewPoolDispatcher(workers, batch int) *PoolDispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if batch <= 0 {
		batch = defaultBatch
	}
	return &PoolDispatcher{
		pool:  pond.NewPool(workers),
		batch: batch,
	}
}

// Dispatch returns immediately. The fence is signaled once every invocation
// has finished, with the first kernel error if any. Zero invocations signal
// at once.
func (d *PoolDispatcher) Dispatch(id uint64, label string, invocations int, kernel Kernel) *Fence {
	fence := NewFence(id)
	if invocations <= 0 {
		fence.Signal(nil)
		return fence
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for start := 0; start < invocations; start += d.batch {
		end := min(start+d.batch, invocations)
		wg.Add(1)
		d.pool.Submit(func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				if err := kernel(i); err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("%s: invocation %d: %w", label, i, err)
					})
					return
				}
			}
		})
	}

	go func() {
		wg.Wait()
		fence.Signal(firstErr)
	}()
	return fence
}

func (d *PoolDispatcher) Close() {
	d.pool.StopAndWait()
}

// Workgroups returns a dispatch size covering invocations with groups of
// groupSize, folding into Y when X would exceed the per-dimension limit.
// Kernels recover the linear index as gid.x + gid.y * x * groupSize.
func Workgroups(invocations, groupSize int) (x, y uint32) {
	if invocations <= 0 {
		return 0, 0
	}
	groups := (invocations + groupSize - 1) / groupSize
	if groups <= MaxWorkgroupsPerDimension {
		return uint32(groups), 1
	}
	y = uint32((groups + MaxWorkgroupsPerDimension - 1) / MaxWorkgroupsPerDimension)
	x = uint32((groups + int(y) - 1) / int(y))
	return x, y
}
