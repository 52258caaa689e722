package compute

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFenceSignalsOnce(t *testing.T) {
	f := NewFence(7)
	assert.Equal(t, uint64(7), f.ID())
	assert.False(t, f.Signaled())
	assert.NoError(t, f.Err())

	boom := errors.New("boom")
	assert.True(t, f.Signal(boom))
	assert.False(t, f.Signal(nil), "second signal is ignored")

	assert.True(t, f.Signaled())
	assert.ErrorIs(t, f.Err(), boom)
	assert.ErrorIs(t, f.Wait(context.Background()), boom)
}

func TestFenceWaitHonoursContext(t *testing.T) {
	f := NewFence(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.DeadlineExceeded)

	go f.Signal(nil)
	assert.NoError(t, f.Wait(context.Background()))

	assert.True(t, SignaledFence(3, nil).Signaled())
}

func TestPoolDispatcherRunsEveryInvocationOnce(t *testing.T) {
	d := NewPoolDispatcher(4, 10)
	defer d.Close()

	const n = 1037
	hits := make([]int32, n)
	fence := d.Dispatch(5, "count", n, func(i int) error {
		atomic.AddInt32(&hits[i], 1)
		return nil
	})
	require.NoError(t, fence.Wait(context.Background()))
	assert.Equal(t, uint64(5), fence.ID())
	for i, h := range hits {
		require.Equal(t, int32(1), h, "invocation %d", i)
	}
}

func TestPoolDispatcherReportsKernelError(t *testing.T) {
	d := NewPoolDispatcher(2, 0)
	defer d.Close()

	boom := errors.New("boom")
	fence := d.Dispatch(1, "fail", 600, func(i int) error {
		if i == 300 {
			return boom
		}
		return nil
	})
	err := fence.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fail: invocation 300")
}

func TestPoolDispatcherZeroInvocations(t *testing.T) {
	d := NewPoolDispatcher(0, 0)
	defer d.Close()

	called := false
	fence := d.Dispatch(9, "empty", 0, func(int) error {
		called = true
		return nil
	})
	assert.True(t, fence.Signaled())
	assert.NoError(t, fence.Err())
	assert.False(t, called)
}

func TestWorkgroups(t *testing.T) {
	x, y := Workgroups(0, 64)
	assert.Equal(t, [2]uint32{0, 0}, [2]uint32{x, y})

	x, y = Workgroups(1, 64)
	assert.Equal(t, [2]uint32{1, 1}, [2]uint32{x, y})

	x, y = Workgroups(65, 64)
	assert.Equal(t, [2]uint32{2, 1}, [2]uint32{x, y})

	// 256^3 voxels need 262144 groups of 64
	x, y = Workgroups(256*256*256, WorkgroupSize)
	assert.LessOrEqual(t, x, uint32(MaxWorkgroupsPerDimension))
	assert.Greater(t, y, uint32(1))
	assert.GreaterOrEqual(t, int(x)*int(y)*WorkgroupSize, 256*256*256)
}
