package frame

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func runFrames(t *testing.T, tr *Tracker, n int) []bool {
	t.Helper()
	ret := make([]bool, n)
	for i := range ret {
		ok, err := tr.Frame()
		require.NoError(t, err)
		ret[i] = ok
	}
	return ret
}

func TestSteadyState(t *testing.T) {
	h := newHarness(3)
	tr, err := New(h.options(2))
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, true, true, true}, runFrames(t, tr, 5))
	assert.Equal(t, []string{"cmd-0", "cmd-1", "cmd-0", "cmd-1", "cmd-0"}, h.submittedSlots())

	require.Len(t, h.device.submits, 5)
	require.Len(t, h.device.presents, 5)
	for i := range h.device.presents {
		assert.Equal(t, h.device.submits[i].signal, h.device.presents[i].wait, "present %d", i)
		assert.Equal(t, h.device.submits[i].gate, h.slots.gates[i%2])
	}

	var images []uint32
	for _, p := range h.device.presents {
		images = append(images, p.image)
	}
	assert.Equal(t, []uint32{0, 1, 2, 0, 1}, images)

	h.rec.AssertNumberOfCalls(t, "Record", 5)
	h.rec.AssertCalled(t, "Record", mock.Anything, uint32(2), "fb-2")

	assert.Equal(t, 1, tr.Slot())
	assert.Equal(t, 5, tr.Stats().Frames)
	assert.Empty(t, h.surface.rebuilds)
}

func TestStaleAcquireSkipsFrame(t *testing.T) {
	h := newHarness(3)
	h.surface.acquireStale[3] = OutOfDate
	tr, err := New(h.options(2))
	require.NoError(t, err)

	runFrames(t, tr, 2)
	before := tr.Slot()

	ok, err := tr.Frame()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, tr.Slot())
	assert.Len(t, h.device.submits, 2)

	assert.Equal(t, []bool{true, true}, runFrames(t, tr, 2))
	assert.Equal(t, []string{"cmd-0", "cmd-1", "cmd-0", "cmd-1"}, h.submittedSlots())

	rebuild := h.tl.index("rebuild", 1)
	require.NotEqual(t, -1, rebuild)
	assert.Less(t, rebuild, h.tl.index("submit", 3))
	assert.Less(t, h.tl.index("wait-idle", 1), rebuild)

	stats := tr.Stats()
	assert.Equal(t, 4, stats.Frames)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Rebuilds)
}

func TestRebuildWaitsForDrawableSize(t *testing.T) {
	h := newHarness(3)
	h.window.sizes = []Extent{{0, 0}, {1280, 0}, {1280, 720}}
	h.surface.acquireStale[1] = OutOfDate
	tr, err := New(h.options(2))
	require.NoError(t, err)

	ok, err := tr.Frame()
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 2, h.window.idles)
	assert.Equal(t, 2, tr.Stats().IdlePolls)
	assert.Equal(t, []Extent{{1280, 720}}, h.surface.rebuilds)
	assert.Equal(t, []string{"acquire", "idle", "idle", "wait-idle", "rebuild"}, h.tl.events)
}

func TestRebuildAbandonedOnClose(t *testing.T) {
	h := newHarness(3)
	h.window.sizes = []Extent{{0, 0}}
	h.window.closeAfter = 1
	tr, err := New(h.options(2))
	require.NoError(t, err)

	require.NoError(t, tr.Rebuild())
	assert.Equal(t, 1, h.window.idles)
	assert.Empty(t, h.surface.rebuilds)
	assert.Equal(t, 0, h.tl.count("wait-idle"))
}

func TestRunCancelledWhileMinimized(t *testing.T) {
	h := newHarness(3)
	h.window.sizes = []Extent{{0, 0}}
	h.window.idleFor = time.Millisecond
	h.surface.acquireStale[2] = OutOfDate
	tr, err := New(h.options(2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept waiting on a minimized window after cancellation")
	}

	stats := tr.Stats()
	assert.Equal(t, 1, stats.Frames)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Rebuilds)
	assert.True(t, stats.IdlePolls > 0)
	assert.Empty(t, h.surface.rebuilds)
}

func TestRebuildIdempotent(t *testing.T) {
	h := newHarness(3)
	tr, err := New(h.options(2))
	require.NoError(t, err)

	runFrames(t, tr, 1)
	require.NoError(t, tr.Rebuild())
	require.NoError(t, tr.Rebuild())

	assert.Equal(t, []Extent{{800, 600}, {800, 600}}, h.surface.rebuilds)
	assert.Equal(t, 1, tr.Slot())
	assert.Equal(t, 2, tr.FramesInFlight())

	runFrames(t, tr, 2)
	assert.Equal(t, []string{"cmd-0", "cmd-1", "cmd-0"}, h.submittedSlots())
}

func TestSingleSlotSerializes(t *testing.T) {
	h := newHarness(3)
	tr, err := New(h.options(1))
	require.NoError(t, err)

	runFrames(t, tr, 4)

	require.Len(t, h.slots.gates, 1)
	for _, s := range h.device.submits {
		assert.Equal(t, h.slots.gates[0], s.gate)
	}
	// every frame after the first waits on the submission right before it
	assert.Equal(t, 3, h.slots.gates[0].waitsOnPending)
	assert.Equal(t, int32(1), h.device.maxOutstanding)
}

func TestOutstandingBoundedBySlots(t *testing.T) {
	for _, tc := range []struct {
		slots  int
		images int
	}{
		{1, 3},
		{2, 3},
		{3, 2},
	} {
		h := newHarness(tc.images)
		tr, err := New(h.options(tc.slots))
		require.NoError(t, err)

		runFrames(t, tr, 10)
		assert.Equal(t, int32(tc.slots), h.device.maxOutstanding, "N=%d M=%d", tc.slots, tc.images)
	}
}

func TestStalePresentRebuildsAndAdvances(t *testing.T) {
	h := newHarness(3)
	h.device.presentStale[2] = OutOfDate
	tr, err := New(h.options(2))
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true}, runFrames(t, tr, 2))
	assert.Equal(t, 0, tr.Slot())
	assert.Len(t, h.surface.rebuilds, 1)
	assert.Less(t, h.tl.index("present", 2), h.tl.index("rebuild", 1))
}

func TestSuboptimalAcquireStillPresents(t *testing.T) {
	h := newHarness(3)
	h.surface.acquireStale[1] = Suboptimal
	tr, err := New(h.options(2))
	require.NoError(t, err)

	assert.Equal(t, []bool{true}, runFrames(t, tr, 1))
	assert.Len(t, h.device.presents, 1)
	assert.Len(t, h.surface.rebuilds, 1)
	assert.Less(t, h.tl.index("present", 1), h.tl.index("rebuild", 1))
	assert.Equal(t, 1, tr.Slot())
}

func TestResizeRebuildsAfterPresent(t *testing.T) {
	h := newHarness(3)
	h.window.resized = true
	tr, err := New(h.options(2))
	require.NoError(t, err)

	runFrames(t, tr, 1)
	assert.Len(t, h.surface.rebuilds, 1)
	assert.False(t, h.window.resized)

	runFrames(t, tr, 1)
	assert.Len(t, h.surface.rebuilds, 1)
}

func TestConcurrentWindowsSerializeQueue(t *testing.T) {
	shared := &sync.Mutex{}

	first := newHarness(3)
	first.device.hold = 100 * time.Microsecond
	second := newHarness(3)
	second.device = first.device
	second.slots.dev = first.device

	var trackers []*Tracker
	for _, h := range []*harness{first, second} {
		h.window.closeAfter = 20
		opts := h.options(2)
		opts.Lock = shared
		tr, err := New(opts)
		require.NoError(t, err)
		trackers = append(trackers, tr)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, tr := range trackers {
		tr := tr
		g.Go(func() error {
			return tr.Run(ctx)
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(0), first.device.overlaps)
	assert.Len(t, first.device.submits, 40)
	assert.Len(t, first.device.presents, 40)
	for _, tr := range trackers {
		assert.Equal(t, 20, tr.Stats().Frames)
	}
}

func TestFatalErrorsIdentifyStep(t *testing.T) {
	boom := errors.New("boom")

	for _, tc := range []struct {
		name  string
		step  Step
		setup func(h *harness)
	}{
		{"gate wait", StepGateWait, func(h *harness) { h.slots.gates[0].err = boom }},
		{"acquire", StepAcquire, func(h *harness) { h.surface.acquireErr = boom }},
		{"gate reset", StepGateReset, func(h *harness) { h.slots.gates[0].resetErr = boom }},
		{"record", StepRecord, func(h *harness) {
			h.rec.ExpectedCalls = nil
			h.rec.On("Record", mock.Anything, mock.Anything, mock.Anything).Return(boom)
		}},
		{"submit", StepSubmit, func(h *harness) { h.device.submitErr = boom }},
		{"present", StepPresent, func(h *harness) { h.device.presentErr = boom }},
		{"rebuild", StepRebuild, func(h *harness) {
			h.surface.acquireStale[1] = OutOfDate
			h.surface.rebuildErr = boom
		}},
		{"wait idle", StepRebuild, func(h *harness) {
			h.surface.acquireStale[1] = OutOfDate
			h.device.idleErr = boom
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(3)
			tr, err := New(h.options(2))
			require.NoError(t, err)
			tc.setup(h)

			_, err = tr.Frame()
			require.Error(t, err)

			step, ok := FailedStep(err)
			require.True(t, ok)
			assert.Equal(t, tc.step, step)
			assert.Equal(t, boom, errors.Cause(err))
			assert.Contains(t, err.Error(), tc.step.String())
		})
	}
}

func TestUnsupportedImageIndex(t *testing.T) {
	h := newHarness(3)
	h.surface.badIndex = true
	tr, err := New(h.options(2))
	require.NoError(t, err)

	_, err = tr.Frame()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
	step, _ := FailedStep(err)
	assert.Equal(t, StepAcquire, step)
	assert.Empty(t, h.device.submits)
}

func TestNewReleasesSlotsOnFailure(t *testing.T) {
	h := newHarness(3)
	h.slots.failAt = 2

	_, err := New(h.options(3))
	require.Error(t, err)

	step, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, StepCreateSlot, step)
	assert.Equal(t, []int{0, 1}, h.slots.released)
}

func TestNewOptions(t *testing.T) {
	h := newHarness(3)

	_, err := New(h.options(-1))
	assert.True(t, errors.Is(err, ErrUnsupported))

	opts := h.options(2)
	opts.Device = nil
	_, err = New(opts)
	assert.True(t, errors.Is(err, ErrUnsupported))

	tr, err := New(h.options(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultFramesInFlight, tr.FramesInFlight())
	assert.Equal(t, 0, tr.Slot())
}

func TestRun(t *testing.T) {
	h := newHarness(3)
	h.window.closeAfter = 3
	tr, err := New(h.options(2))
	require.NoError(t, err)

	require.NoError(t, tr.Run(context.Background()))
	stats := tr.Stats()
	assert.Equal(t, 3, stats.Frames)
	assert.True(t, stats.Elapsed > 0)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, stats.Elapsed, tr.Stats().Elapsed)
	require.NoError(t, tr.Destroy())
	assert.Equal(t, stats.Elapsed, tr.Stats().Elapsed)

	h = newHarness(3)
	tr, err = New(h.options(2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, tr.Run(ctx))
	assert.Equal(t, 0, tr.Stats().Frames)
	assert.Equal(t, 0.0, tr.Stats().FPS())
}

// lockCheckingRecorder reports whether the shared queue lock was free while
// each frame was recorded
type lockCheckingRecorder struct {
	lock *sync.Mutex
	free []bool
}

func (r *lockCheckingRecorder) Record(slot *Slot, image uint32, fb Framebuffer) error {
	ok := r.lock.TryLock()
	if ok {
		r.lock.Unlock()
	}
	r.free = append(r.free, ok)
	return nil
}

func TestRecordOutsideQueueLock(t *testing.T) {
	h := newHarness(3)
	lock := &sync.Mutex{}
	rec := &lockCheckingRecorder{lock: lock}
	opts := h.options(2)
	opts.Lock = lock
	opts.Recorder = rec
	tr, err := New(opts)
	require.NoError(t, err)

	runFrames(t, tr, 4)
	assert.Equal(t, []bool{true, true, true, true}, rec.free)
	assert.True(t, lock.TryLock())
}

func TestRunStopsOnFatal(t *testing.T) {
	h := newHarness(3)
	h.device.presentErr = errors.New("device lost")
	tr, err := New(h.options(2))
	require.NoError(t, err)

	err = tr.Run(context.Background())
	step, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, StepPresent, step)
	assert.Len(t, h.device.submits, 1)
}

func TestDestroy(t *testing.T) {
	h := newHarness(3)
	tr, err := New(h.options(2))
	require.NoError(t, err)
	runFrames(t, tr, 3)

	require.NoError(t, tr.Destroy())
	assert.Equal(t, []int{0, 1}, h.slots.released)
	assert.Equal(t, 1, h.device.idles)

	require.NoError(t, tr.Destroy())
	assert.Equal(t, []int{0, 1}, h.slots.released)
	assert.Equal(t, 1, h.device.idles)

	_, err = tr.Frame()
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestStepNames(t *testing.T) {
	assert.Equal(t, "gate wait", StepGateWait.String())
	assert.Equal(t, "create slot", StepCreateSlot.String())
	assert.Equal(t, "step(42)", Step(42).String())
	assert.Equal(t, "out of date", OutOfDate.String())
	assert.True(t, Suboptimal.Stale())
	assert.False(t, Fresh.Stale())
	assert.True(t, Extent{0, 10}.IsZero())
	assert.Equal(t, "800x600", Extent{800, 600}.String())
}
