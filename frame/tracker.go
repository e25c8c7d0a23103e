package frame

import (
	"context"
	"sync"
	"time"

	"github.com/igor-barinov/vulkan-game-engine/log"
	"github.com/pkg/errors"
)

// DefaultFramesInFlight is the number of slots used when none is configured
const DefaultFramesInFlight = 2

var logger = log.New("frame")

// Options configures a Tracker
type Options struct {
	// FramesInFlight is N, fixed for the lifetime of the tracker
	FramesInFlight int

	// Lock serializes Submit and Present, it must be shared by every tracker
	// using the same device queues. A private mutex is used when nil.
	Lock sync.Locker

	// Name identifies the tracker in log output
	Name string

	Device   Device
	Surface  Surface
	Recorder Recorder
	Window   Window
	Slots    SlotAllocator
}

// Stats counts what a tracker has done so far
type Stats struct {
	Frames    int
	Skipped   int
	Rebuilds  int
	IdlePolls int
	Elapsed   time.Duration
}

// FPS is the average number of presented frames per second
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// Tracker runs the frame protocol for one window
type Tracker struct {
	opts  Options
	slots []*Slot
	index int

	stats   Stats
	started time.Time
	stopped time.Time

	// ctx is the context of the running Run call, a minimized wait gives up
	// once it is done
	ctx context.Context

	destroyed bool
}

// New validates the options and allocates the frame slots
func New(opts Options) (*Tracker, error) {
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = DefaultFramesInFlight
	}
	if opts.FramesInFlight < 1 {
		return nil, errors.Wrapf(ErrUnsupported, "%d frames in flight", opts.FramesInFlight)
	}
	if opts.Device == nil || opts.Surface == nil || opts.Recorder == nil || opts.Window == nil || opts.Slots == nil {
		return nil, errors.Wrap(ErrUnsupported, "tracker requires a device, surface, recorder, window and slot allocator")
	}
	if opts.Lock == nil {
		opts.Lock = &sync.Mutex{}
	}

	t := &Tracker{opts: opts}

	t.slots = make([]*Slot, opts.FramesInFlight)
	for i := range t.slots {
		slot, err := opts.Slots.AllocateSlot(i)
		if err == nil && (slot == nil || slot.Complete == nil) {
			err = errors.Wrap(ErrUnsupported, "allocator returned an incomplete slot")
		}
		if err != nil {
			for j := 0; j < i; j++ {
				opts.Slots.ReleaseSlot(t.slots[j])
			}
			return nil, fail(StepCreateSlot, i, err)
		}
		slot.Index = i
		t.slots[i] = slot
	}

	logger.Debugf("%s: created %d frame slots", opts.Name, opts.FramesInFlight)

	return t, nil
}

// Slot returns the index of the slot the next frame will use
func (t *Tracker) Slot() int {
	return t.index
}

// FramesInFlight returns N
func (t *Tracker) FramesInFlight() int {
	return len(t.slots)
}

// Stats returns a snapshot of the tracker counters
func (t *Tracker) Stats() Stats {
	s := t.stats
	switch {
	case t.started.IsZero():
	case !t.stopped.IsZero():
		s.Elapsed = t.stopped.Sub(t.started)
	default:
		s.Elapsed = time.Since(t.started)
	}
	return s
}

// Frame runs one iteration of the protocol. It returns true when a frame was
// submitted, false when a stale surface on acquire forced a rebuild instead.
func (t *Tracker) Frame() (bool, error) {
	if t.destroyed {
		return false, fail(StepGateWait, t.index, errors.Wrap(ErrUnsupported, "tracker destroyed"))
	}
	if t.started.IsZero() {
		t.started = time.Now()
	}

	slot := t.slots[t.index]

	if err := slot.Complete.Wait(); err != nil {
		return false, t.fatal(StepGateWait, err)
	}

	image, staleness, err := t.opts.Surface.AcquireNextImage(slot.ImageAvailable)
	if err != nil {
		return false, t.fatal(StepAcquire, err)
	}
	if staleness == OutOfDate {
		logger.Debugf("%s: surface %s on acquire, slot %d kept", t.opts.Name, staleness, t.index)
		t.stats.Skipped++
		if err := t.Rebuild(); err != nil {
			return false, err
		}
		return false, nil
	}
	if int(image) >= t.opts.Surface.ImageCount() {
		return false, t.fatal(StepAcquire, errors.Wrapf(ErrUnsupported, "image %d of %d", image, t.opts.Surface.ImageCount()))
	}

	if err := slot.Complete.Reset(); err != nil {
		return false, t.fatal(StepGateReset, err)
	}

	if err := t.opts.Recorder.Record(slot, image, t.opts.Surface.Framebuffer(image)); err != nil {
		return false, t.fatal(StepRecord, err)
	}

	t.opts.Lock.Lock()
	err = t.opts.Device.Submit(slot.Commands, slot.ImageAvailable, slot.RenderFinished, slot.Complete)
	t.opts.Lock.Unlock()
	if err != nil {
		return false, t.fatal(StepSubmit, err)
	}

	t.opts.Lock.Lock()
	presented, err := t.opts.Device.Present(image, slot.RenderFinished)
	t.opts.Lock.Unlock()
	if err != nil {
		return false, t.fatal(StepPresent, err)
	}

	t.stats.Frames++

	if staleness.Stale() || presented.Stale() || t.opts.Window.Resized() {
		if err := t.Rebuild(); err != nil {
			return true, err
		}
	}

	t.index = (t.index + 1) % len(t.slots)

	return true, nil
}

// Rebuild waits for a drawable window size and an idle device then rebuilds the
// surface. Frame slots and the slot index are left untouched.
func (t *Tracker) Rebuild() error {
	size := t.opts.Window.Size()
	if size.IsZero() {
		logger.Warningf("%s: window minimized, waiting", t.opts.Name)
	}
	for size.IsZero() {
		if t.opts.Window.ShouldClose() {
			return nil
		}
		if t.ctx != nil && t.ctx.Err() != nil {
			logger.Debugf("%s: rebuild abandoned, %v", t.opts.Name, t.ctx.Err())
			return nil
		}
		t.opts.Window.Idle()
		t.stats.IdlePolls++
		size = t.opts.Window.Size()
	}

	if err := t.opts.Device.WaitIdle(); err != nil {
		return t.fatal(StepRebuild, errors.Wrap(err, "wait idle"))
	}

	old := t.opts.Surface.Extent()
	if err := t.opts.Surface.Rebuild(size); err != nil {
		return t.fatal(StepRebuild, err)
	}
	t.opts.Window.ResetResized()
	t.stats.Rebuilds++

	logger.Infof("%s: surface rebuilt %s -> %s", t.opts.Name, old, t.opts.Surface.Extent())

	return nil
}

// Run renders frames until the window asks to close or the context is done.
// Stats stop counting elapsed time when it returns.
func (t *Tracker) Run(ctx context.Context) error {
	t.ctx = ctx
	t.stopped = time.Time{}
	defer func() {
		t.ctx = nil
		t.stop()
	}()

	for !t.opts.Window.ShouldClose() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		t.opts.Window.Poll()

		if _, err := t.Frame(); err != nil {
			return err
		}
	}
	return nil
}

// Destroy waits for the device to go idle and releases every slot
func (t *Tracker) Destroy() error {
	if t.destroyed {
		return nil
	}
	t.destroyed = true
	t.stop()

	err := t.opts.Device.WaitIdle()

	for _, slot := range t.slots {
		t.opts.Slots.ReleaseSlot(slot)
	}
	t.slots = nil

	if err != nil {
		return fail(StepDestroy, t.index, err)
	}
	return nil
}

func (t *Tracker) stop() {
	if !t.started.IsZero() && t.stopped.IsZero() {
		t.stopped = time.Now()
	}
}

func (t *Tracker) fatal(step Step, err error) error {
	e := fail(step, t.index, err)
	logger.Errorf("%s: %v", t.opts.Name, e)
	return e
}
