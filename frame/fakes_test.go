package frame

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
)

// timeline is an ordered log of collaborator calls shared by the fakes
type timeline struct {
	mu     sync.Mutex
	events []string
}

func (tl *timeline) add(format string, args ...interface{}) {
	tl.mu.Lock()
	tl.events = append(tl.events, fmt.Sprintf(format, args...))
	tl.mu.Unlock()
}

func (tl *timeline) index(event string, nth int) int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	seen := 0
	for i, e := range tl.events {
		if e == event {
			seen++
			if seen == nth {
				return i
			}
		}
	}
	return -1
}

func (tl *timeline) count(event string) int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	n := 0
	for _, e := range tl.events {
		if e == event {
			n++
		}
	}
	return n
}

// fakeGate models a fence: a submission leaves it pending and the GPU
// completes that work as soon as the CPU waits on it.
type fakeGate struct {
	name     string
	dev      *fakeDevice
	signaled bool
	pending  bool

	waitsOnPending int
	err            error
	resetErr       error
}

func (g *fakeGate) Wait() error {
	if g.err != nil {
		return g.err
	}
	if g.pending {
		g.waitsOnPending++
		g.pending = false
		g.signaled = true
		atomic.AddInt32(&g.dev.outstanding, -1)
		return nil
	}
	if !g.signaled {
		return errors.Errorf("%s would block forever", g.name)
	}
	return nil
}

func (g *fakeGate) Reset() error {
	if g.resetErr != nil {
		return g.resetErr
	}
	g.signaled = false
	return nil
}

type submitCall struct {
	cmd    CommandBuffer
	wait   Signal
	signal Signal
	gate   Gate
}

type presentCall struct {
	image uint32
	wait  Signal
}

type fakeDevice struct {
	tl *timeline

	mu       sync.Mutex
	submits  []submitCall
	presents []presentCall

	// staleness reported by the nth present call, 1 based
	presentStale map[int]Staleness

	submitErr  error
	presentErr error
	idleErr    error
	idles      int

	outstanding    int32
	maxOutstanding int32

	// concurrency checks
	busy     int32
	overlaps int32
	hold     time.Duration
}

func newFakeDevice(tl *timeline) *fakeDevice {
	return &fakeDevice{tl: tl, presentStale: map[int]Staleness{}}
}

func (d *fakeDevice) enter() {
	if atomic.AddInt32(&d.busy, 1) != 1 {
		atomic.AddInt32(&d.overlaps, 1)
	}
	if d.hold > 0 {
		time.Sleep(d.hold)
	}
}

func (d *fakeDevice) leave() {
	atomic.AddInt32(&d.busy, -1)
}

func (d *fakeDevice) Submit(cmd CommandBuffer, wait Signal, signal Signal, gate Gate) error {
	d.enter()
	defer d.leave()

	if d.submitErr != nil {
		return d.submitErr
	}

	if g, ok := gate.(*fakeGate); ok {
		g.pending = true
		n := atomic.AddInt32(&d.outstanding, 1)
		for {
			m := atomic.LoadInt32(&d.maxOutstanding)
			if n <= m || atomic.CompareAndSwapInt32(&d.maxOutstanding, m, n) {
				break
			}
		}
	}

	d.mu.Lock()
	d.submits = append(d.submits, submitCall{cmd, wait, signal, gate})
	d.mu.Unlock()
	d.tl.add("submit")
	return nil
}

func (d *fakeDevice) Present(image uint32, wait Signal) (Staleness, error) {
	d.enter()
	defer d.leave()

	if d.presentErr != nil {
		return Fresh, d.presentErr
	}

	d.mu.Lock()
	d.presents = append(d.presents, presentCall{image, wait})
	n := len(d.presents)
	d.mu.Unlock()
	d.tl.add("present")
	return d.presentStale[n], nil
}

func (d *fakeDevice) WaitIdle() error {
	d.mu.Lock()
	d.idles++
	d.mu.Unlock()
	d.tl.add("wait-idle")
	return d.idleErr
}

type fakeSurface struct {
	tl     *timeline
	images int
	next   uint32
	extent Extent

	acquires     int
	acquireStale map[int]Staleness
	acquireErr   error
	badIndex     bool

	rebuilds   []Extent
	rebuildErr error
}

func newFakeSurface(tl *timeline, images int) *fakeSurface {
	return &fakeSurface{tl: tl, images: images, extent: Extent{800, 600}, acquireStale: map[int]Staleness{}}
}

func (s *fakeSurface) AcquireNextImage(signal Signal) (uint32, Staleness, error) {
	s.acquires++
	s.tl.add("acquire")
	if s.acquireErr != nil {
		return 0, Fresh, s.acquireErr
	}
	if st, ok := s.acquireStale[s.acquires]; ok && st == OutOfDate {
		return 0, st, nil
	}
	if s.badIndex {
		return uint32(s.images), Fresh, nil
	}
	image := s.next
	s.next = (s.next + 1) % uint32(s.images)
	return image, s.acquireStale[s.acquires], nil
}

func (s *fakeSurface) Rebuild(extent Extent) error {
	s.tl.add("rebuild")
	if s.rebuildErr != nil {
		return s.rebuildErr
	}
	s.rebuilds = append(s.rebuilds, extent)
	s.extent = extent
	s.next = 0
	return nil
}

func (s *fakeSurface) ImageCount() int {
	return s.images
}

func (s *fakeSurface) Framebuffer(image uint32) Framebuffer {
	return fmt.Sprintf("fb-%d", image)
}

func (s *fakeSurface) Extent() Extent {
	return s.extent
}

type fakeWindow struct {
	tl *timeline

	// sizes are returned in order, the last one repeats
	sizes []Extent
	idles int
	// idleFor is how long Idle blocks
	idleFor time.Duration

	closeAfter int
	checks     int
	closing    bool

	resized bool
}

func newFakeWindow(tl *timeline) *fakeWindow {
	return &fakeWindow{tl: tl, sizes: []Extent{{800, 600}}}
}

func (w *fakeWindow) ShouldClose() bool {
	w.checks++
	if w.closing {
		return true
	}
	return w.closeAfter > 0 && w.checks > w.closeAfter
}

func (w *fakeWindow) Poll() {}

func (w *fakeWindow) Size() Extent {
	s := w.sizes[0]
	if len(w.sizes) > 1 {
		w.sizes = w.sizes[1:]
	}
	return s
}

func (w *fakeWindow) Idle() {
	w.idles++
	w.tl.add("idle")
	if w.idleFor > 0 {
		time.Sleep(w.idleFor)
	}
}

func (w *fakeWindow) Resized() bool {
	return w.resized
}

func (w *fakeWindow) ResetResized() {
	w.resized = false
}

type fakeSlots struct {
	dev      *fakeDevice
	failAt   int
	released []int
	gates    []*fakeGate
}

func (a *fakeSlots) AllocateSlot(index int) (*Slot, error) {
	if a.failAt > 0 && index == a.failAt {
		return nil, errors.New("out of semaphores")
	}
	gate := &fakeGate{name: fmt.Sprintf("gate-%d", index), dev: a.dev, signaled: true}
	a.gates = append(a.gates, gate)
	return &Slot{
		ImageAvailable: fmt.Sprintf("available-%d", index),
		RenderFinished: fmt.Sprintf("finished-%d", index),
		Complete:       gate,
		Commands:       fmt.Sprintf("cmd-%d", index),
	}, nil
}

func (a *fakeSlots) ReleaseSlot(slot *Slot) {
	a.released = append(a.released, slot.Index)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(slot *Slot, image uint32, fb Framebuffer) error {
	args := m.Called(slot, image, fb)
	return args.Error(0)
}

func newRecorder() *mockRecorder {
	rec := &mockRecorder{}
	rec.On("Record", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return rec
}

// harness wires one tracker to a set of fakes
type harness struct {
	tl      *timeline
	device  *fakeDevice
	surface *fakeSurface
	window  *fakeWindow
	slots   *fakeSlots
	rec     *mockRecorder
}

func newHarness(images int) *harness {
	tl := &timeline{}
	dev := newFakeDevice(tl)
	return &harness{
		tl:      tl,
		device:  dev,
		surface: newFakeSurface(tl, images),
		window:  newFakeWindow(tl),
		slots:   &fakeSlots{dev: dev},
		rec:     newRecorder(),
	}
}

func (h *harness) options(n int) Options {
	return Options{
		FramesInFlight: n,
		Name:           "test",
		Device:         h.device,
		Surface:        h.surface,
		Recorder:       h.rec,
		Window:         h.window,
		Slots:          h.slots,
	}
}

func (h *harness) submittedSlots() []string {
	h.device.mu.Lock()
	defer h.device.mu.Unlock()
	ret := make([]string, len(h.device.submits))
	for i, s := range h.device.submits {
		ret[i] = s.cmd.(string)
	}
	return ret
}
