// input_live.go - Live feed input with background capture into a ring buffer

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GreatValueCreamSoda/gopixfmts"
	"golang.org/x/sync/errgroup"
)

// LiveCapture is the device collaborator behind LiveInputSource: one
// blocking CaptureFrame call per frame, the way a V4L2 or network grabber
// behaves.
type LiveCapture interface {
	open(uri string) (FrameInfo, error)
	// captureFrame blocks until the next frame and moves it into out.
	captureFrame(out *PixelBuffer) error
	close()
}

// frameRing is a small mutex+condvar ring. The producer overwrites the
// oldest slot when full; the consumer swaps the newest out, move-semantics,
// no copy.
type frameRing struct {
	mu    sync.Mutex
	cond  *sync.Cond
	slots []PixelBuffer
	head  int
	count int
}

func newFrameRing(size int) *frameRing {
	if size <= 0 {
		size = LIVE_RING_DEFAULT_SIZE
	}
	r := &frameRing{slots: make([]PixelBuffer, size)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *frameRing) push(buf PixelBuffer) {
	r.mu.Lock()
	idx := (r.head + r.count) % len(r.slots)
	if r.count == len(r.slots) {
		// Full: drop the oldest.
		idx = r.head
		r.head = (r.head + 1) % len(r.slots)
	} else {
		r.count++
	}
	r.slots[idx] = buf
	r.mu.Unlock()
	r.cond.Signal()
}

// takeLatest removes and returns the newest frame, discarding older ones.
func (r *frameRing) takeLatest() (PixelBuffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return PixelBuffer{}, false
	}
	newest := (r.head + r.count - 1) % len(r.slots)
	buf := r.slots[newest].Take()
	r.head = 0
	r.count = 0
	return buf, true
}

// LiveInputSource drives a capture goroutine that fills the ring; the main
// thread consumes via ReadLatestFrame, spec 4.3/5.
type LiveInputSource struct {
	opts    InputOptions
	capture LiveCapture

	ready     bool
	frameInfo FrameInfo
	ring      *frameRing

	group  *errgroup.Group
	cancel context.CancelFunc
	stop   atomic.Bool

	captureErrors int64
}

func NewLiveInputSource(opts InputOptions) *LiveInputSource {
	return &LiveInputSource{opts: opts, capture: newDefaultLiveCapture()}
}

// SetCapture substitutes the device collaborator; used by tests and by the
// registration path for network grabbers.
func (s *LiveInputSource) SetCapture(c LiveCapture) { s.capture = c }

func (s *LiveInputSource) Open(descriptor string) bool {
	uri := strings.TrimPrefix(descriptor, "live:")
	info, err := s.capture.open(uri)
	if err != nil {
		fmt.Printf("Input: live open failed for %s: %v\n", descriptor, err)
		return false
	}
	info.TotalFrames = 0
	s.frameInfo = info
	s.ring = newFrameRing(s.opts.RingSize)
	s.ready = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, _ = errgroup.WithContext(ctx)
	s.group.Go(func() error {
		s.captureLoop(ctx)
		return nil
	})
	return true
}

// captureLoop runs until shutdown. Consecutive capture errors sleep 10 ms
// and retry; logged every 10 consecutive errors and every 100 thereafter,
// spec 7.
func (s *LiveInputSource) captureLoop(ctx context.Context) {
	consecutive := 0
	for {
		if s.stop.Load() || ctx.Err() != nil {
			return
		}
		var buf PixelBuffer
		if err := s.capture.captureFrame(&buf); err != nil {
			consecutive++
			s.captureErrors++
			if consecutive == 10 || (consecutive > 10 && consecutive%100 == 0) {
				fmt.Printf("Input: live capture failing (%d consecutive): %v\n", consecutive, err)
			}
			time.Sleep(LIVE_ERROR_RETRY_SLEEP)
			continue
		}
		consecutive = 0
		s.ring.push(buf)
	}
}

func (s *LiveInputSource) IsReady() bool   { return s.ready }
func (s *LiveInputSource) Info() FrameInfo { return s.frameInfo }

func (s *LiveInputSource) DetectCodec() CodecClass { return CodecOther }

func (s *LiveInputSource) SupportsDirectGPUTexture() bool { return false }

func (s *LiveInputSource) GetOptimalBackend() DecodeBackend { return BackendSoftware }

func (s *LiveInputSource) IsLiveStream() bool { return true }

// ReadFrame on a live feed ignores the index and serves the newest capture.
func (s *LiveInputSource) ReadFrame(idx int64, out *LayerFrame) bool {
	return s.ReadLatestFrame(out)
}

func (s *LiveInputSource) ReadLatestFrame(out *LayerFrame) bool {
	if !s.ready {
		return false
	}
	buf, ok := s.ring.takeLatest()
	if !ok {
		return false
	}
	out.ReleaseGPU()
	out.CPU = &buf
	out.GPU = nil
	return true
}

func (s *LiveInputSource) Seek(idx int64) {}
func (s *LiveInputSource) ResetSeekState() {}

func (s *LiveInputSource) Close() {
	if !s.ready {
		return
	}
	s.stop.Store(true)
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		_ = s.group.Wait()
	}
	s.capture.close()
	s.ready = false
}

// defaultLiveCapture is a placeholder grabber that reports open failure;
// concrete device grabbers register through SetCapture. Network-discovered
// inputs are an explicit non-goal.
type defaultLiveCapture struct{}

func newDefaultLiveCapture() LiveCapture { return &defaultLiveCapture{} }

func (d *defaultLiveCapture) open(uri string) (FrameInfo, error) {
	return FrameInfo{PixelFormat: gopixfmts.PixelFormatBGRA},
		fmt.Errorf("no capture driver registered for %q", uri)
}

func (d *defaultLiveCapture) captureFrame(out *PixelBuffer) error {
	return fmt.Errorf("no capture driver")
}

func (d *defaultLiveCapture) close() {}
