// layer_test.go - Playback state machine tests

package main

import (
	"testing"
	"time"

	"github.com/GreatValueCreamSoda/gopixfmts"
)

// fakeInput is an in-memory InputSource recording the calls the playback
// engine makes.
type fakeInput struct {
	total       int64
	fps         float64
	ready       bool
	currentIdx  int64
	seekResets  int
	seeks       []int64
	readFrames  []int64
	failReads   bool
}

func newFakeInput(total int64, fps float64) *fakeInput {
	return &fakeInput{total: total, fps: fps, ready: true, currentIdx: -1}
}

func (f *fakeInput) Open(string) bool { return true }
func (f *fakeInput) IsReady() bool    { return f.ready }
func (f *fakeInput) Info() FrameInfo {
	return FrameInfo{Width: 1920, Height: 1080, FPS: f.fps, TotalFrames: f.total,
		PixelFormat: gopixfmts.PixelFormatBGRA}
}
func (f *fakeInput) ReadFrame(idx int64, out *LayerFrame) bool {
	if f.failReads {
		return false
	}
	f.readFrames = append(f.readFrames, idx)
	f.currentIdx = idx
	out.CPU = &PixelBuffer{Width: 1920, Height: 1080, Stride: 1920 * 4, Data: make([]byte, 4)}
	return true
}
func (f *fakeInput) Seek(idx int64) { f.seeks = append(f.seeks, idx) }
func (f *fakeInput) ResetSeekState() { f.seekResets++ }
func (f *fakeInput) DetectCodec() CodecClass            { return CodecH264 }
func (f *fakeInput) SupportsDirectGPUTexture() bool     { return false }
func (f *fakeInput) GetOptimalBackend() DecodeBackend   { return BackendSoftware }
func (f *fakeInput) IsLiveStream() bool                 { return false }
func (f *fakeInput) ReadLatestFrame(out *LayerFrame) bool { return false }
func (f *fakeInput) Close() { f.ready = false }

// fakeSync drives the layer directly.
type fakeSync struct {
	frame     int64
	rolling   bool
	fps       float64
	jumped    bool
	connected bool
}

func (s *fakeSync) Poll() (int64, bool) {
	if !s.connected {
		return -1, false
	}
	return s.frame, s.rolling
}
func (s *fakeSync) Framerate() float64 { return s.fps }
func (s *fakeSync) Jumped() bool {
	j := s.jumped
	s.jumped = false
	return j
}
func (s *fakeSync) Connected() bool { return s.connected }

func newTestLayer(total int64) (*Layer, *fakeInput, *fakeSync) {
	layer := NewLayer(1, "")
	input := newFakeInput(total, 25)
	sync := &fakeSync{fps: 25, connected: true, rolling: true}
	layer.Input = input
	layer.Sync = sync
	layer.Playback.Playing = true
	return layer, input, sync
}

func TestWraparound(t *testing.T) {
	layer, _, sync := newTestLayer(100)

	sync.frame = 101
	layer.Update(0)
	if layer.Playback.CurrentFrame != 1 {
		t.Fatalf("wraparound: got %d, want 1", layer.Playback.CurrentFrame)
	}

	layer.Playback.Wraparound = false
	sync.frame = 105
	layer.Update(0)
	if layer.Playback.CurrentFrame != 99 {
		t.Fatalf("clamp: got %d, want 99", layer.Playback.CurrentFrame)
	}
	if !layer.Playback.endOfStream {
		t.Fatalf("expected end-of-stream after clamp")
	}
}

func TestLoopRegion(t *testing.T) {
	layer, _, sync := newTestLayer(100)
	layer.Playback.Loop = LoopRegion{Start: 30, End: 60, Enabled: true}

	sync.frame = 75
	layer.Update(0)
	if layer.Playback.CurrentFrame != 45 {
		t.Fatalf("loop region: got %d, want 45", layer.Playback.CurrentFrame)
	}
}

func TestLoopRegionUnderReverse(t *testing.T) {
	layer, _, sync := newTestLayer(300)
	layer.Playback.Loop = LoopRegion{Start: 100, End: 200, Enabled: true}
	layer.Playback.TimeScale = -1

	sync.frame = 210
	layer.Update(0)
	if layer.Playback.CurrentFrame != 190 {
		t.Fatalf("loop under reverse: got %d, want 190", layer.Playback.CurrentFrame)
	}
}

func TestReverseMonotonicallyDecreasing(t *testing.T) {
	layer, _, sync := newTestLayer(20)
	layer.Playback.TimeScale = -1

	var got []int64
	for _, f := range []int64{10, 11, 12} {
		sync.frame = f
		layer.Update(0)
		got = append(got, layer.Playback.CurrentFrame)
	}
	want := []int64{10, 9, 8}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reverse: got %v, want %v", got, want)
		}
	}
}

func TestTimeOffsetAndScaleUseFloor(t *testing.T) {
	layer, _, sync := newTestLayer(1000)
	layer.Playback.TimeScale = 0.5

	sync.frame = 5 // 5 * 0.5 = 2.5 -> floor 2
	layer.Update(0)
	if layer.Playback.CurrentFrame != 2 {
		t.Fatalf("floor: got %d, want 2", layer.Playback.CurrentFrame)
	}

	layer.Playback.TimeOffset = 3
	sync.frame = 4 // (4+3) * 0.5 = 3.5 -> floor 3
	layer.Update(0)
	if layer.Playback.CurrentFrame != 3 {
		t.Fatalf("offset+floor: got %d, want 3", layer.Playback.CurrentFrame)
	}
}

func TestSyncJumpResetsSeekState(t *testing.T) {
	layer, input, sync := newTestLayer(30000)

	sync.frame = 10
	layer.Update(0)

	sync.frame = 15000
	sync.jumped = true
	layer.Update(0)
	if input.seekResets != 1 {
		t.Fatalf("expected ResetSeekState after sync jump, got %d calls", input.seekResets)
	}
	if layer.Playback.CurrentFrame != 15000 {
		t.Fatalf("jump target: got %d, want 15000", layer.Playback.CurrentFrame)
	}
}

func TestRollingEdgeResumesPlayback(t *testing.T) {
	layer, _, sync := newTestLayer(100)
	layer.Playback.Playing = false
	sync.rolling = false

	sync.frame = 5
	layer.Update(0)
	if layer.Playback.Playing {
		t.Fatalf("should stay paused while not rolling")
	}

	sync.rolling = true
	layer.Update(0)
	if !layer.Playback.Playing {
		t.Fatalf("not-rolling -> rolling edge must resume playback")
	}

	// rolling -> stopped: hold the current frame, do not reset.
	sync.rolling = false
	held := layer.Playback.CurrentFrame
	layer.Update(0)
	if layer.Playback.CurrentFrame != held {
		t.Fatalf("stop must hold frame %d, got %d", held, layer.Playback.CurrentFrame)
	}
	if !layer.Playback.Playing {
		t.Fatalf("stop must not force pause")
	}
}

func TestNoDecodeWhenFrameUnchanged(t *testing.T) {
	layer, input, sync := newTestLayer(100)

	sync.frame = 10
	layer.Update(0)
	reads := len(input.readFrames)

	layer.Update(0)
	if len(input.readFrames) != reads {
		t.Fatalf("unchanged frame must not decode again")
	}
}

func TestDecodeFailureKeepsPriorFrame(t *testing.T) {
	layer, input, sync := newTestLayer(100)

	sync.frame = 10
	layer.Update(0)

	input.failReads = true
	sync.frame = 11
	layer.Update(0)
	if layer.Playback.CurrentFrame != 10 {
		t.Fatalf("failed decode must keep prior frame, got %d", layer.Playback.CurrentFrame)
	}

	// Recovery decodes the target frame.
	input.failReads = false
	layer.Update(0)
	if layer.Playback.CurrentFrame != 11 {
		t.Fatalf("recovery: got %d, want 11", layer.Playback.CurrentFrame)
	}
}

func TestMTCFollowDisabledSkipsSync(t *testing.T) {
	layer, input, sync := newTestLayer(100)
	layer.Playback.MTCFollow = false

	sync.frame = 50
	layer.Update(0)
	if len(input.readFrames) != 0 {
		t.Fatalf("mtcFollow=false must not read frames from sync")
	}
}

func TestFullFileLoopCountExhaustion(t *testing.T) {
	layer, _, sync := newTestLayer(100)
	layer.Playback.FullFileLoopCount = 1 // one complete extra pass allowed

	sync.frame = 150 // within pass 1
	layer.Update(0)
	if layer.Playback.CurrentFrame != 50 {
		t.Fatalf("pass 1: got %d, want 50", layer.Playback.CurrentFrame)
	}

	sync.frame = 250 // pass 2, budget exhausted -> clamp
	layer.Update(0)
	if layer.Playback.CurrentFrame != 99 {
		t.Fatalf("exhausted: got %d, want 99", layer.Playback.CurrentFrame)
	}
}

func TestMTCEndToEndRoll(t *testing.T) {
	// Single HD file, MTC roll: quarter-frame sequence for 00:00:10:00 at
	// 25fps must land the layer on frame 250.
	decoder := NewMTCDecoder()
	now := time.Unix(100, 0)
	pieces := quarterFrameBytes(0, 0, 10, 0, Rate25)
	feedQuarterFrames(decoder, pieces, now)

	layer := NewLayer(1, "hd")
	input := newFakeInput(30000, 25)
	layer.Input = input
	layer.Sync = NewMTCSyncSource(decoder)
	layer.Playback.Playing = true

	layer.Update(0)
	if layer.Playback.CurrentFrame != 250 {
		t.Fatalf("MTC roll: got %d, want 250", layer.Playback.CurrentFrame)
	}
}

func TestSysexSeekExactTarget(t *testing.T) {
	// Full-frame SYSEX for 00:10:00:00 at 25fps: currentFrame must be
	// exactly 15000 and the input must see a seek-state reset.
	decoder := NewMTCDecoder()
	now := time.Unix(100, 0)

	layer := NewLayer(1, "")
	input := newFakeInput(30000, 25)
	layer.Input = input
	layer.Sync = NewMTCSyncSource(decoder)
	layer.Playback.Playing = true

	hh := byte(Rate25) << 5
	for _, b := range []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, hh, 10, 0, 0, 0xF7} {
		decoder.FeedByte(b, now)
	}
	layer.Update(0)

	if layer.Playback.CurrentFrame != 15000 {
		t.Fatalf("SYSEX seek: got %d, want exactly 15000", layer.Playback.CurrentFrame)
	}
	if input.seekResets != 1 {
		t.Fatalf("SYSEX must force a real re-seek, got %d resets", input.seekResets)
	}
}
