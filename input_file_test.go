// input_file_test.go - Seek planner and frame-read state machine tests

package main

import (
	"fmt"
	"testing"

	"github.com/GreatValueCreamSoda/gopixfmts"
)

// fakeFrameServer is an in-memory frameServer with a keyframe every 25
// frames.
type fakeFrameServer struct {
	total   int64
	decoded []int64
	failAt  int64
}

func newFakeFrameServer(total int64) *fakeFrameServer {
	return &fakeFrameServer{total: total, failAt: -1}
}

func (f *fakeFrameServer) open(path string, noIndex bool) error { return nil }

func (f *fakeFrameServer) info() FrameInfo {
	return FrameInfo{
		Width: 640, Height: 360, FPS: 25, TotalFrames: f.total,
		PixelFormat: gopixfmts.PixelFormatBGRA, CodecName: "h264",
	}
}

func (f *fakeFrameServer) keyframes() []int64 {
	var keys []int64
	for i := int64(0); i < f.total; i += 25 {
		keys = append(keys, i)
	}
	return keys
}

func (f *fakeFrameServer) frameAt(idx int64, out *PixelBuffer) error {
	if idx == f.failAt {
		return fmt.Errorf("synthetic decode failure")
	}
	f.decoded = append(f.decoded, idx)
	out.Width = 640
	out.Height = 360
	out.Stride = 640 * 4
	out.PixelFormat = gopixfmts.PixelFormatBGRA
	out.Data = make([]byte, 4)
	return nil
}

func (f *fakeFrameServer) close() {}

func newFakeFileSource(total int64) (*FileInputSource, *fakeFrameServer) {
	server := newFakeFrameServer(total)
	src := NewFileInputSource(InputOptions{})
	src.server = server
	if !src.Open("/dev/null") {
		panic("open failed")
	}
	return src, server
}

func TestReadFrameSkipsWhenUnchanged(t *testing.T) {
	src, server := newFakeFileSource(1000)
	var frame LayerFrame

	if !src.ReadFrame(10, &frame) {
		t.Fatalf("first read failed")
	}
	decodes := len(server.decoded)
	if src.ReadFrame(10, &frame) {
		t.Fatalf("unchanged index must report no new frame")
	}
	if len(server.decoded) != decodes {
		t.Fatalf("unchanged index must not decode")
	}
}

func TestSeekPlanning(t *testing.T) {
	src, _ := newFakeFileSource(1000)
	var frame LayerFrame

	src.ReadFrame(100, &frame)
	seeks := src.SeekCount()

	// Small forward delta decodes forward, no seek.
	src.ReadFrame(103, &frame)
	if src.SeekCount() != seeks {
		t.Fatalf("small forward delta must not seek")
	}

	// Backward jump seeks.
	src.ReadFrame(50, &frame)
	if src.SeekCount() != seeks+1 {
		t.Fatalf("backward jump must seek")
	}

	// Large forward jump seeks.
	src.ReadFrame(500, &frame)
	if src.SeekCount() != seeks+2 {
		t.Fatalf("large forward jump must seek")
	}
}

func TestResetSeekStateForcesReSeek(t *testing.T) {
	src, server := newFakeFileSource(1000)
	var frame LayerFrame

	src.ReadFrame(42, &frame)
	seeks := src.SeekCount()
	decodes := len(server.decoded)

	src.ResetSeekState()
	if !src.ReadFrame(42, &frame) {
		t.Fatalf("forced re-read failed")
	}
	if src.SeekCount() != seeks+1 {
		t.Fatalf("ResetSeekState must force a real seek")
	}
	if len(server.decoded) != decodes+1 {
		t.Fatalf("ResetSeekState must force a real decode")
	}
}

func TestReadFrameClampsToTotal(t *testing.T) {
	src, _ := newFakeFileSource(100)
	var frame LayerFrame

	src.ReadFrame(5000, &frame)
	if src.currentFrame != 99 {
		t.Fatalf("out-of-range index must clamp: got %d", src.currentFrame)
	}
	src.ReadFrame(-5, &frame)
	if src.currentFrame != 0 {
		t.Fatalf("negative index must clamp to 0: got %d", src.currentFrame)
	}
}

func TestDecodeFailureReportsNotReady(t *testing.T) {
	src, server := newFakeFileSource(1000)
	var frame LayerFrame

	src.ReadFrame(10, &frame)
	server.failAt = 11
	if src.ReadFrame(11, &frame) {
		t.Fatalf("decode failure must report false")
	}
	if src.currentFrame != 10 {
		t.Fatalf("failed read must not advance currentFrame")
	}
	// Next attempt at the same index retries the decode.
	server.failAt = -1
	if !src.ReadFrame(11, &frame) {
		t.Fatalf("retry after transient failure must succeed")
	}
}

func TestCodecClassification(t *testing.T) {
	cases := map[string]CodecClass{
		"h264": CodecH264,
		"hevc": CodecHEVC,
		"av1":  CodecAV1,
		"vp9":  CodecOther,
		"":     CodecUnknown,
	}
	for name, want := range cases {
		if got := classifyCodec(name); got != want {
			t.Fatalf("%q: got %v, want %v", name, got, want)
		}
	}
}

func TestLiveDescriptorDetection(t *testing.T) {
	if !isLiveDescriptor("v4l2:/dev/video0") || !isLiveDescriptor("rtsp://cam/1") {
		t.Fatalf("live descriptors not detected")
	}
	if isLiveDescriptor("/shows/act1.mp4") {
		t.Fatalf("file path misdetected as live")
	}
}
