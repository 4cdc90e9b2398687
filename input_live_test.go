// input_live_test.go - Live capture ring and lifecycle tests

package main

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GreatValueCreamSoda/gopixfmts"
)

// fakeCapture produces numbered frames until closed.
type fakeCapture struct {
	frames atomic.Int64
	fail   atomic.Bool
	closed atomic.Bool
}

func (c *fakeCapture) open(uri string) (FrameInfo, error) {
	return FrameInfo{Width: 64, Height: 64, FPS: 30, PixelFormat: gopixfmts.PixelFormatBGRA}, nil
}

func (c *fakeCapture) captureFrame(out *PixelBuffer) error {
	if c.closed.Load() {
		// Block briefly like a real device would on teardown.
		time.Sleep(time.Millisecond)
		return fmt.Errorf("device closed")
	}
	if c.fail.Load() {
		return fmt.Errorf("transient capture error")
	}
	n := c.frames.Add(1)
	out.Width = 64
	out.Height = 64
	out.Stride = 64 * 4
	out.Data = []byte{byte(n)}
	// Pace the producer so the test ring sees a handful of frames.
	time.Sleep(time.Millisecond)
	return nil
}

func (c *fakeCapture) close() { c.closed.Store(true) }

func TestLiveInputDeliversLatestFrame(t *testing.T) {
	capture := &fakeCapture{}
	src := NewLiveInputSource(InputOptions{RingSize: 3})
	src.SetCapture(capture)
	if !src.Open("live:test") {
		t.Fatalf("open failed")
	}
	defer src.Close()

	var frame LayerFrame
	deadline := time.Now().Add(2 * time.Second)
	for {
		if src.ReadLatestFrame(&frame) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no frame arrived")
		}
		time.Sleep(time.Millisecond)
	}
	if frame.CPU == nil || frame.CPU.Width != 64 {
		t.Fatalf("bad frame: %+v", frame)
	}

	// The ring hands out the newest frame and drains older ones.
	time.Sleep(20 * time.Millisecond)
	var second LayerFrame
	if src.ReadLatestFrame(&second) {
		if second.CPU.Data[0] == frame.CPU.Data[0] {
			t.Fatalf("expected a newer frame")
		}
	}
}

func TestLiveInputIdentifiesItself(t *testing.T) {
	src := NewLiveInputSource(InputOptions{})
	src.SetCapture(&fakeCapture{})
	if !src.Open("live:test") {
		t.Fatalf("open failed")
	}
	defer src.Close()

	if !src.IsLiveStream() {
		t.Fatalf("must report live")
	}
	if src.Info().TotalFrames != 0 {
		t.Fatalf("live feeds report 0 total frames")
	}
}

func TestLiveInputCloseJoinsCaptureThread(t *testing.T) {
	capture := &fakeCapture{}
	src := NewLiveInputSource(InputOptions{})
	src.SetCapture(capture)
	if !src.Open("live:test") {
		t.Fatalf("open failed")
	}

	done := make(chan struct{})
	go func() {
		src.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Close must join the capture goroutine")
	}
	if !capture.closed.Load() {
		t.Fatalf("capture device not closed")
	}
}

func TestLiveInputSurvivesCaptureErrors(t *testing.T) {
	capture := &fakeCapture{}
	capture.fail.Store(true)
	src := NewLiveInputSource(InputOptions{})
	src.SetCapture(capture)
	if !src.Open("live:test") {
		t.Fatalf("open failed")
	}
	defer src.Close()

	// Errors retry with the 10 ms backoff; once the device recovers,
	// frames flow again.
	time.Sleep(30 * time.Millisecond)
	capture.fail.Store(false)

	var frame LayerFrame
	deadline := time.Now().Add(2 * time.Second)
	for !src.ReadLatestFrame(&frame) {
		if time.Now().After(deadline) {
			t.Fatalf("capture never recovered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFrameRingOverwritesOldest(t *testing.T) {
	ring := newFrameRing(2)
	for i := 0; i < 5; i++ {
		ring.push(PixelBuffer{Width: 1, Height: 1, Stride: 4, Data: []byte{byte(i)}})
	}
	buf, ok := ring.takeLatest()
	if !ok || buf.Data[0] != 4 {
		t.Fatalf("latest must be the newest push, got %v", buf.Data)
	}
	if _, ok := ring.takeLatest(); ok {
		t.Fatalf("takeLatest must drain the ring")
	}
}
