package main

import "testing"

type fixedSyncSource struct {
	frame     int64
	rolling   bool
	fps       float64
	connected bool
}

func (f *fixedSyncSource) Poll() (int64, bool) {
	if !f.connected {
		return -1, false
	}
	return f.frame, f.rolling
}
func (f *fixedSyncSource) Framerate() float64 { return f.fps }
func (f *fixedSyncSource) Jumped() bool       { return false }
func (f *fixedSyncSource) Connected() bool    { return f.connected }

func TestFramerateConversion(t *testing.T) {
	src := &fixedSyncSource{frame: 25, rolling: true, fps: 25, connected: true}
	conv := NewFramerateConverter(src, 24)
	frame, _ := conv.Poll()
	if frame != 24 {
		t.Fatalf("expected floor(25*24/25)=24, got %d", frame)
	}

	src.frame = 1
	frame, _ = conv.Poll()
	if frame != 0 {
		t.Fatalf("expected sync frame 1 -> input frame 0, got %d", frame)
	}
}

func TestFramerateIdentityPassthrough(t *testing.T) {
	src := &fixedSyncSource{frame: 42, rolling: true, fps: 25, connected: true}
	conv := NewFramerateConverter(src, 25)
	frame, rolling := conv.Poll()
	if frame != 42 || !rolling {
		t.Fatalf("expected identity passthrough, got frame=%d rolling=%v", frame, rolling)
	}
}

func TestSyncSourceDisconnected(t *testing.T) {
	src := &fixedSyncSource{frame: 10, fps: 25}
	conv := NewFramerateConverter(src, 24)
	frame, rolling := conv.Poll()
	if frame != -1 || rolling {
		t.Fatalf("expected (-1, false) when disconnected, got (%d, %v)", frame, rolling)
	}
}
