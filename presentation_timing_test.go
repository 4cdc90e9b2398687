// presentation_timing_test.go - Vsync timing math tests

package main

import "testing"

func TestVsyncDurationAndSkips(t *testing.T) {
	p := NewPresentationTiming("HDMI-A-1")

	const frame = int64(16_666_667) // 60 Hz
	p.RecordFlip(1_000_000_000, 100, 0)
	if p.VsyncDuration() != 0 {
		t.Fatalf("one sample must not produce a duration")
	}

	p.RecordFlip(1_000_000_000+frame, 101, 0)
	if p.VsyncDuration() != frame {
		t.Fatalf("vsync duration: got %d, want %d", p.VsyncDuration(), frame)
	}
	if p.SkippedVsyncs() != 0 {
		t.Fatalf("no skips expected")
	}

	// Two vsyncs pass in one flip: one skipped.
	p.RecordFlip(1_000_000_000+3*frame, 103, 0)
	if p.SkippedVsyncs() != 1 {
		t.Fatalf("skips: got %d, want 1", p.SkippedVsyncs())
	}
	if p.VsyncDuration() != frame {
		t.Fatalf("duration across skip: got %d, want %d", p.VsyncDuration(), frame)
	}
	if p.TotalSkipped() != 1 {
		t.Fatalf("total skips: got %d", p.TotalSkipped())
	}
}

func TestExpectedFramePeriodQuantisation(t *testing.T) {
	const frame = int64(16_666_667)
	// 25 fps video on a 60 Hz display: every ceil(60/25)=3 vsyncs.
	if got := expectedFramePeriod(frame, 60, 25); got != 3*frame {
		t.Fatalf("25fps@60Hz: got %d, want %d", got, 3*frame)
	}
	// 60 fps on 60 Hz: every vsync.
	if got := expectedFramePeriod(frame, 60, 60); got != frame {
		t.Fatalf("60fps@60Hz: got %d", got)
	}
	// Zero video fps clamps to 1.
	if got := expectedFramePeriod(frame, 60, 0); got != 60*frame {
		t.Fatalf("0fps clamp: got %d", got)
	}
}

func TestNonMonotonicMSCResets(t *testing.T) {
	p := NewPresentationTiming("DP-1")
	p.RecordFlip(1000, 50, 0)
	p.RecordFlip(2000, 51, 0)
	// CRTC reset: MSC restarts.
	p.RecordFlip(3000, 2, 0)
	if p.VsyncDuration() != 0 || p.SkippedVsyncs() != 0 {
		t.Fatalf("non-monotonic MSC must reset derived values")
	}
}
