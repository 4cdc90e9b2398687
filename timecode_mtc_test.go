package main

import (
	"testing"
	"time"
)

func quarterFrameBytes(h, m, s, f int, rate RateClass) [8]byte {
	var out [8]byte
	out[0] = byte(f & 0x0F)
	out[1] = byte((f >> 4) & 0x01)
	out[2] = byte(s & 0x0F)
	out[3] = byte((s >> 4) & 0x03)
	out[4] = byte(m & 0x0F)
	out[5] = byte((m >> 4) & 0x03)
	out[6] = byte(h & 0x0F)
	out[7] = byte((h>>4)&0x01) | byte(rate)<<1
	for i := range out {
		out[i] = (byte(i) << 4) | out[i]
	}
	return out
}

func feedQuarterFrames(d *MTCDecoder, pieces [8]byte, now time.Time) {
	for _, p := range pieces {
		d.FeedByte(0xF1, now)
		d.FeedByte(p, now)
	}
}

func TestMTCQuarterFrameRoundTrip(t *testing.T) {
	d := NewMTCDecoder()
	now := time.Unix(0, 0)
	pieces := quarterFrameBytes(1, 2, 3, 4, Rate25)
	feedQuarterFrames(d, pieces, now)

	sample, _, ok := d.Poll()
	if !ok {
		t.Fatalf("expected a completed sample")
	}
	if sample.Hours != 1 || sample.Minutes != 2 || sample.Seconds != 3 || sample.Frames != 4 || sample.Rate != Rate25 {
		t.Fatalf("got %+v", sample)
	}
}

func TestMTCOutOfOrderResetsAssembly(t *testing.T) {
	d := NewMTCDecoder()
	now := time.Unix(0, 0)
	pieces := quarterFrameBytes(1, 2, 3, 4, Rate25)

	// Feed pieces 0,1, then skip to 3 (out of order) - piece 2 missing.
	d.FeedByte(0xF1, now)
	d.FeedByte(pieces[0], now)
	d.FeedByte(0xF1, now)
	d.FeedByte(pieces[1], now)
	d.FeedByte(0xF1, now)
	d.FeedByte(pieces[3], now)
	d.FeedByte(0xF1, now)
	d.FeedByte(pieces[4], now)
	d.FeedByte(0xF1, now)
	d.FeedByte(pieces[5], now)
	d.FeedByte(0xF1, now)
	d.FeedByte(pieces[6], now)
	d.FeedByte(0xF1, now)
	d.FeedByte(pieces[7], now)

	if _, _, ok := d.Poll(); ok {
		t.Fatalf("expected no emission for a non-in-order sequence")
	}
}

func TestMTCFullFrameSysexSetsJumpFlag(t *testing.T) {
	d := NewMTCDecoder()
	now := time.Unix(0, 0)

	// 00:10:00:00 at 25fps.
	hh := byte(Rate25) << 5
	buf := []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, hh, 10, 0, 0, 0xF7}
	for _, b := range buf {
		d.FeedByte(b, now)
	}

	sample, idx, ok := d.Poll()
	if !ok {
		t.Fatalf("expected a completed sample")
	}
	if !sample.Jumped {
		t.Fatalf("expected jumped flag set")
	}
	if idx != 15000 {
		t.Fatalf("expected frame index 15000, got %d", idx)
	}
	if !d.ConsumeJumped() {
		t.Fatalf("expected ConsumeJumped to report true once")
	}
	if d.ConsumeJumped() {
		t.Fatalf("expected ConsumeJumped to clear after being read")
	}
}

func TestMTCDropFrameMath(t *testing.T) {
	// 00:01:00:00 at 29.97 drop should skip frames 0,1 at the start of
	// every non-tenth minute: index = 1*60*30 - 2 = 1798.
	idx := dropFrameAwareIndex(0, 1, 0, 0, Rate2997Drop)
	if idx != 1798 {
		t.Fatalf("expected 1798, got %d", idx)
	}

	// Minute 10 is exempt from the drop.
	idx = dropFrameAwareIndex(0, 10, 0, 0, Rate2997Drop)
	expected := int64(10)*60*30 - int64(9)*2
	if idx != expected {
		t.Fatalf("expected %d, got %d", expected, idx)
	}
}
