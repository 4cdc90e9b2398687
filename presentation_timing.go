// presentation_timing.go - Per-surface vsync timing from page-flip events

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"math"
)

// PresentationEntry records one completed page flip, spec 3/4.10.
type PresentationEntry struct {
	UST       int64  // device timestamp, ns
	MSC       uint64 // vsync counter
	Wallclock int64  // ns
	Valid     bool
}

// PresentationTiming keeps the circular (current, previous) pair per
// surface and derives vsync duration and skip counts, spec 4.10.
type PresentationTiming struct {
	name string

	current  PresentationEntry
	previous PresentationEntry

	vsyncDuration int64 // ns, 0 until two samples exist
	skipped       int64 // skips on the latest flip
	totalSkipped  int64
	flips         uint64

	warnedAt int64
}

func NewPresentationTiming(name string) *PresentationTiming {
	return &PresentationTiming{name: name}
}

// RecordFlip ingests one page-flip completion event.
func (p *PresentationTiming) RecordFlip(ust int64, msc uint64, wallclock int64) {
	p.previous = p.current
	p.current = PresentationEntry{UST: ust, MSC: msc, Wallclock: wallclock, Valid: true}
	p.flips++

	if !p.previous.Valid || p.current.MSC <= p.previous.MSC {
		p.vsyncDuration = 0
		p.skipped = 0
		return
	}
	mscDelta := int64(p.current.MSC - p.previous.MSC)
	p.vsyncDuration = (p.current.UST - p.previous.UST) / mscDelta
	p.skipped = mscDelta - 1
	p.totalSkipped += p.skipped
}

// VsyncDuration is the measured ns per vsync (0 before two flips).
func (p *PresentationTiming) VsyncDuration() int64 { return p.vsyncDuration }

// SkippedVsyncs is the skip count of the most recent flip.
func (p *PresentationTiming) SkippedVsyncs() int64 { return p.skipped }

func (p *PresentationTiming) TotalSkipped() int64 { return p.totalSkipped }

func (p *PresentationTiming) FlipCount() uint64 { return p.flips }

func (p *PresentationTiming) LastMSC() uint64 { return p.current.MSC }

func (p *PresentationTiming) LastUST() int64 { return p.current.UST }

// expectedFramePeriod is the vsync-quantised frame period for a video rate
// on a display rate: display_period * ceil(display_hz / max(video_fps, 1)),
// spec 4.10.
func expectedFramePeriod(displayPeriodNS int64, displayHz, videoFPS float64) int64 {
	if videoFPS < 1 {
		videoFPS = 1
	}
	steps := math.Ceil(displayHz / videoFPS)
	if steps < 1 {
		steps = 1
	}
	return int64(steps) * displayPeriodNS
}

// CheckDrift warns when unexpected skips accumulate against the expected
// cadence for the given video rate.
func (p *PresentationTiming) CheckDrift(displayHz, videoFPS float64) {
	if p.vsyncDuration == 0 || displayHz <= 0 {
		return
	}
	expected := expectedFramePeriod(p.vsyncDuration, displayHz, videoFPS)
	actual := p.current.UST - p.previous.UST
	if actual > expected+p.vsyncDuration/2 && p.totalSkipped > p.warnedAt+10 {
		fmt.Printf("Timing: %s skipped %d vsyncs total (last frame %0.2fms, expected %0.2fms)\n",
			p.name, p.totalSkipped,
			float64(actual)/1e6, float64(expected)/1e6)
		p.warnedAt = p.totalSkipped
	}
}
