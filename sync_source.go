// sync_source.go - Sync Source abstraction and the framerate-converter decorator

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import "math"

// SyncSource exposes poll() -> (frame, rolling) and framerate(), per spec
// 4.2. Concrete variants: ManualSyncSource (no external transport),
// MTCSyncSource (wraps an MTCDecoder), and the FramerateConverter
// decorator that adapts a source's rate to a layer's input fps.
type SyncSource interface {
	Poll() (frame int64, rolling bool)
	Framerate() float64
	// Jumped reports and clears whether the most recent Poll crossed a
	// discontinuity (MTC full-frame SYSEX) that requires a hard seek.
	Jumped() bool
	// Connected reports whether the underlying transport is attached.
	// A disconnected source always polls (-1, false), per spec 4.2.
	Connected() bool
}

// ManualSyncSource is driven directly by the command router (no external
// timecode transport); frame advances only when explicitly set.
type ManualSyncSource struct {
	frame     int64
	fps       float64
	connected bool
}

func NewManualSyncSource(fps float64) *ManualSyncSource {
	return &ManualSyncSource{fps: fps, connected: true}
}

func (m *ManualSyncSource) SetFrame(f int64) { m.frame = f }

func (m *ManualSyncSource) Poll() (int64, bool) {
	if !m.connected {
		return -1, false
	}
	return m.frame, false
}

func (m *ManualSyncSource) Framerate() float64 { return m.fps }
func (m *ManualSyncSource) Jumped() bool        { return false }
func (m *ManualSyncSource) Connected() bool     { return m.connected }
func (m *ManualSyncSource) Disconnect() { m.connected = false }

// MTCSyncSource wraps an MTCDecoder, exposing its rolling frame index and
// rate as a SyncSource.
type MTCSyncSource struct {
	decoder   *MTCDecoder
	connected bool
}

func NewMTCSyncSource(decoder *MTCDecoder) *MTCSyncSource {
	return &MTCSyncSource{decoder: decoder, connected: true}
}

func (s *MTCSyncSource) Poll() (int64, bool) {
	if !s.connected {
		return -1, false
	}
	sample, idx, ok := s.decoder.Poll()
	if !ok {
		return -1, false
	}
	return idx, sample.Rolling
}

func (s *MTCSyncSource) Framerate() float64 {
	sample, _, ok := s.decoder.Poll()
	if !ok {
		return 25.0
	}
	return sample.Rate.FPS()
}

func (s *MTCSyncSource) Jumped() bool    { return s.decoder.ConsumeJumped() }
func (s *MTCSyncSource) Connected() bool { return s.connected }
func (s *MTCSyncSource) Disconnect() { s.connected = false }

// FramerateConverter decorates a SyncSource, converting its frame index from
// the source's native fps to a target (per-layer input) fps by flooring the
// ratio, per spec 4.2: "floor (not round) is required to avoid repeating
// frames at fractional ratios."
type FramerateConverter struct {
	source    SyncSource
	targetFPS float64
}

func NewFramerateConverter(source SyncSource, targetFPS float64) *FramerateConverter {
	return &FramerateConverter{source: source, targetFPS: targetFPS}
}

const fpsEpsilon = 0.01

func (c *FramerateConverter) Poll() (int64, bool) {
	frame, rolling := c.source.Poll()
	if frame < 0 {
		return -1, false
	}
	sourceFPS := c.source.Framerate()
	if math.Abs(sourceFPS-c.targetFPS) <= fpsEpsilon {
		return frame, rolling
	}
	converted := int64(math.Floor(float64(frame) * c.targetFPS / sourceFPS))
	return converted, rolling
}

func (c *FramerateConverter) Framerate() float64 { return c.targetFPS }
func (c *FramerateConverter) Jumped() bool        { return c.source.Jumped() }
func (c *FramerateConverter) Connected() bool     { return c.source.Connected() }
