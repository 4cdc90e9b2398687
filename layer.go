// layer.go - Layer display properties and the timecode-driven playback state machine

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import "math"

// CropRect is an explicit source crop in frame pixels.
type CropRect struct {
	X, Y, W, H float64
	Enabled    bool
}

// ColorAdjust is the per-layer color grading block. All values clamped to
// their documented domains by the command surface.
type ColorAdjust struct {
	Brightness float64 // -1..1, additive
	Contrast   float64 // 0..2, multiplies around 0.5
	Saturation float64 // 0..2, mix toward luminance
	Hue        float64 // 0..360, HSV rotation degrees
	Gamma      float64 // 0.1..10, pow
}

func NewColorAdjust() ColorAdjust {
	return ColorAdjust{Contrast: 1, Saturation: 1, Gamma: 1}
}

// IsNeutral reports whether the grading shader branch can be skipped.
func (c ColorAdjust) IsNeutral() bool {
	return c.Brightness == 0 && c.Contrast == 1 && c.Saturation == 1 && c.Hue == 0 && c.Gamma == 1
}

// DisplayProperties is everything the renderer reads per layer. Mutated
// only from command-router dispatch on the main thread, spec 3.
type DisplayProperties struct {
	X, Y          float64
	Width, Height float64
	ScaleX        float64
	ScaleY        float64
	Rotation      float64 // degrees 0..360
	Opacity       float64 // 0..1
	Visible       bool
	ZOrder        int
	Blend         BlendMode

	Crop         CropRect
	PanoramaMode bool
	PanOffset    float64 // 0..width/2 in frame pixels

	Corners        [8]float64 // normalised corner offsets, pairs of (x,y)
	CornersEnabled bool

	Color ColorAdjust

	AutoUnload bool
}

func NewDisplayProperties() DisplayProperties {
	return DisplayProperties{
		ScaleX:  1,
		ScaleY:  1,
		Opacity: 1,
		Visible: true,
		Color:   NewColorAdjust(),
	}
}

// LoopRegion is an inclusive frame range the playback position is folded
// into when enabled.
type LoopRegion struct {
	Start   int64
	End     int64
	Enabled bool
}

// PlaybackState lives with the layer, spec 3.
type PlaybackState struct {
	Playing      bool
	CurrentFrame int64
	LastSync     int64
	TimeOffset   int64
	TimeScale    float64 // nonzero; sign is direction
	Wraparound   bool
	Loop         LoopRegion
	MTCFollow    bool
	// FullFileLoopCount bounds how many complete passes wraparound allows;
	// -1 is infinite.
	FullFileLoopCount int

	lastRolling bool
	endOfStream bool
}

func NewPlaybackState() PlaybackState {
	return PlaybackState{
		CurrentFrame:      -1,
		TimeScale:         1,
		Wraparound:        true,
		MTCFollow:         true,
		FullFileLoopCount: -1,
	}
}

// positiveMod returns a mod m in [0, m); m must be positive.
func positiveMod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// mapLoopRegion folds f into [start, end] when it falls outside, spec 4.4
// step 5.
func mapLoopRegion(f int64, loop LoopRegion) int64 {
	if !loop.Enabled || loop.End <= loop.Start {
		return f
	}
	if f >= loop.Start && f <= loop.End {
		return f
	}
	span := loop.End - loop.Start
	return loop.Start + positiveMod(f-loop.Start, span)
}

// transformSyncFrame applies offset and time scale, spec 4.4 step 4. The
// floor (not round) is mandatory; rounding shimmers on fractional
// multipliers.
func transformSyncFrame(syncFrame, timeOffset int64, timeScale float64) int64 {
	return int64(math.Floor(float64(syncFrame+timeOffset) * timeScale))
}

// Layer couples one input source, one sync source and the display state,
// spec 3. All access is on the main thread.
type Layer struct {
	ID    int
	CueID string

	Props    DisplayProperties
	Playback PlaybackState

	Input InputSource
	Sync  SyncSource

	// Latest decoded frame, published to the renderer.
	Latest LayerFrame

	// markedForRemoval is honoured by the manager at end of tick.
	markedForRemoval bool
}

func NewLayer(id int, cueID string) *Layer {
	return &Layer{
		ID:       id,
		CueID:    cueID,
		Props:    NewDisplayProperties(),
		Playback: NewPlaybackState(),
	}
}

// AttachInput swaps the input source, releasing the old one and any GPU
// handle it still backs.
func (l *Layer) AttachInput(src InputSource) {
	l.Latest.ReleaseGPU()
	l.Latest = LayerFrame{}
	if l.Input != nil {
		l.Input.Close()
	}
	l.Input = src
	l.Playback.CurrentFrame = -1
	l.Playback.endOfStream = false
}

// TotalFrames is 0 when no input is attached or the input is live.
func (l *Layer) TotalFrames() int64 {
	if l.Input == nil || !l.Input.IsReady() {
		return 0
	}
	return l.Input.Info().TotalFrames
}

// Update runs one playback tick, spec 4.4. globalOffset is the process-wide
// time offset applied to all layers. Returns false when the layer should be
// removed (end-of-stream with autoUnload and no loop).
func (l *Layer) Update(globalOffset int64) bool {
	if l.Input == nil || !l.Input.IsReady() {
		return true
	}

	if l.Input.IsLiveStream() {
		l.Input.ReadLatestFrame(&l.Latest)
		return true
	}

	if !l.Playback.MTCFollow || l.Sync == nil || !l.Sync.Connected() {
		return true
	}

	syncFrame, rolling := l.Sync.Poll()
	if syncFrame < 0 {
		return true
	}
	if l.Sync.Jumped() {
		l.Input.ResetSeekState()
	}

	// Rolling transitions: resume on the not-rolling -> rolling edge while
	// paused; hold the current frame on the rolling -> stopped edge.
	if rolling && !l.Playback.lastRolling && !l.Playback.Playing {
		l.Playback.Playing = true
	}
	l.Playback.lastRolling = rolling
	l.Playback.LastSync = syncFrame

	if !l.Playback.Playing {
		return true
	}

	f := transformSyncFrame(syncFrame, l.Playback.TimeOffset+globalOffset, l.Playback.TimeScale)
	f = mapLoopRegion(f, l.Playback.Loop)

	total := l.TotalFrames()
	eos := false
	if total > 0 {
		if l.Playback.Wraparound && l.loopBudgetLeft(f, total) {
			f = positiveMod(f, total)
		} else if f >= total {
			f = total - 1
			eos = true
		} else if f < 0 {
			f = 0
		}
	}
	l.Playback.endOfStream = eos

	if f != l.Playback.CurrentFrame {
		if l.Input.ReadFrame(f, &l.Latest) {
			l.Playback.CurrentFrame = f
		}
	}

	if eos && l.Props.AutoUnload && !l.Playback.Loop.Enabled {
		l.markedForRemoval = true
		return false
	}
	return true
}

// loopBudgetLeft checks FullFileLoopCount: once the transformed frame has
// passed the allowed number of complete file passes, wraparound stops and
// the clamp path runs instead.
func (l *Layer) loopBudgetLeft(f, total int64) bool {
	if l.Playback.FullFileLoopCount < 0 {
		return true
	}
	if f < 0 {
		return true
	}
	return f/total <= int64(l.Playback.FullFileLoopCount)
}

// SeekTo positions the layer directly (command surface /seek and
// /position); the next Update keeps following sync if mtcFollow is on.
func (l *Layer) SeekTo(frame int64) {
	if l.Input == nil {
		return
	}
	l.Input.Seek(frame)
	if l.Input.ReadFrame(frame, &l.Latest) {
		l.Playback.CurrentFrame = frame
	}
}

// Release drops all resources held by the layer.
func (l *Layer) Release() {
	l.Latest.ReleaseGPU()
	l.Latest = LayerFrame{}
	if l.Input != nil {
		l.Input.Close()
		l.Input = nil
	}
}

// MasterProperties is the process-wide post-composite block: the same shape
// as layer display properties minus crop/panorama, applied to the canvas,
// spec 3.
type MasterProperties struct {
	X, Y           float64
	ScaleX, ScaleY float64
	Rotation       float64
	Opacity        float64
	Visible        bool

	Corners        [8]float64
	CornersEnabled bool

	Color ColorAdjust
}

func NewMasterProperties() MasterProperties {
	return MasterProperties{ScaleX: 1, ScaleY: 1, Opacity: 1, Visible: true, Color: NewColorAdjust()}
}
