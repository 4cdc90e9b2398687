// multi_output.go - Canvas pass plus per-output blits and lockstep presentation

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import "fmt"

// boundOutput pairs an output region with its DRM surface.
type boundOutput struct {
	region  *OutputRegion
	surface *DRMSurface
}

// MultiOutputRenderer orchestrates one renderToCanvas pass then one blit
// per surface, presenting all outputs in atomic lockstep when the device
// supports it, spec 4.9.
type MultiOutputRenderer struct {
	drmFD    int
	renderer *GLRenderer
	canvas   *VirtualCanvas
	outputs  []boundOutput
	atomic   *AtomicFlipper
	sinks    *SinkManager

	useAtomic bool
}

func NewMultiOutputRenderer(drmFD int, renderer *GLRenderer, canvas *VirtualCanvas,
	sinks *SinkManager, atomicSupported bool) *MultiOutputRenderer {
	return &MultiOutputRenderer{
		drmFD:     drmFD,
		renderer:  renderer,
		canvas:    canvas,
		sinks:     sinks,
		useAtomic: atomicSupported,
	}
}

// BindOutput attaches one region/surface pair.
func (m *MultiOutputRenderer) BindOutput(region *OutputRegion, surface *DRMSurface) {
	m.outputs = append(m.outputs, boundOutput{region: region, surface: surface})
	m.rebuildAtomic()
}

func (m *MultiOutputRenderer) rebuildAtomic() {
	// Atomic lockstep only pays off with two or more outputs, spec 4.8.
	if !m.useAtomic || len(m.outputs) < 2 {
		m.atomic = nil
		return
	}
	crtcs := make([]uint32, 0, len(m.outputs))
	for _, o := range m.outputs {
		crtcs = append(crtcs, o.surface.CrtcID())
	}
	m.atomic = NewAtomicFlipper(m.drmFD, crtcs)
	if !m.atomic.Usable() {
		fmt.Printf("Output: atomic flip unavailable, using legacy per-surface flips\n")
		m.atomic = nil
	}
}

// ForceLegacyFlips disables the atomic path (capability-mask override for
// the no-atomic scenario).
func (m *MultiOutputRenderer) ForceLegacyFlips() { m.atomic = nil }

func (m *MultiOutputRenderer) Outputs() []boundOutput { return m.outputs }

// RenderFrame runs steps 3-5 of the per-frame control flow: composite the
// canvas, hand it to the capture sinks, blit every region, then present all.
func (m *MultiOutputRenderer) RenderFrame(layers []*Layer, master *MasterProperties, osdItems []*OSDItem) {
	if len(m.outputs) == 0 {
		return
	}

	// Any pending flip from the previous frame must retire before the
	// canvas content it scans out is replaced, spec 5 ordering.
	for _, o := range m.outputs {
		if o.surface.IsFlipPending() {
			o.surface.WaitForFlip()
		}
	}

	// One canvas pass for all outputs, spec 4.6/4.9. The first surface's
	// context carries the share group.
	m.outputs[0].surface.MakeCurrent()
	m.canvas.BeginFrame()
	vw := float64(m.canvas.Width())
	vh := float64(m.canvas.Height())
	for _, layer := range layers {
		m.renderer.DrawLayer(layer, vw, vh)
	}
	m.renderer.DrawOSDItems(osdItems, vw, vh)
	m.canvas.EndFrame()

	if m.sinks.HasSinks() {
		m.sinks.Drain(m.canvas)
		m.canvas.StartAsyncCapture()
	}

	// Per-output blit into each GBM-backed surface.
	for _, o := range m.outputs {
		if !o.region.Enabled {
			continue
		}
		if !o.surface.MakeCurrent() {
			fmt.Printf("Output: makeCurrent failed on %s\n", o.surface.Name())
			continue
		}
		mode := o.surface.Mode()
		setViewport(0, 0, mode.Width, mode.Height)
		m.renderer.BlitOutput(m.canvas.Texture(), m.canvas.Width(), m.canvas.Height(),
			o.region, master)
		if _, ok := o.surface.SwapBuffers(); !ok {
			continue
		}
	}

	m.presentAll()
	m.renderer.ReleaseFrameResources()
}

// presentAll commits every surface: one atomic commit when available so
// every output flips on the same vsync, else legacy per-surface flips that
// may drift by one vsync, spec 4.8/4.9.
func (m *MultiOutputRenderer) presentAll() {
	surfaces := make([]*DRMSurface, 0, len(m.outputs))
	for _, o := range m.outputs {
		if o.region.Enabled {
			surfaces = append(surfaces, o.surface)
		}
	}
	if len(surfaces) == 0 {
		return
	}

	// First frames go through the modeset path individually.
	allModeSet := true
	for _, s := range surfaces {
		if !s.modeSet {
			allModeSet = false
			break
		}
	}

	if m.atomic != nil && allModeSet && len(surfaces) > 1 {
		if m.atomic.CommitAll(surfaces) {
			return
		}
		fmt.Printf("Output: atomic commit failed, falling back to legacy flips\n")
	}
	for _, s := range surfaces {
		s.ScheduleFlip()
	}
}

// DrainEvents processes completed flips without blocking and records
// presentation timing, step 6 of the frame sequence.
func (m *MultiOutputRenderer) DrainEvents(videoFPS float64) {
	DrainFlipEvents(m.drmFD)
	for _, o := range m.outputs {
		refresh := float64(o.surface.Mode().Refresh)
		o.surface.Timing.CheckDrift(refresh, videoFPS)
	}
}

func (m *MultiOutputRenderer) Destroy() {
	for _, o := range m.outputs {
		o.surface.Destroy()
	}
	m.outputs = nil
}
