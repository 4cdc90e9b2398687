// app.go - Application orchestrator: main loop and per-frame sequence

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// AppOptions collects everything main() resolves from flags and env.
type AppOptions struct {
	ConfigPath    string
	Card          string
	MIDIDevice    string
	ModePolicy    ModePolicy
	Headless      bool
	DebugWindow   bool // VIDEOCOMPOSER_NO_VIRTUAL_CANVAS or --window
	NoIndex       bool
	ForceSoftware bool
	ForceNoAtomic bool
	CaptureFile   string
}

// VideoComposer owns every subsystem and runs the single-threaded main
// loop: events -> layer updates -> render -> present, spec 2.
type VideoComposer struct {
	opts AppOptions
	cfg  *DisplayConfiguration

	layers *LayerManager
	master MasterProperties
	osd    *OSDManager

	queue  *CommandQueue
	router *CommandRouter
	ctl    *ControlServer
	stdin  *StdinControl

	mtcDecoder *MTCDecoder
	mtcSync    *MTCSyncSource
	midi       *MIDIInput

	vaapi *VAAPIDevice

	drm      *DRMManager
	egl      *sharedEGL
	renderer *GLRenderer
	canvas   *VirtualCanvas
	output   *MultiOutputRenderer
	sinks    *SinkManager

	debug  *DebugWindow
	vulkan *VulkanCompositor

	globalOffset int64
	targetFPS    float64
	running      bool
	hotplugTick  int
}

func NewVideoComposer(opts AppOptions) *VideoComposer {
	app := &VideoComposer{
		opts:       opts,
		layers:     NewLayerManager(),
		master:     NewMasterProperties(),
		osd:        NewOSDManager(),
		queue:      NewCommandQueue(),
		mtcDecoder: NewMTCDecoder(),
		sinks:      NewSinkManager(),
		targetFPS:  DEFAULT_TARGET_FPS,
	}
	app.mtcSync = NewMTCSyncSource(app.mtcDecoder)
	app.router = NewCommandRouter(app.queue, app)
	return app
}

// Init brings every subsystem up. Returns an error only for the fatal
// classes of spec 7; everything else logs and degrades.
func (app *VideoComposer) Init() error {
	app.cfg = LoadDisplayConfiguration(app.opts.ConfigPath)
	if app.cfg.Headless {
		app.opts.Headless = true
	}

	ctl, err := NewControlServer(app.queue)
	if err != nil {
		return compositorErr("control", "socket bind", err)
	}
	app.ctl = ctl
	app.ctl.Start()

	app.stdin = NewStdinControl(app.queue)
	app.stdin.Start()

	if app.opts.MIDIDevice != "" {
		midi, err := OpenMIDIInput(app.opts.MIDIDevice)
		if err != nil {
			fmt.Printf("MIDI: %v; running without external timecode\n", err)
		} else {
			app.midi = midi
		}
	}

	if !app.opts.ForceSoftware {
		app.vaapi = OpenVAAPIDevice("")
	}

	if app.opts.CaptureFile != "" {
		sink, err := NewFileSink(app.opts.CaptureFile)
		if err != nil {
			fmt.Printf("Sink: %v\n", err)
		} else {
			app.sinks.AddSink(sink)
		}
	}
	app.registerVirtualOutputs()

	if app.opts.DebugWindow || app.opts.Headless {
		return app.initDebugBackend()
	}
	return app.initDRMBackend()
}

// registerVirtualOutputs maps the config's virtualOutputs entries onto
// sinks. Only the raw-file transport ships in-tree; NDI and streaming are
// external sink implementations behind the VideoSink interface.
func (app *VideoComposer) registerVirtualOutputs() {
	for _, v := range app.cfg.VirtualOutputs {
		switch {
		case len(v) > 5 && v[:5] == "file:":
			sink, err := NewFileSink(v[5:])
			if err != nil {
				fmt.Printf("Sink: %v\n", err)
				continue
			}
			app.sinks.AddSink(sink)
		default:
			fmt.Printf("Sink: no in-tree transport for %q (external sink required)\n", v)
		}
	}
}

// initDRMBackend is the production path: DRM master, one surface per
// connected output, shared EGL, renderer and canvas.
func (app *VideoComposer) initDRMBackend() error {
	drm, err := OpenDRMManager(app.opts.Card)
	if err != nil {
		return err
	}
	app.drm = drm

	egl, err := newSharedEGL(drm.FD())
	if err != nil {
		drm.Close()
		return err
	}
	app.egl = egl

	outputs := drm.ConnectedOutputs()
	geometries := make([]outputGeometry, 0, len(outputs))
	modes := make(map[string]DisplayMode)
	for _, conn := range outputs {
		mode, ok := SelectMode(conn, app.opts.ModePolicy, 0, 0, 0)
		if !ok {
			fmt.Printf("DRM: no usable mode on %s, skipping\n", conn.Name)
			continue
		}
		if conn.EDID != nil {
			fmt.Printf("DRM: %s is %s, mode %dx%d@%d\n",
				conn.Name, conn.EDID, mode.Width, mode.Height, mode.Refresh)
		}
		geometries = append(geometries, outputGeometry{
			Connector: conn.Name, Width: mode.Width, Height: mode.Height,
		})
		modes[conn.Name] = mode
	}

	regions := app.cfg.RegionsFor(geometries)
	canvasW, canvasH := computeCanvasBounds(regions)
	if canvasW == 0 || canvasH == 0 {
		return compositorErr("canvas", "sizing", fmt.Errorf("no enabled output regions"))
	}

	// Surfaces come up in parallel; EGL context creation on several GPUs
	// dominates startup otherwise. Failures skip the output, spec 7.
	type surfResult struct {
		conn    *DRMConnector
		surface *DRMSurface
	}
	results := make([]surfResult, len(outputs))
	var group errgroup.Group
	for i, conn := range outputs {
		mode, ok := modes[conn.Name]
		if !ok {
			continue
		}
		group.Go(func() error {
			surface, err := NewDRMSurface(drm.FD(), egl, conn, mode)
			if err != nil {
				fmt.Printf("DRM: %v; skipping %s\n", err, conn.Name)
				return nil
			}
			results[i] = surfResult{conn: conn, surface: surface}
			return nil
		})
	}
	group.Wait()

	surfaceFor := make(map[string]*DRMSurface)
	for _, res := range results {
		if res.surface != nil {
			surfaceFor[res.conn.Name] = res.surface
		}
	}
	if len(surfaceFor) == 0 {
		return compositorErr("drm", "surface creation", fmt.Errorf("no output surface could be created"))
	}

	// GL objects live in the share group: any surface context works for
	// compiling shaders and allocating the canvas.
	for _, s := range surfaceFor {
		s.MakeCurrent()
		break
	}
	renderer, err := NewGLRenderer(egl.Display())
	if err != nil {
		return err
	}
	app.renderer = renderer

	canvas, err := NewVirtualCanvas(canvasW, canvasH)
	if err != nil {
		return err
	}
	app.canvas = canvas
	fmt.Printf("Canvas: %dx%d across %d outputs\n", canvasW, canvasH, len(surfaceFor))

	app.output = NewMultiOutputRenderer(drm.FD(), renderer, canvas, app.sinks,
		drm.AtomicSupported() && !app.opts.ForceNoAtomic)
	for _, region := range regions {
		if surface, ok := surfaceFor[region.Name]; ok {
			app.output.BindOutput(region, surface)
		}
	}
	if app.opts.ForceNoAtomic {
		app.output.ForceLegacyFlips()
	}
	return nil
}

// initDebugBackend runs the compositor in a window (or fully headless)
// with a software/Vulkan compositing path; used off-stage and by
// VIDEOCOMPOSER_NO_VIRTUAL_CANVAS.
func (app *VideoComposer) initDebugBackend() error {
	if app.opts.Headless {
		// Headless has no DRM/EGL stack; the transfer-based Vulkan
		// compositor produces the canvas the virtual-output sinks consume.
		w, h := app.headlessCanvasSize()
		vulkan, err := NewVulkanCompositor(w, h)
		if err != nil {
			fmt.Printf("Backend: headless without Vulkan (%v); sinks will see no frames\n", err)
			return nil
		}
		app.vulkan = vulkan
		fmt.Printf("Backend: headless, Vulkan canvas %dx%d\n", w, h)
		return nil
	}
	app.debug = NewDebugWindow(app)
	return nil
}

// headlessCanvasSize derives the canvas from the configured outputs; with
// none configured it falls back to 1080p.
func (app *VideoComposer) headlessCanvasSize() (int, int) {
	maxX, maxY := 0.0, 0.0
	for _, oc := range app.cfg.Outputs {
		if oc.Enabled != nil && !*oc.Enabled {
			continue
		}
		if oc.X+oc.Width > maxX {
			maxX = oc.X + oc.Width
		}
		if oc.Y+oc.Height > maxY {
			maxY = oc.Y + oc.Height
		}
	}
	if maxX < 1 || maxY < 1 {
		return 1920, 1080
	}
	return int(maxX), int(maxY)
}

// CommandTarget implementation.

func (app *VideoComposer) Quit() { app.running = false }
func (app *VideoComposer) SetTargetFPS(fps float64) { app.targetFPS = fps }
func (app *VideoComposer) SetGlobalOffset(o int64) { app.globalOffset = o }
func (app *VideoComposer) Layers() *LayerManager    { return app.layers }
func (app *VideoComposer) Master() *MasterProperties { return &app.master }
func (app *VideoComposer) OSD() *OSDManager         { return app.osd }

func (app *VideoComposer) OutputRegion(name string) *OutputRegion {
	if app.output == nil {
		return nil
	}
	for _, o := range app.output.Outputs() {
		if o.region.Name == name {
			return o.region
		}
	}
	return nil
}

// AttachFile opens (or swaps) a layer's input source and wires the global
// MTC sync through a framerate converter at the file's rate, spec 4.2.
func (app *VideoComposer) AttachFile(layer *Layer, path string) bool {
	opts := InputOptions{
		NoIndex:       app.opts.NoIndex,
		ForceSoftware: app.opts.ForceSoftware || app.vaapi == nil,
	}
	src := NewFileInputSource(opts)
	if app.vaapi != nil && vaDecodeServiceFactory != nil {
		src.SetHardwareServer(NewVAAPIFrameServer(app.vaapi, vaDecodeServiceFactory(app.vaapi)))
	}
	if !src.Open(path) {
		return false
	}
	layer.AttachInput(src)

	info := src.Info()
	layer.Sync = NewFramerateConverter(app.mtcSync, info.FPS)
	fmt.Printf("Layer %d: %s %dx%d @%.3f fps, %d frames, %s decode\n",
		layer.ID, path, info.Width, info.Height, info.FPS, info.TotalFrames,
		src.GetOptimalBackend())
	return true
}

// Run executes the main loop until quit. The per-frame sequence is fixed:
// (1) drain commands, (2) update layers, (3) render canvas, (4) blit
// outputs, (5) present, (6) drain flip events, spec 2.
func (app *VideoComposer) Run() {
	app.running = true

	if app.debug != nil {
		// The debug backend owns the loop (ebiten's Update/Draw cadence);
		// it calls back into Tick each frame.
		app.debug.Run()
		return
	}

	for app.running {
		frameStart := time.Now()
		app.Tick()

		framePeriod := time.Duration(float64(time.Second) / app.targetFPS)
		elapsed := time.Since(frameStart)
		if sleep := framePeriod - elapsed; sleep > 0 {
			time.Sleep(sleep)
		}
	}
}

// Tick runs one frame of the fixed sequence; shared between the DRM loop
// and the debug backend.
func (app *VideoComposer) Tick() {
	if app.midi != nil {
		app.midi.DrainInto(app.mtcDecoder)
	}

	app.router.Drain(COMMAND_DRAIN_BUDGET)
	app.layers.UpdateAll(app.globalOffset)

	if app.output != nil {
		ordered := app.layers.InRenderOrder()
		items := app.osdItems()
		app.output.RenderFrame(ordered, &app.master, items)
		app.output.DrainEvents(app.dominantFPS())
	} else if app.vulkan != nil {
		ordered := app.layers.InRenderOrder()
		if err := app.vulkan.Composite(ordered); err != nil {
			fmt.Printf("Vulkan: composite failed: %v\n", err)
		} else if app.sinks.HasSinks() {
			if frame := app.vulkan.ReadFrame(); frame != nil {
				app.sinks.Consume(frame, app.vulkan.Width(), app.vulkan.Height())
			}
		}
	}

	// Hotplug poll roughly once a second at 60 fps.
	app.hotplugTick++
	if app.drm != nil && app.hotplugTick%60 == 0 {
		if app.drm.PollHotplug() {
			fmt.Printf("DRM: hotplug detected; output topology changed\n")
		}
	}
}

func (app *VideoComposer) osdItems() []*OSDItem {
	var current int64
	var sample TimecodeSample
	if s, _, ok := app.mtcDecoder.Poll(); ok {
		sample = s
	}
	for _, l := range app.layers.InRenderOrder() {
		current = l.Playback.CurrentFrame
		break
	}
	w, h := 0, 0
	if app.canvas != nil {
		w, h = app.canvas.Width(), app.canvas.Height()
	}
	return app.osd.Items(current, sample, w, h)
}

// dominantFPS is the highest input rate among layers with a ready input,
// whether playing or paused; drives the
// expected-cadence warning, spec 4.10.
func (app *VideoComposer) dominantFPS() float64 {
	fps := 0.0
	for _, l := range app.layers.InRenderOrder() {
		if l.Input != nil && l.Input.IsReady() && l.Input.Info().FPS > fps {
			fps = l.Input.Info().FPS
		}
	}
	return fps
}

// Shutdown tears everything down in reverse dependency order.
func (app *VideoComposer) Shutdown() {
	app.layers.ReleaseAll()
	app.sinks.Close()
	if app.output != nil {
		app.output.Destroy()
	}
	if app.canvas != nil {
		app.canvas.Destroy()
	}
	if app.vulkan != nil {
		app.vulkan.Destroy()
	}
	if app.renderer != nil {
		app.renderer.Destroy()
	}
	if app.egl != nil {
		app.egl.Destroy()
	}
	if app.drm != nil {
		app.drm.Close()
	}
	if app.vaapi != nil {
		app.vaapi.Close()
	}
	if app.midi != nil {
		app.midi.Close()
	}
	if app.stdin != nil {
		app.stdin.Stop()
	}
	if app.ctl != nil {
		app.ctl.Stop()
	}
}
