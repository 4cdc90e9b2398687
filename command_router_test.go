// command_router_test.go - Command dispatch and clamping tests

package main

import (
	"testing"
	"time"
)

// fakeTarget implements CommandTarget over in-memory state.
type fakeTarget struct {
	quit      bool
	targetFPS float64
	offset    int64
	layers    *LayerManager
	master    MasterProperties
	osd       *OSDManager
	attached  []string
	regions   []*OutputRegion
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		layers: NewLayerManager(),
		master: NewMasterProperties(),
		osd:    NewOSDManager(),
	}
}

func (t *fakeTarget) Quit() { t.quit = true }
func (t *fakeTarget) SetTargetFPS(fps float64) { t.targetFPS = fps }
func (t *fakeTarget) SetGlobalOffset(o int64) { t.offset = o }
func (t *fakeTarget) Layers() *LayerManager      { return t.layers }
func (t *fakeTarget) Master() *MasterProperties  { return &t.master }
func (t *fakeTarget) OSD() *OSDManager           { return t.osd }
func (t *fakeTarget) AttachFile(l *Layer, path string) bool {
	t.attached = append(t.attached, path)
	return true
}

func (t *fakeTarget) OutputRegion(name string) *OutputRegion {
	for _, r := range t.regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func newTestRouter() (*CommandRouter, *CommandQueue, *fakeTarget) {
	q := NewCommandQueue()
	target := newFakeTarget()
	return NewCommandRouter(q, target), q, target
}

func TestQuitAndGlobals(t *testing.T) {
	r, _, target := newTestRouter()

	r.Apply(Command{Path: "/videocomposer/fps", Args: []string{"50"}})
	if target.targetFPS != 50 {
		t.Fatalf("fps: got %f", target.targetFPS)
	}
	r.Apply(Command{Path: "/videocomposer/offset", Args: []string{"-25"}})
	if target.offset != -25 {
		t.Fatalf("offset: got %d", target.offset)
	}
	r.Apply(Command{Path: "/videocomposer/quit"})
	if !target.quit {
		t.Fatalf("quit not dispatched")
	}
}

func TestLayerAddRemoveAndMutations(t *testing.T) {
	r, _, target := newTestRouter()

	r.Apply(Command{Path: "/videocomposer/layer/add", Args: []string{"cue7"}})
	layer, ok := target.layers.GetByCue("cue7")
	if !ok {
		t.Fatalf("layer not created")
	}

	r.Apply(Command{Path: "/videocomposer/layer/cue7/opacity", Args: []string{"2.5"}})
	if layer.Props.Opacity != 1 {
		t.Fatalf("opacity must clamp to 1, got %f", layer.Props.Opacity)
	}
	r.Apply(Command{Path: "/videocomposer/layer/cue7/brightness", Args: []string{"-3"}})
	if layer.Props.Color.Brightness != -1 {
		t.Fatalf("brightness must clamp to -1, got %f", layer.Props.Color.Brightness)
	}
	r.Apply(Command{Path: "/videocomposer/layer/cue7/blendmode", Args: []string{"screen"}})
	if layer.Props.Blend != BlendScreen {
		t.Fatalf("blend mode not applied")
	}
	r.Apply(Command{Path: "/videocomposer/layer/cue7/loop", Args: []string{"100", "200"}})
	if layer.Playback.Loop != (LoopRegion{Start: 100, End: 200, Enabled: true}) {
		t.Fatalf("loop region not applied: %+v", layer.Playback.Loop)
	}
	r.Apply(Command{Path: "/videocomposer/layer/cue7/reverse", Args: []string{"1"}})
	if layer.Playback.TimeScale != -1 {
		t.Fatalf("reverse must negate timescale, got %f", layer.Playback.TimeScale)
	}
	// Reversing again is a no-op while already reversed.
	r.Apply(Command{Path: "/videocomposer/layer/cue7/reverse", Args: []string{"1"}})
	if layer.Playback.TimeScale != -1 {
		t.Fatalf("double reverse changed timescale: %f", layer.Playback.TimeScale)
	}
	r.Apply(Command{Path: "/videocomposer/layer/cue7/timescale", Args: []string{"0"}})
	if layer.Playback.TimeScale == 0 {
		t.Fatalf("zero timescale must be rejected")
	}

	r.Apply(Command{Path: "/videocomposer/layer/cue7/file", Args: []string{"/show/clip.mp4"}})
	if len(target.attached) != 1 || target.attached[0] != "/show/clip.mp4" {
		t.Fatalf("file attach not routed")
	}

	r.Apply(Command{Path: "/videocomposer/layer/remove", Args: []string{"cue7"}})
	if target.layers.Count() != 0 {
		t.Fatalf("layer not removed")
	}
}

func TestCornerCommands(t *testing.T) {
	r, _, target := newTestRouter()
	r.Apply(Command{Path: "/videocomposer/layer/add", Args: []string{"c"}})
	layer, _ := target.layers.GetByCue("c")

	r.Apply(Command{Path: "/videocomposer/layer/c/corner2", Args: []string{"0.1", "-0.2"}})
	if !layer.Props.CornersEnabled || layer.Props.Corners[2] != 0.1 || layer.Props.Corners[3] != -0.2 {
		t.Fatalf("corner2: %+v", layer.Props.Corners)
	}

	r.Apply(Command{Path: "/videocomposer/layer/c/corners",
		Args: []string{"0", "0", "0", "0", "0", "0", "0", "0"}})
	if layer.Props.Corners[2] != 0 {
		t.Fatalf("full corners write must overwrite")
	}
}

func TestMasterAndOSDCommands(t *testing.T) {
	r, _, target := newTestRouter()

	r.Apply(Command{Path: "/videocomposer/master/opacity", Args: []string{"0.5"}})
	if target.master.Opacity != 0.5 {
		t.Fatalf("master opacity: got %f", target.master.Opacity)
	}
	r.Apply(Command{Path: "/videocomposer/master/gamma", Args: []string{"99"}})
	if target.master.Color.Gamma != 10 {
		t.Fatalf("master gamma must clamp to 10, got %f", target.master.Color.Gamma)
	}

	r.Apply(Command{Path: "/videocomposer/osd/smpte", Args: []string{"on"}})
	r.Apply(Command{Path: "/videocomposer/osd/pos", Args: []string{"0.5", "0.9"}})
	if target.osd.posX != 0.5 || target.osd.posY != 0.9 {
		t.Fatalf("osd position: %f,%f", target.osd.posX, target.osd.posY)
	}
}

func TestOutputRegionCommands(t *testing.T) {
	r, _, target := newTestRouter()
	target.regions = []*OutputRegion{
		NewOutputRegion("HDMI-A-1", 0, 0, 1920, 1080, 1920, 1080),
	}

	r.Apply(Command{Path: "/videocomposer/output/HDMI-A-1/blend",
		Args: []string{"0", "20", "0", "0", "2.2"}})
	region := target.regions[0]
	if region.Blend.Right != 20 || region.Blend.Gamma != 2.2 {
		t.Fatalf("blend not applied: %+v", region.Blend)
	}

	r.Apply(Command{Path: "/videocomposer/output/HDMI-A-1/enabled", Args: []string{"0"}})
	if region.Enabled {
		t.Fatalf("enabled not applied")
	}

	r.Apply(Command{Path: "/videocomposer/output/missing/enabled", Args: []string{"1"}})
}

func TestMalformedCommandsAreDropped(t *testing.T) {
	r, _, target := newTestRouter()

	// None of these may panic or touch the globals. A bare layer/add is
	// accepted and creates a layer without a cue id.
	r.Apply(Command{Path: "/otherapp/quit"})
	r.Apply(Command{Path: "/videocomposer/layer/99/opacity", Args: []string{"0.5"}})
	r.Apply(Command{Path: "/videocomposer/fps", Args: []string{"fast"}})
	r.Apply(Command{Path: "/videocomposer/layer/add"})
	r.Apply(Command{Path: "/videocomposer/layer/1/opacity", Args: []string{"notafloat"}})

	if target.quit || target.targetFPS != 0 {
		t.Fatalf("malformed commands mutated state")
	}
}

func TestDrainBudgetDefersCommands(t *testing.T) {
	r, q, target := newTestRouter()

	for i := 0; i < 100; i++ {
		q.Push(Command{Path: "/videocomposer/layer/add", Args: []string{""}})
	}
	// A generous budget applies everything.
	applied := r.Drain(100 * time.Millisecond)
	if applied != 100 || target.layers.Count() != 100 {
		t.Fatalf("drain applied %d, layers %d", applied, target.layers.Count())
	}

	// A zero budget applies nothing and defers the queue.
	q.Push(Command{Path: "/videocomposer/quit"})
	if n := r.Drain(0); n != 0 {
		t.Fatalf("zero budget applied %d commands", n)
	}
	if target.quit {
		t.Fatalf("deferred command must not run")
	}
	r.Drain(10 * time.Millisecond)
	if !target.quit {
		t.Fatalf("deferred command must run next frame")
	}
}

func TestQueueOverflowDropsNotBlocks(t *testing.T) {
	q := NewCommandQueue()
	done := make(chan struct{})
	go func() {
		for i := 0; i < COMMAND_QUEUE_CAPACITY+100; i++ {
			q.Push(Command{Path: "/videocomposer/fps", Args: []string{"60"}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Push must never block")
	}
}
