// layer_manager_test.go - Layer registry tests

package main

import "testing"

func TestLayerManagerCueAliasCleanup(t *testing.T) {
	m := NewLayerManager()
	layer := m.AddLayer("act1-video")

	if got, ok := m.GetByCue("act1-video"); !ok || got.ID != layer.ID {
		t.Fatalf("cue lookup failed")
	}

	m.Remove(layer.ID)
	if _, ok := m.Get(layer.ID); ok {
		t.Fatalf("id map not cleaned")
	}
	if _, ok := m.GetByCue("act1-video"); ok {
		t.Fatalf("cue map not cleaned")
	}
}

func TestLayerManagerCueAliasReassignment(t *testing.T) {
	m := NewLayerManager()
	old := m.AddLayer("main")
	newer := m.AddLayer("main")

	// Removing the old layer must not clear the alias now owned by the
	// newer layer.
	m.Remove(old.ID)
	got, ok := m.GetByCue("main")
	if !ok || got.ID != newer.ID {
		t.Fatalf("alias should survive removal of the displaced layer")
	}
}

func TestLayerManagerResolve(t *testing.T) {
	m := NewLayerManager()
	layer := m.AddLayer("intro")

	if got, ok := m.Resolve("intro"); !ok || got.ID != layer.ID {
		t.Fatalf("resolve by cue failed")
	}
	if got, ok := m.Resolve("1"); !ok || got.ID != layer.ID {
		t.Fatalf("resolve by integer id failed")
	}
	if _, ok := m.Resolve("missing"); ok {
		t.Fatalf("resolve of unknown ref should fail")
	}
}

func TestRenderOrderDescendingZTiesByInsertion(t *testing.T) {
	m := NewLayerManager()
	a := m.AddLayer("a")
	b := m.AddLayer("b")
	c := m.AddLayer("c")
	a.Props.ZOrder = 5
	b.Props.ZOrder = 10
	c.Props.ZOrder = 5

	order := m.InRenderOrder()
	want := []int{b.ID, a.ID, c.ID}
	for i, l := range order {
		if l.ID != want[i] {
			t.Fatalf("render order: got %v at %d, want %v", l.ID, i, want)
		}
	}
}

func TestAutoUnloadRemovesLayerBeforeNextRender(t *testing.T) {
	m := NewLayerManager()
	layer := m.AddLayer("outro")
	input := newFakeInput(250, 25)
	sync := &fakeSync{fps: 25, connected: true, rolling: true}
	layer.Input = input
	layer.Sync = sync
	layer.Playback.Playing = true
	layer.Playback.Wraparound = false
	layer.Props.AutoUnload = true

	sync.frame = 250
	m.UpdateAll(0)

	if m.Count() != 0 {
		t.Fatalf("layer must be removed from the manager before the next render")
	}
	if input.ready {
		t.Fatalf("removed layer must close its input")
	}
}
