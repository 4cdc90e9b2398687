// layer_manager.go - Layer registry with cue-id aliasing and z-order

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"sort"
)

// LayerManager owns every layer. Integer ids are monotonic; the optional
// cue-id string aliases a layer for the show-control system. Every removal
// path cleans both maps, spec 9.
type LayerManager struct {
	layers map[int]*Layer
	byCue  map[string]int
	nextID int
	// order caches insertion sequence for z-order tie-breaks.
	order []int
}

func NewLayerManager() *LayerManager {
	return &LayerManager{
		layers: make(map[int]*Layer),
		byCue:  make(map[string]int),
		nextID: 1,
	}
}

// AddLayer creates an empty layer. A non-empty cueID that is already taken
// replaces the alias (the old layer keeps running under its integer id).
func (m *LayerManager) AddLayer(cueID string) *Layer {
	id := m.nextID
	m.nextID++
	layer := NewLayer(id, cueID)
	m.layers[id] = layer
	m.order = append(m.order, id)
	if cueID != "" {
		m.byCue[cueID] = id
	}
	return layer
}

// Get resolves an integer id.
func (m *LayerManager) Get(id int) (*Layer, bool) {
	l, ok := m.layers[id]
	return l, ok
}

// GetByCue resolves a cue-id alias.
func (m *LayerManager) GetByCue(cueID string) (*Layer, bool) {
	id, ok := m.byCue[cueID]
	if !ok {
		return nil, false
	}
	return m.Get(id)
}

// Resolve accepts either an integer id rendered as decimal or a cue id.
func (m *LayerManager) Resolve(ref string) (*Layer, bool) {
	var id int
	if _, err := fmt.Sscanf(ref, "%d", &id); err == nil {
		if l, ok := m.Get(id); ok {
			return l, true
		}
	}
	return m.GetByCue(ref)
}

// Remove destroys a layer and cleans both the id map and the cue alias.
func (m *LayerManager) Remove(id int) bool {
	layer, ok := m.layers[id]
	if !ok {
		return false
	}
	layer.Release()
	delete(m.layers, id)
	if layer.CueID != "" {
		// Only clear the alias if it still points at this layer; a newer
		// layer may have taken the name.
		if aliased, ok := m.byCue[layer.CueID]; ok && aliased == id {
			delete(m.byCue, layer.CueID)
		}
	}
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Count returns the number of live layers.
func (m *LayerManager) Count() int { return len(m.layers) }

// InRenderOrder returns all layers, hidden ones included, sorted by
// descending z-order, ties broken by insertion order, spec 3.
func (m *LayerManager) InRenderOrder() []*Layer {
	out := make([]*Layer, 0, len(m.order))
	pos := make(map[int]int, len(m.order))
	for i, id := range m.order {
		pos[id] = i
		if l, ok := m.layers[id]; ok {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Props.ZOrder != out[j].Props.ZOrder {
			return out[i].Props.ZOrder > out[j].Props.ZOrder
		}
		return pos[out[i].ID] < pos[out[j].ID]
	})
	return out
}

// UpdateAll runs one playback tick on every layer and removes those that
// reached end-of-stream with autoUnload, before the next render, spec 4.4
// step 8.
func (m *LayerManager) UpdateAll(globalOffset int64) {
	var doomed []int
	for _, id := range append([]int(nil), m.order...) {
		layer, ok := m.layers[id]
		if !ok {
			continue
		}
		if !layer.Update(globalOffset) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		fmt.Printf("Layer: auto-unloading layer %d at end of stream\n", id)
		m.Remove(id)
	}
}

// ReleaseAll tears every layer down; used at shutdown.
func (m *LayerManager) ReleaseAll() {
	for id := range m.layers {
		m.Remove(id)
	}
}
