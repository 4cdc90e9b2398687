// display_config.go - JSON display configuration persistence

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// OutputConfig is one output entry of the JSON display configuration,
// spec 6. Unknown keys are ignored by encoding/json; missing keys default.
type OutputConfig struct {
	Name          string      `json:"name"`
	X             float64     `json:"x"`
	Y             float64     `json:"y"`
	Width         float64     `json:"width"`
	Height        float64     `json:"height"`
	Refresh       int         `json:"refresh"`
	Enabled       *bool       `json:"enabled"`
	Rotation      int         `json:"rotation"`
	Layers        []int       `json:"layers"`
	Blend         BlendConfig `json:"blend"`
	Warp          WarpConfig  `json:"warp"`
	CaptureForNDI bool        `json:"captureForNDI"`
}

type BlendConfig struct {
	L     float64 `json:"L"`
	R     float64 `json:"R"`
	T     float64 `json:"T"`
	B     float64 `json:"B"`
	Gamma float64 `json:"gamma"`
}

type WarpConfig struct {
	Enabled  bool   `json:"enabled"`
	MeshPath string `json:"meshPath"`
}

// DisplayConfiguration is the top-level persisted document. This JSON model
// is the external persistence layer only; the OutputRegion model is
// authoritative for the renderer.
type DisplayConfiguration struct {
	Name           string         `json:"name"`
	AutoDetect     bool           `json:"autoDetect"`
	Headless       bool           `json:"headless"`
	Outputs        []OutputConfig `json:"outputs"`
	VirtualOutputs []string       `json:"virtualOutputs"`
}

// DefaultDisplayConfiguration is what a missing or unparseable config file
// falls back to, spec 7.
func DefaultDisplayConfiguration() *DisplayConfiguration {
	return &DisplayConfiguration{
		Name:       "default",
		AutoDetect: true,
	}
}

// DefaultConfigPath is $HOME/.videocomposerrc, spec 6.
func DefaultConfigPath() string {
	home := os.Getenv("HOME")
	if home == "" {
		home = "."
	}
	return filepath.Join(home, DEFAULT_CONFIG_NAME)
}

// LoadDisplayConfiguration reads the config file, falling back to defaults
// on any failure with a single log line.
func LoadDisplayConfiguration(path string) *DisplayConfiguration {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Printf("Config: cannot read %s: %v; using defaults\n", path, err)
		}
		return DefaultDisplayConfiguration()
	}
	cfg := DefaultDisplayConfiguration()
	if err := json.Unmarshal(data, cfg); err != nil {
		fmt.Printf("Config: parse error in %s: %v; using defaults\n", path, err)
		return DefaultDisplayConfiguration()
	}
	return cfg
}

// Save writes the configuration back out.
func (c *DisplayConfiguration) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// findOutput returns the config entry for a connector name.
func (c *DisplayConfiguration) findOutput(name string) *OutputConfig {
	for i := range c.Outputs {
		if c.Outputs[i].Name == name {
			return &c.Outputs[i]
		}
	}
	return nil
}

// RegionsFor builds the authoritative OutputRegion set from the detected
// outputs: configured entries win, everything else auto-arranges when
// autoDetect is on.
func (c *DisplayConfiguration) RegionsFor(outputs []outputGeometry) []*OutputRegion {
	var regions []*OutputRegion
	var unconfigured []outputGeometry

	for _, o := range outputs {
		oc := c.findOutput(o.Connector)
		if oc == nil {
			if c.AutoDetect {
				unconfigured = append(unconfigured, o)
			}
			continue
		}
		w := oc.Width
		if w <= 0 {
			w = float64(o.Width)
		}
		h := oc.Height
		if h <= 0 {
			h = float64(o.Height)
		}
		r := NewOutputRegion(o.Connector, oc.X, oc.Y, w, h, o.Width, o.Height)
		r.Rotation = oc.Rotation
		if oc.Enabled != nil {
			r.Enabled = *oc.Enabled
		}
		if oc.Blend.Gamma > 0 {
			r.Blend = BlendWidths{
				Left: oc.Blend.L, Right: oc.Blend.R,
				Top: oc.Blend.T, Bottom: oc.Blend.B,
				Gamma: oc.Blend.Gamma,
			}
		} else {
			r.Blend.Left = oc.Blend.L
			r.Blend.Right = oc.Blend.R
			r.Blend.Top = oc.Blend.T
			r.Blend.Bottom = oc.Blend.B
		}
		if oc.Warp.Enabled && oc.Warp.MeshPath != "" {
			mesh, err := LoadWarpMesh(oc.Warp.MeshPath, 0, 0, 1)
			if err != nil {
				fmt.Printf("Config: warp mesh for %s unusable: %v\n", o.Connector, err)
			} else {
				r.Warp = mesh
			}
		}
		regions = append(regions, r)
	}

	if len(regions) == 0 && c.AutoDetect {
		return autoArrangeRegions(outputs)
	}

	// Auto-arranged extras continue to the right of the configured box.
	if len(unconfigured) > 0 {
		maxX, _ := computeCanvasBounds(regions)
		x := float64(maxX)
		for _, o := range unconfigured {
			r := NewOutputRegion(o.Connector, x, 0, float64(o.Width), float64(o.Height), o.Width, o.Height)
			regions = append(regions, r)
			x += float64(o.Width)
		}
	}
	return regions
}
