// display_config_test.go - Configuration parsing and region mapping tests

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "videocomposerrc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigUnknownKeysIgnoredMissingKeysDefault(t *testing.T) {
	path := writeConfig(t, `{
		"name": "show",
		"futureOption": true,
		"outputs": [
			{"name": "HDMI-A-1", "width": 1920, "height": 1080,
			 "blend": {"R": 20, "gamma": 2.2}, "someday": 1}
		]
	}`)
	cfg := LoadDisplayConfiguration(path)
	if cfg.Name != "show" {
		t.Fatalf("name: got %q", cfg.Name)
	}
	if len(cfg.Outputs) != 1 {
		t.Fatalf("outputs: got %d", len(cfg.Outputs))
	}
	out := cfg.Outputs[0]
	if out.Blend.R != 20 || out.Blend.Gamma != 2.2 {
		t.Fatalf("blend: %+v", out.Blend)
	}
	if out.Enabled != nil {
		t.Fatalf("missing enabled must stay nil (defaults on)")
	}
}

func TestLoadConfigParseErrorFallsBackToDefaults(t *testing.T) {
	path := writeConfig(t, `{not json`)
	cfg := LoadDisplayConfiguration(path)
	if !cfg.AutoDetect || cfg.Name != "default" {
		t.Fatalf("parse error must fall back to defaults: %+v", cfg)
	}
}

func TestLoadConfigMissingFileDefaults(t *testing.T) {
	cfg := LoadDisplayConfiguration(filepath.Join(t.TempDir(), "nope"))
	if !cfg.AutoDetect {
		t.Fatalf("missing file must default")
	}
}

func TestRegionsForConfiguredAndAuto(t *testing.T) {
	path := writeConfig(t, `{
		"autoDetect": true,
		"outputs": [
			{"name": "HDMI-A-1", "x": 0, "y": 0, "width": 1900, "height": 1080,
			 "blend": {"R": 20, "gamma": 2.2}}
		]
	}`)
	cfg := LoadDisplayConfiguration(path)

	regions := cfg.RegionsFor([]outputGeometry{
		{Connector: "HDMI-A-1", Width: 1920, Height: 1080},
		{Connector: "DP-1", Width: 1280, Height: 720},
	})
	if len(regions) != 2 {
		t.Fatalf("regions: got %d", len(regions))
	}
	if regions[0].W != 1900 || regions[0].Blend.Right != 20 {
		t.Fatalf("configured region wrong: %+v", regions[0])
	}
	// The unconfigured output auto-arranges after the configured box.
	if regions[1].Name != "DP-1" || regions[1].X != 1900 {
		t.Fatalf("auto region wrong: %+v", regions[1])
	}
}

func TestRegionsForNoConfigAutoArranges(t *testing.T) {
	cfg := DefaultDisplayConfiguration()
	regions := cfg.RegionsFor([]outputGeometry{
		{Connector: "HDMI-A-1", Width: 1920, Height: 1080},
		{Connector: "HDMI-A-2", Width: 1920, Height: 1080},
	})
	if len(regions) != 2 || regions[1].X != 1920 {
		t.Fatalf("auto arrangement wrong")
	}
	w, h := computeCanvasBounds(regions)
	if w != 3840 || h != 1080 {
		t.Fatalf("canvas: %dx%d", w, h)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := DefaultDisplayConfiguration()
	enabled := true
	cfg.Outputs = []OutputConfig{{
		Name: "DP-1", Width: 1920, Height: 1080, Enabled: &enabled,
		Blend: BlendConfig{L: 10, Gamma: 2.2},
	}}
	path := filepath.Join(t.TempDir(), "rc")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded := LoadDisplayConfiguration(path)
	if len(loaded.Outputs) != 1 || loaded.Outputs[0].Blend.L != 10 {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
}
