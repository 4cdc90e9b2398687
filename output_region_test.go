// output_region_test.go - Canvas bounds and edge-blend ramp tests

package main

import (
	"math"
	"testing"
)

func TestCanvasBoundingBox(t *testing.T) {
	a := NewOutputRegion("HDMI-A-1", 0, 0, 1920, 1080, 1920, 1080)
	b := NewOutputRegion("HDMI-A-2", 1920, 0, 1920, 1080, 1920, 1080)

	w, h := computeCanvasBounds([]*OutputRegion{a, b})
	if w != 3840 || h != 1080 {
		t.Fatalf("canvas bounds: got %dx%d, want 3840x1080", w, h)
	}

	b.X = 1800
	w, h = computeCanvasBounds([]*OutputRegion{a, b})
	if w != 3720 || h != 1080 {
		t.Fatalf("overlapped bounds: got %dx%d, want 3720x1080", w, h)
	}

	b.Enabled = false
	w, h = computeCanvasBounds([]*OutputRegion{a, b})
	if w != 1920 || h != 1080 {
		t.Fatalf("disabled region must not count: got %dx%d", w, h)
	}
}

func TestDualOutputBlendCentreColumn(t *testing.T) {
	// Two 1920x1080 outputs on a 3820-wide canvas (20 px overlap), right
	// edge of output 1 and left edge of output 2 each blending over 20 px
	// with gamma 2.2. The centre column of the overlap sits halfway along
	// both ramps (0.5), so each side's alpha is pow(0.5, 2.2); the two must
	// agree with each other and with that value within 1/255.
	const blendW = 20.0
	const gamma = 2.2
	const outW, outH = 1920.0, 1080.0

	// Overlap columns in output-1 space are px in [1900, 1920); the centre
	// column is px = 1910, i.e. 10 px from the right edge. In output-2
	// space the same canvas column is 10 px from the left edge.
	rightAlpha := edgeBlendAlpha(1910, 540, outW, outH, 0, blendW, 0, 0, gamma)
	leftAlpha := edgeBlendAlpha(10, 540, outW, outH, blendW, 0, 0, 0, gamma)

	if math.Abs(rightAlpha-leftAlpha) > 1.0/255 {
		t.Fatalf("centre column asymmetric: %f vs %f", rightAlpha, leftAlpha)
	}
	want := math.Pow(0.5, gamma)
	if math.Abs(rightAlpha-want) > 1.0/255 {
		t.Fatalf("centre column alpha: got %f, want %f", rightAlpha, want)
	}
}

func TestEdgeBlendMonotonicRamp(t *testing.T) {
	prev := -1.0
	for px := 0.0; px <= 20; px++ {
		a := edgeBlendAlpha(px, 540, 1920, 1080, 20, 0, 0, 0, 2.2)
		if a < prev {
			t.Fatalf("ramp must be monotonic, broke at px=%f", px)
		}
		prev = a
	}
	if edgeBlendAlpha(0, 540, 1920, 1080, 20, 0, 0, 0, 2.2) != 0 {
		t.Fatalf("edge pixel must be fully attenuated")
	}
	if a := edgeBlendAlpha(960, 540, 1920, 1080, 20, 20, 20, 20, 2.2); a != 1 {
		t.Fatalf("centre pixel must be unattenuated, got %f", a)
	}
}

func TestLetterbox(t *testing.T) {
	// 16:9 frame in a 32:9 viewport: width shrinks.
	qx, qy := letterbox(16.0/9.0, 32.0/9.0)
	if qy != 1 || math.Abs(qx-0.5) > 1e-9 {
		t.Fatalf("wide viewport: got %f,%f", qx, qy)
	}
	// 16:9 frame in a 4:3 viewport: height shrinks.
	qx, qy = letterbox(16.0/9.0, 4.0/3.0)
	if qx != 1 || math.Abs(qy-0.75) > 1e-9 {
		t.Fatalf("tall viewport: got %f,%f", qx, qy)
	}
}

func TestCropAndPanoramaUVs(t *testing.T) {
	p := NewDisplayProperties()
	p.Crop = CropRect{X: 100, Y: 50, W: 200, H: 100, Enabled: true}
	u0, v0, u1, v1 := cropUVs(&p, 400, 200)
	if u0 != 0.25 || v0 != 0.25 || u1 != 0.75 || v1 != 0.75 {
		t.Fatalf("crop UVs: got %f,%f,%f,%f", u0, v0, u1, v1)
	}

	p = NewDisplayProperties()
	p.PanoramaMode = true
	p.PanOffset = 500 // clamped to width/2 = 200
	u0, _, u1, _ = cropUVs(&p, 400, 200)
	if u0 != 0.5 || u1 != 1.0 {
		t.Fatalf("panorama clamp: got %f..%f", u0, u1)
	}
}

func TestAutoArrangeRegions(t *testing.T) {
	regions := autoArrangeRegions([]outputGeometry{
		{Connector: "HDMI-A-1", Width: 1920, Height: 1080},
		{Connector: "DP-1", Width: 1280, Height: 720},
	})
	if regions[0].X != 0 || regions[1].X != 1920 {
		t.Fatalf("auto arrangement must tile left to right")
	}
	w, h := computeCanvasBounds(regions)
	if w != 3200 || h != 1080 {
		t.Fatalf("auto canvas: got %dx%d", w, h)
	}
}
