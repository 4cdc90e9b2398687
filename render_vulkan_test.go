// render_vulkan_test.go - Headless compositor placement math tests

package main

import "testing"

func TestLayerCopyRegionCentred(t *testing.T) {
	buf := &PixelBuffer{Width: 640, Height: 360, Stride: 640 * 4, Data: make([]byte, 4)}
	props := NewDisplayProperties()

	srcX, srcY, dstX, dstY, w, h := layerCopyRegion(buf, &props, 1920, 1080)
	if srcX != 0 || srcY != 0 || dstX != 640 || dstY != 360 || w != 640 || h != 360 {
		t.Fatalf("centred: got src(%d,%d) dst(%d,%d) %dx%d", srcX, srcY, dstX, dstY, w, h)
	}
}

func TestLayerCopyRegionClipsLeftTop(t *testing.T) {
	buf := &PixelBuffer{Width: 640, Height: 360, Stride: 640 * 4, Data: make([]byte, 4)}
	props := NewDisplayProperties()
	props.X = -1000
	props.Y = -500

	srcX, srcY, dstX, dstY, w, h := layerCopyRegion(buf, &props, 1920, 1080)
	if dstX != 0 || dstY != 0 {
		t.Fatalf("clip must pin destination to origin: dst(%d,%d)", dstX, dstY)
	}
	if srcX != 360 || srcY != 140 {
		t.Fatalf("clip must advance source window: src(%d,%d)", srcX, srcY)
	}
	if w != 640-360 || h != 360-140 {
		t.Fatalf("clip must shrink extent: %dx%d", w, h)
	}
}

func TestLayerCopyRegionClipsRightBottom(t *testing.T) {
	buf := &PixelBuffer{Width: 640, Height: 360, Stride: 640 * 4, Data: make([]byte, 4)}
	props := NewDisplayProperties()
	props.X = 1000
	props.Y = 500

	_, _, dstX, dstY, w, h := layerCopyRegion(buf, &props, 1920, 1080)
	if dstX+w > 1920 || dstY+h > 1080 {
		t.Fatalf("region exceeds canvas: dst(%d,%d) %dx%d", dstX, dstY, w, h)
	}
	if w <= 0 || h <= 0 {
		t.Fatalf("partially visible layer must keep a positive extent")
	}
}

func TestLayerCopyRegionFullyOffCanvas(t *testing.T) {
	buf := &PixelBuffer{Width: 640, Height: 360, Stride: 640 * 4, Data: make([]byte, 4)}
	props := NewDisplayProperties()
	props.X = 5000

	_, _, _, _, w, _ := layerCopyRegion(buf, &props, 1920, 1080)
	if w > 0 {
		t.Fatalf("off-canvas layer must produce an empty region, got width %d", w)
	}
}
