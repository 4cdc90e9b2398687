// osd_test.go - OSD item production tests

package main

import "testing"

func TestOSDItemsFollowToggles(t *testing.T) {
	osd := NewOSDManager()
	tc := TimecodeSample{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4, Rate: Rate25}

	if items := osd.Items(100, tc, 1920, 1080); len(items) != 0 {
		t.Fatalf("everything off must produce no items, got %d", len(items))
	}

	osd.SetShowFrame(true)
	osd.SetShowSMPTE(true)
	items := osd.Items(100, tc, 1920, 1080)
	if len(items) != 2 {
		t.Fatalf("expected frame+smpte items, got %d", len(items))
	}
	for _, item := range items {
		if item.Bitmap == nil || item.BitmapW == 0 {
			t.Fatalf("items must carry rasterised bitmaps")
		}
		if item.W <= 0 || item.H <= 0 {
			t.Fatalf("items must have normalised extents")
		}
	}
}

func TestOSDRasterisesOnlyOnChange(t *testing.T) {
	osd := NewOSDManager()
	osd.SetShowFrame(true)
	tc := TimecodeSample{}

	osd.Items(1, tc, 1920, 1080)
	gen := osd.frameItem.Generation
	osd.Items(1, tc, 1920, 1080)
	if osd.frameItem.Generation != gen {
		t.Fatalf("unchanged text must not re-rasterise")
	}
	osd.Items(2, tc, 1920, 1080)
	if osd.frameItem.Generation == gen {
		t.Fatalf("changed text must re-rasterise")
	}
}

func TestOSDBoxDrawsUnderText(t *testing.T) {
	osd := NewOSDManager()
	osd.SetShowFrame(true)
	osd.SetShowBox(true)
	items := osd.Items(7, TimecodeSample{}, 1920, 1080)
	if len(items) != 2 {
		t.Fatalf("expected box+frame, got %d", len(items))
	}
	if items[0].Color[3] != 0.6 {
		t.Fatalf("box must be first (drawn under the readouts)")
	}
}

func TestOSDPositionClamped(t *testing.T) {
	osd := NewOSDManager()
	osd.SetPosition(-1, 2)
	if osd.posX != 0 || osd.posY != 1 {
		t.Fatalf("position must clamp to [0,1]: %f,%f", osd.posX, osd.posY)
	}
}
