// osd.go - On-screen display item producer (frame counter, SMPTE readout, text)

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OSDItem is one positioned textured quad: an alpha bitmap plus normalised
// canvas placement. The renderer owns the GL texture; Generation bumps
// trigger re-upload.
type OSDItem struct {
	X, Y, W, H float64 // normalised canvas coordinates
	Color      [4]float64
	Bitmap     []byte // R8 alpha
	BitmapW    int
	BitmapH    int
	Generation uint64

	texID  uint32
	texGen uint64
}

// OSDManager owns the OSD state driven by the /videocomposer/osd commands
// and rasterises items on demand.
type OSDManager struct {
	showFrame bool
	showSMPTE bool
	showBox   bool
	text      string
	posX      float64
	posY      float64

	scale float64

	frameItem OSDItem
	smpteItem OSDItem
	textItem  OSDItem
	boxItem   OSDItem

	lastFrameText string
	lastSMPTEText string
	lastText      string
	generation    uint64
}

func NewOSDManager() *OSDManager {
	return &OSDManager{posX: 0.02, posY: 0.02, scale: 3}
}

func (o *OSDManager) SetShowFrame(on bool) { o.showFrame = on }
func (o *OSDManager) SetShowSMPTE(on bool) { o.showSMPTE = on }
func (o *OSDManager) SetShowBox(on bool) { o.showBox = on }

func (o *OSDManager) SetText(text string) { o.text = text }

func (o *OSDManager) SetPosition(x, y float64) {
	o.posX = clampFloat(x, 0, 1)
	o.posY = clampFloat(y, 0, 1)
}

// rasterise renders text into an R8 alpha bitmap with the fixed 7x13 face.
func (o *OSDManager) rasterise(text string, item *OSDItem, canvasW, canvasH int) {
	face := basicfont.Face7x13
	textW := font.MeasureString(face, text).Ceil()
	textH := face.Metrics().Height.Ceil()
	if textW == 0 || textH == 0 {
		item.Bitmap = nil
		return
	}

	img := image.NewAlpha(image.Rect(0, 0, textW, textH))
	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)

	item.Bitmap = img.Pix
	item.BitmapW = textW
	item.BitmapH = textH
	o.generation++
	item.Generation = o.generation

	if canvasW > 0 && canvasH > 0 {
		item.W = float64(textW) * o.scale / float64(canvasW)
		item.H = float64(textH) * o.scale / float64(canvasH)
	}
}

// Items produces the quads for this frame, spec's OSD producer interface:
// frame counter, SMPTE timecode, free text and a position box.
func (o *OSDManager) Items(currentFrame int64, tc TimecodeSample, canvasW, canvasH int) []*OSDItem {
	var items []*OSDItem
	y := o.posY
	lineStep := 0.04

	if o.showFrame {
		text := fmt.Sprintf("F %d", currentFrame)
		if text != o.lastFrameText {
			o.rasterise(text, &o.frameItem, canvasW, canvasH)
			o.lastFrameText = text
		}
		o.frameItem.X = o.posX
		o.frameItem.Y = y
		o.frameItem.Color = [4]float64{1, 1, 1, 1}
		items = append(items, &o.frameItem)
		y += lineStep
	}

	if o.showSMPTE {
		text := fmt.Sprintf("%02d:%02d:%02d:%02d @%s",
			tc.Hours, tc.Minutes, tc.Seconds, tc.Frames, tc.Rate)
		if text != o.lastSMPTEText {
			o.rasterise(text, &o.smpteItem, canvasW, canvasH)
			o.lastSMPTEText = text
		}
		o.smpteItem.X = o.posX
		o.smpteItem.Y = y
		o.smpteItem.Color = [4]float64{0.3, 1, 0.3, 1}
		items = append(items, &o.smpteItem)
		y += lineStep
	}

	if o.text != "" {
		if o.text != o.lastText {
			o.rasterise(o.text, &o.textItem, canvasW, canvasH)
			o.lastText = o.text
		}
		o.textItem.X = o.posX
		o.textItem.Y = y
		o.textItem.Color = [4]float64{1, 1, 0.2, 1}
		items = append(items, &o.textItem)
	}

	if o.showBox {
		if o.boxItem.Bitmap == nil {
			o.rasteriseBox(&o.boxItem)
		}
		o.boxItem.X = o.posX
		o.boxItem.Y = o.posY
		o.boxItem.W = 0.25
		o.boxItem.H = 0.12
		o.boxItem.Color = [4]float64{0, 0, 0, 0.6}
		// The box backs the readouts: prepend so text draws over it.
		items = append([]*OSDItem{&o.boxItem}, items...)
	}

	return items
}

// rasteriseBox fills a solid alpha rectangle.
func (o *OSDManager) rasteriseBox(item *OSDItem) {
	const w, h = 8, 8
	img := image.NewAlpha(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	item.Bitmap = img.Pix
	item.BitmapW = w
	item.BitmapH = h
	o.generation++
	item.Generation = o.generation
}
