// video_backend_ebiten.go - Windowed debug backend with software compositing

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"
)

// DebugWindow renders the composited frame into a desktop window. It
// replaces the DRM/GL pipeline with a CPU compositor when
// VIDEOCOMPOSER_NO_VIRTUAL_CANVAS=1 or --window is given: no edge
// blending, no warp, no zero-copy - a rig-at-the-desk preview only.
type DebugWindow struct {
	app *VideoComposer

	width  int
	height int

	frameBuffer []byte
	bufferMutex sync.RWMutex
	frame       *ebiten.Image

	clipboardOnce sync.Once
	clipboardOK   bool
}

func NewDebugWindow(app *VideoComposer) *DebugWindow {
	const w, h = 1280, 720
	return &DebugWindow{
		app:         app,
		width:       w,
		height:      h,
		frameBuffer: make([]byte, w*h*4),
	}
}

// Run owns the main loop: ebiten drives Update at the display cadence and
// Update calls back into the shared per-frame Tick.
func (dw *DebugWindow) Run() {
	ebiten.SetWindowSize(dw.width, dw.height)
	ebiten.SetWindowTitle("videocomposer (c) 2024 - 2026 Zayn Otley")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	if err := ebiten.RunGame(dw); err != nil {
		fmt.Printf("DebugWindow: %v\n", err)
	}
}

func (dw *DebugWindow) Update() error {
	if !dw.app.running {
		return ebiten.Termination
	}

	dw.app.Tick()
	dw.composite()

	// Keyboard shortcuts mirror the command surface for desk use.
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		dw.app.osd.SetShowFrame(!dw.app.osd.showFrame)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF2) {
		dw.app.osd.SetShowSMPTE(!dw.app.osd.showSMPTE)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyV) && ebiten.IsKeyPressed(ebiten.KeyControl) {
		dw.pasteOSDText()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		dw.app.queue.Push(Command{Path: "/videocomposer/quit"})
	}
	return nil
}

// pasteOSDText drops clipboard text onto the OSD, the desk equivalent of
// /videocomposer/osd/text.
func (dw *DebugWindow) pasteOSDText() {
	dw.clipboardOnce.Do(func() {
		dw.clipboardOK = clipboard.Init() == nil
	})
	if !dw.clipboardOK {
		return
	}
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		dw.app.osd.SetText(string(text))
	}
}

// composite blends every visible layer's CPU frame into the window buffer
// in z-order, scaled to fit with letterboxing and opacity applied.
func (dw *DebugWindow) composite() {
	dw.bufferMutex.Lock()
	defer dw.bufferMutex.Unlock()

	for i := range dw.frameBuffer {
		dw.frameBuffer[i] = 0
	}

	ordered := dw.app.layers.InRenderOrder()
	// Draw bottom-up: reverse of the descending-z render order.
	for i := len(ordered) - 1; i >= 0; i-- {
		layer := ordered[i]
		if !layer.Props.Visible || layer.Latest.CPU == nil || !layer.Latest.CPU.Valid() {
			continue
		}
		dw.blendLayer(layer)
	}
}

// blendLayer is the software fallback of the GL layer draw: nearest
// sampling, letterboxed, straight-alpha over.
func (dw *DebugWindow) blendLayer(layer *Layer) {
	src := layer.Latest.CPU
	opacity := clampFloat(layer.Props.Opacity, 0, 1)
	if opacity == 0 {
		return
	}

	frameAspect := float64(src.Width) / math.Max(float64(src.Height), 1)
	viewAspect := float64(dw.width) / float64(dw.height)
	qx, qy := letterbox(frameAspect, viewAspect)
	dstW := int(float64(dw.width) * qx * layer.Props.ScaleX)
	dstH := int(float64(dw.height) * qy * layer.Props.ScaleY)
	if dstW <= 0 || dstH <= 0 {
		return
	}
	dstX := (dw.width-dstW)/2 + int(layer.Props.X)
	dstY := (dw.height-dstH)/2 + int(layer.Props.Y)

	alpha := uint32(opacity * 255)
	for y := 0; y < dstH; y++ {
		dy := dstY + y
		if dy < 0 || dy >= dw.height {
			continue
		}
		sy := y * src.Height / dstH
		srcRow := sy * src.Stride
		dstRow := dy * dw.width * 4
		for x := 0; x < dstW; x++ {
			dx := dstX + x
			if dx < 0 || dx >= dw.width {
				continue
			}
			sx := x * src.Width / dstW
			si := srcRow + sx*4
			di := dstRow + dx*4
			// BGRA source over RGBA destination.
			sb := uint32(src.Data[si])
			sg := uint32(src.Data[si+1])
			sr := uint32(src.Data[si+2])
			inv := 255 - alpha
			dw.frameBuffer[di] = byte((sr*alpha + uint32(dw.frameBuffer[di])*inv) / 255)
			dw.frameBuffer[di+1] = byte((sg*alpha + uint32(dw.frameBuffer[di+1])*inv) / 255)
			dw.frameBuffer[di+2] = byte((sb*alpha + uint32(dw.frameBuffer[di+2])*inv) / 255)
			dw.frameBuffer[di+3] = 0xFF
		}
	}
}

func (dw *DebugWindow) Draw(screen *ebiten.Image) {
	dw.bufferMutex.RLock()
	if dw.frame == nil {
		dw.frame = ebiten.NewImage(dw.width, dw.height)
	}
	dw.frame.WritePixels(dw.frameBuffer)
	dw.bufferMutex.RUnlock()

	op := &ebiten.DrawImageOptions{}
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	op.GeoM.Scale(float64(sw)/float64(dw.width), float64(sh)/float64(dw.height))
	screen.DrawImage(dw.frame, op)
}

func (dw *DebugWindow) Layout(outsideWidth, outsideHeight int) (int, int) {
	return dw.width, dw.height
}
