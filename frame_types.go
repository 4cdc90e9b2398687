// frame_types.go - Frame metadata, CPU pixel buffers and GPU surface handles

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"

	"github.com/GreatValueCreamSoda/gopixfmts"
)

// FrameInfo describes an open input source. Immutable for the lifetime of
// the source, per spec 3.
type FrameInfo struct {
	Width       int
	Height      int
	PixelFormat gopixfmts.PixelFormat
	FPS         float64
	TotalFrames int64 // 0 for live feeds
	Aspect      float64
	CodecName   string
}

// AspectOrDerived returns the declared aspect, or width/height when the
// container carried none.
func (fi FrameInfo) AspectOrDerived() float64 {
	if fi.Aspect > 0 {
		return fi.Aspect
	}
	if fi.Height == 0 {
		return 1
	}
	return float64(fi.Width) / float64(fi.Height)
}

// PixelBuffer is a decoded CPU frame. Producers move (not copy) buffers into
// the layer's latest-frame slot; Take transfers ownership.
type PixelBuffer struct {
	Width       int
	Height      int
	PixelFormat gopixfmts.PixelFormat
	Stride      int
	Data        []byte
}

// Take moves the buffer contents out, leaving the receiver empty. The
// returned buffer owns the backing slice.
func (p *PixelBuffer) Take() PixelBuffer {
	out := *p
	p.Data = nil
	return out
}

func (p *PixelBuffer) Valid() bool {
	return p != nil && p.Data != nil && p.Width > 0 && p.Height > 0
}

// GPUPlane describes one DMA-BUF plane of an exported hardware surface.
type GPUPlane struct {
	FD       int
	Offset   uint32
	Pitch    uint32
	Fourcc   uint32
	Modifier uint64
}

// GPUFrameKind distinguishes the origin of a GPU surface handle.
type GPUFrameKind int

const (
	GPUFrameDMABuf GPUFrameKind = iota
	GPUFrameVASurface
)

// GPUFrame is a zero-copy hardware frame handle. The expected layout is
// NV12 split into SEPARATE_LAYERS: plane 0 is R8 luma, plane 1 is GR88
// chroma at half resolution. Release must run before the owning source
// decodes its next frame; the plane fds stay open until the release
// callback closes them, and the EGLImage import does not close them.
type GPUFrame struct {
	Kind       GPUFrameKind
	Width      int
	Height     int
	Planes     []GPUPlane
	VASurface  uint32
	ColorSpace string

	released bool
	release  func()
}

// NewGPUFrame wraps exported plane descriptors with their release callback.
func NewGPUFrame(kind GPUFrameKind, w, h int, planes []GPUPlane, release func()) *GPUFrame {
	return &GPUFrame{Kind: kind, Width: w, Height: h, Planes: planes, release: release}
}

// Release runs the producer's release callback exactly once.
func (g *GPUFrame) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	if g.release != nil {
		g.release()
	}
}

func (g *GPUFrame) Released() bool { return g == nil || g.released }

// LayerFrame is what a layer publishes to the renderer: exactly one of CPU
// or GPU is set.
type LayerFrame struct {
	CPU *PixelBuffer
	GPU *GPUFrame
}

func (f LayerFrame) Empty() bool { return f.CPU == nil && f.GPU == nil }

// ReleaseGPU drops the GPU handle if present; called when a newer frame
// replaces this one, satisfying the invariant that a source's GPU handle is
// released before the next frame is requested from it.
func (f *LayerFrame) ReleaseGPU() {
	if f.GPU != nil {
		f.GPU.Release()
		f.GPU = nil
	}
}

// CompositorError carries the failing subsystem so fatal init paths can log
// one specific line before exit-1, per spec 7.
type CompositorError struct {
	Subsystem string
	Operation string
	Err       error
}

func (e *CompositorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s failed: %v", e.Subsystem, e.Operation, e.Err)
	}
	return fmt.Sprintf("%s: %s failed", e.Subsystem, e.Operation)
}

func (e *CompositorError) Unwrap() error { return e.Err }

func compositorErr(subsystem, operation string, err error) *CompositorError {
	return &CompositorError{Subsystem: subsystem, Operation: operation, Err: err}
}
