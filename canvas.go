// canvas.go - Virtual canvas FBO with double-buffered PBO readback

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

/*
#cgo linux LDFLAGS: -lGLESv2
#include <GLES3/gl3.h>
#include <string.h>
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// VirtualCanvas is the single RGBA8 FBO all layers composite into once per
// frame, sized to the bounding box of all enabled output regions, spec 4.6.
type VirtualCanvas struct {
	width  int
	height int

	fbo   C.GLuint
	tex   C.GLuint
	depth C.GLuint

	pbo        [2]C.GLuint
	pboIndex   int
	pboPending [2]bool
}

// computeCanvasBounds returns the bounding box of all enabled output
// regions. Canvas width/height must equal this box, spec 3.
func computeCanvasBounds(regions []*OutputRegion) (w, h int) {
	maxX, maxY := 0.0, 0.0
	for _, r := range regions {
		if !r.Enabled {
			continue
		}
		if r.X+r.W > maxX {
			maxX = r.X + r.W
		}
		if r.Y+r.H > maxY {
			maxY = r.Y + r.H
		}
	}
	return int(maxX), int(maxY)
}

// NewVirtualCanvas allocates the FBO. An incomplete FBO is always fatal,
// spec 7.
func NewVirtualCanvas(width, height int) (*VirtualCanvas, error) {
	c := &VirtualCanvas{width: width, height: height}
	if err := c.allocate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *VirtualCanvas) allocate() error {
	C.glGenTextures(1, &c.tex)
	C.glBindTexture(C.GL_TEXTURE_2D, c.tex)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MIN_FILTER, C.GL_LINEAR)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MAG_FILTER, C.GL_LINEAR)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_WRAP_S, C.GL_CLAMP_TO_EDGE)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_WRAP_T, C.GL_CLAMP_TO_EDGE)
	C.glTexImage2D(C.GL_TEXTURE_2D, 0, C.GL_RGBA8, C.GLsizei(c.width), C.GLsizei(c.height),
		0, C.GL_RGBA, C.GL_UNSIGNED_BYTE, nil)

	C.glGenRenderbuffers(1, &c.depth)
	C.glBindRenderbuffer(C.GL_RENDERBUFFER, c.depth)
	C.glRenderbufferStorage(C.GL_RENDERBUFFER, C.GL_DEPTH_COMPONENT16,
		C.GLsizei(c.width), C.GLsizei(c.height))

	C.glGenFramebuffers(1, &c.fbo)
	C.glBindFramebuffer(C.GL_FRAMEBUFFER, c.fbo)
	C.glFramebufferTexture2D(C.GL_FRAMEBUFFER, C.GL_COLOR_ATTACHMENT0,
		C.GL_TEXTURE_2D, c.tex, 0)
	C.glFramebufferRenderbuffer(C.GL_FRAMEBUFFER, C.GL_DEPTH_ATTACHMENT,
		C.GL_RENDERBUFFER, c.depth)

	status := C.glCheckFramebufferStatus(C.GL_FRAMEBUFFER)
	C.glBindFramebuffer(C.GL_FRAMEBUFFER, 0)
	if status != C.GL_FRAMEBUFFER_COMPLETE {
		return compositorErr("canvas", "framebuffer allocation",
			fmt.Errorf("incomplete FBO: 0x%04x", uint32(status)))
	}

	C.glGenBuffers(2, &c.pbo[0])
	for i := 0; i < 2; i++ {
		C.glBindBuffer(C.GL_PIXEL_PACK_BUFFER, c.pbo[i])
		C.glBufferData(C.GL_PIXEL_PACK_BUFFER, C.GLsizeiptr(c.width*c.height*4),
			nil, C.GL_STREAM_READ)
	}
	C.glBindBuffer(C.GL_PIXEL_PACK_BUFFER, 0)
	return nil
}

// Resize reallocates on configuration change only.
func (c *VirtualCanvas) Resize(width, height int) error {
	if width == c.width && height == c.height {
		return nil
	}
	c.Destroy()
	c.width = width
	c.height = height
	c.pboPending = [2]bool{}
	return c.allocate()
}

func (c *VirtualCanvas) Width() int       { return c.width }
func (c *VirtualCanvas) Height() int      { return c.height }
func (c *VirtualCanvas) Texture() uint32  { return uint32(c.tex) }

// BeginFrame binds the FBO and clears, spec 4.6.
func (c *VirtualCanvas) BeginFrame() {
	C.glBindFramebuffer(C.GL_FRAMEBUFFER, c.fbo)
	C.glViewport(0, 0, C.GLsizei(c.width), C.GLsizei(c.height))
	C.glClearColor(0, 0, 0, 1)
	C.glClear(C.GL_COLOR_BUFFER_BIT)
}

func (c *VirtualCanvas) EndFrame() {
	C.glBindFramebuffer(C.GL_FRAMEBUFFER, 0)
}

// StartAsyncCapture issues a non-blocking glReadPixels into the current
// PBO. The matching CollectCapture call drains the other PBO one frame
// later, trading one frame of latency for zero GPU stalls, spec 4.6.
func (c *VirtualCanvas) StartAsyncCapture() {
	C.glBindFramebuffer(C.GL_FRAMEBUFFER, c.fbo)
	C.glBindBuffer(C.GL_PIXEL_PACK_BUFFER, c.pbo[c.pboIndex])
	C.glReadPixels(0, 0, C.GLsizei(c.width), C.GLsizei(c.height),
		C.GL_RGBA, C.GL_UNSIGNED_BYTE, nil)
	C.glBindBuffer(C.GL_PIXEL_PACK_BUFFER, 0)
	C.glBindFramebuffer(C.GL_FRAMEBUFFER, 0)
	c.pboPending[c.pboIndex] = true
	c.pboIndex = 1 - c.pboIndex
}

// CollectCapture maps the PBO filled on the previous frame and copies it
// into dst. Returns false until a prior StartAsyncCapture has completed a
// full cycle. dst must hold width*height*4 bytes.
func (c *VirtualCanvas) CollectCapture(dst []byte) bool {
	// pboIndex is the next buffer to write; its partner was filled by the
	// previous frame's StartAsyncCapture.
	idx := 1 - c.pboIndex
	if !c.pboPending[idx] {
		return false
	}
	need := c.width * c.height * 4
	if len(dst) < need {
		return false
	}
	C.glBindBuffer(C.GL_PIXEL_PACK_BUFFER, c.pbo[idx])
	ptr := C.glMapBufferRange(C.GL_PIXEL_PACK_BUFFER, 0, C.GLsizeiptr(need), C.GL_MAP_READ_BIT)
	if ptr == nil {
		C.glBindBuffer(C.GL_PIXEL_PACK_BUFFER, 0)
		return false
	}
	C.memcpy(unsafe.Pointer(&dst[0]), ptr, C.size_t(need))
	C.glUnmapBuffer(C.GL_PIXEL_PACK_BUFFER)
	C.glBindBuffer(C.GL_PIXEL_PACK_BUFFER, 0)
	c.pboPending[idx] = false
	return true
}

func (c *VirtualCanvas) Destroy() {
	C.glDeleteBuffers(2, &c.pbo[0])
	C.glDeleteFramebuffers(1, &c.fbo)
	C.glDeleteRenderbuffers(1, &c.depth)
	C.glDeleteTextures(1, &c.tex)
}
