// render_gl.go - GL layer renderer: shader compilation, frame upload, zero-copy import

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

/*
#cgo linux LDFLAGS: -lEGL -lGLESv2
#cgo CFLAGS: -O2

#include <stdlib.h>
#include <EGL/egl.h>
#include <EGL/eglext.h>
#include <GLES3/gl3.h>
#include <GLES2/gl2ext.h>

// Extension entry points resolved once per process. The EGLImage path needs
// EGL_EXT_image_dma_buf_import and GL_OES_EGL_image.
static PFNEGLCREATEIMAGEKHRPROC p_eglCreateImageKHR;
static PFNEGLDESTROYIMAGEKHRPROC p_eglDestroyImageKHR;
static PFNGLEGLIMAGETARGETTEXTURE2DOESPROC p_glEGLImageTargetTexture2DOES;

static int loadEGLImageExtensions(void) {
    p_eglCreateImageKHR = (PFNEGLCREATEIMAGEKHRPROC)eglGetProcAddress("eglCreateImageKHR");
    p_eglDestroyImageKHR = (PFNEGLDESTROYIMAGEKHRPROC)eglGetProcAddress("eglDestroyImageKHR");
    p_glEGLImageTargetTexture2DOES =
        (PFNGLEGLIMAGETARGETTEXTURE2DOESPROC)eglGetProcAddress("glEGLImageTargetTexture2DOES");
    return p_eglCreateImageKHR && p_eglDestroyImageKHR && p_glEGLImageTargetTexture2DOES;
}

// importDMABufPlane wraps one DMA-BUF plane in an EGLImage and binds it to
// the given texture. The fd stays owned by the caller and is not closed
// here; the EGLImage holds its own reference.
static EGLImageKHR importDMABufPlane(EGLDisplay dpy, GLuint tex, int fd,
                                     int width, int height, unsigned int fourcc,
                                     unsigned int offset, unsigned int pitch,
                                     unsigned long long modifier) {
    EGLint attribs[] = {
        EGL_WIDTH, width,
        EGL_HEIGHT, height,
        EGL_LINUX_DRM_FOURCC_EXT, (EGLint)fourcc,
        EGL_DMA_BUF_PLANE0_FD_EXT, fd,
        EGL_DMA_BUF_PLANE0_OFFSET_EXT, (EGLint)offset,
        EGL_DMA_BUF_PLANE0_PITCH_EXT, (EGLint)pitch,
        EGL_DMA_BUF_PLANE0_MODIFIER_LO_EXT, (EGLint)(modifier & 0xFFFFFFFF),
        EGL_DMA_BUF_PLANE0_MODIFIER_HI_EXT, (EGLint)(modifier >> 32),
        EGL_NONE
    };
    EGLImageKHR image = p_eglCreateImageKHR(dpy, EGL_NO_CONTEXT,
        EGL_LINUX_DMA_BUF_EXT, NULL, attribs);
    if (image == EGL_NO_IMAGE_KHR) {
        return EGL_NO_IMAGE_KHR;
    }
    glBindTexture(GL_TEXTURE_2D, tex);
    p_glEGLImageTargetTexture2DOES(GL_TEXTURE_2D, image);
    return image;
}

static void destroyEGLImage(EGLDisplay dpy, EGLImageKHR image) {
    if (image != EGL_NO_IMAGE_KHR) {
        p_eglDestroyImageKHR(dpy, image);
    }
}
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// glProgram bundles a compiled program with its uniform locations.
type glProgram struct {
	id       C.GLuint
	uniforms map[string]C.GLint
}

func (p *glProgram) uniform(name string) C.GLint {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	cname := C.CString(name)
	loc := C.glGetUniformLocation(p.id, cname)
	C.free(unsafe.Pointer(cname))
	p.uniforms[name] = loc
	return loc
}

// GLRenderer draws layers and OSD items onto the current framebuffer. One
// instance per EGL context share group; all outputs share it through the
// common EGL display.
type GLRenderer struct {
	eglDisplay C.EGLDisplay

	layerProg *glProgram
	nv12Prog  *glProgram
	blitProg  *glProgram
	osdProg   *glProgram

	quadVBO C.GLuint
	uvVBO   C.GLuint
	vao     C.GLuint

	// cpuTex is the retained upload texture for software frames.
	cpuTex     C.GLuint
	cpuTexW    int
	cpuTexH    int
	planeTex   [2]C.GLuint
	planeImage [2]C.EGLImageKHR

	warpTexCache map[string]C.GLuint
}

// NewGLRenderer compiles every shader. Shader compile failure is fatal,
// spec 7.
func NewGLRenderer(eglDisplay unsafe.Pointer) (*GLRenderer, error) {
	r := &GLRenderer{
		eglDisplay:   C.EGLDisplay(eglDisplay),
		warpTexCache: make(map[string]C.GLuint),
	}

	if C.loadEGLImageExtensions() == 0 {
		fmt.Printf("Renderer: EGLImage extensions unavailable; hardware frames disabled\n")
	}

	var err error
	if r.layerProg, err = compileProgram(layerVertexShader, layerFragmentShader); err != nil {
		return nil, compositorErr("renderer", "layer shader compile", err)
	}
	if r.nv12Prog, err = compileProgram(layerVertexShader, nv12FragmentShader); err != nil {
		return nil, compositorErr("renderer", "nv12 shader compile", err)
	}
	if r.blitProg, err = compileProgram(blitVertexShader, blitFragmentShader); err != nil {
		return nil, compositorErr("renderer", "blit shader compile", err)
	}
	if r.osdProg, err = compileProgram(layerVertexShader, osdFragmentShader); err != nil {
		return nil, compositorErr("renderer", "osd shader compile", err)
	}

	C.glGenVertexArrays(1, &r.vao)
	C.glBindVertexArray(r.vao)
	C.glGenBuffers(1, &r.quadVBO)
	C.glGenBuffers(1, &r.uvVBO)
	C.glGenTextures(1, &r.cpuTex)
	C.glGenTextures(2, &r.planeTex[0])

	C.glDisable(C.GL_DEPTH_TEST)
	return r, nil
}

func compileShader(kind C.GLenum, source string) (C.GLuint, error) {
	shader := C.glCreateShader(kind)
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))
	C.glShaderSource(shader, 1, &csrc, nil)
	C.glCompileShader(shader)

	var status C.GLint
	C.glGetShaderiv(shader, C.GL_COMPILE_STATUS, &status)
	if status == C.GL_FALSE {
		var logLen C.GLint
		C.glGetShaderiv(shader, C.GL_INFO_LOG_LENGTH, &logLen)
		log := make([]byte, int(logLen)+1)
		C.glGetShaderInfoLog(shader, C.GLsizei(logLen), nil, (*C.GLchar)(unsafe.Pointer(&log[0])))
		C.glDeleteShader(shader)
		return 0, fmt.Errorf("shader compile: %s", string(log))
	}
	return shader, nil
}

func compileProgram(vertexSrc, fragmentSrc string) (*glProgram, error) {
	vs, err := compileShader(C.GL_VERTEX_SHADER, vertexSrc)
	if err != nil {
		return nil, err
	}
	fs, err := compileShader(C.GL_FRAGMENT_SHADER, fragmentSrc)
	if err != nil {
		C.glDeleteShader(vs)
		return nil, err
	}

	prog := C.glCreateProgram()
	C.glAttachShader(prog, vs)
	C.glAttachShader(prog, fs)
	C.glLinkProgram(prog)
	C.glDeleteShader(vs)
	C.glDeleteShader(fs)

	var status C.GLint
	C.glGetProgramiv(prog, C.GL_LINK_STATUS, &status)
	if status == C.GL_FALSE {
		var logLen C.GLint
		C.glGetProgramiv(prog, C.GL_INFO_LOG_LENGTH, &logLen)
		log := make([]byte, int(logLen)+1)
		C.glGetProgramInfoLog(prog, C.GLsizei(logLen), nil, (*C.GLchar)(unsafe.Pointer(&log[0])))
		C.glDeleteProgram(prog)
		return nil, fmt.Errorf("program link: %s", string(log))
	}
	return &glProgram{id: prog, uniforms: make(map[string]C.GLint)}, nil
}

// setViewport wraps glViewport for callers outside this file.
func setViewport(x, y, w, h int) {
	C.glViewport(C.GLint(x), C.GLint(y), C.GLsizei(w), C.GLsizei(h))
}

// setBlendMode maps the layer blend mode to GL blend funcs, spec 4.5.
func setBlendMode(mode BlendMode) {
	C.glEnable(C.GL_BLEND)
	switch mode {
	case BlendMultiply:
		C.glBlendFunc(C.GL_DST_COLOR, C.GL_ZERO)
	case BlendScreen:
		C.glBlendFunc(C.GL_ONE, C.GL_ONE_MINUS_SRC_COLOR)
	case BlendOverlay:
		C.glBlendFunc(C.GL_SRC_ALPHA, C.GL_ONE)
	default:
		C.glBlendFunc(C.GL_SRC_ALPHA, C.GL_ONE_MINUS_SRC_ALPHA)
	}
}

// uploadCPUFrame pushes a BGRA software frame. Full re-upload each frame;
// the texture object is retained across frames of matching size.
func (r *GLRenderer) uploadCPUFrame(buf *PixelBuffer) {
	C.glActiveTexture(C.GL_TEXTURE0)
	C.glBindTexture(C.GL_TEXTURE_2D, r.cpuTex)
	if r.cpuTexW != buf.Width || r.cpuTexH != buf.Height {
		C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MIN_FILTER, C.GL_LINEAR)
		C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MAG_FILTER, C.GL_LINEAR)
		C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_WRAP_S, C.GL_CLAMP_TO_EDGE)
		C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_WRAP_T, C.GL_CLAMP_TO_EDGE)
		r.cpuTexW = buf.Width
		r.cpuTexH = buf.Height
	}
	C.glPixelStorei(C.GL_UNPACK_ROW_LENGTH, C.GLint(buf.Stride/4))
	C.glTexImage2D(C.GL_TEXTURE_2D, 0, C.GL_RGBA, C.GLsizei(buf.Width), C.GLsizei(buf.Height),
		0, C.GL_RGBA, C.GL_UNSIGNED_BYTE, unsafe.Pointer(&buf.Data[0]))
	C.glPixelStorei(C.GL_UNPACK_ROW_LENGTH, 0)
}

// bindGPUFrame imports the two NV12 DMA-BUF planes as EGLImages bound to
// texture units 0 (Y) and 1 (UV). The fds stay open; the frame's release
// callback closes them. No pixel bytes cross the CPU.
func (r *GLRenderer) bindGPUFrame(frame *GPUFrame) bool {
	if len(frame.Planes) < 2 {
		return false
	}
	r.releasePlaneImages()

	dims := [2][2]int{
		{frame.Width, frame.Height},
		{frame.Width / 2, frame.Height / 2},
	}
	for i := 0; i < 2; i++ {
		plane := frame.Planes[i]
		C.glActiveTexture(C.GLenum(C.GL_TEXTURE0 + C.int(i)))
		image := C.importDMABufPlane(r.eglDisplay, r.planeTex[i],
			C.int(plane.FD), C.int(dims[i][0]), C.int(dims[i][1]),
			C.uint(plane.Fourcc), C.uint(plane.Offset), C.uint(plane.Pitch),
			C.ulonglong(plane.Modifier))
		if image == C.EGLImageKHR(nil) {
			fmt.Printf("Renderer: EGLImage import failed for plane %d\n", i)
			r.releasePlaneImages()
			return false
		}
		r.planeImage[i] = image
		C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MIN_FILTER, C.GL_LINEAR)
		C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MAG_FILTER, C.GL_LINEAR)
	}
	return true
}

func (r *GLRenderer) releasePlaneImages() {
	for i := range r.planeImage {
		if r.planeImage[i] != C.EGLImageKHR(nil) {
			C.destroyEGLImage(r.eglDisplay, r.planeImage[i])
			r.planeImage[i] = C.EGLImageKHR(nil)
		}
	}
}

func (r *GLRenderer) setGradeUniforms(prog *glProgram, color *ColorAdjust) {
	neutral := color.IsNeutral()
	if neutral {
		C.glUniform1i(prog.uniform("uGradeEnabled"), 0)
		return
	}
	C.glUniform1i(prog.uniform("uGradeEnabled"), 1)
	C.glUniform1f(prog.uniform("uBrightness"), C.GLfloat(color.Brightness))
	C.glUniform1f(prog.uniform("uContrast"), C.GLfloat(color.Contrast))
	C.glUniform1f(prog.uniform("uSaturation"), C.GLfloat(color.Saturation))
	C.glUniform1f(prog.uniform("uHue"), C.GLfloat(color.Hue))
	C.glUniform1f(prog.uniform("uGamma"), C.GLfloat(color.Gamma))
}

// DrawLayer renders one layer onto the current framebuffer with the
// viewport already set, spec 4.5.
func (r *GLRenderer) DrawLayer(layer *Layer, viewportW, viewportH float64) {
	if !layer.Props.Visible || layer.Props.Opacity <= 0 || layer.Latest.Empty() {
		return
	}
	if layer.Input == nil || !layer.Input.IsReady() {
		return
	}
	info := layer.Input.Info()

	var prog *glProgram
	switch {
	case layer.Latest.GPU != nil:
		prog = r.nv12Prog
		C.glUseProgram(prog.id)
		if !r.bindGPUFrame(layer.Latest.GPU) {
			return
		}
		C.glUniform1i(prog.uniform("uTexY"), 0)
		C.glUniform1i(prog.uniform("uTexUV"), 1)
	default:
		if !layer.Latest.CPU.Valid() {
			return
		}
		prog = r.layerProg
		C.glUseProgram(prog.id)
		r.uploadCPUFrame(layer.Latest.CPU)
		C.glUniform1i(prog.uniform("uTex"), 0)
	}

	quadX, quadY := letterbox(info.AspectOrDerived(), viewportW/viewportH)
	quad := cornerQuad(quadX, quadY, &layer.Props.Corners, layer.Props.CornersEnabled)
	u0, v0, u1, v1 := cropUVs(&layer.Props, float64(info.Width), float64(info.Height))
	uvs := [8]float32{
		float32(u0), float32(v0),
		float32(u1), float32(v0),
		float32(u1), float32(v1),
		float32(u0), float32(v1),
	}

	model := layerModelMatrix(&layer.Props, viewportW, viewportH)
	C.glUniformMatrix4fv(prog.uniform("uModel"), 1, C.GL_FALSE, (*C.GLfloat)(unsafe.Pointer(&model[0])))
	C.glUniform1f(prog.uniform("uOpacity"), C.GLfloat(layer.Props.Opacity))
	r.setGradeUniforms(prog, &layer.Props.Color)

	setBlendMode(layer.Props.Blend)
	r.drawQuad(&quad, &uvs)
}

// drawQuad streams positions and UVs and draws two triangles (the corner
// deformation path needs per-corner positions, so no static quad).
func (r *GLRenderer) drawQuad(quad *[8]float32, uvs *[8]float32) {
	// TL, TR, BR, BL -> two triangles TL,TR,BR / TL,BR,BL
	idx := [6]int{0, 1, 2, 0, 2, 3}
	var pos [12]float32
	var uv [12]float32
	for i, k := range idx {
		pos[i*2] = quad[k*2]
		pos[i*2+1] = quad[k*2+1]
		uv[i*2] = uvs[k*2]
		uv[i*2+1] = uvs[k*2+1]
	}

	C.glBindVertexArray(r.vao)
	C.glBindBuffer(C.GL_ARRAY_BUFFER, r.quadVBO)
	C.glBufferData(C.GL_ARRAY_BUFFER, C.GLsizeiptr(len(pos)*4), unsafe.Pointer(&pos[0]), C.GL_STREAM_DRAW)
	C.glEnableVertexAttribArray(0)
	C.glVertexAttribPointer(0, 2, C.GL_FLOAT, C.GL_FALSE, 0, nil)

	C.glBindBuffer(C.GL_ARRAY_BUFFER, r.uvVBO)
	C.glBufferData(C.GL_ARRAY_BUFFER, C.GLsizeiptr(len(uv)*4), unsafe.Pointer(&uv[0]), C.GL_STREAM_DRAW)
	C.glEnableVertexAttribArray(1)
	C.glVertexAttribPointer(1, 2, C.GL_FLOAT, C.GL_FALSE, 0, nil)

	C.glDrawArrays(C.GL_TRIANGLES, 0, 6)
}

// BlitOutput extracts one output region from the canvas texture with edge
// blending, the optional warp mesh, and the master post-composite block,
// spec 4.7. The target framebuffer and viewport are already bound.
func (r *GLRenderer) BlitOutput(canvasTex uint32, canvasW, canvasH int, region *OutputRegion, master *MasterProperties) {
	prog := r.blitProg
	C.glUseProgram(prog.id)

	C.glActiveTexture(C.GL_TEXTURE0)
	C.glBindTexture(C.GL_TEXTURE_2D, C.GLuint(canvasTex))
	C.glUniform1i(prog.uniform("uCanvasTex"), 0)
	C.glUniform2f(prog.uniform("uCanvasSize"), C.GLfloat(canvasW), C.GLfloat(canvasH))
	C.glUniform4f(prog.uniform("uSourceRect"),
		C.GLfloat(region.X), C.GLfloat(region.Y), C.GLfloat(region.W), C.GLfloat(region.H))
	C.glUniform2f(prog.uniform("uOutputSize"),
		C.GLfloat(region.PhysicalW), C.GLfloat(region.PhysicalH))
	C.glUniform4f(prog.uniform("uBlendWidths"),
		C.GLfloat(region.Blend.Left), C.GLfloat(region.Blend.Right),
		C.GLfloat(region.Blend.Top), C.GLfloat(region.Blend.Bottom))
	C.glUniform1f(prog.uniform("uBlendGamma"), C.GLfloat(region.Blend.Gamma))

	if region.Warp != nil && region.Warp.Enabled {
		tex := r.warpTexture(region.Warp)
		C.glActiveTexture(C.GL_TEXTURE1)
		C.glBindTexture(C.GL_TEXTURE_2D, tex)
		C.glUniform1i(prog.uniform("uWarpTex"), 1)
		C.glUniform1i(prog.uniform("uWarpEnabled"), 1)
		C.glUniform1f(prog.uniform("uWarpStrength"), C.GLfloat(region.Warp.Strength))
	} else {
		C.glUniform1i(prog.uniform("uWarpEnabled"), 0)
	}

	opacity := 1.0
	gradeSrc := NewColorAdjust()
	cornersEnabled := false
	var corners [8]float64
	if master != nil {
		if !master.Visible {
			opacity = 0
		} else {
			opacity = master.Opacity
		}
		gradeSrc = master.Color
		cornersEnabled = master.CornersEnabled
		corners = master.Corners
	}
	C.glUniform1f(prog.uniform("uMasterOpacity"), C.GLfloat(opacity))
	r.setGradeUniforms(prog, &gradeSrc)

	C.glDisable(C.GL_BLEND)

	// Fullscreen quad in NDC, deformed by the master corner block; the
	// blit vertex shader derives UVs from position.
	quad := cornerQuad(1, 1, &corners, cornersEnabled)
	uvs := [8]float32{0, 1, 1, 1, 1, 0, 0, 0}
	r.drawQuad(&quad, &uvs)
}

// warpTexture uploads (once) the RG displacement mesh for an output.
func (r *GLRenderer) warpTexture(w *WarpMesh) C.GLuint {
	if tex, ok := r.warpTexCache[w.MeshPath]; ok {
		return tex
	}
	var tex C.GLuint
	C.glGenTextures(1, &tex)
	C.glBindTexture(C.GL_TEXTURE_2D, tex)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MIN_FILTER, C.GL_LINEAR)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MAG_FILTER, C.GL_LINEAR)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_WRAP_S, C.GL_CLAMP_TO_EDGE)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_WRAP_T, C.GL_CLAMP_TO_EDGE)
	if len(w.Pixels) > 0 {
		C.glTexImage2D(C.GL_TEXTURE_2D, 0, C.GL_RG8, C.GLsizei(w.Width), C.GLsizei(w.Height),
			0, C.GL_RG, C.GL_UNSIGNED_BYTE, unsafe.Pointer(&w.Pixels[0]))
	}
	r.warpTexCache[w.MeshPath] = tex
	return tex
}

// DrawOSDItems renders the OSD quads last, over every layer.
func (r *GLRenderer) DrawOSDItems(items []*OSDItem, viewportW, viewportH float64) {
	if len(items) == 0 {
		return
	}
	prog := r.osdProg
	C.glUseProgram(prog.id)
	model := Mat4Identity()
	C.glUniformMatrix4fv(prog.uniform("uModel"), 1, C.GL_FALSE, (*C.GLfloat)(unsafe.Pointer(&model[0])))
	setBlendMode(BlendNormal)

	for _, item := range items {
		tex := r.osdTexture(item)
		C.glActiveTexture(C.GL_TEXTURE0)
		C.glBindTexture(C.GL_TEXTURE_2D, tex)
		C.glUniform1i(prog.uniform("uTex"), 0)
		C.glUniform4f(prog.uniform("uColor"),
			C.GLfloat(item.Color[0]), C.GLfloat(item.Color[1]),
			C.GLfloat(item.Color[2]), C.GLfloat(item.Color[3]))

		// Item rect in normalised [0,1] canvas space -> NDC.
		x0 := float32(item.X*2 - 1)
		y0 := float32(1 - item.Y*2)
		x1 := float32((item.X+item.W)*2 - 1)
		y1 := float32(1 - (item.Y+item.H)*2)
		quad := [8]float32{x0, y0, x1, y0, x1, y1, x0, y1}
		uvs := [8]float32{0, 0, 1, 0, 1, 1, 0, 1}
		r.drawQuad(&quad, &uvs)
	}
}

// osdTexture uploads the item's alpha bitmap; OSD items are re-rasterised
// only when their text changes, so the producer caches and we upload on
// generation bump.
func (r *GLRenderer) osdTexture(item *OSDItem) C.GLuint {
	if item.texID == 0 {
		var tex C.GLuint
		C.glGenTextures(1, &tex)
		item.texID = uint32(tex)
		item.texGen = ^uint64(0)
	}
	tex := C.GLuint(item.texID)
	if item.texGen != item.Generation && len(item.Bitmap) > 0 {
		C.glBindTexture(C.GL_TEXTURE_2D, tex)
		C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MIN_FILTER, C.GL_LINEAR)
		C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MAG_FILTER, C.GL_LINEAR)
		C.glPixelStorei(C.GL_UNPACK_ALIGNMENT, 1)
		C.glTexImage2D(C.GL_TEXTURE_2D, 0, C.GL_R8, C.GLsizei(item.BitmapW), C.GLsizei(item.BitmapH),
			0, C.GL_RED, C.GL_UNSIGNED_BYTE, unsafe.Pointer(&item.Bitmap[0]))
		C.glPixelStorei(C.GL_UNPACK_ALIGNMENT, 4)
		item.texGen = item.Generation
	}
	return tex
}

// ReleaseFrameResources drops EGLImages between frames; called after all
// outputs consumed the canvas so the layer can release its GPU handle.
func (r *GLRenderer) ReleaseFrameResources() {
	r.releasePlaneImages()
}

func (r *GLRenderer) Destroy() {
	r.releasePlaneImages()
	for _, tex := range r.warpTexCache {
		t := tex
		C.glDeleteTextures(1, &t)
	}
	C.glDeleteTextures(1, &r.cpuTex)
	C.glDeleteTextures(2, &r.planeTex[0])
	C.glDeleteBuffers(1, &r.quadVBO)
	C.glDeleteBuffers(1, &r.uvVBO)
	C.glDeleteVertexArrays(1, &r.vao)
}
