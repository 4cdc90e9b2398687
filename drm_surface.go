// drm_surface.go - Per-connector GBM/EGL surface with page-flip scheduling

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

/*
#cgo pkg-config: libdrm gbm
#cgo linux LDFLAGS: -ldrm -lgbm -lEGL -lGLESv2

#include <stdlib.h>
#include <gbm.h>
#include <xf86drm.h>
#include <xf86drmMode.h>
#include <EGL/egl.h>
#include <EGL/eglext.h>

extern void goPageFlipHandler(int fd, unsigned int sequence,
    unsigned int tv_sec, unsigned int tv_usec, unsigned int crtc_id,
    void *user_data);

// page_flip_handler2 carries the CRTC id, which routes atomic-commit
// completions (one event per CRTC, shared user data) to the right surface.
static void pageFlipHandler2(int fd, unsigned int sequence,
    unsigned int tv_sec, unsigned int tv_usec, unsigned int crtc_id,
    void *user_data) {
    goPageFlipHandler(fd, sequence, tv_sec, tv_usec, crtc_id, user_data);
}

static drmEventContext *newEventContext(void) {
    static drmEventContext ctx;
    ctx.version = 3;
    ctx.page_flip_handler2 = pageFlipHandler2;
    return &ctx;
}

// fbForBo returns (creating if needed) the DRM framebuffer id cached on a
// gbm_bo. The destroy callback releases the fb when GBM recycles the bo.
static void boDestroyFB(struct gbm_bo *bo, void *data) {
    uint32_t fb = (uint32_t)(uintptr_t)data;
    if (fb) {
        drmModeRmFB(gbm_device_get_fd(gbm_bo_get_device(bo)), fb);
    }
}

static uint32_t fbForBo(int fd, struct gbm_bo *bo) {
    void *data = gbm_bo_get_user_data(bo);
    if (data) {
        return (uint32_t)(uintptr_t)data;
    }
    uint32_t width = gbm_bo_get_width(bo);
    uint32_t height = gbm_bo_get_height(bo);
    uint32_t stride = gbm_bo_get_stride(bo);
    uint32_t handle = gbm_bo_get_handle(bo).u32;
    uint32_t fb = 0;
    if (drmModeAddFB(fd, width, height, 24, 32, stride, handle, &fb) != 0) {
        return 0;
    }
    gbm_bo_set_user_data(bo, (void*)(uintptr_t)fb, boDestroyFB);
    return fb;
}
*/
import "C"
import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sharedEGL is the process-wide EGL display created from the GBM device;
// all surfaces share it so their contexts can share GL objects (the canvas
// texture in particular), spec 4.8.
type sharedEGL struct {
	gbmDevice  *C.struct_gbm_device
	display    C.EGLDisplay
	config     C.EGLConfig
	rootCtx    C.EGLContext
	usingES    bool
}

func newSharedEGL(drmFD int) (*sharedEGL, error) {
	gbmDev := C.gbm_create_device(C.int(drmFD))
	if gbmDev == nil {
		return nil, compositorErr("egl", "gbm device creation", fmt.Errorf("gbm_create_device failed"))
	}

	display := C.eglGetDisplay(C.EGLNativeDisplayType(unsafe.Pointer(gbmDev)))
	if display == nil {
		return nil, compositorErr("egl", "display creation", fmt.Errorf("eglGetDisplay failed"))
	}
	var major, minor C.EGLint
	if C.eglInitialize(display, &major, &minor) == C.EGL_FALSE {
		return nil, compositorErr("egl", "initialise", eglError())
	}

	configAttribs := []C.EGLint{
		C.EGL_SURFACE_TYPE, C.EGL_WINDOW_BIT,
		C.EGL_RED_SIZE, 8,
		C.EGL_GREEN_SIZE, 8,
		C.EGL_BLUE_SIZE, 8,
		C.EGL_ALPHA_SIZE, 0,
		C.EGL_RENDERABLE_TYPE, C.EGL_OPENGL_ES2_BIT,
		C.EGL_NONE,
	}
	var config C.EGLConfig
	var numConfigs C.EGLint
	if C.eglChooseConfig(display, &configAttribs[0], &config, 1, &numConfigs) == C.EGL_FALSE || numConfigs == 0 {
		return nil, compositorErr("egl", "config selection", eglError())
	}

	C.eglBindAPI(C.EGL_OPENGL_ES_API)
	ctxAttribs := []C.EGLint{C.EGL_CONTEXT_CLIENT_VERSION, 3, C.EGL_NONE}
	usingES2 := false
	rootCtx := C.eglCreateContext(display, config, nil, &ctxAttribs[0])
	if rootCtx == nil {
		// ES 2.0 fallback, spec 4.8.
		ctxAttribs[1] = 2
		rootCtx = C.eglCreateContext(display, config, nil, &ctxAttribs[0])
		if rootCtx == nil {
			return nil, compositorErr("egl", "context creation", eglError())
		}
		usingES2 = true
		fmt.Printf("EGL: ES 3 unavailable, using ES 2.0 context\n")
	}

	return &sharedEGL{
		gbmDevice: gbmDev,
		display:   display,
		config:    config,
		rootCtx:   rootCtx,
		usingES:   usingES2,
	}, nil
}

func eglError() error {
	return fmt.Errorf("EGL error 0x%04x", uint32(C.eglGetError()))
}

func (s *sharedEGL) Display() unsafe.Pointer { return unsafe.Pointer(s.display) }

func (s *sharedEGL) Destroy() {
	C.eglMakeCurrent(s.display, nil,
		nil, nil)
	C.eglDestroyContext(s.display, s.rootCtx)
	C.eglTerminate(s.display)
	C.gbm_device_destroy(s.gbmDevice)
}

// surfaceRegistry routes flip-completion events back to Go surfaces: by
// user-data cookie for legacy flips, by CRTC id for atomic commits.
var (
	surfaceRegistryMu sync.Mutex
	surfaceRegistry   = make(map[uintptr]*DRMSurface)
	surfaceByCrtc     = make(map[uint32]*DRMSurface)
	surfaceCookie     uintptr
)

func registerSurface(s *DRMSurface) uintptr {
	surfaceRegistryMu.Lock()
	defer surfaceRegistryMu.Unlock()
	surfaceCookie++
	surfaceRegistry[surfaceCookie] = s
	surfaceByCrtc[s.connector.CrtcID] = s
	return surfaceCookie
}

func unregisterSurface(cookie uintptr) {
	surfaceRegistryMu.Lock()
	defer surfaceRegistryMu.Unlock()
	if s, ok := surfaceRegistry[cookie]; ok {
		delete(surfaceByCrtc, s.connector.CrtcID)
	}
	delete(surfaceRegistry, cookie)
}

//export goPageFlipHandler
func goPageFlipHandler(fd C.int, sequence, tvSec, tvUsec, crtcID C.uint, userData unsafe.Pointer) {
	surfaceRegistryMu.Lock()
	s := surfaceByCrtc[uint32(crtcID)]
	if s == nil {
		s = surfaceRegistry[uintptr(userData)]
	}
	surfaceRegistryMu.Unlock()
	if s == nil {
		return
	}
	ust := int64(tvSec)*1_000_000_000 + int64(tvUsec)*1000
	s.onFlipComplete(ust, uint64(sequence))
}

// DRMSurface ties one GBM/EGL surface to one CRTC, spec 4.8. Two gbm_bos
// rotate between scanout and pending; at most one flip is in flight.
type DRMSurface struct {
	drmFD     int
	egl       *sharedEGL
	connector *DRMConnector
	mode      DisplayMode

	gbmSurface *C.struct_gbm_surface
	eglSurface C.EGLSurface
	eglContext C.EGLContext

	currentBO *C.struct_gbm_bo // on scanout
	pendingBO *C.struct_gbm_bo // queued for flip

	cookie      uintptr
	flipPending bool
	modeSet     bool

	Timing *PresentationTiming

	pendingFB uint32
}

// NewDRMSurface creates the GBM surface (XRGB8888, SCANOUT|RENDERING), the
// EGL window surface, and a context shared with the root. A failure skips
// this output; the caller proceeds with the rest, spec 7.
func NewDRMSurface(drmFD int, egl *sharedEGL, conn *DRMConnector, mode DisplayMode) (*DRMSurface, error) {
	gbmSurf := C.gbm_surface_create(egl.gbmDevice,
		C.uint32_t(mode.Width), C.uint32_t(mode.Height),
		C.GBM_FORMAT_XRGB8888,
		C.GBM_BO_USE_SCANOUT|C.GBM_BO_USE_RENDERING)
	if gbmSurf == nil {
		return nil, compositorErr("drm", fmt.Sprintf("gbm surface for %s", conn.Name),
			fmt.Errorf("gbm_surface_create failed"))
	}

	eglSurf := C.eglCreateWindowSurface(egl.display, egl.config,
		C.EGLNativeWindowType(unsafe.Pointer(gbmSurf)), nil)
	if eglSurf == nil {
		C.gbm_surface_destroy(gbmSurf)
		return nil, compositorErr("egl", fmt.Sprintf("window surface for %s", conn.Name), eglError())
	}

	ctxAttribs := []C.EGLint{C.EGL_CONTEXT_CLIENT_VERSION, 3, C.EGL_NONE}
	ctx := C.eglCreateContext(egl.display, egl.config, egl.rootCtx, &ctxAttribs[0])
	if ctx == nil {
		C.eglDestroySurface(egl.display, eglSurf)
		C.gbm_surface_destroy(gbmSurf)
		return nil, compositorErr("egl", fmt.Sprintf("context for %s", conn.Name), eglError())
	}

	s := &DRMSurface{
		drmFD:      drmFD,
		egl:        egl,
		connector:  conn,
		mode:       mode,
		gbmSurface: gbmSurf,
		eglSurface: eglSurf,
		eglContext: ctx,
		Timing:     NewPresentationTiming(conn.Name),
	}
	s.cookie = registerSurface(s)
	return s, nil
}

func (s *DRMSurface) Name() string      { return s.connector.Name }
func (s *DRMSurface) Mode() DisplayMode { return s.mode }
func (s *DRMSurface) CrtcID() uint32    { return s.connector.CrtcID }

func (s *DRMSurface) MakeCurrent() bool {
	return C.eglMakeCurrent(s.egl.display, s.eglSurface, s.eglSurface, s.eglContext) == C.EGL_TRUE
}

// IsFlipPending reports whether a flip is in flight; the caller must wait
// before scheduling another, spec 4.8.
func (s *DRMSurface) IsFlipPending() bool { return s.flipPending }

// SwapBuffers finishes the GL frame into the GBM front buffer and locks it,
// yielding the framebuffer id for the flip. The buffer stays locked until
// its flip completes.
func (s *DRMSurface) SwapBuffers() (uint32, bool) {
	if C.eglSwapBuffers(s.egl.display, s.eglSurface) == C.EGL_FALSE {
		fmt.Printf("DRM: eglSwapBuffers failed on %s: %v\n", s.Name(), eglError())
		return 0, false
	}
	bo := C.gbm_surface_lock_front_buffer(s.gbmSurface)
	if bo == nil {
		fmt.Printf("DRM: no front buffer on %s\n", s.Name())
		return 0, false
	}
	fb := uint32(C.fbForBo(C.int(s.drmFD), bo))
	if fb == 0 {
		C.gbm_surface_release_buffer(s.gbmSurface, bo)
		fmt.Printf("DRM: drmModeAddFB failed on %s\n", s.Name())
		return 0, false
	}
	s.pendingBO = bo
	s.pendingFB = fb
	return fb, true
}

// ScheduleFlip submits the locked front buffer. The first frame does a full
// modeset via drmModeSetCrtc; later frames page-flip with an event, spec
// 4.8.
func (s *DRMSurface) ScheduleFlip() bool {
	if s.pendingBO == nil {
		return false
	}
	if !s.modeSet {
		connID := C.uint32_t(s.connector.ID)
		if C.drmModeSetCrtc(C.int(s.drmFD), C.uint32_t(s.connector.CrtcID),
			C.uint32_t(s.pendingFB), 0, 0, &connID, 1, &s.mode.raw) != 0 {
			fmt.Printf("DRM: drmModeSetCrtc failed on %s\n", s.Name())
			C.gbm_surface_release_buffer(s.gbmSurface, s.pendingBO)
			s.pendingBO = nil
			return false
		}
		s.modeSet = true
		s.retireBuffers()
		return true
	}

	if C.drmModePageFlip(C.int(s.drmFD), C.uint32_t(s.connector.CrtcID),
		C.uint32_t(s.pendingFB), C.DRM_MODE_PAGE_FLIP_EVENT,
		unsafe.Pointer(s.cookie)) != 0 {
		fmt.Printf("DRM: drmModePageFlip failed on %s\n", s.Name())
		C.gbm_surface_release_buffer(s.gbmSurface, s.pendingBO)
		s.pendingBO = nil
		return false
	}
	s.flipPending = true
	return true
}

// MarkFlipSubmitted is used by the atomic commit path, which schedules the
// flip externally, spec 4.8.
func (s *DRMSurface) MarkFlipSubmitted() {
	s.flipPending = true
}

// PendingFB is the framebuffer id locked by the last SwapBuffers; the
// atomic path feeds it into the commit.
func (s *DRMSurface) PendingFB() uint32 { return s.pendingFB }

// onFlipComplete runs from drmHandleEvent on the main thread: record
// timing, retire the previous scanout buffer, clear the pending flag.
func (s *DRMSurface) onFlipComplete(ust int64, msc uint64) {
	s.flipPending = false
	s.Timing.RecordFlip(ust, msc, time.Now().UnixNano())
	s.retireBuffers()
}

// retireBuffers promotes the pending buffer to scanout and releases the
// previous one back to GBM. The previous front buffer is released only
// after its replacement's flip completed.
func (s *DRMSurface) retireBuffers() {
	if s.currentBO != nil {
		C.gbm_surface_release_buffer(s.gbmSurface, s.currentBO)
	}
	s.currentBO = s.pendingBO
	s.pendingBO = nil
}

// DrainFlipEvents processes any completed page-flip events without
// blocking.
func DrainFlipEvents(drmFD int) {
	for {
		fds := []unix.PollFd{{Fd: int32(drmFD), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 0)
		if err != nil || n == 0 || fds[0].Revents&unix.POLLIN == 0 {
			return
		}
		C.drmHandleEvent(C.int(drmFD), C.newEventContext())
	}
}

// WaitForFlip blocks until this surface's pending flip completes, with the
// 1 s timeout as a warning rather than a failure, spec 5.
func (s *DRMSurface) WaitForFlip() {
	deadline := time.Now().Add(FLIP_WAIT_TIMEOUT)
	for s.flipPending {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			fmt.Printf("DRM: flip wait timed out on %s\n", s.Name())
			return
		}
		fds := []unix.PollFd{{Fd: int32(s.drmFD), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(remaining.Milliseconds())+1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			fmt.Printf("DRM: poll failed waiting for flip on %s: %v\n", s.Name(), err)
			return
		}
		if n > 0 && fds[0].Revents&unix.POLLIN != 0 {
			C.drmHandleEvent(C.int(s.drmFD), C.newEventContext())
		}
	}
}

func (s *DRMSurface) Destroy() {
	unregisterSurface(s.cookie)
	C.eglMakeCurrent(s.egl.display, nil,
		nil, nil)
	C.eglDestroyContext(s.egl.display, s.eglContext)
	C.eglDestroySurface(s.egl.display, s.eglSurface)
	if s.currentBO != nil {
		C.gbm_surface_release_buffer(s.gbmSurface, s.currentBO)
	}
	if s.pendingBO != nil {
		C.gbm_surface_release_buffer(s.gbmSurface, s.pendingBO)
	}
	C.gbm_surface_destroy(s.gbmSurface)
}
