// drm_atomic.go - Atomic multi-output page flips on a single vsync

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

/*
#cgo pkg-config: libdrm
#cgo linux LDFLAGS: -ldrm

#include <stdlib.h>
#include <string.h>
#include <xf86drm.h>
#include <xf86drmMode.h>
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// planeBinding is the primary plane of one CRTC plus the property ids the
// atomic commit needs.
type planeBinding struct {
	planeID  uint32
	fbPropID uint32
}

// AtomicFlipper batches every surface's framebuffer into one atomic commit
// so all outputs flip on the same vsync, spec 4.8.
type AtomicFlipper struct {
	drmFD    int
	bindings map[uint32]planeBinding // keyed by CRTC id
	disabled bool
}

// NewAtomicFlipper discovers the primary plane and FB_ID property for each
// CRTC. Any missing piece disables atomic and the caller falls back to
// legacy per-surface flips.
func NewAtomicFlipper(drmFD int, crtcIDs []uint32) *AtomicFlipper {
	a := &AtomicFlipper{drmFD: drmFD, bindings: make(map[uint32]planeBinding)}

	res := C.drmModeGetResources(C.int(drmFD))
	if res == nil {
		a.disabled = true
		return a
	}
	crtcIndex := make(map[uint32]int)
	allCrtcs := unsafe.Slice(res.crtcs, int(res.count_crtcs))
	for i, id := range allCrtcs {
		crtcIndex[uint32(id)] = i
	}
	C.drmModeFreeResources(res)

	planes := C.drmModeGetPlaneResources(C.int(drmFD))
	if planes == nil {
		a.disabled = true
		return a
	}
	defer C.drmModeFreePlaneResources(planes)

	planeIDs := unsafe.Slice(planes.planes, int(planes.count_planes))
	for _, crtcID := range crtcIDs {
		idx, ok := crtcIndex[crtcID]
		if !ok {
			a.disabled = true
			return a
		}
		found := false
		for _, planeID := range planeIDs {
			plane := C.drmModeGetPlane(C.int(drmFD), planeID)
			if plane == nil {
				continue
			}
			possible := uint32(plane.possible_crtcs)
			C.drmModeFreePlane(plane)
			if possible&(1<<uint(idx)) == 0 {
				continue
			}
			if !isPrimaryPlane(drmFD, uint32(planeID)) {
				continue
			}
			fbProp := findPropertyID(drmFD, uint32(planeID), C.DRM_MODE_OBJECT_PLANE, "FB_ID")
			if fbProp == 0 {
				continue
			}
			a.bindings[crtcID] = planeBinding{planeID: uint32(planeID), fbPropID: fbProp}
			found = true
			break
		}
		if !found {
			fmt.Printf("DRM: no primary plane for CRTC %d; atomic disabled\n", crtcID)
			a.disabled = true
			return a
		}
	}
	return a
}

func isPrimaryPlane(drmFD int, planeID uint32) bool {
	props := C.drmModeObjectGetProperties(C.int(drmFD), C.uint32_t(planeID), C.DRM_MODE_OBJECT_PLANE)
	if props == nil {
		return false
	}
	defer C.drmModeFreeObjectProperties(props)
	ids := unsafe.Slice(props.props, int(props.count_props))
	vals := unsafe.Slice(props.prop_values, int(props.count_props))
	for i, id := range ids {
		prop := C.drmModeGetProperty(C.int(drmFD), id)
		if prop == nil {
			continue
		}
		name := C.GoString(&prop.name[0])
		C.drmModeFreeProperty(prop)
		if name == "type" {
			return vals[i] == C.DRM_PLANE_TYPE_PRIMARY
		}
	}
	return false
}

func findPropertyID(drmFD int, objectID uint32, objectType uint32, name string) uint32 {
	props := C.drmModeObjectGetProperties(C.int(drmFD), C.uint32_t(objectID), C.uint32_t(objectType))
	if props == nil {
		return 0
	}
	defer C.drmModeFreeObjectProperties(props)
	ids := unsafe.Slice(props.props, int(props.count_props))
	for _, id := range ids {
		prop := C.drmModeGetProperty(C.int(drmFD), id)
		if prop == nil {
			continue
		}
		propName := C.GoString(&prop.name[0])
		propID := uint32(prop.prop_id)
		C.drmModeFreeProperty(prop)
		if propName == name {
			return propID
		}
	}
	return 0
}

func (a *AtomicFlipper) Usable() bool { return !a.disabled }

// CommitAll builds one atomic request with (plane, FB_ID, fb) for every
// surface and commits it NONBLOCK with a page-flip event per CRTC. Returns
// false so the caller can fall back to legacy flips, spec 4.8.
func (a *AtomicFlipper) CommitAll(surfaces []*DRMSurface) bool {
	if a.disabled {
		return false
	}
	req := C.drmModeAtomicAlloc()
	if req == nil {
		return false
	}
	defer C.drmModeAtomicFree(req)

	for _, s := range surfaces {
		binding, ok := a.bindings[s.CrtcID()]
		if !ok {
			return false
		}
		if C.drmModeAtomicAddProperty(req, C.uint32_t(binding.planeID),
			C.uint32_t(binding.fbPropID), C.uint64_t(s.PendingFB())) < 0 {
			return false
		}
	}

	// The event's user data routes the completion back to the first
	// surface's handler; per-CRTC events arrive with the same cookie and
	// each surface clears its own pending flag through the shared drain.
	flags := C.uint32_t(C.DRM_MODE_ATOMIC_NONBLOCK | C.DRM_MODE_PAGE_FLIP_EVENT)
	if C.drmModeAtomicCommit(C.int(a.drmFD), req, flags,
		unsafe.Pointer(surfaces[0].cookie)) != 0 {
		return false
	}

	for _, s := range surfaces {
		s.MarkFlipSubmitted()
	}
	return true
}
