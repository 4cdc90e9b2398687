// hwdec_vaapi.go - VA-API probe and zero-copy surface export via purego

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

// The libva bindings here are loaded with dlopen (purego) rather than cgo
// so the binary builds and runs on machines without libva-dev; the probe
// simply reports unavailable. The DRM/GBM/EGL presentation layer is cgo.

package main

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

const (
	VA_STATUS_SUCCESS = 0

	// vaExportSurfaceHandle memory type and flags.
	VA_SURFACE_ATTRIB_MEM_TYPE_DRM_PRIME_2 = 0x40000000
	VA_EXPORT_SURFACE_SEPARATE_LAYERS      = 0x0004
	VA_EXPORT_SURFACE_READ_ONLY            = 0x0001

	vaProfileH264Main     = 6
	vaProfileH264High     = 7
	vaProfileHEVCMain     = 17
	vaProfileHEVCMain10   = 18
	vaProfileAV1Profile0  = 32
)

// vaDRMPRIMESurfaceDescriptor mirrors VADRMPRIMESurfaceDescriptor from
// va_drmcommon.h. Layout must match the C struct exactly.
type vaDRMPRIMESurfaceDescriptor struct {
	FourCC     uint32
	Width      uint32
	Height     uint32
	NumObjects uint32
	Objects    [4]struct {
		FD                 int32
		Size               uint32
		DRMFormatModifier  uint64
	}
	NumLayers uint32
	Layers    [4]struct {
		DRMFormat  uint32
		NumPlanes  uint32
		ObjectIdx  [4]uint32
		Offset     [4]uint32
		Pitch      [4]uint32
	}
}

// VAAPIDevice owns a VA display opened on a DRM render node and the dlopen'd
// libva entry points.
type VAAPIDevice struct {
	renderFD int
	display  uintptr

	vaInitialize          func(display uintptr, major, minor *int32) int32
	vaTerminate           func(display uintptr) int32
	vaErrorStr            func(status int32) string
	vaMaxNumProfiles      func(display uintptr) int32
	vaQueryConfigProfiles func(display uintptr, profiles *int32, num *int32) int32
	vaSyncSurface         func(display uintptr, surface uint32) int32
	vaExportSurfaceHandle func(display uintptr, surface uint32, memType uint32, flags uint32, desc unsafe.Pointer) int32
	vaDestroySurfaces     func(display uintptr, surfaces *uint32, num int32) int32

	profiles map[int32]bool
}

// OpenVAAPIDevice probes for a usable render node. Returns nil (not an
// error) when VA-API is unavailable; callers fall back to software decode.
func OpenVAAPIDevice(renderNode string) *VAAPIDevice {
	if renderNode == "" {
		renderNode = firstRenderNode()
	}
	if renderNode == "" {
		return nil
	}
	fd, err := unix.Open(renderNode, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil
	}

	libva, err := purego.Dlopen("libva.so.2", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		unix.Close(fd)
		return nil
	}
	libvaDRM, err := purego.Dlopen("libva-drm.so.2", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		unix.Close(fd)
		return nil
	}

	var vaGetDisplayDRM func(fd int32) uintptr
	purego.RegisterLibFunc(&vaGetDisplayDRM, libvaDRM, "vaGetDisplayDRM")

	dev := &VAAPIDevice{renderFD: fd}
	purego.RegisterLibFunc(&dev.vaInitialize, libva, "vaInitialize")
	purego.RegisterLibFunc(&dev.vaTerminate, libva, "vaTerminate")
	purego.RegisterLibFunc(&dev.vaErrorStr, libva, "vaErrorStr")
	purego.RegisterLibFunc(&dev.vaMaxNumProfiles, libva, "vaMaxNumProfiles")
	purego.RegisterLibFunc(&dev.vaQueryConfigProfiles, libva, "vaQueryConfigProfiles")
	purego.RegisterLibFunc(&dev.vaSyncSurface, libva, "vaSyncSurface")
	purego.RegisterLibFunc(&dev.vaExportSurfaceHandle, libva, "vaExportSurfaceHandle")
	purego.RegisterLibFunc(&dev.vaDestroySurfaces, libva, "vaDestroySurfaces")

	dev.display = vaGetDisplayDRM(int32(fd))
	if dev.display == 0 {
		unix.Close(fd)
		return nil
	}
	var major, minor int32
	if status := dev.vaInitialize(dev.display, &major, &minor); status != VA_STATUS_SUCCESS {
		unix.Close(fd)
		return nil
	}
	fmt.Printf("VAAPI: initialised %d.%d on %s\n", major, minor, renderNode)

	dev.queryProfiles()
	return dev
}

func firstRenderNode() string {
	for i := 128; i < 136; i++ {
		node := fmt.Sprintf("/dev/dri/renderD%d", i)
		if _, err := os.Stat(node); err == nil {
			return node
		}
	}
	return ""
}

func (d *VAAPIDevice) queryProfiles() {
	d.profiles = make(map[int32]bool)
	max := d.vaMaxNumProfiles(d.display)
	if max <= 0 {
		return
	}
	profiles := make([]int32, max)
	var num int32
	if status := d.vaQueryConfigProfiles(d.display, &profiles[0], &num); status != VA_STATUS_SUCCESS {
		return
	}
	for _, p := range profiles[:num] {
		d.profiles[p] = true
	}
}

// SupportsCodec reports whether the device advertises a decode profile for
// the codec class.
func (d *VAAPIDevice) SupportsCodec(c CodecClass) bool {
	if d == nil {
		return false
	}
	switch c {
	case CodecH264:
		return d.profiles[vaProfileH264Main] || d.profiles[vaProfileH264High]
	case CodecHEVC:
		return d.profiles[vaProfileHEVCMain] || d.profiles[vaProfileHEVCMain10]
	case CodecAV1:
		return d.profiles[vaProfileAV1Profile0]
	}
	return false
}

// ExportSurface synchronises a decoded VA surface and exports its DMA-BUF
// plane descriptors (SEPARATE_LAYERS, READ_ONLY). NV12 arrives as one R8
// layer and one GR88 layer at half resolution, spec 4.3. The release
// callback closes every exported fd and returns the surface to the decode
// pool.
func (d *VAAPIDevice) ExportSurface(surface uint32, w, h int, recycle func(uint32)) (*GPUFrame, error) {
	if status := d.vaSyncSurface(d.display, surface); status != VA_STATUS_SUCCESS {
		return nil, fmt.Errorf("vaSyncSurface: %s", d.vaErrorStr(status))
	}

	var desc vaDRMPRIMESurfaceDescriptor
	status := d.vaExportSurfaceHandle(d.display, surface,
		VA_SURFACE_ATTRIB_MEM_TYPE_DRM_PRIME_2,
		VA_EXPORT_SURFACE_SEPARATE_LAYERS|VA_EXPORT_SURFACE_READ_ONLY,
		unsafe.Pointer(&desc))
	if status != VA_STATUS_SUCCESS {
		return nil, fmt.Errorf("vaExportSurfaceHandle: %s", d.vaErrorStr(status))
	}

	planes := make([]GPUPlane, 0, desc.NumLayers)
	for i := uint32(0); i < desc.NumLayers && i < 4; i++ {
		layer := desc.Layers[i]
		obj := desc.Objects[layer.ObjectIdx[0]]
		planes = append(planes, GPUPlane{
			FD:       int(obj.FD),
			Offset:   layer.Offset[0],
			Pitch:    layer.Pitch[0],
			Fourcc:   layer.DRMFormat,
			Modifier: obj.DRMFormatModifier,
		})
	}

	fds := make([]int, 0, desc.NumObjects)
	for i := uint32(0); i < desc.NumObjects && i < 4; i++ {
		fds = append(fds, int(desc.Objects[i].FD))
	}

	frame := NewGPUFrame(GPUFrameVASurface, w, h, planes, func() {
		for _, fd := range fds {
			unix.Close(fd)
		}
		if recycle != nil {
			recycle(surface)
		}
	})
	frame.VASurface = surface
	return frame, nil
}

func (d *VAAPIDevice) Close() {
	if d == nil {
		return
	}
	d.vaTerminate(d.display)
	unix.Close(d.renderFD)
}

// VADecodeService is the decode collaborator: given a frame index, it runs
// the bitstream through the driver and hands back the decoded VA surface id.
// The compositor only synchronises, exports and releases surfaces; demux and
// slice submission live behind this boundary, per the scope split in the
// system overview.
type VADecodeService interface {
	Open(path string) (FrameInfo, error)
	DecodeInto(idx int64) (surface uint32, err error)
	Recycle(surface uint32)
	Close()
}

// vaDecodeServiceFactory is set by the decode driver at init; nil keeps
// every file on the software path.
var vaDecodeServiceFactory func(*VAAPIDevice) VADecodeService

// vaapiFrameServer adapts a VADecodeService plus a VAAPIDevice into the
// HardwareFrameServer the file input source consumes.
type vaapiFrameServer struct {
	device    *VAAPIDevice
	service   VADecodeService
	frameInfo FrameInfo
}

// NewVAAPIFrameServer wires a decode service to the export machinery.
func NewVAAPIFrameServer(device *VAAPIDevice, service VADecodeService) HardwareFrameServer {
	return &vaapiFrameServer{device: device, service: service}
}

func (v *vaapiFrameServer) open(path string) error {
	info, err := v.service.Open(path)
	if err != nil {
		return err
	}
	v.frameInfo = info
	return nil
}

func (v *vaapiFrameServer) info() FrameInfo { return v.frameInfo }

func (v *vaapiFrameServer) frameAt(idx int64) (*GPUFrame, error) {
	surface, err := v.service.DecodeInto(idx)
	if err != nil {
		return nil, err
	}
	return v.device.ExportSurface(surface, v.frameInfo.Width, v.frameInfo.Height, v.service.Recycle)
}

func (v *vaapiFrameServer) close() {
	v.service.Close()
}
