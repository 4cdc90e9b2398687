// drm_manager.go - DRM/KMS output enumeration, master acquisition and mode selection

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

// connectorTypeName maps a DRM connector type to its conventional name
// prefix ("HDMI-A", "DP", ...). Mirrors the kernel's naming.
static const char* connectorTypeName(uint32_t type) {
    switch (type) {
    case DRM_MODE_CONNECTOR_VGA: return "VGA";
    case DRM_MODE_CONNECTOR_DVII: return "DVI-I";
    case DRM_MODE_CONNECTOR_DVID: return "DVI-D";
    case DRM_MODE_CONNECTOR_DVIA: return "DVI-A";
    case DRM_MODE_CONNECTOR_Composite: return "Composite";
    case DRM_MODE_CONNECTOR_SVIDEO: return "SVIDEO";
    case DRM_MODE_CONNECTOR_LVDS: return "LVDS";
    case DRM_MODE_CONNECTOR_Component: return "Component";
    case DRM_MODE_CONNECTOR_9PinDIN: return "DIN";
    case DRM_MODE_CONNECTOR_DisplayPort: return "DP";
    case DRM_MODE_CONNECTOR_HDMIA: return "HDMI-A";
    case DRM_MODE_CONNECTOR_HDMIB: return "HDMI-B";
    case DRM_MODE_CONNECTOR_TV: return "TV";
    case DRM_MODE_CONNECTOR_eDP: return "eDP";
    case DRM_MODE_CONNECTOR_VIRTUAL: return "Virtual";
    case DRM_MODE_CONNECTOR_DSI: return "DSI";
    default: return "Unknown";
    }
}
*/
import "C"
import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DisplayMode is one KMS mode line.
type DisplayMode struct {
	Width     int
	Height    int
	Refresh   int
	Preferred bool
	raw       C.drmModeModeInfo
}

// DRMConnector is a connected output with its mode list and parsed EDID.
type DRMConnector struct {
	ID        uint32
	Name      string // "HDMI-A-1"
	Connected bool
	Modes     []DisplayMode
	EDID      *EDIDInfo
	CrtcID    uint32
	WidthMM   int
	HeightMM  int
}

// DRMManager owns the card fd, DRM master, and the connector/CRTC
// topology, spec 4.8.
type DRMManager struct {
	fd       int
	cardPath string
	isMaster bool
	atomic   bool

	connectors []*DRMConnector
	usedCrtcs  map[uint32]bool
}

// OpenDRMManager auto-detects a card node, preferring one with connected
// outputs, acquires master and enumerates the topology. No device or no
// connected output is fatal, spec 7.
func OpenDRMManager(cardOverride string) (*DRMManager, error) {
	candidates := []string{cardOverride}
	if cardOverride == "" {
		candidates = candidates[:0]
		for i := 0; i < 8; i++ {
			candidates = append(candidates, fmt.Sprintf("/dev/dri/card%d", i))
		}
	}

	var best *DRMManager
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := openCard(path)
		if err != nil {
			fmt.Printf("DRM: skipping %s: %v\n", path, err)
			continue
		}
		if m.connectedCount() > 0 {
			if best != nil {
				best.Close()
			}
			best = m
			break
		}
		if best == nil {
			best = m
		} else {
			m.Close()
		}
	}
	if best == nil {
		return nil, compositorErr("drm", "device detection", fmt.Errorf("no usable DRM device"))
	}
	if best.connectedCount() == 0 {
		best.Close()
		return nil, compositorErr("drm", "output detection", fmt.Errorf("no connected outputs on %s", best.cardPath))
	}
	return best, nil
}

func openCard(path string) (*DRMManager, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	m := &DRMManager{fd: fd, cardPath: path, usedCrtcs: make(map[uint32]bool)}

	m.acquireMaster()

	// Universal planes first, then atomic; atomic requires universal
	// planes, spec 4.8.
	C.drmSetClientCap(C.int(fd), C.DRM_CLIENT_CAP_UNIVERSAL_PLANES, 1)
	if C.drmSetClientCap(C.int(fd), C.DRM_CLIENT_CAP_ATOMIC, 1) == 0 {
		m.atomic = true
	}

	if err := m.enumerate(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// acquireMaster tries the seat/logind helper first, then direct
// drmSetMaster, spec 4.8. Losing master at runtime (VT switch) is handled
// by re-acquisition on hotplug polls.
func (m *DRMManager) acquireMaster() {
	if acquireSeatMaster(m.cardPath, m.fd) {
		m.isMaster = true
		return
	}
	if ret := C.drmSetMaster(C.int(m.fd)); ret == 0 {
		m.isMaster = true
		return
	} else {
		fmt.Printf("DRM: drmSetMaster failed on %s (%d); continuing unmastered\n",
			m.cardPath, int(ret))
	}
}

func (m *DRMManager) enumerate() error {
	res := C.drmModeGetResources(C.int(m.fd))
	if res == nil {
		return compositorErr("drm", "resource enumeration", fmt.Errorf("drmModeGetResources failed"))
	}
	defer C.drmModeFreeResources(res)

	m.connectors = nil
	connIDs := unsafe.Slice(res.connectors, int(res.count_connectors))
	typeCounts := make(map[string]int)

	for _, connID := range connIDs {
		conn := C.drmModeGetConnector(C.int(m.fd), connID)
		if conn == nil {
			continue
		}
		typeName := C.GoString(C.connectorTypeName(conn.connector_type))
		typeCounts[typeName]++
		c := &DRMConnector{
			ID:        uint32(conn.connector_id),
			Name:      fmt.Sprintf("%s-%d", typeName, typeCounts[typeName]),
			Connected: conn.connection == C.DRM_MODE_CONNECTED,
			WidthMM:   int(conn.mmWidth),
			HeightMM:  int(conn.mmHeight),
		}

		if c.Connected {
			modes := unsafe.Slice(conn.modes, int(conn.count_modes))
			for _, mode := range modes {
				c.Modes = append(c.Modes, DisplayMode{
					Width:     int(mode.hdisplay),
					Height:    int(mode.vdisplay),
					Refresh:   int(mode.vrefresh),
					Preferred: mode._type&C.DRM_MODE_TYPE_PREFERRED != 0,
					raw:       mode,
				})
			}
			c.EDID = m.readEDID(uint32(conn.connector_id))
			c.CrtcID = m.allocateCrtc(res, conn)
		}

		m.connectors = append(m.connectors, c)
		C.drmModeFreeConnector(conn)
	}
	return nil
}

// allocateCrtc picks a free CRTC reachable from one of the connector's
// encoders.
func (m *DRMManager) allocateCrtc(res *C.drmModeRes, conn *C.drmModeConnector) uint32 {
	encIDs := unsafe.Slice(conn.encoders, int(conn.count_encoders))
	crtcIDs := unsafe.Slice(res.crtcs, int(res.count_crtcs))
	for _, encID := range encIDs {
		enc := C.drmModeGetEncoder(C.int(m.fd), encID)
		if enc == nil {
			continue
		}
		for i, crtcID := range crtcIDs {
			if enc.possible_crtcs&(1<<uint(i)) == 0 {
				continue
			}
			if m.usedCrtcs[uint32(crtcID)] {
				continue
			}
			m.usedCrtcs[uint32(crtcID)] = true
			C.drmModeFreeEncoder(enc)
			return uint32(crtcID)
		}
		C.drmModeFreeEncoder(enc)
	}
	return 0
}

// readEDID pulls the EDID blob property; parse failure falls back to the
// mode list only, spec 7.
func (m *DRMManager) readEDID(connectorID uint32) *EDIDInfo {
	props := C.drmModeObjectGetProperties(C.int(m.fd), C.uint32_t(connectorID),
		C.DRM_MODE_OBJECT_CONNECTOR)
	if props == nil {
		return nil
	}
	defer C.drmModeFreeObjectProperties(props)

	propIDs := unsafe.Slice(props.props, int(props.count_props))
	propVals := unsafe.Slice(props.prop_values, int(props.count_props))
	for i, propID := range propIDs {
		prop := C.drmModeGetProperty(C.int(m.fd), propID)
		if prop == nil {
			continue
		}
		name := C.GoString(&prop.name[0])
		C.drmModeFreeProperty(prop)
		if name != "EDID" {
			continue
		}
		blob := C.drmModeGetPropertyBlob(C.int(m.fd), C.uint32_t(propVals[i]))
		if blob == nil {
			return nil
		}
		data := C.GoBytes(blob.data, C.int(blob.length))
		C.drmModeFreePropertyBlob(blob)
		info, err := ParseEDID(data)
		if err != nil {
			fmt.Printf("DRM: EDID parse failed for connector %d: %v\n", connectorID, err)
			return nil
		}
		return info
	}
	return nil
}

// ConnectedOutputs returns the connected connectors with an allocated CRTC.
func (m *DRMManager) ConnectedOutputs() []*DRMConnector {
	var out []*DRMConnector
	for _, c := range m.connectors {
		if c.Connected && c.CrtcID != 0 {
			out = append(out, c)
		}
	}
	return out
}

func (m *DRMManager) connectedCount() int {
	n := 0
	for _, c := range m.connectors {
		if c.Connected {
			n++
		}
	}
	return n
}

func (m *DRMManager) AtomicSupported() bool { return m.atomic }

func (m *DRMManager) FD() int { return m.fd }

// SelectMode applies the policy to a connector's mode list, spec 4.8.
func SelectMode(c *DRMConnector, policy ModePolicy, customW, customH, customHz int) (DisplayMode, bool) {
	if len(c.Modes) == 0 {
		return DisplayMode{}, false
	}
	switch policy {
	case ModeNative:
		for _, mode := range c.Modes {
			if mode.Preferred {
				return mode, true
			}
		}
		return c.Modes[0], true
	case ModeMaximum:
		best := c.Modes[0]
		for _, mode := range c.Modes[1:] {
			if mode.Width*mode.Height > best.Width*best.Height ||
				(mode.Width*mode.Height == best.Width*best.Height && mode.Refresh > best.Refresh) {
				best = mode
			}
		}
		return best, true
	case Mode720p:
		return closestMode(c.Modes, 1280, 720, 0), true
	case Mode1080p:
		return closestMode(c.Modes, 1920, 1080, 0), true
	case Mode4K:
		return closestMode(c.Modes, 3840, 2160, 0), true
	case ModeCustom:
		return closestMode(c.Modes, customW, customH, customHz), true
	}
	return c.Modes[0], true
}

// closestMode prefers an exact resolution match (highest refresh, or the
// requested refresh), else the nearest by pixel-count distance.
func closestMode(modes []DisplayMode, w, h, hz int) DisplayMode {
	var exact []DisplayMode
	for _, m := range modes {
		if m.Width == w && m.Height == h {
			exact = append(exact, m)
		}
	}
	if len(exact) > 0 {
		best := exact[0]
		for _, m := range exact[1:] {
			if hz > 0 {
				if abs(m.Refresh-hz) < abs(best.Refresh-hz) {
					best = m
				}
			} else if m.Refresh > best.Refresh {
				best = m
			}
		}
		return best
	}
	best := modes[0]
	target := w * h
	for _, m := range modes[1:] {
		if abs(m.Width*m.Height-target) < abs(best.Width*best.Height-target) {
			best = m
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// PollHotplug re-enumerates the topology; returns true when the set of
// connected connectors changed.
func (m *DRMManager) PollHotplug() bool {
	// Master lost to a VT switch is re-acquired here.
	if C.drmIsMaster(C.int(m.fd)) == 0 {
		m.isMaster = false
		m.acquireMaster()
	}
	before := m.connectedCount()
	beforeIDs := make(map[uint32]bool)
	for _, c := range m.connectors {
		if c.Connected {
			beforeIDs[c.ID] = true
		}
	}
	m.usedCrtcs = make(map[uint32]bool)
	if err := m.enumerate(); err != nil {
		return false
	}
	if m.connectedCount() != before {
		return true
	}
	for _, c := range m.connectors {
		if c.Connected && !beforeIDs[c.ID] {
			return true
		}
	}
	return false
}

func (m *DRMManager) Close() {
	if m.isMaster {
		C.drmDropMaster(C.int(m.fd))
		releaseSeatMaster(m.cardPath)
		m.isMaster = false
	}
	if m.fd >= 0 {
		unix.Close(m.fd)
		m.fd = -1
	}
}
