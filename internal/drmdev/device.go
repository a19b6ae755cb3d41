//go:build linux

// Package drmdev implements the DeviceRegistry (§2): enumeration and
// opening of DRM render/KMS nodes, atomic-capability probing, and
// selection of the primary (boot_vga) GPU among multiple cards.
//
// Grounded on the teacher's internal/network or device-listing
// packages are absent; the ioctl plumbing instead follows
// other_examples/helixml-helix's DRM lease manager (raw ioctl numbers,
// struct layout, Unix file-descriptor ownership), and fan-out device
// opening follows the teacher's use of golang.org/x/sync/errgroup for
// concurrent, failure-isolated device setup.
package drmdev

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/swlgo/internal/errs"
	"github.com/bnema/swlgo/internal/logger"
)

// Device is one opened DRM node: its file descriptor, whether atomic
// modesetting is available, and whether it is the primary (boot_vga)
// GPU (§2).
type Device struct {
	Path      string
	Primary   bool
	Atomic    bool
	BootVGA   bool
	file      *os.File
	mu        sync.Mutex
	connected []Connector
	crtcIDs   []uint32
	encoders  map[uint32]uint32 // encoder id -> possible_crtcs mask
}

// Connector is a raw enumerated connector, pre-OutputManager (§4.2):
// the pieces OutputManager needs to build an Output.
type Connector struct {
	ID            uint32
	Name          string
	InterfaceType uint32
	Connected     bool
	EncoderID     uint32
	CrtcID        uint32
	WidthMm       uint32
	HeightMm      uint32
	Modes         []Mode
}

// Fd returns the device's open file descriptor.
func (d *Device) Fd() uintptr {
	return d.file.Fd()
}

// Close releases DRM master and closes the device node.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	_ = dropMaster(d.file)
	err := d.file.Close()
	d.file = nil
	return err
}

// Connectors returns the most recently scanned connector list.
func (d *Device) Connectors() []Connector {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Connector, len(d.connected))
	copy(out, d.connected)
	return out
}

// Rescan re-enumerates the device's connectors, encoders, and CRTCs.
// OpenAll calls it once when the device is opened; nothing in this
// package calls it again on hot-plug.
func (d *Device) Rescan() error {
	crtcIDs, connectorIDs, err := getResources(d.file)
	if err != nil {
		return &errs.DeviceError{Device: d.Path, Err: err}
	}

	encoders := make(map[uint32]uint32)
	conns := make([]Connector, 0, len(connectorIDs))
	for _, id := range connectorIDs {
		raw, err := getConnector(d.file, id)
		if err != nil {
			return &errs.DeviceError{Device: d.Path, Err: err}
		}

		c := Connector{
			ID:        raw.ID,
			Name:      connectorName(raw.ID),
			Connected: raw.Connected,
			EncoderID: raw.EncoderID,
			WidthMm:   raw.MmWidth,
			HeightMm:  raw.MmHeight,
		}
		if raw.Connected && raw.EncoderID != 0 {
			if enc, err := getEncoder(d.file, raw.EncoderID); err == nil {
				c.CrtcID = enc.CrtcID
				encoders[raw.EncoderID] = enc.PossibleCrtcs
			}
		}
		for _, eid := range raw.EncoderIDs {
			if _, ok := encoders[eid]; ok {
				continue
			}
			if enc, err := getEncoder(d.file, eid); err == nil {
				encoders[eid] = enc.PossibleCrtcs
			}
		}
		for _, m := range raw.Modes {
			refresh, err := RefreshMilliHz(m.Clock, m.Htotal, m.Vtotal)
			if err != nil {
				continue
			}
			c.Modes = append(c.Modes, Mode{
				Width:     int32(m.Hdisplay),
				Height:    int32(m.Vdisplay),
				RefreshMh: refresh,
				Preferred: m.Type&(1<<3) != 0, // DRM_MODE_TYPE_PREFERRED
			})
		}
		conns = append(conns, c)
	}

	d.mu.Lock()
	d.connected = conns
	d.crtcIDs = crtcIDs
	d.encoders = encoders
	d.mu.Unlock()

	for i, crtcID := range crtcIDs {
		if err := d.armVblankEvent(i, crtcID); err != nil {
			logger.Warnf("drmdev: %s: arm vblank crtc=%d: %v", d.Path, crtcID, err)
		}
	}
	return nil
}

// armVblankEvent requests a one-shot VBlank event for the CRTC at
// crtcIndex within d.crtcIDs, tagged with crtcID so ReadEvents can
// attribute the eventual event back to the right CRTC (§4.1).
func (d *Device) armVblankEvent(crtcIndex int, crtcID uint32) error {
	return waitVblank(d.file, crtcIndex, crtcID)
}

// crtcIndexOf returns the position of crtcID within the device's
// kernel-ordered CRTC list, used to re-encode the VBlank ioctl's
// high-CRTC selector bits after each event fires.
func (d *Device) crtcIndexOf(crtcID uint32) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, id := range d.crtcIDs {
		if id == crtcID {
			return i, true
		}
	}
	return 0, false
}

// ReadEvents reads one or more pending DRM events off the device's fd
// and returns the CRTC ids that completed a VBlank/page-flip, re-arming
// each one so the one-shot WAIT_VBLANK subscription model keeps
// delivering events continuously (§4.1). Callers drive this from the
// compositor's top-level poll loop whenever Fd() reports readable.
func (d *Device) ReadEvents() ([]uint32, error) {
	crtcIDs, err := readDrmEvents(d.file)
	if err != nil {
		return nil, &errs.DeviceError{Device: d.Path, Err: err}
	}

	for _, crtcID := range crtcIDs {
		idx, ok := d.crtcIndexOf(crtcID)
		if !ok {
			continue
		}
		if err := d.armVblankEvent(idx, crtcID); err != nil {
			logger.Warnf("drmdev: %s: re-arm vblank crtc=%d: %v", d.Path, crtcID, err)
		}
	}
	return crtcIDs, nil
}

// CrtcIDs returns every CRTC id on the device, in the kernel's index
// order (bit N of an encoder's possible_crtcs mask corresponds to
// CrtcIDs()[N]).
func (d *Device) CrtcIDs() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint32, len(d.crtcIDs))
	copy(out, d.crtcIDs)
	return out
}

// PossibleCrtcs returns the possible_crtcs bitmask for the given
// encoder id, or 0 if unknown.
func (d *Device) PossibleCrtcs(encoderID uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.encoders[encoderID]
}

func connectorName(id uint32) string {
	return fmt.Sprintf("conn-%d", id)
}

// Registry holds all opened DRM devices and the selection of the
// primary GPU used for client-buffer import when a secondary GPU
// cannot directly scan out a given dmabuf (§2).
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
	primary string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// OpenAll discovers and opens every /dev/dri/card* node, using an
// errgroup so that a single device failing to open does not block the
// others (§2, §8: device-open failures are isolated, not fatal to the
// whole registry) unless the result is zero usable devices, which is a
// FatalError.
func (r *Registry) OpenAll(ctx context.Context) error {
	paths, err := discoverCardNodes()
	if err != nil {
		return &errs.FatalError{Reason: "enumerate DRM nodes", Err: err}
	}
	if len(paths) == 0 {
		return &errs.FatalError{Reason: "no DRM render nodes found", Err: nil}
	}

	var mu sync.Mutex
	opened := make(map[string]*Device)

	g, _ := errgroup.WithContext(ctx)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			f, atomic, err := openDevice(p)
			if err != nil {
				return nil // isolate: one bad card doesn't fail the group
			}
			d := &Device{Path: p, Atomic: atomic, file: f, BootVGA: isBootVGA(p)}
			if err := d.Rescan(); err != nil {
				_ = d.Close()
				return nil
			}
			mu.Lock()
			opened[p] = d
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(opened) == 0 {
		return &errs.FatalError{Reason: "all DRM devices failed to open", Err: nil}
	}

	r.mu.Lock()
	r.devices = opened
	r.primary = choosePrimary(opened)
	if p, ok := r.devices[r.primary]; ok {
		p.Primary = true
	}
	r.mu.Unlock()
	return nil
}

// Primary returns the registry's chosen primary GPU device, sticky
// once set for the process lifetime (SPEC_FULL.md §4, "Primary-selection
// persistence across hot-plug": the primary GPU is never re-selected
// after hot-plug, matching
// original_source's behaviour of pinning the seat's primary device at
// session start).
func (r *Registry) Primary() (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[r.primary]
	return d, ok
}

// Get returns the device opened at the given path.
func (r *Registry) Get(path string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[path]
	return d, ok
}

// All returns every currently open device, sorted by path for
// deterministic iteration order.
func (r *Registry) All() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Close closes every open device.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, d := range r.devices {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func discoverCardNodes() ([]string, error) {
	entries, err := os.ReadDir("/dev/dri")
	if err != nil {
		return nil, fmt.Errorf("read /dev/dri: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if matched, _ := filepath.Match("card[0-9]*", e.Name()); matched {
			paths = append(paths, filepath.Join("/dev/dri", e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// isBootVGA reports whether the device's sysfs boot_vga attribute is
// set to 1, the kernel's marker for the GPU the firmware initialised
// at boot; choosePrimary prefers such a device.
func isBootVGA(devPath string) bool {
	base := filepath.Base(devPath)
	sysPath := filepath.Join("/sys/class/drm", base, "device", "boot_vga")
	data, err := os.ReadFile(sysPath)
	if err != nil {
		return false
	}
	return len(data) > 0 && data[0] == '1'
}

// choosePrimary selects boot_vga device if one exists, else the
// lexicographically first path for determinism.
func choosePrimary(devices map[string]*Device) string {
	var bootVGA, fallback string
	paths := make([]string, 0, len(devices))
	for p := range devices {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if fallback == "" {
			fallback = p
		}
		if devices[p].BootVGA && bootVGA == "" {
			bootVGA = p
		}
	}
	if bootVGA != "" {
		return bootVGA
	}
	return fallback
}
