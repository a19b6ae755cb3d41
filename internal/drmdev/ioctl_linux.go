//go:build linux

package drmdev

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DRM ioctl numbers, derived the same way the pack's helixml-helix DRM
// lease manager derives them (see DESIGN.md):
//
//	_IO(type, nr)        = (type << 8) | nr
//	_IOR(type, nr, size)  = 0x80000000 | (size << 16) | (type << 8) | nr
//	_IOW(type, nr, size)  = 0x40000000 | (size << 16) | (type << 8) | nr
//	_IOWR(type, nr, size) = 0xC0000000 | (size << 16) | (type << 8) | nr
//
// DRM's ioctl type is 'd' (0x64).
const (
	ioctlSetMaster  = 0x641e // DRM_IOCTL_SET_MASTER  = _IO('d', 0x1e)
	ioctlDropMaster = 0x641f // DRM_IOCTL_DROP_MASTER = _IO('d', 0x1f)

	// DRM_IOCTL_SET_CLIENT_CAP = _IOW('d', 0x0d, struct drm_set_client_cap)
	ioctlSetClientCap = 0x4010640d

	// DRM_IOCTL_MODE_GETRESOURCES = _IOWR('d', 0xa0, struct drm_mode_card_res), 64 bytes
	ioctlModeGetResources = 0xc04064a0
	// DRM_IOCTL_MODE_GETCRTC = _IOWR('d', 0xa1, struct drm_mode_crtc), 104 bytes
	ioctlModeGetCrtc = 0xc06864a1
	// DRM_IOCTL_MODE_GETENCODER = _IOWR('d', 0xa6, struct drm_mode_get_encoder), 20 bytes
	ioctlModeGetEncoder = 0xc01464a6
	// DRM_IOCTL_MODE_GETCONNECTOR = _IOWR('d', 0xa7, struct drm_mode_get_connector), 80 bytes
	ioctlModeGetConnector = 0xc05064a7

	drmClientCapAtomic          = 3 // DRM_CLIENT_CAP_ATOMIC
	drmClientCapUniversalPlanes = 2 // DRM_CLIENT_CAP_UNIVERSAL_PLANES

	// DRM_IOCTL_WAIT_VBLANK = _IOWR('d', 0x3a, union drm_wait_vblank), 24 bytes
	ioctlWaitVblank = 0xc018643a

	// drm_vblank_seq_type bits (include/uapi/drm/drm.h).
	drmVblankRelative      = 0x1
	drmVblankEvent         = 0x4000000
	drmVblankSecondary     = 0x20000000
	drmVblankHighCrtcShift = 1
	drmVblankHighCrtcMask  = 0x3e

	// drm_event.type values (include/uapi/drm/drm.h).
	drmEventVblank       = 0x01
	drmEventFlipComplete = 0x02
)

// Connector status values (drm_mode_get_connector.connection).
const (
	connectionConnected    = 1
	connectionDisconnected = 2
	connectionUnknown      = 3
)

type drmModeCardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

type drmModeModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HsyncStart uint16
	HsyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VsyncStart uint16
	VsyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	Vrefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

type drmModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type drmModeGetEncoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

type drmModeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             drmModeModeInfo
}

type drmSetClientCap struct {
	Capability uint64
	Value      uint64
}

// drmWaitVblankRequest mirrors the request view of union drm_wait_vblank;
// the union's reply view (type, sequence, tval_sec, tval_usec) is
// larger, so the trailing pad keeps the struct's overall size at the
// 24 bytes the ioctl number encodes.
type drmWaitVblankRequest struct {
	Type     uint32
	Sequence uint32
	Signal   uint64
	_        [8]byte
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// openDevice opens the DRM device file, acquires master, and enables
// atomic modesetting and universal planes when available. It never
// fails solely because atomic isn't supported — the caller falls back
// to the legacy modeset path per §4.1.
func openDevice(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CLOEXEC, 0)
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	if err := ioctl(f.Fd(), ioctlSetMaster, nil); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("DRM_IOCTL_SET_MASTER: %w", err)
	}

	atomic := setClientCap(f, drmClientCapAtomic) == nil
	_ = setClientCap(f, drmClientCapUniversalPlanes)

	return f, atomic, nil
}

func setClientCap(f *os.File, cap uint64) error {
	c := drmSetClientCap{Capability: cap, Value: 1}
	return ioctl(f.Fd(), ioctlSetClientCap, unsafe.Pointer(&c))
}

func dropMaster(f *os.File) error {
	return ioctl(f.Fd(), ioctlDropMaster, nil)
}

// getResources enumerates CRTC and connector object ids for the device.
func getResources(f *os.File) (crtcIDs, connectorIDs []uint32, err error) {
	var res drmModeCardRes
	if err := ioctl(f.Fd(), ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return nil, nil, fmt.Errorf("MODE_GETRESOURCES (count): %w", err)
	}
	if res.CountCrtcs == 0 || res.CountConnectors == 0 {
		return nil, nil, fmt.Errorf("no CRTCs or connectors (crtcs=%d connectors=%d)", res.CountCrtcs, res.CountConnectors)
	}

	crtcIDs = make([]uint32, res.CountCrtcs)
	connectorIDs = make([]uint32, res.CountConnectors)
	res2 := drmModeCardRes{
		CrtcIDPtr:       uint64(uintptr(unsafe.Pointer(&crtcIDs[0]))),
		ConnectorIDPtr:  uint64(uintptr(unsafe.Pointer(&connectorIDs[0]))),
		CountCrtcs:      res.CountCrtcs,
		CountConnectors: res.CountConnectors,
	}
	if err := ioctl(f.Fd(), ioctlModeGetResources, unsafe.Pointer(&res2)); err != nil {
		return nil, nil, fmt.Errorf("MODE_GETRESOURCES (fill): %w", err)
	}
	return crtcIDs, connectorIDs, nil
}

// rawConnector is the parsed result of a two-call GETCONNECTOR
// enumeration: connection state, current encoder, and advertised modes.
type rawConnector struct {
	ID          uint32
	Connected   bool
	EncoderID   uint32
	EncoderIDs  []uint32
	MmWidth     uint32
	MmHeight    uint32
	Subpixel    uint32
	Modes       []drmModeModeInfo
}

func getConnector(f *os.File, id uint32) (*rawConnector, error) {
	gc := drmModeGetConnector{ConnectorID: id}
	if err := ioctl(f.Fd(), ioctlModeGetConnector, unsafe.Pointer(&gc)); err != nil {
		return nil, fmt.Errorf("MODE_GETCONNECTOR (count) id=%d: %w", id, err)
	}

	out := &rawConnector{
		ID:        id,
		Connected: gc.Connection == connectionConnected,
		EncoderID: gc.EncoderID,
		MmWidth:   gc.MmWidth,
		MmHeight:  gc.MmHeight,
		Subpixel:  gc.Subpixel,
	}
	if !out.Connected {
		return out, nil
	}

	modes := make([]drmModeModeInfo, gc.CountModes)
	encoders := make([]uint32, gc.CountEncoders)
	gc2 := drmModeGetConnector{
		ConnectorID:   id,
		CountModes:    gc.CountModes,
		CountEncoders: gc.CountEncoders,
	}
	if gc.CountModes > 0 {
		gc2.ModesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))
	}
	if gc.CountEncoders > 0 {
		gc2.EncodersPtr = uint64(uintptr(unsafe.Pointer(&encoders[0])))
	}
	if err := ioctl(f.Fd(), ioctlModeGetConnector, unsafe.Pointer(&gc2)); err != nil {
		return nil, fmt.Errorf("MODE_GETCONNECTOR (fill) id=%d: %w", id, err)
	}
	out.Modes = modes
	out.EncoderIDs = encoders
	return out, nil
}

func getEncoder(f *os.File, id uint32) (*drmModeGetEncoder, error) {
	e := drmModeGetEncoder{EncoderID: id}
	if err := ioctl(f.Fd(), ioctlModeGetEncoder, unsafe.Pointer(&e)); err != nil {
		return nil, fmt.Errorf("MODE_GETENCODER id=%d: %w", id, err)
	}
	return &e, nil
}

func getCrtc(f *os.File, id uint32) (*drmModeCrtc, error) {
	c := drmModeCrtc{CrtcID: id}
	if err := ioctl(f.Fd(), ioctlModeGetCrtc, unsafe.Pointer(&c)); err != nil {
		return nil, fmt.Errorf("MODE_GETCRTC id=%d: %w", id, err)
	}
	return &c, nil
}

// waitVblank arms a one-shot DRM_IOCTL_WAIT_VBLANK event for the CRTC
// at crtcIndex (its position within drmModeCardRes.CrtcIDPtr, not its
// object id). userData is echoed back verbatim into the resulting
// drm_event_vblank.user_data field — here the CRTC's object id, so
// readDrmEvents can attribute the event without relying on the
// not-always-populated crtc_id field (§4.1).
func waitVblank(f *os.File, crtcIndex int, userData uint32) error {
	typ := uint32(drmVblankRelative | drmVblankEvent)
	switch {
	case crtcIndex == 1:
		typ |= drmVblankSecondary
	case crtcIndex > 1:
		typ |= (uint32(crtcIndex) << drmVblankHighCrtcShift) & drmVblankHighCrtcMask
	}

	req := drmWaitVblankRequest{
		Type:     typ,
		Sequence: 1,
		Signal:   uint64(userData),
	}
	if err := ioctl(f.Fd(), ioctlWaitVblank, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("WAIT_VBLANK crtc_index=%d: %w", crtcIndex, err)
	}
	return nil
}

// drmEventHeaderSize and drmEventVblankSize mirror struct drm_event and
// struct drm_event_vblank (include/uapi/drm/drm.h): a common
// {type,length} header followed, for *_VBLANK/*_FLIP_COMPLETE events,
// by user_data/tv_sec/tv_usec/sequence/crtc_id.
const (
	drmEventHeaderSize = 8
	drmEventVblankSize = 32
)

// readDrmEvents reads one or more pending DRM events off f and returns
// the CRTC object id carried by each VBlank/FlipComplete event's
// user_data field, in arrival order. Other event types are skipped by
// their self-described length so the stream stays framed correctly.
func readDrmEvents(f *os.File) ([]uint32, error) {
	buf := make([]byte, 4096)
	n, err := unix.Read(int(f.Fd()), buf)
	if err != nil {
		return nil, fmt.Errorf("read DRM events: %w", err)
	}
	buf = buf[:n]

	var crtcIDs []uint32
	for off := 0; off+drmEventHeaderSize <= len(buf); {
		typ := binary.LittleEndian.Uint32(buf[off:])
		length := binary.LittleEndian.Uint32(buf[off+4:])
		if length < drmEventHeaderSize || off+int(length) > len(buf) {
			break
		}

		if (typ == drmEventVblank || typ == drmEventFlipComplete) && int(length) >= drmEventVblankSize {
			userData := binary.LittleEndian.Uint64(buf[off+8:])
			crtcIDs = append(crtcIDs, uint32(userData))
		}

		off += int(length)
	}
	return crtcIDs, nil
}
