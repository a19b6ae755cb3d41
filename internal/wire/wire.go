// Package wire defines the external-collaborator interfaces from §6 — the
// named boundaries the core consumes without owning their implementation
// (protocol dispatch, session/seat acquisition, input routing) — plus the
// on-the-wire InputEvent format crossing the InputRouter boundary.
//
// Grounded on the teacher's internal/wayland/wayland.go InputCapture /
// InputInjector interface pair: small interfaces at a collaborator
// boundary, implemented elsewhere and only consumed here.
package wire

import "context"

// Session is the external collaborator that owns DRM file-descriptor
// acquisition and coarse pause/activate signalling (§6, §5).
type Session interface {
	Open(ctx context.Context, path string, flags int) (fd int, err error)
	OnPause(func())
	OnActivate(func())
}

// SurfaceProvider is the external collaborator owning windows and
// subsurfaces with committed buffers (§1). The core calls into it to
// walk a surface tree and read layer-shell placement; it never owns
// buffer lifetime itself.
type SurfaceProvider interface {
	// SurfaceTree returns the render-order list of surface ids hosted by
	// the given output name, topmost last.
	SurfaceTree(outputName string) []SurfaceHandle
	// LayerShellZones returns the exclusive zone reserved by each of the
	// four z-layers (background, bottom, top, overlay) for the given
	// output, in OutputRelative pixels.
	LayerShellZones(outputName string) [4]int32
}

// SurfaceHandle identifies one committed client surface for render
// purposes; CommitCounter increases monotonically on every commit so
// damage tracking can tell whether content actually changed.
type SurfaceHandle struct {
	ID            uint64
	CommitCounter uint64
}

// InputRouter is the external collaborator that owns focus and pointer
// routing (§6). The core notifies it of cursor and focus changes; it
// never reads raw input devices itself.
type InputRouter interface {
	CursorPositionChanged(x, y float64)
	FocusChanged(surface *SurfaceHandle)
}

// ProtocolBus is the external collaborator that advertises wl_output
// globals, fractional-scale hints, and output-management events, and
// dispatches wlr_layer_shell surfaces (§6). The core never frames wire
// messages itself — see DESIGN.md "Dropped dependencies" for why no
// wire-protocol library is imported by the core packages.
type ProtocolBus interface {
	AdvertiseOutput(name string)
	WithdrawOutput(name string)
	PublishFractionalScale(surfaceID uint64, scale float64)
}

// EventKind tags the closed set of InputEvent variants from §6.
type EventKind uint8

const (
	EventDeviceAdded EventKind = iota
	EventDeviceRemoved
	EventKeyboard
	EventPointerMotion
	EventPointerMotionAbsolute
	EventPointerButton
	EventPointerAxis
)

// InputEvent is the fixed-layout wire struct used to marshal input
// events across the InputRouter boundary (for example to a privileged
// helper process). §6 enumerates these variants as a tagged union;
// unused fields for a given Kind are zero.
//
// The layout is fixed little-endian, grounded on the same
// encoding/binary fixed-header idiom the pack's helixml-helix DRM lease
// manager uses for its Unix-socket wire protocol (see DESIGN.md for why
// this isn't a protobuf message).
type InputEvent struct {
	Kind      EventKind
	Time      uint32
	KeyCode   uint32
	KeyState  uint8
	DeltaX    float64
	DeltaY    float64
	AbsX      float64 // normalised to [0,1]
	AbsY      float64 // normalised to [0,1]
	BtnCode   uint32
	BtnState  uint8
	AxisSrc   uint8
	Horiz     float64
	Vert      float64
	V120Horiz int32
	V120Vert  int32
}
