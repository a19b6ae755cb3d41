// Package gpu implements the GpuManager (§2): a registry of renderer
// backends, one per DeviceRegistry device, used by SurfaceEngine to
// compose and submit frames. Devices come and go as DeviceRegistry
// adds or removes GPUs; GpuManager tracks an enumeration-dirty flag so
// callers can tell when RendererFor's answer may have changed.
//
// Grounded on the teacher's display.Backend interface + cgo/stub split
// (internal/display/wlr_cgo_backend.go, wlr_cgo_stub.go): an interface
// with exactly one production implementation behind a build tag and a
// stub that fails loudly when cgo is unavailable.
package gpu

import (
	"fmt"
	"sync"

	"github.com/bnema/swlgo/internal/errs"
	"github.com/bnema/swlgo/internal/logger"
)

// Renderer is the per-device rendering backend: texture import from
// dmabuf, render-element composition, and buffer submission (§3.4's
// "EGL/GL renderer" wording).
type Renderer interface {
	// DevicePath is the DRM node this renderer is bound to.
	DevicePath() string
	// ImportDmabuf imports a client dmabuf as a texture, returning an
	// opaque texture id for later composition.
	ImportDmabuf(fd int, width, height int32, format uint32, modifier uint64) (uint64, error)
	// ReleaseTexture drops a previously imported texture.
	ReleaseTexture(id uint64)
	// SupportedFormats returns the dmabuf formats this renderer can
	// import directly, without a proxy roundtrip through the primary
	// GPU (§2's per-device dmabuf format exposure).
	SupportedFormats() []uint32
	// Close releases the renderer's EGL context and GL resources.
	Close() error
}

// Manager tracks one Renderer per DRM device path.
type Manager struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	dirty     bool
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{renderers: make(map[string]Renderer)}
}

// AddNode creates a renderer for the given DRM device and registers
// it. A renderer creation failure is a RenderError; the device is
// simply unavailable for rendering, which mirrors §7's isolation rule
// for per-device failures. Adding a node that is already registered is
// a no-op.
func (m *Manager) AddNode(devicePath string, fd uintptr) error {
	m.mu.RLock()
	_, exists := m.renderers[devicePath]
	m.mu.RUnlock()
	if exists {
		return nil
	}

	r, err := newRenderer(devicePath, fd)
	if err != nil {
		return &errs.RenderError{Surface: devicePath, Err: err}
	}

	m.mu.Lock()
	m.renderers[devicePath] = r
	m.dirty = true
	m.mu.Unlock()

	logger.Debugf("gpu: renderer added for %s", devicePath)
	return nil
}

// RemoveNode closes and drops the renderer for the given device path.
func (m *Manager) RemoveNode(devicePath string) {
	m.mu.Lock()
	r, ok := m.renderers[devicePath]
	if ok {
		delete(m.renderers, devicePath)
		m.dirty = true
	}
	m.mu.Unlock()

	if ok {
		if err := r.Close(); err != nil {
			logger.Warnf("gpu: close renderer %s: %v", devicePath, err)
		}
	}
}

// RendererFor returns the renderer bound to the given device path.
func (m *Manager) RendererFor(devicePath string) (Renderer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.renderers[devicePath]
	return r, ok
}

// Dirty reports whether the node set has changed since the last call
// to ClearDirty, letting SurfaceEngine know it needs to re-resolve
// which renderer backs which surface.
func (m *Manager) Dirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// ClearDirty resets the dirty flag after a caller has reacted to it.
func (m *Manager) ClearDirty() {
	m.mu.Lock()
	m.dirty = false
	m.mu.Unlock()
}

// Count returns the number of registered renderers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.renderers)
}

// Close closes every registered renderer.
func (m *Manager) Close() error {
	m.mu.Lock()
	renderers := make([]Renderer, 0, len(m.renderers))
	for _, r := range m.renderers {
		renderers = append(renderers, r)
	}
	m.renderers = make(map[string]Renderer)
	m.mu.Unlock()

	var firstErr error
	for _, r := range renderers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("gpu: close %s: %w", r.DevicePath(), err)
		}
	}
	return firstErr
}
