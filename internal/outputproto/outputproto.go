// Package outputproto implements the output-management protocol
// *state* from §6: advertised heads and modes, serial-nonce
// validation, and the apply/test split for per-head configuration
// requests. It deliberately does not frame or dispatch any wire
// messages — that remains an external ProtocolBus collaborator (see
// internal/wire and DESIGN.md's "Dropped dependencies" for why no
// go-wayland/wlturbo dependency is imported here); this package only
// holds the state those wire handlers would read and mutate.
//
// Grounded on the retrieval pack's output_management.go data shapes
// (OutputHead/OutputMode/Position/Transform field sets) reworked as
// plain state plus validation, not protocol marshalling.
package outputproto

import (
	"sync"

	"github.com/bnema/swlgo/internal/errs"
	"github.com/bnema/swlgo/internal/outputmgr"
)

// HeadMode mirrors one advertised mode on a head.
type HeadMode struct {
	Width, Height int32
	RefreshMh     int32
	Preferred     bool
}

// Head is the protocol-visible view of one Output.
type Head struct {
	Name         string
	Enabled      bool
	Modes        []HeadMode
	CurrentMode  int // index into Modes, -1 if custom/unset
	Position     [2]int32
	Transform    outputmgr.Transform
	Scale        float64
	AdaptiveSync bool
}

// HeadUpdate is a per-head option set from an apply/test request
// (§6): "enabled, mode|custom-mode, position, transform, scale,
// adaptive-sync".
type HeadUpdate struct {
	Head          string
	Enabled       bool
	ModeIndex     int // -1 if CustomMode is used instead
	CustomWidth   int32
	CustomHeight  int32
	CustomRefresh int32
	Position      [2]int32
	Transform     outputmgr.Transform
	Scale         float64
	AdaptiveSync  bool
	setEnabled    bool
	setMode       bool
	setPosition   bool
	setTransform  bool
	setScale      bool
	setAdaptive   bool
}

// SetEnabled marks Enabled as part of this request; a head option set
// twice in the same request is a conflicting double-set (§6) and is
// validated against in Apply/Test.
func (u *HeadUpdate) SetEnabled(v bool) error {
	if u.setEnabled {
		return &errs.ProtocolError{Code: errs.ErrCodeAlreadyConfiguredHead, Msg: "enabled set twice for head " + u.Head}
	}
	u.setEnabled, u.Enabled = true, v
	return nil
}

// SetMode selects an advertised mode index.
func (u *HeadUpdate) SetMode(idx int) error {
	if u.setMode {
		return &errs.ProtocolError{Code: errs.ErrCodeAlreadyConfiguredHead, Msg: "mode set twice for head " + u.Head}
	}
	u.setMode, u.ModeIndex = true, idx
	return nil
}

// SetCustomMode selects a non-advertised mode.
func (u *HeadUpdate) SetCustomMode(w, h, refresh int32) error {
	if u.setMode {
		return &errs.ProtocolError{Code: errs.ErrCodeAlreadyConfiguredHead, Msg: "mode set twice for head " + u.Head}
	}
	u.setMode = true
	u.ModeIndex = -1
	u.CustomWidth, u.CustomHeight, u.CustomRefresh = w, h, refresh
	return nil
}

// SetPosition sets the head's global position.
func (u *HeadUpdate) SetPosition(x, y int32) error {
	if u.setPosition {
		return &errs.ProtocolError{Code: errs.ErrCodeAlreadyConfiguredHead, Msg: "position set twice for head " + u.Head}
	}
	u.setPosition, u.Position = true, [2]int32{x, y}
	return nil
}

// SetTransform sets the head's transform, rejecting unknown values
// (§6: "unknown-transform ... values are protocol errors").
func (u *HeadUpdate) SetTransform(t outputmgr.Transform) error {
	if u.setTransform {
		return &errs.ProtocolError{Code: errs.ErrCodeAlreadyConfiguredHead, Msg: "transform set twice for head " + u.Head}
	}
	if t < outputmgr.TransformNormal || t > outputmgr.TransformFlipped270 {
		return &errs.ProtocolError{Code: errs.ErrCodeInvalidTransform, Msg: "unknown transform value"}
	}
	u.setTransform, u.Transform = true, t
	return nil
}

// SetScale sets the head's fractional scale.
func (u *HeadUpdate) SetScale(scale float64) error {
	if u.setScale {
		return &errs.ProtocolError{Code: errs.ErrCodeAlreadyConfiguredHead, Msg: "scale set twice for head " + u.Head}
	}
	u.setScale, u.Scale = true, scale
	return nil
}

// SetAdaptiveSync sets the head's adaptive-sync request. The value is
// a bool, so this method has no out-of-range case to reject; it is
// stored but never acted upon (§9 Open Question, DESIGN.md decision 3).
func (u *HeadUpdate) SetAdaptiveSync(enabled bool) error {
	if u.setAdaptive {
		return &errs.ProtocolError{Code: errs.ErrCodeAlreadyConfiguredHead, Msg: "adaptive-sync set twice for head " + u.Head}
	}
	u.setAdaptive, u.AdaptiveSync = true, enabled
	return nil
}

// State is the server-side output-management state: the current set
// of heads plus a monotonically increasing configuration serial.
type State struct {
	mu     sync.Mutex
	heads  map[string]*Head
	serial uint32
}

// NewState returns an empty State at serial 0.
func NewState() *State {
	return &State{heads: make(map[string]*Head)}
}

// AdvertiseHead registers or replaces a head and bumps the serial
// (§6: heads and modes are (re-)advertised whenever the physical
// output set changes).
func (s *State) AdvertiseHead(h *Head) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heads[h.Name] = h
	s.serial++
	return s.serial
}

// WithdrawHead removes a head and bumps the serial.
func (s *State) WithdrawHead(name string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.heads, name)
	s.serial++
	return s.serial
}

// Serial returns the current configuration serial.
func (s *State) Serial() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serial
}

// Head returns the named head.
func (s *State) Head(name string) (*Head, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.heads[name]
	return h, ok
}

// Test validates a batch of HeadUpdates against the given client
// serial without applying them — §6's apply/test split. A stale
// serial (client's serial less than the current one) is reported as
// cancelled, matching scenario 6 in §8.
func (s *State) Test(clientSerial uint32, updates []*HeadUpdate) (cancelled bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clientSerial != s.serial {
		return true, nil
	}
	for _, u := range updates {
		if _, ok := s.heads[u.Head]; !ok {
			return false, &errs.ProtocolError{Code: errs.ErrCodeInvalidMode, Msg: "unknown head " + u.Head}
		}
		if u.setMode && u.ModeIndex >= 0 {
			h := s.heads[u.Head]
			if u.ModeIndex >= len(h.Modes) {
				return false, &errs.ProtocolError{Code: errs.ErrCodeInvalidMode, Msg: "mode index out of range"}
			}
		}
	}
	return false, nil
}

// Apply validates (as Test does) and, if valid, applies every update
// and bumps the serial. A stale serial cancels the whole apply with no
// outputs changed (§8 scenario 6).
func (s *State) Apply(clientSerial uint32, updates []*HeadUpdate) (cancelled bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clientSerial != s.serial {
		return true, nil
	}
	for _, u := range updates {
		h, ok := s.heads[u.Head]
		if !ok {
			return false, &errs.ProtocolError{Code: errs.ErrCodeInvalidMode, Msg: "unknown head " + u.Head}
		}
		if u.setMode && u.ModeIndex >= 0 && u.ModeIndex >= len(h.Modes) {
			return false, &errs.ProtocolError{Code: errs.ErrCodeInvalidMode, Msg: "mode index out of range"}
		}
	}

	for _, u := range updates {
		h := s.heads[u.Head]
		if u.setEnabled {
			h.Enabled = u.Enabled
		}
		if u.setMode {
			h.CurrentMode = u.ModeIndex
		}
		if u.setPosition {
			h.Position = u.Position
		}
		if u.setTransform {
			h.Transform = u.Transform
		}
		if u.setScale {
			h.Scale = u.Scale
		}
		if u.setAdaptive {
			h.AdaptiveSync = u.AdaptiveSync
		}
	}
	s.serial++
	return false, nil
}
