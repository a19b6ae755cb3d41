// Package outputmgr implements OutputManager (§4.3): probing connected
// connectors, selecting CRTCs, enumerating modes, and building logical
// Output descriptors with physical properties, scale, transform and
// position.
//
// Grounded on the teacher's display.Monitor model (internal/display) —
// a stable logical descriptor derived from raw platform state — and on
// drmdev.Connector/Mode as its raw input.
package outputmgr

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bnema/swlgo/internal/drmdev"
	"github.com/bnema/swlgo/internal/logger"
)

// Transform mirrors the wl_output transform enum; only Normal is
// produced by default (§4.3), the others are settable via the
// output-management protocol path.
type Transform int

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

// Output is a logical display sink (§3).
type Output struct {
	Name          string
	DevicePath    string
	ConnectorID   uint32
	CrtcID        uint32
	WidthMm       uint32
	HeightMm      uint32
	Modes         []drmdev.Mode
	CurrentMode   drmdev.Mode
	Transform     Transform
	Scale         float64
	X, Y          int32 // global position, top-left
	AdaptiveSync  bool  // parsed and stored, never acted on (DESIGN.md decision 3)
}

// Width and Height return the output's current mode dimensions in
// physical mode pixels; Scale is not applied.
func (o *Output) Width() int32  { return o.CurrentMode.Width }
func (o *Output) Height() int32 { return o.CurrentMode.Height }

// Manager tracks the live set of Outputs, keyed by name, and the CRTC
// assignment used to avoid double-driving a CRTC from two connectors.
type Manager struct {
	mu          sync.RWMutex
	outputs     map[string]*Output
	crtcOwner   map[uint32]string // crtc id -> output name
	interfaceCt map[string]int    // interface short name -> next id
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		outputs:     make(map[string]*Output),
		crtcOwner:   make(map[uint32]string),
		interfaceCt: make(map[string]int),
	}
}

// Rescan reconciles the Manager's Output set against the device's
// current connector list (§4.3): connected connectors get an Output
// (existing ones are kept in place to avoid flicker), disconnected
// connectors have their Output finalised and removed.
//
// possibleCrtcsOf resolves the possible_crtcs bitmask for a given
// encoder id, and allCrtcIDs lists every CRTC on the device in the
// kernel's indexing order (bit N of possible_crtcs corresponds to
// allCrtcIDs[N]).
func (m *Manager) Rescan(devicePath string, connectors []drmdev.Connector, allCrtcIDs []uint32, possibleCrtcsOf func(encoderID uint32) uint32) (added, removed []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)

	for _, c := range connectors {
		if !c.Connected {
			continue
		}
		name := m.existingNameFor(devicePath, c.ID)
		if name == "" {
			name = m.allocateName(c.InterfaceType, c.ID)
		}
		seen[name] = true

		crtc := c.CrtcID
		if crtc == 0 || (m.crtcOwner[crtc] != "" && m.crtcOwner[crtc] != name) {
			crtc = m.findFreeCrtc(allCrtcIDs, possibleCrtcsOf(c.EncoderID), name)
		}
		if crtc == 0 {
			logger.Warnf("outputmgr: no free CRTC for connector %d on %s", c.ID, devicePath)
			continue
		}

		mode, ok := drmdev.SelectMode(c.Modes)
		if !ok {
			logger.Warnf("outputmgr: connector %d has no modes", c.ID)
			continue
		}

		existing, wasPresent := m.outputs[name]
		if wasPresent {
			existing.CrtcID = crtc
			existing.Modes = c.Modes
			existing.CurrentMode = mode
			existing.WidthMm = c.WidthMm
			existing.HeightMm = c.HeightMm
		} else {
			out := &Output{
				Name:        name,
				DevicePath:  devicePath,
				ConnectorID: c.ID,
				CrtcID:      crtc,
				WidthMm:     c.WidthMm,
				HeightMm:    c.HeightMm,
				Modes:       c.Modes,
				CurrentMode: mode,
				Transform:   TransformNormal,
				Scale:       1.0,
			}
			m.outputs[name] = out
			added = append(added, name)
		}
		m.crtcOwner[crtc] = name
	}

	for name, out := range m.outputs {
		if out.DevicePath != devicePath {
			seen[name] = true // belongs to a different device's scan
			continue
		}
		if !seen[name] {
			delete(m.outputs, name)
			delete(m.crtcOwner, out.CrtcID)
			removed = append(removed, name)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func (m *Manager) existingNameFor(devicePath string, connectorID uint32) string {
	for name, out := range m.outputs {
		if out.DevicePath == devicePath && out.ConnectorID == connectorID {
			return name
		}
	}
	return ""
}

func (m *Manager) findFreeCrtc(allCrtcIDs []uint32, possibleCrtcs uint32, forOutput string) uint32 {
	for idx, id := range allCrtcIDs {
		if possibleCrtcs&(1<<uint(idx)) == 0 {
			continue
		}
		if owner, taken := m.crtcOwner[id]; !taken || owner == forOutput {
			return id
		}
	}
	return 0
}

// interfaceShortNames maps a DRM connector type id to its short name
// as used in output names, per the kernel's drm_connector_enum_list.
var interfaceShortNames = map[uint32]string{
	1:  "VGA",
	2:  "DVI-I",
	3:  "DVI-D",
	4:  "DVI-A",
	5:  "Composite",
	6:  "SVIDEO",
	7:  "LVDS",
	8:  "Component",
	9:  "DIN",
	10: "DP",
	11: "HDMI-A",
	12: "HDMI-B",
	13: "TV",
	14: "eDP",
	15: "Virtual",
	16: "DSI",
	17: "DPI",
	18: "Writeback",
	19: "SPI",
	20: "USB",
}

func (m *Manager) allocateName(interfaceType uint32, connectorID uint32) string {
	short, ok := interfaceShortNames[interfaceType]
	if !ok {
		short = fmt.Sprintf("UNKNOWN-%d", interfaceType)
	}
	m.interfaceCt[short]++
	return fmt.Sprintf("%s-%d", short, m.interfaceCt[short])
}

// Get returns the Output with the given name.
func (m *Manager) Get(name string) (*Output, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.outputs[name]
	return o, ok
}

// All returns every currently connected Output, sorted by name.
func (m *Manager) All() []*Output {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Output, 0, len(m.outputs))
	for _, o := range m.outputs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsInterfaceShort reports whether s matches the "<interface-short>"
// family of names this manager allocates, used by tests and callers
// that need to distinguish generated names from externally supplied
// virtual-output names.
func IsInterfaceShort(s string) bool {
	for _, short := range interfaceShortNames {
		if strings.HasPrefix(s, short+"-") {
			return true
		}
	}
	return false
}
