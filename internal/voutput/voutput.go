// Package voutput implements VirtualOutputFabric (§4.6): a second
// logical layer of "virtual outputs" over physical outputs, supporting
// split (one physical into many) and merge (many physicals into one).
//
// Grounded on the teacher's config-string parsing idiom
// (internal/config's comma/colon-delimited env var parsing) for the
// "NAME:PHYSICAL:x,y,WxH;..." spec format, and on outputmgr.Output for physical
// geometry.
package voutput

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bnema/swlgo/internal/coords"
	"github.com/bnema/swlgo/internal/outputmgr"
)

// VirtualRegion ties one virtual output's occupied area on a single
// physical output to that area's logical rectangle (the physical
// rectangle divided by the output's scale).
type VirtualRegion struct {
	Physical    string
	PhysicalRect coords.PhysicalRect
	LogicalRect coords.VirtualOutputRelativeRect
}

// VirtualOutput overlays one or more physical-output regions as a
// single logical display surface (§3).
type VirtualOutput struct {
	ID              string
	Regions         []VirtualRegion
	Bounds          coords.Rect // combined logical bounding rectangle
	ActiveWorkspace string
}

// Fabric owns the full set of VirtualOutputs and the explicit configs
// that produced them.
type Fabric struct {
	mu       sync.RWMutex
	vouts    map[string]*VirtualOutput
	explicit map[string]region // name -> parsed spec, keyed by virtual-output id
	order    []string          // insertion order, for virtual_outputs_for
}

type region struct {
	physical string
	x, y     int32
	w, h     int32
}

// New returns a Fabric with no virtual outputs configured.
func New() *Fabric {
	return &Fabric{
		vouts:    make(map[string]*VirtualOutput),
		explicit: make(map[string]region),
	}
}

// ParseSplitSpec parses the SWL_VIRTUAL_OUTPUTS environment value:
//
//	NAME:PHYSICAL:x,y,WxH;NAME2:PHYSICAL2:x,y,WxH
//
// Each entry produces one explicit VirtualOutput (split configuration,
// §4.6). Malformed entries are skipped; a config error never prevents
// the remaining entries, or the default-rule fallback, from applying.
// An entry with only two colon-separated fields (PHYSICAL:x,y,WxH) is
// treated as malformed and skipped.
func ParseSplitSpec(spec string) map[string]region {
	out := make(map[string]region)
	if spec == "" {
		return out
	}
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			continue
		}
		name, physical, geom := parts[0], parts[1], parts[2]
		r, ok := parseGeom(physical, geom)
		if !ok {
			continue
		}
		out[name] = r
	}
	return out
}

func parseGeom(physical, geom string) (region, bool) {
	// "x,y,WxH"
	commaParts := strings.Split(geom, ",")
	if len(commaParts) != 3 {
		return region{}, false
	}
	x, err1 := strconv.Atoi(commaParts[0])
	y, err2 := strconv.Atoi(commaParts[1])
	dims := strings.SplitN(commaParts[2], "x", 2)
	if len(dims) != 2 || err1 != nil || err2 != nil {
		return region{}, false
	}
	w, err3 := strconv.Atoi(dims[0])
	h, err4 := strconv.Atoi(dims[1])
	if err3 != nil || err4 != nil || w <= 0 || h <= 0 {
		return region{}, false
	}
	return region{physical: physical, x: int32(x), y: int32(y), w: int32(w), h: int32(h)}, true
}

// LoadSplitConfig installs the explicit split configuration parsed by
// ParseSplitSpec; call UpdateAll afterward to materialise regions
// against the current physical outputs.
func (f *Fabric) LoadSplitConfig(cfg map[string]region) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, r := range cfg {
		if _, exists := f.explicit[name]; !exists {
			f.order = append(f.order, name)
		}
		f.explicit[name] = r
	}
}

// Merge creates (or replaces) a VirtualOutput spanning several
// physical-output rectangles; its logical geometry is the bounding box
// of the per-region logical rectangles (§4.6).
func (f *Fabric) Merge(id string, parts []VirtualRegion) {
	f.mu.Lock()
	defer f.mu.Unlock()

	vo := &VirtualOutput{ID: id, Regions: parts}
	vo.Bounds = boundingBox(parts)
	if _, exists := f.vouts[id]; !exists {
		f.order = append(f.order, id)
	}
	f.vouts[id] = vo
}

func boundingBox(parts []VirtualRegion) coords.Rect {
	if len(parts) == 0 {
		return coords.Rect{}
	}
	r := parts[0].LogicalRect.Rect
	for _, p := range parts[1:] {
		pr := p.LogicalRect.Rect
		minX := min32(r.X, pr.X)
		minY := min32(r.Y, pr.Y)
		maxX := max32(r.X+r.W, pr.X+pr.W)
		maxY := max32(r.Y+r.H, pr.Y+pr.H)
		r = coords.Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
	}
	return r
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// UpdateAll re-materialises virtual-output regions from the current
// physical output set (§4.6): explicit split configs produce their
// configured region if the named physical output still exists; every
// physical output with no explicit config gets (or keeps) a 1:1
// VirtualOutput covering its full mode. Missing physical outputs
// contribute no region but their VirtualOutput is not deleted —
// identity is preserved across mode changes, disconnects and
// reconnects.
func (f *Fabric) UpdateAll(outputs []*outputmgr.Output) {
	f.mu.Lock()
	defer f.mu.Unlock()

	byName := make(map[string]*outputmgr.Output, len(outputs))
	for _, o := range outputs {
		byName[o.Name] = o
	}

	explicitByPhysical := make(map[string]bool)
	for id, r := range f.explicit {
		explicitByPhysical[r.physical] = true
		vo := f.vouts[id]
		if vo == nil {
			vo = &VirtualOutput{ID: id}
			f.vouts[id] = vo
		}
		phys, ok := byName[r.physical]
		if !ok {
			vo.Regions = nil
			vo.Bounds = coords.Rect{}
			continue
		}
		logical := coords.PhysicalRect{Rect: coords.Rect{X: r.x, Y: r.y, W: r.w, H: r.h}}
		logicalRect := physicalRectToLogical(logical, phys.Scale)
		vo.Regions = []VirtualRegion{{
			Physical:     r.physical,
			PhysicalRect: logical,
			LogicalRect:  logicalRect,
		}}
		vo.Bounds = logicalRect.Rect
	}

	seenDefault := make(map[string]bool)
	for _, o := range outputs {
		if explicitByPhysical[o.Name] {
			continue
		}
		id := "1:1:" + o.Name
		seenDefault[id] = true
		vo := f.vouts[id]
		if vo == nil {
			vo = &VirtualOutput{ID: id}
			f.vouts[id] = vo
			f.order = append(f.order, id)
		}
		physRect := coords.PhysicalRect{Rect: coords.Rect{X: 0, Y: 0, W: o.Width(), H: o.Height()}}
		logicalRect := physicalRectToLogical(physRect, o.Scale)
		vo.Regions = []VirtualRegion{{
			Physical:     o.Name,
			PhysicalRect: physRect,
			LogicalRect:  logicalRect,
		}}
		vo.Bounds = logicalRect.Rect
	}

	// A default-rule virtual output whose physical backing is no longer
	// present loses its region but keeps its identity, matching the
	// explicit-split behaviour above.
	for _, id := range f.order {
		if !strings.HasPrefix(id, "1:1:") || seenDefault[id] || explicitByPhysical[strings.TrimPrefix(id, "1:1:")] {
			continue
		}
		if vo, ok := f.vouts[id]; ok {
			vo.Regions = nil
			vo.Bounds = coords.Rect{}
		}
	}
}

func physicalRectToLogical(p coords.PhysicalRect, scale float64) coords.VirtualOutputRelativeRect {
	if scale <= 0 {
		scale = 1.0
	}
	return coords.VirtualOutputRelativeRect{Rect: coords.Rect{
		X: int32(float64(p.X) / scale),
		Y: int32(float64(p.Y) / scale),
		W: int32(float64(p.W) / scale),
		H: int32(float64(p.H) / scale),
	}}
}

// Get returns the VirtualOutput with the given id.
func (f *Fabric) Get(id string) (*VirtualOutput, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	vo, ok := f.vouts[id]
	return vo, ok
}

// VirtualOutputsFor returns every VirtualOutput that includes a region
// on the given physical output, preserving insertion order (§4.6).
func (f *Fabric) VirtualOutputsFor(physical string) []*VirtualOutput {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*VirtualOutput
	for _, id := range f.order {
		vo, ok := f.vouts[id]
		if !ok {
			continue
		}
		for _, r := range vo.Regions {
			if r.Physical == physical {
				out = append(out, vo)
				break
			}
		}
	}
	return out
}

// All returns every VirtualOutput in insertion order.
func (f *Fabric) All() []*VirtualOutput {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*VirtualOutput, 0, len(f.order))
	for _, id := range f.order {
		if vo, ok := f.vouts[id]; ok {
			out = append(out, vo)
		}
	}
	return out
}

// SetActiveWorkspace marks which workspace id is active for a virtual
// output; at most one is active per VirtualOutput (§3).
func (f *Fabric) SetActiveWorkspace(voutID, workspace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vo, ok := f.vouts[voutID]
	if !ok {
		return fmt.Errorf("voutput: unknown virtual output %q", voutID)
	}
	vo.ActiveWorkspace = workspace
	return nil
}
