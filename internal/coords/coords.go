// Package coords implements the four coordinate spaces of §3 and the
// Design Notes "coordinate-space confusion" entry as distinct opaque
// types. Conversion between spaces is only ever an explicit method call;
// there is no implicit arithmetic that would let a OutputRelative point
// be added to a VirtualOutputRelative one by accident.
//
// Grounded on the value-typed geometry helpers of the teacher's
// internal/display/monitor.go (Monitor.Bounds()/Contains()), generalised
// from one implicit space to four named ones.
package coords

// Point is a plain (x, y) pair shared by all space-tagged point types
// below; it carries no space information of its own.
type Point struct {
	X, Y int32
}

// Rect is a plain axis-aligned rectangle shared by all space-tagged rect
// types below.
type Rect struct {
	X, Y, W, H int32
}

// Area returns W*H. Zero or negative width/height yields zero, matching
// the "no negative area" invariant tiling relies on (§8).
func (r Rect) Area() int64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return int64(r.W) * int64(r.H)
}

// Contains reports whether p lies within r (half-open on the right/bottom
// edge, matching Monitor.Contains in the teacher).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Intersect returns the overlapping rectangle of r and o, or a
// zero-area Rect if they don't overlap.
func (r Rect) Intersect(o Rect) Rect {
	x1, y1 := max32(r.X, o.X), max32(r.Y, o.Y)
	x2, y2 := min32(r.X+r.W, o.X+o.W), min32(r.Y+r.H, o.Y+o.H)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// Global is the union-of-all-outputs space, origin (0,0), per §3.
type Global struct{ Point }

// GlobalRect is the Rect-valued counterpart of Global.
type GlobalRect struct{ Rect }

// OutputRelative has its origin at a physical output's top-left corner.
type OutputRelative struct{ Point }

// OutputRelativeRect is the Rect-valued counterpart of OutputRelative.
type OutputRelativeRect struct{ Rect }

// VirtualOutputRelative has its origin at a virtual output's logical
// top-left corner.
type VirtualOutputRelative struct{ Point }

// VirtualOutputRelativeRect is the Rect-valued counterpart of
// VirtualOutputRelative.
type VirtualOutputRelativeRect struct{ Rect }

// Physical is post-scale pixel (buffer/framebuffer) space.
type Physical struct{ Point }

// PhysicalRect is the Rect-valued counterpart of Physical.
type PhysicalRect struct{ Rect }

// ToGlobal converts an OutputRelative point to Global space given the
// output's global position, per §3: global = output_pos + output_relative.
func (p OutputRelative) ToGlobal(outputPos Point) Global {
	return Global{Point{X: outputPos.X + p.X, Y: outputPos.Y + p.Y}}
}

// ToOutputRelative converts a Global point back into OutputRelative space.
func (g Global) ToOutputRelative(outputPos Point) OutputRelative {
	return OutputRelative{Point{X: g.X - outputPos.X, Y: g.Y - outputPos.Y}}
}

// ToGlobal converts a VirtualOutputRelative point to Global space given
// the virtual output's global position, per §3:
// global = vout_pos + vout_relative.
func (p VirtualOutputRelative) ToGlobal(voutPos Point) Global {
	return Global{Point{X: voutPos.X + p.X, Y: voutPos.Y + p.Y}}
}

// ToVirtualOutputRelative converts a Global point into
// VirtualOutputRelative space.
func (g Global) ToVirtualOutputRelative(voutPos Point) VirtualOutputRelative {
	return VirtualOutputRelative{Point{X: g.X - voutPos.X, Y: g.Y - voutPos.Y}}
}

// ToPhysical converts a logical point to physical (buffer) space by
// multiplying through the fractional scale, per §3: physical = logical · scale.
func (p VirtualOutputRelative) ToPhysical(scale float64) Physical {
	return Physical{Point{
		X: int32(float64(p.X) * scale),
		Y: int32(float64(p.Y) * scale),
	}}
}

// ToGlobal converts an OutputRelativeRect to GlobalRect given the output's
// global position.
func (r OutputRelativeRect) ToGlobal(outputPos Point) GlobalRect {
	return GlobalRect{Rect{X: outputPos.X + r.X, Y: outputPos.Y + r.Y, W: r.W, H: r.H}}
}

// ToVirtualOutputRelative converts a GlobalRect to
// VirtualOutputRelativeRect given the virtual output's global position.
func (r GlobalRect) ToVirtualOutputRelative(voutPos Point) VirtualOutputRelativeRect {
	return VirtualOutputRelativeRect{Rect{X: r.X - voutPos.X, Y: r.Y - voutPos.Y, W: r.W, H: r.H}}
}

// ToGlobal converts a VirtualOutputRelativeRect to GlobalRect given the
// virtual output's global position.
func (r VirtualOutputRelativeRect) ToGlobal(voutPos Point) GlobalRect {
	return GlobalRect{Rect{X: voutPos.X + r.X, Y: voutPos.Y + r.Y, W: r.W, H: r.H}}
}

// ToPhysical converts a VirtualOutputRelativeRect to PhysicalRect by
// scaling both origin and extent.
func (r VirtualOutputRelativeRect) ToPhysical(scale float64) PhysicalRect {
	return PhysicalRect{Rect{
		X: int32(float64(r.X) * scale),
		Y: int32(float64(r.Y) * scale),
		W: int32(float64(r.W) * scale),
		H: int32(float64(r.H) * scale),
	}}
}
