// Package shell implements the Shell component (§4.7): workspaces,
// tiling/tabbed layout, focus stack, fullscreen, layer-shell exclusive
// zones, and popup unconstrained geometry.
//
// Grounded on the teacher's in-memory registry idiom (mutex-guarded
// maps with append/remove helpers, as in internal/client's device
// registry) generalised to the window/workspace domain, and on §5's
// single-writer/many-reader rule (sync.RWMutex, writers only on the
// event-loop thread).
package shell

import (
	"fmt"
	"sync"

	"github.com/bnema/swlgo/internal/coords"
)

// LayoutMode is a workspace's arrangement strategy (§3).
type LayoutMode int

const (
	Tiling LayoutMode = iota
	Tabbed
)

// WindowID identifies a window; the shell never dereferences a raw
// pointer to a window, only this opaque id, so it can resolve aliveness
// through a caller-supplied AliveChecker on every refresh (§4.7,
// §9 "cyclic graphs").
type WindowID uint64

// AliveChecker reports whether a window id still has a live client
// surface backing it; the shell uses it to eagerly drop dead windows.
type AliveChecker func(WindowID) bool

// TabBarHeight is the fixed tab-bar strip height in tabbed mode (§4.7).
const TabBarHeight = 6

const (
	minMasterFactor = 0.1
	maxMasterFactor = 0.9
)

// Workspace is an ordered set of windows with its own layout state,
// hosted by one virtual output (§3).
type Workspace struct {
	Name            string
	VirtualOutputID string
	Windows         []WindowID
	Fullscreen      *WindowID
	focusStack      []WindowID
	MasterFactor    float64
	NMaster         int
	Floating        map[WindowID]bool
	Mode            LayoutMode
	ActiveTabIndex  int
	NeedsArrange    bool

	rects     map[WindowID]coords.VirtualOutputRelativeRect
	available coords.VirtualOutputRelativeRect
}

// NewWorkspace returns an empty workspace hosted by the given virtual
// output, with the given initial tiling parameters (§6 SWL_MASTER_FACTOR
// / SWL_N_MASTER).
func NewWorkspace(name, voutID string, masterFactor float64, nMaster int) *Workspace {
	return &Workspace{
		Name:            name,
		VirtualOutputID: voutID,
		MasterFactor:    clampFactor(masterFactor),
		NMaster:         clampNMaster(nMaster),
		Floating:        make(map[WindowID]bool),
		rects:           make(map[WindowID]coords.VirtualOutputRelativeRect),
	}
}

func clampFactor(f float64) float64 {
	if f < minMasterFactor {
		return minMasterFactor
	}
	if f > maxMasterFactor {
		return maxMasterFactor
	}
	return f
}

func clampNMaster(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// AddWindow appends w to the window list, marks needs_arrange, and in
// Tabbed mode sets active_tab_index to the new window's index (§4.7).
func (w *Workspace) AddWindow(id WindowID) {
	w.Windows = append(w.Windows, id)
	w.NeedsArrange = true
	if w.Mode == Tabbed {
		w.ActiveTabIndex = w.tiledIndexOf(id)
	}
}

// RemoveWindow drops w from the window list, floating set, focus
// stack, and clears fullscreen if w was fullscreen. Per §8's round-trip
// property, add_window then remove_window must return the workspace to
// its prior observable state.
func (w *Workspace) RemoveWindow(id WindowID) {
	w.Windows = removeWindowID(w.Windows, id)
	delete(w.Floating, id)
	w.removeFromFocusStack(id)
	if w.Fullscreen != nil && *w.Fullscreen == id {
		w.Fullscreen = nil
	}
	delete(w.rects, id)
	if w.ActiveTabIndex >= len(w.tiledWindows()) && w.ActiveTabIndex > 0 {
		w.ActiveTabIndex = len(w.tiledWindows()) - 1
		if w.ActiveTabIndex < 0 {
			w.ActiveTabIndex = 0
		}
	}
	w.NeedsArrange = true
}

func removeWindowID(list []WindowID, id WindowID) []WindowID {
	out := list[:0:0]
	for _, w := range list {
		if w != id {
			out = append(out, w)
		}
	}
	return out
}

// Refresh drops dead windows (per alive), re-electing focus and
// clearing any stale fullscreen/tab-index state (§8: "a dead window is
// removed by the next refresh").
func (w *Workspace) Refresh(alive AliveChecker) {
	for _, id := range append([]WindowID(nil), w.Windows...) {
		if !alive(id) {
			w.RemoveWindow(id)
		}
	}
}

// tiledWindows returns the non-floating, non-fullscreen windows in
// list order — the set the tiling and tabbed layouts arrange.
func (w *Workspace) tiledWindows() []WindowID {
	out := make([]WindowID, 0, len(w.Windows))
	for _, id := range w.Windows {
		if w.Floating[id] {
			continue
		}
		if w.Fullscreen != nil && *w.Fullscreen == id {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (w *Workspace) tiledIndexOf(id WindowID) int {
	for i, t := range w.tiledWindows() {
		if t == id {
			return i
		}
	}
	return 0
}

// AppendFocus removes any prior occurrence of w then pushes it, per
// §4.7.
func (w *Workspace) AppendFocus(id WindowID) {
	w.removeFromFocusStack(id)
	w.focusStack = append(w.focusStack, id)
}

func (w *Workspace) removeFromFocusStack(id WindowID) {
	out := w.focusStack[:0:0]
	for _, f := range w.focusStack {
		if f != id {
			out = append(out, f)
		}
	}
	w.focusStack = out
}

// FocusStack returns the focus stack, most-recently-focused last.
func (w *Workspace) FocusStack() []WindowID {
	return append([]WindowID(nil), w.focusStack...)
}

// Focused returns the top of the focus stack, or false if empty.
func (w *Workspace) Focused() (WindowID, bool) {
	if len(w.focusStack) == 0 {
		return 0, false
	}
	return w.focusStack[len(w.focusStack)-1], true
}

// SetFullscreen marks id as the workspace's sole fullscreen window,
// clearing any prior one (§4.7: "exactly one fullscreen window per
// workspace").
func (w *Workspace) SetFullscreen(id WindowID) {
	w.Fullscreen = &id
	w.NeedsArrange = true
}

// ClearFullscreen removes fullscreen state if id currently holds it.
func (w *Workspace) ClearFullscreen(id WindowID) {
	if w.Fullscreen != nil && *w.Fullscreen == id {
		w.Fullscreen = nil
		w.NeedsArrange = true
	}
}

// SetMode switches between Tiling and Tabbed, clamping ActiveTabIndex
// and marking needs_arrange.
func (w *Workspace) SetMode(mode LayoutMode) {
	w.Mode = mode
	if tiled := w.tiledWindows(); len(tiled) > 0 && w.ActiveTabIndex >= len(tiled) {
		w.ActiveTabIndex = len(tiled) - 1
	}
	w.NeedsArrange = true
}

// NextTab advances active_tab_index modulo the tiled-window count,
// pushes the new tab to the focus stack, and marks needs_arrange.
func (w *Workspace) NextTab() {
	tiled := w.tiledWindows()
	if len(tiled) == 0 {
		return
	}
	w.ActiveTabIndex = (w.ActiveTabIndex + 1) % len(tiled)
	w.AppendFocus(tiled[w.ActiveTabIndex])
	w.NeedsArrange = true
}

// PrevTab is NextTab's inverse (§8: next_tab then prev_tab is identity
// on active_tab_index).
func (w *Workspace) PrevTab() {
	tiled := w.tiledWindows()
	if len(tiled) == 0 {
		return
	}
	w.ActiveTabIndex = (w.ActiveTabIndex - 1 + len(tiled)) % len(tiled)
	w.AppendFocus(tiled[w.ActiveTabIndex])
	w.NeedsArrange = true
}

// SetAvailable sets the workspace's available area (virtual-output-
// relative), shrunk by any layer-shell exclusive zones, and marks
// needs_arrange (§4.7: "when zones change, dependent workspaces set
// needs_arrange").
func (w *Workspace) SetAvailable(area coords.VirtualOutputRelativeRect) {
	w.available = area
	w.NeedsArrange = true
}

// Arrange recomputes per-window rectangles if needs_arrange is set,
// dispatching to the tiling or tabbed layout, honouring fullscreen
// override (§4.7).
func (w *Workspace) Arrange() {
	if !w.NeedsArrange {
		return
	}
	w.rects = make(map[WindowID]coords.VirtualOutputRelativeRect)

	if w.Fullscreen != nil {
		w.rects[*w.Fullscreen] = w.available
		w.NeedsArrange = false
		return
	}

	switch w.Mode {
	case Tabbed:
		w.arrangeTabbed()
	default:
		w.arrangeTiling()
	}
	w.NeedsArrange = false
}

func (w *Workspace) arrangeTiling() {
	tiled := w.tiledWindows()
	n := len(tiled)
	if n == 0 {
		return
	}

	area := w.available.Rect
	if n <= w.NMaster {
		assignColumn(w.rects, tiled, area)
		return
	}

	masterWidth := int32(float64(area.W) * w.MasterFactor)
	masterCol := coords.Rect{X: area.X, Y: area.Y, W: masterWidth, H: area.H}
	stackCol := coords.Rect{X: area.X + masterWidth, Y: area.Y, W: area.W - masterWidth, H: area.H}

	assignColumn(w.rects, tiled[:w.NMaster], masterCol)
	assignColumn(w.rects, tiled[w.NMaster:], stackCol)
}

// assignColumn divides col's height evenly among windows, the last
// window absorbing rounding slack (§4.7, §8: "Σ areas = area(available)
// exactly").
func assignColumn(rects map[WindowID]coords.VirtualOutputRelativeRect, windows []WindowID, col coords.Rect) {
	n := len(windows)
	if n == 0 {
		return
	}
	y := col.Y
	remaining := col.H
	for i, id := range windows {
		var h int32
		if i == n-1 {
			h = remaining
		} else {
			h = remaining / int32(n-i)
		}
		rects[id] = coords.VirtualOutputRelativeRect{Rect: coords.Rect{X: col.X, Y: y, W: col.W, H: h}}
		y += h
		remaining -= h
	}
}

func (w *Workspace) arrangeTabbed() {
	tiled := w.tiledWindows()
	if len(tiled) == 0 {
		return
	}
	if w.ActiveTabIndex >= len(tiled) {
		w.ActiveTabIndex = len(tiled) - 1
	}
	area := w.available.Rect
	contentArea := coords.Rect{X: area.X, Y: area.Y + TabBarHeight, W: area.W, H: area.H - TabBarHeight}
	active := tiled[w.ActiveTabIndex]
	w.rects[active] = coords.VirtualOutputRelativeRect{Rect: contentArea}
}

// RectFor returns the cached arranged rectangle for a window.
func (w *Workspace) RectFor(id WindowID) (coords.VirtualOutputRelativeRect, bool) {
	r, ok := w.rects[id]
	return r, ok
}

// Key returns the workspace's unique identifier within a Shell. Tags
// ("1".."9") are scoped per virtual output, not globally unique (§8
// scenario 4: splitting one physical output into two virtual outputs
// gives each its own workspace "1"), so the Shell keys its registry on
// virtual-output id plus tag rather than on Name alone.
func (w *Workspace) Key() string {
	return w.VirtualOutputID + "#" + w.Name
}

// PopupGeometry computes a popup's unconstrained geometry: the output
// rectangle translated into the parent-window-local frame, further
// offset by the popup chain's cumulative toplevel offset (§4.7).
func PopupGeometry(outputRect coords.VirtualOutputRelativeRect, parentOrigin coords.Point, cumulativeOffset coords.Point) coords.VirtualOutputRelativeRect {
	return coords.VirtualOutputRelativeRect{Rect: coords.Rect{
		X: outputRect.X - parentOrigin.X - cumulativeOffset.X,
		Y: outputRect.Y - parentOrigin.Y - cumulativeOffset.Y,
		W: outputRect.W,
		H: outputRect.H,
	}}
}

// Shell owns every workspace, keyed by Workspace.Key(), plus the
// mapping from window id to the workspace currently hosting it. §5
// mandates a single-writer/many-reader discipline; RWMutex realises
// that here.
type Shell struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	hostOf     map[WindowID]string
}

// New returns an empty Shell.
func New() *Shell {
	return &Shell{
		workspaces: make(map[string]*Workspace),
		hostOf:     make(map[WindowID]string),
	}
}

// AddWorkspace registers a new workspace under its Key().
func (s *Shell) AddWorkspace(ws *Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces[ws.Key()] = ws
}

// Workspace returns the workspace registered under the given key
// (Workspace.Key()).
func (s *Shell) Workspace(key string) (*Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workspaces[key]
	return ws, ok
}

// AddWindow adds a window to the workspace registered under key and
// records which workspace hosts it.
func (s *Shell) AddWindow(key string, id WindowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[key]
	if !ok {
		return fmt.Errorf("shell: unknown workspace %q", key)
	}
	ws.AddWindow(id)
	s.hostOf[id] = key
	return nil
}

// RemoveWindow removes a window from whichever workspace hosts it.
func (s *Shell) RemoveWindow(id WindowID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.hostOf[id]
	if !ok {
		return
	}
	if ws, ok := s.workspaces[name]; ok {
		ws.RemoveWindow(id)
	}
	delete(s.hostOf, id)
}

// HostOf returns the key (Workspace.Key()) of the workspace currently
// hosting id.
func (s *Shell) HostOf(id WindowID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.hostOf[id]
	return name, ok
}

// RefreshAll runs Refresh on every workspace.
func (s *Shell) RefreshAll(alive AliveChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.workspaces {
		ws.Refresh(alive)
	}
}

// Workspaces returns every registered workspace.
func (s *Shell) Workspaces() []*Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		out = append(out, ws)
	}
	return out
}
