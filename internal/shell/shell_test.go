package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/swlgo/internal/coords"
)

func fullArea() coords.VirtualOutputRelativeRect {
	return coords.VirtualOutputRelativeRect{Rect: coords.Rect{X: 0, Y: 0, W: 1920, H: 1080}}
}

func TestTileThreeWindowsMasterOneFactorHalf(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.SetAvailable(fullArea())
	ws.AddWindow(1) // A
	ws.AddWindow(2) // B
	ws.AddWindow(3) // C
	ws.Arrange()

	a, ok := ws.RectFor(1)
	require.True(t, ok)
	assert.Equal(t, coords.Rect{X: 0, Y: 0, W: 960, H: 1080}, a.Rect)

	b, ok := ws.RectFor(2)
	require.True(t, ok)
	assert.Equal(t, coords.Rect{X: 960, Y: 0, W: 960, H: 540}, b.Rect)

	c, ok := ws.RectFor(3)
	require.True(t, ok)
	assert.Equal(t, coords.Rect{X: 960, Y: 540, W: 960, H: 540}, c.Rect)
}

func TestTileAllMasterWhenCountLessOrEqualNMaster(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 2)
	ws.SetAvailable(fullArea())
	ws.AddWindow(1)
	ws.AddWindow(2)
	ws.Arrange()

	a, _ := ws.RectFor(1)
	b, _ := ws.RectFor(2)
	assert.Equal(t, coords.Rect{X: 0, Y: 0, W: 1920, H: 540}, a.Rect)
	assert.Equal(t, coords.Rect{X: 0, Y: 540, W: 1920, H: 540}, b.Rect)
}

func TestTileAreaSumsExactlyToAvailable(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.SetAvailable(fullArea())
	for i := WindowID(1); i <= 5; i++ {
		ws.AddWindow(i)
	}
	ws.Arrange()

	var total int64
	for i := WindowID(1); i <= 5; i++ {
		r, ok := ws.RectFor(i)
		require.True(t, ok)
		total += r.Area()
	}
	assert.Equal(t, fullArea().Area(), total)
}

func TestSwapToTabbedThenNextTabTwice(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.SetAvailable(fullArea())
	ws.AddWindow(1)
	ws.AddWindow(2)
	ws.AddWindow(3)
	ws.Arrange()

	ws.SetMode(Tabbed)
	ws.Arrange()
	assert.Equal(t, 0, ws.ActiveTabIndex)

	ws.NextTab()
	ws.Arrange()
	assert.Equal(t, 1, ws.ActiveTabIndex)

	ws.NextTab()
	ws.Arrange()
	assert.Equal(t, 2, ws.ActiveTabIndex)

	active := ws.tiledWindows()[ws.ActiveTabIndex]
	rect, ok := ws.RectFor(active)
	require.True(t, ok)
	assert.Equal(t, coords.Rect{X: 0, Y: 6, W: 1920, H: 1074}, rect.Rect)
}

func TestNextTabThenPrevTabIsIdentity(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.SetAvailable(fullArea())
	ws.AddWindow(1)
	ws.AddWindow(2)
	ws.AddWindow(3)
	ws.SetMode(Tabbed)
	start := ws.ActiveTabIndex

	ws.NextTab()
	ws.PrevTab()
	assert.Equal(t, start, ws.ActiveTabIndex)

	ws.PrevTab()
	ws.NextTab()
	assert.Equal(t, start, ws.ActiveTabIndex)
}

func TestRemoveFocusedWindowReElectsTop(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.SetAvailable(fullArea())
	ws.AddWindow(1)
	ws.AddWindow(2)
	ws.AddWindow(3)
	ws.AppendFocus(1)
	ws.AppendFocus(2)
	ws.AppendFocus(3)

	ws.RemoveWindow(3)

	assert.Equal(t, []WindowID{1, 2}, ws.FocusStack())
	focused, ok := ws.Focused()
	require.True(t, ok)
	assert.Equal(t, WindowID(2), focused)
	assert.True(t, ws.NeedsArrange)
}

func TestAddThenRemoveWindowRestoresPriorState(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.SetAvailable(fullArea())
	ws.AddWindow(1)
	before := append([]WindowID(nil), ws.Windows...)

	ws.AddWindow(2)
	ws.RemoveWindow(2)

	assert.Equal(t, before, ws.Windows)
}

func TestAppendFocusDedupes(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.AppendFocus(1)
	ws.AppendFocus(2)
	ws.AppendFocus(1)
	assert.Equal(t, []WindowID{2, 1}, ws.FocusStack())
}

func TestFullscreenSuppressesTiling(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.SetAvailable(fullArea())
	ws.AddWindow(1)
	ws.AddWindow(2)
	ws.SetFullscreen(1)
	ws.Arrange()

	r, ok := ws.RectFor(1)
	require.True(t, ok)
	assert.Equal(t, fullArea().Rect, r.Rect)
	_, ok = ws.RectFor(2)
	assert.False(t, ok)
}

func TestRefreshRemovesDeadWindows(t *testing.T) {
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.AddWindow(1)
	ws.AddWindow(2)

	ws.Refresh(func(id WindowID) bool { return id != 2 })

	assert.Equal(t, []WindowID{1}, ws.Windows)
}

func TestRearrangeWithSameAvailableAreaKeepsRect(t *testing.T) {
	// Setting the same available area again and re-arranging must not
	// perturb an existing window's arranged rect.
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.SetAvailable(fullArea())
	ws.AddWindow(1)
	ws.Arrange()
	before, _ := ws.RectFor(1)

	ws.SetAvailable(fullArea())
	ws.Arrange()
	after, _ := ws.RectFor(1)
	assert.Equal(t, before, after)
}

func TestPopupGeometryAppliesCumulativeOffset(t *testing.T) {
	outputRect := coords.VirtualOutputRelativeRect{Rect: coords.Rect{X: 0, Y: 0, W: 1920, H: 1080}}
	parentOrigin := coords.Point{X: 100, Y: 100}
	cumulative := coords.Point{X: 10, Y: 20}

	got := PopupGeometry(outputRect, parentOrigin, cumulative)
	assert.Equal(t, coords.Rect{X: -110, Y: -120, W: 1920, H: 1080}, got.Rect)
}

func TestShellAddAndRemoveWindowTracksHost(t *testing.T) {
	s := New()
	ws := NewWorkspace("1", "vout-1", 0.5, 1)
	ws.SetAvailable(fullArea())
	s.AddWorkspace(ws)

	require.NoError(t, s.AddWindow(ws.Key(), 42))
	host, ok := s.HostOf(42)
	require.True(t, ok)
	assert.Equal(t, ws.Key(), host)

	s.RemoveWindow(42)
	_, ok = s.HostOf(42)
	assert.False(t, ok)
}

func TestWorkspaceKeyScopesTagPerVirtualOutput(t *testing.T) {
	s := New()
	wsA := NewWorkspace("1", "vout-a", 0.5, 1)
	wsA.SetAvailable(fullArea())
	wsB := NewWorkspace("1", "vout-b", 0.5, 1)
	wsB.SetAvailable(fullArea())

	s.AddWorkspace(wsA)
	s.AddWorkspace(wsB)

	gotA, ok := s.Workspace(wsA.Key())
	require.True(t, ok)
	gotB, ok := s.Workspace(wsB.Key())
	require.True(t, ok)

	assert.NotEqual(t, wsA.Key(), wsB.Key())
	assert.Same(t, wsA, gotA)
	assert.Same(t, wsB, gotB)
}

func TestShellAddWindowUnknownWorkspace(t *testing.T) {
	s := New()
	err := s.AddWindow("missing", 1)
	assert.Error(t, err)
}
