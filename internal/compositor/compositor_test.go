package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/swlgo/internal/coords"
	"github.com/bnema/swlgo/internal/drmdev"
	"github.com/bnema/swlgo/internal/outputmgr"
)

type fakeProtocolBus struct {
	advertised []string
	withdrawn  []string
}

func (f *fakeProtocolBus) AdvertiseOutput(name string) { f.advertised = append(f.advertised, name) }
func (f *fakeProtocolBus) WithdrawOutput(name string)  { f.withdrawn = append(f.withdrawn, name) }
func (f *fakeProtocolBus) PublishFractionalScale(surfaceID uint64, scale float64) {}

func TestOnOutputAddedAndRemovedNotifyProtocolBus(t *testing.T) {
	t.Setenv("SWL_RUN", "")
	t.Setenv("HOME", "/home/test")
	t.Setenv("XDG_CONFIG_HOME", "")

	c, err := New()
	require.NoError(t, err)

	bus := &fakeProtocolBus{}
	c.SetProtocolBus(bus)

	c.outputs.Rescan("/dev/dri/card0", []drmdev.Connector{
		{ID: 1, Name: "conn-1", InterfaceType: 10, Connected: true, EncoderID: 1, CrtcID: 10, Modes: []drmdev.Mode{{Width: 1920, Height: 1080, RefreshMh: 60000, Preferred: true}}},
	}, []uint32{10}, func(uint32) uint32 { return 1 })

	c.onOutputAdded("DP-1")
	assert.Equal(t, []string{"DP-1"}, bus.advertised)

	c.onOutputRemoved("DP-1")
	assert.Equal(t, []string{"DP-1"}, bus.withdrawn)
}

func TestNewRejectsInvalidRunPath(t *testing.T) {
	t.Setenv("SWL_RUN", "relative/path")
	_, err := New()
	assert.Error(t, err)
}

func TestNewSucceedsWithDefaultConfig(t *testing.T) {
	t.Setenv("SWL_RUN", "")
	t.Setenv("HOME", "/home/test")
	t.Setenv("XDG_CONFIG_HOME", "")

	c, err := New()
	require.NoError(t, err)
	assert.NotNil(t, c.devices)
	assert.NotNil(t, c.renderers)
	assert.NotNil(t, c.shell)
}

func TestCoordsFromOutputUsesCurrentMode(t *testing.T) {
	out := &outputmgr.Output{CurrentMode: drmdev.Mode{Width: 1920, Height: 1080}}
	rect := coordsFromOutput(out)
	assert.Equal(t, coords.Rect{X: 0, Y: 0, W: 1920, H: 1080}, rect.Rect)
}

func TestOnOutputAddedNamesWorkspaceByTagNotOutputName(t *testing.T) {
	t.Setenv("SWL_RUN", "")
	t.Setenv("HOME", "/home/test")
	t.Setenv("XDG_CONFIG_HOME", "")

	c, err := New()
	require.NoError(t, err)

	c.outputs.Rescan("/dev/dri/card0", []drmdev.Connector{
		{ID: 1, Name: "conn-1", InterfaceType: 11, Connected: true, EncoderID: 1, CrtcID: 10, Modes: []drmdev.Mode{{Width: 1920, Height: 1080, RefreshMh: 60000, Preferred: true}}},
	}, []uint32{10}, func(uint32) uint32 { return 1 })

	c.onOutputAdded("HDMI-A-1")

	ws, ok := c.shell.Workspace("1:1:HDMI-A-1#1")
	require.True(t, ok)
	assert.Equal(t, "1", ws.Name)
	assert.Equal(t, "1:1:HDMI-A-1", ws.VirtualOutputID)
}

func TestNextWorkspaceTagScopedPerVirtualOutput(t *testing.T) {
	t.Setenv("SWL_RUN", "")
	t.Setenv("HOME", "/home/test")
	t.Setenv("XDG_CONFIG_HOME", "")

	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, "1", c.nextWorkspaceTag("vout-a"))
	assert.Equal(t, "2", c.nextWorkspaceTag("vout-a"))
	assert.Equal(t, "1", c.nextWorkspaceTag("vout-b"))
}
