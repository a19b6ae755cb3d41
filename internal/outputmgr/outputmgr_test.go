package outputmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/swlgo/internal/drmdev"
)

func modes1080p() []drmdev.Mode {
	return []drmdev.Mode{
		{Width: 1920, Height: 1080, RefreshMh: 60000, Preferred: true},
		{Width: 1280, Height: 720, RefreshMh: 60000},
	}
}

func TestRescanAllocatesInterfaceShortName(t *testing.T) {
	m := NewManager()
	conns := []drmdev.Connector{
		{ID: 10, InterfaceType: 11, Connected: true, EncoderID: 1, CrtcID: 5, Modes: modes1080p()},
	}
	allCrtcs := []uint32{5, 6}
	added, removed := m.Rescan("/dev/dri/card0", conns, allCrtcs, func(uint32) uint32 { return 0b11 })

	require.Len(t, added, 1)
	assert.Empty(t, removed)
	assert.Equal(t, "HDMI-A-1", added[0])

	out, ok := m.Get("HDMI-A-1")
	require.True(t, ok)
	assert.Equal(t, int32(1920), out.Width())
	assert.Equal(t, TransformNormal, out.Transform)
	assert.Equal(t, 1.0, out.Scale)
	assert.Equal(t, uint32(5), out.CrtcID)
}

func TestRescanIsIdempotentForStableConnector(t *testing.T) {
	m := NewManager()
	conns := []drmdev.Connector{
		{ID: 10, InterfaceType: 14, Connected: true, EncoderID: 1, CrtcID: 5, Modes: modes1080p()},
	}
	allCrtcs := []uint32{5}

	added1, _ := m.Rescan("/dev/dri/card0", conns, allCrtcs, func(uint32) uint32 { return 0b1 })
	require.Len(t, added1, 1)
	name := added1[0]

	added2, removed2 := m.Rescan("/dev/dri/card0", conns, allCrtcs, func(uint32) uint32 { return 0b1 })
	assert.Empty(t, added2)
	assert.Empty(t, removed2)

	all := m.All()
	require.Len(t, all, 1)
	assert.Equal(t, name, all[0].Name)
}

func TestRescanTearsDownDisconnectedOutput(t *testing.T) {
	m := NewManager()
	conns := []drmdev.Connector{
		{ID: 10, InterfaceType: 14, Connected: true, EncoderID: 1, CrtcID: 5, Modes: modes1080p()},
	}
	allCrtcs := []uint32{5}
	added, _ := m.Rescan("/dev/dri/card0", conns, allCrtcs, func(uint32) uint32 { return 0b1 })
	require.Len(t, added, 1)

	conns[0].Connected = false
	_, removed := m.Rescan("/dev/dri/card0", conns, allCrtcs, func(uint32) uint32 { return 0b1 })
	require.Len(t, removed, 1)
	assert.Empty(t, m.All())
}

func TestRescanFallsBackToFreeCrtcWhenCurrentTaken(t *testing.T) {
	m := NewManager()
	// Two connectors both reporting crtc 5 as current; second must fall
	// back to crtc 6.
	connsA := []drmdev.Connector{
		{ID: 10, InterfaceType: 11, Connected: true, EncoderID: 1, CrtcID: 5, Modes: modes1080p()},
	}
	allCrtcs := []uint32{5, 6}
	_, _ = m.Rescan("/dev/dri/card0", connsA, allCrtcs, func(uint32) uint32 { return 0b11 })

	connsB := []drmdev.Connector{
		{ID: 11, InterfaceType: 11, Connected: true, EncoderID: 2, CrtcID: 5, Modes: modes1080p()},
	}
	added, _ := m.Rescan("/dev/dri/card0", connsB, allCrtcs, func(uint32) uint32 { return 0b11 })
	require.Len(t, added, 1)

	out, ok := m.Get(added[0])
	require.True(t, ok)
	assert.Equal(t, uint32(6), out.CrtcID)
}

func TestIsInterfaceShort(t *testing.T) {
	assert.True(t, IsInterfaceShort("HDMI-A-1"))
	assert.True(t, IsInterfaceShort("eDP-1"))
	assert.False(t, IsInterfaceShort("custom-voutput"))
}
