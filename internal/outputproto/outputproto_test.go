package outputproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/swlgo/internal/errs"
	"github.com/bnema/swlgo/internal/outputmgr"
)

func TestAdvertiseHeadBumpsSerial(t *testing.T) {
	s := NewState()
	assert.Equal(t, uint32(0), s.Serial())

	serial := s.AdvertiseHead(&Head{Name: "HDMI-A-1", Modes: []HeadMode{{Width: 1920, Height: 1080, Preferred: true}}})
	assert.Equal(t, uint32(1), serial)
	assert.Equal(t, uint32(1), s.Serial())
}

func TestApplyWithStaleSerialIsCancelled(t *testing.T) {
	s := NewState()
	s.AdvertiseHead(&Head{Name: "HDMI-A-1", Modes: []HeadMode{{Width: 1920, Height: 1080}}})

	cancelled, err := s.Apply(0, []*HeadUpdate{{Head: "HDMI-A-1"}})
	require.NoError(t, err)
	assert.True(t, cancelled)

	h, _ := s.Head("HDMI-A-1")
	assert.False(t, h.Enabled)
}

func TestApplyWithCurrentSerialSucceeds(t *testing.T) {
	s := NewState()
	serial := s.AdvertiseHead(&Head{Name: "HDMI-A-1", Modes: []HeadMode{{Width: 1920, Height: 1080}}})

	u := &HeadUpdate{Head: "HDMI-A-1"}
	require.NoError(t, u.SetEnabled(true))
	require.NoError(t, u.SetMode(0))

	cancelled, err := s.Apply(serial, []*HeadUpdate{u})
	require.NoError(t, err)
	assert.False(t, cancelled)

	h, _ := s.Head("HDMI-A-1")
	assert.True(t, h.Enabled)
	assert.Equal(t, 0, h.CurrentMode)
	assert.Equal(t, serial+1, s.Serial())
}

func TestDoubleSetOnSameHeadOptionIsProtocolError(t *testing.T) {
	u := &HeadUpdate{Head: "HDMI-A-1"}
	require.NoError(t, u.SetEnabled(true))
	err := u.SetEnabled(false)

	var protoErr *errs.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, errs.ErrCodeAlreadyConfiguredHead, protoErr.Code)
}

func TestSetTransformRejectsUnknownValue(t *testing.T) {
	u := &HeadUpdate{Head: "HDMI-A-1"}
	err := u.SetTransform(outputmgr.Transform(999))

	var protoErr *errs.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, errs.ErrCodeInvalidTransform, protoErr.Code)
}

func TestApplyRejectsOutOfRangeModeIndex(t *testing.T) {
	s := NewState()
	serial := s.AdvertiseHead(&Head{Name: "HDMI-A-1", Modes: []HeadMode{{Width: 1920, Height: 1080}}})

	u := &HeadUpdate{Head: "HDMI-A-1"}
	require.NoError(t, u.SetMode(5))

	_, err := s.Apply(serial, []*HeadUpdate{u})
	var protoErr *errs.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, errs.ErrCodeInvalidMode, protoErr.Code)
}

func TestAdaptiveSyncIsStoredButNeverActedOn(t *testing.T) {
	s := NewState()
	serial := s.AdvertiseHead(&Head{Name: "HDMI-A-1", Modes: []HeadMode{{Width: 1920, Height: 1080}}})

	u := &HeadUpdate{Head: "HDMI-A-1"}
	require.NoError(t, u.SetAdaptiveSync(true))

	_, err := s.Apply(serial, []*HeadUpdate{u})
	require.NoError(t, err)

	h, _ := s.Head("HDMI-A-1")
	assert.True(t, h.AdaptiveSync)
}
