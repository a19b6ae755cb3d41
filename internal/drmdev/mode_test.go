package drmdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshMilliHzCommonModes(t *testing.T) {
	cases := []struct {
		name                  string
		clock, htotal, vtotal uint32
		want                  int32
	}{
		// 1920x1080@60: clock=148500 (kHz), htotal=2200, vtotal=1125
		{"1080p60", 148500, 2200, 1125, 60000},
		// 1280x720@60: clock=74250, htotal=1650, vtotal=750
		{"720p60", 74250, 1650, 750, 60000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := RefreshMilliHz(c.clock, uint16(c.htotal), uint16(c.vtotal))
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestRefreshMilliHzRejectsZeroTotals(t *testing.T) {
	_, err := RefreshMilliHz(148500, 0, 1125)
	assert.Error(t, err)

	_, err = RefreshMilliHz(148500, 2200, 0)
	assert.Error(t, err)
}

func TestSelectModePrefersPreferredFlag(t *testing.T) {
	modes := []Mode{
		{Width: 1280, Height: 720, RefreshMh: 60000},
		{Width: 1920, Height: 1080, RefreshMh: 60000, Preferred: true},
		{Width: 3840, Height: 2160, RefreshMh: 30000},
	}
	got, ok := SelectMode(modes)
	require.True(t, ok)
	assert.Equal(t, int32(1920), got.Width)
}

func TestSelectModeFallsBackToFirst(t *testing.T) {
	modes := []Mode{
		{Width: 1280, Height: 720, RefreshMh: 60000},
		{Width: 1920, Height: 1080, RefreshMh: 60000},
	}
	got, ok := SelectMode(modes)
	require.True(t, ok)
	assert.Equal(t, int32(1280), got.Width)
}

func TestSelectModeEmptyList(t *testing.T) {
	_, ok := SelectMode(nil)
	assert.False(t, ok)
}
