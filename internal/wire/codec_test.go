package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputEventRoundTrip(t *testing.T) {
	cases := []InputEvent{
		{Kind: EventPointerMotion, Time: 1000, DeltaX: 1.5, DeltaY: -2.5},
		{Kind: EventPointerMotionAbsolute, Time: 2000, AbsX: 0.5, AbsY: 0.25},
		{Kind: EventKeyboard, Time: 3000, KeyCode: 30, KeyState: 1},
		{Kind: EventPointerButton, Time: 4000, BtnCode: 272, BtnState: 1},
		{Kind: EventPointerAxis, Time: 5000, AxisSrc: 1, Vert: 3.0, V120Vert: 360},
	}

	for _, want := range cases {
		data, err := Marshal(want)
		require.NoError(t, err)

		got, err := Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestUnmarshalTruncatedFails(t *testing.T) {
	_, err := Unmarshal([]byte{0x01, 0x02})
	assert.Error(t, err)
}
