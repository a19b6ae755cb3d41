package surface

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/swlgo/internal/errs"
	"github.com/bnema/swlgo/internal/gpu"
)

type fakeCompositor struct {
	commits   []uint32
	destroyed bool
	commitErr error
}

func (f *fakeCompositor) Commit(ctx context.Context, fb uint32) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, fb)
	return nil
}
func (f *fakeCompositor) Destroy() error { f.destroyed = true; return nil }

func TestResumeAttachesCompositorAndForcesRedraw(t *testing.T) {
	s := New("/dev/dri/card0", 5, 10, "HDMI-A-1")
	assert.False(t, s.Resumed())

	c := &fakeCompositor{}
	s.Resume(c)

	assert.True(t, s.Resumed())
	assert.True(t, s.NeedsRedraw())
}

func TestSuspendDetachesAndDestroysCompositor(t *testing.T) {
	s := New("/dev/dri/card0", 5, 10, "HDMI-A-1")
	c := &fakeCompositor{}
	s.Resume(c)

	s.Suspend()

	assert.False(t, s.Resumed())
	assert.True(t, c.destroyed)
}

func TestQueueFrameWithoutCompositorIsModesetError(t *testing.T) {
	s := New("/dev/dri/card0", 5, 10, "HDMI-A-1")
	err := s.QueueFrame(context.Background(), nil)

	var modeset *errs.ModesetError
	require.ErrorAs(t, err, &modeset)
	assert.Equal(t, uint32(5), modeset.CRTC)
}

func TestQueueFrameCommitsAndClearsRedrawFlag(t *testing.T) {
	s := New("/dev/dri/card0", 5, 10, "HDMI-A-1")
	c := &fakeCompositor{}
	s.Resume(c)

	err := s.QueueFrame(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, s.NeedsRedraw())
	assert.Equal(t, []uint32{1}, c.commits)
}

func TestQueueFrameCommitFailureIsModesetError(t *testing.T) {
	s := New("/dev/dri/card0", 5, 10, "HDMI-A-1")
	c := &fakeCompositor{commitErr: errors.New("page flip failed")}
	s.Resume(c)

	err := s.QueueFrame(context.Background(), nil)
	var modeset *errs.ModesetError
	require.ErrorAs(t, err, &modeset)
}

func TestQueueFrameRenderErrorEscalatesToModesetAfterThreshold(t *testing.T) {
	s := New("/dev/dri/card0", 5, 10, "HDMI-A-1")
	c := &fakeCompositor{}
	s.Resume(c)

	original := composeElements
	defer func() { composeElements = original }()
	composeElements = func(r gpu.Renderer, elements []Element) (uint32, error) {
		return 0, errors.New("EGL failure")
	}

	var lastErr error
	for i := 0; i < renderErrorThreshold; i++ {
		lastErr = s.QueueFrame(context.Background(), nil)
	}

	var modeset *errs.ModesetError
	assert.ErrorAs(t, lastErr, &modeset)
}

func TestRegistryAddRemoveSuspendsSurface(t *testing.T) {
	r := NewRegistry()
	s := New("/dev/dri/card0", 5, 10, "HDMI-A-1")
	c := &fakeCompositor{}
	s.Resume(c)
	r.Add(s)

	r.Remove(5)

	assert.True(t, c.destroyed)
	_, ok := r.Get(5)
	assert.False(t, ok)
}
