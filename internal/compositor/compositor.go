// Package compositor wires the seven hard-core components together
// (§2's data-flow: DeviceRegistry → OutputManager → SurfaceEngine ←
// GpuManager; client commits → Shell → FrameScheduler → SurfaceEngine →
// DRM → VBlank → FrameScheduler) into the single-threaded cooperative
// event loop described in §5.
//
// Grounded on the teacher's server.Server struct (internal/server,
// pre-deletion): one struct owning every subsystem, a Run(ctx) loop,
// and a Close() that tears down in reverse dependency order.
package compositor

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/bnema/swlgo/internal/config"
	"github.com/bnema/swlgo/internal/coords"
	"github.com/bnema/swlgo/internal/drmdev"
	"github.com/bnema/swlgo/internal/gpu"
	"github.com/bnema/swlgo/internal/logger"
	"github.com/bnema/swlgo/internal/outputmgr"
	"github.com/bnema/swlgo/internal/outputproto"
	"github.com/bnema/swlgo/internal/scheduler"
	"github.com/bnema/swlgo/internal/shell"
	"github.com/bnema/swlgo/internal/surface"
	"github.com/bnema/swlgo/internal/voutput"
	"github.com/bnema/swlgo/internal/wire"
)

// Compositor owns every hard-core subsystem for the process lifetime.
type Compositor struct {
	cfg config.Config

	devices   *drmdev.Registry
	renderers *gpu.Manager
	outputs   *outputmgr.Manager
	surfaces  *surface.Registry
	frames    *scheduler.Scheduler
	vouts     *voutput.Fabric
	shell     *shell.Shell
	proto     *outputproto.State

	// workspaceTags counts workspaces already assigned per virtual
	// output, so tags are allocated "1".."9" scoped to each virtual
	// output rather than globally (§8 scenario 4: splitting one
	// physical output into two virtual outputs gives each its own
	// workspace "1").
	workspaceTags map[string]int

	// protocolBus is the external collaborator that dispatches
	// wl_output/output-management wire messages (§1, §6). It is nil
	// until a wire-dispatch process injects one with SetProtocolBus;
	// output add/remove notifications are dropped until then.
	protocolBus wire.ProtocolBus
}

// SetProtocolBus wires the external ProtocolBus collaborator that
// turns head-advertise/withdraw notifications into wire messages.
func (c *Compositor) SetProtocolBus(bus wire.ProtocolBus) {
	c.protocolBus = bus
}

// New loads configuration and constructs every subsystem, but does not
// yet open any DRM devices — that happens in Run so that a failure
// during device enumeration surfaces through the same error path as
// every other startup failure (§6: "exit code ... 1 on initialisation
// failure").
func New() (*Compositor, error) {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("compositor: invalid configuration: %w", err)
	}

	c := &Compositor{
		cfg:           cfg,
		devices:       drmdev.NewRegistry(),
		renderers:     gpu.NewManager(),
		outputs:       outputmgr.NewManager(),
		surfaces:      surface.NewRegistry(),
		vouts:         voutput.New(),
		shell:         shell.New(),
		proto:         outputproto.NewState(),
		workspaceTags: make(map[string]int),
	}
	c.frames = scheduler.New(c.composeSurface)
	c.vouts.LoadSplitConfig(voutput.ParseSplitSpec(cfg.VirtualOutputs))
	return c, nil
}

// Run opens every DRM device, builds the initial output/surface/shell
// state, and blocks until ctx is cancelled (§5: "the loop suspends
// only at the top-level event source").
func (c *Compositor) Run(ctx context.Context) error {
	if err := c.devices.OpenAll(ctx); err != nil {
		return fmt.Errorf("compositor: opening DRM devices: %w", err)
	}

	for _, dev := range c.devices.All() {
		if err := c.renderers.AddNode(dev.Path, dev.Fd()); err != nil {
			logger.Warnf("compositor: %v", err)
		}
	}

	c.rescanOutputs()

	if err := c.runEventLoop(ctx); err != nil {
		return fmt.Errorf("compositor: event loop: %w", err)
	}
	logger.Info("compositor: shutting down")
	return nil
}

// runEventLoop is the top-level event source §5 requires the
// cooperative loop to suspend at: a single poll(2) over every open
// DRM device's fd plus a self-pipe used only to wake the loop on ctx
// cancellation. A readable device fd means one or more VBlank/page-flip
// events are queued; ReadEvents parses them and each CRTC id is
// reported to the FrameScheduler (§4.1, §4.5).
//
// Grounded on other_examples/86e1d903_gioui-gio__ui-app-os_wayland.go.go's
// combined display-fd + notification-pipe poll loop.
func (c *Compositor) runEventLoop(ctx context.Context) error {
	wakeR, wakeW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create wakeup pipe: %w", err)
	}
	defer wakeR.Close()
	defer wakeW.Close()

	go func() {
		<-ctx.Done()
		_, _ = wakeW.Write([]byte{0})
	}()

	devices := c.devices.All()
	for {
		fds := make([]unix.PollFd, 0, len(devices)+1)
		fds = append(fds, unix.PollFd{Fd: int32(wakeR.Fd()), Events: unix.POLLIN})
		for _, dev := range devices {
			fds = append(fds, unix.PollFd{Fd: int32(dev.Fd()), Events: unix.POLLIN})
		}

		_, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}

		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			return nil
		}

		for i, dev := range devices {
			pfd := fds[i+1]
			if pfd.Revents&unix.POLLIN == 0 {
				continue
			}
			crtcIDs, err := dev.ReadEvents()
			if err != nil {
				logger.Warnf("compositor: %s: read DRM events: %v", dev.Path, err)
				continue
			}
			for _, crtcID := range crtcIDs {
				c.frames.ReportVBlank(crtcID)
			}
		}
	}
}

// rescanOutputs reconciles OutputManager against every open device's
// current connector list, then creates/destroys surfaces to match and
// creates a workspace for each new output (§4.3, §4.4). Workspaces of
// removed outputs are kept.
func (c *Compositor) rescanOutputs() {
	for _, dev := range c.devices.All() {
		connectors := dev.Connectors()
		added, removed := c.outputs.Rescan(dev.Path, connectors, dev.CrtcIDs(), dev.PossibleCrtcs)

		for _, name := range added {
			c.onOutputAdded(name)
		}
		for _, name := range removed {
			c.onOutputRemoved(name)
		}
	}
	c.vouts.UpdateAll(c.outputs.All())
}

func (c *Compositor) onOutputAdded(name string) {
	out, ok := c.outputs.Get(name)
	if !ok {
		return
	}

	s := surface.New(out.DevicePath, out.CrtcID, out.ConnectorID, name)
	c.surfaces.Add(s)

	c.frames.AddSurface(out.CrtcID, out.CurrentMode.RefreshMh)

	voutID := "1:1:" + name
	ws := shell.NewWorkspace(c.nextWorkspaceTag(voutID), voutID, c.cfg.MasterFactor, c.cfg.NMaster)
	ws.SetAvailable(coordsFromOutput(out))
	c.shell.AddWorkspace(ws)

	modes := make([]outputproto.HeadMode, 0, len(out.Modes))
	for _, m := range out.Modes {
		modes = append(modes, outputproto.HeadMode{Width: m.Width, Height: m.Height, RefreshMh: m.RefreshMh, Preferred: m.Preferred})
	}
	c.proto.AdvertiseHead(&outputproto.Head{
		Name:    name,
		Enabled: true,
		Modes:   modes,
		Scale:   out.Scale,
	})
	if c.protocolBus != nil {
		c.protocolBus.AdvertiseOutput(name)
	}

	logger.Infof("compositor: output %s added (%dx%d@%dmHz)", name, out.Width(), out.Height(), out.CurrentMode.RefreshMh)
}

func (c *Compositor) onOutputRemoved(name string) {
	// OutputManager has already dropped the Output by the time Rescan
	// reports it removed, so the surface is found by its output name.
	for _, s := range c.surfaces.All() {
		if s.OutputName == name {
			c.frames.RemoveSurface(s.CrtcID)
			c.surfaces.Remove(s.CrtcID)
		}
	}
	c.proto.WithdrawHead(name)
	if c.protocolBus != nil {
		c.protocolBus.WithdrawOutput(name)
	}
	logger.Infof("compositor: output %s removed", name)
}

// nextWorkspaceTag allocates the next free dwm-style tag ("1".."9")
// for the given virtual output, independent of every other virtual
// output's count (§8 scenario 4).
func (c *Compositor) nextWorkspaceTag(voutID string) string {
	n := c.workspaceTags[voutID] + 1
	if n > 9 {
		n = 9
	}
	c.workspaceTags[voutID] = n
	return strconv.Itoa(n)
}

func coordsFromOutput(out *outputmgr.Output) coords.VirtualOutputRelativeRect {
	return coords.VirtualOutputRelativeRect{Rect: coords.Rect{X: 0, Y: 0, W: out.Width(), H: out.Height()}}
}

// composeSurface is the scheduler's compose callback: it resolves the
// surface and its renderer and asks it to queue a frame (§4.4, §4.5).
func (c *Compositor) composeSurface(surfaceID uint32) {
	s, ok := c.surfaces.Get(surfaceID)
	if !ok {
		return
	}
	renderer, ok := c.renderers.RendererFor(s.DevicePath)
	if !ok {
		logger.Warnf("compositor: no renderer for %s", s.DevicePath)
		c.frames.ReportPageFlipError(surfaceID)
		return
	}

	if err := s.QueueFrame(context.Background(), renderer); err != nil {
		logger.Warnf("compositor: queue frame crtc=%d: %v", surfaceID, err)
		c.frames.ReportPageFlipError(surfaceID)
		return
	}
	c.frames.ReportComposed(surfaceID)
}

// Close tears down every subsystem in reverse dependency order.
func (c *Compositor) Close() error {
	for _, s := range c.surfaces.All() {
		s.Suspend()
	}
	if err := c.renderers.Close(); err != nil {
		logger.Warnf("compositor: closing renderers: %v", err)
	}
	return c.devices.Close()
}
