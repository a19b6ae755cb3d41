// Package scheduler implements FrameScheduler (§4.5): a per-surface
// state machine tying VBlank events to redraw requests.
//
//	Idle ──schedule_render──▶ Queued ──compose──▶ Submitted ──VBlank──▶ Idle
//	                                                   │
//	                                                   └─PageFlipError─▶ Idle (with retry)
//
// Grounded on the teacher's use of small explicit state enums plus
// mutex-guarded maps (internal/network's connection-state tracking);
// the watchdog timer follows the teacher's reconnect-backoff timer
// idiom (time.AfterFunc-based, cancelled and rearmed on state change).
package scheduler

import (
	"sync"
	"time"

	"github.com/bnema/swlgo/internal/logger"
)

// State is one of the three FrameScheduler states.
type State int

const (
	Idle State = iota
	Queued
	Submitted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Queued:
		return "queued"
	case Submitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// surfaceState is the scheduler's bookkeeping for one surface.
type surfaceState struct {
	state        State
	redrawLatch  bool // schedule_render arrived while Submitted
	watchdog     *time.Timer
	refreshMilli int32
}

// Scheduler tracks frame state for every surface, keyed by an opaque
// surface id (the CRTC id, per §4.5: "VBlank carries the CRTC id; it
// advances only the corresponding surface").
type Scheduler struct {
	mu       sync.Mutex
	surfaces map[uint32]*surfaceState

	// compose is invoked when a surface transitions Queued -> Submitted;
	// it performs the actual render+pageflip and must itself call
	// ReportComposed on success or ReportPageFlipError on failure for
	// this surface (ReportVBlank only advances a Submitted surface).
	compose func(surfaceID uint32)
}

// New returns a Scheduler that calls compose whenever a surface is
// ready to have its frame composed and submitted.
func New(compose func(surfaceID uint32)) *Scheduler {
	return &Scheduler{
		surfaces: make(map[uint32]*surfaceState),
		compose:  compose,
	}
}

// AddSurface registers a surface in the Idle state. refreshMilliHz is
// used to size the missed-VBlank watchdog at >= 2x the refresh period
// (§4.5).
func (s *Scheduler) AddSurface(surfaceID uint32, refreshMilliHz int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surfaces[surfaceID] = &surfaceState{state: Idle, refreshMilli: refreshMilliHz}
}

// RemoveSurface cancels any outstanding watchdog and drops the
// surface. Per §4.5, removing a Submitted surface is permitted; the
// caller is responsible for destroying the compositor only after the
// final VBlank (or this watchdog) has fired — RemoveSurface itself
// just stops the scheduler from tracking it further.
func (s *Scheduler) RemoveSurface(surfaceID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.surfaces[surfaceID]
	if !ok {
		return
	}
	if st.watchdog != nil {
		st.watchdog.Stop()
	}
	delete(s.surfaces, surfaceID)
}

// State returns the current state of a surface.
func (s *Scheduler) State(surfaceID uint32) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.surfaces[surfaceID]
	if !ok {
		return Idle, false
	}
	return st.state, true
}

// ScheduleRender requests a redraw. Idempotent while Queued; while
// Submitted it sets the redraw-after-VBlank latch instead of queuing
// twice (§4.5).
func (s *Scheduler) ScheduleRender(surfaceID uint32) {
	s.mu.Lock()
	st, ok := s.surfaces[surfaceID]
	if !ok {
		s.mu.Unlock()
		return
	}

	switch st.state {
	case Idle:
		st.state = Queued
		s.mu.Unlock()
		s.compose(surfaceID)
		return
	case Queued:
		// idempotent
	case Submitted:
		st.redrawLatch = true
	}
	s.mu.Unlock()
}

// ReportComposed transitions Queued -> Submitted and arms the
// missed-VBlank watchdog.
func (s *Scheduler) ReportComposed(surfaceID uint32) {
	s.mu.Lock()
	st, ok := s.surfaces[surfaceID]
	if !ok || st.state != Queued {
		s.mu.Unlock()
		return
	}
	st.state = Submitted
	s.armWatchdog(surfaceID, st)
	s.mu.Unlock()
}

// ReportVBlank advances a Submitted surface back to Idle, or
// immediately back to Queued (and re-composes) if the redraw latch
// was set while it was in flight.
func (s *Scheduler) ReportVBlank(surfaceID uint32) {
	s.mu.Lock()
	st, ok := s.surfaces[surfaceID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if st.watchdog != nil {
		st.watchdog.Stop()
		st.watchdog = nil
	}
	if st.state != Submitted {
		s.mu.Unlock()
		return
	}

	if st.redrawLatch {
		st.redrawLatch = false
		st.state = Queued
		s.mu.Unlock()
		s.compose(surfaceID)
		return
	}
	st.state = Idle
	s.mu.Unlock()
}

// ReportPageFlipError returns a Submitted surface to Idle for retry
// (§4.5's PageFlipError transition).
func (s *Scheduler) ReportPageFlipError(surfaceID uint32) {
	s.mu.Lock()
	st, ok := s.surfaces[surfaceID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if st.watchdog != nil {
		st.watchdog.Stop()
		st.watchdog = nil
	}
	st.state = Idle
	latch := st.redrawLatch
	st.redrawLatch = false
	s.mu.Unlock()

	if latch {
		s.ScheduleRender(surfaceID)
	}
}

func (s *Scheduler) armWatchdog(surfaceID uint32, st *surfaceState) {
	period := watchdogPeriod(st.refreshMilli)
	st.watchdog = time.AfterFunc(period, func() {
		logger.Warnf("scheduler: missed VBlank watchdog fired for surface %d", surfaceID)
		s.handleWatchdogFire(surfaceID)
	})
}

func (s *Scheduler) handleWatchdogFire(surfaceID uint32) {
	s.mu.Lock()
	st, ok := s.surfaces[surfaceID]
	if !ok || st.state != Submitted {
		s.mu.Unlock()
		return
	}
	st.watchdog = nil
	st.state = Queued
	s.mu.Unlock()
	s.compose(surfaceID)
}

// watchdogPeriod computes >= 2x the refresh period, defaulting to 33ms
// (≈2x 60Hz) when refresh is unknown (0).
func watchdogPeriod(refreshMilliHz int32) time.Duration {
	if refreshMilliHz <= 0 {
		refreshMilliHz = 60000
	}
	frameNanos := (1_000_000_000_000 / int64(refreshMilliHz)) // mHz -> ns per frame
	return time.Duration(2 * frameNanos)
}
