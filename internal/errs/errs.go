// Package errs defines the error-kind taxonomy from §7. Each kind is a
// distinct type so callers can discriminate with errors.As instead of
// string-matching; propagation follows §7's rule that components log and
// isolate, and only FatalError is allowed to reach the event loop's top
// level.
package errs

import "fmt"

// DeviceError reports a DRM device open/probe failure. The device that
// failed is lost; other devices continue operating.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ModesetError reports a DRM compositor-creation or atomic-commit
// failure. The affected surface moves to a disabled state and is
// retried on the next session activation.
type ModesetError struct {
	CRTC uint32
	Err  error
}

func (e *ModesetError) Error() string {
	return fmt.Sprintf("modeset crtc=%d: %v", e.CRTC, e.Err)
}

func (e *ModesetError) Unwrap() error { return e.Err }

// RenderError reports a GL/EGL failure during compose. The frame is
// dropped and the surface returns to Queued for the next VBlank; a
// threshold of consecutive RenderErrors converts to ModesetError (§7).
type RenderError struct {
	Surface string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render surface=%s: %v", e.Surface, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ImportError reports a dmabuf import failure; the buffer is rejected
// and reported back to the client via an import-notifier collaborator.
type ImportError struct {
	Format uint32
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import format=0x%08x: %v", e.Format, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// ProtocolErrorCode enumerates the output-management protocol error
// codes (§6) a malformed client request can trigger.
type ProtocolErrorCode int

const (
	ErrCodeInvalidMode ProtocolErrorCode = iota
	ErrCodeInvalidTransform
	ErrCodeInvalidAdaptiveSync
	ErrCodeAlreadyConfiguredHead
)

// ProtocolError reports a malformed output-management request; the
// offending object is killed by the (external) protocol runtime.
type ProtocolError struct {
	Code ProtocolErrorCode
	Msg  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Msg)
}

// FatalError reports event-loop corruption, out-of-memory, or session
// loss without recovery. It is the only error kind allowed to terminate
// the process (§7), with a non-zero exit code.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal: %s", e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }
