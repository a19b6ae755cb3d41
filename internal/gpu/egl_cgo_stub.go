//go:build !cgo
// +build !cgo

package gpu

import "fmt"

func newRenderer(devicePath string, fd uintptr) (Renderer, error) {
	return nil, fmt.Errorf("gpu: EGL renderer not available (build with CGO enabled)")
}
