package drmdev

import "fmt"

// Mode is a single video mode as defined in §3: (width_px, height_px,
// refresh_mHz, preferred_flag).
type Mode struct {
	Width     int32
	Height    int32
	RefreshMh int32
	Preferred bool
}

// RefreshMilliHz computes the refresh rate in millihertz from the mode's
// pixel clock and total timings, per §3:
//
//	(clock·10⁶ + vtotal/2) / (htotal · vtotal)
//
// Interlace and doublescan flags are not honoured, matching the Open
// Question's retained choice (DESIGN.md decision 1). htotal=0 or
// vtotal=0 is rejected to avoid a division by zero (§8).
func RefreshMilliHz(clock uint32, htotal, vtotal uint16) (int32, error) {
	if htotal == 0 || vtotal == 0 {
		return 0, fmt.Errorf("drmdev: mode has htotal=%d vtotal=%d, rejecting", htotal, vtotal)
	}
	num := uint64(clock)*1_000_000 + uint64(vtotal)/2
	den := uint64(htotal) * uint64(vtotal)
	return int32(num / den), nil
}

// SelectMode picks the mode to use from a connector's advertised list:
// the PREFERRED mode if any, otherwise index 0 (§4.3).
func SelectMode(modes []Mode) (Mode, bool) {
	if len(modes) == 0 {
		return Mode{}, false
	}
	for _, m := range modes {
		if m.Preferred {
			return m, true
		}
	}
	return modes[0], true
}
