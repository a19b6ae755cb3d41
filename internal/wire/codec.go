package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wireOrder is the byte order for InputEvent marshaling, matching the
// helixml-helix DRM lease manager's use of binary.LittleEndian for its
// own fixed-header wire protocol.
var wireOrder = binary.LittleEndian

// Marshal encodes an InputEvent into its fixed little-endian wire
// layout.
func Marshal(e InputEvent) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, wireOrder, e); err != nil {
		return nil, fmt.Errorf("wire: marshal input event: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes an InputEvent from its fixed little-endian wire
// layout.
func Unmarshal(data []byte) (InputEvent, error) {
	var e InputEvent
	if err := binary.Read(bytes.NewReader(data), wireOrder, &e); err != nil {
		return InputEvent{}, fmt.Errorf("wire: unmarshal input event: %w", err)
	}
	return e, nil
}
