package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

var voltageKey = []byte("voltage=")

// ParseCommand decodes one "<axis>voltage=<v>" line. A trailing CRLF or LF
// is accepted. The value is not range checked so that a controller stand-in
// can report out-of-range requests instead of rejecting them.
func ParseCommand(line []byte) (Axis, float64, error) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	if len(line) < 1+len(voltageKey)+1 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedCommand, line)
	}

	var axis Axis
	switch line[0] {
	case 'x':
		axis = AxisX
	case 'y':
		axis = AxisY
	case 'z':
		axis = AxisZ
	default:
		return 0, 0, fmt.Errorf("%w: unknown axis %q", ErrMalformedCommand, line[0])
	}

	if !bytes.HasPrefix(line[1:], voltageKey) {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedCommand, line)
	}

	v, err := strconv.ParseFloat(string(line[1+len(voltageKey):]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return axis, v, nil
}
