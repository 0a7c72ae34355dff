package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// VMin and VMax bound the voltage the controller accepts, in volts
	VMin = 0.0
	VMax = 150.0

	// CommandBufLen is large enough for any command this package builds
	CommandBufLen = 64

	Terminator = "\r\n"
)

// Axis is one of the three piezo channels
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ

	AxisCount = 3
)

// Axes lists every axis in transmission order
var Axes = [AxisCount]Axis{AxisX, AxisY, AxisZ}

var (
	ErrVoltageRange     = errors.New("voltage out of range")
	ErrInvalidAxis      = errors.New("invalid axis")
	ErrMalformedCommand = errors.New("malformed command")
)

// Valid reports whether a is X, Y or Z
func (a Axis) Valid() bool {
	return a >= AxisX && a <= AxisZ
}

// Letter returns the lowercase prefix the controller expects
func (a Axis) Letter() byte {
	switch a {
	case AxisX:
		return 'x'
	case AxisY:
		return 'y'
	case AxisZ:
		return 'z'
	default:
		return '?'
	}
}

// String returns the uppercase axis name for log lines
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// InRange reports whether v lies in [VMin, VMax]. NaN is never in range.
func InRange(v float64) bool {
	return VMin <= v && v <= VMax
}

// AppendVoltageCommand appends "<axis>voltage=<v>\r\n" to dst with v
// rounded to two decimals
func AppendVoltageCommand(dst []byte, a Axis, v float64) []byte {
	dst = append(dst, a.Letter())
	dst = append(dst, "voltage="...)
	dst = strconv.AppendFloat(dst, v, 'f', 2, 64)
	return append(dst, Terminator...)
}

// VoltageCommand builds the command for one axis. Callers are expected to
// have range checked v already.
func VoltageCommand(a Axis, v float64) []byte {
	return AppendVoltageCommand(make([]byte, 0, CommandBufLen), a, v)
}

// BuildVoltageCommand validates a and v before building the command
func BuildVoltageCommand(a Axis, v float64) ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAxis, int(a))
	}
	if !InRange(v) {
		return nil, fmt.Errorf("%w: %.2f not in [%g, %g]", ErrVoltageRange, v, VMin, VMax)
	}
	return VoltageCommand(a, v), nil
}

// FormatVoltages renders the per-tick summary line
func FormatVoltages(v [AxisCount]float64) string {
	return fmt.Sprintf("xvoltage=%.2f yvoltage=%.2f zvoltage=%.2f", v[AxisX], v[AxisY], v[AxisZ])
}
