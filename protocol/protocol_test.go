package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoltageCommandFormat(t *testing.T) {
	cases := []struct {
		axis Axis
		v    float64
		want string
	}{
		{AxisX, 75.0, "xvoltage=75.00\r\n"},
		{AxisX, 10.5, "xvoltage=10.50\r\n"},
		{AxisY, 20.25, "yvoltage=20.25\r\n"},
		{AxisZ, 0, "zvoltage=0.00\r\n"},
		{AxisZ, 150, "zvoltage=150.00\r\n"},
		{AxisY, 1.006, "yvoltage=1.01\r\n"},
		{AxisX, 3.14159, "xvoltage=3.14\r\n"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, string(VoltageCommand(tc.axis, tc.v)))
	}
}

func TestBuildVoltageCommandRejects(t *testing.T) {
	_, err := BuildVoltageCommand(AxisX, -1)
	assert.ErrorIs(t, err, ErrVoltageRange)

	_, err = BuildVoltageCommand(AxisY, 151)
	assert.ErrorIs(t, err, ErrVoltageRange)

	_, err = BuildVoltageCommand(AxisZ, math.NaN())
	assert.ErrorIs(t, err, ErrVoltageRange)

	_, err = BuildVoltageCommand(Axis(3), 1)
	assert.ErrorIs(t, err, ErrInvalidAxis)

	cmd, err := BuildVoltageCommand(AxisZ, 150)
	require.NoError(t, err)
	assert.Equal(t, "zvoltage=150.00\r\n", string(cmd))
}

func TestInRange(t *testing.T) {
	assert.True(t, InRange(0))
	assert.True(t, InRange(150))
	assert.False(t, InRange(-0.001))
	assert.False(t, InRange(150.001))
	assert.False(t, InRange(math.Inf(1)))
	assert.False(t, InRange(math.NaN()))
}

func TestAxisNames(t *testing.T) {
	assert.Equal(t, byte('x'), AxisX.Letter())
	assert.Equal(t, byte('y'), AxisY.Letter())
	assert.Equal(t, byte('z'), AxisZ.Letter())
	assert.Equal(t, "Z", AxisZ.String())
	assert.Equal(t, "Axis(-1)", Axis(-1).String())
	assert.False(t, Axis(-1).Valid())
	assert.False(t, Axis(AxisCount).Valid())
}

func TestFormatVoltages(t *testing.T) {
	got := FormatVoltages([AxisCount]float64{10.5, 20.25, 0})
	assert.Equal(t, "xvoltage=10.50 yvoltage=20.25 zvoltage=0.00", got)
}

func TestParseCommandRoundTrip(t *testing.T) {
	for _, axis := range Axes {
		gotAxis, gotV, err := ParseCommand(VoltageCommand(axis, 42.5))
		require.NoError(t, err)
		assert.Equal(t, axis, gotAxis)
		assert.InDelta(t, 42.5, gotV, 1e-9)
	}
}

func TestParseCommandMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"x",
		"wvoltage=1.00\r\n",
		"xvolts=1.00\r\n",
		"xvoltage=\r\n",
		"xvoltage=abc\r\n",
	} {
		_, _, err := ParseCommand([]byte(line))
		assert.ErrorIs(t, err, ErrMalformedCommand, "line %q", line)
	}
}

func TestParseCommandKeepsOutOfRange(t *testing.T) {
	axis, v, err := ParseCommand([]byte("yvoltage=-3.50\n"))
	require.NoError(t, err)
	assert.Equal(t, AxisY, axis)
	assert.Equal(t, -3.5, v)
}
