package driver

import (
	"bufio"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakeDevice creates a file standing in for /dev/ttyACM0 and routes
// serial opens to mock
func fakeDevice(t *testing.T, mock *MockPort, openErr error) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ttyACM0")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	prev := openSerial
	openSerial = func(name string) (Port, error) {
		if openErr != nil {
			return nil, openErr
		}
		return mock, nil
	}
	t.Cleanup(func() { openSerial = prev })
	return path
}

func TestConnectConfiguresLine(t *testing.T) {
	mock := NewMockPort()
	path := fakeDevice(t, mock, nil)

	port, err := Connect(path)
	require.NoError(t, err)
	assert.Same(t, mock, port)

	mode := mock.Mode()
	require.NotNil(t, mode)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)

	assert.Equal(t, []string{"mode", "flush-in", "flush-out"}, mock.Events())
	assert.Equal(t, 0, mock.Closes())
}

func TestConnectMissingDevice(t *testing.T) {
	_, err := Connect(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Connect("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnectOpenFailure(t *testing.T) {
	mock := NewMockPort()
	path := fakeDevice(t, mock, errors.New("permission denied"))

	_, err := Connect(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be opened")
	assert.Equal(t, 0, mock.Closes())
}

func TestConnectStepFailureClosesOnce(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name   string
		inject func(*MockPort)
		desc   string
	}{
		{"mode", func(m *MockPort) { m.ModeErr = boom }, "line settings"},
		{"flush input", func(m *MockPort) { m.FlushInErr = boom }, "input buffer"},
		{"flush output", func(m *MockPort) { m.FlushOutErr = boom }, "output buffer"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := NewMockPort()
			tc.inject(mock)
			path := fakeDevice(t, mock, nil)

			port, err := Connect(path)
			require.Error(t, err)
			assert.Nil(t, port)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tc.desc)
			assert.Equal(t, 1, mock.Closes())
		})
	}
}

func TestConnectStopsAtFirstFailedStep(t *testing.T) {
	mock := NewMockPort()
	mock.ModeErr = errors.New("unsupported")
	path := fakeDevice(t, mock, nil)

	_, err := Connect(path)
	require.Error(t, err)
	assert.Equal(t, []string{"mode-failed", "close"}, mock.Events())
}

func TestConnectTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line
	}()

	port, err := Connect(TCPScheme + ln.Addr().String())
	require.NoError(t, err)
	defer port.Close()

	_, err = port.Write([]byte("xvoltage=1.00\r\n"))
	require.NoError(t, err)
	require.NoError(t, port.Drain())
	assert.Equal(t, "xvoltage=1.00\r\n", <-received)
}

func TestConnectTCPUnresolvable(t *testing.T) {
	_, err := Connect(TCPScheme + "no-port-here")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockPortDiscardsResponses(t *testing.T) {
	mock := NewMockPort()

	_, err := mock.Write([]byte("zvoltage=2.00\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, mock.Pending())

	require.NoError(t, mock.ResetInputBuffer())
	assert.Equal(t, 0, mock.Pending())

	require.NoError(t, mock.Close())
	_, err = mock.Write([]byte("zvoltage=2.00\r\n"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEndpointNames(t *testing.T) {
	assert.Equal(t, "/dev/ttyACM0", endpoint(&SerialPort{portName: "/dev/ttyACM0"}, "ignored"))
	assert.Equal(t, "127.0.0.1:9999", endpoint(&TCPPort{address: "127.0.0.1:9999"}, "tcp://localhost:9999"))
	assert.Equal(t, "/dev/fake", endpoint(NewMockPort(), "/dev/fake"))
}
