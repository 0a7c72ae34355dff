package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	"piezo-writer/logger"

	"go.bug.st/serial"
)

const (
	BaudRate  = 115200
	TCPScheme = "tcp://"
)

// LineMode is the only line setting the controller speaks: 115200 8N1.
// go.bug.st/serial never enables hardware flow control on its own.
var LineMode = serial.Mode{
	BaudRate: BaudRate,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// ============================================================================
// Serial Port (physical controller)
// ============================================================================

// SerialPort wraps go.bug.st/serial
type SerialPort struct {
	serial.Port
	portName string
}

var _ Port = (*SerialPort)(nil)

// allow tests to replace the hardware
var openSerial = openSerialPort

// openSerialPort opens a physical serial port
func openSerialPort(portName string) (Port, error) {
	mode := LineMode
	port, err := serial.Open(portName, &mode)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, portName)
		}
		return nil, err
	}

	logger.Debug("Serial port %s opened at %d bps (8N1)", portName, mode.BaudRate)
	return &SerialPort{Port: port, portName: portName}, nil
}

func (p *SerialPort) GetPortName() string {
	return p.portName
}

// endpoint names p for log lines, falling back to the configured path
func endpoint(p Port, path string) string {
	switch v := p.(type) {
	case *SerialPort:
		return v.GetPortName()
	case *TCPPort:
		return v.GetAddress()
	}
	return path
}

// isNotFound reports whether err means the device is gone. The library
// hands back PortError both by value and by pointer depending on platform.
func isNotFound(err error) bool {
	var portErr serial.PortError
	if errors.As(err, &portErr) {
		return portErr.Code() == serial.PortNotFound
	}
	var portErrPtr *serial.PortError
	if errors.As(err, &portErrPtr) {
		return portErrPtr.Code() == serial.PortNotFound
	}
	return errors.Is(err, fs.ErrNotExist)
}

// ============================================================================
// Scoped connection
// ============================================================================

type setupStep struct {
	desc  string
	apply func(Port) error
}

// Line settings go first so that the flushes discard anything received
// at the wrong baud rate.
var setupSteps = []setupStep{
	{"the line settings could not be applied", func(p Port) error {
		mode := LineMode
		return p.SetMode(&mode)
	}},
	{"the input buffer could not be flushed", Port.ResetInputBuffer},
	{"the output buffer could not be flushed", Port.ResetOutputBuffer},
}

type opener func() (Port, error)

// resolve checks that path names something that can be opened and returns
// the function that opens it
func resolve(path string) (opener, error) {
	if strings.HasPrefix(path, TCPScheme) {
		addr, err := net.ResolveTCPAddr("tcp", strings.TrimPrefix(path, TCPScheme))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
		}
		return func() (Port, error) { return openTCP(addr.String()) }, nil
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty device path", ErrNotFound)
	}
	// Windows names like COM3 have no filesystem entry; serial.Open reports those
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
		}
	}
	return func() (Port, error) { return openSerial(path) }, nil
}

// Connect resolves, opens and configures the endpoint at path. Serial
// device paths ("/dev/ttyACM0", "COM3") use go.bug.st/serial; "tcp://host:port"
// reaches a controller behind a serial-over-TCP bridge.
//
// The returned port is fully configured. If any step fails the port has
// already been closed exactly once and nothing is left open.
func Connect(path string) (_ Port, err error) {
	open, err := resolve(path)
	if err != nil {
		return nil, err
	}

	opened, err := open()
	if err != nil {
		return nil, fmt.Errorf("%s could not be opened: %w", path, err)
	}

	defer func() {
		if err == nil {
			return
		}
		if cerr := opened.Close(); cerr != nil {
			logger.Error("Failed to close %s after setup error: %v", endpoint(opened, path), cerr)
		}
	}()

	for _, step := range setupSteps {
		if serr := step.apply(opened); serr != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, step.desc, serr)
		}
	}

	logger.Trace("The connection was configured successfully: %s", endpoint(opened, path))
	return opened, nil
}
