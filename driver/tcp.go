package driver

import (
	"errors"
	"fmt"
	"net"
	"time"

	"piezo-writer/logger"

	"go.bug.st/serial"
)

// TCPPort wraps a TCP connection as a Port interface
// Used for serial-over-TCP bridges and the mock controller
type TCPPort struct {
	conn    net.Conn
	address string
}

// Ensure TCPPort implements Port interface
var _ Port = (*TCPPort)(nil)

// openTCP opens a TCP connection to a controller
func openTCP(address string) (Port, error) {
	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	logger.Debug("Connected to controller at %s (TCP)", address)
	return &TCPPort{conn: conn, address: address}, nil
}

func (t *TCPPort) Read(p []byte) (n int, err error) {
	// Set read deadline to prevent blocking forever
	t.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	n, err = t.conn.Read(p)

	// Convert timeout to nil error (expected behavior)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return n, nil
	}
	return n, err
}

func (t *TCPPort) Write(p []byte) (n int, err error) {
	t.conn.SetWriteDeadline(time.Time{})
	return t.conn.Write(p)
}

func (t *TCPPort) Close() error {
	return t.conn.Close()
}

// SetMode is accepted and ignored: the bridge owns the line settings
func (t *TCPPort) SetMode(*serial.Mode) error {
	return nil
}

// Drain returns once Write has handed the bytes to the kernel, which is
// already true when Write returns
func (t *TCPPort) Drain() error {
	return nil
}

func (t *TCPPort) ResetInputBuffer() error {
	// Drain any pending data
	buf := make([]byte, 1024)
	t.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	defer t.conn.SetReadDeadline(time.Time{})
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (t *TCPPort) ResetOutputBuffer() error {
	return nil
}

// GetAddress returns the TCP address for logging
func (t *TCPPort) GetAddress() string {
	return t.address
}
