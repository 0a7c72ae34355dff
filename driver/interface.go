package driver

import (
	"errors"
	"io"

	"go.bug.st/serial"
)

var (
	ErrNotFound = errors.New("driver: endpoint not found")
	ErrClosed   = errors.New("driver: port closed")
)

// Port defines the serial port interface for the piezo controller link
type Port interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	// Drain blocks until everything written has been transmitted
	Drain() error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}
