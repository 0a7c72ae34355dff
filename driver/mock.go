package driver

import (
	"bytes"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/atomic"
)

// MockPort stands in for the piezo controller. It records every command
// and every buffer operation in order, and can be told to fail any of them.
type MockPort struct {
	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writes   [][]byte
	events   []string
	mode     *serial.Mode
	closed   bool
	closes   atomic.Int32
	response []byte

	// Set before use to inject failures
	ModeErr     error
	DrainErr    error
	FlushInErr  error
	FlushOutErr error
	CloseErr    error
	// WriteErr, when set, is consulted for every write
	WriteErr func(p []byte) error
}

// NewMockPort returns a port that answers every command with "OK\r\n",
// which the writer is expected to discard
func NewMockPort() *MockPort {
	return &MockPort{
		readBuf:  new(bytes.Buffer),
		response: []byte("OK\r\n"),
	}
}

var _ Port = (*MockPort)(nil)

func (m *MockPort) Read(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.EOF
	}
	if m.readBuf.Len() == 0 {
		return 0, nil
	}
	return m.readBuf.Read(p)
}

func (m *MockPort) Write(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	if m.WriteErr != nil {
		if err := m.WriteErr(p); err != nil {
			m.events = append(m.events, "write-failed:"+string(p))
			return 0, err
		}
	}

	cmd := append([]byte(nil), p...)
	m.writes = append(m.writes, cmd)
	m.events = append(m.events, "write:"+string(p))
	m.readBuf.Write(m.response)
	return len(p), nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closes.Inc()
	m.events = append(m.events, "close")
	m.closed = true
	return m.CloseErr
}

func (m *MockPort) SetMode(mode *serial.Mode) error {
	return m.record("mode", m.ModeErr, func() {
		copied := *mode
		m.mode = &copied
	})
}

func (m *MockPort) Drain() error {
	return m.record("drain", m.DrainErr, nil)
}

func (m *MockPort) ResetInputBuffer() error {
	return m.record("flush-in", m.FlushInErr, m.readBuf.Reset)
}

func (m *MockPort) ResetOutputBuffer() error {
	return m.record("flush-out", m.FlushOutErr, nil)
}

func (m *MockPort) record(event string, fail error, apply func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if fail != nil {
		m.events = append(m.events, event+"-failed")
		return fail
	}
	if apply != nil {
		apply()
	}
	m.events = append(m.events, event)
	return nil
}

// Commands returns the successfully written commands as strings
func (m *MockPort) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.writes))
	for i, w := range m.writes {
		out[i] = string(w)
	}
	return out
}

// Events returns every operation in the order it happened
func (m *MockPort) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// ClearEvents forgets everything recorded so far
func (m *MockPort) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.writes = nil
}

// Mode returns the last mode applied with SetMode
func (m *MockPort) Mode() *serial.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Pending returns how many response bytes are waiting to be read
func (m *MockPort) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readBuf.Len()
}

// Closes returns how many times Close was called
func (m *MockPort) Closes() int {
	return int(m.closes.Load())
}
