// Package piezo drives a three-axis piezo controller over a serial link.
//
// Each tick the writer takes the pipeline's 3-element voltage vector, routes
// each component to an output axis through the configured map, drops masked
// axes and sends one "<axis>voltage=<v>\r\n" line per remaining axis. The
// controller's replies are discarded.
package piezo

import (
	"fmt"

	"piezo-writer/driver"
	"piezo-writer/logger"
	"piezo-writer/pipeline"
	"piezo-writer/protocol"
)

// DeviceType is the name the writer is registered under
const DeviceType = "tl_piezo"

// allow tests to replace the serial link
var connect = driver.Connect

// Writer owns the connection to one controller
type Writer struct {
	cfg  ChannelConfig
	port driver.Port
	buf  []byte
}

// Register adds the writer to a device registry
func Register(r *pipeline.Registry) error {
	return r.Register(DeviceType, Configure)
}

// Configure validates dev.Params, opens the controller and attaches the
// writer to dev. On error nothing is left open and dev is untouched.
func Configure(dev *pipeline.Device) error {
	cfg, err := ParseChannelConfig(dev.Params)
	if err != nil {
		logger.Error("%v", err)
		return err
	}

	w, err := Open(cfg)
	if err != nil {
		logger.Error("%v", err)
		return err
	}

	dev.Stage = w
	dev.In = pipeline.Contract{Type: pipeline.TypeVector, Unit: pipeline.UnitVolts}
	dev.Out = pipeline.Contract{Type: pipeline.TypeUnchanged, Unit: pipeline.UnitUnchanged}
	return nil
}

// Open connects to the controller described by cfg
func Open(cfg ChannelConfig) (*Writer, error) {
	for i, a := range cfg.Map {
		if !a.Valid() {
			return nil, configErr(KeyMap, protocol.ErrInvalidAxis, "element %d must be in [0, %d], got %d", i, protocol.AxisCount-1, int(a))
		}
	}

	port, err := connect(cfg.DevicePath)
	if err != nil {
		return nil, fmt.Errorf("the piezo controller could not be opened: %w", err)
	}
	logger.Trace("The piezo controller was opened successfully: %s", cfg.DevicePath)

	return &Writer{
		cfg:  cfg,
		port: port,
		buf:  make([]byte, 0, protocol.CommandBufLen),
	}, nil
}

// Config returns the validated configuration
func (w *Writer) Config() ChannelConfig {
	return w.cfg
}

// Process sends one command per enabled axis, waits for them to leave,
// then throws away whatever the controller answered. Failures are logged
// per axis and never returned: one bad axis must not stop the control loop.
func (w *Writer) Process(st *pipeline.State) error {
	if w.port == nil {
		logger.Error("The piezo controller %s is closed; tick %d dropped.", w.cfg.DevicePath, st.Tick)
		return nil
	}

	var volts [protocol.AxisCount]float64

	for _, axis := range protocol.Axes {
		if !w.cfg.Mask[axis] {
			continue
		}

		src := w.cfg.Map[axis]
		if !src.Valid() {
			logger.Error("An invalid axis index was given for the %s axis: %d", axis, int(src))
			continue
		}
		if int(src) >= len(st.Vector) {
			logger.Error("The input vector has %d elements; the %s axis reads element %d.", len(st.Vector), axis, int(src))
			continue
		}

		v := st.Vector[src]
		volts[axis] = v

		if !protocol.InRange(v) {
			logger.Error("An invalid voltage was provided for the %s axis: %.2f", axis, v)
			continue
		}

		w.buf = protocol.AppendVoltageCommand(w.buf[:0], axis, v)
		if err := w.write(w.buf); err != nil {
			logger.Error("An error occurred while writing the %s voltage to the piezo controller: %v", axis, err)
		}
	}

	logger.Info("%s", protocol.FormatVoltages(volts))

	if err := w.port.Drain(); err != nil {
		logger.Error("An error occurred while draining the output buffer: %v", err)
	}
	if err := w.port.ResetInputBuffer(); err != nil {
		logger.Error("An error occurred while flushing the input buffer: %v", err)
	}
	return nil
}

func (w *Writer) write(cmd []byte) error {
	logger.Command("TX", w.cfg.DevicePath, cmd)
	n, err := w.port.Write(cmd)
	if err != nil {
		return err
	}
	if n != len(cmd) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(cmd))
	}
	return nil
}

// Close releases the connection. Calling it again is a no-op.
func (w *Writer) Close() error {
	if w.port == nil {
		return nil
	}
	port := w.port
	w.port = nil

	if err := port.Close(); err != nil {
		logger.Error("An error occurred while closing the piezo controller %s: %v", w.cfg.DevicePath, err)
	}
	return nil
}
