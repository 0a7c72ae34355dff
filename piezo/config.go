package piezo

import (
	"fmt"

	"piezo-writer/config"
	"piezo-writer/logger"
	"piezo-writer/protocol"
)

// Parameter keys
const (
	KeyDev  = "dev"
	KeyMap  = "map"
	KeyMask = "mask"
)

// ChannelConfig is the validated form of a device's params
type ChannelConfig struct {
	// DevicePath is a serial device ("/dev/ttyACM0") or "tcp://host:port"
	DevicePath string
	// Map[A] is the input component that feeds output axis A
	Map [protocol.AxisCount]protocol.Axis
	// Mask[A] false means axis A is never transmitted
	Mask [protocol.AxisCount]bool
}

// ConfigError reports which parameter was rejected
type ConfigError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return e.Reason
	}
	return fmt.Sprintf("the %q configuration option %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(key string, err error, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...), Err: err}
}

// ParseChannelConfig validates params once. The first occurrence of each
// required key is authoritative: later duplicates and unknown keys only
// produce warnings. Keys starting with "_" are comments.
func ParseChannelConfig(params config.Params) (ChannelConfig, error) {
	var cfg ChannelConfig
	var seenDev, seenMap, seenMask bool

	for _, p := range params {
		switch {
		case p.IsComment():
			continue

		case p.Key == KeyDev:
			if seenDev {
				logger.Warn("The %q configuration option appears more than once (line %d); the duplicate was ignored.", KeyDev, p.Line())
				continue
			}
			seenDev = true

			dev, err := config.AsString(p.Value)
			if err != nil {
				return cfg, configErr(KeyDev, err, "must be a string")
			}
			cfg.DevicePath = dev
			logger.Trace("dev = %s", dev)

		case p.Key == KeyMap:
			if seenMap {
				logger.Warn("The %q configuration option appears more than once (line %d); the duplicate was ignored.", KeyMap, p.Line())
				continue
			}
			seenMap = true

			m, err := parseMap(p)
			if err != nil {
				return cfg, err
			}
			cfg.Map = m
			logger.Trace("map = [%d, %d, %d]", m[0], m[1], m[2])

		case p.Key == KeyMask:
			if seenMask {
				logger.Warn("The %q configuration option appears more than once (line %d); the duplicate was ignored.", KeyMask, p.Line())
				continue
			}
			seenMask = true

			m, err := parseMask(p)
			if err != nil {
				return cfg, err
			}
			cfg.Mask = m
			logger.Trace("mask = [%t, %t, %t]", m[0], m[1], m[2])

		default:
			logger.Warn("An unknown configuration option was ignored: %q", p.Key)
		}
	}

	if !seenDev || !seenMap || !seenMask {
		return cfg, configErr("", nil, "a required configuration option (%q, %q, or %q) is missing", KeyDev, KeyMap, KeyMask)
	}
	return cfg, nil
}

func parseMap(p config.Param) ([protocol.AxisCount]protocol.Axis, error) {
	var m [protocol.AxisCount]protocol.Axis

	elems, err := config.AsArray(p.Value, protocol.AxisCount)
	if err != nil {
		return m, configErr(KeyMap, err, "must be an array of %d integers", protocol.AxisCount)
	}

	for i, elem := range elems {
		v, err := config.AsInt(elem)
		if err != nil {
			return m, configErr(KeyMap, err, "element %d must be an integer", i)
		}
		axis := protocol.Axis(v)
		if !axis.Valid() {
			return m, configErr(KeyMap, protocol.ErrInvalidAxis, "element %d must be in [0, %d], got %d", i, protocol.AxisCount-1, v)
		}
		m[i] = axis
	}
	return m, nil
}

func parseMask(p config.Param) ([protocol.AxisCount]bool, error) {
	var m [protocol.AxisCount]bool

	elems, err := config.AsArray(p.Value, protocol.AxisCount)
	if err != nil {
		return m, configErr(KeyMask, err, "must be an array of %d booleans or integers", protocol.AxisCount)
	}

	for i, elem := range elems {
		switch config.Kind(elem) {
		case "boolean":
			m[i], err = config.AsBool(elem)
		case "integer":
			var v int
			v, err = config.AsInt(elem)
			m[i] = v != 0
		default:
			err = fmt.Errorf("%w: got %s", config.ErrWrongType, config.Kind(elem))
		}
		if err != nil {
			return m, configErr(KeyMask, err, "element %d must be a boolean or integer", i)
		}
	}
	return m, nil
}
