package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeviceSpec is one entry of the pipeline: which device type to build and
// the parameters handed to it untouched
type DeviceSpec struct {
	Type   string    `yaml:"type"`
	Name   string    `yaml:"name,omitempty"`
	Params yaml.Node `yaml:"params"`
}

// Pipeline is the root of a pipeline file. Keys starting with "_" at any
// level are comments and ignored.
type Pipeline struct {
	Devices []DeviceSpec `yaml:"pipeline"`
}

// LoadPipeline reads and validates a pipeline file
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	return ParsePipeline(data)
}

// ParsePipeline parses YAML or JSON pipeline data
func ParsePipeline(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline: %w", err)
	}

	if len(p.Devices) == 0 {
		return nil, fmt.Errorf("pipeline must list at least one device")
	}
	for i, d := range p.Devices {
		if d.Type == "" {
			return nil, fmt.Errorf("pipeline device %d must have a type", i)
		}
		if d.Params.Kind != 0 && d.Params.Kind != yaml.MappingNode && d.Params.ShortTag() != TagNull {
			return nil, fmt.Errorf("pipeline device %d (%s): %w", i, d.Type, ErrNotMapping)
		}
	}
	return &p, nil
}

// DeviceParams returns the ordered params of a device entry
func (d *DeviceSpec) DeviceParams() (Params, error) {
	return ParamsFromNode(&d.Params)
}

// Label names the device in log lines
func (d *DeviceSpec) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Type
}
