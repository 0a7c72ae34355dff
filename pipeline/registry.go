package pipeline

import (
	"fmt"
	"sort"

	"piezo-writer/config"
	"piezo-writer/logger"
)

// InitFunc configures dev from dev.Params
type InitFunc func(dev *Device) error

// Registry maps device type names to their init functions
type Registry struct {
	inits map[string]InitFunc
}

func NewRegistry() *Registry {
	return &Registry{inits: make(map[string]InitFunc)}
}

// Register adds a device type. Registering a name twice is an error.
func (r *Registry) Register(typ string, fn InitFunc) error {
	if typ == "" || fn == nil {
		return fmt.Errorf("device type and init function are required")
	}
	if _, exists := r.inits[typ]; exists {
		return fmt.Errorf("device type %q is already registered", typ)
	}
	r.inits[typ] = fn
	return nil
}

// Types returns the registered type names, sorted
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.inits))
	for name := range r.inits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build configures every device of p in order, starting from a state that
// carries input. If any device fails, the ones already built are closed in
// reverse order and the error is returned.
func (r *Registry) Build(p *config.Pipeline, input Contract) (devices []*Device, err error) {
	defer func() {
		if err == nil {
			return
		}
		closeAll(devices)
		devices = nil
	}()

	have := input
	for i := range p.Devices {
		entry := &p.Devices[i]

		initFn, ok := r.inits[entry.Type]
		if !ok {
			return devices, fmt.Errorf("device %d: unknown device type %q (known: %v)", i, entry.Type, r.Types())
		}

		params, err := entry.DeviceParams()
		if err != nil {
			return devices, fmt.Errorf("device %d (%s): %w", i, entry.Label(), err)
		}

		dev := &Device{Name: entry.Label(), Type: entry.Type, Params: params}
		logger.Debug("Configuring device %q (%s)", dev.Name, dev.Type)
		if err := initFn(dev); err != nil {
			// A failed init may still have set a stage before bailing out
			dev.Close()
			return devices, fmt.Errorf("device %d (%s): %w", i, dev.Name, err)
		}
		if dev.Stage == nil {
			return devices, fmt.Errorf("device %d (%s): init did not attach a stage", i, dev.Name)
		}
		devices = append(devices, dev)

		if !dev.In.Accepts(have) {
			return devices, fmt.Errorf("device %d (%s): expects %s input, pipeline provides %s", i, dev.Name, dev.In, have)
		}
		have = dev.Out.Then(have)
	}
	return devices, nil
}

func closeAll(devices []*Device) {
	for i := len(devices) - 1; i >= 0; i-- {
		if err := devices[i].Close(); err != nil {
			logger.Error("Failed to close device %q: %v", devices[i].Name, err)
		}
	}
}
