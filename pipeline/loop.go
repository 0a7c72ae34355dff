package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"piezo-writer/logger"

	"go.uber.org/atomic"
)

// FeedContract is what the vector feed puts into the pipeline
var FeedContract = Contract{Type: TypeVector, Unit: UnitVolts}

// Loop calls every device once per tick, in pipeline order, on a single
// goroutine. Process errors are logged and counted; they never stop the loop.
type Loop struct {
	devices  []*Device
	feed     *Feed
	interval time.Duration
	status   *StateMachine

	ticks  atomic.Uint64
	errors atomic.Uint64

	closeOnce sync.Once
}

func NewLoop(devices []*Device, feed *Feed, interval time.Duration) *Loop {
	return &Loop{
		devices:  devices,
		feed:     feed,
		interval: interval,
		status:   NewStateMachine(),
	}
}

// OnStateChange registers a callback for lifecycle transitions
func (l *Loop) OnStateChange(cb StateChangeCallback) {
	l.status.SetCallback(cb)
}

// Tick runs one iteration over a fresh snapshot of the feed
func (l *Loop) Tick() {
	st := &State{
		Vector: l.feed.Snapshot(),
		Tick:   l.ticks.Inc(),
	}

	for _, dev := range l.devices {
		if dev.Stage == nil {
			continue
		}
		if err := dev.Stage.Process(st); err != nil {
			l.errors.Inc()
			logger.Error("Device %q failed on tick %d: %v", dev.Name, st.Tick, err)
		}
	}
}

// Run ticks every interval until ctx is done, then closes all devices.
// A loop runs at most once.
// Ticks that overrun the interval are not made up.
func (l *Loop) Run(ctx context.Context) error {
	if state := l.status.GetState(); state != StateIdle {
		return fmt.Errorf("loop cannot start from state %s", state)
	}
	if l.interval <= 0 {
		err := errors.New("loop interval must be positive")
		l.status.TransitionToError(err.Error())
		return err
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.status.TransitionTo(StateRunning)
	logger.Info("Control loop started: %d device(s), period %s", len(l.devices), l.interval)

	for {
		select {
		case <-ctx.Done():
			l.Close()
			logger.Info("Control loop stopped after %d ticks", l.ticks.Load())
			return nil
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Close releases every device in reverse order. Only the first call does
// anything.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.status.TransitionTo(StateStopping)
		closeAll(l.devices)
		l.status.TransitionTo(StateStopped)
	})
}

// Status returns a snapshot for the API
func (l *Loop) Status() StatusInfo {
	info := StatusInfo{
		Ticks:  l.ticks.Load(),
		Errors: l.errors.Load(),
		Vector: l.feed.Snapshot(),
	}
	for _, dev := range l.devices {
		info.Devices = append(info.Devices, dev.Name)
	}
	l.status.fill(&info)
	return info
}
