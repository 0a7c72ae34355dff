package pipeline

import (
	"sync"
	"time"
)

// LoopState represents the lifecycle of the control loop
type LoopState int

const (
	StateIdle LoopState = iota
	StateRunning
	StateStopping
	StateStopped
	StateError
)

// String returns the string representation of the state
func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StatusInfo contains detailed status information for broadcasting
type StatusInfo struct {
	State     string    `json:"state"`
	Message   string    `json:"message"`
	StartedAt time.Time `json:"started_at,omitempty"`
	ElapsedMs int64     `json:"elapsed_ms"`
	Ticks     uint64    `json:"ticks"`
	Errors    uint64    `json:"errors"`
	Vector    []float64 `json:"vector"`
	Devices   []string  `json:"devices"`
	LastError string    `json:"last_error,omitempty"`
}

// StateChangeCallback is called when state changes
type StateChangeCallback func(info StatusInfo)

// StateMachine tracks the loop lifecycle with thread-safety
type StateMachine struct {
	mu sync.RWMutex

	currentState LoopState
	stateStarted time.Time
	lastError    string

	onStateChange StateChangeCallback
}

// NewStateMachine creates a new state machine
func NewStateMachine() *StateMachine {
	return &StateMachine{currentState: StateIdle}
}

// SetCallback sets the state change callback
func (sm *StateMachine) SetCallback(cb StateChangeCallback) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onStateChange = cb
}

// GetState returns the current state
func (sm *StateMachine) GetState() LoopState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// fill copies the lifecycle part of the status into info
func (sm *StateMachine) fill(info *StatusInfo) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.fillLocked(info)
}

func (sm *StateMachine) fillLocked(info *StatusInfo) {
	info.State = sm.currentState.String()
	info.LastError = sm.lastError
	if sm.currentState != StateIdle {
		info.StartedAt = sm.stateStarted
		info.ElapsedMs = time.Since(sm.stateStarted).Milliseconds()
	}

	switch sm.currentState {
	case StateIdle:
		info.Message = "Devices configured, loop not started"
	case StateRunning:
		info.Message = "Control loop running"
	case StateStopping:
		info.Message = "Closing devices..."
	case StateStopped:
		info.Message = "Control loop stopped"
	case StateError:
		info.Message = "Control loop failed: " + sm.lastError
	}
}

// TransitionTo changes to a new state
func (sm *StateMachine) TransitionTo(newState LoopState) {
	sm.mu.Lock()
	sm.currentState = newState
	sm.stateStarted = time.Now()
	if newState != StateError {
		sm.lastError = ""
	}
	cb := sm.onStateChange
	var info StatusInfo
	sm.fillLocked(&info)
	sm.mu.Unlock()

	if cb != nil {
		cb(info)
	}
}

// TransitionToError transitions to error state with a message
func (sm *StateMachine) TransitionToError(err string) {
	sm.mu.Lock()
	sm.currentState = StateError
	sm.stateStarted = time.Now()
	sm.lastError = err
	cb := sm.onStateChange
	var info StatusInfo
	sm.fillLocked(&info)
	sm.mu.Unlock()

	if cb != nil {
		cb(info)
	}
}
