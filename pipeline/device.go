package pipeline

import (
	"fmt"

	"piezo-writer/config"
)

// Type describes what a stage consumes or produces
type Type int

const (
	TypeUnchanged Type = iota
	TypeVector
)

func (t Type) String() string {
	switch t {
	case TypeUnchanged:
		return "unchanged"
	case TypeVector:
		return "vector"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Unit is the physical unit of the values in the state
type Unit int

const (
	UnitUnchanged Unit = iota
	UnitVolts
)

func (u Unit) String() string {
	switch u {
	case UnitUnchanged:
		return "unchanged"
	case UnitVolts:
		return "V"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// Contract is the type and unit a device declares for its input or output
type Contract struct {
	Type Type
	Unit Unit
}

func (c Contract) String() string {
	return c.Type.String() + "/" + c.Unit.String()
}

// Accepts reports whether a stage declaring c as input can consume a state
// described by have
func (c Contract) Accepts(have Contract) bool {
	if c.Type != TypeUnchanged && c.Type != have.Type {
		return false
	}
	if c.Unit != UnitUnchanged && c.Unit != have.Unit {
		return false
	}
	return true
}

// Then returns what the state looks like after a stage declaring c as its
// output has run on a state described by have
func (c Contract) Then(have Contract) Contract {
	out := have
	if c.Type != TypeUnchanged {
		out.Type = c.Type
	}
	if c.Unit != UnitUnchanged {
		out.Unit = c.Unit
	}
	return out
}

// State is what flows through the pipeline each tick. Stages must not
// keep references to Vector past the tick.
type State struct {
	Vector []float64
	Tick   uint64
}

// Stage is what a configured device contributes to the loop
type Stage interface {
	Process(st *State) error
	Close() error
}

// Device is one configured entry of the pipeline. Init functions fill in
// Stage, In and Out.
type Device struct {
	Name   string
	Type   string
	Params config.Params

	Stage Stage
	In    Contract
	Out   Contract
}

// Close releases the stage once; later calls do nothing
func (d *Device) Close() error {
	if d.Stage == nil {
		return nil
	}
	stage := d.Stage
	d.Stage = nil
	return stage.Close()
}
