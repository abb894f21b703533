// Package contract wraps numerical kernels in the checked call
// pipeline shared by every component kind: validate the input state,
// marshal quantities into raw arrays, run the kernel, validate its
// results and restore them into labeled quantities. Declarations are
// validated once at construction; the per-call pipeline keeps no state
// between calls.
package contract

import (
	"time"

	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

// RawFields maps raw-array keys (quantity names or aliases) to the
// arrays a kernel reads or writes.
type RawFields = map[string]*ndarray.Array

// TracerKey is the reserved raw key under which tracer-aware kernels
// return their packed tracer result.
const TracerKey = "tracers"

// RawState is the view of a model state handed to kernels: unitless
// arrays in declared layout plus the state clock. Tracers is set only
// for kernels that declare a TracerSpec and run with a packer.
type RawState struct {
	Arrays  RawFields
	Time    time.Time
	Tracers *ndarray.Array
}

// DiagnosticKernel computes quantities from the current state without
// changing it.
type DiagnosticKernel interface {
	InputProperties() props.Properties
	DiagnosticProperties() props.Properties
	Compute(RawState) (RawFields, error)
}

// TendencyKernel computes per-second rates of change for some
// quantities, plus diagnostics.
type TendencyKernel interface {
	InputProperties() props.Properties
	TendencyProperties() props.Properties
	DiagnosticProperties() props.Properties
	Compute(RawState) (tendencies, diagnostics RawFields, err error)
}

// ImplicitTendencyKernel is a tendency kernel whose rates depend on the
// step length, as with schemes that solve over the whole interval.
type ImplicitTendencyKernel interface {
	InputProperties() props.Properties
	TendencyProperties() props.Properties
	DiagnosticProperties() props.Properties
	Compute(RawState, time.Duration) (tendencies, diagnostics RawFields, err error)
}

// StepperKernel advances its output quantities over one interval.
type StepperKernel interface {
	InputProperties() props.Properties
	DiagnosticProperties() props.Properties
	OutputProperties() props.Properties
	Compute(RawState, time.Duration) (diagnostics, outputs RawFields, err error)
}

// TracerSpec is implemented by kernels that want tracer quantities
// packed into RawState.Tracers along the returned dims.
type TracerSpec interface {
	TracerSpec() []string
}

// TracerPacker packs tracer quantities into a single array before the
// kernel call and unpacks the kernel's TracerKey result afterwards.
// Implementations live with the model that defines the tracer set;
// only the interface ships here.
type TracerPacker interface {
	Pack(st *state.State, dims []string) (*ndarray.Array, error)
	Unpack(arr *ndarray.Array, st *state.State) (map[string]*state.Quantity, error)
}

// DiagnosticSource computes diagnostics for a state without modifying
// it. DiagnosticComponent and diagnostic composites implement it.
type DiagnosticSource interface {
	InputProperties() props.Properties
	DiagnosticProperties() props.Properties
	Diagnostics(st *state.State) (map[string]*state.Quantity, error)
}

// TendencySource yields tendencies for a state. Both tendency
// component kinds and tendency composites implement it; components
// with no step dependence ignore dt.
type TendencySource interface {
	InputProperties() props.Properties
	TendencyProperties() props.Properties
	DiagnosticProperties() props.Properties
	TendenciesAt(st *state.State, dt time.Duration) (tendencies, diagnostics map[string]*state.Quantity, err error)
}

// Stepper advances a state by one interval, returning diagnostics and
// the stepped quantities. Untouched quantities are the caller's to
// carry forward.
type Stepper interface {
	InputProperties() props.Properties
	DiagnosticProperties() props.Properties
	OutputProperties() props.Properties
	Step(st *state.State, dt time.Duration) (diagnostics, next map[string]*state.Quantity, err error)
}
