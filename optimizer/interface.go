// Package optimizer provides gradient-descent parameter updates over flat
// float64 parameter vectors. An optimizer owns the model parameters it was
// created with and applies one reduced gradient per training round; its
// internal state (momentum, variance) can be snapshotted for checkpoints.
package optimizer

import (
	"fmt"
)

// Optimizer defines the common interface for all optimizers. The interface
// enables state save/restore for checkpoint functionality.
type Optimizer interface {
	// Apply performs a single optimization step: it updates the parameter
	// vector in place using the given gradient and learning rate. The
	// gradient buffer is read-only and must not be retained.
	Apply(gradient []float64, learningRate float64) error

	// StepCount returns the number of optimization steps performed.
	StepCount() uint64

	// Name returns the optimizer name, e.g. "SGD" or "Adam".
	Name() string

	// State extracts the optimizer state for checkpointing.
	State() *State

	// LoadState restores optimizer state from a checkpoint.
	LoadState(state *State) error

	// Parameters returns the parameter vector the optimizer updates.
	Parameters() []float64
}

// State represents the complete serializable state of an optimizer.
type State struct {
	Type       string               `json:"type"`       // "SGD", "Adam", ...
	Parameters map[string]float64   `json:"parameters"` // hyperparameters
	Slots      map[string][]float64 `json:"slots"`      // per-parameter state vectors
	StepCount  uint64               `json:"step_count"`
}

// validateStateType ensures the state type matches the optimizer.
func validateStateType(optimizerType string, state *State) error {
	if state == nil {
		return fmt.Errorf("optimizer state cannot be nil")
	}
	if state.Type != optimizerType {
		return fmt.Errorf("state type mismatch: expected %s, got %s", optimizerType, state.Type)
	}
	return nil
}

// loadSlot copies a named state vector out of a checkpoint, enforcing the
// expected length.
func loadSlot(state *State, name string, want int) ([]float64, error) {
	slot, ok := state.Slots[name]
	if !ok {
		return nil, fmt.Errorf("state is missing %q slot", name)
	}
	if len(slot) != want {
		return nil, fmt.Errorf("%q slot has %d elements, expected %d", name, len(slot), want)
	}
	out := make([]float64, want)
	copy(out, slot)
	return out, nil
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
