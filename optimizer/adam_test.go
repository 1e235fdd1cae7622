package optimizer

import (
	"math"
	"testing"
)

func TestNewAdamValidation(t *testing.T) {
	params := make([]float64, 4)

	if _, err := NewAdam(nil, DefaultAdamConfig()); err == nil {
		t.Error("Expected error for empty parameter vector")
	}

	bad := DefaultAdamConfig()
	bad.Beta1 = 1.0
	if _, err := NewAdam(params, bad); err == nil {
		t.Error("Expected error for beta1 = 1")
	}

	bad = DefaultAdamConfig()
	bad.Beta2 = -0.1
	if _, err := NewAdam(params, bad); err == nil {
		t.Error("Expected error for negative beta2")
	}

	bad = DefaultAdamConfig()
	bad.Epsilon = 0
	if _, err := NewAdam(params, bad); err == nil {
		t.Error("Expected error for zero epsilon")
	}
}

func TestAdamFirstStep(t *testing.T) {
	// On the first step the bias correction makes the update lr * g/|g|
	// elementwise (up to epsilon), regardless of gradient magnitude.
	params := []float64{0, 0, 0}
	adam, err := NewAdam(params, DefaultAdamConfig())
	if err != nil {
		t.Fatalf("Failed to create Adam: %v", err)
	}

	if err := adam.Apply([]float64{0.5, -3, 100}, 0.001); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := []float64{-0.001, 0.001, -0.001}
	for i := range want {
		if math.Abs(params[i]-want[i]) > 1e-6 {
			t.Errorf("Parameter %d: expected ~%v, got %v", i, want[i], params[i])
		}
	}
}

func TestAdamConvergesOnQuadratic(t *testing.T) {
	// Minimize f(p) = p^2; the gradient is 2p.
	params := []float64{5}
	adam, err := NewAdam(params, DefaultAdamConfig())
	if err != nil {
		t.Fatalf("Failed to create Adam: %v", err)
	}

	for i := 0; i < 2000; i++ {
		if err := adam.Apply([]float64{2 * params[0]}, 0.05); err != nil {
			t.Fatalf("Apply failed at step %d: %v", i, err)
		}
	}

	if math.Abs(params[0]) > 0.1 {
		t.Errorf("Expected parameter near 0 after descent, got %v", params[0])
	}
	if adam.StepCount() != 2000 {
		t.Errorf("Expected step count 2000, got %d", adam.StepCount())
	}
}

func TestAdamStateRoundTrip(t *testing.T) {
	params := []float64{1, -1}
	adam, _ := NewAdam(params, DefaultAdamConfig())
	for i := 0; i < 5; i++ {
		adam.Apply([]float64{0.3, -0.7}, 0.01)
	}

	state := adam.State()
	if state.Type != "Adam" || state.StepCount != 5 {
		t.Fatalf("Unexpected state: %+v", state)
	}

	restoredParams := []float64{params[0], params[1]}
	restored, _ := NewAdam(restoredParams, DefaultAdamConfig())
	if err := restored.LoadState(state); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	adam.Apply([]float64{0.3, -0.7}, 0.01)
	restored.Apply([]float64{0.3, -0.7}, 0.01)
	for i := range params {
		if math.Abs(params[i]-restoredParams[i]) > 1e-12 {
			t.Errorf("Parameter %d diverged after restore: %v vs %v", i, params[i], restoredParams[i])
		}
	}
}

func TestAdamLoadStateRejectsBadSlots(t *testing.T) {
	adam, _ := NewAdam(make([]float64, 4), DefaultAdamConfig())

	state := &State{
		Type:  "Adam",
		Slots: map[string][]float64{"momentum": make([]float64, 4)},
	}
	if err := adam.LoadState(state); err == nil {
		t.Error("Expected error for missing variance slot")
	}

	state.Slots["variance"] = make([]float64, 3)
	if err := adam.LoadState(state); err == nil {
		t.Error("Expected error for wrong-length variance slot")
	}
}
