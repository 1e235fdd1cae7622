package optimizer

import (
	"fmt"
	"math"
)

// RMSProp implements the RMSProp optimizer: a running average of squared
// gradients normalizes the step size per parameter.
type RMSProp struct {
	config RMSPropConfig

	params     []float64
	squaredAvg []float64

	stepCount uint64
}

// RMSPropConfig holds configuration for the RMSProp optimizer.
type RMSPropConfig struct {
	Alpha       float64 // smoothing constant for the squared-gradient average
	Epsilon     float64
	WeightDecay float64
}

// DefaultRMSPropConfig returns the standard RMSProp hyperparameters.
func DefaultRMSPropConfig() RMSPropConfig {
	return RMSPropConfig{
		Alpha:   0.99,
		Epsilon: 1e-8,
	}
}

// NewRMSProp creates an RMSProp optimizer over the given parameter vector.
func NewRMSProp(params []float64, config RMSPropConfig) (*RMSProp, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("parameter vector cannot be empty")
	}
	if config.Alpha < 0 || config.Alpha >= 1 {
		return nil, fmt.Errorf("alpha must be in [0, 1), got %v", config.Alpha)
	}
	if config.Epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %v", config.Epsilon)
	}
	if config.WeightDecay < 0 {
		return nil, fmt.Errorf("weight decay cannot be negative: %v", config.WeightDecay)
	}

	return &RMSProp{
		config:     config,
		params:     params,
		squaredAvg: make([]float64, len(params)),
	}, nil
}

func (r *RMSProp) Apply(gradient []float64, learningRate float64) error {
	if len(gradient) != len(r.params) {
		return fmt.Errorf("gradient has %d elements, expected %d", len(gradient), len(r.params))
	}
	if learningRate < 0 {
		return fmt.Errorf("learning rate cannot be negative: %v", learningRate)
	}

	for i, g := range gradient {
		if r.config.WeightDecay > 0 {
			g += r.config.WeightDecay * r.params[i]
		}
		r.squaredAvg[i] = r.config.Alpha*r.squaredAvg[i] + (1-r.config.Alpha)*g*g
		r.params[i] -= learningRate * g / (math.Sqrt(r.squaredAvg[i]) + r.config.Epsilon)
	}

	r.stepCount++
	return nil
}

func (r *RMSProp) StepCount() uint64 { return r.stepCount }

func (r *RMSProp) Name() string { return "RMSProp" }

func (r *RMSProp) Parameters() []float64 { return r.params }

func (r *RMSProp) State() *State {
	return &State{
		Type: "RMSProp",
		Parameters: map[string]float64{
			"alpha":        r.config.Alpha,
			"epsilon":      r.config.Epsilon,
			"weight_decay": r.config.WeightDecay,
		},
		Slots: map[string][]float64{
			"squared_grad_avg": cloneVector(r.squaredAvg),
		},
		StepCount: r.stepCount,
	}
}

func (r *RMSProp) LoadState(state *State) error {
	if err := validateStateType("RMSProp", state); err != nil {
		return err
	}
	squaredAvg, err := loadSlot(state, "squared_grad_avg", len(r.params))
	if err != nil {
		return fmt.Errorf("failed to restore RMSProp state: %v", err)
	}
	r.squaredAvg = squaredAvg
	r.stepCount = state.StepCount
	return nil
}
