package optimizer

import (
	"fmt"
	"math"
)

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates.
type Adam struct {
	config AdamConfig

	params   []float64
	momentum []float64 // first moment
	variance []float64 // second moment

	stepCount uint64
}

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64
}

// DefaultAdamConfig returns the standard Adam hyperparameters.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
	}
}

// NewAdam creates an Adam optimizer over the given parameter vector. The
// vector is updated in place on every Apply.
func NewAdam(params []float64, config AdamConfig) (*Adam, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("parameter vector cannot be empty")
	}
	if config.Beta1 < 0 || config.Beta1 >= 1 {
		return nil, fmt.Errorf("beta1 must be in [0, 1), got %v", config.Beta1)
	}
	if config.Beta2 < 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("beta2 must be in [0, 1), got %v", config.Beta2)
	}
	if config.Epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %v", config.Epsilon)
	}
	if config.WeightDecay < 0 {
		return nil, fmt.Errorf("weight decay cannot be negative: %v", config.WeightDecay)
	}

	return &Adam{
		config:   config,
		params:   params,
		momentum: make([]float64, len(params)),
		variance: make([]float64, len(params)),
	}, nil
}

func (adam *Adam) Apply(gradient []float64, learningRate float64) error {
	if len(gradient) != len(adam.params) {
		return fmt.Errorf("gradient has %d elements, expected %d", len(gradient), len(adam.params))
	}
	if learningRate < 0 {
		return fmt.Errorf("learning rate cannot be negative: %v", learningRate)
	}

	adam.stepCount++
	t := float64(adam.stepCount)
	biasCorr1 := 1 - math.Pow(adam.config.Beta1, t)
	biasCorr2 := 1 - math.Pow(adam.config.Beta2, t)

	for i, g := range gradient {
		if adam.config.WeightDecay > 0 {
			g += adam.config.WeightDecay * adam.params[i]
		}

		adam.momentum[i] = adam.config.Beta1*adam.momentum[i] + (1-adam.config.Beta1)*g
		adam.variance[i] = adam.config.Beta2*adam.variance[i] + (1-adam.config.Beta2)*g*g

		mHat := adam.momentum[i] / biasCorr1
		vHat := adam.variance[i] / biasCorr2
		adam.params[i] -= learningRate * mHat / (math.Sqrt(vHat) + adam.config.Epsilon)
	}

	return nil
}

func (adam *Adam) StepCount() uint64 { return adam.stepCount }

func (adam *Adam) Name() string { return "Adam" }

func (adam *Adam) Parameters() []float64 { return adam.params }

func (adam *Adam) State() *State {
	return &State{
		Type: "Adam",
		Parameters: map[string]float64{
			"beta1":        adam.config.Beta1,
			"beta2":        adam.config.Beta2,
			"epsilon":      adam.config.Epsilon,
			"weight_decay": adam.config.WeightDecay,
		},
		Slots: map[string][]float64{
			"momentum": cloneVector(adam.momentum),
			"variance": cloneVector(adam.variance),
		},
		StepCount: adam.stepCount,
	}
}

func (adam *Adam) LoadState(state *State) error {
	if err := validateStateType("Adam", state); err != nil {
		return err
	}
	momentum, err := loadSlot(state, "momentum", len(adam.params))
	if err != nil {
		return fmt.Errorf("failed to restore Adam state: %v", err)
	}
	variance, err := loadSlot(state, "variance", len(adam.params))
	if err != nil {
		return fmt.Errorf("failed to restore Adam state: %v", err)
	}
	adam.momentum = momentum
	adam.variance = variance
	adam.stepCount = state.StepCount
	return nil
}
