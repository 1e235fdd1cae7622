package optimizer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// SGD implements stochastic gradient descent with optional momentum,
// Nesterov acceleration and L2 weight decay.
type SGD struct {
	config SGDConfig

	params   []float64
	momentum []float64 // nil for vanilla SGD
	scratch  []float64

	stepCount uint64
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	Momentum    float64
	WeightDecay float64
	Nesterov    bool
}

// DefaultSGDConfig returns vanilla SGD: no momentum, no weight decay.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{}
}

// NewSGD creates an SGD optimizer over the given parameter vector. The
// vector is updated in place on every Apply.
func NewSGD(params []float64, config SGDConfig) (*SGD, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("parameter vector cannot be empty")
	}
	if config.Momentum < 0 || config.Momentum > 1 {
		return nil, fmt.Errorf("momentum must be in [0, 1], got %v", config.Momentum)
	}
	if config.WeightDecay < 0 {
		return nil, fmt.Errorf("weight decay cannot be negative: %v", config.WeightDecay)
	}
	if config.Nesterov && config.Momentum == 0 {
		return nil, fmt.Errorf("nesterov acceleration requires momentum")
	}

	sgd := &SGD{
		config:  config,
		params:  params,
		scratch: make([]float64, len(params)),
	}
	if config.Momentum > 0 {
		sgd.momentum = make([]float64, len(params))
	}
	return sgd, nil
}

func (sgd *SGD) Apply(gradient []float64, learningRate float64) error {
	if len(gradient) != len(sgd.params) {
		return fmt.Errorf("gradient has %d elements, expected %d", len(gradient), len(sgd.params))
	}
	if learningRate < 0 {
		return fmt.Errorf("learning rate cannot be negative: %v", learningRate)
	}

	// Effective gradient: g + weight_decay * p, built in scratch so the
	// caller's buffer stays untouched.
	copy(sgd.scratch, gradient)
	if sgd.config.WeightDecay > 0 {
		floats.AddScaled(sgd.scratch, sgd.config.WeightDecay, sgd.params)
	}

	switch {
	case sgd.momentum == nil:
		floats.AddScaled(sgd.params, -learningRate, sgd.scratch)
	case sgd.config.Nesterov:
		floats.Scale(sgd.config.Momentum, sgd.momentum)
		floats.Add(sgd.momentum, sgd.scratch)
		floats.AddScaled(sgd.params, -learningRate, sgd.scratch)
		floats.AddScaled(sgd.params, -learningRate*sgd.config.Momentum, sgd.momentum)
	default:
		floats.Scale(sgd.config.Momentum, sgd.momentum)
		floats.Add(sgd.momentum, sgd.scratch)
		floats.AddScaled(sgd.params, -learningRate, sgd.momentum)
	}

	sgd.stepCount++
	return nil
}

func (sgd *SGD) StepCount() uint64 { return sgd.stepCount }

func (sgd *SGD) Name() string { return "SGD" }

func (sgd *SGD) Parameters() []float64 { return sgd.params }

func (sgd *SGD) State() *State {
	state := &State{
		Type: "SGD",
		Parameters: map[string]float64{
			"momentum":     sgd.config.Momentum,
			"weight_decay": sgd.config.WeightDecay,
		},
		Slots:     map[string][]float64{},
		StepCount: sgd.stepCount,
	}
	if sgd.momentum != nil {
		state.Slots["momentum"] = cloneVector(sgd.momentum)
	}
	return state
}

func (sgd *SGD) LoadState(state *State) error {
	if err := validateStateType("SGD", state); err != nil {
		return err
	}
	if sgd.momentum != nil {
		momentum, err := loadSlot(state, "momentum", len(sgd.params))
		if err != nil {
			return fmt.Errorf("failed to restore SGD state: %v", err)
		}
		sgd.momentum = momentum
	}
	sgd.stepCount = state.StepCount
	return nil
}
