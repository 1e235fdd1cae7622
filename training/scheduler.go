package training

import (
	"math"
)

// LRScheduler computes the learning rate handed to the optimizer step each
// round. Schedulers are pure functions of (epoch, round, base rate) so the
// coordinator can consult them without carrying extra state.
type LRScheduler interface {
	// GetLR returns the learning rate for the given epoch and round.
	GetLR(epoch, round int, baseLR float64) float64

	// Name returns the scheduler name for logging.
	Name() string
}

// ConstantLR always returns the base learning rate.
type ConstantLR struct{}

func (ConstantLR) GetLR(epoch, round int, baseLR float64) float64 { return baseLR }
func (ConstantLR) Name() string                                   { return "ConstantLR" }

// StepLR reduces the learning rate by a multiplicative factor every StepSize
// epochs.
type StepLR struct {
	StepSize int
	Gamma    float64
}

// NewStepLR creates a step scheduler. Out-of-range arguments fall back to
// reducing by 10x every 30 epochs.
func NewStepLR(stepSize int, gamma float64) *StepLR {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLR{StepSize: stepSize, Gamma: gamma}
}

func (s *StepLR) GetLR(epoch, round int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch/s.StepSize))
}

func (s *StepLR) Name() string { return "StepLR" }

// ExponentialLR decays the learning rate by Gamma once per epoch.
type ExponentialLR struct {
	Gamma float64
}

// NewExponentialLR creates an exponential scheduler; invalid gamma falls back
// to 5% decay per epoch.
func NewExponentialLR(gamma float64) *ExponentialLR {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialLR{Gamma: gamma}
}

func (s *ExponentialLR) GetLR(epoch, round int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch))
}

func (s *ExponentialLR) Name() string { return "ExponentialLR" }

// CosineAnnealingLR anneals the learning rate from baseLR down to MinLR over
// Period epochs following a half cosine, then restarts.
type CosineAnnealingLR struct {
	Period int
	MinLR  float64
}

// NewCosineAnnealingLR creates a cosine annealing scheduler.
func NewCosineAnnealingLR(period int, minLR float64) *CosineAnnealingLR {
	if period <= 0 {
		period = 50
	}
	if minLR < 0 {
		minLR = 0
	}
	return &CosineAnnealingLR{Period: period, MinLR: minLR}
}

func (s *CosineAnnealingLR) GetLR(epoch, round int, baseLR float64) float64 {
	cycle := epoch % s.Period
	return s.MinLR + (baseLR-s.MinLR)*(1+math.Cos(math.Pi*float64(cycle)/float64(s.Period)))/2
}

func (s *CosineAnnealingLR) Name() string { return "CosineAnnealingLR" }
