package training

import (
	"fmt"
	"runtime"
)

// Defaults applied by NewPool for zero-valued config fields.
const (
	DefaultClipNorm         = 10.0
	DefaultRoundCountMargin = 10
	DefaultLearningRate     = 0.01
)

// Config holds the immutable parameters of a training pool. Validated once
// at pool creation; the only field the pool may adjust afterwards is
// BatchSize, which the dataset-size guard can shrink for the run.
type Config struct {
	// WorkerCount is the number of long-lived worker goroutines. Zero selects
	// NumCPU-1 (minimum 1), leaving a core for the coordinator.
	WorkerCount int

	// GradientSize is the model parameter count: the length of every
	// per-worker gradient buffer and of the shared accumulator.
	GradientSize int

	// BatchSize and SequenceLength shape the batches workers consume. The
	// guard may reduce BatchSize when the dataset cannot fill a full batch.
	BatchSize      int
	SequenceLength int

	// ClipNorm is the per-worker L2 clipping threshold. Zero selects 10.0.
	ClipNorm float64

	// RoundCountMargin pads the defensive round ceiling beyond the expected
	// round count. Zero selects 10.
	RoundCountMargin int

	// BaseLearningRate feeds the optimizer step, through Scheduler when set.
	BaseLearningRate float64

	// Scheduler optionally shapes the learning rate per epoch/round.
	Scheduler LRScheduler

	// Topology describes the worker tree. Zero value selects the flat 12-way
	// default.
	Topology Topology

	// Metrics optionally receives per-round metrics.
	Metrics MetricsSink

	// LogEvery prints a progress line every N rounds; 0 disables it.
	LogEvery int
}

// OptimalWorkerCount returns NumCPU-1 (minimum 1).
func OptimalWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Config) applyDefaults() {
	if c.WorkerCount == 0 {
		c.WorkerCount = OptimalWorkerCount()
	}
	if c.ClipNorm == 0 {
		c.ClipNorm = DefaultClipNorm
	}
	if c.RoundCountMargin == 0 {
		c.RoundCountMargin = DefaultRoundCountMargin
	}
	if c.BaseLearningRate == 0 {
		c.BaseLearningRate = DefaultLearningRate
	}
	if c.Topology == (Topology{}) {
		c.Topology = DefaultTopology()
	}
}

func (c *Config) validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.WorkerCount)
	}
	if c.GradientSize < 1 {
		return fmt.Errorf("gradient buffer size must be at least 1, got %d", c.GradientSize)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.SequenceLength < 1 {
		return fmt.Errorf("sequence length must be at least 1, got %d", c.SequenceLength)
	}
	if c.ClipNorm <= 0 {
		return fmt.Errorf("clip norm must be positive, got %v", c.ClipNorm)
	}
	if c.RoundCountMargin < 0 {
		return fmt.Errorf("round count margin must not be negative, got %d", c.RoundCountMargin)
	}
	return c.Topology.validate()
}

// maxBatchSizeFor returns the effective batch size the dataset can sustain,
// or an error when even a single sequence does not fit. This is the guard
// against the deadlock class where a too-small dataset yields zero batches
// forever while workers wait at the barrier.
func maxBatchSizeFor(batchSize, seqLen, totalTokens int) (int, error) {
	tokensPerBatch := batchSize * seqLen
	if totalTokens >= tokensPerBatch {
		return batchSize, nil
	}

	maxBatch := totalTokens / seqLen
	if maxBatch < 1 {
		return 0, fmt.Errorf(
			"dataset too small for training: %d tokens cannot fill one sequence of length %d; need at least %d tokens",
			totalTokens, seqLen, seqLen)
	}
	return maxBatch, nil
}
