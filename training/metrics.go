package training

import (
	"sync"
)

// WorkerRoundMetrics is one worker's contribution to a round.
type WorkerRoundMetrics struct {
	Worker      int
	Loss        float64
	ClipScale   float64 // 1.0 when the gradient was within the clip norm
	Valid       bool    // false when the gradient was excluded from reduction
	BadElements int     // non-finite elements found by the validator
}

// RoundMetrics is emitted once per round, after reduction and the optimizer
// step. Consumed by logging and UI layers outside the core.
type RoundMetrics struct {
	Epoch        int
	Round        int
	Workers      []WorkerRoundMetrics // only workers that received a batch
	ValidCount   int                  // gradients that entered the reduction
	AvgLoss      float64              // mean over finite worker losses this round
	GradientNorm float64              // L2 norm of the reduced gradient
	LearningRate float64
}

// MetricsSink receives per-round metrics. Implementations are called from
// the coordinator between rounds and should return quickly.
type MetricsSink interface {
	RecordRound(m RoundMetrics)
}

// SinkFunc adapts a function to the MetricsSink interface.
type SinkFunc func(RoundMetrics)

func (f SinkFunc) RecordRound(m RoundMetrics) { f(m) }

// Recorder is a MetricsSink that retains the full round history, for tests
// and UI layers that render training progress.
type Recorder struct {
	mutex  sync.Mutex
	rounds []RoundMetrics
}

// NewRecorder creates an empty metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordRound(m RoundMetrics) {
	r.mutex.Lock()
	r.rounds = append(r.rounds, m)
	r.mutex.Unlock()
}

// Rounds returns a copy of the recorded history.
func (r *Recorder) Rounds() []RoundMetrics {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	out := make([]RoundMetrics, len(r.rounds))
	copy(out, r.rounds)
	return out
}

// Last returns the most recent round, if any.
func (r *Recorder) Last() (RoundMetrics, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.rounds) == 0 {
		return RoundMetrics{}, false
	}
	return r.rounds[len(r.rounds)-1], true
}

// Len returns the number of recorded rounds.
func (r *Recorder) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.rounds)
}
