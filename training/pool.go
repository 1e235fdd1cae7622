// Package training implements the parallel batch-training orchestration
// engine: a fixed pool of long-lived worker goroutines that compute one
// batch gradient each per round, synchronized with a reusable two-phase
// barrier, reduced by a single coordinator into a shared accumulator with
// NaN/Inf exclusion and L2 clipping. The coordinator never computes a batch;
// workers never touch shared state. The barrier is the only synchronization
// primitive on the steady-state path.
package training

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/justmebob123/crystalline/async"
	"github.com/justmebob123/crystalline/grad"
)

// Pool owns the worker goroutines, their contexts, the shared accumulator
// and the round barrier. Created once per training run and destroyed once;
// workers are reused across all rounds and epochs.
type Pool struct {
	config             Config
	requestedBatchSize int

	step      ComputeStep
	optimizer OptimizerStep

	contexts    []*WorkerContext
	accumulator *grad.Accumulator
	barrier     *async.RoundBarrier

	wg       sync.WaitGroup
	stopping atomic.Bool

	mutex     sync.Mutex
	running   bool
	destroyed bool

	epoch       int
	totalRounds uint64
	bestLoss    float64
}

// NewPool validates the configuration against the batch source's declared
// token count, allocates all per-worker buffers and the shared accumulator,
// and spawns the worker goroutines. The workers block immediately on the
// barrier awaiting the first round. On any validation failure nothing is
// spawned and no partially-constructed pool is returned.
func NewPool(config Config, step ComputeStep, optimizer OptimizerStep, source BatchSource) (*Pool, error) {
	if step == nil {
		return nil, fmt.Errorf("compute step cannot be nil")
	}
	if optimizer == nil {
		return nil, fmt.Errorf("optimizer step cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("batch source cannot be nil")
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %v", err)
	}

	// Pre-flight dataset-size guard: shrink the batch size or refuse to
	// start before any worker exists.
	requested := config.BatchSize
	effective, err := maxBatchSizeFor(config.BatchSize, config.SequenceLength, source.DeclaredTokenCount())
	if err != nil {
		return nil, err
	}
	if effective != requested {
		log.Printf("training: dataset has %d tokens, fewer than the %d per batch requested; reducing batch size %d -> %d for this run",
			source.DeclaredTokenCount(), requested*config.SequenceLength, requested, effective)
		config.BatchSize = effective
	}

	accumulator, err := grad.NewAccumulator(config.GradientSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gradient accumulator: %v", err)
	}

	barrier, err := async.NewRoundBarrier(config.WorkerCount + 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create round barrier: %v", err)
	}

	p := &Pool{
		config:             config,
		requestedBatchSize: requested,
		step:               step,
		optimizer:          optimizer,
		accumulator:        accumulator,
		barrier:            barrier,
		bestLoss:           math.Inf(1),
	}

	// Scratch is sized for the largest batch a source may legitimately
	// yield: the requested batch size, not the shrunk one. A source built
	// at the requested size keeps producing full-size (padded) batches
	// after the guard reduces the effective size.
	scratchSize := requested * config.SequenceLength
	p.contexts = make([]*WorkerContext, config.WorkerCount)
	for i := range p.contexts {
		p.contexts[i] = &WorkerContext{
			index:         i,
			symmetryGroup: config.Topology.symmetryGroup(i),
			gradient:      make([]float64, config.GradientSize),
			scratch:       make([]float64, scratchSize),
		}
	}

	for _, wc := range p.contexts {
		p.wg.Add(1)
		go p.workerLoop(wc)
	}

	return p, nil
}

// WorkerCount returns the fixed number of workers.
func (p *Pool) WorkerCount() int {
	return p.config.WorkerCount
}

// EffectiveBatchSize returns the batch size in effect for this run, after
// any guard adjustment.
func (p *Pool) EffectiveBatchSize() int {
	return p.config.BatchSize
}

// RequestedBatchSize returns the batch size originally configured.
func (p *Pool) RequestedBatchSize() int {
	return p.requestedBatchSize
}

// Epoch returns the number of completed epochs.
func (p *Pool) Epoch() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.epoch
}

// BestLoss returns the lowest round-average loss seen so far, or +Inf before
// the first round.
func (p *Pool) BestLoss() float64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.bestLoss
}

// TotalRounds returns the number of rounds executed across all epochs.
func (p *Pool) TotalRounds() uint64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.totalRounds
}

// WorkerStats is a snapshot of one worker's lifetime counters.
type WorkerStats struct {
	Worker           int
	SymmetryGroup    int
	BatchesProcessed int
	LastLoss         float64
}

// Stats returns per-worker snapshots. Only meaningful between epochs, when
// no round is in flight.
func (p *Pool) Stats() []WorkerStats {
	stats := make([]WorkerStats, len(p.contexts))
	for i, wc := range p.contexts {
		stats[i] = WorkerStats{
			Worker:           wc.index,
			SymmetryGroup:    wc.symmetryGroup,
			BatchesProcessed: wc.batchesProcessed,
			LastLoss:         wc.loss,
		}
	}
	return stats
}

// Destroy signals termination, releases the workers from the barrier, joins
// them and drops all buffers. Safe to call when RunEpoch was never invoked,
// and idempotent; must not be called concurrently with RunEpoch.
func (p *Pool) Destroy() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.destroyed {
		return
	}
	if p.running {
		// Protocol misuse; refuse rather than tear down buffers a worker
		// may be writing.
		log.Printf("training: Destroy called while an epoch is running; ignoring")
		return
	}
	p.destroyed = true

	// Poison round: no batches, stop flag raised, one last barrier release.
	p.stopping.Store(true)
	for _, wc := range p.contexts {
		wc.batch = nil
	}
	p.barrier.Await()
	p.wg.Wait()

	for _, wc := range p.contexts {
		wc.gradient = nil
		wc.scratch = nil
	}
}
