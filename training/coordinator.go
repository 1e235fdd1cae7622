package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/justmebob123/crystalline/grad"
)

// ErrNoData is returned by RunEpoch when the batch source produced zero
// batches, instead of reporting a degenerate average over nothing.
var ErrNoData = errors.New("training: batch source produced no batches")

// RunEpoch resets the batch source and executes rounds until the source is
// exhausted, returning the mean of the per-round losses. The context is
// checked between rounds only; an in-flight round always completes so no
// buffer is torn down while a worker writes it.
//
// Round state machine: FETCHING -> DISPATCHED -> AWAITING_PHASE_A ->
// REDUCING -> AWAITING_PHASE_B -> next round or EPOCH_DONE.
func (p *Pool) RunEpoch(ctx context.Context, source BatchSource) (float64, error) {
	if source == nil {
		return 0, fmt.Errorf("batch source cannot be nil")
	}
	if err := p.beginEpoch(); err != nil {
		return 0, err
	}
	defer p.endEpoch()

	source.Reset()

	// Defensive ceiling against sources that never signal exhaustion.
	ceiling := p.expectedRounds(source.DeclaredTokenCount()) + p.config.RoundCountMargin

	var epochLoss float64
	rounds := 0

	for {
		// FETCHING. Cancellation is honored only here, between rounds.
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("epoch aborted after %d rounds: %w", rounds, err)
		}
		if rounds >= ceiling {
			return 0, fmt.Errorf(
				"round ceiling exceeded after %d rounds (expected at most %d): batch source failed to signal exhaustion",
				rounds, ceiling)
		}

		batches, err := p.fetchRound(source)
		if err != nil {
			return 0, err
		}
		if len(batches) == 0 {
			break // EPOCH_DONE
		}

		// DISPATCHED: one batch per worker; workers beyond the supply stay
		// idle this round but still participate in the barrier.
		for i, wc := range p.contexts {
			if i < len(batches) {
				wc.batch = batches[i]
			} else {
				wc.batch = nil
			}
		}

		// First arrival releases the workers to compute; the second blocks
		// until every worker has arrived at phase A.
		p.barrier.Await()
		p.barrier.Await()

		// REDUCING: the window between phase A and the next release is the
		// only time the accumulator is touched.
		roundLoss, lr := p.reduce(rounds)

		if err := p.optimizer.Apply(p.accumulator.Gradient(), lr); err != nil {
			p.releaseBatches()
			return 0, fmt.Errorf("optimizer step failed in round %d: %v", rounds, err)
		}

		p.releaseBatches()

		epochLoss += roundLoss
		rounds++
		p.noteRound(roundLoss)

		if p.config.LogEvery > 0 && rounds%p.config.LogEvery == 0 {
			log.Printf("training: epoch %d round %d: loss=%.4f lr=%.6f valid=%d/%d",
				p.epoch, rounds, roundLoss, lr, p.accumulator.Contributors(), len(batches))
		}
		// AWAITING_PHASE_B resolves implicitly: the workers sit parked at
		// the next dispatch arrival until the coordinator loops around.
	}

	if rounds == 0 {
		return 0, ErrNoData
	}

	p.mutex.Lock()
	p.epoch++
	p.mutex.Unlock()

	return epochLoss / float64(rounds), nil
}

func (p *Pool) beginEpoch() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.destroyed {
		return fmt.Errorf("pool has been destroyed")
	}
	if p.running {
		return fmt.Errorf("an epoch is already running")
	}
	p.running = true
	return nil
}

func (p *Pool) endEpoch() {
	p.mutex.Lock()
	p.running = false
	p.mutex.Unlock()
}

func (p *Pool) noteRound(roundLoss float64) {
	p.mutex.Lock()
	p.totalRounds++
	if roundLoss < p.bestLoss {
		p.bestLoss = roundLoss
	}
	p.mutex.Unlock()
}

// expectedRounds estimates how many rounds one epoch should take, rounding
// up so the ceiling never fires on a correct source.
func (p *Pool) expectedRounds(totalTokens int) int {
	usable := totalTokens - 1
	if usable <= 0 {
		return 0
	}
	perBatch := p.config.BatchSize * p.config.SequenceLength
	numBatches := (usable + perBatch - 1) / perBatch
	return (numBatches + p.config.WorkerCount - 1) / p.config.WorkerCount
}

// fetchRound pulls up to one batch per worker. A source error or a
// malformed batch is a protocol violation fatal to the epoch; batches
// already fetched are released before returning.
func (p *Pool) fetchRound(source BatchSource) ([]*Batch, error) {
	batches := make([]*Batch, 0, p.config.WorkerCount)

	for len(batches) < p.config.WorkerCount {
		batch, err := source.Next()
		if err != nil {
			releaseAll(batches)
			return nil, fmt.Errorf("batch source failed: %v", err)
		}
		if batch == nil {
			break
		}
		if err := batch.check(); err != nil {
			batch.Release()
			releaseAll(batches)
			return nil, fmt.Errorf("batch source protocol violation: %v", err)
		}
		if capacity := p.requestedBatchSize * p.config.SequenceLength; batch.Tokens() > capacity {
			batch.Release()
			releaseAll(batches)
			return nil, fmt.Errorf(
				"batch source protocol violation: batch has %d positions, worker scratch buffers hold %d",
				batch.Tokens(), capacity)
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

// reduce validates, clips and accumulates every dispatched worker's gradient
// buffer, averages over the valid contributors, and emits round metrics.
// Runs strictly inside the phase-A/phase-B window.
func (p *Pool) reduce(round int) (roundLoss, lr float64) {
	p.accumulator.Reset()

	metrics := RoundMetrics{Epoch: p.epoch, Round: round}
	var lossSum float64
	lossCount := 0

	for _, wc := range p.contexts {
		if wc.batch == nil {
			continue
		}

		wm := WorkerRoundMetrics{Worker: wc.index, Loss: wc.loss, ClipScale: 1}

		report := grad.Validate(wc.gradient)
		if !report.Valid() {
			// Excluded entirely: not summed, not counted. Training continues
			// with the remaining contributors.
			wc.valid = false
			wc.clipScale = 1
			wm.Valid = false
			wm.BadElements = report.BadTotal()
			log.Printf("training: worker %d gradient excluded from round %d: %s", wc.index, round, report)
		} else {
			scale, _ := grad.Clip(wc.gradient, p.config.ClipNorm)
			wc.valid = true
			wc.clipScale = scale
			wm.Valid = true
			wm.ClipScale = scale
			if err := p.accumulator.Add(wc.gradient); err != nil {
				// Cannot happen: both buffers are sized from GradientSize.
				log.Printf("training: worker %d gradient dropped: %v", wc.index, err)
			}
		}

		// A NaN gradient usually comes with a NaN loss; keep the round
		// average finite either way.
		if !math.IsNaN(wc.loss) && !math.IsInf(wc.loss, 0) {
			lossSum += wc.loss
			lossCount++
		}

		metrics.Workers = append(metrics.Workers, wm)
	}

	p.accumulator.Average()

	if lossCount > 0 {
		roundLoss = lossSum / float64(lossCount)
	}

	lr = p.config.BaseLearningRate
	if p.config.Scheduler != nil {
		lr = p.config.Scheduler.GetLR(p.epoch, round, p.config.BaseLearningRate)
	}

	metrics.ValidCount = p.accumulator.Contributors()
	metrics.AvgLoss = roundLoss
	metrics.GradientNorm = p.accumulator.Norm()
	metrics.LearningRate = lr
	if p.config.Metrics != nil {
		p.config.Metrics.RecordRound(metrics)
	}

	return roundLoss, lr
}

// releaseBatches frees every dispatched batch and clears the assignments.
// Safe during the reduction window: the workers are parked at the next
// dispatch arrival and re-read their assignment only after release.
func (p *Pool) releaseBatches() {
	for _, wc := range p.contexts {
		if wc.batch != nil {
			wc.batch.Release()
			wc.batch = nil
		}
	}
}

func releaseAll(batches []*Batch) {
	for _, b := range batches {
		b.Release()
	}
}
