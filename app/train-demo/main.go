package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/justmebob123/crystalline/async"
	"github.com/justmebob123/crystalline/checkpoints"
	"github.com/justmebob123/crystalline/optimizer"
	"github.com/justmebob123/crystalline/training"
)

const (
	vocabSize = 256
	batchSize = 8
	seqLen    = 32
	epochs    = 5
)

func main() {
	fmt.Println("=== Crystalline Parallel Training Demo ===")

	// Synthetic corpus: a repeating ramp with noise, so there is a real
	// next-token pattern for the toy model to learn. The tokens arrive in
	// uneven chunks and are assembled into batch-aligned slabs through the
	// streaming accumulator, the way a tokenizer pipeline would feed it.
	accumulator, err := async.NewTokenAccumulator(batchSize, seqLen)
	if err != nil {
		log.Fatalf("Failed to create token accumulator: %v", err)
	}

	corpus := make([]uint32, 0, 40_000)
	position := 0
	for len(corpus) < 40_000 {
		chunk := make([]uint32, 100+rand.Intn(400))
		for i := range chunk {
			chunk[i] = uint32((position + i + rand.Intn(3)) % vocabSize)
		}
		position += len(chunk)

		accumulator.Add(chunk)
		for accumulator.Ready() {
			slab, err := accumulator.Drain()
			if err != nil {
				log.Fatalf("Failed to drain token slab: %v", err)
			}
			corpus = append(corpus, slab...)
		}
	}

	source, err := training.NewTokenBatchSource(corpus, batchSize, seqLen, false)
	if err != nil {
		log.Fatalf("Failed to create batch source: %v", err)
	}
	fmt.Printf("Corpus: %d tokens, %d batches per epoch\n", len(corpus), source.NumBatches())

	// Toy model: one weight per vocabulary entry predicting the normalized
	// value of the next token. Parameters live in a flat vector the
	// optimizer updates in place.
	params := make([]float64, vocabSize)
	for i := range params {
		params[i] = rand.Float64() * 0.01
	}

	step := training.ComputeStepFunc(func(batch *training.Batch, scratch, gradient []float64) float64 {
		var loss float64
		n := 0
		for i := range batch.InputIDs {
			if batch.Mask[i] == 0 {
				continue
			}
			pred := params[batch.InputIDs[i]]
			want := float64(batch.TargetIDs[i]) / vocabSize
			diff := pred - want
			loss += diff * diff
			n++
		}
		if n == 0 {
			return 0
		}
		for i := range batch.InputIDs {
			if batch.Mask[i] == 0 {
				continue
			}
			pred := params[batch.InputIDs[i]]
			want := float64(batch.TargetIDs[i]) / vocabSize
			gradient[batch.InputIDs[i]] += 2 * (pred - want) / float64(n)
		}
		return loss / float64(n)
	})

	opt, err := optimizer.NewSGD(params, optimizer.SGDConfig{Momentum: 0.9})
	if err != nil {
		log.Fatalf("Failed to create optimizer: %v", err)
	}

	recorder := training.NewRecorder()
	config := training.Config{
		WorkerCount:      training.OptimalWorkerCount(),
		GradientSize:     vocabSize,
		BatchSize:        batchSize,
		SequenceLength:   seqLen,
		ClipNorm:         10,
		BaseLearningRate: 0.5,
		Scheduler:        training.NewCosineAnnealingLR(epochs, 0.05),
		Metrics:          recorder,
		LogEvery:         50,
	}

	pool, err := training.NewPool(config, step, opt, source)
	if err != nil {
		log.Fatalf("Failed to create training pool: %v", err)
	}
	defer pool.Destroy()

	fmt.Printf("Pool: %d workers, batch size %d, sequence length %d\n\n",
		pool.WorkerCount(), pool.EffectiveBatchSize(), seqLen)

	for epoch := 0; epoch < epochs; epoch++ {
		loss, err := pool.RunEpoch(context.Background(), source)
		if err != nil {
			log.Fatalf("Epoch %d failed: %v", epoch, err)
		}
		fmt.Printf("Epoch %d: loss=%.6f\n", epoch, loss)
	}

	fmt.Printf("\nCompleted %d rounds, best round loss %.6f\n", pool.TotalRounds(), pool.BestLoss())

	fmt.Println("\nPer-worker statistics:")
	for _, ws := range pool.Stats() {
		fmt.Printf("  worker %2d (group %2d): %d batches, last loss %.6f\n",
			ws.Worker, ws.SymmetryGroup, ws.BatchesProcessed, ws.LastLoss)
	}

	if last, ok := recorder.Last(); ok {
		fmt.Printf("\nFinal round: %d/%d valid gradients, norm %.4f, lr %.4f\n",
			last.ValidCount, len(last.Workers), last.GradientNorm, last.LearningRate)
	}

	checkpoint := &checkpoints.Checkpoint{
		Parameters: params,
		TrainingState: checkpoints.TrainingState{
			Epoch:       pool.Epoch(),
			TotalRounds: pool.TotalRounds(),
			BestLoss:    pool.BestLoss(),
		},
		OptimizerState: opt.State(),
		Config: checkpoints.RunConfig{
			WorkerCount:      pool.WorkerCount(),
			GradientSize:     vocabSize,
			BatchSize:        pool.EffectiveBatchSize(),
			SequenceLength:   seqLen,
			ClipNorm:         config.ClipNorm,
			BaseLearningRate: config.BaseLearningRate,
		},
		Metadata: checkpoints.Metadata{Description: "train-demo run"},
	}

	saver := checkpoints.NewSaver(checkpoints.FormatBinary)
	if err := saver.Save(checkpoint, "checkpoint.bin"); err != nil {
		log.Fatalf("Failed to save checkpoint: %v", err)
	}
	fmt.Println("\nCheckpoint written to checkpoint.bin")
}
