package training

// ComputeStep is the opaque forward/backward pass. Given a batch and a
// worker's private buffers it returns a scalar loss and fills the gradient
// buffer. Implementations must not retain the buffers past return, and they
// report internal failure only through buffer contents (NaN/Inf); the
// coordinator's validator decides whether a buffer participates in the
// reduction.
type ComputeStep interface {
	Run(batch *Batch, scratch []float64, gradient []float64) float64
}

// ComputeStepFunc adapts a function to the ComputeStep interface.
type ComputeStepFunc func(batch *Batch, scratch []float64, gradient []float64) float64

func (f ComputeStepFunc) Run(batch *Batch, scratch []float64, gradient []float64) float64 {
	return f(batch, scratch, gradient)
}

// OptimizerStep applies a reduced gradient to the model parameters. Invoked
// once per round by the coordinator, inside the reduction window, so the
// implementation never races with worker compute.
type OptimizerStep interface {
	Apply(gradient []float64, learningRate float64) error
}

// WorkerContext is the per-worker state: private gradient and scratch
// buffers plus the current round's assignment and outcome. A context is
// written only by its own worker goroutine while computing and only by the
// coordinator during dispatch and reduction; the barrier separates the two.
type WorkerContext struct {
	index         int
	symmetryGroup int

	gradient []float64
	scratch  []float64

	batch     *Batch // nil when idle this round
	loss      float64
	valid     bool
	clipScale float64

	batchesProcessed int
}

// Index returns the worker's position in the pool (0..N-1).
func (wc *WorkerContext) Index() int { return wc.index }

// SymmetryGroup returns the worker's position in the topology fan-out.
func (wc *WorkerContext) SymmetryGroup() int { return wc.symmetryGroup }

// workerLoop is the body of one worker goroutine. It lives for the pool's
// entire lifetime: block for dispatch, compute if assigned, arrive at
// phase A, repeat. A stop flag observed after the dispatch release exits the
// loop.
func (p *Pool) workerLoop(wc *WorkerContext) {
	defer p.wg.Done()

	for {
		// WAIT_DISPATCH: parked here until the coordinator finishes
		// dispatching (which is also the phase-B release of the previous
		// round).
		p.barrier.Await()

		if p.stopping.Load() {
			return
		}

		if wc.batch != nil {
			for i := range wc.gradient {
				wc.gradient[i] = 0
			}
			wc.loss = p.step.Run(wc.batch, wc.scratch, wc.gradient)
			wc.batchesProcessed++
		}

		// ARRIVE_PHASE_A: hand the buffers over to the coordinator.
		p.barrier.Await()
	}
}
