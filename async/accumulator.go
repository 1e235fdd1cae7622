package async

import (
	"fmt"
	"sync"
)

// TokenAccumulator buffers incoming token streams until enough tokens have
// arrived to fill one training slab of batchSize*seqLen tokens. It exists for
// continuous-ingestion setups where tokens trickle in from outside the
// training loop; the producer side appends, the training side drains whole
// slabs.
type TokenAccumulator struct {
	mutex     sync.Mutex
	tokens    []uint32
	batchSize int
	seqLen    int
}

// NewTokenAccumulator creates an accumulator targeting slabs of
// batchSize*seqLen tokens.
func NewTokenAccumulator(batchSize, seqLen int) (*TokenAccumulator, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if seqLen <= 0 {
		return nil, fmt.Errorf("sequence length must be positive, got %d", seqLen)
	}

	return &TokenAccumulator{
		tokens:    make([]uint32, 0, batchSize*seqLen*10),
		batchSize: batchSize,
		seqLen:    seqLen,
	}, nil
}

// slabSize is the number of tokens handed out per Drain.
func (ta *TokenAccumulator) slabSize() int {
	return ta.batchSize * ta.seqLen
}

// Add appends tokens to the buffer.
func (ta *TokenAccumulator) Add(tokens []uint32) {
	if len(tokens) == 0 {
		return
	}

	ta.mutex.Lock()
	ta.tokens = append(ta.tokens, tokens...)
	ta.mutex.Unlock()
}

// Ready reports whether at least one full slab is buffered.
func (ta *TokenAccumulator) Ready() bool {
	ta.mutex.Lock()
	defer ta.mutex.Unlock()
	return len(ta.tokens) >= ta.slabSize()
}

// Drain removes and returns one full slab of tokens, or an error if not
// enough tokens are buffered yet. The returned slice is owned by the caller.
func (ta *TokenAccumulator) Drain() ([]uint32, error) {
	ta.mutex.Lock()
	defer ta.mutex.Unlock()

	required := ta.slabSize()
	if len(ta.tokens) < required {
		return nil, fmt.Errorf("accumulator not ready: have %d tokens, need %d", len(ta.tokens), required)
	}

	slab := make([]uint32, required)
	copy(slab, ta.tokens[:required])

	remaining := copy(ta.tokens, ta.tokens[required:])
	ta.tokens = ta.tokens[:remaining]

	return slab, nil
}

// Len returns the number of buffered tokens.
func (ta *TokenAccumulator) Len() int {
	ta.mutex.Lock()
	defer ta.mutex.Unlock()
	return len(ta.tokens)
}

// Required returns how many more tokens are needed before the next slab is
// ready. Zero means Drain will succeed.
func (ta *TokenAccumulator) Required() int {
	ta.mutex.Lock()
	defer ta.mutex.Unlock()

	if needed := ta.slabSize() - len(ta.tokens); needed > 0 {
		return needed
	}
	return 0
}

// Clear discards all buffered tokens.
func (ta *TokenAccumulator) Clear() {
	ta.mutex.Lock()
	ta.tokens = ta.tokens[:0]
	ta.mutex.Unlock()
}
