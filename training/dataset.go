package training

import (
	"fmt"
	"sync"
)

// PadToken fills positions past the end of the token stream. Padded positions
// carry a zero attention mask so the compute step can ignore them.
const PadToken = 0

// Batch is one unit of work for a single worker in a single round. Ownership
// transfers to exactly one WorkerContext at dispatch and back to the
// coordinator at reduction; it is never shared between workers.
type Batch struct {
	InputIDs    []uint32  // [BatchSize * SeqLen]
	TargetIDs   []uint32  // [BatchSize * SeqLen], inputs shifted by one
	Mask        []float64 // [BatchSize * SeqLen], 1 for real tokens, 0 for padding
	BatchSize   int
	SeqLen      int
	ValidTokens int // non-padding positions

	release func(*Batch)
}

// Tokens returns the total number of positions in the batch.
func (b *Batch) Tokens() int {
	return b.BatchSize * b.SeqLen
}

// Release returns the batch to its source for reuse. The caller must not
// touch the batch afterwards.
func (b *Batch) Release() {
	if b.release != nil {
		b.release(b)
	}
}

// check verifies the batch is well-formed. A malformed batch is a protocol
// violation by the BatchSource and aborts the epoch.
func (b *Batch) check() error {
	if b.BatchSize <= 0 || b.SeqLen <= 0 {
		return fmt.Errorf("malformed batch: batch_size=%d seq_len=%d", b.BatchSize, b.SeqLen)
	}
	n := b.Tokens()
	if len(b.InputIDs) != n || len(b.TargetIDs) != n || len(b.Mask) != n {
		return fmt.Errorf("malformed batch: expected %d positions, got inputs=%d targets=%d mask=%d",
			n, len(b.InputIDs), len(b.TargetIDs), len(b.Mask))
	}
	return nil
}

// BatchSource produces a finite, ordered sequence of batches. Next returns
// (nil, nil) once the source is exhausted. All methods are called from the
// coordinator only; implementations need not be safe for concurrent use.
type BatchSource interface {
	// Reset rewinds the source to the beginning for a new epoch.
	Reset()

	// Next returns the next batch, (nil, nil) at exhaustion, or an error if
	// the source cannot produce a well-formed batch.
	Next() (*Batch, error)

	// DeclaredTokenCount reports the total number of tokens the source spans.
	// Used by the pre-flight dataset-size guard.
	DeclaredTokenCount() int
}

// TokenBatchSource slices a token stream into next-token-prediction batches:
// targets are the inputs shifted by one position, short tails are padded and
// masked out. Batch buffers are recycled through a pool since one set is
// created and freed every round.
type TokenBatchSource struct {
	tokens    []uint32
	position  int
	batchSize int
	seqLen    int
	dropLast  bool

	pool sync.Pool
}

// NewTokenBatchSource creates a source over the given token stream.
// With dropLast set, a trailing partial batch is discarded instead of padded.
func NewTokenBatchSource(tokens []uint32, batchSize, seqLen int, dropLast bool) (*TokenBatchSource, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("token stream is empty")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if seqLen <= 0 {
		return nil, fmt.Errorf("sequence length must be positive, got %d", seqLen)
	}

	s := &TokenBatchSource{
		tokens:    tokens,
		batchSize: batchSize,
		seqLen:    seqLen,
		dropLast:  dropLast,
	}
	s.pool.New = func() interface{} {
		n := batchSize * seqLen
		return &Batch{
			InputIDs:  make([]uint32, n),
			TargetIDs: make([]uint32, n),
			Mask:      make([]float64, n),
			BatchSize: batchSize,
			SeqLen:    seqLen,
			release:   s.recycle,
		}
	}
	return s, nil
}

// Reset rewinds the cursor to the start of the stream.
func (s *TokenBatchSource) Reset() {
	s.position = 0
}

// DeclaredTokenCount returns the length of the underlying token stream.
func (s *TokenBatchSource) DeclaredTokenCount() int {
	return len(s.tokens)
}

// NumBatches returns how many batches one full pass produces. The last token
// has no target, so only len(tokens)-1 positions are usable.
func (s *TokenBatchSource) NumBatches() int {
	usable := len(s.tokens) - 1
	if usable <= 0 {
		return 0
	}
	perBatch := s.batchSize * s.seqLen
	n := usable / perBatch
	if !s.dropLast && usable%perBatch > 0 {
		n++
	}
	return n
}

// Next produces the next batch or (nil, nil) at end of stream.
func (s *TokenBatchSource) Next() (*Batch, error) {
	if s.position >= len(s.tokens) {
		return nil, nil
	}

	// Each position needs a successor token for its target.
	needed := s.batchSize*s.seqLen + 1
	remaining := len(s.tokens) - s.position
	if remaining < needed && s.dropLast {
		return nil, nil
	}
	if remaining <= 1 {
		return nil, nil
	}

	batch := s.pool.Get().(*Batch)
	batch.ValidTokens = 0

	for b := 0; b < s.batchSize; b++ {
		for pos := 0; pos < s.seqLen; pos++ {
			idx := b*s.seqLen + pos
			tokenPos := s.position + b*s.seqLen + pos

			if tokenPos < len(s.tokens)-1 {
				batch.InputIDs[idx] = s.tokens[tokenPos]
				batch.TargetIDs[idx] = s.tokens[tokenPos+1]
				batch.Mask[idx] = 1
				batch.ValidTokens++
			} else {
				batch.InputIDs[idx] = PadToken
				batch.TargetIDs[idx] = PadToken
				batch.Mask[idx] = 0
			}
		}
	}

	s.position += s.batchSize * s.seqLen
	return batch, nil
}

func (s *TokenBatchSource) recycle(b *Batch) {
	b.ValidTokens = 0
	s.pool.Put(b)
}
