package async

import (
	"sync"
	"testing"
)

func TestNewTokenAccumulatorValidation(t *testing.T) {
	if _, err := NewTokenAccumulator(0, 32); err == nil {
		t.Error("expected error for zero batch size")
	}
	if _, err := NewTokenAccumulator(4, 0); err == nil {
		t.Error("expected error for zero sequence length")
	}
	if _, err := NewTokenAccumulator(4, 32); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTokenAccumulatorDrain(t *testing.T) {
	acc, err := NewTokenAccumulator(2, 4) // slab of 8 tokens
	if err != nil {
		t.Fatalf("failed to create accumulator: %v", err)
	}

	if acc.Ready() {
		t.Error("empty accumulator reported ready")
	}
	if got := acc.Required(); got != 8 {
		t.Errorf("expected 8 required tokens, got %d", got)
	}

	acc.Add([]uint32{1, 2, 3, 4, 5})
	if acc.Ready() {
		t.Error("undersized accumulator reported ready")
	}
	if _, err := acc.Drain(); err == nil {
		t.Error("expected error draining an unready accumulator")
	}

	acc.Add([]uint32{6, 7, 8, 9, 10})
	if !acc.Ready() {
		t.Error("accumulator with 10 tokens not ready for slab of 8")
	}

	slab, err := acc.Drain()
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	for i, tok := range slab {
		if tok != uint32(i+1) {
			t.Errorf("slab[%d]: expected %d, got %d", i, i+1, tok)
		}
	}

	// Leftover tokens stay buffered in order.
	if got := acc.Len(); got != 2 {
		t.Errorf("expected 2 leftover tokens, got %d", got)
	}
	acc.Add([]uint32{11, 12, 13, 14, 15, 16})
	slab, err = acc.Drain()
	if err != nil {
		t.Fatalf("second drain failed: %v", err)
	}
	if slab[0] != 9 || slab[1] != 10 || slab[2] != 11 {
		t.Errorf("leftover tokens reordered: got %v", slab[:3])
	}
}

func TestTokenAccumulatorClear(t *testing.T) {
	acc, err := NewTokenAccumulator(1, 4)
	if err != nil {
		t.Fatalf("failed to create accumulator: %v", err)
	}

	acc.Add([]uint32{1, 2, 3, 4})
	acc.Clear()
	if acc.Len() != 0 {
		t.Errorf("expected empty accumulator after Clear, got %d tokens", acc.Len())
	}
	if acc.Ready() {
		t.Error("cleared accumulator reported ready")
	}
}

func TestTokenAccumulatorConcurrentProducers(t *testing.T) {
	const (
		producers      = 8
		tokensPerChunk = 16
		chunks         = 50
	)

	acc, err := NewTokenAccumulator(4, 32) // slab of 128
	if err != nil {
		t.Fatalf("failed to create accumulator: %v", err)
	}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunk := make([]uint32, tokensPerChunk)
			for c := 0; c < chunks; c++ {
				acc.Add(chunk)
			}
		}()
	}
	wg.Wait()

	total := producers * tokensPerChunk * chunks
	if got := acc.Len(); got != total {
		t.Errorf("expected %d buffered tokens, got %d", total, got)
	}

	drained := 0
	for acc.Ready() {
		slab, err := acc.Drain()
		if err != nil {
			t.Fatalf("drain failed: %v", err)
		}
		drained += len(slab)
	}
	if drained != (total/128)*128 {
		t.Errorf("expected %d drained tokens, got %d", (total/128)*128, drained)
	}
}
