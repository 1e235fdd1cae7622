package training

import (
	"sync"
	"testing"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	if _, ok := r.Last(); ok {
		t.Error("Expected no last round on an empty recorder")
	}

	for i := 0; i < 3; i++ {
		r.RecordRound(RoundMetrics{Round: i, AvgLoss: float64(i)})
	}

	if r.Len() != 3 {
		t.Errorf("Expected 3 recorded rounds, got %d", r.Len())
	}

	last, ok := r.Last()
	if !ok || last.Round != 2 {
		t.Errorf("Expected last round 2, got %+v ok=%v", last, ok)
	}

	rounds := r.Rounds()
	rounds[0].AvgLoss = 99
	if r.Rounds()[0].AvgLoss == 99 {
		t.Error("Rounds should return a copy, not the internal slice")
	}
}

func TestRecorderConcurrentWrites(t *testing.T) {
	r := NewRecorder()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.RecordRound(RoundMetrics{Round: i})
			}
		}()
	}
	wg.Wait()

	if r.Len() != 400 {
		t.Errorf("Expected 400 recorded rounds, got %d", r.Len())
	}
}

func TestSinkFunc(t *testing.T) {
	var got RoundMetrics
	sink := SinkFunc(func(m RoundMetrics) { got = m })
	sink.RecordRound(RoundMetrics{Round: 7, ValidCount: 3})
	if got.Round != 7 || got.ValidCount != 3 {
		t.Errorf("SinkFunc did not forward metrics, got %+v", got)
	}
}
