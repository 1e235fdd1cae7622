package checkpoints

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/justmebob123/crystalline/optimizer"
)

func testCheckpoint() *Checkpoint {
	params := []float64{0.5, -1.25, 3.75, 0}
	opt, _ := optimizer.NewAdam(params, optimizer.DefaultAdamConfig())
	opt.Apply([]float64{0.1, -0.2, 0.3, -0.4}, 0.001)

	return &Checkpoint{
		Parameters: params,
		TrainingState: TrainingState{
			Epoch:        3,
			TotalRounds:  42,
			LearningRate: 0.0095,
			BestLoss:     1.234,
		},
		OptimizerState: opt.State(),
		Config: RunConfig{
			WorkerCount:      7,
			GradientSize:     4,
			BatchSize:        32,
			SequenceLength:   128,
			ClipNorm:         10,
			BaseLearningRate: 0.01,
		},
		Metadata: Metadata{
			Description: "test run",
			Tags:        []string{"test"},
		},
	}
}

func checkRestored(t *testing.T, original, restored *Checkpoint) {
	t.Helper()

	if len(restored.Parameters) != len(original.Parameters) {
		t.Fatalf("Expected %d parameters, got %d", len(original.Parameters), len(restored.Parameters))
	}
	for i := range original.Parameters {
		if math.Abs(restored.Parameters[i]-original.Parameters[i]) > 1e-12 {
			t.Errorf("Parameter %d: expected %v, got %v",
				i, original.Parameters[i], restored.Parameters[i])
		}
	}

	if restored.TrainingState != original.TrainingState {
		t.Errorf("Training state mismatch: expected %+v, got %+v",
			original.TrainingState, restored.TrainingState)
	}
	if restored.Config != original.Config {
		t.Errorf("Config mismatch: expected %+v, got %+v", original.Config, restored.Config)
	}

	if restored.OptimizerState == nil {
		t.Fatal("Expected optimizer state to survive the round trip")
	}
	if restored.OptimizerState.Type != "Adam" {
		t.Errorf("Expected Adam optimizer state, got %q", restored.OptimizerState.Type)
	}
	if restored.OptimizerState.StepCount != 1 {
		t.Errorf("Expected step count 1, got %d", restored.OptimizerState.StepCount)
	}
	momentum := restored.OptimizerState.Slots["momentum"]
	if len(momentum) != 4 {
		t.Fatalf("Expected 4-element momentum slot, got %d", len(momentum))
	}

	if restored.Metadata.Framework != "crystalline" {
		t.Errorf("Expected framework metadata to be filled in, got %q", restored.Metadata.Framework)
	}
	if restored.Metadata.CreatedAt.IsZero() {
		t.Error("Expected creation timestamp to be filled in")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	saver := NewSaver(FormatJSON)

	original := testCheckpoint()
	if err := saver.Save(original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored, err := saver.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	checkRestored(t, original, restored)
}

func TestBinaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.bin")
	saver := NewSaver(FormatBinary)

	original := testCheckpoint()
	if err := saver.Save(original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored, err := saver.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	checkRestored(t, original, restored)
}

func TestRestoredStateDrivesOptimizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	saver := NewSaver(FormatJSON)

	original := testCheckpoint()
	if err := saver.Save(original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored, err := saver.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	opt, err := optimizer.NewAdam(restored.Parameters, optimizer.DefaultAdamConfig())
	if err != nil {
		t.Fatalf("Failed to create optimizer: %v", err)
	}
	if err := opt.LoadState(restored.OptimizerState); err != nil {
		t.Fatalf("Failed to load optimizer state: %v", err)
	}
	if opt.StepCount() != 1 {
		t.Errorf("Expected restored step count 1, got %d", opt.StepCount())
	}
	if err := opt.Apply([]float64{0.1, -0.2, 0.3, -0.4}, 0.001); err != nil {
		t.Errorf("Apply on restored optimizer failed: %v", err)
	}
}

func TestSaveErrors(t *testing.T) {
	saver := NewSaver(FormatJSON)
	if err := saver.Save(nil, "unused"); err == nil {
		t.Error("Expected error saving a nil checkpoint")
	}
	if err := saver.Save(testCheckpoint(), "/nonexistent-dir/checkpoint.json"); err == nil {
		t.Error("Expected error for unwritable path")
	}
}

func TestLoadErrors(t *testing.T) {
	saver := NewSaver(FormatBinary)
	if _, err := saver.Load(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("Expected error loading a missing file")
	}
}

func TestFormatString(t *testing.T) {
	if FormatJSON.String() != "JSON" || FormatBinary.String() != "Binary" {
		t.Errorf("Unexpected format names: %s, %s", FormatJSON, FormatBinary)
	}
	if Format(99).String() != "Unknown" {
		t.Errorf("Expected Unknown for out-of-range format")
	}
}
