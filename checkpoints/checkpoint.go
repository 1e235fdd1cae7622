// Package checkpoints saves and restores training runs: the flat parameter
// vector, the optimizer state, training progress and run metadata, in a
// human-readable JSON format or a compact protobuf binary format.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/justmebob123/crystalline/optimizer"
)

// Format defines the serialization format.
type Format int

const (
	FormatJSON Format = iota
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "JSON"
	case FormatBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Checkpoint represents a complete training run state: parameters, optimizer
// state and progress.
type Checkpoint struct {
	// Parameters is the flat model parameter vector.
	Parameters []float64 `json:"parameters"`

	// Training progress.
	TrainingState TrainingState `json:"training_state"`

	// Optimizer state (if available).
	OptimizerState *optimizer.State `json:"optimizer_state,omitempty"`

	// Run configuration snapshot, for reproducibility.
	Config RunConfig `json:"config"`

	// Metadata.
	Metadata Metadata `json:"metadata"`
}

// TrainingState captures the current training progress.
type TrainingState struct {
	Epoch        int     `json:"epoch"`
	TotalRounds  uint64  `json:"total_rounds"`
	LearningRate float64 `json:"learning_rate"`
	BestLoss     float64 `json:"best_loss"`
}

// RunConfig is a snapshot of the training configuration the run used.
type RunConfig struct {
	WorkerCount      int     `json:"worker_count"`
	GradientSize     int     `json:"gradient_size"`
	BatchSize        int     `json:"batch_size"`
	SequenceLength   int     `json:"sequence_length"`
	ClipNorm         float64 `json:"clip_norm"`
	BaseLearningRate float64 `json:"base_learning_rate"`
}

// Metadata contains checkpoint metadata.
type Metadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Saver handles saving checkpoints in a chosen format.
type Saver struct {
	format Format
}

// NewSaver creates a checkpoint saver for the specified format.
func NewSaver(format Format) *Saver {
	return &Saver{format: format}
}

// Save writes a complete checkpoint to path.
func (s *Saver) Save(checkpoint *Checkpoint, path string) error {
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	fillMetadata(checkpoint)

	switch s.format {
	case FormatJSON:
		return saveJSON(checkpoint, path)
	case FormatBinary:
		return saveBinary(checkpoint, path)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", s.format)
	}
}

// Load reads a checkpoint from path.
func (s *Saver) Load(path string) (*Checkpoint, error) {
	switch s.format {
	case FormatJSON:
		return loadJSON(path)
	case FormatBinary:
		return loadBinary(path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format: %s", s.format)
	}
}

func fillMetadata(checkpoint *Checkpoint) {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "crystalline"
		checkpoint.Metadata.Version = "1.0.0"
	}
	if checkpoint.Metadata.CreatedAt.IsZero() {
		checkpoint.Metadata.CreatedAt = time.Now().UTC()
	}
}

func saveJSON(checkpoint *Checkpoint, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}
	return nil
}

func loadJSON(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}
	return &checkpoint, nil
}
