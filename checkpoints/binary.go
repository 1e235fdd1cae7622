package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// The binary format is the checkpoint's JSON object model encoded as a
// protobuf Struct. It keeps the schema flexibility of JSON (unknown fields
// survive a round trip through older readers) at a fraction of the size,
// since protobuf varint-packs the framing.

func saveBinary(checkpoint *Checkpoint, path string) error {
	raw, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}

	var object map[string]interface{}
	if err := json.Unmarshal(raw, &object); err != nil {
		return fmt.Errorf("failed to build checkpoint object model: %v", err)
	}

	message, err := structpb.NewStruct(object)
	if err != nil {
		return fmt.Errorf("failed to build checkpoint message: %v", err)
	}

	data, err := proto.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %v", err)
	}
	return nil
}

func loadBinary(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %v", err)
	}

	var message structpb.Struct
	if err := proto.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %v", err)
	}

	raw, err := json.Marshal(message.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to flatten checkpoint message: %v", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(raw, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}
	return &checkpoint, nil
}
