package train

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint is a saved snapshot of one variant's parameters. The variant
// slug is embedded both in the file name and in the payload, so a mixed-up
// file is detected at load time instead of silently corrupting a model.
type Checkpoint struct {
	Variant string
	State   map[string][]float32
}

// SaveCheckpoint writes the snapshot to path, overwriting in place. The
// parent directory is created if needed.
func SaveCheckpoint(path, variant string, state map[string][]float32) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint %s: %w", path, err)
	}
	defer file.Close()
	if err := gob.NewEncoder(file).Encode(Checkpoint{Variant: variant, State: state}); err != nil {
		return fmt.Errorf("failed to encode checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint reads a snapshot previously written by SaveCheckpoint and
// verifies it belongs to the expected variant.
func LoadCheckpoint(path, variant string) (map[string][]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint %s: %w", path, err)
	}
	defer file.Close()
	var ckpt Checkpoint
	if err := gob.NewDecoder(file).Decode(&ckpt); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}
	if ckpt.Variant != variant {
		return nil, fmt.Errorf("checkpoint %s belongs to variant %q, expected %q", path, ckpt.Variant, variant)
	}
	return ckpt.State, nil
}
