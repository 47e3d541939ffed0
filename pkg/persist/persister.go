package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Persister saves and loads one state type under a fixed file name.
type Persister[T any] struct {
	dir      string
	basename string
	codec    Codec
}

// NewPersister returns a persister for dir/basename+codec extension.
func NewPersister[T any](dir, basename string, codec Codec) *Persister[T] {
	return &Persister[T]{dir: dir, basename: basename, codec: codec}
}

// Path returns the state file path.
func (p *Persister[T]) Path() string {
	return filepath.Join(p.dir, p.basename+p.codec.Extension())
}

// Exists reports whether a state file is present.
func (p *Persister[T]) Exists() bool {
	_, err := os.Stat(p.Path())

	return err == nil
}

// Save writes state, creating the directory if needed.
func (p *Persister[T]) Save(state *T) error {
	err := os.MkdirAll(p.dir, 0o750)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	return SaveState(p.dir, p.basename, p.codec, state)
}

// Load reads the saved state.
func (p *Persister[T]) Load() (*T, error) {
	var state T

	err := LoadState(p.dir, p.basename, p.codec, &state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// Remove deletes the state file; a missing file is not an error.
func (p *Persister[T]) Remove() error {
	err := os.Remove(p.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}

	return nil
}
