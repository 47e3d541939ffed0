package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/refdelta/pkg/persist"
)

// MetadataVersion is the current checkpoint format version.
const MetadataVersion = 1

// Sentinel errors for checkpoint validation.
var (
	ErrFingerprintMismatch = errors.New("checkpoint belongs to different inputs")
	ErrVersionMismatch     = errors.New("checkpoint format version mismatch")
)

const (
	metadataName = "checkpoint"
	progressName = "progress"
)

// Fingerprint hashes the values that must match for a checkpoint to be
// reused (input paths, dataset labels and the like).
func Fingerprint(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))

	return hex.EncodeToString(h[:8])
}

// Manager stores checkpoints for one fingerprint under BaseDir.
type Manager struct {
	BaseDir     string
	Fingerprint string
	RunID       string

	meta     *persist.Persister[Metadata]
	progress *persist.Persister[Progress]
	created  string
}

// NewManager returns a manager writing to baseDir/fingerprint. Metadata is
// plain JSON; progress is LZ4-compressed JSON.
func NewManager(baseDir, fingerprint, runID string) *Manager {
	dir := filepath.Join(baseDir, fingerprint)

	return &Manager{
		BaseDir:     baseDir,
		Fingerprint: fingerprint,
		RunID:       runID,
		meta:        persist.NewPersister[Metadata](dir, metadataName, persist.NewJSONCodec()),
		progress:    persist.NewPersister[Progress](dir, progressName, persist.NewLZ4JSONCodec()),
	}
}

// Dir returns the checkpoint directory.
func (m *Manager) Dir() string {
	return filepath.Join(m.BaseDir, m.Fingerprint)
}

// Exists reports whether a complete checkpoint is present.
func (m *Manager) Exists() bool {
	return m.meta.Exists() && m.progress.Exists()
}

// Save writes progress first and metadata last, so metadata only ever
// describes a fully written progress file.
func (m *Manager) Save(progress *Progress, total int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if m.created == "" {
		m.created = now
	}

	err := m.progress.Save(progress)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	meta := &Metadata{
		Version:     MetadataVersion,
		RunID:       m.RunID,
		Fingerprint: m.Fingerprint,
		CreatedAt:   m.created,
		UpdatedAt:   now,
		Total:       total,
		Processed:   len(progress.Processed),
	}

	err = m.meta.Save(meta)
	if err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}

	return nil
}

// Load validates and restores a checkpoint.
func (m *Manager) Load() (*Metadata, *Progress, error) {
	meta, err := m.meta.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load metadata: %w", err)
	}

	if meta.Version != MetadataVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrVersionMismatch, meta.Version)
	}

	if meta.Fingerprint != m.Fingerprint {
		return nil, nil, fmt.Errorf("%w: %s != %s", ErrFingerprintMismatch, meta.Fingerprint, m.Fingerprint)
	}

	progress, err := m.progress.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load progress: %w", err)
	}

	m.created = meta.CreatedAt

	return meta, progress, nil
}

// Clear removes the checkpoint directory.
func (m *Manager) Clear() error {
	err := os.RemoveAll(m.Dir())
	if err != nil {
		return fmt.Errorf("remove checkpoint dir: %w", err)
	}

	return nil
}

// DefaultDir returns the checkpoint root used when none is configured.
func DefaultDir(dataDir string) string {
	return filepath.Join(dataDir, "checkpoints")
}
