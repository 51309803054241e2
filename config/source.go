package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// ChangeEvent is emitted when a watched configuration file changes.
type ChangeEvent struct {
	Source  string
	OldHash string
	NewHash string
	Config  *Config
	Time    time.Time
}

// FileSource loads the configuration from a YAML file on disk, layered over
// the defaults and under the environment.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource that reads from the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and parses the file.
func (s *FileSource) Load(ctx context.Context) (*Config, error) {
	cfg, _, err := s.snapshot(ctx)
	return cfg, err
}

// Hash returns the SHA256 hex digest of the raw file bytes.
func (s *FileSource) Hash(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("file source: read %s: %w", s.path, err)
	}
	return hashBytes(data), nil
}

// snapshot parses and hashes the same read of the file.
func (s *FileSource) snapshot(_ context.Context) (*Config, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", fmt.Errorf("file source: read %s: %w", s.path, err)
	}
	cfg, err := load(data, true)
	if err != nil {
		return nil, "", fmt.Errorf("file source: %s: %w", s.path, err)
	}
	return cfg, hashBytes(data), nil
}

// Name returns a human-readable identifier for this source.
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Path returns the filesystem path this source reads from.
func (s *FileSource) Path() string { return s.path }

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
