// Package storage keeps call audio on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/naduri/naduri-backend/internal/models"
)

// DefaultExtension is used when an upload carries no usable extension
const DefaultExtension = "wav"

// maxExtensionLength bounds the extension taken from a client filename
const maxExtensionLength = 8

// URLPrefix is where stored audio is served from
const URLPrefix = "/storage/audio/"

var (
	// ErrNotFound is returned when a stored file does not exist
	ErrNotFound = errors.New("audio not found")

	// ErrInvalidName is returned for names that would escape the storage directory
	ErrInvalidName = errors.New("invalid audio name")
)

// AudioStore writes and reads audio blobs under a single directory
type AudioStore struct {
	dir string
}

// NewAudioStore creates the storage directory if needed
func NewAudioStore(dir string) (*AudioStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	return &AudioStore{dir: dir}, nil
}

// Save stores data as <session>_<speaker>_<random hex>.<ext> and returns the name
func (s *AudioStore) Save(sessionID string, speaker models.Speaker, ext string, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%s_%s.%s", sessionID, speaker, randomHex(), NormalizeExtension(ext))
	if !validName(name) {
		return "", ErrInvalidName
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	return name, nil
}

// Path resolves a stored name to its file path, rejecting traversal and missing files
func (s *AudioStore) Path(name string) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to stat audio: %w", err)
	}
	if info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *AudioStore) Remove(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove audio: %w", err)
	}
	return nil
}

// URL returns the public URL of a stored name
func URL(name string) string {
	return URLPrefix + name
}

// ExtensionFromFilename returns the lower-cased text after the last dot, or "" when absent
func ExtensionFromFilename(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// NormalizeExtension keeps short alphanumeric extensions and falls back to wav
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || len(ext) > maxExtensionLength {
		return DefaultExtension
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return DefaultExtension
		}
	}
	return ext
}

func validName(name string) bool {
	return name != "" && filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`)
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
