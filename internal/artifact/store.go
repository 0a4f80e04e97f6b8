// Package artifact provides the artifact store implementations for the TTS
// gateway: a flat-directory store for local deployments and a NATS
// JetStream object store for clustered ones. Both satisfy
// core.ArtifactStore.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/book-expert/tts-gateway/internal/core"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Naming constants.
const (
	defaultExtension       = ".wav"
	tempFilePrefix         = ".tmp-"
	invalidCharReplacement = "_"
)

// Static errors.
var (
	ErrDirectoryEmpty  = errors.New("store directory cannot be empty")
	ErrUnsafeName      = errors.New("name contains path separators or traversal sequences")
	ErrEmptyIdentifier = errors.New("artifact identifier cannot be empty")
)

// sanitizeReplacer maps characters that are invalid in most filesystems.
var sanitizeReplacer = strings.NewReplacer(
	"<", invalidCharReplacement,
	">", invalidCharReplacement,
	":", invalidCharReplacement,
	"\"", invalidCharReplacement,
	"/", invalidCharReplacement,
	"\\", invalidCharReplacement,
	"|", invalidCharReplacement,
	"?", invalidCharReplacement,
	"*", invalidCharReplacement,
	" ", invalidCharReplacement,
)

// SanitizeName replaces characters that are invalid in most filesystems.
// The result is safe to embed in an artifact identifier; it never contains
// a path separator.
func SanitizeName(name string) string {
	return sanitizeReplacer.Replace(name)
}

// ValidateName rejects names that could escape the store directory. The
// check runs before sanitization so traversal attempts fail loudly instead
// of being silently rewritten.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyIdentifier
	}

	if strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) ||
		filepath.IsAbs(name) {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}

	return nil
}

// DirectoryStore is a flat-directory artifact store. Artifacts are
// immutable once written; Put publishes a file under its final name only
// after the full contents are on disk, via a same-directory temp file and
// an atomic rename.
type DirectoryStore struct {
	dir string
}

// NewDirectoryStore creates the store directory if absent and returns a
// store rooted there.
func NewDirectoryStore(dir string) (*DirectoryStore, error) {
	if dir == "" {
		return nil, ErrDirectoryEmpty
	}

	mkdirErr := os.MkdirAll(dir, dirPermissions)
	if mkdirErr != nil {
		return nil, fmt.Errorf("%w: failed to create store directory %s: %w",
			core.ErrStorage, dir, mkdirErr)
	}

	return &DirectoryStore{dir: dir}, nil
}

// Dir returns the directory the store is rooted at.
func (s *DirectoryStore) Dir() string {
	return s.dir
}

// Put writes data under a freshly generated identifier. With an empty
// suggestedName the identifier is "<uuid>.wav"; otherwise it is
// "<uuid>_<sanitized suggestedName>". A suggestedName carrying path
// separators or traversal sequences is rejected before anything touches
// the disk.
func (s *DirectoryStore) Put(
	_ context.Context,
	data []byte,
	suggestedName string,
) (core.ArtifactRef, error) {
	name := uuid.NewString() + defaultExtension

	if suggestedName != "" {
		validationErr := ValidateName(suggestedName)
		if validationErr != nil {
			return core.ArtifactRef{}, fmt.Errorf("%w: %w", core.ErrStorage, validationErr)
		}

		name = uuid.NewString() + "_" + SanitizeName(suggestedName)
	}

	writeErr := s.writeAtomic(name, data)
	if writeErr != nil {
		return core.ArtifactRef{}, writeErr
	}

	return core.ArtifactRef{ID: name, Size: int64(len(data))}, nil
}

// Get returns the full contents of the artifact.
func (s *DirectoryStore) Get(_ context.Context, id string) ([]byte, error) {
	path, pathErr := s.resolve(id)
	if pathErr != nil {
		return nil, pathErr
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, mapReadError(id, readErr)
	}

	return data, nil
}

// Open returns a reader over the artifact for streaming responses.
func (s *DirectoryStore) Open(_ context.Context, id string) (io.ReadCloser, error) {
	path, pathErr := s.resolve(id)
	if pathErr != nil {
		return nil, pathErr
	}

	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, mapReadError(id, openErr)
	}

	return file, nil
}

// List enumerates artifacts whose names carry one of the given extensions
// (compared case-insensitively). Order follows os.ReadDir, which sorts by
// filename; it is not a creation order and callers must not rely on one.
func (s *DirectoryStore) List(
	_ context.Context,
	extensions []string,
) ([]core.ArtifactRef, error) {
	entries, readErr := os.ReadDir(s.dir)
	if readErr != nil {
		return nil, fmt.Errorf("%w: failed to read store directory %s: %w",
			core.ErrStorage, s.dir, readErr)
	}

	refs := make([]core.ArtifactRef, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempFilePrefix) {
			continue
		}

		if !matchesExtension(entry.Name(), extensions) {
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			// Entry disappeared between ReadDir and Info; skip it.
			continue
		}

		refs = append(refs, core.ArtifactRef{
			ID:   entry.Name(),
			Size: info.Size(),
		})
	}

	return refs, nil
}

// writeAtomic writes data to a temp file in the store directory and
// renames it to its final name, so a partially written artifact is never
// visible under a real identifier.
func (s *DirectoryStore) writeAtomic(name string, data []byte) error {
	tempFile, createErr := os.CreateTemp(s.dir, tempFilePrefix+"*")
	if createErr != nil {
		return fmt.Errorf("%w: failed to create temp file in %s: %w",
			core.ErrStorage, s.dir, createErr)
	}

	tempPath := tempFile.Name()

	_, writeErr := tempFile.Write(data)
	closeErr := tempFile.Close()

	if writeErr == nil {
		writeErr = closeErr
	}

	if writeErr == nil {
		writeErr = os.Chmod(tempPath, filePermissions)
	}

	if writeErr == nil {
		writeErr = os.Rename(tempPath, filepath.Join(s.dir, name))
	}

	if writeErr != nil {
		removeErr := os.Remove(tempPath)
		if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			return fmt.Errorf("%w: failed to write artifact %s: %w (temp cleanup also failed: %w)",
				core.ErrStorage, name, writeErr, removeErr)
		}

		return fmt.Errorf("%w: failed to write artifact %s: %w", core.ErrStorage, name, writeErr)
	}

	return nil
}

// resolve maps an identifier to a path inside the store directory,
// rejecting identifiers that could escape it. Unsafe identifiers report
// not-found: from the caller's perspective no such artifact exists.
func (s *DirectoryStore) resolve(id string) (string, error) {
	validationErr := ValidateName(id)
	if validationErr != nil {
		return "", fmt.Errorf("%w: %q", core.ErrNotFound, id)
	}

	return filepath.Join(s.dir, id), nil
}

func mapReadError(id string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", core.ErrNotFound, id)
	}

	return fmt.Errorf("%w: failed to read artifact %q: %w", core.ErrStorage, id, err)
}

func matchesExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}

	ext := strings.ToLower(filepath.Ext(name))

	for _, candidate := range extensions {
		if ext == strings.ToLower(candidate) {
			return true
		}
	}

	return false
}
