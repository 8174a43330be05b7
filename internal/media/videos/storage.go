// Package videos stores uploaded video files on disk.
package videos

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/id"
)

// allowedExtensions are container extensions kept on stored files.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// StoredFile describes a video written to storage.
type StoredFile struct {
	Name        string // file name inside the storage directory, e.g. vid-abc.mp4
	Path        string // absolute path
	Size        int64
	ContentType string
}

// Storage manages video filesystem operations.
// Thread-safe for concurrent operations.
type Storage struct {
	basePath string
	mu       sync.RWMutex // Protects file operations
}

// NewStorage creates a Storage rooted at {basePath}/uploads.
func NewStorage(basePath string) (*Storage, error) {
	return NewStorageWithSubdir(basePath, "uploads")
}

// NewStorageWithSubdir creates a Storage rooted at {basePath}/{subdir}.
func NewStorageWithSubdir(basePath, subdir string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if subdir == "" {
		return nil, fmt.Errorf("subdirectory cannot be empty")
	}

	storagePath := filepath.Join(basePath, subdir)

	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", subdir, err)
	}

	return &Storage{basePath: storagePath}, nil
}

// Dir returns the directory files are stored in.
func (s *Storage) Dir() string {
	return s.basePath
}

// Save streams r to a new file named vid-<nanoid><ext>.
//
// originalName only contributes its extension. The content is sniffed and
// rejected with a validation error unless it is a video container. Uploads
// that are empty or larger than maxBytes are rejected too; maxBytes <= 0
// disables the size check.
func (s *Storage) Save(r io.Reader, originalName string, maxBytes int64) (*StoredFile, error) {
	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}

	size, err := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write video file: %w", err)
	}
	if closeErr != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write video file: %w", closeErr)
	}

	if size == 0 {
		cleanup()
		return nil, errors.Validation("video file is empty")
	}
	if maxBytes > 0 && size > maxBytes {
		cleanup()
		return nil, errors.Validationf("video file exceeds the %d byte limit", maxBytes)
	}

	mt, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to detect content type: %w", err)
	}
	if !isVideo(mt) {
		cleanup()
		return nil, errors.Validationf("file is not a video (detected %s)", mt.String())
	}

	name, err := id.VideoFile(extensionFor(originalName, mt))
	if err != nil {
		cleanup()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	finalPath := s.Path(name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to store video file: %w", err)
	}

	return &StoredFile{
		Name:        name,
		Path:        finalPath,
		Size:        size,
		ContentType: mt.String(),
	}, nil
}

// Exists checks if a stored file exists.
func (s *Storage) Exists(name string) bool {
	if !validName(name) {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Storage) Delete(name string) error {
	if !validName(name) {
		return fmt.Errorf("invalid file name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(name)); err != nil {
		if os.IsNotExist(err) {
			// Already deleted, not an error.
			return nil
		}
		return fmt.Errorf("failed to delete video file: %w", err)
	}

	return nil
}

// Path returns the full filesystem path for a stored file name.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.basePath, name)
}

// validName accepts only names Save hands out, which cannot escape the directory.
func validName(name string) bool {
	return id.IsVideoFile(name)
}

// isVideo reports whether mt or one of its parents is a video type.
// QuickTime and MP4 files carrying only an audio-brand ftyp are sniffed as
// audio/mp4; those are accepted as well since the player handles them.
func isVideo(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") || m.Is("audio/mp4") {
			return true
		}
	}
	return false
}

// extensionFor keeps an allowed client extension, otherwise uses the sniffed one.
func extensionFor(originalName string, mt *mimetype.MIME) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if allowedExtensions[ext] {
		return ext
	}
	return mt.Extension()
}
