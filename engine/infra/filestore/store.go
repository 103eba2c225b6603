package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/dallosh/analysis/pkg/logger"
	"github.com/spf13/afero"
)

// RecordDeleter removes the dataset metadata row that accompanies an uploaded file.
type RecordDeleter interface {
	DeleteByUID(ctx context.Context, uid string) error
}

// Store deletes dataset and derived files from the shared storage volume.
// Relative paths resolve against root; absolute paths are used as given.
type Store struct {
	fs      afero.Fs
	root    string
	records RecordDeleter
}

func New(fsys afero.Fs, root string, records RecordDeleter) *Store {
	return &Store{fs: fsys, root: filepath.Clean(root), records: records}
}

// NewOS builds a Store on the host filesystem.
func NewOS(root string, records RecordDeleter) *Store {
	return New(afero.NewOsFs(), root, records)
}

// DeleteDerived removes a cleaned or analysed artifact.
func (s *Store) DeleteDerived(ctx context.Context, path string) error {
	return s.remove(ctx, path)
}

// DeleteDataset removes the uploaded source file and its files record.
func (s *Store) DeleteDataset(ctx context.Context, fileID, path string) error {
	if path != "" {
		if err := s.remove(ctx, path); err != nil {
			return err
		}
	}
	if s.records == nil {
		return nil
	}
	if err := s.records.DeleteByUID(ctx, fileID); err != nil {
		return fmt.Errorf("deleting dataset record: %w", err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, path string) error {
	log := logger.FromContext(ctx)
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("File already gone", "path", resolved)
			return nil
		}
		return fmt.Errorf("removing %s: %w", resolved, err)
	}
	log.Debug("Removed file", "path", resolved)
	return nil
}

func (s *Store) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	joined := filepath.Join(s.root, clean)
	rel, err := filepath.Rel(s.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return joined, nil
}
