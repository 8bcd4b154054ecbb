package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStorageService stores uploaded papers under a directory on disk.
type LocalStorageService struct {
	root string
}

func NewLocalStorageService(root string) (*LocalStorageService, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorageService{root: root}, nil
}

// path maps an object name to a file below root, rejecting names that escape it.
func (s *LocalStorageService) path(objectName string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(objectName))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStorageService) UploadFile(ctx context.Context, objectName string, content io.Reader) error {
	p, err := s.path(objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(p)
		return err
	}
	return f.Close()
}

func (s *LocalStorageService) DownloadFile(ctx context.Context, objectName string) ([]byte, error) {
	p, err := s.path(objectName)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (s *LocalStorageService) DeleteFile(ctx context.Context, objectName string) error {
	p, err := s.path(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
