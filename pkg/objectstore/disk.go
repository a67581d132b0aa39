package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore stores objects on a mounted filesystem, one directory per bucket.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if root == "" {
		return nil, errors.New("objectstore: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) path(bucket, key string) (string, error) {
	// Keys are generated by ObjectKey and never contain separators, but
	// reject traversal anyway since bucket names embed caller-visible ids.
	if strings.Contains(bucket, "..") || strings.Contains(key, "..") {
		return "", fmt.Errorf("objectstore: invalid path %q/%q", bucket, key)
	}
	return filepath.Join(s.root, bucket, key), nil
}

func (s *DiskStore) EnsureBucket(_ context.Context, bucket string) error {
	if strings.Contains(bucket, "..") {
		return fmt.Errorf("objectstore: invalid bucket %q", bucket)
	}
	return os.MkdirAll(filepath.Join(s.root, bucket), 0o755)
}

func (s *DiskStore) Put(ctx context.Context, bucket, key string, r io.Reader) (int64, error) {
	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return 0, err
	}
	p, err := s.path(bucket, key)
	if err != nil {
		return 0, err
	}
	f, err := os.Create(p)
	if err != nil {
		return 0, fmt.Errorf("objectstore: create object: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Remove the partial write so Exists never reports it.
		_ = os.Remove(p)
		return 0, fmt.Errorf("objectstore: write object: %w", err)
	}
	return n, nil
}

func (s *DiskStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("objectstore: open object: %w", err)
	}
	return f, nil
}

func (s *DiskStore) Delete(_ context.Context, bucket, key string) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func (s *DiskStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
