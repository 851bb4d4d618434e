package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type LocalImages struct {
	basePath string
}

func NewLocalImages(basePath string) (*LocalImages, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, &StorageInitError{Path: basePath, Err: err}
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve image directory")
	}
	return &LocalImages{basePath: abs}, nil
}

// SaveImage stores the image under a generated name and returns that name.
func (li *LocalImages) SaveImage(r io.Reader, info FileInfo) (string, error) {
	ext := strings.ToLower(filepath.Ext(info.Filename))
	if ext == "" {
		ext = ".jpg"
	}

	filename := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	fullPath := filepath.Join(li.basePath, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to create image file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(fullPath)
		return "", errors.Wrap(err, "failed to save image")
	}

	return filename, nil
}

func (li *LocalImages) OpenImage(name string) (io.ReadSeekCloser, error) {
	fullPath, err := li.Path(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}

	return file, nil
}

// Path resolves a stored image name to its absolute path, rejecting names
// that escape the image directory.
func (li *LocalImages) Path(name string) (string, error) {
	cleanPath := filepath.Clean(name)
	if cleanPath == "." || strings.Contains(cleanPath, "..") || filepath.IsAbs(cleanPath) {
		return "", errors.New("invalid path")
	}
	return filepath.Join(li.basePath, cleanPath), nil
}
