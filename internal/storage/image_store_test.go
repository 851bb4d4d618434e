package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalImages(t *testing.T) {
	tmpDir := t.TempDir()
	images, err := NewLocalImages(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create image store: %v", err)
	}

	t.Run("SaveImage", func(t *testing.T) {
		content := []byte("test image content")

		info := FileInfo{
			Filename:    "photo.JPG",
			ContentType: "image/jpeg",
			Size:        int64(len(content)),
		}

		filename, err := images.SaveImage(bytes.NewReader(content), info)
		if err != nil {
			t.Fatalf("Failed to save image: %v", err)
		}

		if filepath.Ext(filename) != ".jpg" {
			t.Errorf("Expected .jpg extension, got %s", filepath.Ext(filename))
		}

		savedPath := filepath.Join(tmpDir, filename)
		if _, err := os.Stat(savedPath); os.IsNotExist(err) {
			t.Errorf("Image was not saved to expected location: %s", savedPath)
		}
	})

	t.Run("SaveImageDefaultExtension", func(t *testing.T) {
		filename, err := images.SaveImage(bytes.NewReader([]byte("x")), FileInfo{Filename: "capture"})
		if err != nil {
			t.Fatalf("Failed to save image: %v", err)
		}
		if filepath.Ext(filename) != ".jpg" {
			t.Errorf("Expected default .jpg extension, got %s", filepath.Ext(filename))
		}
	})

	t.Run("OpenImage", func(t *testing.T) {
		content := []byte("test image content")
		testFile := "test-image.jpg"
		fullPath := filepath.Join(tmpDir, testFile)

		if err := os.WriteFile(fullPath, content, 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		file, err := images.OpenImage(testFile)
		if err != nil {
			t.Fatalf("Failed to open image: %v", err)
		}
		defer file.Close()

		got, err := io.ReadAll(file)
		if err != nil {
			t.Fatalf("Failed to read image: %v", err)
		}

		if !bytes.Equal(got, content) {
			t.Errorf("Image content mismatch")
		}
	})

	t.Run("PathTraversalPrevention", func(t *testing.T) {
		if _, err := images.OpenImage("../../../etc/passwd"); err == nil {
			t.Errorf("Path traversal was not prevented")
		}

		if _, err := images.Path("/etc/passwd"); err == nil {
			t.Errorf("Absolute path was not rejected")
		}
	})
}
