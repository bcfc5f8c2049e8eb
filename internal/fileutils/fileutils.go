// Package fileutils provides the file operations shared by the artifact
// store, the training report and the SQLite gateway.
package fileutils

import (
	"fmt"
	"os"
	"path/filepath"

	"fjacquet/autocat/internal/models"
)

// FileExists checks if a file exists and is not a directory
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirectoryExists checks if a directory exists
func DirectoryExists(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDirectoryExists creates a directory (and its parents) if it doesn't exist
func EnsureDirectoryExists(dirPath string) error {
	if DirectoryExists(dirPath) {
		return nil
	}
	if err := os.MkdirAll(dirPath, models.PermissionDirectory); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDirectory creates the directory that will hold filePath.
func EnsureParentDirectory(filePath string) error {
	return EnsureDirectoryExists(filepath.Dir(filePath))
}

// ReadFile reads the entire contents of a file and returns it as a byte slice
func ReadFile(filePath string) ([]byte, error) {
	if !FileExists(filePath) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

// WriteFileAtomic writes data to a temporary file next to filePath and
// renames it into place, so readers never observe a partially written file.
// Parent directories are created as needed.
func WriteFileAtomic(filePath string, data []byte, perm os.FileMode) error {
	if err := EnsureParentDirectory(filePath); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// OpenFile opens a file for reading, returning an error if the file doesn't exist
func OpenFile(filePath string) (*os.File, error) {
	if !FileExists(filePath) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// CreateFile creates or truncates a file for writing
func CreateFile(filePath string) (*os.File, error) {
	if err := EnsureParentDirectory(filePath); err != nil {
		return nil, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return file, nil
}
