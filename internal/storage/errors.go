package storage

import "fmt"

// StorageInitError means the storage location could not be created.
type StorageInitError struct {
	Path string
	Err  error
}

func (e *StorageInitError) Error() string {
	return fmt.Sprintf("failed to initialize storage at %s: %v", e.Path, e.Err)
}

func (e *StorageInitError) Unwrap() error { return e.Err }

// StorageReadError means a single entry could not be read or parsed. List
// skips such entries.
type StorageReadError struct {
	Entry string
	Err   error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("failed to read record %s: %v", e.Entry, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// StorageWriteError means a record could not be persisted.
type StorageWriteError struct {
	ID  string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to save record %s: %v", e.ID, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
