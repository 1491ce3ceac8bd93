// Package pkg provides shared utilities for testforge.
package pkg

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Journal is an append-only, disk-backed log of items of type T. It keeps
// memory flat when a run produces many entries (one candidate record per
// generated test, one diagnostic per failed file) and supports a single
// sequential replay at report time.
type Journal[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	AppendBatch(items []T) error
	Range(fn func(index uint64, item T) error) error
	Close() error
}

type fileJournal[T any] struct {
	path    string
	file    *os.File
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
}

// NewJournal creates a disk-backed Journal in the system temp directory.
func NewJournal[T any]() (Journal[T], error) {
	dir := filepath.Join(os.TempDir(), "testforge-journal")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	file, err := os.CreateTemp(dir, "journal-*.gob")
	if err != nil {
		return nil, fmt.Errorf("create journal file: %w", err)
	}

	slog.Debug("created journal", "path", file.Name())

	return &fileJournal[T]{
		path:    file.Name(),
		file:    file,
		encoder: gob.NewEncoder(file),
	}, nil
}

// Append encodes one item at the end of the journal.
func (j *fileJournal[T]) Append(item T) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.encoder.Encode(item); err != nil {
		slog.Error("journal encode failed", "path", j.path, "index", j.length, "error", err)
		return fmt.Errorf("encode journal item: %w", err)
	}

	j.length++

	return nil
}

// AppendBatch appends items in order, stopping at the first failure.
func (j *fileJournal[T]) AppendBatch(items []T) error {
	for _, item := range items {
		if err := j.Append(item); err != nil {
			return err
		}
	}

	return nil
}

// Len returns the number of appended items.
func (j *fileJournal[T]) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.length
}

// Path returns the backing file path.
func (j *fileJournal[T]) Path() string {
	return j.path
}

// Range replays the journal from the start, invoking fn for each item. It
// stops early when fn returns an error and returns that error.
func (j *fileJournal[T]) Range(fn func(index uint64, item T) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("journal close failed", "path", j.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	var item T

	for i := range j.length {
		if err := decoder.Decode(&item); err != nil {
			return fmt.Errorf("decode journal item %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the backing file. The journal must not be appended to after
// Close.
func (j *fileJournal[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	if err := j.file.Close(); err != nil {
		slog.Error("journal close failed", "path", j.path, "error", err)
		return err
	}

	j.file = nil

	return nil
}
