// Package docstore exposes the remote document library to the ingestion
// pipeline as two operations: list the entries under a path, and fetch one
// file's bytes.
package docstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("path not found in document store")
	ErrUnauthorized = errors.New("document store authentication failed")
)

// Entry is one item in a folder listing.
type Entry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsFolder bool   `json:"is_folder"`
	Size     int64  `json:"size"`
}

// Store abstracts the remote document library. Implementations must report
// ErrNotFound for missing paths and ErrUnauthorized for credential problems
// so callers can separate fatal job errors from transient ones.
type Store interface {
	List(ctx context.Context, path string) ([]Entry, error)
	Fetch(ctx context.Context, path string) ([]byte, error)
}
