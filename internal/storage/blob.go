package storage

import (
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore caches submission files the gateway has already pulled from the
// backend.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Exists(key string) bool
}
