package storage

import (
	"errors"
	"io"
)

var ErrBadKey = errors.New("invalid blob key")

// BlobStore holds submitted code and internship documents.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error // missing keys are not an error
}
