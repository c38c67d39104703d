package chash

import (
	"context"
	"errors"
)

// Lister is anything that can enumerate hashes in ascending order.
type Lister interface {
	// ListHashes calls a function for each hash in ascending order,
	// beginning with the first hash _after_ the specified one.
	// Pass Zero to start from the beginning
	// (Zero itself is excluded; it is never the hash of real content).
	//
	// If the callback function returns an error,
	// ListHashes exits with that error.
	ListHashes(context.Context, Hash, func(Hash) error) error
}

var (
	// ErrMalformed is the error for a wrongly sized or wrongly encoded hash.
	ErrMalformed = errors.New("malformed hash")

	// ErrOutOfRange is the error for an index outside a collection.
	ErrOutOfRange = errors.New("index out of range")

	// ErrUnsupported is the error for operations a collection refuses by design.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrClosed is the error for operations on a closed collection.
	ErrClosed = errors.New("closed")

	// ErrNotFound is the error for a hash that is absent.
	ErrNotFound = errors.New("not found")
)
