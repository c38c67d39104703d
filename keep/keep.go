// Package keep defines sets of content hashes on pluggable backends.
package keep

import (
	"context"

	"github.com/bobg/chash"
)

// Keep is a set of hashes,
// typically the ones a storage node has promised to retain.
type Keep interface {
	chash.Lister

	// Add adds a hash to the Keep.
	// It returns true if it was newly added and false if it was already present.
	Add(context.Context, chash.Hash) (bool, error)

	// Delete removes a hash from the Keep.
	// Removing an absent hash is not an error.
	Delete(context.Context, chash.Hash) error

	// Contains tells whether a hash is in the Keep.
	Contains(context.Context, chash.Hash) (bool, error)
}
