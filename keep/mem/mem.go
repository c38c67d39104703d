// Package mem implements an in-memory keep.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

var _ keep.Keep = &Keep{}

// Keep is a memory-based implementation of a keep.
type Keep struct {
	mu     sync.Mutex
	hashes map[chash.Hash]struct{}
}

// New produces a new, empty Keep.
func New() *Keep {
	return &Keep{hashes: make(map[chash.Hash]struct{})}
}

// Add adds a hash to the keep if it wasn't already present.
func (k *Keep) Add(_ context.Context, h chash.Hash) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.hashes[h]; ok {
		return false, nil
	}
	k.hashes[h] = struct{}{}
	return true, nil
}

// Delete removes a hash from the keep.
func (k *Keep) Delete(_ context.Context, h chash.Hash) error {
	k.mu.Lock()
	delete(k.hashes, h)
	k.mu.Unlock()
	return nil
}

// Contains tells whether h is in the keep.
func (k *Keep) Contains(_ context.Context, h chash.Hash) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, ok := k.hashes[h]
	return ok, nil
}

// ListHashes produces all hashes in the keep, in ascending order.
func (k *Keep) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	k.mu.Lock()
	hashes := make([]chash.Hash, 0, len(k.hashes))
	for h := range k.hashes {
		hashes = append(hashes, h)
	}
	k.mu.Unlock()

	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })
	index := sort.Search(len(hashes), func(n int) bool {
		return start.Less(hashes[n])
	})

	for i := index; i < len(hashes); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(hashes[i]); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	keep.Register("mem", func(context.Context, map[string]interface{}) (keep.Keep, error) {
		return New(), nil
	})
}
