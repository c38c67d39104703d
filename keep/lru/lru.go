// Package lru implements a keep that caches membership answers
// from a nested keep in a least-recently-used cache.
package lru

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

var _ keep.Keep = &Keep{}

// Keep caches the hashes known to be present in a nested keep.
// Only positive answers are cached.
// Writes pass through to the nested keep.
type Keep struct {
	c *lru.Cache // chash.Hash->struct{}
	k keep.Keep
}

// New produces a new Keep backed by k and caching up to size hashes.
func New(k keep.Keep, size int) (*Keep, error) {
	c, err := lru.New(size)
	return &Keep{k: k, c: c}, err
}

// Add adds a hash to the nested keep if it wasn't already present.
func (k *Keep) Add(ctx context.Context, h chash.Hash) (bool, error) {
	if k.c.Contains(h) {
		return false, nil
	}
	added, err := k.k.Add(ctx, h)
	if err != nil {
		return false, err
	}
	k.c.Add(h, struct{}{})
	return added, nil
}

// Delete removes a hash from the nested keep and from the cache.
func (k *Keep) Delete(ctx context.Context, h chash.Hash) error {
	k.c.Remove(h)
	return k.k.Delete(ctx, h)
}

// Contains tells whether h is in the nested keep,
// consulting the cache first.
func (k *Keep) Contains(ctx context.Context, h chash.Hash) (bool, error) {
	if _, ok := k.c.Get(h); ok {
		return true, nil
	}
	ok, err := k.k.Contains(ctx, h)
	if err != nil {
		return false, err
	}
	if ok {
		k.c.Add(h, struct{}{})
	}
	return ok, nil
}

// ListHashes produces all hashes in the nested keep, in ascending order.
func (k *Keep) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	return k.k.ListHashes(ctx, start, f)
}

// Close closes the nested keep if it has a Close method.
func (k *Keep) Close() error {
	k.c.Purge()
	if c, ok := k.k.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func init() {
	keep.Register("lru", func(ctx context.Context, conf map[string]interface{}) (keep.Keep, error) {
		size, ok, err := keep.Int(conf, "size")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(`missing "size" parameter`)
		}
		nested, err := keep.Nested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nested, size)
	})
}
