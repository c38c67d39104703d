// Package file implements a keep as a sorted file of hashes.
// See package set.
package file

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
	"github.com/bobg/chash/set"
)

var _ keep.Keep = &Keep{}

// Keep is a file-based implementation of a keep.
type Keep struct {
	s *set.Set
}

// Open opens the keep stored at path,
// creating it if necessary.
func Open(path string, opts ...set.Option) (*Keep, error) {
	s, err := set.Open(path, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "opening set %s", path)
	}
	return &Keep{s: s}, nil
}

// Add adds a hash to the keep.
// Two concurrent Adds of the same hash may both report it as added.
func (k *Keep) Add(_ context.Context, h chash.Hash) (bool, error) {
	ok, err := k.s.Contains(h)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	return true, k.s.Add(h)
}

// Delete removes a hash from the keep.
func (k *Keep) Delete(_ context.Context, h chash.Hash) error {
	return k.s.Delete(h)
}

// Contains tells whether h is in the keep.
func (k *Keep) Contains(_ context.Context, h chash.Hash) (bool, error) {
	return k.s.Contains(h)
}

// ListHashes produces all hashes in the keep, in ascending order.
func (k *Keep) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	return k.s.ListHashes(ctx, start, f)
}

// Close flushes the keep and releases its file.
func (k *Keep) Close() error {
	return k.s.Close()
}

func init() {
	keep.Register("file", func(_ context.Context, conf map[string]interface{}) (keep.Keep, error) {
		path, ok := conf["path"].(string)
		if !ok {
			return nil, errors.New(`missing "path" parameter`)
		}
		opts := []set.Option{set.WithLogger(zap.L())}
		limit, ok, err := keep.Int(conf, "buffer")
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, set.WithBufferLimit(limit))
		}
		return Open(path, opts...)
	})
}
