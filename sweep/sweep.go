// Package sweep finds the hashes that nothing has promised to keep.
package sweep

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/chash"
	"github.com/bobg/chash/list"
)

// Keep is the set of hashes to retain.
// Any keep.Keep will do.
type Keep interface {
	Contains(context.Context, chash.Hash) (bool, error)
}

// Run lists src and appends to out, in src's order,
// each hash that k does not contain.
// It returns the number of hashes appended.
// Nothing is deleted;
// the caller decides what to do with the candidates in out.
func Run(ctx context.Context, src chash.Lister, k Keep, out *list.List) (int64, error) {
	var n int64
	err := src.ListHashes(ctx, chash.Zero, func(h chash.Hash) error {
		found, err := k.Contains(ctx, h)
		if err != nil {
			return errors.Wrapf(err, "checking %s", h)
		}
		if found {
			return nil
		}
		if err = out.Append(h); err != nil {
			return errors.Wrapf(err, "recording %s", h)
		}
		n++
		return nil
	})
	return n, err
}
