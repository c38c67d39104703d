// Package bt implements a keep on Google Cloud Bigtable.
// Each hash is a row keyed by the hash's hex encoding,
// so row order is hash order.
package bt

import (
	"context"

	"cloud.google.com/go/bigtable"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

var _ keep.Keep = &Keep{}

// Keep is a Google Cloud Bigtable-backed implementation of a keep.
// The table must have the column family named by Family.
type Keep struct {
	t *bigtable.Table
}

const (
	// Family is the column family holding the presence cells.
	Family = "h"

	col       = "h"
	keyPrefix = "h:"
)

// New produces a new Keep.
func New(t *bigtable.Table) *Keep {
	return &Keep{t: t}
}

func rowKey(h chash.Hash) string {
	return keyPrefix + h.Hex()
}

func hashFromKey(key string) (chash.Hash, error) {
	if len(key) < len(keyPrefix) {
		return chash.Hash{}, errors.Wrapf(chash.ErrMalformed, "row key %q", key)
	}
	return chash.FromHex(key[len(keyPrefix):])
}

// Add adds a hash to the keep if it wasn't already present.
func (k *Keep) Add(ctx context.Context, h chash.Hash) (bool, error) {
	mut := bigtable.NewMutation()
	mut.Set(Family, col, bigtable.Now(), []byte{1})

	cmut := bigtable.NewCondMutation(bigtable.LatestNFilter(1), nil, mut)

	var alreadyPresent bool
	err := k.t.Apply(ctx, rowKey(h), cmut, bigtable.GetCondMutationResult(&alreadyPresent))
	if err != nil {
		return false, errors.Wrapf(err, "applying mutation for %s", h)
	}
	return !alreadyPresent, nil
}

// Delete removes a hash from the keep.
func (k *Keep) Delete(ctx context.Context, h chash.Hash) error {
	mut := bigtable.NewMutation()
	mut.DeleteRow()
	return errors.Wrapf(k.t.Apply(ctx, rowKey(h), mut), "deleting row for %s", h)
}

// Contains tells whether h is in the keep.
func (k *Keep) Contains(ctx context.Context, h chash.Hash) (bool, error) {
	row, err := k.t.ReadRow(ctx, rowKey(h), bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return false, errors.Wrapf(err, "reading row for %s", h)
	}
	return len(row[Family]) > 0, nil
}

// ListHashes produces all hashes in the keep, in ascending order.
func (k *Keep) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	var innerErr error
	rowFn := func(row bigtable.Row) bool {
		key := row.Key()
		h, err := hashFromKey(key)
		if err != nil {
			innerErr = errors.Wrapf(err, "extracting hash from key %s", key)
			return false
		}
		if err = f(h); err != nil {
			innerErr = err
			return false
		}
		return true
	}

	// Keys all have the same length,
	// so this sorts after start's key and before every later one.
	startKey := rowKey(start) + "\x00"

	filter := bigtable.ChainFilters(
		bigtable.RowKeyFilter("^"+keyPrefix),
		bigtable.LatestNFilter(1),
		bigtable.StripValueFilter(),
	)
	err := k.t.ReadRows(ctx, bigtable.InfiniteRange(startKey), rowFn, bigtable.RowFilter(filter))
	if err != nil {
		return errors.Wrap(err, "reading rows")
	}
	return innerErr
}

func init() {
	keep.Register("bt", func(ctx context.Context, conf map[string]interface{}) (keep.Keep, error) {
		project, ok := conf["project"].(string)
		if !ok {
			return nil, errors.New(`missing "project" parameter`)
		}
		instance, ok := conf["instance"].(string)
		if !ok {
			return nil, errors.New(`missing "instance" parameter`)
		}
		table, ok := conf["table"].(string)
		if !ok {
			return nil, errors.New(`missing "table" parameter`)
		}
		creds, ok := conf["creds"].(string)
		if !ok {
			return nil, errors.New(`missing "creds" parameter`)
		}

		c, err := bigtable.NewClient(ctx, project, instance, option.WithCredentialsFile(creds))
		if err != nil {
			return nil, errors.Wrap(err, "creating bigtable client")
		}
		return New(c.Open(table)), nil
	})
}
