// Package logging implements a keep that delegates everything to a nested keep,
// logging operations as they happen.
package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

var _ keep.Keep = &Keep{}

// Keep logs each operation on a nested keep.
type Keep struct {
	k   keep.Keep
	log *zap.Logger
}

// New produces a new Keep wrapping k.
// A nil logger means zap's global logger.
func New(k keep.Keep, log *zap.Logger) *Keep {
	if log == nil {
		log = zap.L()
	}
	return &Keep{k: k, log: log.With(zap.String("component", "keep"))}
}

func (k *Keep) Add(ctx context.Context, h chash.Hash) (bool, error) {
	added, err := k.k.Add(ctx, h)
	if err != nil {
		k.log.Error("Add", zap.Stringer("hash", h), zap.Error(err))
	} else {
		k.log.Info("Add", zap.Stringer("hash", h), zap.Bool("added", added))
	}
	return added, err
}

func (k *Keep) Delete(ctx context.Context, h chash.Hash) error {
	err := k.k.Delete(ctx, h)
	if err != nil {
		k.log.Error("Delete", zap.Stringer("hash", h), zap.Error(err))
	} else {
		k.log.Info("Delete", zap.Stringer("hash", h))
	}
	return err
}

func (k *Keep) Contains(ctx context.Context, h chash.Hash) (bool, error) {
	ok, err := k.k.Contains(ctx, h)
	if err != nil {
		k.log.Error("Contains", zap.Stringer("hash", h), zap.Error(err))
	} else {
		k.log.Info("Contains", zap.Stringer("hash", h), zap.Bool("found", ok))
	}
	return ok, err
}

func (k *Keep) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	k.log.Info("ListHashes", zap.Stringer("start", start))
	return k.k.ListHashes(ctx, start, func(h chash.Hash) error {
		err := f(h)
		if err != nil {
			k.log.Error("  in ListHashes", zap.Stringer("hash", h), zap.Error(err))
		} else {
			k.log.Debug("  ListHashes", zap.Stringer("hash", h))
		}
		return err
	})
}

// Close closes the nested keep if it has a Close method.
func (k *Keep) Close() error {
	if c, ok := k.k.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func init() {
	keep.Register("logging", func(ctx context.Context, conf map[string]interface{}) (keep.Keep, error) {
		nested, err := keep.Nested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nested, nil), nil
	})
}
