package keep

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/chash"
	"github.com/bobg/chash/list"
)

// Sync synchronizes two or more keeps.
// It runs ListHashes on all of them concurrently, merging the results.
// When a hash is found to be in some but not all keeps,
// it is added to the keeps where it's missing.
//
// Missing hashes are collected in on-disk lists during the walk
// and added afterwards,
// so no keep is written while it is being listed.
func Sync(ctx context.Context, keeps ...Keep) error {
	if len(keeps) < 2 {
		return nil
	}

	missing := make([]*list.List, len(keeps))
	for i := range keeps {
		l, err := list.New()
		if err != nil {
			return errors.Wrap(err, "creating list of missing hashes")
		}
		defer l.Close()
		missing[i] = l
	}

	listers := make([]chash.Lister, len(keeps))
	for i, k := range keeps {
		listers[i] = k
	}

	err := Walk(ctx, listers, chash.Zero, func(h chash.Hash, have []bool) error {
		for i, ok := range have {
			if ok {
				continue
			}
			if err := missing[i].Append(h); err != nil {
				return errors.Wrapf(err, "recording missing hash %s", h)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, k := range keeps {
		err = missing[i].Each(ctx, func(_ int64, h chash.Hash) error {
			_, err := k.Add(ctx, h)
			return errors.Wrapf(err, "adding %s", h)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Walk lists all the given Listers concurrently, starting after start,
// and calls f once for each distinct hash, in ascending order,
// telling which of the listers have it.
func Walk(ctx context.Context, listers []chash.Lister, start chash.Hash, f func(chash.Hash, []bool) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx2 := errgroup.WithContext(ctx)

	type stream struct {
		ch  chan chash.Hash
		cur chash.Hash
		ok  bool
	}

	streams := make([]*stream, 0, len(listers))
	for _, l := range listers {
		l := l
		s := &stream{ch: make(chan chash.Hash)}
		eg.Go(func() error {
			defer close(s.ch)
			return l.ListHashes(ctx2, start, func(h chash.Hash) error {
				select {
				case <-ctx2.Done():
					return ctx2.Err()
				case s.ch <- h:
				}
				return nil
			})
		})
		streams = append(streams, s)
	}

	next := func(s *stream) {
		s.cur, s.ok = <-s.ch
	}
	for _, s := range streams {
		next(s)
	}

	for {
		var (
			min   chash.Hash
			found bool
		)
		for _, s := range streams {
			if s.ok && (!found || s.cur.Less(min)) {
				min, found = s.cur, true
			}
		}
		if !found {
			// We've reached the end of input on all channels.
			return eg.Wait()
		}

		have := make([]bool, len(streams))
		for i, s := range streams {
			if s.ok && s.cur == min {
				have[i] = true
				next(s)
			}
		}

		if err := f(min, have); err != nil {
			cancel()
			eg.Wait()
			return err
		}
	}
}
