// Package replica implements a keep that fans writes out to several nested keeps.
package replica

import (
	"context"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

var _ keep.Keep = (*Keep)(nil)

// Keep writes to two groups of nested keeps.
// Writes to the synchronous group must all succeed before Add or Delete returns.
// Writes to the asynchronous group are queued, and Add and Delete don't wait for them;
// but the first asynchronous failure puts the Keep into an error state
// that fails every later call.
//
// Reads consult only the synchronous keeps,
// and report the union of their contents.
type Keep struct {
	sync   []keep.Keep
	async  []asyncChans
	cancel context.CancelFunc

	mu  sync.Mutex // protects err
	err error      // the error from an async goroutine, if any
}

type op struct {
	h   chash.Hash
	del bool
}

type asyncChans struct {
	ops  chan<- op
	errs <-chan error
}

// New produces a new Keep.
// The synchronous group must be non-empty.
// Each asynchronous keep gets a goroutine, which runs until ctx is canceled,
// and a queue of n pending writes (n >= 1).
// A write blocks when some asynchronous queue is full.
func New(ctx context.Context, sync []keep.Keep, async []keep.Keep, n int) *Keep {
	result := &Keep{sync: sync}

	if len(async) > 0 {
		ctx, result.cancel = context.WithCancel(ctx)

		selectCases := make([]reflect.SelectCase, 1+len(async))

		for i, a := range async {
			var (
				ops  = make(chan op, n)
				errs = make(chan error, 1)
			)

			result.async = append(result.async, asyncChans{ops: ops, errs: errs})

			selectCases[i].Dir = reflect.SelectRecv
			selectCases[i].Chan = reflect.ValueOf(errs)

			go runAsync(ctx, a, ops, errs)
		}

		selectCases[len(async)].Dir = reflect.SelectRecv
		selectCases[len(async)].Chan = reflect.ValueOf(ctx.Done())

		go func() {
			_, errval, ok := reflect.Select(selectCases)
			if ok {
				result.cancel()
				result.mu.Lock()
				result.err = errval.Interface().(error)
				result.mu.Unlock()
			}
		}()
	}

	return result
}

// Runs as a goroutine until ctx is canceled or an error occurs (which it writes to errs).
func runAsync(ctx context.Context, k keep.Keep, ops <-chan op, errs chan<- error) {
	defer close(errs)

	for {
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return

		case o := <-ops:
			var err error
			if o.del {
				err = k.Delete(ctx, o.h)
			} else {
				_, err = k.Add(ctx, o.h)
			}
			if err != nil {
				errs <- errors.Wrapf(err, "replicating %s", o.h)
				return
			}
		}
	}
}

func (k *Keep) checkErr() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return errors.Wrap(k.err, "in async-keep goroutine")
}

// Add adds h to all synchronous nested keeps
// and queues it for the asynchronous ones.
// It reports whether any synchronous keep lacked h.
func (k *Keep) Add(ctx context.Context, h chash.Hash) (bool, error) {
	var (
		mu    sync.Mutex
		added bool
	)
	err := k.write(ctx, op{h: h}, func(ctx context.Context, nested keep.Keep) error {
		a, err := nested.Add(ctx, h)
		if err != nil {
			return err
		}
		mu.Lock()
		added = added || a
		mu.Unlock()
		return nil
	})
	return added, err
}

// Delete removes h from all synchronous nested keeps
// and queues its removal from the asynchronous ones.
func (k *Keep) Delete(ctx context.Context, h chash.Hash) error {
	return k.write(ctx, op{h: h, del: true}, func(ctx context.Context, nested keep.Keep) error {
		return nested.Delete(ctx, h)
	})
}

func (k *Keep) write(ctx context.Context, o op, f func(context.Context, keep.Keep) error) error {
	if err := k.checkErr(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, nested := range k.sync {
		nested := nested
		g.Go(func() error {
			return f(ctx, nested)
		})
	}

	for _, a := range k.async {
		select {
		case <-ctx.Done():
			if err := g.Wait(); err != nil {
				return err
			}
			return ctx.Err()

		case a.ops <- o:
		}
	}

	err := g.Wait()
	if err != nil && k.cancel != nil {
		k.cancel()
	}
	return err
}

// Contains tells whether any synchronous nested keep contains h.
func (k *Keep) Contains(ctx context.Context, h chash.Hash) (bool, error) {
	if err := k.checkErr(); err != nil {
		return false, err
	}
	for _, nested := range k.sync {
		ok, err := nested.Contains(ctx, h)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ListHashes produces the union of the hashes in the synchronous nested keeps,
// in ascending order.
func (k *Keep) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	if err := k.checkErr(); err != nil {
		return err
	}
	listers := make([]chash.Lister, len(k.sync))
	for i, nested := range k.sync {
		listers[i] = nested
	}
	return keep.Walk(ctx, listers, start, func(h chash.Hash, _ []bool) error {
		return f(h)
	})
}

func init() {
	keep.Register("replica", func(ctx context.Context, conf map[string]interface{}) (keep.Keep, error) {
		syncConfs, ok := conf["sync"].([]interface{})
		if !ok || len(syncConfs) == 0 {
			return nil, errors.New(`missing "sync" parameter`)
		}
		syncKeeps, err := createAll(ctx, syncConfs)
		if err != nil {
			return nil, errors.Wrap(err, "creating sync keeps")
		}

		asyncConfs, _ := conf["async"].([]interface{})
		asyncKeeps, err := createAll(ctx, asyncConfs)
		if err != nil {
			return nil, errors.Wrap(err, "creating async keeps")
		}

		n, ok, err := keep.Int(conf, "queue")
		if err != nil {
			return nil, err
		}
		if !ok {
			n = 100
		}

		return New(ctx, syncKeeps, asyncKeeps, n), nil
	})
}

func createAll(ctx context.Context, confs []interface{}) ([]keep.Keep, error) {
	var result []keep.Keep
	for i, c := range confs {
		m, ok := c.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("item %d is a %T, want object", i, c)
		}
		k, err := keep.Nested(ctx, map[string]interface{}{"nested": m})
		if err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		result = append(result, k)
	}
	return result, nil
}
