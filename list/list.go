// Package list implements an append-only list of content hashes
// that spills to disk in fixed-size partitions.
package list

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/chash"
)

// DefaultRecordsPerPartition is the partition size used when none is given.
const DefaultRecordsPerPartition = 5000

// List is an append-only, insertion-ordered sequence of hashes.
// The most recent entries are held in memory;
// whenever that tail reaches the partition size
// it is written to a new, immutable partition file.
// Partition files are sequences of 76-byte records,
// so any entry can be read with a single seek.
//
// A List is safe for concurrent use.
type List struct {
	mu sync.Mutex

	dir    string
	ownDir bool
	per    int64
	log    *zap.Logger

	nparts int64
	tail   []chash.Hash
	closed bool
}

type options struct {
	dir string
	per int64
	log *zap.Logger
}

// Option configures a List.
type Option func(*options)

// WithDir makes the List keep its partitions in dir,
// which must exist and must not be used by any other List.
// By default a new temporary directory is created,
// and Close removes it.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithRecordsPerPartition sets the partition size.
// It is fixed for the life of the List.
func WithRecordsPerPartition(n int) Option {
	return func(o *options) {
		o.per = int64(n)
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// New produces a new, empty List.
func New(opts ...Option) (*List, error) {
	o := options{
		per: DefaultRecordsPerPartition,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.per <= 0 {
		return nil, fmt.Errorf("records per partition must be positive, got %d", o.per)
	}

	l := &List{
		dir: o.dir,
		per: o.per,
		log: o.log.With(zap.String("component", "hashlist")),
	}
	if l.dir == "" {
		dir, err := os.MkdirTemp("", "chashlist")
		if err != nil {
			return nil, errors.Wrap(err, "creating temp dir")
		}
		l.dir = dir
		l.ownDir = true
	}
	l.tail = make([]chash.Hash, 0, l.per)

	l.log.Debug("created list", zap.String("dir", l.dir), zap.Int64("per_partition", l.per))

	return l, nil
}

func (l *List) partpath(n int64) string {
	return filepath.Join(l.dir, fmt.Sprintf("%08d.part", n))
}

// Append adds h to the end of the list.
func (l *List) Append(h chash.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return chash.ErrClosed
	}

	l.tail = append(l.tail, h)
	if int64(len(l.tail)) < l.per {
		return nil
	}
	return l.spill()
}

// Caller must obtain a lock.
func (l *List) spill() error {
	buf := make([]byte, 0, len(l.tail)*chash.Size)
	for _, h := range l.tail {
		buf = append(buf, h[:]...)
	}

	path := l.partpath(l.nparts)
	err := os.WriteFile(path, buf, 0644)
	if err != nil {
		// Don't leave a short partition behind.
		os.Remove(path)
		l.tail = l.tail[:len(l.tail)-1]
		return errors.Wrapf(err, "writing partition %s", path)
	}

	l.log.Debug("wrote partition", zap.String("path", path), zap.Int("records", len(l.tail)))

	l.nparts++
	l.tail = l.tail[:0]
	return nil
}

// Get gets the hash at index i.
func (l *List) Get(i int64) (chash.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return chash.Hash{}, chash.ErrClosed
	}
	if i < 0 || i >= l.len() {
		return chash.Hash{}, errors.Wrapf(chash.ErrOutOfRange, "index %d, size %d", i, l.len())
	}

	part, idx := i/l.per, i%l.per
	if part == l.nparts {
		return l.tail[idx], nil
	}

	path := l.partpath(part)
	f, err := os.Open(path)
	if err != nil {
		return chash.Hash{}, errors.Wrapf(err, "opening partition %s", path)
	}
	defer f.Close()

	var h chash.Hash
	_, err = f.ReadAt(h[:], idx*chash.Size)
	return h, errors.Wrapf(err, "reading record %d of %s", idx, path)
}

// Remove always fails.
// A List supports only appending and reading.
func (l *List) Remove(int64) error {
	return chash.ErrUnsupported
}

// Len is the number of hashes in the list.
func (l *List) Len() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.len()
}

// Caller must obtain a lock.
func (l *List) len() int64 {
	return l.nparts*l.per + int64(len(l.tail))
}

// RecordsOnDisk is the number of hashes in partition files.
func (l *List) RecordsOnDisk() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nparts * l.per
}

// RecordsInMemory is the number of hashes not yet written to a partition.
func (l *List) RecordsInMemory() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.tail))
}

// Each calls f with each index and hash in the list, in order.
// Hashes appended during the call may or may not be included.
// If f returns an error, Each exits with that error.
func (l *List) Each(ctx context.Context, f func(int64, chash.Hash) error) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return chash.ErrClosed
	}
	var (
		nparts = l.nparts
		tail   = append([]chash.Hash(nil), l.tail...)
	)
	l.mu.Unlock()

	var (
		i   int64
		rec chash.Hash
	)
	for part := int64(0); part < nparts; part++ {
		err := func() error {
			path := l.partpath(part)
			fh, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "opening partition %s", path)
			}
			defer fh.Close()

			r := bufio.NewReaderSize(fh, 1000*chash.Size)
			for j := int64(0); j < l.per; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := io.ReadFull(r, rec[:]); err != nil {
					return errors.Wrapf(err, "reading record %d of %s", j, path)
				}
				if err := f(i, rec); err != nil {
					return err
				}
				i++
			}
			return nil
		}()
		if err != nil {
			return err
		}
	}

	for _, h := range tail {
		if err := f(i, h); err != nil {
			return err
		}
		i++
	}
	return nil
}

// Close discards the list, removing its partition files
// and, if New created it, its directory.
func (l *List) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.tail = nil

	if l.ownDir {
		return errors.Wrapf(os.RemoveAll(l.dir), "removing %s", l.dir)
	}
	for n := int64(0); n < l.nparts; n++ {
		if err := os.Remove(l.partpath(n)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing partition %d", n)
		}
	}
	return nil
}
