// Package set implements a sorted set of content hashes backed by a flat file.
//
// The file is a run of 76-byte records in ascending order with no duplicates.
// Adds and deletes are buffered in memory
// and folded into the file by Flush,
// which makes one streaming merge pass over the old run.
// Flush happens automatically whenever the number of pending changes
// reaches the buffer limit.
package set

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/bobg/flock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/chash"
)

// ErrCorrupt is the error for a backing file that is not a whole number of records.
var ErrCorrupt = errors.New("corrupt set file")

// Set is a sorted set of hashes backed by a file.
// A Set is safe for concurrent use,
// but no two Sets (in this or any other process) may share a file.
type Set struct {
	mu sync.Mutex

	path string
	temp bool
	opts options
	log  *zap.Logger

	flocker flock.Locker

	f       *os.File // read handle on path, replaced on every flush
	count   int64    // records in f
	inserts map[chash.Hash]struct{}
	deletes map[chash.Hash]struct{}

	rbuf, wbuf []byte

	closed bool
}

// Open opens the set stored at path,
// creating an empty one if the file does not exist.
// If a previous flush was interrupted,
// Open recovers the file as it was before that flush.
//
// The file is locked for the lifetime of the Set.
// Close flushes pending changes and releases the lock.
func Open(path string, opts ...Option) (*Set, error) {
	s := newSet(path, opts)

	if err := s.flocker.Lock(s.lockpath()); err != nil {
		return nil, errors.Wrapf(err, "locking %s", path)
	}
	if err := s.recover(); err != nil {
		s.flocker.Unlock(s.lockpath())
		return nil, err
	}
	if err := s.touch(); err != nil {
		s.flocker.Unlock(s.lockpath())
		return nil, err
	}
	if err := s.reopen(); err != nil {
		s.flocker.Unlock(s.lockpath())
		return nil, err
	}
	return s, nil
}

// Temp creates an empty set in a temporary file.
// Close removes the file.
func Temp(opts ...Option) (*Set, error) {
	f, err := os.CreateTemp("", "chashset")
	if err != nil {
		return nil, errors.Wrap(err, "creating temp file")
	}
	path := f.Name()
	f.Close()

	s := newSet(path, opts)
	s.temp = true
	if err = s.reopen(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return s, nil
}

func newSet(path string, opts []Option) *Set {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit <= 0 {
		o.limit = 1
	}
	return &Set{
		path:    path,
		opts:    o,
		log:     o.log.With(zap.String("component", "hashset"), zap.String("path", path)),
		inserts: make(map[chash.Hash]struct{}),
		deletes: make(map[chash.Hash]struct{}),
		rbuf:    make([]byte, batchRecords*chash.Size),
		wbuf:    make([]byte, 0, batchRecords*chash.Size),
	}
}

func (s *Set) backuppath() string {
	return s.path + ".bak"
}

func (s *Set) lockpath() string {
	return s.path + ".lock"
}

// Deals with the leftovers of a flush that did not finish.
// The main file is only ever replaced atomically,
// so if it exists it is complete.
func (s *Set) recover() error {
	_, err := os.Stat(s.backuppath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "statting %s", s.backuppath())
	}

	_, err = os.Stat(s.path)
	if os.IsNotExist(err) {
		s.log.Warn("restoring set from backup after interrupted flush")
		return errors.Wrap(os.Rename(s.backuppath(), s.path), "restoring backup")
	}
	if err != nil {
		return errors.Wrapf(err, "statting %s", s.path)
	}

	s.log.Warn("removing stale backup")
	return errors.Wrap(os.Remove(s.backuppath()), "removing stale backup")
}

// Creates an empty run at s.path if there is no file there.
func (s *Set) touch() error {
	f, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating %s", s.path)
	}
	return f.Close()
}

// Replaces the read handle with a fresh one on s.path.
// Caller must obtain a lock (or have exclusive access).
func (s *Set) reopen() error {
	f, err := os.Open(s.path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", s.path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "statting %s", s.path)
	}
	if info.Size()%chash.Size != 0 {
		f.Close()
		return errors.Wrapf(ErrCorrupt, "%s has size %d, not a multiple of %d", s.path, info.Size(), chash.Size)
	}
	if s.f != nil {
		s.f.Close()
	}
	s.f = f
	s.count = info.Size() / chash.Size
	return nil
}

// A failed flush can leave s without a read handle,
// or even with the run still in the backup file.
// Caller must obtain a lock.
func (s *Set) ensureOpen() error {
	if s.f != nil {
		return nil
	}
	if err := s.recover(); err != nil {
		return err
	}
	return s.reopen()
}

// Add adds h to the set.
// Adding a hash that is already present has no effect.
// An Add cancels a pending Delete of h,
// and buffers an insert too if h is not on disk.
func (s *Set) Add(h chash.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chash.ErrClosed
	}

	if _, ok := s.deletes[h]; ok {
		found, err := s.onDisk(h)
		if err != nil {
			return err
		}
		delete(s.deletes, h)
		if found {
			return nil
		}
	}
	s.inserts[h] = struct{}{}
	return s.check(false)
}

// Delete removes h from the set.
// Deleting a hash that is not present has no effect.
// A Delete cancels a pending Add of h,
// and buffers a delete too if h is on disk.
func (s *Set) Delete(h chash.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chash.ErrClosed
	}

	if _, ok := s.inserts[h]; ok {
		found, err := s.onDisk(h)
		if err != nil {
			return err
		}
		delete(s.inserts, h)
		if !found {
			return nil
		}
	}
	s.deletes[h] = struct{}{}
	return s.check(false)
}

// Contains tells whether h is in the set.
func (s *Set) Contains(h chash.Hash) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, chash.ErrClosed
	}

	if _, ok := s.deletes[h]; ok {
		return false, nil
	}
	if _, ok := s.inserts[h]; ok {
		return true, nil
	}

	return s.onDisk(h)
}

// Tells whether h is in the on-disk run, ignoring the buffers.
// Caller must obtain a lock.
func (s *Set) onDisk(h chash.Hash) (bool, error) {
	idx, err := s.search(h)
	if err != nil {
		return false, err
	}
	if idx == s.count {
		return false, nil
	}
	rec, err := s.record(idx)
	return rec == h, err
}

// Returns the index of the first on-disk record not less than h,
// or s.count if there is none.
// Caller must obtain a lock.
func (s *Set) search(h chash.Hash) (int64, error) {
	var (
		lo, hi = int64(0), s.count
		err    error
	)
	for lo < hi {
		mid := lo + (hi-lo)/2
		var rec chash.Hash
		rec, err = s.record(mid)
		if err != nil {
			return 0, err
		}
		if rec.Less(h) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// Caller must obtain a lock.
func (s *Set) record(idx int64) (chash.Hash, error) {
	var rec chash.Hash
	if err := s.ensureOpen(); err != nil {
		return rec, err
	}
	_, err := s.f.ReadAt(rec[:], idx*chash.Size)
	return rec, errors.Wrapf(err, "reading record %d of %s", idx, s.path)
}

// Len is the number of hashes in the set.
// If allowEstimate is false,
// pending changes are flushed first and the result is exact.
// Otherwise the result may be off by the number of pending adds of hashes already on disk
// and pending deletes of hashes not on disk.
func (s *Set) Len(allowEstimate bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, chash.ErrClosed
	}
	if !allowEstimate {
		if err := s.check(true); err != nil {
			return 0, err
		}
	}
	return s.len(), nil
}

// Caller must obtain a lock.
func (s *Set) len() int64 {
	n := s.count + int64(len(s.inserts)) - int64(len(s.deletes))
	if n < 0 {
		return 0
	}
	return n
}

// Get returns up to limit hashes,
// starting with the one at position offset in the on-disk run.
// If that yields fewer than limit hashes,
// the result is filled out from the pending adds.
//
// Unless WithFlushBeforeRead(false) was given,
// pending changes are flushed first,
// so the result is a slice of the sorted set.
func (s *Set) Get(offset, limit int64) ([]chash.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, chash.ErrClosed
	}
	if s.opts.flushBeforeRead {
		if err := s.check(true); err != nil {
			return nil, err
		}
	}
	return s.get(offset, limit)
}

// Caller must obtain a lock.
func (s *Set) get(offset, limit int64) ([]chash.Hash, error) {
	if offset < 0 || limit < 0 {
		return nil, errors.Wrapf(chash.ErrOutOfRange, "offset %d, limit %d", offset, limit)
	}

	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	var result []chash.Hash

	if offset < s.count {
		r := io.NewSectionReader(s.f, offset*chash.Size, (s.count-offset)*chash.Size)
		err := s.scan(r, func(h chash.Hash) bool {
			if int64(len(result)) >= limit {
				return false
			}
			if _, ok := s.deletes[h]; !ok {
				result = append(result, h)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	if int64(len(result)) < limit {
		for _, h := range s.sortedInserts() {
			if int64(len(result)) >= limit {
				break
			}
			if _, ok := s.deletes[h]; !ok {
				result = append(result, h)
			}
		}
	}

	return result, nil
}

// All returns every hash in the set, in order.
// It is only suitable for sets that fit in memory.
func (s *Set) All() ([]chash.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, chash.ErrClosed
	}
	if err := s.check(true); err != nil {
		return nil, err
	}
	return s.get(0, s.len())
}

// ListHashes implements chash.Lister.
// Pending changes are flushed first.
// The callback sees a snapshot of the set as of the call;
// it may safely call methods on s.
func (s *Set) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return chash.ErrClosed
	}
	if err := s.check(true); err != nil {
		s.mu.Unlock()
		return err
	}
	idx, err := s.search(start.Next())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if start == chash.Max {
		idx = s.count
	}

	// A separate handle keeps reading the current file
	// even after a later flush renames a new one into place.
	snap, err := os.Open(s.path)
	count := s.count
	s.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "opening %s", s.path)
	}
	defer snap.Close()

	var (
		r    = io.NewSectionReader(snap, idx*chash.Size, (count-idx)*chash.Size)
		buf  = make([]byte, batchRecords*chash.Size)
		cerr error
	)
	err = scanWith(r, buf, func(h chash.Hash) bool {
		if cerr = ctx.Err(); cerr != nil {
			return false
		}
		cerr = f(h)
		return cerr == nil
	})
	if err != nil {
		return errors.Wrapf(err, "listing %s", s.path)
	}
	return cerr
}

// Clear empties the set, discarding pending changes and the on-disk run.
func (s *Set) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chash.ErrClosed
	}

	s.inserts = make(map[chash.Hash]struct{})
	s.deletes = make(map[chash.Hash]struct{})

	for _, p := range []string{s.path, s.backuppath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing %s", p)
		}
	}
	if err := s.touch(); err != nil {
		return err
	}
	return s.reopen()
}

// Close releases the set.
// A temporary set's file is removed.
// A persistent set is flushed, so its file can be reopened later.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if s.temp {
		s.closed = true
		s.f.Close()
		if err := os.Remove(s.backuppath()); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing %s", s.backuppath())
		}
		return errors.Wrapf(os.Remove(s.path), "removing %s", s.path)
	}

	if err := s.check(true); err != nil {
		return err
	}
	s.closed = true
	s.f.Close()
	return errors.Wrapf(s.flocker.Unlock(s.lockpath()), "unlocking %s", s.path)
}

// Caller must obtain a lock.
func (s *Set) sortedInserts() []chash.Hash {
	result := make([]chash.Hash, 0, len(s.inserts))
	for h := range s.inserts {
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Less(result[j]) })
	return result
}

// Caller must obtain a lock.
func (s *Set) scan(r io.Reader, f func(chash.Hash) bool) error {
	return scanWith(r, s.rbuf, f)
}

// Reads r in batches of whole records using buf,
// calling f on each record until f returns false.
func scanWith(r io.Reader, buf []byte, f func(chash.Hash) bool) error {
	var rec chash.Hash
	for {
		n, err := io.ReadFull(r, buf)
		if n%chash.Size != 0 {
			// A short read always ends at EOF for these readers,
			// so a partial record means the file is bad.
			return errors.Wrapf(ErrCorrupt, "trailing %d bytes", n%chash.Size)
		}
		for off := 0; off < n; off += chash.Size {
			copy(rec[:], buf[off:off+chash.Size])
			if !f(rec) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
