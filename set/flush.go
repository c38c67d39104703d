package set

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/chash"
)

// Flush merges pending adds and deletes into the on-disk run.
func (s *Set) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chash.ErrClosed
	}
	return s.check(true)
}

// Flushes if there are pending changes
// and either force is true or the buffer limit has been reached.
// Caller must obtain a lock.
func (s *Set) check(force bool) error {
	pending := len(s.inserts) + len(s.deletes)
	if pending == 0 {
		return nil
	}
	if !force && pending < s.opts.limit {
		return nil
	}
	return s.flush()
}

// Moves the main file aside,
// merges it with the pending changes into a new main file,
// and removes the old one.
// On failure the main file is restored and the buffers are left as they were.
// Caller must obtain a lock.
func (s *Set) flush() error {
	var (
		start  = time.Now()
		backup = s.backuppath()
	)

	if err := s.ensureOpen(); err != nil {
		return errors.Wrapf(err, "flushing %s", s.path)
	}
	s.f.Close()
	s.f = nil

	if err := os.Rename(s.path, backup); err != nil {
		if rerr := s.reopen(); rerr != nil {
			s.log.Error("reopening after failed flush", zap.Error(rerr))
		}
		return errors.Wrapf(err, "flushing %s: moving aside", s.path)
	}

	count, err := s.merge(backup)
	if err != nil {
		if rerr := os.Rename(backup, s.path); rerr != nil {
			s.log.Error("restoring backup after failed flush", zap.Error(rerr))
		} else if rerr = s.reopen(); rerr != nil {
			s.log.Error("reopening after failed flush", zap.Error(rerr))
		}
		return errors.Wrapf(err, "flushing %s", s.path)
	}

	if err = s.reopen(); err != nil {
		return errors.Wrapf(err, "flushing %s", s.path)
	}
	if s.count != count {
		return errors.Wrapf(ErrCorrupt, "flushing %s: wrote %d records, found %d", s.path, count, s.count)
	}

	if err = os.Remove(backup); err != nil {
		// The new main file is complete; Open will clean this up.
		s.log.Warn("removing backup", zap.Error(err))
	}

	s.log.Debug("flushed",
		zap.Int("inserts", len(s.inserts)),
		zap.Int("deletes", len(s.deletes)),
		zap.Int64("records", count),
		zap.Duration("elapsed", time.Since(start)),
	)

	s.inserts = make(map[chash.Hash]struct{})
	s.deletes = make(map[chash.Hash]struct{})

	return nil
}

// One pass of an external merge sort.
// The old run must be sorted and duplicate-free,
// which every previous merge guarantees.
// Caller must obtain a lock.
func (s *Set) merge(oldpath string) (int64, error) {
	in, err := os.Open(oldpath)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s", oldpath)
	}
	defer in.Close()

	out, err := renameio.TempFile(filepath.Dir(s.path), s.path)
	if err != nil {
		return 0, errors.Wrap(err, "creating output file")
	}
	defer out.Cleanup()

	var (
		w       = &recordWriter{w: out, buf: s.wbuf[:0]}
		inserts = s.sortedInserts()
		i       int
	)

	emit := func(h chash.Hash) {
		if _, ok := s.deletes[h]; !ok {
			w.write(h)
		}
	}

	err = s.scan(in, func(rec chash.Hash) bool {
		for i < len(inserts) && inserts[i].Less(rec) {
			emit(inserts[i])
			i++
		}
		// The copy already on disk wins.
		if i < len(inserts) && inserts[i] == rec {
			i++
		}
		emit(rec)
		return w.err == nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", oldpath)
	}

	for ; i < len(inserts); i++ {
		emit(inserts[i])
	}

	if err = w.flush(); err != nil {
		return 0, errors.Wrap(err, "writing output file")
	}
	if err = out.CloseAtomicallyReplace(); err != nil {
		return 0, errors.Wrap(err, "replacing main file")
	}
	return w.n, nil
}

// Buffers whole records and writes them out when the buffer fills.
// The first error sticks.
type recordWriter struct {
	w   io.Writer
	buf []byte
	n   int64
	err error
}

func (w *recordWriter) write(h chash.Hash) {
	if w.err != nil {
		return
	}
	if len(w.buf)+chash.Size > cap(w.buf) {
		if w.flush() != nil {
			return
		}
	}
	w.buf = append(w.buf, h[:]...)
	w.n++
}

func (w *recordWriter) flush() error {
	if w.err != nil || len(w.buf) == 0 {
		return w.err
	}
	_, w.err = w.w.Write(w.buf)
	w.buf = w.buf[:0]
	return w.err
}
