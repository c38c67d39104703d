package chash

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/binary"
	"hash"

	sha256 "github.com/minio/sha256-simd"
)

// Builder computes a Hash incrementally.
// It is an io.Writer.
type Builder struct {
	md5, sha1, sha256 hash.Hash

	// Widened to 64 bits;
	// a 32-bit counter wrapped on inputs over 4GiB
	// and produced the entries in legacyLengths.
	n uint64

	done bool
}

// NewBuilder produces a new, empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		md5:    md5.New(),
		sha1:   sha1.New(),
		sha256: sha256.New(),
	}
}

// Write implements io.Writer.
// It never returns an error.
func (b *Builder) Write(p []byte) (int, error) {
	b.md5.Write(p)
	b.sha1.Write(p)
	b.sha256.Write(p)
	b.n += uint64(len(p))
	return len(p), nil
}

// Update adds p[offset:offset+length] to the hash.
func (b *Builder) Update(p []byte, offset, length int) {
	b.Write(p[offset : offset+length])
}

// Len is the number of bytes written so far.
func (b *Builder) Len() uint64 {
	return b.n
}

// Finish finalizes the three digests and the length.
// It may be called only once.
func (b *Builder) Finish() Hash {
	if b.done {
		panic("chash: Finish called twice")
	}
	b.done = true

	var out Hash
	b.md5.Sum(out[MD5Offset:MD5Offset])
	b.sha1.Sum(out[SHA1Offset:SHA1Offset])
	b.sha256.Sum(out[SHA256Offset:SHA256Offset])
	binary.BigEndian.PutUint64(out[LengthOffset:], b.n)
	return out
}
