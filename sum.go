package chash

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// Sum hashes exactly length bytes from r,
// followed by padding.
// Padding decorrelates the hash of encrypted content
// from the hash of its plaintext.
// It counts toward the length field.
func Sum(r io.Reader, length int64, padding []byte) (Hash, error) {
	b := NewBuilder()
	n, err := io.CopyN(b, r, length)
	if errors.Is(err, io.EOF) {
		return Hash{}, errors.Wrapf(io.ErrUnexpectedEOF, "read %d of %d bytes", n, length)
	}
	if err != nil {
		return Hash{}, errors.Wrap(err, "reading content")
	}
	b.Write(padding)
	return b.Finish(), nil
}

// SumBytes hashes content followed by padding.
func SumBytes(content, padding []byte) Hash {
	b := NewBuilder()
	b.Write(content)
	b.Write(padding)
	return b.Finish()
}

// SumFile hashes the whole file at path, followed by padding.
func SumFile(path string, padding []byte) (Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return Hash{}, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Hash{}, errors.Wrapf(err, "statting %s", path)
	}

	h, err := Sum(f, info.Size(), padding)
	return h, errors.Wrapf(err, "hashing %s", path)
}
