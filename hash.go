package chash

import (
	"bytes"
	"database/sql/driver"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

// Field sizes and offsets within a Hash.
const (
	MD5Size    = 16
	SHA1Size   = 20
	SHA256Size = 32
	LengthSize = 8

	MD5Offset    = 0
	SHA1Offset   = MD5Offset + MD5Size
	SHA256Offset = SHA1Offset + SHA1Size
	LengthOffset = SHA256Offset + SHA256Size

	// Size is the size of a Hash in bytes.
	Size = LengthOffset + LengthSize

	// HexLen and Base64Len are the lengths of the two text encodings.
	HexLen    = 2 * Size
	Base64Len = (Size + 2) / 3 * 4
)

// Hash is a content hash:
// the MD5, SHA-1, and SHA-256 digests of some content
// followed by the content's length as a big-endian uint64.
//
// Hashes are ordered bytewise over all 76 bytes,
// so two hashes with equal digests but different lengths
// are ordered by length.
type Hash [Size]byte

var (
	// Zero is the lowest Hash.
	Zero Hash

	// Max is the highest Hash.
	Max = func() Hash {
		var h Hash
		for i := range h {
			h[i] = 0xff
		}
		return h
	}()
)

// FromBytes copies the Hash found at buf[offset:].
func FromBytes(buf []byte, offset int) (Hash, error) {
	var out Hash
	if offset < 0 || len(buf)-offset < Size {
		return out, errors.Wrapf(ErrMalformed, "need %d bytes at offset %d, have %d", Size, offset, len(buf)-offset)
	}
	copy(out[:], buf[offset:offset+Size])
	return out, nil
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func Compare(a, b Hash) int {
	return bytes.Compare(a[:], b[:])
}

func (h Hash) Less(other Hash) bool {
	return Compare(h, other) < 0
}

func (h Hash) Equal(other Hash) bool {
	return h == other
}

func (h Hash) IsZero() bool {
	return h == Zero
}

// Bytes returns the binary encoding of h,
// which is also its on-disk record layout.
func (h Hash) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

func (h Hash) MD5() []byte    { return h[MD5Offset:SHA1Offset] }
func (h Hash) SHA1() []byte   { return h[SHA1Offset:SHA256Offset] }
func (h Hash) SHA256() []byte { return h[SHA256Offset:LengthOffset] }

// Length is the length of the hashed content.
func (h Hash) Length() uint64 {
	if n, ok := legacyLengths[h]; ok {
		return n
	}
	return binary.BigEndian.Uint64(h[LengthOffset:])
}

// Hex produces the base16 encoding of h.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// Base64 produces the padded, standard-alphabet base64 encoding of h.
func (h Hash) Base64() string {
	return base64.StdEncoding.EncodeToString(h[:])
}

// FromHex decodes the base16 encoding of a Hash.
// Only lowercase digits are accepted.
func FromHex(s string) (Hash, error) {
	var out Hash
	if len(s) != HexLen {
		return out, errors.Wrapf(ErrMalformed, "hex string has length %d, want %d", len(s), HexLen)
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return out, errors.Wrapf(ErrMalformed, "invalid hex character %q at position %d", c, i)
		}
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return Hash{}, errors.Wrapf(ErrMalformed, "decoding hex: %s", err)
	}
	return out, nil
}

// FromBase64 decodes the base64 encoding of a Hash.
// Unused padding bits must be zero.
func FromBase64(s string) (Hash, error) {
	var out Hash
	if len(s) != Base64Len {
		return out, errors.Wrapf(ErrMalformed, "base64 string has length %d, want %d", len(s), Base64Len)
	}
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return out, errors.Wrapf(ErrMalformed, "decoding base64: %s", err)
	}
	if len(b) != Size {
		return out, errors.Wrapf(ErrMalformed, "decoded %d bytes, want %d", len(b), Size)
	}
	copy(out[:], b)
	return out, nil
}

// Parse decodes a Hash from either of its text encodings,
// chosen by the length of s.
// Known mis-hashed legacy strings are redirected to their corrected form first.
func Parse(s string) (Hash, error) {
	if r, ok := legacyRedirects[s]; ok {
		s = r
	}
	switch len(s) {
	case HexLen:
		return FromHex(s)
	case Base64Len:
		return FromBase64(s)
	}
	return Hash{}, errors.Wrapf(ErrMalformed, "cannot parse string of length %d", len(s))
}

// Value implements driver.Valuer.
func (h Hash) Value() (driver.Value, error) {
	return h[:], nil
}

// Scan implements sql.Scanner.
func (h *Hash) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into Hash", src)
	}
	got, err := FromBytes(b, 0)
	if err != nil {
		return err
	}
	if len(b) != Size {
		return errors.Wrapf(ErrMalformed, "scanned %d bytes", len(b))
	}
	*h = got
	return nil
}
