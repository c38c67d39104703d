package chash

import (
	"bytes"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/quick"

	"github.com/pkg/errors"
)

func TestRoundTrip(t *testing.T) {
	f := func(h Hash) bool {
		got, err := FromHex(h.Hex())
		if err != nil {
			t.Logf("FromHex: %s", err)
			return false
		}
		if got != h {
			return false
		}
		got, err = FromBase64(h.Base64())
		if err != nil {
			t.Logf("FromBase64: %s", err)
			return false
		}
		if got != h {
			return false
		}
		got, err = FromBytes(h.Bytes(), 0)
		if err != nil {
			t.Logf("FromBytes: %s", err)
			return false
		}
		return got == h
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestEncodingLengths(t *testing.T) {
	var h Hash
	rand.Read(h[:])
	if len(h.Hex()) != 152 {
		t.Errorf("got hex length %d, want 152", len(h.Hex()))
	}
	if h.Hex() != strings.ToLower(h.Hex()) {
		t.Error("hex encoding is not lowercase")
	}
	b64 := h.Base64()
	if len(b64) != 104 {
		t.Errorf("got base64 length %d, want 104", len(b64))
	}
	if !strings.HasSuffix(b64, "=") {
		t.Errorf("base64 encoding %s is not padded", b64)
	}
}

func TestParse(t *testing.T) {
	var h Hash
	rand.Read(h[:])

	cases := []struct {
		s       string
		wantErr bool
	}{
		{s: h.Hex()},
		{s: h.Base64()},
		{s: strings.ToUpper(h.Hex()), wantErr: true},
		{s: noncanonical(h.Base64()), wantErr: true},
		{s: h.Hex()[:150], wantErr: true},
		{s: h.Base64() + "A", wantErr: true},
		{s: "", wantErr: true},
		{s: strings.Repeat("zz", Size), wantErr: true},
		{s: strings.Repeat("!", Base64Len), wantErr: true},
	}

	for i, c := range cases {
		got, err := Parse(c.s)
		if c.wantErr {
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("case %d: got error %v, want ErrMalformed", i+1, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("case %d: %s", i+1, err)
		}
		if got != h {
			t.Errorf("case %d: got %s, want %s", i+1, got, h)
		}
	}
}

// Sets the unused low bits of the last base64 digit,
// giving a string that lax decoders map to the same bytes.
func noncanonical(s string) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	body := strings.TrimRight(s, "=")
	last := len(body) - 1
	v := strings.IndexByte(alphabet, body[last])
	return body[:last] + string(alphabet[v|1]) + s[len(body):]
}

func TestLegacy(t *testing.T) {
	var bad, good Hash
	rand.Read(bad[:])
	rand.Read(good[:])

	legacyRedirects[bad.Hex()] = good.Hex()
	legacyLengths[good] = 1 << 33
	defer func() {
		delete(legacyRedirects, bad.Hex())
		delete(legacyLengths, good)
	}()

	got, err := Parse(bad.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if got != good {
		t.Errorf("got %s, want %s", got, good)
	}
	if got.Length() != 1<<33 {
		t.Errorf("got length %d, want %d", got.Length(), uint64(1<<33))
	}
}

func TestFromBytes(t *testing.T) {
	buf := make([]byte, 3*Size)
	rand.Read(buf)

	h, err := FromBytes(buf, Size)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(h[:], buf[Size:2*Size]) {
		t.Error("FromBytes copied the wrong region")
	}

	// Same bytes at a different offset compare equal.
	other := append([]byte{0}, buf[Size:2*Size]...)
	h2, err := FromBytes(other, 1)
	if err != nil {
		t.Fatal(err)
	}
	if h != h2 {
		t.Error("hashes at different offsets differ")
	}

	if _, err = FromBytes(buf, 2*Size+1); !errors.Is(err, ErrMalformed) {
		t.Errorf("got %v, want ErrMalformed", err)
	}
	if _, err = FromBytes(buf, -1); !errors.Is(err, ErrMalformed) {
		t.Errorf("got %v, want ErrMalformed", err)
	}
}

func TestOrder(t *testing.T) {
	var a, b Hash
	a[SHA256Offset] = 1
	b[SHA256Offset] = 1
	b[Size-1] = 1 // same digests, longer content

	if Compare(a, b) != -1 || Compare(b, a) != 1 || Compare(a, a) != 0 {
		t.Errorf("length field does not break ties")
	}

	var hi Hash
	hi[0] = 0x80
	if !a.Less(hi) {
		t.Error("comparison is not unsigned")
	}
}

func TestHashScenario(t *testing.T) {
	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i)
	}
	h := SumBytes(content, nil)
	if h.Length() != 1000 {
		t.Errorf("got length %d, want 1000", h.Length())
	}
	if len(h.String()) != 152 {
		t.Errorf("got string length %d, want 152", len(h.String()))
	}

	h2, err := Sum(bytes.NewReader(content), int64(len(content)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if h != h2 {
		t.Errorf("Sum and SumBytes disagree: %s vs. %s", h2, h)
	}

	m := map[Hash]int{h: 1}
	if m[h2] != 1 {
		t.Error("equal hashes are different map keys")
	}

	content[500]++
	h3 := SumBytes(content, nil)
	if bytes.Equal(h.MD5(), h3.MD5()) || bytes.Equal(h.SHA1(), h3.SHA1()) || bytes.Equal(h.SHA256(), h3.SHA256()) {
		t.Error("one-byte change left a digest unchanged")
	}
	if h.Length() != h3.Length() {
		t.Error("one-byte change altered the length")
	}
}

func TestSumShort(t *testing.T) {
	_, err := Sum(bytes.NewReader([]byte("short")), 10, nil)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("got %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestPadding(t *testing.T) {
	content := []byte("plaintext")
	plain := SumBytes(content, nil)
	padded := SumBytes(content, []byte("pad"))
	if plain == padded {
		t.Error("padding did not change the hash")
	}
	if padded.Length() != uint64(len(content)+3) {
		t.Errorf("got length %d, want %d", padded.Length(), len(content)+3)
	}
}

func TestBuilderChunks(t *testing.T) {
	content := make([]byte, 10000)
	rand.Read(content)
	want := SumBytes(content, nil)

	b := NewBuilder()
	for off := 0; off < len(content); {
		n := 1 + rand.Intn(700)
		if off+n > len(content) {
			n = len(content) - off
		}
		b.Update(content, off, n)
		off += n
	}
	if got := b.Finish(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	defer func() {
		if recover() == nil {
			t.Error("second Finish did not panic")
		}
	}()
	b.Finish()
}

func TestScan(t *testing.T) {
	var h Hash
	rand.Read(h[:])
	v, err := h.Value()
	if err != nil {
		t.Fatal(err)
	}
	var got Hash
	if err = got.Scan(v); err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Errorf("got %s, want %s", got, h)
	}
	if err = got.Scan("nope"); err == nil {
		t.Error("scanned a string")
	}
}
