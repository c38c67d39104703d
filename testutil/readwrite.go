package testutil

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

// ReadWrite exercises a keep, which must start out empty,
// through Add, Contains, Delete, and ListHashes.
func ReadWrite(ctx context.Context, t *testing.T, k keep.Keep) {
	var hashes []chash.Hash
	for i := 0; i < 50; i++ {
		hashes = append(hashes, chash.SumBytes([]byte(fmt.Sprintf("blob %d", i)), nil))
	}
	sorted := append([]chash.Hash(nil), hashes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	for _, h := range hashes {
		added, err := k.Add(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		if !added {
			t.Errorf("%s not added", h)
		}
	}
	for _, h := range hashes[:10] {
		added, err := k.Add(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		if added {
			t.Errorf("%s added twice", h)
		}
	}

	for _, h := range hashes {
		ok, err := k.Contains(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("%s missing", h)
		}
	}
	ok, err := k.Contains(ctx, chash.SumBytes([]byte("absent"), nil))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("absent hash found")
	}

	got, err := listFrom(ctx, k, sorted[19])
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sorted[20:], got); diff != "" {
		t.Errorf("mismatch listing from index 19 (-want +got):\n%s", diff)
	}

	errStop := errors.New("stop")
	var n int
	err = k.ListHashes(ctx, chash.Zero, func(chash.Hash) error {
		n++
		if n == 5 {
			return errStop
		}
		return nil
	})
	if !errors.Is(err, errStop) {
		t.Errorf("got error %v, want %v", err, errStop)
	}

	var want []chash.Hash
	for i, h := range sorted {
		if i%2 == 0 {
			if err = k.Delete(ctx, h); err != nil {
				t.Fatal(err)
			}
			continue
		}
		want = append(want, h)
	}
	if err = k.Delete(ctx, sorted[0]); err != nil {
		t.Errorf("deleting an absent hash: %s", err)
	}

	ok, err = k.Contains(ctx, sorted[0])
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("deleted hash %s still present", sorted[0])
	}

	got, err = listFrom(ctx, k, chash.Zero)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch after deletes (-want +got):\n%s", diff)
	}
}

func listFrom(ctx context.Context, k keep.Keep, start chash.Hash) ([]chash.Hash, error) {
	var result []chash.Hash
	err := k.ListHashes(ctx, start, func(h chash.Hash) error {
		result = append(result, h)
		return nil
	})
	return result, err
}
