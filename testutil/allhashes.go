// Package testutil contains conformance tests for keep implementations.
package testutil

import (
	"context"
	"sort"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

// AllHashes adds the hashes of a random set of random blobs to an empty keep
// and makes sure that the right set of hashes comes back in a call to ListHashes.
// The factory must produce a new, empty keep on each call.
func AllHashes(ctx context.Context, t *testing.T, keepFactory func() keep.Keep) {
	if err := quick.Check(allHashesHelper(ctx, t, keepFactory), &quick.Config{MaxCount: 20}); err != nil {
		t.Error(err)
	}
}

func allHashesHelper(ctx context.Context, t *testing.T, keepFactory func() keep.Keep) func([][]byte) bool {
	return func(blobs [][]byte) bool {
		var (
			k    = keepFactory()
			want []chash.Hash
		)
		for _, blob := range blobs {
			h := chash.SumBytes(blob, nil)
			added, err := k.Add(ctx, h)
			if err != nil {
				t.Fatal(err)
			}
			if added {
				want = append(want, h)
			}
		}
		var got []chash.Hash
		err := k.ListHashes(ctx, chash.Zero, func(h chash.Hash) error {
			got = append(got, h)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		sort.Slice(want, func(i, j int) bool { return want[i].Less(want[j]) })

		if diff := cmp.Diff(want, got); diff != "" {
			t.Logf("mismatch (-want +got):\n%s", diff)
			return false
		}
		return true
	}
}
