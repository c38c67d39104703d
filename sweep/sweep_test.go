package sweep_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep/mem"
	"github.com/bobg/chash/list"
	"github.com/bobg/chash/set"
	. "github.com/bobg/chash/sweep"
)

func TestRun(t *testing.T) {
	var (
		ctx  = context.Background()
		k    = mem.New()
		want []chash.Hash
	)

	src, err := set.Open(filepath.Join(t.TempDir(), "src"), set.WithBufferLimit(16))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	for i := 0; i < 100; i++ {
		h := chash.SumBytes([]byte(fmt.Sprintf("blob %d", i)), nil)
		if err = src.Add(h); err != nil {
			t.Fatal(err)
		}
		if i%3 == 0 {
			if _, err = k.Add(ctx, h); err != nil {
				t.Fatal(err)
			}
			continue
		}
		want = append(want, h)
	}
	sort.Slice(want, func(i, j int) bool { return want[i].Less(want[j]) })

	out, err := list.New(list.WithRecordsPerPartition(10))
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	n, err := Run(ctx, src, k, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(want)) {
		t.Errorf("got count %d, want %d", n, len(want))
	}

	var got []chash.Hash
	err = out.Each(ctx, func(_ int64, h chash.Hash) error {
		got = append(got, h)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
