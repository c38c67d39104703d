package lru

import (
	"context"
	"testing"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
	"github.com/bobg/chash/keep/mem"
	"github.com/bobg/chash/testutil"
)

func TestKeep(t *testing.T) {
	k, err := New(mem.New(), 10)
	if err != nil {
		t.Fatal(err)
	}
	testutil.ReadWrite(context.Background(), t, k)
}

func TestCache(t *testing.T) {
	var (
		ctx    = context.Background()
		nested = mem.New()
		h      = chash.SumBytes([]byte("cached"), nil)
	)

	k, err := New(nested, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = nested.Add(ctx, h); err != nil {
		t.Fatal(err)
	}
	ok, err := k.Contains(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("hash not found")
	}

	// Removed behind the cache's back, so the cached answer stands.
	if err = nested.Delete(ctx, h); err != nil {
		t.Fatal(err)
	}
	if ok, _ = k.Contains(ctx, h); !ok {
		t.Error("cached hash not found")
	}

	if err = k.Delete(ctx, h); err != nil {
		t.Fatal(err)
	}
	if ok, _ = k.Contains(ctx, h); ok {
		t.Error("deleted hash still found")
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	k, err := keep.Create(ctx, "lru", map[string]interface{}{
		"size":   float64(5),
		"nested": map[string]interface{}{"type": "mem"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := k.(*Keep); !ok {
		t.Errorf("got %T, want *Keep", k)
	}

	_, err = keep.Create(ctx, "lru", map[string]interface{}{
		"nested": map[string]interface{}{"type": "mem"},
	})
	if err == nil {
		t.Error("got no error for missing size")
	}
}
