package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
	"github.com/bobg/chash/set"
	"github.com/bobg/chash/testutil"
)

func TestKeep(t *testing.T) {
	ctx := context.Background()

	k, err := Open(filepath.Join(t.TempDir(), "keep"), set.WithBufferLimit(7))
	if err != nil {
		t.Fatal(err)
	}
	defer k.Close()

	testutil.ReadWrite(ctx, t, k)
}

func TestAllHashes(t *testing.T) {
	var (
		ctx  = context.Background()
		dir  = t.TempDir()
		n    int
		open []*Keep
	)
	defer func() {
		for _, k := range open {
			k.Close()
		}
	}()

	testutil.AllHashes(ctx, t, func() keep.Keep {
		n++
		k, err := Open(filepath.Join(dir, fmt.Sprintf("keep%d", n)), set.WithBufferLimit(5))
		if err != nil {
			t.Fatal(err)
		}
		open = append(open, k)
		return k
	})
}

func TestCreate(t *testing.T) {
	var (
		ctx  = context.Background()
		path = filepath.Join(t.TempDir(), "keep")
	)

	k, err := keep.Create(ctx, "file", map[string]interface{}{
		"path":   path,
		"buffer": float64(3),
	})
	if err != nil {
		t.Fatal(err)
	}

	h := chash.SumBytes([]byte("hello"), nil)
	if _, err = k.Add(ctx, h); err != nil {
		t.Fatal(err)
	}
	if err = k.(*Keep).Close(); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != chash.Size {
		t.Errorf("got size %d, want %d", info.Size(), chash.Size)
	}

	if _, err = keep.Create(ctx, "file", map[string]interface{}{}); err == nil {
		t.Error("got no error for missing path")
	}
}
