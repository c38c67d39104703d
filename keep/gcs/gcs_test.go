package gcs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"

	"github.com/bobg/chash"
	"github.com/bobg/chash/testutil"
)

func TestEachHexPrefix(t *testing.T) {
	cases := []struct {
		prefix string
		incl   bool
		want   []string
	}{{
		prefix: "e67a",
		want: []string{
			"e67b", "e67c", "e67d", "e67e", "e67f",
			"e68", "e69", "e6a", "e6b", "e6c", "e6d", "e6e", "e6f",
			"e7", "e8", "e9", "ea", "eb", "ec", "ed", "ee", "ef",
			"f",
		},
	}, {
		prefix: "FE",
		incl:   true,
		want:   []string{"fe", "ff"},
	}, {
		prefix: "ff",
	}}

	for _, c := range cases {
		t.Run(c.prefix, func(t *testing.T) {
			var got []string
			err := eachHexPrefix(c.prefix, c.incl, func(prefix string) error {
				got = append(got, prefix)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestObjName(t *testing.T) {
	h := chash.SumBytes([]byte("hello"), nil)
	got, err := hashFromObjName(objName(h))
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Errorf("got %s, want %s", got, h)
	}
}

const (
	credsVar = "CHASH_GCS_TESTING_CREDS"
	projVar  = "CHASH_GCS_TESTING_PROJECT"
)

func TestKeep(t *testing.T) {
	var (
		creds     = os.Getenv(credsVar)
		projectID = os.Getenv(projVar)
	)
	if creds == "" || projectID == "" {
		t.Skipf("to run TestKeep, set %s to the name of a credentials file and %s to a project ID", credsVar, projVar)
	}

	var r [30]byte
	_, err := rand.Read(r[:])
	if err != nil {
		t.Fatal(err)
	}
	bucketName := hex.EncodeToString(r[:])

	ctx := context.Background()

	client, err := storage.NewClient(ctx, option.WithCredentialsFile(creds))
	if err != nil {
		t.Fatal(err)
	}

	t.Logf("creating bucket %s in project %s", bucketName, projectID)

	bucket := client.Bucket(bucketName)
	err = bucket.Create(ctx, projectID, nil)
	if err != nil {
		t.Fatal(err)
	}

	k := New(bucket)
	defer func() {
		k.ListHashes(ctx, chash.Zero, func(h chash.Hash) error {
			return k.Delete(ctx, h)
		})
		bucket.Delete(ctx)
	}()

	testutil.ReadWrite(ctx, t, k)
}
