// Package gcs implements a keep on Google Cloud Storage.
// Each hash is an empty object named by the hash's hex encoding.
package gcs

import (
	"context"
	stderrs "errors"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

var _ keep.Keep = &Keep{}

// Keep is a Google Cloud Storage-based implementation of a keep.
type Keep struct {
	bucket *storage.BucketHandle
}

// New produces a new Keep.
func New(bucket *storage.BucketHandle) *Keep {
	return &Keep{bucket: bucket}
}

const objPrefix = "h:"

func objName(h chash.Hash) string {
	return objPrefix + h.Hex()
}

func hashFromObjName(name string) (chash.Hash, error) {
	return chash.FromHex(strings.TrimPrefix(name, objPrefix))
}

// Add adds a hash to the keep if it wasn't already present.
func (k *Keep) Add(ctx context.Context, h chash.Hash) (bool, error) {
	var (
		name = objName(h)
		obj  = k.bucket.Object(name).If(storage.Conditions{DoesNotExist: true})
		w    = obj.NewWriter(ctx)
	)

	err := w.Close()
	var e *googleapi.Error
	if stderrs.As(err, &e) && e.Code == http.StatusPreconditionFailed {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "writing object %s", name)
	}
	return true, nil
}

// Delete removes a hash from the keep.
func (k *Keep) Delete(ctx context.Context, h chash.Hash) error {
	name := objName(h)
	err := k.bucket.Object(name).Delete(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return errors.Wrapf(err, "deleting object %s", name)
}

// Contains tells whether h is in the keep.
func (k *Keep) Contains(ctx context.Context, h chash.Hash) (bool, error) {
	name := objName(h)
	_, err := k.bucket.Object(name).Attrs(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "getting object attrs for %s", name)
	}
	return true, nil
}

// ListHashes produces all hashes in the keep, in ascending order.
func (k *Keep) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	// Object listings can be filtered by name prefix but cannot begin mid-bucket.
	// Listing the prefixes that cover everything after start, in order,
	// gives the same result.
	// For a start of e67a... the prefixes are
	//   e67b through e67f, then e68 through e6f, then e7 through ef, then f.
	return eachHexPrefix(start.Hex(), false, func(prefix string) error {
		return k.listHashes(ctx, prefix, f)
	})
}

func (k *Keep) listHashes(ctx context.Context, prefix string, f func(chash.Hash) error) error {
	iter := k.bucket.Objects(ctx, &storage.Query{Prefix: objPrefix + prefix})
	for {
		obj, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "iterating over objects")
		}
		h, err := hashFromObjName(obj.Name)
		if err != nil {
			return errors.Wrapf(err, "decoding object name %s", obj.Name)
		}
		if err = f(h); err != nil {
			return err
		}
	}
}

func eachHexPrefix(prefix string, incl bool, f func(string) error) error {
	prefix = strings.ToLower(prefix)
	for len(prefix) > 0 {
		end := hexval(prefix[len(prefix)-1])
		if !incl {
			end++
		}
		prefix = prefix[:len(prefix)-1]
		for c := end; c < 16; c++ {
			if err := f(prefix + string(hexdigit(c))); err != nil {
				return err
			}
		}
		// Only the last digit is exclusive.
		incl = false
	}
	return nil
}

func hexval(b byte) int {
	switch {
	case '0' <= b && b <= '9':
		return int(b - '0')
	case 'a' <= b && b <= 'f':
		return int(10 + b - 'a')
	case 'A' <= b && b <= 'F':
		return int(10 + b - 'A')
	}
	return 0
}

func hexdigit(n int) byte {
	if n < 10 {
		return byte(n + '0')
	}
	return byte(n - 10 + 'a')
}

func init() {
	keep.Register("gcs", func(ctx context.Context, conf map[string]interface{}) (keep.Keep, error) {
		creds, ok := conf["creds"].(string)
		if !ok {
			return nil, errors.New(`missing "creds" parameter`)
		}
		bucketName, ok := conf["bucket"].(string)
		if !ok {
			return nil, errors.New(`missing "bucket" parameter`)
		}
		c, err := storage.NewClient(ctx, option.WithCredentialsFile(creds))
		if err != nil {
			return nil, errors.Wrap(err, "creating cloud storage client")
		}
		return New(c.Bucket(bucketName)), nil
	})
}
