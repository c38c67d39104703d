package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bobg/hashsplit"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/chash"
)

func (c maincmd) hash(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		dosplit = fs.Bool("split", false, "hash content-defined chunks instead of whole files")
		padhex  = fs.String("padding", "", "hex-encoded bytes appended to each hashed unit")
		b64     = fs.Bool("base64", false, "print base64 instead of hex")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	padding, err := hex.DecodeString(*padhex)
	if err != nil {
		return errors.Wrap(err, "decoding padding")
	}

	var (
		files   = fs.Args()
		results = make([][]string, len(files))
	)

	eg, ctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var (
				hashes []chash.Hash
				err    error
			)
			if *dosplit {
				hashes, err = splitFile(file, padding)
			} else {
				var h chash.Hash
				h, err = chash.SumFile(file, padding)
				hashes = []chash.Hash{h}
			}
			if err != nil {
				return errors.Wrapf(err, "hashing %s", file)
			}
			c.log.Debug("hashed", zap.String("file", file), zap.Int("hashes", len(hashes)))
			for _, h := range hashes {
				results[i] = append(results[i], format(h, *b64))
			}
			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		return err
	}

	for i, file := range files {
		for _, s := range results[i] {
			fmt.Printf("%s %s\n", s, file)
		}
	}
	return nil
}

func splitFile(file string, padding []byte) ([]chash.Hash, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", file)
	}
	defer f.Close()

	var hashes []chash.Hash
	spl := hashsplit.NewSplitter(func(chunk []byte, _ uint) error {
		hashes = append(hashes, chash.SumBytes(chunk, padding))
		return nil
	})
	spl.MinSize = 1024
	spl.SplitBits = 14

	if _, err = io.Copy(spl, f); err != nil {
		return nil, errors.Wrapf(err, "splitting %s", file)
	}
	if err = spl.Close(); err != nil {
		return nil, errors.Wrapf(err, "splitting %s", file)
	}
	return hashes, nil
}

func format(h chash.Hash, b64 bool) string {
	if b64 {
		return h.Base64()
	}
	return h.Hex()
}

func (c maincmd) parse(_ context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	for _, arg := range fs.Args() {
		h, err := chash.Parse(arg)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", arg)
		}
		fmt.Printf("hash    %s\n", h.Hex())
		fmt.Printf("base64  %s\n", h.Base64())
		fmt.Printf("md5     %x\n", h.MD5())
		fmt.Printf("sha1    %x\n", h.SHA1())
		fmt.Printf("sha256  %x\n", h.SHA256())
		fmt.Printf("length  %d\n", h.Length())
	}
	return nil
}

func (c maincmd) next(_ context.Context, fs *flag.FlagSet, args []string) error {
	return step(fs, args, chash.Hash.Next)
}

func (c maincmd) prev(_ context.Context, fs *flag.FlagSet, args []string) error {
	return step(fs, args, chash.Hash.Previous)
}

func step(fs *flag.FlagSet, args []string, f func(chash.Hash) chash.Hash) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	for _, arg := range fs.Args() {
		h, err := chash.Parse(arg)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", arg)
		}
		fmt.Println(f(h))
	}
	return nil
}
