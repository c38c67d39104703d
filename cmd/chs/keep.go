package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
	"github.com/bobg/chash/list"
	"github.com/bobg/chash/set"
	"github.com/bobg/chash/sweep"
)

// Parses the remaining args as hashes and calls f on each,
// with the keep from the config file.
func (c maincmd) eachArg(ctx context.Context, fs *flag.FlagSet, args []string, f func(keep.Keep, chash.Hash) error) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	k, done, err := c.keep(ctx)
	if err != nil {
		return err
	}
	defer done()

	for _, arg := range fs.Args() {
		h, err := chash.Parse(arg)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", arg)
		}
		if err = f(k, h); err != nil {
			return err
		}
	}
	return nil
}

func (c maincmd) add(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return c.eachArg(ctx, fs, args, func(k keep.Keep, h chash.Hash) error {
		added, err := k.Add(ctx, h)
		if err != nil {
			return errors.Wrapf(err, "adding %s", h)
		}
		if !added {
			c.log.Info("already present", zap.Stringer("hash", h))
		}
		return nil
	})
}

func (c maincmd) delete(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return c.eachArg(ctx, fs, args, func(k keep.Keep, h chash.Hash) error {
		return errors.Wrapf(k.Delete(ctx, h), "deleting %s", h)
	})
}

func (c maincmd) contains(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return c.eachArg(ctx, fs, args, func(k keep.Keep, h chash.Hash) error {
		ok, err := k.Contains(ctx, h)
		if err != nil {
			return errors.Wrapf(err, "checking %s", h)
		}
		fmt.Printf("%s %v\n", h, ok)
		return nil
	})
}

func (c maincmd) list(ctx context.Context, fs *flag.FlagSet, args []string) error {
	start := fs.String("start", "", "start after this hash")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var startHash chash.Hash
	if *start != "" {
		startHash, err = chash.Parse(*start)
		if err != nil {
			return errors.Wrap(err, "parsing start hash")
		}
	}

	k, done, err := c.keep(ctx)
	if err != nil {
		return err
	}
	defer done()

	return k.ListHashes(ctx, startHash, func(h chash.Hash) error {
		fmt.Println(h)
		return nil
	})
}

// Reads hashes one per line from each file
// and prints the ones the keep does not contain, in ascending order.
func (c maincmd) sweep(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	src, err := set.Temp(set.WithLogger(c.log))
	if err != nil {
		return errors.Wrap(err, "creating candidate set")
	}
	defer src.Close()

	for _, file := range fs.Args() {
		if err = readHashes(file, src); err != nil {
			return err
		}
	}

	k, done, err := c.keep(ctx)
	if err != nil {
		return err
	}
	defer done()

	out, err := list.New(list.WithLogger(c.log))
	if err != nil {
		return errors.Wrap(err, "creating output list")
	}
	defer out.Close()

	n, err := sweep.Run(ctx, src, k, out)
	if err != nil {
		return errors.Wrap(err, "sweeping")
	}
	c.log.Info("swept", zap.Int64("candidates", n))

	return out.Each(ctx, func(_ int64, h chash.Hash) error {
		fmt.Println(h)
		return nil
	})
}

func readHashes(file string, s *set.Set) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrapf(err, "opening %s", file)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for lineno := 1; sc.Scan(); lineno++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		h, err := chash.Parse(line)
		if err != nil {
			return errors.Wrapf(err, "%s:%d", file, lineno)
		}
		if err = s.Add(h); err != nil {
			return errors.Wrapf(err, "%s:%d", file, lineno)
		}
	}
	return errors.Wrapf(sc.Err(), "reading %s", file)
}
