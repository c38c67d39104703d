// Command chs is a CLI for computing, decoding, and keeping content hashes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/bobg/subcmd"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bobg/chash/keep"
	_ "github.com/bobg/chash/keep/bt"
	_ "github.com/bobg/chash/keep/file"
	_ "github.com/bobg/chash/keep/gcs"
	_ "github.com/bobg/chash/keep/logging"
	_ "github.com/bobg/chash/keep/lru"
	_ "github.com/bobg/chash/keep/mem"
	_ "github.com/bobg/chash/keep/pg"
	_ "github.com/bobg/chash/keep/replica"
	_ "github.com/bobg/chash/keep/sqlite3"
)

type maincmd struct {
	config string
	log    *zap.Logger
}

func main() {
	var (
		config  = flag.String("config", "chs.json", "path to config file")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := zapcore.InfoLevel
	if *verbose {
		level = zapcore.DebugLevel
	}
	logconf := zap.NewDevelopmentConfig()
	logconf.Level = zap.NewAtomicLevelAt(level)
	logger, err := logconf.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()

	c := maincmd{config: *config, log: logger}
	if err = subcmd.Run(ctx, c, flag.Args()); err != nil {
		logger.Fatal("chs", zap.Error(err))
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"add":      withFlagSet("add", c.add),
		"contains": withFlagSet("contains", c.contains),
		"delete":   withFlagSet("delete", c.delete),
		"hash":     withFlagSet("hash", c.hash),
		"list":     withFlagSet("list", c.list),
		"next":     withFlagSet("next", c.next),
		"parse":    withFlagSet("parse", c.parse),
		"prev":     withFlagSet("prev", c.prev),
		"sweep":    withFlagSet("sweep", c.sweep),
	}
}

// withFlagSet adapts a subcommand function that does its own flag parsing
// to subcmd.Subcmd, which passes raw args through when Params is empty.
func withFlagSet(name string, f func(context.Context, *flag.FlagSet, []string) error) subcmd.Subcmd {
	return subcmd.Subcmd{
		F: func(ctx context.Context, args []string) error {
			return f(ctx, flag.NewFlagSet(name, flag.ContinueOnError), args)
		},
	}
}

// Creates the keep described by the config file.
// The caller must call the returned function when done with the keep.
func (c maincmd) keep(ctx context.Context) (keep.Keep, func(), error) {
	if c.config == "" {
		return nil, nil, errors.New("config value not set")
	}

	var conf map[string]interface{}
	f, err := os.Open(c.config)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening config file %s", c.config)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err = dec.Decode(&conf); err != nil {
		return nil, nil, errors.Wrapf(err, "decoding config file %s", c.config)
	}

	typ, ok := conf["type"].(string)
	if !ok {
		return nil, nil, errors.Errorf("config file %s missing `type` parameter", c.config)
	}

	k, err := keep.Create(ctx, typ, conf)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "creating %s-type keep", typ)
	}
	c.log.Debug("opened keep", zap.String("type", typ), zap.String("config", c.config))

	done := func() {
		if cl, ok := k.(interface{ Close() error }); ok {
			if err := cl.Close(); err != nil {
				c.log.Error("closing keep", zap.Error(err))
			}
		}
	}
	return k, done, nil
}
