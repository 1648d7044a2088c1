// Package cli implements the diskcache command line tool.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/hupe1980/diskcache"
	"github.com/hupe1980/diskcache/codec"
	"github.com/hupe1980/diskcache/keyed"
	flag "github.com/spf13/pflag"
)

// Env is what commands run against: resolved settings, streams and a lazily
// opened cache.
type Env struct {
	Config Config
	IO     *IO
	Logger *diskcache.Logger

	manager *keyed.Manager
}

// Manager opens the cache on first use.
func (e *Env) Manager() (*keyed.Manager, error) {
	if e.manager != nil {
		return e.manager, nil
	}
	c, ok := codec.ByName(e.Config.Codec)
	if !ok {
		return nil, errors.New("unknown codec: " + e.Config.Codec)
	}
	m, err := keyed.New(keyed.Config{
		Dir:        e.Config.Dir,
		AppVersion: e.Config.AppVersion,
		MaxSize:    int64(e.Config.MaxSize),
	}, keyed.WithCodec(c), keyed.WithLogger(e.Logger))
	if err != nil {
		return nil, err
	}
	e.manager = m
	return m, nil
}

// Cache opens the cache on first use.
func (e *Env) Cache() (*diskcache.Cache, error) {
	m, err := e.Manager()
	if err != nil {
		return nil, err
	}
	return m.Cache(), nil
}

func (e *Env) close() error {
	if e.manager == nil {
		return nil
	}
	return e.manager.Close()
}

func commands() []*Command {
	return []*Command{
		statCmd(),
		lsCmd(),
		getCmd(),
		putCmd(),
		rmCmd(),
		hashCmd(),
		compactCmd(),
		dumpCmd(),
		fetchCmd(),
	}
}

type globalFlags struct {
	fs         *flag.FlagSet
	configPath string
	cfg        Config
	verbose    bool
	help       bool
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{cfg: DefaultConfig()}
	fs := newFlagSet("diskcache")
	fs.SetInterspersed(false)
	fs.StringVarP(&g.configPath, "config", "c", "", "config file (JSON with comments)")
	fs.StringVar(&g.cfg.Dir, "dir", "", "cache directory")
	fs.IntVar(&g.cfg.AppVersion, "app-version", g.cfg.AppVersion, "application version stored in the journal")
	fs.Var(&g.cfg.MaxSize, "max-size", "size budget, e.g. 512MiB")
	fs.StringVar(&g.cfg.Codec, "codec", g.cfg.Codec, "value codec: none, zstd, lz4")
	fs.StringVar(&g.cfg.Source, "source", "", "blob source for fetch: DIR, s3://bucket/prefix or minio://host/bucket/prefix")
	fs.StringVar(&g.cfg.LogLevel, "log-level", g.cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "shorthand for --log-level=debug")
	fs.BoolVarP(&g.help, "help", "h", false, "show help")
	g.fs = fs
	return g
}

// resolve layers the config file under the flags that were set explicitly.
func (g *globalFlags) resolve() (Config, error) {
	if g.configPath == "" {
		cfg := g.cfg
		if g.verbose {
			cfg.LogLevel = "debug"
		}
		return cfg, nil
	}

	cfg, err := LoadConfig(g.configPath, DefaultConfig())
	if err != nil {
		return Config{}, err
	}
	overrides := map[string]func(){
		"dir":         func() { cfg.Dir = g.cfg.Dir },
		"app-version": func() { cfg.AppVersion = g.cfg.AppVersion },
		"max-size":    func() { cfg.MaxSize = g.cfg.MaxSize },
		"codec":       func() { cfg.Codec = g.cfg.Codec },
		"source":      func() { cfg.Source = g.cfg.Source },
		"log-level":   func() { cfg.LogLevel = g.cfg.LogLevel },
	}
	g.fs.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})
	if g.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// Run executes the diskcache CLI with the given arguments (args[0] is the
// program name) and returns the exit code.
func Run(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string) int {
	o := NewIO(in, out, errOut)
	g := newGlobalFlags()
	g.fs.SetOutput(io.Discard)

	var rest []string
	if len(args) > 1 {
		if err := g.fs.Parse(args[1:]); err != nil {
			o.ErrPrintln("error:", err)
			printUsage(errOut, g.fs)
			return 1
		}
		rest = g.fs.Args()
	}

	if g.help || len(rest) == 0 {
		printUsage(out, g.fs)
		return 0
	}

	var cmd *Command
	for _, c := range commands() {
		if c.Name() == rest[0] {
			cmd = c
			break
		}
	}
	if cmd == nil {
		o.ErrPrintln("error: unknown command:", rest[0])
		printUsage(errOut, g.fs)
		return 1
	}

	cfg, err := g.resolve()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil && cmd.Name() != "hash" {
		o.ErrPrintln("error:", err)
		return 1
	}

	level, _ := cfg.Level()
	env := &Env{
		Config: cfg,
		IO:     o,
		Logger: diskcache.NewLogger(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})),
	}

	code := cmd.Run(ctx, env, rest[1:])
	if err := env.close(); err != nil {
		o.ErrPrintln("error: close cache:", err)
		code = 1
	}
	return code
}

func printUsage(w io.Writer, global *flag.FlagSet) {
	var b strings.Builder
	b.WriteString("Usage: diskcache [global flags] <command> [args]\n\nCommands:\n")
	for _, c := range commands() {
		b.WriteString(c.HelpLine())
		b.WriteByte('\n')
	}
	b.WriteString("\nGlobal flags:\n")
	global.SetOutput(&b)
	global.PrintDefaults()
	global.SetOutput(io.Discard)
	_, _ = io.WriteString(w, b.String())
}
