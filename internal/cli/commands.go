package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hupe1980/diskcache"
	"github.com/hupe1980/diskcache/journal"
	"github.com/hupe1980/diskcache/keyed"
)

type statOutput struct {
	Dir          string `json:"dir"`
	Size         int64  `json:"size"`
	MaxSize      int64  `json:"max_size"`
	Entries      int    `json:"entries"`
	Editing      int    `json:"editing"`
	RedundantOps int    `json:"redundant_ops"`
}

func statCmd() *Command {
	fs := newFlagSet("stat")
	asJSON := fs.Bool("json", false, "print JSON")

	return &Command{
		Flags: fs,
		Usage: "stat",
		Short: "print size, budget, entries and journal state",
		Exec: func(_ context.Context, e *Env, _ []string) error {
			c, err := e.Cache()
			if err != nil {
				return err
			}
			s := c.Stats()
			if *asJSON {
				return e.IO.JSON(statOutput{
					Dir:          s.Dir,
					Size:         s.Size,
					MaxSize:      s.MaxSize,
					Entries:      s.Entries,
					Editing:      s.Editing,
					RedundantOps: s.RedundantOps,
				})
			}
			e.IO.Printf("dir:            %s\n", s.Dir)
			e.IO.Printf("size:           %s (%d bytes)\n", humanize.IBytes(uint64(s.Size)), s.Size)
			e.IO.Printf("max size:       %s\n", ByteSize(s.MaxSize))
			e.IO.Printf("entries:        %d\n", s.Entries)
			e.IO.Printf("redundant ops:  %d\n", s.RedundantOps)
			return nil
		},
	}
}

func lsCmd() *Command {
	fs := newFlagSet("ls")
	asJSON := fs.Bool("json", false, "print a JSON array")

	return &Command{
		Flags: fs,
		Usage: "ls",
		Short: "list readable keys, least recently used first",
		Exec: func(_ context.Context, e *Env, _ []string) error {
			c, err := e.Cache()
			if err != nil {
				return err
			}
			keys := c.Keys()
			if *asJSON {
				return e.IO.JSON(keys)
			}
			for _, k := range keys {
				e.IO.Println(k)
			}
			return nil
		},
	}
}

func getCmd() *Command {
	fs := newFlagSet("get")
	byID := fs.Bool("id", false, "treat the argument as an identifier and decode the value")

	return &Command{
		Flags:   fs,
		Usage:   "get <key>",
		Short:   "copy a value to stdout",
		MinArgs: 1,
		Exec: func(_ context.Context, e *Env, args []string) error {
			m, err := e.Manager()
			if err != nil {
				return err
			}

			var rc io.ReadCloser
			if *byID {
				var ok bool
				if rc, ok = m.Open(args[0]); !ok {
					return fmt.Errorf("not found: %s", args[0])
				}
			} else {
				path, ok, err := m.Cache().Get(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("not found: %s", args[0])
				}
				if rc, err = os.Open(path); err != nil {
					return err
				}
			}
			defer func() { _ = rc.Close() }()

			_, err = io.Copy(e.IO.out, rc)
			return err
		},
	}
}

func putCmd() *Command {
	fs := newFlagSet("put")
	byID := fs.Bool("id", false, "treat the argument as an identifier and encode the value")

	return &Command{
		Flags:   fs,
		Usage:   "put <key> [FILE]",
		Short:   "store FILE (or stdin) under key",
		MinArgs: 1,
		Exec: func(_ context.Context, e *Env, args []string) error {
			m, err := e.Manager()
			if err != nil {
				return err
			}

			src := io.NopCloser(e.IO.in)
			if len(args) > 1 {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				src = f
			}

			if *byID {
				if !m.Put(args[0], src) {
					return fmt.Errorf("could not store %s", args[0])
				}
				return nil
			}
			defer func() { _ = src.Close() }()
			return putRaw(m.Cache(), args[0], src)
		},
	}
}

func putRaw(c *diskcache.Cache, key string, src io.Reader) error {
	ed, err := c.Edit(key)
	if err != nil {
		return err
	}
	if ed == nil {
		return fmt.Errorf("%s is being written by another editor", key)
	}
	defer ed.AbortUnlessCommitted()

	w, err := ed.Create()
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return ed.Commit()
}

func rmCmd() *Command {
	fs := newFlagSet("rm")
	byID := fs.Bool("id", false, "treat the arguments as identifiers")

	return &Command{
		Flags:   fs,
		Usage:   "rm <key>...",
		Short:   "remove keys",
		MinArgs: 1,
		Exec: func(_ context.Context, e *Env, args []string) error {
			m, err := e.Manager()
			if err != nil {
				return err
			}
			if *byID {
				e.IO.Printf("removed %d\n", m.RemoveAll(args))
				return nil
			}

			removed := 0
			for _, key := range args {
				ok, err := m.Cache().Remove(key)
				if err != nil {
					return err
				}
				if ok {
					removed++
				}
			}
			e.IO.Printf("removed %d\n", removed)
			return nil
		},
	}
}

func hashCmd() *Command {
	return &Command{
		Flags:   newFlagSet("hash"),
		Usage:   "hash <id>...",
		Short:   "print the cache key for each identifier",
		MinArgs: 1,
		Exec: func(_ context.Context, e *Env, args []string) error {
			for _, id := range args {
				e.IO.Println(keyed.Key(id))
			}
			return nil
		},
	}
}

func compactCmd() *Command {
	return &Command{
		Flags: newFlagSet("compact"),
		Usage: "compact",
		Short: "trim to the size budget and rewrite the journal",
		Exec: func(_ context.Context, e *Env, _ []string) error {
			c, err := e.Cache()
			if err != nil {
				return err
			}
			before := c.Stats()
			if err := c.Compact(); err != nil {
				return err
			}
			after := c.Stats()
			e.IO.Printf("entries: %d -> %d, size: %s -> %s, redundant ops: %d -> %d\n",
				before.Entries, after.Entries,
				humanize.IBytes(uint64(before.Size)), humanize.IBytes(uint64(after.Size)),
				before.RedundantOps, after.RedundantOps)
			return nil
		},
	}
}

type recordOutput struct {
	Op     string `json:"op"`
	Key    string `json:"key"`
	Length *int64 `json:"length,omitempty"`
}

func dumpCmd() *Command {
	fs := newFlagSet("dump")
	asJSON := fs.Bool("json", false, "print one JSON object per record")

	return &Command{
		Flags: fs,
		Usage: "dump",
		Short: "print the journal records without opening the cache",
		Exec: func(_ context.Context, e *Env, _ []string) error {
			path := filepath.Join(e.Config.Dir, journal.FileName)

			var writeErr error
			res, err := journal.Replay(path, e.Config.AppVersion, func(rec journal.Record) {
				if writeErr != nil {
					return
				}
				if !*asJSON {
					e.IO.Println(rec.String())
					return
				}
				out := recordOutput{Op: rec.Op.String(), Key: rec.Key}
				if rec.Op == journal.OpClean {
					out.Length = &rec.Length
				}
				writeErr = e.IO.JSON(out)
			})
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no journal in %s", e.Config.Dir)
				}
				return err
			}
			if writeErr != nil {
				return writeErr
			}

			e.IO.ErrPrintln(fmt.Sprintf("lines: %d, skipped: %d, torn: %t", res.Lines, res.Skipped, res.Torn))
			return nil
		},
	}
}

func fetchCmd() *Command {
	fs := newFlagSet("fetch")
	parallel := fs.Int("parallel", 4, "number of concurrent fetches")

	return &Command{
		Flags:   fs,
		Usage:   "fetch <id>...",
		Short:   "load blobs from --source into the cache and print their paths",
		MinArgs: 1,
		Exec: func(ctx context.Context, e *Env, args []string) error {
			store, err := openSource(ctx, e.Config.Source)
			if err != nil {
				return err
			}
			m, err := e.Manager()
			if err != nil {
				return err
			}

			loader := keyed.NewLoader(m, store)
			if err := loader.Prefetch(ctx, args, *parallel); err != nil {
				return err
			}
			for _, id := range args {
				path, ok := m.GetCacheFile(id)
				if !ok {
					return fmt.Errorf("%s was evicted right after fetching; raise --max-size", id)
				}
				e.IO.Printf("%s\t%s\n", id, path)
			}
			return nil
		},
	}
}
