// Command diskcache inspects and edits diskcache directories.
//
// Do not run it against a directory that a live process has open: two
// writers on one journal corrupt each other's view of the cache.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/diskcache/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args)
	stop()
	os.Exit(code)
}
