package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines a CLI command with unified help generation.
type Command struct {
	// Flags defines command-specific flags.
	Flags *flag.FlagSet

	// Usage is the usage string shown after "diskcache" in help, starting
	// with the command name. Example: "put <key> [FILE]".
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// MinArgs is the number of required positional arguments.
	MinArgs int

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, e *Env, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-22s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "diskcache <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: diskcache [global flags]", c.Usage)
	o.Println()
	o.Println(c.Short)

	if c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command. Returns exit code.
func (c *Command) Run(ctx context.Context, e *Env, args []string) int {
	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(e.IO)
			return 0
		}
		e.IO.ErrPrintln("error:", err)
		return 1
	}

	if c.Flags.NArg() < c.MinArgs {
		e.IO.ErrPrintln("error: missing arguments")
		e.IO.ErrPrintln("usage: diskcache", c.Usage)
		return 1
	}

	if err := c.Exec(ctx, e, c.Flags.Args()); err != nil {
		e.IO.ErrPrintln("error:", err)
		return 1
	}
	return 0
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SortFlags = false
	return fs
}
