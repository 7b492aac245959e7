// recurd evaluates calendar trigger expressions and runs them as a daemon.
//
// Usage:
//
//	recurd run    --config recurd.yaml
//	recurd next   --expr "0 0 9 LW * *" [--from 2024-01-10] [-n 5] [--tz Europe/Berlin]
//	recurd render --dom "1,15,LW" --dow "MON#1,FRIL"
//	recurd list   --config recurd.yaml
//	recurd ics    --config recurd.yaml [--out triggers.ics]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

var errUsage = errors.New("usage: recurd <run|next|render|list|ics> [flags]")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "recurd: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	name  string
	short string
	run   func(args []string, out, errOut io.Writer) error
}

var commands = []command{
	{"run", "run the trigger daemon", cmdRun},
	{"next", "print the next fire times of a schedule", cmdNext},
	{"render", "normalise day-of-month and day-of-week axes", cmdRender},
	{"list", "list persisted triggers with their next fire time", cmdList},
	{"ics", "export configured triggers as an iCalendar feed", cmdICS},
}

func run(args []string, out, errOut io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(errOut)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:], out, errOut)
		}
	}
	printUsage(errOut)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: recurd <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.short)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'recurd <command> --help' for command flags.")
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, errOut io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("recurd "+name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.SortFlags = false
	return fs
}

// parseFlags parses args and rejects positional leftovers.
func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("%s: unexpected argument %q", fs.Name(), rest[0])
	}
	return nil
}
