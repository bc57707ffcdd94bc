// Command quotes browses, edits and syncs the quote collection from a terminal.
// It opens the same durable store and remote source as the HTTP service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	e := newEnv(os.Stdin, os.Stdout, os.Stderr)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	for _, c := range e.commands() {
		commander.Register(c, "quotes")
	}

	e.SetFlags(flag.CommandLine)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)

	stop()
	os.Exit(int(status))
}
