package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/subcommands"

	"github.com/jsamuelsen/quote-sync/internal/bootstrap"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
)

// env holds the global flags and I/O shared by every command.
type env struct {
	profile string
	session string
	verbose bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	loadConfig func(profile string) (*config.Config, error)
}

func newEnv(stdin io.Reader, stdout, stderr io.Writer) *env {
	return &env{
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: bootstrap.LoadConfig,
	}
}

func (e *env) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.profile, "profile", "", "Configuration profile to load (defaults to APP_ENVIRONMENT, then local).")
	f.StringVar(&e.session, "session", "cli", "Session ID for the last viewed quote.")
	f.BoolVar(&e.verbose, "v", false, "Log at the configured level instead of warn.")
}

func (e *env) commands() []subcommands.Command {
	return []subcommands.Command{
		&randomCmd{env: e},
		&addCmd{env: e},
		&listCmd{env: e},
		&categoriesCmd{env: e},
		&selectCmd{env: e},
		&lastCmd{env: e},
		&exportCmd{env: e},
		&importCmd{env: e},
		&syncCmd{env: e},
		&statusCmd{env: e},
	}
}

// run assembles the runtime, calls fn and releases the runtime. Pending
// remote pushes finish before it returns.
func (e *env) run(ctx context.Context, fn func(context.Context, *bootstrap.Runtime) error) subcommands.ExitStatus {
	cfg, err := e.loadConfig(e.profile)
	if err != nil {
		return e.fail(err)
	}

	if !e.verbose {
		cfg.Log.Level = "warn"
	}

	logger := bootstrap.NewLoggerWithWriter(cfg, e.stderr)

	rt, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{SessionID: e.session})
	if err != nil {
		return e.fail(err)
	}

	err = fn(ctx, rt)
	if err = errors.Join(err, rt.Close()); err != nil {
		return e.fail(err)
	}

	return subcommands.ExitSuccess
}

func (e *env) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(e.stderr, "error: %v\n", err)
	return subcommands.ExitFailure
}

func (e *env) printQuote(q domain.Quote) {
	fmt.Fprintf(e.stdout, "%s\n  [%s]\n", q.Text, q.Category)
}

type randomCmd struct {
	*env
	category string
}

func (*randomCmd) Name() string     { return "random" }
func (*randomCmd) Synopsis() string { return "show a random quote" }
func (*randomCmd) Usage() string {
	return `quotes random [-category <name>]

  Shows a random quote from the given category, or from the selected one.
`
}

func (c *randomCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "category", "", "Category to pick from (defaults to the selected category).")
}

func (c *randomCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
		q, err := rt.Service.ShowRandom(ctx, c.category)
		if err != nil {
			return err
		}

		c.printQuote(q)

		return nil
	})
}

type addCmd struct {
	*env
	text     string
	category string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a quote and send it to the server" }
func (*addCmd) Usage() string {
	return `quotes add -text <text> -category <name>

  Saves the quote locally, then posts it to the remote server. A failed post
  keeps the local copy.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.text, "text", "", "Quote text.")
	f.StringVar(&c.category, "category", "", "Quote category.")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
		q, err := rt.Service.AddQuote(ctx, c.text, c.category)
		if err != nil {
			return err
		}

		c.printQuote(q)
		rt.Service.WaitPushes()
		fmt.Fprintln(c.stdout, rt.Service.Status().Message)

		return nil
	})
}

type listCmd struct {
	*env
	category string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list quotes" }
func (*listCmd) Usage() string {
	return `quotes list [-category <name>]

  Lists quotes in collection order.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "category", "", "Only list this category.")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(_ context.Context, rt *bootstrap.Runtime) error {
		for _, q := range rt.Service.List(c.category) {
			fmt.Fprintf(c.stdout, "[%s] %s\n", q.Category, q.Text)
		}

		return nil
	})
}

type categoriesCmd struct {
	*env
}

func (*categoriesCmd) Name() string     { return "categories" }
func (*categoriesCmd) Synopsis() string { return "list categories, marking the selected one" }
func (*categoriesCmd) Usage() string {
	return `quotes categories
`
}

func (*categoriesCmd) SetFlags(*flag.FlagSet) {}

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(_ context.Context, rt *bootstrap.Runtime) error {
		categories, selected := rt.Service.Categories()

		for _, cat := range categories {
			marker := " "
			if cat == selected {
				marker = "*"
			}

			fmt.Fprintf(c.stdout, "%s %s\n", marker, cat)
		}

		return nil
	})
}

type selectCmd struct {
	*env
}

func (*selectCmd) Name() string     { return "select" }
func (*selectCmd) Synopsis() string { return "select the category used by random" }
func (*selectCmd) Usage() string {
	return `quotes select <category>

  Persists the category filter. Use "all" to clear it.
`
}

func (*selectCmd) SetFlags(*flag.FlagSet) {}

func (c *selectCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	return c.run(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
		if err := rt.Service.SelectCategory(ctx, f.Arg(0)); err != nil {
			return err
		}

		_, selected := rt.Service.Categories()
		fmt.Fprintf(c.stdout, "selected %s\n", selected)

		return nil
	})
}

type lastCmd struct {
	*env
}

func (*lastCmd) Name() string     { return "last" }
func (*lastCmd) Synopsis() string { return "show the last viewed quote of the session" }
func (*lastCmd) Usage() string {
	return `quotes last

  Only remembers across invocations with the redis session driver.
`
}

func (*lastCmd) SetFlags(*flag.FlagSet) {}

func (c *lastCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
		q, err := rt.Service.LastViewed(ctx)
		if err != nil {
			return err
		}

		c.printQuote(q)

		return nil
	})
}

type exportCmd struct {
	*env
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the collection as JSON" }
func (*exportCmd) Usage() string {
	return `quotes export [-o <file>]

  Writes the collection as an indented JSON array, to stdout by default.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "-", "Output file, - for stdout.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(_ context.Context, rt *bootstrap.Runtime) error {
		data, err := rt.Service.Export()
		if err != nil {
			return err
		}

		if c.output == "-" || c.output == "" {
			_, err = c.stdout.Write(append(data, '\n'))
			return err
		}

		if err := os.WriteFile(c.output, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", c.output, err)
		}

		fmt.Fprintf(c.stdout, "exported %d quotes to %s\n", rt.Store.Len(), c.output)

		return nil
	})
}

type importCmd struct {
	*env
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "append quotes from a JSON file" }
func (*importCmd) Usage() string {
	return `quotes import <file>

  Appends every quote of a JSON array of {"text","category"} objects.
  Use - to read stdin. Nothing is added when the file is malformed.
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	var (
		data []byte
		err  error
	)

	if name := f.Arg(0); name == "-" {
		data, err = io.ReadAll(c.stdin)
	} else {
		data, err = os.ReadFile(name)
	}

	if err != nil {
		return c.fail(err)
	}

	return c.run(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
		n, err := rt.Service.Import(ctx, data)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.stdout, "imported %d quotes\n", n)

		return nil
	})
}

type syncCmd struct {
	*env
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "merge the server's quotes into the collection" }
func (*syncCmd) Usage() string {
	return `quotes sync

  Fetches every quote from the server. Server quotes replace local ones with
  the same text.
`
}

func (*syncCmd) SetFlags(*flag.FlagSet) {}

func (c *syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
		result, err := rt.Service.SyncNow(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(c.stdout, rt.Service.Status().Message)
		fmt.Fprintf(c.stdout, "fetched %d, overridden %d, total %d in %s\n",
			result.Fetched, result.Overridden, result.Total, result.Duration.Round(time.Millisecond))

		return nil
	})
}

type statusCmd struct {
	*env
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "check the stores and the remote server" }
func (*statusCmd) Usage() string {
	return `quotes status
`
}

func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
		health := rt.Health.CheckAll(ctx)

		names := make([]string, 0, len(health.Checks))
		for name := range health.Checks {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			check := health.Checks[name]
			fmt.Fprintf(c.stdout, "%-8s %-9s %s\n", name, check.Status, check.Message)
		}

		fmt.Fprintf(c.stdout, "quotes   %d\n", rt.Store.Len())
		fmt.Fprintf(c.stdout, "sync     %s\n", rt.Service.Status().Message)

		return nil
	})
}
