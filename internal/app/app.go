package app

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vmail/backend/internal/config"
	"github.com/vmail/backend/internal/logging"
)

// Run bootstraps the VMail backend application.
func Run(ctx context.Context, args []string) error {
	root := newRootCommand(os.Stdin, os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// cli carries the state shared by every command.
type cli struct {
	v      *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{v: config.New(), in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "vmail",
		Short:         "VMail by Joshua: personal video messages",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.String("server", "", "base URL of a running VMail server")
	flags.String("session-file", "", "where the CLI keeps its session")
	c.bind(flags, "log_level", "log-level")
	c.bind(flags, "database_url", "database-url")
	c.bind(flags, "client.base_url", "server")
	c.bind(flags, "client.session_file", "session-file")

	root.AddCommand(
		c.serveCommand(),
		c.migrateCommand(),
		c.seedCommand(),
		c.friendCommand(),
		c.sendCommand(),
		c.loginCommand(),
		c.inboxCommand(),
		c.watchCommand(),
		c.downloadCommand(),
		c.logoutCommand(),
	)
	return root
}

func (c *cli) bind(flags *pflag.FlagSet, key, name string) {
	if err := c.v.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(err)
	}
}

// load materialises the configuration and installs the process logger.
func (c *cli) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.FromViper(c.v)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.New(c.errOut, cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
