package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiliu/h5client/internal/config"
	"github.com/weiliu/h5client/internal/logging"
	"github.com/weiliu/h5client/internal/navigation"
)

const shutdownTimeout = 5 * time.Second

// Run executes the h5client command line with args and returns the first
// failure. Callers map a non-nil error to exit status 1.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	c := newCLI(cfg, stdout, stderr)
	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	runErr := root.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.close(shutdownCtx); err != nil {
		c.logger.Warn("shutdown incomplete", slog.String("error", err.Error()))
	}
	return runErr
}

type cli struct {
	cfg    config.Config
	output string
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	nav    *printingNavigator

	once    sync.Once
	deps    Dependencies
	cleanup cleanupFunc
	err     error
}

func newCLI(cfg config.Config, stdout, stderr io.Writer) *cli {
	return &cli{
		cfg:    cfg,
		output: outputText,
		stdout: stdout,
		stderr: stderr,
		logger: logging.New(stderr, cfg.LogLevel),
		nav:    &printingNavigator{w: stderr},
	}
}

func (c *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "h5client",
		Short: "Terminal client for the H5 video service",
		Long: `h5client browses the published catalog, plays videos under the
free-trial policy, and manages the viewer's account, history and membership.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.output != outputText && c.output != outputJSON {
				return fmt.Errorf("unknown output format %q", c.output)
			}
			c.logger = logging.New(c.stderr, c.cfg.LogLevel)
			slog.SetDefault(c.logger)
			cmd.SetContext(logging.WithLogger(cmd.Context(), c.logger))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfg.APIBaseURL, "server", c.cfg.APIBaseURL, "Backend base URL (env: H5_API_BASE_URL)")
	flags.StringVar(&c.cfg.SessionFile, "session-file", c.cfg.SessionFile, "Session file path (env: H5_SESSION_FILE)")
	flags.StringVarP(&c.output, "output", "o", c.output, "Output format: text, json")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "Log level: debug, info, warn, error (env: H5_LOG_LEVEL)")

	root.AddCommand(c.newVideosCmd())
	root.AddCommand(c.newVideoCmd())
	root.AddCommand(c.newWatchCmd())
	root.AddCommand(c.newLoginCmd())
	root.AddCommand(c.newRegisterCmd())
	root.AddCommand(c.newLogoutCmd())
	root.AddCommand(c.newProfileCmd())
	root.AddCommand(c.newPasswordCmd())
	root.AddCommand(c.newHistoryCmd())
	root.AddCommand(c.newPlansCmd())
	root.AddCommand(c.newMigrateCmd())

	return root
}

// services builds the dependency graph on first use so commands that never
// touch the backend do not open a session store.
func (c *cli) services(ctx context.Context) (Dependencies, error) {
	c.once.Do(func() {
		c.deps, c.cleanup, c.err = buildDependencies(ctx, c.cfg, c.logger, c.nav)
	})
	return c.deps, c.err
}

func (c *cli) close(ctx context.Context) error {
	if c.cleanup == nil {
		return nil
	}
	return c.cleanup(ctx)
}

func (c *cli) out() *output {
	return &output{format: c.output, w: c.stdout}
}

// printingNavigator reports route changes on stderr and remembers them.
type printingNavigator struct {
	navigation.Recorder
	w io.Writer
}

func (n *printingNavigator) Navigate(target string) {
	n.Recorder.Navigate(target)
	fmt.Fprintf(n.w, "navigate: %s\n", target)
}
