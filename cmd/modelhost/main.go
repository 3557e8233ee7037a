package main

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	httpAdapter "github.com/bft-labs/modelhost/internal/adapters/http"
	"github.com/bft-labs/modelhost/internal/cliconfig"
	"github.com/bft-labs/modelhost/pkg/log"
)

const helpDescription = `
Load a text classifier once and share it between every client that asks.

Highlights:
  - One load per model, however many clients initialize at once.
  - Clients follow progress by push and by polling, and never hang forever.
  - A failed load is remembered until someone resets it.
  - Configure via file ($HOME/.modelhost/config.toml), MODELHOST_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  modelhost serve --simulate
  modelhost init
  modelhost classify "Paste at least twenty characters of text here."
  modelhost watch
  modelhost status --offline
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the resolved configuration to subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  log.Logger
}

// load resolves configuration with precedence flags > env > file > defaults.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
		c.cfg.ConfigPath = cfgFile
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.logger = c.cfg.Logger()
	return nil
}

// link returns a client link to the configured server.
func (c *cli) link() *httpAdapter.Link {
	return httpAdapter.NewLink(c.cfg.ServerURL, &http.Client{Timeout: c.cfg.RequestTimeout}, c.logger)
}

func newRootCommand() *cobra.Command {
	c := &cli{cfg: cliconfig.DefaultConfig(), logger: log.NewNoopLogger()}

	root := &cobra.Command{
		Use:           "modelhost",
		Short:         "Single-flight model loading with a shared coordinator",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.modelhost/config.toml)")
	pf.StringVar(&c.cfg.ServerURL, "server", c.cfg.ServerURL, "coordinator URL for client commands")
	pf.StringVar(&c.cfg.StateDir, "state-dir", c.cfg.StateDir, "directory for status.json (default: $HOME/.modelhost)")
	pf.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")
	pf.DurationVar(&c.cfg.RequestTimeout, "timeout", c.cfg.RequestTimeout, "per-request timeout")

	root.AddCommand(
		newServeCommand(c),
		newStatusCommand(c),
		newInitCommand(c),
		newClassifyCommand(c),
		newResetCommand(c),
		newWatchCommand(c),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "modelhost:", err)
		os.Exit(1)
	}
}
