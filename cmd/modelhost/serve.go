package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/modelhost"
	"github.com/bft-labs/modelhost/plugins/cachecleanup"
	"github.com/bft-labs/modelhost/plugins/configwatcher"
)

func newServeCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator and worker host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			c.logger.Info("configuration",
				log.String("listen", cfg.Listen),
				log.String("model_url", cfg.ModelURL),
				log.String("cache_dir", cfg.CacheDir),
				log.Bool("simulate", cfg.Simulate),
			)

			opts := []modelhost.Option{modelhost.WithLogger(c.logger)}
			if !cfg.Simulate {
				opts = append(opts, cachecleanup.WithCacheCleanup(cachecleanup.DefaultConfig()))
			}
			if cfg.WatchConfig {
				opts = append(opts, configwatcher.WithDefaultConfigWatcher())
			}

			h, err := modelhost.New(modelhost.Config{
				ModelURL:         cfg.ModelURL,
				InferenceURL:     cfg.InferenceURL,
				CacheDir:         cfg.CacheDir,
				StateDir:         cfg.StateDir,
				ConfigPath:       cfg.ConfigPath,
				Listen:           cfg.Listen,
				RequestTimeout:   cfg.RequestTimeout,
				RetryAttempts:    cfg.RetryAttempts,
				RetryBackoff:     cfg.RetryBackoff,
				SettleDelay:      cfg.SettleDelay,
				InitSettle:       cfg.InitSettle,
				BusyRecheckDelay: cfg.BusyRecheckDelay,
				BusyRechecks:     cfg.BusyRechecks,
				Simulate:         cfg.Simulate,
			}, opts...)
			if err != nil {
				return fmt.Errorf("create host: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			if err := h.Start(ctx); err != nil {
				return fmt.Errorf("start host: %w", err)
			}

			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if h.Status() == modelhost.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			select {
			case <-sigCh:
				c.logger.Info("received signal, stopping...")
			case <-doneCh:
				c.logger.Error("host crashed")
				return fmt.Errorf("host crashed")
			}

			if err := h.Stop(); err != nil {
				return fmt.Errorf("stop host: %w", err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.cfg.Listen, "listen", c.cfg.Listen, "HTTP listen address")
	f.StringVar(&c.cfg.ModelURL, "model-url", c.cfg.ModelURL, "model weights URL")
	f.StringVar(&c.cfg.InferenceURL, "inference-url", c.cfg.InferenceURL, "llama.cpp compatible server for completions")
	f.StringVar(&c.cfg.CacheDir, "cache-dir", c.cfg.CacheDir, "download cache (default: <state-dir>/models)")
	f.IntVar(&c.cfg.RetryAttempts, "retry-attempts", c.cfg.RetryAttempts, "attempts per worker host request")
	f.DurationVar(&c.cfg.RetryBackoff, "retry-backoff", c.cfg.RetryBackoff, "wait between worker host attempts")
	f.DurationVar(&c.cfg.SettleDelay, "settle", c.cfg.SettleDelay, "wait after re-ensuring the worker host on retry")
	f.DurationVar(&c.cfg.InitSettle, "init-settle", c.cfg.InitSettle, "wait after creating the worker host")
	f.DurationVar(&c.cfg.BusyRecheckDelay, "busy-recheck-delay", c.cfg.BusyRecheckDelay, "wait before rechecking a busy worker host")
	f.IntVar(&c.cfg.BusyRechecks, "busy-rechecks", c.cfg.BusyRechecks, "status checks after a busy reply")
	f.BoolVar(&c.cfg.Simulate, "simulate", c.cfg.Simulate, "use an in-memory model instead of downloading")
	f.BoolVar(&c.cfg.WatchConfig, "watch-config", c.cfg.WatchConfig, "reload when model_url changes in the config file")
	return cmd
}
