package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bft-labs/modelhost/internal/adapters/fs"
	"github.com/bft-labs/modelhost/internal/client"
	"github.com/bft-labs/modelhost/internal/render"
)

func (c *cli) reconcilerConfig() client.Config {
	return client.Config{
		PollInterval: c.cfg.PollInterval,
		PollTimeout:  c.cfg.PollTimeout,
	}
}

func newStatusCommand(c *cli) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the model status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if offline {
				snap, err := fs.NewStatusFileRepository(c.cfg.StateDir).Load(cmd.Context())
				if err != nil {
					return err
				}
				if snap.IsEmpty() {
					fmt.Fprintln(cmd.OutOrStdout(), "No status recorded")
					return nil
				}
				v := client.SnapshotView(snap)
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, recorded %s)\n",
					render.StatusText(v), snap.Source, snap.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
				return nil
			}

			resp, err := client.NewCommands(c.link()).Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.StatusText(client.StatusView(resp)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "read the last recorded status instead of asking the server")
	return cmd
}

func newInitCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Load the model and follow progress until it is ready or fails",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := client.NewReconciler(c.link(), render.NewLineRenderer(cmd.OutOrStdout()), c.reconcilerConfig(), c.logger)
			_, err := r.Attach(cmd.Context())
			return err
		},
	}
	f := cmd.Flags()
	f.DurationVar(&c.cfg.PollInterval, "poll", c.cfg.PollInterval, "status poll interval")
	f.DurationVar(&c.cfg.PollTimeout, "poll-timeout", c.cfg.PollTimeout, "give up waiting after this long")
	return cmd
}

func newClassifyCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [text]",
		Short: "Classify text as AI generated or human written",
		Long:  "Classify text as AI generated or human written. Reads stdin when no text is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := readAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = b
			}
			res, err := client.NewCommands(c.link()).Classify(cmd.Context(), text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Classification(res))
			return nil
		},
	}
}

func newResetCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the model state and load again",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.NewCommands(c.link()).Reset(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.StatusText(client.StatusView(resp)))
			return nil
		},
	}
}

func newWatchCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the model status in an interactive view",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p := tea.NewProgram(render.NewWatchModel(c.cfg.ServerURL), tea.WithContext(ctx), tea.WithOutput(os.Stderr))
			r := client.NewReconciler(c.link(), render.NewProgramRenderer(p), c.reconcilerConfig(), c.logger)

			go func() {
				err := r.Run(ctx)
				p.Send(render.ExitMsg{Err: err})
			}()

			final, err := p.Run()
			cancel()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			if m, ok := final.(render.WatchModel); ok {
				return m.Err()
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&c.cfg.PollInterval, "poll", c.cfg.PollInterval, "status poll interval")
	return cmd
}

func readAll(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
