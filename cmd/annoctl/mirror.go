package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brainsharer/annostore"
)

func (a *app) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Publish the latest snapshot to the mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := a.open(cmd.Context(), true, false)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := db.Push(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d annotations to %s\n", db.Len(), cfg.Mirror.Key)
			return nil
		},
	}
}

func (a *app) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Adopt the mirrored state and snapshot it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := a.open(cmd.Context(), true, true)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := db.Pull(cmd.Context()); err != nil {
				return err
			}
			name, err := db.Save(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %d annotations from %s into %s\n", db.Len(), cfg.Mirror.Key, name)
			return nil
		},
	}
}

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Follow the mirror until interrupted, then snapshot",
		Long:  "Adopt the mirrored state, or seed it from the latest snapshot, follow it until interrupted and write a final snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, _, err := a.open(ctx, true, false)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			// An empty key is seeded with the local snapshot.
			switch err := db.Pull(ctx); {
			case errors.Is(err, annostore.ErrNoState):
				if err := db.Push(ctx); err != nil {
					return err
				}
			case err != nil:
				return err
			}
			if err := db.Sync(ctx); err != nil && ctx.Err() == nil {
				return err
			}

			name, err := db.Save(context.WithoutCancel(ctx))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}
