package main

import (
	"errors"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/brainsharer/annostore"
	"github.com/brainsharer/annostore/snapshot"
)

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [snapshot]",
		Short: "Show the manifest of a snapshot",
		Long:  "Show the manifest of the named snapshot, or of the one CURRENT points at.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			bs, err := cfg.Storage.Open(cmd.Context())
			if err != nil {
				return err
			}

			name := ""
			if len(args) == 1 {
				name = args[0]
			} else if name, err = snapshot.Latest(cmd.Context(), bs); err != nil {
				return err
			}
			snap, err := snapshot.Read(cmd.Context(), bs, name)
			if err != nil {
				return err
			}
			m := snap.Manifest

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "name\t%s\n", name)
			fmt.Fprintf(w, "created\t%s\n", m.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "rank\t%d\n", m.Rank)
			fmt.Fprintf(w, "compression\t%s\n", m.Compression)
			fmt.Fprintf(w, "payload\t%d bytes\n", m.PayloadSize)
			fmt.Fprintf(w, "annotations\t%d\n", m.Count)
			types := make([]string, 0, len(m.TypeCounts))
			for t := range m.TypeCounts {
				types = append(types, t)
			}
			slices.Sort(types)
			for _, t := range types {
				fmt.Fprintf(w, "  %s\t%d\n", t, m.TypeCounts[t])
			}
			for _, p := range m.Properties {
				fmt.Fprintf(w, "property\t%s (%s)\n", p.ID, p.Type)
			}
			for _, r := range m.Relationships {
				fmt.Fprintf(w, "relationship\t%s\n", r)
			}
			return w.Flush()
		},
	}
}

func (a *app) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage layer snapshots",
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Write a new snapshot of the latest state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := a.open(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			name, err := db.Save(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}

	load := &cobra.Command{
		Use:   "load",
		Short: "Restore the latest snapshot and report its content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := a.open(cmd.Context(), false, true)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			m, err := db.Load(cmd.Context())
			if errors.Is(err, annostore.ErrNoSnapshot) {
				fmt.Fprintln(cmd.OutOrStdout(), "no snapshot")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d annotations\n", m.Count)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			bs, err := cfg.Storage.Open(cmd.Context())
			if err != nil {
				return err
			}
			names, err := snapshot.List(cmd.Context(), bs)
			if err != nil {
				return err
			}
			current, err := snapshot.Latest(cmd.Context(), bs)
			if err != nil && !errors.Is(err, snapshot.ErrNoSnapshot) {
				return err
			}
			for _, n := range names {
				marker := " "
				if n == current {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, n)
			}
			return nil
		},
	}

	keep := -1
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete old snapshots",
		Long:  "Delete all but the newest snapshots. The count defaults to snapshot.keep; CURRENT is never deleted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := a.open(cmd.Context(), false, true)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if keep < 0 {
				keep = cfg.Snapshot.Keep
			}
			deleted, err := db.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			for _, n := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", n)
			}
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", -1, "number of snapshots to keep (default snapshot.keep)")

	cmd.AddCommand(save, load, list, prune)
	return cmd
}
