package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/brainsharer/annostore/annotation"
)

func (a *app) exportCmd() *cobra.Command {
	var (
		pretty bool
		where  string
	)
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the committed annotations as JSON",
		Long:  "Write the committed annotations of the latest snapshot as a JSON array to file, or to stdout. --where keeps only records matching a query expression such as 'kind == \"cell\"'.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := a.open(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			var data []byte
			if where != "" {
				data, err = db.SelectJSON(where)
			} else {
				data, err = db.ToJSON()
			}
			if err != nil {
				return err
			}
			if pretty {
				var buf []byte
				if buf, err = indent(data); err != nil {
					return err
				}
				data = buf
			}
			data = append(data, '\n')

			if len(args) == 0 {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(args[0], data, 0o644)
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the output")
	cmd.Flags().StringVar(&where, "where", "", "query expression selecting the records to export")
	return cmd
}

func indent(data []byte) ([]byte, error) {
	var v any
	if err := gojson.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return gojson.MarshalIndent(v, "", "  ")
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the layer with a JSON array and snapshot it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			db, _, err := a.open(cmd.Context(), false, true)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := db.Replace(data); err != nil {
				return err
			}
			name, err := db.Save(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d annotations into %s\n", db.Len(), name)
			return nil
		},
	}
}

func (a *app) packCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <file>",
		Short: "Write the binary annotation buffer",
		Long:  "Write the binary buffer consumed by renderers and print the region of each annotation type.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := a.open(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			packed, err := db.Pack()
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], packed.Data, 0o644); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tCOUNT\tOFFSET")
			for i, t := range annotation.Types {
				if n := len(packed.TypeToIDs[i]); n > 0 {
					fmt.Fprintf(w, "%s\t%d\t%d\n", t, n, packed.TypeToOffset[i])
				}
			}
			fmt.Fprintf(w, "total\t%d bytes\t\n", len(packed.Data))
			return w.Flush()
		},
	}
}
