package main

import (
	"fmt"
	"io"

	"github.com/webcompat/interventions-harness/matrix"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var params selectionParams
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the entries a run with the same flags would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listEntries(params, cmd.OutOrStdout())
		},
	}
	params.addFlags(cmd.Flags())
	return cmd
}

func listEntries(params selectionParams, out io.Writer) error {
	_, _, entries, err := params.resolve()
	if err != nil {
		return err
	}
	entries = matrix.Filter(entries, params.filters.Match)
	for _, e := range entries {
		fmt.Fprintln(out, e.ID())
	}
	fmt.Fprintf(out, "%d entries\n", len(entries))
	return nil
}
