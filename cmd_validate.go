package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var params selectionParams
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and check the case files without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return validateCases(params, cmd.OutOrStdout())
		},
	}
	params.addCaseFlags(cmd.Flags())
	cmd.Flags().StringVar(&params.configFile, "config", "", "harness configuration file (YAML) to check as well")
	return cmd
}

func validateCases(params selectionParams, out io.Writer) error {
	if _, err := params.loadConfig(); err != nil {
		return err
	}
	registry, err := params.loadRegistry()
	if err != nil {
		return err
	}
	for _, c := range registry.Cases() {
		fmt.Fprintf(out, "%-50s %s\n", c.Name(), registry.Source(c.Name()))
	}
	fmt.Fprintf(out, "%d cases OK\n", registry.Len())
	return nil
}
