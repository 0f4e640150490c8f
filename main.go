package main

import (
	_ "embed" // this is required in order for go:embed to work
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func version() string { return strings.TrimSpace(versionString) }

const commandName = "interventions-harness"

// errUnsuccessful is returned by the run command when the suite ran but some entries did not
// pass. The details have already been printed, so main only sets the exit code.
var errUnsuccessful = errors.New("some entries failed or could not be run")

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   commandName,
		Short: "Checks that site interventions still fix the sites they were written for",
		Long: "Runs each declared intervention case in a real browser, once with interventions enabled\n" +
			"and once with them disabled, and verifies that the page looks fixed and broken respectively.",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newListCommand())
	root.AddCommand(newValidateCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errUnsuccessful) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
