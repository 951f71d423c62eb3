package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/harness"
)

// ScenarioOutcome reports one scenario's result.
type ScenarioOutcome struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Steps  int    `json:"steps"`
	Error  string `json:"error,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenario.yaml>...",
		Short: "Run conformance scenarios",
		Long: `Run declarative YAML scenarios against a fresh in-memory session.
Each scenario loads its schemas, executes its steps, and checks its
final-state assertions. Any failing scenario fails the run.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, cmd, args)
		},
	}
	return cmd
}

func runTest(opts *RootOptions, cmd *cobra.Command, paths []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	outcomes := make([]ScenarioOutcome, 0, len(paths))
	failed := 0
	for _, path := range paths {
		outcome := runScenarioFile(formatter, path)
		if !outcome.Passed {
			failed++
		}
		outcomes = append(outcomes, outcome)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(outcomes); err != nil {
			return err
		}
	} else {
		for _, o := range outcomes {
			if o.Passed {
				fmt.Fprintf(formatter.Writer, "✓ %s (%d step(s))\n", o.Name, o.Steps)
			} else {
				fmt.Fprintf(formatter.Writer, "✗ %s: %s\n", o.Name, o.Error)
			}
		}
		fmt.Fprintf(formatter.Writer, "%d passed, %d failed\n", len(outcomes)-failed, failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}

func runScenarioFile(formatter *OutputFormatter, path string) ScenarioOutcome {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return ScenarioOutcome{Name: path, Error: err.Error()}
	}
	formatter.VerboseLog("Running scenario: %s", scenario.Name)

	result, err := harness.Run(scenario)
	if err != nil {
		return ScenarioOutcome{Name: scenario.Name, Error: err.Error()}
	}
	return ScenarioOutcome{Name: scenario.Name, Passed: true, Steps: len(result.Trace)}
}
