package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/compiler"
	"github.com/roach88/strata/internal/engine"
	"github.com/roach88/strata/internal/store"
)

// ValidationResult holds schema validation results.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Schemas []string `json:"schemas,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Markers []string `json:"markers,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "validate <schemas-path>",
		Short: "Validate schema definitions",
		Long: `Validate CUE schema definitions: syntax, field types, and constraint
declarations referencing declared fields.

With --db, also reports the uniqueness marker documents present in the
store. Orphaned markers (left by a crash between reservation and write)
are recovered by deleting the marker or re-running the interrupted write.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite store path for marker reporting")
	return cmd
}

func runValidate(opts *RootOptions, schemasPath, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	schemas, err := LoadSchemas(schemasPath)
	if err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) || isCode(err, ErrCodeCompile) {
			// Definition errors are validation failures, not command errors.
			_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
			return NewExitError(ExitFailure, err.Error())
		}
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	result := ValidationResult{Valid: true}
	for _, sc := range schemas {
		formatter.VerboseLog("Validated schema: %s (namespace %s)", sc.Name, sc.Namespace)
		result.Schemas = append(result.Schemas, sc.Name)
	}

	if dbPath != "" {
		markers, err := listMarkers(dbPath)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		result.Markers = markers
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d schema(s) valid\n", len(result.Schemas))
	if dbPath != "" {
		fmt.Fprintf(formatter.Writer, "%d uniqueness marker(s) in store\n", len(result.Markers))
		for _, m := range result.Markers {
			fmt.Fprintf(formatter.Writer, "  %s\n", m)
		}
	}
	return nil
}

// listMarkers collects the ids of all uniqueness marker documents.
func listMarkers(dbPath string) ([]string, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	res, err := s.Find(context.Background(), map[string]any{"type": engine.MarkerType}, store.FindOptions{})
	if err != nil {
		return nil, err
	}
	markers := make([]string, len(res.Docs))
	for i, doc := range res.Docs {
		markers[i] = doc.ID()
	}
	return markers, nil
}

func isCode(err error, code string) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr) && loadErr.Code == code
}
