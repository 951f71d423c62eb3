package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/schema"
)

// SchemaSummary is the JSON shape of one compiled schema.
type SchemaSummary struct {
	Name        string              `json:"name"`
	Namespace   string              `json:"namespace"`
	PrimaryKey  string              `json:"primary_key"`
	Fields      []FieldSummary      `json:"fields"`
	Unique      [][]string          `json:"unique,omitempty"`
	ForeignKeys []ForeignKeySummary `json:"foreign_keys,omitempty"`
}

type FieldSummary struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type ForeignKeySummary struct {
	Field  string `json:"field"`
	Target string `json:"target"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <schemas-path>",
		Short: "Compile schema definitions and print the result",
		Long: `Compile CUE schema definitions into their loaded form: derived
namespaces, primary keys, field types, and constraint declarations.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCompile(opts *RootOptions, schemasPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	schemas, err := LoadSchemas(schemasPath)
	if err != nil {
		code := ErrCodeLoad
		exit := ExitCommandError
		if isCode(err, ErrCodeCompile) {
			code = ErrCodeCompile
			exit = ExitFailure
		}
		_ = formatter.Error(code, err.Error(), nil)
		return NewExitError(exit, err.Error())
	}

	summaries := make([]SchemaSummary, len(schemas))
	for i, sc := range schemas {
		summaries[i] = summarize(sc)
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	for _, s := range summaries {
		printSummary(formatter, s)
	}
	return nil
}

func summarize(sc *schema.Schema) SchemaSummary {
	summary := SchemaSummary{
		Name:       sc.Name,
		Namespace:  sc.Namespace,
		PrimaryKey: sc.PrimaryKey,
		Unique:     sc.Unique,
	}
	for _, f := range sc.Fields {
		summary.Fields = append(summary.Fields, FieldSummary{Name: f.Name, Type: string(f.Type)})
	}
	for _, fk := range sc.ForeignKeys {
		summary.ForeignKeys = append(summary.ForeignKeys, ForeignKeySummary{Field: fk.Field, Target: fk.Target})
	}
	return summary
}

func printSummary(f *OutputFormatter, s SchemaSummary) {
	fmt.Fprintf(f.Writer, "%s (namespace %s, primary key %s)\n", s.Name, s.Namespace, s.PrimaryKey)
	for _, field := range s.Fields {
		fmt.Fprintf(f.Writer, "  %-12s %s\n", field.Name, field.Type)
	}
	for _, u := range s.Unique {
		fmt.Fprintf(f.Writer, "  unique(%s)\n", strings.Join(u, ", "))
	}
	for _, fk := range s.ForeignKeys {
		fmt.Fprintf(f.Writer, "  %s -> %s\n", fk.Field, fk.Target)
	}
}
