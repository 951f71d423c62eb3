package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/engine"
)

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath      string
		schemasPath string
		sets        []string
		returning   string
		updateID    string
	)

	cmd := &cobra.Command{
		Use:   "insert <schema>",
		Short: "Insert or update a document",
		Long: `Write a document through constraint validation: uniqueness markers are
reserved before the write, and any violated constraint aborts it.

Field values come from repeatable --set field=value flags. With
--update <id> the named document is fetched and the fields merged over
its current state instead of inserting.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(rootOpts, cmd, args[0], dbPath, schemasPath, sets, splitList(returning), updateID)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite store path (required)")
	cmd.Flags().StringVar(&schemasPath, "schemas", "", "CUE schema file or directory (required)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value to write (repeatable)")
	cmd.Flags().StringVar(&returning, "returning", "_id,_rev", "comma-separated fields to echo back")
	cmd.Flags().StringVar(&updateID, "update", "", "update the document with this local id instead of inserting")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("schemas")

	return cmd
}

func runInsert(opts *RootOptions, cmd *cobra.Command, schemaName, dbPath, schemasPath string, sets, returning []string, updateID string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	fields, err := parseSets(sets)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	sess, s, err := openSession(dbPath, schemasPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer s.Close()

	var returned map[string]any
	if updateID != "" {
		returned, err = sess.Update(cmd.Context(), schemaName, updateID, fields, returning)
	} else {
		returned, err = sess.Insert(cmd.Context(), schemaName, fields, returning)
	}
	if err != nil {
		if engine.IsConstraintViolation(err) {
			_ = formatter.Error(ErrCodeConstraint, err.Error(), nil)
			return NewExitError(ExitFailure, err.Error())
		}
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(returned)
	}
	for _, f := range returning {
		fmt.Fprintf(formatter.Writer, "%s\t%v\n", f, returned[f])
	}
	return nil
}

// parseSets converts --set field=value flags into a field map.
func parseSets(sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("at least one --set field=value is required")
	}
	fields := make(map[string]any, len(sets))
	for _, set := range sets {
		field, val, found := strings.Cut(set, "=")
		if !found || field == "" {
			return nil, fmt.Errorf("malformed --set %q: expected field=value", set)
		}
		fields[field] = parseLiteral(val)
	}
	return fields, nil
}
