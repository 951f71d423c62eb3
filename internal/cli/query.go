package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/compile"
	"github.com/roach88/strata/internal/query"
)

// QueryResult is the JSON shape of a query response.
type QueryResult struct {
	Count  int      `json:"count"`
	Fields []string `json:"fields"`
	Rows   [][]any  `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath      string
		schemasPath string
		wheres      []string
		fields      string
		order       string
		limit       int
		skip        int
		explain     bool
	)

	cmd := &cobra.Command{
		Use:   "query <schema>",
		Short: "Run a query against the store",
		Long: `Compile a filter into a store query, execute it, and print the
projected rows.

Filters use --where expressions: "field=value", "field!=value",
"field>value", "field>=value", "field<value", "field<=value", or
"field in a,b,c". Multiple --where flags combine conjunctively.

With --explain the compiled query is printed instead of executing.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, queryArgs{
				schema:  args[0],
				db:      dbPath,
				schemas: schemasPath,
				wheres:  wheres,
				fields:  splitList(fields),
				order:   order,
				limit:   limit,
				skip:    skip,
				explain: explain,
			})
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite store path (required unless --explain)")
	cmd.Flags().StringVar(&schemasPath, "schemas", "", "CUE schema file or directory (required)")
	cmd.Flags().StringArrayVar(&wheres, "where", nil, "filter expression (repeatable)")
	cmd.Flags().StringVar(&fields, "fields", "", "comma-separated projected fields")
	cmd.Flags().StringVar(&order, "order", "", "sort key, \"field\" or \"field:desc\"")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows")
	cmd.Flags().IntVar(&skip, "skip", 0, "rows to skip")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the compiled query without executing")
	_ = cmd.MarkFlagRequired("schemas")

	return cmd
}

type queryArgs struct {
	schema  string
	db      string
	schemas string
	wheres  []string
	fields  []string
	order   string
	limit   int
	skip    int
	explain bool
}

func runQuery(opts *RootOptions, cmd *cobra.Command, args queryArgs) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	req, err := buildRequest(args)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if args.explain {
		return runExplain(formatter, args, req)
	}
	if args.db == "" {
		msg := "--db is required unless --explain is set"
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	sess, s, err := openSession(args.db, args.schemas)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer s.Close()

	count, rows, err := sess.Query(cmd.Context(), args.schema, req)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}

	fields := args.fields
	if len(fields) == 0 {
		if sc, scErr := sess.Schema(args.schema); scErr == nil {
			fields = sc.FieldNames()
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(QueryResult{Count: count, Fields: fields, Rows: rows})
	}
	fmt.Fprintln(formatter.Writer, strings.Join(fields, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprintf("%v", cell)
		}
		fmt.Fprintln(formatter.Writer, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(formatter.Writer, "(%d row(s))\n", count)
	return nil
}

func runExplain(formatter *OutputFormatter, args queryArgs, req compile.Request) error {
	schemas, err := LoadSchemas(args.schemas)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	for _, sc := range schemas {
		if sc.Name != args.schema {
			continue
		}
		q, err := compile.New(sc.Namespace, sc.PrimaryKey).Compile(req)
		if err != nil {
			_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
			return NewExitError(ExitFailure, err.Error())
		}
		return formatter.Success(compile.Describe(q))
	}
	msg := fmt.Sprintf("unknown schema %q", args.schema)
	_ = formatter.Error(ErrCodeGeneric, msg, nil)
	return NewExitError(ExitCommandError, msg)
}

func buildRequest(args queryArgs) (compile.Request, error) {
	pred, err := parseWheres(args.wheres)
	if err != nil {
		return compile.Request{}, err
	}
	req := compile.Request{
		Predicate: pred,
		Fields:    args.fields,
		Limit:     args.limit,
		Skip:      args.skip,
	}
	if args.order != "" {
		field, desc := strings.CutSuffix(args.order, ":desc")
		req.Order = []query.Order{{Field: field, Descending: desc}}
	}
	return req, nil
}

// whereOperators in match order: two-character operators before their
// one-character prefixes.
var whereOperators = []struct {
	token string
	op    query.Op
}{
	{">=", query.OpGte},
	{"<=", query.OpLte},
	{"!=", query.OpNe},
	{">", query.OpGt},
	{"<", query.OpLt},
}

// parseWheres builds a predicate tree from --where expressions.
func parseWheres(exprs []string) (query.Predicate, error) {
	var preds []query.Predicate
	for _, expr := range exprs {
		pred, err := parseWhere(expr)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return query.And{Predicates: preds}, nil
	}
}

func parseWhere(expr string) (query.Predicate, error) {
	if field, list, found := strings.Cut(expr, " in "); found {
		values := splitList(list)
		if len(values) == 0 {
			return nil, fmt.Errorf("malformed where expression %q: empty value list", expr)
		}
		anyValues := make([]any, len(values))
		for i, v := range values {
			anyValues[i] = parseLiteral(v)
		}
		return query.In{Field: strings.TrimSpace(field), Values: anyValues}, nil
	}

	for _, cand := range whereOperators {
		if field, val, found := strings.Cut(expr, cand.token); found {
			return query.Cmp{
				Op:    cand.op,
				Field: strings.TrimSpace(field),
				Value: parseLiteral(strings.TrimSpace(val)),
			}, nil
		}
	}

	if field, val, found := strings.Cut(expr, "="); found {
		return query.Eq{
			Field: strings.TrimSpace(field),
			Value: parseLiteral(strings.TrimSpace(val)),
		}, nil
	}
	return nil, fmt.Errorf("malformed where expression %q", expr)
}
