package cli

import (
	"github.com/spf13/cobra"

	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/store"
)

// NewExecCommand creates the exec command. It compiles statements and
// applies them to a SQLite database, re-checking deferred obligations
// before anything is written.
func NewExecCommand(opts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "exec <file>",
		Short: "Compile statements and apply them to a database",
		Long: `Exec compiles every statement in the given file (use "-" for
stdin) and applies the resulting IR to the SQLite database at --db.
Each statement runs in its own transaction. Runtime-tier obligations
are re-discharged before execution; a statement whose obligations
cannot be resolved leaves the database untouched.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			compiler, err := newCompiler(opts)
			if err != nil {
				return err
			}
			st, err := store.Open(dbPath)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "opening database", Err: err}
			}
			defer st.Close()

			results := compiler.CompileBatch(cmd.Context(), src)
			failed := 0
			for i, r := range results {
				if r.Err != nil {
					failed++
					formatter.Printf("statement %d: error: %v\n", i+1, r.Err)
					continue
				}
				if sel, ok := r.Stmt.(*ir.Select); ok {
					if qerr := execSelect(cmd, formatter, st, i+1, sel); qerr != nil {
						failed++
						formatter.Printf("statement %d: error: %v\n", i+1, qerr)
					}
					continue
				}
				res, aerr := st.Apply(cmd.Context(), r.Stmt)
				if aerr != nil {
					failed++
					formatter.Printf("statement %d: error: %v\n", i+1, aerr)
					continue
				}
				formatter.Printf("statement %d: %s %s (%d row(s) affected)\n",
					i+1, r.Stmt.Kind(), r.Stmt.Table(), res.RowsAffected)
			}

			if failed > 0 {
				return &ExitError{Code: ExitFailure, Message: "execution failed"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "rql.db", "path to SQLite database file")
	return cmd
}

func execSelect(cmd *cobra.Command, formatter *OutputFormatter, st *store.Store, n int, sel *ir.Select) error {
	rows, err := st.Query(cmd.Context(), sel)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	count := 0
	var docs []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		count++
		for i := range vals {
			vals[i] = normalizeCell(vals[i])
		}
		if formatter.Format == "json" {
			doc := make(map[string]any, len(cols))
			for i, c := range cols {
				doc[c] = vals[i]
			}
			docs = append(docs, doc)
			continue
		}
		formatter.Printf("%v\n", vals)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if formatter.Format == "json" {
		return formatter.JSON(map[string]any{"statement": n, "columns": cols, "rows": docs})
	}
	formatter.Printf("statement %d: %d row(s)\n", n, count)
	return nil
}

// normalizeCell makes driver values JSON friendly. SQLite hands back
// []byte for TEXT columns in some paths.
func normalizeCell(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
