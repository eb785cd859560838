package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/refineql/refineql/internal/wire"
)

// NewCompileCommand creates the compile command. It runs the full
// pipeline and emits canonical statement documents for statements that
// survive it.
func NewCompileCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile statements into canonical typed IR",
		Long: `Compile lexes, parses, type-checks and proof-checks every statement
in the given file (use "-" for stdin) and prints the canonical form of
each statement that passes. Statements are compiled independently; a
failure in one does not stop the rest.`,
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

			results := compiler.CompileBatch(cmd.Context(), src)
			formatter.VerboseLog("compiled %d statement(s)", len(results))

			failed := 0
			for i, r := range results {
				if r.Err != nil {
					failed++
					if opts.Format == "json" {
						if jerr := formatter.JSON(map[string]any{
							"statement": i + 1,
							"error":     r.Err.Error(),
						}); jerr != nil {
							return jerr
						}
					} else {
						formatter.Printf("statement %d: error: %v\n", i+1, r.Err)
					}
					continue
				}
				if opts.Format == "json" {
					doc, merr := wire.MarshalStatementJSON(r.Stmt)
					if merr != nil {
						return &ExitError{Code: ExitFailure, Message: "marshaling statement", Err: merr}
					}
					var pretty json.RawMessage = doc
					if jerr := formatter.JSON(pretty); jerr != nil {
						return jerr
					}
				} else {
					formatter.Printf("statement %d: %s %s (tier %s, %d deferred)\n",
						i+1, r.Stmt.Kind(), r.Stmt.Table(), r.Stmt.Meta().Tier, len(r.Stmt.Deferred()))
				}
			}

			if failed > 0 {
				return &ExitError{Code: ExitFailure, Message: "compilation failed"}
			}
			return nil
		},
	}
	return cmd
}
