package cli

import (
	"github.com/spf13/cobra"

	"github.com/refineql/refineql/internal/parser"
)

// NewCheckCommand creates the check command. It parses statements and
// reports syntax errors without type checking or proof discharge.
func NewCheckCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Parse statements and report syntax errors",
		Long: `Check lexes and parses every statement in the given file (use "-"
for stdin). It stops at the syntactic front end: no schema lookups, no
type inference and no proof obligations.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			src, err := readSource(args[0])
			if err != nil {
				return err
			}

			results := parser.ParseBatch(src)
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
				}
			}

			if failed > 0 {
				return &ExitError{Code: ExitFailure, Message: "check failed"}
			}
			if opts.Format == "json" {
				return formatter.JSON(map[string]any{"statements": len(results), "ok": true})
			}
			formatter.Printf("ok: %d statement(s)\n", len(results))
			return nil
		},
	}
	return cmd
}
