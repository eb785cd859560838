package cli

import (
	"github.com/spf13/cobra"

	"github.com/refineql/refineql/internal/lexer"
)

// NewTokensCommand creates the tokens command, a lexer dump useful for
// debugging statement syntax.
func NewTokensCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tokens <file>",
		Short:         "Dump the token stream for a source file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			src, err := readSource(args[0])
			if err != nil {
				return err
			}

			toks, lexErrs := lexer.Scan(src)
			if opts.Format == "json" {
				type tokenDoc struct {
					Kind   string `json:"kind"`
					Lexeme string `json:"lexeme,omitempty"`
					Line   int    `json:"line"`
					Column int    `json:"column"`
				}
				docs := make([]tokenDoc, 0, len(toks))
				for _, t := range toks {
					docs = append(docs, tokenDoc{
						Kind:   t.Kind.String(),
						Lexeme: t.Lexeme,
						Line:   t.Pos.Line,
						Column: t.Pos.Column,
					})
				}
				if jerr := formatter.JSON(docs); jerr != nil {
					return jerr
				}
			} else {
				for _, t := range toks {
					formatter.Printf("%s\n", t)
				}
			}

			if len(lexErrs) > 0 {
				for _, le := range lexErrs {
					formatter.Printf("error: %v\n", le)
				}
				return &ExitError{Code: ExitFailure, Message: "lexing failed"}
			}
			return nil
		},
	}
	return cmd
}
