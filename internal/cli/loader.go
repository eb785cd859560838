package cli

import (
	"os"

	"github.com/google/uuid"

	"github.com/refineql/refineql/internal/compile"
	"github.com/refineql/refineql/internal/perm"
	"github.com/refineql/refineql/internal/schema"
)

// newCompiler assembles a Compiler from the global flags: the CUE
// schema registry and, when requested, a role from the YAML role file.
func newCompiler(opts *RootOptions) (*compile.Compiler, error) {
	var registry schema.Registry
	if opts.Schema != "" {
		src, err := os.ReadFile(opts.Schema)
		if err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: "reading schema registry", Err: err}
		}
		registry = schema.NewCUERegistry(src)
	} else {
		// No registry: only CREATE TABLE can introduce collections.
		registry = schema.NewStatic()
	}

	copts := []compile.Option{compile.WithCaller(uuid.New())}
	if opts.Role != "" {
		profiles, err := perm.LoadFile(opts.Roles)
		if err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: "loading role file", Err: err}
		}
		role, err := profiles.Role(opts.Role)
		if err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: "resolving role", Err: err}
		}
		copts = append(copts, compile.WithRole(role))
	}
	return compile.New(registry, copts...), nil
}

// readSource reads statement text from a file argument, or stdin when
// the argument is "-".
func readSource(arg string) (string, error) {
	if arg == "-" {
		data, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return "", &ExitError{Code: ExitCommandError, Message: "reading stdin", Err: err}
		}
		return string(data), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", &ExitError{Code: ExitCommandError, Message: "reading source", Err: err}
	}
	return string(data), nil
}
