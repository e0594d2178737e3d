package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tessera/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Schema string                     `json:"schema"`
	Models int                        `json:"models"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

func (r ValidationResult) String() string {
	if r.Valid {
		return fmt.Sprintf("✓ %s: %d model(s), valid", r.Schema, r.Models)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✗ %s: %d error(s)", r.Schema, len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  %s", e)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema]",
		Short: "Validate a schema",
		Long: `Load a schema and check it against the schema rules without
opening storage. The schema defaults to --schema.

Exit codes:
  0 - Schema is valid
  1 - Schema failed validation
  2 - Schema could not be read or parsed`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Schema
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	formatter.VerboseLog("Loading schema %s", path)

	desc, err := compiler.LoadSchema(path)
	var schemaErr *compiler.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		result := ValidationResult{Schema: path, Errors: schemaErr.Errors}
		if err := formatter.Success(result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("schema has %d validation error(s)", len(schemaErr.Errors)))
	case err != nil:
		return formatter.Fail("load schema", err)
	}

	return formatter.Success(ValidationResult{Valid: true, Schema: path, Models: len(desc.Models)})
}
