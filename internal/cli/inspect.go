package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tessera/internal/compiler"
	"github.com/roach88/tessera/internal/ir"
)

// SchemaSummary describes a loaded schema.
type SchemaSummary struct {
	Version   string        `json:"version"`
	Models    []TypeSummary `json:"models"`
	NonModels []TypeSummary `json:"non_models,omitempty"`
	Enums     []ir.EnumMeta `json:"enums,omitempty"`
}

// TypeSummary describes one model or non-model type.
type TypeSummary struct {
	Name     string         `json:"name"`
	Plural   string         `json:"plural,omitempty"`
	Syncable bool           `json:"syncable,omitempty"`
	Fields   []FieldSummary `json:"fields"`
}

// FieldSummary describes one field in GraphQL type notation.
type FieldSummary struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s SchemaSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema version %s\n", s.Version)
	for _, m := range s.Models {
		identity := "local"
		if m.Syncable {
			identity = "syncable"
		}
		fmt.Fprintf(&b, "\nmodel %s (%s, %s)\n", m.Name, m.Plural, identity)
		writeFields(&b, m.Fields)
	}
	for _, t := range s.NonModels {
		fmt.Fprintf(&b, "\ntype %s\n", t.Name)
		writeFields(&b, t.Fields)
	}
	for _, e := range s.Enums {
		fmt.Fprintf(&b, "\nenum %s: %s\n", e.Name, strings.Join(e.Values, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeFields(b *strings.Builder, fields []FieldSummary) {
	for _, f := range fields {
		fmt.Fprintf(b, "  %-16s %s\n", f.Name, f.Type)
	}
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [schema]",
		Short: "Show the models, types and enums of a schema",
		Example: `  tessera inspect schema.cue
  tessera inspect --schema ./schema --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Schema
			if len(args) == 1 {
				path = args[0]
			}
			formatter := rootOpts.formatter(cmd)
			desc, err := compiler.LoadSchema(path)
			if err != nil {
				return formatter.Fail("load schema", err)
			}
			return formatter.Success(summarize(desc))
		},
	}
}

func summarize(desc *ir.SchemaDescriptor) SchemaSummary {
	out := SchemaSummary{Version: desc.Version}
	for _, name := range desc.ModelNames() {
		m := desc.Models[name]
		out.Models = append(out.Models, TypeSummary{
			Name:     name,
			Plural:   m.PluralName,
			Syncable: m.Syncable,
			Fields:   summarizeFields(m.Fields),
		})
	}
	for _, name := range sortedNames(desc.NonModels) {
		out.NonModels = append(out.NonModels, TypeSummary{
			Name:   name,
			Fields: summarizeFields(desc.NonModels[name].Fields),
		})
	}
	for _, name := range sortedNames(desc.Enums) {
		out.Enums = append(out.Enums, desc.Enums[name])
	}
	return out
}

func summarizeFields(fields map[string]ir.FieldMeta) []FieldSummary {
	out := make([]FieldSummary, 0, len(fields))
	for _, name := range ir.SortedFieldNames(fields) {
		f := fields[name]
		typ := f.Type.String()
		if f.IsArray {
			typ = "[" + typ + "]"
		}
		if f.IsRequired {
			typ += "!"
		}
		out = append(out, FieldSummary{Name: name, Type: typ})
	}
	return out
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
