package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/tessera/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedVersion = "E100" // descriptor version not understood

	// Type declaration errors (E101-E109)
	ErrEmptySchema       = "E101" // no models or non-model types
	ErrNameMismatch      = "E102" // map key differs from declared name
	ErrIdentityField     = "E103" // missing or malformed id field
	ErrInvalidFieldType  = "E104" // unknown or ambiguous field type
	ErrDuplicateName     = "E105" // name used by more than one declaration
	ErrInvalidEnum       = "E106" // enum without values or with duplicates
	ErrInvalidIdentifier = "E107" // name is not an identifier
	ErrNonModelIdentity  = "E108" // non-model type declares an id
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// identifierPattern matches names usable as model, type, enum and field
// names. Field names end up in SQL JSON paths, so the set is kept narrow.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateSchema checks a descriptor against the schema rules.
// Returns all errors found (does not fail-fast), in a stable order.
func ValidateSchema(desc *ir.SchemaDescriptor) []ValidationError {
	if desc == nil {
		return []ValidationError{{
			Field:   "schema",
			Message: "schema descriptor is nil",
			Code:    ErrEmptySchema,
		}}
	}

	var errs []ValidationError

	// E100: version
	if desc.Version != "" && desc.Version != ir.SchemaFormatVersion {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported schema version %q, expected %q", desc.Version, ir.SchemaFormatVersion),
			Code:    ErrUnsupportedVersion,
		})
	}

	// E101: something to construct
	if len(desc.Models) == 0 && len(desc.NonModels) == 0 {
		errs = append(errs, ValidationError{
			Field:   "models",
			Message: "schema declares no models or non-model types",
			Code:    ErrEmptySchema,
		})
	}

	// E105: names are shared by models, non-models and enums
	seen := make(map[string]string)
	claim := func(kind, name string) {
		if prev, ok := seen[name]; ok {
			errs = append(errs, ValidationError{
				Field:   kind + "." + name,
				Message: fmt.Sprintf("name %q already declared as %s", name, prev),
				Code:    ErrDuplicateName,
			})
			return
		}
		seen[name] = kind
	}
	for _, name := range sortedKeys(desc.Models) {
		claim("models", name)
	}
	for _, name := range sortedKeys(desc.NonModels) {
		claim("non_models", name)
	}
	for _, name := range sortedKeys(desc.Enums) {
		claim("enums", name)
	}

	for _, name := range sortedKeys(desc.Enums) {
		errs = append(errs, validateEnum(name, desc.Enums[name])...)
	}

	for _, name := range sortedKeys(desc.Models) {
		m := desc.Models[name]
		path := "models." + name
		errs = append(errs, validateName(path, name, m.Name)...)
		errs = append(errs, validateIdentity(path, m.Fields)...)
		errs = append(errs, validateFields(desc, path, m.Fields)...)
	}

	for _, name := range sortedKeys(desc.NonModels) {
		t := desc.NonModels[name]
		path := "non_models." + name
		errs = append(errs, validateName(path, name, t.Name)...)
		if _, ok := t.Fields[ir.IDField]; ok {
			errs = append(errs, ValidationError{
				Field:   path + ".fields." + ir.IDField,
				Message: fmt.Sprintf("non-model type %q cannot declare an identity field", name),
				Code:    ErrNonModelIdentity,
			})
		}
		errs = append(errs, validateFields(desc, path, t.Fields)...)
	}

	return errs
}

// validateName checks the map key against the declared name.
func validateName(path, key, declared string) []ValidationError {
	var errs []ValidationError

	// E107: identifier
	if !identifierPattern.MatchString(key) {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("%q is not a valid identifier", key),
			Code:    ErrInvalidIdentifier,
		})
	}

	// E102: key and name agree
	if declared != key {
		errs = append(errs, ValidationError{
			Field:   path + ".name",
			Message: fmt.Sprintf("declared name %q does not match key %q", declared, key),
			Code:    ErrNameMismatch,
		})
	}
	return errs
}

// validateIdentity requires exactly one required, non-array id field of
// scalar type ID.
func validateIdentity(path string, fields map[string]ir.FieldMeta) []ValidationError {
	f, ok := fields[ir.IDField]
	if !ok {
		return []ValidationError{{
			Field:   path + ".fields",
			Message: "model must declare an \"id\" field",
			Code:    ErrIdentityField,
		}}
	}
	if f.Type.Scalar != ir.ScalarID || f.Type.Enum != "" || f.Type.NonModel != "" || f.IsArray || !f.IsRequired {
		return []ValidationError{{
			Field:   path + ".fields.id",
			Message: fmt.Sprintf("id field must be a required ID, got %s", describeField(f)),
			Code:    ErrIdentityField,
		}}
	}
	return nil
}

// validateFields checks each field's name and type reference.
func validateFields(desc *ir.SchemaDescriptor, path string, fields map[string]ir.FieldMeta) []ValidationError {
	var errs []ValidationError
	for _, name := range ir.SortedFieldNames(fields) {
		f := fields[name]
		fieldPath := path + ".fields." + name
		errs = append(errs, validateName(fieldPath, name, f.Name)...)
		errs = append(errs, validateFieldType(desc, fieldPath, f)...)
	}
	return errs
}

// validateFieldType checks that exactly one of scalar, enum and non-model
// is set and that it resolves.
func validateFieldType(desc *ir.SchemaDescriptor, path string, f ir.FieldMeta) []ValidationError {
	set := 0
	for _, s := range []string{string(f.Type.Scalar), f.Type.Enum, f.Type.NonModel} {
		if s != "" {
			set++
		}
	}

	// E104: exactly one kind
	if set != 1 {
		return []ValidationError{{
			Field:   path + ".type",
			Message: fmt.Sprintf("field %q must have exactly one of scalar, enum or non_model", f.Name),
			Code:    ErrInvalidFieldType,
		}}
	}

	switch {
	case f.Type.Scalar != "":
		if !slices.Contains(ir.Scalars, f.Type.Scalar) {
			return []ValidationError{{
				Field:   path + ".type",
				Message: fmt.Sprintf("unknown scalar %q for field %q", f.Type.Scalar, f.Name),
				Code:    ErrInvalidFieldType,
			}}
		}
	case f.Type.Enum != "":
		if _, ok := desc.Enums[f.Type.Enum]; !ok {
			return []ValidationError{{
				Field:   path + ".type",
				Message: fmt.Sprintf("undefined enum %q for field %q", f.Type.Enum, f.Name),
				Code:    ErrInvalidFieldType,
			}}
		}
	default:
		if _, ok := desc.NonModels[f.Type.NonModel]; !ok {
			return []ValidationError{{
				Field:   path + ".type",
				Message: fmt.Sprintf("undefined non-model type %q for field %q", f.Type.NonModel, f.Name),
				Code:    ErrInvalidFieldType,
			}}
		}
	}
	return nil
}

// validateEnum checks an enum's name and values.
func validateEnum(name string, e ir.EnumMeta) []ValidationError {
	path := "enums." + name
	errs := validateName(path, name, e.Name)

	// E106: at least one value, no duplicates
	if len(e.Values) == 0 {
		errs = append(errs, ValidationError{
			Field:   path + ".values",
			Message: fmt.Sprintf("enum %q has no values", name),
			Code:    ErrInvalidEnum,
		})
	}
	seen := make(map[string]bool, len(e.Values))
	for i, v := range e.Values {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.values[%d]", path, i),
				Message: "enum value must be non-empty",
				Code:    ErrInvalidEnum,
			})
			continue
		}
		if seen[v] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.values[%d]", path, i),
				Message: fmt.Sprintf("duplicate enum value %q", v),
				Code:    ErrInvalidEnum,
			})
		}
		seen[v] = true
	}
	return errs
}

func describeField(f ir.FieldMeta) string {
	s := f.Type.String()
	if f.IsArray {
		s = "[" + s + "]"
	}
	if f.IsRequired {
		s += "!"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
