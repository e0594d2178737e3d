package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tessera/internal/ir"
)

// LoadSchema reads a schema from path and validates it. The format is
// chosen by extension: .cue (or a directory of .cue files), .yaml/.yml,
// or .json.
//
// Validation failures are returned as a *SchemaError carrying every
// ValidationError found.
func LoadSchema(path string) (*ir.SchemaDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	var desc *ir.SchemaDescriptor
	switch {
	case info.IsDir():
		desc, err = loadCUEDir(path)
	case filepath.Ext(path) == ".cue":
		desc, err = loadCUEFile(path)
	case filepath.Ext(path) == ".yaml", filepath.Ext(path) == ".yml", filepath.Ext(path) == ".json":
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			desc, err = DecodeSchema(bytes.NewReader(data))
		}
	default:
		return nil, fmt.Errorf("load schema: unsupported schema file %q", path)
	}
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}

	if errs := ValidateSchema(desc); len(errs) > 0 {
		return nil, &SchemaError{Path: path, Errors: errs}
	}
	return desc, nil
}

// DecodeSchema reads a YAML or JSON schema document and builds its
// descriptor. Unknown keys are rejected.
func DecodeSchema(r io.Reader) (*ir.SchemaDescriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty schema document")
		}
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return Build(&doc)
}

func loadCUEFile(path string) (*ir.SchemaDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileSchema(v)
}

func loadCUEDir(dir string) (*ir.SchemaDescriptor, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileSchema(value)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// SchemaError reports a schema that loaded but failed validation.
type SchemaError struct {
	Path   string
	Errors []ValidationError
}

func (e *SchemaError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("schema %s: %v", e.Path, e.Errors[0])
	}
	return fmt.Sprintf("schema %s: %d validation errors, first: %v", e.Path, len(e.Errors), e.Errors[0])
}
