// Package compiler turns schema sources into validated schema descriptors.
//
// Sources are CUE (a file or a directory of .cue files), YAML or JSON.
// All three decode into a Document whose field types use GraphQL
// notation ("String!", "[Int]"); Build resolves names and ValidateSchema
// checks the result, reporting every problem with an E1xx code.
package compiler
