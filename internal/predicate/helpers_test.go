package predicate

import "github.com/roach88/tessera/internal/ir"

func postFields() map[string]ir.FieldMeta {
	scalar := func(name string, s ir.Scalar) ir.FieldMeta {
		return ir.FieldMeta{Name: name, Type: ir.FieldType{Scalar: s}}
	}
	return map[string]ir.FieldMeta{
		"id":        scalar("id", ir.ScalarID),
		"title":     scalar("title", ir.ScalarString),
		"rating":    scalar("rating", ir.ScalarInt),
		"score":     scalar("score", ir.ScalarFloat),
		"published": scalar("published", ir.ScalarBoolean),
		"created":   scalar("created", ir.ScalarTimestamp),
		"status":    {Name: "status", Type: ir.FieldType{Enum: "Status"}},
		"address":   {Name: "address", Type: ir.FieldType{NonModel: "Address"}},
		"tags":      {Name: "tags", Type: ir.FieldType{Scalar: ir.ScalarString}, IsArray: true},
	}
}
