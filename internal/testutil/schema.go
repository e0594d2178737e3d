package testutil

import "github.com/roach88/tessera/internal/ir"

// Schema returns the descriptor shared by tests across packages:
//
//   - Model and LocalModel: {id, field1}, syncable and non-syncable
//   - Post: a model exercising every field kind
//   - Comment: a second model, for cross-model filtering
//   - Address: a non-model type
//   - Status: an enum
//
// Each call returns a fresh copy.
func Schema() *ir.SchemaDescriptor {
	str := ir.FieldType{Scalar: ir.ScalarString}
	return &ir.SchemaDescriptor{
		Version: ir.SchemaFormatVersion,
		Models: map[string]ir.ModelMeta{
			"Model": {
				Name:       "Model",
				PluralName: "Models",
				Syncable:   true,
				Fields: map[string]ir.FieldMeta{
					"id":     idField(),
					"field1": {Name: "field1", Type: str},
				},
			},
			"LocalModel": {
				Name:       "LocalModel",
				PluralName: "LocalModels",
				Syncable:   false,
				Fields: map[string]ir.FieldMeta{
					"id":     idField(),
					"field1": {Name: "field1", Type: str},
				},
			},
			"Post": {
				Name:       "Post",
				PluralName: "Posts",
				Syncable:   true,
				Fields: map[string]ir.FieldMeta{
					"id":        idField(),
					"title":     {Name: "title", Type: str, IsRequired: true},
					"rating":    {Name: "rating", Type: ir.FieldType{Scalar: ir.ScalarInt}},
					"score":     {Name: "score", Type: ir.FieldType{Scalar: ir.ScalarFloat}},
					"published": {Name: "published", Type: ir.FieldType{Scalar: ir.ScalarBoolean}},
					"status":    {Name: "status", Type: ir.FieldType{Enum: "Status"}},
					"address":   {Name: "address", Type: ir.FieldType{NonModel: "Address"}},
					"tags":      {Name: "tags", Type: str, IsArray: true},
				},
			},
			"Comment": {
				Name:       "Comment",
				PluralName: "Comments",
				Syncable:   true,
				Fields: map[string]ir.FieldMeta{
					"id":      idField(),
					"postID":  {Name: "postID", Type: ir.FieldType{Scalar: ir.ScalarID}, IsRequired: true},
					"content": {Name: "content", Type: str},
				},
			},
		},
		NonModels: map[string]ir.TypeMeta{
			"Address": {
				Name: "Address",
				Fields: map[string]ir.FieldMeta{
					"street": {Name: "street", Type: str, IsRequired: true},
					"city":   {Name: "city", Type: str},
				},
			},
		},
		Enums: map[string]ir.EnumMeta{
			"Status": {Name: "Status", Values: []string{"DRAFT", "PUBLISHED"}},
		},
	}
}

func idField() ir.FieldMeta {
	return ir.FieldMeta{Name: "id", Type: ir.FieldType{Scalar: ir.ScalarID}, IsRequired: true}
}
