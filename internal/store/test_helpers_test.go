package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tessera/internal/ir"
)

// testSchema declares a single Post model.
func testSchema() *ir.SchemaDescriptor {
	return &ir.SchemaDescriptor{
		Version: ir.SchemaFormatVersion,
		Models: map[string]ir.ModelMeta{
			"Post": {
				Name:     "Post",
				Syncable: true,
				Fields: map[string]ir.FieldMeta{
					"id":     {Name: "id", Type: ir.FieldType{Scalar: ir.ScalarID}, IsRequired: true},
					"title":  {Name: "title", Type: ir.FieldType{Scalar: ir.ScalarString}, IsRequired: true},
					"rating": {Name: "rating", Type: ir.FieldType{Scalar: ir.ScalarInt}},
					"tags":   {Name: "tags", Type: ir.FieldType{Scalar: ir.ScalarString}, IsArray: true},
				},
			},
		},
	}
}

// createTestStore opens a SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testSchema())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestMemory creates an in-memory engine without a snapshot file.
func createTestMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory(testSchema())
	if err != nil {
		t.Fatalf("NewMemory() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// postRow builds a Post row.
func postRow(id, title string, rating int64, tags ...string) Row {
	fields := ir.IRObject{
		"id":     ir.IRString(id),
		"title":  ir.IRString(title),
		"rating": ir.IRInt(rating),
	}
	if len(tags) > 0 {
		arr := make(ir.IRArray, len(tags))
		for i, tag := range tags {
			arr[i] = ir.IRString(tag)
		}
		fields["tags"] = arr
	}
	return Row{Model: "Post", ID: id, Fields: fields}
}

// rowIDs returns the ids of rows in order.
func rowIDs(rows []Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}
