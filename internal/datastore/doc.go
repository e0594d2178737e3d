// Package datastore is the public face of the runtime. A DataStore ties
// a model registry to a lazily constructed storage engine and offers
// save, query, observe and delete over records.
//
// Usage:
//
//	reg := model.NewRegistry()
//	ctors, err := reg.InitSchema(desc)
//	ds := datastore.New(reg, store.SQLiteFactory("app.db"))
//	defer ds.Close()
//
//	post, _ := ctors["Post"].NewFromNative(map[string]any{"title": "hi"})
//	_, err = ds.Save(ctx, post)
//	res, err := ds.Query(ctx, ctors["Post"], post.ID())
//
// The storage engine is built on the first Save, Query, Observe or
// Delete, exactly once however many calls race.
package datastore
