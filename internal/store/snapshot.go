package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/tessera/internal/ir"
)

// snapshotVersion is bumped when the snapshot layout changes.
const snapshotVersion = 1

// snapshot is the on-disk CBOR layout of a Memory engine. Field values
// are carried as canonical JSON so they round-trip without loss.
type snapshot struct {
	Version int                               `cbor:"version"`
	Seq     int64                             `cbor:"seq"`
	Tables  map[string]map[string]snapshotRow `cbor:"tables"`
}

type snapshotRow struct {
	Seq    int64  `cbor:"seq"`
	Fields []byte `cbor:"fields"`
}

var snapshotEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

var snapshotDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// loadSnapshot replaces the tables with the snapshot's contents. A missing
// file leaves the engine empty. Models no longer in the schema are skipped.
func (m *Memory) loadSnapshot() error {
	data, err := os.ReadFile(m.snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := snapshotDecMode.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", m.snapshotPath, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("snapshot %s: unsupported version %d", m.snapshotPath, snap.Version)
	}

	for model, rows := range snap.Tables {
		table, ok := m.tables[model]
		if !ok {
			continue
		}
		for id, r := range rows {
			v, err := ir.UnmarshalIRValue(r.Fields)
			if err != nil {
				return fmt.Errorf("snapshot %s/%s: %w", model, id, err)
			}
			fields, ok := v.(ir.IRObject)
			if !ok {
				return fmt.Errorf("snapshot %s/%s: fields are %s, not an object", model, id, ir.KindOf(v))
			}
			table[id] = memRow{seq: r.Seq, fields: fields}
		}
	}
	m.seq = snap.Seq
	return nil
}

// writeSnapshot encodes tables and replaces the snapshot file
// atomically.
func (m *Memory) writeSnapshot(tables map[string]map[string]memRow, seq int64) error {
	snap := snapshot{
		Version: snapshotVersion,
		Seq:     seq,
		Tables:  make(map[string]map[string]snapshotRow, len(tables)),
	}
	for model, table := range tables {
		rows := make(map[string]snapshotRow, len(table))
		for id, r := range table {
			b, err := ir.MarshalCanonical(r.fields)
			if err != nil {
				return fmt.Errorf("snapshot %s/%s: %w", model, id, err)
			}
			rows[id] = snapshotRow{Seq: r.seq, Fields: b}
		}
		snap.Tables[model] = rows
	}

	data, err := snapshotEncMode.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.snapshotPath), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.snapshotPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
