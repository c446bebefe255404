package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/dobj/internal/codec"
	"github.com/roach88/dobj/internal/dobj"
)

// Entry is one journaled event.
type Entry struct {
	Seq       int64
	TargetOid int
	Kind      dobj.Kind
	// Batch groups the members of one compound dispatch. Empty for events
	// dispatched on their own.
	Batch   string
	Payload []byte
}

// Snapshot is the journaled state of one object at seq.
type Snapshot struct {
	Oid     int
	Class   string
	Seq     int64
	Payload []byte
}

// NewEntry encodes ev as an entry at seq.
func NewEntry(seq int64, batch string, ev dobj.Event) (Entry, error) {
	payload, err := codec.Encode(ev)
	if err != nil {
		return Entry{}, fmt.Errorf("journal entry %d: %w", seq, err)
	}
	return Entry{
		Seq:       seq,
		TargetOid: ev.TargetOid(),
		Kind:      ev.Kind(),
		Batch:     batch,
		Payload:   payload,
	}, nil
}

// SnapshotOf encodes the current state of obj as a snapshot at seq.
func SnapshotOf(seq int64, obj dobj.DObject) (Snapshot, error) {
	cs, err := codec.EncodeObject(obj)
	if err != nil {
		return Snapshot{}, err
	}
	payload, err := json.Marshal(cs)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %d: %w", cs.Oid, err)
	}
	return Snapshot{Oid: cs.Oid, Class: cs.Class, Seq: seq, Payload: payload}, nil
}

// Append inserts e. Seq values are unique; appending the same seq twice is
// an error.
func (s *Store) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (seq, target_oid, kind, batch, payload)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.TargetOid,
		string(e.Kind),
		e.Batch,
		string(e.Payload),
	)
	if err != nil {
		return fmt.Errorf("append event %d: %w", e.Seq, err)
	}
	return nil
}

// SaveSnapshot records the state of an object, replacing any earlier
// snapshot of the same oid.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (oid, class, seq, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(oid) DO UPDATE SET
			class = excluded.class,
			seq = excluded.seq,
			payload = excluded.payload
	`,
		snap.Oid,
		snap.Class,
		snap.Seq,
		string(snap.Payload),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %d: %w", snap.Oid, err)
	}
	return nil
}
