package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dobj/internal/dobj"
)

// ErrNoSnapshot is returned when an oid has no journaled snapshot.
var ErrNoSnapshot = errors.New("journal: no snapshot")

// Events returns the entries targeting oid in seq order.
func (s *Store) Events(ctx context.Context, oid int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, target_oid, kind, batch, payload
		FROM events
		WHERE target_oid = ?
		ORDER BY seq ASC
	`, oid)
	if err != nil {
		return nil, fmt.Errorf("read events for %d: %w", oid, err)
	}
	return scanEntries(rows)
}

// All returns every entry in seq order.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, target_oid, kind, batch, payload
		FROM events
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return scanEntries(rows)
}

// Batch returns the entries dispatched as members of one compound event.
func (s *Store) Batch(ctx context.Context, batch string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, target_oid, kind, batch, payload
		FROM events
		WHERE batch = ?
		ORDER BY seq ASC
	`, batch)
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", batch, err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			kind    string
			payload string
		)
		if err := rows.Scan(&e.Seq, &e.TargetOid, &kind, &e.Batch, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = dobj.Kind(kind)
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// Oids returns every oid with a snapshot or an event, ascending.
func (s *Store) Oids(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oid FROM snapshots
		UNION
		SELECT DISTINCT target_oid FROM events
		ORDER BY 1 ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read oids: %w", err)
	}
	defer rows.Close()

	var oids []int
	for rows.Next() {
		var oid int
		if err := rows.Scan(&oid); err != nil {
			return nil, fmt.Errorf("scan oid: %w", err)
		}
		oids = append(oids, oid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate oids: %w", err)
	}
	return oids, nil
}

// LastSeq returns the largest journaled seq, or 0 for an empty journal. A
// dispatcher resuming from a journal starts its clock here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM events
			UNION ALL
			SELECT seq FROM snapshots
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq.Int64, nil
}

// Snapshot returns the journaled snapshot of oid.
func (s *Store) Snapshot(ctx context.Context, oid int) (Snapshot, error) {
	var (
		snap    Snapshot
		payload string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT oid, class, seq, payload FROM snapshots WHERE oid = ?
	`, oid).Scan(&snap.Oid, &snap.Class, &snap.Seq, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("oid %d: %w", oid, ErrNoSnapshot)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %d: %w", oid, err)
	}
	snap.Payload = []byte(payload)
	return snap, nil
}
