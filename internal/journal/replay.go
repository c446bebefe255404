package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/dobj/internal/codec"
	"github.com/roach88/dobj/internal/dobj"
)

// ReplayResult summarizes one replay.
type ReplayResult struct {
	Oid      int
	FromSeq  int64
	LastSeq  int64
	Applied  int
	Skipped  int
	Failures int
}

// Replay rebuilds the state of oid into obj. If the journal holds a
// snapshot of oid, obj is initialized from it first and only later events
// are applied. Events are applied lazily and listeners of obj are notified
// of every event that reports a change.
//
// An event that fails to decode or apply is logged and counted, and replay
// continues with the next one.
func (s *Store) Replay(ctx context.Context, oid int, obj dobj.DObject) (ReplayResult, error) {
	res := ReplayResult{Oid: oid}
	base := obj.Base()

	snap, err := s.Snapshot(ctx, oid)
	switch {
	case err == nil:
		var cs codec.Snapshot
		if err := json.Unmarshal(snap.Payload, &cs); err != nil {
			return res, fmt.Errorf("replay %d: decode snapshot: %w", oid, err)
		}
		if err := codec.DecodeObject(obj, cs); err != nil {
			return res, fmt.Errorf("replay %d: %w", oid, err)
		}
		res.FromSeq = snap.Seq
	case errors.Is(err, ErrNoSnapshot):
		base.SetOid(oid)
	default:
		return res, err
	}

	entries, err := s.Events(ctx, oid)
	if err != nil {
		return res, fmt.Errorf("replay %d: %w", oid, err)
	}

	resolve := func(target int) *dobj.Object {
		if target == oid {
			return base
		}
		return nil
	}

	for _, e := range entries {
		if e.Seq <= res.FromSeq {
			res.Skipped++
			continue
		}
		res.LastSeq = e.Seq

		ev, err := codec.Decode(e.Payload, resolve)
		if err != nil {
			slog.Warn("replay: undecodable event",
				"oid", oid,
				"seq", e.Seq,
				"error", err)
			res.Failures++
			continue
		}
		for _, member := range flatten(ev) {
			notify, err := member.ApplyToObject(base)
			if err != nil {
				slog.Warn("replay: event failed to apply",
					"oid", oid,
					"seq", e.Seq,
					"event", member.String(),
					"error", err)
				res.Failures++
				continue
			}
			res.Applied++
			if notify {
				base.NotifyListeners(member)
			}
		}
	}

	return res, nil
}

func flatten(ev dobj.Event) []dobj.Event {
	if c, ok := ev.(*dobj.CompoundEvent); ok {
		return c.Events()
	}
	return []dobj.Event{ev}
}
