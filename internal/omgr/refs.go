package omgr

import (
	"log/slog"
	"slices"

	"github.com/roach88/dobj/internal/dobj"
)

// reference records that field of the object reffer holds an oid.
type reference struct {
	reffer int
	field  string
}

// objectAdded tracks the new reference. Oids of unknown objects are refused
// for authoritative objects; proxies hold oids of another id space and do no
// tracking.
func (m *Manager) objectAdded(ev *dobj.ObjectAddedEvent, target *dobj.Object) bool {
	if !m.IsManager(target) {
		return true
	}
	oid := ev.Oid()
	if m.Object(oid) == nil {
		slog.Info("rejecting object added event of non-existent object",
			"reffer", target.Oid(),
			"reffed", oid)
		if ev.AlreadyApplied() {
			// Undo the eager add so the authoritative copy matches what
			// replicas will see.
			undo := dobj.NewObjectRemovedEvent(target.Oid(), ev.Name(), oid)
			if _, err := undo.ApplyToObject(target); err != nil {
				slog.Warn("unable to undo rejected object add", "dobj", target.Which(), "error", err)
			}
		}
		return false
	}

	ref := reference{reffer: target.Oid(), field: ev.Name()}
	if slices.Contains(m.refs[oid], ref) {
		slog.Warn("ignoring request to track existing reference",
			"reffer", ref.reffer,
			"field", ref.field,
			"reffed", oid)
		return true
	}
	m.refs[oid] = append(m.refs[oid], ref)
	return true
}

func (m *Manager) objectRemoved(ev *dobj.ObjectRemovedEvent, target *dobj.Object) {
	if !m.IsManager(target) {
		return
	}
	refs, ok := m.refs[ev.Oid()]
	if !ok {
		// The referenced object was destroyed and has already dropped its
		// references.
		return
	}
	ref := reference{reffer: target.Oid(), field: ev.Name()}
	idx := slices.Index(refs, ref)
	if idx < 0 {
		slog.Warn("unable to locate reference for removal",
			"reffer", ref.reffer,
			"field", ref.field,
			"reffed", ev.Oid())
		return
	}
	m.refs[ev.Oid()] = slices.Delete(refs, idx, idx+1)
}

// objectDestroyed removes target from the table, asks every list
// referencing it to drop the reference, and forgets the references its own
// lists hold. The target keeps its manager until its death listeners have
// been notified; dispatchEvent detaches it.
func (m *Manager) objectDestroyed(target *dobj.Object) {
	oid := target.Oid()
	tracked := m.IsManager(target)

	m.mu.Lock()
	delete(m.objects, oid)
	delete(m.proxies, oid)
	m.mu.Unlock()

	if !tracked {
		return
	}

	refs := m.refs[oid]
	delete(m.refs, oid)
	for _, ref := range refs {
		if m.Object(ref.reffer) == nil {
			slog.Info("dangling reference from inactive object",
				"reffer", ref.reffer,
				"field", ref.field,
				"reffed", oid)
			continue
		}
		m.PostEvent(dobj.NewObjectRemovedEvent(ref.reffer, ref.field, oid))
	}

	for _, name := range target.AttributeNames() {
		list, ok := target.Attribute(name).(*dobj.OidList)
		if !ok {
			continue
		}
		for reffed := range list.All() {
			m.clearReference(oid, name, reffed)
		}
	}
}

func (m *Manager) clearReference(reffer int, field string, reffed int) {
	ref := reference{reffer: reffer, field: field}
	refs := m.refs[reffed]
	if idx := slices.Index(refs, ref); idx >= 0 {
		m.refs[reffed] = slices.Delete(refs, idx, idx+1)
		return
	}
	// Both ends may be destroyed before the generated removal is processed.
	if m.Object(reffed) != nil {
		slog.Warn("requested to clear out non-existent reference",
			"reffer", reffer,
			"field", field,
			"reffed", reffed)
	}
}

// References returns the number of oid list fields holding oid.
func (m *Manager) References(oid int) int {
	return len(m.refs[oid])
}
