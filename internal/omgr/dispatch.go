package omgr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/dobj/internal/dobj"
	"github.com/roach88/dobj/internal/journal"
)

// processUnit runs one queued unit. Called only from the dispatcher
// goroutine.
func (m *Manager) processUnit(ctx context.Context, u unit) {
	m.metrics.QueueDepth.Set(float64(m.queue.Len()))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("execution unit failed",
				"unit", u.String(),
				"panic", r)
			m.metrics.Failed.Inc()
		}
	}()

	if u.run != nil {
		u.run(ctx)
		return
	}

	ev := u.event
	if p, ok := m.proxy(ev.TargetOid()); ok {
		// Rewrite into the originating manager's id space and let it
		// handle the event.
		ev.SetTargetOid(p.origOid)
		p.origin.PostEvent(ev)
		return
	}
	m.dispatch(ctx, ev, true)
}

// dispatch processes ev on this manager. Events relayed from an
// authoritative copy were vetted there and skip the permission check.
func (m *Manager) dispatch(ctx context.Context, ev dobj.Event, checkPermission bool) {
	if c, ok := ev.(*dobj.CompoundEvent); ok {
		m.processCompound(ctx, c, checkPermission)
		return
	}
	m.processEvent(ctx, ev, checkPermission)
}

func (m *Manager) target(ev dobj.Event) *dobj.Object {
	obj := m.Object(ev.TargetOid())
	if obj == nil {
		slog.Debug("event target no longer exists", "event", ev.String())
		m.metrics.Dropped.Inc()
		return nil
	}
	return obj.Base()
}

func (m *Manager) admit(target *dobj.Object, ev dobj.Event, checkPermission bool) bool {
	if !checkPermission || target.CheckDispatchPermission(ev) {
		return true
	}
	slog.Warn("event failed permissions check",
		"event", ev.String(),
		"dobj", target.Which())
	m.metrics.Denied.Inc()
	return false
}

func (m *Manager) processEvent(ctx context.Context, ev dobj.Event, checkPermission bool) {
	target := m.target(ev)
	if target == nil {
		return
	}
	if !m.admit(target, ev, checkPermission) {
		return
	}
	if m.dispatchEvent(ctx, ev, target, "") {
		target.NotifyProxies(ev)
	}
}

// processCompound admits each member independently, dispatches the
// admitted ones in order and hands proxies a single compound of the
// dispatched members that are not private.
func (m *Manager) processCompound(ctx context.Context, c *dobj.CompoundEvent, checkPermission bool) {
	target := m.target(c)
	if target == nil {
		return
	}

	var admitted []dobj.Event
	for _, ev := range c.Events() {
		if m.admit(target, ev, checkPermission) {
			admitted = append(admitted, ev)
		}
	}
	if len(admitted) == 0 {
		return
	}

	var batch string
	if m.journal != nil {
		batch = m.batchIDs.Generate()
	}

	var relayed []dobj.Event
	for _, ev := range admitted {
		if m.dispatchEvent(ctx, ev, target, batch) && !ev.IsPrivate() {
			relayed = append(relayed, ev)
		}
	}
	if len(relayed) == 0 {
		return
	}

	out := dobj.CompoundOf(c.TargetOid(), relayed...)
	out.SetSourceOid(c.SourceOid())
	out.SetTransport(c.Transport())
	target.NotifyProxies(out)
}

// dispatchEvent applies ev to target after bookkeeping and notifies
// listeners if the event reports a change. It reports whether the event
// should be passed on to proxies.
func (m *Manager) dispatchEvent(ctx context.Context, ev dobj.Event, target *dobj.Object, batch string) bool {
	if !m.bookkeep(ev, target) {
		return false
	}
	if _, ok := ev.(*dobj.ObjectDestroyedEvent); ok {
		defer target.SetManager(nil)
	}

	notify, err := ev.ApplyToObject(target)
	if err != nil {
		slog.Warn("failure processing event",
			"event", ev.String(),
			"dobj", target.Which(),
			"error", err)
		m.metrics.Failed.Inc()
		return false
	}
	if notify {
		target.NotifyListeners(ev)
	}

	m.metrics.Dispatched.Inc()
	m.record(ctx, ev, batch)
	return true
}

// bookkeep maintains the object table and oid list references. It reports
// false if the event must be aborted.
func (m *Manager) bookkeep(ev dobj.Event, target *dobj.Object) bool {
	switch e := ev.(type) {
	case *dobj.ObjectDestroyedEvent:
		m.objectDestroyed(target)
	case *dobj.ObjectAddedEvent:
		return m.objectAdded(e, target)
	case *dobj.ObjectRemovedEvent:
		m.objectRemoved(e, target)
	}
	return true
}

func (m *Manager) record(ctx context.Context, ev dobj.Event, batch string) {
	if m.journal == nil {
		return
	}
	entry, err := journal.NewEntry(m.clock.Next(), batch, ev)
	if err == nil {
		err = m.journal.Append(ctx, entry)
	}
	if err != nil {
		slog.Error("failed to journal event",
			"event", ev.String(),
			"error", fmt.Errorf("record: %w", err))
	}
}
