package omgr

import (
	"context"
	"log/slog"

	"github.com/roach88/dobj/internal/dobj"
)

// SubscribeToObject queues a subscription of sub to oid. sub is told the
// outcome on the dispatcher goroutine: ObjectAvailable on success,
// RequestFailed with a *dobj.NoSuchObjectError or *dobj.ObjectAccessError
// otherwise. Subscribing twice delivers the object again without adding a
// second registration.
func (m *Manager) SubscribeToObject(oid int, sub dobj.Subscriber) {
	m.post(unit{run: func(context.Context) { m.subscribe(oid, sub) }})
}

// UnsubscribeFromObject queues the removal of sub from oid's subscribers.
func (m *Manager) UnsubscribeFromObject(oid int, sub dobj.Subscriber) {
	m.post(unit{run: func(context.Context) { m.unsubscribe(oid, sub) }})
}

func (m *Manager) subscribe(oid int, sub dobj.Subscriber) {
	if oid <= 0 {
		informFailed(sub, oid, &dobj.ObjectAccessError{Key: dobj.MsgInvalidOid})
		return
	}

	obj := m.Object(oid)
	if obj == nil {
		informFailed(sub, oid, &dobj.NoSuchObjectError{Oid: oid})
		return
	}

	base := obj.Base()
	if !base.CheckSubscribePermission(sub) {
		m.metrics.Denied.Inc()
		informFailed(sub, oid, &dobj.ObjectAccessError{Key: dobj.MsgAccessDenied})
		return
	}

	if !base.HasSubscriber(sub) {
		base.AddSubscriber(sub)
	}
	informAvailable(sub, obj)
}

func (m *Manager) unsubscribe(oid int, sub dobj.Subscriber) {
	obj := m.Object(oid)
	if obj == nil {
		slog.Debug("unsubscribe from non-existent object", "oid", oid)
		return
	}
	base := obj.Base()
	if !base.HasSubscriber(sub) {
		slog.Warn("unsubscribe of non-subscriber", "dobj", base.Which())
		return
	}
	base.RemoveSubscriber(sub)
}

func informAvailable(sub dobj.Subscriber, obj dobj.DObject) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("subscriber choked during object available notification",
				"dobj", obj.Base().Which(),
				"panic", r)
		}
	}()
	sub.ObjectAvailable(obj)
}

func informFailed(sub dobj.Subscriber, oid int, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("subscriber choked during request failed notification",
				"oid", oid,
				"panic", r)
		}
	}()
	sub.RequestFailed(oid, err)
}
