package omgr

import (
	"context"
	"log/slog"

	"github.com/roach88/dobj/internal/codec"
	"github.com/roach88/dobj/internal/dobj"
)

// Relay keeps a proxy copy registered with a replica manager in step with an
// authoritative object on another manager. It is a proxy subscriber of the
// authoritative object: the snapshot it receives on subscription seeds the
// proxy, and every event after that crosses in wire form and is applied
// lazily on the replica side.
//
// Work triggered by the origin runs on the origin's dispatcher goroutine
// only as far as encoding; everything touching the proxy is queued on the
// replica manager.
type Relay struct {
	replica *Manager
	origin  *Manager
	proxy   dobj.DObject

	origOid int
	err     error
	ready   []func(dobj.DObject)
}

// NewRelay creates a relay that will seed proxy, an unregistered object of
// the same class as the authoritative one, and register it with m.
func (m *Manager) NewRelay(origin *Manager, proxy dobj.DObject) *Relay {
	return &Relay{replica: m, origin: origin, proxy: proxy}
}

// Subscribe asks the origin for oid. fn, if not nil, runs on the replica
// goroutine once the proxy is registered.
func (r *Relay) Subscribe(oid int, fn func(proxy dobj.DObject)) {
	if fn != nil {
		r.ready = append(r.ready, fn)
	}
	r.origin.SubscribeToObject(oid, r)
}

// Close unsubscribes from the origin and removes the proxy from the
// replica. It runs on the replica goroutine.
func (r *Relay) Close() {
	r.replica.PostRunnable(func() {
		if r.origOid == 0 {
			return
		}
		r.origin.UnsubscribeFromObject(r.origOid, r)
		r.replica.ClearProxyObject(r.origOid, r.proxy)
	})
}

// Proxy returns the proxy copy.
func (r *Relay) Proxy() dobj.DObject {
	return r.proxy
}

// Err returns the reason the subscription failed, if it did.
func (r *Relay) Err() error {
	return r.err
}

// ObjectAvailable seeds the proxy with the state of obj.
func (r *Relay) ObjectAvailable(obj dobj.DObject) {
	snap, err := codec.EncodeObject(obj)
	if err != nil {
		slog.Error("relay: unable to encode object", "dobj", obj.Base().Which(), "error", err)
		r.replica.PostRunnable(func() { r.err = err })
		return
	}
	r.replica.PostRunnable(func() { r.install(snap) })
}

func (r *Relay) install(snap codec.Snapshot) {
	if r.origOid != 0 {
		// Repeated subscription: the proxy already tracks the origin.
		return
	}
	if err := codec.DecodeObject(r.proxy, snap); err != nil {
		slog.Error("relay: unable to seed proxy", "oid", snap.Oid, "error", err)
		r.err = err
		return
	}
	r.origOid = snap.Oid
	r.replica.RegisterProxyObject(r.proxy, r.origin)

	for _, fn := range r.ready {
		fn(r.proxy)
	}
	r.ready = nil
}

// RequestFailed records why the subscription failed.
func (r *Relay) RequestFailed(oid int, err error) {
	slog.Warn("relay: subscription failed", "oid", oid, "error", err)
	r.replica.PostRunnable(func() { r.err = err })
}

// EventReceived forwards ev to the replica.
func (r *Relay) EventReceived(ev dobj.Event) {
	data, err := codec.Encode(ev)
	if err != nil {
		slog.Error("relay: unable to encode event", "event", ev.String(), "error", err)
		return
	}
	r.replica.post(unit{run: func(ctx context.Context) { r.deliver(ctx, data) }})
}

func (r *Relay) deliver(ctx context.Context, data []byte) {
	if r.origOid == 0 {
		slog.Debug("relay: dropping event for unseeded proxy")
		return
	}
	base := r.proxy.Base()
	ev, err := codec.Decode(data, func(oid int) *dobj.Object {
		if oid == r.origOid {
			return base
		}
		return nil
	})
	if err != nil {
		slog.Warn("relay: undecodable event", "dobj", base.Which(), "error", err)
		r.replica.metrics.Failed.Inc()
		return
	}
	ev.SetTargetOid(base.Oid())
	r.replica.dispatch(ctx, ev, false)
}
