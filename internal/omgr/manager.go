package omgr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/roach88/dobj/internal/dobj"
	"github.com/roach88/dobj/internal/journal"
)

// Journal receives every dispatched event and every registration snapshot.
// Implemented by *journal.Store.
type Journal interface {
	Append(ctx context.Context, e journal.Entry) error
	SaveSnapshot(ctx context.Context, snap journal.Snapshot) error
}

// proxyRef maps a locally registered proxy back to the object it mirrors.
type proxyRef struct {
	origOid int
	origin  dobj.Manager
}

// Manager owns a table of distributed objects and dispatches their events.
//
// Thread-safety model:
//   - PostEvent, PostRunnable, SubscribeToObject, UnsubscribeFromObject,
//     DestroyObject, Object: safe from any goroutine
//   - Run, Drain: exactly one goroutine at a time
//   - everything else, and every registered object: dispatcher goroutine
//     only, or before Run starts
type Manager struct {
	queue *unitQueue
	clock *Clock

	mu      sync.Mutex
	objects map[int]dobj.DObject
	proxies map[int]proxyRef
	nextOid int

	// refs maps a referenced oid to the oid list fields referencing it.
	// Dispatcher goroutine only.
	refs map[int][]reference

	authority  bool
	controller dobj.AccessController
	journal    Journal
	metrics    *Metrics
	batchIDs   BatchIDGenerator
}

// Option configures a Manager.
type Option func(*Manager)

// WithJournal records dispatched events and registration snapshots in j.
func WithJournal(j Journal) Option {
	return func(m *Manager) {
		m.journal = j
	}
}

// WithMetrics replaces the default unregistered metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithAuthority sets whether objects registered with the manager are
// authoritative. Defaults to true; a replica manager uses false.
func WithAuthority(authoritative bool) Option {
	return func(m *Manager) {
		m.authority = authoritative
	}
}

// WithAccessController installs c on every registered object that has no
// controller of its own.
func WithAccessController(c dobj.AccessController) Option {
	return func(m *Manager) {
		m.controller = c
	}
}

// WithBatchIDs sets the generator naming journal batches. Defaults to
// UUIDv7Generator.
func WithBatchIDs(gen BatchIDGenerator) Option {
	return func(m *Manager) {
		m.batchIDs = gen
	}
}

// WithClock sets the clock stamping journal entries, typically one resumed
// with NewClockAt.
func WithClock(c *Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// New creates an empty authoritative manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		queue:     newUnitQueue(),
		clock:     NewClock(),
		objects:   make(map[int]dobj.DObject),
		proxies:   make(map[int]proxyRef),
		refs:      make(map[int][]reference),
		authority: true,
		batchIDs:  UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}

	return m
}

// RegisterObject assigns obj an oid, makes this manager its manager and
// adds it to the object table. obj must not be registered elsewhere.
func (m *Manager) RegisterObject(obj dobj.DObject) int {
	base := obj.Base()

	m.mu.Lock()
	oid := m.allocOid()
	base.SetOid(oid)
	base.SetManager(m)
	if base.AccessController() == nil && m.controller != nil {
		base.SetAccessController(m.controller)
	}
	m.objects[oid] = obj
	m.mu.Unlock()

	m.snapshot(obj)
	return oid
}

// allocOid returns the next unused oid. Callers hold m.mu.
func (m *Manager) allocOid() int {
	for {
		m.nextOid = (m.nextOid + 1) % math.MaxInt32
		if m.nextOid == 0 {
			continue
		}
		if _, used := m.objects[m.nextOid]; !used {
			return m.nextOid
		}
	}
}

func (m *Manager) snapshot(obj dobj.DObject) {
	if m.journal == nil {
		return
	}
	snap, err := journal.SnapshotOf(m.clock.Next(), obj)
	if err == nil {
		err = m.journal.SaveSnapshot(context.Background(), snap)
	}
	if err != nil {
		slog.Error("failed to journal object snapshot",
			"dobj", obj.Base().Which(),
			"error", err)
	}
}

// RegisterProxyObject registers obj, a copy of an object managed by origin,
// under a new local oid. The oid obj carries on entry is taken as its oid in
// origin's id space. Events posted to the proxy are rewritten to that oid
// and forwarded to origin.
func (m *Manager) RegisterProxyObject(obj dobj.DObject, origin dobj.Manager) int {
	origOid := obj.Base().Oid()
	oid := m.RegisterObject(obj)

	m.mu.Lock()
	m.proxies[oid] = proxyRef{origOid: origOid, origin: origin}
	m.mu.Unlock()
	return oid
}

// ClearProxyObject removes a proxy from the local object table. Coordinating
// the unsubscription from the originating manager is up to the caller.
func (m *Manager) ClearProxyObject(origOid int, obj dobj.DObject) {
	oid := obj.Base().Oid()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.proxies[oid]; !ok {
		slog.Warn("missing proxy mapping for cleared proxy", "orig_oid", origOid, "oid", oid)
	}
	delete(m.proxies, oid)
	delete(m.objects, oid)
}

func (m *Manager) proxy(oid int) (proxyRef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proxies[oid]
	return p, ok
}

// Object returns the registered object with the given oid, or nil.
func (m *Manager) Object(oid int) dobj.DObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[oid]
}

// ObjectCount returns the number of registered objects.
func (m *Manager) ObjectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// IsManager reports whether obj is authoritative here: the manager is
// authoritative and obj is not a proxy.
func (m *Manager) IsManager(obj *dobj.Object) bool {
	if !m.authority {
		return false
	}
	_, proxied := m.proxy(obj.Oid())
	return !proxied
}

// PostEvent queues ev for dispatch.
func (m *Manager) PostEvent(ev dobj.Event) {
	if !m.queue.Enqueue(unit{event: ev}) {
		slog.Warn("posting event to stopped object manager", "event", ev.String())
	}
}

// PostRunnable queues fn to run on the dispatcher goroutine after every
// unit queued before it.
func (m *Manager) PostRunnable(fn func()) {
	m.post(unit{run: func(context.Context) { fn() }})
}

func (m *Manager) post(u unit) {
	if !m.queue.Enqueue(u) {
		slog.Warn("posting unit to stopped object manager", "unit", u.String())
	}
}

// DestroyObject queues the destruction of the object with the given oid.
func (m *Manager) DestroyObject(oid int) {
	if oid == 0 {
		slog.Warn("denying request to destroy oid 0")
		return
	}
	m.PostEvent(dobj.NewObjectDestroyedEvent(oid))
}

// RemovedLastSubscriber destroys obj if it asked to be destroyed once
// unobserved.
func (m *Manager) RemovedLastSubscriber(obj *dobj.Object, deathWish bool) {
	if deathWish {
		m.DestroyObject(obj.Oid())
	}
}

// ListenerFailed counts a listener that panicked during notification.
func (m *Manager) ListenerFailed(*dobj.Object, dobj.Event, any) {
	m.metrics.ListenerFailures.Inc()
}

// Run processes queued units until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
//
// A failing unit is logged and processing continues.
func (m *Manager) Run(ctx context.Context) error {
	slog.Info("object manager starting")

	for {
		if u, ok := m.queue.TryDequeue(); ok {
			m.processUnit(ctx, u)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("object manager stopping: context cancelled")
			m.queue.Close()
			return ctx.Err()

		case _, open := <-m.queue.Wait():
			// The signal channel is closed with the queue; keep draining
			// until it is empty.
			if !open && m.queue.Len() == 0 {
				slog.Info("object manager stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once the queued units are processed.
func (m *Manager) Stop() {
	m.queue.Close()
}

// Drain processes queued units on the calling goroutine until the queue is
// empty, including units queued while draining. It returns the number of
// units processed. Drain must not be used while Run is running.
func (m *Manager) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		u, ok := m.queue.TryDequeue()
		if !ok {
			break
		}
		m.processUnit(ctx, u)
		n++
	}
	return n
}

// String describes the manager for logging.
func (m *Manager) String() string {
	return fmt.Sprintf("omgr[objects=%d, queued=%d, authority=%t]", m.ObjectCount(), m.queue.Len(), m.authority)
}
