package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/dobj/internal/codec"
	"github.com/roach88/dobj/internal/dobj"
	"github.com/roach88/dobj/internal/journal"
	"github.com/roach88/dobj/internal/omgr"
	"github.com/roach88/dobj/internal/schema"
	"github.com/roach88/dobj/internal/testutil"
)

// maxDrainRounds bounds how often the managers are drained in turn before a
// step is declared to not settle.
const maxDrainRounds = 1000

// Harness runs one scenario against an authoritative manager and its
// replicas, all drained on the calling goroutine.
type Harness struct {
	ctx      context.Context
	registry *schema.Registry
	journal  *journal.Store
	origin   *omgr.Manager
	replicas []*omgr.Manager

	objects map[string]*entry
	// names maps authoritative oids back to object names.
	names  map[int]string
	result *Result
}

// entry tracks one scenario object across all copies.
type entry struct {
	def   ObjectDef
	class *schema.Class
	obj   *schema.Object
	oid   int

	// relays[i] keeps the proxy on replica i+1 in step.
	relays []*omgr.Relay
	// heard[0] listens on the authoritative copy, heard[i] on replica i.
	heard []*testutil.Recorder
	// closed[i] is set once the proxy on replica i+1 was unsubscribed.
	closed []bool
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal with sequential
// batch ids, so identical scenarios produce identical traces.
//
// Execution flow:
//  1. Load the classes and open the journal
//  2. Register every object with the authoritative manager
//  3. Subscribe a relay per object on every replica
//  4. Run the steps, draining all managers after each one
//  5. Collect the trace and evaluate the assertions
//
// A step that fails is recorded in the result and the run continues. Run
// returns an error only if the scenario cannot be set up.
func Run(scenario *Scenario) (*Result, error) {
	registry, err := schema.LoadClasses(scenario.Classes)
	if err != nil {
		return nil, fmt.Errorf("failed to load classes: %w", err)
	}

	st, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer st.Close()

	opts := []omgr.Option{
		omgr.WithJournal(st),
		omgr.WithBatchIDs(testutil.NewSequentialBatchIDs("batch")),
	}
	if scenario.Access == "server_only" {
		opts = append(opts, omgr.WithAccessController(dobj.ServerOnly))
	}

	h := &Harness{
		ctx:      context.Background(),
		registry: registry,
		journal:  st,
		origin:   omgr.New(opts...),
		objects:  make(map[string]*entry, len(scenario.Objects)),
		names:    make(map[int]string, len(scenario.Objects)),
		result:   NewResult(),
	}
	for range scenario.Replicas {
		h.replicas = append(h.replicas, omgr.New(omgr.WithAuthority(false)))
	}

	for _, def := range scenario.Objects {
		if err := h.register(def); err != nil {
			return nil, fmt.Errorf("object %s: %w", def.Name, err)
		}
	}
	if err := h.drain(); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	for _, def := range scenario.Objects {
		e := h.objects[def.Name]
		for i, relay := range e.relays {
			if relay.Err() != nil || relay.Proxy().Base().Manager() == nil {
				return nil, fmt.Errorf("object %s: replica %d did not receive a proxy: %v", def.Name, i+1, relay.Err())
			}
		}
	}

	for i, step := range scenario.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		if err := h.runStep(step); err != nil {
			h.result.AddError(fmt.Sprintf("%s: %v", where, err))
		}
		if err := h.drain(); err != nil {
			h.result.AddError(fmt.Sprintf("%s: %v", where, err))
		}
		slog.Debug("scenario step completed", "step", i, "op", step.Op, "object", step.Object)
	}

	if err := h.collect(); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(h, scenario.Assertions) {
		h.result.AddError(errMsg)
	}
	return h.result, nil
}

// register creates, initializes and registers one object, then attaches a
// relay to it on every replica.
func (h *Harness) register(def ObjectDef) error {
	class, ok := h.registry.Class(def.Class)
	if !ok {
		return fmt.Errorf("unknown class %q", def.Class)
	}
	obj := class.NewObject()

	names := make([]string, 0, len(def.Init))
	for name := range def.Init {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		v, err := initialValue(class, name, def.Init[name])
		if err != nil {
			return err
		}
		if err := obj.SetAttribute(name, v); err != nil {
			return err
		}
	}
	obj.SetDestroyOnLastSubscriberRemoved(def.DeathWish)

	e := &entry{
		def:    def,
		class:  class,
		obj:    obj,
		heard:  []*testutil.Recorder{{}},
		closed: make([]bool, len(h.replicas)),
	}
	obj.AddListener(e.heard[0])
	e.oid = h.origin.RegisterObject(obj)
	h.objects[def.Name] = e
	h.names[e.oid] = def.Name

	for _, replica := range h.replicas {
		rec := &testutil.Recorder{}
		e.heard = append(e.heard, rec)
		relay := replica.NewRelay(h.origin, class.NewObject())
		relay.Subscribe(e.oid, func(proxy dobj.DObject) {
			proxy.Base().AddListener(rec)
		})
		e.relays = append(e.relays, relay)
	}
	return nil
}

// initialValue coerces an init value. Sets take a list of records; oid
// lists are filled by steps so that references are tracked.
func initialValue(class *schema.Class, name string, value any) (any, error) {
	f, ok := class.Field(name)
	if !ok {
		return nil, fmt.Errorf("%s has no field %q", class.Name, name)
	}
	switch f.Kind {
	case schema.KindOidList:
		return nil, fmt.Errorf("%s.%s: oid lists are filled with add_oid steps", class.Name, name)
	case schema.KindSet:
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%s.%s: set init must be a list of records", class.Name, name)
		}
		recs := make([]*schema.Record, len(items))
		for i, item := range items {
			rec, err := class.CoerceRecord(name, item)
			if err != nil {
				return nil, err
			}
			recs[i] = rec
		}
		return dobj.NewDSet[string, *schema.Record](recs...), nil
	default:
		return class.Coerce(name, value)
	}
}

// drain runs the managers in turn until none has queued work.
func (h *Harness) drain() error {
	managers := append([]*omgr.Manager{h.origin}, h.replicas...)
	for range maxDrainRounds {
		n := 0
		for _, m := range managers {
			n += m.Drain(h.ctx)
		}
		if n == 0 {
			return nil
		}
	}
	return fmt.Errorf("managers did not settle after %d rounds", maxDrainRounds)
}

// copyOf returns the copy of e selected by via: the authoritative object
// for 0 and the proxy on that replica otherwise.
func (h *Harness) copyOf(e *entry, via int) (*schema.Object, error) {
	if via == 0 {
		return e.obj, nil
	}
	if e.closed[via-1] {
		return nil, fmt.Errorf("%s is no longer subscribed on replica %d", e.def.Name, via)
	}
	proxy, ok := e.relays[via-1].Proxy().(*schema.Object)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected proxy type %T", e.def.Name, e.relays[via-1].Proxy())
	}
	return proxy, nil
}

// runStep applies one step. Mutators panic on bad names and mistyped
// values; the panic is returned as the step's error.
func (h *Harness) runStep(step Step) (err error) {
	e := h.objects[step.Object]
	obj, err := h.copyOf(e, step.Via)
	if err != nil {
		return err
	}
	base := obj.Base()

	defer func() {
		if r := recover(); r != nil {
			if base.InTransaction() {
				base.CancelTransaction()
			}
			err = fmt.Errorf("%s %s: %v", step.Op, e.def.Name, r)
		}
	}()

	switch step.Op {
	case OpDestroy:
		base.Destroy()
		return nil

	case OpUnsubscribe:
		e.relays[step.Via-1].Close()
		e.closed[step.Via-1] = true
		return nil

	case OpTransaction:
		base.StartTransaction()
		for _, inner := range step.Steps {
			if err := h.mutate(e, base, inner); err != nil {
				base.CancelTransaction()
				return err
			}
		}
		if step.Cancel {
			base.CancelTransaction()
		} else {
			base.CommitTransaction()
		}
		return nil

	default:
		return h.mutate(e, base, step)
	}
}

// mutate applies a single mutation to base.
func (h *Harness) mutate(e *entry, base *dobj.Object, step Step) error {
	var opts []dobj.EventOption
	if step.Source != 0 {
		opts = append(opts, dobj.WithSourceOid(step.Source))
	}

	switch step.Op {
	case OpChange:
		v, err := e.class.Coerce(step.Name, step.Value)
		if err != nil {
			return err
		}
		base.ChangeAttribute(step.Name, v, opts...)

	case OpUpdate:
		v, err := e.class.CoerceElement(step.Name, step.Value)
		if err != nil {
			return err
		}
		base.UpdateElement(step.Name, step.Index, v, opts...)

	case OpAdd, OpUpdateEntry:
		rec, err := e.class.CoerceRecord(step.Name, step.Value)
		if err != nil {
			return err
		}
		if step.Op == OpAdd {
			base.AddToSet(step.Name, rec, opts...)
		} else {
			base.UpdateSet(step.Name, rec, opts...)
		}

	case OpRemove:
		base.RemoveFromSet(step.Name, step.Key, opts...)

	case OpAddOid, OpRemoveOid:
		oid := step.Oid
		if step.Target != "" {
			oid = h.objects[step.Target].oid
		}
		if step.Op == OpAddOid {
			base.AddToOidList(step.Name, oid, opts...)
		} else {
			base.RemoveFromOidList(step.Name, oid, opts...)
		}

	case OpMessage:
		base.PostMessage(step.Name, step.Args...)

	default:
		return fmt.Errorf("unsupported op %q", step.Op)
	}
	return nil
}

// collect fills the result's trace from the journal and its state from the
// authoritative copies.
func (h *Harness) collect() error {
	entries, err := h.journal.All(h.ctx)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	for _, en := range entries {
		te, err := h.traceEvent(en)
		if err != nil {
			return fmt.Errorf("journal entry %d: %w", en.Seq, err)
		}
		h.result.Trace = append(h.result.Trace, te)
	}

	for name, e := range h.objects {
		snap, err := codec.EncodeObject(e.obj)
		if err != nil {
			return fmt.Errorf("object %s: %w", name, err)
		}
		h.result.State[name] = snap.Attrs
	}
	return nil
}

func (h *Harness) traceEvent(en journal.Entry) (TraceEvent, error) {
	var env codec.Envelope
	if err := json.Unmarshal(en.Payload, &env); err != nil {
		return TraceEvent{}, err
	}

	te := TraceEvent{
		Seq:    en.Seq,
		Object: h.objectName(en.TargetOid),
		Kind:   en.Kind,
		Batch:  en.Batch,
		Name:   env.Name,
		Index:  env.Index,
	}

	switch {
	case env.Kind == dobj.KindObjectAdded || env.Kind == dobj.KindObjectRemoved:
		name, err := json.Marshal(h.objectName(env.Oid))
		if err != nil {
			return TraceEvent{}, err
		}
		te.Value = name
	case len(env.Names) > 0:
		values := make(map[string]json.RawMessage, len(env.Names))
		for i, name := range env.Names {
			if i < len(env.Values) {
				values[name] = env.Values[i]
			}
		}
		data, err := json.Marshal(values)
		if err != nil {
			return TraceEvent{}, err
		}
		te.Value = data
	case len(env.Args) > 0:
		args, err := json.Marshal(env.Args)
		if err != nil {
			return TraceEvent{}, err
		}
		te.Value = args
	case env.Entry != nil:
		te.Value = env.Entry
	case env.Key != nil:
		te.Value = env.Key
	case env.Value != nil:
		te.Value = env.Value
	}
	return te, nil
}

// objectName returns the scenario name registered under oid, or the oid
// itself for objects the scenario does not know.
func (h *Harness) objectName(oid int) string {
	if name, ok := h.names[oid]; ok {
		return name
	}
	return fmt.Sprintf("#%d", oid)
}
