package dobj

import "log/slog"

// StartTransaction begins collecting the object's events so they are
// forwarded together. Transactions nest; every start must be paired with
// exactly one CommitTransaction or CancelTransaction. It panics if the
// object has no manager.
func (o *Object) StartTransaction() {
	if o.tevent != nil {
		o.tcount++
		return
	}
	o.tevent = NewCompoundEvent(o, o.mgr)
}

// CommitTransaction ends one level of nesting. The outermost commit forwards
// the collected events, or discards them if any level was cancelled.
func (o *Object) CommitTransaction() {
	o.mustBeInTransaction("commit")
	switch {
	case o.tcount > 0:
		o.tcount--
	case o.tcancelled:
		o.tevent.Cancel()
	default:
		o.tevent.Commit()
	}
}

// CancelTransaction ends one level of nesting and marks the whole
// transaction cancelled.
func (o *Object) CancelTransaction() {
	o.mustBeInTransaction("cancel")
	if o.tcount > 0 {
		o.tcancelled = true
		o.tcount--
		return
	}
	o.tevent.Cancel()
}

// InTransaction reports whether a transaction is open.
func (o *Object) InTransaction() bool {
	return o.tevent != nil
}

func (o *Object) mustBeInTransaction(op string) {
	if o.tevent == nil {
		panic(&StructuralError{
			Code:    ErrCodeNotInTransaction,
			Message: "cannot " + op + " transaction: none started",
			Oid:     o.oid,
		})
	}
}

func (o *Object) clearTransaction() {
	if o.tcount != 0 {
		slog.Warn("transaction cleared with non-zero nesting count",
			"dobj", o.Which(),
			"count", o.tcount)
	}
	o.tevent = nil
	o.tcount = 0
	o.tcancelled = false
}
