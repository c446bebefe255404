package dobj

// Manager is the dispatcher an object posts its events to.
type Manager interface {
	// PostEvent queues ev for ordered delivery to every copy of its target.
	PostEvent(ev Event)

	// IsManager reports whether obj is the authoritative copy in this process.
	IsManager(obj *Object) bool

	// RemovedLastSubscriber is called when obj loses its last subscriber.
	// deathWish reports whether obj asked to be destroyed at that point.
	RemovedLastSubscriber(obj *Object, deathWish bool)
}

// Subscriber is the requester of an object subscription. Implementations
// must be comparable, typically pointers.
type Subscriber interface {
	// ObjectAvailable delivers the subscribed object.
	ObjectAvailable(obj DObject)

	// RequestFailed reports that the subscription to oid could not be
	// satisfied. err is a *NoSuchObjectError or an *ObjectAccessError.
	RequestFailed(oid int, err error)
}

// ProxySubscriber relays every non-private event on an object to another
// manager instead of consuming it.
type ProxySubscriber interface {
	Subscriber
	EventReceived(ev Event)
}

// AccessController vets subscriptions and event dispatch for an object.
type AccessController interface {
	AllowSubscribe(obj DObject, sub Subscriber) bool
	AllowDispatch(obj DObject, ev Event) bool
}

// AccessFuncs adapts a pair of functions to AccessController. A nil function
// allows everything.
type AccessFuncs struct {
	Subscribe func(obj DObject, sub Subscriber) bool
	Dispatch  func(obj DObject, ev Event) bool
}

func (f AccessFuncs) AllowSubscribe(obj DObject, sub Subscriber) bool {
	return f.Subscribe == nil || f.Subscribe(obj, sub)
}

func (f AccessFuncs) AllowDispatch(obj DObject, ev Event) bool {
	return f.Dispatch == nil || f.Dispatch(obj, ev)
}

// ServerOnly allows dispatch of events that originate on the server and
// denies events sent by clients.
var ServerOnly AccessController = AccessFuncs{
	Dispatch: func(_ DObject, ev Event) bool {
		return ev.SourceOid() == 0
	},
}
