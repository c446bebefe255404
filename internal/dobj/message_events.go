package dobj

// MessageEvent carries a named message with arguments to every listener of
// an object. It does not change the object.
type MessageEvent struct {
	eventHeader
	name       string
	args       []any
	serverOnly bool
}

// NewMessageEvent returns a message event for the given object.
func NewMessageEvent(targetOid int, name string, args ...any) *MessageEvent {
	return &MessageEvent{eventHeader: newHeader(targetOid), name: name, args: args}
}

func (e *MessageEvent) Kind() Kind { return KindMessage }

// Name returns the message name.
func (e *MessageEvent) Name() string { return e.name }

// Args returns the message arguments.
func (e *MessageEvent) Args() []any { return e.args }

// ServerOnly reports whether the message was posted as a server message.
// Listeners receive server messages through the embedded MessageEvent.
func (e *MessageEvent) ServerOnly() bool { return e.serverOnly }

func (e *MessageEvent) String() string {
	return describe(&e.eventHeader, "MSG", "name", e.name, "args", e.args)
}

// ServerMessageEvent is a message delivered only to listeners on the server.
// Proxies never receive it.
type ServerMessageEvent struct {
	MessageEvent
}

// NewServerMessageEvent returns a server-only message event.
func NewServerMessageEvent(targetOid int, name string, args ...any) *ServerMessageEvent {
	ev := &ServerMessageEvent{MessageEvent: *NewMessageEvent(targetOid, name, args...)}
	ev.serverOnly = true
	return ev
}

func (e *ServerMessageEvent) Kind() Kind { return KindServerMessage }

func (e *ServerMessageEvent) IsPrivate() bool { return true }

func (e *ServerMessageEvent) String() string {
	return describe(&e.eventHeader, "SMSG", "name", e.name, "args", e.args)
}

// ObjectDestroyedEvent announces that an object is being destroyed.
type ObjectDestroyedEvent struct {
	eventHeader
}

// NewObjectDestroyedEvent returns a destroy event for the given object.
func NewObjectDestroyedEvent(targetOid int) *ObjectDestroyedEvent {
	return &ObjectDestroyedEvent{eventHeader: newHeader(targetOid)}
}

func (e *ObjectDestroyedEvent) Kind() Kind { return KindObjectDestroyed }

func (e *ObjectDestroyedEvent) String() string {
	return describe(&e.eventHeader, "DESTROY")
}

// ReleaseLockEvent clears a named lock once every event posted before it has
// been applied.
type ReleaseLockEvent struct {
	eventHeader
	name string
}

// NewReleaseLockEvent returns an event releasing the named lock.
func NewReleaseLockEvent(targetOid int, name string) *ReleaseLockEvent {
	return &ReleaseLockEvent{eventHeader: newHeader(targetOid), name: name}
}

func (e *ReleaseLockEvent) Kind() Kind { return KindReleaseLock }

// Name returns the lock being released.
func (e *ReleaseLockEvent) Name() string { return e.name }

// IsPrivate is true: locks exist only on the server copy.
func (e *ReleaseLockEvent) IsPrivate() bool { return true }

func (e *ReleaseLockEvent) ApplyToObject(target *Object) (bool, error) {
	target.clearLock(e.name)
	return true, nil
}

func (e *ReleaseLockEvent) String() string {
	return describe(&e.eventHeader, "RELEASE_LOCK", "name", e.name)
}

// InvocationRequestEvent asks the server to run a method of an invocation
// service. The target is the client's invocation object.
type InvocationRequestEvent struct {
	eventHeader
	invCode  int
	methodID int
	args     []any
}

// NewInvocationRequestEvent returns a request for method methodID of the
// service registered under invCode.
func NewInvocationRequestEvent(targetOid, invCode, methodID int, args ...any) *InvocationRequestEvent {
	return &InvocationRequestEvent{eventHeader: newHeader(targetOid), invCode: invCode, methodID: methodID, args: args}
}

func (e *InvocationRequestEvent) Kind() Kind { return KindInvocationRequest }

// InvCode identifies the invocation service.
func (e *InvocationRequestEvent) InvCode() int { return e.invCode }

// MethodID identifies the method within the service.
func (e *InvocationRequestEvent) MethodID() int { return e.methodID }

// Args returns the method arguments.
func (e *InvocationRequestEvent) Args() []any { return e.args }

func (e *InvocationRequestEvent) String() string {
	return describe(&e.eventHeader, "IREQ", "code", e.invCode, "methodId", e.methodID, "args", e.args)
}

// InvocationResponseEvent carries the result of an invocation back to the
// requesting client.
type InvocationResponseEvent struct {
	eventHeader
	requestID int
	methodID  int
	args      []any
}

// NewInvocationResponseEvent returns a response to the request with the given id.
func NewInvocationResponseEvent(targetOid, requestID, methodID int, args ...any) *InvocationResponseEvent {
	return &InvocationResponseEvent{eventHeader: newHeader(targetOid), requestID: requestID, methodID: methodID, args: args}
}

func (e *InvocationResponseEvent) Kind() Kind { return KindInvocationResponse }

// RequestID identifies the request being answered.
func (e *InvocationResponseEvent) RequestID() int { return e.requestID }

// MethodID identifies the response method.
func (e *InvocationResponseEvent) MethodID() int { return e.methodID }

// Args returns the response arguments.
func (e *InvocationResponseEvent) Args() []any { return e.args }

func (e *InvocationResponseEvent) String() string {
	return describe(&e.eventHeader, "IRSP", "reqId", e.requestID, "methodId", e.methodID, "args", e.args)
}

// InvocationNotificationEvent delivers an unsolicited notification from an
// invocation receiver to a client.
type InvocationNotificationEvent struct {
	eventHeader
	receiverID int
	methodID   int
	args       []any
}

// NewInvocationNotificationEvent returns a notification for the given receiver.
func NewInvocationNotificationEvent(targetOid, receiverID, methodID int, args ...any) *InvocationNotificationEvent {
	return &InvocationNotificationEvent{eventHeader: newHeader(targetOid), receiverID: receiverID, methodID: methodID, args: args}
}

func (e *InvocationNotificationEvent) Kind() Kind { return KindInvocationNotification }

// ReceiverID identifies the receiver on the client.
func (e *InvocationNotificationEvent) ReceiverID() int { return e.receiverID }

// MethodID identifies the notification method.
func (e *InvocationNotificationEvent) MethodID() int { return e.methodID }

// Args returns the notification arguments.
func (e *InvocationNotificationEvent) Args() []any { return e.args }

func (e *InvocationNotificationEvent) String() string {
	return describe(&e.eventHeader, "INOT", "receiverId", e.receiverID, "methodId", e.methodID, "args", e.args)
}
