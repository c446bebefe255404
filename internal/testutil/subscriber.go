package testutil

import "github.com/roach88/dobj/internal/dobj"

// Subscriber is a plain subscriber that keeps what it is delivered.
type Subscriber struct {
	Available []dobj.DObject
	Failed    map[int]error
}

// ObjectAvailable implements dobj.Subscriber.
func (s *Subscriber) ObjectAvailable(obj dobj.DObject) {
	s.Available = append(s.Available, obj)
}

// RequestFailed implements dobj.Subscriber.
func (s *Subscriber) RequestFailed(oid int, err error) {
	if s.Failed == nil {
		s.Failed = make(map[int]error)
	}
	s.Failed[oid] = err
}

// ProxySubscriber is a proxy subscriber that records the events relayed to
// it instead of applying them.
type ProxySubscriber struct {
	Subscriber
	Recorder
}
