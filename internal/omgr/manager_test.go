package omgr

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dobj/internal/dobj"
	"github.com/roach88/dobj/internal/testutil"
)

func TestRegisterObject_AssignsOids(t *testing.T) {
	m := New()
	a, b := newLobby(), newLobby()

	assert.Equal(t, 1, m.RegisterObject(a))
	assert.Equal(t, 2, m.RegisterObject(b))
	assert.Equal(t, 2, m.ObjectCount())
	assert.Same(t, b, m.Object(2))
	assert.Nil(t, m.Object(3))

	assert.True(t, a.IsActive())
	assert.True(t, a.IsAuthoritative())
}

func TestRegisterObject_WrapsAndSkipsUsedOids(t *testing.T) {
	m := New()
	first := m.RegisterObject(newLobby())
	require.Equal(t, 1, first)

	m.nextOid = math.MaxInt32 - 2
	assert.Equal(t, math.MaxInt32-1, m.RegisterObject(newLobby()))
	assert.Equal(t, 2, m.RegisterObject(newLobby()), "oid 0 and the live oid 1 are skipped")
}

func TestRegisterObject_InstallsDefaultController(t *testing.T) {
	m := New(WithAccessController(dobj.ServerOnly))

	plain := newLobby()
	m.RegisterObject(plain)
	assert.NotNil(t, plain.AccessController())

	own := newLobby()
	ctrl := &dobj.AccessFuncs{}
	own.SetAccessController(ctrl)
	m.RegisterObject(own)
	assert.Same(t, ctrl, own.AccessController())
}

func TestReplicaManager_IsNotAuthoritative(t *testing.T) {
	m := New(WithAuthority(false))
	l := newLobby()
	m.RegisterObject(l)

	assert.False(t, l.IsAuthoritative())

	l.ChangeAttribute("name", "lazy")
	assert.Empty(t, l.Name, "non-authoritative copies apply on dispatch")

	drain(t, m)
	assert.Equal(t, "lazy", l.Name)
}

func TestDestroyObject_RefusesOidZero(t *testing.T) {
	m := New()
	m.DestroyObject(0)
	assert.Equal(t, 0, m.Drain(context.Background()))
}

func TestRemovedLastSubscriber_HonorsDeathWish(t *testing.T) {
	m := New()
	l := newLobby()
	oid := m.RegisterObject(l)
	l.SetDestroyOnLastSubscriberRemoved(true)

	w := &testutil.Subscriber{}
	m.SubscribeToObject(oid, w)
	drain(t, m)
	require.Len(t, w.Available, 1)

	m.UnsubscribeFromObject(oid, w)
	drain(t, m)

	assert.Nil(t, m.Object(oid))
	assert.False(t, l.IsActive())
}

func TestRemovedLastSubscriber_WithoutDeathWish(t *testing.T) {
	m := New()
	oid := m.RegisterObject(newLobby())

	w := &testutil.Subscriber{}
	m.SubscribeToObject(oid, w)
	m.UnsubscribeFromObject(oid, w)
	drain(t, m)

	assert.NotNil(t, m.Object(oid))
}

func TestPostRunnable_RunsInQueueOrder(t *testing.T) {
	m := New()
	l := newLobby()
	m.RegisterObject(l)

	var seen []string
	l.AddListener(&funcListener{fn: func(ev *dobj.AttributeChangedEvent) {
		seen = append(seen, ev.Name())
	}})
	l.ChangeAttribute("count", 1)
	m.PostRunnable(func() { seen = append(seen, "runnable") })
	l.ChangeAttribute("name", "after")

	drain(t, m)
	assert.Equal(t, []string{"count", "runnable", "name"}, seen)
}

type funcListener struct {
	fn func(ev *dobj.AttributeChangedEvent)
}

func (f *funcListener) AttributeChanged(ev *dobj.AttributeChangedEvent) {
	f.fn(ev)
}

func TestRun_ProcessesUntilStopped(t *testing.T) {
	m := New()
	l := newLobby()
	m.RegisterObject(l)

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	ran := make(chan struct{})
	l.ChangeAttribute("count", 5)
	m.PostRunnable(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("runnable not processed")
	}

	m.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Equal(t, 5, l.Count)
}

func TestRun_ContextCancelled(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Posting to a stopped manager is logged and ignored.
	m.PostEvent(dobj.NewObjectDestroyedEvent(1))
	assert.Equal(t, 0, m.Drain(context.Background()))
}

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := New(WithMetrics(metrics))
	l := newLobby()
	m.RegisterObject(l)

	l.ChangeAttribute("count", 2)
	drain(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Dispatched))
}

func TestManager_String(t *testing.T) {
	m := New()
	m.RegisterObject(newLobby())
	assert.Equal(t, "omgr[objects=1, queued=0, authority=true]", m.String())
}
