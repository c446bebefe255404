package omgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dobj/internal/codec"
	"github.com/roach88/dobj/internal/dobj"
)

func requireConverged(t *testing.T, a, b dobj.DObject) {
	t.Helper()
	da, err := codec.ObjectDigest(a)
	require.NoError(t, err)
	db, err := codec.ObjectDigest(b)
	require.NoError(t, err)
	require.Equal(t, da, db, "copies diverged:\n%s\n%s", a.Base(), b.Base())
}

func setupRelay(t *testing.T) (origin, replica *Manager, src, proxy *lobby, relay *Relay) {
	t.Helper()
	origin = New()
	replica = New()

	src = newLobby()
	src.Name = "lobby"
	src.Count = 3
	origin.RegisterObject(src)

	proxy = newLobby()
	relay = replica.NewRelay(origin, proxy)

	ready := 0
	relay.Subscribe(src.Oid(), func(dobj.DObject) { ready++ })
	drain(t, origin, replica)

	require.NoError(t, relay.Err())
	require.Equal(t, 1, ready)
	return origin, replica, src, proxy, relay
}

func TestRelay_SeedsProxy(t *testing.T) {
	origin, replica, src, proxy, relay := setupRelay(t)

	assert.Same(t, proxy, relay.Proxy())
	assert.Equal(t, "lobby", proxy.Name)
	assert.Equal(t, 3, proxy.Count)
	assert.Same(t, proxy, replica.Object(proxy.Oid()))
	assert.False(t, proxy.IsAuthoritative())
	assert.Equal(t, 1, src.SubscriberCount())
	assert.Equal(t, 1, origin.ObjectCount())
	requireConverged(t, src, proxy)
}

func TestRelay_ForwardsAuthoritativeChanges(t *testing.T) {
	origin, replica, src, proxy, _ := setupRelay(t)
	log := &changeLog{}
	proxy.AddListener(log)

	src.ChangeAttribute("count", 8)
	src.AddToSet("members", &member{Oid: 4, Name: "ada"})
	src.StartTransaction()
	src.ChangeAttribute("name", "renamed")
	src.UpdateSet("members", &member{Oid: 4, Name: "ada l."})
	src.CommitTransaction()
	drain(t, origin, replica)

	assert.Equal(t, []string{"count", "name"}, log.changes)
	got, ok := proxy.Members.Get(4)
	require.True(t, ok)
	assert.Equal(t, "ada l.", got.Name)
	requireConverged(t, src, proxy)
}

func TestRelay_ProxyChangesGoThroughOrigin(t *testing.T) {
	origin, replica, src, proxy, _ := setupRelay(t)

	proxy.ChangeAttribute("name", "from replica")
	assert.Equal(t, "lobby", proxy.Name, "proxies apply only what the origin relays")

	drain(t, origin, replica)
	assert.Equal(t, "from replica", src.Name)
	assert.Equal(t, "from replica", proxy.Name)
	requireConverged(t, src, proxy)
}

func TestRelay_DeniedProxyChangeIsNotApplied(t *testing.T) {
	origin, replica, src, proxy, _ := setupRelay(t)
	src.SetAccessController(dobj.ServerOnly)

	proxy.Base().PostEvent(func() dobj.Event {
		ev := dobj.NewAttributeChangedEvent(proxy.Oid(), "count", 100)
		ev.SetSourceOid(55)
		return ev
	}())
	drain(t, origin, replica)

	assert.Equal(t, 3, src.Count)
	assert.Equal(t, 3, proxy.Count)
}

func TestRelay_OidListsKeepOriginIds(t *testing.T) {
	origin, replica, src, proxy, _ := setupRelay(t)
	room := newLobby()
	roomOid := origin.RegisterObject(room)

	src.AddToOidList("rooms", roomOid)
	drain(t, origin, replica)

	assert.True(t, proxy.Rooms.Contains(roomOid))
	assert.Equal(t, 0, replica.References(roomOid), "proxies do no reference tracking")
	requireConverged(t, src, proxy)
}

func TestRelay_DestroyRemovesProxy(t *testing.T) {
	origin, replica, src, proxy, _ := setupRelay(t)
	localOid := proxy.Oid()

	died := &deathListener{}
	proxy.AddListener(died)

	src.Destroy()
	drain(t, origin, replica)

	assert.Nil(t, origin.Object(src.Oid()))
	assert.Nil(t, replica.Object(localOid))
	assert.Equal(t, 1, died.count)
}

func TestRelay_Close(t *testing.T) {
	origin, replica, src, proxy, relay := setupRelay(t)

	relay.Close()
	drain(t, origin, replica)

	assert.Equal(t, 0, src.SubscriberCount())
	assert.Equal(t, 0, replica.ObjectCount())

	src.ChangeAttribute("count", 42)
	drain(t, origin, replica)
	assert.Equal(t, 3, proxy.Count)
}

func TestRelay_SubscribeFailure(t *testing.T) {
	origin, replica := New(), New()
	relay := replica.NewRelay(origin, newLobby())

	relay.Subscribe(99, nil)
	drain(t, origin, replica)

	assert.True(t, dobj.IsNoSuchObject(relay.Err()))
	assert.Equal(t, 0, replica.ObjectCount())
}
