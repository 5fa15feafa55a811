package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/juckphai/salejuck/internal/platform/replica"
	"github.com/juckphai/salejuck/internal/pos"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryStore) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	return value, ok
}

func testRemote(t *testing.T) *replica.RedisReplica {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return replica.NewRedisWithClient(client, "pos:document")
}

func testEngine(t *testing.T, local LocalStore, remote replica.Replica) *Engine {
	t.Helper()
	return New(Config{
		Local:  local,
		Remote: remote,
		Logger: slog.New(slog.DiscardHandler),
	})
}

func encodeDoc(t *testing.T, doc *pos.Document) []byte {
	t.Helper()
	raw, err := doc.Encode()
	require.NoError(t, err)
	return raw
}

func TestLoadBootstrapsWhenNothingExists(t *testing.T) {
	local := newMemoryStore()
	remote := testRemote(t)
	e := testEngine(t, local, remote)

	source, err := e.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceBootstrap, source)

	var username string
	require.NoError(t, e.Read(func(d *pos.Document) {
		require.Len(t, d.Users, 1)
		username = d.Users[0].Username
	}))
	require.Equal(t, pos.DefaultAdminUsername, username)

	// Bootstrap persists both locally and remotely.
	_, ok := local.get(DefaultDocumentKey)
	require.True(t, ok)
	snap, err := remote.Get(context.Background())
	require.NoError(t, err)
	require.True(t, snap.Exists)
}

func TestLoadPrefersRemote(t *testing.T) {
	local := newMemoryStore()
	remote := testRemote(t)

	remoteDoc := pos.NewDocument()
	remoteDoc.Products = append(remoteDoc.Products, pos.Product{ID: 1, Name: "Widget"})
	require.NoError(t, remote.Set(context.Background(), encodeDoc(t, remoteDoc)))

	localDoc := pos.NewDocument()
	localDoc.Products = append(localDoc.Products, pos.Product{ID: 2, Name: "Stale"})
	require.NoError(t, local.Set(context.Background(), DefaultDocumentKey, encodeDoc(t, localDoc)))

	e := testEngine(t, local, remote)
	source, err := e.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceRemote, source)

	require.NoError(t, e.Read(func(d *pos.Document) {
		require.Len(t, d.Products, 1)
		require.Equal(t, "Widget", d.Products[0].Name)
	}))

	// Remote content overwrote the stale local cache.
	cached, ok := local.get(DefaultDocumentKey)
	require.True(t, ok)
	var cachedDoc pos.Document
	require.NoError(t, json.Unmarshal(cached, &cachedDoc))
	require.Equal(t, "Widget", cachedDoc.Products[0].Name)
}

func TestLoadFallsBackToLocal(t *testing.T) {
	local := newMemoryStore()

	localDoc := pos.NewDocument()
	localDoc.Stores = append(localDoc.Stores, pos.Store{ID: 9, Name: "Main"})
	require.NoError(t, local.Set(context.Background(), DefaultDocumentKey, encodeDoc(t, localDoc)))

	e := testEngine(t, local, nil)
	source, err := e.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceLocal, source)

	require.NoError(t, e.Read(func(d *pos.Document) {
		require.Len(t, d.Stores, 1)
	}))
}

func TestLoadRecoversFromCorruptLocal(t *testing.T) {
	local := newMemoryStore()
	require.NoError(t, local.Set(context.Background(), DefaultDocumentKey, []byte("{not json")))

	e := testEngine(t, local, nil)
	source, err := e.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceBootstrap, source)

	require.NoError(t, e.Read(func(d *pos.Document) {
		require.Len(t, d.Users, 1)
	}))
}

func TestMutateSavesLocallyDespiteRemoteFailure(t *testing.T) {
	local := newMemoryStore()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	remote := replica.NewRedisWithClient(client, "pos:document")

	e := testEngine(t, local, remote)
	_, err := e.Load(context.Background())
	require.NoError(t, err)

	mr.Close() // remote goes away mid-session

	require.NoError(t, e.Mutate(context.Background(), func(d *pos.Document) error {
		d.Stores = append(d.Stores, pos.Store{ID: 1, Name: "Main"})
		return nil
	}))
	e.Flush()

	cached, ok := local.get(DefaultDocumentKey)
	require.True(t, ok)
	var doc pos.Document
	require.NoError(t, json.Unmarshal(cached, &doc))
	require.Len(t, doc.Stores, 1)
}

func TestMutateErrorLeavesDocumentUntouched(t *testing.T) {
	local := newMemoryStore()
	e := testEngine(t, local, nil)
	_, err := e.Load(context.Background())
	require.NoError(t, err)

	before, _ := local.get(DefaultDocumentKey)

	boom := errors.New("rejected")
	err = e.Mutate(context.Background(), func(d *pos.Document) error { return boom })
	require.ErrorIs(t, err, boom)

	after, _ := local.get(DefaultDocumentKey)
	require.Equal(t, before, after)
}

func TestRealtimeSyncAdoptsRemoteChange(t *testing.T) {
	local := newMemoryStore()
	remote := testRemote(t)
	e := testEngine(t, local, remote)

	_, err := e.Load(context.Background())
	require.NoError(t, err)

	refreshed := make(chan struct{}, 4)
	e.Views().Register("products", func() { refreshed <- struct{}{} })
	e.Views().SetActive("products")
	<-refreshed // SetActive refreshes immediately

	require.NoError(t, e.StartRealtimeSync(context.Background()))
	defer e.StopRealtimeSync()

	incoming := pos.NewDocument()
	incoming.Products = append(incoming.Products, pos.Product{ID: 1, Name: "Pushed"})
	require.NoError(t, remote.Set(context.Background(), encodeDoc(t, incoming)))

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("active view never refreshed after remote change")
	}

	require.NoError(t, e.Read(func(d *pos.Document) {
		require.Len(t, d.Products, 1)
		require.Equal(t, "Pushed", d.Products[0].Name)
	}))
}

func TestRealtimeSyncIgnoresOwnEcho(t *testing.T) {
	local := newMemoryStore()
	remote := testRemote(t)
	e := testEngine(t, local, remote)

	_, err := e.Load(context.Background())
	require.NoError(t, err)

	refreshed := make(chan struct{}, 4)
	e.Views().Register("sales", func() { refreshed <- struct{}{} })
	e.Views().SetActive("sales")
	<-refreshed

	require.NoError(t, e.StartRealtimeSync(context.Background()))
	defer e.StopRealtimeSync()

	// Our own save publishes; the notification matches current content and
	// must not trigger a refresh beyond the local-change one.
	require.NoError(t, e.MutateAndWait(context.Background(), func(d *pos.Document) error {
		d.Stores = append(d.Stores, pos.Store{ID: 1, Name: "Main"})
		return nil
	}))
	<-refreshed // refresh from the local mutation itself

	select {
	case <-refreshed:
		t.Fatal("echo of own write refreshed the view")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStartRealtimeSyncReplacesSubscription(t *testing.T) {
	local := newMemoryStore()
	remote := testRemote(t)
	e := testEngine(t, local, remote)

	_, err := e.Load(context.Background())
	require.NoError(t, err)

	require.NoError(t, e.StartRealtimeSync(context.Background()))
	require.NoError(t, e.StartRealtimeSync(context.Background()))
	e.StopRealtimeSync()
	e.StopRealtimeSync()
}

func TestReadBeforeLoad(t *testing.T) {
	e := testEngine(t, newMemoryStore(), nil)
	err := e.Read(func(*pos.Document) {})
	require.ErrorIs(t, err, ErrNotLoaded)
}
