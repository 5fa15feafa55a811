package localstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, ok, err := store.Get(ctx, "posData")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "posData", []byte(`{"users":[]}`)))

	value, ok, err := store.Get(ctx, "posData")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"users":[]}`, string(value))

	// Overwrite replaces wholesale.
	require.NoError(t, store.Set(ctx, "posData", []byte(`{"users":[{"id":1}]}`)))
	value, ok, err = store.Get(ctx, "posData")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"users":[{"id":1}]}`, string(value))
}

func TestDelete(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
