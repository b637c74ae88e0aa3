package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_WriteRead(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "events/2026-08-31/one.yaml", []byte("id: one")))

	data, err := store.Read(ctx, "events/2026-08-31/one.yaml")
	require.NoError(t, err)
	assert.Equal(t, "id: one", string(data))

	_, err = store.Read(ctx, "events/missing.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStore_List(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "events/2026-08-30/a.yaml", []byte("a")))
	require.NoError(t, store.Write(ctx, "events/2026-08-31/b.yaml", []byte("b")))

	keys, err := store.List(ctx, "events")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"events/2026-08-30/a.yaml",
		"events/2026-08-31/b.yaml",
	}, keys)

	day, err := store.List(ctx, "events/2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, []string{"events/2026-08-31/b.yaml"}, day)

	empty, err := store.List(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
