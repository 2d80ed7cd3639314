package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visenty/companion/internal/store"
)

func TestKV(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.SetMany(ctx, map[string]string{
		"visenty:b": "2",
		"visenty:a": "1",
	}))
	require.NoError(t, kv.Set(ctx, "other", "3"))

	keys, err := kv.Keys(ctx, "visenty:")
	require.NoError(t, err)
	assert.Equal(t, []string{"visenty:a", "visenty:b"}, keys)

	require.NoError(t, kv.Delete(ctx, "visenty:a"))
	_, err = kv.Get(ctx, "visenty:a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	v, err := kv.Get(ctx, "visenty:b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}
