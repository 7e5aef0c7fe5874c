package memory

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.Get(ctx, "authState")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "authState", `{"isLoggedIn":true}`))
	require.NoError(t, s.Set(ctx, "jwtToken", "abc"))
	v, ok, err := s.Get(ctx, "authState")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"isLoggedIn":true}`, v)

	require.NoError(t, s.Delete(ctx, "authState", "missing"))
	keys := s.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"jwtToken"}, keys)
}

func TestStore_WatchSkipsOwnWrites(t *testing.T) {
	ctx := context.Background()
	a := New()
	b := a.Peer()

	var seenA, seenB []string
	stopA, err := a.Watch(ctx, func(k string) { seenA = append(seenA, k) })
	require.NoError(t, err)
	defer stopA()
	stopB, err := b.Watch(ctx, func(k string) { seenB = append(seenB, k) })
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "x", "1"))
	require.NoError(t, b.Delete(ctx, "x"))
	require.NoError(t, b.Delete(ctx, "never-set"))

	assert.Equal(t, []string{"x"}, seenA)
	assert.Equal(t, []string{"x"}, seenB)

	v, ok, err := b.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	stopB()
	stopB()
	require.NoError(t, a.Set(ctx, "y", "2"))
	assert.Equal(t, []string{"x"}, seenB)
}

func TestStore_Closed(t *testing.T) {
	s := New()
	peer := s.Peer()
	require.NoError(t, s.Close())

	err := s.Set(context.Background(), "k", "v")
	assert.ErrorIs(t, err, ports.ErrStorageUnavailable)
	require.NoError(t, peer.Set(context.Background(), "k", "v"))
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New().Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
