package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := New(Options{Dir: dir})
	require.NoError(t, err)
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newStore(t, dir)

	_, ok, err := s.Get(ctx, "applicantProfileState")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "applicantProfileState", `{"fullName":"Ann"}`))
	v, ok, err := s.Get(ctx, "applicantProfileState")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"fullName":"Ann"}`, v)

	info, err := os.Stat(filepath.Join(dir, "applicantProfileState.state"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())

	require.NoError(t, s.Delete(ctx, "applicantProfileState", "missing"))
	_, ok, err = s.Get(ctx, "applicantProfileState")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_SharedDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := newStore(t, dir)
	b := newStore(t, dir)

	require.NoError(t, a.Set(ctx, "jwtToken", "tok"))
	v, ok, err := b.Get(ctx, "jwtToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestStore_New_RequiresDir(t *testing.T) {
	_, err := New(Options{Dir: "  "})
	require.Error(t, err)
}

func TestKeyFromName(t *testing.T) {
	key, ok := keyFromName("/x/authState.state")
	assert.True(t, ok)
	assert.Equal(t, "authState", key)

	_, ok = keyFromName("/x/.tmp-123")
	assert.False(t, ok)
	_, ok = keyFromName("/x/notes.txt")
	assert.False(t, ok)
}

func TestStore_WatchReportsForeignWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := newStore(t, dir)
	b := newStore(t, dir)

	var mu sync.Mutex
	seen := map[string]int{}
	stop, err := a.Watch(ctx, func(k string) {
		mu.Lock()
		seen[k]++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, a.Set(ctx, "mine", "1"))
	require.NoError(t, b.Set(ctx, "theirs", "2"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["theirs"] > 0
	}, 5*time.Second, 20*time.Millisecond)

	// Give any late events for "mine" a chance to arrive.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, seen["mine"])
	mu.Unlock()

	require.NoError(t, b.Delete(ctx, "mine"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["mine"] > 0
	}, 5*time.Second, 20*time.Millisecond)
}
