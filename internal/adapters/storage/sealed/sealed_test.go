package sealed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Team-Dev/jobportal/internal/adapters/storage/memory"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestAESGCM_RoundTrip(t *testing.T) {
	c, err := NewAESGCM(testKey())
	require.NoError(t, err)

	a, err := c.Seal([]byte("t1"))
	require.NoError(t, err)
	b, err := c.Seal([]byte("t1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a, "v1:"))
	assert.NotEqual(t, a, b, "random nonce per seal")

	pt, err := c.Open(a)
	require.NoError(t, err)
	assert.Equal(t, "t1", string(pt))

	legacy, err := Plain{}.Seal([]byte("old"))
	require.NoError(t, err)
	pt, err = c.Open(legacy)
	require.NoError(t, err)
	assert.Equal(t, "old", string(pt))
}

func TestAESGCM_Errors(t *testing.T) {
	_, err := NewAESGCM([]byte("short"))
	assert.ErrorContains(t, err, "must be 32 bytes")

	c, err := NewAESGCM(testKey())
	require.NoError(t, err)

	_, err = c.Open(`{"isLoggedIn":true}`)
	assert.ErrorIs(t, err, ErrNotSealed)

	_, err = c.Open("v1:AAAA")
	assert.ErrorContains(t, err, "too short")

	other := testKey()
	other[0] = 0xff
	c2, err := NewAESGCM(other)
	require.NoError(t, err)
	sealed, err := c2.Seal([]byte("x"))
	require.NoError(t, err)
	_, err = c.Open(sealed)
	assert.Error(t, err)
}

func TestStore_SealsValuesAtRest(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	c, err := NewAESGCM(testKey())
	require.NoError(t, err)
	s, err := Wrap(inner, Options{Cipher: c})
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "jwtToken", "secret-token"))

	raw, ok, err := inner.Get(ctx, "jwtToken")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "secret-token")

	v, ok, err := s.Get(ctx, "jwtToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret-token", v)

	require.NoError(t, s.Delete(ctx, "jwtToken"))
	_, ok, err = s.Get(ctx, "jwtToken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Plaintext(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Set(ctx, "authState", `{"isLoggedIn":true}`))
	c, err := NewAESGCM(testKey())
	require.NoError(t, err)

	strict, err := Wrap(inner, Options{Cipher: c})
	require.NoError(t, err)
	_, ok, err := strict.Get(ctx, "authState")
	require.NoError(t, err)
	assert.False(t, ok, "unreadable values look missing")

	lenient, err := Wrap(inner, Options{Cipher: c, AcceptPlaintext: true})
	require.NoError(t, err)
	v, ok, err := lenient.Get(ctx, "authState")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"isLoggedIn":true}`, v)
}

func TestStore_WatchPassesThrough(t *testing.T) {
	ctx := context.Background()
	shared := memory.New()
	s, err := Wrap(shared, Options{Cipher: Plain{}})
	require.NoError(t, err)

	keys := make(chan string, 1)
	stop, err := s.Watch(ctx, func(key string) { keys <- key })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, shared.Peer().Set(ctx, "savedJobs", "{}"))
	assert.Equal(t, "savedJobs", <-keys)
}

func TestWrap_Validation(t *testing.T) {
	_, err := Wrap(nil, Options{Cipher: Plain{}})
	assert.Error(t, err)
	_, err = Wrap(memory.New(), Options{})
	assert.Error(t, err)
}
