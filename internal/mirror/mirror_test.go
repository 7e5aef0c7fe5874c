package mirror

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/AI-Team-Dev/jobportal/internal/adapters/storage/memory"
	"github.com/AI-Team-Dev/jobportal/internal/domain/auth"
	"github.com/AI-Team-Dev/jobportal/internal/mocks"
)

func TestMirror_WriteRead(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := New(Options{Storage: st})

	m.Write(ctx, SliceAuth, auth.HRSession("h@x.com"))

	var got auth.Session
	require.True(t, m.Read(ctx, SliceAuth, &got))
	assert.Equal(t, auth.HRSession("h@x.com"), got)

	raw, ok, err := st.Get(ctx, "authState")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"isLoggedIn":true,"role":"HR","email":"h@x.com"}`, raw)
}

func TestMirror_ReadFallback(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := New(Options{Storage: st})

	fallback := auth.Session{}
	got := fallback
	assert.False(t, m.Read(ctx, SliceApplicantAuth, &got), "missing key")
	assert.Equal(t, fallback, got)

	require.NoError(t, st.Set(ctx, "applicantAuthState", "{not json"))
	got = auth.ApplicantSession("keep@x.com")
	assert.False(t, m.Read(ctx, SliceApplicantAuth, &got), "corrupt value")
	assert.Equal(t, auth.ApplicantSession("keep@x.com"), got)

	require.NoError(t, st.Set(ctx, "applicantAuthState", `{"isLoggedIn":"yes"}`))
	assert.False(t, m.Read(ctx, SliceApplicantAuth, &got), "type mismatch")
	assert.Equal(t, auth.ApplicantSession("keep@x.com"), got)

	require.NoError(t, st.Set(ctx, "applicantAuthState", "null"))
	assert.False(t, m.Read(ctx, SliceApplicantAuth, &got), "null")
}

func TestMirror_RejectsUnregistered(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := New(Options{Storage: st})

	m.Write(ctx, Slice("jobsState"), []string{"stale"})
	assert.Empty(t, st.Keys())

	var out []string
	assert.False(t, m.Read(ctx, Slice("whatever"), &out))
}

func TestMirror_ClearAndPurge(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := New(Options{Storage: st})

	for _, s := range Slices() {
		m.Write(ctx, s, map[string]bool{"x": true})
	}
	require.NoError(t, st.Set(ctx, LegacyJobsKey, `[{"id":1}]`))
	require.NoError(t, st.Set(ctx, "jwtToken", "t"))

	m.PurgeLegacy(ctx)
	_, ok, _ := st.Get(ctx, LegacyJobsKey)
	assert.False(t, ok)

	m.Remove(ctx, SliceUser)
	_, ok, _ = st.Get(ctx, "authUser")
	assert.False(t, ok)

	m.Clear(ctx)
	assert.Equal(t, []string{"jwtToken"}, st.Keys())
}

func TestMirror_StorageFailuresAreSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStateStorage(ctrl)
	ctx := context.Background()
	boom := errors.New("disk full")

	st.EXPECT().Set(gomock.Any(), "authUser", gomock.Any()).Return(boom)
	st.EXPECT().Get(gomock.Any(), "authUser").Return("", false, boom)
	st.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(boom).Times(2)

	m := New(Options{Storage: st})
	m.Write(ctx, SliceUser, map[string]string{"email": "a@x.com"})
	var out map[string]string
	assert.False(t, m.Read(ctx, SliceUser, &out))
	m.Clear(ctx)
	m.PurgeLegacy(ctx)
}

func TestMirror_WriteUnserializable(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStateStorage(ctrl)
	m := New(Options{Storage: st})
	// No Set expected: encoding fails first.
	m.Write(context.Background(), SliceUser, func() {})
}

func TestMirror_SubscribeExternalChange(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	other := st.Peer()
	m := New(Options{Storage: st, WatchKeys: []string{"jwtToken"}})

	var calls atomic.Int32
	_, err := m.SubscribeExternalChange(ctx, func() { calls.Add(1) })
	require.NoError(t, err)

	require.NoError(t, other.Set(ctx, "authState", "{}"))
	require.NoError(t, other.Set(ctx, "jwtToken", "t"))
	require.NoError(t, other.Set(ctx, "unrelated", "x"))
	assert.Equal(t, int32(2), calls.Load())

	// Own writes are not echoed.
	m.Write(ctx, SliceAuth, auth.Session{})
	assert.Equal(t, int32(2), calls.Load())

	m.Close()
	require.NoError(t, other.Set(ctx, "authState", "{}"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestMirror_NilStorage(t *testing.T) {
	m := New(Options{})
	ctx := context.Background()
	m.Write(ctx, SliceAuth, auth.Session{})
	var s auth.Session
	assert.False(t, m.Read(ctx, SliceAuth, &s))
	stop, err := m.SubscribeExternalChange(ctx, func() {})
	require.NoError(t, err)
	stop()
}
