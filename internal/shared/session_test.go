package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "sid", time.Hour, false), mr
}

func roundTrip(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func load(t *testing.T, sm *SessionManager, cookie *http.Cookie) *Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestSessionPersistsAcrossRequests(t *testing.T) {
	sm, mr := newTestManager(t)

	sess := load(t, sm, nil)
	sess.SetUser("42")
	sess.Set("k", "v")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Saved"})
	cookie := roundTrip(t, sm, sess)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, time.Hour, mr.TTL("session:"+cookie.Value))

	again := load(t, sm, cookie)
	assert.Equal(t, sess.ID, again.ID)
	assert.Equal(t, "42", again.User())
	assert.Equal(t, "v", again.Get("k"))
	assert.Equal(t, []FlashMessage{{Kind: "success", Message: "Saved"}}, again.PopFlashes())
	assert.Nil(t, again.PopFlashes())
}

func TestUnknownSessionIDIsNotAdopted(t *testing.T) {
	sm, _ := newTestManager(t)

	sess := load(t, sm, &http.Cookie{Name: "sid", Value: "attacker-chosen"})
	assert.NotEqual(t, "attacker-chosen", sess.ID)
	assert.Empty(t, sess.User())
}

func TestRenewDropsOldKeyAndKeepsData(t *testing.T) {
	sm, mr := newTestManager(t)

	sess := load(t, sm, nil)
	sess.Set("k", "v")
	first := roundTrip(t, sm, sess)

	sess = load(t, sm, first)
	sm.Renew(sess)
	sess.SetUser("7")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Login successful!"})
	second := roundTrip(t, sm, sess)

	assert.NotEqual(t, first.Value, second.Value)
	assert.False(t, mr.Exists("session:"+first.Value))

	renewed := load(t, sm, second)
	assert.Equal(t, "7", renewed.User())
	assert.Equal(t, "v", renewed.Get("k"))
	require.NotNil(t, renewed.PopFlash())

	stale := load(t, sm, first)
	assert.Empty(t, stale.User())
}

func TestFlashHelpersWithoutSession(t *testing.T) {
	ctx := context.Background()
	Flash(ctx, "info", "ignored")
	assert.Nil(t, PopFlashes(ctx))

	sess := &Session{}
	ctx = ContextWithSession(ctx, sess)
	Flash(ctx, "info", "one")
	Flash(ctx, "error", "two")
	assert.Len(t, PopFlashes(ctx), 2)
}
