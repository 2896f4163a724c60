package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenLifecycle(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{}
	ctx := context.Background()

	token, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, token+"x"), ErrCSRFTokenMismatch)

	m.Rotate(sess)
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, token), ErrCSRFTokenMissing)
	fresh, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
}

func TestCSRFTokenFromOtherSecretRejected(t *testing.T) {
	ctx := context.Background()
	sess := &Session{}
	forged, err := NewCSRFManager("other").EnsureToken(ctx, sess)
	require.NoError(t, err)

	assert.ErrorIs(t, NewCSRFManager("secret").VerifyToken(ctx, sess, forged), ErrCSRFTokenMismatch)
	_, err = NewCSRFManager("secret").EnsureToken(ctx, nil)
	assert.Error(t, err)
}
