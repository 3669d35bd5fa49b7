package auth

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessions is an in-memory SessionGetter
type fakeSessions map[string]uuid.UUID

func (f fakeSessions) Get(_ context.Context, sessionID string) (uuid.UUID, error) {
	id, ok := f[sessionID]
	if !ok {
		return uuid.Nil, errors.New("no such session")
	}
	return id, nil
}

func TestAuthenticator(t *testing.T) {
	signer, _ := newTestSigner(t)
	userID := uuid.New()
	sessions := fakeSessions{"live": userID, "stolen": uuid.New()}
	authn := NewAuthenticator(signer, sessions)
	ctx := context.Background()

	t.Run("live session", func(t *testing.T) {
		token, _, err := signer.IssueToken(userID, "alice", "live")
		require.NoError(t, err)

		claims, err := authn.Authenticate(ctx, token)

		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Username)
	})

	t.Run("logged out session", func(t *testing.T) {
		token, _, err := signer.IssueToken(userID, "alice", "gone")
		require.NoError(t, err)

		_, err = authn.Authenticate(ctx, token)

		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("session owned by another user", func(t *testing.T) {
		token, _, err := signer.IssueToken(userID, "alice", "stolen")
		require.NoError(t, err)

		_, err = authn.Authenticate(ctx, token)

		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := authn.Authenticate(ctx, "garbage")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthInterceptor(t *testing.T) {
	signer, _ := newTestSigner(t)
	userID := uuid.New()
	authn := NewAuthenticator(signer, fakeSessions{"s1": userID})
	token, _, err := signer.IssueToken(userID, "alice", "s1")
	require.NoError(t, err)

	interceptor := NewAuthInterceptor(authn)
	handler := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		id, ok := GetUserID(ctx)
		assert.True(t, ok)
		assert.Equal(t, userID, id)

		claims, ok := GetUserClaims(ctx)
		assert.True(t, ok)
		assert.Equal(t, "alice", claims.Username)
		return connect.NewResponse(&struct{}{}), nil
	}

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{name: "valid bearer token", header: "Bearer " + token},
		{name: "missing header", header: "", wantErr: true},
		{name: "missing bearer prefix", header: token, wantErr: true},
		{name: "invalid token", header: "Bearer nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := connect.NewRequest(&struct{}{})
			if tt.header != "" {
				req.Header().Set("Authorization", tt.header)
			}

			_, err := interceptor(handler)(context.Background(), req)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGetUserID_Anonymous(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)
}
