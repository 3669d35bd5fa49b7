package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

type contextKey string

const (
	tokenHeader              = "Authorization"
	tokenPrefix              = "Bearer "
	UserClaimsKey contextKey = "user_claims"
	UserIDKey     contextKey = "user_id"
)

var ErrSessionExpired = errors.New("session expired")

// SessionGetter resolves a live session id to its user
type SessionGetter interface {
	Get(ctx context.Context, sessionID string) (uuid.UUID, error)
}

// Authenticator checks a token's signature and that its session still exists.
type Authenticator struct {
	signer   *Signer
	sessions SessionGetter
}

func NewAuthenticator(signer *Signer, sessions SessionGetter) *Authenticator {
	return &Authenticator{signer: signer, sessions: sessions}
}

// Authenticate returns the claims of a valid token whose session is live.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := a.signer.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	sessionUser, err := a.sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if sessionUser != userID {
		return nil, ErrSessionExpired
	}

	return claims, nil
}

// NewAuthInterceptor creates a ConnectRPC interceptor for authentication.
func NewAuthInterceptor(authn *Authenticator) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get(tokenHeader)
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing authorization header"))
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid authorization header format"))
			}

			claims, err := authn.Authenticate(ctx, strings.TrimPrefix(authHeader, tokenPrefix))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid or expired token"))
			}

			return next(WithClaims(ctx, claims), req)
		}
	}
}

// WithClaims stores the authenticated claims and user id in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, UserClaimsKey, claims)
	if id, err := claims.UserID(); err == nil {
		ctx = context.WithValue(ctx, UserIDKey, id)
	}
	return ctx
}

// GetUserClaims retrieves the full claims from the context.
func GetUserClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

// GetUserID retrieves the user ID from the context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}
