package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/jwtauth/v5"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"social_auth/internal/common"
	"social_auth/internal/common/security"
	"social_auth/internal/domain/model"
	"social_auth/internal/domain/repository"
)

type contextKey string

const UserCtxKey contextKey = "user"

const (
	msgNotLoggedIn     = "You are not logged in! Please log in to get access."
	msgInvalidToken    = "Invalid token. Please log in again!"
	msgUserGone        = "The user belonging to this token does no longer exist."
	msgPasswordChanged = "User recently changed password! Please log in again."
	msgNoPermission    = "You do not have permission to perform this action"
)

// TokenVerifier checks a session token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*security.Claims, error)
}

// Gate resolves the session token on a request to a user.
type Gate struct {
	tokens TokenVerifier
	users  repository.UserRepository
	logger zerolog.Logger
}

func NewGate(tokens TokenVerifier, users repository.UserRepository, logger zerolog.Logger) *Gate {
	return &Gate{tokens: tokens, users: users, logger: logger}
}

// Protect rejects requests without a valid session with 401 and attaches the
// user to the context otherwise.
func (g *Gate) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.authenticate(r)
		if err != nil {
			if common.HTTPStatusFromError(err) >= http.StatusInternalServerError {
				g.logger.Error().Err(err).Msg("Failed to resolve session")
			}
			common.RespondWithDomainError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Identify attaches the user when the request carries a valid session and
// continues anonymously otherwise. It never rejects.
func (g *Gate) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (g *Gate) authenticate(r *http.Request) (*model.User, error) {
	token := jwtauth.TokenFromHeader(r)
	if token == "" {
		token = jwtauth.TokenFromCookie(r)
	}
	if token == "" {
		return nil, common.NewError(common.ErrUnauthorized, msgNotLoggedIn)
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, common.NewError(common.ErrUnauthorized, msgInvalidToken)
	}

	user, err := g.users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewError(common.ErrUnauthorized, msgUserGone)
		}
		return nil, oops.In("gate").Code("GATE_USER_LOOKUP_FAILED").
			With("user_id", claims.UserID).
			Wrap(err)
	}

	if user.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, common.NewError(common.ErrUnauthorized, msgPasswordChanged)
	}
	return user, nil
}

// RequireRole allows the request only if the attached user holds one of
// roles. Without an attached user it responds 403.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || !Allows(roles, user.Role) {
				common.RespondWithDomainError(w, common.NewError(common.ErrForbidden, msgNoPermission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allows reports whether role is in set.
func Allows(set []model.Role, role model.Role) bool {
	return role.Valid() && slices.Contains(set, role)
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserCtxKey, user)
}

// UserFromContext returns the user attached by Protect or Identify.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(UserCtxKey).(*model.User)
	return user, ok && user != nil
}
