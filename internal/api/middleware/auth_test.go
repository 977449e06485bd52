package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social_auth/internal/common"
	"social_auth/internal/common/security"
	"social_auth/internal/domain/model"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type stubUsers struct {
	users map[string]*model.User
	err   error
}

func (s *stubUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (s *stubUsers) FindByIdentifier(context.Context, string, string) (*model.User, error) {
	return nil, common.ErrNotFound
}

func (s *stubUsers) Create(context.Context, *model.User) error { return nil }

func (s *stubUsers) Save(context.Context, *model.User) error { return nil }

func (s *stubUsers) SaveResetCode(context.Context, *model.User) error { return nil }

type gateFixture struct {
	gate  *Gate
	codec *security.TokenCodec
	clock *testClock
	users *stubUsers
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := security.NewTokenCodec([]byte("gate-secret"), time.Hour, clock)
	require.NoError(t, err)
	users := &stubUsers{users: map[string]*model.User{
		"u-1": {ID: "u-1", Username: "alice", Role: model.RoleUser},
		"u-2": {ID: "u-2", Username: "root", Role: model.RoleAdmin},
	}}
	return &gateFixture{gate: NewGate(codec, users, zerolog.Nop()), codec: codec, clock: clock, users: users}
}

func (f *gateFixture) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := f.codec.Issue(userID)
	require.NoError(t, err)
	return tok
}

// echoUser writes the attached user's id, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if u, ok := UserFromContext(r.Context()); ok {
		w.Write([]byte(u.ID))
		return
	}
	w.Write([]byte("anonymous"))
})

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fail", body.Status)
	return body.Message
}

func TestGate_Protect(t *testing.T) {
	f := newGateFixture(t)
	handler := f.gate.Protect(echoUser)

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "u-1"))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u-1", rec.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "jwt", Value: f.token(t, "u-1")})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u-1", rec.Body.String())
	})

	rejections := []struct {
		name    string
		prepare func(t *testing.T, req *http.Request)
		message string
	}{
		{"no token", func(*testing.T, *http.Request) {}, msgNotLoggedIn},
		{"garbage token", func(_ *testing.T, req *http.Request) {
			req.Header.Set("Authorization", "Bearer not.a.token")
		}, msgInvalidToken},
		{"logged out cookie", func(_ *testing.T, req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "jwt", Value: "loggedout"})
		}, msgInvalidToken},
		{"deleted user", func(t *testing.T, req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+f.token(t, "u-deleted"))
		}, msgUserGone},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.prepare(t, req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.message, decodeMessage(t, rec))
		})
	}

	t.Run("expired token", func(t *testing.T) {
		tok := f.token(t, "u-1")
		f.clock.now = f.clock.now.Add(2 * time.Hour)
		defer func() { f.clock.now = f.clock.now.Add(-2 * time.Hour) }()

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, msgInvalidToken, decodeMessage(t, rec))
	})

	t.Run("password changed after issue", func(t *testing.T) {
		tok := f.token(t, "u-1")
		user := f.users.users["u-1"]
		user.SetPassword("new-hash", f.clock.now.Add(5*time.Second))
		defer func() { user.PasswordChangedAt = nil }()

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, msgPasswordChanged, decodeMessage(t, rec))
	})

	t.Run("directory failure is a 500", func(t *testing.T) {
		f := newGateFixture(t)
		f.users.err = errors.New("connection reset")
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "u-1"))
		rec := httptest.NewRecorder()

		f.gate.Protect(echoUser).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	})
}

func TestGate_Identify(t *testing.T) {
	f := newGateFixture(t)
	handler := f.gate.Identify(echoUser)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid session", "Bearer " + f.token(t, "u-1"), "u-1"},
		{"no session", "", "anonymous"},
		{"invalid session", "Bearer junk", "anonymous"},
		{"unknown user", "Bearer " + f.token(t, "ghost"), "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/profile/u-1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestRequireRole(t *testing.T) {
	f := newGateFixture(t)
	handler := f.gate.Protect(RequireRole(model.RoleAdmin)(echoUser))

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/u-1", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "u-2"))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("user with valid token is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/u-2", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "u-1"))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, msgNoPermission, decodeMessage(t, rec))
	})

	t.Run("no attached user fails closed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireRole(model.RoleAdmin)(echoUser).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAllows(t *testing.T) {
	tests := []struct {
		name string
		set  []model.Role
		role model.Role
		want bool
	}{
		{"member", []model.Role{model.RoleAdmin, model.RoleUser}, model.RoleUser, true},
		{"not member", []model.Role{model.RoleAdmin}, model.RoleUser, false},
		{"empty set", nil, model.RoleAdmin, false},
		{"unknown role", []model.Role{"superuser"}, "superuser", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allows(tt.set, tt.role))
		})
	}
}
