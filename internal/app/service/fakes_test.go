package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social_auth/internal/common"
	"social_auth/internal/common/security"
	"social_auth/internal/domain/model"
	"social_auth/internal/domain/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memUsers is an in-memory UserRepository that stores copies.
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]model.User
	saveErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]model.User)}
}

func (r *memUsers) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email || u.Username == user.Username {
			return common.ErrConflict
		}
	}
	r.byID[user.ID] = *user
	return nil
}

func (r *memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *memUsers) FindByIdentifier(_ context.Context, email, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email, username = repository.NormalizeIdentifier(email), repository.NormalizeIdentifier(username)
	if email != "" {
		for _, u := range r.byID {
			if u.Email == email {
				return &u, nil
			}
		}
	}
	if username != "" {
		for _, u := range r.byID {
			if u.Username == username {
				return &u, nil
			}
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUsers) Save(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.byID[user.ID]; !ok {
		return common.ErrNotFound
	}
	r.byID[user.ID] = *user
	return nil
}

func (r *memUsers) SaveResetCode(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.byID[user.ID]
	if !ok {
		return common.ErrNotFound
	}
	stored.ResetCode, stored.ResetCodeIssuedAt = user.ResetCode, user.ResetCodeIssuedAt
	stored.UpdatedAt = user.UpdatedAt
	r.byID[user.ID] = stored
	return nil
}

// interleavedUsers runs afterLookup once, between a FindByIdentifier read
// and whatever write the caller makes next.
type interleavedUsers struct {
	*memUsers
	afterLookup func()
}

func (r *interleavedUsers) FindByIdentifier(ctx context.Context, email, username string) (*model.User, error) {
	u, err := r.memUsers.FindByIdentifier(ctx, email, username)
	if hook := r.afterLookup; hook != nil {
		r.afterLookup = nil
		hook()
	}
	return u, err
}

func (r *memUsers) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type mockFollows struct {
	mock.Mock
}

func (m *mockFollows) Follow(ctx context.Context, userID, targetID string) error {
	args := m.Called(ctx, userID, targetID)
	return args.Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type fixedCode string

func (c fixedCode) Generate() string { return string(c) }

const (
	testPlatformAccount = "platform-account"
	testResetCode       = "123456"
)

type authFixture struct {
	svc     *AuthService
	users   *memUsers
	follows *mockFollows
	sender  *mockSender
	clock   *fakeClock
	codec   *security.TokenCodec
	hasher  *security.BcryptHasher
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	hasher, err := security.NewBcryptHasher(security.MinBcryptCost)
	require.NoError(t, err)
	codec, err := security.NewTokenCodec([]byte("test-secret"), 72*time.Hour, clock)
	require.NoError(t, err)

	f := &authFixture{
		users:   newMemUsers(),
		follows: &mockFollows{},
		sender:  &mockSender{},
		clock:   clock,
		codec:   codec,
		hasher:  hasher,
	}
	f.svc, err = NewAuthService(AuthDeps{
		Users:             f.users,
		Follows:           f.follows,
		Hasher:            hasher,
		Tokens:            codec,
		Codes:             fixedCode(testResetCode),
		Mail:              f.sender,
		Clock:             clock,
		Logger:            zerolog.Nop(),
		PlatformAccountID: testPlatformAccount,
	})
	require.NoError(t, err)
	return f
}

// serviceOver returns a second service sharing the fixture's collaborators
// but reading and writing users through users.
func (f *authFixture) serviceOver(t *testing.T, users repository.UserRepository) *AuthService {
	t.Helper()
	svc, err := NewAuthService(AuthDeps{
		Users:             users,
		Follows:           f.follows,
		Hasher:            f.hasher,
		Tokens:            f.codec,
		Codes:             fixedCode(testResetCode),
		Mail:              f.sender,
		Clock:             f.clock,
		Logger:            zerolog.Nop(),
		PlatformAccountID: testPlatformAccount,
	})
	require.NoError(t, err)
	return svc
}

func (f *authFixture) signup(t *testing.T, email, username, password string) *AuthResponse {
	t.Helper()
	f.follows.On("Follow", mock.Anything, mock.Anything, testPlatformAccount).Return(nil).Maybe()
	resp, err := f.svc.Signup(context.Background(), SignupRequest{
		Email: email, Username: username, Password: password, PasswordConfirm: password,
	})
	require.NoError(t, err)
	return resp
}

// stale reports whether token would be rejected by the gate for userID.
func (f *authFixture) stale(t *testing.T, token, userID string) bool {
	t.Helper()
	claims, err := f.codec.Verify(token)
	require.NoError(t, err)
	u, err := f.users.FindByID(context.Background(), userID)
	require.NoError(t, err)
	return u.ChangedPasswordAfter(claims.IssuedAt)
}
