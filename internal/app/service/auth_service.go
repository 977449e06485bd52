package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"social_auth/internal/common"
	"social_auth/internal/common/security"
	"social_auth/internal/domain/model"
	"social_auth/internal/domain/repository"
	"social_auth/internal/platform/mailer"
	"social_auth/internal/platform/metrics"
)

const (
	// LoggedOutToken replaces the session cookie on logout.
	LoggedOutToken = "loggedout"
	// LogoutCookieTTL is how long the replacement cookie lives.
	LogoutCookieTTL = 10 * time.Second

	resetMailSubject = "Your password reset code (valid for 5 min)"
	birthdateLayout  = "2006-01-02"
)

// Client-facing messages.
const (
	msgMissingCredentials = "Please provide email/username and password!"
	msgBadCredentials     = "Incorrect email or password"
	msgPasswordMismatch   = "Passwords are not the same!"
	msgMissingIdentifier  = "Please provide your email or username"
	msgNoSuchUser         = "There is no user with this email/username"
	msgMailFailed         = "There was an error sending the email. Try again later!"
	msgInvalidCode        = "Code is invalid or has expired"
	msgResetMismatch      = "Password should match the password confirm"
	msgWrongCurrent       = "Your current password is wrong."
	msgMissingNewPassword = "Please provide new password"
	msgUserGone           = "The user belonging to this token does no longer exist."
	msgPasswordTooLong    = "Password must be at most 72 bytes long"
	msgDuplicateUser      = "Email or username is already in use"
)

// dummyPassword is hashed once at construction. Logins for unknown
// identifiers verify against that hash so both failure paths cost one bcrypt
// comparison.
const dummyPassword = "timing-equalizer-not-a-credential"

// CodeGenerator produces password reset codes.
type CodeGenerator interface {
	Generate() string
}

// TokenIssuer signs session tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// AuthDeps are the collaborators of AuthService.
type AuthDeps struct {
	Users   repository.UserRepository
	Follows repository.FollowRepository
	Hasher  security.PasswordHasher
	Tokens  TokenIssuer
	Codes   CodeGenerator
	Mail    mailer.Sender
	Clock   common.Clock
	Logger  zerolog.Logger
	Metrics *metrics.AuthMetrics
	// PlatformAccountID is followed by every new user. Empty disables it.
	PlatformAccountID string
}

type AuthService struct {
	users             repository.UserRepository
	follows           repository.FollowRepository
	hasher            security.PasswordHasher
	tokens            TokenIssuer
	codes             CodeGenerator
	mail              mailer.Sender
	clock             common.Clock
	logger            zerolog.Logger
	metrics           *metrics.AuthMetrics
	platformAccountID string
	dummyHash         string
}

func NewAuthService(deps AuthDeps) (*AuthService, error) {
	if deps.Clock == nil {
		deps.Clock = common.SystemClock{}
	}
	dummyHash, err := deps.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &AuthService{
		users:             deps.Users,
		follows:           deps.Follows,
		hasher:            deps.Hasher,
		tokens:            deps.Tokens,
		codes:             deps.Codes,
		mail:              deps.Mail,
		clock:             deps.Clock,
		logger:            deps.Logger.With().Str("component", "auth_service").Logger(),
		metrics:           deps.Metrics,
		platformAccountID: deps.PlatformAccountID,
		dummyHash:         dummyHash,
	}, nil
}

type SignupRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Name            string `json:"name"`
	Gender          string `json:"gender"`
	Status          string `json:"status"`
	Birthdate       string `json:"birthdate"` // YYYY-MM-DD
}

// LoginRequest accepts either identifier; email is tried first.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// ResetPasswordRequest carries the reset code as code, or as tempCode for
// older clients. code wins when both are set.
type ResetPasswordRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Code            string `json:"code"`
	TempCode        string `json:"tempCode"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (r ResetPasswordRequest) resetCode() string {
	if code := strings.TrimSpace(r.Code); code != "" {
		return code
	}
	return strings.TrimSpace(r.TempCode)
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Signup creates a user, follows the platform account and returns a session.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (resp *AuthResponse, err error) {
	defer func() { s.metrics.ObserveOperation("signup", err) }()

	user, err := s.createUser(ctx, req, model.RoleUser)
	if err != nil {
		return nil, err
	}

	s.followPlatformAccount(ctx, user.ID)

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User signed up")
	return s.issue(user)
}

// CreateUser provisions an account with the given role. Unlike Signup it
// issues no token and skips the platform follow.
func (s *AuthService) CreateUser(ctx context.Context, req SignupRequest, role model.Role) (user *model.User, err error) {
	defer func() { s.metrics.ObserveOperation("create_user", err) }()

	if !role.Valid() {
		return nil, common.NewError(common.ErrValidation, "Unknown role")
	}
	user, err = s.createUser(ctx, req, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("User provisioned")
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, req SignupRequest, role model.Role) (*model.User, error) {
	user, err := s.newUser(req)
	if err != nil {
		return nil, err
	}
	user.Role = role

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.HashedPassword = hash

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.NewError(common.ErrConflict, msgDuplicateUser)
		}
		return nil, oops.In("auth").Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}
	return user, nil
}

func (s *AuthService) newUser(req SignupRequest) (*model.User, error) {
	email := repository.NormalizeIdentifier(req.Email)
	username := repository.NormalizeIdentifier(req.Username)

	if email == "" || username == "" || req.Password == "" {
		return nil, common.NewError(common.ErrValidation, "Please provide email, username and password")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, common.NewError(common.ErrValidation, "Please provide a valid email")
	}
	if !slug.IsSlug(username) {
		return nil, common.NewError(common.ErrValidation,
			"Username may only contain lowercase letters, digits and single hyphens")
	}
	if req.Password != req.PasswordConfirm {
		return nil, common.NewError(common.ErrValidation, msgPasswordMismatch)
	}

	user := &model.User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
		Role:     model.RoleUser,
		Profile: model.Profile{
			Name:   strings.TrimSpace(req.Name),
			Gender: strings.TrimSpace(req.Gender),
			Status: strings.TrimSpace(req.Status),
		},
	}
	if req.Birthdate != "" {
		birthdate, err := time.Parse(birthdateLayout, req.Birthdate)
		if err != nil {
			return nil, common.NewError(common.ErrValidation, "Birthdate must be formatted as YYYY-MM-DD")
		}
		if birthdate.After(s.clock.Now()) {
			return nil, common.NewError(common.ErrValidation, "Birthdate cannot be in the future")
		}
		user.Birthdate = &birthdate
	}
	return user, nil
}

// followPlatformAccount is best-effort: the user row is already committed.
func (s *AuthService) followPlatformAccount(ctx context.Context, userID string) {
	if s.follows == nil || s.platformAccountID == "" || s.platformAccountID == userID {
		return
	}
	err := s.follows.Follow(ctx, userID, s.platformAccountID)
	s.metrics.ObserveOperation("default_follow", err)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", userID).
			Str("platform_account_id", s.platformAccountID).
			Msg("Default follow failed; signup continues")
	}
}

// Login authenticates by email or username. Unknown identifiers and wrong
// passwords fail with the same error.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (resp *AuthResponse, err error) {
	defer func() { s.metrics.ObserveOperation("login", err) }()

	if (strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.Username) == "") || req.Password == "" {
		return nil, common.NewError(common.ErrValidation, msgMissingCredentials)
	}

	user, lookupErr := s.users.FindByIdentifier(ctx, req.Email, req.Username)
	if lookupErr != nil && !errors.Is(lookupErr, common.ErrNotFound) {
		return nil, oops.In("auth").Code("AUTH_LOGIN_FAILED").
			With("operation", "find user").
			Wrap(lookupErr)
	}

	targetHash := s.dummyHash
	if user != nil {
		targetHash = user.HashedPassword
	}
	valid := s.hasher.Verify(req.Password, targetHash)
	if user == nil || !valid {
		return nil, common.NewError(common.ErrUnauthorized, msgBadCredentials)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("User logged in")
	return s.issue(user)
}

// Logout returns the placeholder token and its expiry. Tokens already handed
// out stay valid until they expire or the password changes.
func (s *AuthService) Logout() (string, time.Time) {
	s.metrics.ObserveOperation("logout", nil)
	return LoggedOutToken, s.clock.Now().Add(LogoutCookieTTL)
}

// ForgotPassword stores a fresh reset code and mails it. If the mail cannot
// be sent the stored code is kept.
func (s *AuthService) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (err error) {
	defer func() { s.metrics.ObserveOperation("forgot_password", err) }()

	if strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.Username) == "" {
		return common.NewError(common.ErrValidation, msgMissingIdentifier)
	}

	user, err := s.users.FindByIdentifier(ctx, req.Email, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewError(common.ErrNotFound, msgNoSuchUser)
		}
		return oops.In("auth").Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "find user").
			Wrap(err)
	}

	code := s.codes.Generate()
	user.SetResetCode(code, s.clock.Now())
	if err := s.users.SaveResetCode(ctx, user); err != nil {
		return oops.In("auth").Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "store reset code").
			With("user_id", user.ID).
			Wrap(err)
	}

	body := fmt.Sprintf("Your password reset code is %s.\n\n"+
		"It is valid for 5 minutes. If you didn't forget your password, please ignore this email!", code)
	if err := s.mail.Send(ctx, user.Email, resetMailSubject, body); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to dispatch reset code")
		return common.NewError(common.ErrNotification, msgMailFailed)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("Password reset code sent")
	return nil
}

// ResetPassword completes a recovery flow started by ForgotPassword.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) (resp *AuthResponse, err error) {
	defer func() { s.metrics.ObserveOperation("reset_password", err) }()

	invalid := common.NewError(common.ErrInvalidCode, msgInvalidCode)
	code := req.resetCode()
	if code == "" {
		return nil, invalid
	}

	user, err := s.users.FindByIdentifier(ctx, req.Email, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, invalid
		}
		return nil, oops.In("auth").Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "find user").
			Wrap(err)
	}

	if user.ResetCode == nil || user.ResetCodeIssuedAt == nil ||
		!security.ResetCodesEqual(*user.ResetCode, code) ||
		!security.ResetCodeValid(*user.ResetCodeIssuedAt, s.clock.Now()) {
		return nil, invalid
	}

	if req.Password == "" {
		return nil, common.NewError(common.ErrValidation, msgMissingNewPassword)
	}
	if req.Password != req.PasswordConfirm {
		return nil, common.NewError(common.ErrValidation, msgResetMismatch)
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.SetPassword(hash, s.clock.Now())
	user.ClearResetCode()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, oops.In("auth").Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "save user").
			With("user_id", user.ID).
			Wrap(err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("Password reset")
	return s.issue(user)
}

// UpdatePassword changes the password of an authenticated user. Tokens issued
// before the change stop passing the gate.
func (s *AuthService) UpdatePassword(ctx context.Context, userID string, req UpdatePasswordRequest) (resp *AuthResponse, err error) {
	defer func() { s.metrics.ObserveOperation("update_password", err) }()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewError(common.ErrUnauthorized, msgUserGone)
		}
		return nil, oops.In("auth").Code("AUTH_UPDATE_PASSWORD_FAILED").
			With("operation", "find user").
			With("user_id", userID).
			Wrap(err)
	}

	if !s.hasher.Verify(req.PasswordCurrent, user.HashedPassword) {
		return nil, common.NewError(common.ErrUnauthorized, msgWrongCurrent)
	}
	if req.Password == "" {
		return nil, common.NewError(common.ErrValidation, msgMissingNewPassword)
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.SetPassword(hash, s.clock.Now())
	if err := s.users.Save(ctx, user); err != nil {
		return nil, oops.In("auth").Code("AUTH_UPDATE_PASSWORD_FAILED").
			With("operation", "save user").
			With("user_id", user.ID).
			Wrap(err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("Password updated")
	return s.issue(user)
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			return "", common.NewError(common.ErrValidation, msgPasswordTooLong)
		}
		return "", oops.In("auth").Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return hash, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, oops.In("auth").Code("AUTH_TOKEN_FAILED").
			With("user_id", user.ID).
			Wrap(err)
	}
	return &AuthResponse{User: user, Token: token}, nil
}
