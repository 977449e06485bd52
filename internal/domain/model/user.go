package model

import (
	"time"
)

// Role is a deployment-defined permission level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// Profile holds the non-credential fields collected at signup.
type Profile struct {
	Name      string     `json:"name"`
	Gender    string     `json:"gender,omitempty"`
	Status    string     `json:"status,omitempty"`
	Birthdate *time.Time `json:"birthdate,omitempty"`
}

type User struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	HashedPassword    string     `json:"-"` // Not exposed
	Role              Role       `json:"role"`
	PasswordChangedAt *time.Time `json:"-"`
	ResetCode         *string    `json:"-"`
	ResetCodeIssuedAt *time.Time `json:"-"`
	Profile
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetPassword stores a new hash and records the change. Token iat has
// millisecond precision, so the change is recorded one millisecond before
// now: a token minted right after the change compares as newer.
func (u *User) SetPassword(hash string, now time.Time) {
	changedAt := now.Truncate(time.Millisecond).Add(-time.Millisecond)
	u.HashedPassword = hash
	u.PasswordChangedAt = &changedAt
	u.UpdatedAt = now
}

// SetResetCode starts a recovery flow. Code and issue time are set together.
func (u *User) SetResetCode(code string, now time.Time) {
	u.ResetCode = &code
	u.ResetCodeIssuedAt = &now
	u.UpdatedAt = now
}

// ClearResetCode ends a recovery flow.
func (u *User) ClearResetCode() {
	u.ResetCode = nil
	u.ResetCodeIssuedAt = nil
}

// ChangedPasswordAfter reports whether the password changed at or after a
// token issued at issuedAt, which makes that token stale.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return !issuedAt.After(*u.PasswordChangedAt)
}
