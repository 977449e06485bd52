package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"social_auth/internal/common"
	"social_auth/internal/domain/model"
	"social_auth/internal/platform/database"
)

// UserRepository is the user directory consulted by the auth core.
// Email and username are matched case-insensitively.
type UserRepository interface {
	// FindByIdentifier looks a user up by email or username. Empty values are
	// ignored. An email match wins over a username match.
	FindByIdentifier(ctx context.Context, email, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	// Save persists every mutable field of user. Returns common.ErrConflict on
	// a duplicate email or username.
	Save(ctx context.Context, user *model.User) error
	// SaveResetCode persists only the reset code fields of user, leaving the
	// password and every other column as currently stored.
	SaveResetCode(ctx context.Context, user *model.User) error
}

type pgUserRepository struct {
	db database.DBTX
}

func NewPgUserRepository(db database.DBTX) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, email, hashed_password, role, name, gender, status, birthdate,
	          password_changed_at, reset_code, reset_code_issued_at, created_at, updated_at`

// NormalizeIdentifier lowercases and trims an email or username.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password, role, name, gender, status, birthdate)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, NormalizeIdentifier(user.Username), NormalizeIdentifier(user.Email), user.HashedPassword,
		string(user.Role), user.Name, user.Gender, user.Status, nullTime(user.Birthdate),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByIdentifier(ctx context.Context, email, username string) (*model.User, error) {
	email, username = NormalizeIdentifier(email), NormalizeIdentifier(username)
	if email == "" && username == "" {
		return nil, common.ErrNotFound
	}
	query := `SELECT ` + userColumns + `
	          FROM users
	          WHERE ($1 <> '' AND email = $1) OR ($2 <> '' AND username = $2)
	          ORDER BY (email = $1) DESC
	          LIMIT 1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByIdentifier: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}
	query := `SELECT ` + userColumns + `
	          FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) Save(ctx context.Context, user *model.User) error {
	query := `UPDATE users
	          SET username = $2, email = $3, hashed_password = $4, role = $5, name = $6, gender = $7,
	              status = $8, birthdate = $9, password_changed_at = $10, reset_code = $11,
	              reset_code_issued_at = $12, updated_at = now()
	          WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		user.ID, NormalizeIdentifier(user.Username), NormalizeIdentifier(user.Email), user.HashedPassword,
		string(user.Role), user.Name, user.Gender, user.Status, nullTime(user.Birthdate),
		nullTime(user.PasswordChangedAt), nullString(user.ResetCode), nullTime(user.ResetCodeIssuedAt),
	)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Save: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgUserRepository.Save: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) SaveResetCode(ctx context.Context, user *model.User) error {
	query := `UPDATE users
	          SET reset_code = $2, reset_code_issued_at = $3, updated_at = now()
	          WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, user.ID, nullString(user.ResetCode), nullTime(user.ResetCodeIssuedAt))
	if err != nil {
		return fmt.Errorf("pgUserRepository.SaveResetCode: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgUserRepository.SaveResetCode: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var user model.User
	var role string
	var birthdate, changedAt, resetCodeIssuedAt sql.NullTime
	var resetCode sql.NullString
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword, &role, &user.Name, &user.Gender,
		&user.Status, &birthdate, &changedAt, &resetCode, &resetCodeIssuedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	user.Birthdate = timePtr(birthdate)
	user.PasswordChangedAt = timePtr(changedAt)
	user.ResetCodeIssuedAt = timePtr(resetCodeIssuedAt)
	if resetCode.Valid {
		code := resetCode.String
		user.ResetCode = &code
	}
	return &user, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
