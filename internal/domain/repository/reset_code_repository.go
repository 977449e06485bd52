package repository

import (
	"context"
	"fmt"
	"time"

	"social_auth/internal/platform/database"
)

// ResetCodeRepository maintains outstanding password reset codes.
type ResetCodeRepository interface {
	// PurgeIssuedBefore clears every reset code issued before cutoff and
	// returns how many users were affected.
	PurgeIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type pgResetCodeRepository struct {
	db database.DBTX
}

func NewPgResetCodeRepository(db database.DBTX) ResetCodeRepository {
	return &pgResetCodeRepository{db: db}
}

func (r *pgResetCodeRepository) PurgeIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE users
	          SET reset_code = NULL, reset_code_issued_at = NULL, updated_at = now()
	          WHERE reset_code_issued_at IS NOT NULL AND reset_code_issued_at <= $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pgResetCodeRepository.PurgeIssuedBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pgResetCodeRepository.PurgeIssuedBefore: %w", err)
	}
	return n, nil
}
