package repository

import (
	"context"
	"database/sql"
	"fmt"

	"social_auth/internal/platform/database"
)

// FollowRepository records follow relationships between users.
type FollowRepository interface {
	// Follow makes userID follow targetID. Both sides of the relationship are
	// written atomically; an existing relationship is left untouched.
	Follow(ctx context.Context, userID, targetID string) error
}

type pgFollowRepository struct {
	db *sql.DB
}

func NewPgFollowRepository(db *sql.DB) FollowRepository {
	return &pgFollowRepository{db: db}
}

func (r *pgFollowRepository) Follow(ctx context.Context, userID, targetID string) error {
	err := database.WithTx(ctx, r.db, func(ctx context.Context, tx database.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO followings (user_id, following_user_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, userID, targetID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO followers (user_id, follower_user_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, targetID, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("pgFollowRepository.Follow: %w", err)
	}
	return nil
}
