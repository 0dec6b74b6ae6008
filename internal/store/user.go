package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"groupwarden.app/warden/core/db"
	"groupwarden.app/warden/internal/model"
)

type userStore struct {
	q db.DBTX
}

func newUserStore(q db.DBTX) UserStore {
	return &userStore{q: q}
}

func (s *userStore) GetByUserID(ctx context.Context, userID int64) (*model.User, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, user_id, COALESCE(username, ''), reputation_score,
		       first_seen, last_seen, is_banned_global, is_bot
		FROM users
		WHERE user_id = $1`, userID)

	var u model.User
	err := row.Scan(&u.ID, &u.UserID, &u.Username, &u.ReputationScore,
		&u.FirstSeen, &u.LastSeen, &u.IsBannedGlobal, &u.IsBot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *userStore) UpdateReputation(ctx context.Context, userID int64, score float64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE users SET reputation_score = $2 WHERE user_id = $1`, userID, score)
	if err != nil {
		return fmt.Errorf("updating reputation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
