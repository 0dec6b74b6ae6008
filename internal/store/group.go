package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"groupwarden.app/warden/core/db"
	"groupwarden.app/warden/internal/model"
)

type groupStore struct {
	q db.DBTX
}

func newGroupStore(q db.DBTX) GroupStore {
	return &groupStore{q: q}
}

func (s *groupStore) GetByChatID(ctx context.Context, chatID int64) (*model.Group, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, chat_id, name, has_config, language, created_at, COALESCE(updated_at, created_at)
		FROM groups
		WHERE chat_id = $1`, chatID)

	var g model.Group
	err := row.Scan(&g.ID, &g.ChatID, &g.Name, &g.HasConfig, &g.Language, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *groupStore) ListChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT chat_id FROM groups ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type groupConfigStore struct {
	q db.DBTX
}

func newGroupConfigStore(q db.DBTX) GroupConfigStore {
	return &groupConfigStore{q: q}
}

func (s *groupConfigStore) GetByGroupID(ctx context.Context, groupID int64) (*model.GroupConfig, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, group_id, COALESCE(group_description, ''), spam_sensitivity,
		       spam_confidence_threshold, COALESCE(spam_rules, ''), rag_enabled,
		       COALESCE(personality, ''), COALESCE(moderation_features, '{}'::jsonb),
		       tools_enabled, last_updated
		FROM bot_configs
		WHERE group_id = $1`, groupID)

	var (
		cfg      model.GroupConfig
		features []byte
	)
	err := row.Scan(&cfg.ID, &cfg.GroupID, &cfg.GroupDescription, &cfg.SpamSensitivity,
		&cfg.SpamConfidenceThreshold, &cfg.SpamRules, &cfg.RAGEnabled,
		&cfg.Personality, &features, &cfg.ToolsEnabled, &cfg.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(features) > 0 {
		if err := json.Unmarshal(features, &cfg.ModerationFeatures); err != nil {
			// A corrupt toggle blob should not hide the rest of the config.
			cfg.ModerationFeatures = nil
		}
	}
	return &cfg, nil
}
