package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"groupwarden.app/warden/core/db"
	"groupwarden.app/warden/internal/model"
)

type messageStore struct {
	q db.DBTX
}

func newMessageStore(q db.DBTX) MessageStore {
	return &messageStore{q: q}
}

func (s *messageStore) ListRecentByGroup(ctx context.Context, chatID int64, limit int) ([]model.Message, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, group_id, user_id, message_type, COALESCE(content, ''),
		       COALESCE(caption, ''), summary, platform_message_id, is_spam, processed, created_at
		FROM messages
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Type, &m.Content,
			&m.Caption, &m.Summary, &m.PlatformMessageID, &m.IsSpam, &m.Processed, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *messageStore) GetMediaAsset(ctx context.Context, messageID int64) (*model.MediaAsset, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, message_id, media_type, COALESCE(url, ''),
		       transcription, ocr_text, summary, processed, created_at
		FROM media_assets
		WHERE message_id = $1
		ORDER BY id
		LIMIT 1`, messageID)

	var a model.MediaAsset
	err := row.Scan(&a.ID, &a.MessageID, &a.MediaType, &a.URL,
		&a.Transcription, &a.OCRText, &a.Summary, &a.Processed, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
