package store

import (
	"context"
	"fmt"

	"groupwarden.app/warden/common/id"
	"groupwarden.app/warden/core/db"
	"groupwarden.app/warden/internal/model"
)

type treatmentStore struct {
	q db.DBTX
}

func newTreatmentStore(q db.DBTX) TreatmentStore {
	return &treatmentStore{q: q}
}

func (s *treatmentStore) Create(ctx context.Context, record *model.TreatmentRecord) error {
	if record.ID == 0 {
		record.ID = id.New()
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO treatment_records
			(id, message_id, spam, confidence, category, reason,
			 action, action_message, deleted, points_docked, final_reputation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		record.ID, record.MessageID, record.Spam, record.Confidence, record.Category,
		record.Reason, string(record.Action), record.ActionMessage, record.Deleted,
		record.PointsDocked, record.FinalReputation)

	if err := row.Scan(&record.CreatedAt); err != nil {
		return fmt.Errorf("inserting treatment record: %w", err)
	}
	return nil
}

func (s *treatmentStore) ListByMessage(ctx context.Context, messageID int64) ([]model.TreatmentRecord, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, message_id, spam, confidence, COALESCE(category, ''), COALESCE(reason, ''),
		       action, action_message, deleted, points_docked, final_reputation, created_at
		FROM treatment_records
		WHERE message_id = $1
		ORDER BY created_at`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.TreatmentRecord
	for rows.Next() {
		var (
			r      model.TreatmentRecord
			action string
		)
		if err := rows.Scan(&r.ID, &r.MessageID, &r.Spam, &r.Confidence, &r.Category,
			&r.Reason, &action, &r.ActionMessage, &r.Deleted, &r.PointsDocked,
			&r.FinalReputation, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Action = model.Action(action)
		records = append(records, r)
	}
	return records, rows.Err()
}
