package store

import (
	"context"
	"errors"

	"groupwarden.app/warden/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// GroupStore defines the contract for group data access
type GroupStore interface {
	GetByChatID(ctx context.Context, chatID int64) (*model.Group, error)
	ListChatIDs(ctx context.Context) ([]int64, error)
}

// GroupConfigStore defines the contract for bot-configuration data access
type GroupConfigStore interface {
	GetByGroupID(ctx context.Context, groupID int64) (*model.GroupConfig, error)
}

// UserStore defines the contract for user data access
type UserStore interface {
	GetByUserID(ctx context.Context, userID int64) (*model.User, error)
	UpdateReputation(ctx context.Context, userID int64, score float64) error
}

// MessageStore defines the contract for message and media-asset data access
type MessageStore interface {
	// ListRecentByGroup returns the newest messages for a group's chat id,
	// newest first, up to limit.
	ListRecentByGroup(ctx context.Context, chatID int64, limit int) ([]model.Message, error)
	GetMediaAsset(ctx context.Context, messageID int64) (*model.MediaAsset, error)
}

// TreatmentStore defines the contract for moderation audit rows
type TreatmentStore interface {
	Create(ctx context.Context, record *model.TreatmentRecord) error
	ListByMessage(ctx context.Context, messageID int64) ([]model.TreatmentRecord, error)
}
