package model

import "time"

// Group is a chat group known to the bot. ChatID is the platform-native
// chat identifier; ID is the internal primary key.
type Group struct {
	ID        int64
	ChatID    int64
	Name      string
	HasConfig bool
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupConfig is the per-group moderation and personality configuration.
type GroupConfig struct {
	ID                      int64
	GroupID                 int64
	GroupDescription        string
	SpamSensitivity         string
	SpamConfidenceThreshold float64
	SpamRules               string
	RAGEnabled              bool
	Personality             string
	ModerationFeatures      map[string]bool
	ToolsEnabled            bool
	LastUpdated             *time.Time
}
