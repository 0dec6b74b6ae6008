package model

import "time"

// CachedFromMessage converts a durable message row into its cache form.
func CachedFromMessage(m Message) CachedMessage {
	return CachedMessage{
		ID:                m.ID,
		Type:              m.Type,
		Text:              m.Content,
		UserID:            m.UserID,
		GroupID:           m.GroupID,
		CreatedAt:         m.CreatedAt.UTC().Format(time.RFC3339),
		PlatformMessageID: m.PlatformMessageID,
	}
}

// SnapshotFromConfig converts a durable config row into its cache form.
func SnapshotFromConfig(cfg *GroupConfig) GroupConfigSnapshot {
	snapshot := GroupConfigSnapshot{
		ID:                      cfg.ID,
		GroupID:                 cfg.GroupID,
		GroupDescription:        cfg.GroupDescription,
		SpamSensitivity:         cfg.SpamSensitivity,
		SpamConfidenceThreshold: cfg.SpamConfidenceThreshold,
		SpamRules:               cfg.SpamRules,
		RAGEnabled:              cfg.RAGEnabled,
		Personality:             cfg.Personality,
		ModerationFeatures:      cfg.ModerationFeatures,
		ToolsEnabled:            cfg.ToolsEnabled,
	}
	if cfg.LastUpdated != nil {
		formatted := cfg.LastUpdated.UTC().Format(time.RFC3339)
		snapshot.LastUpdated = &formatted
	}
	return snapshot
}
