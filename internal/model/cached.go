package model

// Types stored in the recency caches. Timestamps are carried as RFC 3339
// strings because that is the cache wire format; parsing happens at the
// point of use (staleness checks, frequency scoring).

// CachedMessage is the per-window activity record. Identity for window
// deduplication is the durable message id.
type CachedMessage struct {
	ID                int64  `json:"id"`
	Type              string `json:"type"`
	Text              string `json:"text"`
	UserID            int64  `json:"user_id"`
	GroupID           int64  `json:"group_id"`
	CreatedAt         string `json:"created_at"`
	PlatformMessageID *int64 `json:"platform_message_id,omitempty"`
}

// EnrichedSummary is the post-enrichment record kept in the shorter
// enriched window. Identity is the originating message id.
type EnrichedSummary struct {
	ID        int64  `json:"id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

// GroupState is the cached snapshot of a group row. Never authoritative;
// refreshed from the durable store on every write.
type GroupState struct {
	ID        int64  `json:"id"`
	ChatID    int64  `json:"chat_id"`
	Name      string `json:"name"`
	HasConfig bool   `json:"has_config"`
}

// GroupConfigSnapshot is the cached snapshot of a group's bot configuration.
type GroupConfigSnapshot struct {
	ID                      int64           `json:"id"`
	GroupID                 int64           `json:"group_id"`
	GroupDescription        string          `json:"group_description"`
	SpamSensitivity         string          `json:"spam_sensitivity"`
	SpamConfidenceThreshold float64         `json:"spam_confidence_threshold"`
	SpamRules               string          `json:"spam_rules"`
	RAGEnabled              bool            `json:"rag_enabled"`
	Personality             string          `json:"personality"`
	ModerationFeatures      map[string]bool `json:"moderation_features"`
	ToolsEnabled            bool            `json:"tools_enabled"`
	LastUpdated             *string         `json:"last_updated"`
}

// SpamDetectionEnabled reports the spam-detection feature toggle,
// defaulting to enabled when the toggle is unset.
func (c *GroupConfigSnapshot) SpamDetectionEnabled() bool {
	if c == nil || c.ModerationFeatures == nil {
		return true
	}
	enabled, ok := c.ModerationFeatures["spam_detection"]
	if !ok {
		return true
	}
	return enabled
}
