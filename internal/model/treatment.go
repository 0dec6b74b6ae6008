package model

import "time"

// Action is the treatment selected by the reputation ladder.
type Action string

const (
	ActionNone          Action = "none"
	ActionWarningMild   Action = "warning_mild"
	ActionWarningStrong Action = "warning_strong"
	ActionProbation     Action = "probation"
	ActionBan           Action = "ban"
)

// Verdict is a spam classification for a single message. Produced by the
// classifier collaborator, consumed by the treatment engine.
type Verdict struct {
	Spam       bool     `json:"spam"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	Categories []string `json:"categories"`
}

// Category returns the primary category, or empty when none was assigned.
func (v Verdict) Category() string {
	if len(v.Categories) == 0 {
		return ""
	}
	return v.Categories[0]
}

// TreatmentRecord is the durable audit row written once per evaluated
// message, capturing the verdict and the treatment outcome.
type TreatmentRecord struct {
	ID              int64
	MessageID       *int64
	Spam            bool
	Confidence      float64
	Category        string
	Reason          string
	Action          Action
	ActionMessage   *string
	Deleted         bool
	PointsDocked    int
	FinalReputation *int
	CreatedAt       time.Time
}
