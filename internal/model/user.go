package model

import "time"

// User is a platform user. UserID is the platform-native identifier;
// ReputationScore is the durable mirror of the cached reputation value.
type User struct {
	ID              int64
	UserID          int64
	Username        string
	ReputationScore float64
	FirstSeen       time.Time
	LastSeen        time.Time
	IsBannedGlobal  bool
	IsBot           bool
}
