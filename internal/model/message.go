package model

import "time"

// Message types recorded for group activity. Media types get an enriched
// summary sourced from the associated media asset.
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeAudio    = "audio"
	MessageTypeVideo    = "video"
	MessageTypeDocument = "document"
	MessageTypeGIF      = "GIF"
	MessageTypeLink     = "link"
)

// IsMediaType reports whether messages of this type carry a media asset.
func IsMediaType(messageType string) bool {
	switch messageType {
	case MessageTypeImage, MessageTypeAudio, MessageTypeVideo, MessageTypeDocument, MessageTypeGIF:
		return true
	}
	return false
}

// Message is a durable message record, keyed by the group's platform chat id
// and the user's platform id.
type Message struct {
	ID                int64
	GroupID           int64
	UserID            int64
	Type              string
	Content           string
	Caption           string
	Summary           *string
	PlatformMessageID *int64
	IsSpam            bool
	Processed         bool
	CreatedAt         time.Time
}

// MediaAsset is the extracted-media record attached to a message.
type MediaAsset struct {
	ID            int64
	MessageID     int64
	MediaType     string
	URL           string
	Transcription *string
	OCRText       *string
	Summary       *string
	Processed     bool
	CreatedAt     time.Time
}
