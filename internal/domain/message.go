package domain

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	MessageText        MessageType = "text"
	MessageCallHistory MessageType = "call-history"
)

// CallStatus is the outcome recorded in call history.
type CallStatus string

const (
	CallMissed    CallStatus = "missed"
	CallCompleted CallStatus = "completed"
	CallDeclined  CallStatus = "declined"
)

var ErrEmptyMessage = errors.New("message content cannot be empty")

// Message is an already-persisted chat record as clients see it.
type Message struct {
	ID        string          `json:"id"`
	RoomID    RoomID          `json:"roomId"`
	SenderID  UserID          `json:"senderId"`
	Content   *string         `json:"content"`
	Type      MessageType     `json:"type"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt int64           `json:"createdAt"`
	Files     []File          `json:"files"`
}

// File is an attachment reference; uploads are handled elsewhere.
type File struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
}

// MessageDraft is what a sender asks the store to persist.
type MessageDraft struct {
	RoomID   RoomID
	SenderID UserID
	Content  string
	Type     MessageType
	Metadata json.RawMessage
}

func (d MessageDraft) Validate() error {
	if d.RoomID == "" {
		return ErrEmptyRoomID
	}
	if d.Type == MessageText && d.Content == "" {
		return ErrEmptyMessage
	}
	return nil
}
