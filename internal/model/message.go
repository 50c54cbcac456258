// Package model defines data structure.
package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus tracks a record through the two-phase image write.
type MessageStatus string

const (
	StatusPending  MessageStatus = "pending"
	StatusComplete MessageStatus = "complete"
	StatusFailed   MessageStatus = "failed"
)

// Message is one chat record as held by the live store. CreatedAt is nil
// while the write has not been acknowledged by the store yet.
type Message struct {
	ID            string        `json:"id"`
	AuthorID      uuid.UUID     `json:"author_id"`
	Name          string        `json:"name"`
	Text          string        `json:"text,omitempty"`
	ImageURL      string        `json:"image_url,omitempty"`
	ProfilePicURL string        `json:"profile_pic_url,omitempty"`
	StorageURI    string        `json:"storage_uri,omitempty"`
	Status        MessageStatus `json:"status"`
	CreatedAt     *time.Time    `json:"created_at,omitempty"`
}

// Pending reports whether the store has not assigned a timestamp yet.
func (m Message) Pending() bool {
	return m.CreatedAt == nil
}
