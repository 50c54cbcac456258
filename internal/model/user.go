package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionUser is the signed-in identity as reported by the auth service.
type SessionUser struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url,omitempty"`
}

// DeviceToken maps a push token to the user that registered it.
type DeviceToken struct {
	Token     string
	UserID    uuid.UUID
	CreatedAt time.Time
}
