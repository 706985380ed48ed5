package models

import "github.com/google/uuid"

// Listing is the external subject a conversation is about. The catalog
// itself (CRUD, images, availability) lives in another service; only the
// reference row the messaging core needs is persisted here.
type Listing struct {
	Model
	Title    string    `json:"title" conform:"trim"`
	OwnerID  uuid.UUID `gorm:"type:uuid" json:"ownerId"`
	ImageURL string    `json:"imageUrl,omitempty"`
}
