package models

import (
	"github.com/google/uuid"
)

// User represents a marketplace account. Registration and e-mail
// verification are owned by the accounts service; this row carries what the
// messaging core needs to authenticate, address and notify a participant.
type User struct {
	Model
	Name           string `json:"name" binding:"required,min=2" conform:"trim"`
	Email          string `json:"email" gorm:"unique;not null" binding:"required,email" conform:"trim,lower"`
	CampusID       string `json:"campusId,omitempty" conform:"trim"`
	HashedPassword string `json:"-"`
	DeviceToken    string `json:"-"`
}

// UserRef is the compact sender shape carried on realtime payloads and
// message listings.
type UserRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name}
}

// Blacklist holds revoked access tokens.
type Blacklist struct {
	Model
	Email string `json:"email"`
	Token string `gorm:"type:text" json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" conform:"trim,lower"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type DeviceTokenRequest struct {
	DeviceToken string `json:"deviceToken" binding:"required" conform:"trim"`
}
