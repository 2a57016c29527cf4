package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id          int       `json:"id"`
	ExternalId  string    `json:"external_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerId     int       `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Message is a chat message in its canonical persisted form. Id and
// CreatedAt are assigned by the message store exactly once, when the
// write succeeds. The same shape is used for live broadcasts and for
// history replay so clients cannot tell the two apart.
type Message struct {
	Id        int64     `json:"id"`
	RoomId    string    `json:"room_id"`
	UserId    int       `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Presence is a transient join/left notification. It is never persisted
// and never replayed.
type Presence struct {
	RoomId   string `json:"room_id"`
	Username string `json:"username"`
	Joined   bool   `json:"joined"`
}
