package database

import "time"

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id          int
	ExternalId  string
	Name        string
	Description string
	OwnerId     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message rows carry the denormalized sender username so a broadcast or
// history page never needs a second lookup.
type Message struct {
	Id        int64
	RoomId    string
	UserId    int
	Username  string
	Content   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerId     int    `json:"-"`
	ExternalId  string `json:"external_id"`
}
