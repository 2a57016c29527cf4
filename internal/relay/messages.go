package relay

import (
	"errors"
	"net/http"
	"time"

	"github.com/chatrelay/chatrelay/internal/types"
)

// Client-caused errors are reported only to the originating session and
// never affect other sessions or rooms. ErrPersistence is the one
// externally-caused failure; it is surfaced to the sender rather than
// silently dropped, and the message is not broadcast.
var (
	ErrAlreadyInRoom = errors.New("session is already in a room")
	ErrNotInRoom     = errors.New("session is not in a room")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrRoomNotFound  = errors.New("room not found")
	ErrPersistence   = errors.New("message could not be persisted")
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is an inbound frame. Exactly one of Join, Publish or
// Leave is set.
type ClientMessage struct {
	BaseMessage
	Join    *Join    `json:"join,omitempty"`
	Publish *Publish `json:"publish,omitempty"`
	Leave   *Leave   `json:"leave,omitempty"`
}

type Join struct {
	RoomId string `json:"room_id"`
}

type Publish struct {
	Content string `json:"content"`
}

type Leave struct{}

// ServerMessage is the tagged outbound envelope: a response to the
// session's own request, a broadcast chat message, or a presence event.
// A receiving client can always tell which variant it got.
type ServerMessage struct {
	BaseMessage
	Response *Response       `json:"response,omitempty"`
	Message  *types.Message  `json:"message,omitempty"`
	Presence *types.Presence `json:"presence,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

// ErrResponse maps a relay error to a coded wire response for the
// originating session.
func ErrResponse(id int, err error) *ServerMessage {
	var code int
	switch {
	case errors.Is(err, ErrAlreadyInRoom):
		code = http.StatusConflict
	case errors.Is(err, ErrNotInRoom), errors.Is(err, ErrEmptyMessage):
		code = http.StatusBadRequest
	case errors.Is(err, ErrRoomNotFound):
		code = http.StatusNotFound
	default:
		code = http.StatusInternalServerError
	}

	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}

	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        msg,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
