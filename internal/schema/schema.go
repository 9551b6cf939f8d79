// Package schema describes the stored records and the request bodies that create them.
package schema

import (
	"strings"

	"chat-api/internal/storage"
)

// Collection names
const (
	UserCollection    = "user"
	RoomCollection    = "room"
	MessageCollection = "message"
)

// Field defaults
const (
	DefaultUserStatus  = "online"
	DefaultRoomType    = "channel"
	DefaultMessageType = "text"
)

// Bounds of message content, counted in characters after trimming whitespace
const (
	MinContentLength = 1
	MaxContentLength = 5000
)

// Fields referenced by handlers
const (
	RoomMembersField = "members"
	MessageRoomField = "room_id"
)

// CreateUser is the body of POST /api/users
type CreateUser struct {
	DisplayName *string `json:"display_name" validate:"required"`
	AvatarURL   *string `json:"avatar_url"`
}

// User builds user record with default status
func (in CreateUser) User() storage.Document {
	var avatar interface{}
	if in.AvatarURL != nil {
		avatar = *in.AvatarURL
	}
	return storage.Document{
		"display_name": *in.DisplayName,
		"avatar_url":   avatar,
		"status":       DefaultUserStatus,
	}
}

// CreateRoom is the body of POST /api/rooms
type CreateRoom struct {
	Name      *string  `json:"name" validate:"required"`
	IsPrivate bool     `json:"is_private"`
	Members   []string `json:"members"`
}

// Room builds room record of default type, members default to empty list
func (in CreateRoom) Room() storage.Document {
	members := make([]interface{}, 0, len(in.Members))
	for _, m := range in.Members {
		members = append(members, m)
	}
	return storage.Document{
		"name":           *in.Name,
		"type":           DefaultRoomType,
		RoomMembersField: members,
		"is_private":     in.IsPrivate,
	}
}

// JoinRoom is the body of POST /api/rooms/{id}/join
type JoinRoom struct {
	UserID *string `json:"user_id" validate:"required"`
}

// SendMessage is the body of POST /api/rooms/{id}/messages
type SendMessage struct {
	SenderID *string `json:"sender_id" validate:"required"`
	Content  *string `json:"content" validate:"required,min=1,max=5000"`
	Type     *string `json:"type"`
}

// Normalize trims content, the length bounds apply to the trimmed value
func (in *SendMessage) Normalize() {
	if in.Content != nil {
		trimmed := strings.TrimSpace(*in.Content)
		in.Content = &trimmed
	}
}

// Message builds message record for room roomID, edit and delete flags start cleared
func (in SendMessage) Message(roomID string) storage.Document {
	typ := DefaultMessageType
	if in.Type != nil {
		typ = *in.Type
	}
	return storage.Document{
		MessageRoomField: roomID,
		"sender_id":      *in.SenderID,
		"content":        *in.Content,
		"type":           typ,
		"is_edited":      false,
		"is_deleted":     false,
	}
}
