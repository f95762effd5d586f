package models

import "errors"

var (
	ErrInvalidHandle     = errors.New("handle must be a non-empty string")
	ErrMalformedResponse = errors.New("malformed response")
)

// ConnectionState describes the lifecycle of one live messaging session.
type ConnectionState string

const (
	StateIdle       ConnectionState = "idle"
	StateConnecting ConnectionState = "connecting"
	StateOpen       ConnectionState = "open"
	StateClosed     ConnectionState = "closed"
	StateFailed     ConnectionState = "failed"
)

// Message is a single chat message as the backend delivers it, both in
// history snapshots and on the live stream. ID is empty for messages the
// server has not yet assigned one.
type Message struct {
	ID   string `json:"id,omitempty"`
	User string `json:"user"`
	Text string `json:"text"`
	Room string `json:"room,omitempty"`
}

// Partner is one entry of the chat-partners endpoint.
type Partner struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// PartnerSummary is one row of the conversations directory: a partner plus
// the last message exchanged with them, if any.
type PartnerSummary struct {
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatarUrl"`
	LastMessage string `json:"lastMessage"`
}
