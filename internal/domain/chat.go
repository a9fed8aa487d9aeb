package domain

import (
	"fmt"
	"time"
)

// ChatEventType distinguishes inbound chat events
type ChatEventType string

const (
	ChatEventMessage ChatEventType = "message"
	ChatEventCommand ChatEventType = "command"
)

// ChatEvent is an inbound event already resolved by the chat transport
type ChatEvent struct {
	ID        string        `json:"id,omitempty"`
	Type      ChatEventType `json:"type"`
	Network   string        `json:"network"`
	Channel   string        `json:"channel"`
	UserID    string        `json:"user_id"`
	UserName  string        `json:"user_name"`
	Admin     bool          `json:"admin,omitempty"`
	Text      string        `json:"text,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Key returns the channel the event belongs to
func (e ChatEvent) Key() ChannelKey {
	return ChannelKey{Network: e.Network, Channel: e.Channel}
}

// Player returns the author of the event
func (e ChatEvent) Player() Player {
	return Player{ID: e.UserID, Name: e.UserName}
}

// Validate checks the fields every event needs
func (e ChatEvent) Validate() error {
	switch {
	case e.Type != ChatEventMessage && e.Type != ChatEventCommand:
		return fmt.Errorf("event type %q: %w", e.Type, ErrInvalidRequest)
	case e.Network == "" || e.Channel == "":
		return fmt.Errorf("event without channel: %w", ErrInvalidRequest)
	case e.UserID == "":
		return fmt.Errorf("event without user: %w", ErrInvalidRequest)
	}
	return nil
}

// ChatActionType distinguishes outbound chat actions
type ChatActionType string

const (
	ChatActionAnnounce ChatActionType = "announce"
	ChatActionEdit     ChatActionType = "edit"
	ChatActionReply    ChatActionType = "reply"
	ChatActionMute     ChatActionType = "mute"
)

// ChatAction is an outbound request for the chat transport
type ChatAction struct {
	Type         ChatActionType  `json:"type"`
	Network      string          `json:"network"`
	Channel      string          `json:"channel"`
	Ref          AnnouncementRef `json:"ref,omitempty"`
	Announcement *Announcement   `json:"announcement,omitempty"`
	Text         string          `json:"text,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Key returns the channel the action targets
func (a ChatAction) Key() ChannelKey {
	return ChannelKey{Network: a.Network, Channel: a.Channel}
}
