package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChannelKey identifies a channel on a chat network
type ChannelKey struct {
	Network string `json:"network"`
	Channel string `json:"channel"`
}

// String returns the "network/channel" form used for topics and message keys
func (k ChannelKey) String() string {
	return k.Network + "/" + k.Channel
}

// ParseChannelKey parses the "network/channel" form
func ParseChannelKey(s string) (ChannelKey, error) {
	network, channel, ok := strings.Cut(s, "/")
	if !ok || network == "" || channel == "" {
		return ChannelKey{}, fmt.Errorf("parsing channel key %q: %w", s, ErrInvalidRequest)
	}
	return ChannelKey{Network: network, Channel: channel}, nil
}

// Phase is the encounter phase of a channel
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDuckPresent
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDuckPresent:
		return "duck_present"
	case PhaseResolved:
		return "resolved"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Action is a resolving action a user can take against a duck
type Action string

const (
	ActionShoot    Action = "shoot"
	ActionBefriend Action = "befriend"
)

// ScoreKind returns the ledger counter incremented by a successful action
func (a Action) ScoreKind() ScoreKind {
	if a == ActionBefriend {
		return ScoreBefriend
	}
	return ScoreShot
}

// Player identifies the user acting in a channel. ID is the stable transport
// identifier; Name is the display name the ledger is keyed by.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AnnouncementRef is an opaque handle to a posted announcement
type AnnouncementRef string

// AnnouncementKind distinguishes the announcement payloads
type AnnouncementKind string

const (
	AnnouncementSpawn      AnnouncementKind = "spawn"
	AnnouncementShot       AnnouncementKind = "shot"
	AnnouncementBefriended AnnouncementKind = "befriended"
)

// Announcement is the payload of a duck announcement
type Announcement struct {
	Kind        AnnouncementKind `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Footer      string           `json:"footer,omitempty"`
}

// ChannelSnapshot is a read-only copy of a channel's game state
type ChannelSnapshot struct {
	Key             ChannelKey      `json:"key"`
	Active          bool            `json:"active"`
	MuteOnMiss      bool            `json:"mute_on_miss"`
	OptedOut        bool            `json:"opted_out"`
	Phase           Phase           `json:"phase"`
	NextSpawnAt     time.Time       `json:"next_spawn_at"`
	SpawnedAt       time.Time       `json:"spawned_at,omitempty"`
	ResolvedAt      time.Time       `json:"resolved_at,omitempty"`
	MessageCount    int             `json:"message_count"`
	Participants    int             `json:"participants"`
	AnnouncementRef AnnouncementRef `json:"announcement_ref,omitempty"`
}

// ChannelStatus is the durable part of a channel's state
type ChannelStatus struct {
	Key        ChannelKey `json:"key"`
	Active     bool       `json:"active"`
	MuteOnMiss bool       `json:"mute_on_miss"`
}

// OutcomeKind classifies the result of a resolving action
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeMissed       OutcomeKind = "missed"
	OutcomeScripted     OutcomeKind = "scripted"
	OutcomeInCooldown   OutcomeKind = "in_cooldown"
	OutcomeNoDuck       OutcomeKind = "no_duck"
	OutcomeNoActiveHunt OutcomeKind = "no_active_hunt"
)

// Outcome is the result of resolving a shoot or befriend action
type Outcome struct {
	Kind      OutcomeKind   `json:"kind"`
	Action    Action        `json:"action"`
	Player    Player        `json:"player"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining,omitempty"`
	Cooldown  time.Duration `json:"cooldown,omitempty"`
	Score     int64         `json:"score,omitempty"`
	// AnnouncementRef is the spawn announcement to edit after a success
	AnnouncementRef AnnouncementRef `json:"announcement_ref,omitempty"`
	// Mute is set when the channel punishes actions against a missing duck
	Mute bool `json:"mute,omitempty"`
}
