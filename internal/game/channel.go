package game

import (
	"sync"
	"time"

	"github.com/duckhunt/internal/domain"
)

// channel holds the game state of one (network, channel) pair. Every field is
// guarded by mu.
type channel struct {
	mu  sync.Mutex
	key domain.ChannelKey

	active     bool
	muteOnMiss bool
	optedOut   bool

	phase       domain.Phase
	nextSpawnAt time.Time
	spawnedAt   time.Time
	resolvedAt  time.Time

	messages     int
	participants map[string]struct{}
	announcement domain.AnnouncementRef
}

func newChannel(key domain.ChannelKey) *channel {
	return &channel{
		key:          key,
		participants: make(map[string]struct{}),
	}
}

// recordMessage counts a message while the channel is accumulating activity
func (c *channel) recordMessage(userID string) bool {
	if c.optedOut || !c.active || c.phase != domain.PhaseIdle {
		return false
	}
	c.messages++
	c.participants[userID] = struct{}{}
	return true
}

// resetActivity clears the counters of the current spawn window
func (c *channel) resetActivity() {
	c.messages = 0
	clear(c.participants)
}

// eligible reports whether a duck may spawn at now
func (c *channel) eligible(now time.Time, s Settings) bool {
	return !c.optedOut &&
		c.active &&
		c.phase == domain.PhaseIdle &&
		!now.Before(c.nextSpawnAt) &&
		c.messages >= s.MinMessages &&
		len(c.participants) >= s.MinParticipants
}

func (c *channel) status() domain.ChannelStatus {
	return domain.ChannelStatus{Key: c.key, Active: c.active, MuteOnMiss: c.muteOnMiss}
}

func (c *channel) snapshot() domain.ChannelSnapshot {
	return domain.ChannelSnapshot{
		Key:             c.key,
		Active:          c.active,
		MuteOnMiss:      c.muteOnMiss,
		OptedOut:        c.optedOut,
		Phase:           c.phase,
		NextSpawnAt:     c.nextSpawnAt,
		SpawnedAt:       c.spawnedAt,
		ResolvedAt:      c.resolvedAt,
		MessageCount:    c.messages,
		Participants:    len(c.participants),
		AnnouncementRef: c.announcement,
	}
}
