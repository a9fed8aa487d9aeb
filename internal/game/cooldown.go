package game

import (
	"strings"
	"sync"
	"time"

	"github.com/duckhunt/internal/domain"
)

const (
	// MissCooldown is applied after a failed shot or befriend
	MissCooldown = 7 * time.Second
	// ScriptedCooldown is applied when a response is too fast to be human
	ScriptedCooldown = 2 * time.Hour
)

// Cooldowns tracks per-user cooldown deadlines across all channels, keyed by
// stable user id. The display name seen at the time is kept so admins can
// refer to a user by nick. A deadline in the past is inert.
type Cooldowns struct {
	mu      sync.Mutex
	entries map[string]cooldown
}

type cooldown struct {
	name  string
	until time.Time
}

// NewCooldowns creates an empty cooldown table
func NewCooldowns() *Cooldowns {
	return &Cooldowns{entries: make(map[string]cooldown)}
}

// Set overwrites the deadline for a player
func (c *Cooldowns) Set(player domain.Player, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[player.ID] = cooldown{name: player.Name, until: until}
}

// Remaining returns how long the user must still wait, or zero
func (c *Cooldowns) Remaining(userID string, now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok || !entry.until.After(now) {
		return 0
	}
	return entry.until.Sub(now)
}

// Forgive clears a pending cooldown. who is a user id, or a display name
// held by exactly one user with a pending cooldown; names are compared
// case-insensitively. It returns the forgiven player and whether one was
// found.
func (c *Cooldowns) Forgive(who string, now time.Time) (domain.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[who]; ok && entry.until.After(now) {
		delete(c.entries, who)
		return domain.Player{ID: who, Name: entry.name}, true
	}

	var (
		match domain.Player
		found int
	)
	for id, entry := range c.entries {
		if entry.until.After(now) && strings.EqualFold(entry.name, who) {
			match = domain.Player{ID: id, Name: entry.name}
			found++
		}
	}
	if found != 1 {
		return domain.Player{}, false
	}
	delete(c.entries, match.ID)
	return match, true
}

// Prune drops expired entries and returns how many were dropped
func (c *Cooldowns) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, entry := range c.entries {
		if !entry.until.After(now) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}
