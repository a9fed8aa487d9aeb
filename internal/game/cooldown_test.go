package game

import (
	"strings"
	"testing"
	"time"

	"github.com/duckhunt/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCooldowns(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldowns()

	assert.Zero(t, c.Remaining("u1", now))

	c.Set(domain.Player{ID: "u1"}, now.Add(MissCooldown))
	assert.Equal(t, MissCooldown, c.Remaining("u1", now))
	assert.Equal(t, 2*time.Second, c.Remaining("u1", now.Add(5*time.Second)))
	assert.Zero(t, c.Remaining("u1", now.Add(MissCooldown)))

	c.Set(domain.Player{ID: "u1"}, now.Add(ScriptedCooldown))
	assert.Equal(t, ScriptedCooldown, c.Remaining("u1", now), "set overwrites")
}

func TestCooldownsForgiveAndPrune(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldowns()
	c.Set(domain.Player{ID: "pending"}, now.Add(time.Minute))
	c.Set(domain.Player{ID: "expired"}, now.Add(-time.Minute))

	_, ok := c.Forgive("unknown", now)
	assert.False(t, ok)
	_, ok = c.Forgive("expired", now)
	assert.False(t, ok)
	_, ok = c.Forgive("pending", now)
	assert.True(t, ok)
	assert.Zero(t, c.Remaining("pending", now))

	c.Set(domain.Player{ID: "a"}, now.Add(-time.Second))
	c.Set(domain.Player{ID: "b"}, now)
	c.Set(domain.Player{ID: "c"}, now.Add(time.Second))
	assert.Equal(t, 3, c.Prune(now))
	assert.Equal(t, time.Second, c.Remaining("c", now))
}

func TestCooldownsForgiveByNick(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldowns()
	c.Set(domain.Player{ID: "u1", Name: "Alice"}, now.Add(time.Minute))
	c.Set(domain.Player{ID: "u2", Name: "sam"}, now.Add(time.Minute))
	c.Set(domain.Player{ID: "u3", Name: "sam"}, now.Add(time.Minute))
	c.Set(domain.Player{ID: "u4", Name: "old"}, now.Add(-time.Minute))

	player, ok := c.Forgive("alice", now)
	require.True(t, ok)
	assert.Equal(t, domain.Player{ID: "u1", Name: "Alice"}, player)
	assert.Zero(t, c.Remaining("u1", now))

	// two pending users share the nick, so only the id works
	_, ok = c.Forgive("sam", now)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, c.Remaining("u2", now))
	player, ok = c.Forgive("u3", now)
	require.True(t, ok)
	assert.Equal(t, "sam", player.Name)

	_, ok = c.Forgive("old", now)
	assert.False(t, ok)
}

func TestGenerateDuckHidesArt(t *testing.T) {
	e, _ := newTestEngine(t, testSettings(), fixedRand{pick: 2})
	duck := e.GenerateDuck()

	assert.Contains(t, duck.Tail, zeroWidthSpace)
	assert.Contains(t, duck.Body, zeroWidthSpace)
	assert.Contains(t, duck.Noise, zeroWidthSpace)

	assert.Equal(t, string(duckTail), strings.ReplaceAll(duck.Tail, " "+zeroWidthSpace+" ", ""))
	assert.Equal(t, duckBodies[2], strings.ReplaceAll(duck.Body, zeroWidthSpace, ""))
	assert.Equal(t, duckNoises[2], strings.ReplaceAll(duck.Noise, zeroWidthSpace, ""))
	assert.Equal(t, duck.Tail+duck.Body+duck.Noise, duck.String())
}
