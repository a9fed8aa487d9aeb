package game

import (
	"context"
	"fmt"
	"time"

	"github.com/duckhunt/internal/domain"
)

const (
	scriptedThreshold = 1 * time.Second
	contestedWindow   = 7 * time.Second
	minContestedHit   = 0.60
	maxContestedHit   = 0.75
)

// ScoreFunc durably records a successful action and returns the new count
type ScoreFunc func(ctx context.Context) (int64, error)

// Resolve applies a shoot or befriend action from player. Expected game
// outcomes are returned in Outcome.Kind with a nil error; an error means the
// channel is opted out or the score could not be recorded, and in both cases
// the channel state is unchanged.
func (e *Engine) Resolve(ctx context.Context, key domain.ChannelKey, player domain.Player, action domain.Action, record ScoreFunc) (domain.Outcome, error) {
	c := e.channel(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	now := e.now()
	out := domain.Outcome{Action: action, Player: player}

	if c.optedOut {
		return out, domain.ErrOptedOut
	}
	if !c.active {
		out.Kind = domain.OutcomeNoActiveHunt
		return out, nil
	}
	if c.phase != domain.PhaseDuckPresent {
		out.Kind = domain.OutcomeNoDuck
		out.Mute = c.muteOnMiss
		return out, nil
	}
	if remaining := e.cooldowns.Remaining(player.ID, now); remaining > 0 {
		out.Kind = domain.OutcomeInCooldown
		out.Remaining = remaining
		return out, nil
	}

	out.Elapsed = now.Sub(c.spawnedAt)

	if out.Elapsed < scriptedThreshold {
		e.cooldowns.Set(player, now.Add(ScriptedCooldown))
		out.Kind = domain.OutcomeScripted
		out.Cooldown = ScriptedCooldown
		e.logger.Warn("scripted response suspected",
			"network", key.Network,
			"channel", key.Channel,
			"user_id", player.ID,
			"elapsed", out.Elapsed,
		)
		return out, nil
	}

	if p := e.hitProbability(out.Elapsed); p < 1 && e.float64() >= p {
		e.cooldowns.Set(player, now.Add(MissCooldown))
		out.Kind = domain.OutcomeMissed
		out.Cooldown = MissCooldown
		return out, nil
	}

	score, err := record(ctx)
	if err != nil {
		return out, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	c.phase = domain.PhaseResolved
	c.resolvedAt = now
	out.Kind = domain.OutcomeSuccess
	out.Score = score
	out.AnnouncementRef = c.announcement

	e.resetSpawnTimerLocked(c, now)
	return out, nil
}

// hitProbability returns the chance of success for a reaction time of at
// least one second. Contested reactions are re-rolled on every attempt.
func (e *Engine) hitProbability(elapsed time.Duration) float64 {
	if elapsed > contestedWindow {
		return 1
	}
	return minContestedHit + e.float64()*(maxContestedHit-minContestedHit)
}
