package service

import (
	"fmt"

	"github.com/duckhunt/internal/domain"
	"github.com/duckhunt/internal/game"
)

// SpawnAnnouncement is posted when a duck appears
func SpawnAnnouncement(duck game.Duck) domain.Announcement {
	return domain.Announcement{
		Kind:        domain.AnnouncementSpawn,
		Title:       "a duck has appeared",
		Description: duck.String(),
	}
}

// ResolvedAnnouncement replaces the spawn announcement after a success
func ResolvedAnnouncement(out domain.Outcome) domain.Announcement {
	seconds := out.Elapsed.Seconds()
	if out.Action == domain.ActionBefriend {
		return domain.Announcement{
			Kind:        domain.AnnouncementBefriended,
			Title:       "this duck has been befriended",
			Description: "fly on little ducky",
			Footer:      fmt.Sprintf("%s seduced it in %.3f seconds", out.Player.Name, seconds),
		}
	}
	return domain.Announcement{
		Kind:        domain.AnnouncementShot,
		Title:       "this duck has been murdered",
		Description: "rest in peace little ducky",
		Footer:      fmt.Sprintf("%s pulled the trigger in %.3f seconds", out.Player.Name, seconds),
	}
}
