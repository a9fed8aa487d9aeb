package service

import (
	"context"

	"github.com/duckhunt/internal/domain"
)

// Ledger is the durable score store
type Ledger interface {
	IncrementScore(ctx context.Context, network, channel, name string, kind domain.ScoreKind) (int64, error)
	MergeScores(ctx context.Context, network, oldName, newName string) (domain.MergeResult, error)
	ListScores(ctx context.Context, filter domain.ScoreFilter) ([]domain.ScoreRecord, error)
}

// StatusStore persists channel status and the opt-out set
type StatusStore interface {
	SaveStatus(ctx context.Context, status domain.ChannelStatus) error
	LoadStatuses(ctx context.Context) ([]domain.ChannelStatus, error)
	AddOptOut(ctx context.Context, key domain.ChannelKey) error
	RemoveOptOut(ctx context.Context, key domain.ChannelKey) error
	ListOptOuts(ctx context.Context) ([]domain.ChannelKey, error)
}

// ChatAdapter delivers announcements and replies to the chat platform
type ChatAdapter interface {
	SendAnnouncement(ctx context.Context, key domain.ChannelKey, a domain.Announcement) (domain.AnnouncementRef, error)
	EditAnnouncement(ctx context.Context, key domain.ChannelKey, ref domain.AnnouncementRef, a domain.Announcement) error
	Reply(ctx context.Context, key domain.ChannelKey, text string) error
	MuteUser(ctx context.Context, key domain.ChannelKey, userID string) error
}

// RankingCache serves live channel rankings. It is never authoritative.
type RankingCache interface {
	Increment(ctx context.Context, network, channel, name string, kind domain.ScoreKind) (int64, error)
	TopN(ctx context.Context, network, channel string, kind domain.ScoreKind, n int) ([]domain.RankEntry, error)
	Replace(ctx context.Context, network, channel string, records []domain.ScoreRecord) error
}
