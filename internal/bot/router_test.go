package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
	"github.com/duckhunt/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHunt struct {
	mock.Mock
}

func (m *mockHunt) RecordMessage(key domain.ChannelKey, userID string) bool {
	return m.Called(key, userID).Bool(0)
}

func (m *mockHunt) StartHunt(ctx context.Context, key domain.ChannelKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockHunt) StopHunt(ctx context.Context, key domain.ChannelKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockHunt) SetMuteOnMiss(ctx context.Context, key domain.ChannelKey, enabled bool) error {
	return m.Called(ctx, key, enabled).Error(0)
}

func (m *mockHunt) SetOptOut(ctx context.Context, key domain.ChannelKey, optedOut bool) error {
	return m.Called(ctx, key, optedOut).Error(0)
}

func (m *mockHunt) IsOptedOut(key domain.ChannelKey) bool {
	return m.Called(key).Bool(0)
}

func (m *mockHunt) OptedOut(network string) []domain.ChannelKey {
	keys, _ := m.Called(network).Get(0).([]domain.ChannelKey)
	return keys
}

func (m *mockHunt) Forgive(who string) (domain.Player, bool) {
	args := m.Called(who)
	return args.Get(0).(domain.Player), args.Bool(1)
}

func (m *mockHunt) Shoot(ctx context.Context, key domain.ChannelKey, player domain.Player) (domain.Outcome, error) {
	args := m.Called(ctx, key, player)
	return args.Get(0).(domain.Outcome), args.Error(1)
}

func (m *mockHunt) Befriend(ctx context.Context, key domain.ChannelKey, player domain.Player) (domain.Outcome, error) {
	args := m.Called(ctx, key, player)
	return args.Get(0).(domain.Outcome), args.Error(1)
}

type mockStats struct {
	mock.Mock
}

func (m *mockStats) ChannelRanking(ctx context.Context, key domain.ChannelKey, kind domain.ScoreKind) ([]domain.RankEntry, error) {
	args := m.Called(ctx, key, kind)
	entries, _ := args.Get(0).([]domain.RankEntry)
	return entries, args.Error(1)
}

func (m *mockStats) NetworkRanking(ctx context.Context, network string, kind domain.ScoreKind, mode domain.RankingMode) ([]domain.RankEntry, error) {
	args := m.Called(ctx, network, kind, mode)
	entries, _ := args.Get(0).([]domain.RankEntry)
	return entries, args.Error(1)
}

func (m *mockStats) NetworkAverage(ctx context.Context, network string, kind domain.ScoreKind) (domain.ChannelAverage, error) {
	args := m.Called(ctx, network, kind)
	return args.Get(0).(domain.ChannelAverage), args.Error(1)
}

func (m *mockStats) Page(entries []domain.RankEntry, number int) (stats.Page, error) {
	return stats.Pager{PageSize: 2, Columns: 2}.Page(entries, number)
}

func (m *mockStats) PlayerStats(ctx context.Context, network, name, channel string) (*domain.PlayerStats, error) {
	args := m.Called(ctx, network, name, channel)
	ps, _ := args.Get(0).(*domain.PlayerStats)
	return ps, args.Error(1)
}

func (m *mockStats) NetworkStats(ctx context.Context, network, channel string) (*domain.NetworkStats, error) {
	args := m.Called(ctx, network, channel)
	ns, _ := args.Get(0).(*domain.NetworkStats)
	return ns, args.Error(1)
}

func (m *mockStats) Merge(ctx context.Context, network, oldName, newName string) (domain.MergeResult, error) {
	args := m.Called(ctx, network, oldName, newName)
	return args.Get(0).(domain.MergeResult), args.Error(1)
}

// recorder captures replies
type recorder struct {
	replies []string
	err     error
}

func (r *recorder) Reply(_ context.Context, _ domain.ChannelKey, text string) error {
	if r.err != nil {
		return r.err
	}
	r.replies = append(r.replies, text)
	return nil
}

func (r *recorder) last() string {
	if len(r.replies) == 0 {
		return ""
	}
	return r.replies[len(r.replies)-1]
}

var general = domain.ChannelKey{Network: "guild", Channel: "general"}

type fixture struct {
	router *Router
	hunt   *mockHunt
	stats  *mockStats
	chat   *recorder
}

func newFixture() *fixture {
	f := &fixture{hunt: new(mockHunt), stats: new(mockStats), chat: &recorder{}}
	f.router = NewRouter(f.hunt, f.stats, f.chat, &config.BotConfig{CommandPrefix: "!"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.router.intn = func(int) int { return 0 }
	return f
}

func cmdEvent(text string, admin bool) domain.ChatEvent {
	return domain.ChatEvent{
		Type:     domain.ChatEventCommand,
		Network:  "guild",
		Channel:  "general",
		UserID:   "u-alice",
		UserName: "alice",
		Admin:    admin,
		Text:     text,
	}
}

func TestMessagesFeedActivity(t *testing.T) {
	f := newFixture()
	f.hunt.On("RecordMessage", general, "u-bob").Return(true).Once()

	err := f.router.HandleEvent(context.Background(), domain.ChatEvent{
		Type: domain.ChatEventMessage, Network: "guild", Channel: "general", UserID: "u-bob", Text: "hello",
	})
	require.NoError(t, err)
	f.hunt.AssertExpectations(t)
	assert.Empty(t, f.chat.replies)
}

func TestInvalidEventRejected(t *testing.T) {
	f := newFixture()
	err := f.router.HandleEvent(context.Background(), domain.ChatEvent{Type: domain.ChatEventCommand, Network: "guild"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestIgnoresNonCommands(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("bang", false)))
	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!", false)))
	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!dance", false)))
	assert.Empty(t, f.chat.replies)
}

func TestAdminGating(t *testing.T) {
	f := newFixture()
	f.hunt.On("IsOptedOut", general).Return(false)

	require.NoError(t, f.router.HandleEvent(context.Background(), cmdEvent("!starthunt", false)))
	assert.Equal(t, "You need to be a channel admin to use !starthunt.", f.chat.last())
	f.hunt.AssertNotCalled(t, "StartHunt", mock.Anything, mock.Anything)
}

func TestStartAndStopHunt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.hunt.On("IsOptedOut", general).Return(false)
	f.hunt.On("StartHunt", mock.Anything, general).Return(nil).Once()
	f.hunt.On("StartHunt", mock.Anything, general).Return(domain.ErrAlreadyRunning).Once()
	f.hunt.On("StopHunt", mock.Anything, general).Return(domain.ErrNotRunning).Once()

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!starthunt", true)))
	assert.Contains(t, f.chat.last(), "Ducks have been spotted nearby.")
	assert.Contains(t, f.chat.last(), "use !bang to shoot or !befriend to save them")

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!STARTHUNT", true)))
	assert.Equal(t, "there is already a game running in general.", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!stophunt", true)))
	assert.Equal(t, "There is no game running in general.", f.chat.last())
}

func TestDuckMute(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.hunt.On("IsOptedOut", general).Return(false)
	f.hunt.On("SetMuteOnMiss", mock.Anything, general, false).Return(nil).Once()

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!duckmute disable", true)))
	assert.Equal(t, "muting for non-existent ducks has been disabled.", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!duckmute maybe", true)))
	assert.Equal(t, "usage: !duckmute enable|disable", f.chat.last())
}

func TestBangOutcomes(t *testing.T) {
	alice := domain.Player{ID: "u-alice", Name: "alice"}
	tests := []struct {
		name string
		out  domain.Outcome
		want string
	}{
		{
			name: "success",
			out:  domain.Outcome{Kind: domain.OutcomeSuccess, Action: domain.ActionShoot, Player: alice, Elapsed: 3250 * time.Millisecond, Score: 1},
			want: "alice you shot a duck in 3.250 seconds! You have killed 1 duck in general.",
		},
		{
			name: "missed",
			out:  domain.Outcome{Kind: domain.OutcomeMissed, Action: domain.ActionShoot, Cooldown: 7 * time.Second},
			want: "WHOOSH! You missed the duck completely! You can try again in 7 seconds.",
		},
		{
			name: "scripted",
			out:  domain.Outcome{Kind: domain.OutcomeScripted, Action: domain.ActionShoot, Elapsed: 400 * time.Millisecond},
			want: "You pulled the trigger in 0.400 seconds, that's mighty fast. Are you sure you aren't a script? Take a 2 hour cool down.",
		},
		{
			name: "cooldown",
			out:  domain.Outcome{Kind: domain.OutcomeInCooldown, Action: domain.ActionShoot, Remaining: 5 * time.Second},
			want: "You are in a cool down period, you can try again in 5.000 seconds.",
		},
		{
			name: "no duck",
			out:  domain.Outcome{Kind: domain.OutcomeNoDuck, Action: domain.ActionShoot},
			want: "There is no duck. What are you shooting at?",
		},
		{
			name: "no hunt",
			out:  domain.Outcome{Kind: domain.OutcomeNoActiveHunt, Action: domain.ActionShoot},
			want: "There is no active hunt right now. Use !starthunt to start a game.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.hunt.On("IsOptedOut", general).Return(false)
			f.hunt.On("Shoot", mock.Anything, general, alice).Return(tt.out, nil).Once()

			require.NoError(t, f.router.HandleEvent(context.Background(), cmdEvent("!bang", false)))
			assert.Equal(t, tt.want, f.chat.last())
		})
	}
}

func TestBefriendAlias(t *testing.T) {
	f := newFixture()
	alice := domain.Player{ID: "u-alice", Name: "alice"}
	f.hunt.On("IsOptedOut", general).Return(false)
	f.hunt.On("Befriend", mock.Anything, general, alice).Return(domain.Outcome{
		Kind: domain.OutcomeSuccess, Action: domain.ActionBefriend, Player: alice, Elapsed: time.Second, Score: 2,
	}, nil).Once()

	require.NoError(t, f.router.HandleEvent(context.Background(), cmdEvent("!bef", false)))
	assert.Equal(t, "alice you befriended a duck in 1.000 seconds! You have made friends with 2 ducks in general.", f.chat.last())
}

func TestStoreFailureIsReportedAndReturned(t *testing.T) {
	f := newFixture()
	storeErr := fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, errors.New("timeout"))
	f.hunt.On("IsOptedOut", general).Return(false)
	f.hunt.On("Shoot", mock.Anything, general, mock.Anything).Return(domain.Outcome{}, storeErr).Once()

	err := f.router.HandleEvent(context.Background(), cmdEvent("!bang", false))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, storeDownReply, f.chat.last())
}

func TestOptedOutChannelIsSilent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.hunt.On("IsOptedOut", general).Return(true)
	f.hunt.On("SetOptOut", mock.Anything, general, false).Return(nil).Once()

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!bang", false)))
	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!killers", false)))
	assert.Empty(t, f.chat.replies)
	f.hunt.AssertNotCalled(t, "Shoot", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!huntoptout remove", true)))
	assert.Equal(t, "The duckhunt has been successfully enabled in general.", f.chat.last())
}

func TestHuntOptOut(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	memes := domain.ChannelKey{Network: "guild", Channel: "memes"}
	f.hunt.On("IsOptedOut", general).Return(false)
	f.hunt.On("IsOptedOut", memes).Return(false)
	f.hunt.On("SetOptOut", mock.Anything, memes, true).Return(nil).Once()
	f.hunt.On("OptedOut", "guild").Return([]domain.ChannelKey{memes}).Once()

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!huntoptout", true)))
	assert.Equal(t, "Duck hunt is enabled in general. To disable it run !huntoptout add", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!huntoptout add #memes", true)))
	assert.Equal(t, "The duckhunt has been successfully disabled in memes.", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!huntoptout list", true)))
	assert.Equal(t, "memes", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!huntoptout remove", true)))
	assert.Equal(t, "Duck hunt is already enabled in general.", f.chat.last())
}

func TestLeaderboard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.hunt.On("IsOptedOut", general).Return(false)
	f.stats.On("NetworkRanking", mock.Anything, "guild", domain.ScoreShot, domain.RankingTotal).Return([]domain.RankEntry{
		{Rank: 1, Key: "memes", Value: 9},
		{Rank: 2, Key: "general", Value: 8},
		{Rank: 3, Key: "random", Value: 2},
	}, nil)
	f.stats.On("ChannelRanking", mock.Anything, general, domain.ScoreBefriend).Return([]domain.RankEntry{}, nil).Once()

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!killers global", false)))
	assert.Equal(t, "duck killers scoreboard\n"+
		"Duck killer scores across the network: \n"+
		"1 - 2\n1. memes: 9\n2. general: 8\n"+
		"3 - 3\n3. random: 2\n"+
		"page 1 of 1", f.chat.last())

	f.stats.On("NetworkAverage", mock.Anything, "guild", domain.ScoreShot).Return(domain.ChannelAverage{
		Kind: domain.ScoreShot, Total: 19, Channels: 3, Average: 6,
	}, nil).Once()
	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!killers average", false)))
	assert.Equal(t, "duck killers scoreboard\n"+
		"Duck killer scores across the network, averaging 6 kills over 3 channels: \n"+
		"1 - 2\n1. memes: 9\n2. general: 8\n"+
		"3 - 3\n3. random: 2\n"+
		"page 1 of 1", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!killers global 4", false)))
	assert.Equal(t, "There is no page 4 of that scoreboard.", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!friends", false)))
	assert.Equal(t, "it appears no one has friended any ducks yet.", f.chat.last())
}

func TestDucks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.hunt.On("IsOptedOut", general).Return(false)
	f.stats.On("PlayerStats", mock.Anything, "guild", "alice", "general").Return(&domain.PlayerStats{
		Name: "alice", Channel: "general", ChannelShot: 5, ChannelBefriend: 1,
		Shot: 7, Befriend: 1, Channels: 2, AverageShot: 3, AverageBefriend: 1,
	}, nil).Once()
	f.stats.On("PlayerStats", mock.Anything, "guild", "ghost", "general").Return(nil, domain.ErrNoScores).Once()

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!ducks", false)))
	assert.Equal(t, "*alice's* duck stats: 5 killed and 1 befriended in **general**. Across 2 channels: 7 killed and 1 befriended. Averaging 3 kills and 1 friends per channel.", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!ducks ghost", false)))
	assert.Equal(t, "It appears *ghost* has not participated in the duck hunt.", f.chat.last())
}

func TestDuckStats(t *testing.T) {
	f := newFixture()
	f.hunt.On("IsOptedOut", general).Return(false)
	f.stats.On("NetworkStats", mock.Anything, "guild", "general").Return(&domain.NetworkStats{
		Channel: "general", ChannelShot: 8, ChannelBefriend: 1, Channels: 3, Shot: 19, Befriend: 5,
		AverageShot: 6, AverageBefriend: 2,
		TopShotChannel:   &domain.RankEntry{Rank: 1, Key: "memes", Value: 9},
		TopFriendChannel: &domain.RankEntry{Rank: 1, Key: "random", Value: 4},
	}, nil).Once()

	require.NoError(t, f.router.HandleEvent(context.Background(), cmdEvent("!duckstats", false)))
	assert.Equal(t, "*Duck Stats*: 8 killed and 1 befriended in **general**. Across 3 channels 19 ducks have been killed and 5 befriended, averaging 6 kills and 2 friends per channel. *Top Channels:* **memes** with 9 kills and **random** with 4 friends", f.chat.last())
}

func TestDuckMerge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.hunt.On("IsOptedOut", general).Return(false)
	f.stats.On("Merge", mock.Anything, "guild", "alice", "bob").Return(domain.MergeResult{
		OldName: "alice", NewName: "bob", Shot: 7, Befriend: 4,
	}, nil).Once()
	f.stats.On("Merge", mock.Anything, "guild", "ghost", "bob").Return(domain.MergeResult{}, domain.ErrNothingToMerge).Once()

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!duckmerge alice bob", true)))
	assert.Equal(t, "Migrated 7 duck kills and 4 duck friends from alice to bob", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!duckmerge ghost bob", true)))
	assert.Equal(t, "There are no duck scores to migrate from ghost", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!duckmerge alice", true)))
	assert.Equal(t, "Please specify two nicks for this command.", f.chat.last())
}

func TestDuckForgive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.hunt.On("IsOptedOut", general).Return(false)
	f.hunt.On("Forgive", "bob").Return(domain.Player{ID: "u-bob", Name: "bob"}, true).Once()
	f.hunt.On("Forgive", "u-dan").Return(domain.Player{ID: "u-dan"}, true).Once()
	f.hunt.On("Forgive", "carol").Return(domain.Player{}, false).Once()

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!duckforgive @bob", true)))
	assert.Equal(t, "bob has been removed from the mandatory cooldown period.", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!duckforgive u-dan", true)))
	assert.Equal(t, "u-dan has been removed from the mandatory cooldown period.", f.chat.last())

	require.NoError(t, f.router.HandleEvent(ctx, cmdEvent("!duckforgive carol", true)))
	assert.Equal(t, "I couldn't find exactly one user in cooldown by that nick or id", f.chat.last())
}

func TestReplyFailureIsReturned(t *testing.T) {
	f := newFixture()
	f.chat.err = errors.New("socket closed")
	f.hunt.On("IsOptedOut", general).Return(false)
	f.hunt.On("StopHunt", mock.Anything, general).Return(nil).Once()

	err := f.router.HandleEvent(context.Background(), cmdEvent("!stophunt", true))
	assert.Error(t, err)
}
