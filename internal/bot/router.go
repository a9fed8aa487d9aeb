// Package bot turns inbound chat events into hunt and stats operations and
// answers them in the channel.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
	"github.com/duckhunt/internal/stats"
)

// Hunt is the game side of the command surface
type Hunt interface {
	RecordMessage(key domain.ChannelKey, userID string) bool
	StartHunt(ctx context.Context, key domain.ChannelKey) error
	StopHunt(ctx context.Context, key domain.ChannelKey) error
	SetMuteOnMiss(ctx context.Context, key domain.ChannelKey, enabled bool) error
	SetOptOut(ctx context.Context, key domain.ChannelKey, optedOut bool) error
	IsOptedOut(key domain.ChannelKey) bool
	OptedOut(network string) []domain.ChannelKey
	Forgive(who string) (domain.Player, bool)
	Shoot(ctx context.Context, key domain.ChannelKey, player domain.Player) (domain.Outcome, error)
	Befriend(ctx context.Context, key domain.ChannelKey, player domain.Player) (domain.Outcome, error)
}

// Stats is the read and merge side of the command surface
type Stats interface {
	ChannelRanking(ctx context.Context, key domain.ChannelKey, kind domain.ScoreKind) ([]domain.RankEntry, error)
	NetworkRanking(ctx context.Context, network string, kind domain.ScoreKind, mode domain.RankingMode) ([]domain.RankEntry, error)
	NetworkAverage(ctx context.Context, network string, kind domain.ScoreKind) (domain.ChannelAverage, error)
	Page(entries []domain.RankEntry, number int) (stats.Page, error)
	PlayerStats(ctx context.Context, network, name, channel string) (*domain.PlayerStats, error)
	NetworkStats(ctx context.Context, network, channel string) (*domain.NetworkStats, error)
	Merge(ctx context.Context, network, oldName, newName string) (domain.MergeResult, error)
}

// Replier posts plain text into a channel
type Replier interface {
	Reply(ctx context.Context, key domain.ChannelKey, text string) error
}

type command struct {
	admin bool
	run   func(ctx context.Context, e domain.ChatEvent, args []string) (string, error)
}

// Router dispatches chat events. Messages feed the activity tracker and
// commands are answered with a reply in the same channel.
type Router struct {
	hunt     Hunt
	stats    Stats
	chat     Replier
	prefix   string
	logger   *slog.Logger
	intn     func(n int) int
	commands map[string]command
}

// NewRouter creates a new router
func NewRouter(hunt Hunt, st Stats, chat Replier, cfg *config.BotConfig, logger *slog.Logger) *Router {
	r := &Router{
		hunt:   hunt,
		stats:  st,
		chat:   chat,
		prefix: cfg.CommandPrefix,
		logger: logger,
		intn:   rand.IntN,
	}
	r.commands = map[string]command{
		"starthunt":   {admin: true, run: r.startHunt},
		"stophunt":    {admin: true, run: r.stopHunt},
		"duckmute":    {admin: true, run: r.duckMute},
		"bang":        {run: r.bang},
		"befriend":    {run: r.befriend},
		"bef":         {run: r.befriend},
		"friends":     {run: r.friends},
		"killers":     {run: r.killers},
		"ducks":       {run: r.ducks},
		"duckstats":   {run: r.duckStats},
		"duckmerge":   {admin: true, run: r.duckMerge},
		"duckforgive": {admin: true, run: r.duckForgive},
		"huntoptout":  {admin: true, run: r.huntOptOut},
	}
	return r
}

// HandleEvent processes one inbound chat event
func (r *Router) HandleEvent(ctx context.Context, e domain.ChatEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.UserName == "" {
		e.UserName = e.UserID
	}

	if e.Type == domain.ChatEventMessage {
		r.hunt.RecordMessage(e.Key(), e.UserID)
		return nil
	}

	name, args, ok := r.parse(e.Text)
	if !ok {
		return nil
	}
	cmd, ok := r.commands[name]
	if !ok {
		return nil
	}
	// opted-out channels only answer the command that opts them back in
	if name != "huntoptout" && r.hunt.IsOptedOut(e.Key()) {
		return nil
	}
	if cmd.admin && !e.Admin {
		return r.reply(ctx, e, fmt.Sprintf("You need to be a channel admin to use %s%s.", r.prefix, name))
	}

	text, err := cmd.run(ctx, e, args)
	switch {
	case errors.Is(err, domain.ErrOptedOut):
		return nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		if rerr := r.reply(ctx, e, storeDownReply); rerr != nil {
			r.logger.Warn("failed to send reply", "error", rerr)
		}
		return err
	case err != nil:
		return err
	}
	if text == "" {
		return nil
	}
	return r.reply(ctx, e, text)
}

// parse splits "!name arg..." into a lower-cased command name and its args
func (r *Router) parse(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, r.prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (r *Router) reply(ctx context.Context, e domain.ChatEvent, text string) error {
	if err := r.chat.Reply(ctx, e.Key(), text); err != nil {
		return fmt.Errorf("replying in %s: %w", e.Key(), err)
	}
	return nil
}

func (r *Router) startHunt(ctx context.Context, e domain.ChatEvent, _ []string) (string, error) {
	err := r.hunt.StartHunt(ctx, e.Key())
	if errors.Is(err, domain.ErrAlreadyRunning) {
		return fmt.Sprintf("there is already a game running in %s.", e.Channel), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Ducks have been spotted nearby. See how many you can shoot or save. use %[1]sbang to shoot or %[1]sbefriend to save them. NOTE: Ducks now appear as a function of time and channel activity.", r.prefix), nil
}

func (r *Router) stopHunt(ctx context.Context, e domain.ChatEvent, _ []string) (string, error) {
	err := r.hunt.StopHunt(ctx, e.Key())
	if errors.Is(err, domain.ErrNotRunning) {
		return fmt.Sprintf("There is no game running in %s.", e.Channel), nil
	}
	if err != nil {
		return "", err
	}
	return "the game has been stopped.", nil
}

func (r *Router) duckMute(ctx context.Context, e domain.ChatEvent, args []string) (string, error) {
	if len(args) != 1 {
		return fmt.Sprintf("usage: %sduckmute enable|disable", r.prefix), nil
	}
	switch strings.ToLower(args[0]) {
	case "enable":
		if err := r.hunt.SetMuteOnMiss(ctx, e.Key(), true); err != nil {
			return "", err
		}
		return "users will now be muted for shooting or befriending non-existent ducks. The bot needs to have appropriate flags to be able to mute users for this to work.", nil
	case "disable":
		if err := r.hunt.SetMuteOnMiss(ctx, e.Key(), false); err != nil {
			return "", err
		}
		return "muting for non-existent ducks has been disabled.", nil
	default:
		return fmt.Sprintf("usage: %sduckmute enable|disable", r.prefix), nil
	}
}

func (r *Router) bang(ctx context.Context, e domain.ChatEvent, _ []string) (string, error) {
	out, err := r.hunt.Shoot(ctx, e.Key(), e.Player())
	if err != nil {
		return "", err
	}
	return r.outcomeReply(out, e.Channel), nil
}

func (r *Router) befriend(ctx context.Context, e domain.ChatEvent, _ []string) (string, error) {
	out, err := r.hunt.Befriend(ctx, e.Key(), e.Player())
	if err != nil {
		return "", err
	}
	return r.outcomeReply(out, e.Channel), nil
}

func (r *Router) friends(ctx context.Context, e domain.ChatEvent, args []string) (string, error) {
	return r.leaderboard(ctx, e, args, domain.ScoreBefriend)
}

func (r *Router) killers(ctx context.Context, e domain.ChatEvent, args []string) (string, error) {
	return r.leaderboard(ctx, e, args, domain.ScoreShot)
}

// leaderboard answers "friends|killers [global|average] [page]"
func (r *Router) leaderboard(ctx context.Context, e domain.ChatEvent, args []string, kind domain.ScoreKind) (string, error) {
	mode := domain.RankingMode("")
	pageNo := 1
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "global":
			mode = domain.RankingTotal
		case "average":
			mode = domain.RankingAverage
		default:
			if n, err := strconv.Atoi(arg); err == nil {
				pageNo = n
			}
		}
	}

	title, scope, unit := "duck killers scoreboard", "Duck killer scores", "kills"
	empty := "it appears no one has killed any ducks yet."
	if kind == domain.ScoreBefriend {
		title, scope, unit = "duck friends scoreboard", "Duck friend scores", "friends"
		empty = "it appears no one has friended any ducks yet."
	}

	var (
		entries []domain.RankEntry
		header  string
		err     error
	)
	switch mode {
	case "":
		entries, err = r.stats.ChannelRanking(ctx, e.Key(), kind)
		header = fmt.Sprintf("%s in %s: ", scope, e.Channel)
	case domain.RankingAverage:
		// the average is taken over the channels of the total ranking
		var avg domain.ChannelAverage
		avg, err = r.stats.NetworkAverage(ctx, e.Network, kind)
		if err != nil {
			return "", err
		}
		entries, err = r.stats.NetworkRanking(ctx, e.Network, kind, domain.RankingTotal)
		header = fmt.Sprintf("%s across the network, averaging %d %s over %d channels: ",
			scope, avg.Average, unit, avg.Channels)
	default:
		entries, err = r.stats.NetworkRanking(ctx, e.Network, kind, mode)
		header = scope + " across the network: "
	}
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return empty, nil
	}

	page, err := r.stats.Page(entries, pageNo)
	if errors.Is(err, domain.ErrInvalidRequest) {
		return fmt.Sprintf("There is no page %d of that scoreboard.", pageNo), nil
	}
	if err != nil {
		return "", err
	}
	return scoreboard(title, header, page), nil
}

func (r *Router) ducks(ctx context.Context, e domain.ChatEvent, args []string) (string, error) {
	name := e.UserName
	if len(args) > 0 {
		name = args[0]
	}
	ps, err := r.stats.PlayerStats(ctx, e.Network, name, e.Channel)
	if errors.Is(err, domain.ErrNoScores) {
		return fmt.Sprintf("It appears *%s* has not participated in the duck hunt.", name), nil
	}
	if err != nil {
		return "", err
	}
	return playerReply(ps), nil
}

func (r *Router) duckStats(ctx context.Context, e domain.ChatEvent, _ []string) (string, error) {
	ns, err := r.stats.NetworkStats(ctx, e.Network, e.Channel)
	if errors.Is(err, domain.ErrNoScores) {
		return "It looks like there has been no duck activity on this channel or network.", nil
	}
	if err != nil {
		return "", err
	}
	return networkReply(ns), nil
}

func (r *Router) duckMerge(ctx context.Context, e domain.ChatEvent, args []string) (string, error) {
	if len(args) != 2 {
		return "Please specify two nicks for this command.", nil
	}
	oldName, newName := args[0], args[1]

	result, err := r.stats.Merge(ctx, e.Network, oldName, newName)
	switch {
	case errors.Is(err, domain.ErrNothingToMerge):
		return fmt.Sprintf("There are no duck scores to migrate from %s", oldName), nil
	case errors.Is(err, domain.ErrSameUser):
		return "Please specify two different nicks for this command.", nil
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("Migrated %d duck kills and %d duck friends from %s to %s",
		result.Shot, result.Befriend, result.OldName, result.NewName), nil
}

func (r *Router) duckForgive(_ context.Context, _ domain.ChatEvent, args []string) (string, error) {
	if len(args) != 1 {
		return "Please specify who to forgive.", nil
	}
	who := strings.TrimPrefix(args[0], "@")
	player, ok := r.hunt.Forgive(who)
	if !ok {
		return "I couldn't find exactly one user in cooldown by that nick or id", nil
	}
	name := player.Name
	if name == "" {
		name = player.ID
	}
	return fmt.Sprintf("%s has been removed from the mandatory cooldown period.", name), nil
}

// huntOptOut answers "huntoptout [list | add|remove [channel]]"
func (r *Router) huntOptOut(ctx context.Context, e domain.ChatEvent, args []string) (string, error) {
	if len(args) == 0 {
		if r.hunt.IsOptedOut(e.Key()) {
			return fmt.Sprintf("Duck hunt is disabled in %s. To re-enable it run %shuntoptout remove", e.Channel, r.prefix), nil
		}
		return fmt.Sprintf("Duck hunt is enabled in %s. To disable it run %shuntoptout add", e.Channel, r.prefix), nil
	}

	op := strings.ToLower(args[0])
	if op == "list" {
		keys := r.hunt.OptedOut(e.Network)
		if len(keys) == 0 {
			return "Duck hunt is not disabled in any channel.", nil
		}
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.Channel
		}
		return strings.Join(names, ", "), nil
	}

	key := e.Key()
	if len(args) > 1 {
		key.Channel = strings.TrimPrefix(args[1], "#")
	}

	switch op {
	case "add":
		if r.hunt.IsOptedOut(key) {
			return fmt.Sprintf("Duck hunt has already been disabled in %s.", key.Channel), nil
		}
		if err := r.hunt.SetOptOut(ctx, key, true); err != nil {
			return "", err
		}
		return fmt.Sprintf("The duckhunt has been successfully disabled in %s.", key.Channel), nil
	case "remove":
		if !r.hunt.IsOptedOut(key) {
			return fmt.Sprintf("Duck hunt is already enabled in %s.", key.Channel), nil
		}
		if err := r.hunt.SetOptOut(ctx, key, false); err != nil {
			return "", err
		}
		return fmt.Sprintf("The duckhunt has been successfully enabled in %s.", key.Channel), nil
	default:
		return "please specify add or remove and a valid channel name", nil
	}
}
