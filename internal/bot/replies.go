package bot

import (
	"fmt"
	"strings"

	"github.com/duckhunt/internal/domain"
	"github.com/duckhunt/internal/stats"
)

var shootMisses = []string{
	"WHOOSH! You missed the duck completely!",
	"Your gun jammed!",
	"Better luck next time.",
	"WTF?! Who are you, Kim Jong Un firing missiles? You missed.",
}

var befriendMisses = []string{
	"The duck didn't want to be friends, maybe next time.",
	"Well this is awkward, the duck needs to think about it.",
	"The duck said no, maybe bribe it with some pizza? Ducks love pizza don't they?",
	"Who knew ducks could be so picky?",
}

const storeDownReply = "The duck ledger is unavailable right now, try again later."

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// outcomeReply renders a resolved shoot or befriend action
func (r *Router) outcomeReply(out domain.Outcome, channel string) string {
	befriend := out.Action == domain.ActionBefriend
	seconds := out.Elapsed.Seconds()

	switch out.Kind {
	case domain.OutcomeNoActiveHunt:
		if befriend {
			return fmt.Sprintf("There is no hunt right now. Use %sstarthunt to start a game.", r.prefix)
		}
		return fmt.Sprintf("There is no active hunt right now. Use %sstarthunt to start a game.", r.prefix)
	case domain.OutcomeNoDuck:
		if befriend {
			return "You tried befriending a non-existent duck. That's freaking creepy."
		}
		return "There is no duck. What are you shooting at?"
	case domain.OutcomeInCooldown:
		return fmt.Sprintf("You are in a cool down period, you can try again in %.3f seconds.", out.Remaining.Seconds())
	case domain.OutcomeScripted:
		if befriend {
			return fmt.Sprintf("You tried friending that duck in %.3f seconds, that's mighty fast. Are you sure you aren't a script? Take a 2 hour cool down.", seconds)
		}
		return fmt.Sprintf("You pulled the trigger in %.3f seconds, that's mighty fast. Are you sure you aren't a script? Take a 2 hour cool down.", seconds)
	case domain.OutcomeMissed:
		misses := shootMisses
		if befriend {
			misses = befriendMisses
		}
		return fmt.Sprintf("%s You can try again in %d seconds.", misses[r.intn(len(misses))], int(out.Cooldown.Seconds()))
	case domain.OutcomeSuccess:
		ducks := plural(out.Score, "duck", "ducks")
		if befriend {
			return fmt.Sprintf("%s you befriended a duck in %.3f seconds! You have made friends with %d %s in %s.",
				out.Player.Name, seconds, out.Score, ducks, channel)
		}
		return fmt.Sprintf("%s you shot a duck in %.3f seconds! You have killed %d %s in %s.",
			out.Player.Name, seconds, out.Score, ducks, channel)
	}
	return ""
}

// scoreboard renders one page of a ranking as text columns
func scoreboard(title, header string, page stats.Page) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(header)
	for _, col := range page.Columns {
		fmt.Fprintf(&b, "\n%d - %d", col.FirstRank, col.LastRank)
		for _, e := range col.Entries {
			fmt.Fprintf(&b, "\n%d. %s: %d", e.Rank, e.Key, e.Value)
		}
	}
	fmt.Fprintf(&b, "\npage %d of %d", page.Number, page.Total)
	return b.String()
}

func playerReply(ps *domain.PlayerStats) string {
	if ps.Channels == 1 {
		return fmt.Sprintf("*%s* has killed %d and befriended %d ducks in **%s**.",
			ps.Name, ps.ChannelShot, ps.ChannelBefriend, ps.Channel)
	}
	return fmt.Sprintf("*%s's* duck stats: %d killed and %d befriended in **%s**. Across %d channels: %d killed and %d befriended. Averaging %d kills and %d friends per channel.",
		ps.Name, ps.ChannelShot, ps.ChannelBefriend, ps.Channel,
		ps.Channels, ps.Shot, ps.Befriend,
		ps.AverageShot, ps.AverageBefriend)
}

func networkReply(ns *domain.NetworkStats) string {
	text := fmt.Sprintf("*Duck Stats*: %d killed and %d befriended in **%s**. Across %d channels %d ducks have been killed and %d befriended, averaging %d kills and %d friends per channel.",
		ns.ChannelShot, ns.ChannelBefriend, ns.Channel, ns.Channels, ns.Shot, ns.Befriend,
		ns.AverageShot, ns.AverageBefriend)

	var top []string
	if ns.TopShotChannel != nil {
		top = append(top, fmt.Sprintf("**%s** with %d kills", ns.TopShotChannel.Key, ns.TopShotChannel.Value))
	}
	if ns.TopFriendChannel != nil {
		top = append(top, fmt.Sprintf("**%s** with %d friends", ns.TopFriendChannel.Key, ns.TopFriendChannel.Value))
	}
	if len(top) > 0 {
		text += " *Top Channels:* " + strings.Join(top, " and ")
	}
	return text
}
