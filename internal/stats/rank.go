// Package stats builds read-only ranked views over score ledger rows.
package stats

import (
	"sort"

	"github.com/duckhunt/internal/domain"
)

// Pair is an unranked (key, value) projection
type Pair struct {
	Key   string
	Value int64
}

// Rank orders pairs by descending value and assigns 1-based ranks. Pairs with
// a zero or negative value are dropped; ties keep their input order.
func Rank(pairs []Pair) []domain.RankEntry {
	kept := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Value > 0 {
			kept = append(kept, p)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Value > kept[j].Value
	})

	entries := make([]domain.RankEntry, len(kept))
	for i, p := range kept {
		entries[i] = domain.RankEntry{Rank: i + 1, Key: p.Key, Value: p.Value}
	}
	return entries
}

// UserTotals sums the selected counter per user name
func UserTotals(records []domain.ScoreRecord, kind domain.ScoreKind) []Pair {
	return group(records, func(r domain.ScoreRecord) string { return r.Name }, kind)
}

// ChannelTotals sums the selected counter per channel
func ChannelTotals(records []domain.ScoreRecord, kind domain.ScoreKind) []Pair {
	return group(records, func(r domain.ScoreRecord) string { return r.Channel }, kind)
}

// ChannelAverage is the sum of the per-channel totals of kind divided by the
// number of channels with a nonzero total.
func ChannelAverage(records []domain.ScoreRecord, kind domain.ScoreKind) domain.ChannelAverage {
	totals := ChannelTotals(records, kind)
	channels := Contributors(totals)
	total := Sum(totals)
	return domain.ChannelAverage{
		Kind:     kind,
		Total:    total,
		Channels: channels,
		Average:  Average(total, channels),
	}
}

// Average returns total divided by contributors, rounded down, or zero when
// there are no contributors.
func Average(total int64, contributors int) int64 {
	if contributors <= 0 {
		return 0
	}
	return total / int64(contributors)
}

// Contributors counts the pairs with a nonzero value
func Contributors(pairs []Pair) int {
	n := 0
	for _, p := range pairs {
		if p.Value > 0 {
			n++
		}
	}
	return n
}

// Sum adds the values of all pairs
func Sum(pairs []Pair) int64 {
	var total int64
	for _, p := range pairs {
		total += p.Value
	}
	return total
}

// group sums kind per key, keeping keys in order of first appearance
func group(records []domain.ScoreRecord, keyOf func(domain.ScoreRecord) string, kind domain.ScoreKind) []Pair {
	index := make(map[string]int)
	var pairs []Pair
	for _, r := range records {
		key := keyOf(r)
		i, ok := index[key]
		if !ok {
			i = len(pairs)
			index[key] = i
			pairs = append(pairs, Pair{Key: key})
		}
		pairs[i].Value += r.Count(kind)
	}
	return pairs
}
