package stats

import (
	"fmt"
	"testing"

	"github.com/duckhunt/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func records() []domain.ScoreRecord {
	return []domain.ScoreRecord{
		{Network: "n", Channel: "a", Name: "alice", Shot: 4, Befriend: 0},
		{Network: "n", Channel: "a", Name: "bob", Shot: 2, Befriend: 3},
		{Network: "n", Channel: "a", Name: "carol", Shot: 0, Befriend: 1},
		{Network: "n", Channel: "b", Name: "alice", Shot: 1, Befriend: 0},
		{Network: "n", Channel: "c", Name: "dave", Shot: 0, Befriend: 0},
	}
}

func TestRankDropsZerosAndKeepsTieOrder(t *testing.T) {
	entries := Rank([]Pair{
		{Key: "x", Value: 2},
		{Key: "zero", Value: 0},
		{Key: "y", Value: 5},
		{Key: "z", Value: 2},
	})

	require.Len(t, entries, 3)
	assert.Equal(t, domain.RankEntry{Rank: 1, Key: "y", Value: 5}, entries[0])
	assert.Equal(t, domain.RankEntry{Rank: 2, Key: "x", Value: 2}, entries[1])
	assert.Equal(t, domain.RankEntry{Rank: 3, Key: "z", Value: 2}, entries[2])
}

func TestTotals(t *testing.T) {
	assert.Equal(t, []Pair{
		{Key: "alice", Value: 5},
		{Key: "bob", Value: 2},
		{Key: "carol", Value: 0},
		{Key: "dave", Value: 0},
	}, UserTotals(records(), domain.ScoreShot))

	assert.Equal(t, []Pair{
		{Key: "a", Value: 4},
		{Key: "b", Value: 0},
		{Key: "c", Value: 0},
	}, ChannelTotals(records(), domain.ScoreBefriend))
}

func TestChannelAverage(t *testing.T) {
	// shots: a 6, b 1, c 0, so c does not count
	assert.Equal(t, domain.ChannelAverage{
		Kind: domain.ScoreShot, Total: 7, Channels: 2, Average: 3,
	}, ChannelAverage(records(), domain.ScoreShot))

	// befriends: only a is active
	assert.Equal(t, domain.ChannelAverage{
		Kind: domain.ScoreBefriend, Total: 4, Channels: 1, Average: 4,
	}, ChannelAverage(records(), domain.ScoreBefriend))

	assert.Equal(t, domain.ChannelAverage{Kind: domain.ScoreShot},
		ChannelAverage(nil, domain.ScoreShot))
}

func TestAverage(t *testing.T) {
	assert.Equal(t, int64(0), Average(10, 0))
	assert.Equal(t, int64(3), Average(10, 3))
	assert.Equal(t, 2, Contributors(ChannelTotals(records(), domain.ScoreShot)))
	assert.Equal(t, int64(7), Sum(UserTotals(records(), domain.ScoreShot)))
}

func TestChannelAverageProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "rows")
		var recs []domain.ScoreRecord
		active := make(map[string]bool)
		var total int64
		for i := 0; i < n; i++ {
			channel := rapid.SampledFrom([]string{"a", "b", "c", "d"}).Draw(t, "channel")
			shot := rapid.Int64Range(0, 30).Draw(t, "shot")
			recs = append(recs, domain.ScoreRecord{Network: "n", Channel: channel, Name: fmt.Sprintf("u%d", i), Shot: shot})
			total += shot
			if shot > 0 {
				active[channel] = true
			}
		}

		avg := ChannelAverage(recs, domain.ScoreShot)
		if avg.Total != total {
			t.Fatalf("total %d, want %d", avg.Total, total)
		}
		if avg.Channels != len(active) {
			t.Fatalf("channels %d, want %d", avg.Channels, len(active))
		}
		if avg.Channels == 0 {
			if avg.Average != 0 {
				t.Fatalf("average %d without active channels", avg.Average)
			}
			return
		}
		c := int64(avg.Channels)
		if avg.Average*c > total || (avg.Average+1)*c <= total {
			t.Fatalf("average %d is not %d / %d rounded down", avg.Average, total, c)
		}
	})
}

func rankEntries(n int) []domain.RankEntry {
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{Key: fmt.Sprintf("user-%02d", i), Value: int64(n - i)}
	}
	return Rank(pairs)
}

func TestPagerSplitsColumns(t *testing.T) {
	pager := Pager{PageSize: 10, Columns: 2}
	entries := rankEntries(25)

	assert.Equal(t, 2, pager.Pages(len(entries)))

	first, err := pager.Page(entries, 1)
	require.NoError(t, err)
	require.Len(t, first.Columns, 2)
	assert.Equal(t, 1, first.Columns[0].FirstRank)
	assert.Equal(t, 10, first.Columns[0].LastRank)
	assert.Equal(t, 11, first.Columns[1].FirstRank)
	assert.Equal(t, 20, first.Columns[1].LastRank)

	last, err := pager.Page(entries, 2)
	require.NoError(t, err)
	require.Len(t, last.Columns, 1)
	assert.Equal(t, 21, last.Columns[0].FirstRank)
	assert.Equal(t, 25, last.Columns[0].LastRank)
	assert.Len(t, last.Columns[0].Entries, 5)

	_, err = pager.Page(entries, 3)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = pager.Page(entries, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestPagerEmptyRanking(t *testing.T) {
	pager := Pager{PageSize: 10, Columns: 2}
	page, err := pager.Page(nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Empty(t, page.Columns)
}

func TestRankProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOf(rapid.Int64Range(0, 50)).Draw(t, "values")
		pairs := make([]Pair, len(values))
		for i, v := range values {
			pairs[i] = Pair{Key: fmt.Sprintf("k%d", i), Value: v}
		}

		entries := Rank(pairs)

		nonzero := 0
		for _, v := range values {
			if v > 0 {
				nonzero++
			}
		}
		if len(entries) != nonzero {
			t.Fatalf("got %d entries, want %d", len(entries), nonzero)
		}

		position := make(map[string]int, len(pairs))
		for i, p := range pairs {
			position[p.Key] = i
		}
		for i, e := range entries {
			if e.Rank != i+1 {
				t.Fatalf("entry %d has rank %d", i, e.Rank)
			}
			if e.Value <= 0 {
				t.Fatalf("zero value %q ranked", e.Key)
			}
			if i == 0 {
				continue
			}
			prev := entries[i-1]
			if prev.Value < e.Value {
				t.Fatalf("not descending at %d", i)
			}
			if prev.Value == e.Value && position[prev.Key] > position[e.Key] {
				t.Fatalf("tie order not stable at %d", i)
			}
		}
	})
}

func TestPagerProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pager := Pager{
			PageSize: rapid.IntRange(1, 15).Draw(t, "size"),
			Columns:  rapid.IntRange(1, 3).Draw(t, "columns"),
		}
		entries := rankEntries(rapid.IntRange(0, 120).Draw(t, "n"))

		var seen []domain.RankEntry
		for n := 1; n <= pager.Pages(len(entries)); n++ {
			page, err := pager.Page(entries, n)
			if err != nil {
				t.Fatalf("page %d: %v", n, err)
			}
			if len(page.Columns) > pager.Columns {
				t.Fatalf("page %d has %d columns", n, len(page.Columns))
			}
			for _, col := range page.Columns {
				if len(col.Entries) == 0 || len(col.Entries) > pager.PageSize {
					t.Fatalf("column with %d entries", len(col.Entries))
				}
				if col.FirstRank != col.Entries[0].Rank || col.LastRank != col.Entries[len(col.Entries)-1].Rank {
					t.Fatalf("column boundaries do not match entries")
				}
				seen = append(seen, col.Entries...)
			}
		}
		if len(seen) != len(entries) {
			t.Fatalf("pages cover %d of %d entries", len(seen), len(entries))
		}
		for i := range seen {
			if seen[i] != entries[i] {
				t.Fatalf("entry %d out of order", i)
			}
		}
	})
}
