package stats

import (
	"fmt"

	"github.com/duckhunt/internal/domain"
)

// Column is one leaderboard column of a page
type Column struct {
	FirstRank int                `json:"first_rank"`
	LastRank  int                `json:"last_rank"`
	Entries   []domain.RankEntry `json:"entries"`
}

// Page is a slice of a ranking split into columns
type Page struct {
	Number  int      `json:"number"`
	Total   int      `json:"total"`
	Columns []Column `json:"columns"`
}

// Pager splits rankings into pages of Columns columns of PageSize entries
type Pager struct {
	PageSize int
	Columns  int
}

func (p Pager) perPage() int {
	size, cols := p.PageSize, p.Columns
	if size <= 0 {
		size = 10
	}
	if cols <= 0 {
		cols = 1
	}
	return size * cols
}

// Pages returns the number of pages needed for n entries. An empty ranking
// still has one (empty) page.
func (p Pager) Pages(n int) int {
	per := p.perPage()
	if n <= 0 {
		return 1
	}
	return (n + per - 1) / per
}

// Page returns page number (1-based) of entries
func (p Pager) Page(entries []domain.RankEntry, number int) (Page, error) {
	total := p.Pages(len(entries))
	if number < 1 || number > total {
		return Page{}, fmt.Errorf("page %d of %d: %w", number, total, domain.ErrInvalidRequest)
	}

	per := p.perPage()
	size := per / max(p.Columns, 1)

	start := (number - 1) * per
	end := min(start+per, len(entries))

	page := Page{Number: number, Total: total}
	for lo := start; lo < end; lo += size {
		hi := min(lo+size, end)
		page.Columns = append(page.Columns, Column{
			FirstRank: entries[lo].Rank,
			LastRank:  entries[hi-1].Rank,
			Entries:   entries[lo:hi],
		})
	}
	return page, nil
}
