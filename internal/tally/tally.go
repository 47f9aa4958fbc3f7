// Package tally turns the per-category vote counts of the winners report
// into a winner, a tie or a no-votes status, and prepares the breakdown
// shown next to it.
package tally

import (
	"sort"
	"strings"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
)

type Status int

const (
	NoVotes Status = iota
	SingleWinner
	Tie
)

func (s Status) String() string {
	switch s {
	case SingleWinner:
		return "winner"
	case Tie:
		return "tie"
	default:
		return "no_votes"
	}
}

// TieSeparator joins the names of tied nominees.
const TieSeparator = " & "

type Outcome struct {
	Status    Status
	Names     []string
	VoteCount int
}

// Label is the winner's name, or the tied names joined in tally order.
func (o Outcome) Label() string {
	return strings.Join(o.Names, TieSeparator)
}

// Determine decides the outcome of one category in a single pass over its
// full tally. The maximum is taken from the designated winner; a tally entry
// above it (inconsistent server data) raises it.
func Determine(res domain.CategoryResult) Outcome {
	max := res.Winner.VoteCount
	for _, e := range res.FullTally {
		if e.VoteCount > max {
			max = e.VoteCount
		}
	}
	if max <= 0 {
		return Outcome{Status: NoVotes}
	}

	var top []string
	for _, e := range res.FullTally {
		if e.VoteCount == max {
			top = append(top, e.Name)
		}
	}

	switch len(top) {
	case 0:
		// tally missing from the report, trust the winner entry
		return Outcome{Status: SingleWinner, Names: []string{res.Winner.Name}, VoteCount: max}
	case 1:
		return Outcome{Status: SingleWinner, Names: top, VoteCount: max}
	default:
		return Outcome{Status: Tie, Names: top, VoteCount: max}
	}
}

// Breakdown drops nominees without votes and orders the rest by vote count,
// highest first. Equal counts keep their tally order.
func Breakdown(entries []domain.TallyEntry) []domain.TallyEntry {
	out := make([]domain.TallyEntry, 0, len(entries))
	for _, e := range entries {
		if e.VoteCount > 0 {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VoteCount > out[j].VoteCount
	})
	return out
}

// GroupByCategory attaches nominees to categories following the nomination
// links, in link order. Links to unknown nominees are skipped and categories
// without links get an empty, non-nil list.
func GroupByCategory(categories []domain.Category, nominees []domain.Nominee, links []domain.Nomination) []domain.CategoryWithNominees {
	byID := make(map[int64]domain.Nominee, len(nominees))
	for _, n := range nominees {
		byID[n.ID] = n
	}

	byCategory := make(map[int64][]domain.Nominee)
	for _, l := range links {
		n, ok := byID[l.NomineeID]
		if !ok {
			continue
		}
		byCategory[l.CategoryID] = append(byCategory[l.CategoryID], n)
	}

	out := make([]domain.CategoryWithNominees, 0, len(categories))
	for _, c := range categories {
		list := byCategory[c.ID]
		if list == nil {
			list = []domain.Nominee{}
		}
		out = append(out, domain.CategoryWithNominees{Category: c, Nominees: list})
	}
	return out
}
