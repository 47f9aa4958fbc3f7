package results

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
	"github.com/maaaruch/tg-awards-bot/internal/storage"
)

type memCache struct {
	snap  *domain.WinnersSnapshot
	saves int
}

func (m *memCache) LoadWinners(context.Context) (domain.WinnersSnapshot, error) {
	if m.snap == nil {
		return domain.WinnersSnapshot{}, storage.ErrNotFound
	}
	return *m.snap, nil
}

func (m *memCache) SaveWinners(_ context.Context, s domain.WinnersSnapshot) error {
	m.saves++
	m.snap = &s
	return nil
}

type source struct {
	res []domain.CategoryResult
	err error
}

func (s source) Winners(context.Context) ([]domain.CategoryResult, error) { return s.res, s.err }

func report(name string, tally ...domain.TallyEntry) domain.CategoryResult {
	r := domain.CategoryResult{CategoryName: name, FullTally: tally}
	for i, e := range tally {
		if i == 0 || e.VoteCount > r.Winner.VoteCount {
			r.Winner = e
		}
	}
	return r
}

func TestFetch_RefreshReplacesCache(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := &memCache{snap: &domain.WinnersSnapshot{Results: []domain.CategoryResult{report("Old")}}}
	s := &Service{
		Source: source{res: []domain.CategoryResult{report("New")}},
		Cache:  c,
		Now:    func() time.Time { return at },
	}

	v := s.Fetch(context.Background())
	if v.Err != nil || v.FromCache {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.Results[0].CategoryName != "New" || !v.FetchedAt.Equal(at) {
		t.Fatalf("fresh results not returned: %+v", v)
	}
	if c.saves != 1 || c.snap.Results[0].CategoryName != "New" {
		t.Fatalf("cache not replaced: %+v", c.snap)
	}
}

func TestFetch_FailureFallsBackToCache(t *testing.T) {
	c := &memCache{snap: &domain.WinnersSnapshot{Results: []domain.CategoryResult{report("Cached")}}}
	s := &Service{Source: source{err: errors.New("boom")}, Cache: c}

	v := s.Fetch(context.Background())
	if v.Err == nil || !v.FromCache || v.Results[0].CategoryName != "Cached" {
		t.Fatalf("expected cached view with error, got %+v", v)
	}
	if c.saves != 0 {
		t.Fatalf("cache must not be written on failure")
	}
	if !strings.Contains(Render(v), "Failed to fetch latest winners") {
		t.Fatalf("render should warn:\n%s", Render(v))
	}
}

func TestFetch_FailureWithoutCache(t *testing.T) {
	s := &Service{Source: source{err: errors.New("boom")}, Cache: &memCache{}}
	v := s.Fetch(context.Background())
	if v.Err == nil || v.FromCache || len(v.Results) != 0 {
		t.Fatalf("unexpected view: %+v", v)
	}
	if !strings.Contains(Render(v), "No results available yet") {
		t.Fatalf("render:\n%s", Render(v))
	}
}

func TestRenderCategory(t *testing.T) {
	tests := []struct {
		name     string
		res      domain.CategoryResult
		contains []string
		absent   []string
	}{
		{
			"tie",
			report("Best Film",
				domain.TallyEntry{ID: 1, Name: "A", VoteCount: 5},
				domain.TallyEntry{ID: 2, Name: "B", VoteCount: 5},
				domain.TallyEntry{ID: 3, Name: "C", VoteCount: 2}),
			[]string{"TIE!: A & B", "Total votes: 5", "(3 nominees voted)", "⭐ A - 5 votes", "• C - 2 votes"},
			nil,
		},
		{
			"no_votes",
			report("Best Score", domain.TallyEntry{ID: 1, Name: "A"}, domain.TallyEntry{ID: 2, Name: "B"}),
			[]string{"No votes recorded yet", "(0 nominees voted)"},
			[]string{"Winner:", "A -"},
		},
		{
			"winner_breakdown_sorted",
			report("Best Actor",
				domain.TallyEntry{ID: 3, Name: "C", VoteCount: 1},
				domain.TallyEntry{ID: 1, Name: "A", VoteCount: 3},
				domain.TallyEntry{ID: 2, Name: "Z", VoteCount: 0}),
			[]string{"Winner: A", "(2 nominees voted)"},
			[]string{"Z -"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderCategory(tt.res)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Fatalf("missing %q in:\n%s", s, got)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(got, s) {
					t.Fatalf("unexpected %q in:\n%s", s, got)
				}
			}
		})
	}

	sorted := RenderCategory(tests[2].res)
	if strings.Index(sorted, "A - 3") > strings.Index(sorted, "C - 1") {
		t.Fatalf("breakdown not sorted:\n%s", sorted)
	}
}
