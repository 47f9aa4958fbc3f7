// Package results serves the winners view: the last cached report right
// away, refreshed from the API whenever the API answers.
package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maaaruch/tg-awards-bot/internal/cache"
	"github.com/maaaruch/tg-awards-bot/internal/domain"
	"github.com/maaaruch/tg-awards-bot/internal/storage"
	"github.com/maaaruch/tg-awards-bot/internal/tally"
)

type WinnersSource interface {
	Winners(ctx context.Context) ([]domain.CategoryResult, error)
}

type Service struct {
	Source WinnersSource
	Cache  cache.WinnersCache
	Logger *slog.Logger
	Now    func() time.Time
}

// View is what the winners screen shows. When the refresh failed, Err is set
// and Results holds the cached report, if any.
type View struct {
	Results   []domain.CategoryResult
	FetchedAt time.Time
	FromCache bool
	Err       error
}

func (s *Service) Fetch(ctx context.Context) View {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	var view View
	if s.Cache != nil {
		snap, err := s.Cache.LoadWinners(ctx)
		switch {
		case err == nil:
			view = View{Results: snap.Results, FetchedAt: snap.FetchedAt, FromCache: true}
		case !errors.Is(err, storage.ErrNotFound):
			logger.Warn("winners cache read failed", "error", err)
		}
	}

	fresh, err := s.Source.Winners(ctx)
	if err != nil {
		logger.Warn("winners refresh failed", "error", err, "cached", view.FromCache)
		view.Err = err
		return view
	}

	snap := domain.WinnersSnapshot{Results: fresh, FetchedAt: now()}
	if s.Cache != nil {
		if err := s.Cache.SaveWinners(ctx, snap); err != nil {
			logger.Warn("winners cache write failed", "error", err)
		}
	}
	return View{Results: snap.Results, FetchedAt: snap.FetchedAt}
}

// RenderCategory formats one category of the report as chat text.
func RenderCategory(res domain.CategoryResult) string {
	var sb strings.Builder
	sb.WriteString("🏆 " + res.CategoryName + "\n")

	out := tally.Determine(res)
	switch out.Status {
	case tally.NoVotes:
		sb.WriteString("🗳️ No votes recorded yet\n")
	case tally.Tie:
		sb.WriteString(fmt.Sprintf("🤝 TIE!: %s\nTotal votes: %d\n", out.Label(), out.VoteCount))
	default:
		sb.WriteString(fmt.Sprintf("Winner: %s\nTotal votes: %d\n", out.Label(), out.VoteCount))
	}

	voted := tally.Breakdown(res.FullTally)
	sb.WriteString(fmt.Sprintf("\nFull vote breakdown (%d nominees voted):\n", len(voted)))
	if len(voted) == 0 {
		sb.WriteString("No votes recorded yet.\n")
	}
	for _, e := range voted {
		mark := "•"
		if out.Status != tally.NoVotes && e.VoteCount == out.VoteCount {
			mark = "⭐"
		}
		sb.WriteString(fmt.Sprintf("%s %s - %d votes\n", mark, e.Name, e.VoteCount))
	}
	return sb.String()
}

// Render formats the whole view.
func Render(v View) string {
	var sb strings.Builder
	sb.WriteString("🎉 Official Award Winners!\n\n")

	if v.Err != nil {
		sb.WriteString("⚠️ Failed to fetch latest winners from server.")
		if v.FromCache {
			sb.WriteString(fmt.Sprintf(" Showing results saved %s.", v.FetchedAt.Format("2006-01-02 15:04 MST")))
		}
		sb.WriteString("\n\n")
	}

	if len(v.Results) == 0 {
		sb.WriteString("No results available yet. Please ensure voting has closed and categories are set up.")
		return sb.String()
	}

	for i, res := range v.Results {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(RenderCategory(res))
	}
	return sb.String()
}
