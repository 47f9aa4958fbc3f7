package voting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maaaruch/tg-awards-bot/internal/api"
	"github.com/maaaruch/tg-awards-bot/internal/domain"
	"github.com/maaaruch/tg-awards-bot/internal/metrics"
)

type API interface {
	VoterVotes(ctx context.Context, voterID domain.VoterID) ([]domain.RecordedVote, error)
	SubmitVote(ctx context.Context, v domain.Vote) (string, error)
}

// Source tells where the nominee of a voted category came from.
type Source int

const (
	// SourceSubmitted: the vote just sent was accepted.
	SourceSubmitted Source = iota
	// SourceServer: the server refused a duplicate and its recorded vote was
	// fetched again.
	SourceServer
	// SourceLocal: the server refused a duplicate but its recorded vote could
	// not be read back, so the local pick is assumed.
	SourceLocal
)

type Result struct {
	CategoryID int64
	NomineeID  int64
	Message    string
	Source     Source
}

type Service struct {
	API     API
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewService(client API, m *metrics.Metrics, logger *slog.Logger) *Service {
	if m == nil {
		m = metrics.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{API: client, Metrics: m, Logger: logger}
}

// Load builds a ballot from the votes the server has recorded for the voter.
func (s *Service) Load(ctx context.Context, voterID domain.VoterID) (*Ballot, error) {
	recorded, err := s.API.VoterVotes(ctx, voterID)
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	return NewBallot(voterID, recorded), nil
}

// Submit sends the pending pick for a category.
//
// A category already voted locally, or without a pick, never reaches the
// server. When the server answers "already voted", the ballot is reconciled
// against the server's recorded votes; the returned error then wraps both
// ErrAlreadyVoted and the server's *api.APIError. Any other failure leaves
// the ballot untouched.
func (s *Service) Submit(ctx context.Context, b *Ballot, categoryID int64) (Result, error) {
	res := Result{CategoryID: categoryID}

	nomineeID, err := b.pending(categoryID)
	if err != nil {
		if n, ok := b.Voted(categoryID); ok {
			res.NomineeID = n
		}
		return res, err
	}
	res.NomineeID = nomineeID

	msg, err := s.API.SubmitVote(ctx, domain.Vote{VoterID: b.VoterID, CategoryID: categoryID, NomineeID: nomineeID})
	if err == nil {
		b.markVoted(categoryID, nomineeID)
		res.Message = msg
		s.Metrics.Votes.WithLabelValues("accepted").Inc()
		s.Logger.Info("vote accepted", "voter_id", b.VoterID.String(), "category_id", categoryID, "nominee_id", nomineeID)
		return res, nil
	}

	if !api.IsAlreadyVoted(err) {
		s.Metrics.Votes.WithLabelValues("failed").Inc()
		return res, err
	}

	s.Metrics.Votes.WithLabelValues("already_voted").Inc()
	res.Message = api.Message(err)
	res.NomineeID, res.Source = s.reconcile(ctx, b.VoterID, categoryID, nomineeID)
	b.markVoted(categoryID, res.NomineeID)
	return res, fmt.Errorf("%w: %w", ErrAlreadyVoted, err)
}

// reconcile asks the server which nominee it holds for the category and falls
// back to the local pick when it cannot tell.
func (s *Service) reconcile(ctx context.Context, voterID domain.VoterID, categoryID, selected int64) (int64, Source) {
	recorded, err := s.API.VoterVotes(ctx, voterID)
	if err != nil {
		s.Logger.Warn("re-fetch of recorded votes failed, keeping local pick",
			"voter_id", voterID.String(), "category_id", categoryID, "error", err)
		return selected, SourceLocal
	}
	for _, v := range recorded {
		if v.CategoryID == categoryID {
			return v.NomineeID, SourceServer
		}
	}
	s.Logger.Warn("server refused vote but lists none for category",
		"voter_id", voterID.String(), "category_id", categoryID)
	return selected, SourceLocal
}
