// Package voting keeps a voter's view of which categories are already voted
// and mirrors the server's one-vote-per-category rule before a request is
// ever sent. The server stays the only authority; the gate here only stops
// the bot from offering a vote it knows will be refused.
package voting

import (
	"errors"
	"sync"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
)

var (
	ErrAlreadyVoted = errors.New("already voted in this category")
	ErrNoSelection  = errors.New("no nominee selected")
)

// Ballot is one voter's local state: recorded votes and pending picks,
// both keyed by category id.
type Ballot struct {
	VoterID domain.VoterID

	mu       sync.Mutex
	voted    map[int64]int64
	selected map[int64]int64
}

// NewBallot starts from the votes the server already holds. Those are also
// the initial selection.
func NewBallot(voterID domain.VoterID, recorded []domain.RecordedVote) *Ballot {
	b := &Ballot{
		VoterID:  voterID,
		voted:    make(map[int64]int64, len(recorded)),
		selected: make(map[int64]int64, len(recorded)),
	}
	for _, v := range recorded {
		b.voted[v.CategoryID] = v.NomineeID
		b.selected[v.CategoryID] = v.NomineeID
	}
	return b
}

// Select picks a nominee for a category that is still open to this voter.
func (b *Ballot) Select(categoryID, nomineeID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.voted[categoryID]; ok {
		return ErrAlreadyVoted
	}
	b.selected[categoryID] = nomineeID
	return nil
}

// Voted returns the nominee recorded for the category, if any.
func (b *Ballot) Voted(categoryID int64) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.voted[categoryID]
	return n, ok
}

func (b *Ballot) Selected(categoryID int64) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.selected[categoryID]
	return n, ok
}

// CanSubmit is true for a category without a recorded vote that has a pick.
func (b *Ballot) CanSubmit(categoryID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.voted[categoryID]; ok {
		return false
	}
	_, ok := b.selected[categoryID]
	return ok
}

func (b *Ballot) markVoted(categoryID, nomineeID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.voted[categoryID] = nomineeID
	b.selected[categoryID] = nomineeID
}

// pending returns the selection for a submit, or why there is none.
func (b *Ballot) pending(categoryID int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.voted[categoryID]; ok {
		return 0, ErrAlreadyVoted
	}
	n, ok := b.selected[categoryID]
	if !ok || n == 0 {
		return 0, ErrNoSelection
	}
	return n, nil
}
