package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CategoryWithNominees is a category as the public listing returns it.
type CategoryWithNominees struct {
	Category
	Nominees []Nominee `json:"nominees"`
}

type Nominee struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Nomination links one nominee to one category.
type Nomination struct {
	CategoryID int64 `json:"category_id"`
	NomineeID  int64 `json:"nominee_id"`
}

type Vote struct {
	VoterID    VoterID `json:"voterId"`
	CategoryID int64   `json:"categoryId"`
	NomineeID  int64   `json:"nomineeId"`
}

// RecordedVote is a vote as the server reports it back for a voter.
type RecordedVote struct {
	CategoryID int64 `json:"category_id"`
	NomineeID  int64 `json:"nominee_id"`
}

type TallyEntry struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	VoteCount int    `json:"voteCount"`
}

// CategoryResult is one category of the winners report.
type CategoryResult struct {
	CategoryName string       `json:"categoryName"`
	Winner       TallyEntry   `json:"winner"`
	FullTally    []TallyEntry `json:"fullTally"`
}

// WinnersSnapshot is a cached copy of the winners report.
type WinnersSnapshot struct {
	Results   []CategoryResult `json:"results"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// VoterID is issued by the server on sign-in. Depending on the backend it
// arrives as a JSON number or a JSON string; it is sent back in the same shape.
type VoterID struct {
	value   string
	numeric bool
}

func NewVoterID(s string) VoterID {
	_, err := strconv.ParseInt(s, 10, 64)
	return VoterID{value: s, numeric: err == nil}
}

func (v VoterID) String() string { return v.value }

func (v VoterID) IsZero() bool { return v.value == "" }

func (v VoterID) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return []byte(v.value), nil
	}
	return json.Marshal(v.value)
}

func (v *VoterID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = VoterID{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = VoterID{value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("voter id: %w", err)
	}
	*v = VoterID{value: n.String(), numeric: true}
	return nil
}
