package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	db.SetMaxOpenConns(1)

	s := New(db, DialectSQLite)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s, db
}

func mustCount(t *testing.T, db *sql.DB, q string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestStore_InitSchemaTwice(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("second InitSchema: %v", err)
	}
}

func TestStore_VoterSession_KeepsIDShape(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)

	if _, err := s.GetVoterSession(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SaveVoterSession(ctx, 1, domain.NewVoterID("42"), "Ann"); err != nil {
		t.Fatalf("SaveVoterSession: %v", err)
	}
	var strID domain.VoterID
	if err := strID.UnmarshalJSON([]byte(`"42"`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.SaveVoterSession(ctx, 2, strID, "Bob"); err != nil {
		t.Fatalf("SaveVoterSession(string id): %v", err)
	}

	num, err := s.GetVoterSession(ctx, 1)
	if err != nil {
		t.Fatalf("GetVoterSession(1): %v", err)
	}
	b, _ := num.VoterID.MarshalJSON()
	if string(b) != `42` || num.Name != "Ann" {
		t.Fatalf("numeric id lost: %s %+v", b, num)
	}

	str, err := s.GetVoterSession(ctx, 2)
	if err != nil {
		t.Fatalf("GetVoterSession(2): %v", err)
	}
	b, _ = str.VoterID.MarshalJSON()
	if string(b) != `"42"` {
		t.Fatalf("string id lost: %s", b)
	}

	// sign in again overwrites
	if err := s.SaveVoterSession(ctx, 1, domain.NewVoterID("7"), "Ann"); err != nil {
		t.Fatalf("SaveVoterSession(again): %v", err)
	}
	if got := mustCount(t, db, `SELECT COUNT(*) FROM voter_sessions WHERE user_id = ?`, 1); got != 1 {
		t.Fatalf("expected 1 row, got %d", got)
	}
	again, _ := s.GetVoterSession(ctx, 1)
	if again.VoterID.String() != "7" {
		t.Fatalf("voter id not replaced: %q", again.VoterID)
	}
}

func TestStore_SignOut_ClearsVoterAndAdmin(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_ = s.SaveVoterSession(ctx, 5, domain.NewVoterID("9"), "Eve")
	if err := s.SetAdmin(ctx, 5); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	if err := s.SetAdmin(ctx, 5); err != nil {
		t.Fatalf("SetAdmin twice: %v", err)
	}
	_ = s.SetAdmin(ctx, 6)

	if ok, _ := s.IsAdmin(ctx, 5); !ok {
		t.Fatalf("expected admin")
	}

	if err := s.SignOut(ctx, 5); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if ok, _ := s.IsAdmin(ctx, 5); ok {
		t.Fatalf("admin flag survived sign-out")
	}
	if _, err := s.GetVoterSession(ctx, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("voter session survived sign-out: %v", err)
	}
	if ok, _ := s.IsAdmin(ctx, 6); !ok {
		t.Fatalf("other user's admin flag removed")
	}
}

func TestStore_WinnersCache(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)

	if _, err := s.LoadWinners(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty cache, got %v", err)
	}

	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	snap := domain.WinnersSnapshot{
		FetchedAt: at,
		Results: []domain.CategoryResult{{
			CategoryName: "Best Film",
			Winner:       domain.TallyEntry{ID: 1, Name: "Arrival", VoteCount: 3},
			FullTally:    []domain.TallyEntry{{ID: 1, Name: "Arrival", VoteCount: 3}, {ID: 2, Name: "Birdman", VoteCount: 0}},
		}},
	}
	if err := s.SaveWinners(ctx, snap); err != nil {
		t.Fatalf("SaveWinners: %v", err)
	}
	snap.Results[0].CategoryName = "Best Picture"
	if err := s.SaveWinners(ctx, snap); err != nil {
		t.Fatalf("SaveWinners(again): %v", err)
	}
	if got := mustCount(t, db, `SELECT COUNT(*) FROM winners_cache`); got != 1 {
		t.Fatalf("expected a single cache row, got %d", got)
	}

	got, err := s.LoadWinners(ctx)
	if err != nil {
		t.Fatalf("LoadWinners: %v", err)
	}
	if len(got.Results) != 1 || got.Results[0].CategoryName != "Best Picture" || len(got.Results[0].FullTally) != 2 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if !got.FetchedAt.Equal(at) {
		t.Fatalf("fetched_at: got %v want %v", got.FetchedAt, at)
	}
}

func TestStore_WinnersCache_Corrupt(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)

	if _, err := db.Exec(`INSERT INTO winners_cache(id, payload, fetched_at) VALUES (1, 'not json', ?)`, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.LoadWinners(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected corrupt cache to read as missing, got %v", err)
	}
}
