package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
)

//go:embed schema.sql
var embeddedSchema embed.FS

var ErrNotFound = errors.New("not found")

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

// Store keeps what the browser used to keep in local storage: who is signed
// in as which voter, who is logged in as admin, and the last winners report.
// Nothing expires.
type Store struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

func New(db *sql.DB, dialect string) *Store {
	if dialect == "" {
		dialect = DialectSQLite
	}
	return &Store{db: db, dialect: dialect, now: time.Now}
}

func (s *Store) InitSchema(ctx context.Context) error {
	if s.dialect == DialectSQLite {
		if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
			return err
		}
	}

	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}

	schema := strings.TrimSpace(string(b))
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ---------- Voter sessions ----------

type VoterSession struct {
	UserID     int64
	VoterID    domain.VoterID
	Name       string
	SignedInAt time.Time
}

func (s *Store) SaveVoterSession(ctx context.Context, userID int64, voterID domain.VoterID, name string) error {
	encoded, err := json.Marshal(voterID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO voter_sessions(user_id, voter_id, name, signed_in_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT(user_id) DO UPDATE SET
    voter_id = excluded.voter_id,
    name = excluded.name,
    signed_in_at = excluded.signed_in_at
`, userID, string(encoded), name, s.now().UTC())
	return err
}

func (s *Store) GetVoterSession(ctx context.Context, userID int64) (*VoterSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT voter_id, name, signed_in_at FROM voter_sessions WHERE user_id = $1`, userID)

	var encoded string
	vs := VoterSession{UserID: userID}
	if err := row.Scan(&encoded, &vs.Name, &vs.SignedInAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(encoded), &vs.VoterID); err != nil {
		return nil, fmt.Errorf("decode voter id: %w", err)
	}
	return &vs, nil
}

// ---------- Admin sessions ----------

func (s *Store) SetAdmin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO admin_sessions(user_id, logged_in_at)
VALUES ($1, $2)
ON CONFLICT(user_id) DO UPDATE SET logged_in_at = excluded.logged_in_at
`, userID, s.now().UTC())
	return err
}

func (s *Store) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM admin_sessions WHERE user_id = $1`, userID).Scan(&cnt)
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// SignOut drops both the voter session and the admin flag of a user.
func (s *Store) SignOut(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM voter_sessions WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM admin_sessions WHERE user_id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// ---------- Winners cache ----------

// winnersRow is the only row of winners_cache.
const winnersRow = 1

func (s *Store) SaveWinners(ctx context.Context, snap domain.WinnersSnapshot) error {
	payload, err := json.Marshal(snap.Results)
	if err != nil {
		return err
	}
	fetched := snap.FetchedAt
	if fetched.IsZero() {
		fetched = s.now()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO winners_cache(id, payload, fetched_at)
VALUES ($1, $2, $3)
ON CONFLICT(id) DO UPDATE SET
    payload = excluded.payload,
    fetched_at = excluded.fetched_at
`, winnersRow, string(payload), fetched.UTC())
	return err
}

func (s *Store) LoadWinners(ctx context.Context) (domain.WinnersSnapshot, error) {
	var payload string
	var snap domain.WinnersSnapshot
	err := s.db.QueryRowContext(ctx, `SELECT payload, fetched_at FROM winners_cache WHERE id = $1`, winnersRow).
		Scan(&payload, &snap.FetchedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.WinnersSnapshot{}, ErrNotFound
		}
		return domain.WinnersSnapshot{}, err
	}
	if err := json.Unmarshal([]byte(payload), &snap.Results); err != nil {
		// a broken cache is as good as none
		return domain.WinnersSnapshot{}, fmt.Errorf("%w: decode winners cache: %v", ErrNotFound, err)
	}
	return snap, nil
}
