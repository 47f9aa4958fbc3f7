package cache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
	"github.com/maaaruch/tg-awards-bot/internal/storage"
)

func sqliteCache(t *testing.T) WinnersCache {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	s := storage.New(db, storage.DialectSQLite)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}

func TestWinnersCache_SQLiteContract(t *testing.T) {
	ctx := context.Background()
	c := sqliteCache(t)

	if _, err := c.LoadWinners(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	snap := domain.WinnersSnapshot{Results: []domain.CategoryResult{{CategoryName: "Best Film"}}}
	if err := c.SaveWinners(ctx, snap); err != nil {
		t.Fatalf("SaveWinners: %v", err)
	}
	got, err := c.LoadWinners(ctx)
	if err != nil {
		t.Fatalf("LoadWinners: %v", err)
	}
	if len(got.Results) != 1 || got.Results[0].CategoryName != "Best Film" || got.FetchedAt.IsZero() {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestNewRedisCache_BadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not-a-redis-url", ""); err == nil {
		t.Fatalf("expected error for bad URL")
	}
}

func TestNewRedisCacheFromClient_DefaultKey(t *testing.T) {
	c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer c.Close()

	rc := NewRedisCacheFromClient(c, "")
	if rc.key != DefaultWinnersKey {
		t.Fatalf("key: got %q", rc.key)
	}
	if NewRedisCacheFromClient(c, "custom").key != "custom" {
		t.Fatalf("custom key ignored")
	}
}
