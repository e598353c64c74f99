package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/nguyentantai21042004/meeting-summary/internal/config"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Save(ctx, "job-1", []byte(`{"status":"done"}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx, "job-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != `{"status":"done"}` {
		t.Errorf("Load() = %s", got)
	}

	if err := s.Save(ctx, "job-1", []byte(`{"status":"failed"}`)); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	got, _ = s.Load(ctx, "job-1")
	if string(got) != `{"status":"failed"}` {
		t.Errorf("Load() after overwrite = %s", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreCopiesData(t *testing.T) {
	s := NewMemory()
	data := []byte("abc")
	if err := s.Save(context.Background(), "id", data); err != nil {
		t.Fatal(err)
	}
	data[0] = 'x'

	got, _ := s.Load(context.Background(), "id")
	if string(got) != "abc" {
		t.Errorf("stored data mutated by caller: %s", got)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)

	if ttl := mr.TTL(keyPrefix + "job-1"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := s.Load(context.Background(), "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedis(ctx, config.RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("NewRedis() should fail for an unreachable server")
	}
}
