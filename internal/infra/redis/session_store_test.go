package redis

import (
	"testing"
	"time"

	"remindme-service/internal/app"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, client := newClient(t)
	store := NewSessionStore(client, time.Minute)

	_ = store.GetOrCreate("player-1")
	if !mr.Exists("remindme:session:player-1") {
		t.Fatalf("expected redis key to be set")
	}

	seen := 0
	store.Range(func(*app.PlayerSession) { seen++ })
	if seen != 1 {
		t.Fatalf("expected one session, got %d", seen)
	}

	store.DeleteIfIdle("player-1")
	if mr.Exists("remindme:session:player-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("player-1"); ok {
		t.Fatalf("expected session dropped")
	}
}
