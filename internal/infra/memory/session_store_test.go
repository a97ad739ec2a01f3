package memory

import (
	"testing"

	"remindme-service/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	session := store.GetOrCreate("player-1")
	if session == nil {
		t.Fatalf("expected session")
	}
	if again := store.GetOrCreate("player-1"); again != session {
		t.Fatalf("expected the same session on second GetOrCreate")
	}
	if _, ok := store.Get("player-1"); !ok {
		t.Fatalf("expected session present")
	}

	seen := 0
	store.Range(func(*app.PlayerSession) { seen++ })
	if seen != 1 {
		t.Fatalf("expected 1 session in range, got %d", seen)
	}

	store.DeleteIfIdle("player-1")
	if _, ok := store.Get("player-1"); ok {
		t.Fatalf("expected idle session removed")
	}
}
