package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	snap := sampleSnapshot()
	if err := store.Save(ctx, snap, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, snap.SessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SessionID != snap.SessionID || got.Seq != snap.Seq {
		t.Errorf("got session %q seq %d, want %q seq %d", got.SessionID, got.Seq, snap.SessionID, snap.Seq)
	}
}

func TestMemoryStoreMissing(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreExpired(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	snap := sampleSnapshot()
	if err := store.Save(ctx, snap, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Load(ctx, snap.SessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound for expired snapshot", err)
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	store := NewMemoryStore(WithCleanupInterval(10 * time.Millisecond))
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, sampleSnapshot(), time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for store.Count() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired snapshot was not swept")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	snap := sampleSnapshot()
	if err := store.Save(ctx, snap, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, snap.SessionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, snap.SessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after delete", err)
	}
	if err := store.Delete(ctx, snap.SessionID); err != nil {
		t.Errorf("Delete of missing snapshot: %v", err)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	err := store.Save(context.Background(), sampleSnapshot(), time.Now().Add(time.Minute))
	if !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Save on closed store: got %v, want ErrStoreClosed", err)
	}
}
