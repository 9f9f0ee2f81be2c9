package store

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestMemoryStoreKeysAndStaleness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	_ = m.Set(ctx, "q-a", "1")
	now = now.Add(time.Hour)
	_ = m.Set(ctx, "q-b", "2")
	_ = m.Set(ctx, "z", "3")

	keys, _ := m.Keys(ctx, "q-")
	if !reflect.DeepEqual(keys, []string{"q-a", "q-b"}) {
		t.Fatalf("unexpected keys %v", keys)
	}

	stale, _ := m.KeysUpdatedBefore(ctx, "q-", now)
	if !reflect.DeepEqual(stale, []string{"q-a"}) {
		t.Fatalf("unexpected stale keys %v", stale)
	}

	_ = m.Delete(ctx, "q-a")
	if _, found, _ := m.Get(ctx, "q-a"); found {
		t.Fatal("expected q-a to be deleted")
	}
}
