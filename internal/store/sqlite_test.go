package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTimeFormatSortsLexicographically(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// .1s vs .15s renders as ".1Z" vs ".15Z" under RFC3339Nano, which
	// sorts the wrong way round as strings. The fixed-width format must
	// keep string order aligned with time order.
	earlier := fmtTime(base.Add(100 * time.Millisecond))
	later := fmtTime(base.Add(150 * time.Millisecond))

	if len(earlier) != len(later) {
		t.Fatalf("formats differ in width: %q vs %q", earlier, later)
	}
	if earlier >= later {
		t.Fatalf("string order disagrees with time order: %q >= %q", earlier, later)
	}
	if got := parseTime(earlier); !got.Equal(base.Add(100 * time.Millisecond)) {
		t.Errorf("round trip: got %v", got)
	}
	// Older rows written by previous versions still parse.
	if got := parseTime("2026-01-01T00:00:00.1Z"); got.IsZero() {
		t.Error("legacy RFC3339Nano string failed to parse")
	}
}

func TestConcurrentAddMemoryIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const workers = 8
	const perWorker = 20
	ids := make(chan string, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				m, err := s.AddMemory(ctx, AddMemoryParams{Content: "parallel write", Type: "fact", Importance: 0.5})
				if err != nil {
					t.Errorf("add: %v", err)
					return
				}
				ids <- m.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, workers*perWorker)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("got %d ids, want %d", len(seen), workers*perWorker)
	}
}
