package audit

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"forest/internal/game"
)

func TestRecordNeverBlocks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(nil, logger)

	// Overfill the queue without a running drain loop. Every Record call
	// must return immediately, drops included.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueDepth*2; i++ {
			a.Record(game.Transaction{ID: "tx-overflow", Amount: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Record blocked on a full queue")
	}
}

func TestQueueHoldsRecordedTransactions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(nil, logger)

	a.Record(game.Transaction{ID: "tx-1"})
	a.Record(game.Transaction{ID: "tx-2"})

	first := <-a.queue
	second := <-a.queue
	if first.ID != "tx-1" || second.ID != "tx-2" {
		t.Fatalf("queue order: %s then %s", first.ID, second.ID)
	}
}
