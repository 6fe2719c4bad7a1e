package game

import (
	"fmt"
	"testing"
)

func TestLogRoutesTransferToBothRoomsAndGM(t *testing.T) {
	log := NewLog(0)
	log.Append(newTransaction(KindTransfer, "room1", "room2", 5))

	for _, roomID := range []string{"room1", "room2", GMRoomID} {
		if got := len(log.HistoryFor(roomID)); got != 1 {
			t.Fatalf("%s history entries = %d, want 1", roomID, got)
		}
	}
	if got := len(log.HistoryFor("room3")); got != 0 {
		t.Fatalf("uninvolved room received %d entries", got)
	}
}

func TestLogTransferWithGMCounterpartyRecordedOnce(t *testing.T) {
	log := NewLog(0)
	log.Append(newTransaction(KindTransfer, "room1", GMRoomID, 5))

	if got := len(log.HistoryFor(GMRoomID)); got != 1 {
		t.Fatalf("GM history entries = %d, want 1", got)
	}
	if got := len(log.HistoryFor("room1")); got != 1 {
		t.Fatalf("room1 history entries = %d, want 1", got)
	}
}

func TestLogRoutesGMEditToTargetAndGM(t *testing.T) {
	log := NewLog(0)
	log.Append(newTransaction(KindGMEdit, GMRoomID, "room7", 42))

	if got := len(log.HistoryFor("room7")); got != 1 {
		t.Fatalf("room7 history entries = %d, want 1", got)
	}
	if got := len(log.HistoryFor(GMRoomID)); got != 1 {
		t.Fatalf("GM history entries = %d, want 1", got)
	}
}

func TestLogResetReachesGMOnly(t *testing.T) {
	log := NewLog(0)
	log.Append(newTransaction(KindReset, SystemSentinel, AllRoomsSentinel, StartingBalance))

	if got := len(log.HistoryFor(GMRoomID)); got != 1 {
		t.Fatalf("GM history entries = %d, want 1", got)
	}
	for i := 1; i <= NumberedRooms; i++ {
		roomID := fmt.Sprintf("room%d", i)
		if got := len(log.HistoryFor(roomID)); got != 0 {
			t.Fatalf("%s received reset transaction", roomID)
		}
	}
}

func TestHistoryMostRecentFirst(t *testing.T) {
	log := NewLog(0)
	first := newTransaction(KindTransfer, "room1", "room2", 1)
	second := newTransaction(KindTransfer, "room2", "room1", 2)
	log.Append(first)
	log.Append(second)

	history := log.HistoryFor("room1")
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Fatalf("history not most-recent-first: %v then %v", history[0].ID, history[1].ID)
	}
}

func TestHistorySnapshotIsolation(t *testing.T) {
	log := NewLog(0)
	log.Append(newTransaction(KindTransfer, "room1", "room2", 1))

	snapshot := log.HistoryFor("room1")
	snapshot[0].Amount = 999

	if fresh := log.HistoryFor("room1"); fresh[0].Amount != 1 {
		t.Fatalf("mutating a snapshot leaked into the log")
	}
}

func TestHistoryCap(t *testing.T) {
	log := NewLog(3)
	for i := 1; i <= 5; i++ {
		log.Append(newTransaction(KindTransfer, "room1", "room2", i))
	}
	history := log.HistoryFor("room1")
	if len(history) != 3 {
		t.Fatalf("capped history entries = %d, want 3", len(history))
	}
	if history[0].Amount != 5 || history[2].Amount != 3 {
		t.Fatalf("cap kept wrong entries: first=%d last=%d", history[0].Amount, history[2].Amount)
	}
}
