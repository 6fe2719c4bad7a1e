package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"forest/internal/coord"
	"forest/internal/game"

	"golang.org/x/net/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := coord.New(logger, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)

	srv := httptest.NewServer(New(c, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, f map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(f); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got frame
	if err := json.NewDecoder(conn).Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

// readUntil drains frames until one of msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) frame {
	t.Helper()
	for i := 0; i < 10; i++ {
		got := readFrame(t, conn)
		if got.Type == msgType {
			return got
		}
	}
	t.Fatalf("no %s frame within 10 reads", msgType)
	return frame{}
}

type allRoomsPayload struct {
	Rooms map[string]game.RoomView `json:"rooms"`
}

func joinRoom(t *testing.T, conn *websocket.Conn, roomID string) {
	t.Helper()
	writeFrame(t, conn, map[string]any{
		"type":       "joinRoom",
		"request_id": "req-join-" + roomID,
		"payload":    map[string]any{"room_id": roomID},
	})
	got := readUntil(t, conn, coord.TypeJoinRoomResult)
	var result coord.JoinRoomResult
	if err := json.Unmarshal(got.Payload, &result); err != nil {
		t.Fatalf("decode join result: %v", err)
	}
	if !result.Success {
		t.Fatalf("join %s failed: %s", roomID, result.Message)
	}
}

func TestWebSocketConnectPushesHiddenSnapshot(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)

	got := readFrame(t, conn)
	if got.Type != coord.TypeAllRoomsUpdate {
		t.Fatalf("first frame type = %q, want %q", got.Type, coord.TypeAllRoomsUpdate)
	}
	var payload allRoomsPayload
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(payload.Rooms) != game.NumberedRooms+1 {
		t.Fatalf("snapshot rooms = %d", len(payload.Rooms))
	}
	for id, view := range payload.Rooms {
		if !view.Points.Hidden {
			t.Fatalf("%s balance visible before join", id)
		}
	}
}

func TestWebSocketJoinRoom(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)
	_ = readFrame(t, conn) // connect snapshot

	writeFrame(t, conn, map[string]any{
		"type":       "joinRoom",
		"request_id": "req-1",
		"payload":    map[string]any{"room_id": "room1"},
	})

	got := readUntil(t, conn, coord.TypeJoinRoomResult)
	if got.RequestID != "req-1" {
		t.Fatalf("request id = %q, want req-1", got.RequestID)
	}
	var result coord.JoinRoomResult
	if err := json.Unmarshal(got.Payload, &result); err != nil {
		t.Fatalf("decode join result: %v", err)
	}
	if !result.Success || result.RoomID != "room1" || result.Points == nil || *result.Points != game.StartingBalance {
		t.Fatalf("join result: %+v", result)
	}
}

func TestWebSocketTransferInsufficientFunds(t *testing.T) {
	srv := newTestServer(t)
	connA := dialWS(t, srv)
	_ = readFrame(t, connA)
	joinRoom(t, connA, "room1")

	connB := dialWS(t, srv)
	_ = readFrame(t, connB)
	joinRoom(t, connB, "room2")

	writeFrame(t, connA, map[string]any{
		"type":       "transferPoints",
		"request_id": "req-t1",
		"payload":    map[string]any{"from": "room1", "to": "room2", "amount": 25},
	})

	got := readUntil(t, connA, coord.TypeTransferPointsResult)
	var result coord.TransferPointsResult
	if err := json.Unmarshal(got.Payload, &result); err != nil {
		t.Fatalf("decode transfer result: %v", err)
	}
	if result.Success {
		t.Fatalf("over-balance transfer succeeded")
	}
	if result.Message != game.ErrInsufficientFunds.Error() {
		t.Fatalf("message = %q", result.Message)
	}
}

func TestWebSocketTransferReachesRecipient(t *testing.T) {
	srv := newTestServer(t)
	connA := dialWS(t, srv)
	_ = readFrame(t, connA)
	joinRoom(t, connA, "room1")

	connB := dialWS(t, srv)
	_ = readFrame(t, connB)
	joinRoom(t, connB, "room2")

	writeFrame(t, connA, map[string]any{
		"type":       "transferPoints",
		"request_id": "req-t1",
		"payload":    map[string]any{"from": "room1", "to": "room2", "amount": 5},
	})

	got := readUntil(t, connA, coord.TypeTransferPointsResult)
	var result coord.TransferPointsResult
	if err := json.Unmarshal(got.Payload, &result); err != nil {
		t.Fatalf("decode transfer result: %v", err)
	}
	if !result.Success || result.Transaction == nil || result.Transaction.Amount != 5 {
		t.Fatalf("transfer result: %+v", result)
	}

	update := readUntil(t, connB, coord.TypeAllRoomsUpdate)
	var payload allRoomsPayload
	if err := json.Unmarshal(update.Payload, &payload); err != nil {
		t.Fatalf("decode recipient snapshot: %v", err)
	}
	if view := payload.Rooms["room2"]; view.Points.Hidden || view.Points.Value != 25 {
		t.Fatalf("recipient snapshot: %+v", view)
	}
}

func TestWebSocketUpdateRoomPointsRequiresGM(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)
	_ = readFrame(t, conn)
	joinRoom(t, conn, "room1")

	writeFrame(t, conn, map[string]any{
		"type":       "updateRoomPoints",
		"request_id": "req-u1",
		"payload":    map[string]any{"room_id": "room3", "points": 50},
	})

	got := readUntil(t, conn, coord.TypeError)
	var payload coord.ErrorPayload
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != "unauthorized" {
		t.Fatalf("error code = %q, want unauthorized", payload.Code)
	}
}

func TestWebSocketGMEdit(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)
	_ = readFrame(t, conn)
	joinRoom(t, conn, game.GMRoomID)

	writeFrame(t, conn, map[string]any{
		"type":       "updateRoomPoints",
		"request_id": "req-u1",
		"payload":    map[string]any{"room_id": "room3", "points": 50},
	})

	got := readUntil(t, conn, coord.TypePointsUpdated)
	var payload coord.PointsUpdated
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode pointsUpdated: %v", err)
	}
	if payload.RoomID != "room3" || payload.OldPoints != game.StartingBalance || payload.NewPoints != 50 {
		t.Fatalf("pointsUpdated payload: %+v", payload)
	}
}

func TestWebSocketUnknownFrameType(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)
	_ = readFrame(t, conn)

	writeFrame(t, conn, map[string]any{
		"type":       "shoutIntoTheVoid",
		"request_id": "req-x",
		"payload":    map[string]any{},
	})

	got := readFrame(t, conn)
	if got.Type != coord.TypeError {
		t.Fatalf("frame type = %q, want %q", got.Type, coord.TypeError)
	}
	if !strings.Contains(string(got.Payload), "invalid_payload") {
		t.Fatalf("error payload = %s", string(got.Payload))
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRoomsEndpointHidesBalances(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/v1/rooms")
	if err != nil {
		t.Fatalf("get rooms: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload allRoomsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode rooms: %v", err)
	}
	if len(payload.Rooms) != game.NumberedRooms+1 {
		t.Fatalf("rooms = %d", len(payload.Rooms))
	}
	for id, view := range payload.Rooms {
		if !view.Points.Hidden {
			t.Fatalf("%s balance visible on public endpoint", id)
		}
	}
}
