package coord

import (
	"context"
	"errors"
	"log/slog"

	"forest/internal/game"
)

// TxSink receives every committed transaction for archival. Record must not
// block; implementations queue or drop.
type TxSink interface {
	Record(tx game.Transaction)
}

// session is the coordinator's record of one live connection. roomID is ""
// between connect and the first successful join, and again after leaving.
type session struct {
	peer   Peer
	roomID string
}

// Coordinator serializes every command across all connections onto a single
// goroutine. That goroutine is the only writer of room, ledger and session
// state, so each handler runs its whole read-modify-write-broadcast sequence
// without interleaving.
type Coordinator struct {
	rooms    *game.Rooms
	log      *game.Log
	ledger   *game.Ledger
	registry *game.Registry
	sink     TxSink
	logger   *slog.Logger

	commands chan func()
	stopped  chan struct{}
	sessions map[string]*session
}

func New(logger *slog.Logger, historyLimit int, sink TxSink) *Coordinator {
	rooms := game.DefaultRooms()
	log := game.NewLog(historyLimit)
	return &Coordinator{
		rooms:    rooms,
		log:      log,
		ledger:   game.NewLedger(rooms, log),
		registry: game.NewRegistry(rooms, log),
		sink:     sink,
		logger:   logger,
		commands: make(chan func(), 64),
		stopped:  make(chan struct{}),
		sessions: make(map[string]*session),
	}
}

// Run executes commands until ctx is cancelled. Exactly one Run per
// coordinator; all public methods funnel into this loop.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.commands:
			fn()
		}
	}
}

// do runs fn on the coordinator goroutine and waits for it to finish.
// After Run has returned, do is a no-op.
func (c *Coordinator) do(fn func()) {
	done := make(chan struct{})
	select {
	case c.commands <- func() { defer close(done); fn() }:
		select {
		case <-done:
		case <-c.stopped:
		}
	case <-c.stopped:
	}
}

// Connect registers a new session and pushes the all-hidden snapshot every
// client receives before joining a room.
func (c *Coordinator) Connect(connID string, peer Peer) {
	c.do(func() {
		s := &session{peer: peer}
		c.sessions[connID] = s
		c.logger.Info("connection opened", "conn_id", connID)
		c.send(connID, s, Message{Type: TypeAllRoomsUpdate, Payload: AllRoomsUpdate{Rooms: game.Project(c.rooms, "")}})
	})
}

// Disconnect releases whatever room the connection held and refreshes the
// remaining sessions' snapshots if occupancy changed.
func (c *Coordinator) Disconnect(connID string) {
	c.do(func() {
		if _, ok := c.sessions[connID]; !ok {
			return
		}
		delete(c.sessions, connID)
		vacated, reset := c.registry.RemoveConnectionEverywhere(connID)
		c.logger.Info("connection closed", "conn_id", connID, "vacated", vacated)
		if vacated == "" {
			return
		}
		c.broadcastRoom(vacated)
		if reset != nil {
			c.handleReset(*reset)
			return
		}
		c.pushWorld()
	})
}

func (c *Coordinator) JoinRoom(connID, reqID, roomID string) {
	c.do(func() {
		s, ok := c.sessions[connID]
		if !ok {
			return
		}
		vacated, err := c.registry.Join(connID, roomID)
		if err != nil {
			c.logger.Info("join rejected", "conn_id", connID, "room_id", roomID, "error", err)
			c.send(connID, s, Message{Type: TypeJoinRoomResult, RequestID: reqID, Payload: JoinRoomResult{
				RoomID:  roomID,
				Message: err.Error(),
			}})
			return
		}
		s.roomID = roomID
		c.logger.Info("room joined", "conn_id", connID, "room_id", roomID, "vacated", vacated)

		if vacated != "" {
			c.broadcastRoom(vacated)
		}
		c.broadcastRoom(roomID)

		history := c.log.HistoryFor(roomID)
		c.send(connID, s, Message{Type: TypeAllRoomsUpdate, Payload: AllRoomsUpdate{Rooms: game.Project(c.rooms, roomID)}})
		c.send(connID, s, Message{Type: TypeTransactionHistory, Payload: TransactionHistory{RoomID: roomID, Transactions: history}})

		room, _ := c.rooms.Get(roomID)
		points := room.Points
		c.send(connID, s, Message{Type: TypeJoinRoomResult, RequestID: reqID, Payload: JoinRoomResult{
			Success: true,
			RoomID:  roomID,
			Points:  &points,
			History: history,
		}})
	})
}

// LeaveRoom has no direct reply; occupancy changes surface as broadcasts.
func (c *Coordinator) LeaveRoom(connID, roomID string) {
	c.do(func() {
		s, ok := c.sessions[connID]
		if !ok {
			return
		}
		left, reset := c.registry.Leave(connID, roomID)
		if !left {
			return
		}
		s.roomID = ""
		c.logger.Info("room left", "conn_id", connID, "room_id", roomID, "reset", reset != nil)
		c.broadcastRoom(roomID)
		if reset != nil {
			c.handleReset(*reset)
			return
		}
		c.send(connID, s, Message{Type: TypeAllRoomsUpdate, Payload: AllRoomsUpdate{Rooms: game.Project(c.rooms, "")}})
	})
}

func (c *Coordinator) TransferPoints(connID, reqID, fromID, toID string, amount int) {
	c.do(func() {
		s, ok := c.sessions[connID]
		if !ok {
			return
		}
		if s.roomID == "" {
			c.send(connID, s, Message{Type: TypeTransferPointsResult, RequestID: reqID, Payload: TransferPointsResult{
				Message: "join a room before transferring points",
			}})
			return
		}
		if fromID != s.roomID {
			c.send(connID, s, Message{Type: TypeTransferPointsResult, RequestID: reqID, Payload: TransferPointsResult{
				Message: game.ErrUnauthorized.Error(),
			}})
			return
		}

		tx, err := c.ledger.Transfer(fromID, toID, amount)
		if err != nil {
			c.logger.Info("transfer rejected", "conn_id", connID, "from", fromID, "to", toID, "amount", amount, "error", err)
			c.send(connID, s, Message{Type: TypeTransferPointsResult, RequestID: reqID, Payload: TransferPointsResult{
				Message: err.Error(),
			}})
			return
		}
		c.logger.Info("points transferred", "tx_id", tx.ID, "from", fromID, "to", toID, "amount", amount)
		c.record(tx)

		c.broadcastRoom(fromID)
		c.broadcastRoom(toID)
		c.pushWorld()
		c.pushHistories(fromID, toID)
		for _, other := range c.sessionsIn(fromID) {
			c.send(other.id, other.s, Message{Type: TypeNewTransaction, Payload: NewTransaction{Transaction: tx}})
		}

		c.send(connID, s, Message{Type: TypeTransferPointsResult, RequestID: reqID, Payload: TransferPointsResult{
			Success:     true,
			Transaction: &tx,
			History:     c.log.HistoryFor(fromID),
		}})
	})
}

func (c *Coordinator) UpdateRoomPoints(connID, reqID, roomID string, points int) {
	c.do(func() {
		s, ok := c.sessions[connID]
		if !ok {
			return
		}
		tx, old, err := c.ledger.GMEdit(roomID, points, s.roomID == game.GMRoomID)
		if err != nil {
			c.logger.Info("gm edit rejected", "conn_id", connID, "room_id", roomID, "error", err)
			c.sendError(connID, s, reqID, err)
			return
		}
		c.logger.Info("gm edit applied", "tx_id", tx.ID, "room_id", roomID, "old", old, "new", points)
		c.record(tx)

		c.broadcastRoom(roomID)
		c.pushWorld()
		c.pushHistories(roomID)

		c.send(connID, s, Message{Type: TypePointsUpdated, RequestID: reqID, Payload: PointsUpdated{
			RoomID:      roomID,
			OldPoints:   old,
			NewPoints:   points,
			Transaction: tx,
			History:     c.log.HistoryFor(game.GMRoomID),
		}})
	})
}

// GetTransactionHistory serves a room's log only to that room's occupant or
// to the GM session.
func (c *Coordinator) GetTransactionHistory(connID, reqID, roomID string) {
	c.do(func() {
		s, ok := c.sessions[connID]
		if !ok {
			return
		}
		if !c.rooms.Exists(roomID) {
			c.sendError(connID, s, reqID, game.ErrInvalidRoom)
			return
		}
		if s.roomID != roomID && s.roomID != game.GMRoomID {
			c.sendError(connID, s, reqID, game.ErrUnauthorized)
			return
		}
		c.send(connID, s, Message{Type: TypeTransactionHistory, RequestID: reqID, Payload: TransactionHistory{
			RoomID:       roomID,
			Transactions: c.log.HistoryFor(roomID),
		}})
	})
}

// Snapshot returns the all-hidden view of every room, for unauthenticated
// read-only surfaces.
func (c *Coordinator) Snapshot() map[string]game.RoomView {
	var views map[string]game.RoomView
	c.do(func() {
		views = game.Project(c.rooms, "")
	})
	return views
}

// handleReset runs after the registry restored all balances: archive the
// reset transaction, refresh every session's snapshot and the GM history.
func (c *Coordinator) handleReset(tx game.Transaction) {
	c.logger.Info("all rooms empty, balances reset", "tx_id", tx.ID, "amount", tx.Amount)
	c.record(tx)
	c.pushWorld()
	c.pushHistories(game.GMRoomID)
}

// broadcastRoom tells every session about one room's occupancy. The view
// carries a hidden balance; concrete values only travel per-viewer.
func (c *Coordinator) broadcastRoom(roomID string) {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return
	}
	view := game.OccupancyView(room)
	for id, s := range c.sessions {
		c.send(id, s, Message{Type: TypeRoomUpdate, Payload: RoomUpdate{Room: view}})
	}
}

// pushWorld sends each session its own filtered snapshot.
func (c *Coordinator) pushWorld() {
	for id, s := range c.sessions {
		c.send(id, s, Message{Type: TypeAllRoomsUpdate, Payload: AllRoomsUpdate{Rooms: game.Project(c.rooms, s.roomID)}})
	}
}

// pushHistories refreshes the history of every session whose room is one of
// roomIDs or the GM room. Each session receives its own room's log.
func (c *Coordinator) pushHistories(roomIDs ...string) {
	concerned := map[string]bool{game.GMRoomID: true}
	for _, id := range roomIDs {
		concerned[id] = true
	}
	for id, s := range c.sessions {
		if s.roomID == "" || !concerned[s.roomID] {
			continue
		}
		c.send(id, s, Message{Type: TypeTransactionHistory, Payload: TransactionHistory{
			RoomID:       s.roomID,
			Transactions: c.log.HistoryFor(s.roomID),
		}})
	}
}

type liveSession struct {
	id string
	s  *session
}

func (c *Coordinator) sessionsIn(roomID string) []liveSession {
	var out []liveSession
	for id, s := range c.sessions {
		if s.roomID == roomID {
			out = append(out, liveSession{id: id, s: s})
		}
	}
	return out
}

func (c *Coordinator) record(tx game.Transaction) {
	if c.sink != nil {
		c.sink.Record(tx)
	}
}

func (c *Coordinator) send(connID string, s *session, msg Message) {
	if err := s.peer.Send(msg); err != nil {
		c.logger.Warn("push failed", "conn_id", connID, "type", msg.Type, "error", err)
	}
}

func (c *Coordinator) sendError(connID string, s *session, reqID string, err error) {
	c.send(connID, s, Message{Type: TypeError, RequestID: reqID, Payload: ErrorPayload{
		Code:    errCode(err),
		Message: err.Error(),
	}})
}

func errCode(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, game.ErrRoomOccupied):
		return "room_occupied"
	case errors.Is(err, game.ErrInvalidRoom):
		return "invalid_room"
	case errors.Is(err, game.ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, game.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, game.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, game.ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
