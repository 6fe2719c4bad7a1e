package coord

import "forest/internal/game"

// Frame types pushed to clients. Inbound verbs share the same names as the
// commands they answer; broadcasts carry no request id.
const (
	TypeJoinRoomResult       = "joinRoomResult"
	TypeTransferPointsResult = "transferPointsResult"
	TypePointsUpdated        = "pointsUpdated"
	TypeTransactionHistory   = "transactionHistory"
	TypeRoomUpdate           = "roomUpdate"
	TypeAllRoomsUpdate       = "allRoomsUpdate"
	TypeNewTransaction       = "newTransaction"
	TypeError                = "error"
)

// Message is one outbound frame before encoding. RequestID is set only on
// direct replies, echoing the id of the command being answered.
type Message struct {
	Type      string
	RequestID string
	Payload   any
}

// Peer is the outbound half of a connection. Implementations must be safe
// for use from the coordinator goroutine while the transport reads
// concurrently.
type Peer interface {
	Send(msg Message) error
}

type JoinRoomResult struct {
	Success bool               `json:"success"`
	RoomID  string             `json:"room_id"`
	Points  *int               `json:"points,omitempty"`
	History []game.Transaction `json:"history,omitempty"`
	Message string             `json:"message,omitempty"`
}

type TransferPointsResult struct {
	Success     bool               `json:"success"`
	Transaction *game.Transaction  `json:"transaction,omitempty"`
	History     []game.Transaction `json:"history,omitempty"`
	Message     string             `json:"message,omitempty"`
}

type PointsUpdated struct {
	RoomID      string             `json:"room_id"`
	OldPoints   int                `json:"old_points"`
	NewPoints   int                `json:"new_points"`
	Transaction game.Transaction   `json:"transaction"`
	History     []game.Transaction `json:"history"`
}

type TransactionHistory struct {
	RoomID       string             `json:"room_id"`
	Transactions []game.Transaction `json:"transactions"`
}

type RoomUpdate struct {
	Room game.RoomView `json:"room"`
}

type AllRoomsUpdate struct {
	Rooms map[string]game.RoomView `json:"rooms"`
}

type NewTransaction struct {
	Transaction game.Transaction `json:"transaction"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
