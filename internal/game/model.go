package game

import (
	"errors"
	"fmt"
)

const (
	GMRoomID = "gm"

	NumberedRooms   = 11
	StartingBalance = 20

	// Sentinels used on reset transactions; neither is a joinable room.
	SystemSentinel   = "system"
	AllRoomsSentinel = "all_rooms"

	DefaultHistoryLimit = 200
)

var (
	ErrRoomNotFound      = errors.New("room does not exist")
	ErrRoomOccupied      = errors.New("room is already occupied")
	ErrInvalidRoom       = errors.New("invalid room")
	ErrInvalidTarget     = errors.New("transfer target must be the GM room or an occupied room")
	ErrInvalidAmount     = errors.New("amount must be a positive integer")
	ErrInsufficientFunds = errors.New("insufficient points")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Room is the authoritative record for one room. Occupant holds the
// connection id of the single occupant, or "" when the room is empty.
type Room struct {
	ID       string
	Name     string
	Points   int
	Occupant string
}

// Rooms is the fixed room table: eleven numbered rooms plus the GM room.
// The set never grows or shrinks after construction.
type Rooms struct {
	byID  map[string]*Room
	order []string
	start int
}

func DefaultRooms() *Rooms {
	return NewRooms(StartingBalance)
}

func NewRooms(startingBalance int) *Rooms {
	if startingBalance < 0 {
		startingBalance = StartingBalance
	}
	r := &Rooms{
		byID:  make(map[string]*Room, NumberedRooms+1),
		start: startingBalance,
	}
	for i := 1; i <= NumberedRooms; i++ {
		id := fmt.Sprintf("room%d", i)
		r.byID[id] = &Room{
			ID:     id,
			Name:   fmt.Sprintf("Room %d", i),
			Points: startingBalance,
		}
		r.order = append(r.order, id)
	}
	r.byID[GMRoomID] = &Room{ID: GMRoomID, Name: "GM Room"}
	r.order = append(r.order, GMRoomID)
	return r
}

func (r *Rooms) Get(id string) (*Room, bool) {
	room, ok := r.byID[id]
	return room, ok
}

func (r *Rooms) Exists(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns the rooms in canonical order (room1..roomN, then GM).
func (r *Rooms) All() []*Room {
	out := make([]*Room, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Rooms) StartingBalance() int {
	return r.start
}

func ValidateAmount(amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
