package game

// Registry owns room occupancy. At most one connection occupies any room,
// the GM room included, and a connection occupies at most one room.
type Registry struct {
	rooms *Rooms
	log   *Log
}

func NewRegistry(rooms *Rooms, log *Log) *Registry {
	return &Registry{rooms: rooms, log: log}
}

// Join makes connID the sole occupant of roomID, silently evicting it
// from any room it held before. Returns the id of the vacated room, if
// any, so the caller can broadcast the occupancy change. Re-joining the
// room the connection already occupies succeeds as a no-op.
func (r *Registry) Join(connID, roomID string) (vacated string, err error) {
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return "", ErrRoomNotFound
	}
	if room.Occupant == connID {
		return "", nil
	}
	if room.Occupant != "" {
		return "", ErrRoomOccupied
	}

	for _, other := range r.rooms.All() {
		if other.Occupant == connID {
			other.Occupant = ""
			vacated = other.ID
			break
		}
	}
	room.Occupant = connID
	return vacated, nil
}

// Leave removes connID as occupant of roomID if it is the occupant, and a
// no-op otherwise. When an occupant was actually removed, the all-empty
// reset policy is evaluated; the returned transaction is non-nil when a
// reset fired.
func (r *Registry) Leave(connID, roomID string) (left bool, reset *Transaction) {
	room, ok := r.rooms.Get(roomID)
	if !ok || room.Occupant != connID {
		return false, nil
	}
	room.Occupant = ""
	return true, r.resetIfAllEmpty()
}

// RemoveConnectionEverywhere clears connID from whichever room it
// occupies. Used on disconnect, where the client cannot name its room.
func (r *Registry) RemoveConnectionEverywhere(connID string) (vacated string, reset *Transaction) {
	for _, room := range r.rooms.All() {
		if room.Occupant == connID {
			room.Occupant = ""
			return room.ID, r.resetIfAllEmpty()
		}
	}
	return "", nil
}

// IsAvailable reports whether roomID exists and has no occupant.
func (r *Registry) IsAvailable(roomID string) bool {
	room, ok := r.rooms.Get(roomID)
	return ok && room.Occupant == ""
}

// resetIfAllEmpty restores every non-GM balance to the starting value once
// no non-GM room has an occupant. The reset transaction lands in the GM
// log only; it is not distributed per-room.
func (r *Registry) resetIfAllEmpty() *Transaction {
	for _, room := range r.rooms.All() {
		if room.ID != GMRoomID && room.Occupant != "" {
			return nil
		}
	}
	start := r.rooms.StartingBalance()
	for _, room := range r.rooms.All() {
		if room.ID != GMRoomID {
			room.Points = start
		}
	}
	tx := newTransaction(KindReset, SystemSentinel, AllRoomsSentinel, start)
	r.log.Append(tx)
	return &tx
}
