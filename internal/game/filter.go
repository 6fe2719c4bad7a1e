package game

// Project builds the per-viewer view of the whole room set. Balances of
// rooms other than the viewer's own and the GM room are hidden; a viewer
// in the GM room sees everything; a viewer with no room ("" before any
// join) sees nothing. Pure: same inputs always produce the same output.
func Project(rooms *Rooms, viewerRoomID string) map[string]RoomView {
	out := make(map[string]RoomView, len(rooms.order))
	for _, room := range rooms.All() {
		points := HiddenBalance()
		switch {
		case viewerRoomID == "":
			// all hidden
		case viewerRoomID == GMRoomID:
			points = VisibleBalance(room.Points)
		case room.ID == viewerRoomID || room.ID == GMRoomID:
			points = VisibleBalance(room.Points)
		}
		out[room.ID] = RoomView{
			ID:       room.ID,
			Name:     room.Name,
			Points:   points,
			Occupied: room.Occupant != "",
		}
	}
	return out
}

// OccupancyView is the broadcast-safe view of a single room: identity and
// occupancy only, balance always hidden. Concrete balances travel solely
// through per-viewer Project results.
func OccupancyView(room *Room) RoomView {
	return RoomView{
		ID:       room.ID,
		Name:     room.Name,
		Points:   HiddenBalance(),
		Occupied: room.Occupant != "",
	}
}
