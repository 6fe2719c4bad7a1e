package game

// Ledger owns every balance mutation. All checks run before any state
// changes: a failed call leaves both rooms exactly as they were.
type Ledger struct {
	rooms *Rooms
	log   *Log
}

func NewLedger(rooms *Rooms, log *Log) *Ledger {
	return &Ledger{rooms: rooms, log: log}
}

// Transfer moves amount points from one room to another. The destination
// must be the GM room or currently occupied: points sent to an empty room
// would be stranded. Debit and credit commit together.
func (l *Ledger) Transfer(fromID, toID string, amount int) (Transaction, error) {
	from, ok := l.rooms.Get(fromID)
	if !ok {
		return Transaction{}, ErrInvalidRoom
	}
	to, ok := l.rooms.Get(toID)
	if !ok {
		return Transaction{}, ErrInvalidRoom
	}
	if to.ID != GMRoomID && to.Occupant == "" {
		return Transaction{}, ErrInvalidTarget
	}
	if err := ValidateAmount(amount); err != nil {
		return Transaction{}, err
	}
	if from.Points < amount {
		return Transaction{}, ErrInsufficientFunds
	}

	from.Points -= amount
	to.Points += amount

	tx := newTransaction(KindTransfer, from.ID, to.ID, amount)
	l.log.Append(tx)
	return tx, nil
}

// GMEdit overwrites a room's balance unconditionally. This is a privileged
// override, not a transfer: no funds are conserved and no source is
// debited. Returns the previous balance alongside the transaction.
func (l *Ledger) GMEdit(roomID string, points int, requesterIsGM bool) (Transaction, int, error) {
	if !requesterIsGM {
		return Transaction{}, 0, ErrUnauthorized
	}
	room, ok := l.rooms.Get(roomID)
	if !ok {
		return Transaction{}, 0, ErrInvalidRoom
	}
	if points < 0 {
		return Transaction{}, 0, ErrInvalidAmount
	}

	old := room.Points
	room.Points = points

	tx := newTransaction(KindGMEdit, GMRoomID, room.ID, points)
	l.log.Append(tx)
	return tx, old, nil
}
