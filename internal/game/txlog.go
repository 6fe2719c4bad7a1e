package game

// Log keeps the append-only per-room transaction history. The GM log
// receives every transaction; other rooms only the entries that concern
// them. Entries are stored in append order and served most-recent-first.
type Log struct {
	byRoom map[string][]Transaction
	limit  int
}

func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Log{
		byRoom: make(map[string][]Transaction),
		limit:  limit,
	}
}

// Append routes tx into the logs of all rooms it concerns:
// transfers reach both non-GM endpoints, GM edits reach the target room,
// resets reach nobody but the GM. The GM log always gets a copy.
func (l *Log) Append(tx Transaction) {
	l.push(GMRoomID, tx)
	switch tx.Kind {
	case KindTransfer:
		if tx.From != GMRoomID {
			l.push(tx.From, tx)
		}
		if tx.To != GMRoomID {
			l.push(tx.To, tx)
		}
	case KindGMEdit:
		if tx.To != GMRoomID {
			l.push(tx.To, tx)
		}
	}
}

func (l *Log) push(roomID string, tx Transaction) {
	entries := append(l.byRoom[roomID], tx)
	if len(entries) > l.limit {
		entries = entries[len(entries)-l.limit:]
	}
	l.byRoom[roomID] = entries
}

// HistoryFor returns a fresh most-recent-first copy of roomID's log.
// Callers may mutate the result freely.
func (l *Log) HistoryFor(roomID string) []Transaction {
	entries := l.byRoom[roomID]
	out := make([]Transaction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out
}
