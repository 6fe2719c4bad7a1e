package game

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	KindTransfer TransactionKind = "transfer"
	KindGMEdit   TransactionKind = "gm_edit"
	KindReset    TransactionKind = "reset"
)

// Transaction is an immutable ledger record. Created once, never mutated.
type Transaction struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      TransactionKind `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    int             `json:"amount"`
}

func newTransaction(kind TransactionKind, from, to string, amount int) Transaction {
	return Transaction{
		ID:        "tx_" + uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		From:      from,
		To:        to,
		Amount:    amount,
	}
}

// Balance is a room balance as seen by one viewer: either a concrete value
// or the opaque hidden marker. Hidden balances encode as "?" on the wire.
type Balance struct {
	Hidden bool
	Value  int
}

func VisibleBalance(v int) Balance {
	return Balance{Value: v}
}

func HiddenBalance() Balance {
	return Balance{Hidden: true}
}

func (b Balance) MarshalJSON() ([]byte, error) {
	if b.Hidden {
		return json.Marshal("?")
	}
	return json.Marshal(b.Value)
}

func (b *Balance) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err == nil {
		*b = Balance{Value: v}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = Balance{Hidden: true}
	return nil
}

// RoomView is the wire-facing projection of one room. Occupant connection
// ids stay server-side; clients only learn whether a room is taken.
type RoomView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Points   Balance `json:"points"`
	Occupied bool    `json:"occupied"`
}
