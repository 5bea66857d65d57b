package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/ledger"
)

// LedgerEvent is the message published for every committed ledger mutation.
// It carries identifiers only; consumers read the transaction from storage.
type LedgerEvent struct {
	EventID       string    `json:"event_id"`
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewLedgerEvent builds the message for ev with a fresh event ID.
func NewLedgerEvent(ev ledger.Event) *LedgerEvent {
	return &LedgerEvent{
		EventID:       uuid.NewString(),
		Event:         string(ev.Kind),
		TransactionID: ev.Transaction.ID,
		UserID:        ev.Transaction.UserID,
		OccurredAt:    time.Now().UTC(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
