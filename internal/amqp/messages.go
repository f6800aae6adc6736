package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/ledger"
)

// ChangeMessage announces a ledger mutation. Consumers that need the data
// read the slot; the message only says what changed.
type ChangeMessage struct {
	Op               string    `json:"op"`
	ID               int64     `json:"id,omitempty"`
	Version          uint64    `json:"version"`
	TransactionCount int       `json:"transaction_count"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewChangeMessage describes the change carried by snap.
func NewChangeMessage(snap ledger.Snapshot, at time.Time) *ChangeMessage {
	return &ChangeMessage{
		Op:               snap.Change.Op,
		ID:               snap.Change.ID,
		Version:          snap.Version,
		TransactionCount: len(snap.Transactions),
		Timestamp:        at.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON parses a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
