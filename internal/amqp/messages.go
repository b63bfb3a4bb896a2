package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"treasury/internal/storage"
)

// BudgetChangeMessage announces that a budget document changed. It carries
// only the id and kind; consumers read the current record from the store.
type BudgetChangeMessage struct {
	ID        string             `json:"id"`
	Kind      storage.ChangeKind `json:"kind"`
	Version   int64              `json:"version,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func NewBudgetChangeMessage(id string, kind storage.ChangeKind, version int64) *BudgetChangeMessage {
	return &BudgetChangeMessage{
		ID:        id,
		Kind:      kind,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// MessageFromEvent converts a store change event.
func MessageFromEvent(ev storage.ChangeEvent) *BudgetChangeMessage {
	var version int64
	if ev.Record.Data != nil {
		version = storage.Int64(ev.Record.Data[storage.KeyVersion])
	}
	return NewBudgetChangeMessage(ev.Record.ID, ev.Kind, version)
}

func (m *BudgetChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetChangeMessageFromJSON decodes and checks a message body.
func BudgetChangeMessageFromJSON(data []byte) (*BudgetChangeMessage, error) {
	var msg BudgetChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message has no id")
	}
	switch msg.Kind {
	case storage.Created, storage.Updated, storage.Deleted:
	default:
		return nil, fmt.Errorf("unknown change kind %q", msg.Kind)
	}
	return &msg, nil
}
