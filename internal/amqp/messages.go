package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Operations carried by a sync message.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// TransactionSyncMessage announces that a transaction changed. It carries no
// payload; the worker reads the current row from the database.
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id, op string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Operation: op,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TransactionSyncMessage) Validate() error {
	if m.ID == "" {
		return errors.New("sync message without transaction id")
	}
	if m.Operation != OpUpsert && m.Operation != OpDelete {
		return errors.New("sync message with unknown operation " + m.Operation)
	}
	return nil
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes and validates a message body.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
