package relay

import (
	"fmt"
)

// ProcessedMessageLedger is the durable set of settled logical message ids.
// Append-only: a recorded id is never revoked. Checked before every mutating
// chain call so at-least-once event delivery settles each action at most once.
type ProcessedMessageLedger interface {
	Contains(messageID string) (bool, error)
	Insert(messageID string) error
}

// Contains reports whether a logical message has already been settled.
func (s *Store) Contains(messageID string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM processed_messages WHERE message_id = ?", messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query processed message: %w", err)
	}
	return n > 0, nil
}

// Insert records a settled message id. Inserting an id twice is a no-op so
// the record-after-confirm step is itself idempotent.
func (s *Store) Insert(messageID string) error {
	_, err := s.db.Exec(`
		INSERT INTO processed_messages (message_id) VALUES (?)
		ON CONFLICT(message_id) DO NOTHING
	`, messageID)
	if err != nil {
		return fmt.Errorf("insert processed message: %w", err)
	}
	return nil
}

// MessageID derives the stable idempotency key for a logical action on an
// order. All paths that can settle the same action must agree on this format.
func MessageID(action, orderID string) string {
	return fmt.Sprintf("%s_%s", action, orderID)
}
