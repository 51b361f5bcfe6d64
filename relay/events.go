package relay

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// EventKind is the fixed set of domain events the coordinator understands.
// Chain boundaries decode raw payloads into exactly one of these; anything
// that does not decode is a ValidationError, never a silent default.
type EventKind string

const (
	EventDeposit       EventKind = "deposit"
	EventEscrowCreated EventKind = "escrow_created"
	EventCompleted     EventKind = "order_completed"
	EventPartialFill   EventKind = "partially_filled"
	EventRefunded      EventKind = "refunded"
)

// Event is a tagged union: Kind selects which payload pointer is set.
type Event struct {
	Kind   EventKind `json:"kind"`
	Chain  Chain     `json:"chain"`
	Height int64     `json:"height"`
	TxHash string    `json:"tx_hash"`

	Escrow      *EscrowCreatedPayload `json:"escrow,omitempty"`
	Completed   *CompletedPayload     `json:"completed,omitempty"`
	PartialFill *PartialFillPayload   `json:"partial_fill,omitempty"`
	Refunded    *RefundedPayload      `json:"refunded,omitempty"`
}

// EscrowCreatedPayload covers both deposit and escrow-created events; a
// deposit is an escrow creation observed before the contract assigns state.
type EscrowCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	SecretHash [32]byte  `json:"secret_hash"`
	Amount     *big.Int  `json:"amount"` // minor units, source chain
	Timelock   time.Time `json:"timelock"`
	Initiator  string    `json:"initiator"`
	Recipient  string    `json:"recipient"`
}

type CompletedPayload struct {
	OrderID    string   `json:"order_id"`
	SecretHash [32]byte `json:"secret_hash"`
	Secret     []byte   `json:"secret"`
}

type PartialFillPayload struct {
	OrderID         string   `json:"order_id"`
	FillAmount      *big.Int `json:"fill_amount"`
	RemainingAmount *big.Int `json:"remaining_amount"`
	Executor        string   `json:"executor"`
}

type RefundedPayload struct {
	OrderID    string   `json:"order_id"`
	SecretHash [32]byte `json:"secret_hash"`
	Amount     *big.Int `json:"amount"`
	Reason     string   `json:"reason,omitempty"`
}

// EventSource produces an ordered, restartable sequence of domain events by
// polling chain state forward from the persisted checkpoint. Each Poll is
// bounded; ordering is checkpoint-ascending within a poll. Delivery is
// at-least-once: the checkpoint only advances after the caller has handled
// the whole batch.
type EventSource interface {
	// Poll fetches the next batch of events past the checkpoint, along with
	// the new checkpoint position to persist once the batch is handled.
	Poll(ctx context.Context) ([]Event, int64, error)
	Chain() Chain
}

// Validate checks that the payload matching the kind is present and sane.
func (e *Event) Validate() error {
	switch e.Kind {
	case EventDeposit, EventEscrowCreated:
		if e.Escrow == nil {
			return fmt.Errorf("%w: %s event missing payload", ErrValidation, e.Kind)
		}
		if e.Escrow.OrderID == "" {
			return fmt.Errorf("%w: %s event missing order id", ErrValidation, e.Kind)
		}
		if e.Escrow.Amount == nil || e.Escrow.Amount.Sign() <= 0 {
			return fmt.Errorf("%w: %s event amount must be positive", ErrValidation, e.Kind)
		}
		if e.Escrow.SecretHash == ([32]byte{}) {
			return fmt.Errorf("%w: %s event missing secret hash", ErrValidation, e.Kind)
		}
	case EventCompleted:
		if e.Completed == nil || e.Completed.OrderID == "" {
			return fmt.Errorf("%w: completed event missing payload", ErrValidation)
		}
		if len(e.Completed.Secret) == 0 {
			return fmt.Errorf("%w: completed event missing secret", ErrValidation)
		}
	case EventPartialFill:
		if e.PartialFill == nil || e.PartialFill.OrderID == "" {
			return fmt.Errorf("%w: partial fill event missing payload", ErrValidation)
		}
		if e.PartialFill.FillAmount == nil || e.PartialFill.FillAmount.Sign() <= 0 {
			return fmt.Errorf("%w: partial fill amount must be positive", ErrValidation)
		}
	case EventRefunded:
		if e.Refunded == nil || e.Refunded.OrderID == "" {
			return fmt.Errorf("%w: refunded event missing payload", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown event kind %q", ErrValidation, e.Kind)
	}
	return nil
}

// ParseSecretHash decodes a 32-byte hash from a hex string with or without
// the 0x prefix.
func ParseSecretHash(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("%w: secret hash is not hex: %v", ErrValidation, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("%w: secret hash must be 32 bytes, got %d", ErrValidation, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// HashToHex renders a 32-byte hash the way both contracts log it.
func HashToHex(h [32]byte) string {
	return hex.EncodeToString(h[:])
}
