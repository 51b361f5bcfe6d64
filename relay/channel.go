package relay

import (
	"context"

	"github.com/rs/zerolog"
)

// CrossChainChannel carries advisory partial-fill/refund notifications
// between the two coordinators. Delivery is logical at-least-once; the
// transport is a collaborator and may be a bridge contract, a relay API or
// nothing at all.
type CrossChainChannel interface {
	Notify(ctx context.Context, msg Message) error
}

// NoopChannel drops every message. Used in deployments without a bridge
// message layer; correctness never depends on these advisories.
type NoopChannel struct{}

func (NoopChannel) Notify(context.Context, Message) error { return nil }

// LogChannel records every advisory in the structured log so operators can
// follow partial fills and refunds without a bridge transport.
type LogChannel struct {
	Logger *zerolog.Logger
}

func (c LogChannel) Notify(_ context.Context, msg Message) error {
	ev := c.Logger.Info().
		Str("type", string(msg.Type)).
		Str("order_hash", msg.OrderHash).
		Str("secret_hash", msg.SecretHash).
		Int64("timestamp", msg.Timestamp)
	if msg.FillAmount != nil {
		ev = ev.Str("fill_amount", msg.FillAmount.String())
	}
	if msg.RemainingAmount != nil {
		ev = ev.Str("remaining_amount", msg.RemainingAmount.String())
	}
	if msg.RefundAmount != nil {
		ev = ev.Str("refund_amount", msg.RefundAmount.String())
	}
	if msg.Reason != "" {
		ev = ev.Str("reason", msg.Reason)
	}
	ev.Msg("cross-chain advisory")
	return nil
}
