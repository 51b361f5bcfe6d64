package relay

import (
	"math/big"
	"time"
)

// Chain names the two sides of the relay.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainNear     Chain = "near"
)

// Decimals returns the chain's native minor-unit exponent (wei, yocto).
func (c Chain) Decimals() int {
	switch c {
	case ChainNear:
		return 24
	default:
		return 18
	}
}

// SwapIntent is one side's request to move value cross-chain. Built once from
// a deposit/escrow-created event and never mutated afterwards.
type SwapIntent struct {
	SourceChain  Chain     `json:"source_chain"`
	DestChain    Chain     `json:"dest_chain"`
	SourceAmount *big.Int  `json:"source_amount"` // minor units, source chain
	SecretHash   [32]byte  `json:"secret_hash"`
	Timelock     time.Time `json:"timelock"` // absolute, source-chain clock
	Initiator    string    `json:"initiator_address"`
	Recipient    string    `json:"recipient_address"`
	OrderID      string    `json:"order_id"`
}

// MirrorEscrow describes the destination-chain escrow mirroring a SwapIntent.
// Once submitted its status lives in the destination contract and is only
// observed from here on.
type MirrorEscrow struct {
	DestChain      Chain         `json:"dest_chain"`
	Recipient      string        `json:"recipient"`
	Hashlock       [32]byte      `json:"hashlock"` // = intent.SecretHash, unchanged
	Amount         *big.Int      `json:"amount"`   // dest minor units
	SafetyDeposit  *big.Int      `json:"safety_deposit"`
	TimelockOffset time.Duration `json:"timelock_offset"` // relative to dest block time
	SourceOrderID  string        `json:"source_order_id"`
}

// EscrowInfo is the registry view of an on-chain escrow.
type EscrowInfo struct {
	ID        string    `json:"id"`
	Chain     Chain     `json:"chain"`
	Initiator string    `json:"initiator"`
	Recipient string    `json:"recipient"`
	Hashlock  [32]byte  `json:"hashlock"`
	Amount    *big.Int  `json:"amount"`
	Deadline  time.Time `json:"deadline"`
	Withdrawn bool      `json:"withdrawn"`
	Refunded  bool      `json:"refunded"`
	Secret    []byte    `json:"secret,omitempty"` // revealed preimage, if completed
}

// OrderState is the authoritative fill/cancel state of an order as reported
// by the chain.
type OrderState struct {
	OrderID         string   `json:"order_id"`
	FilledAmount    *big.Int `json:"filled_amount"`
	RemainingAmount *big.Int `json:"remaining_amount"`
	FillCount       int      `json:"fill_count"`
	IsFullyFilled   bool     `json:"is_fully_filled"`
	IsCancelled     bool     `json:"is_cancelled"`
	ChildOrders     []string `json:"child_orders,omitempty"`
}

// TxReceipt is the confirmed result of a mutating chain call.
type TxReceipt struct {
	TxHash string `json:"tx_hash"`
	Height int64  `json:"height"`
	Ok     bool   `json:"ok"`
}

// MessageType enumerates cross-chain advisory notifications.
type MessageType string

const (
	MessagePartialFill MessageType = "partial_fill"
	MessageRefund      MessageType = "refund"
)

// Message is the logical cross-chain notification exchanged between the two
// coordinators. Delivery is at-least-once; consumers must absorb duplicates.
type Message struct {
	Type            MessageType `json:"type"`
	OrderHash       string      `json:"order_hash"`
	FillAmount      *big.Int    `json:"fill_amount,omitempty"`
	RemainingAmount *big.Int    `json:"remaining_amount,omitempty"`
	RefundAmount    *big.Int    `json:"refund_amount,omitempty"`
	SecretHash      string      `json:"secret_hash"`
	Timestamp       int64       `json:"timestamp"`
	Reason          string      `json:"reason,omitempty"`
}
