package relay

import (
	"context"
	"math/big"
	"time"
)

// EscrowRegistry is the read-only query surface over one chain's escrow
// contract. A nil EscrowInfo with ErrNotFound means no matching escrow yet,
// which callers treat as a retryable miss.
type EscrowRegistry interface {
	FindBySecretHash(ctx context.Context, hash [32]byte) (*EscrowInfo, error)
	FindByInitiator(ctx context.Context, addr string) (*EscrowInfo, error)
	GetOrderState(ctx context.Context, orderID string) (*OrderState, error)
}

// CreateEscrowParams describes a mirror escrow creation. Amount plus
// SafetyDeposit is the native value attached to the transaction.
type CreateEscrowParams struct {
	Recipient      string
	Hashlock       [32]byte
	Amount         *big.Int
	SafetyDeposit  *big.Int
	TimelockOffset time.Duration
	SourceOrderID  string
}

// PartialFillParams describes a partial settlement of an order.
type PartialFillParams struct {
	OrderID    string
	FillAmount *big.Int
	Executor   string
}

// EscrowMutator is the write surface over one chain's escrow contract. Every
// call blocks until the transaction is confirmed or fails with
// ErrTxRejected/ErrTxTimeout; the coordinator never advances state on an
// unconfirmed submission. A duplicate-hash create rejected by the chain is
// reported as success with the existing escrow left untouched.
type EscrowMutator interface {
	CreateEscrow(ctx context.Context, params CreateEscrowParams) (*TxReceipt, error)
	Withdraw(ctx context.Context, escrowID string, secret []byte) (*TxReceipt, error)
	Refund(ctx context.Context, escrowID string) (*TxReceipt, error)
	PartialFill(ctx context.Context, params PartialFillParams) (*TxReceipt, error)
	Split(ctx context.Context, orderID string, amounts []*big.Int) (*TxReceipt, error)
}

// Signer is the wallet collaborator. Key handling and fee estimation live
// behind it; the relay only hands over prepared calldata.
type Signer interface {
	SignAndSend(ctx context.Context, to string, value *big.Int, data []byte) (txHash string, err error)
}
