package relay

import (
	"errors"
	"fmt"
)

// Error classes. Handlers pick a retry policy with errors.Is instead of
// matching on strings returned by chain RPCs.
var (
	// ErrValidation marks bad input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrContract marks an on-chain call that was accepted by the RPC but
	// rejected during execution. Retried up to MaxTxAttempts.
	ErrContract = errors.New("contract error")

	// ErrNetwork marks RPC/connectivity failures. Retried with backoff and
	// the checkpoint is not advanced.
	ErrNetwork = errors.New("network error")

	// ErrNotFound marks an expected entity that does not exist yet, e.g. a
	// mirror escrow that has not been created. A retryable miss, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration is fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	ErrTxRejected = fmt.Errorf("tx rejected: %w", ErrContract)
	ErrTxTimeout  = fmt.Errorf("tx confirmation timeout: %w", ErrContract)

	ErrInvalidAmount        = fmt.Errorf("invalid amount: %w", ErrValidation)
	ErrInvalidAuctionParams = fmt.Errorf("invalid auction params: %w", ErrValidation)
	ErrFillTooSmall         = fmt.Errorf("fill below minimum: %w", ErrValidation)
	ErrOrderFinalized       = fmt.Errorf("order finalized: %w", ErrValidation)
)

// IsRetryable reports whether the coordinator may retry the action that
// produced err on a later poll.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration) {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrContract)
}
