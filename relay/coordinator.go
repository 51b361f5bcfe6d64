package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
)

// TrackedState is the coordinator's per-order position in the swap lifecycle.
type TrackedState string

const (
	StateObserved         TrackedState = "Observed"
	StateMirrorPending    TrackedState = "MirrorPending"
	StateMirrorCreated    TrackedState = "MirrorCreated"
	StateCompleting       TrackedState = "Completing"
	StateRefunding        TrackedState = "Refunding"
	StatePartiallyFilling TrackedState = "PartiallyFilling"
	StateSettled          TrackedState = "Settled"
	StateError            TrackedState = "Error"
)

type trackedOrder struct {
	intent     SwapIntent
	state      TrackedState
	observedAt time.Time
	attempts   int
	lastErr    error

	// carried across poll cycles so a failed withdrawal or refund can be
	// re-driven without the triggering event being re-delivered
	secret       []byte
	refundAmount *big.Int
	refundReason string
}

// Coordinator is the swap state machine for one chain direction: it consumes
// its own chain's events and drives escrow creation, withdrawal and refunds
// on the opposite chain. Two instances form the relay.
//
// Processing is sequential within a poll cycle, so mutating calls for the
// same secret hash never race inside one coordinator. The idempotency ledger
// plus the registry pre-check bound the remaining cross-process window; the
// chain rejecting a duplicate-hash creation closes it.
type Coordinator struct {
	sourceChain Chain
	destChain   Chain

	source         EventSource
	sourceRegistry EscrowRegistry
	destRegistry   EscrowRegistry
	destMutator    EscrowMutator
	secretScanner  SecretScanner

	pricer  *Pricer
	codec   *AmountCodec
	store   *Store
	channel CrossChainChannel
	cfg     *Config
	logger  zerolog.Logger

	orders map[string]*trackedOrder
}

// SecretScanner is the third secret-extraction strategy: scan recent
// transaction logs for a reveal of the given hashlock's preimage.
type SecretScanner interface {
	ScanRecentSecrets(ctx context.Context, hash [32]byte) ([]byte, error)
}

func NewCoordinator(
	source EventSource,
	sourceRegistry, destRegistry EscrowRegistry,
	destMutator EscrowMutator,
	secretScanner SecretScanner,
	pricer *Pricer,
	codec *AmountCodec,
	store *Store,
	channel CrossChainChannel,
	cfg *Config,
	logger *zerolog.Logger,
) *Coordinator {
	destChain := ChainNear
	if source.Chain() == ChainNear {
		destChain = ChainEthereum
	}
	sub := logger.With().
		Str("source_chain", string(source.Chain())).
		Str("dest_chain", string(destChain)).
		Logger()
	return &Coordinator{
		sourceChain:    source.Chain(),
		destChain:      destChain,
		source:         source,
		sourceRegistry: sourceRegistry,
		destRegistry:   destRegistry,
		destMutator:    destMutator,
		secretScanner:  secretScanner,
		pricer:         pricer,
		codec:          codec,
		store:          store,
		channel:        channel,
		cfg:            cfg,
		logger:         sub,
		orders:         make(map[string]*trackedOrder),
	}
}

// Run polls until the context is cancelled. Any in-flight mutating call
// finishes (or fails) before Run returns so its outcome always reaches the
// ledger.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval())
	defer ticker.Stop()

	c.logger.Info().Msg("coordinator started")
	c.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("coordinator stopped")
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single poll cycle: fetch events, handle them in order,
// advance the checkpoint, then revisit orders waiting on a secret or a
// pending mirror.
func (c *Coordinator) RunOnce(ctx context.Context) {
	events, checkpoint, err := c.source.Poll(ctx)
	if err != nil {
		// checkpoint not advanced: the batch is re-delivered next cycle
		c.logger.Error().Err(err).Msg("poll failed")
		return
	}

	handled := 0
	for _, ev := range events {
		if err := c.Handle(ctx, ev); err != nil {
			// per-order isolation: one failing order never blocks the batch
			c.logger.Error().Err(err).
				Str("kind", string(ev.Kind)).
				Int64("height", ev.Height).
				Str("tx_hash", ev.TxHash).
				Msg("event handling failed")
			continue
		}
		handled++
	}

	if err := c.store.SetCheckpoint(c.sourceChain, checkpoint); err != nil {
		c.logger.Error().Err(err).Int64("checkpoint", checkpoint).Msg("failed to advance checkpoint")
		return
	}

	c.retryPending(ctx)

	if len(events) > 0 {
		c.logger.Info().
			Int("total", len(events)).
			Int("handled", handled).
			Int64("checkpoint", checkpoint).
			Msg("finished poll cycle")
	}
}

// Handle dispatches one domain event through the state machine.
func (c *Coordinator) Handle(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		// unrecoverable validation failure: log with full context, no retry
		c.logger.Error().Err(err).
			Str("kind", string(ev.Kind)).
			Str("tx_hash", ev.TxHash).
			Int64("height", ev.Height).
			Msg("dropping malformed event")
		return err
	}

	switch ev.Kind {
	case EventDeposit, EventEscrowCreated:
		return c.onEscrowCreated(ctx, ev)
	case EventCompleted:
		return c.onCompleted(ctx, ev)
	case EventRefunded:
		return c.onRefunded(ctx, ev)
	case EventPartialFill:
		return c.onPartialFill(ctx, ev)
	}
	return fmt.Errorf("%w: unhandled event kind %q", ErrValidation, ev.Kind)
}

// onEscrowCreated: Observed -> MirrorPending -> MirrorCreated. If the
// destination already holds an escrow for this hash the order re-enters at
// MirrorCreated with zero mutating calls (restart idempotency).
func (c *Coordinator) onEscrowCreated(ctx context.Context, ev Event) error {
	p := ev.Escrow
	orderID := p.OrderID

	ord, seen := c.orders[orderID]
	if seen && ord.state != StateObserved && ord.state != StateMirrorPending {
		c.logger.Debug().Str("order_id", orderID).Str("state", string(ord.state)).Msg("escrow-created for known order -- ignoring")
		return nil
	}
	if !seen {
		ord = &trackedOrder{
			intent: SwapIntent{
				SourceChain:  c.sourceChain,
				DestChain:    c.destChain,
				SourceAmount: p.Amount,
				SecretHash:   p.SecretHash,
				Timelock:     p.Timelock,
				Initiator:    p.Initiator,
				Recipient:    p.Recipient,
				OrderID:      orderID,
			},
			state:      StateObserved,
			observedAt: time.Now(),
		}
		c.orders[orderID] = ord
		c.updateStatus(orderID, StatusCreated, nil, "")
	}

	existing, err := c.destRegistry.FindBySecretHash(ctx, p.SecretHash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("mirror pre-check for order %s: %w", orderID, err)
	}
	if existing != nil {
		c.logger.Info().
			Str("order_id", orderID).
			Str("secret_hash", HashToHex(p.SecretHash)).
			Msg("mirror escrow already exists -- skipping creation")
		ord.state = StateMirrorCreated
		c.updateStatus(orderID, StatusEscrowCreated, nil, "")
		return nil
	}

	ord.state = StateMirrorPending
	return c.createMirror(ctx, ord)
}

// createMirror prices the intent, derives the destination timelock offset and
// submits the mirrored escrow with value = output + fee attached natively.
func (c *Coordinator) createMirror(ctx context.Context, ord *trackedOrder) error {
	orderID := ord.intent.OrderID
	msgID := MessageID("create_escrow", orderID)

	done, err := c.store.Contains(msgID)
	if err != nil {
		return err
	}
	if done {
		c.logger.Debug().Str("message_id", msgID).Msg("mirror creation already recorded -- skipping")
		ord.state = StateMirrorCreated
		return nil
	}

	rate, err := c.cfg.Auction.BaseRate(c.sourceChain, c.destChain)
	if err != nil {
		// a missing or malformed rate must never price an escrow at 1:1
		ord.state = StateError
		ord.lastErr = err
		c.updateStatus(orderID, StatusError, nil, err.Error())
		return fmt.Errorf("pricing order %s: %w", orderID, err)
	}

	now := time.Now()
	result, err := c.pricer.CalculateRate(AuctionParams{
		FromChain:  ord.intent.SourceChain,
		ToChain:    ord.intent.DestChain,
		FromAmount: ord.intent.SourceAmount,
		BaseRate:   rate,
		StartTime:  ord.observedAt,
		OrderID:    orderID,
	}, now)
	if err != nil {
		ord.state = StateError
		ord.lastErr = err
		c.updateStatus(orderID, StatusError, nil, err.Error())
		return fmt.Errorf("pricing order %s: %w", orderID, err)
	}

	amount, err := c.codec.Rescale(result.OutputAmount, c.sourceChain.Decimals(), c.destChain.Decimals())
	if err != nil {
		ord.state = StateError
		ord.lastErr = err
		c.updateStatus(orderID, StatusError, nil, err.Error())
		return fmt.Errorf("converting output for order %s: %w", orderID, err)
	}
	deposit, err := c.codec.Rescale(result.FeeAmount, c.sourceChain.Decimals(), c.destChain.Decimals())
	if err != nil {
		ord.state = StateError
		ord.lastErr = err
		c.updateStatus(orderID, StatusError, nil, err.Error())
		return fmt.Errorf("converting fee for order %s: %w", orderID, err)
	}

	// relative offset: the destination contract anchors its own deadline at
	// the creation transaction's block time
	offset, err := DeriveDestinationOffset(ord.intent.Timelock, now, c.cfg.Timelock)
	if err != nil {
		ord.state = StateError
		ord.lastErr = err
		c.updateStatus(orderID, StatusError, nil, err.Error())
		return fmt.Errorf("deriving timelock for order %s: %w", orderID, err)
	}

	_, err = c.destMutator.CreateEscrow(ctx, CreateEscrowParams{
		Recipient:      ord.intent.Recipient,
		Hashlock:       ord.intent.SecretHash,
		Amount:         amount,
		SafetyDeposit:  deposit,
		TimelockOffset: offset,
		SourceOrderID:  orderID,
	})
	if err != nil {
		return c.noteMutationFailure(ord, fmt.Errorf("creating mirror for order %s: %w", orderID, err))
	}

	if err := c.store.Insert(msgID); err != nil {
		return err
	}
	ord.state = StateMirrorCreated
	ord.attempts = 0
	c.updateStatus(orderID, StatusEscrowCreated, nil, "")
	c.logger.Info().
		Str("order_id", orderID).
		Str("amount", amount.String()).
		Str("safety_deposit", deposit.String()).
		Str("rate", result.CurrentRate.String()).
		Dur("timelock_offset", offset).
		Msg("mirror escrow created")
	return nil
}

// onCompleted: MirrorCreated -> Completing -> Settled. The revealed secret is
// replayed on the destination chain to withdraw the mirror escrow.
func (c *Coordinator) onCompleted(ctx context.Context, ev Event) error {
	p := ev.Completed
	return c.completeWithdrawal(ctx, p.OrderID, p.SecretHash, p.Secret)
}

func (c *Coordinator) completeWithdrawal(ctx context.Context, orderID string, hash [32]byte, secret []byte) error {
	msgID := MessageID("withdraw", orderID)
	done, err := c.store.Contains(msgID)
	if err != nil {
		return err
	}
	if done {
		c.logger.Debug().Str("message_id", msgID).Msg("withdrawal already recorded -- skipping")
		c.settleWithdrawal(orderID)
		return nil
	}

	// the secret stays on the order so retryPending can re-drive a failed
	// withdrawal without the completion event being re-delivered
	ord := c.trackOrder(orderID, hash)
	ord.state = StateCompleting
	ord.secret = secret

	escrow, err := c.destRegistry.FindBySecretHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("locating mirror escrow for order %s: %w", orderID, err)
	}
	if escrow.Withdrawn {
		c.logger.Info().Str("order_id", orderID).Msg("mirror escrow already withdrawn")
		if err := c.store.Insert(msgID); err != nil {
			return err
		}
		c.settleWithdrawal(orderID)
		return nil
	}

	if _, err := c.destMutator.Withdraw(ctx, escrow.ID, secret); err != nil {
		// wrong secret or revert: surfaced, not recorded, retried bounded
		return c.noteMutationFailure(ord, fmt.Errorf("withdrawing order %s: %w", orderID, err))
	}

	if err := c.store.Insert(msgID); err != nil {
		return err
	}
	c.settleWithdrawal(orderID)
	c.logger.Info().Str("order_id", orderID).Msg("withdrawal settled")
	return nil
}

// onRefunded: MirrorCreated -> Refunding -> Settled. The source escrow
// expired; release the mirror back to the relay.
func (c *Coordinator) onRefunded(ctx context.Context, ev Event) error {
	p := ev.Refunded
	ord := c.trackOrder(p.OrderID, p.SecretHash)
	ord.state = StateRefunding
	ord.refundAmount = p.Amount
	ord.refundReason = p.Reason
	return c.performRefund(ctx, ord)
}

// performRefund releases the mirror escrow. It is re-entered by retryPending
// after a transient failure, so every step is gated on the ledger.
func (c *Coordinator) performRefund(ctx context.Context, ord *trackedOrder) error {
	orderID := ord.intent.OrderID
	msgID := MessageID("refund", orderID)

	done, err := c.store.Contains(msgID)
	if err != nil {
		return err
	}
	if done {
		c.logger.Debug().Str("message_id", msgID).Msg("refund already recorded -- skipping")
		c.settle(orderID, StatusRefunded)
		return nil
	}

	escrow, err := c.destRegistry.FindBySecretHash(ctx, ord.intent.SecretHash)
	if errors.Is(err, ErrNotFound) {
		// no mirror was ever created: nothing to release
		c.logger.Warn().Str("order_id", orderID).Msg("refund observed with no mirror escrow")
		if err := c.store.Insert(msgID); err != nil {
			return err
		}
		c.settle(orderID, StatusRefunded)
		return nil
	}
	if err != nil {
		return fmt.Errorf("locating mirror escrow for refund of order %s: %w", orderID, err)
	}

	if !escrow.Refunded {
		if _, err := c.destMutator.Refund(ctx, escrow.ID); err != nil {
			return c.noteMutationFailure(ord, fmt.Errorf("refunding order %s: %w", orderID, err))
		}
	}

	if err := c.store.Insert(msgID); err != nil {
		return err
	}
	c.settle(orderID, StatusRefunded)

	c.notify(ctx, Message{
		Type:         MessageRefund,
		OrderHash:    orderID,
		RefundAmount: ord.refundAmount,
		SecretHash:   HashToHex(ord.intent.SecretHash),
		Timestamp:    time.Now().Unix(),
		Reason:       ord.refundReason,
	})
	c.logger.Info().Str("order_id", orderID).Msg("refund settled")
	return nil
}

// onPartialFill validates a fill against the destination order state before
// mirroring it. Fills below the minimum fraction of the remaining amount, or
// against finalized orders, are rejected without any mutating call.
func (c *Coordinator) onPartialFill(ctx context.Context, ev Event) error {
	p := ev.PartialFill
	orderID := p.OrderID

	state, err := c.destRegistry.GetOrderState(ctx, orderID)
	if err != nil {
		return fmt.Errorf("querying order state for %s: %w", orderID, err)
	}
	if state.IsFullyFilled || state.IsCancelled {
		return fmt.Errorf("%w: order %s", ErrOrderFinalized, orderID)
	}
	if state.RemainingAmount.Cmp(p.FillAmount) < 0 {
		return fmt.Errorf("%w: fill %s exceeds remaining %s for order %s",
			ErrFillTooSmall, p.FillAmount, state.RemainingAmount, orderID)
	}
	// fill must cover at least min_fill_bps of what remains
	minFill := new(big.Int).Mul(state.RemainingAmount, big.NewInt(c.cfg.Auction.MinFillBps))
	minFill.Quo(minFill, big.NewInt(bpsDenominator))
	if p.FillAmount.Cmp(minFill) < 0 {
		return fmt.Errorf("%w: fill %s below minimum %s for order %s",
			ErrFillTooSmall, p.FillAmount, minFill, orderID)
	}

	// each on-chain fill is its own logical action
	msgID := MessageID("partial_fill_"+ev.TxHash, orderID)
	done, err := c.store.Contains(msgID)
	if err != nil {
		return err
	}
	if done {
		c.logger.Debug().Str("message_id", msgID).Msg("partial fill already recorded -- skipping")
		return nil
	}

	if ord, ok := c.orders[orderID]; ok {
		ord.state = StatePartiallyFilling
	}

	fill, err := c.codec.Rescale(p.FillAmount, c.sourceChain.Decimals(), c.destChain.Decimals())
	if err != nil {
		return fmt.Errorf("converting fill for order %s: %w", orderID, err)
	}
	if _, err := c.destMutator.PartialFill(ctx, PartialFillParams{
		OrderID:    orderID,
		FillAmount: fill,
		Executor:   p.Executor,
	}); err != nil {
		wrapped := fmt.Errorf("mirroring partial fill for order %s: %w", orderID, err)
		if ord, ok := c.orders[orderID]; ok {
			return c.noteMutationFailure(ord, wrapped)
		}
		return wrapped
	}

	if err := c.store.Insert(msgID); err != nil {
		return err
	}
	if ord, ok := c.orders[orderID]; ok {
		ord.state = StateMirrorCreated // more fills or a completion may follow
	}
	c.updateStatusFill(orderID, state, p.FillAmount)

	c.notify(ctx, Message{
		Type:            MessagePartialFill,
		OrderHash:       orderID,
		FillAmount:      p.FillAmount,
		RemainingAmount: new(big.Int).Sub(state.RemainingAmount, p.FillAmount),
		SecretHash:      HashToHex(c.hashFor(orderID)),
		Timestamp:       time.Now().Unix(),
	})
	return nil
}

// retryPending revisits orders awaiting a mirror, a secret, or a mutating
// call that failed transiently. A miss is left in place for the next cycle;
// only bounded mutation failures become Error.
func (c *Coordinator) retryPending(ctx context.Context) {
	for orderID, ord := range c.orders {
		switch ord.state {
		case StateMirrorPending:
			if err := c.createMirror(ctx, ord); err != nil {
				c.logger.Error().Err(err).Str("order_id", orderID).Msg("mirror retry failed")
			}
		case StateMirrorCreated:
			secret, err := c.extractSecret(ctx, ord)
			if errors.Is(err, ErrNotFound) {
				continue // retryable miss, stays MirrorCreated
			}
			if err != nil {
				c.logger.Error().Err(err).Str("order_id", orderID).Msg("secret extraction failed")
				continue
			}
			if err := c.completeWithdrawal(ctx, orderID, ord.intent.SecretHash, secret); err != nil {
				c.logger.Error().Err(err).Str("order_id", orderID).Msg("withdrawal after extraction failed")
			}
		case StateCompleting:
			// a withdrawal failed after the completion event was consumed;
			// the checkpoint has moved on so the retry is driven from here
			secret := ord.secret
			if len(secret) == 0 {
				var err error
				if secret, err = c.extractSecret(ctx, ord); err != nil {
					continue
				}
			}
			if err := c.completeWithdrawal(ctx, orderID, ord.intent.SecretHash, secret); err != nil {
				c.logger.Error().Err(err).Str("order_id", orderID).Msg("withdrawal retry failed")
			}
		case StateRefunding:
			if err := c.performRefund(ctx, ord); err != nil {
				c.logger.Error().Err(err).Str("order_id", orderID).Msg("refund retry failed")
			}
		}
	}
}

// extractSecret tries the three extraction strategies in order: destination
// contract state, source contract state, recent log scan. First verified
// preimage wins; exhausting all three is a retryable miss.
func (c *Coordinator) extractSecret(ctx context.Context, ord *trackedOrder) ([]byte, error) {
	hash := ord.intent.SecretHash

	for _, reg := range []EscrowRegistry{c.destRegistry, c.sourceRegistry} {
		if reg == nil {
			continue
		}
		info, err := reg.FindBySecretHash(ctx, hash)
		if err == nil && len(info.Secret) > 0 && VerifySecret(info.Secret, hash) {
			return info.Secret, nil
		}
	}

	if c.secretScanner != nil {
		secret, err := c.secretScanner.ScanRecentSecrets(ctx, hash)
		if err == nil && len(secret) > 0 && VerifySecret(secret, hash) {
			return secret, nil
		}
	}

	return nil, fmt.Errorf("%w: no revealed secret for hash %s", ErrNotFound, HashToHex(hash))
}

// noteMutationFailure applies the bounded-retry policy for failed mutating
// calls: the order stays retryable until MaxTxAttempts, then parks in Error
// for operator intervention. Auto-retrying forever risks a double-spend.
func (c *Coordinator) noteMutationFailure(ord *trackedOrder, err error) error {
	ord.attempts++
	ord.lastErr = err
	if ord.attempts >= c.cfg.MaxTxAttempts {
		ord.state = StateError
		c.updateStatus(ord.intent.OrderID, StatusError, nil, err.Error())
		c.logger.Error().Err(err).
			Str("order_id", ord.intent.OrderID).
			Int("attempts", ord.attempts).
			Msg("order moved to error state -- operator intervention required")
	}
	return err
}

// trackOrder returns the tracked order, registering a minimal record when the
// creation event predates this process (restart, or mirrored by a peer).
func (c *Coordinator) trackOrder(orderID string, hash [32]byte) *trackedOrder {
	if ord, ok := c.orders[orderID]; ok {
		return ord
	}
	ord := &trackedOrder{
		intent: SwapIntent{
			SourceChain: c.sourceChain,
			DestChain:   c.destChain,
			SecretHash:  hash,
			OrderID:     orderID,
		},
		state:      StateMirrorCreated,
		observedAt: time.Now(),
	}
	c.orders[orderID] = ord
	return ord
}

func (c *Coordinator) settle(orderID string, status OrderStatusValue) {
	if ord, ok := c.orders[orderID]; ok {
		ord.state = StateSettled
		ord.lastErr = nil
	}
	c.updateStatus(orderID, status, nil, "")
}

// settleWithdrawal marks a withdrawn order settled without flattening its
// recorded fill history: an order with partial fills and a nonzero remainder
// keeps PartiallyFilled and its amounts instead of being overwritten with
// FullyFilled.
func (c *Coordinator) settleWithdrawal(orderID string) {
	if ord, ok := c.orders[orderID]; ok {
		ord.state = StateSettled
		ord.lastErr = nil
	}
	rec := DbOrderStatus{OrderID: orderID, Status: StatusFullyFilled}
	if prev, err := c.store.GetOrderStatus(orderID); err == nil && prev.Status == StatusPartiallyFilled {
		rec.FilledAmount = prev.FilledAmount
		rec.RemainingAmount = prev.RemainingAmount
		rec.FillCount = prev.FillCount
		if prev.RemainingAmount != "" && prev.RemainingAmount != "0" {
			rec.Status = StatusPartiallyFilled
		}
	}
	if err := c.store.UpsertOrderStatus(rec); err != nil {
		c.logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to update order status cache")
	}
}

func (c *Coordinator) hashFor(orderID string) [32]byte {
	if ord, ok := c.orders[orderID]; ok {
		return ord.intent.SecretHash
	}
	return [32]byte{}
}

func (c *Coordinator) updateStatus(orderID string, status OrderStatusValue, state *OrderState, lastErr string) {
	rec := DbOrderStatus{OrderID: orderID, Status: status, LastError: lastErr}
	if state != nil {
		rec.FilledAmount = state.FilledAmount.String()
		rec.RemainingAmount = state.RemainingAmount.String()
		rec.FillCount = int64(state.FillCount)
	}
	if err := c.store.UpsertOrderStatus(rec); err != nil {
		// advisory only: a cache write failure never blocks settlement
		c.logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to update order status cache")
	}
}

func (c *Coordinator) updateStatusFill(orderID string, before *OrderState, fill *big.Int) {
	rec := DbOrderStatus{
		OrderID:         orderID,
		Status:          StatusPartiallyFilled,
		FilledAmount:    new(big.Int).Add(before.FilledAmount, fill).String(),
		RemainingAmount: new(big.Int).Sub(before.RemainingAmount, fill).String(),
		FillCount:       int64(before.FillCount + 1),
	}
	if err := c.store.UpsertOrderStatus(rec); err != nil {
		c.logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to update order status cache")
	}
}

func (c *Coordinator) notify(ctx context.Context, msg Message) {
	if c.channel == nil {
		return
	}
	if err := c.channel.Notify(ctx, msg); err != nil {
		// advisories are best-effort
		c.logger.Warn().Err(err).Str("order_hash", msg.OrderHash).Msg("cross-chain advisory failed")
	}
}

// OrderSnapshot reports the in-memory state of one tracked order, mainly for
// the status server and tests.
func (c *Coordinator) OrderSnapshot(orderID string) (TrackedState, bool) {
	ord, ok := c.orders[orderID]
	if !ok {
		return "", false
	}
	return ord.state, true
}
