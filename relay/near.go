package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// NearClient is a minimal NEAR JSON-RPC client. Only the calls the relay
// needs: status, view function calls and transaction status.
type NearClient struct {
	rpcUrl string
	http   *http.Client
	logger *zerolog.Logger
}

func NewNearClient(rpcUrl string, logger *zerolog.Logger) *NearClient {
	return &NearClient{
		rpcUrl: rpcUrl,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type nearRpcRequest struct {
	JsonRpc string `json:"jsonrpc"`
	Id      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type nearRpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Name  string          `json:"name"`
		Cause json.RawMessage `json:"cause"`
		Data  string          `json:"data"`
	} `json:"error"`
}

func (c *NearClient) call(ctx context.Context, method string, params any, out any) error {
	payload, err := json.Marshal(nearRpcRequest{JsonRpc: "2.0", Id: "swap-relay", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.rpcUrl, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if msg := HttpCodeCheck(resp.StatusCode); msg != "" {
		return fmt.Errorf("%w: %s", ErrNetwork, msg)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: near rpc returned code %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var rpcResp nearRpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		c.logger.Debug().Str("body", string(body)).Msg("error unmarshalling near rpc response")
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: near rpc error %s: %s", ErrContract, rpcResp.Error.Name, rpcResp.Error.Data)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%w: decoding near rpc result: %v", ErrValidation, err)
		}
	}
	return nil
}

type nearStatusResult struct {
	SyncInfo struct {
		LatestBlockHeight int64 `json:"latest_block_height"`
	} `json:"sync_info"`
}

// LatestHeight returns the chain head height.
func (c *NearClient) LatestHeight(ctx context.Context) (int64, error) {
	var status nearStatusResult
	if err := c.call(ctx, "status", map[string]any{}, &status); err != nil {
		return 0, err
	}
	return status.SyncInfo.LatestBlockHeight, nil
}

type nearCallResult struct {
	Result []byte `json:"result"`
}

// ViewFunction invokes a contract view method and returns the raw JSON it
// produced.
func (c *NearClient) ViewFunction(ctx context.Context, accountID, method string, args any) ([]byte, error) {
	argBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal view args: %w", err)
	}
	params := map[string]any{
		"request_type": "call_function",
		"finality":     "final",
		"account_id":   accountID,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(argBytes),
	}
	var result nearCallResult
	if err := c.call(ctx, "query", params, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

type nearAccountView struct {
	Amount string `json:"amount"`
}

// AccountBalance returns the account's liquid balance in yoctoNEAR.
func (c *NearClient) AccountBalance(ctx context.Context, accountID string) (*big.Int, error) {
	params := map[string]any{
		"request_type": "view_account",
		"finality":     "final",
		"account_id":   accountID,
	}
	var view nearAccountView
	if err := c.call(ctx, "query", params, &view); err != nil {
		return nil, err
	}
	return parseU128(view.Amount)
}

type nearTxStatusResult struct {
	Status struct {
		SuccessValue *string         `json:"SuccessValue,omitempty"`
		Failure      json.RawMessage `json:"Failure,omitempty"`
	} `json:"status"`
	TransactionOutcome struct {
		BlockHash string `json:"block_hash"`
		Outcome   struct {
			Status json.RawMessage `json:"status"`
		} `json:"outcome"`
	} `json:"transaction_outcome"`
}

// TxStatus fetches the execution outcome of a submitted transaction.
func (c *NearClient) TxStatus(ctx context.Context, txHash, senderID string) (*nearTxStatusResult, error) {
	var result nearTxStatusResult
	if err := c.call(ctx, "tx", []any{txHash, senderID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// nearEventEnvelope mirrors the JSON the escrow contract logs for every state
// change (event_type discriminated, amounts as decimal strings, timestamps in
// nanoseconds).
type nearEventEnvelope struct {
	EventType   string `json:"event_type"`
	OrderID     string `json:"order_id"`
	SecretHash  string `json:"secret_hash"`
	Secret      string `json:"secret,omitempty"` // hex preimage on completion
	Amount      string `json:"amount"`
	FillAmount  string `json:"fill_amount,omitempty"`
	Remaining   string `json:"remaining_amount,omitempty"`
	TimelockNs  uint64 `json:"timelock"`
	Initiator   string `json:"initiator"`
	Recipient   string `json:"recipient"`
	Executor    string `json:"executor,omitempty"`
	Reason      string `json:"reason,omitempty"`
	BlockHeight int64  `json:"block_height"`
	TxHash      string `json:"tx_hash"`
}

// NearEventSource polls the escrow contract's event log view methods forward
// from the persisted checkpoint. One view call per event category; a failing
// category is logged and skipped so the rest of the poll still lands.
type NearEventSource struct {
	client    *NearClient
	contract  string
	store     *Store
	maxBlocks int64
	logger    *zerolog.Logger
}

func NewNearEventSource(client *NearClient, contract string, store *Store, maxBlocks int64, logger *zerolog.Logger) *NearEventSource {
	return &NearEventSource{
		client:    client,
		contract:  contract,
		store:     store,
		maxBlocks: maxBlocks,
		logger:    logger,
	}
}

func (s *NearEventSource) Chain() Chain { return ChainNear }

// event categories map onto contract view methods
var nearEventViews = map[EventKind]string{
	EventEscrowCreated: "get_created_events",
	EventCompleted:     "get_completed_events",
	EventPartialFill:   "get_partial_fill_events",
	EventRefunded:      "get_refund_events",
}

func (s *NearEventSource) Poll(ctx context.Context) ([]Event, int64, error) {
	from, err := s.store.GetCheckpoint(ChainNear)
	if err != nil {
		return nil, 0, err
	}
	head, err := s.client.LatestHeight(ctx)
	if err != nil {
		return nil, 0, err
	}
	to := head
	if to > from+s.maxBlocks {
		to = from + s.maxBlocks
	}
	if to <= from {
		return nil, from, nil
	}

	events := []Event{}
	for kind, view := range nearEventViews {
		raw, err := s.client.ViewFunction(ctx, s.contract, view, map[string]any{
			"from_height": from + 1,
			"to_height":   to,
		})
		if err != nil {
			// partial-failure isolation: other categories still get polled
			s.logger.Error().Err(err).Str("view", view).Msg("failed to fetch near event category")
			continue
		}
		var envelopes []nearEventEnvelope
		if err := json.Unmarshal(raw, &envelopes); err != nil {
			s.logger.Error().Err(err).Str("view", view).Msg("failed to decode near event category")
			continue
		}
		for _, env := range envelopes {
			ev, err := decodeNearEvent(kind, env)
			if err != nil {
				s.logger.Error().Err(err).
					Str("order_id", env.OrderID).
					Str("event_type", env.EventType).
					Msg("skipping malformed near event")
				continue
			}
			events = append(events, *ev)
		}
	}

	sortEventsByHeight(events)
	return events, to, nil
}

func decodeNearEvent(kind EventKind, env nearEventEnvelope) (*Event, error) {
	ev := &Event{Kind: kind, Chain: ChainNear, Height: env.BlockHeight, TxHash: env.TxHash}

	switch kind {
	case EventDeposit, EventEscrowCreated:
		hash, err := ParseSecretHash(env.SecretHash)
		if err != nil {
			return nil, err
		}
		amount, err := parseU128(env.Amount)
		if err != nil {
			return nil, err
		}
		ev.Escrow = &EscrowCreatedPayload{
			OrderID:    env.OrderID,
			SecretHash: hash,
			Amount:     amount,
			Timelock:   NanosToTime(env.TimelockNs),
			Initiator:  env.Initiator,
			Recipient:  env.Recipient,
		}
	case EventCompleted:
		hash, err := ParseSecretHash(env.SecretHash)
		if err != nil {
			return nil, err
		}
		secret, err := parseHexBytes(env.Secret)
		if err != nil {
			return nil, err
		}
		ev.Completed = &CompletedPayload{OrderID: env.OrderID, SecretHash: hash, Secret: secret}
	case EventPartialFill:
		fill, err := parseU128(env.FillAmount)
		if err != nil {
			return nil, err
		}
		remaining, err := parseU128(env.Remaining)
		if err != nil {
			return nil, err
		}
		ev.PartialFill = &PartialFillPayload{
			OrderID:         env.OrderID,
			FillAmount:      fill,
			RemainingAmount: remaining,
			Executor:        env.Executor,
		}
	case EventRefunded:
		hash, err := ParseSecretHash(env.SecretHash)
		if err != nil {
			return nil, err
		}
		amount, err := parseU128(env.Amount)
		if err != nil {
			return nil, err
		}
		ev.Refunded = &RefundedPayload{OrderID: env.OrderID, SecretHash: hash, Amount: amount, Reason: env.Reason}
	default:
		return nil, fmt.Errorf("%w: unknown near event kind %q", ErrValidation, kind)
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func parseU128(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty u128 string", ErrValidation)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: bad u128 %q", ErrValidation, s)
	}
	return v, nil
}

// nearEscrowView mirrors the contract's escrow/order view JSON.
type nearEscrowView struct {
	ID         string `json:"id"`
	Initiator  string `json:"initiator"`
	Recipient  string `json:"recipient"`
	Hashlock   string `json:"hashlock"`
	Amount     string `json:"amount"`
	DeadlineNs uint64 `json:"deadline"`
	Withdrawn  bool   `json:"withdrawn"`
	Refunded   bool   `json:"refunded"`
	Secret     string `json:"secret,omitempty"`
}

type nearOrderStateView struct {
	OrderID         string   `json:"order_id"`
	FilledAmount    string   `json:"filled_amount"`
	RemainingAmount string   `json:"remaining_amount"`
	FillCount       int      `json:"fill_count"`
	IsFullyFilled   bool     `json:"is_fully_filled"`
	IsCancelled     bool     `json:"is_cancelled"`
	ChildOrders     []string `json:"child_orders,omitempty"`
}

// NearRegistry implements EscrowRegistry over the NEAR escrow contract's view
// methods.
type NearRegistry struct {
	client   *NearClient
	contract string
}

func NewNearRegistry(client *NearClient, contract string) *NearRegistry {
	return &NearRegistry{client: client, contract: contract}
}

func (r *NearRegistry) findEscrow(ctx context.Context, view string, args any) (*EscrowInfo, error) {
	raw, err := r.client.ViewFunction(ctx, r.contract, view, args)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: no matching escrow", ErrNotFound)
	}
	var v nearEscrowView
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: decoding escrow view: %v", ErrValidation, err)
	}
	return nearEscrowToInfo(v)
}

func nearEscrowToInfo(v nearEscrowView) (*EscrowInfo, error) {
	hash, err := ParseSecretHash(v.Hashlock)
	if err != nil {
		return nil, err
	}
	amount, err := parseU128(v.Amount)
	if err != nil {
		return nil, err
	}
	info := &EscrowInfo{
		ID:        v.ID,
		Chain:     ChainNear,
		Initiator: v.Initiator,
		Recipient: v.Recipient,
		Hashlock:  hash,
		Amount:    amount,
		Deadline:  NanosToTime(v.DeadlineNs),
		Withdrawn: v.Withdrawn,
		Refunded:  v.Refunded,
	}
	if v.Secret != "" {
		secret, err := parseHexBytes(v.Secret)
		if err != nil {
			return nil, err
		}
		info.Secret = secret
	}
	return info, nil
}

func (r *NearRegistry) FindBySecretHash(ctx context.Context, hash [32]byte) (*EscrowInfo, error) {
	return r.findEscrow(ctx, "get_escrow_by_hash", map[string]any{"secret_hash": HashToHex(hash)})
}

func (r *NearRegistry) FindByInitiator(ctx context.Context, addr string) (*EscrowInfo, error) {
	return r.findEscrow(ctx, "get_escrow_by_initiator", map[string]any{"initiator": addr})
}

func (r *NearRegistry) GetOrderState(ctx context.Context, orderID string) (*OrderState, error) {
	raw, err := r.client.ViewFunction(ctx, r.contract, "get_order_state", map[string]any{"order_id": orderID})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	var v nearOrderStateView
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: decoding order state: %v", ErrValidation, err)
	}
	filled, err := parseU128(v.FilledAmount)
	if err != nil {
		return nil, err
	}
	remaining, err := parseU128(v.RemainingAmount)
	if err != nil {
		return nil, err
	}
	return &OrderState{
		OrderID:         v.OrderID,
		FilledAmount:    filled,
		RemainingAmount: remaining,
		FillCount:       v.FillCount,
		IsFullyFilled:   v.IsFullyFilled,
		IsCancelled:     v.IsCancelled,
		ChildOrders:     v.ChildOrders,
	}, nil
}

// NearMutator implements EscrowMutator by packing contract call arguments as
// JSON and handing them to the signer collaborator, then waiting for the
// transaction outcome.
type NearMutator struct {
	client    *NearClient
	contract  string
	signer    Signer
	signerID  string
	txTimeout time.Duration
	logger    *zerolog.Logger
}

func NewNearMutator(client *NearClient, contract string, signer Signer, signerID string, txTimeout time.Duration, logger *zerolog.Logger) *NearMutator {
	return &NearMutator{
		client:    client,
		contract:  contract,
		signer:    signer,
		signerID:  signerID,
		txTimeout: txTimeout,
		logger:    logger,
	}
}

type nearCallData struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

func (m *NearMutator) execute(ctx context.Context, method string, args any, deposit *big.Int) (*TxReceipt, error) {
	argBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal call args: %w", err)
	}
	data, err := json.Marshal(nearCallData{Method: method, Args: argBytes})
	if err != nil {
		return nil, fmt.Errorf("marshal call data: %w", err)
	}

	txHash, err := m.signer.SignAndSend(ctx, m.contract, deposit, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTxRejected, err)
	}
	return m.waitForTx(ctx, txHash)
}

func (m *NearMutator) waitForTx(ctx context.Context, txHash string) (*TxReceipt, error) {
	deadline := time.Now().Add(m.txTimeout)
	for {
		status, err := m.client.TxStatus(ctx, txHash, m.signerID)
		if err == nil {
			if status.Status.Failure != nil {
				return nil, fmt.Errorf("%w: near tx %s failed: %s", ErrTxRejected, txHash, status.Status.Failure)
			}
			if status.Status.SuccessValue != nil {
				return &TxReceipt{TxHash: txHash, Ok: true}, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: near tx %s", ErrTxTimeout, txHash)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTxTimeout, ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
}

func (m *NearMutator) CreateEscrow(ctx context.Context, params CreateEscrowParams) (*TxReceipt, error) {
	value := new(big.Int).Add(params.Amount, params.SafetyDeposit)
	receipt, err := m.execute(ctx, "create_escrow", map[string]any{
		"recipient":       params.Recipient,
		"hashlock":        HashToHex(params.Hashlock),
		"amount":          params.Amount.String(),
		"safety_deposit":  params.SafetyDeposit.String(),
		"timelock_offset": int64(params.TimelockOffset.Seconds()),
		"source_order_id": params.SourceOrderID,
	}, value)
	if err != nil && isDuplicateEscrowErr(err) {
		// chain already holds an escrow for this hashlock: idempotent no-op
		m.logger.Debug().Str("order_id", params.SourceOrderID).Msg("near escrow already exists -- treating create as no-op")
		return &TxReceipt{Ok: true}, nil
	}
	return receipt, err
}

func (m *NearMutator) Withdraw(ctx context.Context, escrowID string, secret []byte) (*TxReceipt, error) {
	return m.execute(ctx, "withdraw", map[string]any{
		"escrow_id": escrowID,
		"secret":    fmt.Sprintf("%x", secret),
	}, big.NewInt(0))
}

func (m *NearMutator) Refund(ctx context.Context, escrowID string) (*TxReceipt, error) {
	return m.execute(ctx, "refund", map[string]any{"escrow_id": escrowID}, big.NewInt(0))
}

func (m *NearMutator) PartialFill(ctx context.Context, params PartialFillParams) (*TxReceipt, error) {
	return m.execute(ctx, "process_partial_fill", map[string]any{
		"order_id":    params.OrderID,
		"fill_amount": params.FillAmount.String(),
		"executor":    params.Executor,
	}, big.NewInt(0))
}

func (m *NearMutator) Split(ctx context.Context, orderID string, amounts []*big.Int) (*TxReceipt, error) {
	strs := make([]string, len(amounts))
	for i, a := range amounts {
		strs[i] = a.String()
	}
	return m.execute(ctx, "split_order", map[string]any{
		"order_id":      orderID,
		"split_amounts": strs,
	}, big.NewInt(0))
}
