package relay

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// escrowABI is the observable surface of the EVM escrow contract: lifecycle
// events plus the view/mutate functions the relay drives.
const escrowABI = `[
  {"type":"event","name":"EscrowCreated","inputs":[
    {"name":"hashlock","type":"bytes32","indexed":true},
    {"name":"orderId","type":"string","indexed":false},
    {"name":"initiator","type":"address","indexed":false},
    {"name":"recipient","type":"address","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"deadline","type":"uint256","indexed":false}]},
  {"type":"event","name":"OrderCompleted","inputs":[
    {"name":"hashlock","type":"bytes32","indexed":true},
    {"name":"orderId","type":"string","indexed":false},
    {"name":"secret","type":"bytes","indexed":false}]},
  {"type":"event","name":"PartiallyFilled","inputs":[
    {"name":"hashlock","type":"bytes32","indexed":true},
    {"name":"orderId","type":"string","indexed":false},
    {"name":"fillAmount","type":"uint256","indexed":false},
    {"name":"remainingAmount","type":"uint256","indexed":false},
    {"name":"executor","type":"address","indexed":false}]},
  {"type":"event","name":"Refunded","inputs":[
    {"name":"hashlock","type":"bytes32","indexed":true},
    {"name":"orderId","type":"string","indexed":false},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"function","name":"getEscrowByHash","stateMutability":"view","inputs":[
    {"name":"hashlock","type":"bytes32"}],"outputs":[
    {"name":"initiator","type":"address"},
    {"name":"recipient","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"deadline","type":"uint256"},
    {"name":"withdrawn","type":"bool"},
    {"name":"refunded","type":"bool"},
    {"name":"secret","type":"bytes"}]},
  {"type":"function","name":"getEscrowByInitiator","stateMutability":"view","inputs":[
    {"name":"initiator","type":"address"}],"outputs":[
    {"name":"hashlock","type":"bytes32"},
    {"name":"recipient","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"deadline","type":"uint256"},
    {"name":"withdrawn","type":"bool"},
    {"name":"refunded","type":"bool"},
    {"name":"secret","type":"bytes"}]},
  {"type":"function","name":"getOrderState","stateMutability":"view","inputs":[
    {"name":"orderId","type":"string"}],"outputs":[
    {"name":"filledAmount","type":"uint256"},
    {"name":"remainingAmount","type":"uint256"},
    {"name":"fillCount","type":"uint32"},
    {"name":"isFullyFilled","type":"bool"},
    {"name":"isCancelled","type":"bool"}]},
  {"type":"function","name":"createEscrow","stateMutability":"payable","inputs":[
    {"name":"recipient","type":"address"},
    {"name":"hashlock","type":"bytes32"},
    {"name":"amount","type":"uint256"},
    {"name":"safetyDeposit","type":"uint256"},
    {"name":"timelockOffset","type":"uint256"},
    {"name":"sourceOrderId","type":"string"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[
    {"name":"hashlock","type":"bytes32"},
    {"name":"secret","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[
    {"name":"hashlock","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"partialFill","stateMutability":"nonpayable","inputs":[
    {"name":"orderId","type":"string"},
    {"name":"fillAmount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"splitOrder","stateMutability":"nonpayable","inputs":[
    {"name":"orderId","type":"string"},
    {"name":"amounts","type":"uint256[]"}],"outputs":[]}
]`

func mustEscrowABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		panic(err)
	}
	return parsed
}

// VerifySecret checks a revealed preimage against a stored hashlock using the
// EVM-native hash. Both contracts commit Keccak256(secret).
func VerifySecret(secret []byte, hashlock [32]byte) bool {
	return common.BytesToHash(crypto.Keccak256(secret)) == common.Hash(hashlock)
}

// EthEventSource derives domain events from the escrow contract's logs,
// polling forward from the persisted checkpoint in bounded block windows.
type EthEventSource struct {
	client    *ethclient.Client
	contract  common.Address
	abi       abi.ABI
	store     *Store
	maxBlocks int64
	logger    *zerolog.Logger
}

func NewEthEventSource(client *ethclient.Client, contract string, store *Store, maxBlocks int64, logger *zerolog.Logger) *EthEventSource {
	return &EthEventSource{
		client:    client,
		contract:  common.HexToAddress(contract),
		abi:       mustEscrowABI(),
		store:     store,
		maxBlocks: maxBlocks,
		logger:    logger,
	}
}

func (s *EthEventSource) Chain() Chain { return ChainEthereum }

func (s *EthEventSource) Poll(ctx context.Context) ([]Event, int64, error) {
	from, err := s.store.GetCheckpoint(ChainEthereum)
	if err != nil {
		return nil, 0, err
	}
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	to := int64(head)
	if to > from+s.maxBlocks {
		to = from + s.maxBlocks
	}
	if to <= from {
		return nil, from, nil
	}

	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(from + 1),
		ToBlock:   big.NewInt(to),
		Addresses: []common.Address{s.contract},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	events := []Event{}
	for _, lg := range logs {
		ev, err := s.decodeLog(lg)
		if err != nil {
			s.logger.Error().Err(err).
				Str("tx_hash", lg.TxHash.Hex()).
				Uint64("block", lg.BlockNumber).
				Msg("skipping undecodable escrow log")
			continue
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}

	sortEventsByHeight(events)
	return events, to, nil
}

func (s *EthEventSource) decodeLog(lg types.Log) (*Event, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("%w: log without topics", ErrValidation)
	}

	switch lg.Topics[0] {
	case s.abi.Events["EscrowCreated"].ID:
		return s.decodeEscrowCreated(lg)
	case s.abi.Events["OrderCompleted"].ID:
		return s.decodeCompleted(lg)
	case s.abi.Events["PartiallyFilled"].ID:
		return s.decodePartialFill(lg)
	case s.abi.Events["Refunded"].ID:
		return s.decodeRefunded(lg)
	}
	// not one of ours, e.g. an unrelated contract event in a shared proxy
	return nil, nil
}

func (s *EthEventSource) indexedHash(lg types.Log) ([32]byte, error) {
	if len(lg.Topics) < 2 {
		return [32]byte{}, fmt.Errorf("%w: log missing hashlock topic", ErrValidation)
	}
	return [32]byte(lg.Topics[1]), nil
}

func (s *EthEventSource) decodeEscrowCreated(lg types.Log) (*Event, error) {
	hash, err := s.indexedHash(lg)
	if err != nil {
		return nil, err
	}
	var out struct {
		OrderId   string
		Initiator common.Address
		Recipient common.Address
		Amount    *big.Int
		Deadline  *big.Int
	}
	if err := s.abi.UnpackIntoInterface(&out, "EscrowCreated", lg.Data); err != nil {
		return nil, fmt.Errorf("%w: unpacking EscrowCreated: %v", ErrValidation, err)
	}
	ev := &Event{
		Kind:   EventEscrowCreated,
		Chain:  ChainEthereum,
		Height: int64(lg.BlockNumber),
		TxHash: lg.TxHash.Hex(),
		Escrow: &EscrowCreatedPayload{
			OrderID:    out.OrderId,
			SecretHash: hash,
			Amount:     out.Amount,
			Timelock:   time.Unix(out.Deadline.Int64(), 0),
			Initiator:  out.Initiator.Hex(),
			Recipient:  out.Recipient.Hex(),
		},
	}
	return ev, ev.Validate()
}

func (s *EthEventSource) decodeCompleted(lg types.Log) (*Event, error) {
	hash, err := s.indexedHash(lg)
	if err != nil {
		return nil, err
	}
	var out struct {
		OrderId string
		Secret  []byte
	}
	if err := s.abi.UnpackIntoInterface(&out, "OrderCompleted", lg.Data); err != nil {
		return nil, fmt.Errorf("%w: unpacking OrderCompleted: %v", ErrValidation, err)
	}
	ev := &Event{
		Kind:   EventCompleted,
		Chain:  ChainEthereum,
		Height: int64(lg.BlockNumber),
		TxHash: lg.TxHash.Hex(),
		Completed: &CompletedPayload{
			OrderID:    out.OrderId,
			SecretHash: hash,
			Secret:     out.Secret,
		},
	}
	return ev, ev.Validate()
}

func (s *EthEventSource) decodePartialFill(lg types.Log) (*Event, error) {
	var out struct {
		OrderId         string
		FillAmount      *big.Int
		RemainingAmount *big.Int
		Executor        common.Address
	}
	if err := s.abi.UnpackIntoInterface(&out, "PartiallyFilled", lg.Data); err != nil {
		return nil, fmt.Errorf("%w: unpacking PartiallyFilled: %v", ErrValidation, err)
	}
	ev := &Event{
		Kind:   EventPartialFill,
		Chain:  ChainEthereum,
		Height: int64(lg.BlockNumber),
		TxHash: lg.TxHash.Hex(),
		PartialFill: &PartialFillPayload{
			OrderID:         out.OrderId,
			FillAmount:      out.FillAmount,
			RemainingAmount: out.RemainingAmount,
			Executor:        out.Executor.Hex(),
		},
	}
	return ev, ev.Validate()
}

func (s *EthEventSource) decodeRefunded(lg types.Log) (*Event, error) {
	hash, err := s.indexedHash(lg)
	if err != nil {
		return nil, err
	}
	var out struct {
		OrderId string
		Amount  *big.Int
	}
	if err := s.abi.UnpackIntoInterface(&out, "Refunded", lg.Data); err != nil {
		return nil, fmt.Errorf("%w: unpacking Refunded: %v", ErrValidation, err)
	}
	ev := &Event{
		Kind:   EventRefunded,
		Chain:  ChainEthereum,
		Height: int64(lg.BlockNumber),
		TxHash: lg.TxHash.Hex(),
		Refunded: &RefundedPayload{
			OrderID:    out.OrderId,
			SecretHash: hash,
			Amount:     out.Amount,
		},
	}
	return ev, ev.Validate()
}

// EthRegistry implements EscrowRegistry over the escrow contract's view
// functions.
type EthRegistry struct {
	client   *ethclient.Client
	contract common.Address
	abi      abi.ABI
}

func NewEthRegistry(client *ethclient.Client, contract string) *EthRegistry {
	return &EthRegistry{
		client:   client,
		contract: common.HexToAddress(contract),
		abi:      mustEscrowABI(),
	}
}

func (r *EthRegistry) callView(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: packing %s: %v", ErrValidation, method, err)
	}
	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	out, err := r.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking %s result: %v", ErrValidation, method, err)
	}
	return out, nil
}

func (r *EthRegistry) FindBySecretHash(ctx context.Context, hash [32]byte) (*EscrowInfo, error) {
	out, err := r.callView(ctx, "getEscrowByHash", hash)
	if err != nil {
		return nil, err
	}
	initiator := out[0].(common.Address)
	if initiator == (common.Address{}) {
		return nil, fmt.Errorf("%w: no escrow for hash %s", ErrNotFound, HashToHex(hash))
	}
	return &EscrowInfo{
		ID:        HashToHex(hash),
		Chain:     ChainEthereum,
		Initiator: initiator.Hex(),
		Recipient: out[1].(common.Address).Hex(),
		Hashlock:  hash,
		Amount:    out[2].(*big.Int),
		Deadline:  time.Unix(out[3].(*big.Int).Int64(), 0),
		Withdrawn: out[4].(bool),
		Refunded:  out[5].(bool),
		Secret:    out[6].([]byte),
	}, nil
}

func (r *EthRegistry) FindByInitiator(ctx context.Context, addr string) (*EscrowInfo, error) {
	out, err := r.callView(ctx, "getEscrowByInitiator", common.HexToAddress(addr))
	if err != nil {
		return nil, err
	}
	hash := out[0].([32]byte)
	if hash == ([32]byte{}) {
		return nil, fmt.Errorf("%w: no escrow for initiator %s", ErrNotFound, addr)
	}
	return &EscrowInfo{
		ID:        HashToHex(hash),
		Chain:     ChainEthereum,
		Initiator: addr,
		Recipient: out[1].(common.Address).Hex(),
		Hashlock:  hash,
		Amount:    out[2].(*big.Int),
		Deadline:  time.Unix(out[3].(*big.Int).Int64(), 0),
		Withdrawn: out[4].(bool),
		Refunded:  out[5].(bool),
		Secret:    out[6].([]byte),
	}, nil
}

func (r *EthRegistry) GetOrderState(ctx context.Context, orderID string) (*OrderState, error) {
	out, err := r.callView(ctx, "getOrderState", orderID)
	if err != nil {
		return nil, err
	}
	filled := out[0].(*big.Int)
	remaining := out[1].(*big.Int)
	if filled.Sign() == 0 && remaining.Sign() == 0 {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return &OrderState{
		OrderID:         orderID,
		FilledAmount:    filled,
		RemainingAmount: remaining,
		FillCount:       int(out[2].(uint32)),
		IsFullyFilled:   out[3].(bool),
		IsCancelled:     out[4].(bool),
	}, nil
}

// EthMutator implements EscrowMutator by packing calldata and delegating to
// the signer collaborator, then waiting for the mined receipt.
type EthMutator struct {
	client    *ethclient.Client
	contract  common.Address
	abi       abi.ABI
	signer    Signer
	txTimeout time.Duration
	logger    *zerolog.Logger
}

func NewEthMutator(client *ethclient.Client, contract string, signer Signer, txTimeout time.Duration, logger *zerolog.Logger) *EthMutator {
	return &EthMutator{
		client:    client,
		contract:  common.HexToAddress(contract),
		abi:       mustEscrowABI(),
		signer:    signer,
		txTimeout: txTimeout,
		logger:    logger,
	}
}

func (m *EthMutator) execute(ctx context.Context, value *big.Int, method string, args ...any) (*TxReceipt, error) {
	data, err := m.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: packing %s: %v", ErrValidation, method, err)
	}
	txHash, err := m.signer.SignAndSend(ctx, m.contract.Hex(), value, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTxRejected, err)
	}
	return m.waitForReceipt(ctx, txHash)
}

func (m *EthMutator) waitForReceipt(ctx context.Context, txHash string) (*TxReceipt, error) {
	deadline := time.Now().Add(m.txTimeout)
	hash := common.HexToHash(txHash)
	for {
		receipt, err := m.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("%w: eth tx %s reverted", ErrTxRejected, txHash)
			}
			return &TxReceipt{TxHash: txHash, Height: receipt.BlockNumber.Int64(), Ok: true}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: eth tx %s", ErrTxTimeout, txHash)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTxTimeout, ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
}

func (m *EthMutator) CreateEscrow(ctx context.Context, params CreateEscrowParams) (*TxReceipt, error) {
	value := new(big.Int).Add(params.Amount, params.SafetyDeposit)
	receipt, err := m.execute(ctx, value, "createEscrow",
		common.HexToAddress(params.Recipient),
		params.Hashlock,
		params.Amount,
		params.SafetyDeposit,
		big.NewInt(int64(params.TimelockOffset.Seconds())),
		params.SourceOrderID,
	)
	if err != nil && isDuplicateEscrowErr(err) {
		m.logger.Debug().Str("order_id", params.SourceOrderID).Msg("eth escrow already exists -- treating create as no-op")
		return &TxReceipt{Ok: true}, nil
	}
	return receipt, err
}

func (m *EthMutator) Withdraw(ctx context.Context, escrowID string, secret []byte) (*TxReceipt, error) {
	hash, err := ParseSecretHash(escrowID)
	if err != nil {
		return nil, err
	}
	return m.execute(ctx, big.NewInt(0), "withdraw", hash, secret)
}

func (m *EthMutator) Refund(ctx context.Context, escrowID string) (*TxReceipt, error) {
	hash, err := ParseSecretHash(escrowID)
	if err != nil {
		return nil, err
	}
	return m.execute(ctx, big.NewInt(0), "refund", hash)
}

func (m *EthMutator) PartialFill(ctx context.Context, params PartialFillParams) (*TxReceipt, error) {
	return m.execute(ctx, big.NewInt(0), "partialFill", params.OrderID, params.FillAmount)
}

func (m *EthMutator) Split(ctx context.Context, orderID string, amounts []*big.Int) (*TxReceipt, error) {
	return m.execute(ctx, big.NewInt(0), "splitOrder", orderID, amounts)
}
