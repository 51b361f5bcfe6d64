package relay

import (
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHashHex = "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"

func TestEventValidate(t *testing.T) {
	hash, err := ParseSecretHash(testHashHex)
	require.NoError(t, err)

	valid := Event{
		Kind:   EventEscrowCreated,
		Chain:  ChainNear,
		Height: 10,
		Escrow: &EscrowCreatedPayload{
			OrderID:    "order-1",
			SecretHash: hash,
			Amount:     big.NewInt(100),
		},
	}
	assert.NoError(t, valid.Validate())

	missingPayload := Event{Kind: EventCompleted}
	assert.ErrorIs(t, missingPayload.Validate(), ErrValidation)

	zeroAmount := valid
	zeroAmount.Escrow = &EscrowCreatedPayload{OrderID: "order-1", SecretHash: hash, Amount: big.NewInt(0)}
	assert.ErrorIs(t, zeroAmount.Validate(), ErrValidation)

	zeroHash := valid
	zeroHash.Escrow = &EscrowCreatedPayload{OrderID: "order-1", Amount: big.NewInt(100)}
	assert.ErrorIs(t, zeroHash.Validate(), ErrValidation)

	emptySecret := Event{
		Kind:      EventCompleted,
		Completed: &CompletedPayload{OrderID: "order-1", SecretHash: hash},
	}
	assert.ErrorIs(t, emptySecret.Validate(), ErrValidation)

	unknownKind := Event{Kind: "reorged"}
	assert.ErrorIs(t, unknownKind.Validate(), ErrValidation)
}

func TestParseSecretHash(t *testing.T) {
	withPrefix, err := ParseSecretHash("0x" + testHashHex)
	require.NoError(t, err)
	bare, err := ParseSecretHash(testHashHex)
	require.NoError(t, err)
	assert.Equal(t, withPrefix, bare)
	assert.Equal(t, testHashHex, HashToHex(bare))

	_, err = ParseSecretHash("abcd")
	assert.ErrorIs(t, err, ErrValidation, "short hash rejected")

	_, err = ParseSecretHash("zz" + testHashHex[2:])
	assert.ErrorIs(t, err, ErrValidation, "non-hex rejected")
}

func TestParseU128(t *testing.T) {
	v, err := parseU128("340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211455", v.String())

	_, err = parseU128("")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = parseU128("-5")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = parseU128("12.5")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecodeNearEvents(t *testing.T) {
	created, err := decodeNearEvent(EventEscrowCreated, nearEventEnvelope{
		EventType:   "escrow_created",
		OrderID:     "order-1",
		SecretHash:  testHashHex,
		Amount:      "1000000000000000000000000",
		TimelockNs:  1_700_000_000_000_000_000,
		Initiator:   "alice.near",
		Recipient:   "relay.near",
		BlockHeight: 100,
		TxHash:      "neartx1",
	})
	require.NoError(t, err)
	assert.Equal(t, EventEscrowCreated, created.Kind)
	assert.Equal(t, "1000000000000000000000000", created.Escrow.Amount.String())
	assert.Equal(t, int64(1_700_000_000), created.Escrow.Timelock.Unix())

	completed, err := decodeNearEvent(EventCompleted, nearEventEnvelope{
		EventType:   "order_completed",
		OrderID:     "order-1",
		SecretHash:  testHashHex,
		Secret:      "00112233",
		BlockHeight: 110,
		TxHash:      "neartx2",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33}, completed.Completed.Secret)

	fill, err := decodeNearEvent(EventPartialFill, nearEventEnvelope{
		EventType:   "partially_filled",
		OrderID:     "order-1",
		FillAmount:  "300",
		Remaining:   "700",
		Executor:    "bob.near",
		BlockHeight: 120,
		TxHash:      "neartx3",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), fill.PartialFill.FillAmount.Int64())
	assert.Equal(t, int64(700), fill.PartialFill.RemainingAmount.Int64())

	refunded, err := decodeNearEvent(EventRefunded, nearEventEnvelope{
		EventType:   "refunded",
		OrderID:     "order-1",
		SecretHash:  testHashHex,
		Amount:      "1000",
		Reason:      "timelock expired",
		BlockHeight: 130,
		TxHash:      "neartx4",
	})
	require.NoError(t, err)
	assert.Equal(t, "timelock expired", refunded.Refunded.Reason)

	// malformed amount never produces a partially-decoded event
	_, err = decodeNearEvent(EventEscrowCreated, nearEventEnvelope{
		OrderID:    "order-1",
		SecretHash: testHashHex,
		Amount:     "not-a-number",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecodeEthLogs(t *testing.T) {
	logger := zerolog.New(os.Stdout)
	src := &EthEventSource{abi: mustEscrowABI(), logger: &logger}
	hash, err := ParseSecretHash(testHashHex)
	require.NoError(t, err)

	createdData, err := src.abi.Events["EscrowCreated"].Inputs.NonIndexed().Pack(
		"order-1",
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		big.NewInt(1_000_000),
		big.NewInt(1_700_000_000),
	)
	require.NoError(t, err)

	ev, err := src.decodeLog(types.Log{
		Topics:      []common.Hash{src.abi.Events["EscrowCreated"].ID, common.Hash(hash)},
		Data:        createdData,
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xabc"),
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, EventEscrowCreated, ev.Kind)
	assert.Equal(t, "order-1", ev.Escrow.OrderID)
	assert.Equal(t, hash, ev.Escrow.SecretHash)
	assert.Equal(t, int64(1_000_000), ev.Escrow.Amount.Int64())
	assert.Equal(t, int64(42), ev.Height)

	completedData, err := src.abi.Events["OrderCompleted"].Inputs.NonIndexed().Pack(
		"order-1",
		[]byte{0xde, 0xad, 0xbe, 0xef},
	)
	require.NoError(t, err)

	ev, err = src.decodeLog(types.Log{
		Topics:      []common.Hash{src.abi.Events["OrderCompleted"].ID, common.Hash(hash)},
		Data:        completedData,
		BlockNumber: 43,
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, EventCompleted, ev.Kind)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, ev.Completed.Secret)

	// a foreign event in the same contract is skipped, not an error
	ev, err = src.decodeLog(types.Log{
		Topics: []common.Hash{common.HexToHash("0x123456")},
	})
	require.NoError(t, err)
	assert.Nil(t, ev)

	_, err = src.decodeLog(types.Log{})
	assert.ErrorIs(t, err, ErrValidation, "log without topics")
}

func TestVerifySecret(t *testing.T) {
	secret, hash := testSecret(t)
	assert.True(t, VerifySecret(secret, hash))
	assert.False(t, VerifySecret([]byte("some other bytes"), hash))
}
