package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthSecretScanner recovers a revealed preimage by scanning recent
// OrderCompleted logs for the hashlock. Used when the completion event itself
// was missed, e.g. after a checkpoint reset.
type EthSecretScanner struct {
	client     *ethclient.Client
	contract   common.Address
	abi        abi.ABI
	scanBlocks int64
}

func NewEthSecretScanner(client *ethclient.Client, contract string, scanBlocks int64) *EthSecretScanner {
	return &EthSecretScanner{
		client:     client,
		contract:   common.HexToAddress(contract),
		abi:        mustEscrowABI(),
		scanBlocks: scanBlocks,
	}
}

func (s *EthSecretScanner) ScanRecentSecrets(ctx context.Context, hash [32]byte) ([]byte, error) {
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	from := int64(head) - s.scanBlocks
	if from < 0 {
		from = 0
	}

	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(from),
		ToBlock:   big.NewInt(int64(head)),
		Addresses: []common.Address{s.contract},
		Topics: [][]common.Hash{
			{s.abi.Events["OrderCompleted"].ID},
			{common.Hash(hash)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if len(logs) == 0 {
		return nil, fmt.Errorf("%w: no completion log for hash %s", ErrNotFound, HashToHex(hash))
	}

	var out struct {
		OrderId string
		Secret  []byte
	}
	if err := s.abi.UnpackIntoInterface(&out, "OrderCompleted", logs[len(logs)-1].Data); err != nil {
		return nil, fmt.Errorf("%w: unpacking OrderCompleted: %v", ErrValidation, err)
	}
	return out.Secret, nil
}

// NearSecretScanner asks the escrow contract directly for a revealed preimage.
type NearSecretScanner struct {
	client   *NearClient
	contract string
}

func NewNearSecretScanner(client *NearClient, contract string) *NearSecretScanner {
	return &NearSecretScanner{client: client, contract: contract}
}

func (s *NearSecretScanner) ScanRecentSecrets(ctx context.Context, hash [32]byte) ([]byte, error) {
	raw, err := s.client.ViewFunction(ctx, s.contract, "get_revealed_secret", map[string]any{
		"secret_hash": HashToHex(hash),
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: no revealed secret for hash %s", ErrNotFound, HashToHex(hash))
	}
	var hexSecret string
	if err := json.Unmarshal(raw, &hexSecret); err != nil {
		return nil, fmt.Errorf("%w: decoding revealed secret: %v", ErrValidation, err)
	}
	return parseHexBytes(hexSecret)
}
