package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthSigner signs with a local private key and submits through the connected
// node. Nonce and gas come from the node at send time.
type EthSigner struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

func NewEthSigner(ctx context.Context, client *ethclient.Client, privateKeyHex string) (*EthSigner, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ethereum private key: %v", ErrConfiguration, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return &EthSigner{
		client:  client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

func (s *EthSigner) Address() string { return s.address.Hex() }

func (s *EthSigner) SignAndSend(ctx context.Context, to string, value *big.Int, data []byte) (string, error) {
	toAddr := common.HexToAddress(to)

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	gasLimit, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &toAddr,
		Value: value,
		Data:  data,
	})
	if err != nil {
		// estimation failure usually means the call would revert
		return "", fmt.Errorf("%w: gas estimation failed: %v", ErrContract, err)
	}

	tx := types.NewTransaction(nonce, toAddr, value, gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return signed.Hash().Hex(), nil
}

// NearHttpSigner delegates NEAR transaction signing to a sidecar that holds
// the account key. The relay hands over the prepared function-call data and
// gets back the submitted transaction hash.
type NearHttpSigner struct {
	url      string
	signerID string
	http     *http.Client
}

func NewNearHttpSigner(url, signerID string) *NearHttpSigner {
	return &NearHttpSigner{
		url:      url,
		signerID: signerID,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type nearSignRequest struct {
	SignerID   string `json:"signer_id"`
	ReceiverID string `json:"receiver_id"`
	Deposit    string `json:"deposit"` // yoctoNEAR
	Data       string `json:"data"`    // base64 function-call payload
}

type nearSignResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error,omitempty"`
}

func (s *NearHttpSigner) SignAndSend(ctx context.Context, to string, value *big.Int, data []byte) (string, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	payload, err := json.Marshal(nearSignRequest{
		SignerID:   s.signerID,
		ReceiverID: to,
		Deposit:    value.String(),
		Data:       base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", fmt.Errorf("marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if msg := HttpCodeCheck(resp.StatusCode); msg != "" {
		return "", fmt.Errorf("%w: %s", ErrNetwork, msg)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	var signResp nearSignResponse
	if err := json.Unmarshal(body, &signResp); err != nil {
		return "", fmt.Errorf("%w: decoding signer response: %v", ErrValidation, err)
	}
	if signResp.Error != "" {
		return "", fmt.Errorf("%w: signer rejected: %s", ErrContract, signResp.Error)
	}
	if signResp.TxHash == "" {
		return "", fmt.Errorf("%w: signer returned no tx hash", ErrValidation)
	}
	return signResp.TxHash, nil
}
