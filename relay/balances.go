package relay

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	ETHEREUM_NETWORK = "ethereum"
	NEAR_NETWORK     = "near"
)

// BalanceTracker snapshots the relay's liquidity on both chains into the
// balances table so operators can watch for drain without touching the
// coordinators.
type BalanceTracker struct {
	ethClient  *ethclient.Client
	nearClient *NearClient
	cfg        *Config
	store      *Store
	logger     *zerolog.Logger
}

func NewBalanceTracker(ethClient *ethclient.Client, nearClient *NearClient, cfg *Config, store *Store, logger *zerolog.Logger) *BalanceTracker {
	return &BalanceTracker{
		ethClient:  ethClient,
		nearClient: nearClient,
		cfg:        cfg,
		store:      store,
		logger:     logger,
	}
}

func (t *BalanceTracker) RunEthereumBalance(ctx context.Context) {
	address := t.cfg.Ethereum.RelayAddr
	useTs := time.Now()

	wei, err := t.ethClient.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		t.logger.Error().Err(err).
			Str("address", address).
			Str("network", ETHEREUM_NETWORK).
			Msg("failed to get ETH balance")
		return
	}

	balance := DbBalance{
		Timestamp: useTs.Unix(),
		Balance:   wei.String(),
		Exponent:  EthereumDecimals,
		Token:     "ETH",
		Address:   address,
		Network:   ETHEREUM_NETWORK,
	}

	t.logger.Debug().Str("network", ETHEREUM_NETWORK).Msg("inserting ETH balance")
	if err := t.store.InsertBalance(balance); err != nil {
		t.logger.Error().Err(err).Str("network", ETHEREUM_NETWORK).Msg("failed to insert balance")
		return
	}

	t.logger.Info().
		Str("ETH", decimal.NewFromBigInt(wei, -EthereumDecimals).String()).
		Str("network", ETHEREUM_NETWORK).
		Str("datetime", useTs.Format(time.RFC3339)).
		Msg("current balance")
}

func (t *BalanceTracker) RunNearBalance(ctx context.Context) {
	address := t.cfg.Near.RelayAddr
	useTs := time.Now()

	yocto, err := t.nearClient.AccountBalance(ctx, address)
	if err != nil {
		t.logger.Error().Err(err).
			Str("address", address).
			Str("network", NEAR_NETWORK).
			Msg("failed to get NEAR balance")
		return
	}

	balance := DbBalance{
		Timestamp: useTs.Unix(),
		Balance:   yocto.String(),
		Exponent:  NearDecimals,
		Token:     "NEAR",
		Address:   address,
		Network:   NEAR_NETWORK,
	}

	t.logger.Debug().Str("network", NEAR_NETWORK).Msg("inserting NEAR balance")
	if err := t.store.InsertBalance(balance); err != nil {
		t.logger.Error().Err(err).Str("network", NEAR_NETWORK).Msg("failed to insert balance")
		return
	}

	t.logger.Info().
		Str("NEAR", decimal.NewFromBigInt(yocto, -NearDecimals).String()).
		Str("network", NEAR_NETWORK).
		Str("datetime", useTs.Format(time.RFC3339)).
		Msg("current balance")
}

// RunOnce snapshots both chains. Called from the main loop on its own ticker.
func (t *BalanceTracker) RunOnce(ctx context.Context) {
	t.RunEthereumBalance(ctx)
	t.RunNearBalance(ctx)
}
