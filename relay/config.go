package relay

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"
	"github.com/shopspring/decimal"
)

type ChainEntry struct {
	RpcUrl     string `json:"rpc_url,omitempty" toml:"rpc_url,omitempty" env:"RPC_URL,overwrite"`
	EscrowAddr string `json:"escrow_address,omitempty" toml:"escrow_address,omitempty" env:"ESCROW_ADDRESS,overwrite"`
	RelayAddr  string `json:"relay_address,omitempty" toml:"relay_address,omitempty" env:"RELAY_ADDRESS,overwrite"`
	// PrivateKey is only read from the environment, never from the file
	PrivateKey string `json:"-" toml:"-" env:"PRIVATE_KEY"`
	SignerUrl  string `json:"signer_url,omitempty" toml:"signer_url,omitempty" env:"SIGNER_URL,overwrite"`
}

// AuctionConfig drives the time-decaying exchange rate.
type AuctionConfig struct {
	DurationSeconds int64             `json:"duration_seconds,omitempty" toml:"duration_seconds,omitempty" env:"DURATION_SECONDS,overwrite"`
	InitialBumpBps  int64             `json:"initial_bump_bps,omitempty" toml:"initial_bump_bps,omitempty" env:"INITIAL_BUMP_BPS,overwrite"`
	FeeBps          int64             `json:"fee_bps,omitempty" toml:"fee_bps,omitempty" env:"FEE_BPS,overwrite"`
	MinFillBps      int64             `json:"min_fill_bps,omitempty" toml:"min_fill_bps,omitempty" env:"MIN_FILL_BPS,overwrite"`
	Points          []RatePoint       `json:"points,omitempty" toml:"points,omitempty"`
	BaseRates       map[string]string `json:"base_rates,omitempty" toml:"base_rates,omitempty"`
}

// BaseRate resolves the configured exchange rate for a chain pair. A missing
// or malformed entry is an error, never a silent default -- a wrong rate here
// misprices every mirror escrow by the full exchange-rate factor.
func (a AuctionConfig) BaseRate(from, to Chain) (decimal.Decimal, error) {
	key := fmt.Sprintf("%s:%s", from, to)
	raw, ok := a.BaseRates[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no base exchange rate configured for %s", ErrConfiguration, key)
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: base exchange rate %q for %s is not a positive decimal", ErrConfiguration, raw, key)
	}
	return rate, nil
}

// RatePoint is one knot of the piecewise-linear decay schedule.
type RatePoint struct {
	DelaySeconds int64 `json:"delay_seconds" toml:"delay_seconds"`
	Coefficient  int64 `json:"coefficient" toml:"coefficient"` // bump in basis points
}

// TimelockConfig bounds the derived destination escrow offset.
type TimelockConfig struct {
	MinOffsetSeconds    int64 `json:"min_offset_seconds,omitempty" toml:"min_offset_seconds,omitempty" env:"MIN_OFFSET_SECONDS,overwrite"`
	MaxOffsetSeconds    int64 `json:"max_offset_seconds,omitempty" toml:"max_offset_seconds,omitempty" env:"MAX_OFFSET_SECONDS,overwrite"`
	SafetyMarginSeconds int64 `json:"safety_margin_seconds,omitempty" toml:"safety_margin_seconds,omitempty" env:"SAFETY_MARGIN_SECONDS,overwrite"`
}

type Config struct {
	Ethereum ChainEntry     `json:"ethereum,omitempty" toml:"ethereum,omitempty" env:",prefix=ETHEREUM_"`
	Near     ChainEntry     `json:"near,omitempty" toml:"near,omitempty" env:",prefix=NEAR_"`
	Auction  AuctionConfig  `json:"auction,omitempty" toml:"auction,omitempty" env:",prefix=AUCTION_"`
	Timelock TimelockConfig `json:"timelock,omitempty" toml:"timelock,omitempty" env:",prefix=TIMELOCK_"`

	PollIntervalSeconds int64  `json:"poll_interval_seconds,omitempty" toml:"poll_interval_seconds,omitempty" env:"POLL_INTERVAL_SECONDS,overwrite"`
	MaxBlocksPerPoll    int64  `json:"max_blocks_per_poll,omitempty" toml:"max_blocks_per_poll,omitempty" env:"MAX_BLOCKS_PER_POLL,overwrite"`
	MaxTxAttempts       int    `json:"max_tx_attempts,omitempty" toml:"max_tx_attempts,omitempty" env:"MAX_TX_ATTEMPTS,overwrite"`
	TxTimeoutSeconds    int64  `json:"tx_timeout_seconds,omitempty" toml:"tx_timeout_seconds,omitempty" env:"TX_TIMEOUT_SECONDS,overwrite"`
	MaxWholeUnits       int64  `json:"max_whole_units,omitempty" toml:"max_whole_units,omitempty" env:"MAX_WHOLE_UNITS,overwrite"`
	ListenAddr          string `json:"listen_addr,omitempty" toml:"listen_addr,omitempty" env:"LISTEN_ADDR,overwrite"`
}

func MustLoadConfig(path string) *Config {
	cfg := &Config{}
	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	if err = toml.Unmarshal(file, cfg); err != nil {
		panic(err)
	}

	// env vars (SWAP_RELAY_ETHEREUM_RPC_URL etc.) win over the file
	if err := envconfig.ProcessWith(context.Background(), cfg, envconfig.PrefixLookuper("SWAP_RELAY_", envconfig.OsLookuper())); err != nil {
		panic(err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 30
	}
	if c.MaxBlocksPerPoll == 0 {
		c.MaxBlocksPerPoll = 500
	}
	if c.MaxTxAttempts == 0 {
		c.MaxTxAttempts = 3
	}
	if c.TxTimeoutSeconds == 0 {
		c.TxTimeoutSeconds = 120
	}
	if c.MaxWholeUnits == 0 {
		c.MaxWholeUnits = 1_000_000_000
	}
	if c.Auction.DurationSeconds == 0 {
		c.Auction.DurationSeconds = 300
	}
	if c.Auction.MinFillBps == 0 {
		c.Auction.MinFillBps = 1000 // 10% of remaining
	}
	if c.Timelock.MinOffsetSeconds == 0 {
		c.Timelock.MinOffsetSeconds = 900
	}
	if c.Timelock.MaxOffsetSeconds == 0 {
		c.Timelock.MaxOffsetSeconds = 86400
	}
	if c.Timelock.SafetyMarginSeconds == 0 {
		c.Timelock.SafetyMarginSeconds = 600
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
}

// Validate reports startup-fatal misconfiguration.
func (c *Config) Validate() error {
	if c.Ethereum.RpcUrl == "" || c.Near.RpcUrl == "" {
		return fmt.Errorf("%w: both chain rpc urls are required", ErrConfiguration)
	}
	if c.Ethereum.EscrowAddr == "" || c.Near.EscrowAddr == "" {
		return fmt.Errorf("%w: both escrow contract addresses are required", ErrConfiguration)
	}
	if c.Auction.FeeBps < 0 || c.Auction.FeeBps >= 10000 {
		return fmt.Errorf("%w: auction fee_bps must be in [0, 10000)", ErrConfiguration)
	}
	if c.Auction.InitialBumpBps < 0 {
		return fmt.Errorf("%w: auction initial_bump_bps must not be negative", ErrConfiguration)
	}
	if c.Auction.MinFillBps < 0 || c.Auction.MinFillBps >= 10000 {
		return fmt.Errorf("%w: auction min_fill_bps must be in [0, 10000)", ErrConfiguration)
	}
	for _, dir := range [][2]Chain{{ChainEthereum, ChainNear}, {ChainNear, ChainEthereum}} {
		if _, err := c.Auction.BaseRate(dir[0], dir[1]); err != nil {
			return err
		}
	}
	for i := 1; i < len(c.Auction.Points); i++ {
		if c.Auction.Points[i].DelaySeconds <= c.Auction.Points[i-1].DelaySeconds {
			return fmt.Errorf("%w: auction points must be sorted ascending by delay", ErrConfiguration)
		}
	}
	if c.Timelock.MinOffsetSeconds >= c.Timelock.MaxOffsetSeconds {
		return fmt.Errorf("%w: timelock min_offset_seconds must be below max_offset_seconds", ErrConfiguration)
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *Config) TxTimeout() time.Duration {
	return time.Duration(c.TxTimeoutSeconds) * time.Second
}
