package relay

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store owns the relay's sqlite database: the processed-message ledger,
// per-chain checkpoints, the advisory order-status cache and balance
// snapshots.
type Store struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// OpenStore opens (or creates) the database at path. A corrupt database is
// deleted and recreated empty with a warning instead of crashing the relay --
// the ledger only guards idempotency and the chain remains the source of
// truth, so recovering with re-delivery beats refusing to start.
func OpenStore(path string, logger *zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := integrityCheck(db); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("ledger db corrupt -- resetting to empty")
		db.Close()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove corrupt db: %w", err)
		}
		db, err = sql.Open("sqlite3", path)
		if err != nil {
			return nil, fmt.Errorf("reopen db: %w", err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func integrityCheck(db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned %q", result)
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS processed_messages (
			message_id TEXT PRIMARY KEY,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			chain TEXT PRIMARY KEY,
			height INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS order_status (
			order_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			filled_amount TEXT,
			remaining_amount TEXT,
			fill_count INTEGER DEFAULT 0,
			last_error TEXT,
			last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS balances (
			address TEXT,
			balance TEXT,
			exponent INTEGER,
			token TEXT,
			network TEXT,
			timestamp INTEGER
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetCheckpoint returns the last processed position for a chain, 0 if the
// chain has never been polled.
func (s *Store) GetCheckpoint(chain Chain) (int64, error) {
	var height int64
	err := s.db.QueryRow("SELECT height FROM checkpoints WHERE chain = ?", string(chain)).Scan(&height)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query checkpoint: %w", err)
	}
	return height, nil
}

// SetCheckpoint advances a chain's checkpoint. Called only after a poll batch
// is fully handled; a crash before this re-delivers the batch.
func (s *Store) SetCheckpoint(chain Chain, height int64) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (chain, height, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(chain) DO UPDATE SET height = excluded.height, updated_at = CURRENT_TIMESTAMP
	`, string(chain), height)
	if err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}

type DbBalance struct {
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Exponent  int64  `json:"exponent"`
	Token     string `json:"token"`
	Network   string `json:"network"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Store) InsertBalance(b DbBalance) error {
	_, err := s.db.Exec(`
		INSERT INTO balances (address, balance, exponent, token, network, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.Address, b.Balance, b.Exponent, b.Token, b.Network, b.Timestamp)
	return err
}

func (s *Store) GetLatestBalances(network string) ([]DbBalance, error) {
	rows, err := s.db.Query(`
        SELECT address, balance, exponent, token, network, timestamp
        FROM balances
        WHERE (address, token, network, timestamp) IN (
            SELECT address, token, network, MAX(timestamp)
            FROM balances
            GROUP BY address, token, network
        )
    `)
	if err != nil {
		return []DbBalance{}, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	balances := []DbBalance{}
	for rows.Next() {
		var b DbBalance
		if err := rows.Scan(&b.Address, &b.Balance, &b.Exponent, &b.Token, &b.Network, &b.Timestamp); err != nil {
			return balances, fmt.Errorf("scan error: %w", err)
		}
		if network == "" || b.Network == network {
			balances = append(balances, b)
		}
	}
	return balances, nil
}

func (s *Store) GetBalancesInTimeRange(network string, from, to time.Time) ([]DbBalance, error) {
	rows, err := s.db.Query(`
        SELECT address, balance, exponent, token, network, timestamp
        FROM balances
        WHERE network = ? AND timestamp >= ? AND timestamp <= ?
        ORDER BY timestamp DESC
    `, network, from.Unix(), to.Unix())
	if err != nil {
		return []DbBalance{}, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	balances := []DbBalance{}
	for rows.Next() {
		var b DbBalance
		if err := rows.Scan(&b.Address, &b.Balance, &b.Exponent, &b.Token, &b.Network, &b.Timestamp); err != nil {
			return balances, fmt.Errorf("scan error: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, nil
}
