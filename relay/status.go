package relay

import (
	"database/sql"
	"fmt"
	"time"
)

// OrderStatusValue is the advisory per-order state the coordinator exposes to
// operators. Authoritative truth always remains on-chain; this cache must
// never gate a financial action.
type OrderStatusValue string

const (
	StatusCreated         OrderStatusValue = "Created"
	StatusEscrowCreated   OrderStatusValue = "EscrowCreated"
	StatusPartiallyFilled OrderStatusValue = "PartiallyFilled"
	StatusFullyFilled     OrderStatusValue = "FullyFilled"
	StatusRefunded        OrderStatusValue = "Refunded"
	StatusError           OrderStatusValue = "Error"
)

type DbOrderStatus struct {
	OrderID         string           `json:"order_id"`
	Status          OrderStatusValue `json:"status"`
	FilledAmount    string           `json:"filled_amount"`
	RemainingAmount string           `json:"remaining_amount"`
	FillCount       int64            `json:"fill_count"`
	LastError       string           `json:"last_error,omitempty"`
	LastUpdated     time.Time        `json:"last_updated"`
}

// UpsertOrderStatus records the latest observed state of an order.
func (s *Store) UpsertOrderStatus(o DbOrderStatus) error {
	_, err := s.db.Exec(`
		INSERT INTO order_status (order_id, status, filled_amount, remaining_amount, fill_count, last_error, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(order_id) DO UPDATE SET
			status = excluded.status,
			filled_amount = excluded.filled_amount,
			remaining_amount = excluded.remaining_amount,
			fill_count = excluded.fill_count,
			last_error = excluded.last_error,
			last_updated = CURRENT_TIMESTAMP
	`, o.OrderID, string(o.Status), o.FilledAmount, o.RemainingAmount, o.FillCount, o.LastError)
	if err != nil {
		return fmt.Errorf("upsert order status: %w", err)
	}
	return nil
}

// GetOrderStatus returns the cached state of one order.
func (s *Store) GetOrderStatus(orderID string) (*DbOrderStatus, error) {
	row := s.db.QueryRow(`
		SELECT order_id, status, filled_amount, remaining_amount, fill_count, last_error, last_updated
		FROM order_status WHERE order_id = ?
	`, orderID)

	var o DbOrderStatus
	var status string
	err := row.Scan(&o.OrderID, &status, &o.FilledAmount, &o.RemainingAmount, &o.FillCount, &o.LastError, &o.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("query order status: %w", err)
	}
	o.Status = OrderStatusValue(status)
	return &o, nil
}

// SettlementStats aggregates the order-status cache for the stats endpoint.
type SettlementStats struct {
	TotalOrders int64            `json:"total_orders"`
	ByStatus    map[string]int64 `json:"by_status"`
}

func (s *Store) GetSettlementStats() (*SettlementStats, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM order_status GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("query settlement stats: %w", err)
	}
	defer rows.Close()

	stats := &SettlementStats{ByStatus: map[string]int64{}}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scan error: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalOrders += count
	}
	return stats, nil
}

// ListOrdersByStatus returns cached orders, optionally filtered by status.
// Error-state orders surface here distinctly from Settled ones -- silent
// failure is not acceptable with funds at stake.
func (s *Store) ListOrdersByStatus(status OrderStatusValue) ([]DbOrderStatus, error) {
	query := `
		SELECT order_id, status, filled_amount, remaining_amount, fill_count, last_error, last_updated
		FROM order_status`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY last_updated DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query order statuses: %w", err)
	}
	defer rows.Close()

	orders := []DbOrderStatus{}
	for rows.Next() {
		var o DbOrderStatus
		var st string
		if err := rows.Scan(&o.OrderID, &st, &o.FilledAmount, &o.RemainingAmount, &o.FillCount, &o.LastError, &o.LastUpdated); err != nil {
			return orders, fmt.Errorf("scan error: %w", err)
		}
		o.Status = OrderStatusValue(st)
		orders = append(orders, o)
	}
	return orders, nil
}
