package olap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) Processed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM olap_processed_events WHERE event_id = $1)`,
		eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, eventID string) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO olap_processed_events (event_id) VALUES ($1)
		 ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertOrderFact(ctx context.Context, f OrderFact) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO olap_order_facts (order_id, customer_id, total_amount, status, placed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (order_id) DO UPDATE SET
		     customer_id  = EXCLUDED.customer_id,
		     total_amount = EXCLUDED.total_amount,
		     status       = EXCLUDED.status,
		     placed_at    = EXCLUDED.placed_at`,
		f.OrderID, f.CustomerID, f.TotalAmount, f.Status, f.PlacedAt)
	if err != nil {
		return fmt.Errorf("upsert order fact: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE olap_order_facts SET status = $2 WHERE order_id = $1`, orderID, status)
	if err != nil {
		return fmt.Errorf("set order fact status: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertInvoiceFact(ctx context.Context, f InvoiceFact) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO olap_invoice_facts (invoice_id, order_id, amount, status, issued_at, due_date, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (invoice_id) DO UPDATE SET
		     order_id  = EXCLUDED.order_id,
		     amount    = EXCLUDED.amount,
		     status    = EXCLUDED.status,
		     issued_at = EXCLUDED.issued_at,
		     due_date  = EXCLUDED.due_date`,
		f.InvoiceID, f.OrderID, f.Amount, f.Status, f.IssuedAt, f.DueDate, f.PaidAt)
	if err != nil {
		return fmt.Errorf("upsert invoice fact: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetInvoicePaid(ctx context.Context, invoiceID string, paidAt time.Time) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE olap_invoice_facts SET status = 'paid', paid_at = $2 WHERE invoice_id = $1`,
		invoiceID, paidAt)
	if err != nil {
		return fmt.Errorf("set invoice fact paid: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertStockSnapshot(ctx context.Context, sn StockSnapshot) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO olap_stock_snapshot (sku, product_name, qty_on_hand, reserved_qty, reorder_point, last_updated)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (sku) DO UPDATE SET
		     product_name  = CASE WHEN EXCLUDED.product_name <> '' THEN EXCLUDED.product_name
		                          ELSE olap_stock_snapshot.product_name END,
		     qty_on_hand   = EXCLUDED.qty_on_hand,
		     reserved_qty  = EXCLUDED.reserved_qty,
		     reorder_point = EXCLUDED.reorder_point,
		     last_updated  = now()`,
		sn.SKU, sn.ProductName, sn.QtyOnHand, sn.ReservedQty, sn.ReorderPoint)
	if err != nil {
		return fmt.Errorf("upsert stock snapshot: %w", err)
	}
	return nil
}

// RefreshAggregates recomputes the rollup tables from the fact tables.
// Cancelled orders drop out of sales on the next refresh.
func (s *PostgresStore) RefreshAggregates(ctx context.Context) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO olap_sales_hourly (hour, total_orders, total_revenue, avg_order_value, unique_customers, updated_at)
		 SELECT date_trunc('hour', placed_at),
		        COUNT(*),
		        COALESCE(SUM(total_amount), 0),
		        COALESCE(ROUND(AVG(total_amount), 2), 0),
		        COUNT(DISTINCT customer_id),
		        now()
		 FROM olap_order_facts
		 WHERE status <> 'cancelled'
		 GROUP BY 1
		 ON CONFLICT (hour) DO UPDATE SET
		     total_orders     = EXCLUDED.total_orders,
		     total_revenue    = EXCLUDED.total_revenue,
		     avg_order_value  = EXCLUDED.avg_order_value,
		     unique_customers = EXCLUDED.unique_customers,
		     updated_at       = now()`)
	if err != nil {
		return fmt.Errorf("refresh hourly sales: %w", err)
	}

	_, err = s.DB.Exec(ctx,
		`INSERT INTO olap_daily_orders (order_date, total_orders, total_revenue, avg_order_value, updated_at)
		 SELECT (placed_at AT TIME ZONE 'UTC')::date,
		        COUNT(*),
		        COALESCE(SUM(total_amount), 0),
		        COALESCE(ROUND(AVG(total_amount), 2), 0),
		        now()
		 FROM olap_order_facts
		 WHERE status <> 'cancelled'
		 GROUP BY 1
		 ON CONFLICT (order_date) DO UPDATE SET
		     total_orders    = EXCLUDED.total_orders,
		     total_revenue   = EXCLUDED.total_revenue,
		     avg_order_value = EXCLUDED.avg_order_value,
		     updated_at      = now()`)
	if err != nil {
		return fmt.Errorf("refresh daily orders: %w", err)
	}
	return nil
}

func (s *PostgresStore) SalesHourly(ctx context.Context, hours int) ([]SalesHour, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT hour, total_orders, total_revenue, avg_order_value, unique_customers, updated_at
		 FROM olap_sales_hourly
		 WHERE hour >= now() - make_interval(hours => $1)
		 ORDER BY hour DESC`, hours)
	if err != nil {
		return nil, fmt.Errorf("query hourly sales: %w", err)
	}
	defer rows.Close()

	out := []SalesHour{}
	for rows.Next() {
		var h SalesHour
		if err := rows.Scan(&h.Hour, &h.TotalOrders, &h.TotalRevenue, &h.AvgOrderValue, &h.UniqueCustomers, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan hourly sales: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LowStock(ctx context.Context) ([]StockSnapshot, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT sku, product_name, qty_on_hand, reserved_qty, qty_on_hand - reserved_qty, reorder_point, last_updated
		 FROM olap_stock_snapshot
		 WHERE qty_on_hand - reserved_qty <= reorder_point
		 ORDER BY qty_on_hand - reserved_qty ASC, sku`)
	if err != nil {
		return nil, fmt.Errorf("query low stock: %w", err)
	}
	defer rows.Close()

	out := []StockSnapshot{}
	for rows.Next() {
		var sn StockSnapshot
		if err := rows.Scan(&sn.SKU, &sn.ProductName, &sn.QtyOnHand, &sn.ReservedQty, &sn.AvailableQty, &sn.ReorderPoint, &sn.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan low stock: %w", err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (s *PostgresStore) OverdueAR(ctx context.Context) ([]OverdueAR, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT o.customer_id,
		        SUM(i.amount),
		        COALESCE(SUM(i.amount) FILTER (WHERE CURRENT_DATE - i.due_date BETWEEN 1 AND 30), 0),
		        COALESCE(SUM(i.amount) FILTER (WHERE CURRENT_DATE - i.due_date BETWEEN 31 AND 90), 0),
		        COALESCE(SUM(i.amount) FILTER (WHERE CURRENT_DATE - i.due_date > 90), 0),
		        to_char(MIN(i.due_date), 'YYYY-MM-DD'),
		        MAX(CURRENT_DATE - i.due_date)
		 FROM olap_invoice_facts i
		 JOIN olap_order_facts o ON o.order_id = i.order_id
		 WHERE i.status = 'issued' AND i.due_date < CURRENT_DATE
		 GROUP BY o.customer_id
		 ORDER BY SUM(i.amount) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query overdue AR: %w", err)
	}
	defer rows.Close()

	out := []OverdueAR{}
	for rows.Next() {
		var a OverdueAR
		if err := rows.Scan(&a.CustomerID, &a.TotalOutstanding, &a.Days30, &a.Days60, &a.Days90Plus, &a.OldestInvoiceDate, &a.DaysOverdue); err != nil {
			return nil, fmt.Errorf("scan overdue AR: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DailyOrders(ctx context.Context, days int) ([]DailyOrder, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT to_char(order_date, 'YYYY-MM-DD'), total_orders, total_revenue, avg_order_value
		 FROM olap_daily_orders
		 WHERE order_date >= CURRENT_DATE - $1::int
		 ORDER BY order_date DESC`, days)
	if err != nil {
		return nil, fmt.Errorf("query daily orders: %w", err)
	}
	defer rows.Close()

	out := []DailyOrder{}
	for rows.Next() {
		var d DailyOrder
		if err := rows.Scan(&d.OrderDate, &d.TotalOrders, &d.TotalRevenue, &d.AvgOrderValue); err != nil {
			return nil, fmt.Errorf("scan daily orders: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
