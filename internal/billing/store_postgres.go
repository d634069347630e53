package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct{ DB *pgxpool.Pool }

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore { return &PostgresStore{DB: db} }

const invoiceCols = `id, order_id, amount, status, issued_at, to_char(due_date, 'YYYY-MM-DD'), paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrderID, &inv.Amount, &inv.Status,
		&inv.IssuedAt, &inv.DueDate, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (s *PostgresStore) CreateInvoice(ctx context.Context, inv Invoice, entries []LedgerEntry) (Invoice, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Invoice{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out, err := scanInvoice(tx.QueryRow(ctx, `
		INSERT INTO invoices (id, order_id, amount, status, issued_at, due_date)
		VALUES ($1, $2, $3, $4, $5, $6::date)
		RETURNING `+invoiceCols,
		inv.ID, inv.OrderID, inv.Amount, inv.Status, inv.IssuedAt, inv.DueDate))
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: the unique order_id index caught a concurrent issuance
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Invoice{}, ErrDuplicateOrder
		}
		return Invoice{}, err
	}

	if err := insertEntries(ctx, tx, entries); err != nil {
		return Invoice{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, err
	}
	return out, nil
}

func (s *PostgresStore) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	inv, err := scanInvoice(s.DB.QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

func (s *PostgresStore) GetInvoiceByOrder(ctx context.Context, orderID string) (*Invoice, error) {
	inv, err := scanInvoice(s.DB.QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE order_id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *PostgresStore) ListInvoices(ctx context.Context, orderID string) ([]Invoice, error) {
	q := `SELECT ` + invoiceCols + ` FROM invoices ORDER BY created_at DESC`
	args := []any{}
	if orderID != "" {
		q = `SELECT ` + invoiceCols + ` FROM invoices WHERE order_id = $1 ORDER BY created_at DESC`
		args = append(args, orderID)
	}
	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPaid(ctx context.Context, id string, paidAt time.Time, entries []LedgerEntry) (Invoice, bool, error) {
	return s.flipStatus(ctx, id, InvoiceIssued, InvoicePaid, &paidAt, entries)
}

func (s *PostgresStore) MarkCancelled(ctx context.Context, id string, entries []LedgerEntry) (Invoice, bool, error) {
	return s.flipStatus(ctx, id, InvoiceIssued, InvoiceCancelled, nil, entries)
}

func (s *PostgresStore) flipStatus(ctx context.Context, id string, from, to InvoiceStatus, paidAt *time.Time, entries []LedgerEntry) (Invoice, bool, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Invoice{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inv, err := scanInvoice(tx.QueryRow(ctx, `
		UPDATE invoices
		SET status = $3, paid_at = COALESCE($4, paid_at), updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+invoiceCols,
		id, from, to, paidAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, false, nil
	}
	if err != nil {
		return Invoice{}, false, err
	}

	if err := insertEntries(ctx, tx, entries); err != nil {
		return Invoice{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, false, err
	}
	return inv, true, nil
}

func (s *PostgresStore) MarkOrderCancelled(ctx context.Context, orderID string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO cancelled_orders (order_id) VALUES ($1)
		ON CONFLICT (order_id) DO NOTHING`, orderID)
	return err
}

func (s *PostgresStore) OrderCancelled(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cancelled_orders WHERE order_id = $1)`, orderID,
	).Scan(&exists)
	return exists, err
}

func insertEntries(ctx context.Context, tx pgx.Tx, entries []LedgerEntry) error {
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ledger_entries (id, account, debit, credit, ref_type, ref_id, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.Account, e.Debit, e.Credit, e.RefType, e.RefID, e.Description,
		); err != nil {
			return err
		}
	}
	return nil
}
