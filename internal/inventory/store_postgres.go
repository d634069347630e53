package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct{ DB *pgxpool.Pool }

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore { return &PostgresStore{DB: db} }

func (s *PostgresStore) UpsertProduct(ctx context.Context, p Product, rec Record) (Product, Record, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
		    price = EXCLUDED.price, updated_at = now()
		RETURNING sku, name, COALESCE(description, ''), price, created_at, updated_at`,
		p.SKU, p.Name, p.Description, p.Price,
	).Scan(&p.SKU, &p.Name, &p.Description, &p.Price, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, Record{}, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO inventory_items (sku, qty_on_hand, reserved_qty, reorder_point)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku) DO UPDATE
		SET qty_on_hand = EXCLUDED.qty_on_hand, reserved_qty = EXCLUDED.reserved_qty,
		    reorder_point = EXCLUDED.reorder_point, updated_at = now()
		RETURNING sku, qty_on_hand, reserved_qty, reorder_point, updated_at`,
		p.SKU, rec.QtyOnHand, rec.ReservedQty, rec.ReorderPoint,
	).Scan(&rec.SKU, &rec.QtyOnHand, &rec.ReservedQty, &rec.ReorderPoint, &rec.UpdatedAt)
	if err != nil {
		return Product{}, Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Product{}, Record{}, err
	}
	return p, rec, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]ProductStock, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT p.sku, p.name, COALESCE(p.description, ''), p.price, p.created_at, p.updated_at,
		       i.sku, i.qty_on_hand, i.reserved_qty, i.reorder_point, i.updated_at
		FROM products p
		JOIN inventory_items i ON i.sku = p.sku
		ORDER BY p.sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductStock
	for rows.Next() {
		var ps ProductStock
		var rec Record
		if err := rows.Scan(
			&ps.SKU, &ps.Name, &ps.Description, &ps.Price, &ps.CreatedAt, &ps.UpdatedAt,
			&rec.SKU, &rec.QtyOnHand, &rec.ReservedQty, &rec.ReorderPoint, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ps.Inventory = &rec
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetProduct(ctx context.Context, sku string) (Product, error) {
	var p Product
	err := s.DB.QueryRow(ctx, `
		SELECT sku, name, COALESCE(description, ''), price, created_at, updated_at
		FROM products WHERE sku = $1`, sku,
	).Scan(&p.SKU, &p.Name, &p.Description, &p.Price, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) GetRecord(ctx context.Context, sku string) (Record, error) {
	var rec Record
	err := s.DB.QueryRow(ctx, `
		SELECT sku, qty_on_hand, reserved_qty, reorder_point, updated_at
		FROM inventory_items WHERE sku = $1`, sku,
	).Scan(&rec.SKU, &rec.QtyOnHand, &rec.ReservedQty, &rec.ReorderPoint, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, rec Record) (Record, error) {
	err := s.DB.QueryRow(ctx, `
		UPDATE inventory_items
		SET qty_on_hand = $2, reserved_qty = $3, updated_at = now()
		WHERE sku = $1
		RETURNING sku, qty_on_hand, reserved_qty, reorder_point, updated_at`,
		rec.SKU, rec.QtyOnHand, rec.ReservedQty,
	).Scan(&rec.SKU, &rec.QtyOnHand, &rec.ReservedQty, &rec.ReorderPoint, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) GetReservation(ctx context.Context, sku, orderID string) (*Reservation, error) {
	var res Reservation
	err := s.DB.QueryRow(ctx, `
		SELECT sku, order_id, qty, status, created_at, updated_at
		FROM reservations WHERE sku = $1 AND order_id = $2`, sku, orderID,
	).Scan(&res.SKU, &res.OrderID, &res.Qty, &res.Status, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *PostgresStore) ApplyReservation(ctx context.Context, rec Record, res Reservation) (Record, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		UPDATE inventory_items
		SET qty_on_hand = $2, reserved_qty = $3, updated_at = now()
		WHERE sku = $1
		RETURNING sku, qty_on_hand, reserved_qty, reorder_point, updated_at`,
		rec.SKU, rec.QtyOnHand, rec.ReservedQty,
	).Scan(&rec.SKU, &rec.QtyOnHand, &rec.ReservedQty, &rec.ReorderPoint, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO reservations (sku, order_id, qty, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku, order_id) DO UPDATE
		SET qty = EXCLUDED.qty, status = EXCLUDED.status, updated_at = now()`,
		res.SKU, res.OrderID, res.Qty, res.Status,
	); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return rec, nil
}
