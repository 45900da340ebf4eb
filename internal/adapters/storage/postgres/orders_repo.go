package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"petsy-backend/internal/domain/orders"
	"petsy-backend/internal/domain/workflow"
)

type OrdersRepo struct {
	db *sql.DB
}

func NewOrdersRepo(db *sql.DB) *OrdersRepo {
	return &OrdersRepo{db: db}
}

func (r *OrdersRepo) Create(ctx context.Context, o orders.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, buyer_user_id, seller_user_id,
			items, total,
			status, status_reason,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		o.ID,
		o.BuyerUserID,
		o.SellerUserID,
		items,
		o.Total,
		string(o.Status),
		o.StatusReason,
		o.CreatedAt,
		o.UpdatedAt,
	)
	return err
}

func (r *OrdersRepo) GetByID(ctx context.Context, id string) (orders.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return orders.Order{}, workflow.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, id)
	return scanOrder(row.Scan)
}

func (r *OrdersRepo) ListByBuyer(ctx context.Context, buyerID string) ([]orders.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+`
		WHERE buyer_user_id = $1
		ORDER BY created_at DESC
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *OrdersRepo) ListBySeller(ctx context.Context, sellerID string) ([]orders.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+`
		WHERE seller_user_id = $1
		ORDER BY created_at DESC
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *OrdersRepo) List(ctx context.Context) ([]orders.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *OrdersRepo) UpdateStatus(ctx context.Context, id string, from, to orders.Status, upd orders.TransitionUpdate, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET
			status = $3,
			status_reason = COALESCE($4, status_reason),
			updated_at = $5
		WHERE id = $1 AND status = $2
	`,
		id,
		string(from),
		string(to),
		upd.StatusReason,
		at,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return workflow.ErrNotFound
		}
		return workflow.ErrStaleState
	}
	return nil
}

const selectOrder = `
	SELECT
		id, buyer_user_id, seller_user_id,
		items, total,
		status, status_reason,
		created_at, updated_at
	FROM orders`

func scanOrder(scan func(dest ...any) error) (orders.Order, error) {
	var o orders.Order
	var status string
	var items []byte
	if err := scan(
		&o.ID,
		&o.BuyerUserID,
		&o.SellerUserID,
		&items,
		&o.Total,
		&status,
		&o.StatusReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return orders.Order{}, workflow.ErrNotFound
		}
		return orders.Order{}, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return orders.Order{}, err
		}
	}
	o.Status = orders.Status(status)
	return o, nil
}

func collectOrders(rows *sql.Rows) ([]orders.Order, error) {
	out := make([]orders.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
