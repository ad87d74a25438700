package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"route-results-service/internal/domain"
)

func (r *sqlRepo) ListOrders(ctx context.Context, merchantID int64, ids []int64) ([]*domain.Order, error) {
	if len(ids) == 0 {
		return []*domain.Order{}, nil
	}

	marks, args := inList(ids)
	q := `SELECT id, merchant_id, driver_id, status FROM orders WHERE merchant_id = ? AND id IN (` + marks + `) ORDER BY id;`
	rows, err := r.query(ctx, q, append([]any{merchantID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list orders: query orders table: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0, len(ids))
	for rows.Next() {
		var (
			o      domain.Order
			driver sql.NullInt64
			status string
		)
		if err := rows.Scan(&o.ID, &o.MerchantID, &driver, &status); err != nil {
			return nil, fmt.Errorf("list orders: scan row: %w", err)
		}
		o.DriverID = driver.Int64
		o.Status = domain.OrderStatus(status)
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: row iteration: %w", err)
	}
	return orders, nil
}

func (r *sqlRepo) BulkStatusChange(ctx context.Context, ids []int64, to domain.OrderStatus, driverID int64) error {
	if len(ids) == 0 {
		return nil
	}

	marks, idArgs := inList(ids)
	var (
		q    string
		args []any
	)
	switch {
	case to == domain.StatusNotAssigned:
		q = `UPDATE orders SET status = ?, driver_id = NULL WHERE id IN (` + marks + `);`
		args = append([]any{string(to)}, idArgs...)
	case driverID != 0:
		q = `UPDATE orders SET status = ?, driver_id = ? WHERE id IN (` + marks + `);`
		args = append([]any{string(to), driverID}, idArgs...)
	default:
		q = `UPDATE orders SET status = ? WHERE id IN (` + marks + `);`
		args = append([]any{string(to)}, idArgs...)
	}

	if _, err := r.exec(ctx, q, args...); err != nil {
		return fmt.Errorf("bulk status change to %s: %w", to, err)
	}
	return nil
}
