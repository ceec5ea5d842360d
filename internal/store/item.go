package store

import (
	"context"

	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
	"github.com/GoldenEggs-Workshop/spend-what-server/types"
	"github.com/lib/pq"
)

// ItemRepository handles persistence for ledger items. Amounts are
// NUMERIC columns scanned into exact decimals; no float64 anywhere.
type ItemRepository struct {
	q Queryer
}

const itemColumns = `id, bill_id, item_type, type_icon, description, amount, currency,
		created_by, paid_by, receipt_key, created_time, occurred_time`

func (r *ItemRepository) Insert(ctx context.Context, item types.Item) (types.Item, error) {
	const query = `
		INSERT INTO bill_items (bill_id, item_type, type_icon, description, amount,
			currency, created_by, paid_by, created_time, occurred_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		item.BillID,
		item.Type,
		item.TypeIcon,
		item.Description,
		item.Amount,
		item.Currency,
		item.CreatedBy,
		item.PaidBy,
		item.CreatedTime,
		item.OccurredTime,
	).Scan(&item.ID); err != nil {
		return types.Item{}, mapScanErr(err)
	}
	return item, nil
}

func (r *ItemRepository) Get(ctx context.Context, id int64) (types.Item, error) {
	const query = `
		SELECT ` + itemColumns + `
		FROM bill_items
		WHERE id = $1`
	item, err := scanItem(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Item{}, mapScanErr(err)
	}
	return item, nil
}

func (r *ItemRepository) Update(ctx context.Context, item types.Item) error {
	const query = `
		UPDATE bill_items
		SET item_type = $1,
			type_icon = $2,
			description = $3,
			amount = $4,
			currency = $5,
			occurred_time = $6
		WHERE id = $7`
	return r.exec(
		ctx,
		query,
		item.Type,
		item.TypeIcon,
		item.Description,
		item.Amount,
		item.Currency,
		item.OccurredTime,
		item.ID,
	)
}

func (r *ItemRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM bill_items WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *ItemRepository) ListByBill(ctx context.Context, billID int64, skip, limit int) ([]types.Item, error) {
	const query = `
		SELECT ` + itemColumns + `
		FROM bill_items
		WHERE bill_id = $1
		ORDER BY occurred_time DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.q.QueryContext(ctx, query, billID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Item, 0, limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ItemRepository) CountByPayer(ctx context.Context, memberID int64) (int, error) {
	const query = `SELECT COUNT(1) FROM bill_items WHERE paid_by = $1`
	var count int
	if err := r.q.QueryRowContext(ctx, query, memberID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ItemRepository) DeleteByBills(ctx context.Context, ids []int64) error {
	const query = `DELETE FROM bill_items WHERE bill_id = ANY($1)`
	_, err := r.q.ExecContext(ctx, query, pq.Array(ids))
	return err
}

func (r *ItemRepository) SetReceiptKey(ctx context.Context, id int64, key *string) error {
	const query = `UPDATE bill_items SET receipt_key = $1 WHERE id = $2`
	return r.exec(ctx, query, key, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (types.Item, error) {
	var item types.Item
	err := row.Scan(
		&item.ID,
		&item.BillID,
		&item.Type,
		&item.TypeIcon,
		&item.Description,
		&item.Amount,
		&item.Currency,
		&item.CreatedBy,
		&item.PaidBy,
		&item.ReceiptKey,
		&item.CreatedTime,
		&item.OccurredTime,
	)
	return item, err
}

func (r *ItemRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapScanErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.ErrNotFound
	}
	return nil
}
