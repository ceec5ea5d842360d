package store

import (
	"context"

	"github.com/GoldenEggs-Workshop/spend-what-server/types"
	"github.com/lib/pq"
)

// ShareRepository handles persistence for share tokens.
type ShareRepository struct {
	q Queryer
}

const shareColumns = `id, token, bill_id, access_role, created_by, created_time,
		expires_at, remaining_uses, bill_member_id`

func (r *ShareRepository) Insert(ctx context.Context, token types.ShareToken) (types.ShareToken, error) {
	const query = `
		INSERT INTO bill_share_tokens (token, bill_id, access_role, created_by,
			created_time, expires_at, remaining_uses, bill_member_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		token.Token,
		token.BillID,
		token.Role,
		token.CreatedBy,
		token.CreatedTime,
		token.ExpiresAt,
		token.RemainingUses,
		token.MemberID,
	).Scan(&token.ID); err != nil {
		return types.ShareToken{}, mapScanErr(err)
	}
	return token, nil
}

func (r *ShareRepository) GetByToken(ctx context.Context, token string) (types.ShareToken, error) {
	const query = `
		SELECT ` + shareColumns + `
		FROM bill_share_tokens
		WHERE token = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, token))
}

func (r *ShareRepository) GetByTokenAndBill(ctx context.Context, token string, billID int64) (types.ShareToken, error) {
	const query = `
		SELECT ` + shareColumns + `
		FROM bill_share_tokens
		WHERE token = $1 AND bill_id = $2`
	return r.scanOne(r.q.QueryRowContext(ctx, query, token, billID))
}

func (r *ShareRepository) List(ctx context.Context, billID int64) ([]types.ShareTokenView, error) {
	const query = `
		SELECT t.token, t.access_role, u.username, t.created_time,
			t.expires_at, t.remaining_uses, m.name
		FROM bill_share_tokens t
		JOIN users u ON u.id = t.created_by
		LEFT JOIN bill_members m ON m.id = t.bill_member_id
		WHERE t.bill_id = $1
		ORDER BY t.id`
	rows, err := r.q.QueryContext(ctx, query, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []types.ShareTokenView{}
	for rows.Next() {
		var view types.ShareTokenView
		if err := rows.Scan(
			&view.Token,
			&view.Role,
			&view.CreatedBy,
			&view.CreatedTime,
			&view.ExpiresAt,
			&view.RemainingUses,
			&view.MemberName,
		); err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

func (r *ShareRepository) SetRemainingUses(ctx context.Context, id int64, uses int) error {
	const query = `UPDATE bill_share_tokens SET remaining_uses = $1 WHERE id = $2`
	_, err := r.q.ExecContext(ctx, query, uses, id)
	return err
}

func (r *ShareRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM bill_share_tokens WHERE id = $1`
	_, err := r.q.ExecContext(ctx, query, id)
	return err
}

func (r *ShareRepository) DeleteByBills(ctx context.Context, ids []int64) error {
	const query = `DELETE FROM bill_share_tokens WHERE bill_id = ANY($1)`
	_, err := r.q.ExecContext(ctx, query, pq.Array(ids))
	return err
}

func (r *ShareRepository) scanOne(row rowScanner) (types.ShareToken, error) {
	var token types.ShareToken
	err := row.Scan(
		&token.ID,
		&token.Token,
		&token.BillID,
		&token.Role,
		&token.CreatedBy,
		&token.CreatedTime,
		&token.ExpiresAt,
		&token.RemainingUses,
		&token.MemberID,
	)
	if err != nil {
		return types.ShareToken{}, mapScanErr(err)
	}
	return token, nil
}
