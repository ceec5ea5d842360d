package store

import (
	"context"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
	"github.com/GoldenEggs-Workshop/spend-what-server/types"
	"github.com/lib/pq"
)

// BillRepository handles persistence for bills, their member rosters,
// and their access rows.
type BillRepository struct {
	q Queryer
}

func (r *BillRepository) Create(ctx context.Context, bill types.Bill) (types.Bill, error) {
	const query = `
		INSERT INTO bills (title, created_by, created_time, item_updated_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		bill.Title,
		bill.CreatedBy,
		bill.CreatedTime,
		bill.ItemUpdatedTime,
	).Scan(&bill.ID); err != nil {
		return types.Bill{}, mapScanErr(err)
	}
	return bill, nil
}

func (r *BillRepository) Get(ctx context.Context, id int64) (types.Bill, error) {
	const query = `
		SELECT id, title, created_by, created_time, item_updated_time
		FROM bills
		WHERE id = $1`
	var bill types.Bill
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&bill.ID,
		&bill.Title,
		&bill.CreatedBy,
		&bill.CreatedTime,
		&bill.ItemUpdatedTime,
	)
	if err != nil {
		return types.Bill{}, mapScanErr(err)
	}
	return bill, nil
}

func (r *BillRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	const query = `UPDATE bills SET title = $1 WHERE id = $2`
	return r.exec(ctx, query, title, id)
}

func (r *BillRepository) TouchItemUpdated(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE bills SET item_updated_time = $1 WHERE id = $2`
	return r.exec(ctx, query, at, id)
}

func (r *BillRepository) ListForUser(ctx context.Context, userID int64, skip, limit int) ([]types.Bill, error) {
	const query = `
		SELECT b.id, b.title, b.created_by, b.created_time, b.item_updated_time
		FROM bills b
		JOIN bill_access a ON a.bill_id = b.id
		WHERE a.user_id = $1
		ORDER BY b.item_updated_time DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.q.QueryContext(ctx, query, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]types.Bill, 0, limit)
	for rows.Next() {
		var bill types.Bill
		if err := rows.Scan(
			&bill.ID,
			&bill.Title,
			&bill.CreatedBy,
			&bill.CreatedTime,
			&bill.ItemUpdatedTime,
		); err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

func (r *BillRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	const query = `DELETE FROM bills WHERE id = ANY($1)`
	_, err := r.q.ExecContext(ctx, query, pq.Array(ids))
	return err
}

func (r *BillRepository) Members(ctx context.Context, billID int64) ([]types.Member, error) {
	const query = `
		SELECT id, bill_id, name, linked_user_id
		FROM bill_members
		WHERE bill_id = $1
		ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []types.Member{}
	for rows.Next() {
		var member types.Member
		if err := rows.Scan(&member.ID, &member.BillID, &member.Name, &member.LinkedUserID); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *BillRepository) GetMember(ctx context.Context, memberID int64) (types.Member, error) {
	const query = `
		SELECT id, bill_id, name, linked_user_id
		FROM bill_members
		WHERE id = $1`
	var member types.Member
	err := r.q.QueryRowContext(ctx, query, memberID).Scan(
		&member.ID,
		&member.BillID,
		&member.Name,
		&member.LinkedUserID,
	)
	if err != nil {
		return types.Member{}, mapScanErr(err)
	}
	return member, nil
}

func (r *BillRepository) AddMember(ctx context.Context, member types.Member) (types.Member, error) {
	const query = `
		INSERT INTO bill_members (bill_id, name, linked_user_id)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		member.BillID,
		member.Name,
		member.LinkedUserID,
	).Scan(&member.ID); err != nil {
		return types.Member{}, mapScanErr(err)
	}
	return member, nil
}

func (r *BillRepository) RenameMember(ctx context.Context, memberID int64, name string) error {
	const query = `UPDATE bill_members SET name = $1 WHERE id = $2`
	return r.exec(ctx, query, name, memberID)
}

func (r *BillRepository) BindMember(ctx context.Context, memberID int64, userID *int64) error {
	const query = `UPDATE bill_members SET linked_user_id = $1 WHERE id = $2`
	return r.exec(ctx, query, userID, memberID)
}

func (r *BillRepository) DeleteMember(ctx context.Context, memberID int64) error {
	const query = `DELETE FROM bill_members WHERE id = $1`
	return r.exec(ctx, query, memberID)
}

func (r *BillRepository) DeleteMembersByBills(ctx context.Context, ids []int64) error {
	const query = `DELETE FROM bill_members WHERE bill_id = ANY($1)`
	_, err := r.q.ExecContext(ctx, query, pq.Array(ids))
	return err
}

func (r *BillRepository) FindAccess(ctx context.Context, billID, userID int64) (types.Access, error) {
	const query = `
		SELECT id, bill_id, user_id, role
		FROM bill_access
		WHERE bill_id = $1 AND user_id = $2`
	var access types.Access
	err := r.q.QueryRowContext(ctx, query, billID, userID).Scan(
		&access.ID,
		&access.BillID,
		&access.UserID,
		&access.Role,
	)
	if err != nil {
		return types.Access{}, mapScanErr(err)
	}
	return access, nil
}

func (r *BillRepository) InsertAccess(ctx context.Context, access types.Access) (types.Access, error) {
	const query = `
		INSERT INTO bill_access (bill_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		access.BillID,
		access.UserID,
		access.Role,
	).Scan(&access.ID); err != nil {
		return types.Access{}, mapScanErr(err)
	}
	return access, nil
}

func (r *BillRepository) ListAccess(ctx context.Context, billID int64) ([]types.AccessEntry, error) {
	const query = `
		SELECT a.user_id, u.username, a.role
		FROM bill_access a
		JOIN users u ON u.id = a.user_id
		WHERE a.bill_id = $1
		ORDER BY a.id`
	rows, err := r.q.QueryContext(ctx, query, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []types.AccessEntry{}
	for rows.Next() {
		var entry types.AccessEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.Role); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *BillRepository) ListAccessByRole(ctx context.Context, billIDs []int64, role types.AccessRole) ([]types.Access, error) {
	const query = `
		SELECT id, bill_id, user_id, role
		FROM bill_access
		WHERE bill_id = ANY($1) AND role = $2`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(billIDs), role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accesses []types.Access
	for rows.Next() {
		var access types.Access
		if err := rows.Scan(&access.ID, &access.BillID, &access.UserID, &access.Role); err != nil {
			return nil, err
		}
		accesses = append(accesses, access)
	}
	return accesses, rows.Err()
}

func (r *BillRepository) DeleteAccessByBills(ctx context.Context, ids []int64) error {
	const query = `DELETE FROM bill_access WHERE bill_id = ANY($1)`
	_, err := r.q.ExecContext(ctx, query, pq.Array(ids))
	return err
}

func (r *BillRepository) exec(ctx context.Context, query string, args ...any) error {
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
