package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const voucherColumns = `id, name, percentage, is_active, created_at, created_by, updated_at, updated_by`

func scanVoucher(row interface{ Scan(dest ...any) error }) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Name, &v.Percentage, &v.IsActive,
		&v.CreatedAt, &v.CreatedBy, &v.UpdatedAt, &v.UpdatedBy)
	return v, err
}

type ListVouchersParams struct {
	IDs      []uuid.UUID
	Name     string
	IsActive pgtype.Bool
}

// ListVouchers returns vouchers matching the optional filters, newest first.
func (q *Queries) ListVouchers(ctx context.Context, arg ListVouchersParams) ([]Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE 1=1`
	var args []any

	if len(arg.IDs) > 0 {
		args = append(args, arg.IDs)
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}
	if arg.Name != "" {
		args = append(args, "%"+arg.Name+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	if arg.IsActive.Valid {
		args = append(args, arg.IsActive.Bool)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	query += " ORDER BY updated_at DESC"

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouchers []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

// GetActiveVoucher resolves a voucher only if it is still active.
func (q *Queries) GetActiveVoucher(ctx context.Context, id uuid.UUID) (Voucher, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE id = $1 AND is_active`, id)
	return scanVoucher(row)
}

func (q *Queries) GetVoucher(ctx context.Context, id uuid.UUID) (Voucher, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, id)
	return scanVoucher(row)
}

type CreateVoucherParams struct {
	Name       string
	Percentage pgtype.Numeric
	CreatedBy  string
}

func (q *Queries) CreateVoucher(ctx context.Context, arg CreateVoucherParams) (Voucher, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO vouchers (name, percentage, created_by, updated_by)
		VALUES ($1, $2, $3, $3)
		RETURNING `+voucherColumns,
		arg.Name, arg.Percentage, arg.CreatedBy)
	return scanVoucher(row)
}

type UpdateVoucherNameParams struct {
	ID        uuid.UUID
	Name      string
	UpdatedBy string
}

// UpdateVoucherName mutates the name in place. Percentage is deliberately
// absent: a percentage change forks a new voucher row instead.
func (q *Queries) UpdateVoucherName(ctx context.Context, arg UpdateVoucherNameParams) (Voucher, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE vouchers
		SET name = $2, updated_at = now(), updated_by = $3
		WHERE id = $1
		RETURNING `+voucherColumns,
		arg.ID, arg.Name, arg.UpdatedBy)
	return scanVoucher(row)
}

type DeactivateVoucherParams struct {
	ID        uuid.UUID
	UpdatedBy string
}

func (q *Queries) DeactivateVoucher(ctx context.Context, arg DeactivateVoucherParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, `
		UPDATE vouchers
		SET is_active = false, updated_at = now(), updated_by = $2
		WHERE id = $1
		RETURNING id`,
		arg.ID, arg.UpdatedBy).Scan(&id)
	return id, err
}
