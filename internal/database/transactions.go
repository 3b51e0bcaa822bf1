package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const transactionColumns = `id, customer, method, status, total, voucher_id, created_at, created_by, updated_at, updated_by`

func scanTransaction(row interface{ Scan(dest ...any) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Customer, &t.Method, &t.Status, &t.Total, &t.VoucherID,
		&t.CreatedAt, &t.CreatedBy, &t.UpdatedAt, &t.UpdatedBy)
	return t, err
}

type CreateTransactionParams struct {
	Customer  string
	Method    string
	Status    string
	Total     pgtype.Numeric
	VoucherID pgtype.UUID
	CreatedBy string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO transactions (customer, method, status, total, voucher_id, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+transactionColumns,
		arg.Customer, arg.Method, arg.Status, arg.Total, arg.VoucherID, arg.CreatedBy)
	return scanTransaction(row)
}

type UpdateTransactionParams struct {
	ID        uuid.UUID
	Customer  string
	Method    string
	Total     pgtype.Numeric
	VoucherID pgtype.UUID
	UpdatedBy string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (Transaction, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE transactions
		SET customer = $2, method = $3, total = $4, voucher_id = $5,
		    updated_at = now(), updated_by = $6
		WHERE id = $1
		RETURNING `+transactionColumns,
		arg.ID, arg.Customer, arg.Method, arg.Total, arg.VoucherID, arg.UpdatedBy)
	return scanTransaction(row)
}

func (q *Queries) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// GetTransactionForUpdate row-locks the transaction so a status toggle
// reads and writes against a stable status.
func (q *Queries) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	return scanTransaction(row)
}

type UpdateTransactionStatusParams struct {
	ID        uuid.UUID
	Status    string
	UpdatedBy string
}

func (q *Queries) UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) (Transaction, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = now(), updated_by = $3
		WHERE id = $1
		RETURNING `+transactionColumns,
		arg.ID, arg.Status, arg.UpdatedBy)
	return scanTransaction(row)
}

type ListTransactionsParams struct {
	Status string
	From   pgtype.Timestamptz
	To     pgtype.Timestamptz
	Limit  int32
	Offset int32
}

func transactionFilters(arg ListTransactionsParams) (string, []any) {
	query := ` FROM transactions WHERE 1=1`
	var args []any

	if arg.Status != "" {
		args = append(args, arg.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if arg.From.Valid {
		args = append(args, arg.From)
		query += fmt.Sprintf(" AND updated_at >= $%d", len(args))
	}
	if arg.To.Valid {
		args = append(args, arg.To)
		query += fmt.Sprintf(" AND updated_at <= $%d", len(args))
	}
	return query, args
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	where, args := transactionFilters(arg)
	args = append(args, arg.Limit, arg.Offset)
	query := fmt.Sprintf(`SELECT %s%s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)-1, len(args))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (q *Queries) CountTransactions(ctx context.Context, arg ListTransactionsParams) (int64, error) {
	where, args := transactionFilters(arg)
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*)`+where, args...).Scan(&count)
	return count, err
}

type CreateTransactionItemParams struct {
	TransactionID uuid.UUID
	ItemID        uuid.UUID
	Quantity      int32
	CreatedBy     string
}

func (q *Queries) CreateTransactionItem(ctx context.Context, arg CreateTransactionItemParams) (TransactionItem, error) {
	var ti TransactionItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO transaction_items (transaction_id, item_id, quantity, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, transaction_id, item_id, quantity, created_at, created_by, updated_at, updated_by`,
		arg.TransactionID, arg.ItemID, arg.Quantity, arg.CreatedBy).
		Scan(&ti.ID, &ti.TransactionID, &ti.ItemID, &ti.Quantity,
			&ti.CreatedAt, &ti.CreatedBy, &ti.UpdatedAt, &ti.UpdatedBy)
	return ti, err
}

func (q *Queries) DeleteTransactionItems(ctx context.Context, transactionID uuid.UUID) error {
	_, err := q.db.Exec(ctx,
		`DELETE FROM transaction_items WHERE transaction_id = $1`, transactionID)
	return err
}

// TransactionLineRow is a line joined with its menu item, as printed on
// the receipt. Item columns reflect the item as it exists now; a line may
// reference a since-deactivated item and still renders.
type TransactionLineRow struct {
	ID           uuid.UUID
	ItemID       uuid.UUID
	Quantity     int32
	ItemName     string
	ItemType     string
	ItemCategory string
	ItemPrice    pgtype.Numeric
}

func (q *Queries) ListTransactionLines(ctx context.Context, transactionID uuid.UUID) ([]TransactionLineRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT ti.id, ti.item_id, ti.quantity, i.name, i.type, i.category, i.price
		FROM transaction_items ti
		JOIN items i ON i.id = ti.item_id
		WHERE ti.transaction_id = $1
		ORDER BY ti.created_at`,
		transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []TransactionLineRow
	for rows.Next() {
		var l TransactionLineRow
		if err := rows.Scan(&l.ID, &l.ItemID, &l.Quantity,
			&l.ItemName, &l.ItemType, &l.ItemCategory, &l.ItemPrice); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
