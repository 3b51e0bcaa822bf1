package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const itemColumns = `id, name, type, category, price, is_active, created_at, created_by, updated_at, updated_by`

func scanItem(row interface{ Scan(dest ...any) error }) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Type, &it.Category, &it.Price,
		&it.IsActive, &it.CreatedAt, &it.CreatedBy, &it.UpdatedAt, &it.UpdatedBy)
	return it, err
}

type ListItemsParams struct {
	IDs      []uuid.UUID
	Name     string
	IsActive pgtype.Bool
}

// ListItems returns items matching the optional filters, newest first.
func (q *Queries) ListItems(ctx context.Context, arg ListItemsParams) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
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

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *Queries) GetItem(ctx context.Context, id uuid.UUID) (Item, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	return scanItem(row)
}

type CreateItemParams struct {
	Name      string
	Type      string
	Category  string
	Price     pgtype.Numeric
	CreatedBy string
}

func (q *Queries) CreateItem(ctx context.Context, arg CreateItemParams) (Item, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO items (name, type, category, price, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING `+itemColumns,
		arg.Name, arg.Type, arg.Category, arg.Price, arg.CreatedBy)
	return scanItem(row)
}

type UpdateItemDetailsParams struct {
	ID        uuid.UUID
	Name      string
	Type      string
	Category  string
	UpdatedBy string
}

// UpdateItemDetails mutates name/type/category in place. Price is
// deliberately absent: a price change forks a new item row instead.
func (q *Queries) UpdateItemDetails(ctx context.Context, arg UpdateItemDetailsParams) (Item, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE items
		SET name = $2, type = $3, category = $4, updated_at = now(), updated_by = $5
		WHERE id = $1
		RETURNING `+itemColumns,
		arg.ID, arg.Name, arg.Type, arg.Category, arg.UpdatedBy)
	return scanItem(row)
}

type DeactivateItemParams struct {
	ID        uuid.UUID
	UpdatedBy string
}

func (q *Queries) DeactivateItem(ctx context.Context, arg DeactivateItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, `
		UPDATE items
		SET is_active = false, updated_at = now(), updated_by = $2
		WHERE id = $1
		RETURNING id`,
		arg.ID, arg.UpdatedBy).Scan(&id)
	return id, err
}
