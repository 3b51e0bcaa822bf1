package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type IncomeRangeParams struct {
	From pgtype.Timestamptz
	To   pgtype.Timestamptz
}

// Income queries aggregate CLOSE_BILL transactions only; the date range
// applies to updated_at, which is when the bill was last written
// (closing a bill touches it).
func incomeFilters(arg IncomeRangeParams) (string, []any) {
	query := ` FROM transactions WHERE status = 'CLOSE_BILL'`
	var args []any

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

func (q *Queries) GetIncomeTotal(ctx context.Context, arg IncomeRangeParams) (pgtype.Numeric, error) {
	where, args := incomeFilters(arg)
	var total pgtype.Numeric
	err := q.db.QueryRow(ctx, `SELECT coalesce(sum(total), 0)`+where, args...).Scan(&total)
	return total, err
}

type DailyIncomeRow struct {
	Day   time.Time
	Total pgtype.Numeric
}

func (q *Queries) GetDailyIncome(ctx context.Context, arg IncomeRangeParams) ([]DailyIncomeRow, error) {
	where, args := incomeFilters(arg)
	rows, err := q.db.Query(ctx,
		`SELECT date_trunc('day', updated_at) AS day, coalesce(sum(total), 0)`+
			where+` GROUP BY day ORDER BY day`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyIncomeRow
	for rows.Next() {
		var r DailyIncomeRow
		if err := rows.Scan(&r.Day, &r.Total); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type MethodIncomeRow struct {
	Method string
	Total  pgtype.Numeric
}

func (q *Queries) GetIncomeByMethod(ctx context.Context, arg IncomeRangeParams) ([]MethodIncomeRow, error) {
	where, args := incomeFilters(arg)
	rows, err := q.db.Query(ctx,
		`SELECT method, coalesce(sum(total), 0)`+where+` GROUP BY method`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MethodIncomeRow
	for rows.Next() {
		var r MethodIncomeRow
		if err := rows.Scan(&r.Method, &r.Total); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type DailyMethodIncomeRow struct {
	Day    time.Time
	Method string
	Total  pgtype.Numeric
}

func (q *Queries) GetDailyIncomeByMethod(ctx context.Context, arg IncomeRangeParams) ([]DailyMethodIncomeRow, error) {
	where, args := incomeFilters(arg)
	rows, err := q.db.Query(ctx,
		`SELECT date_trunc('day', updated_at) AS day, method, coalesce(sum(total), 0)`+
			where+` GROUP BY day, method ORDER BY day`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyMethodIncomeRow
	for rows.Next() {
		var r DailyMethodIncomeRow
		if err := rows.Scan(&r.Day, &r.Method, &r.Total); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
