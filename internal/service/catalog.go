package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kopjum-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// Errors returned by the catalog service.
var (
	ErrItemNotFound        = errors.New("item not found")
	ErrVoucherMissing      = errors.New("voucher not found")
	ErrInvalidPrice        = errors.New("price must be >= 0")
	ErrInvalidPercentage   = errors.New("percentage must be between 0 and 100")
	ErrMalformedPrice      = errors.New("invalid price")
	ErrMalformedPercentage = errors.New("invalid percentage")
)

// CatalogStore defines the DB methods needed by catalog mutations.
// Satisfied by *database.Queries bound to a pool or a transaction.
type CatalogStore interface {
	GetItem(ctx context.Context, id uuid.UUID) (database.Item, error)
	CreateItem(ctx context.Context, arg database.CreateItemParams) (database.Item, error)
	UpdateItemDetails(ctx context.Context, arg database.UpdateItemDetailsParams) (database.Item, error)
	DeactivateItem(ctx context.Context, arg database.DeactivateItemParams) (uuid.UUID, error)
	GetVoucher(ctx context.Context, id uuid.UUID) (database.Voucher, error)
	CreateVoucher(ctx context.Context, arg database.CreateVoucherParams) (database.Voucher, error)
	UpdateVoucherName(ctx context.Context, arg database.UpdateVoucherNameParams) (database.Voucher, error)
	DeactivateVoucher(ctx context.Context, arg database.DeactivateVoucherParams) (uuid.UUID, error)
}

// NewCatalogStore creates a CatalogStore from a DBTX (pool or tx).
type NewCatalogStore func(db database.DBTX) CatalogStore

// CatalogService handles menu item and voucher updates. Price and
// percentage changes never mutate a priced record in place: they insert
// a replacement row and deactivate the old one, so every historic bill
// keeps pointing at the price it was sold under.
type CatalogService struct {
	pool     TxBeginner
	newStore NewCatalogStore
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(pool TxBeginner, newStore NewCatalogStore) *CatalogService {
	return &CatalogService{pool: pool, newStore: newStore}
}

// UpdateItemRequest carries the new field values for a menu item.
type UpdateItemRequest struct {
	Name     string
	Type     string
	Category string
	Price    string
}

// UpdateItem edits a menu item. If the price changed, the item is forked:
// a new row is inserted with all new values and the old row is
// deactivated, atomically. Otherwise the row is updated in place.
// Returns the row the caller should display (the fork, when one happened).
func (s *CatalogService) UpdateItem(ctx context.Context, actor Actor, id uuid.UUID, req UpdateItemRequest) (database.Item, error) {
	price, err := parsePrice(req.Price)
	if err != nil {
		return database.Item{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Item{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Item{}, ErrItemNotFound
		}
		return database.Item{}, fmt.Errorf("get item: %w", err)
	}

	var updated database.Item
	if price.Equal(numericToDecimal(current.Price)) {
		updated, err = store.UpdateItemDetails(ctx, database.UpdateItemDetailsParams{
			ID:        id,
			Name:      req.Name,
			Type:      req.Type,
			Category:  req.Category,
			UpdatedBy: actor.Username,
		})
		if err != nil {
			return database.Item{}, fmt.Errorf("update item: %w", err)
		}
	} else {
		updated, err = store.CreateItem(ctx, database.CreateItemParams{
			Name:      req.Name,
			Type:      req.Type,
			Category:  req.Category,
			Price:     decimalToNumeric(price),
			CreatedBy: actor.Username,
		})
		if err != nil {
			return database.Item{}, fmt.Errorf("fork item: %w", err)
		}
		if _, err := store.DeactivateItem(ctx, database.DeactivateItemParams{
			ID:        id,
			UpdatedBy: actor.Username,
		}); err != nil {
			return database.Item{}, fmt.Errorf("deactivate item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Item{}, fmt.Errorf("commit tx: %w", err)
	}

	return updated, nil
}

// UpdateVoucherRequest carries the new field values for a voucher.
type UpdateVoucherRequest struct {
	Name       string
	Percentage string
}

// UpdateVoucher edits a voucher, forking it when the percentage changed,
// with the same atomicity rules as UpdateItem.
func (s *CatalogService) UpdateVoucher(ctx context.Context, actor Actor, id uuid.UUID, req UpdateVoucherRequest) (database.Voucher, error) {
	percentage, err := parsePercentage(req.Percentage)
	if err != nil {
		return database.Voucher{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Voucher{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetVoucher(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Voucher{}, ErrVoucherMissing
		}
		return database.Voucher{}, fmt.Errorf("get voucher: %w", err)
	}

	var updated database.Voucher
	if percentage.Equal(numericToDecimal(current.Percentage)) {
		updated, err = store.UpdateVoucherName(ctx, database.UpdateVoucherNameParams{
			ID:        id,
			Name:      req.Name,
			UpdatedBy: actor.Username,
		})
		if err != nil {
			return database.Voucher{}, fmt.Errorf("update voucher: %w", err)
		}
	} else {
		updated, err = store.CreateVoucher(ctx, database.CreateVoucherParams{
			Name:       req.Name,
			Percentage: decimalToNumeric(percentage),
			CreatedBy:  actor.Username,
		})
		if err != nil {
			return database.Voucher{}, fmt.Errorf("fork voucher: %w", err)
		}
		if _, err := store.DeactivateVoucher(ctx, database.DeactivateVoucherParams{
			ID:        id,
			UpdatedBy: actor.Username,
		}); err != nil {
			return database.Voucher{}, fmt.Errorf("deactivate voucher: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Voucher{}, fmt.Errorf("commit tx: %w", err)
	}

	return updated, nil
}

// --- Helpers ---

func parsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrMalformedPrice
	}
	if d.IsNegative() {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	return d, nil
}

func parsePercentage(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrMalformedPercentage
	}
	if d.IsNegative() || d.GreaterThan(oneHundred) {
		return decimal.Decimal{}, ErrInvalidPercentage
	}
	return d, nil
}
