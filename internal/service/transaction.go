package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopjum-pos/api/internal/database"
	"github.com/kopjum-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors returned by the transaction service.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrCustomerRequired    = errors.New("customer name must be at least 3 characters")
	ErrInvalidMethod       = errors.New("invalid payment method")
	ErrInvalidQuantity     = errors.New("quantity must be >= 1")
	ErrInvalidItemID       = errors.New("invalid item_id")
	ErrInvalidVoucherID    = errors.New("invalid voucher_id")
	ErrVoucherNotFound     = errors.New("voucher not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrForbidden           = errors.New("only admin can reopen a closed bill")
)

// Actor is the authenticated caller of a mutating operation. It is
// passed explicitly so the service never reads ambient session state.
type Actor struct {
	Username string
	Role     string
}

// IsAdmin reports whether the actor holds the admin capability.
func (a Actor) IsAdmin() bool {
	return a.Role == enum.RoleAdmin
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TransactionStore defines the DB methods needed by bill mutations.
// Satisfied by *database.Queries bound to a pool or a transaction.
type TransactionStore interface {
	ListItems(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error)
	GetActiveVoucher(ctx context.Context, id uuid.UUID) (database.Voucher, error)
	CreateTransaction(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error)
	UpdateTransaction(ctx context.Context, arg database.UpdateTransactionParams) (database.Transaction, error)
	CreateTransactionItem(ctx context.Context, arg database.CreateTransactionItemParams) (database.TransactionItem, error)
	DeleteTransactionItems(ctx context.Context, transactionID uuid.UUID) error
	GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (database.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, arg database.UpdateTransactionStatusParams) (database.Transaction, error)
}

// NewTransactionStore creates a TransactionStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewTransactionStore func(db database.DBTX) TransactionStore

// LineRequest is a single item line in a create/update request.
type LineRequest struct {
	ItemID   string
	Quantity int32
}

// TransactionRequest is the validated input for creating or replacing a bill.
type TransactionRequest struct {
	Customer  string
	Method    string
	VoucherID string
	Items     []LineRequest
}

// TransactionResult is the persisted bill with its lines.
type TransactionResult struct {
	Transaction database.Transaction
	Lines       []database.TransactionItem
}

// TransactionService handles bill business logic.
type TransactionService struct {
	pool     TxBeginner
	newStore NewTransactionStore
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(pool TxBeginner, newStore NewTransactionStore) *TransactionService {
	return &TransactionService{pool: pool, newStore: newStore}
}

// IsEditable reports whether actor may modify a bill in the given status.
// Open bills are editable by anyone; closed bills only by an admin.
func IsEditable(status string, actor Actor) bool {
	return status == enum.TransactionStatusOpenBill || actor.IsAdmin()
}

// pricedRequest holds a fully validated and priced request, ready to persist.
type pricedRequest struct {
	customer  string
	method    string
	lines     []Line
	voucherID pgtype.UUID
	totals    Totals
}

// Create validates, prices, and persists a new bill atomically. The bill
// header and all its lines become visible together or not at all.
func (s *TransactionService) Create(ctx context.Context, actor Actor, req TransactionRequest) (*TransactionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	priced, err := s.price(ctx, store, req)
	if err != nil {
		return nil, err
	}

	transaction, err := store.CreateTransaction(ctx, database.CreateTransactionParams{
		Customer:  priced.customer,
		Method:    priced.method,
		Status:    enum.TransactionStatusOpenBill,
		Total:     decimalToNumeric(priced.totals.Total),
		VoucherID: priced.voucherID,
		CreatedBy: actor.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	lines, err := insertLines(ctx, store, transaction.ID, priced.lines, actor.Username)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &TransactionResult{Transaction: transaction, Lines: lines}, nil
}

// Update replaces a bill's header fields and its whole line set
// atomically, recomputing totals from the new lines only. It does not
// check status or role; callers gate with IsEditable first.
func (s *TransactionService) Update(ctx context.Context, actor Actor, id uuid.UUID, req TransactionRequest) (*TransactionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Row-lock the bill up front: proves existence and serializes
	// concurrent edits of the same bill on the line replace.
	if _, err := store.GetTransactionForUpdate(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	priced, err := s.price(ctx, store, req)
	if err != nil {
		return nil, err
	}

	transaction, err := store.UpdateTransaction(ctx, database.UpdateTransactionParams{
		ID:        id,
		Customer:  priced.customer,
		Method:    priced.method,
		Total:     decimalToNumeric(priced.totals.Total),
		VoucherID: priced.voucherID,
		UpdatedBy: actor.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	if err := store.DeleteTransactionItems(ctx, id); err != nil {
		return nil, fmt.Errorf("delete transaction items: %w", err)
	}

	lines, err := insertLines(ctx, store, id, priced.lines, actor.Username)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &TransactionResult{Transaction: transaction, Lines: lines}, nil
}

// ToggleStatus flips a bill between OPEN_BILL and CLOSE_BILL. The current
// status is re-read under a row lock inside the same transaction that
// writes the new one, so a stale caller cannot bypass the reopen rule.
// Reopening a closed bill requires the admin role.
func (s *TransactionService) ToggleStatus(ctx context.Context, actor Actor, id uuid.UUID) (database.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Transaction{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetTransactionForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Transaction{}, ErrTransactionNotFound
		}
		return database.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	next := enum.TransactionStatusCloseBill
	if current.Status == enum.TransactionStatusCloseBill {
		next = enum.TransactionStatusOpenBill
	}

	if next == enum.TransactionStatusOpenBill && !actor.IsAdmin() {
		return database.Transaction{}, ErrForbidden
	}

	updated, err := store.UpdateTransactionStatus(ctx, database.UpdateTransactionStatusParams{
		ID:        id,
		Status:    next,
		UpdatedBy: actor.Username,
	})
	if err != nil {
		return database.Transaction{}, fmt.Errorf("update transaction status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Transaction{}, fmt.Errorf("commit tx: %w", err)
	}

	return updated, nil
}

// price validates the request, resolves active items and the optional
// voucher, and computes totals. No writes happen here.
func (s *TransactionService) price(ctx context.Context, store TransactionStore, req TransactionRequest) (*pricedRequest, error) {
	customer := trimmed(req.Customer)
	if len(customer) < 3 {
		return nil, ErrCustomerRequired
	}

	if !isValidMethod(req.Method) {
		return nil, ErrInvalidMethod
	}

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	lines := make([]Line, len(req.Items))
	ids := make([]uuid.UUID, 0, len(req.Items))
	seen := make(map[uuid.UUID]bool)
	for i, line := range req.Items {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		itemID, err := uuid.Parse(line.ItemID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidItemID)
		}
		lines[i] = Line{ItemID: itemID, Quantity: line.Quantity}
		if !seen[itemID] {
			seen[itemID] = true
			ids = append(ids, itemID)
		}
	}

	// Only items that are active right now may be put on a bill.
	items, err := store.ListItems(ctx, database.ListItemsParams{
		IDs:      ids,
		IsActive: pgtype.Bool{Bool: true, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	priceByID := make(map[uuid.UUID]decimal.Decimal, len(items))
	for _, it := range items {
		priceByID[it.ID] = numericToDecimal(it.Price)
	}

	voucherID := pgtype.UUID{}
	percentage := decimal.Zero
	if v := trimmed(req.VoucherID); v != "" {
		vid, err := uuid.Parse(v)
		if err != nil {
			return nil, ErrInvalidVoucherID
		}
		voucher, err := store.GetActiveVoucher(ctx, vid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrVoucherNotFound
			}
			return nil, fmt.Errorf("get voucher: %w", err)
		}
		voucherID = pgtype.UUID{Bytes: voucher.ID, Valid: true}
		percentage = numericToDecimal(voucher.Percentage)
	}

	totals, err := ComputeTotals(lines, priceByID, percentage)
	if err != nil {
		return nil, err
	}

	return &pricedRequest{
		customer:  customer,
		method:    req.Method,
		lines:     lines,
		voucherID: voucherID,
		totals:    totals,
	}, nil
}

func insertLines(ctx context.Context, store TransactionStore, transactionID uuid.UUID, lines []Line, actor string) ([]database.TransactionItem, error) {
	out := make([]database.TransactionItem, len(lines))
	for i, line := range lines {
		ti, err := store.CreateTransactionItem(ctx, database.CreateTransactionItemParams{
			TransactionID: transactionID,
			ItemID:        line.ItemID,
			Quantity:      line.Quantity,
			CreatedBy:     actor,
		})
		if err != nil {
			return nil, fmt.Errorf("create transaction item: %w", err)
		}
		out[i] = ti
	}
	return out, nil
}

// --- Helpers ---

func isValidMethod(m string) bool {
	switch m {
	case enum.PaymentMethodQRIS, enum.PaymentMethodCash, enum.PaymentMethodDebit:
		return true
	}
	return false
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
