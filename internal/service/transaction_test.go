package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopjum-pos/api/internal/database"
	"github.com/kopjum-pos/api/internal/enum"
	"github.com/kopjum-pos/api/internal/service"
)

// --- Mock TransactionStore ---

type mockTransactionStore struct {
	listItemsFn               func(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error)
	getActiveVoucherFn        func(ctx context.Context, id uuid.UUID) (database.Voucher, error)
	createTransactionFn       func(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error)
	updateTransactionFn       func(ctx context.Context, arg database.UpdateTransactionParams) (database.Transaction, error)
	createTransactionItemFn   func(ctx context.Context, arg database.CreateTransactionItemParams) (database.TransactionItem, error)
	deleteTransactionItemsFn  func(ctx context.Context, transactionID uuid.UUID) error
	getTransactionForUpdateFn func(ctx context.Context, id uuid.UUID) (database.Transaction, error)
	updateTransactionStatusFn func(ctx context.Context, arg database.UpdateTransactionStatusParams) (database.Transaction, error)
}

func (m *mockTransactionStore) ListItems(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, arg)
	}
	return []database.Item{}, nil
}

func (m *mockTransactionStore) GetActiveVoucher(ctx context.Context, id uuid.UUID) (database.Voucher, error) {
	if m.getActiveVoucherFn != nil {
		return m.getActiveVoucherFn(ctx, id)
	}
	return database.Voucher{}, pgx.ErrNoRows
}

func (m *mockTransactionStore) CreateTransaction(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(ctx, arg)
	}
	return database.Transaction{}, pgx.ErrNoRows
}

func (m *mockTransactionStore) UpdateTransaction(ctx context.Context, arg database.UpdateTransactionParams) (database.Transaction, error) {
	if m.updateTransactionFn != nil {
		return m.updateTransactionFn(ctx, arg)
	}
	return database.Transaction{}, pgx.ErrNoRows
}

func (m *mockTransactionStore) CreateTransactionItem(ctx context.Context, arg database.CreateTransactionItemParams) (database.TransactionItem, error) {
	if m.createTransactionItemFn != nil {
		return m.createTransactionItemFn(ctx, arg)
	}
	return database.TransactionItem{
		ID:            uuid.New(),
		TransactionID: arg.TransactionID,
		ItemID:        arg.ItemID,
		Quantity:      arg.Quantity,
	}, nil
}

func (m *mockTransactionStore) DeleteTransactionItems(ctx context.Context, transactionID uuid.UUID) error {
	if m.deleteTransactionItemsFn != nil {
		return m.deleteTransactionItemsFn(ctx, transactionID)
	}
	return nil
}

func (m *mockTransactionStore) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (database.Transaction, error) {
	if m.getTransactionForUpdateFn != nil {
		return m.getTransactionForUpdateFn(ctx, id)
	}
	return database.Transaction{}, pgx.ErrNoRows
}

func (m *mockTransactionStore) UpdateTransactionStatus(ctx context.Context, arg database.UpdateTransactionStatusParams) (database.Transaction, error) {
	if m.updateTransactionStatusFn != nil {
		return m.updateTransactionStatusFn(ctx, arg)
	}
	return database.Transaction{}, pgx.ErrNoRows
}

// --- Mock TxBeginner ---

type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

type mockPool struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// --- Test helpers ---

func testNumeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		t.Fatalf("scan numeric %q: %v", s, err)
	}
	return n
}

func testItem(t *testing.T, price string) database.Item {
	t.Helper()
	return database.Item{
		ID:       uuid.New(),
		Name:     "Nasi Goreng",
		Type:     enum.ItemTypeFood,
		Category: enum.ItemCategoryMainCourse,
		Price:    testNumeric(t, price),
		IsActive: true,
	}
}

func newService(pool *mockPool, store *mockTransactionStore) *service.TransactionService {
	return service.NewTransactionService(pool, func(db database.DBTX) service.TransactionStore {
		return store
	})
}

func waiter() service.Actor {
	return service.Actor{Username: "budi", Role: enum.RoleWaiters}
}

func admin() service.Actor {
	return service.Actor{Username: "sari", Role: enum.RoleAdmin}
}

// --- Create ---

func TestTransactionCreate_HappyPath(t *testing.T) {
	item := testItem(t, "25000.00")

	var committed bool
	var created database.CreateTransactionParams

	store := &mockTransactionStore{
		listItemsFn: func(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error) {
			if !arg.IsActive.Valid || !arg.IsActive.Bool {
				t.Error("expected active-only item lookup")
			}
			return []database.Item{item}, nil
		},
		createTransactionFn: func(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error) {
			created = arg
			return database.Transaction{
				ID:       uuid.New(),
				Customer: arg.Customer,
				Method:   arg.Method,
				Status:   arg.Status,
				Total:    arg.Total,
			}, nil
		},
	}
	pool := &mockPool{beginFn: func(ctx context.Context) (pgx.Tx, error) {
		return &mockTx{commitFn: func(ctx context.Context) error {
			committed = true
			return nil
		}}, nil
	}}

	result, err := newService(pool, store).Create(context.Background(), waiter(), service.TransactionRequest{
		Customer: "Pak Joko",
		Method:   enum.PaymentMethodCash,
		Items:    []service.LineRequest{{ItemID: item.ID.String(), Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !committed {
		t.Error("expected transaction to be committed")
	}
	if created.Status != enum.TransactionStatusOpenBill {
		t.Errorf("status: got %s, want %s", created.Status, enum.TransactionStatusOpenBill)
	}
	if created.CreatedBy != "budi" {
		t.Errorf("created_by: got %s, want budi", created.CreatedBy)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("lines: got %d, want 1", len(result.Lines))
	}
	if result.Lines[0].Quantity != 2 {
		t.Errorf("quantity: got %d, want 2", result.Lines[0].Quantity)
	}
}

func TestTransactionCreate_WithVoucher(t *testing.T) {
	item := testItem(t, "40000.00")
	voucherID := uuid.New()

	store := &mockTransactionStore{
		listItemsFn: func(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error) {
			return []database.Item{item}, nil
		},
		getActiveVoucherFn: func(ctx context.Context, id uuid.UUID) (database.Voucher, error) {
			if id != voucherID {
				t.Errorf("voucher id: got %v, want %v", id, voucherID)
			}
			return database.Voucher{
				ID:         voucherID,
				Name:       "Promo Merdeka",
				Percentage: testNumeric(t, "15.00"),
				IsActive:   true,
			}, nil
		},
		createTransactionFn: func(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error) {
			var total pgtype.Numeric
			_ = total.Scan("34000.00")
			if arg.Total.Int.Cmp(total.Int) != 0 || arg.Total.Exp != total.Exp {
				t.Errorf("total: got %+v, want %+v", arg.Total, total)
			}
			if !arg.VoucherID.Valid || arg.VoucherID.Bytes != voucherID {
				t.Errorf("voucher_id: got %+v, want %v", arg.VoucherID, voucherID)
			}
			return database.Transaction{ID: uuid.New(), Total: arg.Total, VoucherID: arg.VoucherID}, nil
		},
	}

	_, err := newService(&mockPool{}, store).Create(context.Background(), waiter(), service.TransactionRequest{
		Customer:  "Bu Rina",
		Method:    enum.PaymentMethodQRIS,
		VoucherID: voucherID.String(),
		Items:     []service.LineRequest{{ItemID: item.ID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactionCreate_Validation(t *testing.T) {
	item := testItem(t, "10000.00")

	cases := []struct {
		name    string
		req     service.TransactionRequest
		wantErr error
	}{
		{
			name: "empty items",
			req: service.TransactionRequest{
				Customer: "Pak Joko",
				Method:   enum.PaymentMethodCash,
			},
			wantErr: service.ErrEmptyItems,
		},
		{
			name: "short customer",
			req: service.TransactionRequest{
				Customer: "  Jo  ",
				Method:   enum.PaymentMethodCash,
				Items:    []service.LineRequest{{ItemID: item.ID.String(), Quantity: 1}},
			},
			wantErr: service.ErrCustomerRequired,
		},
		{
			name: "bad method",
			req: service.TransactionRequest{
				Customer: "Pak Joko",
				Method:   "CHEQUE",
				Items:    []service.LineRequest{{ItemID: item.ID.String(), Quantity: 1}},
			},
			wantErr: service.ErrInvalidMethod,
		},
		{
			name: "zero quantity",
			req: service.TransactionRequest{
				Customer: "Pak Joko",
				Method:   enum.PaymentMethodCash,
				Items:    []service.LineRequest{{ItemID: item.ID.String(), Quantity: 0}},
			},
			wantErr: service.ErrInvalidQuantity,
		},
		{
			name: "malformed item id",
			req: service.TransactionRequest{
				Customer: "Pak Joko",
				Method:   enum.PaymentMethodCash,
				Items:    []service.LineRequest{{ItemID: "not-a-uuid", Quantity: 1}},
			},
			wantErr: service.ErrInvalidItemID,
		},
		{
			name: "malformed voucher id",
			req: service.TransactionRequest{
				Customer:  "Pak Joko",
				Method:    enum.PaymentMethodCash,
				VoucherID: "not-a-uuid",
				Items:     []service.LineRequest{{ItemID: item.ID.String(), Quantity: 1}},
			},
			wantErr: service.ErrInvalidVoucherID,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockTransactionStore{
				listItemsFn: func(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error) {
					return []database.Item{item}, nil
				},
				createTransactionFn: func(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error) {
					t.Error("transaction must not be created for invalid input")
					return database.Transaction{}, nil
				},
			}

			_, err := newService(&mockPool{}, store).Create(context.Background(), waiter(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestTransactionCreate_InactiveItemRejected(t *testing.T) {
	missing := uuid.New()

	store := &mockTransactionStore{
		listItemsFn: func(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error) {
			// Active-only lookup finds nothing.
			return []database.Item{}, nil
		},
	}

	_, err := newService(&mockPool{}, store).Create(context.Background(), waiter(), service.TransactionRequest{
		Customer: "Pak Joko",
		Method:   enum.PaymentMethodCash,
		Items:    []service.LineRequest{{ItemID: missing.String(), Quantity: 1}},
	})

	var notFound *service.ItemNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ItemNotFoundError, got %v", err)
	}
	if notFound.ItemID != missing {
		t.Errorf("item id: got %v, want %v", notFound.ItemID, missing)
	}
}

func TestTransactionCreate_VoucherNotFound(t *testing.T) {
	item := testItem(t, "10000.00")

	store := &mockTransactionStore{
		listItemsFn: func(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error) {
			return []database.Item{item}, nil
		},
	}

	_, err := newService(&mockPool{}, store).Create(context.Background(), waiter(), service.TransactionRequest{
		Customer:  "Pak Joko",
		Method:    enum.PaymentMethodCash,
		VoucherID: uuid.New().String(),
		Items:     []service.LineRequest{{ItemID: item.ID.String(), Quantity: 1}},
	})
	if !errors.Is(err, service.ErrVoucherNotFound) {
		t.Errorf("got %v, want %v", err, service.ErrVoucherNotFound)
	}
}

func TestTransactionCreate_LineFailureAbortsAll(t *testing.T) {
	first := testItem(t, "10000.00")
	second := testItem(t, "20000.00")

	var committed, rolledBack bool
	calls := 0

	store := &mockTransactionStore{
		listItemsFn: func(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error) {
			return []database.Item{first, second}, nil
		},
		createTransactionFn: func(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error) {
			return database.Transaction{ID: uuid.New()}, nil
		},
		createTransactionItemFn: func(ctx context.Context, arg database.CreateTransactionItemParams) (database.TransactionItem, error) {
			calls++
			if calls == 2 {
				return database.TransactionItem{}, errors.New("insert failed")
			}
			return database.TransactionItem{ID: uuid.New()}, nil
		},
	}
	pool := &mockPool{beginFn: func(ctx context.Context) (pgx.Tx, error) {
		return &mockTx{
			commitFn: func(ctx context.Context) error {
				committed = true
				return nil
			},
			rollbackFn: func(ctx context.Context) error {
				rolledBack = true
				return nil
			},
		}, nil
	}}

	_, err := newService(pool, store).Create(context.Background(), waiter(), service.TransactionRequest{
		Customer: "Pak Joko",
		Method:   enum.PaymentMethodCash,
		Items: []service.LineRequest{
			{ItemID: first.ID.String(), Quantity: 1},
			{ItemID: second.ID.String(), Quantity: 1},
		},
	})
	if err == nil {
		t.Fatal("expected error from failed line insert")
	}
	if committed {
		t.Error("transaction must not commit when a line insert fails")
	}
	if !rolledBack {
		t.Error("expected rollback after failed line insert")
	}
}

// --- Update ---

func TestTransactionUpdate_NotFound(t *testing.T) {
	store := &mockTransactionStore{}

	_, err := newService(&mockPool{}, store).Update(context.Background(), waiter(), uuid.New(), service.TransactionRequest{
		Customer: "Pak Joko",
		Method:   enum.PaymentMethodCash,
		Items:    []service.LineRequest{{ItemID: uuid.New().String(), Quantity: 1}},
	})
	if !errors.Is(err, service.ErrTransactionNotFound) {
		t.Errorf("got %v, want %v", err, service.ErrTransactionNotFound)
	}
}

func TestTransactionUpdate_ReplacesLines(t *testing.T) {
	item := testItem(t, "15000.00")
	billID := uuid.New()

	var deleted bool
	var inserted int

	store := &mockTransactionStore{
		getTransactionForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Transaction, error) {
			return database.Transaction{ID: billID, Status: enum.TransactionStatusOpenBill}, nil
		},
		listItemsFn: func(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error) {
			return []database.Item{item}, nil
		},
		updateTransactionFn: func(ctx context.Context, arg database.UpdateTransactionParams) (database.Transaction, error) {
			if arg.UpdatedBy != "budi" {
				t.Errorf("updated_by: got %s, want budi", arg.UpdatedBy)
			}
			return database.Transaction{ID: billID, Customer: arg.Customer, Total: arg.Total}, nil
		},
		deleteTransactionItemsFn: func(ctx context.Context, transactionID uuid.UUID) error {
			if transactionID != billID {
				t.Errorf("delete for %v, want %v", transactionID, billID)
			}
			deleted = true
			return nil
		},
		createTransactionItemFn: func(ctx context.Context, arg database.CreateTransactionItemParams) (database.TransactionItem, error) {
			if !deleted {
				t.Error("lines must be deleted before new ones are inserted")
			}
			inserted++
			return database.TransactionItem{ID: uuid.New(), Quantity: arg.Quantity}, nil
		},
	}

	result, err := newService(&mockPool{}, store).Update(context.Background(), waiter(), billID, service.TransactionRequest{
		Customer: "Bu Rina",
		Method:   enum.PaymentMethodDebit,
		Items:    []service.LineRequest{{ItemID: item.ID.String(), Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted lines: got %d, want 1", inserted)
	}
	if len(result.Lines) != 1 || result.Lines[0].Quantity != 3 {
		t.Errorf("result lines: got %+v", result.Lines)
	}
}

// --- ToggleStatus ---

func TestToggleStatus_CloseOpenBill(t *testing.T) {
	billID := uuid.New()

	store := &mockTransactionStore{
		getTransactionForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Transaction, error) {
			return database.Transaction{ID: billID, Status: enum.TransactionStatusOpenBill}, nil
		},
		updateTransactionStatusFn: func(ctx context.Context, arg database.UpdateTransactionStatusParams) (database.Transaction, error) {
			if arg.Status != enum.TransactionStatusCloseBill {
				t.Errorf("status: got %s, want %s", arg.Status, enum.TransactionStatusCloseBill)
			}
			return database.Transaction{ID: billID, Status: arg.Status}, nil
		},
	}

	updated, err := newService(&mockPool{}, store).ToggleStatus(context.Background(), waiter(), billID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.TransactionStatusCloseBill {
		t.Errorf("status: got %s, want %s", updated.Status, enum.TransactionStatusCloseBill)
	}
}

func TestToggleStatus_WaiterCannotReopen(t *testing.T) {
	billID := uuid.New()

	store := &mockTransactionStore{
		getTransactionForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Transaction, error) {
			return database.Transaction{ID: billID, Status: enum.TransactionStatusCloseBill}, nil
		},
		updateTransactionStatusFn: func(ctx context.Context, arg database.UpdateTransactionStatusParams) (database.Transaction, error) {
			t.Error("status must not be written when the reopen is forbidden")
			return database.Transaction{}, nil
		},
	}

	_, err := newService(&mockPool{}, store).ToggleStatus(context.Background(), waiter(), billID)
	if !errors.Is(err, service.ErrForbidden) {
		t.Errorf("got %v, want %v", err, service.ErrForbidden)
	}
}

func TestToggleStatus_AdminReopens(t *testing.T) {
	billID := uuid.New()

	store := &mockTransactionStore{
		getTransactionForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Transaction, error) {
			return database.Transaction{ID: billID, Status: enum.TransactionStatusCloseBill}, nil
		},
		updateTransactionStatusFn: func(ctx context.Context, arg database.UpdateTransactionStatusParams) (database.Transaction, error) {
			if arg.Status != enum.TransactionStatusOpenBill {
				t.Errorf("status: got %s, want %s", arg.Status, enum.TransactionStatusOpenBill)
			}
			return database.Transaction{ID: billID, Status: arg.Status}, nil
		},
	}

	updated, err := newService(&mockPool{}, store).ToggleStatus(context.Background(), admin(), billID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.TransactionStatusOpenBill {
		t.Errorf("status: got %s, want %s", updated.Status, enum.TransactionStatusOpenBill)
	}
}

func TestToggleStatus_NotFound(t *testing.T) {
	store := &mockTransactionStore{}

	_, err := newService(&mockPool{}, store).ToggleStatus(context.Background(), admin(), uuid.New())
	if !errors.Is(err, service.ErrTransactionNotFound) {
		t.Errorf("got %v, want %v", err, service.ErrTransactionNotFound)
	}
}

// --- IsEditable ---

func TestIsEditable(t *testing.T) {
	cases := []struct {
		name   string
		status string
		actor  service.Actor
		want   bool
	}{
		{"waiter open bill", enum.TransactionStatusOpenBill, waiter(), true},
		{"waiter closed bill", enum.TransactionStatusCloseBill, waiter(), false},
		{"admin open bill", enum.TransactionStatusOpenBill, admin(), true},
		{"admin closed bill", enum.TransactionStatusCloseBill, admin(), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := service.IsEditable(tc.status, tc.actor); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
