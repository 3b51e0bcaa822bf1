package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kopjum-pos/api/internal/database"
	"github.com/kopjum-pos/api/internal/enum"
	"github.com/kopjum-pos/api/internal/service"
)

// --- Mock CatalogStore ---

type mockCatalogStore struct {
	getItemFn           func(ctx context.Context, id uuid.UUID) (database.Item, error)
	createItemFn        func(ctx context.Context, arg database.CreateItemParams) (database.Item, error)
	updateItemDetailsFn func(ctx context.Context, arg database.UpdateItemDetailsParams) (database.Item, error)
	deactivateItemFn    func(ctx context.Context, arg database.DeactivateItemParams) (uuid.UUID, error)
	getVoucherFn        func(ctx context.Context, id uuid.UUID) (database.Voucher, error)
	createVoucherFn     func(ctx context.Context, arg database.CreateVoucherParams) (database.Voucher, error)
	updateVoucherNameFn func(ctx context.Context, arg database.UpdateVoucherNameParams) (database.Voucher, error)
	deactivateVoucherFn func(ctx context.Context, arg database.DeactivateVoucherParams) (uuid.UUID, error)
}

func (m *mockCatalogStore) GetItem(ctx context.Context, id uuid.UUID) (database.Item, error) {
	if m.getItemFn != nil {
		return m.getItemFn(ctx, id)
	}
	return database.Item{}, pgx.ErrNoRows
}

func (m *mockCatalogStore) CreateItem(ctx context.Context, arg database.CreateItemParams) (database.Item, error) {
	if m.createItemFn != nil {
		return m.createItemFn(ctx, arg)
	}
	return database.Item{}, pgx.ErrNoRows
}

func (m *mockCatalogStore) UpdateItemDetails(ctx context.Context, arg database.UpdateItemDetailsParams) (database.Item, error) {
	if m.updateItemDetailsFn != nil {
		return m.updateItemDetailsFn(ctx, arg)
	}
	return database.Item{}, pgx.ErrNoRows
}

func (m *mockCatalogStore) DeactivateItem(ctx context.Context, arg database.DeactivateItemParams) (uuid.UUID, error) {
	if m.deactivateItemFn != nil {
		return m.deactivateItemFn(ctx, arg)
	}
	return uuid.Nil, pgx.ErrNoRows
}

func (m *mockCatalogStore) GetVoucher(ctx context.Context, id uuid.UUID) (database.Voucher, error) {
	if m.getVoucherFn != nil {
		return m.getVoucherFn(ctx, id)
	}
	return database.Voucher{}, pgx.ErrNoRows
}

func (m *mockCatalogStore) CreateVoucher(ctx context.Context, arg database.CreateVoucherParams) (database.Voucher, error) {
	if m.createVoucherFn != nil {
		return m.createVoucherFn(ctx, arg)
	}
	return database.Voucher{}, pgx.ErrNoRows
}

func (m *mockCatalogStore) UpdateVoucherName(ctx context.Context, arg database.UpdateVoucherNameParams) (database.Voucher, error) {
	if m.updateVoucherNameFn != nil {
		return m.updateVoucherNameFn(ctx, arg)
	}
	return database.Voucher{}, pgx.ErrNoRows
}

func (m *mockCatalogStore) DeactivateVoucher(ctx context.Context, arg database.DeactivateVoucherParams) (uuid.UUID, error) {
	if m.deactivateVoucherFn != nil {
		return m.deactivateVoucherFn(ctx, arg)
	}
	return uuid.Nil, pgx.ErrNoRows
}

func newCatalogService(store *mockCatalogStore) *service.CatalogService {
	return service.NewCatalogService(&mockPool{}, func(db database.DBTX) service.CatalogStore {
		return store
	})
}

// --- UpdateItem ---

func TestUpdateItem_SamePriceUpdatesInPlace(t *testing.T) {
	itemID := uuid.New()

	var forked bool
	store := &mockCatalogStore{
		getItemFn: func(ctx context.Context, id uuid.UUID) (database.Item, error) {
			return database.Item{
				ID:       itemID,
				Name:     "Es Teh",
				Type:     enum.ItemTypeDrink,
				Category: enum.ItemCategoryTea,
				Price:    testNumeric(t, "8000.00"),
				IsActive: true,
			}, nil
		},
		updateItemDetailsFn: func(ctx context.Context, arg database.UpdateItemDetailsParams) (database.Item, error) {
			if arg.ID != itemID {
				t.Errorf("id: got %v, want %v", arg.ID, itemID)
			}
			if arg.Name != "Es Teh Manis" {
				t.Errorf("name: got %s, want Es Teh Manis", arg.Name)
			}
			return database.Item{ID: itemID, Name: arg.Name}, nil
		},
		createItemFn: func(ctx context.Context, arg database.CreateItemParams) (database.Item, error) {
			forked = true
			return database.Item{}, nil
		},
	}

	updated, err := newCatalogService(store).UpdateItem(context.Background(), admin(), itemID, service.UpdateItemRequest{
		Name:     "Es Teh Manis",
		Type:     enum.ItemTypeDrink,
		Category: enum.ItemCategoryTea,
		Price:    "8000.00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forked {
		t.Error("same price must not fork a new item row")
	}
	if updated.ID != itemID {
		t.Errorf("returned id: got %v, want %v", updated.ID, itemID)
	}
}

func TestUpdateItem_NewPriceForksRow(t *testing.T) {
	oldID := uuid.New()
	newID := uuid.New()

	var deactivatedOld bool
	store := &mockCatalogStore{
		getItemFn: func(ctx context.Context, id uuid.UUID) (database.Item, error) {
			return database.Item{
				ID:       oldID,
				Name:     "Es Teh",
				Type:     enum.ItemTypeDrink,
				Category: enum.ItemCategoryTea,
				Price:    testNumeric(t, "8000.00"),
				IsActive: true,
			}, nil
		},
		createItemFn: func(ctx context.Context, arg database.CreateItemParams) (database.Item, error) {
			if arg.CreatedBy != "sari" {
				t.Errorf("created_by: got %s, want sari", arg.CreatedBy)
			}
			return database.Item{ID: newID, Name: arg.Name, Price: arg.Price, IsActive: true}, nil
		},
		deactivateItemFn: func(ctx context.Context, arg database.DeactivateItemParams) (uuid.UUID, error) {
			if arg.ID != oldID {
				t.Errorf("deactivated: got %v, want %v", arg.ID, oldID)
			}
			deactivatedOld = true
			return oldID, nil
		},
		updateItemDetailsFn: func(ctx context.Context, arg database.UpdateItemDetailsParams) (database.Item, error) {
			t.Error("price change must not update the priced row in place")
			return database.Item{}, nil
		},
	}

	updated, err := newCatalogService(store).UpdateItem(context.Background(), admin(), oldID, service.UpdateItemRequest{
		Name:     "Es Teh",
		Type:     enum.ItemTypeDrink,
		Category: enum.ItemCategoryTea,
		Price:    "9000.00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deactivatedOld {
		t.Error("old row must be deactivated on a price change")
	}
	if updated.ID != newID {
		t.Errorf("returned id: got %v, want the forked row %v", updated.ID, newID)
	}
}

func TestUpdateItem_Errors(t *testing.T) {
	cases := []struct {
		name    string
		price   string
		wantErr error
	}{
		{"negative price", "-1", service.ErrInvalidPrice},
		{"malformed price", "abc", service.ErrMalformedPrice},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newCatalogService(&mockCatalogStore{}).UpdateItem(context.Background(), admin(), uuid.New(), service.UpdateItemRequest{
				Name:  "Es Teh",
				Price: tc.price,
			})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestUpdateItem_NotFound(t *testing.T) {
	_, err := newCatalogService(&mockCatalogStore{}).UpdateItem(context.Background(), admin(), uuid.New(), service.UpdateItemRequest{
		Name:  "Es Teh",
		Price: "8000.00",
	})
	if !errors.Is(err, service.ErrItemNotFound) {
		t.Errorf("got %v, want %v", err, service.ErrItemNotFound)
	}
}

// --- UpdateVoucher ---

func TestUpdateVoucher_NewPercentageForksRow(t *testing.T) {
	oldID := uuid.New()
	newID := uuid.New()

	var deactivatedOld bool
	store := &mockCatalogStore{
		getVoucherFn: func(ctx context.Context, id uuid.UUID) (database.Voucher, error) {
			return database.Voucher{
				ID:         oldID,
				Name:       "Promo Merdeka",
				Percentage: testNumeric(t, "10.00"),
				IsActive:   true,
			}, nil
		},
		createVoucherFn: func(ctx context.Context, arg database.CreateVoucherParams) (database.Voucher, error) {
			return database.Voucher{ID: newID, Name: arg.Name, Percentage: arg.Percentage, IsActive: true}, nil
		},
		deactivateVoucherFn: func(ctx context.Context, arg database.DeactivateVoucherParams) (uuid.UUID, error) {
			deactivatedOld = true
			return oldID, nil
		},
	}

	updated, err := newCatalogService(store).UpdateVoucher(context.Background(), admin(), oldID, service.UpdateVoucherRequest{
		Name:       "Promo Merdeka",
		Percentage: "15",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deactivatedOld {
		t.Error("old voucher must be deactivated on a percentage change")
	}
	if updated.ID != newID {
		t.Errorf("returned id: got %v, want the forked row %v", updated.ID, newID)
	}
}

func TestUpdateVoucher_SamePercentageRenamesInPlace(t *testing.T) {
	voucherID := uuid.New()

	store := &mockCatalogStore{
		getVoucherFn: func(ctx context.Context, id uuid.UUID) (database.Voucher, error) {
			return database.Voucher{
				ID:         voucherID,
				Name:       "Promo Merdeka",
				Percentage: testNumeric(t, "10.00"),
				IsActive:   true,
			}, nil
		},
		updateVoucherNameFn: func(ctx context.Context, arg database.UpdateVoucherNameParams) (database.Voucher, error) {
			if arg.Name != "Promo Kemerdekaan" {
				t.Errorf("name: got %s, want Promo Kemerdekaan", arg.Name)
			}
			return database.Voucher{ID: voucherID, Name: arg.Name}, nil
		},
		createVoucherFn: func(ctx context.Context, arg database.CreateVoucherParams) (database.Voucher, error) {
			t.Error("same percentage must not fork a new voucher row")
			return database.Voucher{}, nil
		},
	}

	_, err := newCatalogService(store).UpdateVoucher(context.Background(), admin(), voucherID, service.UpdateVoucherRequest{
		Name:       "Promo Kemerdekaan",
		Percentage: "10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateVoucher_InvalidPercentage(t *testing.T) {
	cases := []struct {
		name    string
		pct     string
		wantErr error
	}{
		{"negative", "-5", service.ErrInvalidPercentage},
		{"above hundred", "120", service.ErrInvalidPercentage},
		{"malformed", "ten", service.ErrMalformedPercentage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newCatalogService(&mockCatalogStore{}).UpdateVoucher(context.Background(), admin(), uuid.New(), service.UpdateVoucherRequest{
				Name:       "Promo",
				Percentage: tc.pct,
			})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestUpdateVoucher_NotFound(t *testing.T) {
	_, err := newCatalogService(&mockCatalogStore{}).UpdateVoucher(context.Background(), admin(), uuid.New(), service.UpdateVoucherRequest{
		Name:       "Promo",
		Percentage: "10",
	})
	if !errors.Is(err, service.ErrVoucherMissing) {
		t.Errorf("got %v, want %v", err, service.ErrVoucherMissing)
	}
}
