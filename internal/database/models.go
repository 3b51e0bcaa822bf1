package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	CreatedBy    string
	UpdatedAt    time.Time
	UpdatedBy    string
}

type Item struct {
	ID        uuid.UUID
	Name      string
	Type      string
	Category  string
	Price     pgtype.Numeric
	IsActive  bool
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
}

type Voucher struct {
	ID         uuid.UUID
	Name       string
	Percentage pgtype.Numeric
	IsActive   bool
	CreatedAt  time.Time
	CreatedBy  string
	UpdatedAt  time.Time
	UpdatedBy  string
}

type Transaction struct {
	ID        uuid.UUID
	Customer  string
	Method    string
	Status    string
	Total     pgtype.Numeric
	VoucherID pgtype.UUID
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
}

type TransactionItem struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	ItemID        uuid.UUID
	Quantity      int32
	CreatedAt     time.Time
	CreatedBy     string
	UpdatedAt     time.Time
	UpdatedBy     string
}
