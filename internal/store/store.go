package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"ventasvoz/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
	// ErrConflict reports a uniqueness collision: a duplicate name, or a
	// daily-ordinal race between concurrent sale creations (callers retry
	// the create once with a fresh ordinal computation).
	ErrConflict = errors.New("write conflict")
	// ErrVoided reports an edit attempt on a voided sale. Cancellation keeps
	// reporting voided sales as ErrNotFound.
	ErrVoided = errors.New("sale is voided")
)

type Repository interface {
	ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error)
	GetProductByName(ctx context.Context, tenantID string, name string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	GetCurrentPrice(ctx context.Context, productID string) (*domain.PriceEntry, error)
	// SwapPrice closes the open price entry (if any) and opens a new one as a
	// single atomic step.
	SwapPrice(ctx context.Context, productID string, price decimal.Decimal, at time.Time) error
	ListPriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceEntry, error)

	ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)

	GetCustomerByName(ctx context.Context, tenantID string, name string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	// CreateSale writes the header, line items and payments as one atomic
	// unit and assigns the daily ordinal inside the same transaction.
	// Items and payments read back in the order they were given.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error)
	ListSalesByDay(ctx context.Context, tenantID string, day time.Time) ([]domain.Sale, error)
	UpdateSale(ctx context.Context, tenantID string, saleID string, fields domain.SaleUpdate) (*domain.Sale, error)
	// VoidSale reports missing and already-voided sales identically as
	// ErrNotFound so cross-tenant existence is never leaked.
	VoidSale(ctx context.Context, tenantID string, saleID string, at time.Time) (*domain.Sale, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
}
