package store

import (
	"context"
	"time"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListStockLevels(ctx context.Context) ([]domain.StockLevel, error)

	OpenShift(ctx context.Context, cmd domain.OpenShiftCommand) (*domain.ShiftSession, error)
	CloseShift(ctx context.Context, cmd domain.CloseShiftCommand) (*domain.ShiftSession, error)
	ReopenShift(ctx context.Context, cmd domain.ReopenShiftCommand) (*domain.ShiftSession, error)
	DeleteShift(ctx context.Context, id string) error
	GetShift(ctx context.Context, id string) (*domain.ShiftSession, error)
	GetActiveShift(ctx context.Context) (*domain.ShiftSession, error)
	ListShifts(ctx context.Context, openedBy string) ([]domain.ShiftSession, error)
	ListSoldItemsSince(ctx context.Context, since time.Time) ([]domain.SoldItem, error)

	CreateCustomer(ctx context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error)
	UpdateCustomer(ctx context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error)
	GetCustomer(ctx context.Context, id string) (*domain.CreditCustomer, error)
	ListCustomers(ctx context.Context) ([]domain.CreditCustomer, error)
	AuthorizeDebt(ctx context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error)
	RecordPayment(ctx context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error)
	ListCustomerTransactions(ctx context.Context, customerID string) ([]domain.CreditTransaction, error)
	ListTransactionsInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.CreditTransaction, error)

	RecordSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context, shiftID string) ([]domain.Sale, error)
	ListSaleItemsSince(ctx context.Context, since time.Time) ([]domain.SoldItem, error)

	// PurgeHistory clears operational history and stamps at as the last export.
	PurgeHistory(ctx context.Context, at time.Time) error

	GetAppConfig(ctx context.Context) (domain.AppConfig, error)
	SaveAppConfig(ctx context.Context, cfg domain.AppConfig) error

	GetAdvisorSettings(ctx context.Context) (domain.AdvisorSettings, error)
	SaveAdvisorSettings(ctx context.Context, settings domain.AdvisorSettings) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
