package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("BARFLOW_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BARFLOW_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.PurgeHistory(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("purge: %v", err)
	}
	return s
}

func TestCloseAndReopenRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("P-IT-%d", stamp)
	shiftID := fmt.Sprintf("shift-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = $1`, shiftID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.CreateProduct(ctx, domain.Product{
		ID: productID, Name: fmt.Sprintf("Cerveza IT %d", stamp), Category: "cerveza", CostPrice: 1000, SalePrice: 3000,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	openedAt := time.Now().UTC().Truncate(time.Microsecond)
	if _, err := s.OpenShift(ctx, domain.OpenShiftCommand{
		ID: shiftID, OpenedBy: "admin", OpenedAt: openedAt,
		Counts: []domain.InventoryCount{{ProductID: productID, Count: 10}},
	}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	_, err := s.OpenShift(ctx, domain.OpenShiftCommand{ID: shiftID + "-dup", OpenedBy: "admin", OpenedAt: openedAt})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on second open, got %v", err)
	}

	closed, err := s.CloseShift(ctx, domain.CloseShiftCommand{
		ShiftID: shiftID, ClosedBy: "admin", ClosedAt: openedAt.Add(time.Hour), RealCash: 12000,
		FinalCounts: []domain.InventoryCount{{ProductID: productID, Count: 6}},
	})
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.SalesReport == nil || closed.SalesReport.TotalRevenue != 12000 || closed.SalesReport.Difference != 0 {
		t.Fatalf("unexpected report %+v", closed.SalesReport)
	}
	if len(closed.SalesReport.ItemsSold) != 1 || closed.SalesReport.ItemsSold[0].Quantity != 4 {
		t.Fatalf("unexpected items sold %+v", closed.SalesReport.ItemsSold)
	}

	if _, err := s.CloseShift(ctx, domain.CloseShiftCommand{ShiftID: shiftID, ClosedAt: time.Now().UTC()}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on double close, got %v", err)
	}

	reopened, err := s.ReopenShift(ctx, domain.ReopenShiftCommand{ShiftID: shiftID, Entry: domain.AuditEntry{
		At: time.Now().UTC(), UserID: "admin", UserName: "Administrador", Action: domain.AuditActionReopen, Reason: "conteo errado",
	}})
	if err != nil {
		t.Fatalf("reopen shift: %v", err)
	}
	if reopened.Status != domain.ShiftStatusOpen || reopened.ClosedAt != nil || len(reopened.AuditLog) != 1 {
		t.Fatalf("unexpected reopened shift %+v", reopened)
	}

	var qty int
	if err := s.db.QueryRowContext(ctx, `SELECT quantity FROM inventory_stock WHERE product_id = $1`, productID).Scan(&qty); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if qty != 10 {
		t.Fatalf("expected stock restored to 10, got %d", qty)
	}
}

func TestAuthorizeDebtRespectsLimit(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	customerID := fmt.Sprintf("cust-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM credit_customers WHERE id = $1`, customerID)
	})

	if _, err := s.CreateCustomer(ctx, domain.CreditCustomer{ID: customerID, Name: "Don Pedro", MaxLimit: 100000, Active: true}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	debt := domain.CreditTransaction{
		ID: fmt.Sprintf("ctx-it-%d-1", stamp), CustomerID: customerID, EmployeeID: "employee", EmployeeName: "Empleado",
		Amount: 95000, Observation: "ronda", CreatedAt: time.Now().UTC(),
	}
	if _, err := s.AuthorizeDebt(ctx, debt); err != nil {
		t.Fatalf("authorize debt: %v", err)
	}

	debt.ID = fmt.Sprintf("ctx-it-%d-2", stamp)
	debt.Amount = 10000
	_, err := s.AuthorizeDebt(ctx, debt)
	var limitErr *store.LimitExceededError
	if !errors.As(err, &limitErr) || limitErr.Available != 5000 {
		t.Fatalf("expected limit exceeded with 5000 available, got %v", err)
	}

	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.CurrentUsed != 95000 {
		t.Fatalf("expected balance 95000, got %d", customer.CurrentUsed)
	}
}

func createITProduct(t *testing.T, s *Store, stamp int64) string {
	t.Helper()
	ctx := context.Background()
	productID := fmt.Sprintf("P-IT-%d", stamp)
	if _, err := s.CreateProduct(ctx, domain.Product{
		ID: productID, Name: fmt.Sprintf("Cerveza IT %d", stamp), Category: "cerveza", CostPrice: 1000, SalePrice: 3000,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})
	return productID
}

func TestConcurrentCloseHasSingleWinner(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := createITProduct(t, s, stamp)
	shiftID := fmt.Sprintf("shift-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = $1`, shiftID)
	})

	openedAt := time.Now().UTC().Truncate(time.Microsecond)
	if _, err := s.OpenShift(ctx, domain.OpenShiftCommand{
		ID: shiftID, OpenedBy: "admin", OpenedAt: openedAt,
		Counts: []domain.InventoryCount{{ProductID: productID, Count: 10}},
	}); err != nil {
		t.Fatalf("open shift: %v", err)
	}

	const closers = 4
	errs := make([]error, closers)
	var wg sync.WaitGroup
	for i := range closers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CloseShift(ctx, domain.CloseShiftCommand{
				ShiftID: shiftID, ClosedBy: "employee", ClosedAt: openedAt.Add(time.Hour), RealCash: 12000,
				FinalCounts: []domain.InventoryCount{{ProductID: productID, Count: 6}},
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrConflict):
		default:
			t.Fatalf("losing close must be a conflict, got %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful close, got %d", wins)
	}
}

func TestConcurrentDebtsNeverExceedLimit(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	customerID := fmt.Sprintf("cust-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM credit_customers WHERE id = $1`, customerID)
	})
	if _, err := s.CreateCustomer(ctx, domain.CreditCustomer{ID: customerID, Name: "Dona Marta", MaxLimit: 100000, Active: true}); err != nil {
		t.Fatalf("create customer: %v", err)
	}

	const debtors = 5
	errs := make([]error, debtors)
	var wg sync.WaitGroup
	for i := range debtors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AuthorizeDebt(ctx, domain.CreditTransaction{
				ID: fmt.Sprintf("ctx-it-%d-%d", stamp, i), CustomerID: customerID, EmployeeID: "employee",
				EmployeeName: "Empleado", Amount: 30000, Observation: "ronda", CreatedAt: time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()

	approved := int64(0)
	for _, err := range errs {
		var limitErr *store.LimitExceededError
		switch {
		case err == nil:
			approved += 30000
		case errors.As(err, &limitErr), errors.Is(err, store.ErrConflict):
		default:
			t.Fatalf("rejected debt must be a limit or conflict error, got %v", err)
		}
	}

	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.CurrentUsed != approved || customer.CurrentUsed > customer.MaxLimit {
		t.Fatalf("balance %d does not match approved %d within limit %d", customer.CurrentUsed, approved, customer.MaxLimit)
	}
}

func TestSalesAndConfigRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := createITProduct(t, s, stamp)
	soldAt := time.Now().UTC().Truncate(time.Microsecond)

	sale := domain.Sale{
		ID: fmt.Sprintf("sale-it-%d", stamp), UserID: "employee", UserName: "Empleado", Total: 6000,
		PaymentMethod: domain.PaymentCash, CreatedAt: soldAt,
		Items: []domain.SaleItem{{ProductID: productID, ProductName: "Cerveza IT", Quantity: 2, UnitPrice: 3000, CostPrice: 1000, Subtotal: 6000}},
	}
	if _, err := s.RecordSale(ctx, sale); err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if _, err := s.RecordSale(ctx, sale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on duplicate sale id, got %v", err)
	}

	sales, err := s.ListSales(ctx, "")
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 || len(sales[0].Items) != 1 || sales[0].Items[0].Subtotal != 6000 {
		t.Fatalf("unexpected sales %+v", sales)
	}

	items, err := s.ListSaleItemsSince(ctx, soldAt.Add(-time.Minute))
	if err != nil {
		t.Fatalf("list sale items: %v", err)
	}
	if len(items) != 1 || items[0].Revenue != 6000 || items[0].Profit != 4000 {
		t.Fatalf("unexpected sale items %+v", items)
	}

	threshold := 7
	if err := s.SaveAppConfig(ctx, domain.AppConfig{BarName: "La Esquina", LowStockThreshold: &threshold}); err != nil {
		t.Fatalf("save config: %v", err)
	}
	purgedAt := time.Now().UTC().Truncate(time.Microsecond)
	if err := s.PurgeHistory(ctx, purgedAt); err != nil {
		t.Fatalf("purge: %v", err)
	}
	cfg, err := s.GetAppConfig(ctx)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.BarName != "La Esquina" || cfg.LowStockThreshold == nil || *cfg.LowStockThreshold != 7 {
		t.Fatalf("purge must keep settings, got %+v", cfg)
	}
	if cfg.LastExportAt == nil || !cfg.LastExportAt.Equal(purgedAt) {
		t.Fatalf("expected last export %v, got %v", purgedAt, cfg.LastExportAt)
	}
	if sales, _ := s.ListSales(ctx, ""); len(sales) != 0 {
		t.Fatalf("expected no sales after purge, got %d", len(sales))
	}
}
