package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/ledger"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/reconcile"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
)

type stockEntry struct {
	quantity  int
	updatedAt time.Time
}

// Store keeps everything in process. Mutations hold the write lock for their
// whole duration and only touch state once every check has passed.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	stock           map[string]stockEntry
	shiftsByID      map[string]domain.ShiftSession
	activeShiftID   string
	customersByID   map[string]domain.CreditCustomer
	creditEntries   []domain.CreditTransaction
	sales           []domain.Sale
	advisor         domain.AdvisorSettings
	appConfig       domain.AppConfig
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		stock:           make(map[string]stockEntry),
		shiftsByID:      make(map[string]domain.ShiftSession),
		customersByID:   make(map[string]domain.CreditCustomer),
		creditEntries:   make([]domain.CreditTransaction, 0, 64),
		sales:           make([]domain.Sale, 0, 64),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the demo accounts. Passwords come from SEED_ADMIN_PASSWORD
// and SEED_EMPLOYEE_PASSWORD, with dev defaults when unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	employeePwd := envOr("SEED_EMPLOYEE_PASSWORD", "employee123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		log.Warn().Msg("memory store is using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		name     string
		password string
		role     string
	}{
		{"admin", "Administrador", adminPwd, domain.RoleAdmin},
		{"employee", "Empleado Barra", employeePwd, domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("failed to hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "P-AGUILA", Name: "Cerveza Aguila 330ml", Category: "cerveza", CostPrice: 2200, SalePrice: 4000},
		{ID: "P-CLUB", Name: "Club Colombia 330ml", Category: "cerveza", CostPrice: 2600, SalePrice: 4500},
		{ID: "P-CORONA", Name: "Corona 355ml", Category: "cerveza", CostPrice: 4200, SalePrice: 8000},
		{ID: "P-AGUARDIENTE", Name: "Aguardiente Antioqueno 375ml", Category: "licor", CostPrice: 18000, SalePrice: 35000},
		{ID: "P-RON", Name: "Ron Medellin 375ml", Category: "licor", CostPrice: 21000, SalePrice: 40000},
		{ID: "P-AGUA", Name: "Agua 600ml", Category: "sin alcohol", CostPrice: 900, SalePrice: 2500},
		{ID: "P-GASEOSA", Name: "Gaseosa 400ml", Category: "sin alcohol", CostPrice: 1400, SalePrice: 3000},
		{ID: "P-MANI", Name: "Mani Salado", Category: "snack", CostPrice: 800, SalePrice: 2000},
	}
	for _, p := range products {
		p.Active = true
		p.CreatedAt = now
		s.products[p.ID] = p
		s.stock[p.ID] = stockEntry{quantity: 24, updatedAt: now}
	}
	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.catalogLocked() {
		if p.Active {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.SalePrice < 1 || product.CostPrice < 0 {
		return nil, store.Validationf("product requires id, name and non-negative prices")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.Conflictf("product %s already exists", product.ID)
	}
	for _, p := range s.products {
		if strings.EqualFold(p.Name, product.Name) {
			return nil, store.Conflictf("product name %q already exists", product.Name)
		}
	}

	product.Active = true
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.NotFoundf("product %s", id)
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.SalePrice < 1 || product.CostPrice < 0 {
		return nil, store.Validationf("product requires name and non-negative prices")
	}
	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.NotFoundf("product %s", product.ID)
	}

	product.CreatedAt = current.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListStockLevels(_ context.Context) ([]domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := make([]domain.StockLevel, 0, len(s.products))
	for _, p := range s.catalogLocked() {
		if !p.Active {
			continue
		}
		level := domain.StockLevel{
			ProductID:   p.ID,
			ProductName: p.Name,
			Category:    p.Category,
			CostPrice:   p.CostPrice,
			SalePrice:   p.SalePrice,
		}
		if entry, ok := s.stock[p.ID]; ok {
			level.Quantity = entry.quantity
			at := entry.updatedAt
			level.UpdatedAt = &at
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func (s *Store) OpenShift(_ context.Context, cmd domain.OpenShiftCommand) (*domain.ShiftSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeShiftID != "" {
		return nil, store.Conflictf("a shift is already open")
	}
	if _, exists := s.shiftsByID[cmd.ID]; exists {
		return nil, store.Conflictf("shift %s already exists", cmd.ID)
	}

	initial := reconcile.InitialSnapshot(s.catalogLocked(), cmd.Counts)
	if len(initial) == 0 {
		return nil, store.Validationf("no active products to count; add products before opening a shift")
	}

	session := domain.ShiftSession{
		ID:               cmd.ID,
		OpenedBy:         cmd.OpenedBy,
		OpenedAt:         cmd.OpenedAt,
		Status:           domain.ShiftStatusOpen,
		InitialInventory: initial,
		FinalInventory:   []domain.InventoryCount{},
		AuditLog:         []domain.AuditEntry{},
	}

	for _, c := range session.InitialInventory {
		s.stock[c.ProductID] = stockEntry{quantity: c.Count, updatedAt: cmd.OpenedAt}
	}
	s.shiftsByID[session.ID] = session
	s.activeShiftID = session.ID
	return cloneShift(&session), nil
}

func (s *Store) CloseShift(_ context.Context, cmd domain.CloseShiftCommand) (*domain.ShiftSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.shiftsByID[cmd.ShiftID]
	if !exists {
		return nil, store.NotFoundf("shift %s", cmd.ShiftID)
	}
	if session.Status != domain.ShiftStatusOpen {
		return nil, store.Conflictf("shift %s is already closed", cmd.ShiftID)
	}

	catalog := s.catalogLocked()
	window := s.entriesBetweenLocked(session.OpenedAt, cmd.ClosedAt)
	final := reconcile.FinalSnapshot(catalog, cmd.FinalCounts)
	report := reconcile.BuildReport(catalog, session.InitialInventory, final, window, cmd.RealCash)

	closedBy := cmd.ClosedBy
	closedAt := cmd.ClosedAt
	realCash := cmd.RealCash
	session.Status = domain.ShiftStatusClosed
	session.ClosedBy = &closedBy
	session.ClosedAt = &closedAt
	session.FinalInventory = final
	session.SalesReport = &report
	session.RealCash = &realCash
	session.ClosingObservation = cmd.ClosingObservation

	for productID, qty := range reconcile.ClosingStock(session.InitialInventory, final) {
		s.stock[productID] = stockEntry{quantity: qty, updatedAt: closedAt}
	}
	s.shiftsByID[session.ID] = session
	s.activeShiftID = ""
	return cloneShift(&session), nil
}

func (s *Store) ReopenShift(_ context.Context, cmd domain.ReopenShiftCommand) (*domain.ShiftSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.shiftsByID[cmd.ShiftID]
	if !exists {
		return nil, store.NotFoundf("shift %s", cmd.ShiftID)
	}
	if session.Status != domain.ShiftStatusClosed {
		return nil, store.Conflictf("shift %s is not closed", cmd.ShiftID)
	}
	if s.activeShiftID != "" {
		return nil, store.Conflictf("shift %s is open; close it before reopening another", s.activeShiftID)
	}

	for productID, qty := range reconcile.RestoreCounts(session.InitialInventory, session.FinalInventory) {
		s.stock[productID] = stockEntry{quantity: qty, updatedAt: cmd.Entry.At}
	}

	session.Status = domain.ShiftStatusOpen
	session.ClosedBy = nil
	session.ClosedAt = nil
	if session.SalesReport != nil {
		report := *session.SalesReport
		report.ItemsSold = []domain.SoldItem{}
		session.SalesReport = &report
	}
	session.AuditLog = append(slices.Clone(session.AuditLog), cmd.Entry)

	s.shiftsByID[session.ID] = session
	s.activeShiftID = session.ID
	return cloneShift(&session), nil
}

func (s *Store) DeleteShift(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.shiftsByID[id]; !exists {
		return store.NotFoundf("shift %s", id)
	}
	delete(s.shiftsByID, id)
	if s.activeShiftID == id {
		s.activeShiftID = ""
	}
	for i := range s.sales {
		if s.sales[i].ShiftID == id {
			s.sales[i].ShiftID = ""
		}
	}
	return nil
}

func (s *Store) GetShift(_ context.Context, id string) (*domain.ShiftSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.shiftsByID[id]
	if !exists {
		return nil, store.NotFoundf("shift %s", id)
	}
	return cloneShift(&session), nil
}

func (s *Store) GetActiveShift(_ context.Context) (*domain.ShiftSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeShiftID == "" {
		return nil, store.NotFoundf("no open shift")
	}
	session := s.shiftsByID[s.activeShiftID]
	return cloneShift(&session), nil
}

func (s *Store) ListShifts(_ context.Context, openedBy string) ([]domain.ShiftSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts := make([]domain.ShiftSession, 0, len(s.shiftsByID))
	for _, session := range s.shiftsByID {
		if openedBy != "" && session.OpenedBy != openedBy {
			continue
		}
		shifts = append(shifts, *cloneShift(&session))
	}
	slices.SortFunc(shifts, func(a, b domain.ShiftSession) int {
		return b.OpenedAt.Compare(a.OpenedAt)
	})
	return shifts, nil
}

func (s *Store) ListSoldItemsSince(_ context.Context, since time.Time) ([]domain.SoldItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.SoldItem, 0, 64)
	for _, session := range s.shiftsByID {
		if session.Status != domain.ShiftStatusClosed || session.SalesReport == nil {
			continue
		}
		if session.ClosedAt == nil || session.ClosedAt.Before(since) {
			continue
		}
		items = append(items, session.SalesReport.ItemsSold...)
	}
	return items, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" || customer.Name == "" || customer.MaxLimit < 0 {
		return nil, store.Validationf("customer requires id, name and a non-negative limit")
	}
	if _, exists := s.customersByID[customer.ID]; exists {
		return nil, store.Conflictf("customer %s already exists", customer.ID)
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.CurrentUsed = 0
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.customersByID[customer.ID]
	if !exists {
		return nil, store.NotFoundf("customer %s", customer.ID)
	}
	if customer.MaxLimit < current.CurrentUsed {
		return nil, store.Validationf("max_limit %d is below the current balance %d", customer.MaxLimit, current.CurrentUsed)
	}

	customer.CurrentUsed = current.CurrentUsed
	customer.CreatedAt = current.CreatedAt
	s.customersByID[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.CreditCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.NotFoundf("customer %s", id)
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.CreditCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.CreditCustomer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.CreditCustomer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) AuthorizeDebt(_ context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[entry.CustomerID]
	if !exists {
		return nil, store.NotFoundf("customer %s", entry.CustomerID)
	}
	if !customer.Active {
		return nil, store.Validationf("customer %s is inactive", entry.CustomerID)
	}
	used, err := ledger.ApplyDebt(customer.CurrentUsed, customer.MaxLimit, entry.Amount)
	if err != nil {
		return nil, err
	}

	entry.Type = domain.CreditTypeDebt
	entry.PaymentMethod = ""
	entry.CustomerName = customer.Name
	customer.CurrentUsed = used
	s.customersByID[customer.ID] = customer
	s.creditEntries = append(s.creditEntries, entry)
	saved := entry
	return &saved, nil
}

func (s *Store) RecordPayment(_ context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[entry.CustomerID]
	if !exists {
		return nil, store.NotFoundf("customer %s", entry.CustomerID)
	}

	entry.Type = domain.CreditTypePayment
	entry.CustomerName = customer.Name
	customer.CurrentUsed = ledger.ApplyPayment(customer.CurrentUsed, entry.Amount)
	s.customersByID[customer.ID] = customer
	s.creditEntries = append(s.creditEntries, entry)
	saved := entry
	return &saved, nil
}

func (s *Store) ListCustomerTransactions(_ context.Context, customerID string) ([]domain.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.customersByID[customerID]; !exists {
		return nil, store.NotFoundf("customer %s", customerID)
	}
	entries := make([]domain.CreditTransaction, 0, 16)
	for _, entry := range s.creditEntries {
		if entry.CustomerID == customerID {
			entries = append(entries, entry)
		}
	}
	sortNewestFirst(entries)
	return entries, nil
}

func (s *Store) ListTransactionsInRange(_ context.Context, from time.Time, to time.Time) ([]domain.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entriesBetweenLocked(from, to)
	sortNewestFirst(entries)
	return entries, nil
}

func (s *Store) RecordSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.Validationf("sale requires an id and at least one item")
	}
	if sale.ShiftID != "" {
		if _, ok := s.shiftsByID[sale.ShiftID]; !ok {
			return nil, store.NotFoundf("shift %s", sale.ShiftID)
		}
	}
	for _, existing := range s.sales {
		if existing.ID == sale.ID {
			return nil, store.Conflictf("sale %s already exists", sale.ID)
		}
	}
	sale.Items = slices.Clone(sale.Items)
	s.sales = append(s.sales, sale)
	saved := sale
	saved.Items = slices.Clone(sale.Items)
	return &saved, nil
}

// ListSales returns tickets newest first, optionally limited to one shift.
func (s *Store) ListSales(_ context.Context, shiftID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if shiftID != "" && sale.ShiftID != shiftID {
			continue
		}
		sale.Items = slices.Clone(sale.Items)
		sales = append(sales, sale)
	}
	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sales, nil
}

func (s *Store) ListSaleItemsSince(_ context.Context, since time.Time) ([]domain.SoldItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.SoldItem, 0, 64)
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(since) {
			continue
		}
		for _, item := range sale.Items {
			items = append(items, domain.SoldItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				Revenue:     item.Subtotal,
				Profit:      item.Subtotal - int64(item.Quantity)*item.CostPrice,
			})
		}
	}
	return items, nil
}

func (s *Store) PurgeHistory(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shiftsByID = make(map[string]domain.ShiftSession)
	s.activeShiftID = ""
	s.creditEntries = make([]domain.CreditTransaction, 0, 64)
	s.sales = make([]domain.Sale, 0, 64)
	exportedAt := at.UTC()
	s.appConfig.LastExportAt = &exportedAt
	s.stock = make(map[string]stockEntry)
	for id, customer := range s.customersByID {
		customer.CurrentUsed = 0
		s.customersByID[id] = customer
	}
	return nil
}

func (s *Store) GetAdvisorSettings(_ context.Context) (domain.AdvisorSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := s.advisor
	settings.HasAPIKey = settings.APIKey != ""
	return settings, nil
}

func (s *Store) SaveAdvisorSettings(_ context.Context, settings domain.AdvisorSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advisor = settings
	return nil
}

func (s *Store) GetAppConfig(_ context.Context) (domain.AppConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.appConfig
	if cfg.LowStockThreshold != nil {
		threshold := *cfg.LowStockThreshold
		cfg.LowStockThreshold = &threshold
	}
	if cfg.LastExportAt != nil {
		exportedAt := *cfg.LastExportAt
		cfg.LastExportAt = &exportedAt
	}
	return cfg, nil
}

func (s *Store) SaveAppConfig(_ context.Context, cfg domain.AppConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.LowStockThreshold != nil && *cfg.LowStockThreshold < 0 {
		return store.Validationf("low_stock_threshold must be at least 0")
	}
	s.appConfig = cfg
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Validationf("username and password are required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.Conflictf("username %s already exists", username)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Validationf("username and password are required")
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.NotFoundf("user %s", username)
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// catalogLocked returns every product, active or not, ordered by category
// then name. Callers hold s.mu.
func (s *Store) catalogLocked() []domain.Product {
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products
}

// entriesBetweenLocked is inclusive on both ends.
func (s *Store) entriesBetweenLocked(from time.Time, to time.Time) []domain.CreditTransaction {
	entries := make([]domain.CreditTransaction, 0, 16)
	for _, entry := range s.creditEntries {
		if entry.CreatedAt.Before(from) || entry.CreatedAt.After(to) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func sortNewestFirst(entries []domain.CreditTransaction) {
	slices.SortStableFunc(entries, func(a, b domain.CreditTransaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func cloneShift(src *domain.ShiftSession) *domain.ShiftSession {
	if src == nil {
		return nil
	}
	dst := *src
	dst.InitialInventory = slices.Clone(src.InitialInventory)
	dst.FinalInventory = slices.Clone(src.FinalInventory)
	dst.AuditLog = slices.Clone(src.AuditLog)
	if src.SalesReport != nil {
		report := *src.SalesReport
		report.ItemsSold = slices.Clone(src.SalesReport.ItemsSold)
		dst.SalesReport = &report
	}
	if src.ClosedBy != nil {
		v := *src.ClosedBy
		dst.ClosedBy = &v
	}
	if src.ClosedAt != nil {
		v := *src.ClosedAt
		dst.ClosedAt = &v
	}
	if src.RealCash != nil {
		v := *src.RealCash
		dst.RealCash = &v
	}
	return &dst
}
