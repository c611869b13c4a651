package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/ledger"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/reconcile"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/xid"
)

type Store struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// serializationAttempts bounds how often a transaction is replayed after
// postgres aborts it with a serialization failure or deadlock.
const serializationAttempts = 3

// withTx runs fn in a serializable transaction and commits it. Transactions
// aborted by a concurrent writer are replayed so the loser re-reads committed
// state and fails with its real reason. Every error leaving here has passed
// through mapWriteErr.
func (s *Store) withTx(ctx context.Context, subject string, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < serializationAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isSerializationFailure(err) {
			break
		}
	}
	if err != nil {
		return mapWriteErr(err, subject)
	}
	return nil
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

const productColumns = `id, name, category, cost_price, sale_price, active, created_at`

func scanProduct(row interface{ Scan(...any) error }, p *domain.Product) error {
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.CostPrice, &p.SalePrice, &p.Active, &p.CreatedAt); err != nil {
		return err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	catalog, err := loadCatalog(ctx, s.db)
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(catalog))
	for _, p := range catalog {
		if p.Active {
			products = append(products, p)
		}
	}
	return products, nil
}

// loadCatalog returns every product, including inactive ones.
func loadCatalog(ctx context.Context, q queryer) ([]domain.Product, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.SalePrice < 1 || product.CostPrice < 0 {
		return nil, store.Validationf("product requires id, name and non-negative prices")
	}

	product.Active = true
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, cost_price, sale_price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, product.ID, product.Name, product.Category, product.CostPrice, product.SalePrice, product.Active, product.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err, "product "+product.Name)
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id), &product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("product %s", id)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.SalePrice < 1 || product.CostPrice < 0 {
		return nil, store.Validationf("product requires name and non-negative prices")
	}

	var updated domain.Product
	err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, cost_price = $4, sale_price = $5, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Category, product.CostPrice, product.SalePrice, product.Active,
	), &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("product %s", product.ID)
		}
		return nil, mapWriteErr(err, "product "+product.Name)
	}
	return &updated, nil
}

func (s *Store) ListStockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.category, p.cost_price, p.sale_price,
			COALESCE(st.quantity, 0), st.updated_at
		FROM products p
		LEFT JOIN inventory_stock st ON st.product_id = p.id
		WHERE p.active = true
		ORDER BY p.category, p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make([]domain.StockLevel, 0, 64)
	for rows.Next() {
		var level domain.StockLevel
		var updatedAt sql.NullTime
		if err := rows.Scan(&level.ProductID, &level.ProductName, &level.Category, &level.CostPrice,
			&level.SalePrice, &level.Quantity, &updatedAt); err != nil {
			return nil, err
		}
		level.UpdatedAt = timePtr(updatedAt)
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

func (s *Store) OpenShift(ctx context.Context, cmd domain.OpenShiftCommand) (*domain.ShiftSession, error) {
	err := s.withTx(ctx, "open shift", func(tx *sql.Tx) error {
		openID, err := openShiftID(ctx, tx)
		if err != nil {
			return err
		}
		if openID != "" {
			return store.Conflictf("shift %s is already open", openID)
		}

		catalog, err := loadCatalog(ctx, tx)
		if err != nil {
			return err
		}
		initial := reconcile.InitialSnapshot(catalog, cmd.Counts)
		if len(initial) == 0 {
			return store.Validationf("no active products to count; add products before opening a shift")
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shifts (id, opened_by, opened_at, status)
			VALUES ($1,$2,$3,'OPEN')
		`, cmd.ID, cmd.OpenedBy, cmd.OpenedAt); err != nil {
			return err
		}
		if err := insertSnapshot(ctx, tx, cmd.ID, domain.SnapshotInitial, initial); err != nil {
			return err
		}
		return upsertStock(ctx, tx, reconcile.CountMap(initial), cmd.OpenedAt)
	})
	if err != nil {
		return nil, err
	}
	return s.GetShift(ctx, cmd.ID)
}

func (s *Store) CloseShift(ctx context.Context, cmd domain.CloseShiftCommand) (*domain.ShiftSession, error) {
	err := s.withTx(ctx, "close shift", func(tx *sql.Tx) error {
		session, err := loadShiftHeader(ctx, tx, cmd.ShiftID, true)
		if err != nil {
			return err
		}
		if session.Status != domain.ShiftStatusOpen {
			return store.Conflictf("shift %s is already closed", cmd.ShiftID)
		}

		catalog, err := loadCatalog(ctx, tx)
		if err != nil {
			return err
		}
		initial, err := loadSnapshot(ctx, tx, cmd.ShiftID, domain.SnapshotInitial)
		if err != nil {
			return err
		}
		window, err := listEntriesBetween(ctx, tx, session.OpenedAt, cmd.ClosedAt)
		if err != nil {
			return err
		}
		final := reconcile.FinalSnapshot(catalog, cmd.FinalCounts)
		report := reconcile.BuildReport(catalog, initial, final, window, cmd.RealCash)

		if _, err := tx.ExecContext(ctx, `
			UPDATE shifts
			SET status = 'CLOSED', closed_by = $2, closed_at = $3, real_cash = $4, closing_observation = $5,
				total_revenue = $6, total_cost = $7, total_profit = $8, total_credit_sales = $9,
				total_cash_payments = $10, total_non_cash_payments = $11, cash_to_deliver = $12, difference = $13
			WHERE id = $1
		`, cmd.ShiftID, cmd.ClosedBy, cmd.ClosedAt, cmd.RealCash, cmd.ClosingObservation,
			report.TotalRevenue, report.TotalCost, report.TotalProfit, report.TotalCreditSales,
			report.TotalCashPayments, report.TotalNonCashPayments, report.CashToDeliver, report.Difference); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM shift_inventory_snapshots WHERE shift_id = $1 AND snapshot_type = 'FINAL'
		`, cmd.ShiftID); err != nil {
			return err
		}
		if err := insertSnapshot(ctx, tx, cmd.ShiftID, domain.SnapshotFinal, final); err != nil {
			return err
		}
		if err := upsertStock(ctx, tx, reconcile.ClosingStock(initial, final), cmd.ClosedAt); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM shift_items WHERE shift_id = $1`, cmd.ShiftID); err != nil {
			return err
		}
		for i, item := range report.ItemsSold {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO shift_items (shift_id, product_id, product_name, quantity, revenue, profit, position)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, cmd.ShiftID, item.ProductID, item.ProductName, item.Quantity, item.Revenue, item.Profit, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetShift(ctx, cmd.ShiftID)
}

func (s *Store) ReopenShift(ctx context.Context, cmd domain.ReopenShiftCommand) (*domain.ShiftSession, error) {
	err := s.withTx(ctx, "reopen shift", func(tx *sql.Tx) error {
		session, err := loadShiftHeader(ctx, tx, cmd.ShiftID, true)
		if err != nil {
			return err
		}
		if session.Status != domain.ShiftStatusClosed {
			return store.Conflictf("shift %s is not closed", cmd.ShiftID)
		}
		openID, err := openShiftID(ctx, tx)
		if err != nil {
			return err
		}
		if openID != "" {
			return store.Conflictf("shift %s is open; close it before reopening another", openID)
		}

		initial, err := loadSnapshot(ctx, tx, cmd.ShiftID, domain.SnapshotInitial)
		if err != nil {
			return err
		}
		final, err := loadSnapshot(ctx, tx, cmd.ShiftID, domain.SnapshotFinal)
		if err != nil {
			return err
		}
		if err := upsertStock(ctx, tx, reconcile.RestoreCounts(initial, final), cmd.Entry.At); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM shift_items WHERE shift_id = $1`, cmd.ShiftID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE shifts
			SET status = 'OPEN', closed_by = NULL, closed_at = NULL
			WHERE id = $1
		`, cmd.ShiftID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO shift_audit_log (id, shift_id, user_id, user_name, action, reason, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, xid.New("audit"), cmd.ShiftID, cmd.Entry.UserID, cmd.Entry.UserName, cmd.Entry.Action,
			cmd.Entry.Reason, cmd.Entry.At)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetShift(ctx, cmd.ShiftID)
}

func (s *Store) DeleteShift(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFoundf("shift %s", id)
	}
	return nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*domain.ShiftSession, error) {
	session, err := loadShiftHeader(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	sessions := []domain.ShiftSession{*session}
	if err := hydrateShifts(ctx, s.db, sessions); err != nil {
		return nil, err
	}
	return &sessions[0], nil
}

func (s *Store) GetActiveShift(ctx context.Context) (*domain.ShiftSession, error) {
	id, err := openShiftID(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.NotFoundf("no open shift")
	}
	return s.GetShift(ctx, id)
}

func (s *Store) ListShifts(ctx context.Context, openedBy string) ([]domain.ShiftSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE $1 = '' OR opened_by = $1
		ORDER BY opened_at DESC
	`, openedBy)
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.ShiftSession, 0, 32)
	for rows.Next() {
		var session domain.ShiftSession
		if err := scanShift(rows, &session); err != nil {
			_ = rows.Close()
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if err := hydrateShifts(ctx, s.db, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) ListSoldItemsSince(ctx context.Context, since time.Time) ([]domain.SoldItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, si.product_name, si.quantity, si.revenue, si.profit
		FROM shift_items si
		JOIN shifts sh ON sh.id = si.shift_id
		WHERE sh.status = 'CLOSED' AND sh.closed_at >= $1
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SoldItem, 0, 64)
	for rows.Next() {
		var item domain.SoldItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.Revenue, &item.Profit); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const shiftColumns = `id, opened_by, closed_by, opened_at, closed_at, status, real_cash, closing_observation,
	total_revenue, total_cost, total_profit, total_credit_sales, total_cash_payments,
	total_non_cash_payments, cash_to_deliver, difference`

func scanShift(row interface{ Scan(...any) error }, session *domain.ShiftSession) error {
	var closedBy sql.NullString
	var closedAt sql.NullTime
	var realCash sql.NullInt64
	var revenue, cost, profit, creditSales, cashPayments, nonCash, cashToDeliver, difference sql.NullInt64
	if err := row.Scan(&session.ID, &session.OpenedBy, &closedBy, &session.OpenedAt, &closedAt,
		&session.Status, &realCash, &session.ClosingObservation,
		&revenue, &cost, &profit, &creditSales, &cashPayments, &nonCash, &cashToDeliver, &difference); err != nil {
		return err
	}
	session.OpenedAt = session.OpenedAt.UTC()
	if closedBy.Valid {
		v := closedBy.String
		session.ClosedBy = &v
	}
	session.ClosedAt = timePtr(closedAt)
	if realCash.Valid {
		v := realCash.Int64
		session.RealCash = &v
	}
	if revenue.Valid {
		session.SalesReport = &domain.SalesReport{
			TotalRevenue:         revenue.Int64,
			TotalCost:            cost.Int64,
			TotalProfit:          profit.Int64,
			TotalCreditSales:     creditSales.Int64,
			TotalCashPayments:    cashPayments.Int64,
			TotalNonCashPayments: nonCash.Int64,
			CashToDeliver:        cashToDeliver.Int64,
			Difference:           difference.Int64,
			ItemsSold:            []domain.SoldItem{},
		}
	}
	session.InitialInventory = []domain.InventoryCount{}
	session.FinalInventory = []domain.InventoryCount{}
	session.AuditLog = []domain.AuditEntry{}
	return nil
}

func loadShiftHeader(ctx context.Context, q queryer, id string, forUpdate bool) (*domain.ShiftSession, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var session domain.ShiftSession
	if err := scanShift(q.QueryRowContext(ctx, query, id), &session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("shift %s", id)
		}
		return nil, err
	}
	return &session, nil
}

func openShiftID(ctx context.Context, q queryer) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM shifts WHERE status = 'OPEN' LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// hydrateShifts fills snapshots, sold items and audit entries for sessions
// in three queries regardless of how many sessions there are.
func hydrateShifts(ctx context.Context, q queryer, sessions []domain.ShiftSession) error {
	if len(sessions) == 0 {
		return nil
	}
	index := make(map[string]int, len(sessions))
	ids := make([]string, 0, len(sessions))
	for i, session := range sessions {
		index[session.ID] = i
		ids = append(ids, session.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT shift_id, product_id, product_name, quantity, snapshot_type
		FROM shift_inventory_snapshots
		WHERE shift_id = ANY($1)
		ORDER BY shift_id, snapshot_type, position
	`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var shiftID, snapshotType string
		var count domain.InventoryCount
		if err := rows.Scan(&shiftID, &count.ProductID, &count.ProductName, &count.Count, &snapshotType); err != nil {
			_ = rows.Close()
			return err
		}
		session := &sessions[index[shiftID]]
		if snapshotType == domain.SnapshotInitial {
			session.InitialInventory = append(session.InitialInventory, count)
		} else {
			session.FinalInventory = append(session.FinalInventory, count)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	rows, err = q.QueryContext(ctx, `
		SELECT shift_id, product_id, product_name, quantity, revenue, profit
		FROM shift_items
		WHERE shift_id = ANY($1)
		ORDER BY shift_id, position
	`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var shiftID string
		var item domain.SoldItem
		if err := rows.Scan(&shiftID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Revenue, &item.Profit); err != nil {
			_ = rows.Close()
			return err
		}
		session := &sessions[index[shiftID]]
		if session.SalesReport != nil {
			session.SalesReport.ItemsSold = append(session.SalesReport.ItemsSold, item)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	rows, err = q.QueryContext(ctx, `
		SELECT shift_id, user_id, user_name, action, reason, created_at
		FROM shift_audit_log
		WHERE shift_id = ANY($1)
		ORDER BY created_at ASC
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var shiftID string
		var entry domain.AuditEntry
		if err := rows.Scan(&shiftID, &entry.UserID, &entry.UserName, &entry.Action, &entry.Reason, &entry.At); err != nil {
			return err
		}
		entry.At = entry.At.UTC()
		session := &sessions[index[shiftID]]
		session.AuditLog = append(session.AuditLog, entry)
	}
	return rows.Err()
}

func loadSnapshot(ctx context.Context, q queryer, shiftID string, snapshotType string) ([]domain.InventoryCount, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, product_name, quantity
		FROM shift_inventory_snapshots
		WHERE shift_id = $1 AND snapshot_type = $2
		ORDER BY position
	`, shiftID, snapshotType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]domain.InventoryCount, 0, 32)
	for rows.Next() {
		var c domain.InventoryCount
		if err := rows.Scan(&c.ProductID, &c.ProductName, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func insertSnapshot(ctx context.Context, q queryer, shiftID string, snapshotType string, counts []domain.InventoryCount) error {
	for i, c := range counts {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO shift_inventory_snapshots (shift_id, product_id, product_name, quantity, snapshot_type, position)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, shiftID, c.ProductID, c.ProductName, c.Count, snapshotType, i); err != nil {
			return err
		}
	}
	return nil
}

func upsertStock(ctx context.Context, q queryer, counts map[string]int, at time.Time) error {
	for productID, qty := range counts {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO inventory_stock (product_id, quantity, updated_at)
			VALUES ($1,$2,$3)
			ON CONFLICT (product_id)
			DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		`, productID, qty, at); err != nil {
			return err
		}
	}
	return nil
}

const customerColumns = `id, name, document_id, phone, max_limit, current_used, observations, active, created_at`

func scanCustomer(row interface{ Scan(...any) error }, c *domain.CreditCustomer) error {
	if err := row.Scan(&c.ID, &c.Name, &c.DocumentID, &c.Phone, &c.MaxLimit, &c.CurrentUsed,
		&c.Observations, &c.Active, &c.CreatedAt); err != nil {
		return err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error) {
	if customer.ID == "" || customer.Name == "" || customer.MaxLimit < 0 {
		return nil, store.Validationf("customer requires id, name and a non-negative limit")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.CurrentUsed = 0

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_customers (`+customerColumns+`)
		VALUES ($1,$2,$3,$4,$5,0,$6,$7,$8)
	`, customer.ID, customer.Name, customer.DocumentID, customer.Phone, customer.MaxLimit,
		customer.Observations, customer.Active, customer.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err, "customer "+customer.ID)
	}
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error) {
	var updated domain.CreditCustomer
	err := s.withTx(ctx, "customer "+customer.ID, func(tx *sql.Tx) error {
		current, err := lockCustomer(ctx, tx, customer.ID)
		if err != nil {
			return err
		}
		if customer.MaxLimit < current.CurrentUsed {
			return store.Validationf("max_limit %d is below the current balance %d", customer.MaxLimit, current.CurrentUsed)
		}

		return scanCustomer(tx.QueryRowContext(ctx, `
			UPDATE credit_customers
			SET name = $2, document_id = $3, phone = $4, max_limit = $5, observations = $6, active = $7
			WHERE id = $1
			RETURNING `+customerColumns,
			customer.ID, customer.Name, customer.DocumentID, customer.Phone, customer.MaxLimit,
			customer.Observations, customer.Active,
		), &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.CreditCustomer, error) {
	var customer domain.CreditCustomer
	err := scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+` FROM credit_customers WHERE id = $1
	`, id), &customer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("customer %s", id)
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.CreditCustomer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+` FROM credit_customers ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.CreditCustomer, 0, 32)
	for rows.Next() {
		var c domain.CreditCustomer
		if err := scanCustomer(rows, &c); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func lockCustomer(ctx context.Context, q queryer, id string) (*domain.CreditCustomer, error) {
	var customer domain.CreditCustomer
	err := scanCustomer(q.QueryRowContext(ctx, `
		SELECT `+customerColumns+` FROM credit_customers WHERE id = $1 FOR UPDATE
	`, id), &customer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("customer %s", id)
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) AuthorizeDebt(ctx context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error) {
	saved := entry
	err := s.withTx(ctx, "authorize debt", func(tx *sql.Tx) error {
		customer, err := lockCustomer(ctx, tx, entry.CustomerID)
		if err != nil {
			return err
		}
		if !customer.Active {
			return store.Validationf("customer %s is inactive", entry.CustomerID)
		}
		if _, err := ledger.ApplyDebt(customer.CurrentUsed, customer.MaxLimit, entry.Amount); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE credit_customers
			SET current_used = current_used + $2
			WHERE id = $1 AND current_used + $2 <= max_limit
		`, entry.CustomerID, entry.Amount)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return &store.LimitExceededError{Available: max(ledger.Available(customer.CurrentUsed, customer.MaxLimit), 0)}
		}

		saved = entry
		saved.Type = domain.CreditTypeDebt
		saved.PaymentMethod = ""
		saved.CustomerName = customer.Name
		return insertCreditEntry(ctx, tx, saved)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Store) RecordPayment(ctx context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error) {
	saved := entry
	err := s.withTx(ctx, "record payment", func(tx *sql.Tx) error {
		customer, err := lockCustomer(ctx, tx, entry.CustomerID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE credit_customers
			SET current_used = GREATEST(0, current_used - $2)
			WHERE id = $1
		`, entry.CustomerID, entry.Amount); err != nil {
			return err
		}

		saved = entry
		saved.Type = domain.CreditTypePayment
		saved.CustomerName = customer.Name
		return insertCreditEntry(ctx, tx, saved)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func insertCreditEntry(ctx context.Context, q queryer, entry domain.CreditTransaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, customer_id, employee_id, employee_name, amount, tx_type, payment_method, observation, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.CustomerID, entry.EmployeeID, entry.EmployeeName, entry.Amount, entry.Type,
		nullIfEmpty(entry.PaymentMethod), entry.Observation, entry.CreatedAt)
	return err
}

const creditEntrySelect = `
	SELECT t.id, t.customer_id, c.name, t.employee_id, t.employee_name, t.amount, t.tx_type,
		COALESCE(t.payment_method, ''), t.observation, t.created_at
	FROM credit_transactions t
	JOIN credit_customers c ON c.id = t.customer_id
`

func scanCreditEntries(rows *sql.Rows) ([]domain.CreditTransaction, error) {
	defer rows.Close()
	entries := make([]domain.CreditTransaction, 0, 32)
	for rows.Next() {
		var e domain.CreditTransaction
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.CustomerName, &e.EmployeeID, &e.EmployeeName,
			&e.Amount, &e.Type, &e.PaymentMethod, &e.Observation, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func listEntriesBetween(ctx context.Context, q queryer, from time.Time, to time.Time) ([]domain.CreditTransaction, error) {
	rows, err := q.QueryContext(ctx, creditEntrySelect+`
		WHERE t.created_at BETWEEN $1 AND $2
		ORDER BY t.created_at DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanCreditEntries(rows)
}

func (s *Store) ListCustomerTransactions(ctx context.Context, customerID string) ([]domain.CreditTransaction, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, creditEntrySelect+`
		WHERE t.customer_id = $1
		ORDER BY t.created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	return scanCreditEntries(rows)
}

func (s *Store) ListTransactionsInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.CreditTransaction, error) {
	return listEntriesBetween(ctx, s.db, from, to)
}

func (s *Store) RecordSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.Validationf("sale requires an id and at least one item")
	}
	err := s.withTx(ctx, "sale "+sale.ID, func(tx *sql.Tx) error {
		if sale.ShiftID != "" {
			if _, err := loadShiftHeader(ctx, tx, sale.ShiftID, false); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales (id, shift_id, user_id, user_name, total, payment_method, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, nullIfEmpty(sale.ShiftID), sale.UserID, sale.UserName, sale.Total, sale.PaymentMethod,
			sale.CreatedAt); err != nil {
			return err
		}
		for i, item := range sale.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_items (sale_id, position, product_id, product_name, quantity, unit_price, cost_price, subtotal)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`, sale.ID, i, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.CostPrice,
				item.Subtotal); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	saved := sale
	return &saved, nil
}

func (s *Store) ListSales(ctx context.Context, shiftID string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(shift_id, ''), user_id, user_name, total, payment_method, created_at
		FROM sales
		WHERE $1 = '' OR shift_id = $1
		ORDER BY created_at DESC
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	index := make(map[string]int)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.ShiftID, &sale.UserID, &sale.UserName, &sale.Total,
			&sale.PaymentMethod, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sale.Items = []domain.SaleItem{}
		index[sale.ID] = len(sales)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	ids := make([]string, 0, len(sales))
	for _, sale := range sales {
		ids = append(ids, sale.ID)
	}
	itemRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, quantity, unit_price, cost_price, subtotal
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := itemRows.Scan(&saleID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice,
			&item.CostPrice, &item.Subtotal); err != nil {
			return nil, err
		}
		i := index[saleID]
		sales[i].Items = append(sales[i].Items, item)
	}
	return sales, itemRows.Err()
}

func (s *Store) ListSaleItemsSince(ctx context.Context, since time.Time) ([]domain.SoldItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, si.product_name, si.quantity, si.subtotal, si.subtotal - si.quantity * si.cost_price
		FROM sale_items si
		JOIN sales sa ON sa.id = si.sale_id
		WHERE sa.created_at >= $1
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SoldItem, 0, 64)
	for rows.Next() {
		var item domain.SoldItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.Revenue, &item.Profit); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) PurgeHistory(ctx context.Context, at time.Time) error {
	return s.withTx(ctx, "purge history", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			TRUNCATE sale_items, sales, shift_items, shift_inventory_snapshots, shift_audit_log, shifts,
				credit_transactions, inventory_stock
		`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE credit_customers SET current_used = 0`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO app_config (id, bar_name, low_stock_threshold, last_export_at)
			VALUES (1, '', NULL, $1)
			ON CONFLICT (id) DO UPDATE SET last_export_at = EXCLUDED.last_export_at
		`, at)
		return err
	})
}

func (s *Store) GetAppConfig(ctx context.Context) (domain.AppConfig, error) {
	var cfg domain.AppConfig
	var threshold sql.NullInt32
	var exportedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT bar_name, low_stock_threshold, last_export_at FROM app_config WHERE id = 1
	`).Scan(&cfg.BarName, &threshold, &exportedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AppConfig{}, nil
		}
		return domain.AppConfig{}, err
	}
	if threshold.Valid {
		v := int(threshold.Int32)
		cfg.LowStockThreshold = &v
	}
	cfg.LastExportAt = timePtr(exportedAt)
	return cfg, nil
}

func (s *Store) SaveAppConfig(ctx context.Context, cfg domain.AppConfig) error {
	var threshold any
	if cfg.LowStockThreshold != nil {
		threshold = *cfg.LowStockThreshold
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_config (id, bar_name, low_stock_threshold, last_export_at)
		VALUES (1,$1,$2,$3)
		ON CONFLICT (id)
		DO UPDATE SET bar_name = EXCLUDED.bar_name, low_stock_threshold = EXCLUDED.low_stock_threshold,
			last_export_at = EXCLUDED.last_export_at
	`, cfg.BarName, threshold, nullTime(cfg.LastExportAt))
	if err != nil {
		return mapWriteErr(err, "app config")
	}
	return nil
}

func (s *Store) GetAdvisorSettings(ctx context.Context) (domain.AdvisorSettings, error) {
	var settings domain.AdvisorSettings
	var lastTested sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT provider, api_key, prompt, validated, last_tested_at
		FROM advisor_settings
		WHERE id = 1
	`).Scan(&settings.Provider, &settings.APIKey, &settings.Prompt, &settings.Validated, &lastTested)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AdvisorSettings{}, nil
		}
		return domain.AdvisorSettings{}, err
	}
	settings.LastTestedAt = timePtr(lastTested)
	settings.HasAPIKey = settings.APIKey != ""
	return settings, nil
}

func (s *Store) SaveAdvisorSettings(ctx context.Context, settings domain.AdvisorSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO advisor_settings (id, provider, api_key, prompt, validated, last_tested_at)
		VALUES (1,$1,$2,$3,$4,$5)
		ON CONFLICT (id)
		DO UPDATE SET provider = EXCLUDED.provider, api_key = EXCLUDED.api_key, prompt = EXCLUDED.prompt,
			validated = EXCLUDED.validated, last_tested_at = EXCLUDED.last_tested_at
	`, settings.Provider, settings.APIKey, settings.Prompt, settings.Validated, nullTime(settings.LastTestedAt))
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Validationf("username and password are required")
	}
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, display_name, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.Username, user.Name, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		return mapWriteErr(err, "username "+user.Username)
	}
	return nil
}

// UpsertUser creates or replaces an account; used by the seeduser command.
func (s *Store) UpsertUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Validationf("username and password are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, display_name, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,true,now(),now())
		ON CONFLICT (username) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			password = EXCLUDED.password,
			role = EXCLUDED.role,
			active = true,
			updated_at = now()
	`, user.Username, user.Name, user.Password, user.Role)
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, display_name, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Name, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Validationf("username and password are required")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFoundf("user %s", username)
	}
	return nil
}

// mapWriteErr translates constraint and serialization failures into the
// store error taxonomy; anything else passes through.
func mapWriteErr(err error, subject string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		if pgErr.ConstraintName == "shifts_single_open" {
			return store.Conflictf("another shift is already open")
		}
		return store.Conflictf("%s already exists", subject)
	case "40001", "40P01":
		return store.Conflictf("%s: concurrent update, retry", subject)
	case "23514":
		return store.Validationf("%s violates %s", subject, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", subject, err)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func timePtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	at := val.Time.UTC()
	return &at
}
