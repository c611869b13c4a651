package domain

import "time"

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

const (
	ShiftStatusOpen   = "OPEN"
	ShiftStatusClosed = "CLOSED"
)

const (
	SnapshotInitial = "INITIAL"
	SnapshotFinal   = "FINAL"
)

const (
	CreditTypeDebt    = "DEBT"
	CreditTypePayment = "PAYMENT"
)

const (
	PaymentCash     = "CASH"
	PaymentTransfer = "TRANSFER"
	PaymentCard     = "CARD"
)

const (
	CreditStatusNormal   = "NORMAL"
	CreditStatusWarning  = "WARNING"
	CreditStatusCritical = "CRITICAL"
)

const AuditActionReopen = "REOPEN"

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	CostPrice int64     `json:"cost_price"`
	SalePrice int64     `json:"sale_price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name      string `json:"name" validate:"required"`
	Category  string `json:"category"`
	CostPrice int64  `json:"cost_price" validate:"gte=0"`
	SalePrice int64  `json:"sale_price" validate:"gte=1"`
}

type ProductUpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	Category  *string `json:"category,omitempty"`
	CostPrice *int64  `json:"cost_price,omitempty"`
	SalePrice *int64  `json:"sale_price,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

// StockLevel is the running stock projection joined with catalog data.
type StockLevel struct {
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name"`
	Category    string     `json:"category"`
	Quantity    int        `json:"quantity"`
	CostPrice   int64      `json:"cost_price"`
	SalePrice   int64      `json:"sale_price"`
	LowStock    bool       `json:"low_stock"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type InventoryCount struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Count       int    `json:"count"`
}

type SoldItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Revenue     int64  `json:"revenue"`
	Profit      int64  `json:"profit"`
}

type SalesReport struct {
	TotalRevenue         int64      `json:"total_revenue"`
	TotalCost            int64      `json:"total_cost"`
	TotalProfit          int64      `json:"total_profit"`
	TotalCreditSales     int64      `json:"total_credit_sales"`
	TotalCashPayments    int64      `json:"total_cash_payments"`
	TotalNonCashPayments int64      `json:"total_non_cash_payments"`
	CashToDeliver        int64      `json:"cash_to_deliver"`
	Difference           int64      `json:"difference"`
	ItemsSold            []SoldItem `json:"items_sold"`
}

type AuditEntry struct {
	At       time.Time `json:"at"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	Action   string    `json:"action"`
	Reason   string    `json:"reason"`
}

type ShiftSession struct {
	ID                 string           `json:"id"`
	OpenedBy           string           `json:"opened_by"`
	ClosedBy           *string          `json:"closed_by"`
	OpenedAt           time.Time        `json:"opened_at"`
	ClosedAt           *time.Time       `json:"closed_at"`
	Status             string           `json:"status"`
	InitialInventory   []InventoryCount `json:"initial_inventory"`
	FinalInventory     []InventoryCount `json:"final_inventory"`
	SalesReport        *SalesReport     `json:"sales_report"`
	RealCash           *int64           `json:"real_cash"`
	ClosingObservation string           `json:"closing_observation"`
	AuditLog           []AuditEntry     `json:"audit_log"`
}

type ShiftOpenRequest struct {
	InitialInventory []InventoryCount `json:"initial_inventory"`
}

type ShiftCloseRequest struct {
	FinalInventory     []InventoryCount `json:"final_inventory"`
	RealCash           *int64           `json:"real_cash"`
	ClosingObservation string           `json:"closing_observation"`
}

type ShiftReopenRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type ShiftFilter struct {
	Mine bool
}

// OpenShiftCommand, CloseShiftCommand and ReopenShiftCommand carry validated
// input from the service layer into a single store transaction.
type OpenShiftCommand struct {
	ID       string
	OpenedBy string
	OpenedAt time.Time
	Counts   []InventoryCount
}

type CloseShiftCommand struct {
	ShiftID            string
	ClosedBy           string
	ClosedAt           time.Time
	FinalCounts        []InventoryCount
	RealCash           int64
	ClosingObservation string
}

type ReopenShiftCommand struct {
	ShiftID string
	Entry   AuditEntry
}

type CreditCustomer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DocumentID   string    `json:"document_id"`
	Phone        string    `json:"phone"`
	MaxLimit     int64     `json:"max_limit"`
	CurrentUsed  int64     `json:"current_used"`
	Observations string    `json:"observations"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type CustomerView struct {
	CreditCustomer
	Available    int64   `json:"available"`
	UsagePercent float64 `json:"usage_percent"`
	Status       string  `json:"status"`
}

type CustomerRequest struct {
	Name         string `json:"name" validate:"required"`
	DocumentID   string `json:"document_id"`
	Phone        string `json:"phone"`
	MaxLimit     int64  `json:"max_limit" validate:"gte=0"`
	Observations string `json:"observations"`
	Active       *bool  `json:"active,omitempty"`
}

type CreditTransaction struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name,omitempty"`
	EmployeeID    string    `json:"employee_id"`
	EmployeeName  string    `json:"employee_name"`
	Amount        int64     `json:"amount"`
	Type          string    `json:"type"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Observation   string    `json:"observation"`
	CreatedAt     time.Time `json:"created_at"`
}

type DebtRequest struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	Observation string `json:"observation" validate:"required"`
}

type PaymentRequest struct {
	Amount        int64  `json:"amount" validate:"gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=CASH TRANSFER CARD"`
	Observation   string `json:"observation"`
}

// Sale is a register ticket. Sales are informational: stock and the shift
// report come from inventory counts, not from tickets.
type Sale struct {
	ID            string     `json:"id"`
	ShiftID       string     `json:"shift_id,omitempty"`
	UserID        string     `json:"user_id"`
	UserName      string     `json:"user_name"`
	Total         int64      `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	Items         []SaleItem `json:"items"`
	CreatedAt     time.Time  `json:"created_at"`
}

type SaleItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	CostPrice   int64  `json:"cost_price"`
	Subtotal    int64  `json:"subtotal"`
}

type SaleRequest struct {
	ShiftID       string            `json:"shift_id"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=CASH TRANSFER CARD"`
	Items         []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
}

// SaleItemRequest takes the catalog sale price when UnitPrice is omitted.
type SaleItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	UnitPrice *int64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
}

const DefaultBarName = "BarFlow"

// AppConfig holds the bar-wide settings editable from the back office. A nil
// LowStockThreshold means the deployment default applies.
type AppConfig struct {
	BarName           string     `json:"bar_name"`
	LowStockThreshold *int       `json:"low_stock_threshold"`
	LastExportAt      *time.Time `json:"last_export_at"`
}

type AppConfigRequest struct {
	BarName           *string `json:"bar_name,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
}

const (
	AdvisorOpenAI = "OPENAI"
	AdvisorGemini = "GEMINI"
)

const (
	InsightSourceAI    = "AI"
	InsightSourceBasic = "BASIC"
)

type AdvisorSettings struct {
	Provider     string     `json:"provider"`
	APIKey       string     `json:"-"`
	HasAPIKey    bool       `json:"has_api_key"`
	Prompt       string     `json:"prompt"`
	Validated    bool       `json:"validated"`
	LastTestedAt *time.Time `json:"last_tested_at"`
}

type AdvisorSettingsRequest struct {
	Provider *string `json:"provider,omitempty"`
	APIKey   *string `json:"api_key,omitempty"`
	Prompt   *string `json:"prompt,omitempty"`
}

type ProductSales struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Revenue     int64  `json:"revenue"`
}

type Insight struct {
	Title       string         `json:"title"`
	Summary     string         `json:"summary"`
	Suggestions []string       `json:"suggestions"`
	TopProducts []ProductSales `json:"top_products"`
	Source      string         `json:"source"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatReply struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	Name        string `json:"name"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Name     string
	Role     string
}

// DisplayName falls back to the username when no name was issued.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Username
}

type EmployeeCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type EmployeeUser struct {
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Name      string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
