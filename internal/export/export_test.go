package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
)

func closedShift() domain.ShiftSession {
	closedBy := "employee"
	openedAt := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	closedAt := openedAt.Add(8 * time.Hour)
	realCash := int64(11000)
	return domain.ShiftSession{
		ID:       "shift-1",
		OpenedBy: "admin",
		ClosedBy: &closedBy,
		OpenedAt: openedAt,
		ClosedAt: &closedAt,
		Status:   domain.ShiftStatusClosed,
		SalesReport: &domain.SalesReport{
			TotalRevenue:  12000,
			TotalCost:     4000,
			TotalProfit:   8000,
			CashToDeliver: 11000,
			ItemsSold: []domain.SoldItem{
				{ProductID: "P-AGUILA", ProductName: "Cerveza Águila", Quantity: 3, Revenue: 12000, Profit: 8000},
			},
		},
		RealCash:           &realCash,
		ClosingObservation: "sin novedad",
	}
}

func TestShiftWorkbookHasAllSheets(t *testing.T) {
	open := domain.ShiftSession{ID: "shift-2", OpenedBy: "admin", OpenedAt: time.Now().UTC(), Status: domain.ShiftStatusOpen}
	entries := []domain.CreditTransaction{
		{ID: "credit-1", CustomerName: "Juan", Type: domain.CreditTypeDebt, Amount: 5000, EmployeeName: "Empleado", CreatedAt: time.Now().UTC()},
	}
	sales := []domain.Sale{{
		ID:            "sale-1",
		ShiftID:       "shift-2",
		UserName:      "Empleado",
		PaymentMethod: domain.PaymentCash,
		Total:         10500,
		CreatedAt:     time.Now().UTC(),
		Items: []domain.SaleItem{
			{ProductID: "P-AGUILA", ProductName: "Cerveza Águila", Quantity: 2, UnitPrice: 4000, Subtotal: 8000},
			{ProductID: "P-AGUA", ProductName: "Agua", Quantity: 1, UnitPrice: 2500, Subtotal: 2500},
		},
	}}

	data, err := ShiftWorkbook([]domain.ShiftSession{closedShift(), open}, entries, sales)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Turnos", "Fiados", "Ventas"}, f.GetSheetList())

	saleRows, err := f.GetRows("Ventas")
	require.NoError(t, err)
	require.Len(t, saleRows, 3)
	assert.Equal(t, "sale-1", saleRows[1][0])
	assert.Equal(t, "8000", saleRows[1][8])
	assert.Equal(t, "Agua", saleRows[2][5])

	rows, err := f.GetRows("Turnos")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "shift-1", rows[1][0])
	assert.Equal(t, "12000", rows[1][6])

	creditRows, err := f.GetRows("Fiados")
	require.NoError(t, err)
	require.Len(t, creditRows, 2)
	assert.Equal(t, "DEBT", creditRows[1][3])
}

func TestShiftReportPDF(t *testing.T) {
	data, err := ShiftReportPDF(closedShift())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = ShiftReportPDF(domain.ShiftSession{ID: "shift-open"})
	assert.Error(t, err)
}

func TestMoneyFormatting(t *testing.T) {
	assert.Equal(t, "$0", money(0))
	assert.Equal(t, "$950", money(950))
	assert.Equal(t, "$12.000", money(12000))
	assert.Equal(t, "-$1.250.000", money(-1250000))
}
