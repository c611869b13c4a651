// Package export renders shift history into office formats: an XLSX
// workbook for bookkeeping and a one-page PDF closing report.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
)

const (
	shiftSheet  = "Turnos"
	creditSheet = "Fiados"
	salesSheet  = "Ventas"
	timeLayout  = "2006-01-02 15:04"
)

var shiftHeader = []interface{}{
	"ID", "Estado", "Abierto por", "Apertura", "Cerrado por", "Cierre",
	"Ventas", "Costo", "Utilidad", "Fiado", "Abonos efectivo", "Abonos otros",
	"Efectivo esperado", "Efectivo real", "Diferencia", "Observacion",
}

var creditHeader = []interface{}{
	"ID", "Fecha", "Cliente", "Tipo", "Monto", "Metodo", "Empleado", "Observacion",
}

var salesHeader = []interface{}{
	"Venta", "Fecha", "Turno", "Empleado", "Metodo", "Producto", "Cantidad", "Precio", "Subtotal",
}

// ShiftWorkbook writes one row per shift, one row per ledger entry and one
// row per ticket line. Shifts without a closing report leave the money
// columns empty.
func ShiftWorkbook(shifts []domain.ShiftSession, entries []domain.CreditTransaction, sales []domain.Sale) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", shiftSheet); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	for _, sheet := range []string{creditSheet, salesSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("export: create sheet %s: %w", sheet, err)
		}
	}

	if err := f.SetSheetRow(shiftSheet, "A1", &shiftHeader); err != nil {
		return nil, fmt.Errorf("export: write shift header: %w", err)
	}
	for i, shift := range shifts {
		row := shiftRow(shift)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(shiftSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("export: write shift %s: %w", shift.ID, err)
		}
	}

	if err := f.SetSheetRow(creditSheet, "A1", &creditHeader); err != nil {
		return nil, fmt.Errorf("export: write credit header: %w", err)
	}
	for i, entry := range entries {
		row := []interface{}{
			entry.ID,
			entry.CreatedAt.Format(timeLayout),
			entry.CustomerName,
			entry.Type,
			entry.Amount,
			entry.PaymentMethod,
			entry.EmployeeName,
			entry.Observation,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(creditSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("export: write credit entry %s: %w", entry.ID, err)
		}
	}

	if err := writeSales(f, sales); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSales(f *excelize.File, sales []domain.Sale) error {
	if err := f.SetSheetRow(salesSheet, "A1", &salesHeader); err != nil {
		return fmt.Errorf("export: write sales header: %w", err)
	}
	next := 2
	for _, sale := range sales {
		for _, item := range sale.Items {
			row := []interface{}{
				sale.ID,
				sale.CreatedAt.Format(timeLayout),
				sale.ShiftID,
				sale.UserName,
				sale.PaymentMethod,
				item.ProductName,
				item.Quantity,
				item.UnitPrice,
				item.Subtotal,
			}
			cell, err := excelize.CoordinatesToCellName(1, next)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(salesSheet, cell, &row); err != nil {
				return fmt.Errorf("export: write sale %s: %w", sale.ID, err)
			}
			next++
		}
	}
	return nil
}

func shiftRow(shift domain.ShiftSession) []interface{} {
	row := []interface{}{
		shift.ID,
		shift.Status,
		shift.OpenedBy,
		shift.OpenedAt.Format(timeLayout),
		deref(shift.ClosedBy),
		formatTime(shift.ClosedAt),
	}
	if report := shift.SalesReport; report != nil && shift.Status == domain.ShiftStatusClosed {
		var realCash interface{}
		if shift.RealCash != nil {
			realCash = *shift.RealCash
		}
		row = append(row,
			report.TotalRevenue,
			report.TotalCost,
			report.TotalProfit,
			report.TotalCreditSales,
			report.TotalCashPayments,
			report.TotalNonCashPayments,
			report.CashToDeliver,
			realCash,
			report.Difference,
		)
	} else {
		row = append(row, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	}
	return append(row, shift.ClosingObservation)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}
