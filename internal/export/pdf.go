package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
)

// ShiftReportPDF renders the closing report of a closed shift on one A4 page.
func ShiftReportPDF(session domain.ShiftSession) ([]byte, error) {
	report := session.SalesReport
	if report == nil {
		return nil, fmt.Errorf("pdf: shift %s has no report", session.ID)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, tr("Cierre de turno"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, session.ID, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	line := func(label, value string) {
		pdf.CellFormat(contentW*0.5, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.5, 6, tr(value), "", 1, "R", false, 0, "")
	}
	line("Abierto por", session.OpenedBy)
	line("Apertura", session.OpenedAt.Format(timeLayout))
	line("Cerrado por", deref(session.ClosedBy))
	line("Cierre", formatTime(session.ClosedAt))
	pdf.Ln(2)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(3)

	col1 := contentW * 0.5
	col2 := contentW * 0.15
	col3 := contentW * 0.35
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(col1, 6, "Producto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 6, "Cant", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 6, "Venta", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if len(report.ItemsSold) == 0 {
		pdf.CellFormat(contentW, 6, tr("Sin productos vendidos"), "", 1, "L", false, 0, "")
	}
	for _, item := range report.ItemsSold {
		pdf.CellFormat(col1, 6, tr(item.ProductName), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 6, strconv.Itoa(item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 6, money(item.Revenue), "", 1, "R", false, 0, "")
	}
	pdf.Ln(3)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(3)

	line("Ventas", money(report.TotalRevenue))
	line("Costo", money(report.TotalCost))
	line("Utilidad", money(report.TotalProfit))
	line("Fiado del turno", money(report.TotalCreditSales))
	line("Abonos en efectivo", money(report.TotalCashPayments))
	line("Abonos otros medios", money(report.TotalNonCashPayments))

	pdf.SetFont("Helvetica", "B", 11)
	line("Efectivo a entregar", money(report.CashToDeliver))
	if session.RealCash != nil {
		line("Efectivo contado", money(*session.RealCash))
	}
	line("Diferencia", money(report.Difference))

	if session.ClosingObservation != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(contentW, 5, tr(session.ClosingObservation), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

func money(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var out []byte
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	return sign + "$" + string(out)
}
