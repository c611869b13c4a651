// Package reconcile holds the arithmetic of a shift close: units sold per
// product, revenue and cost totals, credit movements in the shift window and
// the cash the shift is expected to hand over.
package reconcile

import "github.com/temporalmomentaneo2024-hub/BAR/internal/domain"

// Sold never goes negative; restocks during a shift are not tracked.
func Sold(start int, end int) int {
	if start > end {
		return start - end
	}
	return 0
}

// CashToDeliver is revenue minus what went on credit plus cash collected
// against earlier credit.
func CashToDeliver(revenue int64, creditSales int64, cashPayments int64) int64 {
	return revenue - creditSales + cashPayments
}

type CreditTotals struct {
	CreditSales     int64
	CashPayments    int64
	NonCashPayments int64
}

func SumCredit(entries []domain.CreditTransaction) CreditTotals {
	var totals CreditTotals
	for _, entry := range entries {
		switch entry.Type {
		case domain.CreditTypeDebt:
			totals.CreditSales += entry.Amount
		case domain.CreditTypePayment:
			if entry.PaymentMethod == domain.PaymentCash {
				totals.CashPayments += entry.Amount
			} else {
				totals.NonCashPayments += entry.Amount
			}
		}
	}
	return totals
}

// CountMap indexes counts by product id. A repeated product keeps its last count.
func CountMap(counts []domain.InventoryCount) map[string]int {
	out := make(map[string]int, len(counts))
	for _, c := range counts {
		out[c.ProductID] = c.Count
	}
	return out
}

// InitialSnapshot lists every active product with its supplied count, zero
// when omitted. Entries naming unknown or inactive products are dropped.
func InitialSnapshot(catalog []domain.Product, counts []domain.InventoryCount) []domain.InventoryCount {
	supplied := CountMap(counts)
	snapshot := make([]domain.InventoryCount, 0, len(catalog))
	for _, p := range catalog {
		if !p.Active {
			continue
		}
		snapshot = append(snapshot, domain.InventoryCount{
			ProductID:   p.ID,
			ProductName: p.Name,
			Count:       supplied[p.ID],
		})
	}
	return snapshot
}

// FinalSnapshot keeps the supplied counts for products the catalog knows,
// with names filled in. Order follows the catalog.
func FinalSnapshot(catalog []domain.Product, counts []domain.InventoryCount) []domain.InventoryCount {
	supplied := CountMap(counts)
	snapshot := make([]domain.InventoryCount, 0, len(supplied))
	for _, p := range catalog {
		count, ok := supplied[p.ID]
		if !ok {
			continue
		}
		snapshot = append(snapshot, domain.InventoryCount{
			ProductID:   p.ID,
			ProductName: p.Name,
			Count:       count,
		})
	}
	return snapshot
}

// BuildReport computes the close report over every product in catalog.
// Products missing from initial start at zero, products missing from final
// end at zero.
func BuildReport(catalog []domain.Product, initial []domain.InventoryCount, final []domain.InventoryCount, entries []domain.CreditTransaction, realCash int64) domain.SalesReport {
	start := CountMap(initial)
	end := CountMap(final)

	report := domain.SalesReport{ItemsSold: make([]domain.SoldItem, 0)}
	for _, p := range catalog {
		sold := Sold(start[p.ID], end[p.ID])
		if sold == 0 {
			continue
		}
		revenue := int64(sold) * p.SalePrice
		cost := int64(sold) * p.CostPrice
		report.TotalRevenue += revenue
		report.TotalCost += cost
		report.ItemsSold = append(report.ItemsSold, domain.SoldItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    sold,
			Revenue:     revenue,
			Profit:      revenue - cost,
		})
	}
	report.TotalProfit = report.TotalRevenue - report.TotalCost

	credit := SumCredit(entries)
	report.TotalCreditSales = credit.CreditSales
	report.TotalCashPayments = credit.CashPayments
	report.TotalNonCashPayments = credit.NonCashPayments
	report.CashToDeliver = CashToDeliver(report.TotalRevenue, credit.CreditSales, credit.CashPayments)
	report.Difference = realCash - report.CashToDeliver
	return report
}

// RestoreCounts is the stock projection a reopen writes back: initial counts,
// plus zero for products that only appeared at close.
func RestoreCounts(initial []domain.InventoryCount, final []domain.InventoryCount) map[string]int {
	restored := CountMap(initial)
	for _, c := range final {
		if _, ok := restored[c.ProductID]; !ok {
			restored[c.ProductID] = 0
		}
	}
	return restored
}

// ClosingStock is the stock projection a close writes: the final counts, and
// zero for products counted at open but left out of the final count, matching
// what the report treats as sold.
func ClosingStock(initial []domain.InventoryCount, final []domain.InventoryCount) map[string]int {
	closing := make(map[string]int, len(initial))
	for _, c := range initial {
		closing[c.ProductID] = 0
	}
	for productID, qty := range CountMap(final) {
		closing[productID] = qty
	}
	return closing
}
