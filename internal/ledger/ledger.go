package ledger

import (
	"math"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
)

// Status classifies usage against the limit: below 60% NORMAL, below 90%
// WARNING, otherwise CRITICAL. A customer with no limit is CRITICAL.
func Status(currentUsed int64, maxLimit int64) string {
	if maxLimit <= 0 {
		return domain.CreditStatusCritical
	}
	switch {
	case currentUsed*100 >= maxLimit*90:
		return domain.CreditStatusCritical
	case currentUsed*100 >= maxLimit*60:
		return domain.CreditStatusWarning
	default:
		return domain.CreditStatusNormal
	}
}

func Available(currentUsed int64, maxLimit int64) int64 {
	return maxLimit - currentUsed
}

func UsagePercent(currentUsed int64, maxLimit int64) float64 {
	if maxLimit <= 0 {
		return 100
	}
	pct := float64(currentUsed) * 100 / float64(maxLimit)
	return math.Round(pct*10) / 10
}

// ApplyDebt returns the balance after charging amount, or a
// *store.LimitExceededError when it does not fit.
func ApplyDebt(currentUsed int64, maxLimit int64, amount int64) (int64, error) {
	available := Available(currentUsed, maxLimit)
	if amount > available {
		if available < 0 {
			available = 0
		}
		return currentUsed, &store.LimitExceededError{Available: available}
	}
	return currentUsed + amount, nil
}

// ApplyPayment floors the balance at zero; overpayment is not carried as credit.
func ApplyPayment(currentUsed int64, amount int64) int64 {
	if amount >= currentUsed {
		return 0
	}
	return currentUsed - amount
}

func View(customer domain.CreditCustomer) domain.CustomerView {
	return domain.CustomerView{
		CreditCustomer: customer,
		Available:      Available(customer.CurrentUsed, customer.MaxLimit),
		UsagePercent:   UsagePercent(customer.CurrentUsed, customer.MaxLimit),
		Status:         Status(customer.CurrentUsed, customer.MaxLimit),
	}
}
