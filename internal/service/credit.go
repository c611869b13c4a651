package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/ledger"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/metrics"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/xid"
)

func (s *Service) ListCustomers(ctx context.Context) ([]domain.CustomerView, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.CustomerView, 0, len(customers))
	for _, c := range customers {
		views = append(views, ledger.View(c))
	}
	return views, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.CustomerView, error) {
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CustomerView{}, err
	}
	return ledger.View(*customer), nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.CustomerView, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.CustomerView{}, err
	}
	req = trimCustomerRequest(req)
	if err := s.check(req); err != nil {
		return domain.CustomerView{}, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := s.repo.CreateCustomer(ctx, domain.CreditCustomer{
		ID:           xid.New("cust"),
		Name:         req.Name,
		DocumentID:   req.DocumentID,
		Phone:        req.Phone,
		MaxLimit:     req.MaxLimit,
		Observations: req.Observations,
		Active:       active,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return domain.CustomerView{}, err
	}

	s.logAudit(ctx, zerolog.InfoLevel, "customer_create", created.ID).
		Int64("max_limit", created.MaxLimit).
		Msg("credit customer created")
	return ledger.View(*created), nil
}

// UpdateCustomer replaces the editable fields. The balance is never written
// here; it only moves through debts and payments.
func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerRequest) (domain.CustomerView, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.CustomerView{}, err
	}
	req = trimCustomerRequest(req)
	if err := s.check(req); err != nil {
		return domain.CustomerView{}, err
	}

	current, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CustomerView{}, err
	}
	active := current.Active
	if req.Active != nil {
		active = *req.Active
	}

	updated, err := s.repo.UpdateCustomer(ctx, domain.CreditCustomer{
		ID:           current.ID,
		Name:         req.Name,
		DocumentID:   req.DocumentID,
		Phone:        req.Phone,
		MaxLimit:     req.MaxLimit,
		Observations: req.Observations,
		Active:       active,
	})
	if err != nil {
		return domain.CustomerView{}, err
	}

	s.logAudit(ctx, zerolog.InfoLevel, "customer_update", updated.ID).
		Int64("max_limit", updated.MaxLimit).
		Bool("active", updated.Active).
		Msg("credit customer updated")
	return ledger.View(*updated), nil
}

func (s *Service) AuthorizeDebt(ctx context.Context, customerID string, req domain.DebtRequest) (domain.CreditTransaction, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	req.Observation = strings.TrimSpace(req.Observation)
	if err := s.check(req); err != nil {
		return domain.CreditTransaction{}, err
	}

	entry, err := s.repo.AuthorizeDebt(ctx, domain.CreditTransaction{
		ID:           xid.New("credit"),
		CustomerID:   strings.TrimSpace(customerID),
		EmployeeID:   actor.Username,
		EmployeeName: actor.DisplayName(),
		Amount:       req.Amount,
		Observation:  req.Observation,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrLimitExceeded) {
			metrics.CreditOperations.WithLabelValues("debt", "rejected").Inc()
		}
		return domain.CreditTransaction{}, err
	}

	metrics.CreditOperations.WithLabelValues("debt", "accepted").Inc()
	s.logAudit(ctx, zerolog.InfoLevel, "credit_debt", entry.CustomerID).
		Int64("amount", entry.Amount).
		Msg("debt authorized")
	return *entry, nil
}

func (s *Service) RecordPayment(ctx context.Context, customerID string, req domain.PaymentRequest) (domain.CreditTransaction, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	req.PaymentMethod = strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	req.Observation = strings.TrimSpace(req.Observation)
	if err := s.check(req); err != nil {
		return domain.CreditTransaction{}, err
	}

	entry, err := s.repo.RecordPayment(ctx, domain.CreditTransaction{
		ID:            xid.New("credit"),
		CustomerID:    strings.TrimSpace(customerID),
		EmployeeID:    actor.Username,
		EmployeeName:  actor.DisplayName(),
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Observation:   req.Observation,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}

	metrics.CreditOperations.WithLabelValues("payment", "accepted").Inc()
	s.logAudit(ctx, zerolog.InfoLevel, "credit_payment", entry.CustomerID).
		Int64("amount", entry.Amount).
		Str("payment_method", entry.PaymentMethod).
		Msg("payment recorded")
	return *entry, nil
}

func (s *Service) CustomerHistory(ctx context.Context, customerID string) ([]domain.CreditTransaction, error) {
	return s.repo.ListCustomerTransactions(ctx, strings.TrimSpace(customerID))
}

// TransactionsInRange is inclusive on both ends.
func (s *Service) TransactionsInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.CreditTransaction, error) {
	if to.Before(from) {
		return nil, store.Validationf("end must not be before start")
	}
	return s.repo.ListTransactionsInRange(ctx, from.UTC(), to.UTC())
}

func trimCustomerRequest(req domain.CustomerRequest) domain.CustomerRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Observations = strings.TrimSpace(req.Observations)
	return req
}
