package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/metrics"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/xid"
)

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.ShiftSession, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.ShiftSession{}, err
	}
	counts, err := normalizeCounts(req.InitialInventory)
	if err != nil {
		return domain.ShiftSession{}, err
	}

	session, err := s.repo.OpenShift(ctx, domain.OpenShiftCommand{
		ID:       xid.New("shift"),
		OpenedBy: actor.Username,
		OpenedAt: s.now(),
		Counts:   counts,
	})
	if err != nil {
		return domain.ShiftSession{}, err
	}

	metrics.ShiftTransitions.WithLabelValues("open").Inc()
	s.logAudit(ctx, zerolog.InfoLevel, "shift_open", session.ID).
		Int("products", len(session.InitialInventory)).
		Msg("shift opened")
	return *session, nil
}

func (s *Service) CloseShift(ctx context.Context, id string, req domain.ShiftCloseRequest) (domain.ShiftSession, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftSession{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ShiftSession{}, store.Validationf("shift id is required")
	}
	if req.RealCash == nil {
		return domain.ShiftSession{}, store.Validationf("real_cash is required")
	}
	if *req.RealCash < 0 {
		return domain.ShiftSession{}, store.Validationf("real_cash must not be negative")
	}
	counts, err := normalizeCounts(req.FinalInventory)
	if err != nil {
		return domain.ShiftSession{}, err
	}

	session, err := s.repo.CloseShift(ctx, domain.CloseShiftCommand{
		ShiftID:            id,
		ClosedBy:           actor.Username,
		ClosedAt:           s.now(),
		FinalCounts:        counts,
		RealCash:           *req.RealCash,
		ClosingObservation: strings.TrimSpace(req.ClosingObservation),
	})
	if err != nil {
		return domain.ShiftSession{}, err
	}

	metrics.ShiftTransitions.WithLabelValues("close").Inc()
	event := s.logAudit(ctx, zerolog.InfoLevel, "shift_close", session.ID)
	if report := session.SalesReport; report != nil {
		metrics.CashDifference.Observe(float64(report.Difference))
		event = event.
			Int64("total_revenue", report.TotalRevenue).
			Int64("cash_to_deliver", report.CashToDeliver).
			Int64("difference", report.Difference)
	}
	event.Msg("shift closed")
	return *session, nil
}

func (s *Service) ReopenShift(ctx context.Context, id string, req domain.ShiftReopenRequest) (domain.ShiftSession, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.ShiftSession{}, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.check(req); err != nil {
		return domain.ShiftSession{}, err
	}

	session, err := s.repo.ReopenShift(ctx, domain.ReopenShiftCommand{
		ShiftID: strings.TrimSpace(id),
		Entry: domain.AuditEntry{
			At:       s.now(),
			UserID:   actor.Username,
			UserName: actor.DisplayName(),
			Action:   domain.AuditActionReopen,
			Reason:   req.Reason,
		},
	})
	if err != nil {
		return domain.ShiftSession{}, err
	}

	metrics.ShiftTransitions.WithLabelValues("reopen").Inc()
	s.logAudit(ctx, zerolog.WarnLevel, "shift_reopen", session.ID).
		Str("reason", req.Reason).
		Msg("shift reopened")
	return *session, nil
}

// DeleteShift removes a session and everything it owns. Ledger entries made
// during the shift stay; the count is logged so the gap can be traced.
func (s *Service) DeleteShift(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	session, err := s.repo.GetShift(ctx, id)
	if err != nil {
		return err
	}

	windowEnd := s.now()
	if session.ClosedAt != nil {
		windowEnd = *session.ClosedAt
	}
	entries, err := s.repo.ListTransactionsInRange(ctx, session.OpenedAt, windowEnd)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteShift(ctx, id); err != nil {
		return err
	}

	metrics.ShiftTransitions.WithLabelValues("delete").Inc()
	s.logAudit(ctx, zerolog.WarnLevel, "shift_delete", id).
		Str("status", session.Status).
		Int("ledger_entries_in_window", len(entries)).
		Msg("shift deleted; credit ledger left untouched")
	return nil
}

// GetActiveShift returns nil when no shift is open.
func (s *Service) GetActiveShift(ctx context.Context) (*domain.ShiftSession, error) {
	session, err := s.repo.GetActiveShift(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

func (s *Service) GetShift(ctx context.Context, id string) (domain.ShiftSession, error) {
	session, err := s.repo.GetShift(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ShiftSession{}, err
	}
	return *session, nil
}

func (s *Service) ListShifts(ctx context.Context, filter domain.ShiftFilter) ([]domain.ShiftSession, error) {
	openedBy := ""
	if filter.Mine {
		actor, err := requireActor(ctx)
		if err != nil {
			return nil, err
		}
		openedBy = actor.Username
	}
	return s.repo.ListShifts(ctx, openedBy)
}

func normalizeCounts(counts []domain.InventoryCount) ([]domain.InventoryCount, error) {
	out := make([]domain.InventoryCount, 0, len(counts))
	for _, c := range counts {
		c.ProductID = strings.TrimSpace(c.ProductID)
		if c.ProductID == "" {
			return nil, store.Validationf("product_id is required for every count")
		}
		if c.Count < 0 {
			return nil, store.Validationf("count for %s must not be negative", c.ProductID)
		}
		out = append(out, c)
	}
	return out, nil
}
