package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/export"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
)

// StockLevels returns the running stock projection with low-stock flags.
func (s *Service) StockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	levels, err := s.repo.ListStockLevels(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.repo.GetAppConfig(ctx)
	if err != nil {
		return nil, err
	}
	threshold := *s.effectiveConfig(cfg).LowStockThreshold
	for i := range levels {
		levels[i].LowStock = levels[i].Quantity <= threshold
	}
	return levels, nil
}

// ExportShifts builds a workbook with the shifts opened inside [from, to]
// and the ledger entries recorded in the same window.
func (s *Service) ExportShifts(ctx context.Context, from time.Time, to time.Time) ([]byte, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	from, to = from.UTC(), to.UTC()
	if to.Before(from) {
		return nil, store.Validationf("end must not be before start")
	}

	all, err := s.repo.ListShifts(ctx, "")
	if err != nil {
		return nil, err
	}
	shifts := make([]domain.ShiftSession, 0, len(all))
	for _, shift := range all {
		if shift.OpenedAt.Before(from) || shift.OpenedAt.After(to) {
			continue
		}
		shifts = append(shifts, shift)
	}

	entries, err := s.repo.ListTransactionsInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	allSales, err := s.repo.ListSales(ctx, "")
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, len(allSales))
	for _, sale := range allSales {
		if sale.CreatedAt.Before(from) || sale.CreatedAt.After(to) {
			continue
		}
		sales = append(sales, sale)
	}

	data, err := export.ShiftWorkbook(shifts, entries, sales)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, zerolog.InfoLevel, "report_export", "").
		Int("shifts", len(shifts)).
		Int("ledger_entries", len(entries)).
		Int("sales", len(sales)).
		Msg("shift history exported")
	return data, nil
}

func (s *Service) ShiftReportPDF(ctx context.Context, id string) ([]byte, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	session, err := s.repo.GetShift(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if session.Status != domain.ShiftStatusClosed || session.SalesReport == nil {
		return nil, store.Conflictf("shift %s has no closing report", session.ID)
	}
	return export.ShiftReportPDF(*session)
}

// PurgeHistory wipes shift history, ledger entries, sales and the stock
// projection, and records the purge time as the last export. It cannot be
// undone.
func (s *Service) PurgeHistory(ctx context.Context) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.PurgeHistory(ctx, s.now()); err != nil {
		return err
	}
	s.logAudit(ctx, zerolog.WarnLevel, "history_purge", "").Msg("operational history purged")
	return nil
}
