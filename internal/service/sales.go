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

// RecordSale stores a register ticket. Without a shift id the ticket is
// attached to the open shift, if any.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	req.ShiftID = strings.TrimSpace(req.ShiftID)
	req.PaymentMethod = strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	for i := range req.Items {
		req.Items[i].ProductID = strings.TrimSpace(req.Items[i].ProductID)
	}
	if err := s.check(req); err != nil {
		return domain.Sale{}, err
	}

	shiftID, err := s.saleShift(ctx, req.ShiftID)
	if err != nil {
		return domain.Sale{}, err
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	var total int64
	for _, line := range req.Items {
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Sale{}, store.Validationf("unknown product %s", line.ProductID)
			}
			return domain.Sale{}, err
		}
		if !product.Active {
			return domain.Sale{}, store.Validationf("product %s is inactive", line.ProductID)
		}
		unitPrice := product.SalePrice
		if line.UnitPrice != nil {
			unitPrice = *line.UnitPrice
		}
		subtotal := int64(line.Quantity) * unitPrice
		total += subtotal
		items = append(items, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			CostPrice:   product.CostPrice,
			Subtotal:    subtotal,
		})
	}

	saved, err := s.repo.RecordSale(ctx, domain.Sale{
		ID:            xid.New("sale"),
		ShiftID:       shiftID,
		UserID:        actor.Username,
		UserName:      actor.DisplayName(),
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return domain.Sale{}, err
	}

	metrics.SalesRecorded.WithLabelValues(saved.PaymentMethod).Inc()
	s.logAudit(ctx, zerolog.InfoLevel, "sale_record", saved.ID).
		Str("shift_id", saved.ShiftID).
		Int64("total", saved.Total).
		Int("items", len(saved.Items)).
		Msg("sale recorded")
	return *saved, nil
}

func (s *Service) saleShift(ctx context.Context, shiftID string) (string, error) {
	if shiftID != "" {
		session, err := s.repo.GetShift(ctx, shiftID)
		if err != nil {
			return "", err
		}
		return session.ID, nil
	}
	active, err := s.repo.GetActiveShift(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return active.ID, nil
}

// ListSales returns tickets newest first. Employees only see their own.
func (s *Service) ListSales(ctx context.Context, shiftID string) ([]domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, strings.TrimSpace(shiftID))
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleAdmin {
		return sales, nil
	}
	own := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale.UserID == actor.Username {
			own = append(own, sale)
		}
	}
	return own, nil
}

// AppConfig returns the stored settings with deployment defaults filled in.
func (s *Service) AppConfig(ctx context.Context) (domain.AppConfig, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.AppConfig{}, err
	}
	cfg, err := s.repo.GetAppConfig(ctx)
	if err != nil {
		return domain.AppConfig{}, err
	}
	return s.effectiveConfig(cfg), nil
}

func (s *Service) UpdateAppConfig(ctx context.Context, req domain.AppConfigRequest) (domain.AppConfig, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.AppConfig{}, err
	}
	if err := s.check(req); err != nil {
		return domain.AppConfig{}, err
	}
	cfg, err := s.repo.GetAppConfig(ctx)
	if err != nil {
		return domain.AppConfig{}, err
	}
	if req.BarName != nil {
		name := strings.TrimSpace(*req.BarName)
		if name == "" {
			return domain.AppConfig{}, store.Validationf("bar_name must not be blank")
		}
		cfg.BarName = name
	}
	if req.LowStockThreshold != nil {
		threshold := *req.LowStockThreshold
		cfg.LowStockThreshold = &threshold
	}
	if err := s.repo.SaveAppConfig(ctx, cfg); err != nil {
		return domain.AppConfig{}, err
	}

	s.logAudit(ctx, zerolog.InfoLevel, "config_update", "").
		Str("bar_name", cfg.BarName).
		Msg("app config updated")
	return s.effectiveConfig(cfg), nil
}

func (s *Service) effectiveConfig(cfg domain.AppConfig) domain.AppConfig {
	if cfg.BarName == "" {
		cfg.BarName = domain.DefaultBarName
	}
	if cfg.LowStockThreshold == nil {
		threshold := s.lowStockThreshold
		cfg.LowStockThreshold = &threshold
	}
	return cfg
}
