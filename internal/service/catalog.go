package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/xid"
)

// ListProducts returns the active catalog.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:        xid.New("prod"),
		Name:      req.Name,
		Category:  req.Category,
		CostPrice: req.CostPrice,
		SalePrice: req.SalePrice,
		Active:    true,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, zerolog.InfoLevel, "product_create", created.ID).
		Str("name", created.Name).
		Msg("product created")
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	current, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	next := *current
	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
		if next.Name == "" {
			return domain.Product{}, store.Validationf("name must not be blank")
		}
	}
	if req.Category != nil {
		next.Category = strings.TrimSpace(*req.Category)
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return domain.Product{}, store.Validationf("cost_price must be at least 0")
		}
		next.CostPrice = *req.CostPrice
	}
	if req.SalePrice != nil {
		if *req.SalePrice < 1 {
			return domain.Product{}, store.Validationf("sale_price must be at least 1")
		}
		next.SalePrice = *req.SalePrice
	}
	if req.Active != nil {
		next.Active = *req.Active
	}

	updated, err := s.repo.UpdateProduct(ctx, next)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, zerolog.InfoLevel, "product_update", updated.ID).
		Bool("active", updated.Active).
		Msg("product updated")
	return *updated, nil
}
