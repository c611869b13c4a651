package advisory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/cache"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
)

const (
	salesWindow     = 30 * 24 * time.Hour
	topProductLimit = 5
	basicCacheKey   = "insights:basic"
)

// Repository is the slice of persistence the advisory layer reads.
type Repository interface {
	GetAdvisorSettings(ctx context.Context) (domain.AdvisorSettings, error)
	SaveAdvisorSettings(ctx context.Context, settings domain.AdvisorSettings) error
	ListSaleItemsSince(ctx context.Context, since time.Time) ([]domain.SoldItem, error)
	ListSoldItemsSince(ctx context.Context, since time.Time) ([]domain.SoldItem, error)
}

type Service struct {
	repo        Repository
	cache       cache.InsightCache
	cacheTTL    time.Duration
	newProvider ProviderFactory
	basic       BasicAdvisor
	now         func() time.Time
}

func NewService(repo Repository, insightCache cache.InsightCache, cacheTTL time.Duration, factory ProviderFactory) *Service {
	if insightCache == nil {
		insightCache = cache.NoopInsightCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if factory == nil {
		factory = NewHTTPProviderFactory(ProviderConfig{})
	}
	return &Service{
		repo:        repo,
		cache:       insightCache,
		cacheTTL:    cacheTTL,
		newProvider: factory,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetSettings(ctx context.Context) (domain.AdvisorSettings, error) {
	settings, err := s.repo.GetAdvisorSettings(ctx)
	if err != nil {
		return domain.AdvisorSettings{}, err
	}
	return present(settings), nil
}

// UpdateSettings applies a partial update. A new provider or key clears the
// validated flag until TestSettings succeeds again.
func (s *Service) UpdateSettings(ctx context.Context, req domain.AdvisorSettingsRequest) (domain.AdvisorSettings, error) {
	settings, err := s.repo.GetAdvisorSettings(ctx)
	if err != nil {
		return domain.AdvisorSettings{}, err
	}

	if req.Provider != nil {
		provider, err := normalizeProvider(*req.Provider)
		if err != nil {
			return domain.AdvisorSettings{}, err
		}
		if provider != settings.Provider {
			settings.Provider = provider
			settings.Validated = false
			settings.LastTestedAt = nil
		}
	}
	if req.APIKey != nil {
		key := strings.TrimSpace(*req.APIKey)
		if key != settings.APIKey {
			settings.APIKey = key
			settings.Validated = false
			settings.LastTestedAt = nil
		}
	}
	if req.Prompt != nil {
		settings.Prompt = strings.TrimSpace(*req.Prompt)
	}
	if settings.Prompt == "" {
		settings.Prompt = DefaultPrompt
	}

	if err := s.repo.SaveAdvisorSettings(ctx, settings); err != nil {
		return domain.AdvisorSettings{}, err
	}
	log.Info().
		Str("provider", settings.Provider).
		Bool("validated", settings.Validated).
		Msg("advisor settings updated")
	return present(settings), nil
}

// TestSettings checks that the key is plausible for the provider and marks
// the settings as validated. It does not call the provider.
func (s *Service) TestSettings(ctx context.Context, req domain.AdvisorSettingsRequest) (domain.AdvisorSettings, error) {
	settings, err := s.repo.GetAdvisorSettings(ctx)
	if err != nil {
		return domain.AdvisorSettings{}, err
	}

	provider := settings.Provider
	if req.Provider != nil {
		if provider, err = normalizeProvider(*req.Provider); err != nil {
			return domain.AdvisorSettings{}, err
		}
	}
	apiKey := settings.APIKey
	if req.APIKey != nil {
		apiKey = strings.TrimSpace(*req.APIKey)
	}

	if provider == "" {
		return domain.AdvisorSettings{}, store.Validationf("Selecciona un proveedor")
	}
	if apiKey == "" {
		return domain.AdvisorSettings{}, store.Validationf("API Key requerida para probar")
	}
	if !KeyLooksValid(provider, apiKey) {
		return domain.AdvisorSettings{}, store.Validationf("La API Key no parece valida para el proveedor seleccionado.")
	}

	now := s.now()
	settings.Provider = provider
	settings.APIKey = apiKey
	settings.Validated = true
	settings.LastTestedAt = &now
	if settings.Prompt == "" {
		settings.Prompt = DefaultPrompt
	}
	if err := s.repo.SaveAdvisorSettings(ctx, settings); err != nil {
		return domain.AdvisorSettings{}, err
	}
	log.Info().Str("provider", provider).Msg("advisor settings validated")
	return present(settings), nil
}

func KeyLooksValid(provider string, apiKey string) bool {
	if provider == domain.AdvisorOpenAI {
		return strings.HasPrefix(apiKey, "sk-") && len(apiKey) > 20
	}
	return len(apiKey) > 10
}

func (s *Service) Insights(ctx context.Context) domain.Insight {
	settings, live := s.liveAdvisor(ctx)
	agg := s.aggregates(ctx, settings)

	if live != nil {
		insight, err := live.Insights(ctx, agg)
		if err == nil {
			return insight
		}
		log.Warn().Err(err).Str("provider", settings.Provider).Msg("live insights failed; using basic advisor")
	}

	if !agg.Unavailable {
		if cached, ok, err := s.cache.Get(ctx, basicCacheKey); err == nil && ok {
			return *cached
		} else if err != nil {
			log.Warn().Err(err).Msg("insight cache read failed")
		}
	}
	insight, _ := s.basic.Insights(ctx, agg)
	if !agg.Unavailable {
		s.storeBasic(ctx, &insight)
	}
	return insight
}

func (s *Service) Chat(ctx context.Context, message string) domain.ChatReply {
	message = strings.TrimSpace(message)
	if message == "" {
		message = defaultChatMessage
	}
	settings, live := s.liveAdvisor(ctx)
	agg := s.aggregates(ctx, settings)

	if live != nil {
		reply, err := live.Chat(ctx, message, agg)
		if err == nil {
			return reply
		}
		log.Warn().Err(err).Str("provider", settings.Provider).Msg("live chat failed; using basic advisor")
	}
	reply, _ := s.basic.Chat(ctx, message, agg)
	return reply
}

// RefreshBasic recomputes the basic insight and stores it in the cache.
func (s *Service) RefreshBasic(ctx context.Context) error {
	items, err := s.soldItems(ctx)
	if err != nil {
		return err
	}
	insight, _ := s.basic.Insights(ctx, Aggregates{TopProducts: TopProducts(items, topProductLimit)})
	return s.cache.Set(ctx, basicCacheKey, &insight, s.cacheTTL)
}

func (s *Service) storeBasic(ctx context.Context, insight *domain.Insight) {
	if err := s.cache.Set(ctx, basicCacheKey, insight, s.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("insight cache write failed")
	}
}

// liveAdvisor returns a live advisor only for validated settings with both a
// provider and a key.
func (s *Service) liveAdvisor(ctx context.Context) (domain.AdvisorSettings, Advisor) {
	settings, err := s.repo.GetAdvisorSettings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("advisor settings unavailable; using basic advisor")
		return domain.AdvisorSettings{}, nil
	}
	if !settings.Validated || settings.Provider == "" || settings.APIKey == "" {
		return settings, nil
	}
	return settings, NewLiveAdvisor(s.newProvider(settings))
}

func (s *Service) aggregates(ctx context.Context, settings domain.AdvisorSettings) Aggregates {
	items, err := s.soldItems(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("sales aggregates unavailable")
		return Aggregates{Prompt: settings.Prompt, Unavailable: true}
	}
	return Aggregates{
		TopProducts: TopProducts(items, topProductLimit),
		Prompt:      settings.Prompt,
	}
}

// soldItems prefers register ticket lines and falls back to closed shift
// reports when no tickets were recorded in the window.
func (s *Service) soldItems(ctx context.Context) ([]domain.SoldItem, error) {
	since := s.now().Add(-salesWindow)
	items, err := s.repo.ListSaleItemsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return items, nil
	}
	return s.repo.ListSoldItemsSince(ctx, since)
}

// TopProducts groups sold items by product and returns the best sellers by
// revenue, ties broken by name.
func TopProducts(items []domain.SoldItem, limit int) []domain.ProductSales {
	byID := make(map[string]*domain.ProductSales, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		entry, ok := byID[item.ProductID]
		if !ok {
			entry = &domain.ProductSales{ProductID: item.ProductID, ProductName: item.ProductName}
			byID[item.ProductID] = entry
			order = append(order, item.ProductID)
		}
		entry.Quantity += item.Quantity
		entry.Revenue += item.Revenue
	}

	out := make([]domain.ProductSales, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	slices.SortFunc(out, func(a, b domain.ProductSales) int {
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductName, b.ProductName)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func normalizeProvider(raw string) (string, error) {
	provider := strings.ToUpper(strings.TrimSpace(raw))
	switch provider {
	case "", domain.AdvisorOpenAI, domain.AdvisorGemini:
		return provider, nil
	}
	return "", store.Validationf("provider must be one of OPENAI GEMINI")
}

func present(settings domain.AdvisorSettings) domain.AdvisorSettings {
	settings.HasAPIKey = settings.APIKey != ""
	if settings.Prompt == "" {
		settings.Prompt = DefaultPrompt
	}
	return settings
}
