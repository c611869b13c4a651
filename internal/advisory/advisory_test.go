package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
)

type fakeRepo struct {
	mu       sync.Mutex
	settings domain.AdvisorSettings
	items     []domain.SoldItem
	itemsErr  error
	saleItems []domain.SoldItem
}

func (r *fakeRepo) GetAdvisorSettings(_ context.Context) (domain.AdvisorSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings, nil
}

func (r *fakeRepo) SaveAdvisorSettings(_ context.Context, settings domain.AdvisorSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = settings
	return nil
}

func (r *fakeRepo) ListSaleItemsSince(_ context.Context, _ time.Time) ([]domain.SoldItem, error) {
	return r.saleItems, r.itemsErr
}

func (r *fakeRepo) ListSoldItemsSince(_ context.Context, _ time.Time) ([]domain.SoldItem, error) {
	return r.items, r.itemsErr
}

type countingCache struct {
	mu      sync.Mutex
	data    map[string]*domain.Insight
	gets    int
	hits    int
	readErr error
}

func (c *countingCache) Get(_ context.Context, key string) (*domain.Insight, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.readErr != nil {
		return nil, false, c.readErr
	}
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *countingCache) Set(_ context.Context, key string, value *domain.Insight, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]*domain.Insight{}
	}
	copied := *value
	c.data[key] = &copied
	return nil
}

func salesItems() []domain.SoldItem {
	return []domain.SoldItem{
		{ProductID: "P-AGUILA", ProductName: "Aguila", Quantity: 10, Revenue: 40000},
		{ProductID: "P-RON", ProductName: "Ron", Quantity: 2, Revenue: 80000},
		{ProductID: "P-AGUILA", ProductName: "Aguila", Quantity: 15, Revenue: 60000},
		{ProductID: "P-MANI", ProductName: "Mani", Quantity: 1, Revenue: 2000},
	}
}

func fakeProviderServer(t *testing.T, status int, content string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-key-long-enough-123", r.Header.Get("Authorization"))

		var req completionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func validatedSettings() domain.AdvisorSettings {
	return domain.AdvisorSettings{
		Provider:  domain.AdvisorOpenAI,
		APIKey:    "sk-test-key-long-enough-123",
		Prompt:    "prompt",
		Validated: true,
	}
}

func TestTopProductsGroupsAndRanks(t *testing.T) {
	top := TopProducts(salesItems(), 2)
	require.Len(t, top, 2)
	assert.Equal(t, domain.ProductSales{ProductID: "P-AGUILA", ProductName: "Aguila", Quantity: 25, Revenue: 100000}, top[0])
	assert.Equal(t, "P-RON", top[1].ProductID)
}

func TestBasicInsightsWithoutSales(t *testing.T) {
	insight, err := BasicAdvisor{}.Insights(context.Background(), Aggregates{})
	require.NoError(t, err)
	assert.Equal(t, domain.InsightSourceBasic, insight.Source)
	assert.Equal(t, []string{
		"Registra ventas para obtener recomendaciones mas precisas.",
		"Explora combos y upselling en turno para aumentar ticket promedio.",
	}, insight.Suggestions)
	assert.NotNil(t, insight.TopProducts)
}

func TestBasicInsightsNameTheLeader(t *testing.T) {
	insight, err := BasicAdvisor{}.Insights(context.Background(), Aggregates{TopProducts: TopProducts(salesItems(), 5)})
	require.NoError(t, err)
	assert.Equal(t, "Asegura inventario del lider en ventas: Aguila.", insight.Suggestions[0])
}

func TestBasicChatListsSuggestions(t *testing.T) {
	reply, err := BasicAdvisor{}.Chat(context.Background(), "hola", Aggregates{})
	require.NoError(t, err)
	assert.Equal(t, domain.InsightSourceBasic, reply.Source)
	assert.True(t, strings.HasPrefix(reply.Reply, "La IA esta en modo basico. Revisa las ideas rapidas:\n- "))
}

func TestInsightsUseBasicWhenNotValidated(t *testing.T) {
	repo := &fakeRepo{items: salesItems()}
	settings := validatedSettings()
	settings.Validated = false
	repo.settings = settings
	srv, calls := fakeProviderServer(t, http.StatusOK, "uno")

	svc := NewService(repo, nil, time.Minute, NewHTTPProviderFactory(ProviderConfig{BaseURL: srv.URL}))
	insight := svc.Insights(context.Background())

	assert.Equal(t, domain.InsightSourceBasic, insight.Source)
	assert.Equal(t, 0, *calls)
}

func TestInsightsUseLiveProvider(t *testing.T) {
	repo := &fakeRepo{items: salesItems(), settings: validatedSettings()}
	srv, calls := fakeProviderServer(t, http.StatusOK, "- Sube stock de Aguila\n- Combo ron con gaseosa\n\n3. Revisa precios")

	svc := NewService(repo, nil, time.Minute, NewHTTPProviderFactory(ProviderConfig{BaseURL: srv.URL}))
	insight := svc.Insights(context.Background())

	assert.Equal(t, 1, *calls)
	assert.Equal(t, domain.InsightSourceAI, insight.Source)
	assert.Equal(t, "Sugerencias del agente", insight.Title)
	assert.Equal(t, []string{"Sube stock de Aguila", "Combo ron con gaseosa", "Revisa precios"}, insight.Suggestions)
	assert.Len(t, insight.TopProducts, 3)
}

func TestLiveFailureDegradesToBasic(t *testing.T) {
	repo := &fakeRepo{items: salesItems(), settings: validatedSettings()}
	srv, calls := fakeProviderServer(t, http.StatusServiceUnavailable, "")

	svc := NewService(repo, nil, time.Minute, NewHTTPProviderFactory(ProviderConfig{BaseURL: srv.URL}))
	insight := svc.Insights(context.Background())
	reply := svc.Chat(context.Background(), "que vendo mas?")

	assert.Equal(t, 2, *calls)
	assert.Equal(t, domain.InsightSourceBasic, insight.Source)
	assert.Equal(t, domain.InsightSourceBasic, reply.Source)
}

func TestProviderErrorsWrapDependencyUnavailable(t *testing.T) {
	srv, _ := fakeProviderServer(t, http.StatusBadGateway, "")
	provider := NewHTTPProviderFactory(ProviderConfig{BaseURL: srv.URL})(validatedSettings())

	_, err := provider.Complete(context.Background(), "s", "u")
	assert.True(t, errors.Is(err, ErrDependencyUnavailable))
}

func TestChatUsesLiveProvider(t *testing.T) {
	repo := &fakeRepo{items: salesItems(), settings: validatedSettings()}
	srv, _ := fakeProviderServer(t, http.StatusOK, "  Vende mas Aguila.  ")

	svc := NewService(repo, nil, time.Minute, NewHTTPProviderFactory(ProviderConfig{BaseURL: srv.URL}))
	reply := svc.Chat(context.Background(), "")

	assert.Equal(t, domain.ChatReply{Reply: "Vende mas Aguila.", Source: domain.InsightSourceAI}, reply)
}

func TestUnavailableSalesFallBackWithoutCaching(t *testing.T) {
	repo := &fakeRepo{itemsErr: errors.New("db down")}
	c := &countingCache{}
	svc := NewService(repo, c, time.Minute, nil)

	insight := svc.Insights(context.Background())
	assert.Equal(t, "Vision basica", insight.Title)
	assert.Empty(t, c.data)
}

func TestBasicInsightsAreCached(t *testing.T) {
	repo := &fakeRepo{items: salesItems()}
	c := &countingCache{}
	svc := NewService(repo, c, time.Minute, nil)

	first := svc.Insights(context.Background())
	second := svc.Insights(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.hits)
}

func TestRefreshBasicWarmsCache(t *testing.T) {
	repo := &fakeRepo{items: salesItems()}
	c := &countingCache{}
	svc := NewService(repo, c, time.Minute, nil)

	require.NoError(t, svc.RefreshBasic(context.Background()))
	require.Contains(t, c.data, basicCacheKey)
	assert.Equal(t, "P-AGUILA", c.data[basicCacheKey].TopProducts[0].ProductID)
}

func TestRegisterTicketsOutrankShiftReports(t *testing.T) {
	repo := &fakeRepo{
		items:     salesItems(),
		saleItems: []domain.SoldItem{{ProductID: "P-MANI", ProductName: "Mani", Quantity: 4, Revenue: 8000}},
	}
	c := &countingCache{}
	svc := NewService(repo, c, time.Minute, nil)

	require.NoError(t, svc.RefreshBasic(context.Background()))
	top := c.data[basicCacheKey].TopProducts
	require.Len(t, top, 1)
	assert.Equal(t, "P-MANI", top[0].ProductID)
}

func TestSettingsLifecycle(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil, time.Minute, nil)
	ctx := context.Background()

	settings, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompt, settings.Prompt)
	assert.False(t, settings.HasAPIKey)

	_, err = svc.TestSettings(ctx, domain.AdvisorSettingsRequest{})
	assert.ErrorIs(t, err, store.ErrValidation)

	provider := "openai"
	short := "sk-short"
	_, err = svc.TestSettings(ctx, domain.AdvisorSettingsRequest{Provider: &provider, APIKey: &short})
	assert.ErrorIs(t, err, store.ErrValidation)

	key := "sk-test-key-long-enough-123"
	tested, err := svc.TestSettings(ctx, domain.AdvisorSettingsRequest{Provider: &provider, APIKey: &key})
	require.NoError(t, err)
	assert.True(t, tested.Validated)
	assert.True(t, tested.HasAPIKey)
	assert.NotNil(t, tested.LastTestedAt)
	assert.Equal(t, domain.AdvisorOpenAI, tested.Provider)

	prompt := "Analiza el bar"
	updated, err := svc.UpdateSettings(ctx, domain.AdvisorSettingsRequest{Prompt: &prompt})
	require.NoError(t, err)
	assert.True(t, updated.Validated, "prompt change keeps validation")
	assert.Equal(t, prompt, updated.Prompt)

	gemini := "GEMINI"
	updated, err = svc.UpdateSettings(ctx, domain.AdvisorSettingsRequest{Provider: &gemini})
	require.NoError(t, err)
	assert.False(t, updated.Validated, "provider change resets validation")
	assert.Nil(t, updated.LastTestedAt)

	bogus := "CLAUDIA"
	_, err = svc.UpdateSettings(ctx, domain.AdvisorSettingsRequest{Provider: &bogus})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestKeyLooksValid(t *testing.T) {
	assert.True(t, KeyLooksValid(domain.AdvisorOpenAI, "sk-123456789012345678901"))
	assert.False(t, KeyLooksValid(domain.AdvisorOpenAI, "pk-123456789012345678901"))
	assert.False(t, KeyLooksValid(domain.AdvisorOpenAI, "sk-1234"))
	assert.True(t, KeyLooksValid(domain.AdvisorGemini, "AIzaSy12345"))
	assert.False(t, KeyLooksValid(domain.AdvisorGemini, "short"))
}

func TestCacheReadErrorStillAnswers(t *testing.T) {
	repo := &fakeRepo{items: salesItems()}
	c := &countingCache{readErr: errors.New("redis down")}
	svc := NewService(repo, c, time.Minute, nil)

	insight := svc.Insights(context.Background())
	assert.Equal(t, "Vision rapida (30 dias)", insight.Title)
	assert.Equal(t, 1, c.gets)
}
