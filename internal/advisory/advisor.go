// Package advisory produces sales insights and chat answers for the admin.
// A live provider is used when one is configured and validated; any failure
// degrades to deterministic basic suggestions, so callers never see errors.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
)

var ErrDependencyUnavailable = errors.New("advisory provider unavailable")

const DefaultPrompt = "Actua como analista financiero y operativo de un bar. Resume ventas, inventario, cierres de turno, gastos, fiados y ganancias. Genera observaciones, alertas o recomendaciones breves y claras en espanol. Si faltan datos, indica que no hay informacion suficiente."

const defaultChatMessage = "Dame un resumen rapido"

// Aggregates is the sales context handed to an advisor.
type Aggregates struct {
	TopProducts []domain.ProductSales
	Prompt      string
	Unavailable bool
}

type Advisor interface {
	Insights(ctx context.Context, agg Aggregates) (domain.Insight, error)
	Chat(ctx context.Context, message string, agg Aggregates) (domain.ChatReply, error)
}

type BasicAdvisor struct{}

func (BasicAdvisor) Insights(_ context.Context, agg Aggregates) (domain.Insight, error) {
	if agg.Unavailable {
		return domain.Insight{
			Title:       "Vision basica",
			Summary:     "No se pudo leer ventas. Usa el historial y reportes para revisar rendimiento.",
			Suggestions: []string{"Verifica turnos recientes y niveles de inventario."},
			TopProducts: []domain.ProductSales{},
			Source:      domain.InsightSourceBasic,
		}, nil
	}

	top := agg.TopProducts
	if top == nil {
		top = []domain.ProductSales{}
	}
	suggestions := make([]string, 0, 3)
	if len(top) > 0 {
		suggestions = append(suggestions, fmt.Sprintf("Asegura inventario del lider en ventas: %s.", top[0].ProductName))
		if top[0].Revenue > 0 && top[len(top)-1].Revenue == 0 {
			suggestions = append(suggestions, "Revisa productos sin ventas y considera promociones o reemplazos.")
		}
	} else {
		suggestions = append(suggestions, "Registra ventas para obtener recomendaciones mas precisas.")
	}
	suggestions = append(suggestions, "Explora combos y upselling en turno para aumentar ticket promedio.")

	return domain.Insight{
		Title:       "Vision rapida (30 dias)",
		Summary:     "Analisis basico generado sin IA usando ventas recientes.",
		Suggestions: suggestions,
		TopProducts: top,
		Source:      domain.InsightSourceBasic,
	}, nil
}

func (b BasicAdvisor) Chat(ctx context.Context, _ string, agg Aggregates) (domain.ChatReply, error) {
	insight, _ := b.Insights(ctx, agg)
	return domain.ChatReply{
		Reply:  "La IA esta en modo basico. Revisa las ideas rapidas:\n- " + strings.Join(insight.Suggestions, "\n- "),
		Source: domain.InsightSourceBasic,
	}, nil
}

// LiveAdvisor asks a completion provider, using the configured prompt as the
// system message and the sales aggregates as context.
type LiveAdvisor struct {
	provider Provider
}

func NewLiveAdvisor(provider Provider) *LiveAdvisor {
	return &LiveAdvisor{provider: provider}
}

func (a *LiveAdvisor) Insights(ctx context.Context, agg Aggregates) (domain.Insight, error) {
	question := "Con estos datos, da entre 3 y 5 sugerencias concretas, una por linea.\n" + describeSales(agg.TopProducts)
	reply, err := a.provider.Complete(ctx, promptOrDefault(agg.Prompt), question)
	if err != nil {
		return domain.Insight{}, err
	}
	suggestions := splitSuggestions(reply)
	if len(suggestions) == 0 {
		return domain.Insight{}, fmt.Errorf("%w: empty completion", ErrDependencyUnavailable)
	}

	top := agg.TopProducts
	if top == nil {
		top = []domain.ProductSales{}
	}
	return domain.Insight{
		Title:       "Sugerencias del agente",
		Summary:     "Analisis generado con el prompt configurado. Usa estas ideas para ajustar inventario, precios y ofertas.",
		Suggestions: suggestions,
		TopProducts: top,
		Source:      domain.InsightSourceAI,
	}, nil
}

func (a *LiveAdvisor) Chat(ctx context.Context, message string, agg Aggregates) (domain.ChatReply, error) {
	question := describeSales(agg.TopProducts) + "\nPregunta: " + message
	reply, err := a.provider.Complete(ctx, promptOrDefault(agg.Prompt), question)
	if err != nil {
		return domain.ChatReply{}, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return domain.ChatReply{}, fmt.Errorf("%w: empty completion", ErrDependencyUnavailable)
	}
	return domain.ChatReply{Reply: reply, Source: domain.InsightSourceAI}, nil
}

func describeSales(top []domain.ProductSales) string {
	if len(top) == 0 {
		return "Top vendidos (30d): Sin ventas suficientes para evaluar top productos."
	}
	parts := make([]string, 0, len(top))
	for _, p := range top {
		parts = append(parts, fmt.Sprintf("%s: %d uds, %d", p.ProductName, p.Quantity, p.Revenue))
	}
	return "Top vendidos (30d): " + strings.Join(parts, " | ")
}

func splitSuggestions(reply string) []string {
	out := make([]string, 0, 5)
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•0123456789.) "))
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == 5 {
			break
		}
	}
	return out
}

func promptOrDefault(prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		return DefaultPrompt
	}
	return prompt
}
