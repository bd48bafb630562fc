package rag

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/providers"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/vector"
)

// NamespaceLister yields the searchable vector namespaces for an owner.
type NamespaceLister interface {
	ListNamespaces(ctx context.Context, ownerID string) ([]string, error)
}

// NamespaceSearcher fans a query vector across namespaces and merges results.
type NamespaceSearcher interface {
	SearchNamespaces(ctx context.Context, namespaces []string, queryVec []float32, topK, topN int) ([]vector.Match, error)
}

type Drafter struct {
	manager  *providers.Manager
	lister   NamespaceLister
	searcher NamespaceSearcher
	embedDim int
	topK     int
	topN     int
}

func NewDrafter(m *providers.Manager, lister NamespaceLister, searcher NamespaceSearcher, embedDim, topK, topN int) *Drafter {
	if topK <= 0 {
		topK = 5
	}
	if topN <= 0 {
		topN = 8
	}
	return &Drafter{manager: m, lister: lister, searcher: searcher, embedDim: embedDim, topK: topK, topN: topN}
}

type DraftResult struct {
	Answer       string         `json:"answer"`
	Confidence   int            `json:"confidence"`
	ContextFound bool           `json:"context_found"`
	Matches      []vector.Match `json:"matches,omitempty"`
}

// Draft answers one section question from the owner's knowledge base:
// embed the question once, search every namespace, draft against the merged
// context, then self-rate for the confidence score.
func (d *Drafter) Draft(ctx context.Context, ownerID, question string) (DraftResult, error) {
	namespaces, err := d.lister.ListNamespaces(ctx, ownerID)
	if err != nil {
		return DraftResult{}, fmt.Errorf("list namespaces: %w", err)
	}

	var matches []vector.Match
	if len(namespaces) > 0 {
		vec, err := d.embedQuery(ctx, question)
		if err != nil {
			return DraftResult{}, err
		}
		matches, err = d.searcher.SearchNamespaces(ctx, namespaces, vec, d.topK, d.topN)
		if err != nil {
			return DraftResult{}, fmt.Errorf("search namespaces: %w", err)
		}
	}
	contextFound := len(matches) > 0

	contextBlocks := make([]string, 0, len(matches))
	for _, m := range matches {
		contextBlocks = append(contextBlocks, m.Text)
	}

	resp, _, err := generateWithFallback(ctx, d.manager, providers.GenerateRequest{
		Operation:   "draft",
		Prompt:      buildDraftPrompt(question, contextFound),
		Context:     contextBlocks,
		Temperature: 0,
	})
	if err != nil {
		return DraftResult{}, fmt.Errorf("draft answer: %w", err)
	}
	answer := strings.TrimSpace(resp.Text)

	rating, err := d.rateAnswer(ctx, question, answer, contextBlocks)
	if err != nil {
		return DraftResult{}, err
	}

	topScore := 0.0
	if contextFound {
		topScore = matches[0].Score
	}
	return DraftResult{
		Answer:       answer,
		Confidence:   Score(rating, topScore, contextFound),
		ContextFound: contextFound,
		Matches:      matches,
	}, nil
}

func (d *Drafter) embedQuery(ctx context.Context, question string) ([]float32, error) {
	var lastErr error
	for _, i := range d.manager.PreferredEmbedOrder() {
		p, ref := d.manager.EmbedProviderByIndex(i)
		vecs, _, err := p.Embed(ctx, providers.EmbedRequest{
			Operation: "draft-query",
			Inputs:    []string{question},
			Dimension: d.embedDim,
			Task:      providers.TaskQuery,
		})
		if err == nil && len(vecs) == 1 {
			return vecs[0], nil
		}
		if err == nil {
			err = fmt.Errorf("provider %s returned %d vectors for one input", ref.Raw, len(vecs))
		}
		lastErr = err
		if providers.ClassifyError(err) == providers.ErrorPermanent {
			break
		}
	}
	return nil, fmt.Errorf("embed query: %w", lastErr)
}

func (d *Drafter) rateAnswer(ctx context.Context, question, answer string, contextBlocks []string) (int, error) {
	resp, _, err := generateWithFallback(ctx, d.manager, providers.GenerateRequest{
		Operation:   "rate",
		Prompt:      buildRatePrompt(question, answer, len(contextBlocks)),
		Temperature: 0,
	})
	if err != nil {
		return 0, fmt.Errorf("rate answer: %w", err)
	}
	return parseRating(resp.Text), nil
}

// Score blends the model's self-rating (0-10) with retrieval strength.
// With context: 0.7*rating + 0.3*similarity, floored at 40 and capped at 95.
// Without context the score is rating-only with no floor, so an unsupported
// answer can land visibly low.
func Score(rating int, topScore float64, contextFound bool) int {
	if rating < 0 {
		rating = 0
	}
	if rating > 10 {
		rating = 10
	}
	var s float64
	if contextFound {
		if topScore < 0 {
			topScore = 0
		}
		if topScore > 1 {
			topScore = 1
		}
		s = 0.7*float64(rating*10) + 0.3*(topScore*100)
		if s < 40 {
			s = 40
		}
	} else {
		s = 0.7 * float64(rating*10)
	}
	if s > 95 {
		s = 95
	}
	return int(math.Round(s))
}

func buildDraftPrompt(question string, contextFound bool) string {
	var sb strings.Builder
	sb.WriteString("You are drafting an answer for a tender response on behalf of the bidding company.\n")
	if contextFound {
		sb.WriteString("Use ONLY the provided company knowledge excerpts. Do not invent capabilities.\n\n")
	} else {
		sb.WriteString("No company knowledge was found for this question. Write a cautious, generic draft and state clearly that it needs company-specific detail.\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

func buildRatePrompt(question, answer string, contextCount int) string {
	var sb strings.Builder
	sb.WriteString("Rate how well the answer below addresses the tender question, as a single integer from 0 to 10. Reply with the integer only.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\nAnswer: %s\n\n", question, answer)
	fmt.Fprintf(&sb, "The answer was drafted from %d knowledge excerpts.\n", contextCount)
	return sb.String()
}

// parseRating pulls the first integer out of the model reply. Anything
// unparseable rates as zero rather than failing the draft.
func parseRating(raw string) int {
	raw = strings.TrimSpace(stripCodeFence(raw))
	start := -1
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0
	}
	end := start
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(raw[start:end])
	if err != nil {
		return 0
	}
	if n > 10 {
		n = 10
	}
	return n
}

// generateWithFallback walks the preferred provider order, skipping
// providers whose failures look retryable elsewhere (quota, rate limits,
// transient faults) and stopping early on permanent errors.
func generateWithFallback(ctx context.Context, m *providers.Manager, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	var lastErr error
	for _, i := range m.PreferredLLMOrder() {
		p, _ := m.LLMProviderByIndex(i)
		resp, info, err := p.Generate(ctx, req)
		if err == nil {
			return resp, info, nil
		}
		lastErr = err
		switch providers.ClassifyError(err) {
		case providers.ErrorPermanent, providers.ErrorContext:
			return providers.GenerateResponse{}, providers.ProviderInfo{}, err
		}
	}
	return providers.GenerateResponse{}, providers.ProviderInfo{}, fmt.Errorf("all llm providers failed: %w", lastErr)
}
