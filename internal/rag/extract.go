package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/providers"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
)

// Requirement is one question the model pulled out of a tender document.
type Requirement struct {
	Question string `json:"question"`
	Heading  string `json:"heading"`
	Clarity  string `json:"clarity"`
}

const ClarityAttention = "attention"

// Extractor turns raw tender text into bid sections via the LLM.
type Extractor struct {
	manager  *providers.Manager
	maxChars int
}

func NewExtractor(m *providers.Manager, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = 36000
	}
	return &Extractor{manager: m, maxChars: maxChars}
}

func (e *Extractor) Extract(ctx context.Context, tenderText string) ([]models.Section, error) {
	prompt := BuildExtractPrompt(util.TruncateRunes(tenderText, e.maxChars))
	resp, _, err := generateWithFallback(ctx, e.manager, providers.GenerateRequest{
		Operation:   "extract",
		Prompt:      prompt,
		Temperature: 0,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("extract requirements: %w", err)
	}
	reqs, err := ParseRequirements(resp.Text)
	if err != nil {
		return nil, err
	}
	return SectionsFromRequirements(reqs), nil
}

func BuildExtractPrompt(tenderText string) string {
	var sb strings.Builder
	sb.WriteString("You are reading a tender (request for proposal) document. ")
	sb.WriteString("Extract every requirement or question a bidder must answer.\n\n")
	sb.WriteString("Return ONLY a JSON array. Each element must have:\n")
	sb.WriteString(`  "question": the requirement as a direct question (required, non-empty)` + "\n")
	sb.WriteString(`  "heading": the section heading it appeared under, or ""` + "\n")
	sb.WriteString(`  "clarity": "ready" if the requirement is unambiguous, "attention" if a human should review the wording` + "\n\n")
	sb.WriteString("If the document contains no requirements, return [].\n\n")
	sb.WriteString("Document:\n")
	sb.WriteString(tenderText)
	return sb.String()
}

// ParseRequirements decodes the model output into validated requirements.
// Models wrap JSON in code fences or prose often enough that we scan for
// the first balanced array rather than trusting the raw payload.
func ParseRequirements(raw string) ([]Requirement, error) {
	payload := extractJSONArray(stripCodeFence(raw))
	if payload == "" {
		return nil, fmt.Errorf("no JSON array in model output")
	}
	var reqs []Requirement
	if err := json.Unmarshal([]byte(payload), &reqs); err != nil {
		return nil, fmt.Errorf("decode requirements: %w", err)
	}
	for i := range reqs {
		reqs[i].Question = strings.TrimSpace(reqs[i].Question)
		reqs[i].Heading = strings.TrimSpace(reqs[i].Heading)
		if reqs[i].Question == "" {
			return nil, fmt.Errorf("requirement %d has an empty question", i)
		}
	}
	return reqs, nil
}

// SectionsFromRequirements maps clarity onto the initial section status.
// An empty slice is a valid outcome: the tender simply had no questions.
func SectionsFromRequirements(reqs []Requirement) []models.Section {
	sections := make([]models.Section, 0, len(reqs))
	for _, r := range reqs {
		status := models.SectionStatusEmpty
		if strings.EqualFold(r.Clarity, ClarityAttention) {
			status = models.SectionStatusAttention
		}
		sections = append(sections, models.Section{
			Question: r.Question,
			Heading:  r.Heading,
			Status:   status,
		})
	}
	return sections
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// extractJSONArray returns the first balanced top-level [...] in s,
// ignoring brackets inside JSON strings.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
