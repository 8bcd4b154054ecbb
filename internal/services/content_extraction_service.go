package services

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"appraisal_go_backend/internal/models"

	"github.com/ledongthuc/pdf"
)

// PDFTextExtractor pulls plain text out of PDF bytes, page by page.
type PDFTextExtractor struct{}

func NewPDFTextExtractor() *PDFTextExtractor {
	return &PDFTextExtractor{}
}

func (e *PDFTextExtractor) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	// The pdf package panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var content strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}

		pageText, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		content.WriteString(pageText)
		content.WriteString("\n")
	}

	extracted := strings.TrimSpace(content.String())
	if extracted == "" {
		return "", fmt.Errorf("no text content extracted from PDF")
	}
	return extracted, nil
}

const maxConcepts = 20

var (
	conceptPattern       = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	technicalTermPattern = regexp.MustCompile(`(?i)\b(?:API|database|authentication|user|admin|dashboard|analytics|reporting|management|system)\b`)
)

// HeuristicFeatureExtractor derives features from plain text with fixed
// patterns; it needs no external service.
type HeuristicFeatureExtractor struct{}

func NewHeuristicFeatureExtractor() *HeuristicFeatureExtractor {
	return &HeuristicFeatureExtractor{}
}

func (e *HeuristicFeatureExtractor) ExtractFeatures(ctx context.Context, text string) (models.ExtractedFeatures, error) {
	lower := strings.ToLower(text)

	// Concepts come from the first capitalized words only.
	concepts := distinct(conceptPattern.FindAllString(text, maxConcepts), false)

	terms := distinct(technicalTermPattern.FindAllString(text, -1), true)

	features := []string{}
	if strings.Contains(lower, "user") {
		features = append(features, "User Management")
	}
	if strings.Contains(lower, "authentication") || strings.Contains(lower, "login") {
		features = append(features, "Authentication System")
	}
	if strings.Contains(lower, "dashboard") {
		features = append(features, "Dashboard")
	}
	if strings.Contains(lower, "analytics") || strings.Contains(lower, "report") {
		features = append(features, "Analytics & Reporting")
	}
	if strings.Contains(lower, "admin") {
		features = append(features, "Admin Panel")
	}

	return models.ExtractedFeatures{
		Concepts:       concepts,
		TechnicalTerms: terms,
		Features:       features,
	}, nil
}

// distinct keeps the first occurrence of each value, in order.
func distinct(values []string, fold bool) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if fold {
			v = strings.ToLower(v)
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
