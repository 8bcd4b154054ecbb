package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPDF(content string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(40, 10, content)

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	return buf.Bytes(), err
}

func TestPDFTextExtractor_ExtractText(t *testing.T) {
	data, err := createTestPDF("Secure Authentication Dashboard")
	require.NoError(t, err)

	text, err := NewPDFTextExtractor().ExtractText(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, text, "Authentication")
}

func TestPDFTextExtractor_InvalidPDF(t *testing.T) {
	_, err := NewPDFTextExtractor().ExtractText(context.Background(), []byte("%PDF-1.4 truncated"))
	assert.Error(t, err)

	_, err = NewPDFTextExtractor().ExtractText(context.Background(), []byte("plain text"))
	assert.Error(t, err)
}

func TestHeuristicFeatureExtractor(t *testing.T) {
	text := "Our System offers an admin Dashboard. Users login through OAuth authentication. " +
		"The Reporting module produces analytics for the Database API. System System."

	features, err := NewHeuristicFeatureExtractor().ExtractFeatures(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, []string{"Our", "System", "Dashboard", "Users", "The", "Reporting", "Database"}, features.Concepts)
	assert.ElementsMatch(t,
		[]string{"system", "admin", "dashboard", "authentication", "reporting", "analytics", "database", "api"},
		features.TechnicalTerms)
	assert.Equal(t, []string{
		"User Management",
		"Authentication System",
		"Dashboard",
		"Analytics & Reporting",
		"Admin Panel",
	}, features.Features)
}

func TestHeuristicFeatureExtractor_CapsConcepts(t *testing.T) {
	var b bytes.Buffer
	for i := 0; i < 30; i++ {
		b.WriteString("Alpha" + string(rune('a'+i%26)) + " ")
	}
	b.WriteString("Zeta")

	features, err := NewHeuristicFeatureExtractor().ExtractFeatures(context.Background(), b.String())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(features.Concepts), maxConcepts)
	assert.NotContains(t, features.Concepts, "Zeta")
	assert.Empty(t, features.Features)
	assert.NotNil(t, features.TechnicalTerms)
}
