package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"appraisal_go_backend/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
)

// maxPromptBytes caps how much paper text is sent to the model.
const maxPromptBytes = 30000

const featurePrompt = `You are analysing a faculty research paper for an appraisal system.
Return a JSON object with exactly these keys, each an array of short strings:
"concepts" (key concepts of the paper, at most 20),
"technicalTerms" (technical terms used),
"features" (system features or capabilities the paper describes).

Paper text:
%s`

// ContentGenerator is the part of *genai.GenerativeModel the extractor uses.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GenAIFeatureExtractor asks a Gemini model for the feature bag and falls back
// to another extractor when the model call or its output fails.
type GenAIFeatureExtractor struct {
	model    ContentGenerator
	fallback FeatureExtractor
}

func NewGenAIFeatureExtractor(client *genai.Client, modelName string, fallback FeatureExtractor) *GenAIFeatureExtractor {
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)
	return NewGenAIFeatureExtractorWithModel(model, fallback)
}

func NewGenAIFeatureExtractorWithModel(model ContentGenerator, fallback FeatureExtractor) *GenAIFeatureExtractor {
	return &GenAIFeatureExtractor{model: model, fallback: fallback}
}

func (e *GenAIFeatureExtractor) ExtractFeatures(ctx context.Context, text string) (models.ExtractedFeatures, error) {
	log := zerolog.Ctx(ctx)

	features, err := e.generate(ctx, text)
	if err == nil {
		return features, nil
	}
	if e.fallback == nil {
		return models.ExtractedFeatures{}, err
	}
	log.Warn().Err(err).Msg("GenAI feature extraction failed, using fallback extractor")
	return e.fallback.ExtractFeatures(ctx, text)
}

func (e *GenAIFeatureExtractor) generate(ctx context.Context, text string) (models.ExtractedFeatures, error) {
	resp, err := e.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(featurePrompt, truncateUTF8(text, maxPromptBytes))))
	if err != nil {
		return models.ExtractedFeatures{}, fmt.Errorf("failed to generate content: %w", err)
	}

	var raw strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if t, ok := part.(genai.Text); ok {
				raw.WriteString(string(t))
			}
		}
	}
	if raw.Len() == 0 {
		return models.ExtractedFeatures{}, fmt.Errorf("empty response from model")
	}

	var features models.ExtractedFeatures
	payload := strings.TrimSpace(raw.String())
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(payload, "```")), "```")
	if err := json.Unmarshal([]byte(payload), &features); err != nil {
		return models.ExtractedFeatures{}, fmt.Errorf("failed to decode model output: %w", err)
	}
	if len(features.Concepts) > maxConcepts {
		features.Concepts = features.Concepts[:maxConcepts]
	}
	return features, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
