package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/ai"
	"github.com/jmorante/job-hunter/internal/logger"
	"github.com/jmorante/job-hunter/internal/preferences"
	"github.com/jmorante/job-hunter/internal/search"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	GenerateJSON(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var scoringPrompt string

const (
	defaultMaxLogLength = 200
	// The oracle only needs the opening of a long description to score it.
	maxDescriptionRunes = 1000
)

// Scorer rates listings against candidate preferences with Gemini.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (s *Scorer) Score(ctx context.Context, prefs preferences.Reduced, listing search.Listing) (*ai.ScoreResult, error) {
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("marshal scoring context: %w", err)
	}

	message := buildScoringMessage(string(prefsJSON), listing)

	s.logger.Debug("gemini scoring request",
		zap.String("title", listing.Title),
		zap.String("company", listing.Company),
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.String("message_preview", logger.TruncateForLog(message, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateJSON(ctx, scoringPrompt, message)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini scoring response",
		zap.String("title", listing.Title),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	result, err := parseScore(raw)
	if err != nil {
		return nil, err
	}

	result.Raw = raw
	return result, nil
}

func buildScoringMessage(prefsJSON string, listing search.Listing) string {
	description := listing.Description
	if description == "" {
		description = "No description"
	}
	description = truncateRunes(description, maxDescriptionRunes)

	var b strings.Builder
	b.WriteString("CANDIDATE PREFERENCES:\n")
	b.WriteString(prefsJSON)
	b.WriteString("\n\nJOB LISTING:\n")
	fmt.Fprintf(&b, "Title: %s\n", orUnknown(listing.Title))
	fmt.Fprintf(&b, "Company: %s\n", orUnknown(listing.Company))
	fmt.Fprintf(&b, "Location: %s\n", orUnknown(listing.Location))
	fmt.Fprintf(&b, "Description: %s\n", description)
	b.WriteString("\nScore this job match.")

	return b.String()
}

func parseScore(raw string) (*ai.ScoreResult, error) {
	cleaned := ai.CleanJSONBlock(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse scoring response: %w", err)
	}

	overall := ai.CoerceFloat(data["overall_score"])
	if math.IsNaN(overall) {
		return nil, errors.New("scoring response is missing overall_score")
	}

	result := &ai.ScoreResult{
		OverallScore: ai.ClampScore(overall),
		Reasoning:    ai.CoerceString(data["reasoning"]),
	}

	if breakdown, ok := data["breakdown"].(map[string]any); ok {
		result.Breakdown = make(map[string]float64, len(breakdown))
		for key, value := range breakdown {
			score := ai.CoerceFloat(value)
			if math.IsNaN(score) {
				continue
			}
			result.Breakdown[key] = ai.ClampScore(score)
		}
	}

	return result, nil
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Unknown"
	}
	return value
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
