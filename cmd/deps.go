package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/ai/gemini"
	"github.com/jmorante/job-hunter/internal/discovery"
	"github.com/jmorante/job-hunter/internal/logger"
	"github.com/jmorante/job-hunter/internal/outreach"
	"github.com/jmorante/job-hunter/internal/search/serpapi"
	"github.com/jmorante/job-hunter/internal/secrets"
	"github.com/jmorante/job-hunter/internal/store"
	"github.com/jmorante/job-hunter/internal/tailoring"
)

// Output caps per agent. Scoring verdicts are small JSON objects; tailoring
// rewrites a whole resume; outreach drafts are a few sentences.
const (
	scoringMaxTokens   = 400
	tailoringMaxTokens = 4096
	outreachMaxTokens  = 256
)

// collaborators bundles everything a discovery run or the API server needs.
type collaborators struct {
	store    *store.Store
	pipeline *discovery.Pipeline
	tailor   *tailoring.Agent
	outreach *outreach.Agent
}

func (c *collaborators) Close() error {
	return c.store.Close()
}

func buildCollaborators(ctx context.Context, config *Config, base *zap.Logger) (*collaborators, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Search == nil || config.AI == nil || config.AI.Gemini == nil {
		return nil, errors.New("search and ai.gemini configuration sections are required")
	}

	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}

	serpapiKey, err := secrets.Load(secrets.Source{
		Name:    "serpapi api key",
		Value:   config.Search.APIKey,
		File:    config.Search.APIKeyFile,
		Service: app,
		User:    "serpapi",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set JH_SERPAPI_KEY or search.api-key-file)", err)
	}

	geminiKey, err := secrets.Load(secrets.Source{
		Name:    "gemini api key",
		Value:   config.AI.Gemini.APIKey,
		File:    config.AI.Gemini.APIKeyFile,
		Service: app,
		User:    "gemini",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set JH_GEMINI_API_KEY or ai.gemini.api-key-file)", err)
	}

	gem := config.AI.Gemini

	scoringLogger := logger.WithFields(base, logger.CommonFields("gemini", gem.ScoringModel)...)
	generator, err := gemini.NewGenerator(ctx, geminiKey, gem.ScoringModel, gem.MaxRetries, scoringLogger)
	if err != nil {
		return nil, fmt.Errorf("building gemini generator: %w", err)
	}
	generator.MaxOutputTokens = scoringMaxTokens

	scorer := gemini.NewScorer(generator, scoringLogger, gem.MaxLogLength)

	pipeline := discovery.New(serpapi.New(serpapiKey, base), scorer, base)
	pipeline.NumResults = config.Search.NumResults

	if err := ensureDir(config.DatabaseFile); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.Open(config.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Tailoring and outreach reuse the same client with their own models and
	// output caps.
	tailorGen := generator.WithModel(gem.TailoringModel, tailoringMaxTokens)
	outreachGen := generator.WithModel(gem.OutreachModel, outreachMaxTokens)

	return &collaborators{
		store:    st,
		pipeline: pipeline,
		tailor: tailoring.NewAgent(tailorGen,
			logger.WithFields(base, logger.CommonFields("gemini", tailorGen.Model())...), gem.MaxLogLength),
		outreach: outreach.NewAgent(outreachGen,
			logger.WithFields(base, logger.CommonFields("gemini", outreachGen.Model())...)),
	}, nil
}
