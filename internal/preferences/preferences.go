package preferences

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// PreferenceSet holds the candidate's job search preferences. It is loaded
// once per discovery run and treated as immutable for that run.
type PreferenceSet struct {
	TargetTitles  []string     `json:"target_titles" validate:"required,min=1"`
	SearchQueries []string     `json:"search_queries" validate:"required,min=1"`
	Discovery     Discovery    `json:"discovery"`
	Location      Location     `json:"location"`
	Compensation  Compensation `json:"compensation"`
	Company       Company      `json:"company"`
	Scoring       Scoring      `json:"scoring" validate:"required"`
}

type Discovery struct {
	ExcludeKeywords []string `json:"exclude_keywords"`
}

type Location struct {
	Requirement  string   `json:"requirement" validate:"required"`
	Dealbreakers []string `json:"dealbreakers"`
}

type Compensation struct {
	MinimumBaseSalary int `json:"minimum_base_salary" validate:"min=0"`
}

type Company struct {
	PreferredSizes      []string `json:"preferred_sizes"`
	IndustriesPreferred []string `json:"industries_preferred"`
}

type Scoring struct {
	Weights               map[string]float64 `json:"weights" validate:"required,min=1"`
	MinimumScoreToSurface float64            `json:"minimum_score_to_surface" validate:"min=0,max=1"`
}

// Reduced is the projection of the preference set sent to the scoring oracle.
// It carries only the fields the oracle needs, keeping the prompt small.
type Reduced struct {
	TargetTitles          []string           `json:"target_titles"`
	LocationRequirement   string             `json:"location_requirement"`
	MinSalary             int                `json:"min_salary"`
	PreferredCompanySizes []string           `json:"preferred_company_sizes"`
	PreferredIndustries   []string           `json:"preferred_industries"`
	ScoringWeights        map[string]float64 `json:"scoring_weights"`
}

// Load reads and validates the preference set from a JSON file. Any error here
// is fatal for a discovery run: no stage may start with incomplete preferences.
func Load(path string) (*PreferenceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preferences file %q: %w", path, err)
	}

	var prefs PreferenceSet
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("parsing preferences file %q: %w", path, err)
	}

	if err := prefs.Validate(); err != nil {
		return nil, err
	}

	return &prefs, nil
}

// Validate checks the required fields of the preference set.
func (p *PreferenceSet) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}
	return nil
}

// Reduced returns the scoring-context projection of the preference set.
func (p *PreferenceSet) Reduced() Reduced {
	return Reduced{
		TargetTitles:          p.TargetTitles,
		LocationRequirement:   p.Location.Requirement,
		MinSalary:             p.Compensation.MinimumBaseSalary,
		PreferredCompanySizes: p.Company.PreferredSizes,
		PreferredIndustries:   p.Company.IndustriesPreferred,
		ScoringWeights:        p.Scoring.Weights,
	}
}
