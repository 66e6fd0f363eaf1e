// Package tailoring turns a base resume and a stored job into application
// materials: a rewritten resume, an ATS analysis and a cover letter, all
// produced in one oracle call.
package tailoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/ai"
	"github.com/jmorante/job-hunter/internal/logger"
)

//go:embed prompt.md
var tailoringPrompt string

const defaultMaxLogLength = 200

type contentGenerator interface {
	GenerateJSON(ctx context.Context, system, message string) (string, error)
}

// Agent produces tailored application materials with the oracle.
type Agent struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewAgent(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Agent {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Agent{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// JobDetails carries the job fields the tailoring prompt needs. CompanyInfo
// is optional caller-supplied context.
type JobDetails struct {
	Title       string
	Company     string
	Location    string
	Description string
	CompanyInfo string
}

// Result is the full set of tailored materials for one job.
type Result struct {
	TailoredResume TailoredResume `json:"tailored_resume"`
	ATSAnalysis    ATSAnalysis    `json:"ats_analysis"`
	TailoringNotes string         `json:"tailoring_notes"`
	CoverLetter    string         `json:"cover_letter"`
}

// TailoredResume is the rewritten resume. Contact is kept loose: whatever
// fields the base resume carries pass through.
type TailoredResume struct {
	Contact    map[string]string `json:"contact,omitempty"`
	Summary    string            `json:"summary"`
	Experience []Experience      `json:"experience"`
	Skills     []string          `json:"skills,omitempty"`
}

type Experience struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	Dates    string   `json:"dates,omitempty"`
	Location string   `json:"location,omitempty"`
	Bullets  []string `json:"bullets"`
}

// ATSAnalysis estimates how an applicant tracking system reads the tailored
// resume against the job description.
type ATSAnalysis struct {
	Score           float64  `json:"score"`
	KeywordsMatched []string `json:"keywords_matched,omitempty"`
	KeywordsMissing []string `json:"keywords_missing,omitempty"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

// Tailor produces the materials for one job from the base resume.
func (a *Agent) Tailor(ctx context.Context, baseResume json.RawMessage, job JobDetails) (*Result, error) {
	if len(baseResume) == 0 {
		return nil, errors.New("base resume is required")
	}
	if strings.TrimSpace(job.Description) == "" {
		return nil, errors.New("job description is required")
	}

	message := buildTailoringMessage(baseResume, job)

	a.logger.Debug("gemini tailoring request",
		zap.String("title", job.Title),
		zap.String("company", job.Company),
		zap.Int("message_length", utf8.RuneCountInString(message)),
	)

	raw, err := a.generator.GenerateJSON(ctx, tailoringPrompt, message)
	if err != nil {
		return nil, fmt.Errorf("tailoring call: %w", err)
	}

	a.logger.Debug("gemini tailoring response",
		zap.String("title", job.Title),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, a.maxLogLen)),
	)

	return parseResult(raw)
}

func buildTailoringMessage(baseResume json.RawMessage, job JobDetails) string {
	var b strings.Builder
	b.WriteString("CANDIDATE RESUME:\n")
	b.Write(baseResume)
	b.WriteString("\n\nJOB DESCRIPTION:\n")
	fmt.Fprintf(&b, "Title: %s\nCompany: %s\n", job.Title, job.Company)
	if job.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", job.Location)
	}
	b.WriteString(job.Description)
	if job.CompanyInfo != "" {
		b.WriteString("\n\nCOMPANY INFO:\n")
		b.WriteString(job.CompanyInfo)
	}
	b.WriteString("\n\nTailor the resume and write the cover letter for this role. Return the JSON output.")

	return b.String()
}

// parseResult decodes the oracle response. It lives apart from the network
// call so malformed responses are testable on their own.
func parseResult(raw string) (*Result, error) {
	cleaned := ai.CleanJSONBlock(raw)

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("parse tailoring response: %w", err)
	}

	if result.CoverLetter == "" && result.TailoredResume.Summary == "" && len(result.TailoredResume.Experience) == 0 {
		return nil, errors.New("tailoring response carries neither resume nor cover letter")
	}

	result.ATSAnalysis.Score = ai.ClampScore(result.ATSAnalysis.Score)

	return &result, nil
}
