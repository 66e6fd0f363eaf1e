// Package outreach drafts LinkedIn messages for recruiters and hiring
// managers. Drafts only land in the store for manual review; nothing is ever
// sent automatically.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Message types, each with its own LinkedIn length cap.
const (
	TypeConnectionRequest = "connection_request"
	TypeFollowUp          = "follow_up"
	TypeInMail            = "inmail"
)

type template struct {
	maxChars int
	system   string
}

var templates = map[string]template{
	TypeConnectionRequest: {
		maxChars: 280,
		system: "Draft a LinkedIn connection request note. Max 280 characters.\n" +
			"Be specific about the role. Be genuine and concise. No fluff.",
	},
	TypeFollowUp: {
		maxChars: 500,
		system: "Draft a brief follow-up message for someone who accepted your\n" +
			"connection request but hasn't responded. Keep it under 500 characters.\n" +
			"Be respectful of their time. Reference the specific role.",
	},
	TypeInMail: {
		maxChars: 1900,
		system: "Draft a LinkedIn InMail message. Max 1900 characters.\n" +
			"Open with something specific about the company or role. Connect your experience\n" +
			"to what they need. Close with a clear but low-pressure ask.",
	},
}

// ValidMessageType reports whether messageType names a known template.
func ValidMessageType(messageType string) bool {
	_, ok := templates[messageType]
	return ok
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Agent drafts outreach messages with the oracle.
type Agent struct {
	generator contentGenerator
	logger    *zap.Logger
}

func NewAgent(generator contentGenerator, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{generator: generator, logger: logger}
}

// Request describes one outreach draft. ApplicationSummary optionally carries
// the tailored resume summary so the draft can reference real highlights.
type Request struct {
	JobTitle           string
	Company            string
	RecipientName      string
	RecipientTitle     string
	MessageType        string
	AdditionalContext  string
	ApplicationSummary string
}

// Draft produces one message, hard-truncated to the type's length cap. An
// unknown message type falls back to a connection request.
func (a *Agent) Draft(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.RecipientName) == "" {
		return "", errors.New("recipient name is required")
	}

	tmpl, ok := templates[req.MessageType]
	if !ok {
		tmpl = templates[TypeConnectionRequest]
	}

	lines := []string{
		fmt.Sprintf("Role: %s at %s", req.JobTitle, req.Company),
		fmt.Sprintf("Recipient: %s, %s", req.RecipientName, req.RecipientTitle),
		fmt.Sprintf("Max length: %d characters", tmpl.maxChars),
	}
	if req.AdditionalContext != "" {
		lines = append(lines, "Additional context: "+req.AdditionalContext)
	}
	if req.ApplicationSummary != "" {
		lines = append(lines, "Candidate highlights: "+req.ApplicationSummary)
	}

	raw, err := a.generator.GenerateContent(ctx, tmpl.system, strings.Join(lines, "\n"))
	if err != nil {
		return "", fmt.Errorf("outreach call: %w", err)
	}

	draft := strings.TrimSpace(raw)
	if utf8.RuneCountInString(draft) > tmpl.maxChars {
		a.logger.Warn("outreach draft exceeded its cap, truncating",
			zap.String("message_type", req.MessageType),
			zap.Int("cap", tmpl.maxChars),
			zap.Int("length", utf8.RuneCountInString(draft)),
		)
		draft = string([]rune(draft)[:tmpl.maxChars])
	}

	return draft, nil
}

// FollowUp is one step of the static follow-up plan.
type FollowUp struct {
	Date time.Time `json:"date"`
	Type string    `json:"type"`
	Note string    `json:"note"`
}

// FollowUpSchedule returns the day-5, day-14 and day-30 plan after an initial
// message goes out.
func FollowUpSchedule(initialSend time.Time) []FollowUp {
	return []FollowUp{
		{Date: initialSend.AddDate(0, 0, 5), Type: TypeFollowUp, Note: "Gentle follow-up: reference the role, add value"},
		{Date: initialSend.AddDate(0, 0, 14), Type: TypeFollowUp, Note: "Second follow-up: brief, respectful"},
		{Date: initialSend.AddDate(0, 0, 30), Type: TypeFollowUp, Note: "Final check-in: keep the door open"},
	}
}
