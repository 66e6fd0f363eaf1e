package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue []fakeChatResponse
}

type chatCallRecord struct {
	model  string
	config *genai.GenerateContentConfig
	chat   *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{}
}

func (f *fakeChatCreator) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) enqueueText(text string) {
	f.enqueue(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}, nil)
}

func (f *fakeChatCreator) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, chat: chat})
	return chat, nil
}

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()

	var slept []time.Duration
	originalSleep := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = originalSleep })

	return &slept
}

func newTestGenerator(chats chatCreator, maxRetries int) *Generator {
	return &Generator{
		chats:      chats,
		model:      "gemini-2.5-flash",
		maxRetries: maxRetries,
		logger:     zap.NewNop(),
	}
}

func TestGeneratorRetriesOnServerError(t *testing.T) {
	stubSleep(t)

	chats := newFakeChatCreator()
	chats.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	chats.enqueueText("retry ok")

	g := newTestGenerator(chats, 2)

	output, err := g.GenerateContent(context.Background(), "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}

	for _, call := range chats.calls {
		if call.model != "gemini-2.5-flash" {
			t.Fatalf("unexpected model: %q", call.model)
		}
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatal("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if len(call.chat.messages) != 1 || call.chat.messages[0] != "message" {
			t.Fatalf("unexpected chat message: %+v", call.chat.messages)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	stubSleep(t)

	chats := newFakeChatCreator()
	serverErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue(nil, serverErr)
	chats.enqueue(nil, serverErr)

	g := newTestGenerator(chats, 2)

	_, err := g.GenerateContent(context.Background(), "sys", "msg")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestGeneratorRetriesOnShortQuotaDelay(t *testing.T) {
	slept := stubSleep(t)

	chats := newFakeChatCreator()
	chats.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 12 seconds",
	})
	chats.enqueueText("after quota")

	g := newTestGenerator(chats, 2)

	output, err := g.GenerateContent(context.Background(), "sys", "msg")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "after quota" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(*slept) != 1 || (*slept)[0] != 12*time.Second {
		t.Fatalf("expected a single 12s sleep, got %v", *slept)
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	g := newTestGenerator(chats, 3)

	_, err := g.GenerateContent(context.Background(), "sys", "msg")
	if err == nil {
		t.Fatal("expected error when quota delay too long")
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryOnClientError(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := newTestGenerator(chats, 3)

	_, err := g.GenerateContent(context.Background(), "sys", "msg")
	if err == nil {
		t.Fatal("expected error on client error")
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGenerateJSONSetsResponseConfig(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueueText(`{"ok": true}`)

	g := newTestGenerator(chats, 1)
	g.MaxOutputTokens = 400

	if _, err := g.GenerateJSON(context.Background(), "sys", "msg"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}

	config := chats.calls[0].config
	if config.ResponseMIMEType != "application/json" {
		t.Fatalf("expected JSON response mime type, got %q", config.ResponseMIMEType)
	}
	if config.Temperature == nil || *config.Temperature != float32(0.1) {
		t.Fatalf("unexpected temperature: %v", config.Temperature)
	}
	if config.MaxOutputTokens != 400 {
		t.Fatalf("expected max output tokens 400, got %d", config.MaxOutputTokens)
	}
}

func TestWithModel(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueueText("ok")

	g := newTestGenerator(chats, 1)
	g.MaxOutputTokens = 400

	derived := g.WithModel("gemini-2.5-pro", 4096)
	if derived.Model() != "gemini-2.5-pro" {
		t.Fatalf("unexpected derived model: %q", derived.Model())
	}
	if g.Model() != "gemini-2.5-flash" {
		t.Fatalf("base generator model changed: %q", g.Model())
	}

	if _, err := derived.GenerateContent(context.Background(), "sys", "msg"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if chats.calls[0].model != "gemini-2.5-pro" {
		t.Fatalf("expected derived model on the wire, got %q", chats.calls[0].model)
	}
	if chats.calls[0].config.MaxOutputTokens != 4096 {
		t.Fatalf("expected derived token cap, got %d", chats.calls[0].config.MaxOutputTokens)
	}
}

func TestWaitForCanceledContext(t *testing.T) {
	block := make(chan struct{})
	originalSleep := sleep
	sleep = func(time.Duration) { <-block }
	t.Cleanup(func() {
		sleep = originalSleep
		close(block)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := waitFor(ctx, time.Second); err == nil {
		t.Fatal("expected a context error")
	}
}

func TestGenerateEmptyMessage(t *testing.T) {
	g := newTestGenerator(newFakeChatCreator(), 1)

	if _, err := g.GenerateContent(context.Background(), "sys", "  "); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue(&genai.GenerateContentResponse{}, nil)

	g := newTestGenerator(chats, 1)

	if _, err := g.GenerateContent(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error for empty response")
	}
}
