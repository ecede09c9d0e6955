package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/config"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// ErrUnavailable is returned when the gateway is disabled (no API key) or the
// circuit breaker is open. Callers branch on this to degrade instead of crash.
var ErrUnavailable = errors.New("language model gateway unavailable")

// Message is one role-tagged prompt element. Roles follow models.Role*.
type Message struct {
	Role    string
	Content string
}

// Gateway wraps the Gemini API behind a circuit breaker and rate limiter.
// A Gateway constructed without an API key is valid but permanently
// unavailable; IsAvailable reports the capability.
type Gateway struct {
	client       *genai.Client
	model        string
	embedModel   string
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
}

type TokenCounter struct {
	mu              sync.Mutex
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
	limits          RateLimits
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewGateway(cfg *config.Config) (*Gateway, error) {
	gw := &Gateway{
		model:      cfg.GeminiModel,
		embedModel: cfg.EmbeddingsModel,
	}

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, language model gateway disabled")
		return gw, nil
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	gw.client = client

	limits := getRateLimits(cfg.GeminiTier)

	gw.breaker = newGeminiBreaker()

	// RPM limit with some buffer
	gw.rateLimiter = rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)
	gw.tokenCounter = &TokenCounter{limits: limits}

	return gw, nil
}

func newGeminiBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// A consumer walking away mid-stream is not an upstream failure
		// and must not open the breaker for everyone else.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// IsAvailable reports whether the gateway can serve generation requests.
func (g *Gateway) IsAvailable() bool {
	return g.client != nil
}

// Generate runs a single whole-response completion over the given messages.
func (g *Gateway) Generate(ctx context.Context, msgs []Message) (string, error) {
	tracer := otel.Tracer("gemini-gateway")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()

	if !g.IsAvailable() {
		return "", ErrUnavailable
	}

	estimated := estimateTokens(msgs)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimated),
		attribute.Int("gemini.messages", len(msgs)),
		attribute.String("gemini.model", g.model),
	)

	if !g.tokenCounter.CanConsume(estimated, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", errors.New("rate limit exceeded: wait before retry")
	}
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		session, last := g.chatSession(msgs)
		resp, err := session.SendMessage(ctx, genai.Text(last))
		if err != nil {
			return nil, err
		}
		g.tokenCounter.RecordUsage(extractTokenUsage(resp), 1)
		return extractText(resp)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return "", ErrUnavailable
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	return result.(string), nil
}

// GenerateStream streams a completion, invoking onChunk for each text
// fragment in generation order. Production stops promptly when ctx is
// cancelled or onChunk returns an error. The full concatenated answer is
// returned once the stream has been consumed to completion.
func (g *Gateway) GenerateStream(ctx context.Context, msgs []Message, onChunk func(string) error) (string, error) {
	tracer := otel.Tracer("gemini-gateway")
	ctx, span := tracer.Start(ctx, "gemini.generate_stream")
	defer span.End()

	if !g.IsAvailable() {
		return "", ErrUnavailable
	}

	estimated := estimateTokens(msgs)
	if !g.tokenCounter.CanConsume(estimated, 1) {
		return "", errors.New("rate limit exceeded: wait before retry")
	}
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		session, last := g.chatSession(msgs)
		iter := session.SendMessageStream(ctx, genai.Text(last))

		full := ""
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			resp, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, err
			}
			g.tokenCounter.RecordUsage(extractTokenUsage(resp), 0)
			chunk, err := extractText(resp)
			if err != nil {
				continue
			}
			if chunk == "" {
				continue
			}
			full += chunk
			if err := onChunk(chunk); err != nil {
				return nil, err
			}
		}
		g.tokenCounter.RecordUsage(0, 1)
		return full, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return "", ErrUnavailable
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	return result.(string), nil
}

// chatSession maps role-tagged messages onto a Gemini chat session: system
// messages become the system instruction, prior turns become history, and
// the final user message is returned to send.
func (g *Gateway) chatSession(msgs []Message) (*genai.ChatSession, string) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(2048)

	var history []*genai.Content
	system := ""
	last := ""

	for i, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case models.RoleAssistant:
			history = append(history, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(m.Content)},
			})
		default:
			if i == len(msgs)-1 {
				last = m.Content
				continue
			}
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(m.Content)},
			})
		}
	}

	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	session := model.StartChat()
	session.History = history
	return session, last
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()

	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}
	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// Rough estimation: 1 token ≈ 4 characters for Gemini.
func estimateTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	estimated := total / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return 0
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	text := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	return text, nil
}

// Close the client
func (g *Gateway) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
