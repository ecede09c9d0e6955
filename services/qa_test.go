package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/ai"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

type stubGateway struct {
	available   bool
	answer      string
	chunks      []string
	generateErr error
	streamErr   error
	hang        bool // block after emitting chunks until ctx is cancelled

	// prompts seen by Generate, in call order
	prompts [][]ai.Message
}

func (g *stubGateway) IsAvailable() bool { return g.available }

func (g *stubGateway) Generate(ctx context.Context, msgs []ai.Message) (string, error) {
	g.prompts = append(g.prompts, msgs)
	if g.generateErr != nil {
		return "", g.generateErr
	}
	return g.answer, nil
}

func (g *stubGateway) GenerateStream(ctx context.Context, msgs []ai.Message, onChunk func(string) error) (string, error) {
	g.prompts = append(g.prompts, msgs)
	if g.streamErr != nil {
		return "", g.streamErr
	}
	full := ""
	for _, chunk := range g.chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := onChunk(chunk); err != nil {
			return "", err
		}
		full += chunk
	}
	if g.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return full, nil
}

type stubRetriever struct {
	papers []models.RetrievedPaper
	err    error
	gotK   int
	gotQ   string
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievedPaper, error) {
	r.gotQ = query
	r.gotK = topK
	if r.err != nil {
		return nil, r.err
	}
	papers := r.papers
	if len(papers) > topK {
		papers = papers[:topK]
	}
	return papers, nil
}

func retrievedPapers(n int) []models.RetrievedPaper {
	papers := make([]models.RetrievedPaper, n)
	for i := range papers {
		papers[i] = models.RetrievedPaper{
			PaperID: string(rune('a' + i)),
			Title:   "Paper " + string(rune('A'+i)),
			Text:    "Abstract text.",
			Score:   1.0 - float64(i)*0.1,
		}
	}
	return papers
}

func boolPtr(b bool) *bool { return &b }

func newAnswerService(gw *stubGateway, r *stubRetriever) *AnswerService {
	return NewAnswerService(gw, r, NewConversationManager(20), 5, 6, 3)
}

func TestAnswerBasic(t *testing.T) {
	gw := &stubGateway{available: true, answer: "Grounded answer [1]."}
	r := &stubRetriever{papers: retrievedPapers(3)}
	svc := newAnswerService(gw, r)

	result, err := svc.Answer(context.Background(), models.AnswerRequest{
		Question:      "What is attention?",
		TopK:          3,
		EnableRewrite: boolPtr(false),
		EnableRerank:  boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if result.Answer != "Grounded answer [1]." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if len(result.Sources) != 3 {
		t.Errorf("expected 3 sources, got %d", len(result.Sources))
	}
	if result.ConversationID == "" {
		t.Error("expected a conversation id to be assigned")
	}
	if r.gotK != 3 {
		t.Errorf("expected retrieval of 3 candidates without rerank, got %d", r.gotK)
	}
}

func TestAnswerSourcesBoundedByTopK(t *testing.T) {
	gw := &stubGateway{available: true, answer: "ok"}
	r := &stubRetriever{papers: retrievedPapers(9)}
	svc := newAnswerService(gw, r)

	result, err := svc.Answer(context.Background(), models.AnswerRequest{
		Question:     "q",
		TopK:         2,
		EnableRerank: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(result.Sources) > 2 {
		t.Errorf("sources must not exceed topK: got %d", len(result.Sources))
	}
}

func TestAnswerRerankWidensRetrieval(t *testing.T) {
	gw := &stubGateway{available: true, answer: "3,1,2"}
	r := &stubRetriever{papers: retrievedPapers(6)}
	svc := newAnswerService(gw, r)

	result, err := svc.Answer(context.Background(), models.AnswerRequest{
		Question:      "q",
		TopK:          2,
		EnableRewrite: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if r.gotK != 6 {
		t.Errorf("expected candidateK=3*topK=6, got %d", r.gotK)
	}
	// Rerank response "3,1,2" puts candidate index 2 first.
	if result.Sources[0].ID != "c" {
		t.Errorf("expected reranked first source c, got %q", result.Sources[0].ID)
	}
	if len(result.Sources) != 2 {
		t.Errorf("expected 2 sources after rerank, got %d", len(result.Sources))
	}
}

func TestAnswerRerankInvalidFallsBackToSimilarity(t *testing.T) {
	gw := &stubGateway{available: true, answer: "not an ordering"}
	r := &stubRetriever{papers: retrievedPapers(6)}
	svc := newAnswerService(gw, r)

	result, err := svc.Answer(context.Background(), models.AnswerRequest{
		Question:      "q",
		TopK:          2,
		EnableRewrite: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if result.Sources[0].ID != "a" || result.Sources[1].ID != "b" {
		t.Errorf("expected similarity order fallback, got %q, %q", result.Sources[0].ID, result.Sources[1].ID)
	}
}

func TestAnswerZeroCandidates(t *testing.T) {
	gw := &stubGateway{available: true}
	r := &stubRetriever{}
	svc := newAnswerService(gw, r)

	result, err := svc.Answer(context.Background(), models.AnswerRequest{
		Question:      "q",
		EnableRewrite: boolPtr(false),
		EnableRerank:  boolPtr(false),
	})
	if err != nil {
		t.Fatalf("zero candidates must not be an error: %v", err)
	}
	if result.Answer != noContextAnswer {
		t.Errorf("expected no-context answer, got %q", result.Answer)
	}
	if len(result.Sources) != 0 {
		t.Errorf("expected empty sources, got %d", len(result.Sources))
	}

	// The turn is still recorded.
	msgs, err := svc.conversations.Get(result.ConversationID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected recorded turn of 2 messages, got %d", len(msgs))
	}
}

func TestAnswerUnknownConversation(t *testing.T) {
	svc := newAnswerService(&stubGateway{available: true}, &stubRetriever{})

	_, err := svc.Answer(context.Background(), models.AnswerRequest{
		Question:       "q",
		ConversationID: "nope",
	})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestAnswerGatewayUnavailable(t *testing.T) {
	svc := newAnswerService(&stubGateway{available: false}, &stubRetriever{})

	_, err := svc.Answer(context.Background(), models.AnswerRequest{Question: "q"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	gw := &stubGateway{available: true, generateErr: errors.New("model exploded")}
	r := &stubRetriever{papers: retrievedPapers(2)}
	svc := newAnswerService(gw, r)

	_, err := svc.Answer(context.Background(), models.AnswerRequest{
		Question:      "q",
		EnableRewrite: boolPtr(false),
		EnableRerank:  boolPtr(false),
	})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestAnswerRewriteUsesHistory(t *testing.T) {
	gw := &stubGateway{available: true, answer: "rewritten query"}
	r := &stubRetriever{papers: retrievedPapers(1)}
	svc := newAnswerService(gw, r)

	convID := svc.conversations.Create()
	svc.conversations.Append(convID, models.RoleUser, "Tell me about transformers")
	svc.conversations.Append(convID, models.RoleAssistant, "Transformers are...")

	_, err := svc.Answer(context.Background(), models.AnswerRequest{
		Question:       "What about their training cost?",
		ConversationID: convID,
		EnableRerank:   boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	// First Generate call is the rewrite; its system prompt carries history.
	if len(gw.prompts) < 2 {
		t.Fatalf("expected rewrite plus generation calls, got %d", len(gw.prompts))
	}
	rewritePrompt := gw.prompts[0][0].Content
	if !strings.Contains(rewritePrompt, "Tell me about transformers") {
		t.Error("rewrite prompt should include prior conversation turns")
	}
	if r.gotQ != "rewritten query" {
		t.Errorf("retrieval should use the rewritten query, got %q", r.gotQ)
	}
}

func TestAnswerRewriteFailureFallsBack(t *testing.T) {
	gw := &stubGateway{available: true, generateErr: errors.New("rewrite down")}
	r := &stubRetriever{}
	svc := newAnswerService(gw, r)

	convID := svc.conversations.Create()
	svc.conversations.Append(convID, models.RoleUser, "earlier")

	// Zero candidates keeps the pipeline off the failing generate path
	// after the rewrite attempt.
	result, err := svc.Answer(context.Background(), models.AnswerRequest{
		Question:       "the question",
		ConversationID: convID,
		EnableRerank:   boolPtr(false),
	})
	if err != nil {
		t.Fatalf("rewrite failure must be absorbed: %v", err)
	}
	if r.gotQ != "the question" {
		t.Errorf("expected fallback to the raw question, got %q", r.gotQ)
	}
	if result.Answer != noContextAnswer {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
}

func TestAnswerStreamMatchesWholeAnswer(t *testing.T) {
	chunks := []string{"The ", "grounded ", "answer."}
	gw := &stubGateway{available: true, chunks: chunks}
	r := &stubRetriever{papers: retrievedPapers(2)}
	svc := newAnswerService(gw, r)

	events := svc.AnswerStream(context.Background(), models.AnswerRequest{
		Question:      "q",
		TopK:          2,
		EnableRewrite: boolPtr(false),
		EnableRerank:  boolPtr(false),
	})

	full := ""
	var sources []models.Citation
	convID := ""
	for ev := range events {
		switch ev.Type {
		case models.StreamEventAnswer:
			full += ev.Content.(string)
		case models.StreamEventSources:
			sources = ev.Content.([]models.Citation)
			convID = ev.ConversationID
		case models.StreamEventError:
			t.Fatalf("unexpected error event: %v", ev.Content)
		}
	}

	if full != "The grounded answer." {
		t.Errorf("concatenated stream does not match answer: %q", full)
	}
	if len(sources) != 2 {
		t.Errorf("expected 2 sources in terminal event, got %d", len(sources))
	}
	if convID == "" {
		t.Error("terminal sources event should carry the conversation id")
	}

	// Completed stream records the turn.
	msgs, err := svc.conversations.Get(convID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "The grounded answer." {
		t.Errorf("expected recorded turn with full answer, got %+v", msgs)
	}
}

func TestAnswerStreamCancelledNotRecorded(t *testing.T) {
	gw := &stubGateway{available: true, chunks: []string{"chunk1"}, hang: true}
	r := &stubRetriever{papers: retrievedPapers(1)}
	svc := newAnswerService(gw, r)

	convID := svc.conversations.Create()

	ctx, cancel := context.WithCancel(context.Background())
	events := svc.AnswerStream(ctx, models.AnswerRequest{
		Question:       "q",
		ConversationID: convID,
		EnableRewrite:  boolPtr(false),
		EnableRerank:   boolPtr(false),
	})

	// Read one chunk then walk away.
	<-events
	cancel()
	for range events {
	}

	// Give the producer goroutine a moment to finish.
	time.Sleep(50 * time.Millisecond)

	msgs, err := svc.conversations.Get(convID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("cancelled stream must not record the turn, got %d messages", len(msgs))
	}
}

func TestAnswerStreamZeroCandidates(t *testing.T) {
	gw := &stubGateway{available: true}
	r := &stubRetriever{}
	svc := newAnswerService(gw, r)

	events := svc.AnswerStream(context.Background(), models.AnswerRequest{
		Question:      "q",
		EnableRewrite: boolPtr(false),
		EnableRerank:  boolPtr(false),
	})

	var got []models.StreamEvent
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected answer + sources events, got %d", len(got))
	}
	if got[0].Type != models.StreamEventAnswer || got[0].Content.(string) != noContextAnswer {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if got[1].Type != models.StreamEventSources {
		t.Errorf("expected terminal sources event, got %+v", got[1])
	}
}

func TestAnswerStreamUnavailable(t *testing.T) {
	svc := newAnswerService(&stubGateway{available: false}, &stubRetriever{})

	events := svc.AnswerStream(context.Background(), models.AnswerRequest{Question: "q"})

	ev, ok := <-events
	if !ok || ev.Type != models.StreamEventError {
		t.Fatalf("expected error event, got %+v (ok=%v)", ev, ok)
	}
}

func TestParseRerankOrder(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want []int
	}{
		{"2,5,1,3,4", 5, []int{1, 4, 0, 2, 3}},
		{" 1 , 2 ", 3, []int{0, 1}},
		{"1,1,2", 3, []int{0, 1}},
		{"0,7", 3, nil},
		{"nonsense", 3, nil},
		{"", 3, nil},
	}

	for _, tt := range tests {
		got := parseRerankOrder(tt.in, tt.n)
		if len(got) != len(tt.want) {
			t.Errorf("parseRerankOrder(%q): got %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseRerankOrder(%q): got %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}
