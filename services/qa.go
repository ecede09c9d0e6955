package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/ai"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// Answer returned when retrieval yields nothing. The turn is still
// recorded so the conversation reflects what the user saw.
const noContextAnswer = "I could not find any relevant papers for this question. " +
	"Try rephrasing it, or add papers on the topic first."

const maxCandidateText = 200

// Generator is the language model surface the answer pipeline needs.
type Generator interface {
	IsAvailable() bool
	Generate(ctx context.Context, msgs []ai.Message) (string, error)
	GenerateStream(ctx context.Context, msgs []ai.Message, onChunk func(string) error) (string, error)
}

// Retriever finds the papers most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievedPaper, error)
}

// AnswerService runs the retrieval-augmented answer pipeline: optional
// query rewrite, vector retrieval, optional rerank, grounded generation,
// and conversation recording.
type AnswerService struct {
	gateway         Generator
	retriever       Retriever
	conversations   *ConversationManager
	defaultTopK     int
	contextMessages int
	rerankMult      int
}

func NewAnswerService(gateway Generator, retriever Retriever, conversations *ConversationManager, defaultTopK, contextMessages, rerankMult int) *AnswerService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if contextMessages <= 0 {
		contextMessages = 6
	}
	if rerankMult <= 1 {
		rerankMult = 3
	}
	return &AnswerService{
		gateway:         gateway,
		retriever:       retriever,
		conversations:   conversations,
		defaultTopK:     defaultTopK,
		contextMessages: contextMessages,
		rerankMult:      rerankMult,
	}
}

// Answer produces a whole grounded answer for the request.
func (s *AnswerService) Answer(ctx context.Context, req models.AnswerRequest) (*models.AnswerResult, error) {
	if !s.gateway.IsAvailable() {
		return nil, ErrUpstreamUnavailable
	}

	convID, err := s.resolveConversation(req.ConversationID)
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	papers, err := s.retrieveCandidates(ctx, req, convID, topK)
	if err != nil {
		return nil, err
	}

	if len(papers) == 0 {
		s.recordTurn(convID, req.Question, noContextAnswer)
		return &models.AnswerResult{
			Answer:         noContextAnswer,
			Sources:        []models.Citation{},
			ConversationID: convID,
		}, nil
	}

	msgs, err := s.buildPrompt(convID, req.Question, papers)
	if err != nil {
		return nil, err
	}

	answer, err := s.gateway.Generate(ctx, msgs)
	if err != nil {
		return nil, s.mapGenerateError(err)
	}

	s.recordTurn(convID, req.Question, answer)

	return &models.AnswerResult{
		Answer:         answer,
		Sources:        citations(papers),
		ConversationID: convID,
	}, nil
}

// AnswerStream produces the answer as a stream of events: zero or more
// "answer" fragments, then one terminal "sources" event. The channel is
// closed when the stream ends. Cancelling ctx stops production; a cancelled
// stream is not recorded in the conversation.
func (s *AnswerService) AnswerStream(ctx context.Context, req models.AnswerRequest) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent, 16)

	go func() {
		defer close(out)

		emit := func(ev models.StreamEvent) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- ev:
				return true
			}
		}
		fail := func(msg string) {
			emit(models.StreamEvent{Type: models.StreamEventError, Content: msg})
		}

		if !s.gateway.IsAvailable() {
			fail(ErrUpstreamUnavailable.Error())
			return
		}

		convID, err := s.resolveConversation(req.ConversationID)
		if err != nil {
			fail(err.Error())
			return
		}

		topK := req.TopK
		if topK <= 0 {
			topK = s.defaultTopK
		}

		papers, err := s.retrieveCandidates(ctx, req, convID, topK)
		if err != nil {
			fail(err.Error())
			return
		}

		if len(papers) == 0 {
			if !emit(models.StreamEvent{Type: models.StreamEventAnswer, Content: noContextAnswer}) {
				return
			}
			if !emit(models.StreamEvent{Type: models.StreamEventSources, Content: []models.Citation{}, ConversationID: convID}) {
				return
			}
			s.recordTurn(convID, req.Question, noContextAnswer)
			return
		}

		msgs, err := s.buildPrompt(convID, req.Question, papers)
		if err != nil {
			fail(err.Error())
			return
		}

		full, err := s.gateway.GenerateStream(ctx, msgs, func(chunk string) error {
			if !emit(models.StreamEvent{Type: models.StreamEventAnswer, Content: chunk}) {
				return context.Canceled
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				// Consumer went away; do not record the partial turn.
				return
			}
			fail(s.mapGenerateError(err).Error())
			return
		}

		if !emit(models.StreamEvent{Type: models.StreamEventSources, Content: citations(papers), ConversationID: convID}) {
			return
		}
		s.recordTurn(convID, req.Question, full)
	}()

	return out
}

func (s *AnswerService) resolveConversation(id string) (string, error) {
	if id == "" {
		return s.conversations.Create(), nil
	}
	if !s.conversations.Exists(id) {
		return "", ErrConversationNotFound
	}
	return id, nil
}

// retrieveCandidates rewrites the query when enabled, retrieves a wider
// candidate set when reranking is on, and reranks down to topK.
func (s *AnswerService) retrieveCandidates(ctx context.Context, req models.AnswerRequest, convID string, topK int) ([]models.RetrievedPaper, error) {
	rewrite := req.EnableRewrite == nil || *req.EnableRewrite
	rerank := req.EnableRerank == nil || *req.EnableRerank

	query := req.Question
	if rewrite {
		query = s.rewriteQuery(ctx, req.Question, convID)
	}

	candidateK := topK
	if rerank {
		candidateK = topK * s.rerankMult
	}

	papers, err := s.retriever.Retrieve(ctx, query, candidateK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if rerank && len(papers) > topK {
		papers = s.rerank(ctx, req.Question, papers, topK)
	} else if len(papers) > topK {
		papers = papers[:topK]
	}

	return papers, nil
}

// rewriteQuery asks the model for a retrieval-friendly reformulation of the
// question. Any failure falls back silently to the original question.
func (s *AnswerService) rewriteQuery(ctx context.Context, question, convID string) string {
	history, err := s.conversations.BuildContext(convID, 4)
	if err != nil || len(history) == 0 {
		return question
	}

	var b strings.Builder
	for _, msg := range history {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	system := "You rewrite search queries. Given the conversation history, rewrite the " +
		"user's latest question into a clearer, more specific query for searching an " +
		"academic paper database.\n\nConversation history:\n" + b.String() + "\n" +
		"Make the query specific, include the necessary context, keep it short, and " +
		"output only the rewritten query with no explanation."

	rewritten, err := s.gateway.Generate(ctx, []ai.Message{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: question},
	})
	if err != nil {
		logger.Debug("Query rewrite failed, using original question", "error", err)
		return question
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question
	}

	logger.Debug("Query rewritten", "original", question, "rewritten", rewritten)
	return rewritten
}

// rerank asks the model to order candidates by relevance. An invalid or
// failed response falls back to similarity order.
func (s *AnswerService) rerank(ctx context.Context, question string, candidates []models.RetrievedPaper, topK int) []models.RetrievedPaper {
	var b strings.Builder
	for i, paper := range candidates {
		text := paper.Text
		if len(text) > maxCandidateText {
			text = text[:maxCandidateText] + "..."
		}
		fmt.Fprintf(&b, "Paper %d:\nTitle: %s\nAbstract: %s\n\n", i+1, paper.Title, text)
	}

	system := fmt.Sprintf("You rank academic search results. Order the following papers by "+
		"relevance to the query, most relevant first.\n\nQuery: %s\n\nPapers:\n%s\n"+
		"Return only the paper numbers in order, comma separated, for example: 2,5,1,3,4. "+
		"No explanation.", question, b.String())

	response, err := s.gateway.Generate(ctx, []ai.Message{
		{Role: models.RoleSystem, Content: system},
	})
	if err != nil {
		logger.Debug("Rerank failed, keeping similarity order", "error", err)
		return candidates[:topK]
	}

	order := parseRerankOrder(response, len(candidates))
	if len(order) == 0 {
		logger.Debug("Rerank returned unparseable order, keeping similarity order", "response", response)
		return candidates[:topK]
	}

	reranked := make([]models.RetrievedPaper, 0, topK)
	for _, idx := range order {
		reranked = append(reranked, candidates[idx])
		if len(reranked) == topK {
			break
		}
	}
	// Model may return fewer indices than topK; pad from similarity order.
	if len(reranked) < topK {
		seen := make(map[int]bool, len(order))
		for _, idx := range order {
			seen[idx] = true
		}
		for i := range candidates {
			if len(reranked) == topK {
				break
			}
			if !seen[i] {
				reranked = append(reranked, candidates[i])
			}
		}
	}

	return reranked
}

// parseRerankOrder parses "2,5,1" into zero-based indices, dropping
// duplicates and out-of-range values.
func parseRerankOrder(response string, n int) []int {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil
	}

	seen := make(map[int]bool, n)
	order := make([]int, 0, n)
	for _, part := range strings.Split(response, ",") {
		num, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil
		}
		idx := num - 1
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		order = append(order, idx)
	}
	return order
}

// buildPrompt assembles the grounded generation messages: a restricting
// system instruction, recent conversation context, and the question with
// numbered paper excerpts.
func (s *AnswerService) buildPrompt(convID, question string, papers []models.RetrievedPaper) ([]ai.Message, error) {
	history, err := s.conversations.BuildContext(convID, s.contextMessages)
	if err != nil {
		return nil, err
	}

	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{
		Role: models.RoleSystem,
		Content: "You are a research assistant answering questions about academic papers. " +
			"Answer only from the paper excerpts supplied in the question. Cite papers by " +
			"their bracketed number, like [1]. If the excerpts do not contain the answer, " +
			"say so instead of guessing.",
	})

	for _, msg := range history {
		msgs = append(msgs, ai.Message{Role: msg.Role, Content: msg.Content})
	}

	var b strings.Builder
	b.WriteString("Answer the question using these paper excerpts.\n\n")
	for i, paper := range papers {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, paper.Title, paper.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)

	msgs = append(msgs, ai.Message{Role: models.RoleUser, Content: b.String()})
	return msgs, nil
}

func (s *AnswerService) mapGenerateError(err error) error {
	if errors.Is(err, ai.ErrUnavailable) {
		return ErrUpstreamUnavailable
	}
	return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
}

func (s *AnswerService) recordTurn(convID, question, answer string) {
	if err := s.conversations.Append(convID, models.RoleUser, question); err != nil {
		logger.Warn("Failed to record user turn", "conversation", convID, "error", err)
		return
	}
	if err := s.conversations.Append(convID, models.RoleAssistant, answer); err != nil {
		logger.Warn("Failed to record assistant turn", "conversation", convID, "error", err)
	}
}

func citations(papers []models.RetrievedPaper) []models.Citation {
	out := make([]models.Citation, len(papers))
	for i, paper := range papers {
		out[i] = models.Citation{ID: paper.PaperID, Title: paper.Title}
	}
	return out
}
