package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/ai"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// TranslationService translates paper abstracts and answers via the
// language model.
type TranslationService struct {
	gateway Generator
}

func NewTranslationService(gateway Generator) *TranslationService {
	return &TranslationService{gateway: gateway}
}

// Translate renders text into targetLang (default Chinese). Empty input
// translates to empty output without a gateway call.
func (s *TranslationService) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if !s.gateway.IsAvailable() {
		return "", ErrUpstreamUnavailable
	}
	if targetLang == "" {
		targetLang = "Chinese"
	}

	system := fmt.Sprintf("You are an academic translator. Translate the user's text into %s. "+
		"Preserve technical terms, keep the register formal, and output only the translation.",
		targetLang)

	translated, err := s.gateway.Generate(ctx, []ai.Message{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: text},
	})
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			return "", ErrUpstreamUnavailable
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return strings.TrimSpace(translated), nil
}
