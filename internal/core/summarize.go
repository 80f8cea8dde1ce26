package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"triageroom/internal/llm"
	"triageroom/pkg"
)

// ErrSummaryUnavailable indicates the intake summary could not be generated.
// It is non-fatal: the session proceeds with the summary left empty and the
// attempt may be retried later.
var ErrSummaryUnavailable = errors.New("summary unavailable")

// DefaultSummaryModels is the tiered fallback chain tried in order.  The
// chain is configurable so newer models can be preferred without a rebuild.
var DefaultSummaryModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"}

// Summarizer turns intake answers into a short nurse-facing note.  Each
// model in the chain is attempted in order; the first success wins.
type Summarizer struct {
	LLM    llm.Client
	Models []string
}

// NewSummarizer constructs a summariser over the given client.  An empty
// model list falls back to DefaultSummaryModels.
func NewSummarizer(client llm.Client, models []string) *Summarizer {
	if len(models) == 0 {
		models = DefaultSummaryModels
	}
	return &Summarizer{LLM: client, Models: models}
}

// Summarize compiles the question/answer pairs into a prompt and walks the
// model chain.  When every model fails it returns ErrSummaryUnavailable
// wrapped with the last failure; the caller degrades gracefully.
func (s *Summarizer) Summarize(ctx context.Context, answers []pkg.IntakeAnswer) (string, error) {
	var b strings.Builder
	b.WriteString("Please summarize these patient answers:\n\n")
	for _, a := range answers {
		fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n", a.Question, a.Answer)
	}
	prompt := b.String()

	var lastErr error
	for _, model := range s.Models {
		text, err := s.LLM.Complete(ctx, model, SummaryInstruction, prompt)
		if err != nil {
			log.Printf("summarize: model %s failed: %v", model, err)
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: %v", ErrSummaryUnavailable, lastErr)
}
