// Package extractive answers from the prompt's own context without a language model.
// It picks the context sentences that best cover the question.
package extractive

import (
	"context"
	"strings"
)

const (
	contextMarker  = "based only on the following context:"
	questionMarker = "based on the above context:"
)

// NoAnswer is returned when the prompt carries no usable context.
const NoAnswer = "I don't know: no relevant context was found."

type Completer struct {
	summarizer   *FrequencySummarizer
	maxSentences int
}

func New(maxSentences int) *Completer {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Completer{summarizer: NewFrequencySummarizer(), maxSentences: maxSentences}
}

func (c *Completer) Name() string { return "extractive" }

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	contextText, question := splitPrompt(prompt)
	contextText = strings.ReplaceAll(contextText, "\n---\n", "\n")
	if strings.TrimSpace(contextText) == "" {
		return NoAnswer, nil
	}
	return c.summarizer.Summarize(contextText, question, c.maxSentences), nil
}

// splitPrompt recovers context and question from prompts built with the default
// template. Other prompts are treated as context only.
func splitPrompt(prompt string) (contextText, question string) {
	start := strings.Index(prompt, contextMarker)
	end := strings.LastIndex(prompt, questionMarker)
	if start < 0 || end < 0 || end < start {
		return prompt, ""
	}
	body := prompt[start+len(contextMarker) : end]
	if cut := strings.LastIndex(body, "\n---\n"); cut >= 0 {
		body = body[:cut]
	}
	return strings.TrimSpace(body), strings.TrimSpace(prompt[end+len(questionMarker):])
}
