package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redhat-performance/BugZooka/pkg/logx"
)

// DefaultContextBudget caps how many tokens of extracted error context get
// packed into a single prompt.
const DefaultContextBudget = 4000

// Analyzer drives the two-stage error analysis flow: an optional LLM filter
// pass that narrows a noisy error list to the top offenders, then a
// summarization pass over the result.
type Analyzer struct {
	client  Client
	counter *TokenCounter
	logger  *logx.Logger
	budget  int
}

// NewAnalyzer creates an analyzer on top of client. The counter sizes error
// lists against the prompt budget; pass nil to skip budgeting.
func NewAnalyzer(client Client, counter *TokenCounter, logger *logx.Logger) *Analyzer {
	return &Analyzer{
		client:  client,
		counter: counter,
		logger:  logger,
		budget:  DefaultContextBudget,
	}
}

// SummarizeErrors produces a plain-text summary of the most critical errors.
// When filterFirst is set, the list is first narrowed by an LLM filter pass
// that keeps the top five distinct failures; the first entry (the failing
// step header) always survives filtering.
func (a *Analyzer) SummarizeErrors(ctx context.Context, errorList []string, filterFirst bool) (string, error) {
	if len(errorList) == 0 {
		return "", fmt.Errorf("no errors to summarize")
	}

	current := errorList
	if filterFirst {
		filtered, err := a.filterErrors(ctx, errorList)
		if err != nil {
			return "", err
		}
		current = filtered
	}

	input := a.fitToBudget(current)
	resp, err := a.client.Complete(ctx, NewRequest(ErrorSummarizationPrompt.Render(input)))
	if err != nil {
		return "", fmt.Errorf("summarizing errors: %w", err)
	}
	a.logger.Debug("summarized %d error lines with %s", len(current), a.client.ModelName())
	return resp.Content, nil
}

// AnalyzeSummary asks for a structured root-cause breakdown of an error
// summary.
func (a *Analyzer) AnalyzeSummary(ctx context.Context, errorSummary string) (string, error) {
	resp, err := a.client.Complete(ctx, NewRequest(GenericAppPrompt.Render(errorSummary)))
	if err != nil {
		return "", fmt.Errorf("analyzing error summary: %w", err)
	}
	return resp.Content, nil
}

// filterErrors runs the top-5 filter pass. The reply should be a JSON list;
// replies that are not valid JSON are split on newlines instead so a chatty
// model still yields usable output.
func (a *Analyzer) filterErrors(ctx context.Context, errorList []string) ([]string, error) {
	stepHeader := errorList[0]
	input := a.fitToBudget(errorList)

	resp, err := a.client.Complete(ctx, NewRequest(ErrorFilterPrompt.Render(input)))
	if err != nil {
		return nil, fmt.Errorf("filtering errors: %w", err)
	}

	filtered := parseErrorList(resp.Content)
	if len(filtered) == 0 {
		a.logger.Warn("error filter returned nothing usable, keeping original list")
		return errorList, nil
	}
	return append([]string{stepHeader + "\n"}, filtered...), nil
}

func (a *Analyzer) fitToBudget(lines []string) string {
	if a.counter != nil {
		lines = a.counter.FitLines(lines, a.budget)
	}
	return strings.Join(lines, "\n")
}

// parseErrorList extracts entries from a filter reply: a JSON string list
// when the model followed instructions, newline-split text otherwise.
func parseErrorList(content string) []string {
	trimmed := strings.TrimSpace(content)
	if start := strings.Index(trimmed, "["); start != -1 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			var parsed []string
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &parsed); err == nil {
				return parsed
			}
		}
	}
	var out []string
	for _, line := range strings.Split(trimmed, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
