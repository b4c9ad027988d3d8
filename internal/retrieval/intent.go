package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/pagetree/internal/llm"
)

// Intent labels what kind of answer the query needs. The label steers
// strategy choice and prompt emphasis but never gates retrieval: a wrong
// classification degrades ranking, not correctness.
type Intent string

const (
	IntentNumericFact Intent = "numeric_fact"
	IntentTableLookup Intent = "table_lookup"
	IntentNarrative   Intent = "narrative"
)

// PlannedQuery is the query plus its advisory classification.
type PlannedQuery struct {
	Text        string
	Intent      Intent
	Keywords    []string
	NeedsTables bool
}

type intentResponse struct {
	Intent      string   `json:"intent"`
	Keywords    []string `json:"keywords"`
	NeedsTables bool     `json:"needs_tables"`
}

// PlanQuery classifies the query with one model call. On any failure it
// falls back to a keyword split with the narrative intent, so query
// planning can never make retrieval unavailable.
func PlanQuery(ctx context.Context, call llm.CallFunc, query string, log *slog.Logger) PlannedQuery {
	planned := PlannedQuery{
		Text:     query,
		Intent:   IntentNarrative,
		Keywords: fallbackKeywords(query),
	}

	resp, err := call(ctx, fmt.Sprintf(intentPromptTmpl, query))
	if err != nil {
		log.Warn("query planning call failed, using fallback intent", "error", err)
		return planned
	}
	parsed, err := llm.ExtractJSON[intentResponse](resp.Text)
	if err != nil {
		log.Warn("query planning response rejected, using fallback intent", "error", err)
		return planned
	}

	switch Intent(parsed.Intent) {
	case IntentNumericFact, IntentTableLookup, IntentNarrative:
		planned.Intent = Intent(parsed.Intent)
	}
	if len(parsed.Keywords) > 0 {
		planned.Keywords = parsed.Keywords
	}
	planned.NeedsTables = parsed.NeedsTables || planned.Intent == IntentTableLookup
	return planned
}

// fallbackKeywords extracts lowercase terms of 3+ characters.
func fallbackKeywords(query string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:?!\"'()")
		if len(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}
