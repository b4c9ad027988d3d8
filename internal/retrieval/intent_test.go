package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dgallion1/pagetree/internal/llm"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlanQuery_UsesModelClassification(t *testing.T) {
	call := staticCall(`{"intent": "numeric_fact", "keywords": ["pump", "capacity"], "needs_tables": true}`)

	q := PlanQuery(context.Background(), call, "what is the pump capacity?", discardLog())
	assert.Equal(t, IntentNumericFact, q.Intent)
	assert.Equal(t, []string{"pump", "capacity"}, q.Keywords)
	assert.True(t, q.NeedsTables)
	assert.Equal(t, "what is the pump capacity?", q.Text)
}

func TestPlanQuery_TableLookupImpliesTables(t *testing.T) {
	call := staticCall(`{"intent": "table_lookup", "keywords": ["costs"]}`)

	q := PlanQuery(context.Background(), call, "cost table?", discardLog())
	assert.Equal(t, IntentTableLookup, q.Intent)
	assert.True(t, q.NeedsTables)
}

func TestPlanQuery_UnknownIntentLabelFallsBack(t *testing.T) {
	call := staticCall(`{"intent": "interpretive_dance", "keywords": ["pump"]}`)

	q := PlanQuery(context.Background(), call, "pump?", discardLog())
	assert.Equal(t, IntentNarrative, q.Intent)
	// Keywords from the response are still used.
	assert.Equal(t, []string{"pump"}, q.Keywords)
}

func TestPlanQuery_CallFailureFallsBack(t *testing.T) {
	call := func(ctx context.Context, prompt string) (*llm.Response, error) {
		return nil, errors.New("model down")
	}

	q := PlanQuery(context.Background(), call, "What are the Operating Costs?", discardLog())
	assert.Equal(t, IntentNarrative, q.Intent)
	assert.Equal(t, []string{"what", "are", "the", "operating", "costs"}, q.Keywords)
}

func TestPlanQuery_GarbageResponseFallsBack(t *testing.T) {
	call := staticCall(`I cannot classify this.`)

	q := PlanQuery(context.Background(), call, "total flow rate", discardLog())
	assert.Equal(t, IntentNarrative, q.Intent)
	assert.Equal(t, []string{"total", "flow", "rate"}, q.Keywords)
}

func TestFallbackKeywords(t *testing.T) {
	assert.Equal(t, []string{"pump", "capacity"}, fallbackKeywords("Pump capacity?"))
	// Short words are dropped, punctuation trimmed.
	assert.Equal(t, []string{"cost", "2024"}, fallbackKeywords(`of "cost" in 2024.`))
	assert.Nil(t, fallbackKeywords("a an of"))
}
