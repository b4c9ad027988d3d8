package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagetree/internal/corpus"
	"github.com/dgallion1/pagetree/internal/index"
	"github.com/dgallion1/pagetree/internal/llm"
	"github.com/dgallion1/pagetree/internal/store"
)

type memStore struct {
	indexes map[string]*index.DocumentIndex
	corpora map[string]*corpus.Corpus
}

func (m *memStore) LoadIndex(docID string) (*index.DocumentIndex, error) {
	idx, ok := m.indexes[docID]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", docID, store.ErrNotFound)
	}
	return idx, nil
}

func (m *memStore) LoadCorpus(docID string) (*corpus.Corpus, error) {
	c, ok := m.corpora[docID]
	if !ok {
		return nil, fmt.Errorf("corpus %s: %w", docID, store.ErrNotFound)
	}
	return c, nil
}

func budgetIndex() *index.DocumentIndex {
	return &index.DocumentIndex{
		DocID:      "budget-report",
		DocName:    "budget report",
		TotalPages: 4,
		Nodes: []index.Node{
			{ID: "0001", Title: "Budget Summary", StartPage: 1, EndPage: 2, Summary: "Annual budget totals."},
			{ID: "0002", Title: "Line Items", StartPage: 3, EndPage: 4, Summary: "Spending by department."},
		},
	}
}

func budgetCorpus() *corpus.Corpus {
	c := &corpus.Corpus{DocName: "budget report"}
	for p := 1; p <= 4; p++ {
		c.Records = append(c.Records, corpus.PageRecord{Page: p, Kind: corpus.KindText, Content: "Budget page."})
	}
	return c
}

func engineStore() *memStore {
	return &memStore{
		indexes: map[string]*index.DocumentIndex{
			"plant-report":  testIndex(),
			"budget-report": budgetIndex(),
		},
		corpora: map[string]*corpus.Corpus{
			"plant-report":  testCorpus(),
			"budget-report": budgetCorpus(),
		},
	}
}

// routeProvider dispatches on the prompt kind so one fake model can serve
// planning, selection, and synthesis in a single query.
type routeProvider struct {
	selectFor func(docID string) string
	answer    string
}

func (p *routeProvider) Model() string { return "route" }

func (p *routeProvider) Invoke(ctx context.Context, prompt string) (*llm.Response, error) {
	switch {
	case strings.HasPrefix(prompt, "Classify the information need"):
		return &llm.Response{Text: `{"intent": "numeric_fact", "keywords": ["pump", "flow"]}`}, nil
	case strings.HasPrefix(prompt, "You are selecting sections"):
		names := map[string]string{"plant report": "plant-report", "budget report": "budget-report"}
		for name, docID := range names {
			if strings.Contains(prompt, "Document: "+name) {
				return &llm.Response{Text: p.selectFor(docID)}, nil
			}
		}
		return nil, fmt.Errorf("selection prompt for unknown document")
	case strings.HasPrefix(prompt, "Answer the query"):
		return &llm.Response{Text: p.answer}, nil
	default:
		return nil, fmt.Errorf("unexpected prompt: %.60s", prompt)
	}
}

func routeRegistry(t *testing.T, p llm.Provider) *llm.Registry {
	t.Helper()
	reg, err := llm.NewStaticRegistry(
		[]llm.ModelConfig{{ID: "route", Name: "route", Timeout: time.Minute}},
		map[string]llm.Provider{"route": p},
	)
	require.NoError(t, err)
	return reg
}

func TestEngine_QueryRanksAndSynthesizes(t *testing.T) {
	p := &routeProvider{
		selectFor: func(docID string) string {
			if docID == "budget-report" {
				return `{"selected": [{"node_id": "0001", "relevance": 0.9}], "reasoning": "totals"}`
			}
			return `{"selected": [{"node_id": "0002", "relevance": 0.4}], "reasoning": "pumps"}`
		},
		answer: `{"answer": "Total budget is 4.2M.", "citations": ["budget-report/0001"]}`,
	}
	e := NewEngine(engineStore(), routeRegistry(t, p), discardLog(), 1)

	res, err := e.Query(context.Background(), Request{
		Query:  "what is the total budget?",
		DocIDs: []string{"plant-report", "budget-report"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Total budget is 4.2M.", res.Answer)
	assert.Equal(t, IntentNumericFact, res.Intent)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, "budget-report", res.Citations[0].DocID)
	assert.Equal(t, "Budget Summary", res.Citations[0].Title)

	// Stronger selection ranks first.
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "budget-report", res.Documents[0].DocID)
	assert.Equal(t, "plant-report", res.Documents[1].DocID)
	assert.Greater(t, res.Documents[0].Score, res.Documents[1].Score)
}

func TestEngine_FallbackAndExclusion(t *testing.T) {
	// Selection output is unusable for every document. The plant report
	// still matches the planned keywords, the budget report does not.
	p := &routeProvider{
		selectFor: func(string) string { return "no selection from me" },
		answer:    `{"answer": "Pumps deliver 120 L/s.", "citations": ["plant-report/0002"]}`,
	}
	e := NewEngine(engineStore(), routeRegistry(t, p), discardLog(), 1)

	res, err := e.Query(context.Background(), Request{
		Query:  "pump flow?",
		DocIDs: []string{"plant-report", "budget-report"},
	})
	require.NoError(t, err)

	byID := map[string]DocResult{}
	for _, d := range res.Documents {
		byID[d.DocID] = d
	}
	assert.True(t, byID["plant-report"].UsedFallback)
	assert.False(t, byID["plant-report"].SelectionFailed)
	assert.True(t, byID["budget-report"].SelectionFailed)
	assert.Equal(t, 0.0, byID["budget-report"].Score)

	require.Len(t, res.Citations, 1)
	assert.Equal(t, "0002", res.Citations[0].NodeID)
	assert.NotEmpty(t, res.Warnings)
}

func TestEngine_NoUsableSelection(t *testing.T) {
	p := &routeProvider{selectFor: func(string) string { return "garbage" }}
	e := NewEngine(engineStore(), routeRegistry(t, p), discardLog(), 1)

	// Keywords match nothing in the budget report, so fallback fails too.
	_, err := e.Query(context.Background(), Request{
		Query:  "pump flow?",
		DocIDs: []string{"budget-report"},
	})
	var unavailable *SelectionUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestEngine_UnknownDocument(t *testing.T) {
	e := NewEngine(engineStore(), routeRegistry(t, &routeProvider{}), discardLog(), 1)

	_, err := e.Query(context.Background(), Request{Query: "q", DocIDs: []string{"nope"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEngine_RequestValidation(t *testing.T) {
	e := NewEngine(engineStore(), routeRegistry(t, &routeProvider{}), discardLog(), 1)

	_, err := e.Query(context.Background(), Request{DocIDs: []string{"plant-report"}})
	assert.Error(t, err)

	_, err = e.Query(context.Background(), Request{Query: "q"})
	assert.Error(t, err)

	_, err = e.Query(context.Background(), Request{Query: "q", DocIDs: []string{"plant-report"}, Strategy: "psychic"})
	assert.Error(t, err)
}
