package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagetree/internal/index"
	"github.com/dgallion1/pagetree/internal/llm"
)

func testIndex() *index.DocumentIndex {
	return &index.DocumentIndex{
		DocID:      "plant-report",
		DocName:    "plant report",
		TotalPages: 10,
		Nodes: []index.Node{
			{ID: "0001", Title: "Overview", StartPage: 1, EndPage: 3, Summary: "General description of the treatment plant."},
			{ID: "0002", Title: "Pump Specifications", StartPage: 4, EndPage: 6, Summary: "Pump models and flow rates.", HasTables: true, TableCount: 2, KeyMetrics: []string{"flow 120 L/s"}},
			{ID: "0003", Title: "Cost Analysis", StartPage: 7, EndPage: 10, Summary: "Capital and operating costs."},
		},
	}
}

func staticCall(text string) llm.CallFunc {
	return func(ctx context.Context, prompt string) (*llm.Response, error) {
		return &llm.Response{Text: text}, nil
	}
}

func TestOneShot_SelectsInDocumentOrder(t *testing.T) {
	// The model returns nodes out of order; selection is in document order.
	s := &OneShot{Call: staticCall(`{
		"selected": [
			{"node_id": "0003", "relevance": 0.7, "reason": "costs"},
			{"node_id": "0001", "relevance": 0.9, "reason": "overview"}
		],
		"reasoning": "both sections relate to the question"
	}`)}

	sel, err := s.Select(context.Background(), PlannedQuery{Text: "q"}, testIndex())
	require.NoError(t, err)
	require.Len(t, sel.Nodes, 2)
	assert.Equal(t, "0001", sel.Nodes[0].NodeID)
	assert.Equal(t, "0003", sel.Nodes[1].NodeID)
	assert.Equal(t, 0.9, sel.Nodes[0].Score)
	assert.NotEmpty(t, sel.Reasoning)
}

func TestOneShot_DropsUnknownNodes(t *testing.T) {
	s := &OneShot{Call: staticCall(`{
		"selected": [
			{"node_id": "0002", "relevance": 0.8},
			{"node_id": "9999", "relevance": 0.9}
		]
	}`)}

	sel, err := s.Select(context.Background(), PlannedQuery{Text: "q"}, testIndex())
	require.NoError(t, err)
	require.Len(t, sel.Nodes, 1)
	assert.Equal(t, "0002", sel.Nodes[0].NodeID)
	require.Len(t, sel.Warnings, 1)
	assert.Contains(t, sel.Warnings[0], "9999")
}

func TestOneShot_AllUnknownIsUnavailable(t *testing.T) {
	s := &OneShot{Call: staticCall(`{"selected": [{"node_id": "bogus", "relevance": 1.0}]}`)}

	_, err := s.Select(context.Background(), PlannedQuery{Text: "q"}, testIndex())
	var unavailable *SelectionUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "plant-report", unavailable.DocID)
}

func TestOneShot_CallFailureIsUnavailable(t *testing.T) {
	s := &OneShot{Call: func(ctx context.Context, prompt string) (*llm.Response, error) {
		return nil, errors.New("model down")
	}}

	_, err := s.Select(context.Background(), PlannedQuery{Text: "q"}, testIndex())
	var unavailable *SelectionUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestOneShot_ClampsScores(t *testing.T) {
	s := &OneShot{Call: staticCall(`{"selected": [{"node_id": "0001", "relevance": 3.5}]}`)}

	sel, err := s.Select(context.Background(), PlannedQuery{Text: "q"}, testIndex())
	require.NoError(t, err)
	assert.Equal(t, 1.0, sel.Nodes[0].Score)
}

func TestKeywordFallback_MatchesTitleAndSummary(t *testing.T) {
	q := PlannedQuery{Text: "pump flow rates", Keywords: []string{"pump", "flow"}}
	sel := KeywordFallback(q, testIndex(), 3)
	require.NotNil(t, sel)
	require.NotEmpty(t, sel.Nodes)
	assert.Equal(t, "0002", sel.Nodes[0].NodeID)
}

func TestKeywordFallback_NoMatchReturnsNil(t *testing.T) {
	q := PlannedQuery{Text: "zebra migration", Keywords: []string{"zebra", "migration"}}
	assert.Nil(t, KeywordFallback(q, testIndex(), 3))
}

func TestKeywordFallback_TablePreference(t *testing.T) {
	q := PlannedQuery{
		Text:        "cost figures",
		Keywords:    []string{"costs"},
		NeedsTables: true,
	}
	sel := KeywordFallback(q, testIndex(), 3)
	require.NotNil(t, sel)
	// "costs" matches 0003; the table bonus alone never invents a match.
	assert.Equal(t, "0003", sel.Nodes[0].NodeID)
}
