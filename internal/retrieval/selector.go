package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgallion1/pagetree/internal/index"
	"github.com/dgallion1/pagetree/internal/llm"
)

// ScoredNode is one selected node with its relevance in [0, 1].
type ScoredNode struct {
	NodeID string  `json:"node_id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// Selection is a strategy's verdict for one document. Nodes are in document
// order regardless of how the strategy visited them.
type Selection struct {
	Nodes     []ScoredNode
	Reasoning string
	Warnings  []string
}

// SelectionUnavailableError means the strategy could not produce any usable
// node for this document. The engine falls back to keyword matching.
type SelectionUnavailableError struct {
	DocID  string
	Reason string
}

func (e *SelectionUnavailableError) Error() string {
	if e.DocID == "" {
		return "selection unavailable: " + e.Reason
	}
	return fmt.Sprintf("selection unavailable for document %s: %s", e.DocID, e.Reason)
}

// Strategy picks relevant nodes from one document's index.
type Strategy interface {
	Name() string
	Select(ctx context.Context, q PlannedQuery, idx *index.DocumentIndex) (*Selection, error)
}

// OneShot asks the model once, with the whole node catalog in the prompt.
// It is the default strategy: cheapest, and sufficient while the catalog
// fits in context.
type OneShot struct {
	Call llm.CallFunc
}

func (s *OneShot) Name() string { return "one_shot" }

type selectResponse struct {
	Selected []struct {
		NodeID    string  `json:"node_id"`
		Relevance float64 `json:"relevance"`
		Reason    string  `json:"reason"`
	} `json:"selected"`
	Reasoning string `json:"reasoning"`
}

func (s *OneShot) Select(ctx context.Context, q PlannedQuery, idx *index.DocumentIndex) (*Selection, error) {
	prompt := fmt.Sprintf(selectPromptTmpl, q.Text, q.Intent, idx.DocName, idx.TotalPages, nodeCatalog(idx))
	resp, err := s.Call(ctx, prompt)
	if err != nil {
		return nil, &SelectionUnavailableError{DocID: idx.DocID, Reason: err.Error()}
	}
	parsed, err := llm.ExtractJSON[selectResponse](resp.Text)
	if err != nil {
		return nil, &SelectionUnavailableError{DocID: idx.DocID, Reason: err.Error()}
	}

	sel := &Selection{Reasoning: parsed.Reasoning}
	seen := make(map[string]bool)
	for _, cand := range parsed.Selected {
		if idx.NodeByID(cand.NodeID) == nil {
			sel.Warnings = append(sel.Warnings,
				fmt.Sprintf("model selected unknown node %q in document %s, dropped", cand.NodeID, idx.DocID))
			continue
		}
		if seen[cand.NodeID] {
			continue
		}
		seen[cand.NodeID] = true
		sel.Nodes = append(sel.Nodes, ScoredNode{
			NodeID: cand.NodeID,
			Score:  clampScore(cand.Relevance),
			Reason: cand.Reason,
		})
	}
	if len(sel.Nodes) == 0 {
		return nil, &SelectionUnavailableError{DocID: idx.DocID, Reason: "no valid nodes selected"}
	}
	sortDocumentOrder(sel.Nodes, idx)
	return sel, nil
}

// sortDocumentOrder orders selected nodes by their position in the index,
// which is start-page order by construction.
func sortDocumentOrder(nodes []ScoredNode, idx *index.DocumentIndex) {
	pos := make(map[string]int, len(idx.Nodes))
	for i, n := range idx.Nodes {
		pos[n.ID] = i
	}
	sort.SliceStable(nodes, func(i, j int) bool { return pos[nodes[i].NodeID] < pos[nodes[j].NodeID] })
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
