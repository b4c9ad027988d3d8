package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/pagetree/internal/corpus"
	"github.com/dgallion1/pagetree/internal/index"
	"github.com/dgallion1/pagetree/internal/llm"
)

// DocContext is one document's contribution to answer synthesis: its index,
// its page content, and the nodes selected for the query.
type DocContext struct {
	Index  *index.DocumentIndex
	Corpus *corpus.Corpus
	Nodes  []ScoredNode
}

// Citation points at one cited section.
type Citation struct {
	DocID     string `json:"doc_id"`
	NodeID    string `json:"node_id"`
	Title     string `json:"title"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

// Answer is the synthesized result with verified citations.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Warnings  []string   `json:"warnings,omitempty"`
}

type answerResponse struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

// Synthesize builds the answer prompt from the full page content of every
// selected node (never from summaries) and verifies the returned citations
// against the selected set. A citation to a section that was never offered
// is dropped and flagged rather than shown to the caller.
func Synthesize(ctx context.Context, call llm.CallFunc, q PlannedQuery, docs []DocContext) (*Answer, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to synthesize from")
	}

	offered := make(map[string]Citation)
	var sb strings.Builder
	for _, dc := range docs {
		fmt.Fprintf(&sb, "Document %s (%s):\n", dc.Index.DocID, dc.Index.DocName)
		for _, sn := range dc.Nodes {
			n := dc.Index.NodeByID(sn.NodeID)
			if n == nil {
				continue
			}
			ref := citationRef(dc.Index.DocID, n.ID)
			offered[ref] = Citation{
				DocID:     dc.Index.DocID,
				NodeID:    n.ID,
				Title:     n.Title,
				StartPage: n.StartPage,
				EndPage:   n.EndPage,
			}
			fmt.Fprintf(&sb, "\n--- Section [%s] %q (pages %d-%d) ---\n%s\n",
				ref, n.Title, n.StartPage, n.EndPage,
				dc.Corpus.PageText(n.StartPage, n.EndPage))
		}
	}
	if len(offered) == 0 {
		return nil, fmt.Errorf("no selected sections to synthesize from")
	}

	resp, err := call(ctx, fmt.Sprintf(answerPromptTmpl, q.Text, sb.String()))
	if err != nil {
		return nil, fmt.Errorf("answer synthesis: %w", err)
	}
	parsed, err := llm.ExtractJSON[answerResponse](resp.Text)
	if err != nil {
		return nil, fmt.Errorf("answer synthesis: %w", err)
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return nil, fmt.Errorf("answer synthesis: empty answer")
	}

	ans := &Answer{Text: strings.TrimSpace(parsed.Answer)}
	seen := make(map[string]bool)
	for _, raw := range parsed.Citations {
		ref := normalizeRef(raw, docs)
		c, ok := offered[ref]
		if !ok {
			ans.Warnings = append(ans.Warnings,
				fmt.Sprintf("hallucinated citation %q dropped: not among the sections provided", raw))
			continue
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		ans.Citations = append(ans.Citations, c)
	}
	return ans, nil
}

func citationRef(docID, nodeID string) string {
	return docID + "/" + nodeID
}

// normalizeRef maps a model citation back to doc/node form. A bare node id
// is accepted when only one document is in play.
func normalizeRef(raw string, docs []DocContext) string {
	raw = strings.TrimSpace(strings.Trim(raw, "[]"))
	if strings.Contains(raw, "/") {
		return raw
	}
	if len(docs) == 1 {
		return citationRef(docs[0].Index.DocID, raw)
	}
	return raw
}
