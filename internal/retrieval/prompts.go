// Package retrieval answers questions over built document indexes: a query
// is classified, relevant nodes are selected per document by a pluggable
// strategy, documents are ranked by aggregated node scores, and an answer
// is synthesized from the selected pages with verified citations.
package retrieval

import (
	"fmt"
	"strings"

	"github.com/dgallion1/pagetree/internal/index"
)

const intentPromptTmpl = `Classify the information need of this query against a document collection.

Query: %s

Return ONLY a JSON object:
{
  "intent": "one of: numeric_fact, table_lookup, narrative",
  "keywords": ["2-6 search terms drawn from or implied by the query"],
  "needs_tables": false
}`

const selectPromptTmpl = `You are selecting sections of a document that can answer a query.

Query: %s
Query intent: %s

Document: %s (%d pages)
Sections:
%s

Select the sections most likely to contain the answer. Prefer few, precise
sections; include a section with tables when the query asks for figures.

Return ONLY a JSON object:
{
  "selected": [
    {"node_id": "0001", "relevance": 0.95, "reason": "why this section matters"}
  ],
  "reasoning": "one or two sentences on the overall selection"
}
relevance is between 0 and 1. Use only node_id values from the list above.`

const scorePromptTmpl = `Rate how likely this document section is to answer the query.

Query: %s

Section %s: %s (pages %d-%d)
Summary: %s

Return ONLY a JSON object: {"score": 0.0} with score between 0 and 1.`

const answerPromptTmpl = `Answer the query using ONLY the document content below.

Query: %s

%s

Rules:
- Base every statement on the provided content; if the content is not
  sufficient, say what is missing instead of guessing.
- Cite the sections you used by their id.

Return ONLY a JSON object:
{
  "answer": "the answer, with concrete figures where available",
  "citations": ["0001", "0003"]
}`

// nodeCatalog renders the section list for the selection prompt.
func nodeCatalog(idx *index.DocumentIndex) string {
	var sb strings.Builder
	for _, n := range idx.Nodes {
		fmt.Fprintf(&sb, "[%s] %q pages %d-%d", n.ID, n.Title, n.StartPage, n.EndPage)
		if n.HasTables {
			fmt.Fprintf(&sb, " (%d tables)", n.TableCount)
		}
		fmt.Fprintf(&sb, "\n  %s\n", n.Summary)
		if len(n.KeyMetrics) > 0 {
			fmt.Fprintf(&sb, "  metrics: %s\n", strings.Join(n.KeyMetrics, "; "))
		}
	}
	return sb.String()
}
