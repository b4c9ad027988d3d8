package retrieval

import (
	"sort"
	"strings"

	"github.com/dgallion1/pagetree/internal/index"
)

// keywordOverlap scores a node by the fraction of query keywords found in
// its title, summary, or key metrics. Result is in [0, 1].
func keywordOverlap(keywords []string, n *index.Node) float64 {
	if len(keywords) == 0 {
		return 0
	}
	haystack := strings.ToLower(n.Title + " " + n.Summary + " " + strings.Join(n.KeyMetrics, " "))
	hits := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// KeywordFallback selects nodes by plain keyword overlap. It is the last
// resort when the model-backed strategy reports selection unavailable;
// it degrades answer quality but keeps retrieval serving.
func KeywordFallback(q PlannedQuery, idx *index.DocumentIndex, maxNodes int) *Selection {
	if maxNodes <= 0 {
		maxNodes = 3
	}
	type scored struct {
		i     int
		score float64
	}
	var candidates []scored
	for i := range idx.Nodes {
		s := keywordOverlap(q.Keywords, &idx.Nodes[i])
		if s == 0 {
			continue
		}
		if q.NeedsTables && idx.Nodes[i].HasTables {
			s += 0.2
		}
		candidates = append(candidates, scored{i: i, score: s})
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].score > candidates[b].score })
	if len(candidates) > maxNodes {
		candidates = candidates[:maxNodes]
	}

	sel := &Selection{Reasoning: "keyword fallback selection"}
	for _, c := range candidates {
		sel.Nodes = append(sel.Nodes, ScoredNode{
			NodeID: idx.Nodes[c.i].ID,
			Score:  clampScore(c.score),
		})
	}
	sortDocumentOrder(sel.Nodes, idx)
	return sel
}
