package retrieval

import (
	"math"
	"sort"
)

// DocScore aggregates a document's selected node scores into one ranking
// value: the sum of node scores divided by sqrt(N+1), where N is the node
// count. The denominator rewards documents with several relevant sections
// while damping the advantage of sheer quantity. No nodes means zero.
func DocScore(nodeScores []float64) float64 {
	if len(nodeScores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range nodeScores {
		sum += s
	}
	return sum / math.Sqrt(float64(len(nodeScores)+1))
}

// DocRank is one document's position in the cross-document ranking.
type DocRank struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// RankDocuments orders documents by descending DocScore; ties break by
// ascending document id so the ranking is stable across runs.
func RankDocuments(scores map[string][]float64) []DocRank {
	ranks := make([]DocRank, 0, len(scores))
	for docID, nodeScores := range scores {
		ranks = append(ranks, DocRank{DocID: docID, Score: DocScore(nodeScores)})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Score != ranks[j].Score {
			return ranks[i].Score > ranks[j].Score
		}
		return ranks[i].DocID < ranks[j].DocID
	})
	return ranks
}
