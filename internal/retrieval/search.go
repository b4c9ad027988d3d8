package retrieval

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/dgallion1/pagetree/internal/index"
	"github.com/dgallion1/pagetree/internal/llm"
)

// ValueFunc scores one node's relevance to the query in [0, 1]. The search
// strategy treats it as an oracle: swap in a deterministic function for
// tests, or a cheaper model for cost control.
type ValueFunc func(ctx context.Context, q PlannedQuery, idx *index.DocumentIndex, n *index.Node) (float64, error)

// SearchBased explores the node catalog iteratively instead of asking for
// the whole selection at once. Each round it picks the node with the best
// upper confidence bound (mean value plus an exploration bonus), evaluates
// it, and stops when the call budget is spent or marginal value drops
// below the threshold. With a fixed seed and a deterministic ValueFunc the
// selection is fully reproducible.
type SearchBased struct {
	Value       ValueFunc
	CallBudget  int     // max ValueFunc evaluations per document
	MaxNodes    int     // max nodes returned
	MinValue    float64 // nodes scoring below this are not returned
	MinMarginal float64 // stop early when the best remaining bound is below this
	Explore     float64 // exploration constant, default sqrt(2)
	Seed        uint64
}

func (s *SearchBased) Name() string { return "search_based" }

// LLMValue builds a ValueFunc backed by a model call per node.
func LLMValue(call llm.CallFunc) ValueFunc {
	return func(ctx context.Context, q PlannedQuery, idx *index.DocumentIndex, n *index.Node) (float64, error) {
		prompt := fmt.Sprintf(scorePromptTmpl, q.Text, n.ID, n.Title, n.StartPage, n.EndPage, n.Summary)
		resp, err := call(ctx, prompt)
		if err != nil {
			return 0, err
		}
		parsed, err := llm.ExtractJSON[struct {
			Score float64 `json:"score"`
		}](resp.Text)
		if err != nil {
			return 0, err
		}
		return clampScore(parsed.Score), nil
	}
}

type arm struct {
	node   *index.Node
	visits int
	total  float64
	prior  float64
}

func (a *arm) mean() float64 {
	if a.visits == 0 {
		return a.prior
	}
	return a.total / float64(a.visits)
}

func (s *SearchBased) Select(ctx context.Context, q PlannedQuery, idx *index.DocumentIndex) (*Selection, error) {
	if len(idx.Nodes) == 0 {
		return nil, &SelectionUnavailableError{DocID: idx.DocID, Reason: "index has no nodes"}
	}

	budget := s.CallBudget
	if budget <= 0 {
		budget = 2 * len(idx.Nodes)
	}
	maxNodes := s.MaxNodes
	if maxNodes <= 0 {
		maxNodes = 5
	}
	explore := s.Explore
	if explore <= 0 {
		explore = math.Sqrt2
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))

	// Keyword overlap seeds the priors so the first evaluations go to the
	// most promising nodes instead of a cold uniform sweep.
	arms := make([]*arm, len(idx.Nodes))
	for i := range idx.Nodes {
		n := &idx.Nodes[i]
		prior := keywordOverlap(q.Keywords, n)
		if q.NeedsTables && n.HasTables {
			prior += 0.2
		}
		arms[i] = &arm{node: n, prior: prior}
	}

	calls := 0
	var failures int
	for calls < budget {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		best, bound := s.pick(arms, calls, explore, rng)
		if best == nil || (calls > 0 && bound < s.MinMarginal) {
			break
		}
		v, err := s.Value(ctx, q, idx, best.node)
		calls++
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if failures >= budget {
				break
			}
			// Count the visit so a persistently failing node stops
			// winning the bound.
			best.visits++
			continue
		}
		best.visits++
		best.total += v
	}

	if calls == failures {
		return nil, &SelectionUnavailableError{DocID: idx.DocID, Reason: "every relevance evaluation failed"}
	}

	evaluated := make([]*arm, 0, len(arms))
	for _, a := range arms {
		if a.visits > 0 && a.total > 0 && a.mean() >= s.MinValue {
			evaluated = append(evaluated, a)
		}
	}
	if len(evaluated) == 0 {
		return nil, &SelectionUnavailableError{DocID: idx.DocID, Reason: "no node scored above the relevance floor"}
	}
	sort.SliceStable(evaluated, func(i, j int) bool { return evaluated[i].mean() > evaluated[j].mean() })
	if len(evaluated) > maxNodes {
		evaluated = evaluated[:maxNodes]
	}

	sel := &Selection{
		Reasoning: fmt.Sprintf("iterative search evaluated %d of %d sections in %d calls", countVisited(arms), len(arms), calls),
	}
	for _, a := range evaluated {
		sel.Nodes = append(sel.Nodes, ScoredNode{NodeID: a.node.ID, Score: a.mean()})
	}
	sortDocumentOrder(sel.Nodes, idx)
	return sel, nil
}

// pick returns the arm with the highest upper confidence bound. Arms that
// were never evaluated come first, best prior leading, so every section
// gets one look before any is revisited. Ties break by seeded coin flip so
// repeated runs with one seed stay reproducible.
func (s *SearchBased) pick(arms []*arm, totalVisits int, explore float64, rng *rand.Rand) (*arm, float64) {
	var best *arm
	bestBound := math.Inf(-1)
	ties := 0
	consider := func(a *arm, bound float64) {
		switch {
		case bound > bestBound:
			best, bestBound, ties = a, bound, 1
		case bound == bestBound:
			ties++
			if rng.IntN(ties) == 0 {
				best = a
			}
		}
	}

	for _, a := range arms {
		if a.visits == 0 {
			consider(a, a.prior)
		}
	}
	if best != nil {
		return best, math.Inf(1)
	}

	for _, a := range arms {
		consider(a, a.mean()+explore*math.Sqrt(math.Log(float64(totalVisits+1))/float64(a.visits)))
	}
	return best, bestBound
}

func countVisited(arms []*arm) int {
	n := 0
	for _, a := range arms {
		if a.visits > 0 {
			n++
		}
	}
	return n
}
