package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/pagetree/internal/corpus"
	"github.com/dgallion1/pagetree/internal/index"
	"github.com/dgallion1/pagetree/internal/llm"
)

// Store is the engine's view of persisted documents.
type Store interface {
	LoadIndex(docID string) (*index.DocumentIndex, error)
	LoadCorpus(docID string) (*corpus.Corpus, error)
}

// Request is one retrieval query over a set of indexed documents.
type Request struct {
	Query    string   `json:"query"`
	DocIDs   []string `json:"doc_ids"`
	Strategy string   `json:"strategy,omitempty"` // one_shot (default) or search_based
	ModelID  string   `json:"model_id,omitempty"`
	MaxDocs  int      `json:"max_docs,omitempty"` // documents used for synthesis
}

// DocResult is the per-document outcome: what was selected and why, plus
// the aggregated document score used for ranking.
type DocResult struct {
	DocID           string       `json:"doc_id"`
	DocName         string       `json:"doc_name"`
	Score           float64      `json:"score"`
	SelectedNodes   []ScoredNode `json:"selected_nodes,omitempty"`
	Reasoning       string       `json:"reasoning,omitempty"`
	UsedFallback    bool         `json:"used_fallback,omitempty"`
	SelectionFailed bool         `json:"selection_failed,omitempty"`
}

// Result is the full answer to one request.
type Result struct {
	Answer    string      `json:"answer"`
	Citations []Citation  `json:"citations"`
	Intent    Intent      `json:"intent"`
	Documents []DocResult `json:"documents"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// Engine executes retrieval requests: plan, select per document, rank,
// synthesize. It holds no per-query state and is safe for concurrent use.
type Engine struct {
	store Store
	reg   *llm.Registry
	log   *slog.Logger
	seed  uint64
}

func NewEngine(store Store, reg *llm.Registry, log *slog.Logger, seed uint64) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, reg: reg, log: log, seed: seed}
}

func (e *Engine) strategy(name string, call llm.CallFunc) (Strategy, error) {
	switch name {
	case "", "one_shot":
		return &OneShot{Call: call}, nil
	case "search_based":
		return &SearchBased{Value: LLMValue(call), Seed: e.seed}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Query runs the full retrieval pipeline. Per-document selection failures
// degrade to keyword fallback and then to exclusion with a warning; the
// query as a whole fails only when no document yields anything to answer
// from, or synthesis itself fails.
func (e *Engine) Query(ctx context.Context, req Request) (*Result, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if len(req.DocIDs) == 0 {
		return nil, fmt.Errorf("no documents specified")
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = e.reg.DefaultID()
	}
	call := e.reg.Caller(modelID)
	strat, err := e.strategy(req.Strategy, call)
	if err != nil {
		return nil, err
	}

	planned := PlanQuery(ctx, call, req.Query, e.log)
	result := &Result{Intent: planned.Intent}

	contexts := make(map[string]DocContext, len(req.DocIDs))
	scores := make(map[string][]float64, len(req.DocIDs))
	byDoc := make(map[string]*DocResult, len(req.DocIDs))

	for _, docID := range req.DocIDs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		dr := DocResult{DocID: docID}

		idx, err := e.store.LoadIndex(docID)
		if err != nil {
			return nil, fmt.Errorf("load index %s: %w", docID, err)
		}
		dr.DocName = idx.DocName

		sel, err := strat.Select(ctx, planned, idx)
		if err != nil {
			var unavailable *SelectionUnavailableError
			if !errors.As(err, &unavailable) {
				return nil, err
			}
			e.log.Warn("selection unavailable, trying keyword fallback", "doc", docID, "reason", unavailable.Reason)
			sel = KeywordFallback(planned, idx, 3)
			if sel == nil {
				dr.SelectionFailed = true
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("document %s excluded: %s", docID, unavailable.Reason))
				scores[docID] = nil
				byDoc[docID] = &dr
				continue
			}
			dr.UsedFallback = true
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("document %s: model selection unavailable, used keyword fallback", docID))
		}
		result.Warnings = append(result.Warnings, sel.Warnings...)

		dr.SelectedNodes = sel.Nodes
		dr.Reasoning = sel.Reasoning
		nodeScores := make([]float64, len(sel.Nodes))
		for i, sn := range sel.Nodes {
			nodeScores[i] = sn.Score
		}
		scores[docID] = nodeScores

		crp, err := e.store.LoadCorpus(docID)
		if err != nil {
			return nil, fmt.Errorf("load corpus %s: %w", docID, err)
		}
		contexts[docID] = DocContext{Index: idx, Corpus: crp, Nodes: sel.Nodes}
		byDoc[docID] = &dr
	}

	maxDocs := req.MaxDocs
	if maxDocs <= 0 {
		maxDocs = 3
	}
	var synthDocs []DocContext
	for _, rank := range RankDocuments(scores) {
		dr := byDoc[rank.DocID]
		dr.Score = rank.Score
		result.Documents = append(result.Documents, *dr)
		if rank.Score > 0 && len(synthDocs) < maxDocs {
			if dc, ok := contexts[rank.DocID]; ok {
				synthDocs = append(synthDocs, dc)
			}
		}
	}
	if len(synthDocs) == 0 {
		return nil, &SelectionUnavailableError{
			DocID:  "",
			Reason: "no document produced a usable selection",
		}
	}

	ans, err := Synthesize(ctx, call, planned, synthDocs)
	if err != nil {
		return nil, err
	}
	result.Answer = ans.Text
	result.Citations = ans.Citations
	result.Warnings = append(result.Warnings, ans.Warnings...)

	e.log.Info("query answered",
		"intent", planned.Intent, "docs", len(req.DocIDs),
		"synth_docs", len(synthDocs), "citations", len(result.Citations),
		"warnings", len(result.Warnings))
	return result, nil
}
