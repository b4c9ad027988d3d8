package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/pagetree/internal/corpus"
	"github.com/dgallion1/pagetree/internal/llm"
)

// BuildOptions parameterizes one index build. Zero values fall back to the
// model's context limit and the planner defaults.
type BuildOptions struct {
	ModelID        string
	Scenario       string
	MaxNodePages   int
	LookaheadPages int
	Concurrency    int
	MaxAttempts    int
	ContentHash    string
}

// Builder runs index builds against a model registry.
type Builder struct {
	reg *llm.Registry
	log *slog.Logger
}

func NewBuilder(reg *llm.Registry, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{reg: reg, log: log}
}

// estCharsPerPage sizes windows against the model context. OCR pages of
// dense text run around 3000 characters; tables are summarized before
// prompting so they count far less.
const estCharsPerPage = 3000

// Build validates the corpus, plans windows, analyzes them in parallel
// behind a bounded semaphore, and assembles the final index. The returned
// report is never nil on success; a build with unindexed ranges returns a
// partial report rather than an error. Cancellation via ctx stops
// undispatched windows and aborts in-flight calls.
func (b *Builder) Build(ctx context.Context, c *corpus.Corpus, docID string, opts BuildOptions) (*DocumentIndex, *BuildReport, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	if c.TotalPages() == 0 {
		return nil, nil, fmt.Errorf("corpus %q has no pages", c.DocName)
	}

	if opts.ModelID == "" {
		opts.ModelID = b.reg.DefaultID()
	}
	cfg, err := b.reg.Config(opts.ModelID)
	if err != nil {
		return nil, nil, err
	}
	provider, err := b.reg.Provider(opts.ModelID)
	if err != nil {
		return nil, nil, err
	}
	modelStats, err := b.reg.Stats(opts.ModelID)
	if err != nil {
		return nil, nil, err
	}

	plan := PlanConfig{MaxNodePages: opts.MaxNodePages, LookaheadPages: opts.LookaheadPages}
	if plan.LookaheadPages <= 0 && cfg.ContextLimit > 0 {
		// Leave half the context for the response and the prompt scaffold.
		plan.LookaheadPages = clampInt(cfg.ContextLimit/(estCharsPerPage*2), 4, 50)
	}
	plan = plan.withDefaults()

	windows := PlanWindows(c, plan)
	scenario := ScenarioByID(opts.Scenario)
	buildStats := llm.NewStats(24 * time.Hour)
	analyzer := NewAnalyzer(AnalyzerConfig{
		Provider:    provider,
		Scenario:    scenario,
		Stats:       buildStats,
		ModelStats:  modelStats,
		Logger:      b.log.With("doc", c.DocName, "model", opts.ModelID),
		MaxAttempts: opts.MaxAttempts,
		Timeout:     cfg.Timeout,
		MaxNodeSize: plan.MaxNodePages,
	})

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	b.log.Info("index build started",
		"doc", c.DocName, "pages", c.TotalPages(), "windows", len(windows),
		"model", opts.ModelID, "scenario", scenario.ID, "concurrency", concurrency)

	results := make([]WindowResult, len(windows))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, w := range windows {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, w Window) {
			defer wg.Done()
			defer func() { <-sem }()
			nodes, err := analyzer.Analyze(ctx, c, w)
			results[i] = WindowResult{Window: w, Nodes: nodes, Err: err}
		}(i, w)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	report := &BuildReport{Windows: len(windows)}
	idx := Assemble(docID, c, BuildMeta{
		Scenario:    scenario.ID,
		ModelID:     opts.ModelID,
		ModelName:   cfg.Name,
		ContentHash: opts.ContentHash,
	}, results, report)
	report.Stats = buildStats.Snapshot()

	b.log.Info("index build finished",
		"doc", c.DocName, "nodes", len(idx.Nodes),
		"failed_windows", len(report.FailedWindows), "gaps", len(report.Gaps),
		"calls", report.Stats.TotalCalls, "failed_calls", report.Stats.FailedCalls)
	return idx, report, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
