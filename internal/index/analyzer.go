package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/pagetree/internal/corpus"
	"github.com/dgallion1/pagetree/internal/llm"
)

// Analyzer turns one window of corpus pages into candidate nodes via a
// model call. Responses that fail schema validation are re-prompted with a
// stricter instruction; transport failures and validation failures share
// the same attempt budget. Every attempt, good or bad, is recorded in the
// build's stats and in the model's process-level stats.
type Analyzer struct {
	provider    llm.Provider
	scenario    Scenario
	stats       *llm.Stats
	modelStats  *llm.Stats
	log         *slog.Logger
	maxAttempts int
	timeout     time.Duration
	maxNodeSize int
	sampleChars int
}

// AnalyzerConfig wires an analyzer for one build. ModelStats is the model's
// registry counter; it is optional and shared across builds.
type AnalyzerConfig struct {
	Provider    llm.Provider
	Scenario    Scenario
	Stats       *llm.Stats
	ModelStats  *llm.Stats
	Logger      *slog.Logger
	MaxAttempts int
	Timeout     time.Duration
	MaxNodeSize int
	SampleChars int
}

func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxNodeSize <= 0 {
		cfg.MaxNodeSize = defaultMaxNodePages
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Analyzer{
		provider:    cfg.Provider,
		scenario:    cfg.Scenario,
		stats:       cfg.Stats,
		modelStats:  cfg.ModelStats,
		log:         cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
		timeout:     cfg.Timeout,
		maxNodeSize: cfg.MaxNodeSize,
		sampleChars: cfg.SampleChars,
	}
}

// rawNode tolerates the loose typing models produce: page numbers as
// strings, booleans as "true"/"false".
type rawNode struct {
	Title       string   `json:"title"`
	StartPage   flexInt  `json:"start_page"`
	EndPage     flexInt  `json:"end_page"`
	Summary     string   `json:"summary"`
	HasTables   flexBool `json:"has_tables"`
	TableCount  flexInt  `json:"table_count"`
	KeyMetrics  []string `json:"key_metrics"`
	ContentType string   `json:"content_type"`
	Granularity string   `json:"granularity"`
}

type structureResponse struct {
	Structure []rawNode `json:"structure"`
}

// Analyze runs the window through the model and validates the result.
// Returned nodes are in start-page order and clipped to the window; ids
// are assigned later by the assembler.
func (a *Analyzer) Analyze(ctx context.Context, c *corpus.Corpus, w Window) ([]Node, error) {
	sample := WindowSample(c, w, a.sampleChars)
	prior := PriorHeadings(c, w.StartPage, 10)
	prompt := StructurePrompt(a.scenario, w, sample, prior, a.maxNodeSize)

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, elapsed, err := a.invoke(ctx, prompt)
		if err != nil {
			a.recordFailure(elapsed)
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !llm.IsTransient(err) {
				break
			}
			a.log.Warn("structure call failed", "window", w.String(), "attempt", attempt, "error", err)
			if attempt < a.maxAttempts {
				select {
				case <-time.After(llm.Backoff(attempt - 1)):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			continue
		}

		nodes, err := a.parse(resp.Text, w)
		if err != nil {
			a.recordFailure(elapsed)
			lastErr = err
			a.log.Warn("structure response rejected", "window", w.String(), "attempt", attempt, "error", err)
			prompt = StructurePrompt(a.scenario, w, sample, prior, a.maxNodeSize) +
				fmt.Sprintf(structureRetryNote, err.Error(), w.StartPage, w.EndPage)
			continue
		}

		a.recordSuccess(elapsed, resp.Usage)
		return nodes, nil
	}
	return nil, &StructureAnalysisFailedError{Window: w, Err: lastErr}
}

func (a *Analyzer) recordSuccess(d time.Duration, u llm.Usage) {
	a.stats.RecordSuccess(d, u)
	if a.modelStats != nil {
		a.modelStats.RecordSuccess(d, u)
	}
}

func (a *Analyzer) recordFailure(d time.Duration) {
	a.stats.RecordFailure(d)
	if a.modelStats != nil {
		a.modelStats.RecordFailure(d)
	}
}

func (a *Analyzer) invoke(ctx context.Context, prompt string) (*llm.Response, time.Duration, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if a.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := a.provider.Invoke(callCtx, prompt)
	return resp, time.Since(start), err
}

// parse extracts and validates the structure payload.
func (a *Analyzer) parse(text string, w Window) ([]Node, error) {
	parsed, err := llm.ExtractJSON[structureResponse](text)
	if err != nil {
		return nil, &ValidationError{Window: w, Reason: err.Error()}
	}
	if len(parsed.Structure) == 0 {
		return nil, &ValidationError{Window: w, Reason: "empty structure array"}
	}

	nodes := make([]Node, 0, len(parsed.Structure))
	for i, rn := range parsed.Structure {
		start, end := int(rn.StartPage), int(rn.EndPage)
		switch {
		case strings.TrimSpace(rn.Title) == "":
			return nil, &ValidationError{Window: w, Reason: fmt.Sprintf("section %d has no title", i)}
		case strings.TrimSpace(rn.Summary) == "":
			return nil, &ValidationError{Window: w, Reason: fmt.Sprintf("section %d (%q) has no summary", i, rn.Title)}
		case start < w.StartPage || end > w.EndPage:
			return nil, &ValidationError{Window: w, Reason: fmt.Sprintf("section %q range %d-%d outside window", rn.Title, start, end)}
		case start > end:
			return nil, &ValidationError{Window: w, Reason: fmt.Sprintf("section %q start %d after end %d", rn.Title, start, end)}
		}
		nodes = append(nodes, Node{
			Title:       strings.TrimSpace(rn.Title),
			StartPage:   start,
			EndPage:     end,
			Summary:     strings.TrimSpace(rn.Summary),
			HasTables:   bool(rn.HasTables) || int(rn.TableCount) > 0,
			TableCount:  int(rn.TableCount),
			KeyMetrics:  rn.KeyMetrics,
			ContentType: rn.ContentType,
			Granularity: rn.Granularity,
		})
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].StartPage < nodes[j].StartPage })
	return nodes, nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not an integer: %s", string(b))
	}
	*f = flexInt(n)
	return nil
}

// flexBool accepts a JSON bool or a "true"/"false" string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
		return nil
	}
	s := strings.ToLower(strings.Trim(string(b), `"`))
	switch s {
	case "true", "yes":
		*f = true
	case "false", "no", "", "null":
		*f = false
	default:
		return fmt.Errorf("not a boolean: %s", string(b))
	}
	return nil
}
