package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/pagetree/internal/corpus"
)

// Scenario tunes the analysis prompts for a document family. The scenario
// only changes prompt emphasis; the node schema is identical everywhere.
type Scenario struct {
	ID          string
	Description string
	// Emphasis is injected into the structure prompt to steer titles,
	// summaries, and key metric extraction toward the domain.
	Emphasis string
}

var scenarios = map[string]Scenario{
	"general": {
		ID:          "general",
		Description: "generic document",
		Emphasis:    "Focus on the document's own section structure. Extract any quantities, dates, or named entities that a reader would search for as key metrics.",
	},
	"water_engineering": {
		ID:          "water_engineering",
		Description: "water engineering design reports",
		Emphasis:    "Focus on engineering design parameters: flow rates, pipe diameters, treatment capacities, water quality limits, pump specifications, and cost estimates. Design parameter tables are the most important content.",
	},
	"financial_report": {
		ID:          "financial_report",
		Description: "financial statements and annual reports",
		Emphasis:    "Focus on financial figures: revenue, profit, margins, cash flow, balance sheet items, and year-over-year changes. Statement tables and their footnotes are the most important content.",
	},
	"technical_manual": {
		ID:          "technical_manual",
		Description: "technical and operations manuals",
		Emphasis:    "Focus on procedures, specifications, and reference tables: model numbers, tolerances, maintenance intervals, and step-by-step instructions.",
	},
}

// ScenarioByID returns the scenario for id, falling back to "general".
func ScenarioByID(id string) Scenario {
	if s, ok := scenarios[id]; ok {
		return s
	}
	return scenarios["general"]
}

// ScenarioIDs lists the known scenario ids in sorted order.
func ScenarioIDs() []string {
	ids := make([]string, 0, len(scenarios))
	for id := range scenarios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

const structurePromptTmpl = `You are analyzing the structure of a document. Below is the content of pages %d to %d%s.

%s

Document content:
%s

Divide pages %d to %d into sections. Each section must be a contiguous page range of at most %d pages. Together the sections must cover every page from %d to %d exactly once, with no gaps and no overlaps.

Return ONLY a JSON object of this shape, with no commentary:
{
  "structure": [
    {
      "title": "section title",
      "start_page": 1,
      "end_page": 2,
      "summary": "2-3 sentence summary of what these pages contain",
      "has_tables": false,
      "table_count": 0,
      "key_metrics": ["notable figure or parameter", "..."],
      "content_type": "one of: overview, technical_specs, operational_data, economic_analysis, procedures, reference",
      "granularity": "one of: high, medium, low"
    }
  ]
}`

const structureRetryNote = `

Your previous response could not be used: %s.
Respond with ONLY the JSON object. Every start_page and end_page must be an integer within %d to %d, start_page must not exceed end_page, and every section needs a non-empty title and summary.`

// StructurePrompt renders the analysis prompt for one window. priorTitles
// carries section headings from the pages before the window so the model
// keeps numbering and terminology consistent across windows.
func StructurePrompt(s Scenario, w Window, sample string, priorTitles []string, maxNodePages int) string {
	context := ""
	if len(priorTitles) > 0 {
		context = fmt.Sprintf(" (preceding sections: %s)", strings.Join(priorTitles, "; "))
	}
	return fmt.Sprintf(structurePromptTmpl,
		w.StartPage, w.EndPage, context,
		s.Emphasis,
		sample,
		w.StartPage, w.EndPage, maxNodePages, w.StartPage, w.EndPage,
	)
}

// WindowSample renders window pages for the structure prompt. Text records
// keep their heading level as markdown-style hashes; tables are replaced by
// compact header-and-sample summaries so wide tables do not blow the
// context budget. Per-record content is truncated at maxRecordChars.
func WindowSample(c *corpus.Corpus, w Window, maxRecordChars int) string {
	if maxRecordChars <= 0 {
		maxRecordChars = 2000
	}
	var sb strings.Builder
	page := 0
	for _, r := range c.Slice(w.StartPage, w.EndPage) {
		if r.Page != page {
			page = r.Page
			fmt.Fprintf(&sb, "\n=== Page %d ===\n", page)
		}
		switch {
		case r.Kind == corpus.KindTable:
			sb.WriteString("[TABLE] ")
			sb.WriteString(corpus.TableSummary(r.Content))
		case r.Level > 0:
			sb.WriteString(strings.Repeat("#", r.Level))
			sb.WriteString(" ")
			sb.WriteString(clip(r.Content, maxRecordChars))
		default:
			sb.WriteString(clip(r.Content, maxRecordChars))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// PriorHeadings collects heading lines from the pages before the window,
// newest last, capped at max entries.
func PriorHeadings(c *corpus.Corpus, before int, max int) []string {
	var out []string
	for _, r := range c.Records {
		if r.Page >= before {
			break
		}
		if r.Kind == corpus.KindText && r.Level > 0 {
			out = append(out, clip(r.Content, 120))
		}
	}
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
