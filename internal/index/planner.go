package index

import "github.com/dgallion1/pagetree/internal/corpus"

// PlanConfig bounds the segment planner. MaxNodePages is the target upper
// size of a single node; LookaheadPages is how many pages a single analyzer
// call may consider together.
type PlanConfig struct {
	MaxNodePages   int
	LookaheadPages int
}

const (
	defaultMaxNodePages   = 3
	defaultLookaheadPages = 12
)

func (c PlanConfig) withDefaults() PlanConfig {
	if c.MaxNodePages <= 0 {
		c.MaxNodePages = defaultMaxNodePages
	}
	if c.LookaheadPages <= 0 {
		c.LookaheadPages = defaultLookaheadPages
	}
	if c.LookaheadPages < c.MaxNodePages {
		c.LookaheadPages = c.MaxNodePages
	}
	return c
}

// PlanWindows tiles the corpus page range [1, TotalPages] into windows for
// the structure analyzer. The planner is pure: same corpus and config, same
// windows.
//
// Each window covers at most LookaheadPages pages, except that a window is
// extended past the bound rather than split through a run of consecutive
// table pages. When a section heading starts a page near the end of a
// window, the window is shortened so the new section begins the next one.
func PlanWindows(c *corpus.Corpus, cfg PlanConfig) []Window {
	cfg = cfg.withDefaults()
	total := c.TotalPages()
	if total == 0 {
		return nil
	}

	firstRecord := make(map[int]corpus.PageRecord)
	lastRecord := make(map[int]corpus.PageRecord)
	for _, r := range c.Records {
		if _, ok := firstRecord[r.Page]; !ok {
			firstRecord[r.Page] = r
		}
		lastRecord[r.Page] = r
	}

	var windows []Window
	start := 1
	for start <= total {
		end := start + cfg.LookaheadPages - 1
		if end >= total {
			windows = append(windows, Window{StartPage: start, EndPage: total})
			break
		}

		// Prefer to break before a page that opens with a heading, looking
		// back at most one node-size worth of pages.
		cut := end
		for p := end; p > end-cfg.MaxNodePages && p > start; p-- {
			if next, ok := firstRecord[p+1]; ok && next.Kind == corpus.KindText && next.Level > 0 {
				cut = p
				break
			}
		}
		end = cut

		// Never split a table that continues onto the next page.
		for end < total && spansTable(lastRecord, firstRecord, end) {
			end++
		}

		windows = append(windows, Window{StartPage: start, EndPage: end})
		start = end + 1
	}
	return windows
}

// spansTable reports whether page p ends in a table and page p+1 begins
// with one, i.e. the boundary would cut through a multi-page table.
func spansTable(lastRecord, firstRecord map[int]corpus.PageRecord, p int) bool {
	last, ok := lastRecord[p]
	if !ok || last.Kind != corpus.KindTable {
		return false
	}
	next, ok := firstRecord[p+1]
	return ok && next.Kind == corpus.KindTable
}
