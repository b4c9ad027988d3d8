package index

import (
	"fmt"
	"sort"
	"time"

	"github.com/dgallion1/pagetree/internal/corpus"
)

// WindowResult is one window's outcome: its nodes, or the error that
// exhausted its attempt budget.
type WindowResult struct {
	Window Window
	Nodes  []Node
	Err    error
}

// Assemble merges per-window results into a DocumentIndex and verifies
// coverage of [1, TotalPages]. Single-page gaps between adjacent nodes are
// repaired by extending the preceding node (or pulling the following node
// back at the document start); anything wider is reported in the build
// report and leaves the build partial. Overlapping ranges are clipped in
// favor of the earlier node.
func Assemble(docID string, c *corpus.Corpus, meta BuildMeta, results []WindowResult, report *BuildReport) *DocumentIndex {
	sort.Slice(results, func(i, j int) bool { return results[i].Window.StartPage < results[j].Window.StartPage })

	var nodes []Node
	for _, res := range results {
		if res.Err != nil {
			report.FailedWindows = append(report.FailedWindows, PageRange{
				StartPage: res.Window.StartPage,
				EndPage:   res.Window.EndPage,
				Reason:    res.Err.Error(),
			})
			continue
		}
		nodes = append(nodes, res.Nodes...)
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].StartPage < nodes[j].StartPage })

	total := c.TotalPages()
	nodes = repairCoverage(nodes, total, report)

	for i := range nodes {
		nodes[i].ID = fmt.Sprintf("%04d", i+1)
		if nodes[i].HasTables && nodes[i].TableCount == 0 {
			nodes[i].TableCount = countTables(c, nodes[i].StartPage, nodes[i].EndPage)
		}
	}

	return &DocumentIndex{
		DocID:       docID,
		DocName:     c.DocName,
		Scenario:    meta.Scenario,
		ModelID:     meta.ModelID,
		ModelName:   meta.ModelName,
		TotalPages:  total,
		TotalTables: c.TableCount(),
		ContentHash: meta.ContentHash,
		CreatedAt:   time.Now().UTC(),
		Nodes:       nodes,
	}
}

// BuildMeta carries provenance stamped into the index.
type BuildMeta struct {
	Scenario    string
	ModelID     string
	ModelName   string
	ContentHash string
}

func repairCoverage(nodes []Node, total int, report *BuildReport) []Node {
	out := nodes[:0]
	expected := 1
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]

		if n.StartPage < expected {
			// Overlap with the previous node: clip.
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("node %q overlaps pages %d-%d, clipped to start at %d", n.Title, n.StartPage, expected-1, expected))
			n.StartPage = expected
			if n.StartPage > n.EndPage {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("node %q fully covered by earlier nodes, dropped", n.Title))
				continue
			}
		}

		if gap := n.StartPage - expected; gap > 0 {
			if gap == 1 {
				if len(out) > 0 {
					out[len(out)-1].EndPage++
					report.Warnings = append(report.Warnings,
						fmt.Sprintf("page %d unassigned, extended node %q to cover it", expected, out[len(out)-1].Title))
				} else {
					n.StartPage = expected
					report.Warnings = append(report.Warnings,
						fmt.Sprintf("page %d unassigned, extended node %q back to cover it", expected, n.Title))
				}
			} else {
				report.Gaps = append(report.Gaps, PageRange{
					StartPage: expected,
					EndPage:   n.StartPage - 1,
					Reason:    "no node produced for these pages",
				})
			}
		}

		out = append(out, n)
		expected = n.EndPage + 1
	}

	if expected <= total {
		if total-expected == 0 && len(out) > 0 {
			out[len(out)-1].EndPage = total
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("page %d unassigned, extended node %q to cover it", expected, out[len(out)-1].Title))
		} else {
			report.Gaps = append(report.Gaps, PageRange{
				StartPage: expected,
				EndPage:   total,
				Reason:    "no node produced for these pages",
			})
		}
	}
	return out
}

func countTables(c *corpus.Corpus, start, end int) int {
	n := 0
	for _, r := range c.Slice(start, end) {
		if r.Kind == corpus.KindTable {
			n++
		}
	}
	return n
}
