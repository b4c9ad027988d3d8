package index

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/pagetree/internal/corpus"
)

func node(title string, start, end int) Node {
	return Node{Title: title, StartPage: start, EndPage: end, Summary: title + " summary"}
}

func TestAssemble_FullCoverage(t *testing.T) {
	c := pagesCorpus(10)
	// A table sits on pages 4-5.
	c.Records[3] = corpus.PageRecord{Page: 4, Kind: corpus.KindTable, Content: "<table><tr><td>x</td></tr></table>"}
	c.Records[4] = corpus.PageRecord{Page: 5, Kind: corpus.KindTable, Content: "<table><tr><td>y</td></tr></table>"}

	results := []WindowResult{
		{Window: Window{StartPage: 6, EndPage: 10}, Nodes: []Node{
			node("Economics", 6, 8), node("Appendix", 9, 10),
		}},
		{Window: Window{StartPage: 1, EndPage: 5}, Nodes: []Node{
			node("Overview", 1, 3),
			{Title: "Data Tables", StartPage: 4, EndPage: 5, Summary: "tables", HasTables: true},
		}},
	}

	report := &BuildReport{Windows: 2}
	idx := Assemble("doc-1", c, BuildMeta{Scenario: "general", ModelID: "m", ModelName: "fake"}, results, report)

	if report.Partial() {
		t.Fatalf("expected complete build, got gaps %v failed %v", report.Gaps, report.FailedWindows)
	}
	if len(idx.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(idx.Nodes))
	}
	// Window results merge in page order with sequential ids.
	wantIDs := []string{"0001", "0002", "0003", "0004"}
	for i, want := range wantIDs {
		if idx.Nodes[i].ID != want {
			t.Errorf("node %d: expected id %q, got %q", i, want, idx.Nodes[i].ID)
		}
	}
	if idx.Nodes[0].Title != "Overview" || idx.Nodes[3].Title != "Appendix" {
		t.Errorf("nodes out of order: %q ... %q", idx.Nodes[0].Title, idx.Nodes[3].Title)
	}
	// Table count is filled from the corpus when the model omitted it.
	if idx.Nodes[1].TableCount != 2 {
		t.Errorf("expected table count 2 on the table node, got %d", idx.Nodes[1].TableCount)
	}
	if idx.TotalPages != 10 || idx.TotalTables != 2 {
		t.Errorf("expected 10 pages / 2 tables, got %d / %d", idx.TotalPages, idx.TotalTables)
	}
}

func TestAssemble_RepairsOnePageGap(t *testing.T) {
	c := pagesCorpus(6)
	results := []WindowResult{
		{Window: Window{StartPage: 1, EndPage: 6}, Nodes: []Node{
			node("A", 1, 2),
			// Page 3 is unassigned.
			node("B", 4, 6),
		}},
	}
	report := &BuildReport{}
	idx := Assemble("doc", c, BuildMeta{}, results, report)

	if report.Partial() {
		t.Fatalf("expected one-page gap repaired, got %+v", report)
	}
	if idx.Nodes[0].EndPage != 3 {
		t.Errorf("expected node A extended to page 3, got %d", idx.Nodes[0].EndPage)
	}
	if len(report.Warnings) == 0 {
		t.Error("expected a repair warning")
	}
}

func TestAssemble_RepairsLeadingGap(t *testing.T) {
	c := pagesCorpus(4)
	results := []WindowResult{
		{Window: Window{StartPage: 1, EndPage: 4}, Nodes: []Node{node("A", 2, 4)}},
	}
	report := &BuildReport{}
	idx := Assemble("doc", c, BuildMeta{}, results, report)

	if report.Partial() {
		t.Fatalf("expected leading gap repaired, got %+v", report)
	}
	if idx.Nodes[0].StartPage != 1 {
		t.Errorf("expected first node pulled back to page 1, got %d", idx.Nodes[0].StartPage)
	}
}

func TestAssemble_ReportsWideGap(t *testing.T) {
	c := pagesCorpus(10)
	results := []WindowResult{
		{Window: Window{StartPage: 1, EndPage: 10}, Nodes: []Node{
			node("A", 1, 2),
			node("B", 7, 10),
		}},
	}
	report := &BuildReport{}
	Assemble("doc", c, BuildMeta{}, results, report)

	if !report.Partial() {
		t.Fatal("expected partial build for a 4-page gap")
	}
	if len(report.Gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(report.Gaps))
	}
	if g := report.Gaps[0]; g.StartPage != 3 || g.EndPage != 6 {
		t.Errorf("expected gap 3-6, got %d-%d", g.StartPage, g.EndPage)
	}
}

func TestAssemble_ClipsOverlap(t *testing.T) {
	c := pagesCorpus(6)
	results := []WindowResult{
		{Window: Window{StartPage: 1, EndPage: 6}, Nodes: []Node{
			node("A", 1, 3),
			node("B", 3, 6), // overlaps page 3
		}},
	}
	report := &BuildReport{}
	idx := Assemble("doc", c, BuildMeta{}, results, report)

	if report.Partial() {
		t.Fatalf("expected clean clip, got %+v", report)
	}
	if idx.Nodes[1].StartPage != 4 {
		t.Errorf("expected B clipped to start at 4, got %d", idx.Nodes[1].StartPage)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "overlaps") {
			found = true
		}
	}
	if !found {
		t.Error("expected an overlap warning")
	}
}

func TestAssemble_FailedWindowBecomesGap(t *testing.T) {
	c := pagesCorpus(10)
	results := []WindowResult{
		{Window: Window{StartPage: 1, EndPage: 5}, Nodes: []Node{node("A", 1, 5)}},
		{Window: Window{StartPage: 6, EndPage: 10}, Err: errors.New("model gave up")},
	}
	report := &BuildReport{}
	idx := Assemble("doc", c, BuildMeta{}, results, report)

	if len(report.FailedWindows) != 1 {
		t.Fatalf("expected 1 failed window, got %d", len(report.FailedWindows))
	}
	if len(report.Gaps) != 1 || report.Gaps[0].StartPage != 6 {
		t.Fatalf("expected trailing gap from page 6, got %v", report.Gaps)
	}
	// The surviving window's nodes still make it into the index.
	if len(idx.Nodes) != 1 || idx.Nodes[0].Title != "A" {
		t.Errorf("expected surviving node A, got %v", idx.Nodes)
	}
}

func TestAssemble_TrailingOnePageGapRepaired(t *testing.T) {
	c := pagesCorpus(5)
	results := []WindowResult{
		{Window: Window{StartPage: 1, EndPage: 5}, Nodes: []Node{node("A", 1, 4)}},
	}
	report := &BuildReport{}
	idx := Assemble("doc", c, BuildMeta{}, results, report)

	if report.Partial() {
		t.Fatalf("expected trailing one-page gap repaired, got %+v", report)
	}
	if idx.Nodes[0].EndPage != 5 {
		t.Errorf("expected node extended to page 5, got %d", idx.Nodes[0].EndPage)
	}
}
