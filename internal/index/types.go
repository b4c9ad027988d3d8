// Package index builds a page-addressable tree index over an OCR corpus:
// windows are planned over the page sequence, each window is analyzed by a
// model into candidate nodes, and the assembler merges the results into one
// immutable DocumentIndex.
package index

import (
	"fmt"
	"time"

	"github.com/dgallion1/pagetree/internal/llm"
)

// Node is one tree element: a titled, summarized, contiguous page range.
type Node struct {
	ID          string   `json:"node_id"`
	Title       string   `json:"title"`
	StartPage   int      `json:"start_page"`
	EndPage     int      `json:"end_page"`
	Summary     string   `json:"summary"`
	HasTables   bool     `json:"has_tables"`
	TableCount  int      `json:"table_count"`
	KeyMetrics  []string `json:"key_metrics,omitempty"`
	ContentType string   `json:"content_type,omitempty"` // overview, technical_specs, operational_data, ...
	Granularity string   `json:"granularity,omitempty"`  // high, medium, low
}

// DocumentIndex is the persisted tree for one document. It is written once
// by the assembler and read-only afterwards; re-indexing produces a new
// value, which makes concurrent retrieval reads safe without locking.
type DocumentIndex struct {
	DocID       string    `json:"doc_id"`
	DocName     string    `json:"doc_name"`
	Scenario    string    `json:"scenario"`
	ModelID     string    `json:"model_id"`
	ModelName   string    `json:"model_name"`
	TotalPages  int       `json:"total_pages"`
	TotalTables int       `json:"total_tables"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Nodes       []Node    `json:"structure"`
}

// NodeByID returns the node with the given id, or nil.
func (d *DocumentIndex) NodeByID(id string) *Node {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// Window is a contiguous page range submitted to the structure analyzer in
// one model call. Windows exist only during index construction.
type Window struct {
	StartPage int
	EndPage   int
}

func (w Window) String() string {
	return fmt.Sprintf("pages %d-%d", w.StartPage, w.EndPage)
}

// PageRange marks a span of pages left unindexed, with the reason.
type PageRange struct {
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
	Reason    string `json:"reason"`
}

// BuildReport accumulates everything that went wrong (or was repaired)
// during one build, alongside the per-build model call statistics. A build
// with gaps is a partial success, not a failure.
type BuildReport struct {
	Windows       int               `json:"windows"`
	FailedWindows []PageRange       `json:"failed_windows,omitempty"`
	Gaps          []PageRange       `json:"gaps,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	Stats         llm.StatsSnapshot `json:"stats"`
}

// Partial reports whether the build left any page range unindexed.
func (r *BuildReport) Partial() bool {
	return len(r.Gaps) > 0 || len(r.FailedWindows) > 0
}

// ValidationError rejects a model response that violates the node schema.
type ValidationError struct {
	Window Window
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid structure for %s: %s", e.Window, e.Reason)
}

// StructureAnalysisFailedError is surfaced for a window once the re-prompt
// budget is exhausted. The window's range is reported unindexed; sibling
// windows are unaffected.
type StructureAnalysisFailedError struct {
	Window Window
	Err    error
}

func (e *StructureAnalysisFailedError) Error() string {
	return fmt.Sprintf("structure analysis failed for %s: %v", e.Window, e.Err)
}

func (e *StructureAnalysisFailedError) Unwrap() error { return e.Err }
