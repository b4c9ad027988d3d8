package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/pagetree/internal/config"
	"github.com/dgallion1/pagetree/internal/corpus"
	"github.com/dgallion1/pagetree/internal/index"
	"github.com/dgallion1/pagetree/internal/store"
)

// Worker processes a single index build job.
type Worker struct {
	builder *index.Builder
	store   *store.FSStore
	log     *slog.Logger
	cfg     config.Config
}

func NewWorker(builder *index.Builder, st *store.FSStore, log *slog.Logger, cfg config.Config) *Worker {
	return &Worker{builder: builder, store: st, log: log, cfg: cfg}
}

// Process runs the full build pipeline for a job: load the upload into a
// corpus, skip if the same content is already indexed, build the tree, and
// persist index plus corpus together.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Load
	job.SetStatus(StatusLoading, "loading")
	c, err := corpus.FromFile(job.Filename, job.FileData(), w.cfg.PDFFallbackPdftotext)
	if err != nil {
		log.Error("load failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "loading")
		return
	}
	if err := c.Validate(); err != nil {
		log.Error("invalid corpus", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "loading")
		return
	}
	job.SetFileData(nil) // release the upload

	docID := store.DocID(c.DocName, job.Scenario, job.ModelID)
	job.SetDocID(docID)
	job.ContentHash = contentHash(c)

	// Phase 1.5: Dedup. Same content already indexed under this id means
	// the build would reproduce the existing files.
	if existing, err := w.store.LoadIndex(docID); err == nil {
		if existing.ContentHash == job.ContentHash {
			log.Info("content already indexed, skipping", "doc_id", docID)
			job.SetProgress(existing.TotalPages, 0, len(existing.Nodes), 0, 0)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn("dedup check failed, proceeding", "error", err)
	}

	// Phase 2: Analyze and assemble
	job.SetStatus(StatusAnalyzing, "analyzing")
	idx, report, err := w.builder.Build(ctx, c, docID, index.BuildOptions{
		ModelID:        job.ModelID,
		Scenario:       job.Scenario,
		MaxNodePages:   w.cfg.MaxNodePages,
		LookaheadPages: w.cfg.LookaheadPages,
		Concurrency:    w.cfg.MaxConcurrentWindows,
		MaxAttempts:    w.cfg.MaxAttempts,
		ContentHash:    job.ContentHash,
	})
	if err != nil {
		log.Error("build failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "analyzing")
		return
	}
	for _, fw := range report.FailedWindows {
		job.AddError(fw.Reason)
	}
	for _, g := range report.Gaps {
		job.AddError(g.Reason)
	}
	job.SetProgress(idx.TotalPages, report.Windows, len(idx.Nodes), len(report.FailedWindows), len(report.Gaps))

	if len(idx.Nodes) == 0 {
		job.SetStatus(StatusFailed, "analyzing")
		return
	}

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	if err := w.store.SaveDocument(idx, c); err != nil {
		log.Error("store failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "storing")
		return
	}

	if report.Partial() {
		log.Warn("build partial", "doc_id", docID, "gaps", len(report.Gaps), "failed_windows", len(report.FailedWindows))
		job.SetStatus(StatusPartial, "done")
		return
	}
	log.Info("build complete", "doc_id", docID, "nodes", len(idx.Nodes))
	job.SetStatus(StatusCompleted, "done")
}

// contentHash fingerprints the normalized corpus rather than the upload
// bytes, so re-uploads that parse identically dedup even when the container
// format differs.
func contentHash(c *corpus.Corpus) string {
	return ContentHashHex([]byte(c.PageText(1, c.TotalPages())))
}
