// internal/ingest/pipeline.go
//
// The ingestion pipeline: validate → extract → upload-all → finalize.
//
// Context
// -------
// One pipeline instance serves the whole process.  Each unit of work is
// keyed by a freshly generated site id, owns a private staging
// directory named after that id, and runs on a pool worker, never on
// the request thread.  The site row (inserted `pending` by the HTTP
// layer before the request returns) is the durable record of progress:
// this package is the only writer allowed to flip it to completed or
// failed.
//
// Failure semantics
// -----------------
// Any upload failure fails the entire unit: every object already
// uploaded under the site prefix is rolled back, then the row is marked
// failed with the triggering error.  A failed rollback is logged and
// counted but never blocks the failed mark; orphaned objects are an
// accepted degraded outcome for an out-of-band sweep.  Temporary local
// resources are released on every exit path.
//
// Re-running a unit is safe only while the row is pending or failed,
// and the same id must never run twice concurrently.  Ids are fresh
// UUIDs per upload, so both hold by construction.

package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/hoster/internal/archive"
	"github.com/yanizio/hoster/internal/metrics"
	"github.com/yanizio/hoster/internal/storage"
)

// uploadParallelism bounds concurrent puts within one unit.  Units are
// already serialized by the pool, so this stays small.
const uploadParallelism = 4

// Registry is the slice of the site repository the pipeline needs.
type Registry interface {
	MarkCompleted(ctx context.Context, id, contentURL string) error
	MarkFailed(ctx context.Context, id, detail string) error
}

// Options tunes one Pipeline.
type Options struct {
	// StagingRoot is the parent of per-unit staging directories.
	StagingRoot string
	// MaxArchiveBytes caps the uncompressed size of one archive.
	MaxArchiveBytes int64
	// OpTimeout bounds every storage call; a hung backend turns into
	// an upload failure instead of a stuck worker.
	OpTimeout time.Duration
}

// Pipeline orchestrates ingestion units against one storage backend and
// one registry.
type Pipeline struct {
	store storage.Backend
	reg   Registry
	log   *zap.SugaredLogger
	opts  Options
}

func NewPipeline(store storage.Backend, reg Registry, log *zap.SugaredLogger, opts Options) *Pipeline {
	return &Pipeline{store: store, reg: reg, log: log, opts: opts}
}

// IngestArchive runs one ZIP unit end to end.  zipPath is the uploaded
// archive already saved by the handler; both it and the staging
// directory are removed before return.
func (p *Pipeline) IngestArchive(ctx context.Context, siteID, zipPath string) {
	staging := filepath.Join(p.opts.StagingRoot, siteID)
	start := time.Now()
	metrics.IngestStartedTotal.Inc()
	defer func() {
		p.cleanup(zipPath, staging)
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	p.log.Infow("ingest started", "site", siteID, "archive", zipPath)

	if err := archive.Extract(zipPath, staging, p.opts.MaxArchiveBytes); err != nil {
		p.fail(ctx, siteID, err, false)
		return
	}
	if _, err := archive.FindEntry(staging); err != nil {
		p.fail(ctx, siteID, err, false)
		return
	}
	if err := p.uploadTree(ctx, siteID, staging); err != nil {
		p.fail(ctx, siteID, err, true)
		return
	}
	p.complete(ctx, siteID)
}

// IngestHTML runs one pasted-HTML unit: the code becomes the entry
// document of a single-file site and flows through the same upload and
// finalize steps as an archive.
func (p *Pipeline) IngestHTML(ctx context.Context, siteID, htmlCode string) {
	staging := filepath.Join(p.opts.StagingRoot, siteID)
	start := time.Now()
	metrics.IngestStartedTotal.Inc()
	defer func() {
		p.cleanup("", staging)
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	p.log.Infow("paste ingest started", "site", siteID, "bytes", len(htmlCode))

	if err := os.MkdirAll(staging, 0o755); err != nil {
		p.fail(ctx, siteID, fmt.Errorf("create staging dir: %w", err), false)
		return
	}
	entry := filepath.Join(staging, "index.html")
	if err := os.WriteFile(entry, []byte(htmlCode), 0o644); err != nil {
		p.fail(ctx, siteID, fmt.Errorf("write entry document: %w", err), false)
		return
	}
	if err := p.uploadTree(ctx, siteID, staging); err != nil {
		p.fail(ctx, siteID, err, true)
		return
	}
	p.complete(ctx, siteID)
}

/*──────────────────────────── upload step ──────────────────────────────────*/

// uploadTree puts every file under dir, fanning out on an errgroup and
// joining before the finalize/rollback decision.  The first error
// cancels the group.
func (p *Pipeline) uploadTree(ctx context.Context, siteID, dir string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadParallelism)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := siteID + "/" + filepath.ToSlash(rel)
		g.Go(func() error {
			opCtx, cancel := context.WithTimeout(gctx, p.opts.OpTimeout)
			defer cancel()
			if err := p.store.Put(opCtx, path, key, storage.GuessContentType(key)); err != nil {
				return fmt.Errorf("upload %q: %w", key, err)
			}
			metrics.UploadedObjectsTotal.Inc()
			return nil
		})
		return nil
	})
	if err != nil {
		// Walk failures still need the group drained before rollback.
		_ = g.Wait()
		return fmt.Errorf("walk staging dir: %w", err)
	}
	return g.Wait()
}

/*──────────────────────────── finalize paths ───────────────────────────────*/

// complete flips the row to completed with the resolved site URL.
func (p *Pipeline) complete(ctx context.Context, siteID string) {
	opCtx, cancel := p.finalizeCtx(ctx)
	defer cancel()

	url := p.store.SiteURL(siteID)
	if err := p.reg.MarkCompleted(opCtx, siteID, url); err != nil {
		// The objects are live but the row still says pending.  Record
		// the failure so the client's poll loop terminates.
		p.log.Errorw("mark completed failed", "site", siteID, "err", err)
		p.fail(ctx, siteID, fmt.Errorf("registry update: %w", err), true)
		return
	}
	metrics.IngestCompletedTotal.Inc()
	p.log.Infow("ingest completed", "site", siteID, "url", url)
}

// fail records the terminal failure, rolling back uploaded objects
// first when any exist.
func (p *Pipeline) fail(ctx context.Context, siteID string, cause error, rollback bool) {
	if rollback {
		p.rollback(ctx, siteID)
	}
	opCtx, cancel := p.finalizeCtx(ctx)
	defer cancel()
	if err := p.reg.MarkFailed(opCtx, siteID, cause.Error()); err != nil {
		p.log.Errorw("mark failed failed", "site", siteID, "err", err)
	}
	metrics.IngestFailedTotal.Inc()
	p.log.Warnw("ingest failed", "site", siteID, "err", cause)
}

// rollback deletes everything under the site prefix.  Failure here is
// logged and counted, never fatal: orphaned objects beat a crashed
// worker.
func (p *Pipeline) rollback(ctx context.Context, siteID string) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.OpTimeout)
	defer cancel()
	if err := storage.Purge(opCtx, p.store, siteID); err != nil {
		metrics.RollbackErrorsTotal.Inc()
		p.log.Errorw("rollback failed, objects orphaned", "site", siteID, "err", err)
		return
	}
	p.log.Infow("rollback completed", "site", siteID)
}

// finalizeCtx shields the terminal row update from upload-path
// cancellation while still honoring the per-op timeout.
func (p *Pipeline) finalizeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.opts.OpTimeout)
}

// cleanup removes the uploaded archive and the staging directory on
// every exit path, success or failure.
func (p *Pipeline) cleanup(zipPath, staging string) {
	if zipPath != "" {
		if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
			p.log.Warnw("cleanup archive failed", "path", zipPath, "err", err)
		}
	}
	if err := os.RemoveAll(staging); err != nil {
		p.log.Warnw("cleanup staging failed", "path", staging, "err", err)
	}
}
