// Package pipeline runs background jobs over the spread store.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// multipartThreshold switches uploads to the multipart path. It matches the
// S3 minimum part size.
const multipartThreshold = 5 * 1024 * 1024

// ExportResult describes one snapshot upload.
type ExportResult struct {
	Path  string
	Count int
	Bytes int
}

// Exporter writes a JSONL snapshot of every spread to object storage.
type Exporter struct {
	spreads domain.SpreadStore
	writer  domain.BlobWriter
	audit   domain.AuditStore // optional
	prefix  string
	now     func() time.Time
	logger  *slog.Logger
}

// NewExporter creates an Exporter. audit may be nil.
func NewExporter(
	spreads domain.SpreadStore,
	writer domain.BlobWriter,
	audit domain.AuditStore,
	prefix string,
	logger *slog.Logger,
) *Exporter {
	return &Exporter{
		spreads: spreads,
		writer:  writer,
		audit:   audit,
		prefix:  prefix,
		now:     time.Now,
		logger:  logger,
	}
}

// snapshotPath builds the object key, partitioned by UTC day:
//
//	exports/2025/01/31/spreads-1738281600.jsonl
func snapshotPath(prefix string, at time.Time) string {
	at = at.UTC()
	return path.Join(prefix, at.Format("2006/01/02"), fmt.Sprintf("spreads-%d.jsonl", at.Unix()))
}

// Run exports one snapshot. An empty store still produces an (empty) object
// so consumers can tell "no spreads" from "export did not run".
func (e *Exporter) Run(ctx context.Context) (ExportResult, error) {
	started := e.now()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	count := 0
	err := e.spreads.All(ctx, func(s domain.Spread) error {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode spread %s: %w", s.ID, err)
		}
		count++
		return nil
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("pipeline: export scan: %w", err)
	}

	res := ExportResult{Path: snapshotPath(e.prefix, started), Count: count, Bytes: buf.Len()}
	if buf.Len() >= multipartThreshold {
		err = e.writer.PutMultipart(ctx, res.Path, &buf, multipartThreshold)
	} else {
		err = e.writer.Put(ctx, res.Path, &buf, "application/x-ndjson")
	}
	if err != nil {
		return ExportResult{}, fmt.Errorf("pipeline: export upload: %w", err)
	}

	if e.audit != nil {
		if err := e.audit.Log(ctx, "export.spreads", map[string]any{
			"path":  res.Path,
			"count": res.Count,
			"bytes": res.Bytes,
		}); err != nil {
			e.logger.WarnContext(ctx, "export audit log failed", slog.String("error", err.Error()))
		}
	}

	e.logger.InfoContext(ctx, "spread snapshot exported",
		slog.String("path", res.Path),
		slog.Int("count", res.Count),
		slog.Duration("took", time.Since(started)),
	)
	return res, nil
}

// RunEvery exports on a fixed interval until ctx is cancelled. Failed runs
// are logged and retried on the next tick.
func (e *Exporter) RunEvery(ctx context.Context, interval time.Duration) error {
	e.logger.InfoContext(ctx, "exporter started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("exporter stopped")
			return nil
		case <-ticker.C:
			if _, err := e.Run(ctx); err != nil {
				e.logger.ErrorContext(ctx, "export run failed", slog.String("error", err.Error()))
			}
		}
	}
}
