package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// multipartThreshold switches uploads to the multipart manager.
const multipartThreshold = 16 << 20

// NewsArchiveStore is the slice of domain.NewsStore the archiver needs.
type NewsArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.NewsItem, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotArchiveStore is the slice of domain.SnapshotStore the archiver needs.
type SnapshotArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.MarketSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver implements domain.Archiver. Rows older than the cutoff are written
// to a JSONL object and removed from Postgres only after the upload succeeds.
type Archiver struct {
	writer    domain.BlobWriter
	news      NewsArchiveStore
	snapshots SnapshotArchiveStore
	audit     domain.AuditStore
	now       func() time.Time
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, news NewsArchiveStore, snapshots SnapshotArchiveStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer:    writer,
		news:      news,
		snapshots: snapshots,
		audit:     audit,
		now:       time.Now,
	}
}

// ArchiveNews moves news items fetched before the cutoff to object storage.
func (a *Archiver) ArchiveNews(ctx context.Context, before time.Time) (int64, error) {
	items, err := a.news.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive news: %w", err)
	}
	return archive(ctx, a, "news", before, items, a.news.DeleteBefore)
}

// ArchiveSnapshots moves market snapshots taken before the cutoff to object
// storage.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	snaps, err := a.snapshots.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots: %w", err)
	}
	return archive(ctx, a, "snapshots", before, snaps, a.snapshots.DeleteBefore)
}

func archive[T any](
	ctx context.Context,
	a *Archiver,
	kind string,
	before time.Time,
	rows []T,
	deleteBefore func(context.Context, time.Time) (int64, error),
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}

	path := ArchivePath(kind, a.now())
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	deleted, err := deleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s cleanup: %w", kind, err)
	}

	if a.audit != nil {
		_ = a.audit.Log(ctx, "archive."+kind, map[string]any{
			"path":    path,
			"rows":    len(rows),
			"deleted": deleted,
			"before":  before.UTC().Format(time.RFC3339),
		})
	}
	return int64(len(rows)), nil
}

// ArchivePath returns archive/{kind}/{yyyy}/{mm}/{unix}.jsonl for the time
// the archive was taken.
func ArchivePath(kind string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("archive/%s/%04d/%02d/%d.jsonl", kind, at.Year(), int(at.Month()), at.Unix())
}

func marshalJSONL[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("jsonl row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
