package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// BlobBrowser reads object storage.
type BlobBrowser interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
}

// ArchiveHandler lets admins browse archived rows and published report files.
type ArchiveHandler struct {
	blobs  BlobBrowser
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(blobs BlobBrowser, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{blobs: blobs, logger: logger}
}

// List returns the objects under prefix.
// GET /api/admin/archives?prefix=archive/news/
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimPrefix(r.URL.Query().Get("prefix"), "/")
	objects, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list archives")
		return
	}
	if objects == nil {
		objects = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"prefix": prefix, "objects": objects})
}

// Download streams one object.
// GET /api/admin/archives/{path...}
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	p := r.PathValue("path")
	if p == "" || strings.Contains(p, "..") {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	body, err := h.blobs.Get(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to read archive")
		return
	}
	defer body.Close()

	switch path.Ext(p) {
	case ".md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	case ".jsonl":
		w.Header().Set("Content-Type", "application/x-ndjson")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive download interrupted",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
	}
}
