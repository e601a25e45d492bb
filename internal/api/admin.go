package api

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/ideation-study/internal/export"
	"github.com/ashureev/ideation-study/internal/store"
)

// AdminHandler serves researcher endpoints: table counts and CSV export.
type AdminHandler struct {
	repo  store.Repository
	token string
	now   func() time.Time
}

// NewAdminHandler creates an admin handler. An empty token leaves export open.
func NewAdminHandler(repo store.Repository, token string) *AdminHandler {
	return &AdminHandler{repo: repo, token: token, now: time.Now}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/_debug/counts", h.Counts)
	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/_export/{table}", h.ExportTable)
		r.Get("/_export_all", h.ExportAll)
	})
}

func (h *AdminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" {
			got := r.URL.Query().Get("token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
				slog.Warn("Export denied", "path", r.URL.Path)
				Error(w, http.StatusForbidden, "forbidden")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Counts returns the row count of every study table.
func (h *AdminHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.repo.TableCounts(r.Context())
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, counts)
}

// ExportTable streams one table as CSV.
func (h *AdminHandler) ExportTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var buf bytes.Buffer
	if err := export.Table(r.Context(), &buf, h.repo, table); err != nil {
		var ute *export.UnknownTableError
		if errors.As(err, &ute) {
			Error(w, http.StatusForbidden, "table not allowed")
			return
		}
		writeStudyError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+table+".csv")
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("Export write interrupted", "table", table, "error", err)
	}
}

// ExportAll returns every table as CSV inside a ZIP archive.
func (h *AdminHandler) ExportAll(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	var buf bytes.Buffer
	if err := export.Zip(r.Context(), &buf, h.repo, now); err != nil {
		writeStudyError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.ZipName(now))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("Export write interrupted", "error", err)
	}
	slog.Info("Exported all tables", "bytes", buf.Len())
}
