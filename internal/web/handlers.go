package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sdtm/internal/compliance"
	"github.com/JonMunkholm/sdtm/internal/core"
	"github.com/JonMunkholm/sdtm/internal/logging"
	"github.com/JonMunkholm/sdtm/internal/report"
	"github.com/JonMunkholm/sdtm/internal/store"
)

const (
	// multipartMemory is how much of a multipart body is kept in memory;
	// the rest spills to temp files.
	multipartMemory = 32 << 20

	// formOverhead covers multipart boundaries and the non-file fields.
	formOverhead = 1 << 20

	maxListLimit = 500

	// healthTimeout bounds the store ping on /healthz.
	healthTimeout = 2 * time.Second

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ============================================================================
// Runs
// ============================================================================

// handleCreateRun runs every uploaded "file" part against "standardId".
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.readUploads(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	summary, err := s.service.Run(r.Context(), r.FormValue("standardId"), uploads)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Location", "/api/runs/"+summary.ID)
	writeJSON(w, r, http.StatusCreated, summary)
}

// handleCheck checks a single dataset against a standard's definition.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.readUploads(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if len(uploads) > 1 {
		err := fmt.Errorf("too many files: %d (max 1)", len(uploads))
		respondError(w, r, err, statusFor(err))
		return
	}

	summary, err := s.service.Check(r.Context(), r.FormValue("standardId"), uploads[0])
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, r, http.StatusOK, summary)
}

// handleListRuns returns stored runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", store.DefaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	runs, err := s.service.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if runs == nil {
		runs = []*core.RunSummary{}
	}

	writeJSON(w, r, http.StatusOK, runs)
}

// handleGetRun returns one stored run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// ============================================================================
// Reports
// ============================================================================

func (s *Server) handleDefineXML(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteDefineXML(&buf, summary); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment("define-"+summary.ID+".xml"))
	w.Write(buf.Bytes())
}

func (s *Server) handleDefineHTML(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.DefineHTML(summary).Render(r.Context(), &buf); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	data, err := report.Workbook(summary)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", attachment("compliance-"+summary.ID+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// ============================================================================
// Standards and health
// ============================================================================

func (s *Server) handleListStandards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Standards())
}

// handleGetStandard returns the loaded definition for one standard.
func (s *Server) handleGetStandard(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Definition(r.Context(), chi.URLParam(r, "standardID"))
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, core.ErrUnknownStandard) {
			status = http.StatusNotFound
		}
		respondError(w, r, err, status)
		return
	}
	writeJSON(w, r, http.StatusOK, def)
}

type healthResponse struct {
	Status          string                   `json:"status"`
	Store           string                   `json:"store"`
	DefaultStandard string                   `json:"defaultStandard"`
	Runs            compliance.LimiterStatus `json:"runs"`
}

// handleHealth reports 503 while the run store is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:          "ok",
		Store:           "ok",
		DefaultStandard: s.service.DefaultStandard(),
		Runs:            s.service.Limiter().Status(),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("run store ping failed", "error", err)
		resp.Status = "degraded"
		resp.Store = "unavailable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, r, status, resp)
}

// ============================================================================
// Helpers
// ============================================================================

// readUploads reads every "file" part of a multipart request. The body is
// capped at the configured per-file size times the file limit.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]compliance.Upload, error) {
	maxBody := s.cfg.Upload.MaxFileSize*int64(s.cfg.Upload.MaxFiles) + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body too large (max %d bytes): %w", tooLarge.Limit, err)
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, core.ErrNoDatasets
		}
		return nil, fmt.Errorf("malformed multipart form: %w", err)
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return nil, core.ErrNoDatasets
	}

	uploads := make([]compliance.Upload, 0, len(headers))
	for _, h := range headers {
		data, err := readPart(h)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, compliance.Upload{Name: h.Filename, Data: data})
	}
	return uploads, nil
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: open upload: %w", h.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: read upload: %w", h.Filename, err)
	}
	return data, nil
}

// loadRun fetches the run named in the URL, writing the error response
// itself when it fails.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*core.RunSummary, bool) {
	summary, err := s.service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return nil, false
	}
	return summary, true
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// clientIP strips the port from RemoteAddr when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
