package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raaihank/blackout/internal/extract"
	"github.com/raaihank/blackout/internal/pipeline"
	"github.com/raaihank/blackout/internal/redact"
	"github.com/raaihank/blackout/internal/websocket"
	"go.uber.org/zap"
)

// ProcessResponse is the body of a successful /process call
type ProcessResponse struct {
	Status      string       `json:"status"`
	Message     string       `json:"message"`
	OutputFiles []string     `json:"output_files"`
	Stats       ProcessStats `json:"stats"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// ProcessStats summarizes one processed upload
type ProcessStats struct {
	RawLength      int     `json:"raw_length"`
	CleanedLength  int     `json:"cleaned_length"`
	RedactedLength int     `json:"redacted_length"`
	LabelMatches   int     `json:"label_matches"`
	PatternMatches int     `json:"pattern_matches"`
	DurationMS     float64 `json:"duration_ms"`
}

// RedactRequest is the body of /redact
type RedactRequest struct {
	Text string `json:"text"`
}

// RedactResponse mirrors redact.Result
type RedactResponse struct {
	Text           string           `json:"text"`
	LabelMatches   int              `json:"label_matches"`
	PatternMatches int              `json:"pattern_matches"`
	Findings       []redact.Finding `json:"findings"`
	CacheHit       bool             `json:"cache_hit"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleInfo reports the active engine configuration
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	e := s.deps.Engines.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":           "blackout",
		"version":        s.deps.Version,
		"labels":         e.Labels().Len(),
		"patterns":       e.Patterns().Names(),
		"glyph":          string(e.Glyph()),
		"overlap_policy": e.Policy(),
		"fingerprint":    e.Fingerprint(),
		"export_formats": s.config.Export.Formats,
		"uptime":         time.Since(s.started).Round(time.Second).String(),
		"websocket":      s.deps.Hub.Stats(),
	})
}

// handleJobs lists recent jobs when a job store is configured
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeError(w, http.StatusNotFound, "job store not enabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	jobs, err := s.deps.Jobs.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list jobs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	stats, err := s.deps.Jobs.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to get job stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get job stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "stats": stats})
}

// handleProcess saves the uploaded file and runs the full pipeline on it
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	name := sanitizeFilename(header.Filename)
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if _, err := extract.DetectType(name); err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	path, err := s.saveUpload(requestID, name, file)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		log.Error("Failed to save upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	s.deps.Hub.JobStatus(requestID, websocket.JobStatusEvent{Source: name, Status: websocket.JobQueued})

	out, err := s.deps.Pipeline.Process(r.Context(), path)
	if err != nil {
		s.deps.Hub.JobStatus(requestID, websocket.JobStatusEvent{Source: name, Status: websocket.JobFailed, Error: err.Error()})
		log.Warn("Processing failed", zap.String("document", name), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrNoText) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	s.deps.Hub.JobStatus(requestID, websocket.JobStatusEvent{Source: name, Status: websocket.JobCompleted, OutputFiles: out.OutputFiles})
	s.deps.Hub.Redaction(requestID, websocket.RedactionEvent{
		Source:         name,
		LabelMatches:   out.Result.LabelMatches,
		PatternMatches: out.Result.PatternMatches,
		Rules:          ruleCounts(out.Result.Findings),
		InputLength:    out.CleanedLength,
		DurationMS:     float64(out.Duration.Microseconds()) / 1000,
		CacheHit:       out.CacheHit,
	})

	writeJSON(w, http.StatusOK, ProcessResponse{
		Status:      "success",
		Message:     "File processed successfully",
		OutputFiles: out.OutputFiles,
		Stats: ProcessStats{
			RawLength:      out.RawLength,
			CleanedLength:  out.CleanedLength,
			RedactedLength: out.RedactedLength,
			LabelMatches:   out.Result.LabelMatches,
			PatternMatches: out.Result.PatternMatches,
			DurationMS:     float64(out.Duration.Microseconds()) / 1000,
		},
		Warnings: out.Errors,
	})
}

// saveUpload writes the upload under a per-request directory so two uploads
// with the same name never collide
func (s *Server) saveUpload(requestID, name string, src io.Reader) (string, error) {
	dir := filepath.Join(s.config.Server.UploadDir, requestID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return path, dst.Close()
}

// handleRedact redacts a JSON text payload with the current engine
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	start := time.Now()

	var req RedactRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if !utf8.ValidString(req.Text) {
		writeError(w, http.StatusBadRequest, "text must be valid UTF-8")
		return
	}

	engine := s.deps.Engines.Current()
	res, hit := s.redact(r, engine, req.Text)

	s.deps.Hub.Redaction(requestID, websocket.RedactionEvent{
		Source:         "api",
		LabelMatches:   res.LabelMatches,
		PatternMatches: res.PatternMatches,
		Rules:          ruleCounts(res.Findings),
		InputLength:    utf8.RuneCountInString(req.Text),
		DurationMS:     float64(time.Since(start).Microseconds()) / 1000,
		CacheHit:       hit,
	})

	findings := res.Findings
	if findings == nil {
		findings = []redact.Finding{}
	}
	writeJSON(w, http.StatusOK, RedactResponse{
		Text:           res.Text,
		LabelMatches:   res.LabelMatches,
		PatternMatches: res.PatternMatches,
		Findings:       findings,
		CacheHit:       hit,
	})
}

func (s *Server) redact(r *http.Request, engine *redact.Engine, text string) (redact.Result, bool) {
	c := s.deps.Cache
	if c == nil || text == "" {
		return engine.Redact(text), false
	}
	ctx := r.Context()
	if res, ok, err := c.Get(ctx, engine.Fingerprint(), text); err == nil && ok {
		return res, true
	}
	res := engine.Redact(text)
	if err := c.Set(ctx, engine.Fingerprint(), text, res); err != nil {
		s.logger.Warn("Cache store failed", zap.Error(err))
	}
	return res, false
}

func ruleCounts(findings []redact.Finding) map[string]int {
	if len(findings) == 0 {
		return nil
	}
	out := make(map[string]int, len(findings))
	for _, f := range findings {
		out[f.Rule] += f.Count
	}
	return out
}

// sanitizeFilename keeps the base name and drops anything that could
// escape the upload directory
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "." || name == "/" || name == ".." || strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
