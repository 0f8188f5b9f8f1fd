package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/FocuswithJustin/Scribe/core/plugins"
	"github.com/FocuswithJustin/Scribe/internal/cache"
	"github.com/FocuswithJustin/Scribe/internal/server"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Cached    bool   `json:"cached,omitempty"`
	Timestamp string `json:"timestamp"`
}

// FormatInfo describes a registered reader.
type FormatInfo struct {
	Format      string   `json:"format"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Extensions  []string `json:"extensions"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Uptime  string      `json:"uptime"`
	Readers int         `json:"readers"`
	Clients int         `json:"websocket_clients"`
	Cache   cache.Stats `json:"cache"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"name":    "Scribe API",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /formats",
			"POST /parse",
			"POST /jobs",
			"GET /jobs/:id",
			"DELETE /jobs/:id",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	respond(w, http.StatusOK, HealthInfo{
		Status:  "healthy",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Readers: len(plugins.List()),
		Clients: s.hub.ClientCount(),
		Cache:   s.results.Stats(),
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	readers := plugins.List()
	formats := make([]FormatInfo, 0, len(readers))
	for _, p := range readers {
		m := p.Manifest
		formats = append(formats, FormatInfo{
			Format:      m.Format,
			Name:        m.Name,
			Version:     m.Version,
			Description: m.Description,
			Extensions:  m.Extensions,
		})
	}
	respondMeta(w, http.StatusOK, formats, &APIMeta{Total: len(formats)})
}

// handleParse handles POST /parse. A JSON body is a ParseRequest; any
// other body is the source itself, described by the format, name and
// spans query parameters.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	req, ok := s.readParseRequest(w, r)
	if !ok {
		return
	}
	data, cached, err := s.parse(r.Context(), req)
	if err != nil {
		status, code := errorStatus(err)
		respondError(w, status, code, err.Error())
		return
	}
	if cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	respondMeta(w, http.StatusOK, json.RawMessage(data), &APIMeta{Cached: cached})
}

// readParseRequest decodes the request body within the size limit and
// writes the error response itself when it fails.
func (s *Server) readParseRequest(w http.ResponseWriter, r *http.Request) (ParseRequest, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE",
				"Body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		} else {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read body")
		}
		return ParseRequest{}, false
	}

	var req ParseRequest
	if server.ValidateContentType(r.Header.Get("Content-Type"), []string{"application/json"}) {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
			return ParseRequest{}, false
		}
	} else {
		req.Source = string(body)
	}

	q := r.URL.Query()
	if f := q.Get("format"); f != "" {
		req.Format = f
	}
	if n := q.Get("name"); n != "" {
		req.Name = n
	}
	if v := q.Get("spans"); v != "" {
		spans, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "spans must be a boolean")
			return ParseRequest{}, false
		}
		req.Spans = &spans
	}
	return req, true
}

func respond(w http.ResponseWriter, status int, data any) {
	respondMeta(w, status, data, &APIMeta{})
}

func respondMeta(w http.ResponseWriter, status int, data any, meta *APIMeta) {
	meta.Timestamp = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, status, APIResponse{Success: true, Data: data, Meta: meta})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
