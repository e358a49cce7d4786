// Package httpapi exposes the ellipsis renderer to non-Go table hosts over JSON.
package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JoobyPM/ellipsis-render/internal/config"
	"github.com/JoobyPM/ellipsis-render/internal/ellipsis"
)

// Server holds the configuration and provides HTTP handlers.
type Server struct {
	Config *config.Config
	Logger *slog.Logger
}

// Cell is one value to render plus the consumer's intent.
// An empty Mode means display.
type Cell struct {
	Value any    `json:"value"`
	Mode  string `json:"mode,omitempty"`
}

// RenderRequest is the body of POST /api/v1/render. Options, when present,
// replace the column or default renderer settings entirely.
type RenderRequest struct {
	Column  string            `json:"column,omitempty"`
	Options *ellipsis.Options `json:"options,omitempty"`
	Cells   []Cell            `json:"cells"`
}

// RenderResponse is the reply to a render request; Results line up with Cells.
type RenderResponse struct {
	Results []any `json:"results"`
	Count   int   `json:"count"`
}

// Routes returns the HTTP handler with all routes configured.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/render", s.handleRender)
	mux.HandleFunc("/api/v1/columns", s.handleColumns)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleColumns lists the effective renderer options per configured column.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	columns := make(map[string]ellipsis.Options, len(s.Config.Columns))
	for _, name := range s.Config.ColumnNames() {
		opts, err := s.Config.RendererFor(name)
		if err != nil {
			continue
		}
		columns[name] = opts
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default": s.Config.Renderer,
		"columns": columns,
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := readAllLimit(r.Body, s.maxBodyBytes())
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	var req RenderRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if decodeErr := dec.Decode(&req); decodeErr != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	opts, err := s.Config.RendererFor(req.Column)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Options != nil {
		opts = *req.Options
	}
	renderer, err := ellipsis.New(opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	modes := make([]ellipsis.Mode, len(req.Cells))
	for i, c := range req.Cells {
		if c.Mode == "" {
			modes[i] = ellipsis.ModeDisplay
			continue
		}
		m, parseErr := ellipsis.ParseMode(c.Mode)
		if parseErr != nil {
			http.Error(w, parseErr.Error(), http.StatusBadRequest)
			return
		}
		modes[i] = m
	}

	results := make([]any, len(req.Cells))
	for i, c := range req.Cells {
		results[i] = renderer.Render(c.Value, modes[i], nil)
	}

	s.logger().Debug("rendered cells",
		"column", req.Column,
		"count", len(results),
		"cutoff", opts.Cutoff,
	)
	writeJSON(w, http.StatusOK, RenderResponse{Results: results, Count: len(results)})
}

func (s *Server) maxBodyBytes() int64 {
	if s.Config.Server.MaxBodyBytes > 0 {
		return s.Config.Server.MaxBodyBytes
	}
	return config.DefaultMaxBodyBytes
}

// writeJSON writes a JSON response with the given status code. HTML escaping
// is disabled so rendered fragments stay readable on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	//nolint:errchkjson // response writer errors handled by server
	enc.Encode(v)
}
