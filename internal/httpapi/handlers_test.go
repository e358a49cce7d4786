package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoobyPM/ellipsis-render/internal/config"
	"github.com/JoobyPM/ellipsis-render/internal/ellipsis"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.New()
	cfg.Renderer = ellipsis.Options{Cutoff: 10}
	cutoff := 17
	wordBreak := true
	cfg.Columns = map[string]config.ColumnOverride{
		"title": {Cutoff: &cutoff, WordBreak: &wordBreak},
	}
	return &Server{Config: cfg, Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
}

func doRender(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/render", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeResults(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RenderResponse
	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, len(resp.Results), resp.Count)
	return resp.Results
}

func TestHandleRender(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doRender(t, s, `{"cells":[
		{"value":"Supercalifragilistic"},
		{"value":"Supercalifragilistic","mode":"sort"},
		{"value":12345678901234567890,"mode":"display"},
		{"value":12345678901234567890,"mode":"filter"},
		{"value":null},
		{"value":{"nested":true}}
	]}`)
	raw := rec.Body.String()
	results := decodeResults(t, rec)
	require.Len(t, results, 6)

	assert.Equal(t, `<span class="ellipsis" title="Supercalifragilistic">Supercali…</span>`, results[0])
	assert.Equal(t, "Supercalifragilistic", results[1])
	assert.Equal(t, `<span class="ellipsis" title="12345678901234567890">123456789…</span>`, results[2])
	assert.Equal(t, json.Number("12345678901234567890"), results[3])
	assert.Nil(t, results[4])
	assert.Equal(t, map[string]any{"nested": true}, results[5])
	assert.NotContains(t, raw, `\u003c`, "fragments are not HTML-escaped in JSON")
}

func TestHandleRender_Column(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	results := decodeResults(t, doRender(t, s, `{"column":"title","cells":[{"value":"<b>The quick brown fox jumps</b>"}]}`))
	assert.Equal(t,
		`<span class="ellipsis" title="The quick brown fox jumps"><b>The quick brown…</b></span>`,
		results[0])
}

func TestHandleRender_OptionsOverride(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	results := decodeResults(t, doRender(t, s, `{"options":{"cutoff":4,"escape_html":true},"cells":[{"value":"a<b>c long"}]}`))
	assert.Equal(t, `<span class="ellipsis" title="a&lt;b&gt;c long">a&lt;b…</span>`, results[0])
}

func TestHandleRender_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"cells":`, http.StatusBadRequest},
		{"unknown mode", `{"cells":[{"value":"x","mode":"print"}]}`, http.StatusBadRequest},
		{"unknown column", `{"column":"nope","cells":[]}`, http.StatusBadRequest},
		{"invalid cutoff", `{"options":{"cutoff":0},"cells":[]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := doRender(t, newTestServer(t), tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandleRender_BodyTooLarge(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.Config.Server.MaxBodyBytes = 16

	rec := doRender(t, s, `{"cells":[{"value":"this body is too large"}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleRender_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/render", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleColumns(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/columns", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Default ellipsis.Options            `json:"default"`
		Columns map[string]ellipsis.Options `json:"columns"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ellipsis.Options{Cutoff: 10}, resp.Default)
	assert.Equal(t, ellipsis.Options{Cutoff: 17, WordBreak: true}, resp.Columns["title"])
}

func TestHandleHealthz(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestLogger(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/x")
	assert.Contains(t, out, "status=418")
}

func TestReadAllLimit(t *testing.T) {
	t.Parallel()

	data, err := readAllLimit(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = readAllLimit(strings.NewReader("123456"), 5)
	require.ErrorIs(t, err, errBodyTooLarge)
}
