package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vyrodovalexey/avafields/internal/cache"
	"github.com/vyrodovalexey/avafields/internal/config"
	"github.com/vyrodovalexey/avafields/internal/observability"
	"github.com/vyrodovalexey/avafields/internal/schema"
	"github.com/vyrodovalexey/avafields/internal/store"
)

const testDataset = `
dataElements:
  - id: de1
    name: ANC visits
    code: ANC
    valueType: NUMBER
    categoryCombo:
      id: cc1
      name: default
  - id: de2
    name: Births
    valueType: INTEGER
categoryCombos:
  - id: cc1
    name: default
`

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	registry, err := schema.NewRegistry(
		schema.New("dataElement", "dataElements",
			schema.Property{Name: "id", Persisted: true},
			schema.Property{Name: "name", Persisted: true},
			schema.Property{Name: "code", Persisted: true},
			schema.Property{Name: "valueType"},
			schema.Property{Name: "categoryCombo", Kind: schema.KindReference, Type: "categoryCombo", Owner: true},
		),
		schema.New("categoryCombo", "categoryCombos",
			schema.Property{Name: "id"},
			schema.Property{Name: "name"},
		),
	)
	require.NoError(t, err)
	return registry
}

func testStore(t *testing.T, dataset string) *store.Store {
	t.Helper()

	st, err := store.LoadFromReader(strings.NewReader(dataset))
	require.NoError(t, err)
	return st
}

func newTestServer(t *testing.T, mutate func(*config.Config), opts ...Option) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	state := NewState(cfg, testRegistry(t), testStore(t, testDataset), nil, nil)
	s, err := New(cfg, state, opts...)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeWebMessage(t *testing.T, rec *httptest.ResponseRecorder) WebMessage {
	t.Helper()

	var msg WebMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	return msg
}

func TestNew_RequiresState(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNoState)
}

func TestServer_Objects(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Fields.Presets = map[string][]string{":label": {"name", "code", "shortName"}}
	})

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{
			name:   "list with explicit fields",
			target: "/api/dataElements?fields=id,name",
			want:   `{"dataElements":[{"id":"de1","name":"ANC visits"},{"id":"de2","name":"Births"}]}`,
		},
		{
			name:   "list with preset",
			target: "/api/dataElements?fields=:identifiable",
			want:   `{"dataElements":[{"id":"de1","name":"ANC visits","code":"ANC"},{"id":"de2","name":"Births"}]}`,
		},
		{
			name:   "configured preset",
			target: "/api/dataElements?fields=:label",
			want:   `{"dataElements":[{"name":"ANC visits","code":"ANC"},{"name":"Births"}]}`,
		},
		{
			name:   "exclusion",
			target: "/api/dataElements?fields=*,!categoryCombo,!valueType,!code",
			want:   `{"dataElements":[{"id":"de1","name":"ANC visits"},{"id":"de2","name":"Births"}]}`,
		},
		{
			name:   "default fields",
			target: "/api/categoryCombos",
			want:   `{"categoryCombos":[{"id":"cc1","name":"default"}]}`,
		},
		{
			name:   "single object with nested selection",
			target: "/api/dataElements/de1?fields=id,categoryCombo[name]",
			want:   `{"id":"de1","categoryCombo":{"name":"default"}}`,
		},
		{
			name:   "bare reference",
			target: "/api/dataElements/de1?fields=categoryCombo",
			want:   `{"categoryCombo":{"id":"cc1"}}`,
		},
		{
			name:   "transformation",
			target: "/api/dataElements/de1?fields=name~rename(label)",
			want:   `{"label":"ANC visits"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := get(t, s.Handler(), tt.target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestServer_Errors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantMsg    string
		wantErrors bool
	}{
		{
			name:       "syntax error",
			target:     "/api/dataElements?fields=a]",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "fields syntax error",
		},
		{
			name:       "unknown transformer",
			target:     "/api/dataElements?fields=name~nope",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "unknown transformer",
			wantErrors: true,
		},
		{
			name:       "unknown resource",
			target:     "/api/indicators",
			wantStatus: http.StatusNotFound,
			wantMsg:    "resource not found",
		},
		{
			name:       "unknown object",
			target:     "/api/dataElements/missing",
			wantStatus: http.StatusNotFound,
			wantMsg:    "object not found",
		},
		{
			name:       "unknown schema",
			target:     "/api/schemas/indicator",
			wantStatus: http.StatusNotFound,
			wantMsg:    "schema not found",
		},
		{
			name:       "no route",
			target:     "/nope",
			wantStatus: http.StatusNotFound,
			wantMsg:    "no handler",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := get(t, s.Handler(), tt.target)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			msg := decodeWebMessage(t, rec)
			assert.Equal(t, StatusError, msg.Status)
			assert.Equal(t, tt.wantStatus, msg.HTTPStatusCode)
			assert.Equal(t, http.StatusText(tt.wantStatus), msg.HTTPStatus)
			assert.Contains(t, msg.Message, tt.wantMsg)
			if tt.wantErrors {
				assert.NotEmpty(t, msg.Errors)
			}
		})
	}
}

func TestServer_Schemas(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/api/schemas?fields=name,plural")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"schemas":[
		{"name":"categoryCombo","plural":"categoryCombos"},
		{"name":"dataElement","plural":"dataElements"}
	]}`, rec.Body.String())

	rec = get(t, s.Handler(), "/api/schemas/dataElements?fields=name,properties[name,kind]")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Name       string `json:"name"`
		Properties []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dataElement", body.Name)
	require.Len(t, body.Properties, 5)
	assert.Equal(t, "categoryCombo", body.Properties[4].Name)
	assert.Equal(t, "reference", body.Properties[4].Kind)
}

func TestServer_SchemalessResource(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	st := testStore(t, "widgets:\n  - id: w1\n    size: 3\n    color: red\n")
	s, err := New(cfg, NewState(cfg, testRegistry(t), st, nil, nil))
	require.NoError(t, err)

	rec := get(t, s.Handler(), "/api/widgets/w1?fields=size")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"size":3}`, rec.Body.String())
}

func TestServer_RequestID(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/api/categoryCombos", RequestIDHeader, "req-42")
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec = get(t, s.Handler(), "/api/categoryCombos")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestServer_Recovery(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	s.engine.GET("/panic", func(*gin.Context) { panic("boom") })

	rec := get(t, s.Handler(), "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, StatusError, decodeWebMessage(t, rec).Status)
}

func TestServer_RateLimit(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("ratelimit_test")
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.01, Burst: 1}
	}, WithMetrics(metrics))

	rec := get(t, s.Handler(), "/api/categoryCombos")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, s.Handler(), "/api/categoryCombos")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, StatusError, decodeWebMessage(t, rec).Status)

	// probes bypass the limiter
	rec = get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, s.Handler(), "/metrics")
	assert.Contains(t, rec.Body.String(), "ratelimit_test_http_rate_limited_total 1")
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("server_test")
	s := newTestServer(t, nil, WithMetrics(metrics))

	get(t, s.Handler(), "/api/dataElements/de1")
	get(t, s.Handler(), "/api/dataElements/missing")

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `server_test_http_requests_total{method="GET",route="/api/:resource/:id",status="200"} 1`)
	assert.Contains(t, body, `server_test_http_requests_total{method="GET",route="/api/:resource/:id",status="404"} 1`)
}

func TestServer_MetricsDisabled(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Metrics.Enabled = false
	}, WithMetrics(observability.NewMetrics("disabled_test")))

	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	backend, err := cache.New(&config.CacheConfig{Enabled: true, Type: config.CacheTypeMemory, MaxEntries: 10}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	s := newTestServer(t, nil, WithCache(backend), WithVersion("1.0.0"))

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.0.0"`)

	rec = get(t, s.Handler(), "/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	var ready struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "2 schemas", ready.Checks["schemas"].Message)
	assert.Equal(t, "2 resources, 3 objects", ready.Checks["store"].Message)
	assert.Equal(t, "healthy", ready.Checks["cache"].Status)

	rec = get(t, s.Handler(), "/live")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_NotReadyWithoutSchemas(t *testing.T) {
	t.Parallel()

	registry, err := schema.NewRegistry()
	require.NoError(t, err)
	empty, err := store.New(nil)
	require.NoError(t, err)

	s, err := New(nil, NewState(nil, registry, empty, nil, nil))
	require.NoError(t, err)

	rec := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_CachesTrees(t *testing.T) {
	t.Parallel()

	backend, err := cache.New(&config.CacheConfig{Enabled: true, Type: config.CacheTypeMemory, MaxEntries: 10}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	cfg := config.DefaultConfig()
	s, err := New(cfg, NewState(cfg, testRegistry(t), testStore(t, testDataset), backend, nil))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := get(t, s.Handler(), "/api/dataElements?fields=id")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	stats := backend.(cache.CacheWithStats).Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Size)

	// a new state misses the trees cached by the previous one
	s.SetState(NewState(cfg, testRegistry(t), testStore(t, testDataset), backend, nil))
	get(t, s.Handler(), "/api/dataElements?fields=id")
	assert.Equal(t, int64(2), backend.(cache.CacheWithStats).Stats().Misses)
}

func TestServer_SetState(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	before := s.State()

	s.SetState(nil)
	assert.Same(t, before, s.State())

	next := NewState(nil, testRegistry(t), testStore(t, "categoryCombos:\n  - id: cc2\n    name: gender\n"), nil, nil)
	s.SetState(next)
	assert.Same(t, next, s.State())
	assert.NotEqual(t, before.Generation, next.Generation)

	rec := get(t, s.Handler(), "/api/categoryCombos?fields=name")
	assert.JSONEq(t, `{"categoryCombos":[{"name":"gender"}]}`, rec.Body.String())

	rec = get(t, s.Handler(), "/api/dataElements")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoadState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	schemasPath := filepath.Join(dir, "schemas.yaml")
	dataPath := filepath.Join(dir, "data.yaml")

	require.NoError(t, os.WriteFile(schemasPath, []byte(`
schemas:
  - name: categoryCombo
    plural: categoryCombos
    properties:
      - name: id
      - name: name
`), 0o600))
	require.NoError(t, os.WriteFile(dataPath, []byte("categoryCombos:\n  - id: cc1\n    name: default\n"), 0o600))

	cfg := config.DefaultConfig()
	cfg.Schemas.Path = schemasPath
	cfg.Data.Path = dataPath

	state, err := LoadState(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Registry.Len())
	assert.Equal(t, 1, state.Store.Len())
	assert.Equal(t, "*", state.DefaultFields)

	t.Run("without dataset", func(t *testing.T) {
		t.Parallel()

		noData := *cfg
		noData.Data.Path = ""
		state, err := LoadState(&noData, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, state.Store.Len())
	})

	t.Run("dataset mismatch", func(t *testing.T) {
		t.Parallel()

		badPath := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(badPath, []byte("categoryCombos:\n  - id: cc1\n    color: red\n"), 0o600))

		bad := *cfg
		bad.Data.Path = badPath
		_, err := LoadState(&bad, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dataset does not match schemas")
	})

	t.Run("missing schemas", func(t *testing.T) {
		t.Parallel()

		missing := *cfg
		missing.Schemas.Path = filepath.Join(dir, "absent.yaml")
		_, err := LoadState(&missing, nil, nil)
		assert.Error(t, err)
	})
}

func TestServer_StartShutdown(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.Address = "127.0.0.1"
		cfg.Server.Port = 0
	})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/live")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-errCh)
	assert.False(t, s.IsRunning())

	// a stopped server shuts down again without error
	assert.NoError(t, s.Shutdown(ctx))
}

// TestServer_Spans is not parallel because it replaces the global tracer
// provider.
func TestServer_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	oldTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(oldTP)

	s := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/api/dataElements/de1?fields=id")
	require.Equal(t, http.StatusOK, rec.Code)

	var found bool
	for _, span := range exporter.GetSpans() {
		if span.Name != "GET /api/:resource/:id" {
			continue
		}
		found = true
		assert.Contains(t, span.Attributes, attribute.Int("http.status_code", http.StatusOK))
		assert.Contains(t, span.Attributes, attribute.String("http.route", "/api/:resource/:id"))
	}
	assert.True(t, found)
}
