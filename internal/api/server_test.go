package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/clock"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/device/devicetest"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/config"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/logging"
	"github.com/srcfl/srcful-gateway-sub001/internal/lifecycle"
)

const testNow = 3_000_000

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// testServer creates a Server over a fresh blackboard with FAKE devices
// registered in the factory.
func testServer(t *testing.T, mutate func(*Deps)) (*Server, *blackboard.Blackboard) {
	t.Helper()

	bb := blackboard.New(blackboard.Options{Clock: clock.NewManual(testNow), Version: "test"})
	factory := device.NewFactory()
	factory.Register(devicetest.Connection, devicetest.FromConfig)

	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:     logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test"),
		Blackboard: bb,
		Devices:    factory,
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, bb
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

// ===== Construction =====

func TestNew_RequiresDeps(t *testing.T) {
	log := logging.Default()
	bb := blackboard.New(blackboard.Options{})
	f := device.NewFactory()

	tests := []struct {
		name string
		deps Deps
	}{
		{name: "no logger", deps: Deps{Blackboard: bb, Devices: f}},
		{name: "no blackboard", deps: Deps{Logger: log, Devices: f}},
		{name: "no factory", deps: Deps{Logger: log, Blackboard: bb}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

// ===== Health and metrics =====

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv, _ := testServer(t, func(d *Deps) {
			d.Health = map[string]HealthChecker{"db": checkerFunc(func(context.Context) error { return nil })}
		})

		w := do(t, srv, http.MethodGet, "/health", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body struct {
			Status  string            `json:"status"`
			Version string            `json:"version"`
			Checks  map[string]string `json:"checks"`
		}
		decode(t, w, &body)
		if body.Status != "ok" || body.Version != "test" || body.Checks["db"] != "ok" {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		srv, _ := testServer(t, func(d *Deps) {
			d.Health = map[string]HealthChecker{
				"db":   checkerFunc(func(context.Context) error { return nil }),
				"mqtt": checkerFunc(func(context.Context) error { return errors.New("not connected") }),
			}
		})

		w := do(t, srv, http.MethodGet, "/health", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
		if !strings.Contains(w.Body.String(), "not connected") {
			t.Errorf("body = %s, want failing check message", w.Body.String())
		}
	})
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := testServer(t, nil)
	if w := do(t, srv, http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("without handler status = %d, want 404", w.Code)
	}

	srv, _ = testServer(t, func(d *Deps) {
		d.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "gateway_up 1\n") //nolint:errcheck // Test handler
		})
	})
	w := do(t, srv, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "gateway_up") {
		t.Errorf("metrics = %d %q", w.Code, w.Body.String())
	}
}

// ===== State and messages =====

func TestState(t *testing.T) {
	srv, bb := testServer(t, nil)
	bb.Devices().Add(devicetest.NewOpen("X"))
	bb.AddInfo("hello")

	w := do(t, srv, http.MethodGet, "/api/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st blackboard.State
	decode(t, w, &st)
	if st.Version != "test" || st.Timestamp != testNow || len(st.Messages) != 1 {
		t.Errorf("state = %+v", st)
	}
	if len(st.Devices.Configured) != 1 || st.Devices.Configured[0].ID != "X" {
		t.Errorf("Configured = %+v", st.Devices.Configured)
	}
}

func TestMessages(t *testing.T) {
	srv, bb := testServer(t, nil)
	a := bb.AddInfo("a")
	bb.AddError("b")

	var list struct {
		Messages []blackboard.Message `json:"messages"`
		Count    int                  `json:"count"`
	}
	decode(t, do(t, srv, http.MethodGet, "/api/messages", ""), &list)
	if list.Count != 2 || list.Messages[1].Text != "b" {
		t.Fatalf("messages = %+v", list)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "delete existing", path: "/api/messages/" + strconv.Itoa(a.ID), want: http.StatusNoContent},
		{name: "delete again", path: "/api/messages/" + strconv.Itoa(a.ID), want: http.StatusNotFound},
		{name: "bad id", path: "/api/messages/abc", want: http.StatusBadRequest},
		{name: "clear", path: "/api/messages", want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, srv, http.MethodDelete, tt.path, ""); w.Code != tt.want {
				t.Errorf("DELETE %s = %d, want %d", tt.path, w.Code, tt.want)
			}
		})
	}

	if n := len(bb.Messages()); n != 0 {
		t.Errorf("len(Messages()) = %d after clear", n)
	}
}

// ===== Devices and connections =====

func TestDevices(t *testing.T) {
	srv, bb := testServer(t, nil)
	d := devicetest.NewOpen("X")
	bb.Devices().Add(d)

	var list struct {
		Count int `json:"count"`
	}
	decode(t, do(t, srv, http.MethodGet, "/api/devices", ""), &list)
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	if w := do(t, srv, http.MethodDelete, "/api/devices/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("DELETE missing = %d, want 404", w.Code)
	}
	if w := do(t, srv, http.MethodDelete, "/api/devices/X", ""); w.Code != http.StatusNoContent {
		t.Fatalf("DELETE X = %d, want 204", w.Code)
	}
	if bb.Devices().Contains(d) {
		t.Error("device still registered after DELETE")
	}
}

func TestDevices_ListsOnlyOpen(t *testing.T) {
	srv, bb := testServer(t, nil)
	bb.Devices().Add(devicetest.NewOpen("A"))
	lost := devicetest.NewOpen("B")
	bb.Devices().Add(lost)
	lost.SetOpen(false)

	var list struct {
		Devices []blackboard.DeviceState `json:"devices"`
		Count   int                      `json:"count"`
	}
	decode(t, do(t, srv, http.MethodGet, "/api/devices", ""), &list)
	if list.Count != 1 || len(list.Devices) != 1 {
		t.Fatalf("count = %d, devices = %d; want 1", list.Count, len(list.Devices))
	}
	if list.Devices[0].ID != "A" {
		t.Errorf("listed %q, want A", list.Devices[0].ID)
	}
}

func TestAddConnection(t *testing.T) {
	srv, bb := testServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/connections", `{"connection":"fake","sn":"N1","ip":"10.0.0.5"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST = %d %s, want 202", w.Code, w.Body.String())
	}

	if !bb.Settings().Devices.ContainsSerial("N1") {
		t.Error("connection not added to settings")
	}

	tasks := bb.PurgeTasks()
	if len(tasks) != 1 {
		t.Fatalf("inbox holds %d tasks, want 1", len(tasks))
	}
	ct, ok := tasks[0].(*lifecycle.ConnectionTask)
	if !ok {
		t.Fatalf("queued %T, want *lifecycle.ConnectionTask", tasks[0])
	}
	if ct.DueTimeMs() != testNow+lifecycle.StaggerMs || ct.Device().SerialNumber() != "N1" {
		t.Errorf("task due %d for %s", ct.DueTimeMs(), ct.Device().SerialNumber())
	}

	var list struct {
		Connections []device.Config `json:"connections"`
	}
	decode(t, do(t, srv, http.MethodGet, "/api/connections", ""), &list)
	if len(list.Connections) != 1 || list.Connections[0].Host() != "10.0.0.5" {
		t.Errorf("connections = %v", list.Connections)
	}
}

func TestAddConnection_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
		{name: "missing serial", body: `{"connection":"FAKE"}`, want: http.StatusUnprocessableEntity},
		{name: "unknown connection", body: `{"connection":"RS485","sn":"A"}`, want: http.StatusUnprocessableEntity},
		{name: "missing connection", body: `{"sn":"A"}`, want: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, bb := testServer(t, nil)
			w := do(t, srv, http.MethodPost, "/api/connections", tt.body)
			if w.Code != tt.want {
				t.Errorf("POST = %d, want %d", w.Code, tt.want)
			}
			if n := len(bb.PurgeTasks()); n != 0 {
				t.Errorf("%d tasks scheduled for a rejected connection", n)
			}
		})
	}
}

// ===== Endpoints and settings =====

func TestEndpoints(t *testing.T) {
	srv, bb := testServer(t, func(d *Deps) { d.Schemes = []string{"https", "mqtt"} })

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "https", body: `{"endpoint":"https://collector.example/v1"}`, want: http.StatusCreated},
		{name: "mqtt", body: `{"endpoint":"mqtt://harvest"}`, want: http.StatusCreated},
		{name: "unknown scheme", body: `{"endpoint":"ftp://x"}`, want: http.StatusUnprocessableEntity},
		{name: "relative", body: `{"endpoint":"/just/a/path"}`, want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, srv, http.MethodPost, "/api/endpoints", tt.body); w.Code != tt.want {
				t.Errorf("POST = %d, want %d", w.Code, tt.want)
			}
		})
	}

	if got := bb.Settings().Harvest.Endpoints(); len(got) != 2 {
		t.Fatalf("Endpoints() = %v, want 2", got)
	}

	if w := do(t, srv, http.MethodDelete, "/api/endpoints?endpoint=mqtt://nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("DELETE unknown = %d, want 404", w.Code)
	}
	if w := do(t, srv, http.MethodDelete, "/api/endpoints?endpoint=mqtt://harvest", ""); w.Code != http.StatusNoContent {
		t.Errorf("DELETE one = %d, want 204", w.Code)
	}
	if got := bb.Settings().Harvest.Endpoints(); len(got) != 1 {
		t.Errorf("Endpoints() = %v after delete", got)
	}

	do(t, srv, http.MethodDelete, "/api/endpoints", "")
	var list struct {
		Endpoints []string `json:"endpoints"`
	}
	decode(t, do(t, srv, http.MethodGet, "/api/endpoints", ""), &list)
	if list.Endpoints == nil || len(list.Endpoints) != 0 {
		t.Errorf("endpoints = %v, want empty list", list.Endpoints)
	}
}

func TestSettings(t *testing.T) {
	srv, bb := testServer(t, nil)

	w := do(t, srv, http.MethodPut, "/api/settings", `{"settings":{"api":{"gql_timeout":12}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT = %d %s", w.Code, w.Body.String())
	}
	if bb.Settings().API.GQLTimeout() != 12 {
		t.Errorf("GQLTimeout() = %d, want 12", bb.Settings().API.GQLTimeout())
	}
	if !strings.Contains(w.Body.String(), `"gql_timeout":12`) {
		t.Errorf("response = %s", w.Body.String())
	}

	if w := do(t, srv, http.MethodPut, "/api/settings", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("PUT invalid = %d, want 400", w.Code)
	}
}

// ===== Middleware =====

func TestMiddleware_RequestID(t *testing.T) {
	srv, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID = %q, want echoed abc", got)
	}

	w = do(t, srv, http.MethodGet, "/health", "")
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", got)
	}
}

func TestMiddleware_CORS(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	})

	tests := []struct {
		origin string
		want   string
	}{
		{origin: "http://panel.local", want: "http://panel.local"},
		{origin: "http://evil.example", want: ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: Allow-Origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

// ===== Lifecycle =====

func TestStartAndClose(t *testing.T) {
	srv, _ := testServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestStart_AppliesTimeouts(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.Config.Timeouts = config.APITimeoutConfig{Read: 3, Write: 4, Idle: 9}
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close()

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"ReadTimeout", srv.server.ReadTimeout, 3 * time.Second},
		{"ReadHeaderTimeout", srv.server.ReadHeaderTimeout, 3 * time.Second},
		{"WriteTimeout", srv.server.WriteTimeout, 4 * time.Second},
		{"IdleTimeout", srv.server.IdleTimeout, 9 * time.Second},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}
