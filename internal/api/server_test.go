package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/classify"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/schema"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/source"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/update"
	"github.com/nerrad567/gray-logic-catalog/internal/device"
	"github.com/nerrad567/gray-logic-catalog/internal/history"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-catalog/migrations"
)

// stubUpdater records the options of every cycle it is asked to run.
type stubUpdater struct {
	calls chan update.Options
}

func newStubUpdater() *stubUpdater {
	return &stubUpdater{calls: make(chan update.Options, 4)}
}

func (u *stubUpdater) UpdateAll(_ context.Context, opts update.Options) *update.Report {
	u.calls <- opts
	return &update.Report{
		ID:           "stub-report",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Forced:       opts.ForceUpdate,
		Sources:      map[string]update.SourceResult{"z2m": {Status: update.StatusSuccess, Records: 2}},
		TotalDevices: 3,
		Errors:       []update.SourceError{},
	}
}

type testDeps struct {
	corpus  *device.Corpus
	updater *stubUpdater
	reports *history.SQLiteRepository
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

// testServer builds a server over an in-memory database holding a small
// corpus: one committed merge and an id shared by two categories.
func testServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	corpus := device.NewCorpus(device.NewSQLiteRepository(db.DB))
	if err := corpus.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	seedCorpus(t, corpus)

	registry, err := source.NewRegistry([]source.Source{
		{ID: "z2m", Name: "Zigbee2MQTT", Endpoints: map[string]string{"main": "http://127.0.0.1/z2m"}, RefreshInterval: time.Hour, RuleSet: source.RuleSetConverters},
		{ID: "zha", Name: "ZHA quirks", Endpoints: map[string]string{"main": "http://127.0.0.1/zha"}, RefreshInterval: time.Hour, RuleSet: source.RuleSetQuirks},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	deps := &testDeps{
		corpus:  corpus,
		updater: newStubUpdater(),
		reports: history.NewSQLiteRepository(db.DB),
	}

	log := testLogger()
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:     log,
		Corpus:     corpus,
		Schema:     schema.NewDefaultDatabase(),
		Sources:    registry,
		Classifier: classify.Default(),
		Updater:    deps.updater,
		Reports:    deps.reports,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup

	// Initialise hub for tests
	hubCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(hubCtx)

	return srv, deps
}

func seedCorpus(t *testing.T, corpus *device.Corpus) {
	t.Helper()
	ctx := context.Background()

	_, err := corpus.Upsert(ctx, []device.Entry{
		{ID: "wall_switch_2gang_ac", Category: "switch", Capabilities: []string{"onoff"}, ManufacturerIDs: []string{"_TZ3000_aaaa0001"}},
		{ID: "tuya_wall_switch_2_gang_ac_v2", Category: "switch", Capabilities: []string{"dim"}, ManufacturerIDs: []string{"_TZ3000_bbbb0002"}},
		{ID: "ts0601", Category: "plug", Capabilities: []string{"onoff"}},
		{ID: "ts0601", Category: "dimmer", Capabilities: []string{"onoff", "dim"}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	err = corpus.ApplyMerge(ctx, device.Merge{
		Canonical: device.Entry{
			ID:              "wall_switch_2gang_ac",
			Category:        "switch",
			Capabilities:    []string{"onoff", "dim"},
			ManufacturerIDs: []string{"_TZ3000_aaaa0001", "_TZ3000_bbbb0002"},
		},
		Retired:    []device.Key{{ID: "tuya_wall_switch_2_gang_ac_v2", Category: "switch"}},
		MergedFrom: []string{"wall_switch_2gang_ac", "tuya_wall_switch_2_gang_ac_v2"},
	})
	if err != nil {
		t.Fatalf("ApplyMerge() error = %v", err)
	}
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rec.Body.String())
	}
}

func TestNew_MissingDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() with no corpus should fail")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if body["devices"] != float64(3) {
		t.Errorf("devices = %v, want 3", body["devices"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestListDevices(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all active", "", 3},
		{"by category", "?category=switch", 1},
		{"unknown category", "?category=nope", 0},
		{"archived", "?archived=true", 1},
		{"archived in other category", "?archived=true&category=plug", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/api/v1/devices"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var body struct {
				Devices []device.Entry `json:"devices"`
				Count   int            `json:"count"`
			}
			decodeBody(t, rec, &body)
			if body.Count != tt.want || len(body.Devices) != tt.want {
				t.Errorf("count = %d (%d devices), want %d", body.Count, len(body.Devices), tt.want)
			}
		})
	}
}

func TestGetDevice(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unique id", "/api/v1/devices/wall_switch_2gang_ac", http.StatusOK},
		{"ambiguous id", "/api/v1/devices/ts0601", http.StatusConflict},
		{"ambiguous id with category", "/api/v1/devices/ts0601?category=plug", http.StatusOK},
		{"archived by key", "/api/v1/devices/tuya_wall_switch_2_gang_ac_v2?category=switch", http.StatusOK},
		{"archived without category", "/api/v1/devices/tuya_wall_switch_2_gang_ac_v2", http.StatusNotFound},
		{"missing", "/api/v1/devices/missing", http.StatusNotFound},
		{"missing with category", "/api/v1/devices/missing?category=plug", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestGetDevice_MergedCapabilities(t *testing.T) {
	srv, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/devices/wall_switch_2gang_ac", "")
	var e device.Entry
	decodeBody(t, rec, &e)

	if strings.Join(e.Capabilities, ",") != "onoff,dim" {
		t.Errorf("Capabilities = %v, want [onoff dim]", e.Capabilities)
	}
	if len(e.ManufacturerIDs) != 2 {
		t.Errorf("ManufacturerIDs = %v, want 2", e.ManufacturerIDs)
	}
}

func TestDataPoints(t *testing.T) {
	srv, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/datapoints", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var all struct {
		Categories map[string]map[string]schema.DataPointDefinition `json:"categories"`
		Count      int                                              `json:"count"`
	}
	decodeBody(t, rec, &all)
	if all.Categories["dimmer"]["2"].Capability != "dim" {
		t.Errorf("dimmer dp 2 = %+v", all.Categories["dimmer"]["2"])
	}
	if all.Count == 0 {
		t.Error("count = 0")
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/datapoints/dimmer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var cat struct {
		Datapoints []schema.DataPointDefinition `json:"datapoints"`
		Count      int                          `json:"count"`
	}
	decodeBody(t, rec, &cat)
	if cat.Count != 3 || cat.Datapoints[0].DPID != 1 {
		t.Errorf("dimmer = %+v", cat)
	}

	if rec := do(t, srv, http.MethodGet, "/api/v1/datapoints/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown category status = %d, want 404", rec.Code)
	}
}

func TestListSources(t *testing.T) {
	srv, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/sources", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Sources []struct {
			ID  string `json:"id"`
			Due bool   `json:"due"`
		} `json:"sources"`
		Count int `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 2 || body.Sources[0].ID != "z2m" || body.Sources[1].ID != "zha" {
		t.Errorf("sources = %+v", body.Sources)
	}
	if !body.Sources[0].Due {
		t.Error("never-checked source should be due")
	}
}

func TestUpdate_Wait(t *testing.T) {
	srv, deps := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/update", `{"force": true, "sources": ["zha"], "wait": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var rep update.Report
	decodeBody(t, rec, &rep)
	if rep.ID != "stub-report" || !rep.Forced {
		t.Errorf("report = %+v", rep)
	}

	opts := <-deps.updater.calls
	if !opts.ForceUpdate || len(opts.SourceFilter) != 1 || opts.SourceFilter[0] != "zha" {
		t.Errorf("options = %+v", opts)
	}
}

func TestUpdate_Async(t *testing.T) {
	srv, deps := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/update", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	select {
	case opts := <-deps.updater.calls:
		if opts.ForceUpdate || len(opts.SourceFilter) != 0 {
			t.Errorf("options = %+v, want defaults", opts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("update cycle was not started")
	}
}

func TestUpdate_Rejected(t *testing.T) {
	srv, deps := testServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{"force":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown source", `{"sources": ["z2m", "nope"]}`, http.StatusBadRequest, ErrCodeUnknownSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/update", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var e Error
			decodeBody(t, rec, &e)
			if e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
		})
	}

	select {
	case opts := <-deps.updater.calls:
		t.Errorf("rejected request ran a cycle: %+v", opts)
	default:
	}
}

func TestOptionalFeaturesUnavailable(t *testing.T) {
	srv, _ := testServer(t)
	srv.updater = nil
	srv.reports = nil

	for _, target := range []string{"/api/v1/reports", "/api/v1/reports/latest", "/api/v1/reports/r1"} {
		if rec := do(t, srv, http.MethodGet, target, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", target, rec.Code)
		}
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/update", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /update status = %d, want 503", rec.Code)
	}
}

func TestReports(t *testing.T) {
	srv, deps := testServer(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := &update.Report{ID: "r1", Timestamp: base, Sources: map[string]update.SourceResult{}, Errors: []update.SourceError{}}
	newer := &update.Report{
		ID:        "r2",
		Timestamp: base.Add(time.Hour),
		Sources:   map[string]update.SourceResult{"zha": {Status: update.StatusFailed, Error: "status 500"}},
		Errors:    []update.SourceError{{Source: "zha", Error: "status 500"}},
	}
	for _, r := range []*update.Report{older, newer} {
		if err := deps.reports.Save(ctx, r); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	t.Run("list", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/v1/reports", "")
		var body history.ListResult
		decodeBody(t, rec, &body)
		if body.Total != 2 || body.Reports[0].ID != "r2" {
			t.Errorf("list = %+v", body)
		}
	})

	t.Run("only failed", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/v1/reports?failed=true", "")
		var body history.ListResult
		decodeBody(t, rec, &body)
		if body.Total != 1 || body.Reports[0].ID != "r2" {
			t.Errorf("failed = %+v", body)
		}
	})

	t.Run("paged", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/v1/reports?limit=1&offset=1", "")
		var body history.ListResult
		decodeBody(t, rec, &body)
		if len(body.Reports) != 1 || body.Reports[0].ID != "r1" || body.Limit != 1 {
			t.Errorf("paged = %+v", body)
		}
	})

	t.Run("bad params", func(t *testing.T) {
		for _, q := range []string{"?limit=x", "?offset=-1", "?since=yesterday"} {
			if rec := do(t, srv, http.MethodGet, "/api/v1/reports"+q, ""); rec.Code != http.StatusBadRequest {
				t.Errorf("%s status = %d, want 400", q, rec.Code)
			}
		}
	})

	t.Run("latest", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/v1/reports/latest", "")
		var rep update.Report
		decodeBody(t, rec, &rep)
		if rep.ID != "r2" || len(rep.Errors) != 1 {
			t.Errorf("latest = %+v", rep)
		}
	})

	t.Run("by id", func(t *testing.T) {
		if rec := do(t, srv, http.MethodGet, "/api/v1/reports/r1", ""); rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if rec := do(t, srv, http.MethodGet, "/api/v1/reports/missing", ""); rec.Code != http.StatusNotFound {
			t.Errorf("missing status = %d, want 404", rec.Code)
		}
	})
}

func TestLatestReport_Empty(t *testing.T) {
	srv, _ := testServer(t)
	if rec := do(t, srv, http.MethodGet, "/api/v1/reports/latest", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListFusions(t *testing.T) {
	srv, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/fusions", "")
	var body struct {
		Fusions []device.Merge `json:"fusions"`
		Count   int            `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
	m := body.Fusions[0]
	if m.Canonical.ID != "wall_switch_2gang_ac" || len(m.MergedFrom) != 2 {
		t.Errorf("merge = %+v", m)
	}
}

func TestClassify(t *testing.T) {
	srv, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/classify?name=Tuya+2+Gang+Wall+Switch", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var c classify.Classification
	decodeBody(t, rec, &c)
	if c.Category != "wall_switch_2gang_ac" || c.Class != "switch" || !c.Classified {
		t.Errorf("classification = %+v", c)
	}

	if rec := do(t, srv, http.MethodGet, "/api/v1/classify", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := testServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"http://tools.local"}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	req.Header.Set("Origin", "http://tools.local")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://tools.local" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin received CORS header")
	}
}

// connectWebSocket dials the server's WebSocket endpoint over a real listener.
func connectWebSocket(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Test cleanup
	}
	t.Cleanup(func() { ws.Close() }) //nolint:errcheck // Test cleanup
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func TestWebSocket_SourceEvents(t *testing.T) {
	srv, _ := testServer(t)
	ws := connectWebSocket(t, srv)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelSource}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	rep := &update.Report{
		ID: "rep-42",
		Sources: map[string]update.SourceResult{
			"zha": {Status: update.StatusFailed, Error: "status 500"},
			"z2m": {Status: update.StatusSuccess, Records: 7},
		},
	}
	if err := srv.hub.NotifyReport(context.Background(), rep); err != nil {
		t.Fatalf("NotifyReport() error = %v", err)
	}

	// The full report goes to catalog.report, which this client skipped.
	for _, want := range []string{"z2m", "zha"} {
		msg := readMessage(t, ws)
		if msg.Type != WSTypeEvent || msg.EventType != ChannelSource {
			t.Fatalf("message = %+v, want %s event", msg, ChannelSource)
		}
		payload, ok := msg.Payload.(map[string]any)
		if !ok {
			t.Fatalf("payload = %T", msg.Payload)
		}
		if payload["source"] != want || payload["report_id"] != "rep-42" {
			t.Errorf("payload = %v, want source %s", payload, want)
		}
	}
}

func TestWebSocket_ReportEvent(t *testing.T) {
	srv, _ := testServer(t)
	ws := connectWebSocket(t, srv)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelReport}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	readMessage(t, ws)

	rep := &update.Report{ID: "rep-7", TotalDevices: 12, Sources: map[string]update.SourceResult{}}
	if err := srv.hub.NotifyReport(context.Background(), rep); err != nil {
		t.Fatalf("NotifyReport() error = %v", err)
	}

	msg := readMessage(t, ws)
	payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // checked below
	if msg.EventType != ChannelReport || payload["id"] != "rep-7" || payload["total_devices"] != float64(12) {
		t.Errorf("message = %+v", msg)
	}
}

func TestWebSocket_PingAndInvalid(t *testing.T) {
	srv, _ := testServer(t)
	ws := connectWebSocket(t, srv)

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypePong || resp.ID != "ping-1" {
		t.Errorf("ping response = %+v", resp)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write invalid message: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypeError {
		t.Errorf("invalid message response type = %s, want error", resp.Type)
	}

	if err := ws.WriteJSON(WSMessage{Type: "bogus", ID: "x"}); err != nil {
		t.Fatalf("write unknown type: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypeError || resp.ID != "x" {
		t.Errorf("unknown type response = %+v", resp)
	}
}

func subscribe(t *testing.T, ws *websocket.Conn, p WSSubscribePayload) WSMessage {
	t.Helper()
	if err := ws.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "sub", Payload: p}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	return readMessage(t, ws)
}

func TestWebSocket_SourceFilter(t *testing.T) {
	srv, _ := testServer(t)
	ws := connectWebSocket(t, srv)

	if resp := subscribe(t, ws, WSSubscribePayload{Channels: []string{ChannelSource}, Sources: []string{"zha"}}); resp.Type != WSTypeResponse {
		t.Fatalf("subscribe response = %+v", resp)
	}

	rep := &update.Report{
		ID: "rep-9",
		Sources: map[string]update.SourceResult{
			"z2m": {Status: update.StatusSuccess},
			"zha": {Status: update.StatusSkipped},
		},
	}
	if err := srv.hub.NotifyReport(context.Background(), rep); err != nil {
		t.Fatalf("NotifyReport() error = %v", err)
	}

	msg := readMessage(t, ws)
	payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // checked below
	if payload["source"] != "zha" {
		t.Errorf("first source event = %v, want zha only", payload)
	}
}

func TestWebSocket_UnknownChannel(t *testing.T) {
	srv, _ := testServer(t)
	ws := connectWebSocket(t, srv)

	resp := subscribe(t, ws, WSSubscribePayload{Channels: []string{"device.state"}})
	if resp.Type != WSTypeError {
		t.Errorf("subscribe response type = %s, want error", resp.Type)
	}
}

func TestWebSocket_ReplaysLatestReport(t *testing.T) {
	srv, _ := testServer(t)

	rep := &update.Report{ID: "rep-earlier", Sources: map[string]update.SourceResult{}}
	if err := srv.hub.NotifyReport(context.Background(), rep); err != nil {
		t.Fatalf("NotifyReport() error = %v", err)
	}

	ws := connectWebSocket(t, srv)
	if resp := subscribe(t, ws, WSSubscribePayload{Channels: []string{ChannelReport}}); resp.Type != WSTypeResponse {
		t.Fatalf("subscribe response = %+v", resp)
	}

	msg := readMessage(t, ws)
	payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // checked below
	if msg.EventType != ChannelReport || payload["id"] != "rep-earlier" {
		t.Errorf("replayed message = %+v", msg)
	}
}

func TestGetDevice_AmbiguousDetails(t *testing.T) {
	srv, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/devices/ts0601", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var e struct {
		Code    string `json:"code"`
		Details struct {
			Categories []string `json:"categories"`
		} `json:"details"`
	}
	decodeBody(t, rec, &e)
	if e.Code != ErrCodeConflict || len(e.Details.Categories) != 2 {
		t.Errorf("error = %+v, want conflict listing 2 categories", e)
	}
}
