package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vigil-ops/vigil/internal/duckdb"
	"github.com/vigil-ops/vigil/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recordingHub captures publishes so tests can assert the
// broadcast-after-persist contract.
type recordingHub struct {
	published []*model.LogRecord
}

func (h *recordingHub) Publish(record *model.LogRecord) {
	h.published = append(h.published, record)
}

func newTestServer(t *testing.T) (*duckdb.Store, *recordingHub, *gin.Engine) {
	t.Helper()
	store, err := duckdb.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hub := &recordingHub{}
	srv := NewServer("", store, hub, nil)
	srv.startTime = time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	srv.registerRoutes(r)

	return store, hub, r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, r *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal %s response: %v", path, err)
		}
	}
	return w, body
}

func TestIngest_ValidPayload(t *testing.T) {
	_, hub, r := newTestServer(t)

	w := postJSON(t, r, "/api/logs", `{"log":{"msg":"connection accepted","severity":"I"},"is_anomaly":false}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID string `json:"id"`
		OK bool   `json:"ok"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID == "" || !resp.OK {
		t.Errorf("response = %+v, want id and ok:true", resp)
	}

	if len(hub.published) != 1 {
		t.Fatalf("published = %d events, want 1", len(hub.published))
	}
	if hub.published[0].ID != resp.ID {
		t.Errorf("broadcast id = %q, want %q (the stored id)", hub.published[0].ID, resp.ID)
	}

	_, body := getJSON(t, r, "/api/logs")
	if body["total"].(float64) != 1 {
		t.Errorf("total after ingest = %v, want 1", body["total"])
	}
}

func TestIngest_FalsyLogValuesAccepted(t *testing.T) {
	_, _, r := newTestServer(t)

	for _, body := range []string{`{"log":null}`, `{"log":0}`, `{"log":""}`, `{"log":false}`} {
		w := postJSON(t, r, "/api/logs", body)
		if w.Code != http.StatusCreated {
			t.Errorf("body %s: status = %d, want 201", body, w.Code)
		}
	}

	_, resp := getJSON(t, r, "/api/logs")
	if resp["total"].(float64) != 4 {
		t.Errorf("total = %v, want 4", resp["total"])
	}
}

func TestIngest_MissingLogField(t *testing.T) {
	store, hub, r := newTestServer(t)

	w := postJSON(t, r, "/api/logs", `{"is_anomaly":true,"reason":"no log here"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != "missing_log" {
		t.Errorf("code = %q, want missing_log", resp.Code)
	}
	if resp.Error == "" {
		t.Error("error message should be present")
	}

	count, err := store.TotalLogCount()
	if err != nil {
		t.Fatalf("TotalLogCount: %v", err)
	}
	if count != 0 {
		t.Errorf("store mutated on rejected payload: count = %d", count)
	}
	if len(hub.published) != 0 {
		t.Errorf("published = %d events on rejected payload, want 0", len(hub.published))
	}
}

func TestIngest_CoercesTruthyAnomalyFlag(t *testing.T) {
	_, _, r := newTestServer(t)

	w := postJSON(t, r, "/api/logs", `{"log":{"msg":"slow query"},"is_anomaly":"true","model_used":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", w.Code, w.Body.String())
	}

	_, body := getJSON(t, r, "/api/logs")
	logs := body["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("logs = %d entries, want 1", len(logs))
	}
	rec := logs[0].(map[string]any)
	if rec["is_anomaly"] != true {
		t.Errorf("is_anomaly = %v (%T), want coerced boolean true", rec["is_anomaly"], rec["is_anomaly"])
	}
	if rec["model_used"] != true {
		t.Errorf("model_used = %v, want coerced boolean true", rec["model_used"])
	}
}

func TestIngest_InvalidJSONBody(t *testing.T) {
	_, hub, r := newTestServer(t)

	w := postJSON(t, r, "/api/logs", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(hub.published) != 0 {
		t.Errorf("published = %d events, want 0", len(hub.published))
	}
}

func TestIngest_StorageFailureSkipsBroadcast(t *testing.T) {
	hub := &recordingHub{}
	srv := NewServer("", &failingStore{}, hub, nil)
	r := gin.New()
	srv.registerRoutes(r)

	w := postJSON(t, r, "/api/logs", `{"log":{"msg":"boom"}}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := resp["error"]; !ok {
		t.Error("500 body should carry an error field")
	}
	if len(hub.published) != 0 {
		t.Errorf("published = %d events after storage failure, want 0", len(hub.published))
	}
}

func TestLogs_OrderingNewestFirst(t *testing.T) {
	store, _, r := newTestServer(t)

	base := time.Now().UTC().Truncate(time.Second)
	msgs := []string{"first", "second", "third"}
	for i, msg := range msgs {
		rec := &model.LogRecord{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Meta:      model.Meta{Source: model.SourceMongoDB, Severity: "I"},
			Log:       json.RawMessage(`{"msg":"` + msg + `"}`),
		}
		if _, err := store.InsertLog(rec); err != nil {
			t.Fatalf("InsertLog: %v", err)
		}
	}

	_, body := getJSON(t, r, "/api/logs")
	logs := body["logs"].([]any)
	if len(logs) != 3 {
		t.Fatalf("logs = %d entries, want 3", len(logs))
	}
	want := []string{"third", "second", "first"}
	for i, entry := range logs {
		logField := entry.(map[string]any)["log"].(map[string]any)
		if logField["msg"] != want[i] {
			t.Errorf("position %d msg = %v, want %v", i, logField["msg"], want[i])
		}
	}
}

func TestLogs_PaginationParams(t *testing.T) {
	store := &pagingStore{}
	srv := NewServer("", store, nil, nil)
	r := gin.New()
	srv.registerRoutes(r)

	tests := []struct {
		query               string
		wantLimit, wantSkip int
	}{
		{"", 50, 0},
		{"?limit=10&skip=5", 10, 5},
		{"?limit=500", 200, 0},
		{"?limit=-5", 50, 0},
		{"?limit=abc", 50, 0},
		{"?limit=0", 50, 0},
		{"?skip=-3", 50, 0},
		{"?skip=xyz", 50, 0},
	}

	for _, tt := range tests {
		w, _ := getJSON(t, r, "/api/logs"+tt.query)
		if w.Code != http.StatusOK {
			t.Fatalf("query %q: status = %d", tt.query, w.Code)
		}
		if store.lastLimit != tt.wantLimit || store.lastSkip != tt.wantSkip {
			t.Errorf("query %q: limit/skip = %d/%d, want %d/%d",
				tt.query, store.lastLimit, store.lastSkip, tt.wantLimit, tt.wantSkip)
		}
	}
}

func TestStats_EmptyWindow(t *testing.T) {
	_, _, r := newTestServer(t)

	w, body := getJSON(t, r, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body["total"].(float64) != 0 || body["anomalies"].(float64) != 0 {
		t.Errorf("counts = %v/%v, want 0/0", body["total"], body["anomalies"])
	}
	if body["anomalyRate"].(float64) != 0 {
		t.Errorf("anomalyRate = %v, want 0", body["anomalyRate"])
	}
	if body["threatLevel"] != "none" {
		t.Errorf("threatLevel = %v, want none", body["threatLevel"])
	}
	if recent := body["recentAnomalies"].([]any); len(recent) != 0 {
		t.Errorf("recentAnomalies = %d entries, want 0", len(recent))
	}
}

func TestStats_WindowAggregation(t *testing.T) {
	store, _, r := newTestServer(t)

	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		rec := &model.LogRecord{
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
			Meta:      model.Meta{Source: model.SourceMongoDB, Severity: "I"},
			Log:       json.RawMessage(`{"msg":"command completed"}`),
		}
		if i < 2 {
			rec.IsAnomaly = true
			rec.Meta.Severity = "E"
			rec.Log = json.RawMessage(`{"msg":"authentication failed","severity":"E"}`)
			rec.Reason = "Error severity (E) is rare and increases anomaly score."
			rec.AnomalyScore = -0.2
		}
		if _, err := store.InsertLog(rec); err != nil {
			t.Fatalf("InsertLog: %v", err)
		}
	}
	// Outside the 24h window: must not count.
	stale := &model.LogRecord{
		Timestamp: now.Add(-26 * time.Hour),
		Meta:      model.Meta{Source: model.SourceMongoDB, Severity: "E"},
		Log:       json.RawMessage(`{"msg":"old anomaly"}`),
		IsAnomaly: true,
	}
	if _, err := store.InsertLog(stale); err != nil {
		t.Fatalf("InsertLog: %v", err)
	}

	w, body := getJSON(t, r, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body["total"].(float64) != 10 {
		t.Errorf("total = %v, want 10", body["total"])
	}
	if body["anomalies"].(float64) != 2 {
		t.Errorf("anomalies = %v, want 2", body["anomalies"])
	}
	if body["anomalyRate"].(float64) != 20 {
		t.Errorf("anomalyRate = %v, want 20", body["anomalyRate"])
	}
	if body["threatLevel"] != "high" {
		t.Errorf("threatLevel = %v, want high", body["threatLevel"])
	}

	recent := body["recentAnomalies"].([]any)
	if len(recent) != 2 {
		t.Fatalf("recentAnomalies = %d entries, want 2", len(recent))
	}
	first := recent[0].(map[string]any)
	if first["msg"] != "authentication failed" {
		t.Errorf("msg = %v, want authentication failed", first["msg"])
	}
	for _, key := range []string{"timestamp", "msg", "reason", "score"} {
		if _, ok := first[key]; !ok {
			t.Errorf("recentAnomalies entry missing %q", key)
		}
	}
}

func TestStats_StorageFailure(t *testing.T) {
	srv := NewServer("", &failingStore{}, nil, nil)
	r := gin.New()
	srv.registerRoutes(r)

	w, body := getJSON(t, r, "/api/stats")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if _, ok := body["error"]; !ok {
		t.Error("500 body should carry an error field")
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, _, r := newTestServer(t)

	w, body := getJSON(t, r, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

// failingStore simulates a storage outage on every operation.
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failingStore) InsertLog(*model.LogRecord) (string, error) { return "", errStoreDown }
func (failingStore) TotalLogCount() (int64, error)              { return 0, errStoreDown }
func (failingStore) RecentLogs(int, int) ([]model.LogRecord, error) {
	return nil, errStoreDown
}
func (failingStore) WindowCounts(time.Time) (int64, int64, error) {
	return 0, 0, errStoreDown
}
func (failingStore) RecentAnomalies(time.Time, int) ([]model.LogRecord, error) {
	return nil, errStoreDown
}

// pagingStore records the limit/skip the handler resolved from query params.
type pagingStore struct {
	lastLimit, lastSkip int
}

func (s *pagingStore) InsertLog(*model.LogRecord) (string, error) { return "x", nil }
func (s *pagingStore) TotalLogCount() (int64, error)              { return 0, nil }
func (s *pagingStore) RecentLogs(limit, skip int) ([]model.LogRecord, error) {
	s.lastLimit, s.lastSkip = limit, skip
	return nil, nil
}
func (s *pagingStore) WindowCounts(time.Time) (int64, int64, error) { return 0, 0, nil }
func (s *pagingStore) RecentAnomalies(time.Time, int) ([]model.LogRecord, error) {
	return nil, nil
}
