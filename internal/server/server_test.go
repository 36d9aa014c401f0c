package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"workobs/internal/db"
	"workobs/internal/domain"
	"workobs/internal/events"
	"workobs/internal/migrate"
	"workobs/internal/rollup"
)

type testServer struct {
	URL       string
	ExportDir string
	client    *http.Client
	close     func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Path: filepath.Join(dir, "test.sqlite")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := events.NewSQLStore(conn)
	exportDir := filepath.Join(dir, "logs-md")
	handler, err := New(Config{
		Engine:    rollup.New(store),
		Store:     store,
		ExportDir: exportDir,
		BasePath:  "/api",
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:       "http://" + ln.Addr().String(),
		ExportDir: exportDir,
		client:    &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestDayLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	date := "2023-10-27"

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/intents/daily", map[string]any{
		"date":    date,
		"intents": []string{"Code feature", "Review PR"},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set intents: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/blocks/start", map[string]any{
		"date":   date,
		"intent": "Code feature",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start block: %d %s", res.StatusCode, string(data))
	}
	var started BlockIDResponse
	if err := json.Unmarshal(data, &started); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if started.BlockID == "" {
		t.Fatal("expected blockId")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/blocks/interrupt", map[string]any{
		"blockId":    started.BlockID,
		"reasonCode": "MEETING",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("interrupt: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/blocks/end", map[string]any{
		"blockId":         started.BlockID,
		"actualOutcome":   "Partial progress",
		"durationMinutes": 45,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("end: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/days/"+date, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("day: %d %s", res.StatusCode, string(data))
	}
	var day domain.DayRollup
	if err := json.Unmarshal(data, &day); err != nil {
		t.Fatalf("unmarshal day: %v", err)
	}
	if len(day.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(day.Blocks))
	}
	b := day.Blocks[0]
	if !b.Interrupted || b.DurationLabel != "~1 hour" {
		t.Errorf("block = %+v", b)
	}
	if day.Metrics.FragmentationRate != 1.0 || day.Metrics.TotalActiveMinutes != 45 {
		t.Errorf("metrics = %+v", day.Metrics)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/intents/daily/"+date, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get intents: %d %s", res.StatusCode, string(data))
	}
	var intents DailyIntentsResponse
	if err := json.Unmarshal(data, &intents); err != nil {
		t.Fatalf("unmarshal intents: %v", err)
	}
	if len(intents.Intents) != 2 {
		t.Errorf("intents = %v", intents.Intents)
	}
}

func TestRecoveryOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	date := "2023-10-27"

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/recovery/start", map[string]any{
		"date": date,
		"kind": "COFFEE",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start recovery: %d %s", res.StatusCode, string(data))
	}
	var started BlockIDResponse
	_ = json.Unmarshal(data, &started)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/recovery/end", map[string]any{
		"blockId":         started.BlockID,
		"durationMinutes": 20,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("end recovery: %d %s", res.StatusCode, string(data))
	}
	var status StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("status = %q", status.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/days/"+date, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("day: %d %s", res.StatusCode, string(data))
	}
	var day domain.DayRollup
	_ = json.Unmarshal(data, &day)
	if day.Metrics.TotalRecoveryMinutes != 20 || day.Metrics.TotalRecoveryLabel != "~30 mins" {
		t.Errorf("recovery metrics = %+v", day.Metrics)
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	cases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"too many intents", "/api/intents/daily", map[string]any{
			"date":    "2023-10-27",
			"intents": []string{"a", "b", "c", "d", "e", "f"},
		}},
		{"bad reason code", "/api/blocks/interrupt", map[string]any{
			"blockId":    "b1",
			"reasonCode": "NAP",
		}},
		{"bad recovery kind", "/api/recovery/start", map[string]any{
			"date": "2023-10-27",
			"kind": "NAP",
		}},
		{"bad date", "/api/blocks/start", map[string]any{
			"date":   "27-10-2023",
			"intent": "Code",
		}},
	}
	for _, tc := range cases {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+tc.path, tc.body)
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400: %s", tc.name, res.StatusCode, string(data))
			continue
		}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Errorf("%s: unmarshal envelope: %v", tc.name, err)
			continue
		}
		if envelope.Error.Code != "bad_request" {
			t.Errorf("%s: code = %q: %s", tc.name, envelope.Error.Code, string(data))
		}
	}
}

func TestWeeklySummaryOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/weeks/2023-W43/summary", map[string]any{
		"topFragmenters":       []string{"MEETING"},
		"notPerformanceIssues": []string{"Vendor delays"},
		"oneChangeNextWeek":    "Block mornings",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("save summary: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/weeks/2023-W43", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("week: %d %s", res.StatusCode, string(data))
	}
	var week domain.WeekRollup
	if err := json.Unmarshal(data, &week); err != nil {
		t.Fatalf("unmarshal week: %v", err)
	}
	if week.Reflection.OneChangeNextWeek != "Block mornings" {
		t.Errorf("reflection = %+v", week.Reflection)
	}
	if week.Metrics.TopFragmenters == nil {
		t.Error("topFragmenters should serialize as an array")
	}
}

func TestMalformedWeekKeyOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/weeks/not-a-week", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("week: %d %s", res.StatusCode, string(data))
	}
	var week domain.WeekRollup
	if err := json.Unmarshal(data, &week); err != nil {
		t.Fatalf("unmarshal week: %v", err)
	}
	if week.YearWeek != "not-a-week" || week.Metrics.TotalBlocks != 0 {
		t.Errorf("week = %+v", week)
	}
	if week.Metrics.TotalActiveLabel != "~0 mins" {
		t.Errorf("totalActiveLabel = %q", week.Metrics.TotalActiveLabel)
	}
}

func TestExportDayOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	date := "2023-10-27"

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/intents/daily", map[string]any{
		"date":    date,
		"intents": []string{"Write report"},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set intents: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/export/day/"+date, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export: %d %s", res.StatusCode, string(data))
	}
	var path PathResponse
	if err := json.Unmarshal(data, &path); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	md, err := os.ReadFile(path.Path)
	if err != nil {
		t.Fatalf("read export %s: %v", path.Path, err)
	}
	if !strings.Contains(string(md), "- [ ] Write report") {
		t.Errorf("report missing intent:\n%s", md)
	}
}

func TestListEventsOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/api/intents/daily", map[string]any{
		"date":    "2023-10-27",
		"intents": []string{"a"},
	})
	doJSON(t, client, http.MethodPost, srv.URL+"/api/blocks/start", map[string]any{
		"date":   "2023-10-27",
		"intent": "a",
	})

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/events", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list events: %d %s", res.StatusCode, string(data))
	}
	var evts []EventResponse
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].Type != domain.TypeDailyIntentsSet || evts[1].Type != domain.TypeIntentBlockStarted {
		t.Errorf("events = %v %v", evts[0].Type, evts[1].Type)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/events?type="+domain.TypeIntentBlockStarted, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("filtered events: %d %s", res.StatusCode, string(data))
	}
	var filtered []EventResponse
	_ = json.Unmarshal(data, &filtered)
	if len(filtered) != 1 || filtered[0].Type != domain.TypeIntentBlockStarted {
		t.Errorf("filtered = %v", filtered)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/events?after=not-a-time", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("bad after: status %d, want 400", res.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
	var body map[string]string
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}
