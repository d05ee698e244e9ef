package web

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"chronoparse/internal/config"
	"chronoparse/internal/registry"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	reg, err := registry.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(cfg, reg)
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func parseURL(params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return "/api/parse?" + q.Encode()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestParseGet(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, parseURL(map[string]string{
		"pattern": "{:%FT%T.%f%z}",
		"text":    "2023-04-30T16:22:18.500+0100",
	}), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[parseResultDTO](t, rec)
	if got.EpochMS == nil || *got.EpochMS != 1682868138500 {
		t.Errorf("epoch_ms = %v, want 1682868138500", got.EpochMS)
	}
	if got.EpochNS != "1682868138500000000" {
		t.Errorf("epoch_ns = %q, want 1682868138500000000", got.EpochNS)
	}
	if got.UTC == nil || !got.UTC.Equal(time.Date(2023, 4, 30, 15, 22, 18, 500_000_000, time.UTC)) {
		t.Errorf("utc = %v", got.UTC)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, parseURL(map[string]string{
		"name": "date",
		"text": "2024-02-29",
	}), nil))
	if got := decode[parseResultDTO](t, rec); rec.Code != http.StatusOK || got.EpochMS == nil || *got.EpochMS != 1709164800000 {
		t.Errorf("named parse = %d %s", rec.Code, rec.Body.String())
	}
}

func TestParseGetEpochNanosOutsideInt64(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	tests := []struct {
		text   string
		wantMS int64
		wantNS json.Number
	}{
		{"2300-01-01", 10413792000000, "10413792000000000000"},
		{"1600-01-01", -11676096000000, "-11676096000000000000"},
	}
	for _, tt := range tests {
		rec := do(t, h, httptest.NewRequest(http.MethodGet, parseURL(map[string]string{
			"pattern": "{:%F}",
			"text":    tt.text,
		}), nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, body %s", tt.text, rec.Code, rec.Body.String())
			continue
		}
		got := decode[parseResultDTO](t, rec)
		if got.EpochMS == nil || *got.EpochMS != tt.wantMS {
			t.Errorf("%s: epoch_ms = %v, want %d", tt.text, got.EpochMS, tt.wantMS)
		}
		if got.EpochNS != tt.wantNS {
			t.Errorf("%s: epoch_ns = %q, want %q", tt.text, got.EpochNS, tt.wantNS)
		}
	}
}

func TestParseGetErrors(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, parseURL(map[string]string{
		"text": "2023-13-01T00:00:00Z",
	}), nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	got := decode[parseResultDTO](t, rec)
	pos := 5
	want := &errorDTO{Kind: "field out of range", Field: "month", Pos: &pos}
	if diff := cmp.Diff(want, got.Error, cmpIgnoreMessage); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		params map[string]string
		status int
	}{
		{map[string]string{}, http.StatusBadRequest},
		{map[string]string{"text": "x", "name": "missing"}, http.StatusNotFound},
		{map[string]string{"text": "x", "pattern": "%F"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, h, httptest.NewRequest(http.MethodGet, parseURL(tt.params), nil))
		if rec.Code != tt.status {
			t.Errorf("GET %v = %d, want %d", tt.params, rec.Code, tt.status)
		}
	}
}

var cmpIgnoreMessage = cmp.FilterPath(func(p cmp.Path) bool {
	return p.Last().String() == ".Message"
}, cmp.Ignore())

func TestParseBatch(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	body, _ := json.Marshal(batchRequest{
		Pattern: "{:%F %T}",
		Texts:   []string{"1970-01-01 00:00:01", "1969-12-31 23:59:59", "1970-01-01 24:00:00"},
	})
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/api/parse", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[batchResponse](t, rec)
	if got.Failed != 1 || len(got.Results) != 3 {
		t.Fatalf("batch = %+v", got)
	}
	if *got.Results[0].EpochMS != 1000 || *got.Results[1].EpochMS != -1000 {
		t.Errorf("epochs = %d, %d", *got.Results[0].EpochMS, *got.Results[1].EpochMS)
	}
	if e := got.Results[2].Error; e == nil || e.Field != "hour" {
		t.Errorf("third result error = %+v", e)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/api/parse", bytes.NewReader([]byte("{"))))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid body status = %d", rec.Code)
	}
	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/parse", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d", rec.Code)
	}
}

func TestPatterns(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Patterns = map[string]string{"b": "{:%T}", "a": "{:%F}"}
	})
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/api/patterns", nil))
	got := decode[patternsResponse](t, rec)
	want := patternsResponse{
		Default:  config.DefaultPattern,
		Patterns: []registry.NamedPattern{{Name: "a", Pattern: "{:%F}"}, {Name: "b", Pattern: "{:%T}"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patterns mismatch (-want +got):\n%s", diff)
	}
}

func TestBasicAuth(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	}).Handler()

	if rec := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Errorf("health with auth = %d", rec.Code)
	}
	if rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/patterns", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/patterns", nil)
	req.SetBasicAuth("admin", "wrong")
	if rec := do(t, h, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/patterns", nil)
	req.SetBasicAuth("admin", "s3cret")
	if rec := do(t, h, req); rec.Code != http.StatusOK {
		t.Errorf("good credentials = %d, want 200", rec.Code)
	}
}

const eventsICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//chronoparse//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:review@example.com\r\n" +
	"SUMMARY:Review\r\n" +
	"DTSTART:20250110T140000Z\r\n" +
	"DTEND:20250110T150000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:later@example.com\r\n" +
	"SUMMARY:Later\r\n" +
	"DTSTART:20250301T140000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestEvents(t *testing.T) {
	var hits atomic.Int32
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(eventsICS))
	}))
	defer feed.Close()

	s := newTestServer(t, func(c *config.Config) {
		c.ICS = []config.ICSConfig{{URL: feed.URL + "/cal.ics", Name: "team"}}
	})
	now := time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	h := s.Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/events?days=7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[EventsResponse](t, rec)
	if len(got.Occurrences) != 1 {
		t.Fatalf("occurrences = %+v", got.Occurrences)
	}
	occ := got.Occurrences[0]
	if occ.Summary != "Review" || occ.SourceID != "team" || !occ.Start.Equal(time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("occurrence = %+v", occ)
	}
	if got.DisplayTimeZone != "UTC" {
		t.Errorf("display timezone = %q", got.DisplayTimeZone)
	}

	// Served from the in-memory cache.
	do(t, h, httptest.NewRequest(http.MethodGet, "/api/events?days=7", nil))
	if n := hits.Load(); n != 1 {
		t.Errorf("feed hits = %d, want 1", n)
	}

	now = now.Add(eventsCacheTTL + time.Second)
	do(t, h, httptest.NewRequest(http.MethodGet, "/api/events?days=7", nil))
	if n := hits.Load(); n != 2 {
		t.Errorf("feed hits after TTL = %d, want 2", n)
	}
}
