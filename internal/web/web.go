package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"chronoparse/internal/chrono"
	"chronoparse/internal/config"
	"chronoparse/internal/ics"
	appLog "chronoparse/internal/log"
	"chronoparse/internal/model"
	"chronoparse/internal/registry"
)

const (
	eventsCacheTTL = 30 * time.Second
	maxBatchTexts  = 1000
	maxBodyBytes   = 1 << 20
)

// Server provides the HTTP API.
type Server struct {
	cfg     *config.Config
	reg     *registry.Registry
	fetcher *ics.Fetcher
	mux     *http.ServeMux
	now     func() time.Time

	// In-memory cache for /api/events responses to avoid redundant
	// fetch/parse/expand work on every HTTP request.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, reg *registry.Registry) *Server {
	s := &Server{
		cfg:     cfg,
		reg:     reg,
		fetcher: ics.NewFetcher(cfg.CacheDir),
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="chronoparse", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve runs an HTTP server on cfg.Listen until ctx is canceled, then shuts
// it down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/parse", s.handleParse)
	s.mux.HandleFunc("/api/patterns", s.handlePatterns)
	s.mux.HandleFunc("/api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// parseResultDTO is the JSON shape of one parse result.
type parseResultDTO struct {
	Pattern string      `json:"pattern"`
	Text    string      `json:"text"`
	EpochMS *int64      `json:"epoch_ms,omitempty"`
	EpochNS json.Number `json:"epoch_ns,omitempty"` // decimal; exceeds int64 outside 1678..2262
	UTC     *time.Time  `json:"utc,omitempty"`
	Error   *errorDTO   `json:"error,omitempty"`
}

type errorDTO struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
	Pos     *int   `json:"pos,omitempty"`
}

func toDTO(r model.ParseResult) parseResultDTO {
	dto := parseResultDTO{Pattern: r.Pattern, Text: r.Text}
	if r.Err != nil {
		dto.Error = toErrorDTO(r.Err)
		return dto
	}
	ms, utc := r.EpochMillis(), r.Time
	dto.EpochMS, dto.UTC = &ms, &utc
	dto.EpochNS = json.Number(r.EpochNanos().String())
	return dto
}

func toErrorDTO(err error) *errorDTO {
	out := &errorDTO{Message: err.Error()}
	var perr *chrono.Error
	if errors.As(err, &perr) {
		out.Kind = perr.Kind.String()
		out.Field = perr.Field
		if perr.Pos >= 0 {
			pos := perr.Pos
			out.Pos = &pos
		}
	}
	return out
}

// batchRequest is the POST /api/parse body.
type batchRequest struct {
	Name    string   `json:"name"`
	Pattern string   `json:"pattern"`
	Texts   []string `json:"texts"`
}

type batchResponse struct {
	Results []parseResultDTO `json:"results"`
	Failed  int              `json:"failed"`
}

// handleParse parses timestamps.
//
//	GET  /api/parse?text=...&pattern=...   (or &name=...)
//	POST /api/parse  {"pattern": "...", "texts": ["...", ...]}
//
// A single GET that fails to parse answers 422 with the error detail.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		text := q.Get("text")
		if text == "" {
			writeError(w, http.StatusBadRequest, "missing text")
			return
		}
		results, ok := s.parseAll(w, q.Get("name"), q.Get("pattern"), []string{text})
		if !ok {
			return
		}
		dto := toDTO(results[0])
		status := http.StatusOK
		if dto.Error != nil {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, dto)

	case http.MethodPost:
		var req batchRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if len(req.Texts) == 0 {
			writeError(w, http.StatusBadRequest, "missing texts")
			return
		}
		if len(req.Texts) > maxBatchTexts {
			writeError(w, http.StatusRequestEntityTooLarge, "too many texts")
			return
		}
		results, ok := s.parseAll(w, req.Name, req.Pattern, req.Texts)
		if !ok {
			return
		}
		resp := batchResponse{Results: make([]parseResultDTO, 0, len(results))}
		for _, res := range results {
			if res.Err != nil {
				resp.Failed++
			}
			resp.Results = append(resp.Results, toDTO(res))
		}
		appLog.Debug("api parse batch", "count", len(results), "failed", resp.Failed)
		writeJSON(w, http.StatusOK, resp)

	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// parseAll resolves the layout and parses texts, writing an error response
// and returning false when the pattern itself is unusable.
func (s *Server) parseAll(w http.ResponseWriter, name, pattern string, texts []string) ([]model.ParseResult, bool) {
	results, err := s.reg.ParseAll(name, pattern, texts)
	switch {
	case errors.Is(err, registry.ErrUnknownPattern):
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	case err != nil:
		writeJSON(w, http.StatusBadRequest, struct {
			Error *errorDTO `json:"error"`
		}{toErrorDTO(err)})
		return nil, false
	}
	return results, true
}

type patternsResponse struct {
	Default  string                  `json:"default"`
	Patterns []registry.NamedPattern `json:"patterns"`
}

func (s *Server) handlePatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, patternsResponse{
		Default:  s.reg.Default().String(),
		Patterns: s.reg.Patterns(),
	})
}

// EventsResponse is the JSON response shape for /api/events.
type EventsResponse struct {
	Occurrences     []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs   []string        `json:"truncated_uids,omitempty"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
}

// eventsCache holds a cached /api/events response and its request key.
type eventsCache struct {
	days, backfill int
	resp           EventsResponse
	updatedAt      time.Time
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// handleEvents returns expanded occurrences for the configured ICS sources.
//
// GET /api/events?days=7&backfill=1
//   - days:     number of future days (default horizon_days)
//   - backfill: number of past days to include (default 1)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && ec.days == days && ec.backfill == backfill && s.now().Sub(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	resp, err := s.RefreshEvents(r.Context(), days, backfill)
	if err != nil {
		appLog.Error("api events: refresh failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RefreshEvents fetches, parses and expands the configured ICS sources and
// stores the result in the events cache. The cron refresh job calls it with
// the default window.
func (s *Server) RefreshEvents(ctx context.Context, days, backfill int) (EventsResponse, error) {
	loc := resolveLocationOrUTC(s.cfg.Timezone)
	now := s.now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	appLog.Info("events refresh",
		"days", days,
		"backfill", backfill,
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
		"timezone", loc.String(),
	)

	sources := make([]ics.Source, 0, len(s.cfg.ICS))
	for _, csrc := range s.cfg.ICS {
		if csrc.URL == "" {
			continue
		}
		id := csrc.ID
		if id == "" {
			if csrc.Name != "" {
				id = csrc.Name
			} else {
				id = csrc.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, URL: csrc.URL})
	}

	resp := EventsResponse{
		Occurrences:     []occurrenceDTO{},
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
	}

	if len(sources) > 0 {
		fetchResults, fetchErrs := s.fetcher.FetchAll(ctx, sources)
		if len(fetchErrs) > 0 {
			appLog.Error("events: one or more ICS fetches failed", errors.Join(fetchErrs...), "error_count", len(fetchErrs))
		}

		parsedEvents := make([]ics.ParsedEvent, 0)
		for _, res := range fetchResults {
			events, err := ics.ParseICS(res.Source, res.Body, loc)
			if err != nil {
				appLog.Error("events: parse failed for source", err, "id", res.Source.ID)
				continue
			}
			parsedEvents = append(parsedEvents, events...)
		}

		expandResult, err := ics.ExpandOccurrences(parsedEvents, ics.ExpandConfig{
			DisplayLocation: loc,
			RangeStart:      rangeStart,
			RangeEnd:        rangeEnd,
		})
		if err != nil {
			return EventsResponse{}, err
		}

		for _, occ := range expandResult.Occurrences {
			resp.Occurrences = append(resp.Occurrences, occurrenceDTO{
				SourceID:    occ.SourceID,
				UID:         occ.UID,
				InstanceKey: occ.InstanceKey,
				Summary:     occ.Summary,
				Description: occ.Description,
				Location:    occ.Location,
				AllDay:      occ.AllDay,
				Start:       occ.Start,
				End:         occ.End,
			})
		}
		resp.TruncatedUIDs = expandResult.TruncatedEvents
	}

	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{days: days, backfill: backfill, resp: resp, updatedAt: s.now()}
	s.eventsMu.Unlock()

	return resp, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrUTC(name string) *time.Location {
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
