package web

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"timesync/internal/config"
	"timesync/internal/event"
	"timesync/internal/grid"
	"timesync/internal/ics"
	appLog "timesync/internal/log"
	"timesync/internal/tz"
)

// Server provides the HTTP API and the embedded form UI. The engine
// packages stay pure; everything request-shaped lives here.
type Server struct {
	cfg *config.Config
	cat *tz.Catalog
	mux *http.ServeMux

	// now is the generation-timestamp source; replaceable in tests.
	now func() time.Time
}

// embeddedStatic contains the static form UI served at /.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server over the given catalog.
func NewServer(cfg *config.Config, cat *tz.Catalog) *Server {
	s := &Server{
		cfg: cfg,
		cat: cat,
		mux: http.NewServeMux(),
		now: time.Now,
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

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable without credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="TimeSync", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/zones", s.handleZones)
	s.mux.HandleFunc("/api/grid", s.handleGrid)
	s.mux.HandleFunc("/api/select", s.handleSelect)
	s.mux.HandleFunc("/api/generate", s.handleGenerate)

	// Static form UI (embedded). All non-/api/* paths fall back to it.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// zonesResponse is the JSON response shape for /api/zones. It also carries
// the form defaults so the UI needs a single bootstrap call.
type zonesResponse struct {
	Zones           []string `json:"zones"`
	DefaultSource   string   `json:"default_source"`
	DefaultTarget   string   `json:"default_target"`
	DefaultDuration int      `json:"default_duration_minutes"`
}

// handleZones returns the zone catalog snapshot plus display-only default
// picks for the two selectors. The defaults are best-effort guesses; the
// resolve path still rejects anything outside the catalog.
func (s *Server) handleZones(w http.ResponseWriter, _ *http.Request) {
	defaultSource := s.cfg.SourceTimezone
	if !s.cat.Contains(defaultSource) {
		defaultSource = s.cat.GuessLocal()
	}
	defaultTarget := s.cfg.TargetTimezone
	if !s.cat.Contains(defaultTarget) {
		defaultTarget = "UTC"
	}

	writeJSON(w, http.StatusOK, zonesResponse{
		Zones:           s.cat.ListZones(),
		DefaultSource:   defaultSource,
		DefaultTarget:   defaultTarget,
		DefaultDuration: s.cfg.DefaultDurationMinutes,
	})
}

// slotDTO is a JSON-friendly view of one grid slot.
type slotDTO struct {
	Index       int    `json:"index"`
	SourceLabel string `json:"source_label"`
	TargetLabel string `json:"target_label"`
}

// gridResponse is the JSON response shape for /api/grid.
type gridResponse struct {
	Date       string    `json:"date"`
	SourceZone string    `json:"source_zone"`
	TargetZone string    `json:"target_zone"`
	Slots      []slotDTO `json:"slots"`
}

// handleGrid returns the 96 slots for a (date, source, target) triple.
//
// GET /api/grid?date=2024-01-15&source=Europe/London&target=UTC
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	source := q.Get("source")
	target := q.Get("target")

	g, err := grid.New(s.cat, source, target, date)
	if err != nil {
		writeResolutionError(w, err)
		return
	}

	slots := g.Slots()
	dtos := make([]slotDTO, 0, len(slots))
	for _, sl := range slots {
		dtos = append(dtos, slotDTO{
			Index:       sl.Index,
			SourceLabel: sl.SourceLabel,
			TargetLabel: sl.TargetLabel,
		})
	}

	writeJSON(w, http.StatusOK, gridResponse{
		Date:       date,
		SourceZone: source,
		TargetZone: target,
		Slots:      dtos,
	})
}

// selectRequest carries a committed drag range from the UI.
type selectRequest struct {
	Date       string `json:"date"`
	SourceZone string `json:"source_zone"`
	TargetZone string `json:"target_zone"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// selectResponse echoes the spec fields the form should adopt.
type selectResponse struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	EndDate    string `json:"end_date"`
	EndTime    string `json:"end_time"`
	EndMode    string `json:"end_mode"`
	SourceZone string `json:"source_zone"`
}

// handleSelect replays a drag over [start_index, end_index] on a fresh
// grid and returns the committed explicit-end fields for the form.
//
// POST /api/select
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.StartIndex > req.EndIndex {
		writeError(w, http.StatusUnprocessableEntity, "start_index must not exceed end_index")
		return
	}
	if req.EndIndex >= grid.SlotsPerDay {
		writeError(w, http.StatusUnprocessableEntity, "end_index out of range")
		return
	}

	g, err := grid.New(s.cat, req.SourceZone, req.TargetZone, req.Date)
	if err != nil {
		writeResolutionError(w, err)
		return
	}

	if err := g.PointerDown(req.StartIndex); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	g.PointerMove(req.EndIndex)
	spec, ok := g.PointerUp()
	if !ok {
		writeError(w, http.StatusInternalServerError, "selection did not commit")
		return
	}

	writeJSON(w, http.StatusOK, selectResponse{
		Date:       spec.Date,
		Time:       spec.Clock,
		EndDate:    spec.EndDate,
		EndTime:    spec.EndClock,
		EndMode:    string(spec.EndMode),
		SourceZone: spec.SourceZone,
	})
}

// generateRequest is the full event description from the form.
// duration_minutes arrives as the raw form string so that non-numeric
// input surfaces as a field error rather than a decode failure.
type generateRequest struct {
	AllDay          bool     `json:"all_day"`
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	SourceZone      string   `json:"source_zone"`
	TargetZone      string   `json:"target_zone"`
	EndMode         string   `json:"end_mode"`
	DurationMinutes string   `json:"duration_minutes"`
	EndDate         string   `json:"end_date"`
	EndTime         string   `json:"end_time"`
	Title           string   `json:"title"`
	Location        string   `json:"location"`
	Description     string   `json:"description"`
	Attendees       []string `json:"attendees"`
	EscapeText      bool     `json:"escape_text"`
}

// handleGenerate resolves the event, builds one record and streams the
// serialized calendar file back as an attachment. Any validation failure
// aborts before a single output byte is produced.
//
// POST /api/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	spec := event.Spec{
		AllDay:     req.AllDay,
		Date:       req.Date,
		Clock:      req.Time,
		SourceZone: req.SourceZone,
		EndMode:    event.EndMode(req.EndMode),
		EndDate:    req.EndDate,
		EndClock:   req.EndTime,
	}
	if spec.EndMode == event.EndModeDuration && !spec.AllDay {
		n, err := strconv.Atoi(strings.TrimSpace(req.DurationMinutes))
		if err != nil {
			writeFieldError(w, "duration_minutes", "must be a whole number of minutes")
			return
		}
		spec.DurationMinutes = n
	}

	// The target zone must be a catalog member even when the record ends up
	// zone-less (all-day); unknown ids fail closed.
	if !s.cat.Contains(req.TargetZone) {
		writeFieldError(w, "target_zone", "unknown zone")
		return
	}

	resolved, err := event.Resolve(s.cat, spec)
	if err != nil {
		writeResolutionError(w, err)
		return
	}

	det := ics.Details{
		Title:       req.Title,
		Location:    req.Location,
		Description: req.Description,
		Attendees:   req.Attendees,
	}
	rec, err := ics.BuildRecord(s.cat, resolved, req.TargetZone, det, s.cfg.ProductID, s.now())
	if err != nil {
		writeResolutionError(w, err)
		return
	}
	rec.EscapeText = req.EscapeText

	body := ics.Serialize(rec)
	filename := ics.Filename(req.Title)

	appLog.Info("calendar record generated",
		"uid", rec.UID,
		"all_day", rec.AllDay,
		"source_zone", req.SourceZone,
		"target_zone", req.TargetZone,
		"attendees", len(rec.Attendees),
		"filename", filename,
	)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// staticFileServer serves the embedded form UI.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// /api/* is never served from the static tree; a missing API route
		// must 404 rather than return HTML.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}

		fileServer.ServeHTTP(w, r)
	})
}

// writeResolutionError maps engine errors onto HTTP responses: validation
// and zone-lookup failures become 422 with the offending field named,
// anything else is a 500.
func writeResolutionError(w http.ResponseWriter, err error) {
	var ve *event.ValidationError
	if errors.As(err, &ve) {
		writeFieldError(w, ve.Field, ve.Reason)
		return
	}
	var le *tz.LookupError
	if errors.As(err, &le) {
		writeFieldError(w, "zone", "unknown zone "+strconv.Quote(le.Zone))
		return
	}
	appLog.Error("resolution failed", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeFieldError(w http.ResponseWriter, field, msg string) {
	type fieldErrResp struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	writeJSON(w, http.StatusUnprocessableEntity, fieldErrResp{Error: msg, Field: field})
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
