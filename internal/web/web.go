package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"slotcal/internal/config"
	"slotcal/internal/ics"
	"slotcal/internal/interval"
	appLog "slotcal/internal/log"
)

// Server exposes the overlap check over HTTP.
type Server struct {
	cfg     *config.Config
	loc     *time.Location
	mux     *http.ServeMux
	fetcher *ics.Fetcher
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:     cfg,
		loc:     cfg.Location(),
		mux:     http.NewServeMux(),
		fetcher: ics.NewFetcher(cfg.CacheDir),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="slotcal", charset="UTF-8"`)
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

// Serve runs the HTTP server on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func Serve(ctx context.Context, cfg *config.Config) error {
	s := NewServer(cfg)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	refresher, err := StartRefresher(ctx, cfg, s.fetcher)
	if err != nil {
		return err
	}
	defer refresher.Stop()

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
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
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/overlap", s.handleOverlap)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// overlapRequest carries the two intervals as strings; values without an
// offset are read in the configured timezone. The existing interval is given
// either directly or as the occurrence of UID in a configured calendar that
// is in progress at At.
type overlapRequest struct {
	ExistingStart string `json:"existing_start"`
	ExistingEnd   string `json:"existing_end"`
	NewStart      string `json:"new_start"`
	NewEnd        string `json:"new_end"`

	Calendar string `json:"calendar"`
	UID      string `json:"uid"`
	At       string `json:"at"`
}

type intervalDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type overlapResponse struct {
	Overlaps bool        `json:"overlaps"`
	Existing intervalDTO `json:"existing"`
	New      intervalDTO `json:"new"`
}

// handleOverlap answers whether the new interval overlaps the existing one.
//
// GET  /api/overlap?existing_start=&existing_end=&new_start=&new_end=
// GET  /api/overlap?calendar=&uid=&at=&new_start=&new_end=
// POST /api/overlap with the same fields as a JSON object.
func (s *Server) handleOverlap(w http.ResponseWriter, r *http.Request) {
	var req overlapRequest
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req = overlapRequest{
			ExistingStart: q.Get("existing_start"),
			ExistingEnd:   q.Get("existing_end"),
			NewStart:      q.Get("new_start"),
			NewEnd:        q.Get("new_end"),
			Calendar:      q.Get("calendar"),
			UID:           q.Get("uid"),
			At:            q.Get("at"),
		}
	case http.MethodPost:
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", "bad_request")
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "bad_request")
		return
	}

	existing, status, err := s.existingInterval(r.Context(), req)
	if err != nil {
		kind := "bad_request"
		switch status {
		case http.StatusNotFound:
			kind = "not_found"
		case http.StatusBadGateway:
			kind = "upstream"
		}
		writeError(w, status, err.Error(), kind)
		return
	}
	candidate, err := interval.ParseInterval(req.NewStart, req.NewEnd, s.cfg.TimeLayout, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "new "+err.Error(), "bad_request")
		return
	}

	var overlaps bool
	if s.cfg.Strict {
		overlaps, err = interval.Check(existing, candidate)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_interval")
			return
		}
	} else {
		overlaps = existing.Overlaps(candidate)
	}

	appLog.Debug("api overlap", "existing", existing.String(), "new", candidate.String(), "overlaps", overlaps)

	writeJSON(w, http.StatusOK, overlapResponse{
		Overlaps: overlaps,
		Existing: intervalDTO{Start: existing.Start, End: existing.End},
		New:      intervalDTO{Start: candidate.Start, End: candidate.End},
	})
}

// existingInterval resolves the existing side of req and the HTTP status to
// report when that fails.
func (s *Server) existingInterval(ctx context.Context, req overlapRequest) (interval.Interval, int, error) {
	if req.Calendar == "" {
		iv, err := interval.ParseInterval(req.ExistingStart, req.ExistingEnd, s.cfg.TimeLayout, s.loc)
		if err != nil {
			return interval.Interval{}, http.StatusBadRequest, errors.New("existing " + err.Error())
		}
		return iv, http.StatusOK, nil
	}

	cal, ok := s.cfg.Calendar(req.Calendar)
	if !ok {
		return interval.Interval{}, http.StatusNotFound, errors.New("unknown calendar " + req.Calendar)
	}
	if req.UID == "" {
		return interval.Interval{}, http.StatusBadRequest, errors.New("uid is required with calendar")
	}
	at, err := interval.ParseInstant(req.At, s.cfg.TimeLayout, s.loc)
	if err != nil {
		return interval.Interval{}, http.StatusBadRequest, errors.New("at " + err.Error())
	}

	occ, err := ics.FetchOccurrence(ctx, s.fetcher, ics.Source{ID: cal.ID, URL: cal.URL}, req.UID, at, s.loc)
	switch {
	case errors.Is(err, ics.ErrNoOccurrence):
		return interval.Interval{}, http.StatusNotFound, err
	case err != nil:
		appLog.Error("api overlap: calendar lookup failed", err, "calendar", cal.ID)
		return interval.Interval{}, http.StatusBadGateway, errors.New("calendar unavailable")
	}
	return occ.Interval(), http.StatusOK, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	type errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	writeJSON(w, status, errResp{Error: msg, Kind: kind})
}
