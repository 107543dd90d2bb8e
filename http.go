package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"

	"promptlab/audit"
	"promptlab/models"
	"promptlab/pipeline"
	"promptlab/settings"
)

const (
	profileCookie = "promptlab_profile"
	maxBodyBytes  = 65536

	statusSaved   = "Settings saved."
	statusCleared = "Saved settings cleared."
)

// labServer adapts HTTP requests onto the pipeline and the settings store
type labServer struct {
	pipeline  *pipeline.Pipeline
	backend   settings.Backend
	audit     *audit.Log // nil when auditing is disabled
	limiter   *rateLimiter
	startedAt time.Time

	// trustedProxies may set X-Forwarded-For; nil trusts nobody
	trustedProxies map[string]bool
}

func newLabServer(p *pipeline.Pipeline, backend settings.Backend, auditLog *audit.Log, limiter *rateLimiter) *labServer {
	return &labServer{
		pipeline:  p,
		backend:   backend,
		audit:     auditLog,
		limiter:   limiter,
		startedAt: time.Now(),
	}
}

func (s *labServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage(models.ModeGeneral))
	mux.HandleFunc("/summary", s.handlePage(models.ModeSummary))
	mux.HandleFunc("/translation", s.handlePage(models.ModeTranslation))
	mux.HandleFunc("/api/submit", s.handleAPISubmit)
	mux.HandleFunc("/api/settings", s.handleAPISettings)
	mux.HandleFunc("/api/audit", s.handleAPIAudit)
	mux.HandleFunc("/health", s.handleHealth)
	return s.withRateLimit(s.withLogging(mux))
}

// newHTTPServer builds a server for addr; the caller owns ListenAndServe and Shutdown
func (s *labServer) newHTTPServer(port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// handlePage serves the form for one mode. GET renders it prefilled from the
// stored settings; POST runs the chosen action and renders the result.
func (s *labServer) handlePage(mode models.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mode == models.ModeGeneral && r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		store := s.backend.Profile(profileID(w, r))
		stored, err := store.Load(r.Context())
		if err != nil {
			log.Printf("[HTTP] Failed to load settings: %v", err)
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead:
			s.render(w, newPageView(mode, stored))
			return
		case http.MethodPost:
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}

		form := overlay(stored,
			r.FormValue("endpoint"), r.FormValue("model"), r.FormValue("api_key"),
			models.ParseTemperature(r.FormValue("temperature")))

		switch r.FormValue("action") {
		case "save":
			// saving takes only what the user typed, never the stored fallbacks
			typed := models.ConnectionSettings{
				Endpoint: r.FormValue("endpoint"),
				Model:    r.FormValue("model"),
				APIKey:   r.FormValue("api_key"),
			}
			view := newPageView(mode, form)
			if err := store.Save(r.Context(), typed); err != nil {
				log.Printf("[HTTP] Failed to save settings: %v", err)
				view.Status = "Failed to save settings."
			} else {
				view.Status = statusSaved
				if saved, err := store.Load(r.Context()); err == nil {
					view.Credential = maskedOrEmpty(saved.APIKey)
				}
			}
			view.Prompt = r.FormValue("prompt")
			view.Option = r.FormValue("option")
			view.Debug = r.FormValue("debug") != ""
			s.render(w, view)

		case "clear":
			defaults, err := store.Clear(r.Context())
			view := newPageView(mode, defaults)
			view.Status = statusCleared
			if err != nil {
				log.Printf("[HTTP] Failed to clear settings: %v", err)
				view.Status = "Failed to clear settings."
			}
			view.Prompt = r.FormValue("prompt")
			view.Option = r.FormValue("option")
			view.Debug = r.FormValue("debug") != ""
			s.render(w, view)

		default:
			sub := pipeline.Submission{
				Mode:     mode,
				Prompt:   r.FormValue("prompt"),
				Option:   r.FormValue("option"),
				Settings: form,
				Debug:    r.FormValue("debug") != "",
			}
			res := s.pipeline.Submit(r.Context(), sub)

			view := newPageView(mode, form)
			view.Credential = maskedOrEmpty(stored.APIKey)
			view.Prompt = sub.Prompt
			view.Option = sub.Option
			view.Debug = sub.Debug
			view.Answer = res.Answer
			view.Status = res.Status
			view.Kind = res.Kind()
			view.Trace = res.Trace.Lines()
			s.render(w, view)
		}
	}
}

func (s *labServer) render(w http.ResponseWriter, view *pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, view); err != nil {
		log.Printf("[HTTP] Failed to render page: %v", err)
	}
}

// submitRequest is the JSON body of POST /api/submit
type submitRequest struct {
	Mode        string   `json:"mode"`
	Prompt      string   `json:"prompt"`
	Option      string   `json:"option"`
	Temperature *float64 `json:"temperature"`
	Endpoint    string   `json:"endpoint"`
	Model       string   `json:"model"`
	APIKey      string   `json:"api_key"`
	Debug       bool     `json:"debug"`
}

type submitResponse struct {
	RequestID string   `json:"request_id"`
	Mode      string   `json:"mode"`
	Answer    string   `json:"answer"`
	Status    string   `json:"status"`
	Kind      string   `json:"kind"`
	Demo      bool     `json:"demo"`
	Trace     []string `json:"trace,omitempty"`
}

func (s *labServer) handleAPISubmit(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := s.backend.Profile(profileID(w, r)).Load(r.Context())
	if err != nil {
		log.Printf("[HTTP] Failed to load settings: %v", err)
	}
	temperature := models.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	res := s.pipeline.Submit(r.Context(), pipeline.Submission{
		Mode:     mode,
		Prompt:   req.Prompt,
		Option:   req.Option,
		Settings: overlay(stored, req.Endpoint, req.Model, req.APIKey, temperature),
		Debug:    req.Debug,
	})

	writeJSON(w, http.StatusOK, submitResponse{
		RequestID: res.RequestID,
		Mode:      string(res.Mode),
		Answer:    res.Answer,
		Status:    res.Status,
		Kind:      res.Kind(),
		Demo:      res.Demo,
		Trace:     res.Trace.Lines(),
	})
}

// settingsView is the masked form of stored settings returned by the API
type settingsView struct {
	Endpoint      string `json:"endpoint"`
	Model         string `json:"model"`
	Credential    string `json:"credential"`
	HasCredential bool   `json:"has_credential"`
	Status        string `json:"status,omitempty"`
}

func viewOf(s models.ConnectionSettings, status string) settingsView {
	return settingsView{
		Endpoint:      s.Endpoint,
		Model:         s.Model,
		Credential:    models.MaskCredential(s.APIKey),
		HasCredential: s.HasCredential(),
		Status:        status,
	}
}

func (s *labServer) handleAPISettings(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	store := s.backend.Profile(profileID(w, r))

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		cs, err := store.Load(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		writeJSON(w, http.StatusOK, viewOf(cs, ""))

	case http.MethodPut, http.MethodPost:
		var body struct {
			Endpoint string `json:"endpoint"`
			Model    string `json:"model"`
			APIKey   string `json:"api_key"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		err := store.Save(r.Context(), models.ConnectionSettings{
			Endpoint: body.Endpoint,
			Model:    body.Model,
			APIKey:   body.APIKey,
		})
		if err != nil {
			log.Printf("[HTTP] Failed to save settings: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
		cs, _ := store.Load(r.Context())
		writeJSON(w, http.StatusOK, viewOf(cs, statusSaved))

	case http.MethodDelete:
		cs, err := store.Clear(r.Context())
		if err != nil {
			log.Printf("[HTTP] Failed to clear settings: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "failed to clear settings")
			return
		}
		writeJSON(w, http.StatusOK, viewOf(cs, statusCleared))

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *labServer) handleAPIAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.audit == nil {
		writeJSONError(w, http.StatusNotFound, "audit logging is disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("[HTTP] Failed to read audit log: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to read audit log")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// handleHealth provides a health check endpoint
func (s *labServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":           "healthy",
		"uptime_seconds":   int(time.Since(s.startedAt).Seconds()),
		"settings_backend": s.backend.Name(),
		"audit_logging":    s.audit != nil,
		"rate_limited":     s.limiter != nil,
		"services": map[string]bool{
			"http":  HTTP_PORT > 0,
			"https": HTTPS_PORT > 0,
			"dns":   DNS_PORT > 0,
		},
		"ports": map[string]int{
			"http":  HTTP_PORT,
			"https": HTTPS_PORT,
			"dns":   DNS_PORT,
		},
		"mode": "production",
	}

	if os.Getenv("HIGH_PORT_MODE") == "true" {
		health["mode"] = "development"
	}

	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		health["memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"available_mb": vm.Available / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	} else if debugMode {
		log.Printf("[HTTP] Host memory unavailable: %v", err)
	}

	writeJSON(w, http.StatusOK, health)
}

// overlay puts the non-blank form values over the stored settings. A blank
// credential field means "use the stored credential".
func overlay(stored models.ConnectionSettings, endpoint, model, apiKey string, temperature float64) models.ConnectionSettings {
	out := stored
	if v := strings.TrimSpace(endpoint); v != "" {
		out.Endpoint = v
	}
	if v := strings.TrimSpace(model); v != "" {
		out.Model = v
	}
	if v := strings.TrimSpace(apiKey); v != "" {
		out.APIKey = v
	}
	out.Temperature = temperature
	return out
}

// profileID returns the caller's profile, issuing a new cookie when absent
func profileID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(profileCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     profileCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusRecorder captures the status code for the access log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *labServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if debugMode {
			log.Printf("[HTTP] %s %s %d %s from %s", r.Method, r.URL.Path, rec.status, time.Since(start), clientIP(r, s.trustedProxies))
		}
	})
}

func (s *labServer) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" && !s.limiter.Allow(clientIP(r, s.trustedProxies)) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serveHTTP runs srv until ctx is cancelled, then shuts it down gracefully
func serveHTTP(ctx context.Context, srv *http.Server, certFile, keyFile string) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if certFile != "" {
			log.Printf("[HTTP] HTTPS server listening on %s", srv.Addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			log.Printf("[HTTP] HTTP server listening on %s", srv.Addr)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown %s: %w", srv.Addr, err)
		}
		return <-errCh
	}
}
