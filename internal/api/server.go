// Package api exposes the HTTP surface: credential issuance and the
// role-gated metadata reads. The binary upload itself never passes through
// here; clients write straight to the object store with their credential.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ananthjv/pixlift/internal/auth"
	"github.com/ananthjv/pixlift/internal/config"
	"github.com/ananthjv/pixlift/internal/credential"
	"github.com/ananthjv/pixlift/internal/metadata"
	"github.com/ananthjv/pixlift/internal/model"
)

// Server exposes HTTP endpoints for issuance and metadata visibility.
type Server struct {
	cfg      *config.Config
	resolver *auth.Resolver
	issuer   *credential.Issuer
	access   *metadata.Access
	server   *http.Server
	once     sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, resolver *auth.Resolver, issuer *credential.Issuer, access *metadata.Access) *Server {
	return &Server{
		cfg:      cfg,
		resolver: resolver,
		issuer:   issuer,
		access:   access,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(loggingMiddleware(s.routes())),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/credentials", s.handleCredentials)
	mux.HandleFunc("/metadata", s.handleMetadataList)
	mux.HandleFunc("/metadata/", s.handleMetadataGet)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// principal re-resolves the session token on every call so role changes take
// effect without a new upload.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		http.Error(w, "missing session token", http.StatusUnauthorized)
		return auth.Principal{}, false
	}
	p, err := s.resolver.Resolve(token)
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return auth.Principal{}, false
	}
	return p, true
}

type credentialRequest struct {
	// Quality and KeepOriginal are deliberately loose: callers historically
	// sent numbers, numeric strings, or nothing, and the policy is to coerce
	// rather than reject.
	Quality      json.RawMessage `json:"quality"`
	KeepOriginal json.RawMessage `json:"keepOriginal"`
	FileName     string          `json:"fileName"`
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	var body credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	fileName := body.FileName
	if fileName == "" {
		fileName = "upload.jpg"
	}
	req := model.NewUploadRequest(p.Identity, p.Role, coerceQuality(body.Quality), coerceBool(body.KeepOriginal))
	grant, err := s.issuer.Issue(r.Context(), req, fileName)
	if err != nil {
		log.Printf("issue credential for %s: %v", p.Identity, err)
		http.Error(w, "failed to issue credential", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, grant)
}

func (s *Server) handleMetadataGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	assetKey := strings.TrimPrefix(r.URL.Path, "/metadata/")
	if assetKey == "" || strings.Contains(assetKey, "/") {
		http.NotFound(w, r)
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	grant, err := s.access.Authorize(p, metadata.OpRead)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	rec, err := s.access.GetByKey(r.Context(), grant, assetKey)
	if err != nil {
		if errors.Is(err, metadata.ErrForbidden) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		http.Error(w, "failed to read metadata", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		// Unknown key is an empty result, not an error: the asset may simply
		// not be processed yet.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMetadataList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	grant, err := s.access.Authorize(p, metadata.OpListAll)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	records, err := s.access.ListAll(r.Context(), grant)
	if err != nil {
		http.Error(w, "failed to list metadata", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*model.MetadataRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// coerceQuality accepts a JSON number or string; anything else falls back to
// the default, and numbers are clamped into range downstream.
func coerceQuality(raw json.RawMessage) int {
	if len(raw) == 0 {
		return model.DefaultQuality
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return model.ClampQuality(int(n))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return model.ParseQuality(s)
	}
	return model.DefaultQuality
}

func coerceBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, err := strconv.ParseBool(strings.ToLower(s))
		return err == nil && parsed
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
