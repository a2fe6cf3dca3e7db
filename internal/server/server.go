// Package server exposes the signer over HTTP: uploads, signed downloads,
// link issuance and link verification.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/linksigner/internal/clock"
	"github.com/dharsanguruparan/linksigner/internal/config"
	"github.com/dharsanguruparan/linksigner/internal/logging"
	"github.com/dharsanguruparan/linksigner/internal/model"
	"github.com/dharsanguruparan/linksigner/internal/ratelimit"
	"github.com/dharsanguruparan/linksigner/internal/signedurl"
	"github.com/dharsanguruparan/linksigner/internal/signing"
	"github.com/dharsanguruparan/linksigner/internal/storage"
)

// DownloadRoute is the route file links are signed for.
const DownloadRoute = "/download"

// Publisher receives an audit event for every issued link.
type Publisher interface {
	PublishLinkIssued(ctx context.Context, rec model.LinkRecord) error
}

// AuditReader looks up issued links by ID.
type AuditReader interface {
	Get(ctx context.Context, id string) (model.LinkRecord, error)
}

// Deps are the collaborators a Server needs. Signer, Files and Blobs are
// required.
type Deps struct {
	Signer    *signing.Signer
	Files     *storage.MemoryStore
	Blobs     storage.BlobStore
	Publisher Publisher
	Audit     AuditReader
	Limiter   *ratelimit.Limiter
	Logger    *zap.Logger
	Clock     clock.Clock
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg       *config.Config
	signer    *signing.Signer
	files     *storage.MemoryStore
	blobs     storage.BlobStore
	publisher Publisher
	audit     AuditReader
	limiter   *ratelimit.Limiter
	logger    *zap.Logger
	clock     clock.Clock
	newID     func() string
}

// New creates a configured server.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Signer == nil || deps.Files == nil || deps.Blobs == nil {
		return nil, errors.New("server: signer, file store and blob store are required")
	}
	s := &Server{
		cfg:       cfg,
		signer:    deps.Signer,
		files:     deps.Files,
		blobs:     deps.Blobs,
		publisher: deps.Publisher,
		audit:     deps.Audit,
		limiter:   deps.Limiter,
		logger:    deps.Logger,
		clock:     deps.Clock,
		newID:     uuid.NewString,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	return s, nil
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}()
	s.logger.Info("linksigner listening", zap.String("address", s.cfg.Address))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routed handler with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Post("/files", s.handleUpload)
	r.Get("/files/{id}", s.handleFileInfo)
	r.Post("/files/{id}/links", s.handleFileLink)

	r.With(signedurl.Require(s.signer,
		signedurl.WithLogger(s.logger),
		signedurl.WithLimiter(s.limiter, nil),
	)).Get(DownloadRoute, s.handleDownload)

	r.Post("/links", s.handleSign)
	r.With(s.throttle).Post("/links/verify", s.handleVerify)
	r.Get("/links/{linkID}", s.handleLinkAudit)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(ratelimit.ClientIP(r)) {
			respondError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// publish hands rec to the audit pipeline. Failures are logged only: the
// link has already been issued.
func (s *Server) publish(ctx context.Context, rec model.LinkRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLinkIssued(ctx, rec); err != nil {
		s.logger.Warn("publish link event failed", zap.String("link_id", rec.ID), zap.Error(err))
	}
}

// auditRecord describes a freshly signed parameter set.
func (s *Server) auditRecord(id, route string, signed signing.Params, allowAddition bool) model.LinkRecord {
	keys := make([]string, 0, signed.Len())
	for _, k := range signed.Keys() {
		if k != s.signer.HmacParam() {
			keys = append(keys, k)
		}
	}
	expiresAt, _ := s.signer.Expiration(signed)
	return model.LinkRecord{
		ID:            id,
		Route:         route,
		SignedKeys:    keys,
		AllowAddition: allowAddition,
		ExpiresAt:     expiresAt.UTC(),
		IssuedAt:      s.clock.Now().UTC(),
	}
}
