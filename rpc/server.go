package rpc

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"playmint/core/events"
	"playmint/gateway/middleware"
	"playmint/native/bank"
	"playmint/native/issuance"
)

const maxRequestBytes = 1 << 20

// Rate limit groups.
const (
	LimitCheckin    = "checkin"
	LimitSubmit     = "submit"
	LimitClaim      = "claim"
	LimitRegistry   = "registry"
	LimitGovernance = "governance"
	LimitRead       = "read"
)

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	RateLimits      map[string]middleware.RateLimit
	SignatureMaxAge time.Duration
	CORS            middleware.CORSConfig
	Operator        middleware.AuthConfig
	LogRequests     bool
}

// Server exposes the issuance engine over HTTP.
type Server struct {
	engine   *issuance.Engine
	journal  bank.Journal
	stream   *events.Broadcaster
	logger   *slog.Logger
	cfg      ServerConfig
	router   http.Handler
	pingFreq time.Duration
}

// NewServer builds the router. journal and stream may be nil, which disables
// the export and event routes respectively.
func NewServer(engine *issuance.Engine, journal bank.Journal, stream *events.Broadcaster, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("rpc: engine required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:   engine,
		journal:  journal,
		stream:   stream,
		logger:   logger,
		cfg:      cfg,
		pingFreq: 30 * time.Second,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "playmint-rpc")
}

func (s *Server) buildRouter() http.Handler {
	limiter := middleware.NewRateLimiter(s.cfg.RateLimits, s.logger)
	obs := middleware.NewObservability(middleware.ObservabilityConfig{LogRequests: s.cfg.LogRequests}, s.logger)
	signer := middleware.NewSignatureVerifier(s.cfg.SignatureMaxAge, s.logger)
	operator := middleware.NewAuthenticator(s.cfg.Operator, s.logger)

	route := func(name, limit string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return obs.Middleware(name)(limiter.Middleware(limit)(next))
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.cfg.CORS))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.With(route("epoch", LimitRead)).Get("/epoch", s.handleEpoch)
		v1.With(route("policy.get", LimitRead)).Get("/policy", s.handleGetPolicy)
		v1.With(route("validators.get", LimitRead)).Get("/validators/{addr}", s.handleGetValidator)
		v1.With(route("beneficiaries.get", LimitRead)).Get("/beneficiaries/{id}", s.handleGetBeneficiary)
		v1.With(route("beneficiaries.lookup", LimitRead)).Get("/beneficiaries", s.handleLookupBeneficiary)
		v1.Get("/events", s.handleEvents)
		v1.With(operator.Middleware("exports:read"), route("exports.mints", LimitRead)).Get("/exports/mints", s.handleExportMints)

		v1.Group(func(signed chi.Router) {
			signed.Use(signer.Signed)
			signed.With(route("checkin", LimitCheckin)).Post("/checkin", s.handleCheckIn)
			signed.With(route("submissions", LimitSubmit)).Post("/submissions", s.handleSubmit)
			signed.With(route("claims", LimitClaim)).Post("/claims", s.handleClaim)
			signed.With(route("validators.register", LimitRegistry)).Post("/validators", s.handleRegisterValidator)
			signed.With(route("beneficiaries.register", LimitRegistry)).Post("/beneficiaries", s.handleRegisterBeneficiary)
			signed.With(route("beneficiaries.rename", LimitRegistry)).Post("/beneficiaries/{id}/name", s.handleRenameBeneficiary)
			signed.With(route("beneficiaries.destination", LimitRegistry)).Post("/beneficiaries/{id}/destination", s.handleChangeDestination)
			signed.With(route("beneficiaries.reset", LimitGovernance)).Post("/beneficiaries/{id}/reset", s.handleResetApprovals)
			signed.With(route("policy.update", LimitGovernance)).Post("/policy", s.handleUpdatePolicy)
			signed.With(route("policy.lock", LimitGovernance)).Post("/policy/locks", s.handleLockField)
			signed.With(route("policy.owner", LimitGovernance)).Post("/policy/owner", s.handleTransferOwnership)
		})
	})
	return r
}
