package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/usecase"
	"go.uber.org/zap"
)

// Authenticator resolves the Authorization header of a request.
type Authenticator interface {
	Authenticate(header string) (domain.Identity, error)
}

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	staking    *usecase.StakingService
	governance *usecase.GovernanceService
	authn      Authenticator
	hub        *Hub
	metrics    http.Handler
	logger     *zap.Logger
}

// NewServer wires the JSON API. hub and metrics may be nil, which leaves
// /ws/events and /metrics unrouted. With no allowed origins CORS headers are
// not sent.
func NewServer(
	port int,
	allowedOrigins []string,
	staking *usecase.StakingService,
	governance *usecase.GovernanceService,
	authn Authenticator,
	hub *Hub,
	metrics http.Handler,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		staking:    staking,
		governance: governance,
		authn:      authn,
		hub:        hub,
		metrics:    metrics,
		logger:     logger,
	}
	s.routes()

	handler := handlers.CompressHandler(s.router)
	if len(allowedOrigins) > 0 {
		handler = handlers.CORS(
			handlers.AllowedOrigins(allowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
			handlers.AllowedHeaders([]string{"authorization", "content-type"}),
		)(handler)
	}
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger)),
		handlers.PrintRecoveryStack(true),
	)(handler)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Ledgers
	s.router.HandleFunc("POST /api/ledgers", s.authed(s.handleInitialize))
	s.router.HandleFunc("GET /api/ledgers/{product}", s.handleGetLedger)

	// Positions
	s.router.HandleFunc("GET /api/positions/{product}", s.handleListPositions)
	s.router.HandleFunc("GET /api/positions/{product}/{owner}", s.handleGetPosition)

	// Staking
	s.router.HandleFunc("POST /api/stake", s.authed(s.handleStake))
	s.router.HandleFunc("POST /api/stake/batch", s.authed(s.handleBatchStake))
	s.router.HandleFunc("POST /api/unstake", s.authed(s.handleUnstake))
	s.router.HandleFunc("POST /api/unstake/batch", s.authed(s.handleBatchUnstake))
	s.router.HandleFunc("POST /api/fees", s.authed(s.handleDepositFee))
	s.router.HandleFunc("POST /api/claim", s.authed(s.handleClaim))
	s.router.HandleFunc("POST /api/compound", s.authed(s.handleCompound))

	// Governance
	s.router.HandleFunc("POST /api/governance/parameters", s.authed(s.handleUpdateParameters))
	s.router.HandleFunc("POST /api/governance/utilization", s.authed(s.handleUpdateUtilization))
	s.router.HandleFunc("POST /api/governance/trade-volume", s.authed(s.handleSetTradeVolume))

	// Proposals
	s.router.HandleFunc("POST /api/proposals", s.authed(s.handleSubmitProposal))
	s.router.HandleFunc("GET /api/proposals/{id}", s.handleGetProposal)
	s.router.HandleFunc("POST /api/proposals/{id}/votes", s.authed(s.handleVote))

	if s.hub != nil {
		s.router.Handle("GET /ws/events", s.hub)
	}
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}
}

// Handler exposes the full middleware chain, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.server.Shutdown(ctx)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, caller domain.Identity)

// authed resolves the bearer token before running next.
func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.authn.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeJSON(w, s.logger, http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}
		next(w, r, caller)
	}
}
