package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/triggerswap/pkg/crypto"
	"github.com/uhyunpark/triggerswap/pkg/executor"
	"github.com/uhyunpark/triggerswap/pkg/metrics"
	"github.com/uhyunpark/triggerswap/pkg/oracle"
	"github.com/uhyunpark/triggerswap/pkg/order"
)

const maxBodyBytes = 1 << 20

// Engine is the execution core behind the API
type Engine interface {
	ExecuteOrder(ctx context.Context, so *order.SignedOrder) (*executor.ExecutionRecord, error)
	PriceInQuoteAsset(ctx context.Context, path []byte) (*big.Int, error)
	NonceUsed(account common.Address, nonce *big.Int) bool
	Execution(account common.Address, nonce *big.Int) (*executor.ExecutionRecord, bool, error)
	Domain() crypto.EIP712Domain
}

type Options struct {
	Engine      Engine
	Metrics     *metrics.Collector
	Logger      *zap.SugaredLogger
	CORSOrigins []string
}

// Server handles REST API and WebSocket connections
type Server struct {
	engine  Engine
	metrics *metrics.Collector
	log     *zap.SugaredLogger
	router  *mux.Router
	hub     *Hub // WebSocket hub
	origins []string
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	s := &Server{
		engine:  opts.Engine,
		metrics: opts.Metrics,
		log:     opts.Logger,
		router:  mux.NewRouter(),
		hub:     NewHub(opts.Logger),
		origins: opts.CORSOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Execution
	api.HandleFunc("/orders/execute", s.handleExecuteOrder).Methods("POST")
	api.HandleFunc("/executions/{account}/{nonce}", s.handleGetExecution).Methods("GET")

	// Read-only queries
	api.HandleFunc("/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/nonces/{account}/{nonce}", s.handleGetNonce).Methods("GET")
	api.HandleFunc("/domain", s.handleGetDomain).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler wrapped in CORS
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errc := make(chan error, 1)
	go func() {
		s.log.Infow("api_server_starting", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Infow("api_server_stopped", "addr", addr)
	return nil
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, order.KindMalformedOrder, "failed to read body: "+err.Error())
		return
	}
	so, err := order.Deserialize(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, order.KindMalformedOrder, err.Error())
		return
	}

	rec, err := s.engine.ExecuteOrder(r.Context(), so)
	if err != nil {
		kind := order.Kind(err)
		respondError(w, statusFor(kind), kind, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ExecuteOrderResponse{Status: "executed", Execution: rec})
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	path, err := hexutil.Decode(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, order.KindInvalidPath, "path must be 0x-prefixed hex")
		return
	}

	price, err := s.engine.PriceInQuoteAsset(r.Context(), path)
	if errors.Is(err, oracle.ErrPoolNotFound) {
		respondError(w, http.StatusNotFound, "PoolNotFound", err.Error())
		return
	}
	if err != nil {
		kind := order.Kind(err)
		respondError(w, statusFor(kind), kind, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, PriceResponse{
		Path:         hexutil.Encode(path),
		Price:        price.String(),
		PriceDecimal: decimal.NewFromBigInt(price, -order.PriceDecimals).String(),
	})
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	account, nonce, ok := accountNonce(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, NonceResponse{
		Account: account.Hex(),
		Nonce:   nonce.String(),
		Used:    s.engine.NonceUsed(account, nonce),
	})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	account, nonce, ok := accountNonce(w, r)
	if !ok {
		return
	}
	rec, found, err := s.engine.Execution(account, nonce)
	if err != nil {
		respondError(w, http.StatusInternalServerError, order.KindInternal, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "NotFound", "no execution for this account and nonce")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	d := s.engine.Domain()
	sep, err := crypto.NewEIP712Signer(d).DomainSeparator()
	if err != nil {
		respondError(w, http.StatusInternalServerError, order.KindInternal, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, DomainResponse{
		Name:              d.Name,
		Version:           d.Version,
		ChainID:           d.ChainID.String(),
		VerifyingContract: d.VerifyingContract.Hex(),
		Separator:         hexutil.Encode(sep),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from the executor hook)
// ==============================

// BroadcastExecution pushes a committed execution to "executions" and "executions:{account}"
func (s *Server) BroadcastExecution(rec *executor.ExecutionRecord) {
	now := time.Now().UnixMilli()
	for _, ch := range []string{ChannelExecutions, accountChannel(rec.Account)} {
		s.hub.BroadcastToChannel(ch, ExecutionUpdate{
			Type:      "execution",
			Channel:   ch,
			Execution: rec,
			Timestamp: now,
		})
	}
}

// ==============================
// Helper Functions
// ==============================

// statusFor maps an error kind to its HTTP status
func statusFor(kind string) int {
	switch kind {
	case order.KindMalformedOrder:
		return http.StatusBadRequest
	case order.KindInvalidSignature:
		return http.StatusUnauthorized
	case order.KindNonceAlreadyUsed:
		return http.StatusConflict
	case order.KindOrderExpired:
		return http.StatusGone
	case order.KindInvalidPath, order.KindUnsupportedBridgeAsset, order.KindUnsupportedQuoteAsset:
		return http.StatusUnprocessableEntity
	case order.KindTriggerConditionNotMet:
		return http.StatusPreconditionFailed
	case order.KindVenueRejected, order.KindTransferFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func accountNonce(w http.ResponseWriter, r *http.Request) (common.Address, *big.Int, bool) {
	vars := mux.Vars(r)
	if !common.IsHexAddress(vars["account"]) {
		respondError(w, http.StatusBadRequest, order.KindMalformedOrder, "invalid account address")
		return common.Address{}, nil, false
	}
	nonce, ok := new(big.Int).SetString(vars["nonce"], 10)
	if !ok || nonce.Sign() < 0 {
		respondError(w, http.StatusBadRequest, order.KindMalformedOrder, "nonce must be a base-10 integer")
		return common.Address{}, nil, false
	}
	return common.HexToAddress(vars["account"]), nonce, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, kind string, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: message,
	})
}
