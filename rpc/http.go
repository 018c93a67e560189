package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dan-merlea/sc-krogan-public/crypto"
	"github.com/dan-merlea/sc-krogan-public/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

type ServerConfig struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	Auth          AuthConfig
	RateLimit     RateLimitConfig
}

type Server struct {
	cfg     ServerConfig
	airdrop AirdropService
	history HistoryReader
	hub     *EventHub
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer builds a JSON-RPC server over the airdrop engine.
func NewServer(svc AirdropService, cfg ServerConfig) (*Server, error) {
	if svc == nil {
		return nil, errors.New("rpc: airdrop service required")
	}
	auth, err := NewAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		airdrop: svc,
		auth:    auth,
		limiter: NewRateLimiter(cfg.RateLimit),
		logger:  slog.Default(),
	}, nil
}

// SetHistory enables airdrop_getSettlements.
func (s *Server) SetHistory(h HistoryReader) { s.history = h }

// SetHub exposes the event stream at /ws/events.
func (s *Server) SetHub(hub *EventHub) { s.hub = hub }

func (s *Server) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		r.Get("/ws/events", s.hub.ServeHTTP)
	}
	r.With(s.limiter.Middleware).Post("/", s.handle)
	return otelhttp.NewHandler(r, "airdrop-rpc")
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("rpc server listening", slog.String("addr", listener.Addr().String()))
	return srv.Serve(listener)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type ctxKey string

const requestIDKey ctxKey = "rpc.request_id"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type methodHandler func(r *http.Request, req *RPCRequest, caller crypto.Address) (interface{}, *RPCError)

type method struct {
	auth    bool
	handler methodHandler
}

func (s *Server) methods() map[string]method {
	return map[string]method{
		"airdrop_createCheckpoint":       {auth: true, handler: s.handleCreateCheckpoint},
		"airdrop_claimRewards":           {auth: true, handler: s.handleClaimRewards},
		"airdrop_getCheckpoint":          {handler: s.handleGetCheckpoint},
		"airdrop_getRewardsClaimed":      {handler: s.handleGetRewardsClaimed},
		"airdrop_getSigner":              {handler: s.handleGetSigner},
		"airdrop_changeSigner":           {auth: true, handler: s.handleChangeSigner},
		"airdrop_whitelistAddress":       {auth: true, handler: s.handleWhitelistAddress},
		"airdrop_removeWhitelistAddress": {auth: true, handler: s.handleRemoveWhitelistAddress},
		"airdrop_withdrawAll":            {auth: true, handler: s.handleWithdrawAll},
		"airdrop_getSettlements":         {handler: s.handleGetSettlements},
		"bank_getBalance":                {handler: s.handleGetBalance},
		"bank_credit":                    {auth: true, handler: s.handleCredit},
	}
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	logger := s.logger.With(
		slog.String("request_id", RequestID(r.Context())),
		slog.String("method", req.Method),
	)

	m, ok := s.methods()[req.Method]
	if !ok {
		observability.ModuleMetrics().Observe(moduleName(req.Method), req.Method, codeMethodNotFound, time.Since(start))
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}

	var caller crypto.Address
	if m.auth {
		var authErr *RPCError
		caller, authErr = s.auth.Authenticate(r)
		if authErr != nil {
			observability.ModuleMetrics().Observe(moduleName(req.Method), req.Method, authErr.Code, time.Since(start))
			logger.Warn("rpc auth rejected", slog.String("reason", authErr.Message))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	result, rpcErr := m.handler(r, req, caller)
	observability.ModuleMetrics().Observe(moduleName(req.Method), req.Method, errorCode(rpcErr), time.Since(start))
	if rpcErr != nil {
		if rpcErr.Code == codeServerError {
			logger.Error("rpc call failed", slog.String("error", rpcErr.Message))
		} else {
			logger.Debug("rpc call rejected", slog.Int("code", rpcErr.Code), slog.String("error", rpcErr.Message))
		}
		writeError(w, rpcErr.status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func errorCode(err *RPCError) int {
	if err == nil {
		return 0
	}
	return err.Code
}

func moduleName(method string) string {
	for i := 0; i < len(method); i++ {
		if method[i] == '_' {
			return method[:i]
		}
	}
	return method
}

func decodeParams(req *RPCRequest, dst interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{status: http.StatusBadRequest, Code: codeInvalidParams, Message: "expected a single parameter object"}
	}
	decoder := json.NewDecoder(bytes.NewReader(req.Params[0]))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return &RPCError{status: http.StatusBadRequest, Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func invalidParams(format string, args ...interface{}) *RPCError {
	return &RPCError{status: http.StatusBadRequest, Code: codeInvalidParams, Message: fmt.Sprintf(format, args...)}
}
