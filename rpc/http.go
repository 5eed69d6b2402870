package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"migrator/native/migration"
	"migrator/observability"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Rollback discards the effects of a failed unit of work.
type Rollback func()

// UnitOfWork models the host environment's all-or-nothing call isolation:
// Begin snapshots external ledger state and the returned Rollback restores it
// when the engine call fails.
type UnitOfWork interface {
	Begin() Rollback
}

// TokenResolver resolves a fungible ledger handle for the recovery sweep,
// bound to the given operator account.
type TokenResolver interface {
	FungibleTokenAt(address, operator [20]byte) (migration.FungibleToken, error)
}

// Engines bundles the per-class engines served by one daemon. Any entry may
// be nil when that asset class is not part of the campaign.
type Engines struct {
	Fungible     *migration.FungibleEngine
	NonFungible  *migration.NonFungibleEngine
	SemiFungible *migration.SemiFungibleEngine
}

// Server exposes the migration and administrative surface over JSON-RPC.
type Server struct {
	engines    Engines
	receipts   *migration.ReceiptLedger
	unit       UnitOfWork
	resolver   TokenResolver
	adminToken string
	logger     *slog.Logger
	metrics    *observability.MigrationMetrics
}

// NewServer constructs the RPC server. The unit of work and resolver may be
// nil when the host provides isolation elsewhere or recovery is not exposed.
func NewServer(engines Engines, receipts *migration.ReceiptLedger, unit UnitOfWork, resolver TokenResolver, adminToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engines:    engines,
		receipts:   receipts,
		unit:       unit,
		resolver:   resolver,
		adminToken: strings.TrimSpace(adminToken),
		logger:     logger,
		metrics:    observability.Metrics(),
	}
}

// Router returns the HTTP surface: the RPC endpoint, health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Method(http.MethodPost, "/rpc", otelhttp.NewHandler(http.HandlerFunc(s.handleRPC), "rpc"))
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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
}

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
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	corr := uuid.NewString()
	logger := s.logger.With(slog.String("method", req.Method), slog.String("correlationId", corr))
	started := time.Now()

	handler, ok := s.route(req.Method)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method "+req.Method, nil)
		return
	}
	if adminMethods[req.Method] {
		if rpcErr := s.requireAdminToken(r); rpcErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}

	handler(w, r, &req)
	logger.Info("rpc handled", slog.Duration("took", time.Since(started)))
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

var adminMethods = map[string]bool{
	"migration_deposit":  true,
	"migration_withdraw": true,
	"migration_pause":    true,
	"migration_unpause":  true,
	"migration_recover":  true,
}

func (s *Server) route(method string) (handlerFunc, bool) {
	switch method {
	case "migration_migrate":
		return s.handleMigrate, true
	case "migration_migrateBatch":
		return s.handleMigrateBatch, true
	case "migration_deposit":
		return s.handleDeposit, true
	case "migration_withdraw":
		return s.handleWithdraw, true
	case "migration_pause":
		return s.handlePause, true
	case "migration_unpause":
		return s.handleUnpause, true
	case "migration_recover":
		return s.handleRecover, true
	case "migration_status":
		return s.handleStatus, true
	case "migration_receipts":
		return s.handleReceipts, true
	default:
		return nil, false
	}
}

func (s *Server) requireAdminToken(r *http.Request) *RPCError {
	if s.adminToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(header[len(scheme):])
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// begin opens the host unit of work. The returned rollback is a no-op when
// no unit of work is configured.
func (s *Server) begin() Rollback {
	if s.unit == nil {
		return func() {}
	}
	return s.unit.Begin()
}

// engineError maps engine sentinel errors onto HTTP status and RPC codes.
func engineError(err error) (int, int) {
	switch {
	case errors.Is(err, migration.ErrNotAdministrator):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, migration.ErrPaused), errors.Is(err, migration.ErrReentrant):
		return http.StatusConflict, codeServerError
	case errors.Is(err, migration.ErrOldTransferInvariant), errors.Is(err, migration.ErrNewTransferInvariant):
		return http.StatusBadGateway, codeServerError
	case errors.Is(err, migration.ErrZeroAmount),
		errors.Is(err, migration.ErrNilTokenID),
		errors.Is(err, migration.ErrEmptyBatch),
		errors.Is(err, migration.ErrBatchSizeExceeded),
		errors.Is(err, migration.ErrBatchLengthMismatch):
		return http.StatusBadRequest, codeInvalidParams
	default:
		return http.StatusConflict, codeServerError
	}
}
