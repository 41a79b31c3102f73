package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"poolledger/crypto"
	"poolledger/gateway/middleware"
	"poolledger/native/lending"
	"poolledger/services/lending/engine"
	"poolledger/services/lending/journal"
)

// AdminScope is the token scope required by every /v1/admin route.
const AdminScope = "lending:admin"

// Rate limit buckets consulted by the router.
const (
	BucketRead  = "read"
	BucketWrite = "write"
	BucketAdmin = "admin"
)

const maxBodyBytes = 1 << 20

// ModuleControl exposes the process-level switches of the runtime.
type ModuleControl interface {
	Ledger() crypto.Address
	SetModulePaused(paused bool)
	ModulePaused() bool
}

// EventSource serves committed events back to API callers.
type EventSource interface {
	PoolEvents(ctx context.Context, pool uint64, limit int) ([]journal.Record, error)
	AccountEvents(ctx context.Context, account string, limit int) ([]journal.Record, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine        engine.Engine
	Module        ModuleControl
	Events        EventSource
	Auth          *middleware.Authenticator
	Limiter       *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          *middleware.CORSConfig
	Logger        *slog.Logger
}

// Server exposes the lending engine over HTTP JSON.
type Server struct {
	engine  engine.Engine
	module  ModuleControl
	events  EventSource
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	cors    *middleware.CORSConfig
	logger  *slog.Logger

	router http.Handler
}

// New constructs the router. Engine is required; every other collaborator is
// optional.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("lending server: engine required")
	}
	srv := &Server{
		engine:  cfg.Engine,
		module:  cfg.Module,
		events:  cfg.Events,
		auth:    cfg.Auth,
		limiter: cfg.Limiter,
		obs:     cfg.Observability,
		cors:    cfg.CORS,
		logger:  cfg.Logger,
	}
	if srv.logger == nil {
		srv.logger = slog.Default()
	}
	if srv.auth == nil {
		srv.auth = middleware.NewAuthenticator(middleware.AuthConfig{}, srv.logger)
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if s.obs != nil {
		r.Use(s.obs.Middleware)
	}
	if s.cors != nil {
		r.Use(middleware.CORS(*s.cors))
	}

	r.Get("/healthz", s.health)
	if s.obs != nil {
		r.Method(http.MethodGet, "/metrics", s.obs.MetricsHandler())
	}

	r.Route("/v1", func(api chi.Router) {
		api.Group(func(read chi.Router) {
			read.Use(s.auth.Middleware())
			read.Use(s.limit(BucketRead))
			read.Get("/pools", s.listPools)
			read.Get("/pools/{id}", s.getPool)
			read.Get("/pools/{id}/utilisation", s.getUtilisation)
			read.Get("/pools/{id}/positions/{addr}", s.getPosition)
			read.Get("/pools/{id}/positions/{addr}/interest", s.getInterest)
			read.Get("/pools/{id}/events", s.poolEvents)
			read.Get("/accounts/{addr}/events", s.accountEvents)
			read.Get("/assets/{asset}/balances/{addr}", s.getBalance)
			read.Get("/owner", s.getOwner)
		})

		api.Group(func(write chi.Router) {
			write.Use(s.auth.Middleware())
			write.Use(s.limit(BucketWrite))
			write.Post("/pools/{id}/deposit", s.deposit)
			write.Post("/pools/{id}/withdraw", s.withdraw)
			write.Post("/pools/{id}/borrow", s.borrow)
			write.Post("/pools/{id}/repay", s.repay)
			write.Post("/pools/{id}/claim", s.claim)
			write.Post("/pools/{id}/receipts/transfer", s.transferReceipt)
			write.Post("/assets/{asset}/approve", s.approve)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.auth.Middleware(AdminScope))
			admin.Use(s.limit(BucketAdmin))
			admin.Post("/pools", s.createPool)
			admin.Put("/pools/{id}", s.editPool)
			admin.Post("/pools/{id}/pause", s.pausePool)
			admin.Post("/pools/{id}/start-interest", s.startInterest)
			admin.Post("/pools/{id}/whitelist", s.whitelist)
			admin.Post("/pools/{id}/fund", s.fundRewards)
			admin.Get("/pools/{id}/audit", s.auditPool)
			admin.Post("/assets", s.registerAsset)
			admin.Post("/assets/{asset}/mint", s.mint)
			admin.Post("/ownership", s.transferOwnership)
			admin.Post("/pause", s.pauseModule)
		})
	})
	return r
}

func (s *Server) limit(bucket string) func(http.Handler) http.Handler {
	if s.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.limiter.Middleware(bucket)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.module != nil {
		body["module_paused"] = s.module.ModulePaused()
	}
	s.writeJSON(w, http.StatusOK, body)
}

// Read handlers.

func (s *Server) listPools(w http.ResponseWriter, r *http.Request) {
	offset, err := queryUint(r, "offset", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, err := queryUint(r, "limit", 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pools, err := s.engine.Pools(r.Context(), offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := PoolsResponse{Pools: make([]PoolView, 0, len(pools))}
	for _, pool := range pools {
		out.Pools = append(out.Pools, newPoolView(pool))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	s.respondPool(w, r, id, http.StatusOK)
}

func (s *Server) getUtilisation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	borrow := big.NewInt(0)
	if raw := r.URL.Query().Get("borrow"); raw != "" {
		parsed, err := engine.ParseAmount(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		borrow = parsed
	}
	util, err := s.engine.Utilisation(r.Context(), id, borrow)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, UtilisationView{
		Pool:      id,
		Current:   amountString(util.Current),
		Projected: amountString(util.Projected),
		Max:       util.Max,
		Precision: lending.PercentPrecision,
	})
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	participant, err := engine.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	pos, err := s.engine.Position(r.Context(), id, participant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPositionView(pos))
}

func (s *Server) getInterest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	participant, err := engine.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	pos, err := s.engine.Position(r.Context(), id, participant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, InterestView{
		Pool:        id,
		Participant: participant.String(),
		Outstanding: amountString(pos.Outstanding),
	})
}

func (s *Server) poolEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	if s.events == nil {
		http.Error(w, "event journal not configured", http.StatusNotImplemented)
		return
	}
	limit, err := queryUint(r, "limit", 100)
	if err != nil {
		s.writeError(w, err)
		return
	}
	records, err := s.events.PoolEvents(r.Context(), id, int(limit))
	if err != nil {
		s.logger.Error("load pool events", "pool", id, "error", err)
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, EventsResponse{Events: records})
}

func (s *Server) accountEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "event journal not configured", http.StatusNotImplemented)
		return
	}
	account, err := engine.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, err := queryUint(r, "limit", 100)
	if err != nil {
		s.writeError(w, err)
		return
	}
	records, err := s.events.AccountEvents(r.Context(), account.String(), int(limit))
	if err != nil {
		s.logger.Error("load account events", "account", account.String(), "error", err)
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, EventsResponse{Events: records})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	asset, err := engine.ParseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	holder, err := engine.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	bal, err := s.engine.Balance(r.Context(), asset, holder)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, BalanceView{
		Asset:     engine.FormatAsset(asset),
		Symbol:    bal.Asset.Symbol,
		Decimals:  bal.Asset.Decimals,
		Holder:    holder.String(),
		Amount:    amountString(bal.Amount),
		Allowance: amountString(bal.Allowance),
	})
}

func (s *Server) getOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := s.engine.Owner(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := OwnerResponse{Owner: owner.String()}
	if s.module != nil {
		out.Ledger = s.module.Ledger().String()
		out.ModulePaused = s.module.ModulePaused()
	}
	s.writeJSON(w, http.StatusOK, out)
}

// Participant handlers.

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.amountOperation(w, r, func(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
		return nil, s.engine.Deposit(ctx, caller, id, amount)
	})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.amountOperation(w, r, s.engine.Withdraw)
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	s.amountOperation(w, r, func(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
		return nil, s.engine.Borrow(ctx, caller, id, amount)
	})
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	s.amountOperation(w, r, s.engine.Repay)
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	reward, err := s.engine.ClaimQuarterlyPayout(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, OperationResponse{Pool: id, Result: amountString(reward)})
}

func (s *Server) transferReceipt(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	recipient, err := engine.ParseAddress(req.Recipient)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := engine.ParseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.TransferReceipt(r.Context(), caller, id, recipient, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, OperationResponse{Pool: id, Amount: amount.String()})
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	asset, err := engine.ParseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req AmountRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := engine.ParseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.Approve(r.Context(), caller, asset, amount); err != nil {
		s.writeError(w, err)
		return
	}
	bal, err := s.engine.Balance(r.Context(), asset, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, BalanceView{
		Asset:     engine.FormatAsset(asset),
		Symbol:    bal.Asset.Symbol,
		Decimals:  bal.Asset.Decimals,
		Holder:    caller.String(),
		Amount:    amountString(bal.Amount),
		Allowance: amountString(bal.Allowance),
	})
}

type amountOp func(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error)

func (s *Server) amountOperation(w http.ResponseWriter, r *http.Request, op amountOp) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := engine.ParseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := op(r.Context(), caller, id, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := OperationResponse{Pool: id, Amount: amount.String()}
	if result != nil {
		resp.Result = result.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// Admin handlers.

func (s *Server) createPool(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req PoolConfigRequest
	if !s.decode(w, r, &req) {
		return
	}
	cfg, err := req.Config()
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := s.engine.CreatePool(r.Context(), caller, cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("pool created", "pool", id, "type", cfg.Type.String(), "caller", caller.String())
	s.writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

func (s *Server) editPool(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req PoolConfigRequest
	if !s.decode(w, r, &req) {
		return
	}
	cfg, err := req.Config()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.EditPool(r.Context(), caller, id, cfg); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondPool(w, r, id, http.StatusOK)
}

func (s *Server) pausePool(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req PauseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.SetPaused(r.Context(), caller, id, req.Paused); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondPool(w, r, id, http.StatusOK)
}

func (s *Server) startInterest(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	if err := s.engine.StartInterest(r.Context(), caller, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondPool(w, r, id, http.StatusOK)
}

func (s *Server) whitelist(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	var req WhitelistRequest
	if !s.decode(w, r, &req) {
		return
	}
	participant, err := engine.ParseAddress(req.Account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.SetWhitelisted(r.Context(), caller, id, participant, req.Status); err != nil {
		s.writeError(w, err)
		return
	}
	pos, err := s.engine.Position(r.Context(), id, participant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPositionView(pos))
}

func (s *Server) fundRewards(w http.ResponseWriter, r *http.Request) {
	s.amountOperation(w, r, func(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
		return nil, s.engine.FundRewards(ctx, caller, id, amount)
	})
}

func (s *Server) auditPool(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolID(w, r)
	if !ok {
		return
	}
	if err := s.engine.Audit(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pool": id, "consistent": true})
}

func (s *Server) registerAsset(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireOwner(w, r); !ok {
		return
	}
	var req AssetRequest
	if !s.decode(w, r, &req) {
		return
	}
	asset, err := req.Asset()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.RegisterAsset(r.Context(), asset); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"asset": engine.FormatAsset(asset.Address)})
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireOwner(w, r); !ok {
		return
	}
	asset, err := engine.ParseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req MintRequest
	if !s.decode(w, r, &req) {
		return
	}
	to, err := engine.ParseAddress(req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := engine.ParseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.Mint(r.Context(), asset, to, amount); err != nil {
		s.writeError(w, err)
		return
	}
	bal, err := s.engine.Balance(r.Context(), asset, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, BalanceView{
		Asset:     engine.FormatAsset(asset),
		Symbol:    bal.Asset.Symbol,
		Decimals:  bal.Asset.Decimals,
		Holder:    to.String(),
		Amount:    amountString(bal.Amount),
		Allowance: amountString(bal.Allowance),
	})
}

func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req OwnershipRequest
	if !s.decode(w, r, &req) {
		return
	}
	next, err := engine.ParseAddress(req.Owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.TransferOwnership(r.Context(), caller, next); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Warn("registry ownership transferred", "from", caller.String(), "to", next.String())
	s.getOwner(w, r)
}

func (s *Server) pauseModule(w http.ResponseWriter, r *http.Request) {
	if s.module == nil {
		http.Error(w, "module control not configured", http.StatusNotImplemented)
		return
	}
	if _, ok := s.requireOwner(w, r); !ok {
		return
	}
	var req PauseRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.module.SetModulePaused(req.Paused)
	s.getOwner(w, r)
}

// Helpers.

func (s *Server) respondPool(w http.ResponseWriter, r *http.Request, id uint64, status int) {
	pool, err := s.engine.Pool(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, status, newPoolView(pool))
}

// caller resolves the authenticated subject to an account address.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok || subject == "" {
		http.Error(w, "caller identity required", http.StatusUnauthorized)
		return crypto.Address{}, false
	}
	addr, err := engine.ParseAddress(subject)
	if err != nil || addr.Prefix() != crypto.AccountPrefix {
		http.Error(w, "token subject is not an account address", http.StatusUnauthorized)
		return crypto.Address{}, false
	}
	return addr, true
}

// requireOwner resolves the caller and rejects anyone but the registry owner.
func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	caller, ok := s.caller(w, r)
	if !ok {
		return crypto.Address{}, false
	}
	owner, err := s.engine.Owner(r.Context())
	if err != nil {
		s.writeError(w, err)
		return crypto.Address{}, false
	}
	if !owner.Equal(caller) {
		s.writeError(w, fmt.Errorf("%w: caller is not the registry owner", lending.ErrAuthorization))
		return crypto.Address{}, false
	}
	return caller, true
}

func (s *Server) poolID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid pool id", Code: "invalid_pool"})
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payload", Code: "invalid_payload"})
		return false
	}
	return true
}

func queryUint(r *http.Request, key string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, engine.ErrInvalidAmount
	}
	return value, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("lending request failed", "error", err)
		s.writeJSON(w, status, ErrorResponse{Error: "internal error", Code: errorCode(err)})
		return
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: errorCode(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
