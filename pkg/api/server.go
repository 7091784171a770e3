package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/altv2/swapledger/pkg/asset"
	"github.com/altv2/swapledger/pkg/escrow"
	"github.com/altv2/swapledger/pkg/settle"
)

// Server exposes the escrow ledger over REST and streams events over
// WebSocket. It is a thin shell: every call is delegated to the ledger,
// engine, or registry with the caller identity taken from the request.
type Server struct {
	ledger   *escrow.Ledger
	engine   *settle.Engine
	registry *asset.Registry
	bank     *asset.Bank
	store    *escrow.Store // nil when running memory-only
	router   *mux.Router
	hub      *Hub
	log      *zap.SugaredLogger
}

// NewServer creates a new API server. The hub is passed in (rather than
// owned) because it doubles as an event sink wired into the ledger.
func NewServer(ledger *escrow.Ledger, engine *settle.Engine, registry *asset.Registry, bank *asset.Bank, store *escrow.Store, hub *Hub, log *zap.SugaredLogger) *Server {
	s := &Server{
		ledger:   ledger,
		engine:   engine,
		registry: registry,
		bank:     bank,
		store:    store,
		router:   mux.NewRouter(),
		hub:      hub,
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order queries
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/count", s.handleOrderCount).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")

	// Order mutations
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/execute", s.handleExecuteOrder).Methods("POST")

	// Asset queries
	api.HandleFunc("/assets", s.handleListAssets).Methods("GET")
	api.HandleFunc("/assets/{address}", s.handleGetAsset).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")

	// Event journal
	api.HandleFunc("/events", s.handleListEvents).Methods("GET")

	// Admin
	api.HandleFunc("/admin/assets", s.handleAddAsset).Methods("POST")
	api.HandleFunc("/admin/assets/remove", s.handleRemoveAsset).Methods("POST")
	api.HandleFunc("/admin/restriction", s.handleToggleRestriction).Methods("POST")
	api.HandleFunc("/admin/engine", s.handleSetEngine).Methods("POST")

	// WebSocket event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler exposes the route table (tests and custom servers)
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Order handlers
// ==============================

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var orders []escrow.Order
	if r.URL.Query().Get("active") == "true" {
		orders = s.ledger.ListActiveOrders()
	} else {
		orders = s.ledger.ListOrders()
	}

	response := make([]OrderInfo, len(orders))
	for i, ord := range orders {
		response[i] = orderInfo(ord)
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ord, err := s.ledger.GetOrder(id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderInfo(ord))
}

func (s *Server) handleOrderCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CountResponse{Count: s.ledger.OrderCount()})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}
	offered, ok := parseAddress(w, req.OfferedAsset, "offeredAsset")
	if !ok {
		return
	}
	requested, ok := parseAddress(w, req.RequestedAsset, "requestedAsset")
	if !ok {
		return
	}

	id, err := s.ledger.CreateOrder(caller, offered, requested, req.OfferedAmount, req.RequestedAmount)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateOrderResponse{OrderID: id})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}
	if err := s.ledger.CancelOrder(caller, req.OrderID); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	var req ExecuteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}
	if err := s.engine.ExecuteOrder(caller, req.OrderID); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ==============================
// Asset handlers
// ==============================

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	tokens := s.bank.List()
	response := make([]AssetInfo, len(tokens))
	for i, tok := range tokens {
		meta := tok.Meta()
		response[i] = AssetInfo{
			ID:       meta.ID.Hex(),
			Name:     meta.Name,
			Symbol:   meta.Symbol,
			Admitted: s.registry.IsAdmitted(meta.ID),
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAddress(w, mux.Vars(r)["address"], "asset")
	if !ok {
		return
	}

	tok, err := s.bank.Resolve(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	meta := tok.Meta()
	writeJSON(w, http.StatusOK, AssetInfo{
		ID:       meta.ID.Hex(),
		Name:     meta.Name,
		Symbol:   meta.Symbol,
		Admitted: s.registry.IsAdmitted(meta.ID),
	})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	holder, ok := parseAddress(w, mux.Vars(r)["address"], "address")
	if !ok {
		return
	}

	tokens := s.bank.List()
	response := make([]BalanceInfo, len(tokens))
	for i, tok := range tokens {
		meta := tok.Meta()
		response[i] = BalanceInfo{
			Asset:   meta.ID.Hex(),
			Symbol:  meta.Symbol,
			Balance: tok.BalanceOf(holder),
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// ==============================
// Event handlers
// ==============================

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "event journal not enabled")
		return
	}

	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	evs, err := s.store.LoadRecentEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

// ==============================
// Admin handlers
// ==============================

func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}
	assetID, ok := parseAddress(w, req.Asset, "asset")
	if !ok {
		return
	}
	if err := s.registry.AddAsset(caller, assetID); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}
	assetID, ok := parseAddress(w, req.Asset, "asset")
	if !ok {
		return
	}
	if err := s.registry.RemoveAsset(caller, assetID); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleRestriction(w http.ResponseWriter, r *http.Request) {
	var req RestrictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}
	if err := s.ledger.ToggleRestriction(caller, req.Enabled); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetEngine(w http.ResponseWriter, r *http.Request) {
	var req EngineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}
	engineID, ok := parseAddress(w, req.Engine, "engine")
	if !ok {
		return
	}
	if err := s.ledger.SetSettlementEngine(caller, engineID); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:      "ok",
		OrderCount:  s.ledger.OrderCount(),
		Restriction: s.ledger.RestrictionEnabled(),
		Engine:      s.ledger.SettlementEngine().Hex(),
	})
}

// ==============================
// Helpers
// ==============================

func orderInfo(ord escrow.Order) OrderInfo {
	return OrderInfo{
		ID:              ord.ID,
		Creator:         ord.Creator.Hex(),
		OfferedAsset:    ord.OfferedAsset.Hex(),
		RequestedAsset:  ord.RequestedAsset.Hex(),
		OfferedAmount:   ord.OfferedAmount,
		RequestedAmount: ord.RequestedAmount,
		Active:          ord.Active,
		CreatedAt:       ord.CreatedAt,
		UpdatedAt:       ord.UpdatedAt,
	}
}

func parseAddress(w http.ResponseWriter, s, field string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		writeError(w, http.StatusBadRequest, "invalid "+field+" address")
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// writeLedgerError maps domain errors to HTTP status codes:
// validation → 400, authorization → 403, unknown ids → 404, state and
// asset-transfer rejections → 409.
func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, escrow.ErrSameAsset),
		errors.Is(err, escrow.ErrAssetNotSupported):
		status = http.StatusBadRequest
	case errors.Is(err, escrow.ErrUnauthorized),
		errors.Is(err, escrow.ErrNotCreator),
		errors.Is(err, settle.ErrSelfExecution),
		errors.Is(err, asset.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, escrow.ErrOrderNotFound),
		errors.Is(err, asset.ErrUnknownAsset),
		errors.Is(err, asset.ErrNotAdmitted):
		status = http.StatusNotFound
	default:
		// ErrOrderNotActive, ErrAlreadyAdmitted, balance/allowance
		// failures from the asset itself
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
