// Package trade provides the HTTP surface of the clearinghouse: the x402
// negotiation endpoint, settlement, the asset catalog, and negotiation
// statistics.
//
// Negotiation verdicts are always carried on HTTP 402 — acceptance included.
// The X-402-* headers tell the deal; the buyer consummates an accepted deal
// through the separate settlement endpoint.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/x402/clearinghouse/internal/engine"
	"github.com/x402/clearinghouse/internal/limit"
	"github.com/x402/clearinghouse/internal/metrics"
	"github.com/x402/clearinghouse/internal/model"
	"github.com/x402/clearinghouse/internal/settle"
	"github.com/x402/clearinghouse/internal/store"
)

// Service handles negotiation and settlement operations. Each engine
// serializes its own bid evaluation; the service itself holds no
// negotiation state.
type Service struct {
	engines *engine.Registry
	store   store.Store
	limiter *limit.AgentLimiter
	settler settle.Settler
	wsHub   *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(engines *engine.Registry, st store.Store, limiter *limit.AgentLimiter, settler settle.Settler, hub *WSHub) *Service {
	return &Service{
		engines: engines,
		store:   st,
		limiter: limiter,
		settler: settler,
		wsHub:   hub,
	}
}

// --- Request/Response types ---

// NegotiateRequest is the JSON body for POST /trade/negotiate.
type NegotiateRequest struct {
	Bid          decimal.Decimal `json:"bid"`
	AssetID      string          `json:"asset_id"`
	AgentAddress string          `json:"agent_address"`
	Volume       int64           `json:"volume"`     // default 1
	Urgency      string          `json:"urgency"`    // default "normal"
	SessionID    string          `json:"session_id"` // continues a prior counter
}

// NegotiateResponse is the JSON body carried with the 402 verdict.
type NegotiateResponse struct {
	Status    string          `json:"status"`
	Price     decimal.Decimal `json:"price"`
	Message   string          `json:"message"`
	SessionID string          `json:"session_id,omitempty"`
	ExpiresAt int64           `json:"expires_at,omitempty"`
}

// SettleRequest is the JSON body for POST /trade/settle.
type SettleRequest struct {
	SessionID    string `json:"session_id"`
	AssetID      string `json:"asset_id"`
	AgentAddress string `json:"agent_address"`
}

// SettleResponse confirms a settled deal.
type SettleResponse struct {
	Status  string          `json:"status"`
	TxRef   string          `json:"tx_ref"`
	DealID  string          `json:"deal_id"`
	AssetID string          `json:"asset_id"`
	Volume  int64           `json:"volume"`
	Price   decimal.Decimal `json:"price"`
}

// --- HTTP Handlers ---

// Negotiate handles POST /api/v1/trade/negotiate.
// Evaluates one bid and answers 402 with the verdict in X-402-* headers.
func (s *Service) Negotiate(w http.ResponseWriter, r *http.Request) {
	var req NegotiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation (before the engine is consulted) ---
	if req.Volume == 0 {
		req.Volume = 1
	}
	if req.Urgency == "" {
		req.Urgency = string(engine.UrgencyNormal)
	}
	if req.Bid.IsNegative() {
		writeError(w, "bid must be non-negative", http.StatusBadRequest)
		return
	}
	if req.Volume < 1 {
		writeError(w, "volume must be at least 1", http.StatusBadRequest)
		return
	}
	if req.AgentAddress == "" {
		writeError(w, "agent_address is required", http.StatusBadRequest)
		return
	}

	eng, err := s.engines.Lookup(req.AssetID)
	if err != nil {
		writeError(w, "asset not listed: "+req.AssetID, http.StatusNotFound)
		return
	}

	ctx := r.Context()

	// --- Position limit check ---
	holdings, err := s.store.GetAgentHoldings(ctx, req.AgentAddress)
	if err != nil {
		writeError(w, "failed to check position limits", http.StatusInternalServerError)
		return
	}
	if err := s.limiter.CheckLimit(req.AssetID, req.Volume, holdings); err != nil {
		metrics.LimitRejections.Inc()
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	// --- Evaluate ---
	bid := engine.Bid{
		Amount:       req.Bid,
		AgentAddress: req.AgentAddress,
		Volume:       req.Volume,
		Urgency:      engine.Urgency(req.Urgency),
	}

	start := time.Now()
	var result engine.Result
	if req.SessionID != "" {
		result, err = eng.Resume(req.SessionID, bid)
	} else {
		result, err = eng.EvaluateBid(bid)
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	metrics.NegotiationsTotal.WithLabelValues(req.AssetID, string(result.Status)).Inc()
	metrics.NegotiationLatency.WithLabelValues(req.AssetID).Observe(time.Since(start).Seconds())
	metrics.InventoryUnits.WithLabelValues(req.AssetID).Set(float64(eng.Inventory()))

	slog.Info("bid evaluated",
		"asset", req.AssetID,
		"agent", req.AgentAddress,
		"bid", req.Bid.String(),
		"volume", req.Volume,
		"verdict", string(result.Status),
		"price", result.FinalPrice.String(),
	)

	// Snapshot inventory after an accepted deal (best effort).
	if result.Status == engine.StatusAccepted {
		if err := s.store.UpdateAssetInventory(ctx, req.AssetID, eng.Inventory()); err != nil {
			slog.Error("inventory snapshot failed", "asset", req.AssetID, "err", err)
		}
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:         "negotiation",
			AssetID:      req.AssetID,
			Status:       string(result.Status),
			Price:        result.FinalPrice.String(),
			Volume:       req.Volume,
			AgentAddress: req.AgentAddress,
			Inventory:    eng.Inventory(),
		})
	}

	// Always 402 — the price header tells them the deal.
	w.Header().Set("X-402-Price", result.FinalPrice.String())
	w.Header().Set("X-402-Status", string(result.Status))
	w.Header().Set("X-402-Message", result.Message)
	if result.SessionID != "" {
		w.Header().Set("X-402-Session", result.SessionID)
	}
	if result.ExpiresAt != 0 {
		w.Header().Set("X-402-Expires", strconv.FormatInt(result.ExpiresAt, 10))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(NegotiateResponse{
		Status:    string(result.Status),
		Price:     result.FinalPrice,
		Message:   result.Message,
		SessionID: result.SessionID,
		ExpiresAt: result.ExpiresAt,
	})
}

// Settle handles POST /api/v1/trade/settle.
// Redeems an accepted session, invokes the settlement collaborator, and
// records the deal in the immutable ledger.
func (s *Service) Settle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		writeError(w, "session_id is required", http.StatusBadRequest)
		return
	}

	eng, err := s.engines.Lookup(req.AssetID)
	if err != nil {
		writeError(w, "asset not listed: "+req.AssetID, http.StatusNotFound)
		return
	}

	claim, err := eng.Redeem(req.SessionID)
	switch {
	case errors.Is(err, engine.ErrSessionExpired):
		writeError(w, "settlement window has passed", http.StatusGone)
		return
	case errors.Is(err, engine.ErrUnknownSession):
		writeError(w, "unknown or already settled session", http.StatusGone)
		return
	case err != nil:
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	receipt, err := s.settler.Settle(ctx, req.AssetID, claim.Volume, claim.Price)
	if err != nil {
		// No value moved: put the claim back so the buyer can retry within
		// the original window.
		eng.Reinstate(req.SessionID, claim)
		writeError(w, "settlement failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	deal := &model.Deal{
		ID:           uuid.New().String(),
		AssetID:      req.AssetID,
		AgentAddress: claim.AgentAddress,
		Volume:       claim.Volume,
		Price:        claim.Price,
		TxRef:        receipt.TxRef,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.store.InsertDeal(ctx, deal); err != nil {
		// The transfer already executed; reinstating here would settle the
		// deal twice. Respond with the receipt and reconcile the ledger
		// from the tx reference.
		slog.Error("deal ledger write failed",
			"deal_id", deal.ID, "tx_ref", receipt.TxRef, "err", err)
	}

	metrics.DealsSettledTotal.WithLabelValues(req.AssetID).Inc()

	slog.Info("deal settled",
		"deal_id", deal.ID,
		"asset", req.AssetID,
		"agent", claim.AgentAddress,
		"volume", claim.Volume,
		"price", claim.Price.String(),
		"tx_ref", receipt.TxRef,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:         "deal_settled",
			AssetID:      req.AssetID,
			Price:        claim.Price.String(),
			Volume:       claim.Volume,
			AgentAddress: claim.AgentAddress,
			TxRef:        receipt.TxRef,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SettleResponse{
		Status:  "settled",
		TxRef:   receipt.TxRef,
		DealID:  deal.ID,
		AssetID: req.AssetID,
		Volume:  claim.Volume,
		Price:   claim.Price,
	})
}

// GetStats handles GET /api/v1/trade/negotiate/stats.
// Returns per-asset negotiation statistics.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engines.AllStats())
}

// ListAssets handles GET /api/v1/assets.
func (s *Service) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.store.ListAssets(r.Context())
	if err != nil {
		writeError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assets)
}

// GetAsset handles GET /api/v1/assets/{assetID}.
func (s *Service) GetAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")

	asset, err := s.store.GetAsset(r.Context(), assetID)
	if err != nil {
		writeError(w, "asset not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(asset)
}

// GetDeals handles GET /api/v1/assets/{assetID}/deals.
// Returns the immutable deal ledger for an asset.
func (s *Service) GetDeals(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")

	deals, err := s.store.ListDealsByAsset(r.Context(), assetID)
	if err != nil {
		writeError(w, "failed to list deals", http.StatusInternalServerError)
		return
	}
	if deals == nil {
		deals = []model.Deal{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deals)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
