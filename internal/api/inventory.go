package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/model"
	"github.com/erazemk/teren/internal/store"
)

// InventoryHandler handles the stock overview and reference data endpoints:
// deficits, billing rates and the amendment window setting.
type InventoryHandler struct {
	DB *sql.DB
}

type setRateRequest struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type amendWindowRequest struct {
	Minutes int `json:"minutes"`
}

// Overview handles GET /api/inventory: the aggregated stock dashboard.
func (h *InventoryHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := store.GetOverview(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to build stock overview", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to build stock overview")
		return
	}
	if overview.Materials == nil {
		overview.Materials = []store.MaterialStock{}
	}
	jsonResponse(w, http.StatusOK, overview)
}

// ListDeficits handles GET /api/deficits with an optional holder filter.
// Technicians only see their own ledger.
func (h *InventoryHandler) ListDeficits(w http.ResponseWriter, r *http.Request) {
	var holderID int64
	if v := r.URL.Query().Get("holder"); v != "" {
		var err error
		holderID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid holder id")
			return
		}
	}

	claims := GetClaims(r.Context())
	if claims != nil && claims.Role == model.RoleTechnician {
		holder, err := actingHolder(r, h.DB)
		if err != nil {
			storeError(w, err)
			return
		}
		holderID = holder.ID
	}

	deficits, err := store.ListDeficits(r.Context(), h.DB, holderID)
	if err != nil {
		slog.Error("failed to list deficits", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list deficits")
		return
	}
	if deficits == nil {
		deficits = []model.Deficit{}
	}
	jsonResponse(w, http.StatusOK, deficits)
}

// ListRates handles GET /api/rates.
func (h *InventoryHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := store.ListRates(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list rates", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list rates")
		return
	}
	if rates == nil {
		rates = []model.Rate{}
	}
	jsonResponse(w, http.StatusOK, rates)
}

// SetRate handles PUT /api/rates.
func (h *InventoryHandler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req setRateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rate, err := store.SetRate(r.Context(), h.DB, req.Code, req.Description, req.Amount)
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("rate set", "user", claims.Username, "code", req.Code, "amount", req.Amount)
	jsonResponse(w, http.StatusOK, rate)
}

// GetAmendWindow handles GET /api/settings/amend-window.
func (h *InventoryHandler) GetAmendWindow(w http.ResponseWriter, r *http.Request) {
	window, err := store.GetAmendWindow(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to get amend window", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get amend window")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"minutes": int(window.Minutes())})
}

// SetAmendWindow handles PUT /api/settings/amend-window.
func (h *InventoryHandler) SetAmendWindow(w http.ResponseWriter, r *http.Request) {
	var req amendWindowRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetAmendWindow(r.Context(), h.DB, req.Minutes); err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("amend window updated", "user", claims.Username, "minutes", req.Minutes)
	jsonResponse(w, http.StatusOK, map[string]int{"minutes": req.Minutes})
}
