package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/store"
)

// WarehouseHandler handles the custody movements between the warehouse,
// technicians and the operator.
type WarehouseHandler struct {
	DB *sql.DB
}

type receiveDeviceRequest struct {
	Name       string `json:"name"`
	Serial     string `json:"serial"`
	Category   string `json:"category"`
	LocationID int64  `json:"location_id"`
}

type receiveMaterialRequest struct {
	MaterialID int64           `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	LocationID int64           `json:"location_id"`
}

type issueRequest struct {
	TechnicianID int64             `json:"technician_id"`
	Lines        []store.IssueLine `json:"lines"`
}

type returnRequest struct {
	ItemIDs    []int64 `json:"item_ids"`
	LocationID int64   `json:"location_id"`
}

type returnToOperatorRequest struct {
	ItemIDs []int64 `json:"item_ids"`
}

// ReceiveDevice handles POST /api/warehouse/receive-device.
func (h *WarehouseHandler) ReceiveDevice(w http.ResponseWriter, r *http.Request) {
	var req receiveDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.LocationID == 0 {
		jsonError(w, http.StatusBadRequest, "name and location_id required")
		return
	}

	item, err := store.ReceiveDevice(r.Context(), h.DB, req.Name, req.Serial, req.Category, req.LocationID, userID(r))
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("device received", "user", claims.Username, "device", req.Name, "serial", req.Serial)
	jsonResponse(w, http.StatusCreated, item)
}

// ReceiveMaterial handles POST /api/warehouse/receive-material.
func (h *WarehouseHandler) ReceiveMaterial(w http.ResponseWriter, r *http.Request) {
	var req receiveMaterialRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.MaterialID == 0 || req.LocationID == 0 {
		jsonError(w, http.StatusBadRequest, "material_id and location_id required")
		return
	}

	item, err := store.ReceiveMaterial(r.Context(), h.DB, req.MaterialID, req.Quantity, req.LocationID, userID(r))
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("material received", "user", claims.Username, "material_id", req.MaterialID, "quantity", req.Quantity)
	jsonResponse(w, http.StatusCreated, item)
}

// Issue handles POST /api/warehouse/issue.
func (h *WarehouseHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TechnicianID == 0 {
		jsonError(w, http.StatusBadRequest, "technician_id required")
		return
	}

	if err := store.IssueItems(r.Context(), h.DB, req.TechnicianID, req.Lines, userID(r)); err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("items issued", "user", claims.Username, "technician_id", req.TechnicianID, "lines", len(req.Lines))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "items issued"})
}

// Return handles POST /api/warehouse/return.
func (h *WarehouseHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.ItemIDs) == 0 || req.LocationID == 0 {
		jsonError(w, http.StatusBadRequest, "item_ids and location_id required")
		return
	}

	if err := store.ReturnToWarehouse(r.Context(), h.DB, req.ItemIDs, req.LocationID, userID(r)); err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("items returned", "user", claims.Username, "count", len(req.ItemIDs))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "items returned"})
}

// ReturnToOperator handles POST /api/warehouse/return-operator. This is a
// terminal state; items shipped back to the operator leave circulation.
func (h *WarehouseHandler) ReturnToOperator(w http.ResponseWriter, r *http.Request) {
	var req returnToOperatorRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.ItemIDs) == 0 {
		jsonError(w, http.StatusBadRequest, "item_ids required")
		return
	}

	if err := store.ReturnToOperator(r.Context(), h.DB, req.ItemIDs, userID(r)); err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("items returned to operator", "user", claims.Username, "count", len(req.ItemIDs))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "items returned to operator"})
}
