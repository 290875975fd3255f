package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/teren/internal/model"
	"github.com/erazemk/teren/internal/store"
)

// OrdersHandler handles work order endpoints, including completion,
// amendment and administrative re-edit.
type OrdersHandler struct {
	DB *sql.DB
}

type createOrderRequest struct {
	Code         string `json:"code"`
	Kind         string `json:"kind"`
	Customer     string `json:"customer"`
	Address      string `json:"address"`
	TechnicianID *int64 `json:"technician_id,omitempty"`
}

type assignOrderRequest struct {
	TechnicianID int64 `json:"technician_id"`
}

type retryOrderRequest struct {
	TechnicianID *int64 `json:"technician_id,omitempty"`
}

// List handles GET /api/orders with status and technician filters.
// Technicians only ever see their own orders.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var technicianID int64
	if v := q.Get("technician"); v != "" {
		var err error
		technicianID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid technician id")
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
		technicianID = holder.ID
	}

	orders, err := store.ListOrders(r.Context(), h.DB, q.Get("status"), technicianID)
	if err != nil {
		slog.Error("failed to list orders", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	jsonResponse(w, http.StatusOK, orders)
}

// Create handles POST /api/orders.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := store.CreateOrder(r.Context(), h.DB, req.Code, req.Kind, req.Customer, req.Address, req.TechnicianID)
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("order created", "user", claims.Username, "order", req.Code, "kind", req.Kind)
	jsonResponse(w, http.StatusCreated, order)
}

// Get handles GET /api/orders/{id}, returning the order together with its
// bound equipment, material usage and work codes.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := store.GetOrder(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get order", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	if order == nil {
		jsonError(w, http.StatusNotFound, "order not found")
		return
	}

	equipment, err := store.GetOrderEquipment(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err)
		return
	}
	if equipment == nil {
		equipment = []model.Item{}
	}

	materials, err := store.GetOrderMaterials(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err)
		return
	}
	if materials == nil {
		materials = []model.MaterialUsage{}
	}

	workCodes, err := store.GetOrderWorkCodes(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err)
		return
	}
	if workCodes == nil {
		workCodes = []model.WorkCode{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"order":      order,
		"equipment":  equipment,
		"materials":  materials,
		"work_codes": workCodes,
	})
}

// Assign handles POST /api/orders/{id}/assign.
func (h *OrdersHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req assignOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TechnicianID == 0 {
		jsonError(w, http.StatusBadRequest, "technician_id required")
		return
	}

	if err := store.AssignOrder(r.Context(), h.DB, id, req.TechnicianID); err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("order assigned", "user", claims.Username, "order_id", id, "technician_id", req.TechnicianID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "order assigned"})
}

// Complete handles POST /api/orders/{id}/complete. The acting technician
// reports the order done with the full set of equipment, materials and
// work codes.
func (h *OrdersHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	holder, err := actingHolder(r, h.DB)
	if err != nil {
		storeError(w, err)
		return
	}

	var in store.CompletionInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := store.CompleteOrder(r.Context(), h.DB, id, holder.ID, userID(r), in)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("order completed", "technician", holder.Name, "order_id", id, "warnings", len(result.Warnings))
	jsonResponse(w, http.StatusOK, result)
}

// Amend handles POST /api/orders/{id}/amend. Same input as completion, only
// accepted from the completing technician inside the amendment window.
func (h *OrdersHandler) Amend(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	holder, err := actingHolder(r, h.DB)
	if err != nil {
		storeError(w, err)
		return
	}

	var in store.CompletionInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := store.AmendOrder(r.Context(), h.DB, id, holder.ID, userID(r), in)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("order amended", "technician", holder.Name, "order_id", id, "warnings", len(result.Warnings))
	jsonResponse(w, http.StatusOK, result)
}

// Edit handles POST /api/orders/{id}/edit, the manager-level re-edit of a
// completed order without a time box.
func (h *OrdersHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var in store.CompletionInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := store.AdminEditOrder(r.Context(), h.DB, id, userID(r), in)
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("order edited", "user", claims.Username, "order_id", id, "warnings", len(result.Warnings))
	jsonResponse(w, http.StatusOK, result)
}

// NotCompleted handles POST /api/orders/{id}/not-completed. Technicians may
// only fail their own orders.
func (h *OrdersHandler) NotCompleted(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	claims := GetClaims(r.Context())
	if claims != nil && claims.Role == model.RoleTechnician {
		holder, err := actingHolder(r, h.DB)
		if err != nil {
			storeError(w, err)
			return
		}
		order, err := store.GetOrder(r.Context(), h.DB, id)
		if err != nil {
			storeError(w, err)
			return
		}
		if order == nil {
			jsonError(w, http.StatusNotFound, "order not found")
			return
		}
		if order.TechnicianID == nil || *order.TechnicianID != holder.ID {
			jsonError(w, http.StatusForbidden, "order not assigned to you")
			return
		}
	}

	if err := store.MarkOrderNotCompleted(r.Context(), h.DB, id, userID(r)); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("order marked not completed", "user", claims.Username, "order_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "order marked not completed"})
}

// Retry handles POST /api/orders/{id}/retry, spawning the next attempt of a
// failed order.
func (h *OrdersHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req retryOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := store.RetryOrder(r.Context(), h.DB, id, req.TechnicianID)
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("order retried", "user", claims.Username, "order_id", id, "new_order_id", order.ID, "attempt", order.Attempt)
	jsonResponse(w, http.StatusCreated, order)
}
