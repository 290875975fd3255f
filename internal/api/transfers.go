package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/model"
	"github.com/erazemk/teren/internal/store"
)

// TransfersHandler handles the technician-to-technician handover protocol.
// A transfer holds the item in limbo until the recipient confirms it.
type TransfersHandler struct {
	DB *sql.DB
}

type createTransferRequest struct {
	ToHolderID int64            `json:"to_holder_id"`
	ItemID     int64            `json:"item_id"`
	Quantity   *decimal.Decimal `json:"quantity,omitempty"`
}

// Create handles POST /api/transfers. The sender is the authenticated
// technician.
func (h *TransfersHandler) Create(w http.ResponseWriter, r *http.Request) {
	holder, err := actingHolder(r, h.DB)
	if err != nil {
		storeError(w, err)
		return
	}

	var req createTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ToHolderID == 0 || req.ItemID == 0 {
		jsonError(w, http.StatusBadRequest, "to_holder_id and item_id required")
		return
	}

	request, err := store.RequestTransfer(r.Context(), h.DB, holder.ID, req.ToHolderID, req.ItemID, req.Quantity, userID(r))
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("transfer requested", "from", holder.Name, "to_holder_id", req.ToHolderID, "item_id", req.ItemID)
	jsonResponse(w, http.StatusCreated, request)
}

// List handles GET /api/transfers with holder and status filters.
func (h *TransfersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var holderID int64
	if v := q.Get("holder"); v != "" {
		var err error
		holderID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid holder id")
			return
		}
	}

	requests, err := store.ListTransferRequests(r.Context(), h.DB, holderID, q.Get("status"))
	if err != nil {
		slog.Error("failed to list transfers", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list transfers")
		return
	}
	if requests == nil {
		requests = []model.TransferRequest{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// Get handles GET /api/transfers/{id}.
func (h *TransfersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid transfer id")
		return
	}

	request, err := store.GetTransferRequest(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get transfer", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get transfer")
		return
	}
	if request == nil {
		jsonError(w, http.StatusNotFound, "transfer not found")
		return
	}

	jsonResponse(w, http.StatusOK, request)
}

// Confirm handles POST /api/transfers/{id}/confirm. Only the recipient can
// confirm; possession moves atomically with the confirmation.
func (h *TransfersHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "confirmed", store.ConfirmTransfer)
}

// Reject handles POST /api/transfers/{id}/reject.
func (h *TransfersHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "rejected", store.RejectTransfer)
}

// Cancel handles POST /api/transfers/{id}/cancel. Only the sender can cancel.
func (h *TransfersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "cancelled", store.CancelTransfer)
}

func (h *TransfersHandler) resolve(w http.ResponseWriter, r *http.Request, verb string,
	fn func(ctx context.Context, db *sql.DB, requestID, holderID int64, userID *int64) error) {

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid transfer id")
		return
	}

	holder, err := actingHolder(r, h.DB)
	if err != nil {
		storeError(w, err)
		return
	}

	if err := fn(r.Context(), h.DB, id, holder.ID, userID(r)); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("transfer "+verb, "holder", holder.Name, "transfer_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "transfer " + verb})
}
