package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/teren/internal/model"
	"github.com/erazemk/teren/internal/store"
)

// HoldersHandler handles holder CRUD endpoints. Holders are technicians and
// warehouse locations, the two kinds of possession.
type HoldersHandler struct {
	DB *sql.DB
}

type createHolderRequest struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	UserID *int64 `json:"user_id,omitempty"`
}

type updateHolderRequest struct {
	Name   string `json:"name"`
	UserID *int64 `json:"user_id,omitempty"`
}

// List handles GET /api/holders.
func (h *HoldersHandler) List(w http.ResponseWriter, r *http.Request) {
	holderType := r.URL.Query().Get("type")
	holders, err := store.ListHolders(r.Context(), h.DB, holderType)
	if err != nil {
		slog.Error("failed to list holders", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list holders")
		return
	}
	if holders == nil {
		holders = []model.Holder{}
	}
	jsonResponse(w, http.StatusOK, holders)
}

// Create handles POST /api/holders.
func (h *HoldersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHolderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Type == "" {
		jsonError(w, http.StatusBadRequest, "name and type required")
		return
	}

	if req.Type != model.HolderTechnician && req.Type != model.HolderLocation {
		jsonError(w, http.StatusBadRequest, "type must be 'technician' or 'location'")
		return
	}

	if req.UserID != nil && req.Type != model.HolderTechnician {
		jsonError(w, http.StatusBadRequest, "only technicians can be linked to a user")
		return
	}

	holder, err := store.CreateHolder(r.Context(), h.DB, req.Name, req.Type, req.UserID)
	if err != nil {
		slog.Error("failed to create holder", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create holder")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("holder created", "user", claims.Username, "holder", req.Name, "type", req.Type)
	jsonResponse(w, http.StatusCreated, holder)
}

// Get handles GET /api/holders/{id}.
func (h *HoldersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	holder, err := store.GetHolder(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get holder", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get holder")
		return
	}
	if holder == nil || holder.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "holder not found")
		return
	}

	jsonResponse(w, http.StatusOK, holder)
}

// Update handles PUT /api/holders/{id}.
func (h *HoldersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	var req updateHolderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateHolder(r.Context(), h.DB, id, req.Name, req.UserID); err != nil {
		slog.Error("failed to update holder", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update holder")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("holder updated", "user", claims.Username, "holder", req.Name)
	holder, _ := store.GetHolder(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, holder)
}

// Delete handles DELETE /api/holders/{id}.
func (h *HoldersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	holder, _ := store.GetHolder(r.Context(), h.DB, id)
	holderName := fmt.Sprintf("id:%d", id)
	if holder != nil {
		holderName = holder.Name
	}

	if err := store.DeleteHolder(r.Context(), h.DB, id); err != nil {
		slog.Warn("failed to delete holder", "holder", holderName, "error", err)
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("holder deleted", "user", claims.Username, "holder", holderName)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "holder deleted"})
}

// GetInventory handles GET /api/holders/{id}/inventory. It returns every
// device and non-empty material lot the holder possesses, plus any material
// deficits if the holder is a technician.
func (h *HoldersHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, "", "", id, false)
	if err != nil {
		slog.Error("failed to get holder inventory", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get holder inventory")
		return
	}
	if items == nil {
		items = []model.Item{}
	}

	deficits, err := store.ListDeficits(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get holder deficits", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get holder deficits")
		return
	}
	if deficits == nil {
		deficits = []model.Deficit{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"items":    items,
		"deficits": deficits,
	})
}
