package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/teren/internal/model"
	"github.com/erazemk/teren/internal/store"
)

// MaterialsHandler handles material definition endpoints. Definitions name
// the consumables; actual stock lives in material lots.
type MaterialsHandler struct {
	DB *sql.DB
}

type createMaterialRequest struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// List handles GET /api/materials.
func (h *MaterialsHandler) List(w http.ResponseWriter, r *http.Request) {
	materials, err := store.ListMaterials(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list materials", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list materials")
		return
	}
	if materials == nil {
		materials = []model.Material{}
	}
	jsonResponse(w, http.StatusOK, materials)
}

// Create handles POST /api/materials.
func (h *MaterialsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMaterialRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Unit == "" {
		jsonError(w, http.StatusBadRequest, "name and unit required")
		return
	}

	material, err := store.CreateMaterial(r.Context(), h.DB, req.Name, req.Unit)
	if err != nil {
		slog.Error("failed to create material", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create material")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("material created", "user", claims.Username, "material", req.Name, "unit", req.Unit)
	jsonResponse(w, http.StatusCreated, material)
}

// Get handles GET /api/materials/{id}.
func (h *MaterialsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid material id")
		return
	}

	material, err := store.GetMaterial(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get material", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get material")
		return
	}
	if material == nil || material.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "material not found")
		return
	}

	jsonResponse(w, http.StatusOK, material)
}

// Delete handles DELETE /api/materials/{id}.
func (h *MaterialsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid material id")
		return
	}

	if err := store.DeleteMaterial(r.Context(), h.DB, id); err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("material deleted", "user", claims.Username, "material_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "material deleted"})
}
