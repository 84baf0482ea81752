package handler

import (
	"asset-management-api/internal/model"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// assetRequest carries the descriptive fields of an asset. Owner,
// availability and allocation are not accepted from clients.
type assetRequest struct {
	Name         string           `json:"name"`
	Model        string           `json:"model"`
	SerialNumber string           `json:"serial_number"`
	Description  string           `json:"description"`
	State        model.AssetState `json:"state"`
	PurchaserID  uuid.NullUUID    `json:"purchaser_id"`
}

func (req assetRequest) toModel() model.Asset {
	return model.Asset{
		Name:         req.Name,
		Model:        req.Model,
		SerialNumber: req.SerialNumber,
		Description:  req.Description,
		State:        req.State,
		PurchaserID:  req.PurchaserID,
	}
}

// AssetHandler handles the HTTP requests for assets.
type AssetHandler struct {
	base
	Service AssetManager
}

// NewAssetHandler creates a new AssetHandler with dependencies and helpers
func NewAssetHandler(svc AssetManager, logger *log.Logger) *AssetHandler {
	return &AssetHandler{base: newBase(logger), Service: svc}
}

// CreateAssetHandler handles the creation of a new asset.
func (h *AssetHandler) CreateAssetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req assetRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	created, err := h.Service.CreateAsset(ctx, actor, req.toModel())
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "create asset")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "Asset created successfully", created)
}

// GetAllAssetsHandler handles the retrieval of all assets with pagination.
func (h *AssetHandler) GetAllAssetsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	params, pageParams := h.pageRequest(r)
	page, err := h.Service.GetAllAssets(ctx, pageParams)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve assets")
		return
	}

	sendPage(h.base, w, params, page, "assets", nil)
}

// GetAssetHandler handles the retrieval of a single asset.
func (h *AssetHandler) GetAssetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !valid {
		return
	}

	asset, err := h.Service.GetAssetByID(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve asset")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, asset)
}

// UpdateAssetHandler handles updating the descriptive fields of an asset.
func (h *AssetHandler) UpdateAssetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !valid {
		return
	}

	var req assetRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.Service.UpdateAsset(ctx, id, req.toModel())
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "update asset")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Asset updated successfully", updated)
}

// DeleteAssetHandler handles the deletion of an asset.
func (h *AssetHandler) DeleteAssetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !valid {
		return
	}

	if err := h.Service.DeleteAsset(ctx, id); err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "delete asset")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Asset deleted successfully", h.ResponseHelper.CreateResourceSuccessData(id.String()))
}
