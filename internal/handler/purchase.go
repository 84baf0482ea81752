package handler

import (
	"asset-management-api/internal/model"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type purchaseRequest struct {
	AssetDescription string        `json:"asset_description"`
	Quantity         int           `json:"quantity"`
	RequiredBy       uuid.NullUUID `json:"required_by"`
}

// PurchaseHandler handles the HTTP requests for purchase requests.
type PurchaseHandler struct {
	base
	Service PurchaseManager
}

// NewPurchaseHandler creates a new PurchaseHandler with dependencies and helpers
func NewPurchaseHandler(svc PurchaseManager, logger *log.Logger) *PurchaseHandler {
	return &PurchaseHandler{base: newBase(logger), Service: svc}
}

// CreatePurchaseHandler files a purchase request for the caller.
func (h *PurchaseHandler) CreatePurchaseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req purchaseRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	created, err := h.Service.CreatePurchase(ctx, actor, model.Purchase{
		AssetDescription: req.AssetDescription,
		Quantity:         req.Quantity,
		RequiredBy:       req.RequiredBy,
	})
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "create purchase request")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "Purchase request created successfully", created)
}

// GetAllPurchasesHandler lists purchase requests with pagination.
func (h *PurchaseHandler) GetAllPurchasesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	params, pageParams := h.pageRequest(r)
	page, err := h.Service.GetAllPurchases(ctx, pageParams)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve purchase requests")
		return
	}

	sendPage(h.base, w, params, page, "purchases", nil)
}

// GetPurchaseHandler returns a single purchase request.
func (h *PurchaseHandler) GetPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !valid {
		return
	}

	purchase, err := h.Service.GetPurchaseByID(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve purchase request")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, purchase)
}

// ApprovePurchaseHandler approves a purchase request.
func (h *PurchaseHandler) ApprovePurchaseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !valid {
		return
	}

	approved, err := h.Service.ApprovePurchase(ctx, actor, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "approve purchase request")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Purchase request approved successfully", approved)
}
