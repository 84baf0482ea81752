package handler

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/recipient"
	"asset-management-api/internal/service"
	apperrors "asset-management-api/pkg/errors"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// immutableAllocationFields may never be set through a generic update.
// Status moves only through approve, reject and expiry.
var immutableAllocationFields = []string{
	"status", "asset", "asset_id", "assetId",
	"allocated_to", "allocatedTo", "allocated_by", "allocatedBy",
	"approved_by", "approvedBy",
}

// createAllocationRequest is the body of POST /allocation. The recipient may
// be given as a bare id or as an embedded user object.
type createAllocationRequest struct {
	AssetID     uuid.UUID            `json:"asset_id"`
	AllocatedTo *recipient.Reference `json:"allocated_to"`
	Type        model.AllocationType `json:"allocation_type"`
	StartTime   string               `json:"start_time"`
	EndTime     string               `json:"end_time"`
	Purpose     string               `json:"purpose"`
}

type updateAllocationRequest struct {
	Type      *model.AllocationType `json:"allocation_type"`
	Purpose   *string               `json:"purpose"`
	StartTime *string               `json:"start_time"`
	EndTime   *string               `json:"end_time"`
	Version   *int                  `json:"version"`
}

type rejectAllocationRequest struct {
	Reason string `json:"reason"`
}

// AllocationHandler handles the HTTP requests for allocations.
type AllocationHandler struct {
	base
	Service AllocationManager
}

// NewAllocationHandler creates a new AllocationHandler with dependencies and helpers
func NewAllocationHandler(svc AllocationManager, logger *log.Logger) *AllocationHandler {
	return &AllocationHandler{base: newBase(logger), Service: svc}
}

// CreateAllocationHandler opens a pending allocation for the caller.
func (h *AllocationHandler) CreateAllocationHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req createAllocationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	allocation := model.Allocation{
		AssetID:   req.AssetID,
		Type:      req.Type,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Purpose:   req.Purpose,
	}
	if req.AllocatedTo != nil {
		ids := recipient.NormalizeIdentities(*req.AllocatedTo)
		if len(ids) == 0 {
			h.ErrorHandler.HandleValidationErrors(w, map[string]string{"allocated_to": "must reference a user"})
			return
		}
		allocation.AllocatedTo = uuid.NullUUID{UUID: ids[0], Valid: true}
	}

	created, err := h.Service.CreateAllocation(ctx, actor, allocation)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "create allocation")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "Allocation created successfully", created)
}

// GetAllAllocationsHandler lists allocations with pagination.
func (h *AllocationHandler) GetAllAllocationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	params, pageParams := h.pageRequest(r)
	page, err := h.Service.GetAllAllocations(ctx, pageParams)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve allocations")
		return
	}

	sendPage(h.base, w, params, page, "allocations", nil)
}

// GetAllocationHandler returns a single allocation.
func (h *AllocationHandler) GetAllocationHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !valid {
		return
	}

	allocation, err := h.Service.GetAllocationByID(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve allocation")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, allocation)
}

// GetUserAllocationsHandler lists allocations a user requested or receives.
func (h *AllocationHandler) GetUserAllocationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	userID, valid := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !valid {
		return
	}

	params, pageParams := h.pageRequest(r)
	page, err := h.Service.GetAllocationsByUser(ctx, userID, pageParams)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve user allocations")
		return
	}

	sendPage(h.base, w, params, page, "allocations", map[string]interface{}{"user_id": userID})
}

// GetAssetAllocationsHandler lists the allocation history of an asset.
func (h *AllocationHandler) GetAssetAllocationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	assetID, valid := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !valid {
		return
	}

	params, pageParams := h.pageRequest(r)
	page, err := h.Service.GetAllocationsByAsset(ctx, assetID, pageParams)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve asset allocations")
		return
	}

	sendPage(h.base, w, params, page, "allocations", map[string]interface{}{"asset_id": assetID})
}

// UpdateAllocationHandler changes purpose, window or type of an allocation.
// Bodies naming status, asset or any of the people involved are rejected.
func (h *AllocationHandler) UpdateAllocationHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !valid {
		return
	}

	var raw map[string]json.RawMessage
	if !h.decodeJSON(w, r, &raw) {
		return
	}
	if problems := immutableFieldProblems(raw); len(problems) > 0 {
		h.ErrorHandler.HandleValidationErrors(w, problems)
		return
	}

	var req updateAllocationRequest
	if err := decodeRaw(raw, &req); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}

	updated, err := h.Service.UpdateAllocation(ctx, actor, id, service.AllocationUpdateRequest{
		Type:      req.Type,
		Purpose:   req.Purpose,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Version:   req.Version,
	})
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "update allocation")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Allocation updated successfully", updated)
}

// ApproveAllocationHandler approves a pending allocation.
func (h *AllocationHandler) ApproveAllocationHandler(w http.ResponseWriter, r *http.Request) {
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

	approved, err := h.Service.ApproveAllocation(ctx, actor, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "approve allocation")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Allocation approved successfully", approved)
}

// RejectAllocationHandler rejects a pending allocation. The body and its
// reason are optional.
func (h *AllocationHandler) RejectAllocationHandler(w http.ResponseWriter, r *http.Request) {
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

	var req rejectAllocationRequest
	if !h.decodeOptionalJSON(w, r, &req) {
		return
	}

	rejected, err := h.Service.RejectAllocation(ctx, actor, id, req.Reason)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "reject allocation")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Allocation rejected successfully", rejected)
}

func immutableFieldProblems(raw map[string]json.RawMessage) map[string]string {
	problems := make(map[string]string)
	for _, field := range immutableAllocationFields {
		if _, ok := raw[field]; ok {
			problems[field] = "cannot be changed through an update"
		}
	}
	return problems
}

// decodeRaw re-decodes an already parsed object into dst
func decodeRaw(raw map[string]json.RawMessage, dst interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return apperrors.InvalidJSONError(err)
	}
	return json.Unmarshal(data, dst)
}
