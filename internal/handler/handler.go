package handler

import (
	"asset-management-api/internal/middleware"
	"asset-management-api/internal/repository"
	"asset-management-api/internal/service"
	apperrors "asset-management-api/pkg/errors"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
)

// maxBodyBytes caps every JSON request body
const maxBodyBytes = 1 << 20

// base carries the helpers every resource handler shares
type base struct {
	Logger *log.Logger

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

func newBase(logger *log.Logger) base {
	if logger == nil {
		logger = log.Default()
	}
	return base{
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// actor returns the authenticated caller or writes a 401
func (b base) actor(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		b.ErrorHandler.SendAppError(w, apperrors.UnauthorizedError("authentication required"))
		return service.Actor{}, false
	}
	return actor, true
}

// decodeJSON decodes a bounded request body into dst or writes a 400
func (b base) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		b.ErrorHandler.HandleJSONDecodeError(w, err)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for bodies that may be empty
func (b base) decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		b.ErrorHandler.HandleJSONDecodeError(w, err)
		return false
	}
	return true
}

func (b base) pageRequest(r *http.Request) (PageRequest, repository.PaginationParams) {
	req := b.ResponseHelper.ParsePageRequest(r)
	return req, req.Window()
}

// sendPage writes a list under key, never as null
func sendPage[T any](b base, w http.ResponseWriter, req PageRequest, page *repository.Page[T], key string, scope map[string]interface{}) {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	meta := b.ResponseHelper.CalculatePaginationMeta(req, page.TotalCount)
	b.ErrorHandler.SendJSONResponse(w, http.StatusOK, b.ResponseHelper.CreateListResponseData(key, items, meta, scope))
}
