package handler

import (
	"asset-management-api/internal/repository"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Request timeouts applied by handlers on top of the router deadline
const (
	DefaultTimeout     = 10 * time.Second
	LongRunningTimeout = 15 * time.Second
)

// ErrorResponse is the JSON body of every error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// SuccessResponse wraps the data of every successful response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ResponseHelper builds request contexts and response bodies
type ResponseHelper struct{}

// NewResponseHelper creates a new ResponseHelper instance
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Page sizes accepted from the page_size query parameter
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest is a 1-based page as requested by the client
type PageRequest struct {
	Page     int
	PageSize int
}

// Window converts the page into the offset and limit the store reads
func (p PageRequest) Window() repository.PaginationParams {
	return repository.PaginationParams{Offset: (p.Page - 1) * p.PageSize, Limit: p.PageSize}
}

// PaginationMeta describes the page returned alongside a list
type PaginationMeta struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// ParsePageRequest reads page and page_size. Missing, malformed and out of
// range values fall back to the first page of DefaultPageSize items.
func (rh *ResponseHelper) ParsePageRequest(r *http.Request) PageRequest {
	query := r.URL.Query()
	return PageRequest{
		Page:     queryInt(query, "page", 1, 1, 0),
		PageSize: queryInt(query, "page_size", DefaultPageSize, 1, MaxPageSize),
	}
}

// queryInt parses key, returning def when it is absent or outside
// [min, max]. A max of zero means unbounded.
func queryInt(query url.Values, key string, def, min, max int) int {
	v, err := strconv.Atoi(query.Get(key))
	if err != nil || v < min || (max > 0 && v > max) {
		return def
	}
	return v
}

// CalculatePaginationMeta derives page counts from the total the store
// reported. An empty list still has one page.
func (rh *ResponseHelper) CalculatePaginationMeta(req PageRequest, totalItems int) PaginationMeta {
	totalPages := (totalItems + req.PageSize - 1) / req.PageSize
	if totalPages == 0 {
		totalPages = 1
	}

	return PaginationMeta{
		Page:        req.Page,
		PageSize:    req.PageSize,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     req.Page < totalPages,
		HasPrevious: req.Page > 1,
	}
}

// CreateRequestContext bounds the work a handler does for one request
func (rh *ResponseHelper) CreateRequestContext(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}

// CreateResourceSuccessData creates success response data for operations
// that return no body of their own
func (rh *ResponseHelper) CreateResourceSuccessData(id string) map[string]interface{} {
	return map[string]interface{}{"id": id}
}

// CreateListResponseData puts a page of items under key, next to its
// pagination meta and any scope fields such as the filtering user id.
func (rh *ResponseHelper) CreateListResponseData(key string, items interface{}, pagination PaginationMeta, scope map[string]interface{}) map[string]interface{} {
	data := make(map[string]interface{}, len(scope)+2)
	for k, v := range scope {
		data[k] = v
	}
	data[key] = items
	data["pagination"] = pagination
	return data
}

// CreateHealthCheckData creates health check response data
func (rh *ResponseHelper) CreateHealthCheckData(status string, checks map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"service":   "asset-management-api",
		"status":    status,
		"checks":    checks,
	}
}
