package handler

import (
	apperrors "asset-management-api/pkg/errors"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
)

// ErrorHandler provides centralized error handling functionality for handlers
type ErrorHandler struct {
	Logger *log.Logger
}

// NewErrorHandler creates a new ErrorHandler instance
func NewErrorHandler(logger *log.Logger) *ErrorHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &ErrorHandler{
		Logger: logger,
	}
}

// SendErrorResponse sends a structured error response
func (e *ErrorHandler) SendErrorResponse(w http.ResponseWriter, statusCode int, message, code string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		e.Logger.Printf("Failed to encode error response: %v", err)
	}
}

// SendSuccessResponse sends a structured success response
func (e *ErrorHandler) SendSuccessResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := SuccessResponse{
		Message: message,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		e.Logger.Printf("Failed to encode success response: %v", err)
	}
}

// SendJSONResponse sends a generic JSON response
func (e *ErrorHandler) SendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		e.Logger.Printf("Failed to encode JSON response: %v", err)
		e.SendErrorResponse(w, http.StatusInternalServerError, "Failed to encode response", "ENCODING_ERROR", nil)
	}
}

// HandleServiceError maps an error returned by a service to an HTTP response.
// Application errors keep their code; anything else is logged and reported
// as an internal error.
func (e *ErrorHandler) HandleServiceError(w http.ResponseWriter, err error, operation string) {
	if errors.Is(err, context.DeadlineExceeded) {
		e.Logger.Printf("Timeout during %s: %v", operation, err)
		e.SendAppError(w, apperrors.TimeoutError(operation))
		return
	}

	appErr := apperrors.WrapError(err, "Failed to "+operation)
	if appErr.GetHTTPStatus() >= http.StatusInternalServerError {
		e.Logger.Printf("Service error during %s: %v", operation, appErr)
	}
	e.SendAppError(w, appErr)
}

// SendAppError writes an application error with its status and details
func (e *ErrorHandler) SendAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	var details map[string]string
	if len(appErr.Details) > 0 {
		details = make(map[string]string, len(appErr.Details))
		for k, v := range appErr.Details {
			details[k] = fmt.Sprint(v)
		}
	}
	message := appErr.Message
	if appErr.GetHTTPStatus() >= http.StatusInternalServerError && appErr.Code != apperrors.ErrorCodeTimeout {
		// causes may carry SQL, keep them in the log
		message = "Internal server error"
	}
	e.SendErrorResponse(w, appErr.GetHTTPStatus(), message, string(appErr.Code), details)
}

// HandleValidationErrors handles validation errors and sends appropriate response
func (e *ErrorHandler) HandleValidationErrors(w http.ResponseWriter, validationErrors map[string]string) {
	if len(validationErrors) > 0 {
		e.SendErrorResponse(w, http.StatusBadRequest, "Validation failed", string(apperrors.ErrorCodeValidation), validationErrors)
	}
}

// HandleJSONDecodeError handles JSON decoding errors
func (e *ErrorHandler) HandleJSONDecodeError(w http.ResponseWriter, err error) {
	e.Logger.Printf("JSON decode error: %v", err)
	e.SendErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", string(apperrors.ErrorCodeInvalidJSON), nil)
}

// HandleUUIDParseError handles UUID parsing errors
func (e *ErrorHandler) HandleUUIDParseError(w http.ResponseWriter, err error) {
	e.Logger.Printf("UUID parse error: %v", err)
	e.SendErrorResponse(w, http.StatusBadRequest, "Invalid UUID format", string(apperrors.ErrorCodeInvalidID), nil)
}

// ParseAndValidateUUID parses and validates UUID from string
func (e *ErrorHandler) ParseAndValidateUUID(w http.ResponseWriter, idStr string) (uuid.UUID, bool) {
	if idStr == "" {
		e.SendErrorResponse(w, http.StatusBadRequest, "ID is required", string(apperrors.ErrorCodeInvalidID), nil)
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		e.HandleUUIDParseError(w, err)
		return uuid.Nil, false
	}

	return id, true
}
