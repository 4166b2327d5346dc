// Package handler implements the HTTP API surface.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/zariya-commerce/zariya/internal/domain"
	"github.com/zariya-commerce/zariya/internal/middleware"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse writes a failure envelope for any error. Domain errors map
// to their HTTP status; everything else becomes a 500 with a generic message
// so internals never leak to clients.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if fields := domain.GetValidationFields(err); fields != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{
			Message: "Validation failed",
			Errors:  fields,
		})
		return
	}

	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}

	writeJSON(w, status, Envelope{Message: domain.ErrorMessage(err)})
}
