package api

import (
	"errors"
	"net/http"

	"github.com/flockops/safeguard/internal/core"
)

// httpStatusForDomainError maps domain error categories to HTTP status codes.
func httpStatusForDomainError(err error) int {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) {
		return http.StatusInternalServerError
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity
	case core.ErrCatNotFound:
		return http.StatusNotFound
	case core.ErrCatConflict:
		return http.StatusConflict
	case core.ErrCatAuth:
		return http.StatusUnauthorized
	case core.ErrCatRateLimit:
		return http.StatusTooManyRequests
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout
	case core.ErrCatVendor:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes an error response with the mapped status. Internal
// detail stays in the logs; clients get the domain message only.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	status := httpStatusForDomainError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}

	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		respondJSON(w, status, map[string]string{
			"error": domErr.Message,
			"code":  domErr.Code,
		})
		return
	}
	respondError(w, status, "internal server error")
}
