package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"affidamento/internal/extract"
	"affidamento/internal/pipeline"
	"affidamento/internal/reconcile"
	"affidamento/internal/storage"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// classify maps domain errors to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrQuoteNotFound):
		return http.StatusNotFound, "quote_not_found"
	case errors.Is(err, reconcile.ErrSupplierNotFound):
		return http.StatusNotFound, "supplier_not_found"
	case errors.Is(err, pipeline.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.Is(err, extract.ErrNotPDF):
		return http.StatusUnsupportedMediaType, "not_pdf"
	case errors.Is(err, extract.ErrEmptyDocument):
		return http.StatusUnprocessableEntity, "no_text"
	case errors.Is(err, reconcile.ErrExtractionUnavailable):
		return http.StatusBadGateway, "extraction_unavailable"
	case errors.Is(err, reconcile.ErrRegistryUnavailable):
		return http.StatusServiceUnavailable, "registry_unavailable"
	case errors.Is(err, pipeline.ErrQuoteState), errors.Is(err, reconcile.ErrSessionState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, pipeline.ErrNoExtracted):
		return http.StatusConflict, "not_parsed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
