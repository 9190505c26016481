package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/taskboard/services"
	"github.com/upb/taskboard/utils"
	"go.uber.org/zap"
)

// writeDomainError translates a service error into the response envelope.
// Only the taxonomy category crosses the boundary; internal detail stays in
// the logs.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error("unexpected error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	switch domainErr.Type {
	case services.ErrorTypeNotFound:
		_ = utils.WriteNotFound(w, domainErr.Message)
	case services.ErrorTypeValidation:
		_ = utils.WriteBadRequest(w, domainErr.Message, nil)
	case services.ErrorTypeUnauthorized:
		_ = utils.WriteUnauthorized(w, "Not authorized")
	case services.ErrorTypeForbidden:
		_ = utils.WriteForbidden(w, "Not authorized")
	default:
		// Conflict and internal both collapse to a generic server error;
		// linking races are retried inside the service and only land here
		// when recovery failed.
		logger.Error("request failed", zap.String("type", string(domainErr.Type)), zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
	}
}
