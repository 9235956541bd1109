package handlers

import (
	"net/http"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/logger"
)

func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error, internalMessage string) {
	var status int
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		status = http.StatusNotFound
	case apperror.Is(err, apperror.KindValidation):
		status = http.StatusBadRequest
	case apperror.Is(err, apperror.KindConflict):
		status = http.StatusConflict
	case apperror.Is(err, apperror.KindUnauthorized):
		status = http.StatusUnauthorized
	case apperror.Is(err, apperror.KindForbidden):
		status = http.StatusForbidden
	default:
		if log != nil {
			log.WithError(err).WithField("path", r.URL.Path).Error(internalMessage)
		}
		writeErrorResponse(w, r, http.StatusInternalServerError, internalMessage, "internal_error")
		return
	}
	writeErrorResponse(w, r, status, clientMessage(err), apperror.CodeOf(err))
}
