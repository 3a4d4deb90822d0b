package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/signet/request"
	"github.com/jmcleod/signet/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, request.ErrUnknownCertificateType),
		errors.Is(err, request.ErrInvalidDuration),
		errors.Is(err, request.ErrIssuerNotAllowed),
		errors.Is(err, request.ErrIssuerIsEndEntity),
		errors.Is(err, request.ErrDurationExceedsIssuer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, request.ErrPrincipalNotFound):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, request.ErrRootPermissionDenied),
		errors.Is(err, request.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, request.ErrIssuerNotFound),
		errors.Is(err, request.ErrRequestNotFound),
		errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, request.ErrRequestAlreadyProcessed),
		errors.Is(err, storage.ErrStatusConflict),
		errors.Is(err, storage.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, request.ErrIssuanceFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
