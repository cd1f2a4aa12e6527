package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tokenmart/marketd/internal/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps domain errors onto HTTP status codes deterministically:
// validation 400, authorization 403, absent state 404, conflicting state and
// blocked reentrancy 409, settlement 502. Anything unlabeled is a 500.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		logger.Error().Err(err).Msg("Internal error")
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch derr.Kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindAuthorization:
		status = http.StatusForbidden
	case domain.KindState:
		switch derr.Code {
		case domain.ErrNotFound.Code, domain.ErrNoFeesToWithdraw.Code:
			status = http.StatusNotFound
		default:
			status = http.StatusConflict
		}
	case domain.KindSettlement:
		status = http.StatusBadGateway
	case domain.KindSafety:
		if derr.Code == domain.ErrFeeTooHigh.Code {
			status = http.StatusBadRequest
		} else {
			status = http.StatusConflict
		}
	}
	writeJSON(w, status, errorBody{Code: derr.Code, Message: err.Error()})
}
