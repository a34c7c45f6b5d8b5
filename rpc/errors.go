package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"playmint/crypto"
	"playmint/gateway/middleware"
	"playmint/native/issuance"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, issuance.ErrNotBootstrapped):
		return http.StatusServiceUnavailable
	case errors.Is(err, issuance.ErrUnknownValidator),
		errors.Is(err, issuance.ErrUnknownBeneficiary):
		return http.StatusNotFound
	case errors.Is(err, issuance.ErrUnauthorized),
		errors.Is(err, issuance.ErrGatewayRejected):
		return http.StatusForbidden
	case errors.Is(err, issuance.ErrValidatorExists),
		errors.Is(err, issuance.ErrNameTaken),
		errors.Is(err, issuance.ErrCooldownActive),
		errors.Is(err, issuance.ErrBeneficiaryLimit),
		errors.Is(err, issuance.ErrAlreadyBootstrapped):
		return http.StatusConflict
	case errors.Is(err, issuance.ErrReferenceMismatch),
		errors.Is(err, issuance.ErrCommissionMismatch),
		errors.Is(err, issuance.ErrInvalidPolicy),
		errors.Is(err, issuance.ErrUnknownLockField),
		errors.Is(err, issuance.ErrInvalidName),
		errors.Is(err, issuance.ErrInvalidDestination),
		errors.Is(err, crypto.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, issuance.ErrOverflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFrom(r.Context())),
			slog.String("error", err.Error()))
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: message, RequestID: middleware.RequestIDFrom(r.Context())})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, RequestID: middleware.RequestIDFrom(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeBody decodes an optional JSON body. Empty bodies leave out untouched.
func decodeBody(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
