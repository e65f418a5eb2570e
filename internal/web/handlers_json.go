package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vitos/yield_staking/internal/domain"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

var errBadRequest = errors.New("malformed request")

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrInvalidPoolType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrLedgerNotInitialized),
		errors.Is(err, domain.ErrPositionNotFound),
		errors.Is(err, domain.ErrProposalNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrStaleLedger),
		errors.Is(err, domain.ErrProposalExecuted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStake),
		errors.Is(err, domain.ErrWithdrawalTooFrequent),
		errors.Is(err, domain.ErrStakePeriodTooShort),
		errors.Is(err, domain.ErrClaimTooSoon),
		errors.Is(err, domain.ErrInvalidProof),
		errors.Is(err, domain.ErrNoRewards),
		errors.Is(err, domain.ErrMathOverflow),
		errors.Is(err, domain.ErrTransferFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, s.logger, status, errorBody{Error: err.Error()})
}

func (s *Server) pathProduct(r *http.Request) (domain.Product, error) {
	return domain.ParseProduct(r.PathValue("product"))
}
