package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/eugenenazirov/pack-calculator/internal/calculator"
	"github.com/eugenenazirov/pack-calculator/internal/storage"
)

// Error codes returned in the "error" field of every failure response.
const (
	codeInvalidJSON      = "invalid_json"
	codeBodyTooLarge     = "body_too_large"
	codeInvalidSize      = "invalid_size"
	codeInvalidPackSizes = "invalid_pack_sizes"
	codeTooManyPackSizes = "too_many_pack_sizes"
	codeInvalidAmount    = "invalid_amount"
	codeDuplicate        = "duplicate"
	codeNotFound         = "not_found"
	codeLastSizeRemoval  = "last_size_removal"
	codeNoFeasiblePlan   = "no_feasible_plan"
	codeAmountTooLarge   = "amount_too_large"
	codeCalcTimeout      = "calculation_timeout"
	codeRateLimited      = "rate_limited"
	codeInternal         = "internal_error"
)

var errorMappings = []struct {
	target error
	status int
	code   string
}{
	{storage.ErrInvalidSize, http.StatusBadRequest, codeInvalidSize},
	{storage.ErrInvalidPackSizes, http.StatusBadRequest, codeInvalidPackSizes},
	{storage.ErrTooManySizes, http.StatusBadRequest, codeTooManyPackSizes},
	{storage.ErrDuplicate, http.StatusConflict, codeDuplicate},
	{storage.ErrNotFound, http.StatusNotFound, codeNotFound},
	{storage.ErrLastSizeRemoval, http.StatusConflict, codeLastSizeRemoval},
	{calculator.ErrInvalidAmount, http.StatusBadRequest, codeInvalidAmount},
	{calculator.ErrInvalidPackSizes, http.StatusBadRequest, codeInvalidPackSizes},
	{calculator.ErrNoFeasiblePlan, http.StatusUnprocessableEntity, codeNoFeasiblePlan},
	{calculator.ErrAmountTooLarge, http.StatusUnprocessableEntity, codeAmountTooLarge},
	{calculator.ErrTooManyPackSizes, http.StatusBadRequest, codeTooManyPackSizes},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, codeCalcTimeout},
	{context.Canceled, http.StatusServiceUnavailable, codeCalcTimeout},
}

// classifyError maps a domain error to its HTTP status and error code.
// Unknown errors are reported as internal errors.
func classifyError(err error) (int, string, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, true
		}
	}
	return http.StatusInternalServerError, codeInternal, false
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error:   code,
		Message: message,
	})
}

// writeDomainError reports err using the mapping table. Internal errors are
// not echoed to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code, known := classifyError(err)
	if !known {
		writeInternalError(w)
		return
	}
	writeError(w, status, code, err.Error())
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, codeInternal, "unexpected server error")
}
