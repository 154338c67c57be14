package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eugenenazirov/pack-calculator/internal/calculator"
)

const maxRequestBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type packSizesRequest struct {
	PackSizes []int `json:"pack_sizes" validate:"required,min=1,max=100,dive,gt=0"`
}

type packSizeRequest struct {
	Size *int `json:"size" validate:"required,gt=0"`
}

// removePackSizeRequest leaves the sign of size to the registry: a size that
// is not registered is not found, whatever its value.
type removePackSizeRequest struct {
	Size *int `json:"size" validate:"required"`
}

// calculateRequest accepts an optional pack size override. An absent or
// empty override falls back to the registry.
type calculateRequest struct {
	Amount    *int  `json:"amount" validate:"required,gt=0"`
	PackSizes []int `json:"pack_sizes" validate:"omitempty,max=100,dive,gt=0"`
}

// decodeRequest reads a size-limited JSON body into dst and validates it.
// On failure the error response is already written and false is returned.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBodyTooLarge, "request body exceeds 1 MiB")
			return false
		}
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "unable to parse JSON payload")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			code, message := describeFieldError(fieldErrs[0])
			writeError(w, http.StatusBadRequest, code, message)
			return false
		}
		writeInternalError(w)
		return false
	}
	return true
}

func describeFieldError(fe validator.FieldError) (string, string) {
	field, _, _ := strings.Cut(fe.Field(), "[")
	switch field {
	case "amount":
		if fe.Tag() == "required" {
			return codeInvalidAmount, "amount is required"
		}
		return codeInvalidAmount, "amount must be a positive integer"
	case "size":
		if fe.Tag() == "required" {
			return codeInvalidSize, "size is required"
		}
		return codeInvalidSize, "size must be a positive integer"
	case "pack_sizes":
		switch fe.Tag() {
		case "gt":
			return codeInvalidPackSizes, "pack_sizes must contain only positive integers"
		case "max":
			return codeTooManyPackSizes, "pack_sizes must not contain more than " + strconv.Itoa(calculator.MaxPackSizes) + " sizes"
		}
		return codeInvalidPackSizes, "pack_sizes must contain at least one size"
	default:
		return codeInvalidJSON, fe.Error()
	}
}
