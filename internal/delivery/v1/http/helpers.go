package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrEmptyQuery):
		return http.StatusBadRequest, e.ErrEmptyQuery.Error()
	case errors.Is(err, e.ErrQueryTooLong):
		return http.StatusBadRequest, e.ErrQueryTooLong.Error()
	case errors.Is(err, e.ErrInvalidPage):
		return http.StatusBadRequest, e.ErrInvalidPage.Error()
	case errors.Is(err, e.ErrInvalidPageSize):
		return http.StatusBadRequest, e.ErrInvalidPageSize.Error()
	case errors.Is(err, e.ErrInvalidPrice):
		return http.StatusBadRequest, e.ErrInvalidPrice.Error()
	case errors.Is(err, e.ErrInvalidRequest):
		return http.StatusBadRequest, e.ErrInvalidRequest.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error()
	case errors.Is(err, e.ErrImageUnavailable):
		return http.StatusUnprocessableEntity, e.ErrImageUnavailable.Error()
	case errors.Is(err, e.ErrEmbedderNotConfigured):
		return http.StatusServiceUnavailable, e.ErrEmbedderNotConfigured.Error()
	case errors.Is(err, e.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, e.ErrIndexUnavailable.Error()
	case errors.Is(err, e.ErrEmbeddingFailure):
		return http.StatusBadGateway, e.ErrEmbeddingFailure.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// renderPrice переводит цену из центов в строку вида "599.99".
func renderPrice(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
