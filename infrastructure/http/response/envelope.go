package response

import (
	"encoding/json"
	"net/http"

	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ErrorBody is the data of a failed response
type ErrorBody struct {
	Code    apperr.ErrorCode `json:"code,omitempty"`
	Kind    apperr.Kind      `json:"kind,omitempty"`
	Details string           `json:"details,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, status bool, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	envelope := Envelope{
		Status:  status,
		Message: message,
		Data:    data,
	}

	json.NewEncoder(w).Encode(envelope)
}

func Success(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, true, message, data)
}

func Error(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, false, message, nil)
}

// FromError writes err with the status its kind maps to. Unclassified errors
// are reported as a generic internal error without their text.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	resp := apperr.NewErrorResponse(err, logger.CorrelationID(r.Context()))
	message := resp.Error.Message
	body := ErrorBody{
		Code:    resp.Error.Code,
		Kind:    resp.Error.Kind,
		Details: resp.Error.Details,
		TraceID: resp.TraceID,
	}
	WriteJSON(w, apperr.GetHTTPStatusCode(err), false, message, body)
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}
