package handler

import (
	"net/http"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/infrastructure/http/middleware"
	"github.com/brandpilot/brandpilot/infrastructure/http/response"
)

func operatorID(r *http.Request) string {
	if claims := middleware.OperatorFrom(r.Context()); claims != nil {
		return claims.OperatorID
	}
	return ""
}

// writeExecution maps an execution outcome to a status code. Rejections are
// conflicts, failures are 503s.
func writeExecution(w http.ResponseWriter, result *inbound.ExecutionResult) {
	switch result.Outcome {
	case inbound.ExecutionApplied:
		response.Success(w, http.StatusOK, "Action applied", result)
	case inbound.ExecutionRejected:
		response.WriteJSON(w, http.StatusConflict, false, result.Reason, result)
	default:
		response.WriteJSON(w, http.StatusServiceUnavailable, false, result.Reason, result)
	}
}
