package error

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Kind groups error codes by the remediation they need
type Kind string

const (
	KindNotFound                Kind = "NotFound"
	KindInvalidState            Kind = "InvalidState"
	KindInvalidTransition       Kind = "InvalidTransition"
	KindBudgetExceeded          Kind = "BudgetExceeded"
	KindPersistence             Kind = "PersistenceError"
	KindCollaboratorUnavailable Kind = "CollaboratorUnavailable"
	KindValidation              Kind = "Validation"
)

// Error codes for different categories
const (
	// Lookup Errors (1xxx)
	ErrCodeApprovalNotFound   ErrorCode = "NOTFOUND_1001"
	ErrCodeDeploymentNotFound ErrorCode = "NOTFOUND_1002"
	ErrCodeTicketNotFound     ErrorCode = "NOTFOUND_1003"
	ErrCodeDomainNotFound     ErrorCode = "NOTFOUND_1004"
	ErrCodeBriefNotFound      ErrorCode = "NOTFOUND_1005"
	ErrCodeAuditNotFound      ErrorCode = "NOTFOUND_1006"

	// State Errors (2xxx)
	ErrCodeAlreadyDecided     ErrorCode = "STATE_2001"
	ErrCodeRollbackUsed       ErrorCode = "STATE_2002"
	ErrCodeRollbackExpired    ErrorCode = "STATE_2003"
	ErrCodeInvalidTransition  ErrorCode = "STATE_2004"
	ErrCodeAuditImmutable     ErrorCode = "STATE_2005"
	ErrCodeApprovalNotPending ErrorCode = "STATE_2006"

	// Policy Errors (3xxx)
	ErrCodeBudgetExceeded ErrorCode = "POLICY_3001"

	// Validation Errors (4xxx)
	ErrCodeInvalidRequest ErrorCode = "VALID_4001"
	ErrCodeNoApplier      ErrorCode = "VALID_4002"

	// Infrastructure Errors (5xxx)
	ErrCodePersistence             ErrorCode = "INFRA_5001"
	ErrCodeCollaboratorUnavailable ErrorCode = "INFRA_5002"
	ErrCodeCollaboratorFailed      ErrorCode = "INFRA_5003"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on code so that sentinel values work with errors.Is
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, kind Kind, message string, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// Sentinels for errors.Is checks. Constructors below return values with the
// same code and more details.
var (
	ErrApprovalNotFound        = NewAppError(ErrCodeApprovalNotFound, KindNotFound, "Approval not found", "", nil)
	ErrDeploymentNotFound      = NewAppError(ErrCodeDeploymentNotFound, KindNotFound, "Deployment not found", "", nil)
	ErrTicketNotFound          = NewAppError(ErrCodeTicketNotFound, KindNotFound, "Ticket not found", "", nil)
	ErrDomainNotFound          = NewAppError(ErrCodeDomainNotFound, KindNotFound, "Domain not found", "", nil)
	ErrBriefNotFound           = NewAppError(ErrCodeBriefNotFound, KindNotFound, "Brief not found", "", nil)
	ErrAuditNotFound           = NewAppError(ErrCodeAuditNotFound, KindNotFound, "Audit entry not found", "", nil)
	ErrRollbackUsed            = NewAppError(ErrCodeRollbackUsed, KindInvalidState, "Deployment already rolled back", "", nil)
	ErrRollbackExpired         = NewAppError(ErrCodeRollbackExpired, KindInvalidState, "Rollback window closed", "", nil)
	ErrInvalidTransition       = NewAppError(ErrCodeInvalidTransition, KindInvalidTransition, "Invalid ticket transition", "", nil)
	ErrAuditImmutable          = NewAppError(ErrCodeAuditImmutable, KindInvalidState, "Audit entries cannot be modified", "", nil)
	ErrApprovalNotPending      = NewAppError(ErrCodeApprovalNotPending, KindInvalidState, "Approval is not pending", "", nil)
	ErrBudgetExceeded          = NewAppError(ErrCodeBudgetExceeded, KindBudgetExceeded, "Weekly budget exceeded", "", nil)
	ErrInvalidRequest          = NewAppError(ErrCodeInvalidRequest, KindValidation, "Invalid request", "", nil)
	ErrNoApplier               = NewAppError(ErrCodeNoApplier, KindValidation, "No applier registered for item kind", "", nil)
	ErrPersistence             = NewAppError(ErrCodePersistence, KindPersistence, "Storage operation failed", "", nil)
	ErrCollaboratorUnavailable = NewAppError(ErrCodeCollaboratorUnavailable, KindCollaboratorUnavailable, "Collaborator unavailable", "", nil)
	ErrCollaboratorFailed      = NewAppError(ErrCodeCollaboratorFailed, KindCollaboratorUnavailable, "Collaborator call failed", "", nil)
)

// Common error constructors

func NotFound(code ErrorCode, entity, id string) *AppError {
	return NewAppError(code, KindNotFound, fmt.Sprintf("%s not found", entity), fmt.Sprintf("ID: %s", id), nil)
}

func RollbackUsed(deploymentID string) *AppError {
	return NewAppError(ErrCodeRollbackUsed, KindInvalidState, "Deployment already rolled back",
		fmt.Sprintf("Deployment ID: %s", deploymentID), nil)
}

func RollbackExpired(deploymentID, expiredAt string) *AppError {
	return NewAppError(ErrCodeRollbackExpired, KindInvalidState, "Rollback window closed",
		fmt.Sprintf("Deployment ID: %s, window closed at %s", deploymentID, expiredAt), nil)
}

func InvalidTransition(from, to string) *AppError {
	return NewAppError(ErrCodeInvalidTransition, KindInvalidTransition, "Invalid ticket transition",
		fmt.Sprintf("%s -> %s", from, to), nil)
}

func ApprovalNotPending(approvalID, status string) *AppError {
	return NewAppError(ErrCodeApprovalNotPending, KindInvalidState, "Approval is not pending",
		fmt.Sprintf("Approval ID: %s, status: %s", approvalID, status), nil)
}

func BudgetExceeded(domainID, reason string) *AppError {
	return NewAppError(ErrCodeBudgetExceeded, KindBudgetExceeded, "Weekly budget exceeded",
		fmt.Sprintf("Domain: %s, %s", domainID, reason), nil)
}

func InvalidRequest(details string) *AppError {
	return NewAppError(ErrCodeInvalidRequest, KindValidation, "Invalid request", details, nil)
}

func MissingField(field string) *AppError {
	return InvalidRequest(fmt.Sprintf("Field: %s", field))
}

func NoApplier(itemKind string) *AppError {
	return NewAppError(ErrCodeNoApplier, KindValidation, "No applier registered for item kind",
		fmt.Sprintf("Item kind: %s", itemKind), nil)
}

func Persistence(operation string, cause error) *AppError {
	return NewAppError(ErrCodePersistence, KindPersistence, "Storage operation failed",
		fmt.Sprintf("Operation: %s", operation), cause)
}

func CollaboratorUnavailable(collaborator string, cause error) *AppError {
	return NewAppError(ErrCodeCollaboratorUnavailable, KindCollaboratorUnavailable, "Collaborator unavailable",
		fmt.Sprintf("Collaborator: %s", collaborator), cause)
}

func CollaboratorFailed(collaborator string, cause error) *AppError {
	return NewAppError(ErrCodeCollaboratorFailed, KindCollaboratorUnavailable, "Collaborator call failed",
		fmt.Sprintf("Collaborator: %s", collaborator), cause)
}

// KindOf returns the kind of the first AppError in the chain, or "" for
// unclassified errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsPolicyRejection reports errors that callers fix by changing the request
// (or waiting for budget), not by retrying.
func IsPolicyRejection(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindInvalidState, KindInvalidTransition, KindBudgetExceeded, KindValidation:
		return true
	}
	return false
}

// IsInfrastructureFailure reports errors caused by storage or collaborators.
// Unclassified errors count as infrastructure failures.
func IsInfrastructureFailure(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindPersistence, KindCollaboratorUnavailable, "":
		return true
	}
	return false
}

// Error mapping for HTTP status codes
func GetHTTPStatusCode(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindInvalidTransition:
		return http.StatusConflict
	case KindBudgetExceeded:
		return http.StatusPaymentRequired
	case KindValidation:
		return http.StatusBadRequest
	case KindPersistence, KindCollaboratorUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error response structure for API responses
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *AppError `json:"error"`
	TraceID string    `json:"trace_id,omitempty"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err error, traceID string) *ErrorResponse {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewAppError("SERVER_6001", "", "Internal server error", "", err)
	}
	return &ErrorResponse{
		Success: false,
		Error:   appErr,
		TraceID: traceID,
	}
}
