package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// DomainErrorType represents the category of domain error
type DomainErrorType string

const (
	// DomainValidationError indicates input validation failure
	DomainValidationError DomainErrorType = "VALIDATION_ERROR"

	// DomainBusinessRuleError indicates a business rule violation
	DomainBusinessRuleError DomainErrorType = "BUSINESS_RULE_ERROR"

	// DomainNotFoundError indicates a resource was not found
	DomainNotFoundError DomainErrorType = "NOT_FOUND"

	// DomainConflictError indicates a conflict with existing state
	DomainConflictError DomainErrorType = "CONFLICT"

	// DomainAuthorizationError indicates insufficient permissions
	DomainAuthorizationError DomainErrorType = "AUTHORIZATION_ERROR"

	// DomainAuthenticationError indicates a missing or invalid identity
	DomainAuthenticationError DomainErrorType = "AUTHENTICATION_ERROR"

	// DomainInfrastructureError indicates a store or transport failure
	DomainInfrastructureError DomainErrorType = "INFRASTRUCTURE_ERROR"
)

// DomainError represents a domain-specific error with rich context.
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Details:    make(map[string]interface{}),
		StatusCode: domainErrorTypeToStatusCode(errorType),
	}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Clone returns a copy that can carry its own details and cause.
// The sentinels below are shared, so callers clone before decorating.
func (e *DomainError) Clone() *DomainError {
	c := *e
	c.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	return &c
}

// WithCause adds a cause to the error
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

// WithMessage replaces the human readable message
func (e *DomainError) WithMessage(message string) *DomainError {
	e.Message = message
	return e
}

// WithRetryable sets whether the error is retryable
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

// Is matches on type and code so decorated clones still match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

func domainErrorTypeToStatusCode(errorType DomainErrorType) int {
	switch errorType {
	case DomainValidationError:
		return http.StatusBadRequest
	case DomainBusinessRuleError:
		return http.StatusUnprocessableEntity
	case DomainNotFoundError:
		return http.StatusNotFound
	case DomainConflictError:
		return http.StatusConflict
	case DomainAuthenticationError:
		return http.StatusUnauthorized
	case DomainAuthorizationError:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrNotAuthorized = NewDomainError(
		DomainAuthorizationError,
		"NOT_AUTHORIZED",
		"User may not act as this author",
	)

	ErrUnauthenticated = NewDomainError(
		DomainAuthenticationError,
		"UNAUTHENTICATED",
		"A user identity is required",
	)

	ErrNotEditable = NewDomainError(
		DomainBusinessRuleError,
		"NOT_EDITABLE",
		"The node's body is not editable",
	)

	ErrAlreadyADraft = NewDomainError(
		DomainConflictError,
		"ALREADY_A_DRAFT",
		"The node is already a draft",
	)

	ErrAlreadyPublished = NewDomainError(
		DomainConflictError,
		"ALREADY_PUBLISHED",
		"The node has already been published",
	)

	ErrMustDraftFirst = NewDomainError(
		DomainBusinessRuleError,
		"MUST_DRAFT_FIRST",
		"Published nodes must be drafted before editing",
	)

	ErrInvalidLinkType = NewDomainError(
		DomainValidationError,
		"INVALID_LINK_TYPE",
		"This kind of node cannot link to that kind of child",
	)

	ErrNodeNotFound = NewDomainError(
		DomainNotFoundError,
		"NODE_NOT_FOUND",
		"The requested node does not exist",
	)

	ErrResourceNotFound = NewDomainError(
		DomainNotFoundError,
		"RESOURCE_NOT_FOUND",
		"The requested resource does not exist",
	)

	ErrCannotInstallBody = NewDomainError(
		DomainBusinessRuleError,
		"CANNOT_INSTALL_BODY",
		"Cannot install a body on a finalized node",
	)

	ErrInvalidInput = NewDomainError(
		DomainValidationError,
		"INVALID_INPUT",
		"The request is invalid",
	)

	ErrTransactionTooLarge = NewDomainError(
		DomainBusinessRuleError,
		"TRANSACTION_TOO_LARGE",
		"The change touches more items than one store transaction allows",
	)

	ErrStoreUnavailable = NewDomainError(
		DomainInfrastructureError,
		"STORE_UNAVAILABLE",
		"The graph store is unavailable",
	).WithRetryable(true)

	ErrTransactionFailed = NewDomainError(
		DomainInfrastructureError,
		"TRANSACTION_FAILED",
		"Graph store transaction failed",
	).WithRetryable(true)
)

// NotAuthorized reports that userID may not act as authorID.
func NotAuthorized(userID, authorID string) *DomainError {
	return ErrNotAuthorized.Clone().
		WithDetail("user_id", userID).
		WithDetail("author_id", authorID)
}

// NodeNotFound reports a missing node or lineage.
func NodeNotFound(id string) *DomainError {
	return ErrNodeNotFound.Clone().WithDetail("id", id)
}

// ResourceNotFound reports a missing user, author or body.
func ResourceNotFound(kind, id string) *DomainError {
	return ErrResourceNotFound.Clone().
		WithMessage(fmt.Sprintf("%s not found", kind)).
		WithDetail("kind", kind).
		WithDetail("id", id)
}

func InvalidLinkType(parentKind, childKind string) *DomainError {
	return ErrInvalidLinkType.Clone().
		WithMessage(fmt.Sprintf("a %s cannot link to a %s", parentKind, childKind)).
		WithDetail("parent_kind", parentKind).
		WithDetail("child_kind", childKind)
}

func InvalidInput(field, message string) *DomainError {
	return ErrInvalidInput.Clone().WithMessage(message).WithDetail("field", field)
}

// WithNode clones a sentinel and tags it with a node id.
func WithNode(sentinel *DomainError, nodeID string) *DomainError {
	return sentinel.Clone().WithDetail("node_id", nodeID)
}

// NewInfrastructureError wraps a store or transport failure.
func NewInfrastructureError(operation string, cause error) *DomainError {
	return ErrStoreUnavailable.Clone().
		WithMessage(fmt.Sprintf("failed to %s", operation)).
		WithCause(cause)
}

// AsDomainError extracts the first DomainError in the chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsDomainError reports whether err is a domain-level failure as opposed to an
// infrastructure one. Circuit breakers use this to ignore expected outcomes.
func IsDomainError(err error) bool {
	de, ok := AsDomainError(err)
	return ok && de.Type != DomainInfrastructureError
}

func IsNotFound(err error) bool {
	de, ok := AsDomainError(err)
	return ok && de.Type == DomainNotFoundError
}
