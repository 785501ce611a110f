package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/launchkitlabs/launchkit/internal/ledger/domain"
	memberdomain "github.com/launchkitlabs/launchkit/internal/member/domain"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
)

type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Field:   field,
		Message: message,
	}
}

func invalidRequestError() *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "invalid request body",
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) ||
		errors.Is(err, memberdomain.ErrMemberNotFound)
}

// AbortWithError maps service errors onto HTTP statuses. Unrecognized errors
// become opaque 500s so internals never leak to callers.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	switch {
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, memberdomain.ErrMemberNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": gin.H{
			"code":    "not_found",
			"message": err.Error(),
		}})
	case errors.Is(err, subscriptiondomain.ErrInvalidOrganization),
		errors.Is(err, subscriptiondomain.ErrInvalidTier),
		errors.Is(err, subscriptiondomain.ErrInvalidStatus),
		errors.Is(err, subscriptiondomain.ErrInvalidSeats),
		errors.Is(err, subscriptiondomain.ErrInvalidEffectiveAt),
		errors.Is(err, subscriptiondomain.ErrMissingEventID),
		errors.Is(err, subscriptiondomain.ErrMissingRef),
		errors.Is(err, memberdomain.ErrInvalidOrganization),
		errors.Is(err, memberdomain.ErrInvalidEmail),
		errors.Is(err, ledgerdomain.ErrInvalidPageToken):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    "invalid_request",
			"message": err.Error(),
		}})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		}})
	}
}
