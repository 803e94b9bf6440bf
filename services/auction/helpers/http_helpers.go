package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"bikeshop-auctions/internal/auctionerrors"
	"bikeshop-auctions/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, auctionerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, auctionerrors.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, auctionerrors.ErrNotApproved):
		return http.StatusForbidden, "you are not approved to bid, please contact support"
	case errors.Is(err, auctionerrors.ErrAuctionNotLive):
		return http.StatusBadRequest, "auction is not live"
	case errors.Is(err, auctionerrors.ErrInvalidAmount):
		return http.StatusBadRequest, "bid amount must be a positive number"
	case errors.Is(err, auctionerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, auctionerrors.ErrBidExceedsMax):
		return http.StatusBadRequest, "bid amount cannot exceed your max bid"
	case errors.Is(err, auctionerrors.ErrVersionConflict):
		return http.StatusConflict, "auction changed while processing, please retry"
	case errors.Is(err, auctionerrors.ErrValidation):
		return http.StatusBadRequest, "invalid auction data"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError maps err onto the HTTP surface and logs it. Infrastructure
// failures are reported with the generic message only, never the internal
// error detail.
func RespondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	if status == http.StatusInternalServerError {
		utils.JSONError(c, status, errors.New(message), message)
	} else {
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
	}

	if fields == nil {
		fields = map[string]any{}
	}
	fields["status"] = status
	fields["error"] = err.Error()
	utils.Error(handlerName+": request failed", fields)
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
