package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
)

// HandleAPIError maps service errors to HTTP responses. Every controller
// funnels its service-layer errors through here so the status codes and
// error codes stay consistent across endpoints.
func HandleAPIError(c *gin.Context, err error) {
	detail := buildErrorDetail(err)
	var customErr *apperrors.CustomError
	if errors.As(err, &customErr) && customErr.Message != "" {
		detail = detail.WithDetails(customErr.Message)
	}

	switch {
	case errors.Is(err, apperrors.ErrStudentNotFound),
		errors.Is(err, apperrors.ErrRequestNotFound),
		errors.Is(err, apperrors.ErrResourceNotFound):
		c.JSON(404, dto.NewErrorResponse(detail))
	case errors.Is(err, apperrors.ErrSelfSwap),
		errors.Is(err, apperrors.ErrNotEligible),
		errors.Is(err, apperrors.ErrInvalidCGPA),
		errors.Is(err, apperrors.ErrInvalidBatch),
		errors.Is(err, apperrors.ErrValidationFailed),
		errors.Is(err, apperrors.ErrBadRequest):
		c.JSON(400, dto.NewErrorResponse(detail))
	case errors.Is(err, apperrors.ErrDuplicateRequest),
		errors.Is(err, apperrors.ErrInvalidState),
		errors.Is(err, apperrors.ErrExchangeAborted),
		errors.Is(err, apperrors.ErrChannelClosed),
		errors.Is(err, apperrors.ErrEmailAlreadyExists),
		errors.Is(err, apperrors.ErrConflict):
		c.JSON(409, dto.NewErrorResponse(detail))
	case errors.Is(err, apperrors.ErrPermissionDenied),
		errors.Is(err, apperrors.ErrAccountDisabled):
		c.JSON(403, dto.NewErrorResponse(detail))
	case errors.Is(err, apperrors.ErrInvalidCredentials),
		errors.Is(err, apperrors.ErrTokenExpired),
		errors.Is(err, apperrors.ErrTokenInvalid):
		c.JSON(401, dto.NewErrorResponse(detail))
	default:
		c.JSON(500, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")))
	}
}

// buildErrorDetail picks the error code and public message for a known
// service error.
func buildErrorDetail(err error) *dto.ErrorDetail {
	switch {
	case errors.Is(err, apperrors.ErrStudentNotFound):
		return dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Student not found")
	case errors.Is(err, apperrors.ErrRequestNotFound):
		return dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Swap request not found")
	case errors.Is(err, apperrors.ErrResourceNotFound):
		return dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Resource not found")
	case errors.Is(err, apperrors.ErrSelfSwap):
		return dto.NewErrorDetail(dto.ErrorCodeInvalidPair, "Cannot request a swap with yourself")
	case errors.Is(err, apperrors.ErrDuplicateRequest):
		return dto.NewErrorDetail(dto.ErrorCodeDuplicatePending, "A pending swap request already exists for this pair")
	case errors.Is(err, apperrors.ErrNotEligible):
		return dto.NewErrorDetail(dto.ErrorCodeNotEligible, "Students are not eligible swap partners")
	case errors.Is(err, apperrors.ErrInvalidState):
		return dto.NewErrorDetail(dto.ErrorCodeInvalidState, "Transition not legal from current request state")
	case errors.Is(err, apperrors.ErrExchangeAborted):
		return dto.NewErrorDetail(dto.ErrorCodeExchangeAborted, "Batch exchange aborted")
	case errors.Is(err, apperrors.ErrChannelClosed):
		return dto.NewErrorDetail(dto.ErrorCodeChannelClosed, "Negotiation channel is closed")
	case errors.Is(err, apperrors.ErrEmailAlreadyExists):
		return dto.NewErrorDetail(dto.ErrorCodeResourceAlreadyExists, "Email already exists")
	case errors.Is(err, apperrors.ErrInvalidCGPA):
		return dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "CGPA out of range")
	case errors.Is(err, apperrors.ErrInvalidBatch):
		return dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Unknown batch")
	case errors.Is(err, apperrors.ErrValidationFailed):
		return dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Validation failed")
	case errors.Is(err, apperrors.ErrBadRequest):
		return dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Bad request")
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return dto.NewErrorDetail(dto.ErrorCodeForbidden, "Permission denied")
	case errors.Is(err, apperrors.ErrAccountDisabled):
		return dto.NewErrorDetail(dto.ErrorCodeForbidden, "Account is disabled")
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return dto.NewErrorDetail(dto.ErrorCodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, apperrors.ErrTokenExpired):
		return dto.NewErrorDetail(dto.ErrorCodeExpiredToken, "Token expired")
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Invalid token")
	case errors.Is(err, apperrors.ErrConflict):
		return dto.NewErrorDetail(dto.ErrorCodeResourceAlreadyExists, "Conflict")
	default:
		return dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
	}
}
