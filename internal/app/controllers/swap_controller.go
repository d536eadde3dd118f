package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/app/services"
	"github.com/batchswap/batchswap/internal/middleware"
)

// SwapController handles swap request lifecycle operations
type SwapController struct {
	swapService *services.SwapService
	logger      zerolog.Logger
}

// NewSwapController creates a new SwapController
func NewSwapController(swapService *services.SwapService, logger zerolog.Logger) *SwapController {
	return &SwapController{
		swapService: swapService,
		logger:      logger,
	}
}

// callerAndRequestID reads the authenticated student and the :id path param.
// Writes the error response itself and returns ok=false on failure.
func (c *SwapController) callerAndRequestID(ctx *gin.Context) (callerID, requestID int64, ok bool) {
	callerID, exists := middleware.GetStudentID(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")))
		return 0, 0, false
	}
	requestID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Invalid swap request ID")))
		return 0, 0, false
	}
	return callerID, requestID, true
}

// statusFilter parses the optional ?status= query parameter
func statusFilter(ctx *gin.Context) (*models.SwapRequestStatus, bool) {
	raw := ctx.Query("status")
	if raw == "" {
		return nil, true
	}
	status := models.SwapRequestStatus(raw)
	if !status.Valid() {
		return nil, false
	}
	return &status, true
}

// Create opens a new swap request
// @Summary Create a swap request
// @Description Proposes a batch swap to an eligible target student, with an optional introductory message
// @Tags swap-requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateSwapRequestRequest true "Swap request payload"
// @Success 201 {object} dto.APIResponse{data=dto.SwapRequestResponse}
// @Failure 400 {object} dto.ErrorResponse "Self swap or pair not eligible"
// @Failure 404 {object} dto.ErrorResponse "Target student not found"
// @Failure 409 {object} dto.ErrorResponse "A pending request already exists for this pair"
// @Router /swap-requests [post]
func (c *SwapController) Create(ctx *gin.Context) {
	callerID, exists := middleware.GetStudentID(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")))
		return
	}

	var req dto.CreateSwapRequestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	request, err := c.swapService.Create(ctx.Request.Context(), callerID, &req)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Int64("requesterID", callerID).
			Int64("targetID", req.TargetID).
			Msg("Failed to create swap request")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(request))
}

// Get returns a single swap request
// @Summary Get a swap request
// @Tags swap-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Success 200 {object} dto.APIResponse{data=dto.SwapRequestResponse}
// @Failure 403 {object} dto.ErrorResponse "Caller is not a participant"
// @Failure 404 {object} dto.ErrorResponse "Swap request not found"
// @Router /swap-requests/{id} [get]
func (c *SwapController) Get(ctx *gin.Context) {
	callerID, requestID, ok := c.callerAndRequestID(ctx)
	if !ok {
		return
	}

	request, err := c.swapService.Get(ctx.Request.Context(), requestID, callerID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(request))
}

// ListSent returns the caller's outgoing swap requests
// @Summary List sent swap requests
// @Tags swap-requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status" Enums(pending, accepted, rejected, cancelled, expired)
// @Success 200 {object} dto.APIResponse{data=dto.SwapRequestListResponse}
// @Router /swap-requests/sent [get]
func (c *SwapController) ListSent(ctx *gin.Context) {
	callerID, exists := middleware.GetStudentID(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")))
		return
	}
	status, ok := statusFilter(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Unknown status filter")))
		return
	}

	requests, err := c.swapService.ListSent(ctx.Request.Context(), callerID, status)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(requests))
}

// ListReceived returns the caller's incoming swap requests
// @Summary List received swap requests
// @Tags swap-requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status" Enums(pending, accepted, rejected, cancelled, expired)
// @Success 200 {object} dto.APIResponse{data=dto.SwapRequestListResponse}
// @Router /swap-requests/received [get]
func (c *SwapController) ListReceived(ctx *gin.Context) {
	callerID, exists := middleware.GetStudentID(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")))
		return
	}
	status, ok := statusFilter(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Unknown status filter")))
		return
	}

	requests, err := c.swapService.ListReceived(ctx.Request.Context(), callerID, status)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(requests))
}

// Accept finalizes a pending swap request
// @Summary Accept a swap request
// @Description Accepts a pending request addressed to the caller and performs the batch exchange atomically
// @Tags swap-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Success 200 {object} dto.APIResponse{data=dto.SwapRequestResponse}
// @Failure 403 {object} dto.ErrorResponse "Caller is not the target"
// @Failure 404 {object} dto.ErrorResponse "Swap request not found"
// @Failure 409 {object} dto.ErrorResponse "Request is not pending or the exchange aborted"
// @Router /swap-requests/{id}/accept [post]
func (c *SwapController) Accept(ctx *gin.Context) {
	callerID, requestID, ok := c.callerAndRequestID(ctx)
	if !ok {
		return
	}

	request, err := c.swapService.Accept(ctx.Request.Context(), requestID, callerID)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Int64("requestID", requestID).
			Int64("callerID", callerID).
			Msg("Failed to accept swap request")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(request))
}

// Reject declines a pending swap request
// @Summary Reject a swap request
// @Tags swap-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Success 200 {object} dto.APIResponse{data=dto.SwapRequestResponse}
// @Failure 403 {object} dto.ErrorResponse "Caller is not the target"
// @Failure 404 {object} dto.ErrorResponse "Swap request not found"
// @Failure 409 {object} dto.ErrorResponse "Request is not pending"
// @Router /swap-requests/{id}/reject [post]
func (c *SwapController) Reject(ctx *gin.Context) {
	callerID, requestID, ok := c.callerAndRequestID(ctx)
	if !ok {
		return
	}

	request, err := c.swapService.Reject(ctx.Request.Context(), requestID, callerID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(request))
}

// Cancel withdraws a pending swap request
// @Summary Cancel a swap request
// @Tags swap-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Success 200 {object} dto.APIResponse{data=dto.SwapRequestResponse}
// @Failure 403 {object} dto.ErrorResponse "Caller is not the requester"
// @Failure 404 {object} dto.ErrorResponse "Swap request not found"
// @Failure 409 {object} dto.ErrorResponse "Request is not pending"
// @Router /swap-requests/{id} [delete]
func (c *SwapController) Cancel(ctx *gin.Context) {
	callerID, requestID, ok := c.callerAndRequestID(ctx)
	if !ok {
		return
	}

	request, err := c.swapService.Cancel(ctx.Request.Context(), requestID, callerID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(request))
}
