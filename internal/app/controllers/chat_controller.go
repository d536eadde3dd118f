package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/app/services"
	"github.com/batchswap/batchswap/internal/middleware"
)

// ChatController handles negotiation channel REST endpoints. The live
// WebSocket endpoint is served by the websocket package's handler.
type ChatController struct {
	chatService *services.ChatService
	logger      zerolog.Logger
}

// NewChatController creates a new ChatController
func NewChatController(chatService *services.ChatService, logger zerolog.Logger) *ChatController {
	return &ChatController{
		chatService: chatService,
		logger:      logger,
	}
}

func (c *ChatController) callerAndRequestID(ctx *gin.Context) (callerID, requestID int64, ok bool) {
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

// History returns the negotiation messages of a swap request
// @Summary Get negotiation channel history
// @Description Returns messages in send order. History stays readable after the request resolves.
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Param before query string false "Only messages sent before this RFC3339 timestamp"
// @Param limit query int false "Maximum number of messages" default(50)
// @Success 200 {object} dto.APIResponse{data=[]dto.ChatMessageResponse}
// @Failure 403 {object} dto.ErrorResponse "Caller is not a participant"
// @Failure 404 {object} dto.ErrorResponse "Swap request not found"
// @Router /swap-requests/{id}/messages [get]
func (c *ChatController) History(ctx *gin.Context) {
	callerID, requestID, ok := c.callerAndRequestID(ctx)
	if !ok {
		return
	}

	var req dto.ChatHistoryRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Invalid history query parameters")))
		return
	}

	messages, err := c.chatService.History(ctx.Request.Context(), requestID, callerID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(messages))
}

// Send posts a message on the negotiation channel
// @Summary Send a negotiation message
// @Description Persists the message and delivers it to every live session on the channel
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Param request body dto.SendChatMessageRequest true "Message payload"
// @Success 201 {object} dto.APIResponse{data=dto.ChatMessageResponse}
// @Failure 403 {object} dto.ErrorResponse "Caller is not a participant"
// @Failure 404 {object} dto.ErrorResponse "Swap request not found"
// @Failure 409 {object} dto.ErrorResponse "Negotiation channel is closed"
// @Router /swap-requests/{id}/messages [post]
func (c *ChatController) Send(ctx *gin.Context) {
	callerID, requestID, ok := c.callerAndRequestID(ctx)
	if !ok {
		return
	}

	var req dto.SendChatMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	message, err := c.chatService.Send(ctx.Request.Context(), requestID, callerID, req.Body)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(message))
}
