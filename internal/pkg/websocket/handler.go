package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
)

// MessageSink authorizes, persists and broadcasts an inbound negotiation
// message. Implemented by the chat service.
type MessageSink interface {
	HandleInbound(ctx context.Context, requestID, senderID int64, body string) error
}

// SessionAuthorizer decides whether a student may open a live session on a
// swap request's negotiation channel. Implemented by the chat service.
type SessionAuthorizer interface {
	AuthorizeSession(ctx context.Context, requestID, studentID int64) error
}

// Handler upgrades HTTP connections into negotiation channel sessions
type Handler struct {
	hub        *Hub
	sink       MessageSink
	authorizer SessionAuthorizer
	logger     zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, sink MessageSink, authorizer SessionAuthorizer, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		sink:       sink,
		authorizer: authorizer,
		logger:     logger,
	}
}

// HandleConnection godoc
// @Summary Open a live session on a swap request's negotiation channel
// @Description Upgrades the HTTP connection to a WebSocket for real-time chat between the two swap participants
// @Tags chat, websocket
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Success 101 {string} string "Switching Protocols to WebSocket"
// @Failure 400 {object} dto.ErrorResponse "Invalid swap request ID"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Caller is not a participant of the request"
// @Failure 409 {object} dto.ErrorResponse "Negotiation channel is closed"
// @Router /swap-requests/{id}/chat/ws [get]
func (h *Handler) HandleConnection(c *gin.Context) {
	requestIDStr := c.Param("id")
	requestID, err := strconv.ParseInt(requestIDStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Invalid swap request ID")))
		return
	}

	studentIDValue, exists := c.Get("studentID")
	if !exists {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")))
		return
	}
	studentID, ok := studentIDValue.(int64)
	if !ok {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Invalid student ID in context")))
		return
	}

	if err := h.authorizer.AuthorizeSession(c.Request.Context(), requestID, studentID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRequestNotFound):
			c.JSON(http.StatusNotFound, dto.NewErrorResponse(
				dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Swap request not found")))
		case errors.Is(err, apperrors.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, dto.NewErrorResponse(
				dto.NewErrorDetail(dto.ErrorCodeForbidden, "Not a participant of this swap request")))
		case errors.Is(err, apperrors.ErrChannelClosed):
			c.JSON(http.StatusConflict, dto.NewErrorResponse(
				dto.NewErrorDetail(dto.ErrorCodeChannelClosed, "Negotiation channel is closed")))
		default:
			h.logger.Error().
				Err(err).
				Int64("requestID", requestID).
				Int64("studentID", studentID).
				Msg("Failed to authorize negotiation session")
			c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
				dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Failed to authorize session")))
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("requestID", requestID).
			Int64("studentID", studentID).
			Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:       h.hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		studentID: studentID,
		requestID: requestID,
		sink:      h.sink,
		logger:    h.logger,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	// The request may have reached a terminal state between authorization
	// and registration, after the hub already closed the room. Re-check now
	// that we are registered and close the room again to disconnect this
	// straggler; both operations serialize through the hub loop.
	if err := h.authorizer.AuthorizeSession(c.Request.Context(), requestID, studentID); err != nil {
		h.logger.Info().
			Err(err).
			Int64("requestID", requestID).
			Int64("studentID", studentID).
			Msg("Negotiation channel closed during session setup")
		h.hub.CloseRoom(requestID)
		return
	}

	h.logger.Info().
		Int64("requestID", requestID).
		Int64("studentID", studentID).
		Str("remoteAddr", conn.RemoteAddr().String()).
		Msg("Negotiation session established")
}
