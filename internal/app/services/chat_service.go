package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/app/repositories"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
	"github.com/batchswap/batchswap/internal/pkg/websocket"
)

// maxChatMessageLength bounds a single negotiation message body.
const maxChatMessageLength = 4000

// ChatService owns the per-request negotiation channel: message history,
// delivery to live sessions, and channel shutdown when a request resolves.
// It implements websocket.MessageSink and websocket.SessionAuthorizer for
// the WebSocket handler and ChannelCloser for the swap service.
type ChatService struct {
	chatRepo  repositories.ChatMessageRepository
	swapRepo  repositories.SwapRequestRepository
	hub       *websocket.Hub
	txManager TxManager
	logger    zerolog.Logger
}

// NewChatService creates a new ChatService
func NewChatService(
	chatRepo repositories.ChatMessageRepository,
	swapRepo repositories.SwapRequestRepository,
	hub *websocket.Hub,
	txManager TxManager,
	logger zerolog.Logger,
) *ChatService {
	return &ChatService{
		chatRepo:  chatRepo,
		swapRepo:  swapRepo,
		hub:       hub,
		txManager: txManager,
		logger:    logger,
	}
}

// channelRequest loads the swap request behind a negotiation channel and
// checks the caller is a participant.
func (s *ChatService) channelRequest(ctx context.Context, requestID, callerID int64) (*models.SwapRequest, error) {
	request, err := s.swapRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.IsParticipant(callerID) {
		return nil, apperrors.NewForbiddenError("Only the participants may use this negotiation channel")
	}
	return request, nil
}

// History returns a window of the negotiation messages of a swap request in
// send order: the newest `limit` messages before the cursor. Passing the
// oldest returned sentAt as the next `before` pages backward through the
// whole conversation. History stays readable after the channel closes.
func (s *ChatService) History(ctx context.Context, requestID, callerID int64, req *dto.ChatHistoryRequest) ([]dto.ChatMessageResponse, error) {
	if _, err := s.channelRequest(ctx, requestID, callerID); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}

	messages, err := s.chatRepo.ListByRequest(ctx, requestID, req.Before, limit)
	if err != nil {
		return nil, fmt.Errorf("error fetching chat history: %w", err)
	}

	resp := make([]dto.ChatMessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, dto.ToChatMessageResponse(m))
	}
	return resp, nil
}

// Send persists a negotiation message and delivers it to every live session
// on the request's channel. The channel only accepts messages while the
// request is pending.
func (s *ChatService) Send(ctx context.Context, requestID, senderID int64, body string) (*dto.ChatMessageResponse, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewBadRequestError("Message body cannot be empty")
	}
	if len(body) > maxChatMessageLength {
		return nil, apperrors.NewBadRequestError(
			fmt.Sprintf("Message body cannot exceed %d characters", maxChatMessageLength))
	}

	request, err := s.channelRequest(ctx, requestID, senderID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.SwapRequestPending {
		return nil, apperrors.ErrChannelClosed
	}

	message := &models.ChatMessage{
		RequestID: requestID,
		SenderID:  senderID,
		Body:      body,
	}
	// The status re-check and the insert share a transaction holding the
	// request row FOR SHARE, so a terminal transition (which takes the row
	// FOR UPDATE) cannot slip in between them.
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		locked, err := s.swapRepo.GetByIDForShare(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if locked.Status != models.SwapRequestPending {
			return apperrors.ErrChannelClosed
		}
		_, err = s.chatRepo.Create(ctx, tx, message)
		return err
	})
	if err != nil {
		return nil, err
	}

	senderName := ""
	if sender := request.Requester; sender != nil && sender.ID == senderID {
		senderName = sender.FirstName + " " + sender.LastName
	} else if sender := request.Target; sender != nil && sender.ID == senderID {
		senderName = sender.FirstName + " " + sender.LastName
	}

	s.hub.BroadcastToRoom(&websocket.Message{
		Type:       websocket.FrameTypeMessage,
		RequestID:  requestID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       message.Body,
		SentAt:     message.SentAt,
		ID:         message.ID,
	})

	return &dto.ChatMessageResponse{
		ID:         message.ID,
		RequestID:  requestID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       message.Body,
		SentAt:     message.SentAt,
	}, nil
}

// HandleInbound implements websocket.MessageSink: a frame arriving on a live
// session goes through the same authorization and persistence path as the
// REST endpoint.
func (s *ChatService) HandleInbound(ctx context.Context, requestID, senderID int64, body string) error {
	_, err := s.Send(ctx, requestID, senderID, body)
	return err
}

// AuthorizeSession implements websocket.SessionAuthorizer: a live session may
// only be opened by a participant while the request is pending.
func (s *ChatService) AuthorizeSession(ctx context.Context, requestID, studentID int64) error {
	request, err := s.channelRequest(ctx, requestID, studentID)
	if err != nil {
		return err
	}
	if request.Status != models.SwapRequestPending {
		return apperrors.ErrChannelClosed
	}
	return nil
}

// CloseChannel implements ChannelCloser: live sessions on the request's
// channel receive a closed frame and are disconnected. History remains
// available over the REST endpoint.
func (s *ChatService) CloseChannel(requestID int64) {
	s.hub.CloseRoom(requestID)
}
