package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/app/repositories"
	"github.com/batchswap/batchswap/internal/db"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
)

// TxManager runs a function inside a database transaction. Implemented by
// db.PostgresDB; mocked in tests.
type TxManager interface {
	WithTransaction(ctx context.Context, fn db.TransactionFn) error
}

// ChannelCloser shuts down the live negotiation channel of a swap request
// once the request reaches a terminal state. Implemented by the chat service.
type ChannelCloser interface {
	CloseChannel(requestID int64)
}

// SwapService owns the swap request lifecycle and the batch exchange.
// All state transitions go through a transaction that locks the request row
// first, so concurrent transitions on the same request serialize and the
// losers observe a terminal state.
type SwapService struct {
	studentRepo    repositories.StudentRepository
	swapRepo       repositories.SwapRequestRepository
	studentService *StudentService
	txManager      TxManager
	channels       ChannelCloser
	requestExpiry  time.Duration
	logger         zerolog.Logger
}

// NewSwapService creates a new SwapService. requestExpiry is how long a
// pending request lives before the expiry sweep retires it.
func NewSwapService(
	studentRepo repositories.StudentRepository,
	swapRepo repositories.SwapRequestRepository,
	studentService *StudentService,
	txManager TxManager,
	channels ChannelCloser,
	requestExpiry time.Duration,
	logger zerolog.Logger,
) *SwapService {
	return &SwapService{
		studentRepo:    studentRepo,
		swapRepo:       swapRepo,
		studentService: studentService,
		txManager:      txManager,
		channels:       channels,
		requestExpiry:  requestExpiry,
		logger:         logger,
	}
}

// Create opens a new pending swap request from the caller to the target.
// The pair must pass the eligibility rules at creation time, and at most one
// pending request may exist per (requester, target) pair; the partial unique
// index on the pair is the final arbiter under concurrency.
func (s *SwapService) Create(ctx context.Context, requesterID int64, req *dto.CreateSwapRequestRequest) (*dto.SwapRequestResponse, error) {
	if req.TargetID == requesterID {
		return nil, apperrors.ErrSelfSwap
	}

	requester, err := s.studentRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, wrapNotFound(err, requesterID)
	}
	target, err := s.studentRepo.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, wrapNotFound(err, req.TargetID)
	}

	if err := s.studentService.CheckEligibility(requester, target); err != nil {
		return nil, err
	}

	// Cheap pre-check for a friendly error; the unique index catches the
	// race where two requests for the pair arrive together.
	hasPending, err := s.swapRepo.HasPendingForPair(ctx, requesterID, req.TargetID)
	if err != nil {
		return nil, fmt.Errorf("error checking for pending request: %w", err)
	}
	if hasPending {
		return nil, apperrors.ErrDuplicateRequest
	}

	request := &models.SwapRequest{
		RequesterID: requesterID,
		TargetID:    req.TargetID,
		Status:      models.SwapRequestPending,
		Message:     req.Message,
	}
	requestID, err := s.swapRepo.Create(ctx, request)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("requestID", requestID).
		Int64("requesterID", requesterID).
		Int64("targetID", req.TargetID).
		Msg("Swap request created")

	return s.Get(ctx, requestID, requesterID)
}

// Get returns a swap request. Only the two participants may see it.
func (s *SwapService) Get(ctx context.Context, requestID, callerID int64) (*dto.SwapRequestResponse, error) {
	request, err := s.swapRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.IsParticipant(callerID) {
		return nil, apperrors.NewForbiddenError("Only the participants may view this swap request")
	}
	return dto.ToSwapRequestResponse(request), nil
}

// ListSent returns the caller's outgoing swap requests, newest first,
// optionally filtered by status.
func (s *SwapService) ListSent(ctx context.Context, callerID int64, status *models.SwapRequestStatus) (*dto.SwapRequestListResponse, error) {
	requests, err := s.swapRepo.ListByRequester(ctx, callerID, status)
	if err != nil {
		return nil, fmt.Errorf("error listing sent requests: %w", err)
	}
	return buildRequestList(requests), nil
}

// ListReceived returns the caller's incoming swap requests, newest first,
// optionally filtered by status.
func (s *SwapService) ListReceived(ctx context.Context, callerID int64, status *models.SwapRequestStatus) (*dto.SwapRequestListResponse, error) {
	requests, err := s.swapRepo.ListByTarget(ctx, callerID, status)
	if err != nil {
		return nil, fmt.Errorf("error listing received requests: %w", err)
	}
	return buildRequestList(requests), nil
}

func buildRequestList(requests []*models.SwapRequest) *dto.SwapRequestListResponse {
	resp := &dto.SwapRequestListResponse{
		Requests: make([]*dto.SwapRequestResponse, 0, len(requests)),
	}
	for _, r := range requests {
		resp.Requests = append(resp.Requests, dto.ToSwapRequestResponse(r))
	}
	return resp
}

// Accept finalizes a pending swap request and performs the batch exchange
// atomically: both students' current batches trade places, the request
// becomes accepted, and every other pending request touching either student
// is expired in the same transaction. The pair's eligibility is re-validated
// under the row locks; if it no longer holds, the exchange rolls back and
// the request is retired instead.
func (s *SwapService) Accept(ctx context.Context, requestID, callerID int64) (*dto.SwapRequestResponse, error) {
	var cascaded []int64

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		request, err := s.swapRepo.GetByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if !request.IsParticipant(callerID) {
			return apperrors.NewForbiddenError("Only the participants may act on this swap request")
		}
		if request.TargetID != callerID {
			return apperrors.NewForbiddenError("Only the target student may accept a swap request")
		}
		if request.Status != models.SwapRequestPending {
			return apperrors.NewInvalidStateError(
				fmt.Sprintf("Cannot accept a request that is %s", request.Status))
		}

		// Lock both student rows in ascending ID order so two concurrent
		// exchanges over overlapping students never deadlock.
		firstID, secondID := request.RequesterID, request.TargetID
		if firstID > secondID {
			firstID, secondID = secondID, firstID
		}
		first, err := s.studentRepo.GetForUpdate(ctx, tx, firstID)
		if err != nil {
			return err
		}
		second, err := s.studentRepo.GetForUpdate(ctx, tx, secondID)
		if err != nil {
			return err
		}

		requester, target := first, second
		if requester.ID != request.RequesterID {
			requester, target = second, first
		}

		// Conditions may have drifted since the request was created.
		if err := s.studentService.CheckEligibility(requester, target); err != nil {
			return fmt.Errorf("%w: %s", apperrors.ErrExchangeAborted, err.Error())
		}

		if err := s.studentRepo.UpdateCurrentBatch(ctx, tx, requester.ID, target.CurrentBatch); err != nil {
			return err
		}
		if err := s.studentRepo.UpdateCurrentBatch(ctx, tx, target.ID, requester.CurrentBatch); err != nil {
			return err
		}

		if err := s.swapRepo.UpdateStatus(ctx, tx, requestID, models.SwapRequestAccepted); err != nil {
			return err
		}

		cascaded, err = s.swapRepo.ExpireOtherPending(ctx, tx, request.RequesterID, request.TargetID, requestID)
		if err != nil {
			return err
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, apperrors.ErrExchangeAborted) {
			s.retireAbortedRequest(ctx, requestID, err)
		}
		return nil, err
	}

	s.channels.CloseChannel(requestID)
	for _, id := range cascaded {
		s.channels.CloseChannel(id)
	}

	s.logger.Info().
		Int64("requestID", requestID).
		Ints64("cascadeExpired", cascaded).
		Msg("Swap request accepted, batches exchanged")

	return s.Get(ctx, requestID, callerID)
}

// retireAbortedRequest expires a request whose exchange failed re-validation.
// Runs in its own transaction because the exchange itself rolled back.
func (s *SwapService) retireAbortedRequest(ctx context.Context, requestID int64, cause error) {
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		request, err := s.swapRepo.GetByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if request.Status != models.SwapRequestPending {
			return nil
		}
		return s.swapRepo.UpdateStatus(ctx, tx, requestID, models.SwapRequestExpired)
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("requestID", requestID).
			Msg("Failed to retire aborted swap request")
		return
	}

	s.channels.CloseChannel(requestID)

	s.logger.Warn().
		Err(cause).
		Int64("requestID", requestID).
		Msg("Batch exchange aborted, request expired")
}

// Reject declines a pending swap request. Only the target may reject.
// Rejecting an already rejected request is a no-op; any other terminal state
// is an invalid transition.
func (s *SwapService) Reject(ctx context.Context, requestID, callerID int64) (*dto.SwapRequestResponse, error) {
	err := s.transition(ctx, requestID, models.SwapRequestRejected, func(request *models.SwapRequest) error {
		if request.TargetID != callerID {
			return apperrors.NewForbiddenError("Only the target student may reject a swap request")
		}
		return nil
	}, callerID)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, requestID, callerID)
}

// Cancel withdraws a pending swap request. Only the requester may cancel.
// Cancelling an already cancelled request is a no-op; any other terminal
// state is an invalid transition.
func (s *SwapService) Cancel(ctx context.Context, requestID, callerID int64) (*dto.SwapRequestResponse, error) {
	err := s.transition(ctx, requestID, models.SwapRequestCancelled, func(request *models.SwapRequest) error {
		if request.RequesterID != callerID {
			return apperrors.NewForbiddenError("Only the requester may cancel a swap request")
		}
		return nil
	}, callerID)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, requestID, callerID)
}

// transition moves a request from pending into the given terminal state
// under the request row lock. authorize runs after the lock is held.
func (s *SwapService) transition(ctx context.Context, requestID int64, to models.SwapRequestStatus, authorize func(*models.SwapRequest) error, callerID int64) error {
	var alreadyDone bool

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		request, err := s.swapRepo.GetByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if !request.IsParticipant(callerID) {
			return apperrors.NewForbiddenError("Only the participants may act on this swap request")
		}
		if err := authorize(request); err != nil {
			return err
		}
		if request.Status == to {
			alreadyDone = true
			return nil
		}
		if request.Status != models.SwapRequestPending {
			return apperrors.NewInvalidStateError(
				fmt.Sprintf("Cannot move a %s request to %s", request.Status, to))
		}
		return s.swapRepo.UpdateStatus(ctx, tx, requestID, to)
	})
	if err != nil {
		return err
	}

	if !alreadyDone {
		s.channels.CloseChannel(requestID)
		s.logger.Info().
			Int64("requestID", requestID).
			Str("status", string(to)).
			Msg("Swap request resolved")
	}
	return nil
}

// ExpireStale retires every pending request created before the configured
// expiry window and closes its negotiation channel. Called periodically by
// the expiry worker.
func (s *SwapService) ExpireStale(ctx context.Context) (int, error) {
	if s.requestExpiry <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.requestExpiry)
	expired, err := s.swapRepo.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error expiring stale requests: %w", err)
	}

	for _, id := range expired {
		s.channels.CloseChannel(id)
	}

	if len(expired) > 0 {
		s.logger.Info().
			Int("count", len(expired)).
			Time("cutoff", cutoff).
			Msg("Expired stale swap requests")
	}
	return len(expired), nil
}
