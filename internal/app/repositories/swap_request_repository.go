package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
	"github.com/batchswap/batchswap/internal/pkg/dberrors"
)

// swapRequestRepository is the PostgreSQL implementation of SwapRequestRepository
type swapRequestRepository struct {
	db *pgxpool.Pool
}

// NewSwapRequestRepository creates a new SwapRequestRepository
func NewSwapRequestRepository(db *pgxpool.Pool) SwapRequestRepository {
	return &swapRequestRepository{db: db}
}

// Create inserts a new pending swap request. The partial unique index on
// (requester_id, target_id) WHERE status='pending' backs the one-pending-
// per-ordered-pair invariant under concurrent creates.
func (r *swapRequestRepository) Create(ctx context.Context, request *models.SwapRequest) (int64, error) {
	query := `
		INSERT INTO swap_requests (requester_id, target_id, status, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		request.RequesterID,
		request.TargetID,
		models.SwapRequestPending,
		request.Message,
	).Scan(&request.ID, &request.CreatedAt)

	if err != nil {
		if dberrors.IsUniqueViolation(err) {
			return 0, apperrors.ErrDuplicateRequest
		}
		return 0, fmt.Errorf("error creating swap request: %w", err)
	}

	request.Status = models.SwapRequestPending
	return request.ID, nil
}

const swapRequestSelect = `
	SELECT
		sr.id, sr.requester_id, sr.target_id, sr.status, sr.message, sr.created_at, sr.resolved_at,
		req.id, req.email, req.first_name, req.last_name, req.cgpa, req.current_batch, req.original_batch,
		tgt.id, tgt.email, tgt.first_name, tgt.last_name, tgt.cgpa, tgt.current_batch, tgt.original_batch
	FROM swap_requests sr
	JOIN students req ON sr.requester_id = req.id
	JOIN students tgt ON sr.target_id = tgt.id
`

func scanSwapRequestWithParties(row pgx.Row) (*models.SwapRequest, error) {
	var sr models.SwapRequest
	var requester, target models.Student
	err := row.Scan(
		&sr.ID, &sr.RequesterID, &sr.TargetID, &sr.Status, &sr.Message, &sr.CreatedAt, &sr.ResolvedAt,
		&requester.ID, &requester.Email, &requester.FirstName, &requester.LastName,
		&requester.CGPA, &requester.CurrentBatch, &requester.OriginalBatch,
		&target.ID, &target.Email, &target.FirstName, &target.LastName,
		&target.CGPA, &target.CurrentBatch, &target.OriginalBatch,
	)
	if err != nil {
		return nil, err
	}
	sr.Requester = &requester
	sr.Target = &target
	return &sr, nil
}

// GetByID retrieves a swap request with both participants loaded
func (r *swapRequestRepository) GetByID(ctx context.Context, id int64) (*models.SwapRequest, error) {
	query := swapRequestSelect + ` WHERE sr.id = $1`

	request, err := scanSwapRequestWithParties(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, fmt.Errorf("error retrieving swap request: %w", err)
	}

	return request, nil
}

// GetByIDForUpdate retrieves the bare swap request row inside tx, holding its
// row lock. Concurrent transitions on the same request serialize here.
func (r *swapRequestRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*models.SwapRequest, error) {
	query := `
		SELECT id, requester_id, target_id, status, message, created_at, resolved_at
		FROM swap_requests
		WHERE id = $1
		FOR UPDATE
	`

	var sr models.SwapRequest
	err := tx.QueryRow(ctx, query, id).Scan(
		&sr.ID, &sr.RequesterID, &sr.TargetID, &sr.Status, &sr.Message, &sr.CreatedAt, &sr.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, fmt.Errorf("error locking swap request row: %w", err)
	}

	return &sr, nil
}

// GetByIDForShare retrieves the bare swap request row inside tx under a
// shared lock. Chat sends hold this while inserting so a terminal transition
// (which takes the row FOR UPDATE) cannot commit between the status check and
// the insert. Shared locks do not block each other, so concurrent sends on
// the same channel proceed in parallel.
func (r *swapRequestRepository) GetByIDForShare(ctx context.Context, tx pgx.Tx, id int64) (*models.SwapRequest, error) {
	query := `
		SELECT id, requester_id, target_id, status, message, created_at, resolved_at
		FROM swap_requests
		WHERE id = $1
		FOR SHARE
	`

	var sr models.SwapRequest
	err := tx.QueryRow(ctx, query, id).Scan(
		&sr.ID, &sr.RequesterID, &sr.TargetID, &sr.Status, &sr.Message, &sr.CreatedAt, &sr.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, fmt.Errorf("error share-locking swap request row: %w", err)
	}

	return &sr, nil
}

// HasPendingForPair reports whether a pending request exists for the ordered
// (requester, target) pair.
func (r *swapRequestRepository) HasPendingForPair(ctx context.Context, requesterID, targetID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM swap_requests
			WHERE requester_id = $1 AND target_id = $2 AND status = $3
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, requesterID, targetID, models.SwapRequestPending).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking pending pair: %w", err)
	}

	return exists, nil
}

func (r *swapRequestRepository) listByParticipant(ctx context.Context, column string, studentID int64, status *models.SwapRequestStatus) ([]*models.SwapRequest, error) {
	queryBuilder := squirrel.Select(
		"sr.id", "sr.requester_id", "sr.target_id", "sr.status", "sr.message", "sr.created_at", "sr.resolved_at",
		"req.id", "req.email", "req.first_name", "req.last_name", "req.cgpa", "req.current_batch", "req.original_batch",
		"tgt.id", "tgt.email", "tgt.first_name", "tgt.last_name", "tgt.cgpa", "tgt.current_batch", "tgt.original_batch",
	).
		From("swap_requests sr").
		Join("students req ON sr.requester_id = req.id").
		Join("students tgt ON sr.target_id = tgt.id").
		Where(column+" = ?", studentID).
		OrderBy("sr.created_at DESC", "sr.id DESC").
		PlaceholderFormat(squirrel.Dollar)

	if status != nil {
		queryBuilder = queryBuilder.Where("sr.status = ?", *status)
	}

	sql, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing swap requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.SwapRequest
	for rows.Next() {
		request, err := scanSwapRequestWithParties(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning swap request row: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating swap request rows: %w", err)
	}

	return requests, nil
}

// ListByRequester retrieves requests sent by the student, newest first
func (r *swapRequestRepository) ListByRequester(ctx context.Context, studentID int64, status *models.SwapRequestStatus) ([]*models.SwapRequest, error) {
	return r.listByParticipant(ctx, "sr.requester_id", studentID, status)
}

// ListByTarget retrieves requests received by the student, newest first
func (r *swapRequestRepository) ListByTarget(ctx context.Context, studentID int64, status *models.SwapRequestStatus) ([]*models.SwapRequest, error) {
	return r.listByParticipant(ctx, "sr.target_id", studentID, status)
}

// UpdateStatus writes the request state inside tx, stamping resolved_at on
// terminal transitions.
func (r *swapRequestRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status models.SwapRequestStatus) error {
	query := `
		UPDATE swap_requests
		SET status = $2,
		    resolved_at = CASE WHEN $2 <> 'pending' THEN now() ELSE resolved_at END
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("error updating swap request status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrRequestNotFound
	}

	return nil
}

// ExpireOtherPending expires every other pending request touching either
// participant, inside tx, and returns the ids of the requests it resolved.
// Called as part of the accept transaction so no caller can observe a
// half-cascaded state.
func (r *swapRequestRepository) ExpireOtherPending(ctx context.Context, tx pgx.Tx, studentA, studentB, excludeID int64) ([]int64, error) {
	query := `
		UPDATE swap_requests
		SET status = $4, resolved_at = now()
		WHERE status = $5
		  AND id <> $3
		  AND (requester_id IN ($1, $2) OR target_id IN ($1, $2))
		RETURNING id
	`

	rows, err := tx.Query(ctx, query, studentA, studentB, excludeID,
		models.SwapRequestExpired, models.SwapRequestPending)
	if err != nil {
		return nil, fmt.Errorf("error expiring other pending requests: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning expired request id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired request ids: %w", err)
	}

	return ids, nil
}

// ExpireOlderThan expires every pending request created before the cutoff and
// returns their ids. Used by the auto-expiry worker.
func (r *swapRequestRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := `
		UPDATE swap_requests
		SET status = $2, resolved_at = now()
		WHERE status = $3 AND created_at < $1
		RETURNING id
	`

	rows, err := r.db.Query(ctx, query, cutoff, models.SwapRequestExpired, models.SwapRequestPending)
	if err != nil {
		return nil, fmt.Errorf("error expiring stale requests: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning expired request id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired request ids: %w", err)
	}

	return ids, nil
}
