package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/batchswap/batchswap/internal/app/models"
)

// StudentRepository handles database operations for students. Methods taking
// a pgx.Tx participate in the caller's transaction and row locks.
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	GetByEmail(ctx context.Context, email string) (*models.Student, error)
	List(ctx context.Context, offset uint64, limit int) ([]*models.Student, int64, error)
	UpdateCGPA(ctx context.Context, id int64, cgpa float64) error
	FindEligible(ctx context.Context, requester *models.Student, tolerance float64) ([]*models.Student, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*models.Student, error)
	UpdateCurrentBatch(ctx context.Context, tx pgx.Tx, id int64, batch models.Batch) error
}

// SwapRequestRepository handles database operations for swap requests.
type SwapRequestRepository interface {
	Create(ctx context.Context, request *models.SwapRequest) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SwapRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*models.SwapRequest, error)
	GetByIDForShare(ctx context.Context, tx pgx.Tx, id int64) (*models.SwapRequest, error)
	HasPendingForPair(ctx context.Context, requesterID, targetID int64) (bool, error)
	ListByRequester(ctx context.Context, studentID int64, status *models.SwapRequestStatus) ([]*models.SwapRequest, error)
	ListByTarget(ctx context.Context, studentID int64, status *models.SwapRequestStatus) ([]*models.SwapRequest, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status models.SwapRequestStatus) error
	ExpireOtherPending(ctx context.Context, tx pgx.Tx, studentA, studentB, excludeID int64) ([]int64, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// ChatMessageRepository handles database operations for negotiation messages.
type ChatMessageRepository interface {
	Create(ctx context.Context, tx pgx.Tx, message *models.ChatMessage) (int64, error)
	ListByRequest(ctx context.Context, requestID int64, before *time.Time, limit int) ([]*models.ChatMessage, error)
}

// Repositories holds all the repository instances
type Repositories struct {
	StudentRepository     StudentRepository
	SwapRequestRepository SwapRequestRepository
	ChatMessageRepository ChatMessageRepository
}

// NewRepositories initializes all repositories over a pgx pool
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		StudentRepository:     NewStudentRepository(db),
		SwapRequestRepository: NewSwapRequestRepository(db),
		ChatMessageRepository: NewChatMessageRepository(db),
	}
}
