package services

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/db"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// Mock StudentRepository

type mockStudentRepo struct {
	students map[int64]*models.Student
	nextID   int64

	// accepted-request lookups for FindEligible
	swaps *mockSwapRequestRepo
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[int64]*models.Student), nextID: 1}
}

func (m *mockStudentRepo) Create(_ context.Context, student *models.Student) (int64, error) {
	for _, s := range m.students {
		if s.Email == student.Email {
			return 0, apperrors.ErrEmailAlreadyExists
		}
	}
	student.ID = m.nextID
	m.nextID++
	student.CreatedAt = time.Now()
	m.students[student.ID] = student
	return student.ID, nil
}

func (m *mockStudentRepo) GetByID(_ context.Context, id int64) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, apperrors.ErrStudentNotFound
}

func (m *mockStudentRepo) GetByEmail(_ context.Context, email string) (*models.Student, error) {
	for _, s := range m.students {
		if s.Email == email {
			copied := *s
			return &copied, nil
		}
	}
	return nil, apperrors.ErrStudentNotFound
}

func (m *mockStudentRepo) List(_ context.Context, offset uint64, limit int) ([]*models.Student, int64, error) {
	ids := make([]int64, 0, len(m.students))
	for id := range m.students {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var result []*models.Student
	for i, id := range ids {
		if uint64(i) < offset {
			continue
		}
		if len(result) >= limit {
			break
		}
		copied := *m.students[id]
		result = append(result, &copied)
	}
	return result, int64(len(m.students)), nil
}

func (m *mockStudentRepo) UpdateCGPA(_ context.Context, id int64, cgpa float64) error {
	s, ok := m.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	s.CGPA = cgpa
	s.UpdatedAt = time.Now()
	return nil
}

func (m *mockStudentRepo) FindEligible(_ context.Context, requester *models.Student, tolerance float64) ([]*models.Student, error) {
	var result []*models.Student
	for _, s := range m.students {
		if s.ID == requester.ID || !s.IsActive {
			continue
		}
		if s.CurrentBatch == requester.CurrentBatch {
			continue
		}
		if math.Abs(s.CGPA-requester.CGPA) > tolerance {
			continue
		}
		if m.swaps != nil && m.swaps.participatesInAccepted(s.ID) {
			continue
		}
		copied := *s
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		di := math.Abs(result[i].CGPA - requester.CGPA)
		dj := math.Abs(result[j].CGPA - requester.CGPA)
		if di != dj {
			return di < dj
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *mockStudentRepo) GetForUpdate(ctx context.Context, _ pgx.Tx, id int64) (*models.Student, error) {
	return m.GetByID(ctx, id)
}

func (m *mockStudentRepo) UpdateCurrentBatch(_ context.Context, _ pgx.Tx, id int64, batch models.Batch) error {
	s, ok := m.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	s.CurrentBatch = batch
	s.UpdatedAt = time.Now()
	return nil
}

// Mock SwapRequestRepository

type mockSwapRequestRepo struct {
	requests map[int64]*models.SwapRequest
	nextID   int64
	clock    time.Time

	students *mockStudentRepo
}

func newMockSwapRequestRepo(students *mockStudentRepo) *mockSwapRequestRepo {
	repo := &mockSwapRequestRepo{
		requests: make(map[int64]*models.SwapRequest),
		nextID:   1,
		clock:    time.Now().Add(-time.Hour),
		students: students,
	}
	if students != nil {
		students.swaps = repo
	}
	return repo
}

// tick returns strictly increasing timestamps so ordering is deterministic
func (m *mockSwapRequestRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockSwapRequestRepo) participatesInAccepted(studentID int64) bool {
	for _, r := range m.requests {
		if r.Status == models.SwapRequestAccepted && r.IsParticipant(studentID) {
			return true
		}
	}
	return false
}

func (m *mockSwapRequestRepo) Create(_ context.Context, request *models.SwapRequest) (int64, error) {
	for _, r := range m.requests {
		if r.Status == models.SwapRequestPending &&
			r.RequesterID == request.RequesterID && r.TargetID == request.TargetID {
			return 0, apperrors.ErrDuplicateRequest
		}
	}
	request.ID = m.nextID
	m.nextID++
	request.CreatedAt = m.tick()
	m.requests[request.ID] = request
	return request.ID, nil
}

func (m *mockSwapRequestRepo) get(id int64, withParties bool) (*models.SwapRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}
	copied := *r
	if withParties && m.students != nil {
		if s, ok := m.students.students[r.RequesterID]; ok {
			sc := *s
			copied.Requester = &sc
		}
		if s, ok := m.students.students[r.TargetID]; ok {
			sc := *s
			copied.Target = &sc
		}
	}
	return &copied, nil
}

func (m *mockSwapRequestRepo) GetByID(_ context.Context, id int64) (*models.SwapRequest, error) {
	return m.get(id, true)
}

func (m *mockSwapRequestRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id int64) (*models.SwapRequest, error) {
	return m.get(id, false)
}

func (m *mockSwapRequestRepo) GetByIDForShare(_ context.Context, _ pgx.Tx, id int64) (*models.SwapRequest, error) {
	return m.get(id, false)
}

func (m *mockSwapRequestRepo) HasPendingForPair(_ context.Context, requesterID, targetID int64) (bool, error) {
	for _, r := range m.requests {
		if r.Status == models.SwapRequestPending &&
			r.RequesterID == requesterID && r.TargetID == targetID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSwapRequestRepo) listBy(match func(*models.SwapRequest) bool, status *models.SwapRequestStatus) []*models.SwapRequest {
	var result []*models.SwapRequest
	for id, r := range m.requests {
		if !match(r) {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		copied, _ := m.get(id, true)
		result = append(result, copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (m *mockSwapRequestRepo) ListByRequester(_ context.Context, studentID int64, status *models.SwapRequestStatus) ([]*models.SwapRequest, error) {
	return m.listBy(func(r *models.SwapRequest) bool { return r.RequesterID == studentID }, status), nil
}

func (m *mockSwapRequestRepo) ListByTarget(_ context.Context, studentID int64, status *models.SwapRequestStatus) ([]*models.SwapRequest, error) {
	return m.listBy(func(r *models.SwapRequest) bool { return r.TargetID == studentID }, status), nil
}

func (m *mockSwapRequestRepo) UpdateStatus(_ context.Context, _ pgx.Tx, id int64, status models.SwapRequestStatus) error {
	r, ok := m.requests[id]
	if !ok {
		return apperrors.ErrRequestNotFound
	}
	r.Status = status
	if status != models.SwapRequestPending {
		now := m.tick()
		r.ResolvedAt = &now
	}
	return nil
}

func (m *mockSwapRequestRepo) ExpireOtherPending(_ context.Context, _ pgx.Tx, studentA, studentB, excludeID int64) ([]int64, error) {
	var ids []int64
	for id, r := range m.requests {
		if id == excludeID || r.Status != models.SwapRequestPending {
			continue
		}
		if r.IsParticipant(studentA) || r.IsParticipant(studentB) {
			r.Status = models.SwapRequestExpired
			now := m.tick()
			r.ResolvedAt = &now
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockSwapRequestRepo) ExpireOlderThan(_ context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	for id, r := range m.requests {
		if r.Status != models.SwapRequestPending || !r.CreatedAt.Before(cutoff) {
			continue
		}
		r.Status = models.SwapRequestExpired
		now := m.tick()
		r.ResolvedAt = &now
		ids = append(ids, id)
	}
	return ids, nil
}

// Mock ChatMessageRepository

type mockChatMessageRepo struct {
	messages []*models.ChatMessage
	nextID   int64
	clock    time.Time

	students *mockStudentRepo
}

func newMockChatMessageRepo(students *mockStudentRepo) *mockChatMessageRepo {
	return &mockChatMessageRepo{nextID: 1, clock: time.Now().Add(-time.Hour), students: students}
}

func (m *mockChatMessageRepo) Create(_ context.Context, _ pgx.Tx, message *models.ChatMessage) (int64, error) {
	message.ID = m.nextID
	m.nextID++
	m.clock = m.clock.Add(time.Second)
	message.SentAt = m.clock
	copied := *message
	m.messages = append(m.messages, &copied)
	return message.ID, nil
}

func (m *mockChatMessageRepo) ListByRequest(_ context.Context, requestID int64, before *time.Time, limit int) ([]*models.ChatMessage, error) {
	var result []*models.ChatMessage
	for _, msg := range m.messages {
		if msg.RequestID != requestID {
			continue
		}
		if before != nil && !msg.SentAt.Before(*before) {
			continue
		}
		copied := *msg
		if m.students != nil {
			if s, ok := m.students.students[msg.SenderID]; ok {
				sc := *s
				copied.Sender = &sc
			}
		}
		result = append(result, &copied)
	}
	// Window is the newest `limit` messages before the cursor, returned
	// in ascending send order, matching the SQL implementation.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].SentAt.Equal(result[j].SentAt) {
			return result[i].SentAt.Before(result[j].SentAt)
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// Mock TxManager

// mockTxManager serializes transaction functions with a mutex, standing in
// for the row locking a real database provides.
type mockTxManager struct {
	mu sync.Mutex
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn db.TransactionFn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, nil)
}

// Mock ChannelCloser

type mockChannelCloser struct {
	mu     sync.Mutex
	closed []int64
}

func (m *mockChannelCloser) CloseChannel(requestID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, requestID)
}

func (m *mockChannelCloser) wasClosed(requestID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.closed {
		if id == requestID {
			return true
		}
	}
	return false
}
