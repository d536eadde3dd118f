package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/app/repositories"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
	"github.com/batchswap/batchswap/internal/pkg/helpers"
)

// StudentService handles profile operations and eligible-partner discovery
type StudentService struct {
	studentRepo repositories.StudentRepository
	tolerance   float64
	logger      zerolog.Logger
}

// NewStudentService creates a new StudentService. tolerance is the maximum
// absolute CGPA difference between eligible swap partners.
func NewStudentService(
	studentRepo repositories.StudentRepository,
	tolerance float64,
	logger zerolog.Logger,
) *StudentService {
	return &StudentService{
		studentRepo: studentRepo,
		tolerance:   tolerance,
		logger:      logger,
	}
}

// GetByID returns a single student profile
func (s *StudentService) GetByID(ctx context.Context, id int64) (*dto.StudentResponse, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.ToStudentResponse(student)
	return &resp, nil
}

// List returns a page of student profiles
func (s *StudentService) List(ctx context.Context, page, pageSize int) (*dto.StudentListResponse, error) {
	offset, limit := helpers.CalculateOffsetLimit(page, pageSize)

	students, total, err := s.studentRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing students: %w", err)
	}

	resp := &dto.StudentListResponse{
		Students: make([]dto.StudentResponse, 0, len(students)),
	}
	for _, student := range students {
		resp.Students = append(resp.Students, dto.ToStudentResponse(student))
	}
	resp.PaginationInfo = helpers.NewPaginationInfo(total, page, limit)
	return resp, nil
}

// UpdateCGPA updates a student's own CGPA. Eligibility of any pending swap
// requests is re-checked at accept time, not here.
func (s *StudentService) UpdateCGPA(ctx context.Context, studentID int64, req *dto.UpdateStudentRequest) (*dto.StudentResponse, error) {
	if req.CGPA == nil {
		return s.GetByID(ctx, studentID)
	}
	cgpa := *req.CGPA
	if cgpa < models.CGPAMin || cgpa > models.CGPAMax {
		return nil, apperrors.NewCustomError(apperrors.ErrInvalidCGPA,
			fmt.Sprintf("CGPA must be between %.1f and %.1f", models.CGPAMin, models.CGPAMax))
	}

	if err := s.studentRepo.UpdateCGPA(ctx, studentID, cgpa); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("studentID", studentID).
		Float64("cgpa", cgpa).
		Msg("Student CGPA updated")

	return s.GetByID(ctx, studentID)
}

// FindCandidates returns the students the caller may propose a swap to,
// ordered by CGPA proximity. A candidate must sit in a different batch, be
// active, have a CGPA within the tolerance, and not be tied up in an
// accepted swap.
func (s *StudentService) FindCandidates(ctx context.Context, studentID int64) ([]dto.CandidateResponse, error) {
	requester, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.studentRepo.FindEligible(ctx, requester, s.tolerance)
	if err != nil {
		return nil, fmt.Errorf("error finding eligible partners: %w", err)
	}

	resp := make([]dto.CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		resp = append(resp, dto.CandidateResponse{
			ID:             c.ID,
			Email:          c.Email,
			FirstName:      c.FirstName,
			LastName:       c.LastName,
			CGPA:           c.CGPA,
			CurrentBatch:   string(c.CurrentBatch),
			CGPADifference: math.Abs(c.CGPA - requester.CGPA),
		})
	}
	return resp, nil
}

// CheckEligibility applies the pairing rules to two already-loaded students.
// The swap service calls this both at request creation and again inside the
// accept transaction, after the row locks are held.
func (s *StudentService) CheckEligibility(requester, target *models.Student) error {
	if requester.ID == target.ID {
		return apperrors.ErrSelfSwap
	}
	if !requester.IsActive || !target.IsActive {
		return apperrors.NewNotEligibleError("Both students must have active accounts")
	}
	if requester.CurrentBatch == target.CurrentBatch {
		return apperrors.NewNotEligibleError("Students are already in the same batch")
	}
	if math.Abs(requester.CGPA-target.CGPA) > s.tolerance {
		return apperrors.NewNotEligibleError(
			fmt.Sprintf("CGPA difference exceeds the allowed tolerance of %.2f", s.tolerance))
	}
	return nil
}

// wrapNotFound maps repository-level not-found errors for callers that need
// a student to exist before proceeding
func wrapNotFound(err error, id int64) error {
	if errors.Is(err, apperrors.ErrStudentNotFound) {
		return apperrors.NewNotFoundError(apperrors.ErrStudentNotFound,
			fmt.Sprintf("Student with ID %d not found", id))
	}
	return err
}
