package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/app/repositories"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
	"github.com/batchswap/batchswap/internal/pkg/auth"
)

// AuthService handles registration, login and token issuance
type AuthService struct {
	studentRepo repositories.StudentRepository
	jwtService  *auth.JWTService
	logger      zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	studentRepo repositories.StudentRepository,
	jwtService *auth.JWTService,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		studentRepo: studentRepo,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// Register creates a new student account and issues an access token.
// The student starts out in the batch they registered with.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	batch := models.Batch(req.CurrentBatch)
	if !batch.Valid() {
		return nil, apperrors.NewCustomError(apperrors.ErrInvalidBatch,
			fmt.Sprintf("Unknown batch: %s", req.CurrentBatch))
	}

	if req.CGPA < models.CGPAMin || req.CGPA > models.CGPAMax {
		return nil, apperrors.NewCustomError(apperrors.ErrInvalidCGPA,
			fmt.Sprintf("CGPA must be between %.1f and %.1f", models.CGPAMin, models.CGPAMax))
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	student := &models.Student{
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Password:      hashedPassword,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		CGPA:          req.CGPA,
		CurrentBatch:  batch,
		OriginalBatch: batch,
		IsActive:      true,
	}

	studentID, err := s.studentRepo.Create(ctx, student)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmailAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("student creation error: %w", err)
	}
	student.ID = studentID

	s.logger.Info().
		Int64("studentID", studentID).
		Str("batch", string(batch)).
		Msg("Student registered")

	return s.buildAuthResponse(student)
}

// Login authenticates a student and issues an access token
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	student, err := s.studentRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, apperrors.ErrStudentNotFound) {
			// Same error as a wrong password so login does not leak
			// which emails are registered
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error fetching student: %w", err)
	}

	if !auth.CheckPassword(student.Password, req.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !student.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	return s.buildAuthResponse(student)
}

// buildAuthResponse issues a token for the student and assembles the
// register/login response body
func (s *AuthService) buildAuthResponse(student *models.Student) (*dto.AuthResponse, error) {
	accessToken, expiresIn, err := s.jwtService.GenerateToken(student)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &dto.AuthResponse{
		Token: dto.TokenResponse{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		},
		Student: dto.ToStudentResponse(student),
	}, nil
}
