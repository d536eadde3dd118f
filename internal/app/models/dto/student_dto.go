package dto

import (
	"time"

	"github.com/batchswap/batchswap/internal/app/models"
)

// StudentResponse represents a student profile
type StudentResponse struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	CGPA          float64   `json:"cgpa"`
	CurrentBatch  string    `json:"currentBatch"`
	OriginalBatch string    `json:"originalBatch"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ToStudentResponse maps a student model to its response DTO
func ToStudentResponse(s *models.Student) StudentResponse {
	return StudentResponse{
		ID:            s.ID,
		Email:         s.Email,
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		CGPA:          s.CGPA,
		CurrentBatch:  string(s.CurrentBatch),
		OriginalBatch: string(s.OriginalBatch),
		CreatedAt:     s.CreatedAt,
	}
}

// CandidateResponse represents an eligible swap partner with the CGPA
// distance used for ranking
type CandidateResponse struct {
	ID             int64   `json:"id"`
	Email          string  `json:"email"`
	FirstName      string  `json:"firstName"`
	LastName       string  `json:"lastName"`
	CGPA           float64 `json:"cgpa"`
	CurrentBatch   string  `json:"currentBatch"`
	CGPADifference float64 `json:"cgpaDifference"`
}

// UpdateStudentRequest represents a profile update; only the CGPA is mutable
type UpdateStudentRequest struct {
	CGPA *float64 `json:"cgpa" binding:"omitempty,gte=0,lte=10"`
}

// StudentListResponse represents a paginated list of students
type StudentListResponse struct {
	Students []StudentResponse `json:"students"`
	PaginationInfo
}
