package models

import "time"

// Batch is the class section a student is assigned to. It is the unit
// exchanged by an accepted swap.
type Batch string

const (
	BatchForenoon Batch = "Forenoon"
	BatchEvening1 Batch = "Evening 1"
	BatchEvening2 Batch = "Evening 2"
)

// Valid reports whether the batch is one of the known sections.
func (b Batch) Valid() bool {
	switch b {
	case BatchForenoon, BatchEvening1, BatchEvening2:
		return true
	}
	return false
}

// CGPA bounds enforced at registration and profile update.
const (
	CGPAMin = 0.0
	CGPAMax = 10.0
)

// Student defines the student model based on the 'students' table.
// CurrentBatch is written only by the batch-exchange transaction;
// OriginalBatch keeps the assignment the student registered with.
type Student struct {
	ID            int64     `json:"id" db:"id" example:"1"`
	Email         string    `json:"email" db:"email" example:"student@school.edu"`
	Password      string    `json:"-" db:"password"`
	FirstName     string    `json:"firstName" db:"first_name" example:"John"`
	LastName      string    `json:"lastName" db:"last_name" example:"Doe"`
	CGPA          float64   `json:"cgpa" db:"cgpa" example:"8.24"`
	CurrentBatch  Batch     `json:"currentBatch" db:"current_batch" example:"Forenoon"`
	OriginalBatch Batch     `json:"originalBatch" db:"original_batch" example:"Evening 1"`
	IsActive      bool      `json:"isActive" db:"is_active" example:"true"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}
