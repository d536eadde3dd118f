package models

import "time"

// SwapRequestStatus is the lifecycle state of a swap request.
// Pending is the only non-terminal state.
type SwapRequestStatus string

const (
	SwapRequestPending   SwapRequestStatus = "pending"
	SwapRequestAccepted  SwapRequestStatus = "accepted"
	SwapRequestRejected  SwapRequestStatus = "rejected"
	SwapRequestCancelled SwapRequestStatus = "cancelled"
	SwapRequestExpired   SwapRequestStatus = "expired"
)

// IsTerminal reports whether the status admits no further transitions.
func (s SwapRequestStatus) IsTerminal() bool {
	return s != SwapRequestPending
}

// Valid reports whether the status is a known lifecycle state.
func (s SwapRequestStatus) Valid() bool {
	switch s {
	case SwapRequestPending, SwapRequestAccepted, SwapRequestRejected,
		SwapRequestCancelled, SwapRequestExpired:
		return true
	}
	return false
}

// SwapRequest represents one swap proposal between two students.
// Status and ResolvedAt are written only by the swap service; a request
// is immutable once terminal.
type SwapRequest struct {
	ID          int64             `json:"id" db:"id"`
	RequesterID int64             `json:"requesterId" db:"requester_id"`
	TargetID    int64             `json:"targetId" db:"target_id"`
	Status      SwapRequestStatus `json:"status" db:"status"`
	Message     *string           `json:"message,omitempty" db:"message"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	ResolvedAt  *time.Time        `json:"resolvedAt,omitempty" db:"resolved_at"`

	// Related entities
	Requester *Student `json:"requester,omitempty"`
	Target    *Student `json:"target,omitempty"`
}

// IsParticipant reports whether the student is one of the two parties.
func (r *SwapRequest) IsParticipant(studentID int64) bool {
	return r.RequesterID == studentID || r.TargetID == studentID
}

// OtherParticipant returns the counterpart of the given participant.
func (r *SwapRequest) OtherParticipant(studentID int64) int64 {
	if r.RequesterID == studentID {
		return r.TargetID
	}
	return r.RequesterID
}
