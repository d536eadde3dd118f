package dto

import (
	"time"

	"github.com/batchswap/batchswap/internal/app/models"
)

// CreateSwapRequestRequest represents the payload for opening a swap request
type CreateSwapRequestRequest struct {
	TargetID int64   `json:"targetId" binding:"required,gt=0"`
	Message  *string `json:"message" binding:"omitempty,max=2000"`
}

// SwapRequestResponse represents a swap request with both participants
type SwapRequestResponse struct {
	ID         int64            `json:"id"`
	Status     string           `json:"status"`
	Message    *string          `json:"message,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	ResolvedAt *time.Time       `json:"resolvedAt,omitempty"`
	Requester  *StudentResponse `json:"requester,omitempty"`
	Target     *StudentResponse `json:"target,omitempty"`
}

// ToSwapRequestResponse maps a swap request model to its response DTO
func ToSwapRequestResponse(r *models.SwapRequest) *SwapRequestResponse {
	resp := &SwapRequestResponse{
		ID:         r.ID,
		Status:     string(r.Status),
		Message:    r.Message,
		CreatedAt:  r.CreatedAt,
		ResolvedAt: r.ResolvedAt,
	}
	if r.Requester != nil {
		requester := ToStudentResponse(r.Requester)
		resp.Requester = &requester
	}
	if r.Target != nil {
		target := ToStudentResponse(r.Target)
		resp.Target = &target
	}
	return resp
}

// SwapRequestListResponse represents a list of swap requests
type SwapRequestListResponse struct {
	Requests []*SwapRequestResponse `json:"requests"`
}
