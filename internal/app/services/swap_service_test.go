package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
)

type swapTestEnv struct {
	studentRepo *mockStudentRepo
	swapRepo    *mockSwapRequestRepo
	channels    *mockChannelCloser
	students    *StudentService
	swaps       *SwapService
}

func newSwapTestEnv(t *testing.T, requestExpiry time.Duration) *swapTestEnv {
	t.Helper()
	studentRepo := newMockStudentRepo()
	swapRepo := newMockSwapRequestRepo(studentRepo)
	channels := &mockChannelCloser{}
	studentService := NewStudentService(studentRepo, 0.06, testLogger())
	swapService := NewSwapService(
		studentRepo, swapRepo, studentService,
		&mockTxManager{}, channels, requestExpiry, testLogger(),
	)
	return &swapTestEnv{
		studentRepo: studentRepo,
		swapRepo:    swapRepo,
		channels:    channels,
		students:    studentService,
		swaps:       swapService,
	}
}

func (e *swapTestEnv) addStudent(t *testing.T, email string, cgpa float64, batch models.Batch) int64 {
	t.Helper()
	id, err := e.studentRepo.Create(context.Background(), &models.Student{
		Email:         email,
		Password:      "hashed",
		FirstName:     "Test",
		LastName:      "Student",
		CGPA:          cgpa,
		CurrentBatch:  batch,
		OriginalBatch: batch,
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("addStudent(%s): %v", email, err)
	}
	return id
}

func (e *swapTestEnv) createRequest(t *testing.T, requesterID, targetID int64) int64 {
	t.Helper()
	resp, err := e.swaps.Create(context.Background(), requesterID, &dto.CreateSwapRequestRequest{TargetID: targetID})
	if err != nil {
		t.Fatalf("createRequest(%d -> %d): %v", requesterID, targetID, err)
	}
	return resp.ID
}

func TestCreateSwapRequest(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)

	msg := "shall we trade?"
	resp, err := env.swaps.Create(context.Background(), a, &dto.CreateSwapRequestRequest{TargetID: b, Message: &msg})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if resp.Status != string(models.SwapRequestPending) {
		t.Errorf("status = %s, want pending", resp.Status)
	}
	if resp.Message == nil || *resp.Message != msg {
		t.Errorf("message not carried through: %v", resp.Message)
	}
	if resp.Requester == nil || resp.Requester.ID != a {
		t.Errorf("requester not attached: %+v", resp.Requester)
	}
	if resp.Target == nil || resp.Target.ID != b {
		t.Errorf("target not attached: %+v", resp.Target)
	}
}

func TestCreateSelfSwap(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)

	_, err := env.swaps.Create(context.Background(), a, &dto.CreateSwapRequestRequest{TargetID: a})
	if !errors.Is(err, apperrors.ErrSelfSwap) {
		t.Fatalf("err = %v, want ErrSelfSwap", err)
	}
}

func TestCreateNotEligible(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)

	t.Run("same batch", func(t *testing.T) {
		b := env.addStudent(t, "same@school.edu", 8.0, models.BatchForenoon)
		_, err := env.swaps.Create(context.Background(), a, &dto.CreateSwapRequestRequest{TargetID: b})
		if !errors.Is(err, apperrors.ErrNotEligible) {
			t.Fatalf("err = %v, want ErrNotEligible", err)
		}
	})

	t.Run("cgpa out of tolerance", func(t *testing.T) {
		b := env.addStudent(t, "far@school.edu", 8.5, models.BatchEvening1)
		_, err := env.swaps.Create(context.Background(), a, &dto.CreateSwapRequestRequest{TargetID: b})
		if !errors.Is(err, apperrors.ErrNotEligible) {
			t.Fatalf("err = %v, want ErrNotEligible", err)
		}
	})

	t.Run("inactive target", func(t *testing.T) {
		id, _ := env.studentRepo.Create(context.Background(), &models.Student{
			Email: "inactive@school.edu", CGPA: 8.0,
			CurrentBatch: models.BatchEvening1, OriginalBatch: models.BatchEvening1,
			IsActive: false,
		})
		_, err := env.swaps.Create(context.Background(), a, &dto.CreateSwapRequestRequest{TargetID: id})
		if !errors.Is(err, apperrors.ErrNotEligible) {
			t.Fatalf("err = %v, want ErrNotEligible", err)
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		_, err := env.swaps.Create(context.Background(), a, &dto.CreateSwapRequestRequest{TargetID: 9999})
		if !errors.Is(err, apperrors.ErrStudentNotFound) {
			t.Fatalf("err = %v, want ErrStudentNotFound", err)
		}
	})
}

func TestCreateDuplicatePending(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)

	env.createRequest(t, a, b)
	_, err := env.swaps.Create(context.Background(), a, &dto.CreateSwapRequestRequest{TargetID: b})
	if !errors.Is(err, apperrors.ErrDuplicateRequest) {
		t.Fatalf("err = %v, want ErrDuplicateRequest", err)
	}
}

func TestAcceptExchangesBatches(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	reqID := env.createRequest(t, a, b)

	resp, err := env.swaps.Accept(context.Background(), reqID, b)
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if resp.Status != string(models.SwapRequestAccepted) {
		t.Errorf("status = %s, want accepted", resp.Status)
	}
	if resp.ResolvedAt == nil {
		t.Error("resolvedAt not set on accepted request")
	}

	sa, _ := env.studentRepo.GetByID(context.Background(), a)
	sb, _ := env.studentRepo.GetByID(context.Background(), b)
	if sa.CurrentBatch != models.BatchEvening1 {
		t.Errorf("requester batch = %s, want Evening 1", sa.CurrentBatch)
	}
	if sb.CurrentBatch != models.BatchForenoon {
		t.Errorf("target batch = %s, want Forenoon", sb.CurrentBatch)
	}
	if sa.OriginalBatch != models.BatchForenoon || sb.OriginalBatch != models.BatchEvening1 {
		t.Error("original batches must not change on exchange")
	}
	if !env.channels.wasClosed(reqID) {
		t.Error("negotiation channel not closed after accept")
	}
}

func TestAcceptAuthorization(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	c := env.addStudent(t, "c@school.edu", 8.02, models.BatchEvening2)
	reqID := env.createRequest(t, a, b)

	if _, err := env.swaps.Accept(context.Background(), reqID, a); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Errorf("requester accept: err = %v, want ErrPermissionDenied", err)
	}
	if _, err := env.swaps.Accept(context.Background(), reqID, c); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Errorf("outsider accept: err = %v, want ErrPermissionDenied", err)
	}
}

func TestAcceptTwice(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	reqID := env.createRequest(t, a, b)

	if _, err := env.swaps.Accept(context.Background(), reqID, b); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := env.swaps.Accept(context.Background(), reqID, b); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("second accept: err = %v, want ErrInvalidState", err)
	}
}

func TestAcceptAfterCancel(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	reqID := env.createRequest(t, a, b)

	if _, err := env.swaps.Cancel(context.Background(), reqID, a); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.swaps.Accept(context.Background(), reqID, b); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("accept after cancel: err = %v, want ErrInvalidState", err)
	}

	// The exchange must not have happened
	sa, _ := env.studentRepo.GetByID(context.Background(), a)
	if sa.CurrentBatch != models.BatchForenoon {
		t.Errorf("requester batch changed despite cancelled request: %s", sa.CurrentBatch)
	}
}

func TestAcceptCascadeExpiresOverlapping(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	c := env.addStudent(t, "c@school.edu", 8.02, models.BatchEvening2)
	d := env.addStudent(t, "d@school.edu", 8.03, models.BatchForenoon)

	main := env.createRequest(t, a, b)
	overlapA := env.createRequest(t, c, a) // touches requester
	overlapB := env.createRequest(t, b, d) // touches target
	unrelated := env.createRequest(t, c, d)

	if _, err := env.swaps.Accept(context.Background(), main, b); err != nil {
		t.Fatalf("accept: %v", err)
	}

	for _, id := range []int64{overlapA, overlapB} {
		r, _ := env.swapRepo.GetByID(context.Background(), id)
		if r.Status != models.SwapRequestExpired {
			t.Errorf("request %d status = %s, want expired", id, r.Status)
		}
		if !env.channels.wasClosed(id) {
			t.Errorf("channel for cascaded request %d not closed", id)
		}
	}

	r, _ := env.swapRepo.GetByID(context.Background(), unrelated)
	if r.Status != models.SwapRequestPending {
		t.Errorf("unrelated request status = %s, want pending", r.Status)
	}
}

func TestAcceptAbortsWhenPairDrifted(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	reqID := env.createRequest(t, a, b)

	// CGPA drifts out of tolerance between creation and accept
	if err := env.studentRepo.UpdateCGPA(context.Background(), a, 9.5); err != nil {
		t.Fatalf("UpdateCGPA: %v", err)
	}

	_, err := env.swaps.Accept(context.Background(), reqID, b)
	if !errors.Is(err, apperrors.ErrExchangeAborted) {
		t.Fatalf("err = %v, want ErrExchangeAborted", err)
	}

	r, _ := env.swapRepo.GetByID(context.Background(), reqID)
	if r.Status != models.SwapRequestExpired {
		t.Errorf("aborted request status = %s, want expired", r.Status)
	}
	if !env.channels.wasClosed(reqID) {
		t.Error("channel not closed after aborted exchange")
	}

	// No partial exchange
	sa, _ := env.studentRepo.GetByID(context.Background(), a)
	sb, _ := env.studentRepo.GetByID(context.Background(), b)
	if sa.CurrentBatch != models.BatchForenoon || sb.CurrentBatch != models.BatchEvening1 {
		t.Error("batches changed despite aborted exchange")
	}
}

func TestRejectTransitions(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	reqID := env.createRequest(t, a, b)

	if _, err := env.swaps.Reject(context.Background(), reqID, a); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Errorf("requester reject: err = %v, want ErrPermissionDenied", err)
	}

	resp, err := env.swaps.Reject(context.Background(), reqID, b)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if resp.Status != string(models.SwapRequestRejected) {
		t.Errorf("status = %s, want rejected", resp.Status)
	}
	if !env.channels.wasClosed(reqID) {
		t.Error("channel not closed after reject")
	}

	// Repeating the same terminal transition is a no-op
	if _, err := env.swaps.Reject(context.Background(), reqID, b); err != nil {
		t.Errorf("repeat reject: %v, want nil", err)
	}

	// Any other transition from a terminal state is invalid
	if _, err := env.swaps.Cancel(context.Background(), reqID, a); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("cancel after reject: err = %v, want ErrInvalidState", err)
	}
}

func TestCancelTransitions(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	reqID := env.createRequest(t, a, b)

	if _, err := env.swaps.Cancel(context.Background(), reqID, b); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Errorf("target cancel: err = %v, want ErrPermissionDenied", err)
	}

	resp, err := env.swaps.Cancel(context.Background(), reqID, a)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if resp.Status != string(models.SwapRequestCancelled) {
		t.Errorf("status = %s, want cancelled", resp.Status)
	}

	if _, err := env.swaps.Cancel(context.Background(), reqID, a); err != nil {
		t.Errorf("repeat cancel: %v, want nil", err)
	}
	if _, err := env.swaps.Reject(context.Background(), reqID, b); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("reject after cancel: err = %v, want ErrInvalidState", err)
	}
}

func TestGetVisibility(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	c := env.addStudent(t, "c@school.edu", 8.02, models.BatchEvening2)
	reqID := env.createRequest(t, a, b)

	if _, err := env.swaps.Get(context.Background(), reqID, c); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Errorf("outsider get: err = %v, want ErrPermissionDenied", err)
	}
	if _, err := env.swaps.Get(context.Background(), reqID, b); err != nil {
		t.Errorf("participant get: %v", err)
	}
	if _, err := env.swaps.Get(context.Background(), 9999, a); !errors.Is(err, apperrors.ErrRequestNotFound) {
		t.Errorf("missing get: err = %v, want ErrRequestNotFound", err)
	}
}

func TestListSentAndReceived(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	c := env.addStudent(t, "c@school.edu", 8.02, models.BatchEvening2)

	first := env.createRequest(t, a, b)
	second := env.createRequest(t, a, c)
	env.createRequest(t, c, a)

	sent, err := env.swaps.ListSent(context.Background(), a, nil)
	if err != nil {
		t.Fatalf("ListSent: %v", err)
	}
	if len(sent.Requests) != 2 {
		t.Fatalf("sent count = %d, want 2", len(sent.Requests))
	}
	// Newest first
	if sent.Requests[0].ID != second || sent.Requests[1].ID != first {
		t.Errorf("sent order = [%d %d], want [%d %d]", sent.Requests[0].ID, sent.Requests[1].ID, second, first)
	}

	received, err := env.swaps.ListReceived(context.Background(), a, nil)
	if err != nil {
		t.Fatalf("ListReceived: %v", err)
	}
	if len(received.Requests) != 1 {
		t.Fatalf("received count = %d, want 1", len(received.Requests))
	}

	// Status filter
	if _, err := env.swaps.Cancel(context.Background(), first, a); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	pending := models.SwapRequestPending
	sent, _ = env.swaps.ListSent(context.Background(), a, &pending)
	if len(sent.Requests) != 1 || sent.Requests[0].ID != second {
		t.Errorf("filtered sent = %+v, want only request %d", sent.Requests, second)
	}
}

func TestExpireStale(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	reqID := env.createRequest(t, a, b)

	// Backdate the request past the expiry window
	env.swapRepo.requests[reqID].CreatedAt = time.Now().Add(-2 * time.Minute)

	count, err := env.swaps.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired count = %d, want 1", count)
	}

	r, _ := env.swapRepo.GetByID(context.Background(), reqID)
	if r.Status != models.SwapRequestExpired {
		t.Errorf("status = %s, want expired", r.Status)
	}
	if !env.channels.wasClosed(reqID) {
		t.Error("channel not closed for expired request")
	}
}

func TestExpireStaleDisabled(t *testing.T) {
	env := newSwapTestEnv(t, 0)
	a := env.addStudent(t, "a@school.edu", 8.0, models.BatchForenoon)
	b := env.addStudent(t, "b@school.edu", 8.04, models.BatchEvening1)
	reqID := env.createRequest(t, a, b)

	env.swapRepo.requests[reqID].CreatedAt = time.Now().Add(-24 * time.Hour)

	count, err := env.swaps.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired count = %d, want 0 when auto-expiry is disabled", count)
	}
}
