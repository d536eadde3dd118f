package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/app/models/dto"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
	"github.com/batchswap/batchswap/internal/pkg/auth"
)

func newAuthTestService(t *testing.T) (*AuthService, *mockStudentRepo) {
	t.Helper()
	studentRepo := newMockStudentRepo()
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey:      "test-secret",
		AccessTokenExp: time.Hour,
		TokenIssuer:    "batchswap.test",
	})
	return NewAuthService(studentRepo, jwtService, testLogger()), studentRepo
}

func validRegisterRequest() *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Email:        "Aisha.Khan@school.edu",
		Password:     "s3cret-pass",
		FirstName:    "Aisha",
		LastName:     "Khan",
		CGPA:         8.24,
		CurrentBatch: string(models.BatchForenoon),
	}
}

func TestRegister(t *testing.T) {
	svc, studentRepo := newAuthTestService(t)

	resp, err := svc.Register(context.Background(), validRegisterRequest())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.Token.AccessToken == "" {
		t.Error("no access token issued")
	}
	if resp.Token.TokenType != "Bearer" {
		t.Errorf("tokenType = %s, want Bearer", resp.Token.TokenType)
	}
	if resp.Student.Email != "aisha.khan@school.edu" {
		t.Errorf("email = %s, want lowercased", resp.Student.Email)
	}
	if resp.Student.CurrentBatch != string(models.BatchForenoon) {
		t.Errorf("currentBatch = %s, want Forenoon", resp.Student.CurrentBatch)
	}

	stored, err := studentRepo.GetByEmail(context.Background(), "aisha.khan@school.edu")
	if err != nil {
		t.Fatalf("stored student not found: %v", err)
	}
	if stored.Password == "s3cret-pass" {
		t.Error("password stored in plain text")
	}
	if stored.OriginalBatch != models.BatchForenoon {
		t.Errorf("originalBatch = %s, want registration batch", stored.OriginalBatch)
	}
	if !stored.IsActive {
		t.Error("new account not active")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthTestService(t)

	t.Run("unknown batch", func(t *testing.T) {
		req := validRegisterRequest()
		req.CurrentBatch = "Night Shift"
		if _, err := svc.Register(context.Background(), req); !errors.Is(err, apperrors.ErrInvalidBatch) {
			t.Errorf("err = %v, want ErrInvalidBatch", err)
		}
	})

	t.Run("cgpa out of range", func(t *testing.T) {
		req := validRegisterRequest()
		req.CGPA = 11.0
		if _, err := svc.Register(context.Background(), req); !errors.Is(err, apperrors.ErrInvalidCGPA) {
			t.Errorf("err = %v, want ErrInvalidCGPA", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		if _, err := svc.Register(context.Background(), validRegisterRequest()); err != nil {
			t.Fatalf("first register: %v", err)
		}
		req := validRegisterRequest()
		req.Email = "  AISHA.KHAN@school.edu "
		if _, err := svc.Register(context.Background(), req); !errors.Is(err, apperrors.ErrEmailAlreadyExists) {
			t.Errorf("err = %v, want ErrEmailAlreadyExists", err)
		}
	})
}

func TestLogin(t *testing.T) {
	svc, studentRepo := newAuthTestService(t)
	if _, err := svc.Register(context.Background(), validRegisterRequest()); err != nil {
		t.Fatalf("register: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		resp, err := svc.Login(context.Background(), &dto.LoginRequest{
			Email: "aisha.khan@school.edu", Password: "s3cret-pass",
		})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if resp.Token.AccessToken == "" {
			t.Error("no access token issued")
		}
	})

	t.Run("trims and lowercases email", func(t *testing.T) {
		_, err := svc.Login(context.Background(), &dto.LoginRequest{
			Email: " Aisha.Khan@School.edu ", Password: "s3cret-pass",
		})
		if err != nil {
			t.Errorf("Login with unnormalized email: %v", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), &dto.LoginRequest{
			Email: "aisha.khan@school.edu", Password: "wrong",
		})
		if !errors.Is(err, apperrors.ErrInvalidCredentials) {
			t.Errorf("err = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(context.Background(), &dto.LoginRequest{
			Email: "nobody@school.edu", Password: "whatever",
		})
		if !errors.Is(err, apperrors.ErrInvalidCredentials) {
			t.Errorf("err = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("disabled account", func(t *testing.T) {
		student, err := studentRepo.GetByEmail(context.Background(), "aisha.khan@school.edu")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		studentRepo.students[student.ID].IsActive = false
		defer func() { studentRepo.students[student.ID].IsActive = true }()

		_, err = svc.Login(context.Background(), &dto.LoginRequest{
			Email: "aisha.khan@school.edu", Password: "s3cret-pass",
		})
		if !errors.Is(err, apperrors.ErrAccountDisabled) {
			t.Errorf("err = %v, want ErrAccountDisabled", err)
		}
	})
}
