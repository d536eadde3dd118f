package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/batchswap/batchswap/internal/app/models"
)

func newTestJWTService(exp time.Duration) *JWTService {
	return NewJWTService(JWTConfig{
		SecretKey:      "test-secret",
		AccessTokenExp: exp,
		TokenIssuer:    "batchswap.test",
	})
}

func testStudent() *models.Student {
	return &models.Student{ID: 7, Email: "aisha.khan@school.edu"}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestJWTService(time.Hour)

	token, expiresIn, err := svc.GenerateToken(testStudent())
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if expiresIn != 3600 {
		t.Errorf("expiresIn = %d, want 3600", expiresIn)
	}

	claims, err := svc.ValidateAndExtractClaims(token)
	if err != nil {
		t.Fatalf("ValidateAndExtractClaims: %v", err)
	}
	if claims.StudentID != 7 {
		t.Errorf("studentID = %d, want 7", claims.StudentID)
	}
	if claims.Email != "aisha.khan@school.edu" {
		t.Errorf("email = %s", claims.Email)
	}
	if claims.Issuer != "batchswap.test" {
		t.Errorf("issuer = %s, want batchswap.test", claims.Issuer)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	svc := newTestJWTService(-time.Minute)

	token, _, err := svc.GenerateToken(testStudent())
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestValidateTamperedToken(t *testing.T) {
	svc := newTestJWTService(time.Hour)
	other := NewJWTService(JWTConfig{
		SecretKey:      "different-secret",
		AccessTokenExp: time.Hour,
		TokenIssuer:    "batchswap.test",
	})

	token, _, err := other.GenerateToken(testStudent())
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("token signed with a different key validated")
	}
}

func TestValidateAndExtractClaimsRejectsEmptyIdentity(t *testing.T) {
	svc := newTestJWTService(time.Hour)

	t.Run("empty token", func(t *testing.T) {
		if _, err := svc.ValidateAndExtractClaims(""); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("zero student id", func(t *testing.T) {
		token, _, err := svc.GenerateToken(&models.Student{ID: 0, Email: "x@school.edu"})
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		if _, err := svc.ValidateAndExtractClaims(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("err = %v, want ErrInvalidToken", err)
		}
	})
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := ExtractBearerToken(""); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("empty header: err = %v, want ErrInvalidFormat", err)
	}

	token, err := ExtractBearerToken("Bearer abc.def.ghi")
	if err != nil || token != "abc.def.ghi" {
		t.Errorf("bearer header: token = %q, err = %v", token, err)
	}

	// A raw token without the Bearer prefix is accepted as-is
	token, err = ExtractBearerToken("abc.def.ghi")
	if err != nil || token != "abc.def.ghi" {
		t.Errorf("raw header: token = %q, err = %v", token, err)
	}
}
