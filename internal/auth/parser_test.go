package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
)

func TestParser(t *testing.T) {
	parser := NewParser("test-secret")
	principal := model.Principal{UserID: uuid.New(), OrgID: uuid.New(), Role: model.RoleFinance}

	t.Run("round trip", func(t *testing.T) {
		token, err := parser.Issue(principal, time.Hour)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		got, err := parser.Parse(token)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if got != principal {
			t.Fatalf("got %+v, want %+v", got, principal)
		}
	})

	t.Run("expired", func(t *testing.T) {
		token, err := parser.Issue(principal, -time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := parser.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewParser("other").Issue(principal, time.Hour)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := parser.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := parser.Issue(model.Principal{UserID: uuid.New(), Role: "ROOT"}, time.Hour)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := parser.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := Claims{Role: "ADMIN", RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := parser.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})
}
