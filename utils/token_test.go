package authUtils

import (
	"errors"
	"testing"
	"time"

	"civicsync-engine/models"
)

func TestTokenRoundTrip(t *testing.T) {
	actor := models.Actor{UserID: "u1", Name: "Ana", Email: "ana@example.com", Role: models.RoleStaff}
	tok, err := GenerateToken(actor, "s3cret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseToken(tok, "s3cret")
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got != actor {
		t.Errorf("actor = %+v, want %+v", got, actor)
	}
}

func TestParseTokenRejects(t *testing.T) {
	actor := models.Actor{UserID: "u1", Role: models.RoleCitizen}
	good, _ := GenerateToken(actor, "s3cret", time.Hour)
	expired, _ := GenerateToken(actor, "s3cret", -time.Minute)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "other"},
		{"expired", expired, "s3cret"},
		{"garbage", "abc.def.ghi", "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestGenerateTokenRequiresSecretAndRole(t *testing.T) {
	if _, err := GenerateToken(models.Actor{UserID: "u1", Role: models.RoleAdmin}, "", time.Hour); err == nil {
		t.Error("empty secret accepted")
	}
	if _, err := GenerateToken(models.Actor{UserID: "u1", Role: "mayor"}, "s3cret", time.Hour); err == nil {
		t.Error("unknown role accepted")
	}
}
