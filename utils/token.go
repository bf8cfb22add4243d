package authUtils

import (
	"errors"
	"fmt"
	"time"

	"civicsync-engine/models"

	"github.com/dgrijalva/jwt-go"
)

var ErrInvalidToken = errors.New("invalid authorization token")

// TokenTTL is how long issued tokens stay valid.
const TokenTTL = 72 * time.Hour

// GenerateToken signs an HS256 token carrying the actor's identity and role.
func GenerateToken(actor models.Actor, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	if !actor.Role.Valid() {
		return "", fmt.Errorf("unknown role %q", actor.Role)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": actor.UserID,
		"name":    actor.Name,
		"email":   actor.Email,
		"role":    string(actor.Role),
		"exp":     time.Now().Add(ttl).Unix(),
	})

	return token.SignedString([]byte(secret))
}

// ParseToken verifies tokenString and returns the actor it names.
func ParseToken(tokenString, secret string) (models.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Actor{}, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return models.Actor{}, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	role := models.Role(stringClaim(claims, "role"))
	if role == "" {
		role = models.RoleCitizen
	}
	if !role.Valid() {
		return models.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	return models.Actor{
		UserID: userID,
		Name:   stringClaim(claims, "name"),
		Email:  stringClaim(claims, "email"),
		Role:   role,
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
