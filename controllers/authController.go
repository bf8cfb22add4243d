package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"civicsync-engine/engine"
	"civicsync-engine/middlewares"
	"civicsync-engine/models"
	authUtils "civicsync-engine/utils"

	"github.com/gin-gonic/gin"
)

// UserRepository is the local account store.
type UserRepository interface {
	Register(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetBlocked(ctx context.Context, email string, blocked bool) (*models.User, error)
	SetRole(ctx context.Context, email string, role models.Role) (*models.User, error)
	SetPremium(ctx context.Context, userID string) (*models.User, error)
}

type AuthController struct {
	users      UserRepository
	secret     string
	production bool
	domain     string
}

func NewAuthController(users UserRepository, secret string, production bool, domain string) *AuthController {
	return &AuthController{users: users, secret: secret, production: production, domain: domain}
}

// RegisterUser handles user registration
func (ac *AuthController) RegisterUser(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	now := time.Now().UTC()
	user := models.User{
		Name:      input.Name,
		Email:     input.Email,
		Password:  input.Password,
		Role:      models.RoleCitizen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.HashPassword(); err != nil {
		slog.Error("Error hashing password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	created, err := ac.users.Register(c.Request.Context(), &user)
	if errors.Is(err, engine.ErrConflict) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User with this email already exists", "kind": engine.KindValidation})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        created.ID,
		"name":      created.Name,
		"email":     created.Email,
		"role":      created.Role,
		"createdAt": created.CreatedAt,
	})
}

// LoginUser handles user login
func (ac *AuthController) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := ac.users.FindByEmail(c.Request.Context(), input.Email)
	if err != nil || !user.ComparePassword(input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if user.Blocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is blocked", "kind": engine.KindNotEligible})
		return
	}

	token, err := authUtils.GenerateToken(user.Actor(), ac.secret, authUtils.TokenTTL)
	if err != nil {
		slog.Error("Error generating token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	// For production, don't set domain to allow cross-origin cookies
	domain := ac.domain
	if ac.production {
		domain = ""
	}

	cookie := &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		MaxAge:   int(authUtils.TokenTTL.Seconds()),
		Path:     "/",
		Domain:   domain,
		Secure:   ac.production,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	}
	http.SetCookie(c.Writer, cookie)

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"role":      user.Actor().Role,
		"premium":   user.Premium,
		"createdAt": user.CreatedAt,
		"token":     token,
	})
}

// GetMe returns the caller's claims, enriched with the local account when
// one exists
func (ac *AuthController) GetMe(c *gin.Context) {
	actor, ok := middlewares.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	user, err := ac.users.FindByID(c.Request.Context(), actor.UserID)
	if errors.Is(err, engine.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"id": actor.UserID, "name": actor.Name, "email": actor.Email, "role": actor.Role})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"role":      actor.Role,
		"premium":   user.Premium,
		"blocked":   user.Blocked,
		"createdAt": user.CreatedAt,
	})
}

// LogoutUser clears the auth_token cookie
func (ac *AuthController) LogoutUser(c *gin.Context) {
	c.SetCookie("auth_token", "", -1, "/", ac.domain, ac.production, true)
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}
