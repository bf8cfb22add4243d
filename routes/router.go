package routes

import (
	"net/http"
	"time"

	"civicsync-engine/controllers"
	"civicsync-engine/middlewares"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit configures the daily issue-creation limit. A nil Client turns
// it off.
type RateLimit struct {
	Client *redis.Client
	Prefix string
	Limit  int
}

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Issues      *controllers.IssueController
	Staff       *controllers.StaffController
	Auth        *controllers.AuthController
	Users       *controllers.UserController
	Payments    *controllers.PaymentController
	JWTSecret   string
	CORSOrigins []string
	RateLimit   RateLimit
}

func NewRouter(deps Deps) *gin.Engine {
	controllers.RegisterValidators()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	auth := middlewares.AuthMiddleware(deps.JWTSecret)

	AuthRoutes(r, deps.Auth, auth)
	IssueRoutes(r, deps.Issues, auth, deps.JWTSecret, deps.RateLimit)
	StaffRoutes(r, deps.Staff, auth)
	UserRoutes(r, deps.Users, deps.Payments, auth)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return r
}
