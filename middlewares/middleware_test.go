package middlewares_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"civicsync-engine/middlewares"
	"civicsync-engine/models"
	authUtils "civicsync-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const secret = "test-secret"

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := middlewares.CurrentActor(c)
		c.JSON(http.StatusOK, gin.H{"userId": actor.UserID})
	})
	r.GET("/", handlers...)
	return r
}

func request(t *testing.T, r http.Handler, actor *models.Actor) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor != nil {
		tok, err := authUtils.GenerateToken(*actor, secret, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRole(t *testing.T) {
	r := newEngine(middlewares.AuthMiddleware(secret), middlewares.RequireRole(models.RoleAdmin))

	tests := []struct {
		name  string
		actor *models.Actor
		want  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"citizen", &models.Actor{UserID: "c", Role: models.RoleCitizen}, http.StatusForbidden},
		{"admin", &models.Actor{UserID: "a", Role: models.RoleAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := request(t, r, tt.actor); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newEngine(middlewares.OptionalAuth(secret))
	if w := request(t, r, nil); w.Code != http.StatusOK {
		t.Errorf("anonymous = %d, want 200", w.Code)
	}
}

func TestIssueRateLimiterDisabledWithoutRedis(t *testing.T) {
	r := newEngine(middlewares.AuthMiddleware(secret), middlewares.IssueRateLimiter(nil, "issue-limit", 1))
	actor := &models.Actor{UserID: "c", Role: models.RoleCitizen}
	for i := 0; i < 3; i++ {
		if w := request(t, r, actor); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i, w.Code)
		}
	}
}

func TestIssueRateLimiter(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	prefix := fmt.Sprintf("test-limit-%d", time.Now().UnixNano())
	r := newEngine(middlewares.AuthMiddleware(secret), middlewares.IssueRateLimiter(client, prefix, 2))
	actor := &models.Actor{UserID: "c", Role: models.RoleCitizen}

	for i := 0; i < 2; i++ {
		if w := request(t, r, actor); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i, w.Code)
		}
	}
	if w := request(t, r, actor); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", w.Code)
	}
}
