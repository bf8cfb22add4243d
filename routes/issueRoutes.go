package routes

import (
	"civicsync-engine/controllers"
	"civicsync-engine/middlewares"
	"civicsync-engine/models"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, ic *controllers.IssueController, authMiddleware gin.HandlerFunc, jwtSecret string, limit RateLimit) {
	issues := r.Group("/issues")
	{
		issues.GET("", ic.GetAllIssues)
		issues.GET("/resolved", ic.GetResolvedIssues)
		issues.GET("/mine", authMiddleware, ic.GetMyIssues)
		issues.GET("/assigned", authMiddleware, middlewares.RequireRole(models.RoleStaff), ic.GetAssignedIssues)
		issues.GET("/:id", middlewares.OptionalAuth(jwtSecret), ic.GetIssue)

		issues.POST("", authMiddleware,
			middlewares.RequireRole(models.RoleCitizen),
			middlewares.IssueRateLimiter(limit.Client, limit.Prefix, limit.Limit),
			ic.CreateIssue)
		issues.PATCH("/:id", authMiddleware, ic.UpdateIssue)
		issues.DELETE("/:id", authMiddleware, ic.DeleteIssue)

		issues.PATCH("/:id/status", authMiddleware, middlewares.RequireRole(models.RoleStaff, models.RoleAdmin), ic.UpdateStatus)
		issues.PATCH("/:id/priority", authMiddleware, middlewares.RequireRole(models.RoleStaff, models.RoleAdmin), ic.EscalatePriority)
		issues.PATCH("/:id/assign-staff", authMiddleware, middlewares.RequireRole(models.RoleAdmin, models.RoleStaff), ic.AssignStaff)
		issues.PATCH("/:id/reassign-staff", authMiddleware, middlewares.RequireRole(models.RoleAdmin), ic.ReassignStaff)
		issues.PATCH("/:id/upvote", authMiddleware, ic.UpvoteIssue)

		issues.POST("/:id/boost-session", authMiddleware, ic.CreateBoostSession)
		issues.PATCH("/:id/boost", authMiddleware, middlewares.RequireRole(models.RoleSystem), ic.ConfirmBoost)
	}
}
