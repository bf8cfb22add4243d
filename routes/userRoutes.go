package routes

import (
	"civicsync-engine/controllers"
	"civicsync-engine/middlewares"
	"civicsync-engine/models"

	"github.com/gin-gonic/gin"
)

// UserRoutes sets up account administration, subscriptions and the payment
// report
func UserRoutes(r *gin.Engine, uc *controllers.UserController, pc *controllers.PaymentController, authMiddleware gin.HandlerFunc) {
	admin := middlewares.RequireRole(models.RoleAdmin)

	users := r.Group("/users", authMiddleware)
	{
		users.GET("", admin, uc.ListUsers)
		users.PATCH("/block", admin, uc.BlockUser)
		users.PATCH("/make-admin", admin, uc.MakeAdmin)
		users.POST("/subscription-session", middlewares.RequireRole(models.RoleCitizen), uc.CreateSubscriptionSession)
		users.PATCH("/premium", middlewares.RequireRole(models.RoleSystem), uc.ConfirmPremium)
	}

	r.GET("/payments/total", authMiddleware, admin, pc.GetTotal)
}

// StaffRoutes sets up the staff directory
func StaffRoutes(r *gin.Engine, sc *controllers.StaffController, authMiddleware gin.HandlerFunc) {
	staff := r.Group("/staff", authMiddleware)
	{
		staff.GET("", middlewares.RequireRole(models.RoleAdmin, models.RoleStaff), sc.ListStaff)
		staff.POST("", middlewares.RequireRole(models.RoleAdmin), sc.AddStaff)
		staff.DELETE("/:id", middlewares.RequireRole(models.RoleAdmin), sc.DeleteStaff)
	}
}
