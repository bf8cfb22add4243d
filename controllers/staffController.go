package controllers

import (
	"net/http"
	"time"

	"civicsync-engine/models"

	"github.com/gin-gonic/gin"
)

type StaffController struct {
	staff StaffRepository
}

func NewStaffController(staff StaffRepository) *StaffController {
	return &StaffController{staff: staff}
}

// ListStaff returns every staff member by name
func (sc *StaffController) ListStaff(c *gin.Context) {
	staff, err := sc.staff.ListStaff(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

// AddStaff registers a staff member. userId links the record to a login so
// the staff member can self-assign.
func (sc *StaffController) AddStaff(c *gin.Context) {
	var input struct {
		Name   string `json:"name" binding:"required,max=50"`
		Email  string `json:"email" binding:"required,email"`
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	staff, err := sc.staff.AddStaff(c.Request.Context(), &models.Staff{
		Name:      input.Name,
		Email:     input.Email,
		UserID:    input.UserID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, staff)
}

// DeleteStaff removes a staff member. Issues keep their snapshot of the
// assignee.
func (sc *StaffController) DeleteStaff(c *gin.Context) {
	if err := sc.staff.DeleteStaff(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Staff deleted successfully"})
}
