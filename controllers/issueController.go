package controllers

import (
	"context"
	"math"
	"net/http"
	"strings"

	"civicsync-engine/engine"
	"civicsync-engine/middlewares"
	"civicsync-engine/models"

	"github.com/gin-gonic/gin"
)

// StaffRepository is the staff directory as the HTTP layer sees it.
type StaffRepository interface {
	AddStaff(ctx context.Context, staff *models.Staff) (*models.Staff, error)
	GetStaff(ctx context.Context, id string) (*models.Staff, error)
	ListStaff(ctx context.Context) ([]models.Staff, error)
	DeleteStaff(ctx context.Context, id string) error
}

type IssueController struct {
	engine *engine.Service
	staff  StaffRepository
}

func NewIssueController(svc *engine.Service, staff StaffRepository) *IssueController {
	return &IssueController{engine: svc, staff: staff}
}

type listQuery struct {
	Search   string `form:"search"`
	Category string `form:"category"`
	Status   string `form:"status"`
	Priority string `form:"priority"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (q listQuery) filter() engine.Filter {
	f := engine.Filter{Search: q.Search}
	if q.Category != "" && q.Category != "all" {
		f.Category = models.IssueCategory(q.Category)
	}
	if q.Status != "" && q.Status != "all" {
		status, ok := models.ParseStatus(q.Status)
		if !ok {
			status = models.IssueStatus(q.Status)
		}
		f.Status = status
	}
	if q.Priority != "" && q.Priority != "all" {
		f.Priority = models.IssuePriority(q.Priority)
	}
	return f
}

func (q listQuery) page() engine.Page {
	return engine.Page{Number: q.Page, Size: q.Limit}.Normalize()
}

// GetAllIssues lists issues with filtering and pagination in ranked order
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	ic.list(c, q.filter(), q.page())
}

// GetMyIssues lists the issues reported by the caller
func (ic *IssueController) GetMyIssues(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	f := q.filter()
	f.CreatedBy = actor.UserID
	ic.list(c, f, q.page())
}

// GetAssignedIssues lists the issues assigned to the calling staff member
func (ic *IssueController) GetAssignedIssues(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	staff, err := ic.staffFor(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	f := q.filter()
	f.StaffID = staff.ID.Hex()
	ic.list(c, f, q.page())
}

// GetResolvedIssues returns the latest resolved issues for the landing page
func (ic *IssueController) GetResolvedIssues(c *gin.Context) {
	var q struct {
		Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = 6
	}
	issues, _, err := ic.engine.ListIssues(c.Request.Context(),
		engine.Filter{Status: models.Resolved},
		engine.Page{Number: 1, Size: q.Limit})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (ic *IssueController) list(c *gin.Context, f engine.Filter, page engine.Page) {
	issues, total, err := ic.engine.ListIssues(c.Request.Context(), f, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"issues":      issues,
		"totalIssues": total,
		"totalPages":  int(math.Ceil(float64(total) / float64(page.Size))),
		"currentPage": page.Number,
	})
}

func (ic *IssueController) staffFor(ctx context.Context, actor models.Actor) (*models.Staff, error) {
	all, err := ic.staff.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].UserID == actor.UserID {
			return &all[i], nil
		}
	}
	return nil, engine.ErrNotFound
}

// issueView decorates an issue with what the caller may do next.
type issueView struct {
	*models.Issue
	UserHasUpvoted bool                 `json:"userHasUpvoted"`
	NextStatuses   []models.IssueStatus `json:"nextStatuses,omitempty"`
}

// GetIssue returns a single issue. Authentication is optional; a known
// caller also gets their upvote state and, for staff, the reachable statuses.
func (ic *IssueController) GetIssue(c *gin.Context) {
	issue, err := ic.engine.GetIssue(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	view := issueView{Issue: issue}
	if actor, ok := middlewares.CurrentActor(c); ok {
		view.UserHasUpvoted = issue.HasUpvoted(actor.UserID)
		if actor.Is(models.RoleStaff, models.RoleAdmin) {
			view.NextStatuses = engine.NextStatuses(issue.Status)
		}
	}
	c.JSON(http.StatusOK, view)
}

// CreateIssue handles the creation of a new issue
func (ic *IssueController) CreateIssue(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)

	var input struct {
		Title       string   `json:"title" binding:"required,max=200"`
		Description string   `json:"description" binding:"required,max=1000"`
		Category    string   `json:"category" binding:"required,issuecategory"`
		Location    string   `json:"location" binding:"max=200"`
		Image       string   `json:"image" binding:"omitempty,url"`
		Latitude    *float64 `json:"latitude" binding:"omitempty,latitude"`
		Longitude   *float64 `json:"longitude" binding:"omitempty,longitude"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	issue, err := ic.engine.CreateIssue(c.Request.Context(), engine.NewIssue{
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		Location:    input.Location,
		Image:       input.Image,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
	}, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

// UpdateIssue lets the reporter edit a Pending issue
func (ic *IssueController) UpdateIssue(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)

	var input struct {
		Title       *string  `json:"title" binding:"omitempty,max=200"`
		Description *string  `json:"description" binding:"omitempty,max=1000"`
		Category    *string  `json:"category" binding:"omitempty,issuecategory"`
		Location    *string  `json:"location" binding:"omitempty,max=200"`
		Image       *string  `json:"image" binding:"omitempty,url"`
		Latitude    *float64 `json:"latitude" binding:"omitempty,latitude"`
		Longitude   *float64 `json:"longitude" binding:"omitempty,longitude"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	edit := engine.IssueEdit{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Image:       input.Image,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
	}
	if input.Category != nil {
		category := models.IssueCategory(*input.Category)
		edit.Category = &category
	}

	issue, err := ic.engine.UpdateDetails(c.Request.Context(), c.Param("id"), edit, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// UpdateStatus moves an issue along the lifecycle
func (ic *IssueController) UpdateStatus(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)

	var input struct {
		NewStatus string `json:"newStatus" binding:"required,issuestatus"`
		Comment   string `json:"comment" binding:"max=500"`
		Version   *int64 `json:"version"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	status, _ := models.ParseStatus(input.NewStatus)
	issue, err := ic.engine.ChangeStatus(c.Request.Context(), c.Param("id"), engine.ChangeStatusRequest{
		Status:          status,
		Comment:         input.Comment,
		ExpectedVersion: input.Version,
	}, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

type staffInput struct {
	StaffID string `json:"staffId" binding:"required"`
}

// AssignStaff binds a staff member to an unassigned issue
func (ic *IssueController) AssignStaff(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)
	var input staffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := ic.engine.Assign(c.Request.Context(), c.Param("id"), input.StaffID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// ReassignStaff replaces the staff member on an assigned issue
func (ic *IssueController) ReassignStaff(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)
	var input staffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := ic.engine.Reassign(c.Request.Context(), c.Param("id"), input.StaffID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// UpvoteIssue records the caller's upvote. A userId in the body, when
// present, must name the caller.
func (ic *IssueController) UpvoteIssue(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)
	var input struct {
		UserID string `json:"userId"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
	}
	if input.UserID != "" && input.UserID != actor.UserID {
		respondError(c, engine.ErrNotEligible)
		return
	}

	issue, err := ic.engine.Upvote(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upvotes": issue.Upvotes, "issue": issue})
}

// EscalatePriority raises an issue to High priority
func (ic *IssueController) EscalatePriority(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)
	var input struct {
		Reason string `json:"reason" binding:"max=300"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
	}
	issue, err := ic.engine.EscalatePriority(c.Request.Context(), c.Param("id"), input.Reason, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// CreateBoostSession opens a boost checkout for the reporter
func (ic *IssueController) CreateBoostSession(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)
	checkout, err := ic.engine.RequestBoost(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// ConfirmBoost is called by the payment relay once a boost is paid
func (ic *IssueController) ConfirmBoost(c *gin.Context) {
	var input struct {
		SessionID string `json:"sessionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := ic.engine.ConfirmBoost(c.Request.Context(), c.Param("id"), strings.TrimSpace(input.SessionID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// DeleteIssue removes a Pending, unassigned issue owned by the caller
func (ic *IssueController) DeleteIssue(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)
	if err := ic.engine.DeleteIssue(c.Request.Context(), c.Param("id"), actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}
