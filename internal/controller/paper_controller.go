package controller

import (
	"time"

	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/service"
	"exam_paper_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PaperController struct {
	Service *service.PaperService
}

func NewPaperController(svc *service.PaperService) *PaperController {
	return &PaperController{Service: svc}
}

type CreatePaperRequest struct {
	Code               string     `json:"code" binding:"required"`
	Title              string     `json:"title" binding:"required"`
	ReviewerID         uint       `json:"reviewerId" binding:"required"`
	Content            string     `json:"content" binding:"required"`
	SubmissionDeadline *time.Time `json:"submissionDeadline"`
}

type SubmitRequest struct {
	ApprovalDeadline *time.Time             `json:"approvalDeadline"`
	Priority         model.ApprovalPriority `json:"priority"`
}

type ApproveRequest struct {
	Feedback         string `json:"feedback"`
	DigitalSignature bool   `json:"digitalSignature"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type DelegateRequest struct {
	DelegateTo uint   `json:"delegateTo" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
}

type ExtendDeadlineRequest struct {
	NewDeadline time.Time `json:"newDeadline" binding:"required"`
	Reason      string    `json:"reason" binding:"required"`
}

// @Summary Create an exam paper
// @Tags papers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreatePaperRequest true "paper info"
// @Success 201 {object} util.Response
// @Router /papers [post]
func (c *PaperController) Create(ctx *gin.Context) {
	var req CreatePaperRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	paper, err := c.Service.CreatePaper(service.CreatePaperInput{
		Code:               req.Code,
		Title:              req.Title,
		ReviewerID:         req.ReviewerID,
		Content:            []byte(req.Content),
		SubmissionDeadline: req.SubmissionDeadline,
	}, claims.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, paper)
}

// @Summary List exam papers
// @Tags papers
// @Produce json
// @Security BearerAuth
// @Param page query int false "page"
// @Param limit query int false "limit"
// @Param status query string false "status filter"
// @Success 200 {object} util.Response
// @Router /papers [get]
func (c *PaperController) List(ctx *gin.Context) {
	page := int(util.ParseUintOrZero(ctx.DefaultQuery("page", "1")))
	limit := int(util.ParseUintOrZero(ctx.DefaultQuery("limit", "20")))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	papers, total, err := c.Service.ListPapers(page, limit, model.PaperStatus(ctx.Query("status")))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: papers, Total: total, Page: page, Limit: limit})
}

// @Summary Paper detail
// @Tags papers
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Success 200 {object} util.Response
// @Router /papers/{id} [get]
func (c *PaperController) Get(ctx *gin.Context) {
	paper, err := c.Service.GetPaper(util.ParseUintOrZero(ctx.Param("id")))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}

// @Summary Submit a paper for approval
// @Tags papers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param body body SubmitRequest false "submission options"
// @Success 200 {object} util.Response
// @Router /papers/{id}/submit [post]
func (c *PaperController) Submit(ctx *gin.Context) {
	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	paper, err := c.Service.Submit(util.ParseUintOrZero(ctx.Param("id")), claims.UserID, req.ApprovalDeadline, req.Priority)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}

// @Summary Approve the pending request on a paper's current version
// @Tags papers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param body body ApproveRequest false "decision"
// @Success 200 {object} util.Response
// @Router /papers/{id}/approve [post]
func (c *PaperController) Approve(ctx *gin.Context) {
	var req ApproveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	paper, err := c.Service.Approve(util.ParseUintOrZero(ctx.Param("id")), claims.UserID, req.Feedback, req.DigitalSignature)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}

// @Summary Reject the pending request on a paper's current version
// @Tags papers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param body body RejectRequest true "rejection reason"
// @Success 200 {object} util.Response
// @Router /papers/{id}/reject [post]
func (c *PaperController) Reject(ctx *gin.Context) {
	var req RejectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	paper, err := c.Service.Reject(util.ParseUintOrZero(ctx.Param("id")), claims.UserID, req.Reason)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}

// @Summary Publish an approved paper
// @Tags papers
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Success 200 {object} util.Response
// @Router /papers/{id}/publish [post]
func (c *PaperController) Publish(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	paper, err := c.Service.Publish(util.ParseUintOrZero(ctx.Param("id")), claims.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}

// @Summary Delegate the pending approval to another approver
// @Tags papers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param body body DelegateRequest true "delegation"
// @Success 200 {object} util.Response
// @Router /papers/{id}/delegate [post]
func (c *PaperController) Delegate(ctx *gin.Context) {
	var req DelegateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	next, err := c.Service.DelegateApproval(util.ParseUintOrZero(ctx.Param("id")), claims.UserID, req.DelegateTo, req.Reason)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, next)
}

// @Summary Extend the pending approval deadline
// @Tags papers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param body body ExtendDeadlineRequest true "extension"
// @Success 200 {object} util.Response
// @Router /papers/{id}/extend-deadline [post]
func (c *PaperController) ExtendDeadline(ctx *gin.Context) {
	var req ExtendDeadlineRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	request, err := c.Service.ExtendDeadline(util.ParseUintOrZero(ctx.Param("id")), claims.UserID, req.NewDeadline, req.Reason)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, request)
}
