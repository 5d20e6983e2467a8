package controller

import (
	"exam_paper_backend/internal/service"
	"exam_paper_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SecurityLogController struct {
	Service *service.SecurityLogService
}

func NewSecurityLogController(svc *service.SecurityLogService) *SecurityLogController {
	return &SecurityLogController{Service: svc}
}

type InvestigateRequest struct {
	Notes string `json:"notes"`
}

type ResolveRequest struct {
	ResolutionNotes string `json:"resolutionNotes" binding:"required"`
}

// @Summary List security log entries
// @Tags security-logs
// @Produce json
// @Security BearerAuth
// @Param action query string false "action filter"
// @Param severity query string false "severity filter"
// @Param riskLevel query string false "risk level filter"
// @Param from query string false "RFC3339 start"
// @Param to query string false "RFC3339 end"
// @Param suspiciousOnly query bool false "only suspicious entries"
// @Param underInvestigation query bool false "only entries under investigation"
// @Success 200 {object} util.Response
// @Router /security-logs [get]
func (c *SecurityLogController) List(ctx *gin.Context) {
	page := int(util.ParseUintOrZero(ctx.DefaultQuery("page", "1")))
	limit := int(util.ParseUintOrZero(ctx.DefaultQuery("limit", "50")))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	filter, err := service.ParseLogFilter(
		util.ParseUintOrZero(ctx.Query("paperId")),
		ctx.Query("action"),
		ctx.Query("severity"),
		ctx.Query("riskLevel"),
		ctx.Query("from"),
		ctx.Query("to"),
		ctx.Query("suspiciousOnly") == "true",
		ctx.Query("underInvestigation") == "true",
	)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	entries, total, err := c.Service.List(filter, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: entries, Total: total, Page: page, Limit: limit})
}

// @Summary Security log entry detail
// @Tags security-logs
// @Produce json
// @Security BearerAuth
// @Param id path int true "entry id"
// @Success 200 {object} util.Response
// @Router /security-logs/{id} [get]
func (c *SecurityLogController) Get(ctx *gin.Context) {
	entry, err := c.Service.Get(util.ParseUintOrZero(ctx.Param("id")))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, entry)
}

// @Summary Start investigating an entry
// @Tags security-logs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "entry id"
// @Param body body InvestigateRequest false "notes"
// @Success 200 {object} util.Response
// @Router /security-logs/{id}/investigate [post]
func (c *SecurityLogController) Investigate(ctx *gin.Context) {
	var req InvestigateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	entry, err := c.Service.StartInvestigation(util.ParseUintOrZero(ctx.Param("id")), claims.UserID, req.Notes)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, entry)
}

// @Summary Resolve an investigation
// @Tags security-logs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "entry id"
// @Param body body ResolveRequest true "resolution notes"
// @Success 200 {object} util.Response
// @Router /security-logs/{id}/resolve [post]
func (c *SecurityLogController) Resolve(ctx *gin.Context) {
	var req ResolveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	entry, err := c.Service.ResolveInvestigation(util.ParseUintOrZero(ctx.Param("id")), req.ResolutionNotes)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, entry)
}
