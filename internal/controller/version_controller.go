package controller

import (
	"fmt"
	"net/http"

	"exam_paper_backend/internal/service"
	"exam_paper_backend/internal/util"
	"exam_paper_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VersionController struct {
	Papers   *service.PaperService
	Versions *service.VersionService
	Storage  *service.StorageService
}

func NewVersionController(papers *service.PaperService, versions *service.VersionService, storage *service.StorageService) *VersionController {
	return &VersionController{Papers: papers, Versions: versions, Storage: storage}
}

type NewVersionRequest struct {
	Content       string `json:"content" binding:"required"`
	ChangeSummary string `json:"changeSummary"`
}

// @Summary Create a new draft version of a paper
// @Tags versions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param body body NewVersionRequest true "new content"
// @Success 201 {object} util.Response
// @Router /papers/{id}/versions [post]
func (c *VersionController) Create(ctx *gin.Context) {
	var req NewVersionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	v, err := c.Papers.NewDraftVersion(util.ParseUintOrZero(ctx.Param("id")), claims.UserID, []byte(req.Content), req.ChangeSummary)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, v)
}

// @Summary Version history of a paper
// @Tags versions
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Success 200 {object} util.Response
// @Router /papers/{id}/versions [get]
func (c *VersionController) History(ctx *gin.Context) {
	if _, err := c.Papers.GetPaper(util.ParseUintOrZero(ctx.Param("id"))); err != nil {
		util.ServiceError(ctx, err)
		return
	}
	versions, err := c.Versions.History(util.ParseUintOrZero(ctx.Param("id")))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, versions)
}

// @Summary Version detail
// @Tags versions
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param vid path int true "version id"
// @Success 200 {object} util.Response
// @Router /papers/{id}/versions/{vid} [get]
func (c *VersionController) Get(ctx *gin.Context) {
	v, err := c.Versions.Get(util.ParseUintOrZero(ctx.Param("id")), util.ParseUintOrZero(ctx.Param("vid")))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, v)
}

// @Summary Verify a version's checksum
// @Tags versions
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param vid path int true "version id"
// @Success 200 {object} util.Response
// @Router /papers/{id}/versions/{vid}/verify [get]
func (c *VersionController) Verify(ctx *gin.Context) {
	v, err := c.Versions.Get(util.ParseUintOrZero(ctx.Param("id")), util.ParseUintOrZero(ctx.Param("vid")))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	ok, err := c.Versions.Verify(v.ID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"versionId": v.ID, "valid": ok})
}

// @Summary Restore an older version as a new current version
// @Tags versions
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param vid path int true "version id"
// @Success 201 {object} util.Response
// @Router /papers/{id}/versions/{vid}/restore [post]
func (c *VersionController) Restore(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	v, err := c.Papers.RestoreVersion(util.ParseUintOrZero(ctx.Param("id")), util.ParseUintOrZero(ctx.Param("vid")), claims.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, v)
}

// @Summary Field-level diff between two versions
// @Tags versions
// @Produce json
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param from query int true "from version id"
// @Param to query int true "to version id"
// @Success 200 {object} util.Response
// @Router /papers/{id}/versions/compare [get]
func (c *VersionController) Compare(ctx *gin.Context) {
	from := util.ParseUintOrZero(ctx.Query("from"))
	to := util.ParseUintOrZero(ctx.Query("to"))
	if from == 0 || to == 0 {
		util.BadRequest(ctx, "from and to version ids are required")
		return
	}
	claims := util.GetUserFromContext(ctx)

	diff, err := c.Papers.CompareVersions(util.ParseUintOrZero(ctx.Param("id")), from, to, claims.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, diff)
}

// @Summary Download a version's content
// @Tags versions
// @Produce octet-stream
// @Security BearerAuth
// @Param id path int true "paper id"
// @Param vid path int true "version id"
// @Success 200 {file} binary
// @Router /papers/{id}/versions/{vid}/export [get]
func (c *VersionController) Export(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	v, err := c.Papers.ExportVersion(util.ParseUintOrZero(ctx.Param("id")), util.ParseUintOrZero(ctx.Param("vid")), claims.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	// keep a copy of what left the system; the download itself must not
	// fail on archive trouble
	if _, err := c.Storage.ArchiveExport(ctx.Request.Context(), v); err != nil {
		logger.Log.Error("failed to archive export", zap.Uint("version_id", v.ID), zap.Error(err))
	}

	filename := fmt.Sprintf("paper_%d_v%d.bin", v.PaperID, v.VersionNumber)
	ctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	ctx.Data(http.StatusOK, "application/octet-stream", v.Content)
}
