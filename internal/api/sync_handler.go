package api

import (
	"net/http"

	"RankSync/internal/archive"
	"RankSync/internal/config"
	"RankSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SyncHandler struct {
	syncService *service.SyncService
	runManager  *service.RunManager
	logger      *logrus.Logger
	cfg         *config.Config
}

func NewSyncHandler(db *gorm.DB, logger *logrus.Logger, cfg *config.Config) *SyncHandler {
	syncService := service.NewSyncService(db, logger, cfg)
	return &SyncHandler{
		syncService: syncService,
		runManager:  service.NewRunManager(db, syncService, logger),
		logger:      logger,
		cfg:         cfg,
	}
}

// SyncLatestHandler 同步最新排名
// @Summary 同步最新排名（单类别或全部44类别）
// @Param body body object true "{categoryCode?, all?}"
// @Success 200 {object} map[string]interface{}
// @Router /api/sync/latest [post]
func (h *SyncHandler) SyncLatestHandler(c *gin.Context) {
	var req struct {
		CategoryCode string `json:"categoryCode"`
		All          bool   `json:"all"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.All {
		progress, err := h.syncService.ScrapeAllLatest(c.Request.Context(), func(p service.Progress) {
			h.logger.Infof("进度: %d/%d", p.ProcessedItems, p.TotalItems)
		})
		if err != nil {
			h.logger.WithError(err).Error("全类别最新排名同步中断")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "progress": progress})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"message":  "全部最新排名同步完成",
			"progress": progress,
		})
		return
	}

	if !archive.IsValidCategory(req.CategoryCode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "类别代码非法"})
		return
	}
	result, err := h.syncService.ScrapeLatest(c.Request.Context(), req.CategoryCode)
	if err != nil {
		h.logger.WithError(err).Errorf("最新排名同步失败: %s", req.CategoryCode)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncArchiveHandler 同步某期存档（指定类别或全部类别）
// @Summary 同步指定年月的存档排名
// @Param body body object true "{year, month, categoryCode?}"
// @Router /api/sync/archive [post]
func (h *SyncHandler) SyncArchiveHandler(c *gin.Context) {
	var req struct {
		Year         int    `json:"year" binding:"required"`
		Month        int    `json:"month" binding:"required"`
		CategoryCode string `json:"categoryCode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year和month为必填项"})
		return
	}

	if req.CategoryCode != "" {
		result, err := h.syncService.ScrapeArchive(c.Request.Context(), req.Year, req.Month, req.CategoryCode, true)
		if err != nil {
			h.logger.WithError(err).Errorf("存档同步失败: %d/%d - %s", req.Year, req.Month, req.CategoryCode)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	progress, err := h.syncService.ScrapeArchivePeriod(c.Request.Context(), req.Year, req.Month, func(p service.Progress) {
		h.logger.Infof("进度: %d/%d", p.ProcessedItems, p.TotalItems)
	})
	if err != nil {
		h.logger.WithError(err).Errorf("存档期同步中断: %d/%d", req.Year, req.Month)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "progress": progress})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "该期全部类别同步完成",
		"progress": progress,
	})
}

// SyncArchiveSingleHandler 同步单个条目（供客户端批量驱动器逐条调用）
// @Summary 同步单个（年月×类别）条目
// @Param body body object true "{year, month, categoryCode}"
// @Router /api/sync/archive/single [post]
func (h *SyncHandler) SyncArchiveSingleHandler(c *gin.Context) {
	var req struct {
		Year         int    `json:"year" binding:"required"`
		Month        int    `json:"month" binding:"required"`
		CategoryCode string `json:"categoryCode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year、month、categoryCode为必填项"})
		return
	}

	result, err := h.syncService.ScrapeArchive(c.Request.Context(), req.Year, req.Month, req.CategoryCode, true)
	if err != nil {
		h.logger.WithError(err).Errorf("存档同步失败: %d/%d - %s", req.Year, req.Month, req.CategoryCode)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         result.Success,
		"totalRecords":    result.TotalRecords,
		"executionTimeMs": result.ExecutionTimeMs,
		"skipped":         result.Skipped,
		"error":           result.Error,
	})
}

// SyncAllArchivesHandler 启动后台全量同步，立即返回运行ID
// @Summary 启动全量存档同步（异步）
// @Param body body object true "{startYear?, startMonth?, endYear?, endMonth?, batchSize?, skipExisting?}"
// @Router /api/sync/archive/all [post]
func (h *SyncHandler) SyncAllArchivesHandler(c *gin.Context) {
	var req struct {
		StartYear    int  `json:"startYear"`
		StartMonth   int  `json:"startMonth"`
		EndYear      int  `json:"endYear"`
		EndMonth     int  `json:"endMonth"`
		BatchSize    int  `json:"batchSize"`
		SkipExisting bool `json:"skipExisting"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.StartYear == 0 {
		req.StartYear = h.cfg.Scrape.StartYear
	}
	if req.StartMonth == 0 {
		req.StartMonth = 1
	}

	runUUID, err := h.runManager.StartArchiveRun(c.Request.Context(), service.ArchiveRunOptions{
		StartYear:    req.StartYear,
		StartMonth:   req.StartMonth,
		EndYear:      req.EndYear,
		EndMonth:     req.EndMonth,
		BatchSize:    req.BatchSize,
		SkipExisting: req.SkipExisting,
	})
	if err != nil {
		h.logger.WithError(err).Error("启动后台同步失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "存档同步已在后台启动",
		"runUuid": runUUID,
	})
}

// GetRunHandler 轮询后台运行进度
// @Router /api/sync/runs/{run_uuid} [get]
func (h *SyncHandler) GetRunHandler(c *gin.Context) {
	run, err := h.runManager.Get(c.Request.Context(), c.Param("run_uuid"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行不存在"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// StopRunHandler 取消后台运行（下一个条目边界生效）
// @Router /api/sync/runs/{run_uuid}/stop [post]
func (h *SyncHandler) StopRunHandler(c *gin.Context) {
	runUUID := c.Param("run_uuid")
	if !h.runManager.Stop(runUUID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行不存在或已结束"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "已请求取消"})
}
