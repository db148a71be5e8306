package api

import (
	"net/http"

	"RankSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ReconcileHandler struct {
	reconcileService *service.ReconcileService
	logger           *logrus.Logger
}

func NewReconcileHandler(db *gorm.DB, logger *logrus.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		reconcileService: service.NewReconcileService(db, logger),
		logger:           logger,
	}
}

// GetDuplicatesHandler 查询同期同类别的重复成功日志
// @Router /api/sync/duplicates [get]
func (h *ReconcileHandler) GetDuplicatesHandler(c *gin.Context) {
	entries, summaries, err := h.reconcileService.FindDuplicates(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("查询重复记录失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totalDuplicates": len(entries),
		"duplicates":      entries,
		"periods":         summaries,
	})
}

// RepairDuplicatesHandler 修复指定期的重复记录，仅保留每类别最新一次成功抓取
// @Param body body object true "{year, month}"
// @Router /api/sync/duplicates [delete]
func (h *ReconcileHandler) RepairDuplicatesHandler(c *gin.Context) {
	var req struct {
		Year  int `json:"year" binding:"required"`
		Month int `json:"month" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year和month为必填项"})
		return
	}

	result, err := h.reconcileService.Repair(c.Request.Context(), req.Year, req.Month)
	if err != nil {
		h.logger.WithError(err).Errorf("重复记录修复失败: %d/%d", req.Year, req.Month)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "重复记录修复完成",
		"deletedLogs":     result.DeletedLogs,
		"deletedRankings": result.DeletedRankings,
	})
}
