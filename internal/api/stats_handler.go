package api

import (
	"net/http"
	"strconv"

	"RankSync/internal/archive"
	"RankSync/internal/config"
	"RankSync/internal/repository"
	"RankSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type StatsHandler struct {
	statsService *service.StatsService
	logRepo      *repository.ScrapingLogRepository
	logger       *logrus.Logger
	cfg          *config.Config
}

func NewStatsHandler(db *gorm.DB, logger *logrus.Logger, cfg *config.Config) *StatsHandler {
	return &StatsHandler{
		statsService: service.NewStatsService(db, logger),
		logRepo:      repository.NewScrapingLogRepository(db),
		logger:       logger,
		cfg:          cfg,
	}
}

// GetStatsHandler 抓取统计概览
// @Router /api/sync/stats [get]
func (h *StatsHandler) GetStatsHandler(c *gin.Context) {
	stats, err := h.statsService.Stats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("查询统计失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetPeriodsHandler 全部存档期及各期进度
// @Router /api/sync/periods [get]
func (h *StatsHandler) GetPeriodsHandler(c *gin.Context) {
	periods, summary, err := h.statsService.PeriodStatuses(c.Request.Context(), h.cfg.Scrape.StartYear)
	if err != nil {
		h.logger.WithError(err).Error("查询存档期失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"periods": periods,
	})
}

// GetCategoriesHandler 全部44个排名类别
// @Router /api/sync/categories [get]
func (h *StatsHandler) GetCategoriesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total":      len(archive.Categories),
		"categories": archive.Categories,
	})
}

// GetHistoryHandler 抓取日志分页查询
// @Router /api/sync/history [get]
func (h *StatsHandler) GetHistoryHandler(c *gin.Context) {
	filter := repository.HistoryFilter{
		CategoryCode: c.Query("categoryCode"),
	}
	if v := c.Query("success"); v != "" {
		ok := v == "true"
		filter.Success = &ok
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	logs, total, err := h.logRepo.ListHistory(c.Request.Context(), filter, page, limit)
	if err != nil {
		h.logger.WithError(err).Error("查询抓取日志失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"page":  page,
		"limit": limit,
		"logs":  logs,
	})
}
