package service

import (
	"context"
	"fmt"
	"time"

	"RankSync/internal/archive"
	"RankSync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ScrapingStats 抓取统计（只读投影，供展示层轮询）
type ScrapingStats struct {
	TotalPlayers        int64      `json:"totalPlayers"`
	TotalRankings       int64      `json:"totalRankings"`
	TotalScrapingLogs   int64      `json:"totalScrapingLogs"`
	SuccessfulScrapings int64      `json:"successfulScrapings"`
	FailedScrapings     int64      `json:"failedScrapings"`
	SuccessRate         string     `json:"successRate"`
	ProcessedPeriods    int64      `json:"processedPeriods"`
	TotalPeriods        int64      `json:"totalPeriods"`
	CompletionRate      string     `json:"completionRate"`
	LastScrapingDate    *time.Time `json:"lastScrapingDate,omitempty"`
}

// PeriodStatus 某期的处理状态（全量期序列与数据库进度合并后）
type PeriodStatus struct {
	Year                int    `json:"year"`
	Month               int    `json:"month"`
	DisplayName         string `json:"displayName"`
	URLPath             string `json:"urlPath"`
	IsProcessed         bool   `json:"isProcessed"`
	ProcessedCategories int    `json:"processedCategories"`
	TotalCategories     int    `json:"totalCategories"`
	CompletionRate      int    `json:"completionRate"` // 百分比取整
}

// PeriodSummary 期列表汇总
type PeriodSummary struct {
	Total       int `json:"total"`
	Processed   int `json:"processed"`
	Partial     int `json:"partial"`
	Unprocessed int `json:"unprocessed"`
}

// StatsService 统计只读服务
type StatsService struct {
	logger      *logrus.Logger
	playerRepo  *repository.PlayerRepository
	rankingRepo *repository.RankingRepository
	logRepo     *repository.ScrapingLogRepository
	periodRepo  *repository.ArchivePeriodRepository
}

func NewStatsService(db *gorm.DB, logger *logrus.Logger) *StatsService {
	return &StatsService{
		logger:      logger,
		playerRepo:  repository.NewPlayerRepository(db),
		rankingRepo: repository.NewRankingRepository(db),
		logRepo:     repository.NewScrapingLogRepository(db),
		periodRepo:  repository.NewArchivePeriodRepository(db),
	}
}

// Stats 汇总统计：选手/排名/日志计数、成功率、期完成率、最近抓取时间
func (s *StatsService) Stats(ctx context.Context) (*ScrapingStats, error) {
	totalPlayers, err := s.playerRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalRankings, err := s.rankingRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalLogs, err := s.logRepo.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	succ := true
	successful, err := s.logRepo.Count(ctx, &succ)
	if err != nil {
		return nil, err
	}
	failed := totalLogs - successful

	processedFlag := true
	processedPeriods, err := s.periodRepo.Count(ctx, &processedFlag)
	if err != nil {
		return nil, err
	}
	totalPeriods, err := s.periodRepo.Count(ctx, nil)
	if err != nil {
		return nil, err
	}

	stats := &ScrapingStats{
		TotalPlayers:        totalPlayers,
		TotalRankings:       totalRankings,
		TotalScrapingLogs:   totalLogs,
		SuccessfulScrapings: successful,
		FailedScrapings:     failed,
		SuccessRate:         ratio(successful, totalLogs),
		ProcessedPeriods:    processedPeriods,
		TotalPeriods:        totalPeriods,
		CompletionRate:      ratio(processedPeriods, totalPeriods),
	}

	latest, err := s.logRepo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		stats.LastScrapingDate = &latest.CreatedAt
	}
	return stats, nil
}

// PeriodStatuses 全量期序列与数据库进度合并
func (s *StatsService) PeriodStatuses(ctx context.Context, startYear int) ([]PeriodStatus, PeriodSummary, error) {
	dbPeriods, err := s.periodRepo.List(ctx)
	if err != nil {
		return nil, PeriodSummary{}, err
	}

	type key struct{ year, month int }
	byKey := make(map[key]int, len(dbPeriods))
	for i, p := range dbPeriods {
		byKey[key{p.Year, p.Month}] = i
	}

	all := archive.GeneratePeriods(startYear, 1, nil)
	statuses := make([]PeriodStatus, 0, len(all))
	var summary PeriodSummary
	summary.Total = len(all)

	for _, p := range all {
		status := PeriodStatus{
			Year:            p.Year,
			Month:           p.Month,
			DisplayName:     p.DisplayName(),
			URLPath:         p.URLPath(),
			TotalCategories: len(archive.Categories),
		}
		if i, ok := byKey[key{p.Year, p.Month}]; ok {
			dbp := dbPeriods[i]
			status.IsProcessed = dbp.IsProcessed
			status.ProcessedCategories = dbp.ProcessedCategories
			status.TotalCategories = dbp.TotalCategories
			if dbp.TotalCategories > 0 {
				status.CompletionRate = dbp.ProcessedCategories * 100 / dbp.TotalCategories
			}
		}
		switch {
		case status.IsProcessed:
			summary.Processed++
		case status.ProcessedCategories > 0:
			summary.Partial++
		default:
			summary.Unprocessed++
		}
		statuses = append(statuses, status)
	}
	return statuses, summary, nil
}

func ratio(part, total int64) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(part)/float64(total)*100)
}
