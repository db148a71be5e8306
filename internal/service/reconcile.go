package service

import (
	"context"
	"fmt"
	"sort"

	"RankSync/internal/archive"
	"RankSync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DuplicateEntry 某期×某类别的重复成功存档日志
type DuplicateEntry struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	CategoryCode string `json:"categoryCode"`
	Count        int    `json:"count"`
	Excess       int    `json:"excess"` // count - 1
	DisplayName  string `json:"displayName"`
}

// PeriodDuplicateSummary 按期聚合的重复情况
type PeriodDuplicateSummary struct {
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	DisplayName    string `json:"displayName"`
	ExpectedCount  int    `json:"expectedCount"`  // 去重后的类别数（上限44）
	ActualCount    int    `json:"actualCount"`    // 实际成功日志条数
	DuplicateCount int    `json:"duplicateCount"` // 多出来的条数
}

// RepairResult 单期清理结果
type RepairResult struct {
	DeletedLogs     int64 `json:"deletedLogs"`
	DeletedRankings int64 `json:"deletedRankings"`
}

// ReconcileService 对账服务：检测并清理重试/并发运行引入的重复成功日志
// 正常同步期间绝不自动清理，修复必须显式触发
type ReconcileService struct {
	logger  *logrus.Logger
	logRepo *repository.ScrapingLogRepository
}

func NewReconcileService(db *gorm.DB, logger *logrus.Logger) *ReconcileService {
	return &ReconcileService{
		logger:  logger,
		logRepo: repository.NewScrapingLogRepository(db),
	}
}

// FindDuplicates 扫描全部成功存档日志，按年月×类别分组，报告计数大于1的组
func (s *ReconcileService) FindDuplicates(ctx context.Context) ([]DuplicateEntry, []PeriodDuplicateSummary, error) {
	logs, err := s.logRepo.ListSuccessfulArchive(ctx)
	if err != nil {
		return nil, nil, err
	}

	// 年月 -> 类别 -> 计数
	type periodKey struct{ year, month int }
	counts := make(map[periodKey]map[string]int)
	for _, logEntry := range logs {
		key := periodKey{logEntry.RankingDate.Year(), int(logEntry.RankingDate.Month())}
		if counts[key] == nil {
			counts[key] = make(map[string]int)
		}
		counts[key][logEntry.CategoryCode]++
	}

	var duplicates []DuplicateEntry
	var summary []PeriodDuplicateSummary
	for key, categoryCounts := range counts {
		p := archive.Period{Year: key.year, Month: key.month}
		total := 0
		for code, n := range categoryCounts {
			total += n
			if n > 1 {
				duplicates = append(duplicates, DuplicateEntry{
					Year:         key.year,
					Month:        key.month,
					CategoryCode: code,
					Count:        n,
					Excess:       n - 1,
					DisplayName:  fmt.Sprintf("%s - %s", p.DisplayName(), code),
				})
			}
		}
		if total > len(categoryCounts) {
			expected := len(categoryCounts)
			if expected > len(archive.Categories) {
				expected = len(archive.Categories)
			}
			summary = append(summary, PeriodDuplicateSummary{
				Year:           key.year,
				Month:          key.month,
				DisplayName:    p.DisplayName(),
				ExpectedCount:  expected,
				ActualCount:    total,
				DuplicateCount: total - len(categoryCounts),
			})
		}
	}

	// 输出顺序确定：期升序、类别代码升序
	sort.Slice(duplicates, func(i, j int) bool {
		a, b := duplicates[i], duplicates[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.CategoryCode < b.CategoryCode
	})
	sort.Slice(summary, func(i, j int) bool {
		a, b := summary[i], summary[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})

	return duplicates, summary, nil
}

// Repair 清理某期重复：每类别只保留创建最晚的成功存档日志，
// 其余日志连同派生排名一并删除，进度重算与删除同事务（幂等，可重复执行）
func (s *ReconcileService) Repair(ctx context.Context, year, month int) (*RepairResult, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("月份非法: %d", month)
	}

	deletedLogs, deletedRankings, err := s.logRepo.RepairPeriod(ctx, year, month)
	if err != nil {
		return nil, err
	}

	if deletedLogs > 0 {
		s.logger.Infof("重复清理完成: %d/%d 删除日志%d条、排名%d条", year, month, deletedLogs, deletedRankings)
	}
	return &RepairResult{DeletedLogs: deletedLogs, DeletedRankings: deletedRankings}, nil
}
