package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RankSync/internal/model"

	"gorm.io/gorm"
)

// ScrapingLogRepository 抓取日志仓储（仅追加；删除只允许走重复清理）
type ScrapingLogRepository struct {
	db *gorm.DB
}

func NewScrapingLogRepository(db *gorm.DB) *ScrapingLogRepository {
	return &ScrapingLogRepository{db: db}
}

// Append 追加一条抓取日志，返回日志ID
func (r *ScrapingLogRepository) Append(ctx context.Context, logEntry *model.ScrapingLog) (uint64, error) {
	if err := r.db.WithContext(ctx).Create(logEntry).Error; err != nil {
		return 0, fmt.Errorf("写抓取日志失败: %w, category: %s", err, logEntry.CategoryCode)
	}
	return logEntry.ID, nil
}

// HasSuccessfulAttempt 续传判定：该类别在该月是否已有成功的存档抓取
// 零记录的成功（404空页）同样算已完成；latest来源不计入存档完成度
func (r *ScrapingLogRepository) HasSuccessfulAttempt(ctx context.Context, categoryCode string, year, month int) (bool, error) {
	start, end := monthRange(year, month)
	var logEntry model.ScrapingLog
	err := r.db.WithContext(ctx).
		Where("category_code = ? AND ranking_date >= ? AND ranking_date <= ? AND success = ? AND data_source = ?",
			categoryCode, start, end, true, model.DataSourceArchive).
		First(&logEntry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("查询抓取日志失败: %w, category: %s", err, categoryCode)
	}
	return true, nil
}

// HistoryFilter 日志列表筛选条件
type HistoryFilter struct {
	CategoryCode string // 可选：类别代码
	Success      *bool  // 可选：是否成功
}

// ListHistory 分页查询抓取日志（新→旧）
func (r *ScrapingLogRepository) ListHistory(ctx context.Context, filter HistoryFilter, page, limit int) ([]*model.ScrapingLog, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 10000 {
		limit = 20
	}

	db := r.db.WithContext(ctx).Model(&model.ScrapingLog{})
	if filter.CategoryCode != "" {
		db = db.Where("category_code = ?", filter.CategoryCode)
	}
	if filter.Success != nil {
		db = db.Where("success = ?", *filter.Success)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计抓取日志失败: %w", err)
	}

	var logs []*model.ScrapingLog
	if err := db.Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("查询抓取日志失败: %w", err)
	}
	return logs, total, nil
}

// ListSuccessfulArchive 全部成功的存档日志（供重复检测按年月×类别分组）
func (r *ScrapingLogRepository) ListSuccessfulArchive(ctx context.Context) ([]*model.ScrapingLog, error) {
	var logs []*model.ScrapingLog
	if err := r.db.WithContext(ctx).
		Where("success = ? AND data_source = ?", true, model.DataSourceArchive).
		Order("ranking_date ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询成功存档日志失败: %w", err)
	}
	return logs, nil
}

// Count 日志总数；success非空时按成功标记过滤
func (r *ScrapingLogRepository) Count(ctx context.Context, success *bool) (int64, error) {
	db := r.db.WithContext(ctx).Model(&model.ScrapingLog{})
	if success != nil {
		db = db.Where("success = ?", *success)
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计抓取日志失败: %w", err)
	}
	return n, nil
}

// Latest 最近一条日志（无日志返回nil）
func (r *ScrapingLogRepository) Latest(ctx context.Context) (*model.ScrapingLog, error) {
	var logEntry model.ScrapingLog
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").First(&logEntry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询最近抓取日志失败: %w", err)
	}
	return &logEntry, nil
}

// RepairPeriod 清理某期的重复成功存档日志：每类别只保留创建最晚的一条，
// 删除其余日志及其派生的排名行，并在同一事务内重算该期进度
func (r *ScrapingLogRepository) RepairPeriod(ctx context.Context, year, month int) (deletedLogs, deletedRankings int64, err error) {
	start, end := monthRange(year, month)

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, 0, fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	var logs []*model.ScrapingLog
	if err := tx.
		Where("ranking_date >= ? AND ranking_date <= ? AND success = ? AND data_source = ?",
			start, end, true, model.DataSourceArchive).
		Order("created_at DESC, id DESC").
		Find(&logs).Error; err != nil {
		tx.Rollback()
		return 0, 0, fmt.Errorf("查询待清理日志失败: %w", err)
	}

	// 每类别保留最新一条，其余全部删除
	kept := make(map[string]bool)
	var deleteIDs []uint64
	for _, logEntry := range logs {
		if kept[logEntry.CategoryCode] {
			deleteIDs = append(deleteIDs, logEntry.ID)
		} else {
			kept[logEntry.CategoryCode] = true
		}
	}

	if len(deleteIDs) > 0 {
		res := tx.Where("scraping_log_id IN ?", deleteIDs).Delete(&model.Ranking{})
		if res.Error != nil {
			tx.Rollback()
			return 0, 0, fmt.Errorf("删除重复排名失败: %w", res.Error)
		}
		deletedRankings = res.RowsAffected

		res = tx.Where("id IN ?", deleteIDs).Delete(&model.ScrapingLog{})
		if res.Error != nil {
			tx.Rollback()
			return 0, 0, fmt.Errorf("删除重复日志失败: %w", res.Error)
		}
		deletedLogs = res.RowsAffected
	}

	// 删除与进度重算必须同事务成功，避免进度与日志不一致
	if err := recomputeProgressTx(tx, year, month); err != nil {
		tx.Rollback()
		return 0, 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return 0, 0, fmt.Errorf("提交事务失败: %w", err)
	}
	return deletedLogs, deletedRankings, nil
}

// monthRange 某年月的基准日取值范围（当月1日到月末，均为零点）
func monthRange(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	return start, end
}
