package repository

import (
	"context"
	"errors"
	"fmt"

	"RankSync/internal/archive"
	"RankSync/internal/model"

	"gorm.io/gorm"
)

// ArchivePeriodRepository 存档期仓储：完成度聚合只重算、不独立维护
type ArchivePeriodRepository struct {
	db *gorm.DB
}

func NewArchivePeriodRepository(db *gorm.DB) *ArchivePeriodRepository {
	return &ArchivePeriodRepository{db: db}
}

// GetOrCreate 取得或创建某期记录
func (r *ArchivePeriodRepository) GetOrCreate(ctx context.Context, p archive.Period) (*model.ArchivePeriod, error) {
	return getOrCreatePeriodTx(r.db.WithContext(ctx), p.Year, p.Month)
}

// Recompute 重算某期完成度：统计该月有≥1条成功存档日志的类别数
// 返回已完成类别数与是否全部完成
func (r *ArchivePeriodRepository) Recompute(ctx context.Context, year, month int) (int, bool, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, false, fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	if err := recomputeProgressTx(tx, year, month); err != nil {
		tx.Rollback()
		return 0, false, err
	}
	if err := tx.Commit().Error; err != nil {
		return 0, false, fmt.Errorf("提交事务失败: %w", err)
	}

	var period model.ArchivePeriod
	if err := r.db.WithContext(ctx).Where("year = ? AND month = ?", year, month).First(&period).Error; err != nil {
		return 0, false, fmt.Errorf("查询存档期失败: %w, %d/%d", err, year, month)
	}
	return period.ProcessedCategories, period.IsProcessed, nil
}

// List 全部存档期记录
func (r *ArchivePeriodRepository) List(ctx context.Context) ([]*model.ArchivePeriod, error) {
	var periods []*model.ArchivePeriod
	if err := r.db.WithContext(ctx).
		Order("year ASC, month ASC").
		Find(&periods).Error; err != nil {
		return nil, fmt.Errorf("查询存档期失败: %w", err)
	}
	return periods, nil
}

// Count 存档期数量；processed非空时按是否完成过滤
func (r *ArchivePeriodRepository) Count(ctx context.Context, processed *bool) (int64, error) {
	db := r.db.WithContext(ctx).Model(&model.ArchivePeriod{})
	if processed != nil {
		db = db.Where("is_processed = ?", *processed)
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计存档期失败: %w", err)
	}
	return n, nil
}

// getOrCreatePeriodTx 取得或创建存档期（显式读后写）
func getOrCreatePeriodTx(tx *gorm.DB, year, month int) (*model.ArchivePeriod, error) {
	var period model.ArchivePeriod
	err := tx.Where("year = ? AND month = ?", year, month).First(&period).Error
	if err == nil {
		return &period, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询存档期失败: %w, %d/%d", err, year, month)
	}

	p := archive.Period{Year: year, Month: month}
	period = model.ArchivePeriod{
		Year:            year,
		Month:           month,
		ArchiveDate:     p.EndDate(),
		DisplayName:     p.DisplayName(),
		TotalCategories: len(archive.Categories),
	}
	if err := tx.Create(&period).Error; err != nil {
		return nil, fmt.Errorf("创建存档期失败: %w, %d/%d", err, year, month)
	}
	return &period, nil
}

// recomputeProgressTx 在事务内重算某期完成度
// processed_categories = 该月有成功存档日志的去重类别数（绝不是日志条数）
func recomputeProgressTx(tx *gorm.DB, year, month int) error {
	period, err := getOrCreatePeriodTx(tx, year, month)
	if err != nil {
		return err
	}

	start, end := monthRange(year, month)
	var processed int64
	if err := tx.Model(&model.ScrapingLog{}).
		Where("ranking_date >= ? AND ranking_date <= ? AND success = ? AND data_source = ?",
			start, end, true, model.DataSourceArchive).
		Distinct("category_code").
		Count(&processed).Error; err != nil {
		return fmt.Errorf("统计已完成类别失败: %w, %d/%d", err, year, month)
	}

	if err := tx.Model(&model.ArchivePeriod{}).Where("id = ?", period.ID).
		Updates(map[string]interface{}{
			"processed_categories": processed,
			"is_processed":         processed >= int64(period.TotalCategories),
		}).Error; err != nil {
		return fmt.Errorf("更新存档期进度失败: %w, %d/%d", err, year, month)
	}
	return nil
}
