package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RankSync/internal/model"

	"gorm.io/gorm"
)

// SyncRunRepository 异步批量同步运行状态仓储
type SyncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create 登记一次新的运行
func (r *SyncRunRepository) Create(ctx context.Context, run *model.SyncRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("创建同步运行记录失败: %w, run: %s", err, run.RunUUID)
	}
	return nil
}

// UpdateProgress 刷新运行进度（错误尾部序列化为jsonb，有界）
func (r *SyncRunRepository) UpdateProgress(ctx context.Context, runUUID string, total, processed, successful, failed int, currentItem string, errTail []string) error {
	errsJSON, err := json.Marshal(errTail)
	if err != nil {
		return fmt.Errorf("序列化错误列表失败: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&model.SyncRun{}).
		Where("run_uuid = ?", runUUID).
		Updates(map[string]interface{}{
			"total_items":      total,
			"processed_items":  processed,
			"successful_items": successful,
			"failed_items":     failed,
			"current_item":     currentItem,
			"errors":           errsJSON,
			"updated_at":       time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("更新同步运行进度失败: %w, run: %s", err, runUUID)
	}
	return nil
}

// Finish 标记运行结束
func (r *SyncRunRepository) Finish(ctx context.Context, runUUID, status string) error {
	now := time.Now()
	if err := r.db.WithContext(ctx).Model(&model.SyncRun{}).
		Where("run_uuid = ?", runUUID).
		Updates(map[string]interface{}{
			"status":      status,
			"finished_at": &now,
			"updated_at":  now,
		}).Error; err != nil {
		return fmt.Errorf("结束同步运行失败: %w, run: %s", err, runUUID)
	}
	return nil
}

// GetByUUID 按运行ID查询（不存在返回nil）
func (r *SyncRunRepository) GetByUUID(ctx context.Context, runUUID string) (*model.SyncRun, error) {
	var run model.SyncRun
	err := r.db.WithContext(ctx).Where("run_uuid = ?", runUUID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询同步运行失败: %w, run: %s", err, runUUID)
	}
	return &run, nil
}
