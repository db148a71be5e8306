package repository

import (
	"context"
	"errors"
	"fmt"

	"RankSync/internal/model"

	"gorm.io/gorm"
)

// PlayerRepository 选手仓储：自然键为登录番号，幂等upsert
type PlayerRepository struct {
	db *gorm.DB
}

func NewPlayerRepository(db *gorm.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Upsert 按登录番号创建或更新选手，返回选手ID
// 自然键永不变更；重复看到同一选手时只刷新姓名/俱乐部/都道府县
func (r *PlayerRepository) Upsert(ctx context.Context, registrationNo, name, club, prefecture string) (uint64, error) {
	return upsertPlayerTx(r.db.WithContext(ctx), registrationNo, name, club, prefecture)
}

// Count 选手总数
func (r *PlayerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Player{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计选手数失败: %w", err)
	}
	return n, nil
}

// upsertPlayerTx 在给定事务/连接上执行选手upsert（显式读后写，替代ORM隐式约束冲突处理）
func upsertPlayerTx(tx *gorm.DB, registrationNo, name, club, prefecture string) (uint64, error) {
	var player model.Player
	err := tx.Where("registration_no = ?", registrationNo).First(&player).Error
	switch {
	case err == nil:
		if err := tx.Model(&model.Player{}).Where("id = ?", player.ID).
			Updates(map[string]interface{}{
				"name":       name,
				"club":       club,
				"prefecture": prefecture,
			}).Error; err != nil {
			return 0, fmt.Errorf("更新选手失败: %w, registration_no: %s", err, registrationNo)
		}
		return player.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		player = model.Player{
			RegistrationNo: registrationNo,
			Name:           name,
			Club:           club,
			Prefecture:     prefecture,
		}
		if err := tx.Create(&player).Error; err != nil {
			return 0, fmt.Errorf("创建选手失败: %w, registration_no: %s", err, registrationNo)
		}
		return player.ID, nil
	default:
		return 0, fmt.Errorf("查询选手失败: %w, registration_no: %s", err, registrationNo)
	}
}
