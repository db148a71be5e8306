package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RankSync/internal/archive"
	"RankSync/internal/model"
	"RankSync/internal/scraper"

	"gorm.io/gorm"
)

// RankingRepository 排名仓储：负责抓取结果的事务性入库
type RankingRepository struct {
	db *gorm.DB
}

func NewRankingRepository(db *gorm.DB) *RankingRepository {
	return &RankingRepository{db: db}
}

// SaveScrapeResult 抓取结果通用入库（日志+选手+排名+出场汇总+进度，单事务）
// 失败结果与空页也写日志：日志是"该期×类别是否已完成"的唯一依据
// 返回抓取日志ID
func (r *RankingRepository) SaveScrapeResult(
	ctx context.Context,
	cat archive.Category,
	rankingDate time.Time,
	result *scraper.Result,
	dataSource string,
	archivePeriodID *uint64,
) (uint64, error) {
	// 开启事务
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	// 1. 写抓取日志（404/空页也按成功记录）
	var errMsg *string
	if result.ErrorDetail != "" {
		msg := result.ErrorDetail
		errMsg = &msg
	}
	logEntry := &model.ScrapingLog{
		CategoryCode:    cat.Code,
		Gender:          cat.Gender,
		Type:            cat.Type,
		AgeGroup:        cat.AgeGroup,
		RankingDate:     rankingDate,
		ArchivePeriodID: archivePeriodID,
		TotalRecords:    len(result.Rows),
		Success:         result.Success(),
		ErrorMessage:    errMsg,
		ExecutionTimeMs: result.ElapsedMs,
		DataSource:      dataSource,
	}
	if err := tx.Create(logEntry).Error; err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("写抓取日志失败: %w, category: %s", err, cat.Code)
	}

	// 2. 失败或无数据：只留日志
	if !result.Success() || len(result.Rows) == 0 {
		// 零记录的成功也推进该期完成度
		if result.Success() && dataSource == model.DataSourceArchive {
			if err := recomputeProgressTx(tx, rankingDate.Year(), int(rankingDate.Month())); err != nil {
				tx.Rollback()
				return 0, err
			}
		}
		if err := tx.Commit().Error; err != nil {
			return 0, fmt.Errorf("提交事务失败: %w", err)
		}
		return logEntry.ID, nil
	}

	// 3. 最新数据入库前先清掉该类别的全部最新标记（同事务，保证每类别至多一条最新）
	isLatest := dataSource == model.DataSourceLatest
	if isLatest {
		if err := clearLatestTx(tx, cat.Code); err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	// 4. 逐行保存选手与排名
	for _, row := range result.Rows {
		playerID, err := upsertPlayerTx(tx, row.RegistrationNo, row.Name, row.Club, row.Prefecture)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if err := upsertRankingTx(tx, playerID, cat, rankingDate, row, isLatest, logEntry.ID); err != nil {
			tx.Rollback()
			return 0, err
		}
		if err := updateCategoryHistoryTx(tx, playerID, cat, row, rankingDate); err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	// 5. 重算该期进度（仅存档来源计入完成度）
	if dataSource == model.DataSourceArchive {
		if err := recomputeProgressTx(tx, rankingDate.Year(), int(rankingDate.Month())); err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("提交事务失败: %w", err)
	}
	return logEntry.ID, nil
}

// Upsert 单条排名幂等upsert（键：选手×类别×基准日）
// isLatest为真时先清该类别全部最新标记再写入，单事务完成
func (r *RankingRepository) Upsert(
	ctx context.Context,
	playerID uint64,
	cat archive.Category,
	rankingDate time.Time,
	row scraper.RankingRow,
	isLatest bool,
	scrapingLogID uint64,
) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	if isLatest {
		if err := clearLatestTx(tx, cat.Code); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := upsertRankingTx(tx, playerID, cat, rankingDate, row, isLatest, scrapingLogID); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Count 排名总数
func (r *RankingRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Ranking{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计排名数失败: %w", err)
	}
	return n, nil
}

// clearLatestTx 清掉某类别全部最新标记
func clearLatestTx(tx *gorm.DB, categoryCode string) error {
	if err := tx.Model(&model.Ranking{}).
		Where("category_code = ? AND is_latest = ?", categoryCode, true).
		Update("is_latest", false).Error; err != nil {
		return fmt.Errorf("清除最新标记失败: %w, category: %s", err, categoryCode)
	}
	return nil
}

// upsertRankingTx 按(player_id, category_code, ranking_date)显式读后写
func upsertRankingTx(tx *gorm.DB, playerID uint64, cat archive.Category, rankingDate time.Time, row scraper.RankingRow, isLatest bool, scrapingLogID uint64) error {
	var existing model.Ranking
	err := tx.Where("player_id = ? AND category_code = ? AND ranking_date = ?",
		playerID, cat.Code, rankingDate).First(&existing).Error
	switch {
	case err == nil:
		if err := tx.Model(&model.Ranking{}).Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"rank_position":   row.Rank,
				"is_tied":         row.IsTied,
				"total_points":    row.TotalPoints,
				"calc_points":     row.CalcPoints,
				"is_latest":       isLatest,
				"scraping_log_id": scrapingLogID,
			}).Error; err != nil {
			return fmt.Errorf("更新排名失败: %w, player_id: %d", err, playerID)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		ranking := model.Ranking{
			PlayerID:      playerID,
			CategoryCode:  cat.Code,
			Gender:        cat.Gender,
			Type:          cat.Type,
			AgeGroup:      cat.AgeGroup,
			RankPosition:  row.Rank,
			IsTied:        row.IsTied,
			TotalPoints:   row.TotalPoints,
			CalcPoints:    row.CalcPoints,
			RankingDate:   rankingDate,
			IsLatest:      isLatest,
			ScrapingLogID: scrapingLogID,
		}
		if err := tx.Create(&ranking).Error; err != nil {
			return fmt.Errorf("创建排名失败: %w, player_id: %d", err, playerID)
		}
		return nil
	default:
		return fmt.Errorf("查询排名失败: %w, player_id: %d", err, playerID)
	}
}

// updateCategoryHistoryTx 维护选手在某类别的出场汇总（首末出场、次数、最佳名次/积分）
func updateCategoryHistoryTx(tx *gorm.DB, playerID uint64, cat archive.Category, row scraper.RankingRow, rankingDate time.Time) error {
	var existing model.PlayerCategoryHistory
	err := tx.Where("player_id = ? AND category_code = ?", playerID, cat.Code).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"total_appearances": existing.TotalAppearances + 1,
		}
		if rankingDate.After(existing.LastAppearance) {
			updates["last_appearance"] = rankingDate
		}
		if rankingDate.Before(existing.FirstAppearance) {
			updates["first_appearance"] = rankingDate
		}
		if existing.BestRank == nil || row.Rank < *existing.BestRank {
			updates["best_rank"] = row.Rank
		}
		if existing.BestPoints == nil || row.TotalPoints > *existing.BestPoints {
			updates["best_points"] = row.TotalPoints
		}
		if err := tx.Model(&model.PlayerCategoryHistory{}).Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("更新出场汇总失败: %w, player_id: %d", err, playerID)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		bestRank := row.Rank
		bestPoints := row.TotalPoints
		history := model.PlayerCategoryHistory{
			PlayerID:         playerID,
			CategoryCode:     cat.Code,
			Gender:           cat.Gender,
			Type:             cat.Type,
			AgeGroup:         cat.AgeGroup,
			FirstAppearance:  rankingDate,
			LastAppearance:   rankingDate,
			TotalAppearances: 1,
			BestRank:         &bestRank,
			BestPoints:       &bestPoints,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("创建出场汇总失败: %w, player_id: %d", err, playerID)
		}
		return nil
	default:
		return fmt.Errorf("查询出场汇总失败: %w, player_id: %d", err, playerID)
	}
}
