package service

import (
	"context"
	"fmt"
	"time"

	"RankSync/internal/archive"
	"RankSync/internal/config"
	"RankSync/internal/model"
	"RankSync/internal/repository"
	"RankSync/internal/scraper"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ItemResult 单个工作条目（某期×某类别）的同步结果
type ItemResult struct {
	Success         bool   `json:"success"`
	TotalRecords    int    `json:"totalRecords"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	Skipped         bool   `json:"skipped"`
	Error           string `json:"error,omitempty"`
}

// ArchiveRunOptions 全量存档同步选项
type ArchiveRunOptions struct {
	StartYear    int
	StartMonth   int
	EndYear      int    // 0 表示到当前月
	EndMonth     int    // 与 EndYear 成对
	BatchSize    int    // 0 取配置默认
	SkipExisting bool   // 跳过已有成功存档日志的条目
	CategoryCode string // 可选：只同步单一类别
}

// SyncService 存档同步编排器：严格串行、限速、可跳过已完成、单条失败不中断
type SyncService struct {
	logger      *logrus.Logger
	cfg         *config.Config
	scraper     *scraper.Scraper
	rankingRepo *repository.RankingRepository
	logRepo     *repository.ScrapingLogRepository
	periodRepo  *repository.ArchivePeriodRepository
}

func NewSyncService(db *gorm.DB, logger *logrus.Logger, cfg *config.Config) *SyncService {
	return &SyncService{
		logger:      logger,
		cfg:         cfg,
		scraper:     scraper.NewScraper(&cfg.Scrape, logger),
		rankingRepo: repository.NewRankingRepository(db),
		logRepo:     repository.NewScrapingLogRepository(db),
		periodRepo:  repository.NewArchivePeriodRepository(db),
	}
}

// ScrapeArchive 同步单个条目（某期×某类别）
// skipExisting 为真且该条目已有成功存档日志时直接跳过
// 持久化错误通过 error 返回；抓取失败记入日志并通过 ItemResult 返回
func (s *SyncService) ScrapeArchive(ctx context.Context, year, month int, categoryCode string, skipExisting bool) (*ItemResult, error) {
	cat, ok := archive.CategoryByCode(categoryCode)
	if !ok {
		return nil, fmt.Errorf("未知类别: %s", categoryCode)
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("月份非法: %d", month)
	}

	if skipExisting {
		processed, err := s.logRepo.HasSuccessfulAttempt(ctx, categoryCode, year, month)
		if err != nil {
			return nil, err
		}
		if processed {
			s.logger.Infof("跳过已处理条目: %d/%d - %s", year, month, categoryCode)
			return &ItemResult{Success: true, Skipped: true}, nil
		}
	}

	period := archive.Period{Year: year, Month: month}
	archivePeriod, err := s.periodRepo.GetOrCreate(ctx, period)
	if err != nil {
		return nil, err
	}

	url := archive.ArchiveURL(s.cfg.Scrape.BaseURL, period, categoryCode)
	result := s.scraper.Scrape(ctx, url)

	// 基准日优先取页面标注日期，但必须落在请求月内，否则退回月末
	rankingDate := period.EndDate()
	if result.RankingDate != nil && sameMonth(*result.RankingDate, year, month) {
		rankingDate = *result.RankingDate
	}

	if _, err := s.rankingRepo.SaveScrapeResult(ctx, cat, rankingDate, result, model.DataSourceArchive, &archivePeriod.ID); err != nil {
		// 持久化错误与抓取失败是不同的错误类别，必须向上传播而不是吞掉
		return nil, fmt.Errorf("入库失败: %w, %d/%d - %s", err, year, month, categoryCode)
	}

	return &ItemResult{
		Success:         result.Success(),
		TotalRecords:    len(result.Rows),
		ExecutionTimeMs: result.ElapsedMs,
		Error:           result.ErrorDetail,
	}, nil
}

// ScrapeLatest 同步单个类别的最新排名页
func (s *SyncService) ScrapeLatest(ctx context.Context, categoryCode string) (*ItemResult, error) {
	cat, ok := archive.CategoryByCode(categoryCode)
	if !ok {
		return nil, fmt.Errorf("未知类别: %s", categoryCode)
	}

	url := archive.LatestURL(s.cfg.Scrape.BaseURL, categoryCode)
	result := s.scraper.Scrape(ctx, url)

	// 基准日取页面标注日期；页面未标注时退回上月末
	var rankingDate time.Time
	if result.RankingDate != nil {
		rankingDate = *result.RankingDate
	} else {
		now := time.Now()
		rankingDate = time.Date(now.Year(), now.Month(), 0, 0, 0, 0, 0, time.UTC)
		s.logger.Warnf("页面未标注排名基准日，退回上月末: %s", rankingDate.Format("2006-01-02"))
	}

	if _, err := s.rankingRepo.SaveScrapeResult(ctx, cat, rankingDate, result, model.DataSourceLatest, nil); err != nil {
		return nil, fmt.Errorf("入库失败: %w, latest - %s", err, categoryCode)
	}

	return &ItemResult{
		Success:         result.Success(),
		TotalRecords:    len(result.Rows),
		ExecutionTimeMs: result.ElapsedMs,
		Error:           result.ErrorDetail,
	}, nil
}

// ScrapeAllLatest 同步全部44个类别的最新排名，顺序固定，逐条限速
func (s *SyncService) ScrapeAllLatest(ctx context.Context, onProgress ProgressCallback) (*Progress, error) {
	progress := &Progress{TotalItems: len(archive.Categories), Errors: []ItemError{}}

	for _, cat := range archive.Categories {
		// 条目之间可取消；取消后数据库保持可续传状态
		if err := s.sleepItemDelay(ctx); err != nil {
			return progress, err
		}

		progress.CurrentItem = cat.DisplayName
		result, err := s.ScrapeLatest(ctx, cat.Code)
		progress.ProcessedItems++
		switch {
		case err != nil:
			progress.FailedItems++
			progress.addError(cat.Code, err.Error())
			s.logger.WithError(err).Warnf("最新排名同步失败: %s", cat.Code)
		case result.Success:
			progress.SuccessfulItems++
		default:
			progress.FailedItems++
			progress.addError(cat.Code, result.Error)
		}
		emit(onProgress, progress)
	}

	s.logger.Infof("最新排名同步完成: 成功%d 失败%d", progress.SuccessfulItems, progress.FailedItems)
	return progress, nil
}

// ScrapeArchivePeriod 同步某一期的全部类别
func (s *SyncService) ScrapeArchivePeriod(ctx context.Context, year, month int, onProgress ProgressCallback) (*Progress, error) {
	return s.ScrapeAllArchives(ctx, ArchiveRunOptions{
		StartYear:  year,
		StartMonth: month,
		EndYear:    year,
		EndMonth:   month,
	}, onProgress)
}

// ScrapeAllArchives 全量存档同步
// 条目顺序确定：期升序×类别固定枚举序；严格串行，不对上游并发
// 单条失败只记录不中断；取消只在条目之间生效，返回已累计的进度
func (s *SyncService) ScrapeAllArchives(ctx context.Context, opts ArchiveRunOptions, onProgress ProgressCallback) (*Progress, error) {
	queue, err := s.buildQueue(opts)
	if err != nil {
		return nil, err
	}

	// 跳过已完成条目：先过滤，进度总数只反映剩余工作量
	if opts.SkipExisting {
		queue, err = s.filterProcessed(ctx, queue)
		if err != nil {
			return nil, err
		}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = s.cfg.Scrape.BatchSize
	}

	progress := &Progress{TotalItems: len(queue), Errors: []ItemError{}}
	for _, item := range queue {
		if err := s.sleepItemDelay(ctx); err != nil {
			s.logger.Infof("同步被取消: 已处理%d/%d", progress.ProcessedItems, progress.TotalItems)
			return progress, err
		}

		progress.CurrentItem = fmt.Sprintf("%s - %s", item.period.DisplayName(), item.category.DisplayName)

		result, err := s.ScrapeArchive(ctx, item.period.Year, item.period.Month, item.category.Code, opts.SkipExisting)
		progress.ProcessedItems++
		switch {
		case err != nil:
			progress.FailedItems++
			progress.addError(itemName(item), err.Error())
			s.logger.WithError(err).Warnf("条目同步失败: %s", itemName(item))
		case result.Success:
			progress.SuccessfulItems++
			s.logger.Infof("✓ %s: %d条记录", itemName(item), result.TotalRecords)
		default:
			progress.FailedItems++
			progress.addError(itemName(item), result.Error)
			s.logger.Warnf("✗ %s: %s", itemName(item), result.Error)
		}
		emit(onProgress, progress)

		// 每批之后长暂停，避免对上游持续施压
		if progress.ProcessedItems%batchSize == 0 {
			s.logger.Infof("批次暂停: 已处理%d条，暂停%dms", progress.ProcessedItems, s.cfg.Scrape.BatchPauseMs)
			if err := sleepCtx(ctx, time.Duration(s.cfg.Scrape.BatchPauseMs)*time.Millisecond); err != nil {
				return progress, err
			}
		}
	}

	s.logger.Infof("存档同步完成: 成功%d 失败%d", progress.SuccessfulItems, progress.FailedItems)
	return progress, nil
}

// workItem 工作队列中的一项
type workItem struct {
	period   archive.Period
	category archive.Category
}

func itemName(item workItem) string {
	return fmt.Sprintf("%d/%d - %s", item.period.Year, item.period.Month, item.category.Code)
}

// buildQueue 构造工作队列；日期范围或类别非法属于启动前配置错误，直接中止
func (s *SyncService) buildQueue(opts ArchiveRunOptions) ([]workItem, error) {
	if opts.StartMonth < 1 || opts.StartMonth > 12 {
		return nil, fmt.Errorf("起始月份非法: %d", opts.StartMonth)
	}
	var end *archive.Period
	if opts.EndYear != 0 {
		if opts.EndMonth < 1 || opts.EndMonth > 12 {
			return nil, fmt.Errorf("截止月份非法: %d", opts.EndMonth)
		}
		e := archive.Period{Year: opts.EndYear, Month: opts.EndMonth}
		if e.Before(archive.Period{Year: opts.StartYear, Month: opts.StartMonth}) {
			return nil, fmt.Errorf("截止年月早于起始年月: %d/%d < %d/%d", opts.EndYear, opts.EndMonth, opts.StartYear, opts.StartMonth)
		}
		end = &e
	}

	categories := archive.Categories
	if opts.CategoryCode != "" {
		cat, ok := archive.CategoryByCode(opts.CategoryCode)
		if !ok {
			return nil, fmt.Errorf("未知类别: %s", opts.CategoryCode)
		}
		categories = []archive.Category{cat}
	}

	periods := archive.GeneratePeriods(opts.StartYear, opts.StartMonth, end)
	queue := make([]workItem, 0, len(periods)*len(categories))
	for _, p := range periods {
		for _, c := range categories {
			queue = append(queue, workItem{period: p, category: c})
		}
	}
	return queue, nil
}

// filterProcessed 去掉已有成功存档日志的条目
func (s *SyncService) filterProcessed(ctx context.Context, queue []workItem) ([]workItem, error) {
	remaining := make([]workItem, 0, len(queue))
	skipped := 0
	for _, item := range queue {
		processed, err := s.logRepo.HasSuccessfulAttempt(ctx, item.category.Code, item.period.Year, item.period.Month)
		if err != nil {
			return nil, err
		}
		if processed {
			skipped++
			continue
		}
		remaining = append(remaining, item)
	}
	if skipped > 0 {
		s.logger.Infof("跳过%d个已处理条目", skipped)
	}
	return remaining, nil
}

// sleepItemDelay 每个条目之前的固定间隔（可取消）
func (s *SyncService) sleepItemDelay(ctx context.Context) error {
	return sleepCtx(ctx, time.Duration(s.cfg.Scrape.RequestDelayMs)*time.Millisecond)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func emit(onProgress ProgressCallback, p *Progress) {
	if onProgress != nil {
		onProgress(*p)
	}
}

func sameMonth(t time.Time, year, month int) bool {
	return t.Year() == year && int(t.Month()) == month
}
