package service

import (
	"context"
	"sync"

	"RankSync/internal/model"
	"RankSync/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunManager 异步批量同步运行管理：启动后立即返回运行ID，
// 进度落库供轮询，取消在条目之间协作生效
type RunManager struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	syncService *SyncService
	runRepo     *repository.SyncRunRepository
	logger      *logrus.Logger
}

func NewRunManager(db *gorm.DB, syncService *SyncService, logger *logrus.Logger) *RunManager {
	return &RunManager{
		cancels:     make(map[string]context.CancelFunc),
		syncService: syncService,
		runRepo:     repository.NewSyncRunRepository(db),
		logger:      logger,
	}
}

// StartArchiveRun 登记并启动一次后台全量同步，返回运行ID
func (m *RunManager) StartArchiveRun(ctx context.Context, opts ArchiveRunOptions) (string, error) {
	runUUID := uuid.NewString()

	run := &model.SyncRun{
		RunUUID:      runUUID,
		Status:       "running",
		StartYear:    opts.StartYear,
		StartMonth:   opts.StartMonth,
		SkipExisting: opts.SkipExisting,
	}
	if opts.EndYear != 0 {
		run.EndYear = &opts.EndYear
		run.EndMonth = &opts.EndMonth
	}
	if err := m.runRepo.Create(ctx, run); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancels[runUUID] = cancel
	m.mu.Unlock()

	go m.execute(runCtx, runUUID, opts)
	return runUUID, nil
}

func (m *RunManager) execute(ctx context.Context, runUUID string, opts ArchiveRunOptions) {
	defer func() {
		m.mu.Lock()
		delete(m.cancels, runUUID)
		m.mu.Unlock()
	}()

	onProgress := func(p Progress) {
		if err := m.runRepo.UpdateProgress(context.Background(), runUUID,
			p.TotalItems, p.ProcessedItems, p.SuccessfulItems, p.FailedItems,
			p.CurrentItem, p.ErrorTail()); err != nil {
			m.logger.WithError(err).Warnf("持久化运行进度失败: %s", runUUID)
		}
	}

	_, err := m.syncService.ScrapeAllArchives(ctx, opts, onProgress)

	status := "completed"
	switch {
	case ctx.Err() != nil:
		status = "canceled"
	case err != nil:
		status = "failed"
		m.logger.WithError(err).Errorf("后台同步运行失败: %s", runUUID)
	}
	if err := m.runRepo.Finish(context.Background(), runUUID, status); err != nil {
		m.logger.WithError(err).Warnf("标记运行结束失败: %s", runUUID)
	}
}

// Stop 取消运行（下一个条目边界生效）；运行不存在或已结束返回false
func (m *RunManager) Stop(runUUID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.cancels[runUUID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Get 查询运行状态
func (m *RunManager) Get(ctx context.Context, runUUID string) (*model.SyncRun, error) {
	return m.runRepo.GetByUUID(ctx, runUUID)
}
