package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"RankSync/internal/config"
	"RankSync/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Player{},
		&model.ScrapingLog{},
		&model.Ranking{},
		&model.ArchivePeriod{},
		&model.PlayerCategoryHistory{},
		&model.SyncRun{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, baseURL string) *SyncService {
	t.Helper()
	cfg := &config.Config{
		Scrape: config.ScrapeConfig{
			BaseURL:        baseURL,
			Timeout:        5,
			UserAgent:      "test-agent",
			RequestDelayMs: 1,
			BatchSize:      100,
			BatchPauseMs:   1,
			StartYear:      2004,
		},
	}
	lg := logrus.New()
	lg.SetLevel(logrus.ErrorLevel)
	return NewSyncService(db, lg, cfg)
}

// rankingPage 构造一个带基准日和两行数据的排名页
func rankingPage(dateJP string) string {
	return fmt.Sprintf(`<html><body>
<p>%s</p>
<table>
<tr><th>順位</th></tr>
<tr><td>1</td><td></td><td></td><td>G0012345</td><td>山田 太郎</td><td>東京TC</td><td>東京都</td><td>1,250</td><td>1,480</td></tr>
<tr><td>2</td><td>T</td><td></td><td>G0023456</td><td>佐藤 次郎</td><td></td><td>大阪府</td><td>980</td><td>1,100</td></tr>
</table>
</body></html>`, dateJP)
}

// fakeArchive 可编程上游：按 期路径×cid 返回指定响应
type fakeArchive struct {
	pages    map[string]string // "202401vet/gs45" -> html
	statuses map[string]int    // 覆盖HTTP状态
	hits     map[string]int
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		pages:    make(map[string]string),
		statuses: make(map[string]int),
		hits:     make(map[string]int),
	}
}

func (f *fakeArchive) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// /rankings/{path}/page.php?cid={code}
		period := strings.TrimPrefix(r.URL.Path, "/rankings/")
		period = strings.TrimSuffix(period, "/page.php")
		key := period + "/" + r.URL.Query().Get("cid")
		f.hits[key]++

		if status, ok := f.statuses[key]; ok {
			w.WriteHeader(status)
			return
		}
		page, ok := f.pages[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(page))
	}
}

func TestScrapeArchiveSavesAndSkips(t *testing.T) {
	upstream := newFakeArchive()
	upstream.pages["202401vet/gs45"] = rankingPage("2024年1月31日付")
	srv := httptest.NewServer(upstream.handler())
	defer srv.Close()

	db := newTestDB(t)
	svc := newTestService(t, db, srv.URL)
	ctx := context.Background()

	result, err := svc.ScrapeArchive(ctx, 2024, 1, "gs45", true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.TotalRecords)

	var ranking model.Ranking
	require.NoError(t, db.Where("rank_position = ?", 1).First(&ranking).Error)
	assert.Equal(t, "gs45", ranking.CategoryCode)
	assert.True(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC).Equal(ranking.RankingDate))

	// 第二次调用：已有成功存档日志，不再请求上游
	result, err = svc.ScrapeArchive(ctx, 2024, 1, "gs45", true)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 1, upstream.hits["202401vet/gs45"])
}

func TestScrapeArchiveRejectsInvalidInput(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, "http://127.0.0.1:0")
	ctx := context.Background()

	_, err := svc.ScrapeArchive(ctx, 2024, 1, "xx99", false)
	assert.Error(t, err)

	_, err = svc.ScrapeArchive(ctx, 2024, 13, "gs45", false)
	assert.Error(t, err)
}

func TestScrapeArchiveDateOutsideMonthFallsBack(t *testing.T) {
	upstream := newFakeArchive()
	// 页面标注的基准日不在请求月内（上游偶发错页），应退回请求月月末
	upstream.pages["202401vet/gs45"] = rankingPage("2024年3月15日付")
	srv := httptest.NewServer(upstream.handler())
	defer srv.Close()

	db := newTestDB(t)
	svc := newTestService(t, db, srv.URL)

	result, err := svc.ScrapeArchive(context.Background(), 2024, 1, "gs45", false)
	require.NoError(t, err)
	assert.True(t, result.Success)

	var logEntry model.ScrapingLog
	require.NoError(t, db.First(&logEntry).Error)
	assert.True(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC).Equal(logEntry.RankingDate),
		"基准日落在请求月外时必须退回月末，否则该期永远无法判定完成")
}

func TestScrapeArchiveNotFoundCompletesItem(t *testing.T) {
	upstream := newFakeArchive() // 无任何页面：一律404
	srv := httptest.NewServer(upstream.handler())
	defer srv.Close()

	db := newTestDB(t)
	svc := newTestService(t, db, srv.URL)
	ctx := context.Background()

	result, err := svc.ScrapeArchive(ctx, 2004, 1, "ld85", true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.TotalRecords)

	// 404也算完成：重跑直接跳过
	result, err = svc.ScrapeArchive(ctx, 2004, 1, "ld85", true)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestScrapeAllArchivesMixedOutcomes(t *testing.T) {
	// 两期×全类别：gs45一月有数据、二月上游报错；ls60一月上游报错、二月有数据；
	// 其余类别404（成功空页）
	upstream := newFakeArchive()
	upstream.pages["202401vet/gs45"] = rankingPage("2024年1月31日付")
	upstream.statuses["202402vet/gs45"] = http.StatusInternalServerError
	upstream.statuses["202401vet/ls60"] = http.StatusInternalServerError
	upstream.pages["202402vet/ls60"] = rankingPage("2024年2月29日付")
	srv := httptest.NewServer(upstream.handler())
	defer srv.Close()

	db := newTestDB(t)
	svc := newTestService(t, db, srv.URL)
	ctx := context.Background()

	opts := ArchiveRunOptions{
		StartYear: 2024, StartMonth: 1,
		EndYear: 2024, EndMonth: 2,
	}

	var emitted []Progress
	progress, err := svc.ScrapeAllArchives(ctx, opts, func(p Progress) {
		emitted = append(emitted, p)
	})
	require.NoError(t, err)

	// 单条失败不中断：88条全部处理完，失败只有那两条
	assert.Equal(t, 88, progress.TotalItems)
	assert.Equal(t, 88, progress.ProcessedItems)
	assert.Equal(t, 86, progress.SuccessfulItems)
	assert.Equal(t, 2, progress.FailedItems)
	require.Len(t, progress.Errors, 2)
	assert.Equal(t, "2024/1 - ls60", progress.Errors[0].Item)
	assert.Equal(t, "2024/2 - gs45", progress.Errors[1].Item)
	assert.Len(t, emitted, 88)

	// 失败条目已留日志，但不算完成
	var n int64
	require.NoError(t, db.Model(&model.ScrapingLog{}).Where("success = ?", false).Count(&n).Error)
	assert.Equal(t, int64(2), n)

	// 进度始终是日志的函数：一月43/44，二月43/44
	var period model.ArchivePeriod
	require.NoError(t, db.Where("year = ? AND month = ?", 2024, 1).First(&period).Error)
	assert.Equal(t, 43, period.ProcessedCategories)
	assert.False(t, period.IsProcessed)

	// 断点续传：修好上游后只重做失败的那两条
	upstream.pages["202402vet/gs45"] = rankingPage("2024年2月29日付")
	delete(upstream.statuses, "202402vet/gs45")
	upstream.pages["202401vet/ls60"] = rankingPage("2024年1月31日付")
	delete(upstream.statuses, "202401vet/ls60")
	opts.SkipExisting = true

	progress, err = svc.ScrapeAllArchives(ctx, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.TotalItems)
	assert.Equal(t, 2, progress.SuccessfulItems)
	assert.Equal(t, 1, upstream.hits["202401vet/gs45"], "已完成条目不得重复请求上游")

	// 两期补齐后均判定完成
	require.NoError(t, db.Where("year = ? AND month = ?", 2024, 1).First(&period).Error)
	assert.Equal(t, 44, period.ProcessedCategories)
	assert.True(t, period.IsProcessed)
	require.NoError(t, db.Where("year = ? AND month = ?", 2024, 2).First(&period).Error)
	assert.True(t, period.IsProcessed)
}

func TestScrapeAllArchivesCanceled(t *testing.T) {
	upstream := newFakeArchive()
	srv := httptest.NewServer(upstream.handler())
	defer srv.Close()

	db := newTestDB(t)
	svc := newTestService(t, db, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	opts := ArchiveRunOptions{
		StartYear: 2024, StartMonth: 1,
		EndYear: 2024, EndMonth: 3,
		CategoryCode: "gs45",
	}

	// 第一个条目完成后取消：在途条目收尾，后续条目不再开始
	progress, err := svc.ScrapeAllArchives(ctx, opts, func(p Progress) {
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, progress.ProcessedItems)
	assert.Equal(t, 3, progress.TotalItems)

	// 已完成条目的数据完好，可续传
	var n int64
	require.NoError(t, db.Model(&model.ScrapingLog{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestScrapeLatestMarksLatest(t *testing.T) {
	upstream := newFakeArchive()
	upstream.pages["vet/gs45"] = rankingPage("2024年6月30日付")
	srv := httptest.NewServer(upstream.handler())
	defer srv.Close()

	db := newTestDB(t)
	svc := newTestService(t, db, srv.URL)
	ctx := context.Background()

	result, err := svc.ScrapeLatest(ctx, "gs45")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.TotalRecords)

	var latest []model.Ranking
	require.NoError(t, db.Where("is_latest = ?", true).Find(&latest).Error)
	assert.Len(t, latest, 2)

	// latest来源不推进存档完成度
	var period model.ArchivePeriod
	err = db.Where("year = ? AND month = ?", 2024, 6).First(&period).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
