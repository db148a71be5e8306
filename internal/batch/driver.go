package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"RankSync/internal/archive"
	"RankSync/internal/service"

	"github.com/sirupsen/logrus"
)

// Item 待同步的工作条目（某期×某类别）
type Item struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	CategoryCode string `json:"categoryCode"`
}

// Options 批量驱动器配置
type Options struct {
	ServerBaseURL string        // 同步服务地址，如 http://localhost:8080
	RequestDelay  time.Duration // 条目间隔，默认1s
	BatchSize     int           // 每批条目数，默认100
	BatchPause    time.Duration // 批次间长暂停，默认5s
	Timeout       time.Duration // 单次请求超时，默认60s
	OnProgress    service.ProgressCallback
}

// Driver 客户端批量驱动器：与服务端编排器相同的队列/限速/跳过语义，
// 但逐条调用单条目同步接口。由调用方持有实例，每次运行新建，无全局状态
type Driver struct {
	opts   Options
	client *http.Client
	logger *logrus.Logger

	mu      sync.Mutex
	queue   []Item
	running bool
	cancel  context.CancelFunc
}

func NewDriver(opts Options, logger *logrus.Logger) *Driver {
	if opts.RequestDelay <= 0 {
		opts.RequestDelay = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Driver{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger,
	}
}

// BuildQueue 构造工作队列：期升序×类别固定枚举序；endYear为0时到当前月
func (d *Driver) BuildQueue(startYear, startMonth, endYear, endMonth int) {
	var end *archive.Period
	if endYear != 0 {
		end = &archive.Period{Year: endYear, Month: endMonth}
	}
	periods := archive.GeneratePeriods(startYear, startMonth, end)

	queue := make([]Item, 0, len(periods)*len(archive.Categories))
	for _, p := range periods {
		for _, c := range archive.Categories {
			queue = append(queue, Item{Year: p.Year, Month: p.Month, CategoryCode: c.Code})
		}
	}

	d.mu.Lock()
	d.queue = queue
	d.mu.Unlock()
}

// Start 顺序处理队列，阻塞到全部完成或Stop/取消
// 单条失败只记录不中断；Stop会中止在途请求
func (d *Driver) Start(skipExisting bool) (*service.Progress, error) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil, errors.New("批量同步已在运行中")
	}
	d.running = true
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	queue := d.queue
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.cancel = nil
		d.mu.Unlock()
		cancel()
	}()

	if skipExisting {
		existing, err := d.fetchExisting(ctx)
		if err != nil {
			return nil, err
		}
		filtered := make([]Item, 0, len(queue))
		for _, item := range queue {
			if !existing[itemKey(item)] {
				filtered = append(filtered, item)
			}
		}
		queue = filtered
	}

	progress := &service.Progress{TotalItems: len(queue), Errors: []service.ItemError{}}
	for _, item := range queue {
		if err := sleepCtx(ctx, d.opts.RequestDelay); err != nil {
			return progress, err
		}

		cat, _ := archive.CategoryByCode(item.CategoryCode)
		p := archive.Period{Year: item.Year, Month: item.Month}
		progress.CurrentItem = fmt.Sprintf("%s - %s", p.DisplayName(), cat.DisplayName)

		success, errDetail := d.processItem(ctx, item)
		progress.ProcessedItems++
		if success {
			progress.SuccessfulItems++
		} else {
			progress.FailedItems++
			addError(progress, itemKey(item), errDetail)
		}
		if d.opts.OnProgress != nil {
			d.opts.OnProgress(*progress)
		}
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}

		if progress.ProcessedItems%d.opts.BatchSize == 0 {
			if err := sleepCtx(ctx, d.opts.BatchPause); err != nil {
				return progress, err
			}
		}
	}

	return progress, nil
}

// Stop 中止在途请求并停止后续派发（幂等）
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// processItem 调用单条目同步接口
func (d *Driver) processItem(ctx context.Context, item Item) (bool, string) {
	body, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Sprintf("序列化请求失败: %v", err)
	}

	url := d.opts.ServerBaseURL + "/api/sync/archive/single"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("构造请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return false, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Sprintf("解析响应失败: %v", err)
	}
	return result.Success, result.Error
}

// fetchExisting 从历史接口取已完成条目集合（成功的存档日志，含零记录成功）
func (d *Driver) fetchExisting(ctx context.Context) (map[string]bool, error) {
	url := d.opts.ServerBaseURL + "/api/sync/history?limit=10000&success=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("查询历史记录失败: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Logs []struct {
			CategoryCode string    `json:"CategoryCode"`
			RankingDate  time.Time `json:"RankingDate"`
			Success      bool      `json:"Success"`
			DataSource   string    `json:"DataSource"`
		} `json:"logs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("解析历史记录失败: %w", err)
	}

	existing := make(map[string]bool, len(payload.Logs))
	for _, logEntry := range payload.Logs {
		if logEntry.Success && logEntry.DataSource == "archive" {
			existing[itemKey(Item{
				Year:         logEntry.RankingDate.Year(),
				Month:        int(logEntry.RankingDate.Month()),
				CategoryCode: logEntry.CategoryCode,
			})] = true
		}
	}
	return existing, nil
}

func itemKey(item Item) string {
	return fmt.Sprintf("%d/%d - %s", item.Year, item.Month, item.CategoryCode)
}

func addError(p *service.Progress, item, detail string) {
	p.Errors = append(p.Errors, service.ItemError{Item: item, Error: detail})
	if len(p.Errors) > 50 {
		p.Errors = p.Errors[len(p.Errors)-50:]
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
