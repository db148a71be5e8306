package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"RankSync/internal/config"
	"RankSync/internal/utils/httpclient"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// Status 单次抓取的结果分类
type Status string

const (
	StatusOK    Status = "ok"    // 成功且有数据
	StatusEmpty Status = "empty" // 成功但无数据（含404：该期/类别本就不存在）
	StatusError Status = "error" // 失败，可由调用方重试
)

// RankingRow 排名表中的一行
type RankingRow struct {
	Rank           int    // 名次
	IsTied         bool   // 是否同名次
	RegistrationNo string // JTA登录番号
	Name           string // 选手姓名
	Club           string // 所属俱乐部
	Prefecture     string // 都道府县
	CalcPoints     int    // 计算积分
	TotalPoints    int    // 合计积分
}

// Result 单次抓取+解析的完整结果
type Result struct {
	Status      Status
	Rows        []RankingRow
	RankingDate *time.Time // 页面标注的排名基准日（可缺失）
	UpdateDate  *time.Time // 页面标注的更新日（可缺失）
	ErrorDetail string
	ElapsedMs   int64
}

// Success 是否计为成功尝试（空页也算成功）
func (r *Result) Success() bool {
	return r.Status != StatusError
}

// 页面日期格式：排名基准日 "YYYY年MM月DD日付"，更新日 "更新日: YYYY/MM/DD"
var (
	rankingDatePattern = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日付`)
	updateDatePattern  = regexp.MustCompile(`更新日[:：]\s*(\d{4})/(\d{1,2})/(\d{1,2})`)
)

// 排名表每行固定9列：名次/タイ/登録/番号/氏名/所属/都道府県/計算P/合計P
const rankingRowCells = 9

// Scraper JTA排名页抓取器：单次请求有界超时，不做内部重试
type Scraper struct {
	cfg        *config.ScrapeConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewScraper(cfg *config.ScrapeConfig, logger *logrus.Logger) *Scraper {
	return &Scraper{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

// Scrape 抓取并解析一个排名页
// 分类规则：404→empty（上游用404表示该期无发布），其他非2xx/网络错误/超时→error
func (s *Scraper) Scrape(ctx context.Context, pageURL string) *Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return &Result{
			Status:      StatusError,
			ErrorDetail: fmt.Sprintf("构造请求失败: %v", err),
			ElapsedMs:   time.Since(start).Milliseconds(),
		}
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		detail := fmt.Sprintf("请求失败: %v", err)
		if isTimeout(err) {
			// 超时单独标注，便于在日志中与HTTP层错误区分
			detail = fmt.Sprintf("请求超时（%ds）: %v", s.cfg.Timeout, err)
		}
		return &Result{
			Status:      StatusError,
			ErrorDetail: detail,
			ElapsedMs:   time.Since(start).Milliseconds(),
		}
	}
	defer resp.Body.Close()

	// 404视为成功空页：该期/类别可能从未发布过排名
	if resp.StatusCode == http.StatusNotFound {
		return &Result{
			Status:      StatusEmpty,
			Rows:        []RankingRow{},
			ErrorDetail: "页面不存在(404)，该期/类别可能无数据",
			ElapsedMs:   time.Since(start).Milliseconds(),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{
			Status:      StatusError,
			ErrorDetail: fmt.Sprintf("HTTP错误: %d", resp.StatusCode),
			ElapsedMs:   time.Since(start).Milliseconds(),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return &Result{
			Status:      StatusError,
			ErrorDetail: fmt.Sprintf("解析HTML失败: %v", err),
			ElapsedMs:   time.Since(start).Milliseconds(),
		}
	}

	pageText := doc.Find("body").Text()
	rankingDate := extractDate(rankingDatePattern, pageText)
	updateDate := extractDate(updateDatePattern, pageText)

	rows := s.parseRows(doc)

	result := &Result{
		Rows:        rows,
		RankingDate: rankingDate,
		UpdateDate:  updateDate,
		ElapsedMs:   time.Since(start).Milliseconds(),
	}
	if len(rows) == 0 {
		result.Status = StatusEmpty
		result.ErrorDetail = "页面无排名数据"
	} else {
		result.Status = StatusOK
	}
	return result
}

// parseRows 解析排名表：跳过表头行，列数不符或名次非数字的行静默跳过
func (s *Scraper) parseRows(doc *goquery.Document) []RankingRow {
	var rows []RankingRow

	doc.Find("table tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return // 表头
		}
		cells := tr.Find("td")
		if cells.Length() != rankingRowCells {
			return // 残缺/旧版标记，跳过整行而不中断页面解析
		}

		rank, err := strconv.Atoi(cellText(cells, 0))
		if err != nil {
			return
		}

		tieText := cellText(cells, 1)
		registrationNo := cellText(cells, 3)
		name := cellText(cells, 4)
		if registrationNo == "" || name == "" {
			return
		}

		rows = append(rows, RankingRow{
			Rank:           rank,
			IsTied:         tieText == "T" || tieText == "タイ",
			RegistrationNo: registrationNo,
			Name:           name,
			Club:           cellText(cells, 5),
			Prefecture:     cellText(cells, 6),
			CalcPoints:     parsePoints(cellText(cells, 7)),
			TotalPoints:    parsePoints(cellText(cells, 8)),
		})
	})

	return rows
}

func cellText(cells *goquery.Selection, idx int) string {
	return strings.TrimSpace(cells.Eq(idx).Text())
}

// parsePoints 去掉千分位逗号后转数字，失败按0处理
func parsePoints(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// extractDate 从整页文本中按正则提取日期，匹配不到返回nil
func extractDate(pattern *regexp.Regexp, text string) *time.Time {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
