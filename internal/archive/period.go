package archive

import (
	"fmt"
	"time"
)

// Period 一个发布周期（年×月），纯值类型，只作为进度记录入库
type Period struct {
	Year  int
	Month int // 1-12
}

// URLPath 远程路径片段，如 200401vet
func (p Period) URLPath() string {
	return fmt.Sprintf("%d%02dvet", p.Year, p.Month)
}

// DisplayName 展示名，如 2004年1月
func (p Period) DisplayName() string {
	return fmt.Sprintf("%d年%d月", p.Year, p.Month)
}

// StartDate 当月第一天
func (p Period) StartDate() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// EndDate 当月最后一天（排名基准日的默认值）
func (p Period) EndDate() time.Time {
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC)
}

// Before 严格早于另一周期
func (p Period) Before(o Period) bool {
	return p.Year < o.Year || (p.Year == o.Year && p.Month < o.Month)
}

// GeneratePeriods 生成从起始年月到截止年月（含）的周期序列，按月严格递增
// end 为 nil 时默认到当前月
func GeneratePeriods(startYear, startMonth int, end *Period) []Period {
	last := currentPeriod()
	if end != nil {
		last = *end
	}

	var periods []Period
	p := Period{Year: startYear, Month: startMonth}
	for !last.Before(p) {
		periods = append(periods, p)
		p.Month++
		if p.Month > 12 {
			p.Year++
			p.Month = 1
		}
	}
	return periods
}

func currentPeriod() Period {
	now := time.Now()
	return Period{Year: now.Year(), Month: int(now.Month())}
}

// ArchiveURL 存档页URL：{base}/rankings/{YYYYMMvet}/page.php?cid={code}
func ArchiveURL(baseURL string, p Period, categoryCode string) string {
	return fmt.Sprintf("%s/rankings/%s/page.php?cid=%s", baseURL, p.URLPath(), categoryCode)
}

// LatestURL 最新排名页URL：{base}/rankings/vet/page.php?cid={code}
func LatestURL(baseURL string, categoryCode string) string {
	return fmt.Sprintf("%s/rankings/vet/page.php?cid=%s", baseURL, categoryCode)
}
