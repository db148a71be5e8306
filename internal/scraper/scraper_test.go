package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"RankSync/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><body>
<p>2024年1月31日付</p>
<p>更新日: 2024/2/5</p>
<table>
<tr><th>順位</th><th></th><th></th><th>登録番号</th><th>氏名</th><th>所属</th><th>都道府県</th><th>計算P</th><th>合計P</th></tr>
<tr><td>1</td><td></td><td></td><td>G0012345</td><td>山田 太郎</td><td>テニスクラブ東京</td><td>東京都</td><td>1,250</td><td>1,480</td></tr>
<tr><td>2</td><td>T</td><td></td><td>G0023456</td><td>佐藤 次郎</td><td></td><td>大阪府</td><td>980</td><td>1,100</td></tr>
<tr><td>2</td><td>タイ</td><td></td><td>G0034567</td><td>鈴木 三郎</td><td>横浜TC</td><td>神奈川県</td><td>980</td><td>1,050</td></tr>
<tr><td>4</td><td></td><td></td><td></td><td>無番号 選手</td><td></td><td></td><td>900</td><td>900</td></tr>
<tr><td>-</td><td></td><td></td><td>G0045678</td><td>非数字 名次</td><td></td><td></td><td>800</td><td>800</td></tr>
<tr><td>5</td><td></td><td>G0056789</td><td>列数不符</td><td></td><td>700</td><td>700</td></tr>
</table>
</body></html>`

func newTestScraper(timeout int) *Scraper {
	cfg := &config.ScrapeConfig{Timeout: timeout, UserAgent: "test-agent"}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewScraper(cfg, logger)
}

func TestScrapeParsesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	result := newTestScraper(5).Scrape(context.Background(), srv.URL)

	require.Equal(t, StatusOK, result.Status)
	assert.True(t, result.Success())
	// 残缺行（无登録番号/名次非数字/列数不符）被跳过
	require.Len(t, result.Rows, 3)

	first := result.Rows[0]
	assert.Equal(t, 1, first.Rank)
	assert.False(t, first.IsTied)
	assert.Equal(t, "G0012345", first.RegistrationNo)
	assert.Equal(t, "山田 太郎", first.Name)
	assert.Equal(t, "テニスクラブ東京", first.Club)
	assert.Equal(t, "東京都", first.Prefecture)
	assert.Equal(t, 1250, first.CalcPoints) // 千分位逗号已去除
	assert.Equal(t, 1480, first.TotalPoints)

	// "T"与"タイ"两种写法都识别为同名次
	assert.True(t, result.Rows[1].IsTied)
	assert.True(t, result.Rows[2].IsTied)

	require.NotNil(t, result.RankingDate)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *result.RankingDate)
	require.NotNil(t, result.UpdateDate)
	assert.Equal(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), *result.UpdateDate)
}

func TestScrapeNotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := newTestScraper(5).Scrape(context.Background(), srv.URL)

	// 404是"该期无数据"的正常信号，计为成功空页
	assert.Equal(t, StatusEmpty, result.Status)
	assert.True(t, result.Success())
	assert.Empty(t, result.Rows)
}

func TestScrapeServerErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := newTestScraper(5).Scrape(context.Background(), srv.URL)

	assert.Equal(t, StatusError, result.Status)
	assert.False(t, result.Success())
	assert.Contains(t, result.ErrorDetail, "500")
}

func TestScrapeEmptyTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><table><tr><th>順位</th></tr></table></body></html>`))
	}))
	defer srv.Close()

	result := newTestScraper(5).Scrape(context.Background(), srv.URL)

	assert.Equal(t, StatusEmpty, result.Status)
	assert.True(t, result.Success())
	assert.Empty(t, result.Rows)
}

func TestScrapeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	result := newTestScraper(1).Scrape(context.Background(), srv.URL)

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.ErrorDetail, "超时")
}

func TestScrapeContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := newTestScraper(5).Scrape(ctx, srv.URL)

	assert.Equal(t, StatusError, result.Status)
}
