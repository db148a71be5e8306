package main

import (
	"flag"
	"log"
	"time"

	"RankSync/internal/batch"
	"RankSync/internal/service"

	"github.com/sirupsen/logrus"
)

// 客户端批量驱动器入口：逐条调用服务端单条目同步接口，
// 适合在服务端之外的机器上分担长时间的全量补档
func main() {
	var (
		server       = flag.String("server", "http://localhost:8080", "同步服务地址")
		startYear    = flag.Int("start-year", 2004, "起始年份")
		startMonth   = flag.Int("start-month", 1, "起始月份")
		endYear      = flag.Int("end-year", 0, "结束年份（0则到当前月）")
		endMonth     = flag.Int("end-month", 0, "结束月份")
		delayMs      = flag.Int("delay-ms", 1000, "条目间隔（毫秒）")
		batchSize    = flag.Int("batch-size", 100, "每批条目数")
		pauseMs      = flag.Int("pause-ms", 5000, "批次间暂停（毫秒）")
		skipExisting = flag.Bool("skip-existing", true, "跳过已成功同步的条目")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	driver := batch.NewDriver(batch.Options{
		ServerBaseURL: *server,
		RequestDelay:  time.Duration(*delayMs) * time.Millisecond,
		BatchSize:     *batchSize,
		BatchPause:    time.Duration(*pauseMs) * time.Millisecond,
		OnProgress: func(p service.Progress) {
			logger.Infof("进度: %d/%d 成功:%d 失败:%d 当前:%s",
				p.ProcessedItems, p.TotalItems, p.SuccessfulItems, p.FailedItems, p.CurrentItem)
		},
	}, logger)

	driver.BuildQueue(*startYear, *startMonth, *endYear, *endMonth)

	progress, err := driver.Start(*skipExisting)
	if err != nil {
		log.Fatalf("批量同步中断: %v", err)
	}
	logger.Infof("批量同步完成: 共%d 成功%d 失败%d",
		progress.TotalItems, progress.SuccessfulItems, progress.FailedItems)
	for _, e := range progress.Errors {
		logger.Warnf("失败条目 %s: %s", e.Item, e.Error)
	}
}
