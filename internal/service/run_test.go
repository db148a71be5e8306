package service

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunManagerCompletesRun(t *testing.T) {
	upstream := newFakeArchive()
	upstream.pages["202401vet/gs45"] = rankingPage("2024年1月31日付")
	srv := httptest.NewServer(upstream.handler())
	defer srv.Close()

	db := newTestDB(t)
	svc := newTestService(t, db, srv.URL)
	lg := logrus.New()
	lg.SetLevel(logrus.ErrorLevel)
	manager := NewRunManager(db, svc, lg)
	ctx := context.Background()

	runUUID, err := manager.StartArchiveRun(ctx, ArchiveRunOptions{
		StartYear: 2024, StartMonth: 1,
		EndYear: 2024, EndMonth: 1,
		CategoryCode: "gs45",
	})
	require.NoError(t, err)
	require.NotEmpty(t, runUUID)

	// 启动立即返回，进度通过轮询获得
	require.Eventually(t, func() bool {
		run, err := manager.Get(ctx, runUUID)
		require.NoError(t, err)
		require.NotNil(t, run)
		return run.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	run, err := manager.Get(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.TotalItems)
	assert.Equal(t, 1, run.SuccessfulItems)
	assert.Zero(t, run.FailedItems)
	assert.NotNil(t, run.FinishedAt)
}

func TestRunManagerStop(t *testing.T) {
	upstream := newFakeArchive()
	srv := httptest.NewServer(upstream.handler())
	defer srv.Close()

	db := newTestDB(t)
	// 放大条目间隔，保证取消发生在运行中
	svc := newTestService(t, db, srv.URL)
	svc.cfg.Scrape.RequestDelayMs = 200

	lg := logrus.New()
	lg.SetLevel(logrus.ErrorLevel)
	manager := NewRunManager(db, svc, lg)
	ctx := context.Background()

	runUUID, err := manager.StartArchiveRun(ctx, ArchiveRunOptions{
		StartYear: 2020, StartMonth: 1,
		EndYear: 2024, EndMonth: 12,
	})
	require.NoError(t, err)

	assert.True(t, manager.Stop(runUUID))

	require.Eventually(t, func() bool {
		run, err := manager.Get(ctx, runUUID)
		require.NoError(t, err)
		require.NotNil(t, run)
		return run.Status == "canceled"
	}, 5*time.Second, 20*time.Millisecond)

	// 已结束的运行再次Stop返回false
	assert.Eventually(t, func() bool {
		return !manager.Stop(runUUID)
	}, time.Second, 10*time.Millisecond)
}

func TestRunManagerGetUnknown(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, "http://127.0.0.1:0")
	lg := logrus.New()
	lg.SetLevel(logrus.ErrorLevel)
	manager := NewRunManager(db, svc, lg)

	run, err := manager.Get(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.False(t, manager.Stop("no-such-run"))
}
