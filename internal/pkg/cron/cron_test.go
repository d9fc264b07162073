package cron

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/apply_go_server/internal/model/dto"
	"github.com/qs3c/apply_go_server/internal/supervisor"
)

type countingReconciler struct {
	calls atomic.Int32
	state atomic.Value
}

func newCountingReconciler(state string) *countingReconciler {
	r := &countingReconciler{}
	r.state.Store(state)
	return r
}

func (r *countingReconciler) Status() *dto.ManagerStatus {
	return &dto.ManagerStatus{ManagerStatus: r.state.Load().(string)}
}

func (r *countingReconciler) Reconcile(context.Context) (*supervisor.ReconcileResult, error) {
	r.calls.Add(1)
	return &supervisor.ReconcileResult{}, nil
}

func TestNewService(t *testing.T) {
	svc := NewService(nil, 0, "", 0)
	assert.NotNil(t, svc)
	assert.Equal(t, time.Minute, svc.sweepInterval)
	assert.Zero(t, svc.retention)
	assert.NotNil(t, svc.stopChan)
}

func TestService_StartAndStop(t *testing.T) {
	rec := newCountingReconciler(supervisor.StatusRunning)
	svc := NewService(rec, 10*time.Millisecond, "", 0)

	svc.Start()
	assert.Eventually(t, func() bool {
		return rec.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	svc.Stop()
	calls := rec.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, rec.calls.Load())

	// 重复停止不会 panic
	svc.Stop()
}

func TestService_Sweep_NilReconciler(t *testing.T) {
	svc := NewService(nil, time.Second, "", 0)
	assert.NotPanics(t, svc.Sweep)
}

func TestService_Sweep_OnlyWhenRunning(t *testing.T) {
	rec := newCountingReconciler(supervisor.StatusStopped)
	svc := NewService(rec, time.Second, "", 0)

	// 未获得单例锁的实例看不到别人的子进程，不能对账
	svc.Sweep()
	assert.Zero(t, rec.calls.Load())

	rec.state.Store(supervisor.StatusCrashed)
	svc.Sweep()
	assert.Zero(t, rec.calls.Load())

	rec.state.Store(supervisor.StatusRunning)
	svc.Sweep()
	assert.Equal(t, int32(1), rec.calls.Load())
}

func TestService_CleanupScreenshots(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	write := func(name string, age time.Duration) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
		require.NoError(t, os.Chtimes(path, now.Add(-age), now.Add(-age)))
		return path
	}

	old := write("app_1_review_1.png", 10*24*time.Hour)
	fresh := write("app_2_review_2.png", time.Hour)
	other := write("notes.txt", 30*24*time.Hour)

	svc := NewService(nil, time.Minute, dir, 7)
	assert.Equal(t, 1, svc.CleanupScreenshots(now))

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestService_CleanupScreenshots_Disabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app_1_review_1.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	past := time.Now().Add(-365 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	svc := NewService(nil, time.Minute, dir, 0)
	assert.Zero(t, svc.CleanupScreenshots(time.Now()))
	assert.FileExists(t, path)
}
