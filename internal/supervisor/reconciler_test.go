package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/testutil"
)

func TestReconciler_Reconcile(t *testing.T) {
	tests := []struct {
		name       string
		policy     string
		wantStatus string
		wantReason string
		wantResult ReconcileResult
	}{
		{
			name:       "fail policy",
			policy:     PolicyFail,
			wantStatus: model.StatusFailedWorkerException,
			wantReason: model.ReasonOrphaned,
			wantResult: ReconcileResult{Failed: 1},
		},
		{
			name:       "requeue policy",
			policy:     PolicyRequeue,
			wantStatus: model.StatusQueued,
			wantReason: model.ReasonOrphaned,
			wantResult: ReconcileResult{Requeued: 1},
		},
		{
			name:       "unknown policy falls back to fail",
			policy:     "retry",
			wantStatus: model.StatusFailedWorkerException,
			wantReason: model.ReasonOrphaned,
			wantResult: ReconcileResult{Failed: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t)
			app := testutil.TestApplication(t, f.db, testutil.WithClaim("dead", 9))
			queued := testutil.TestApplication(t, f.db)

			result, err := f.reconciler(tt.policy).Reconcile(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, *result)

			stored, err := f.appRepo.GetByID(app.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.Equal(t, tt.wantReason, stored.StatusReason)

			entries, err := f.logRepo.ListByApplication(app.ID)
			require.NoError(t, err)
			require.Len(t, entries, 1)

			// 非处理中的申请不受影响
			stored, err = f.appRepo.GetByID(queued.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusQueued, stored.Status)
			assert.Empty(t, stored.StatusReason)
		})
	}
}

func TestReconciler_Requeue_KeepsFIFOPosition(t *testing.T) {
	f := setupFixture(t)
	base := time.Now().Add(-time.Hour)

	orphan := testutil.TestApplication(t, f.db, testutil.WithCreatedAt(base), testutil.WithClaim("dead", 9))
	later := testutil.TestApplication(t, f.db, testutil.WithCreatedAt(base.Add(time.Minute)))

	_, err := f.reconciler(PolicyRequeue).Reconcile(context.Background(), nil)
	require.NoError(t, err)

	first, err := f.appRepo.Claim("w1", 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, orphan.ID, first.ID)
	assert.NotEqual(t, later.ID, first.ID)
}

func TestReconciler_SkipsLiveOwners(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	child := testutil.TestApplication(t, f.db, testutil.WithClaim("child", 1))
	beating := testutil.TestApplication(t, f.db, testutil.WithClaim("beating", 2))
	require.NoError(t, f.client.Set(ctx, "worker:heartbeat:beating", "2", time.Minute).Err())

	result, err := f.reconciler(PolicyFail).Reconcile(ctx, func(instance string) bool {
		return instance == "child"
	})
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, *result)

	for _, id := range []int64{child.ID, beating.ID} {
		stored, err := f.appRepo.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusProcessing, stored.Status)
	}
}

func TestReconciler_HeartbeatUnavailable(t *testing.T) {
	f := setupFixture(t)
	app := testutil.TestApplication(t, f.db, testutil.WithClaim("unknown", 3))
	f.mr.Close()

	// redis 不可用时无法确认存活，保持不动
	result, err := f.reconciler(PolicyFail).Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, *result)

	stored, err := f.appRepo.GetByID(app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, stored.Status)
}

func TestReconciler_FailWorker(t *testing.T) {
	f := setupFixture(t)
	mine := testutil.TestApplication(t, f.db, testutil.WithClaim("w1", 1))
	other := testutil.TestApplication(t, f.db, testutil.WithClaim("w2", 2))

	n, err := f.reconciler(PolicyRequeue).FailWorker(context.Background(), "w1", "worker exited unexpectedly: signal: killed")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.appRepo.GetByID(mine.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailedWorkerException, stored.Status)
	assert.Equal(t, model.ReasonWorkerException, stored.StatusReason)
	assert.Equal(t, "worker exited unexpectedly: signal: killed", stored.ErrorMessage)

	stored, err = f.appRepo.GetByID(other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, stored.Status)
}

func TestReconciler_ReconcileWorker_IgnoresHeartbeat(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	app := testutil.TestApplication(t, f.db, testutil.WithClaim("killed", 5))
	// 被强杀的进程来不及删除心跳
	require.NoError(t, f.client.Set(ctx, "worker:heartbeat:killed", "5", time.Minute).Err())

	result, err := f.reconciler(PolicyRequeue).ReconcileWorker(ctx, "killed")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Requeued)

	stored, err := f.appRepo.GetByID(app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, stored.Status)
}
