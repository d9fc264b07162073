package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/apply_go_server/internal/automation"
	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/testutil"
)

func TestRecorder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, pubsub.DefaultChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	appRepo := repository.NewApplicationRepository(db)
	logRepo := repository.NewLogRepository(db)
	testutil.TestApplication(t, db)
	app, err := appRepo.Claim("w1", 7)
	require.NoError(t, err)

	rec := NewRecorder(appRepo, logRepo, pubsub.NewPublisher(client, ""), app.ID, "w1")
	// 其他 worker 的记录器不能写入平台
	NewRecorder(appRepo, logRepo, nil, app.ID, "w9").SetPlatform(ctx, "lever")

	rec.Log(ctx, model.LevelWarning, automation.StateDetect, "platform not recognized", "")
	rec.SetPlatform(ctx, "workday")
	rec.SetPlatform(ctx, "greenhouse")
	rec.SetDetails(ctx, "SRE", "")

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var ev pubsub.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, pubsub.EventLog, ev.Type)
	assert.Equal(t, app.ID, ev.ApplicationID)
	assert.Equal(t, "w1", ev.Worker)
	assert.Equal(t, automation.StateDetect, ev.State)

	entries, err := logRepo.ListByApplication(app.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.LevelWarning, entries[0].Level)

	stored, err := appRepo.GetByID(app.ID)
	require.NoError(t, err)
	assert.Equal(t, "workday", stored.DetectedPlatform)
	assert.Equal(t, "SRE", stored.JobTitle)
	assert.Equal(t, "unknown", stored.CompanyName)

	// 失去所有权后不能再关联账号
	require.NoError(t, appRepo.Release(app.ID, "w1", repository.Outcome{Status: model.StatusFailed}))
	assert.ErrorIs(t, rec.SetCredential(ctx, 5), repository.ErrNotOwner)
}
