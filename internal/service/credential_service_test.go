package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/apply_go_server/internal/automation"
	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/testutil"
)

func TestCredentialService_SaveAndCurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := repository.NewCredentialRepository(db)
	svc := NewCredentialService(repo, testBox(t))
	ctx := context.Background()

	cur, err := svc.Current(ctx, "acme.wd5.myworkdayjobs.com")
	require.NoError(t, err)
	assert.Nil(t, cur)

	app := testutil.TestApplication(t, db)
	first, err := svc.Save(ctx, app.ID, automation.Credential{
		Site: "acme.wd5.myworkdayjobs.com", Username: "ada@example.com", Password: "first-Pa55!",
		Source: model.CredentialSourceProfile,
	})
	require.NoError(t, err)
	second, err := svc.Save(ctx, app.ID, automation.Credential{
		Site: "acme.wd5.myworkdayjobs.com", Username: "ada@example.com", Password: "second-Pa55!",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CredentialSourceGenerated, second.Source)

	cur, err = svc.Current(ctx, "acme.wd5.myworkdayjobs.com")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, second.ID, cur.ID)
	assert.Equal(t, "second-Pa55!", cur.Password)

	stored, err := repo.GetByID(first.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.SupersededAt)
	assert.NotContains(t, stored.PasswordCipher, "first-Pa55!")
	require.NotNil(t, stored.ApplicationID)
	assert.Equal(t, app.ID, *stored.ApplicationID)
}

func TestCredentialService_NoKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := repository.NewCredentialRepository(db)
	svc := NewCredentialService(repo, nil)
	ctx := context.Background()
	app := testutil.TestApplication(t, db)

	assert.NotPanics(t, func() {
		saved, err := svc.Save(ctx, app.ID, automation.Credential{
			Site: "x.myworkdayjobs.com", Username: "a@b.c", Password: "Pa55!",
		})
		assert.ErrorIs(t, err, ErrNoCredentialKey)
		assert.Nil(t, saved)
	})

	// 没有记录时不需要密钥
	cur, err := svc.Current(ctx, "x.myworkdayjobs.com")
	require.NoError(t, err)
	assert.Nil(t, cur)

	require.NoError(t, repo.CreateSuperseding(&model.Credential{
		Site: "x.myworkdayjobs.com", Username: "a@b.c", PasswordCipher: "sealed",
		Source: model.CredentialSourceProfile,
	}))
	assert.NotPanics(t, func() {
		cur, err := svc.Current(ctx, "x.myworkdayjobs.com")
		assert.ErrorIs(t, err, ErrNoCredentialKey)
		assert.Nil(t, cur)
	})
}
