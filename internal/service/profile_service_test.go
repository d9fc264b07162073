package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/automation"
	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/pkg/secret"
	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/testutil"
)

func testBox(t *testing.T) *secret.Box {
	t.Helper()
	key, err := secret.GenerateKey()
	require.NoError(t, err)
	box, err := secret.NewBox(key)
	require.NoError(t, err)
	return box
}

func setupProfileService(t *testing.T) (*ProfileService, *gorm.DB, *secret.Box) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	box := testBox(t)
	return NewProfileService(repository.NewProfileRepository(db), box), db, box
}

func TestProfileService_Consolidated_NoProfile(t *testing.T) {
	svc, _, _ := setupProfileService(t)

	_, err := svc.Consolidated(context.Background())
	assert.ErrorIs(t, err, automation.ErrNoProfile)

	_, err = svc.Conflicts()
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileService_Consolidated(t *testing.T) {
	svc, db, box := setupProfileService(t)

	cipher, err := box.Seal("default-Pa55!")
	require.NoError(t, err)
	testutil.TestProfile(t, db, func(p *model.Profile) {
		p.DefaultPasswordCipher = cipher
		p.PasswordStrategy = ""
	})
	// 大小写不同的同一邮箱不算冲突
	testutil.TestCandidate(t, db, model.FieldEmail, " ADA@example.com ", "resume")

	profile, err := svc.Consolidated(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profile.Conflicts)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "Ada", profile.FirstName)
	assert.Equal(t, "default-Pa55!", profile.DefaultPassword)
	assert.Equal(t, model.PasswordStrategyGenerate, profile.PasswordStrategy)
}

func TestProfileService_ConflictGate(t *testing.T) {
	svc, db, _ := setupProfileService(t)
	ctx := context.Background()

	testutil.TestProfile(t, db)
	testutil.TestCandidate(t, db, model.FieldEmail, "ada@work.example", "linkedin")
	testutil.TestCandidate(t, db, model.FieldPhone, "+44 20 7946 0000", "resume")

	profile, err := svc.Consolidated(ctx)
	require.NoError(t, err)
	require.Len(t, profile.Conflicts, 1)
	assert.Equal(t, model.FieldEmail, profile.Conflicts[0].Field)
	assert.Equal(t, []string{"ada@example.com", "ada@work.example"}, profile.Conflicts[0].Candidates)

	conflicts, err := svc.Conflicts()
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	assert.ErrorIs(t, svc.ResolveConflict(model.FieldEmail, "someone@else.example"), ErrValueNotCandidate)
	assert.ErrorIs(t, svc.ResolveConflict("address", "x"), ErrUnknownField)
	require.NoError(t, svc.ResolveConflict(model.FieldEmail, "ADA@work.example"))

	profile, err = svc.Consolidated(ctx)
	require.NoError(t, err)
	assert.Empty(t, profile.Conflicts)
	assert.Equal(t, "ada@work.example", profile.Email)

	conflicts, err = svc.Conflicts()
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestProfileService_ImportYAML(t *testing.T) {
	svc, _, _ := setupProfileService(t)
	ctx := context.Background()

	doc := `
first_name: Ada
last_name: Lovelace
email: ada@example.com
phone: "+44 20 7946 0000"
resume_path: /data/resume.pdf
default_password: s3cret-Pass
password_strategy: ask
candidates:
  - field: email
    value: ada@work.example
    source: linkedin
  - field: email
    value: "  "
`
	saved, err := svc.ImportYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.NotContains(t, saved.DefaultPasswordCipher, "s3cret-Pass")

	profile, err := svc.Consolidated(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.FirstName)
	assert.Equal(t, "s3cret-Pass", profile.DefaultPassword)
	assert.Equal(t, model.PasswordStrategyAsk, profile.PasswordStrategy)
	require.Len(t, profile.Conflicts, 1)

	// 再次导入覆盖同一份资料
	again, err := svc.ImportYAML(strings.NewReader("first_name: Augusta\nemail: ada@example.com\n"))
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)

	profile, err = svc.Consolidated(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Augusta", profile.FirstName)
	assert.Equal(t, model.PasswordStrategyGenerate, profile.PasswordStrategy)
	assert.Equal(t, "s3cret-Pass", profile.DefaultPassword)
}

func TestProfileService_ImportYAML_Invalid(t *testing.T) {
	svc, _, _ := setupProfileService(t)

	_, err := svc.ImportYAML(strings.NewReader("password_strategy: guess\n"))
	assert.ErrorIs(t, err, ErrInvalidStrategy)

	_, err = svc.ImportYAML(strings.NewReader("first_name: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidImport)
}
