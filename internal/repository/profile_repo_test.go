package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/testutil"
)

func TestProfileRepository_Get(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)

	_, err := repo.Get()
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	created := testutil.TestProfile(t, db)
	profile, err := repo.Get()
	require.NoError(t, err)
	assert.Equal(t, created.ID, profile.ID)
	assert.Equal(t, model.PasswordStrategyGenerate, profile.PasswordStrategy)
}

func TestProfileRepository_Candidates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)
	require.NoError(t, repo.AddCandidate(&model.ProfileCandidate{Field: model.FieldEmail, Value: "ada@work.example", Source: "resume"}))

	candidates, err := repo.ListCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "resume", candidates[0].Source)
}

func TestProfileRepository_SaveResolution(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)

	require.NoError(t, repo.SaveResolution(model.FieldEmail, "ada@example.com"))
	require.NoError(t, repo.SaveResolution(model.FieldEmail, "ada@work.example"))

	resolutions, err := repo.ListResolutions()
	require.NoError(t, err)
	require.Len(t, resolutions, 1)
	assert.Equal(t, "ada@work.example", resolutions[0].ChosenValue)
}
