package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/testutil"
)

func TestDocumentService_CoverLetter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := NewDocumentService(repository.NewDocumentRepository(db), true)
	app := testutil.TestApplication(t, db)

	letter, auto, err := svc.CoverLetter(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Nil(t, letter)
	assert.True(t, auto)

	_, err = svc.Register(app.ID, model.DocumentKindCoverLetter, "/docs/old.pdf")
	require.NoError(t, err)
	_, err = svc.Register(app.ID, model.DocumentKindCoverLetter, "/docs/new.pdf")
	require.NoError(t, err)

	letter, _, err = svc.CoverLetter(context.Background(), app.ID)
	require.NoError(t, err)
	require.NotNil(t, letter)
	assert.Equal(t, "/docs/new.pdf", letter.Path)

	off := NewDocumentService(repository.NewDocumentRepository(db), false)
	_, auto, err = off.CoverLetter(context.Background(), app.ID)
	require.NoError(t, err)
	assert.False(t, auto)
}
