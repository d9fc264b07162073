package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/testutil"
)

func TestAnswerService_CRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	svc := NewAnswerService(repository.NewAnswerRepository(db))

	_, err := svc.Create("  ", "Yes")
	assert.ErrorIs(t, err, ErrEmptyAnswer)

	sa, err := svc.Create(" Are you authorized to work? ", "Yes")
	require.NoError(t, err)
	assert.Equal(t, "Are you authorized to work?", sa.Question)

	updated, err := svc.Update(sa.ID, sa.Question, "No")
	require.NoError(t, err)
	assert.Equal(t, "No", updated.Answer)

	_, err = svc.Update(9999, "q", "a")
	assert.ErrorIs(t, err, ErrAnswerNotFound)

	answers, err := svc.StandardAnswers(context.Background())
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "No", answers[0].Answer)
	assert.False(t, answers[0].UpdatedAt.IsZero())
}

func TestAnswerService_ImportYAML(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	svc := NewAnswerService(repository.NewAnswerRepository(db))
	testutil.TestAnswer(t, db, "Will you require sponsorship?", "Yes")

	doc := `
- question: Will you require sponsorship?
  answer: "No"
- question: Are you willing to relocate?
  answer: "Yes"
- question: ""
  answer: orphan
`
	res, err := svc.ImportYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Created: 1, Updated: 1, Skipped: 1}, res)

	all, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.ImportYAML(strings.NewReader("question: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidImport)
}
