package repository

import (
	"context"
	"testing"

	"go-file-share/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFile(t *testing.T, repo *FileRepository, owner *model.User, name, fileType string) *model.FileRecord {
	file := &model.FileRecord{Name: name, Size: int64(len(name)), Type: fileType, OwnerID: owner.ID}
	require.NoError(t, repo.Create(context.Background(), file))
	require.NotZero(t, file.ID)
	return file
}

func TestFileRepository_CreateAndFind(t *testing.T) {
	store := setupTestDB(t)
	users := NewUserRepository(store)
	files := NewFileRepository(store)
	ctx := context.Background()

	owner := createTestUser(t, users, "owner")
	file := createTestFile(t, files, owner, "report.pdf", "pdf")

	found, err := files.FindByID(ctx, file.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "report.pdf", found.Name)
	assert.Equal(t, "pdf", found.Type)
	assert.Equal(t, owner.ID, found.OwnerID)
	assert.False(t, found.CreatedAt.IsZero())

	missing, err := files.FindByID(ctx, file.ID+1)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFileRepository_SameNameGetsSeparateRows(t *testing.T) {
	store := setupTestDB(t)
	users := NewUserRepository(store)
	files := NewFileRepository(store)

	owner := createTestUser(t, users, "owner")
	first := createTestFile(t, files, owner, "notes.txt", "txt")
	second := createTestFile(t, files, owner, "notes.txt", "txt")

	assert.NotEqual(t, first.ID, second.ID)
}
