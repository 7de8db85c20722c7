package repository

import (
	"context"
	"testing"
	"time"

	"go-file-share/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRepository_FiltersAndAggregates(t *testing.T) {
	store := setupTestDB(t)
	users := NewUserRepository(store)
	files := NewFileRepository(store)
	ratings := NewRatingRepository(store)
	search := NewSearchRepository(store)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	report := createTestFile(t, files, alice, "report.pdf", "pdf")
	createTestFile(t, files, alice, "Report-old.pdf", "pdf")
	createTestFile(t, files, bob, "report.txt", "txt")
	createTestFile(t, files, bob, "100%_done.txt", "txt")

	for _, r := range []struct {
		user  *model.User
		score int
	}{{alice, 3}, {bob, 4}} {
		_, err := ratings.Upsert(ctx, &model.Rating{FileID: report.ID, UserID: r.user.ID, Score: r.score, RatedAt: time.Now()})
		require.NoError(t, err)
	}

	all, err := search.Search(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID, "results are ordered by id")
	}

	// 区分大小写的子串匹配
	hits, err := search.Search(ctx, "report", "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "report.pdf", hits[0].Name)
	assert.Equal(t, "report.txt", hits[1].Name)

	hits, err = search.Search(ctx, "report", "pdf")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, report.ID, hits[0].ID)
	assert.Equal(t, "alice", hits[0].SharedBy)
	assert.InDelta(t, 3.5, hits[0].AverageRating, 1e-9)
	assert.Equal(t, int64(2), hits[0].RatingCount)

	// LIKE 通配符按字面量处理
	hits, err = search.Search(ctx, "%_", "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "100%_done.txt", hits[0].Name)

	hits, err = search.Search(ctx, "report", "PDF")
	require.NoError(t, err)
	assert.Empty(t, hits)
}
