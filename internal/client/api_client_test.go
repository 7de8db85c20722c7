package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Flow(t *testing.T) {
	server, _ := setupServer(t)
	ctx := context.Background()
	api := NewAPIClient(server.URL+"/", 2*time.Second)
	assert.Equal(t, server.URL, api.BaseURL())

	aliceID, err := api.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.NotZero(t, aliceID)

	_, err = api.Register(ctx, "alice", "pw2")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "Username already exists.", apiErr.Message)

	_, err = api.Login(ctx, "alice", "wrong")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.Status)

	login, err := api.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, aliceID, login.UserID)
	assert.Equal(t, "alice", login.Username)
	assert.NotEmpty(t, login.Token)

	src := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF report"), 0o644))
	fileID, err := api.RegisterFile(ctx, login.UserID, login.Username, src)
	require.NoError(t, err)
	assert.NotZero(t, fileID)

	files, err := api.Search(ctx, "report", "pdf")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, fileID, files[0].ID)
	assert.Equal(t, 0.0, files[0].AverageRating)

	require.NoError(t, api.Rate(ctx, fileID, login.UserID, 4))
	err = api.Rate(ctx, fileID, login.UserID, 9)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)

	mine, err := api.SharedBy(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 4.0, mine[0].AverageRating)
	assert.Equal(t, int64(1), mine[0].RatingCount)

	destDir := filepath.Join(t.TempDir(), "downloads")
	path, err := api.Download(ctx, fileID, destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "report.pdf"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF report", string(data))

	_, err = api.Download(ctx, fileID+100, destDir)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, "File not found.", apiErr.Message)
}

func TestAPIClient_Unreachable(t *testing.T) {
	api := NewAPIClient("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := api.Search(context.Background(), "", "")
	assert.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures are not server responses")
}
