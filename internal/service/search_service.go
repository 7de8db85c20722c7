package service

import (
	"context"
	"math"

	"go-file-share/internal/model"
	"go-file-share/internal/repository"
	"go-file-share/pkg/logger"

	errors "github.com/Laisky/errors/v2"
	"go.uber.org/zap"
)

// SearchService 在目录和评分上做过滤查询
type SearchService struct {
	search *repository.SearchRepository
}

func NewSearchService(search *repository.SearchRepository) *SearchService {
	return &SearchService{search: search}
}

// Search 返回名称包含 query（区分大小写）且类型等于 fileType（为空时不过滤）的文件，
// 按文件ID升序。每次调用都重新查询当前数据。
func (s *SearchService) Search(ctx context.Context, query, fileType string) ([]model.FileView, error) {
	views, err := s.search.Search(ctx, query, fileType)
	if err != nil {
		return nil, errors.Wrap(err, "search files")
	}
	for i := range views {
		views[i].AverageRating = roundRating(views[i].AverageRating)
	}

	logger.L.Info("Search performed",
		zap.String("query", query),
		zap.String("type", fileType),
		zap.Int("found", len(views)))
	return views, nil
}

// FilesSharedBy 返回某个用户分享的所有文件
func (s *SearchService) FilesSharedBy(ctx context.Context, username string) ([]model.FileView, error) {
	all, err := s.Search(ctx, "", "")
	if err != nil {
		return nil, err
	}
	mine := make([]model.FileView, 0, len(all))
	for _, v := range all {
		if v.SharedBy == username {
			mine = append(mine, v)
		}
	}
	return mine, nil
}

// 保留两位小数
func roundRating(avg float64) float64 {
	return math.Round(avg*100) / 100
}
