package repository

import (
	"context"
	"strings"

	"go-file-share/internal/model"
	"go-file-share/pkg/db"

	"gorm.io/gorm"
)

// SearchRepository 连接 files、users、ratings 做过滤和评分汇总
type SearchRepository struct {
	store *db.Store
}

func NewSearchRepository(store *db.Store) *SearchRepository {
	return &SearchRepository{store: store}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Search 按名称子串和可选的类型过滤，结果按文件ID升序。
// LIKE 只做预过滤（大小写规则随数据库排序规则变化），精确匹配在内存中完成。
// AverageRating 为未舍入的平均值。
func (r *SearchRepository) Search(ctx context.Context, query, fileType string) ([]model.FileView, error) {
	var rows []model.FileView
	err := r.store.Do(ctx, func(tx *gorm.DB) error {
		q := tx.Table("files AS f").
			Select("f.id AS id, f.name AS name, f.size AS size, f.type AS type, " +
				"u.username AS shared_by, COALESCE(AVG(r.score), 0) AS average_rating, COUNT(r.id) AS rating_count").
			Joins("JOIN users u ON u.id = f.owner_id").
			Joins("LEFT JOIN ratings r ON r.file_id = f.id")
		if query != "" {
			q = q.Where("f.name LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(query)+"%")
		}
		if fileType != "" {
			q = q.Where("f.type = ?", fileType)
		}
		return q.Group("f.id, f.name, f.size, f.type, u.username").
			Order("f.id ASC").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	views := make([]model.FileView, 0, len(rows))
	for _, row := range rows {
		if !strings.Contains(row.Name, query) {
			continue
		}
		if fileType != "" && row.Type != fileType {
			continue
		}
		views = append(views, row)
	}
	return views, nil
}
