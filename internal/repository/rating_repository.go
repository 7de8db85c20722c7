package repository

import (
	"context"
	"errors"

	"go-file-share/internal/model"
	"go-file-share/pkg/db"

	"gorm.io/gorm"
)

var (
	ErrUnknownFile = errors.New("file does not exist")
	ErrUnknownUser = errors.New("user does not exist")
)

// RatingRepository 处理评分持久化
type RatingRepository struct {
	store *db.Store
}

func NewRatingRepository(store *db.Store) *RatingRepository {
	return &RatingRepository{store: store}
}

// Upsert 写入或覆盖 (file_id, user_id) 的评分。
// 引用检查、查找和写入都在全局锁和同一个事务内完成，不依赖数据库的 ON CONFLICT。
// 返回 true 表示新建了记录。
func (r *RatingRepository) Upsert(ctx context.Context, rating *model.Rating) (created bool, err error) {
	err = r.store.Do(ctx, func(tx *gorm.DB) error {
		file, err := findFileByID(tx, rating.FileID)
		if err != nil {
			return err
		}
		if file == nil {
			return ErrUnknownFile
		}
		user, err := findUserBy(tx, "id = ?", rating.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUnknownUser
		}

		var existing model.Rating
		err = tx.Where("file_id = ? AND user_id = ?", rating.FileID, rating.UserID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(rating).Error
		case err != nil:
			return err
		}

		rating.ID = existing.ID
		return tx.Model(&existing).Updates(map[string]any{
			"score":    rating.Score,
			"rated_at": rating.RatedAt,
		}).Error
	})
	return created, err
}

// 查找某用户对某文件的评分
func (r *RatingRepository) FindByFileAndUser(ctx context.Context, fileID, userID uint) (*model.Rating, error) {
	var rating *model.Rating
	err := r.store.Do(ctx, func(tx *gorm.DB) error {
		var found model.Rating
		if err := tx.Where("file_id = ? AND user_id = ?", fileID, userID).First(&found).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		rating = &found
		return nil
	})
	return rating, err
}

// 统计 (file_id, user_id) 的评分行数
func (r *RatingRepository) CountByFileAndUser(ctx context.Context, fileID, userID uint) (int64, error) {
	var count int64
	err := r.store.Do(ctx, func(tx *gorm.DB) error {
		return tx.Model(&model.Rating{}).
			Where("file_id = ? AND user_id = ?", fileID, userID).
			Count(&count).Error
	})
	return count, err
}
