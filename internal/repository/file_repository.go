package repository

import (
	"context"
	"errors"

	"go-file-share/internal/model"
	"go-file-share/pkg/db"

	"gorm.io/gorm"
)

// FileRepository 处理文件目录的持久化
type FileRepository struct {
	store *db.Store
}

func NewFileRepository(store *db.Store) *FileRepository {
	return &FileRepository{store: store}
}

// 登记文件，名称、大小、类型、所有者在同一条 INSERT 中写入
func (r *FileRepository) Create(ctx context.Context, file *model.FileRecord) error {
	return r.store.Do(ctx, func(tx *gorm.DB) error {
		return tx.Create(file).Error
	})
}

// 通过ID查找文件记录，不存在时返回 nil, nil
func (r *FileRepository) FindByID(ctx context.Context, id uint) (*model.FileRecord, error) {
	var file *model.FileRecord
	err := r.store.Do(ctx, func(tx *gorm.DB) (err error) {
		file, err = findFileByID(tx, id)
		return err
	})
	return file, err
}

func findFileByID(tx *gorm.DB, id uint) (*model.FileRecord, error) {
	var file model.FileRecord
	if err := tx.First(&file, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}
