package repository

import (
	"context"
	"errors"

	"go-file-share/internal/model"
	"go-file-share/pkg/db"

	"gorm.io/gorm"
)

// ErrDuplicateUsername 用户名已存在
var ErrDuplicateUsername = errors.New("username already exists")

// UserRepository 处理用户数据持久化
type UserRepository struct {
	store *db.Store
}

// 创建一个新的用户存储库实例
func NewUserRepository(store *db.Store) *UserRepository {
	return &UserRepository{store: store}
}

// 新建用户，检查与插入在同一把锁内完成
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.store.Do(ctx, func(tx *gorm.DB) error {
		existing, err := findUserBy(tx, "username = ?", user.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateUsername
		}
		return tx.Create(user).Error
	})
}

// 通过用户名查找用户
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user *model.User
	err := r.store.Do(ctx, func(tx *gorm.DB) (err error) {
		user, err = findUserBy(tx, "username = ?", username)
		return err
	})
	return user, err
}

// 通过ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user *model.User
	err := r.store.Do(ctx, func(tx *gorm.DB) (err error) {
		user, err = findUserBy(tx, "id = ?", id)
		return err
	})
	return user, err
}

func findUserBy(tx *gorm.DB, query string, args ...any) (*model.User, error) {
	var user model.User
	if err := tx.Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return &user, nil
}
