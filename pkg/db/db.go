package db

import (
	"context"
	"fmt"
	"sync"

	"go-file-share/internal/model"
	"go-file-share/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store 包装数据库连接，所有访问都经过同一把全局锁串行执行
type Store struct {
	mu sync.Mutex
	db *gorm.DB
}

// 初始化数据库连接并自动迁移
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 自动迁移模式
	if err := gdb.AutoMigrate(&model.User{}, &model.FileRecord{}, &model.Rating{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.L.Info("Database connected and migrated successfully", zap.String("driver", driver))
	return &Store{db: gdb}, nil
}

// Do 持有全局锁，在一个事务中执行 fn
func (s *Store) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(fn)
}

// 关闭底层连接池
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
