package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go-file-share/internal/model"
	"go-file-share/internal/repository"
	"go-file-share/internal/storage"
	"go-file-share/pkg/logger"

	errors "github.com/Laisky/errors/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	fileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fileshare_file_cache_hits_total",
		Help: "Lookups of file records served from the LRU cache.",
	})
	fileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fileshare_file_cache_misses_total",
		Help: "Lookups of file records that went to the database.",
	})
)

// ContentStore 保存文件内容，相同名称的内容会被覆盖
type ContentStore interface {
	Put(name string, data []byte) (int64, error)
	Get(name string) ([]byte, error)
}

// FileService 管理文件目录：登记文件和读取内容
type FileService struct {
	files       *repository.FileRepository
	users       *repository.UserRepository
	content     ContentStore
	cache       *expirable.LRU[uint, *model.FileRecord]
	maxFileSize int64
}

// NewFileService 创建新的文件服务。文件记录登记后不会修改，按ID缓存是安全的
func NewFileService(files *repository.FileRepository, users *repository.UserRepository, content ContentStore,
	cacheSize int, cacheTTL time.Duration, maxFileSize int64) *FileService {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &FileService{
		files:       files,
		users:       users,
		content:     content,
		cache:       expirable.NewLRU[uint, *model.FileRecord](cacheSize, nil, cacheTTL),
		maxFileSize: maxFileSize,
	}
}

// MaxFileSize 单个文件的大小上限，0 表示不限制
func (s *FileService) MaxFileSize() int64 {
	return s.maxFileSize
}

// RegisterFileRequest 登记文件请求，OwnerName 为空时不校验用户名
type RegisterFileRequest struct {
	OwnerID   uint
	OwnerName string
	FileName  string
	Content   []byte
}

// RegisterFile 保存内容并登记元数据。
// 净化后的名称与已有文件相同时直接覆盖磁盘内容，目录中保留两条记录。
func (s *FileService) RegisterFile(ctx context.Context, req RegisterFileRequest) (*model.FileRecord, error) {
	name := storage.SanitizeName(req.FileName)
	if name == "" {
		return nil, ErrEmptyFilename
	}
	if s.maxFileSize > 0 && int64(len(req.Content)) > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	owner, err := s.users.FindByID(ctx, req.OwnerID)
	if err != nil {
		return nil, errors.Wrap(err, "find owner")
	}
	if owner == nil {
		return nil, ErrUnknownReference
	}
	if req.OwnerName != "" && req.OwnerName != owner.Username {
		return nil, ErrOwnerMismatch
	}

	size, err := s.content.Put(name, req.Content)
	if err != nil {
		return nil, errors.Wrapf(err, "store content %q", name)
	}

	record := &model.FileRecord{
		Name:    name,
		Size:    size,
		Type:    storage.TypeTag(name),
		OwnerID: owner.ID,
	}
	if err := s.files.Create(ctx, record); err != nil {
		return nil, errors.Wrap(err, "create file record")
	}
	s.cache.Add(record.ID, record)

	logger.L.Info("File registered",
		zap.Uint("fileID", record.ID),
		zap.String("name", record.Name),
		zap.Int64("size", record.Size),
		zap.Uint("ownerID", owner.ID))
	return record, nil
}

// GetFile 返回文件记录，不存在时返回 ErrFileNotFound
func (s *FileService) GetFile(ctx context.Context, fileID uint) (*model.FileRecord, error) {
	if record, ok := s.cache.Get(fileID); ok {
		fileCacheHits.Inc()
		return record, nil
	}
	fileCacheMisses.Inc()

	record, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		return nil, errors.Wrap(err, "find file record")
	}
	if record == nil {
		return nil, ErrFileNotFound
	}
	s.cache.Add(record.ID, record)
	return record, nil
}

// FetchContent 返回文件记录和内容。记录存在但内容缺失时同样视为不存在
func (s *FileService) FetchContent(ctx context.Context, fileID uint) (*model.FileRecord, []byte, error) {
	record, err := s.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.content.Get(record.Name)
	if err != nil {
		if errors.Is(err, storage.ErrContentMissing) {
			logger.L.Warn("File record without content",
				zap.Uint("fileID", fileID), zap.String("name", record.Name))
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, errors.Wrap(err, "read content")
	}
	return record, data, nil
}

// ParseID 解析客户端传来的数字ID
func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, NewError(CodeValidation, fmt.Sprintf("invalid id %q", raw))
	}
	return uint(id), nil
}
