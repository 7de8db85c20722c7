package service

import (
	"context"
	"time"

	"go-file-share/internal/model"
	"go-file-share/internal/repository"
	"go-file-share/pkg/logger"

	errors "github.com/Laisky/errors/v2"
	"go.uber.org/zap"
)

const (
	MinScore = 1
	MaxScore = 5
)

// RatingService 评分账本
type RatingService struct {
	ratings *repository.RatingRepository
	now     func() time.Time
}

func NewRatingService(ratings *repository.RatingRepository) *RatingService {
	return &RatingService{ratings: ratings, now: time.Now}
}

// Rate 写入或覆盖评分。未知的文件或用户被拒绝，不允许悬空引用
func (s *RatingService) Rate(ctx context.Context, fileID, userID uint, score int) error {
	if score < MinScore || score > MaxScore {
		return ErrInvalidScore
	}

	rating := &model.Rating{
		FileID:  fileID,
		UserID:  userID,
		Score:   score,
		RatedAt: s.now().UTC(),
	}
	created, err := s.ratings.Upsert(ctx, rating)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownFile) || errors.Is(err, repository.ErrUnknownUser) {
			logger.L.Warn("Rating rejected: unknown reference",
				zap.Uint("fileID", fileID), zap.Uint("userID", userID), zap.Error(err))
			return ErrUnknownReference
		}
		return errors.Wrap(err, "upsert rating")
	}

	logger.L.Info("File rated",
		zap.Uint("fileID", fileID),
		zap.Uint("userID", userID),
		zap.Int("score", score),
		zap.Bool("created", created))
	return nil
}
