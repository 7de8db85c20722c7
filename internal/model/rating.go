package model

import "time"

// Rating 每个 (文件, 用户) 最多一条，重复评分覆盖原记录
type Rating struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	FileID  uint      `gorm:"not null;uniqueIndex:idx_rating_file_user" json:"file_id"`
	UserID  uint      `gorm:"not null;uniqueIndex:idx_rating_file_user" json:"user_id"`
	Score   int       `gorm:"not null" json:"score"`
	RatedAt time.Time `gorm:"not null" json:"rated_at"`
}
