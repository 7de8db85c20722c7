package model

import "time"

// FileRecord 共享文件的元数据，内容按净化后的文件名存放在共享目录中
type FileRecord struct {
	ID        uint      `gorm:"primaryKey" json:"file_id"`
	Name      string    `gorm:"type:varchar(255);not null;index" json:"file_name"`
	Size      int64     `json:"file_size"`
	Type      string    `gorm:"type:varchar(32);index" json:"file_type"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (FileRecord) TableName() string {
	return "files"
}

// FileView 搜索结果：文件元数据加上评分汇总
type FileView struct {
	ID            uint    `json:"file_id"`
	Name          string  `json:"file_name"`
	Size          int64   `json:"file_size"`
	Type          string  `json:"file_type"`
	SharedBy      string  `json:"shared_by"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int64   `json:"rating_count"`
}
