package models

import (
	"time"
)

// SystemSetting 系统设置表（key/value形式的运行时开关）
type SystemSetting struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	Key       string    `gorm:"size:128;uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
