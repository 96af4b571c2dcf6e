package models

import (
	"time"
)

// User 用户表
// 每个用户通过唯一的API Key访问接口，删除只做软删除
type User struct {
	ID           uint       `gorm:"primaryKey;column:id" json:"id"`
	Username     string     `gorm:"size:100;uniqueIndex;not null" json:"username"`
	ApiKey       string     `gorm:"column:api_key;size:255;uniqueIndex;not null" json:"api_key"`
	UsageCount   int        `gorm:"column:usage_count;default:0" json:"usage_count"`
	LastAccessed *time.Time `gorm:"column:last_accessed" json:"last_accessed"`
	IsActive     bool       `gorm:"column:is_active;default:true;index:idx_users_active_last_accessed" json:"is_active"`
	IsDeleted    bool       `gorm:"column:is_deleted;default:false" json:"is_deleted"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`

	Prompts []PromptLog `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// TouchAccess 更新最后访问时间并累加使用次数
func (u *User) TouchAccess() {
	now := time.Now()
	u.LastAccessed = &now
	u.UsageCount++
}

// Deactivate 软停用账号，不删除任何数据
func (u *User) Deactivate() {
	u.IsActive = false
	u.IsDeleted = true
}

// Reactivate 重新启用之前停用的账号
func (u *User) Reactivate() {
	u.IsActive = true
	u.IsDeleted = false
}
