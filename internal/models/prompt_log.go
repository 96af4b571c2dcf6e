package models

import (
	"time"
)

// PromptLog 提示词记录表
// 每次推理或训练调用都会写入一行，写入后不再修改
type PromptLog struct {
	ID         uint      `gorm:"primaryKey;column:id" json:"id"`
	Prompt     string    `gorm:"type:text;not null" json:"prompt"`
	UserID     *uint     `gorm:"column:user_id;index:idx_prompt_logs_user_tag_time,priority:1" json:"user_id"`
	Tag        string    `gorm:"size:50;index:idx_prompt_logs_user_tag_time,priority:2" json:"tag"`
	Source     string    `gorm:"size:64" json:"source"`
	TokensUsed *int      `gorm:"column:tokens_used" json:"tokens_used"`
	CreatedAt  time.Time `gorm:"column:created_at;index:,sort:desc;index:idx_prompt_logs_user_tag_time,priority:3" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (PromptLog) TableName() string {
	return "prompt_logs"
}

// ShortPreview 返回截断后的提示词预览，用于列表和日志输出
func (p *PromptLog) ShortPreview(length int) string {
	if length <= 0 {
		length = 120
	}
	runes := []rune(p.Prompt)
	if len(runes) <= length {
		return p.Prompt
	}
	return string(runes[:length]) + "…"
}
