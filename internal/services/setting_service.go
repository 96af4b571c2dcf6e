package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brainzmonster/os/internal/models"
)

// ErrSettingNotFound 配置项不存在
var ErrSettingNotFound = errors.New("setting not found")

const settingCacheTTL = 5 * time.Minute

// SettingService 运行时配置项的读写
// 读路径带Redis缓存，Redis不可用时直接走库
type SettingService struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewSettingService 创建配置服务实例
func NewSettingService(db *gorm.DB, rdb *redis.Client) *SettingService {
	return &SettingService{db: db, rdb: rdb}
}

func settingCacheKey(key string) string {
	return "brainz:setting:" + key
}

// Get 读取配置项
func (s *SettingService) Get(ctx context.Context, key string) (string, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, settingCacheKey(key)).Result(); err == nil {
			return cached, nil
		}
	}

	var setting models.SystemSetting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("读取配置失败: %w", err)
	}

	if s.rdb != nil {
		s.rdb.Set(ctx, settingCacheKey(key), setting.Value, settingCacheTTL)
	}
	return setting.Value, nil
}

// GetOrDefault 读取配置项，缺省时返回fallback
func (s *SettingService) GetOrDefault(ctx context.Context, key, fallback string) string {
	value, err := s.Get(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}

// Set 写入配置项并失效缓存
func (s *SettingService) Set(ctx context.Context, key, value string) error {
	setting := models.SystemSetting{Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("写入配置失败: %w", err)
	}

	if s.rdb != nil {
		s.rdb.Del(ctx, settingCacheKey(key))
	}
	return nil
}

// All 返回全部配置项
func (s *SettingService) All() (map[string]string, error) {
	var settings []models.SystemSetting
	if err := s.db.Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	out := make(map[string]string, len(settings))
	for _, setting := range settings {
		out[setting.Key] = setting.Value
	}
	return out, nil
}
