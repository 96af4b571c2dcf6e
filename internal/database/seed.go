package database

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GenerateAPIKey 生成API Key（32字节随机数 -> 64位hex）
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SeedDefaultUser 创建默认用户（幂等，已存在时跳过）
func SeedDefaultUser(db *gorm.DB, username string) (bool, error) {
	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		return false, nil
	}

	apiKey, err := GenerateAPIKey()
	if err != nil {
		return false, err
	}

	user := models.User{Username: username, ApiKey: apiKey, IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		return false, fmt.Errorf("failed to seed user %s: %w", username, err)
	}
	return true, nil
}

type seedRecord struct {
	Username string `json:"username"`
	ApiKey   string `json:"api_key"`
}

// SeedUsersFromFile 从JSON数组或JSONL文件批量创建用户（幂等）
// 缺少api_key的记录自动生成，返回(created, skipped, errors)
func SeedUsersFromFile(db *gorm.DB, path string) (int, int, []string) {
	var errs []string

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("seed file not found: %s", path)}
	}

	var records []seedRecord
	content := strings.TrimSpace(string(raw))
	if err := json.Unmarshal([]byte(content), &records); err != nil {
		// JSONL兜底：逐行解析
		for i, line := range strings.Split(content, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var rec seedRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				errs = append(errs, fmt.Sprintf("line %d: %v", i+1, err))
				continue
			}
			records = append(records, rec)
		}
	}

	created, skipped := 0, 0
	for _, rec := range records {
		username := strings.TrimSpace(rec.Username)
		if username == "" {
			errs = append(errs, "missing username in record; skipped")
			continue
		}

		var existing models.User
		if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
			skipped++
			continue
		}

		apiKey := strings.TrimSpace(rec.ApiKey)
		if apiKey == "" {
			apiKey, err = GenerateAPIKey()
			if err != nil {
				errs = append(errs, err.Error())
				continue
			}
		}

		if err := db.Create(&models.User{Username: username, ApiKey: apiKey, IsActive: true}).Error; err != nil {
			errs = append(errs, fmt.Sprintf("create %s: %v", username, err))
			continue
		}
		created++
	}

	return created, skipped, errs
}

// SeedOnBoot 根据配置在启动时写入种子数据
func SeedOnBoot(db *gorm.DB) {
	cfg := config.AppConfig
	if cfg == nil || !cfg.Seed.OnBoot {
		return
	}

	log := logger.Named("seed")

	if cfg.Seed.AdminUser != "" {
		created, err := SeedDefaultUser(db, cfg.Seed.AdminUser)
		if err != nil {
			log.Error("failed to seed admin user", zap.Error(err))
		} else if created {
			log.Info("seeded admin user", zap.String("username", cfg.Seed.AdminUser))
		}
	}

	for i := 0; i < cfg.Seed.DemoUsers; i++ {
		username := fmt.Sprintf("demo%02d", i+1)
		if _, err := SeedDefaultUser(db, username); err != nil {
			log.Error("failed to seed demo user", zap.String("username", username), zap.Error(err))
		}
	}

	if path := os.Getenv("SEED_USERS_FILE"); path != "" {
		created, skipped, errs := SeedUsersFromFile(db, path)
		log.Info("seeded users from file",
			zap.String("path", path),
			zap.Int("created", created),
			zap.Int("skipped", skipped),
			zap.Int("errors", len(errs)))
	}

	// 默认系统设置（只在缺失时插入）
	defaults := map[string]string{
		"default_tag": cfg.Seed.DefaultTag,
	}
	for key, value := range defaults {
		var existing models.SystemSetting
		if err := db.Where("key = ?", key).First(&existing).Error; err == nil {
			continue
		}
		if err := db.Create(&models.SystemSetting{Key: key, Value: value}).Error; err != nil {
			log.Error("failed to seed setting", zap.String("key", key), zap.Error(err))
		}
	}
}
