package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/brainzmonster/os/internal/database"
	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/models"
)

var (
	// ErrUserExists 用户名已存在
	ErrUserExists = errors.New("username already exists")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInactive 用户已停用
	ErrUserInactive = errors.New("user is inactive")
	// ErrInvalidUsername 用户名不合法
	ErrInvalidUsername = errors.New("username must be 3-32 alphanumeric characters")
	// ErrReservedUsername 保留用户名
	ErrReservedUsername = errors.New("username is reserved")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,32}$`)

// 系统保留的用户名，大小写不敏感
var reservedUsernames = map[string]struct{}{
	"admin":  {},
	"root":   {},
	"system": {},
	"llm":    {},
	"brainz": {},
}

// UserService 用户与API Key管理
type UserService struct {
	db *gorm.DB
}

// NewUserService 创建用户服务实例
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// ValidateUsername 校验用户名格式和保留名
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if _, ok := reservedUsernames[strings.ToLower(username)]; ok {
		return ErrReservedUsername
	}
	return nil
}

// CreateUser 创建新用户并发放API Key
func (s *UserService) CreateUser(username string) (*models.User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	var existing models.User
	err := s.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	apiKey, err := database.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("生成API Key失败: %w", err)
	}

	user := &models.User{
		Username: username,
		ApiKey:   apiKey,
		IsActive: true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	logger.Info("user created", zap.String("username", username), zap.Uint("user_id", user.ID))
	return user, nil
}

// EnsureUser 获取用户，不存在则创建（CLI和种子数据用）
func (s *UserService) EnsureUser(username string) (*models.User, bool, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("查询用户失败: %w", err)
	}

	created, err := s.CreateUser(username)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// GetByUsername 按用户名查询
func (s *UserService) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// GetByAPIKey 按API Key查询
func (s *UserService) GetByAPIKey(apiKey string) (*models.User, error) {
	var user models.User
	err := s.db.Where("api_key = ?", apiKey).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// ValidateAPIKey 鉴权入口：key必须存在且用户处于启用状态
func (s *UserService) ValidateAPIKey(apiKey string) (*models.User, error) {
	user, err := s.GetByAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	if !user.IsActive || user.IsDeleted {
		return nil, ErrUserInactive
	}
	return user, nil
}

// TouchAccess 记录一次访问：使用次数+1，刷新最后访问时间
func (s *UserService) TouchAccess(userID uint) error {
	now := time.Now()
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"usage_count":   gorm.Expr("usage_count + 1"),
			"last_accessed": now,
		}).Error
}

// RegenerateKey 重新发放API Key，旧key立即失效
func (s *UserService) RegenerateKey(username string) (*models.User, error) {
	user, err := s.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if !user.IsActive || user.IsDeleted {
		return nil, ErrUserInactive
	}

	apiKey, err := database.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("生成API Key失败: %w", err)
	}

	if err := s.db.Model(user).Update("api_key", apiKey).Error; err != nil {
		return nil, fmt.Errorf("更新API Key失败: %w", err)
	}
	user.ApiKey = apiKey

	logger.Info("api key regenerated", zap.String("username", username))
	return user, nil
}

// Deactivate 停用用户，保留数据
func (s *UserService) Deactivate(username string) error {
	user, err := s.GetByUsername(username)
	if err != nil {
		return err
	}
	return s.db.Model(user).Update("is_active", false).Error
}

// SoftDelete 软删除用户
func (s *UserService) SoftDelete(username string) error {
	user, err := s.GetByUsername(username)
	if err != nil {
		return err
	}
	return s.db.Model(user).Updates(map[string]interface{}{
		"is_active":  false,
		"is_deleted": true,
	}).Error
}

// ActiveUsers 启用状态的用户列表，按创建时间倒序
func (s *UserService) ActiveUsers(limit int) ([]models.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var users []models.User
	err := s.db.Where("is_active = ? AND is_deleted = ?", true, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}
	return users, nil
}
