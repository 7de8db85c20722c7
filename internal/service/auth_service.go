package service

import (
	"context"
	"strings"

	"go-file-share/internal/model"
	"go-file-share/internal/repository"
	"go-file-share/pkg/logger"
	"go-file-share/pkg/utils"

	errors "github.com/Laisky/errors/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// 处理认证相关业务逻辑
type AuthService struct {
	userRepo *repository.UserRepository
	tokens   *utils.TokenIssuer
	cost     int
}

// 创建一个新的认证服务实例，tokens 为 nil 时登录不签发 token
func NewAuthService(userRepo *repository.UserRepository, tokens *utils.TokenIssuer) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		cost:     bcrypt.DefaultCost,
	}
}

// WithHashCost 调整 bcrypt 代价，测试中用 bcrypt.MinCost 加速
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.cost = cost
	return s
}

// 用户注册请求
type RegisterRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// 用户登陆请求
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// 注册新用户
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}

	// 加密密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	user := &model.User{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			logger.L.Warn("Registration failed: username already exists", zap.String("username", req.Username))
			return nil, ErrDuplicateUsername
		}
		return nil, errors.Wrap(err, "create user")
	}

	logger.L.Info("User registered", zap.String("username", user.Username), zap.Uint("userID", user.ID))
	return user, nil
}

// Authenticate 校验凭据，用户不存在和密码错误返回同一个错误
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		logger.L.Warn("Login failed: invalid credentials", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// 用户登陆，返回 token 和用户（未配置签发器时 token 为空）
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, *model.User, error) {
	user, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return "", nil, err
	}

	var token string
	if s.tokens != nil {
		if token, err = s.tokens.Generate(user.ID, user.Username); err != nil {
			return "", nil, errors.Wrap(err, "generate token")
		}
	}

	logger.L.Info("User logged in", zap.String("username", user.Username), zap.Uint("userID", user.ID))
	return token, user, nil
}
