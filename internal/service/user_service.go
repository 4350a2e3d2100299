package service

import (
	"context"
	"fmt"
	"math/rand"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/momchat/internal/auth"
	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/datamodels/user"
)

const (
	minPasswordLen = 6
	maxTagAttempts = 20
)

// UserService 注册、登录与个人资料
type UserService struct {
	repo     user.Repository
	jwt      *config.JWTConfig
	hashCost int
	newTag   func() string
	now      func() time.Time
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig) *UserService {
	return &UserService{
		repo:     repo,
		jwt:      jwt,
		hashCost: bcrypt.DefaultCost,
		newTag:   randomTag,
		now:      time.Now,
	}
}

// randomTag 匿名标签 Mom#1000 ~ Mom#9999
func randomTag() string {
	return fmt.Sprintf("Mom#%d", 1000+rand.Intn(9000))
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", InvalidArgument("Invalid email address")
	}
	return email, nil
}

func (s *UserService) hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", InvalidArgument(fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

// uniqueTag 有限次数内找一个未被占用的标签
func (s *UserService) uniqueTag(ctx context.Context) (string, error) {
	for i := 0; i < maxTagAttempts; i++ {
		tag := s.newTag()
		_, err := s.repo.GetByTag(ctx, tag)
		if isNotFound(err) {
			return tag, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "check tag")
		}
	}
	return "", Conflict("Could not allocate an anonymous tag, please retry")
}

// Register 注册并签发 token
func (s *UserService) Register(ctx context.Context, email, password string) (*user.User, *auth.TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, nil, Conflict("Email already registered")
	} else if !isNotFound(err) {
		return nil, nil, errors.Wrap(err, "lookup email")
	}

	hashed, err := s.hash(password)
	if err != nil {
		return nil, nil, err
	}

	var u *user.User
	for attempt := 1; ; attempt++ {
		tag, err := s.uniqueTag(ctx)
		if err != nil {
			return nil, nil, err
		}
		u = &user.User{
			AnonymousTag: tag,
			Email:        email,
			Password:     hashed,
		}
		err = s.repo.Create(ctx, u)
		if err == nil {
			break
		}
		if !isDuplicate(err) {
			return nil, nil, errors.Wrap(err, "create user")
		}
		// 唯一键冲突：邮箱被并发注册，或标签在检查之后被占用
		if _, lerr := s.repo.GetByEmail(ctx, email); lerr == nil {
			return nil, nil, Conflict("Email already registered")
		} else if !isNotFound(lerr) {
			return nil, nil, errors.Wrap(lerr, "lookup email")
		}
		if attempt >= maxTagAttempts {
			return nil, nil, Conflict("Could not allocate an anonymous tag, please retry")
		}
	}

	pair, err := auth.GenerateTokens(s.jwt, u.ID, u.Email)
	if err != nil {
		return nil, nil, errors.Wrap(err, "issue tokens")
	}
	return u, pair, nil
}

// Login 校验密码并签发 token
func (s *UserService) Login(ctx context.Context, email, password string) (*user.User, *auth.TokenPair, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if isNotFound(err) {
		return nil, nil, Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "lookup email")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, nil, Unauthenticated("Invalid credentials")
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, nil, errors.Wrap(err, "update last login")
	}
	u.LastLogin = &now

	pair, err := auth.GenerateTokens(s.jwt, u.ID, u.Email)
	if err != nil {
		return nil, nil, errors.Wrap(err, "issue tokens")
	}
	return u, pair, nil
}

// Refresh 用 refresh token 换一对新 token
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	if refreshToken == "" {
		return nil, Unauthenticated("Refresh token required")
	}
	claims, err := auth.ParseRefreshToken(s.jwt, refreshToken)
	if err != nil {
		return nil, Unauthenticated("Invalid refresh token")
	}
	u, err := s.repo.GetByID(ctx, claims.UserID)
	if isNotFound(err) {
		return nil, Forbidden("Access Denied")
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup user")
	}
	pair, err := auth.GenerateTokens(s.jwt, u.ID, u.Email)
	if err != nil {
		return nil, errors.Wrap(err, "issue tokens")
	}
	return pair, nil
}

// GetByID 身份目录：按 ID 解析
func (s *UserService) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if isNotFound(err) {
		return nil, NotFound("User not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup user")
	}
	return u, nil
}

// ProfileUpdate 字段为 nil 表示不修改
type ProfileUpdate struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// UpdateProfile 修改邮箱或密码，匿名标签不可修改
func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*user.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		if email != u.Email {
			other, err := s.repo.GetByEmail(ctx, email)
			switch {
			case err == nil && other.ID != u.ID:
				return nil, Conflict("Email already in use")
			case err != nil && !isNotFound(err):
				return nil, errors.Wrap(err, "lookup email")
			}
			u.Email = email
		}
	}
	if in.Password != nil {
		hashed, err := s.hash(*in.Password)
		if err != nil {
			return nil, err
		}
		u.Password = hashed
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if isDuplicate(err) {
			return nil, Conflict("Email already in use")
		}
		return nil, errors.Wrap(err, "update user")
	}
	return u, nil
}

// ListAll 管理端用户列表
func (s *UserService) ListAll(ctx context.Context) ([]*user.User, error) {
	users, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	if users == nil {
		users = []*user.User{}
	}
	return users, nil
}
