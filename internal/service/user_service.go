package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taxservice/internal/model"
	"taxservice/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type AuthRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterResponse struct {
	UserID uuid.UUID `json:"user_id"`
}

type AuthResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Token  string    `json:"token"`
}

// UserResponse never exposes the password hash
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Login     string    `json:"login"`
	Email     string    `json:"email"`
	CreatedAt string    `json:"created_at"`
}

type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Authenticate(ctx context.Context, req AuthRequest) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
}

// TokenConfig signs the tokens issued by Authenticate
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

type userService struct {
	repo   repository.UserRepository
	audits repository.AuditRepository
	txm    repository.TransactionManager
	token  TokenConfig
	logger *zap.Logger
}

func NewUserService(repo repository.UserRepository, audits repository.AuditRepository, txm repository.TransactionManager, token TokenConfig, logger *zap.Logger) UserService {
	return &userService{
		repo:   repo,
		audits: audits,
		txm:    txm,
		token:  token,
		logger: logger,
	}
}

// taken reports whether lookup found a row. Lookup failures other than
// not-found are returned as errors.
func taken(_ *model.User, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func auditDetails(fields map[string]string) string {
	b, _ := json.Marshal(fields)
	return string(b)
}

func (s *userService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if exists, err := taken(s.repo.GetByLogin(ctx, req.Login)); err != nil {
		return nil, fmt.Errorf("failed to check login: %w", err)
	} else if exists {
		return nil, ErrUserExists
	}

	if exists, err := taken(s.repo.GetByEmail(ctx, req.Email)); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	} else if exists {
		return nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Login:    req.Login,
		Email:    req.Email,
		Password: string(hashedPassword),
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, user); err != nil {
			return err
		}
		return s.audits.Log(txCtx, &model.AuditLog{
			UserID:     &user.ID,
			Action:     model.ActionRegisterUser,
			EntityID:   user.ID.String(),
			EntityName: user.Login,
			Details:    auditDetails(map[string]string{"login": user.Login, "email": user.Email}),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return &RegisterResponse{UserID: user.ID}, nil
}

func (s *userService) Authenticate(ctx context.Context, req AuthRequest) (*AuthResponse, error) {
	user, err := s.repo.GetByLogin(ctx, req.Login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(),
		"exp": time.Now().Add(s.token.TTL).Unix(),
		"iat": time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.token.Secret)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	// Login auditing must not block the login itself
	if err := s.audits.Log(ctx, &model.AuditLog{
		UserID:     &user.ID,
		Action:     model.ActionLoginUser,
		EntityID:   user.ID.String(),
		EntityName: user.Login,
		Details:    auditDetails(map[string]string{"login": user.Login}),
	}); err != nil {
		s.logger.Warn("Failed to write login audit entry", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	return &AuthResponse{UserID: user.ID, Token: tokenString}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidUserID
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &UserResponse{
		ID:        user.ID,
		Login:     user.Login,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
