package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"prepstock-system/config"
	"prepstock-system/internal/database/models"
	"prepstock-system/internal/logger"
	"prepstock-system/internal/mailer"
	"prepstock-system/internal/serviceerr"
	"prepstock-system/internal/utils"
)

const (
	TOKEN_DENYLIST_PREFIX = "auth:denylist:"
	RESET_TOKEN_PREFIX    = "auth:reset:"

	MIN_PASSWORD_LENGTH = 6
)

type UserHandler struct {
	db    *gorm.DB
	redis *redis.Client
	mail  mailer.Mailer
	cfg   config.AuthConfig
	smtp  config.SMTPConfig
}

func NewUserHandler(db *gorm.DB, redisClient *redis.Client, mail mailer.Mailer, cfg config.AuthConfig, smtp config.SMTPConfig) *UserHandler {
	return &UserHandler{
		db:    db,
		redis: redisClient,
		mail:  mail,
		cfg:   cfg,
		smtp:  smtp,
	}
}

type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	RestaurantName  string
}

type UserView struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	RestaurantName *string `json:"restaurant_name"`
}

type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserView  `json:"user"`
}

func validatePassword(password, confirm string) error {
	if password != confirm {
		return serviceerr.New(serviceerr.Invalid, "Passwords don't match")
	}
	if len(password) < MIN_PASSWORD_LENGTH {
		return serviceerr.New(serviceerr.Invalid, fmt.Sprintf("Password must be at least %d characters", MIN_PASSWORD_LENGTH))
	}
	return nil
}

func (s *UserHandler) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return nil, serviceerr.New(serviceerr.Invalid, "Email is required")
	}
	if err := validatePassword(input.Password, input.ConfirmPassword); err != nil {
		return nil, err
	}

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, serviceerr.New(serviceerr.Conflict, "Email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Error hashing password", err)
	}

	user := models.User{
		Email:    email,
		Password: string(pwHash),
		IsActive: true,
	}

	// User and profile commit together or not at all.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile := models.Profile{
			ID:             user.ID,
			Email:          &user.Email,
			RestaurantName: strPtr(input.RestaurantName),
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Error creating user", err)
	}

	logger.Info("user registered", zap.String("user_id", user.ID))
	return s.authResult(user, strPtr(input.RestaurantName))
}

func (s *UserHandler) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, serviceerr.New(serviceerr.Invalid, "Email and password are required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, serviceerr.New(serviceerr.Unauthenticated, "Invalid email or password")
		}
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Invalid email or password")
	}

	now := time.Now()
	s.db.WithContext(ctx).Model(&user).Update("last_login", &now)

	var profile models.Profile
	var restaurant *string
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", user.ID).Error; err == nil {
		restaurant = profile.RestaurantName
	}

	return s.authResult(user, restaurant)
}

func (s *UserHandler) authResult(user models.User, restaurant *string) (*AuthResult, error) {
	token, exp, err := utils.GenerateToken(user.ID, user.Email, s.cfg.TokenTTL, []byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Error generating token", err)
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: exp,
		User: UserView{
			ID:             user.ID,
			Email:          user.Email,
			RestaurantName: restaurant,
		},
	}, nil
}

// Logout denylists the token until its natural expiry so it can no longer
// resolve a session.
func (s *UserHandler) Logout(ctx context.Context, token string, claims *utils.Claims) error {
	if s.redis == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, TOKEN_DENYLIST_PREFIX+token, "1", ttl).Err(); err != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Error signing out", err)
	}
	return nil
}

// RequestPasswordReset always reports success for a well-formed email, so the
// endpoint cannot reveal which addresses are registered. Delivery failures
// are logged, never surfaced.
func (s *UserHandler) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return serviceerr.New(serviceerr.Invalid, "Email is required")
	}
	if s.redis == nil {
		return serviceerr.New(serviceerr.Internal, "Password reset is not configured")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, RESET_TOKEN_PREFIX+token, user.ID, s.cfg.ResetTokenTTL).Err(); err != nil {
		logger.Error("failed to store reset token", zap.Error(err))
		return nil
	}

	link := fmt.Sprintf("%s?token=%s", s.smtp.ResetBaseURL, token)
	body := fmt.Sprintf("We received a request to reset your password.\n\nReset it here: %s\n\nIf you didn't request this, you can ignore this email.", link)
	if err := s.mail.Send(user.Email, "Reset your password", body); err != nil {
		logger.Error("failed to send reset email", zap.Error(err))
	}
	return nil
}

func (s *UserHandler) CompletePasswordReset(ctx context.Context, token, password, confirm string) error {
	if token == "" {
		return serviceerr.New(serviceerr.Invalid, "Reset token is required")
	}
	if err := validatePassword(password, confirm); err != nil {
		return err
	}
	if s.redis == nil {
		return serviceerr.New(serviceerr.Internal, "Password reset is not configured")
	}

	userID, err := s.redis.GetDel(ctx, RESET_TOKEN_PREFIX+token).Result()
	if err == redis.Nil {
		return serviceerr.New(serviceerr.Invalid, "Invalid or expired reset token")
	} else if err != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Error reading reset token", err)
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Error hashing password", err)
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password", string(pwHash))
	if res.Error != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Error updating password", res.Error)
	}
	if res.RowsAffected == 0 {
		return serviceerr.New(serviceerr.NotFound, "User not found")
	}

	logger.Info("password reset completed", zap.String("user_id", userID))
	return nil
}

// IsTokenDenylisted is consulted by the auth middleware on every request.
func (s *UserHandler) IsTokenDenylisted(ctx context.Context, token string) bool {
	if s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, TOKEN_DENYLIST_PREFIX+token).Result()
	return err == nil && n > 0
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
