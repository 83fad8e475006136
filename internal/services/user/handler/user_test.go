package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"prepstock-system/config"
	"prepstock-system/internal/database"
	"prepstock-system/internal/database/models"
	"prepstock-system/internal/logger"
	"prepstock-system/internal/mailer"
	"prepstock-system/internal/serviceerr"
	"prepstock-system/internal/utils"
)

func TestMain(m *testing.M) {
	logger.InitializeLogger()
	os.Exit(m.Run())
}

var testAuthConfig = config.AuthConfig{
	JWTSecret:     "test-secret",
	TokenTTL:      time.Hour,
	ResetTokenTTL: 30 * time.Minute,
}

func newTestHandler(t *testing.T) (*UserHandler, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	mail := mailer.NewFromConfig(config.SMTPConfig{})
	return NewUserHandler(db, nil, mail, testAuthConfig, config.SMTPConfig{}), db
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:           "chef@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		RestaurantName:  "Bistro One",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s, db := newTestHandler(t)

	result, err := s.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Token == "" {
		t.Error("expected a token")
	}
	if result.User.RestaurantName == nil || *result.User.RestaurantName != "Bistro One" {
		t.Errorf("restaurant name = %v, want Bistro One", result.User.RestaurantName)
	}

	claims, err := utils.ParseToken(result.Token, []byte(testAuthConfig.JWTSecret))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Errorf("token user = %s, want %s", claims.UserID, result.User.ID)
	}

	// User and profile committed together.
	var profile models.Profile
	if err := db.First(&profile, "id = ?", result.User.ID).Error; err != nil {
		t.Fatalf("profile missing: %v", err)
	}

	login, err := s.Login(context.Background(), "chef@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != result.User.ID {
		t.Errorf("login user = %s, want %s", login.User.ID, result.User.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestHandler(t)

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		kind   serviceerr.Kind
	}{
		{"missing email", func(in *RegisterInput) { in.Email = "" }, serviceerr.Invalid},
		{"password mismatch", func(in *RegisterInput) { in.ConfirmPassword = "other" }, serviceerr.Invalid},
		{"password too short", func(in *RegisterInput) { in.Password, in.ConfirmPassword = "abc", "abc" }, serviceerr.Invalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validRegistration()
			tc.mutate(&input)
			_, err := s.Register(context.Background(), input)
			if serviceerr.KindOf(err) != tc.kind {
				t.Fatalf("expected kind %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s, _ := newTestHandler(t)

	if _, err := s.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := s.Register(context.Background(), validRegistration())
	if serviceerr.KindOf(err) != serviceerr.Conflict {
		t.Fatalf("expected Conflict for duplicate email, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	s, _ := newTestHandler(t)

	if _, err := s.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := s.Login(context.Background(), "chef@example.com", "wrong-pass")
	if serviceerr.KindOf(err) != serviceerr.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	_, err = s.Login(context.Background(), "nobody@example.com", "secret1")
	if serviceerr.KindOf(err) != serviceerr.Unauthenticated {
		t.Fatalf("expected Unauthenticated for unknown email, got %v", err)
	}
}

func TestEmailNormalized(t *testing.T) {
	s, _ := newTestHandler(t)

	input := validRegistration()
	input.Email = "  Chef@Example.COM "
	if _, err := s.Register(context.Background(), input); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := s.Login(context.Background(), "chef@example.com", "secret1"); err != nil {
		t.Fatalf("Login with normalized email: %v", err)
	}
}

type failingMailer struct{}

func (failingMailer) Send(to, subject, body string) error {
	return errors.New("smtp connection refused")
}

// The reset endpoint answers identically for registered and unknown emails;
// a mail delivery failure must not change that.
func TestRequestPasswordResetHidesDeliveryFailure(t *testing.T) {
	_, db := newTestHandler(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewUserHandler(db, rdb, failingMailer{}, testAuthConfig, config.SMTPConfig{})

	if _, err := s.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := s.RequestPasswordReset(context.Background(), "chef@example.com"); err != nil {
		t.Fatalf("reset request for registered email = %v, want nil", err)
	}
	if err := s.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("reset request for unknown email = %v, want nil", err)
	}
}

func TestPasswordResetRoundTrip(t *testing.T) {
	_, db := newTestHandler(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewUserHandler(db, rdb, mailer.NewFromConfig(config.SMTPConfig{}), testAuthConfig, config.SMTPConfig{})

	if _, err := s.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.RequestPasswordReset(context.Background(), "chef@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}

	keys := mr.Keys()
	var token string
	for _, k := range keys {
		if strings.HasPrefix(k, RESET_TOKEN_PREFIX) {
			token = strings.TrimPrefix(k, RESET_TOKEN_PREFIX)
		}
	}
	if token == "" {
		t.Fatal("no reset token stored")
	}

	if err := s.CompletePasswordReset(context.Background(), token, "newpass1", "newpass1"); err != nil {
		t.Fatalf("CompletePasswordReset: %v", err)
	}
	if _, err := s.Login(context.Background(), "chef@example.com", "newpass1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	err := s.CompletePasswordReset(context.Background(), token, "other1", "other1")
	if serviceerr.KindOf(err) != serviceerr.Invalid {
		t.Fatalf("expected Invalid reusing a consumed token, got %v", err)
	}
}
