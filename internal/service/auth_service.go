package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/model"
	"github.com/psds-microservice/support-desk/internal/notify"
	"github.com/psds-microservice/support-desk/internal/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const otpDigits = 6

var otpCodeRe = regexp.MustCompile(`^[0-9]{6}$`)

type AuthConfig struct {
	OTPTTL            time.Duration
	AdminPassword     string
	AdminPasswordHash string
}

// AuthServicer — интерфейс входа для HTTP-обработчиков.
type AuthServicer interface {
	RequestLogin(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (string, error)
	AdminLogin(password string) error
}

// AuthService issues and checks one-time login codes and the shared admin password.
type AuthService struct {
	Deps
	cfg       AuthConfig
	adminHash [sha256.Size]byte
	genCode   func() (string, error)
}

func NewAuthService(d Deps, cfg AuthConfig) *AuthService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	return &AuthService{
		Deps:      d.withDefaults(),
		cfg:       cfg,
		adminHash: sha256.Sum256([]byte(cfg.AdminPassword)),
		genCode:   func() (string, error) { return generateCode(otpDigits) },
	}
}

// RequestLogin выдаёт код, если у адреса есть хотя бы один тикет. Неизвестный адрес получает
// тот же результат без кода, их нельзя отличить.
func (s *AuthService) RequestLogin(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if err := validation.Validator().Var(email, "required,email,max=255"); err != nil {
		return errs.NewValidationError("email", "Invalid email address.")
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&model.Ticket{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return fmt.Errorf("lookup tickets: %w", err)
	}
	if n == 0 {
		slog.Debug("auth: login requested for unknown email")
		return nil
	}
	code, err := s.genCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	otp := &model.OTP{Email: email, Code: code, ExpiresAt: s.Now().Add(s.cfg.OTPTTL)}
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at"}),
	}).Create(otp).Error
	if err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	minutes := int(s.cfg.OTPTTL / time.Minute)
	s.Background.Go(notify.KindLoginCode, func(ctx context.Context) error {
		return s.Notifier.LoginCode(ctx, email, code, minutes)
	})
	return nil
}

// VerifyCode погашает действующий код и возвращает нормализованный email.
// Любая неудача — errs.ErrInvalidCode.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (string, error) {
	email = validation.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || !otpCodeRe.MatchString(code) {
		return "", errs.ErrInvalidCode
	}
	var otp model.OTP
	if err := s.DB.WithContext(ctx).Where("email = ?", email).Take(&otp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errs.ErrInvalidCode
		}
		return "", fmt.Errorf("lookup code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 || !s.Now().Before(otp.ExpiresAt) {
		return "", errs.ErrInvalidCode
	}
	res := s.DB.WithContext(ctx).Where("email = ? AND code = ?", email, otp.Code).Delete(&model.OTP{})
	if res.Error != nil {
		return "", fmt.Errorf("consume code: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return "", errs.ErrInvalidCode
	}
	slog.Info("auth: user verified")
	return email, nil
}

// AdminLogin checks the shared admin secret. With a bcrypt hash configured the plain
// password setting is ignored.
func (s *AuthService) AdminLogin(password string) error {
	if s.cfg.AdminPasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)) != nil {
			return errs.ErrInvalidAdminPassword
		}
		return nil
	}
	got := sha256.Sum256([]byte(password))
	if s.cfg.AdminPassword == "" || subtle.ConstantTimeCompare(got[:], s.adminHash[:]) != 1 {
		return errs.ErrInvalidAdminPassword
	}
	return nil
}

func generateCode(length int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[num.Int64()]
	}
	return string(code), nil
}
